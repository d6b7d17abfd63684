package notifier

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mfenderov/duyuru-watch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhook_PostsMarkdown(t *testing.T) {
	var got webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	f := NewFormatter(testMessages)
	msg := f.NewAnnouncements([]models.Announcement{announcement(1)})[0]

	wh := NewWebhook(server.URL, 0)
	require.NoError(t, wh.Notify(t.Context(), msg))

	assert.Equal(t, got.Text, got.Content)
	assert.Contains(t, got.Text, "**YENİ DUYURU!**")
	assert.Contains(t, got.Text, "[Duyuruyu Gör](https://ankara.adalet.gov.tr/d/1)")
	assert.NotContains(t, got.Text, "<b>")
}

func TestWebhook_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer server.Close()

	err := NewWebhook(server.URL, 0).Notify(t.Context(), "<b>x</b>")

	var de *DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "webhook", de.Channel)
	assert.Equal(t, http.StatusForbidden, de.StatusCode)
	assert.Contains(t, err.Error(), "invalid_token")
}

func TestToMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		contains []string
	}{
		{
			name:     "bold",
			html:     "<b>Son 3 Duyuru</b>",
			contains: []string{"**Son 3 Duyuru**"},
		},
		{
			name:     "links",
			html:     `🔗 <a href="https://ankara.adalet.gov.tr/d/1">Duyuruyu Gör</a>`,
			contains: []string{"[Duyuruyu Gör](https://ankara.adalet.gov.tr/d/1)"},
		},
		{
			name:     "line breaks kept",
			html:     "birinci satır\nikinci satır",
			contains: []string{"birinci satır", "\n", "ikinci satır"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md, err := ToMarkdown(tt.html)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, md, want)
			}
		})
	}

	md, err := ToMarkdown("")
	require.NoError(t, err)
	assert.Empty(t, md)
}
