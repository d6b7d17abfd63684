package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mfenderov/duyuru-watch/internal/notifier"
	"github.com/mfenderov/duyuru-watch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLoader struct {
	snap models.Snapshot
	err  error
}

func (s stubLoader) Load(ctx context.Context) (models.Snapshot, error) {
	return s.snap, s.err
}

type stubFetcher struct {
	items []models.Announcement
	err   error
	calls int
}

func (f *stubFetcher) Fetch(ctx context.Context) ([]models.Announcement, error) {
	f.calls++
	return f.items, f.err
}

type sentReply struct {
	chatID string
	text   string
}

type stubReplier struct {
	replies []sentReply
	err     error
}

func (r *stubReplier) SendTo(ctx context.Context, chatID, message string) error {
	r.replies = append(r.replies, sentReply{chatID, message})
	return r.err
}

var formatter = notifier.NewFormatter(notifier.Messages{
	ListHeader: "Son %d Duyuru",
	LinkText:   "Duyuruyu Gör",
	Footer:     "#AnkaraAdliye",
	Empty:      "Henüz duyuru bulunamadı.",
	Welcome:    "Merhaba!",
	Help:       "Bilinmeyen komut.",
})

func items(n int) []models.Announcement {
	out := make([]models.Announcement, n)
	for i := range out {
		out[i] = models.NewAnnouncement(fmt.Sprintf("Duyuru numarası %d", i+1), fmt.Sprintf("https://x.gov.tr/d/%d", i+1), "")
	}
	return out
}

func TestReply(t *testing.T) {
	h := New(stubLoader{snap: models.Snapshot{Items: items(12)}}, nil, &stubReplier{}, formatter, Options{})

	tests := []struct {
		name      string
		text      string
		wantStart string
		wantItems int
	}{
		{name: "start", text: "/start", wantStart: "Merhaba!"},
		{name: "start uppercase with bot name", text: "/START@AdliyeBot", wantStart: "Merhaba!"},
		{name: "duyuru default", text: "/duyuru", wantStart: "Son 3 Duyuru", wantItems: 3},
		{name: "duyuru with count", text: " /duyuru 5 ", wantStart: "Son 5 Duyuru", wantItems: 5},
		{name: "duyuru capped", text: "/duyuru 50", wantStart: "Son 10 Duyuru", wantItems: 10},
		{name: "duyuru bad count", text: "/duyuru abc", wantStart: "Son 3 Duyuru", wantItems: 3},
		{name: "duyuru bot suffix", text: "/duyuru@AdliyeBot 2", wantStart: "Son 2 Duyuru", wantItems: 2},
		{name: "unknown", text: "/help", wantStart: "Bilinmeyen komut."},
		{name: "plain text", text: "merhaba", wantStart: "Bilinmeyen komut."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := h.Reply(t.Context(), tt.text)
			assert.True(t, strings.HasPrefix(reply, tt.wantStart), reply)
			assert.Equal(t, tt.wantItems, strings.Count(reply, "<a href="))
		})
	}
}

func TestLatest_FetchesOnlyWhenSnapshotEmpty(t *testing.T) {
	fetcher := &stubFetcher{items: items(5)}

	h := New(stubLoader{snap: models.Snapshot{Items: items(2)}}, fetcher, &stubReplier{}, formatter, Options{})
	assert.Len(t, h.Latest(t.Context(), 3), 2)
	assert.Zero(t, fetcher.calls)

	h = New(stubLoader{}, fetcher, &stubReplier{}, formatter, Options{})
	assert.Len(t, h.Latest(t.Context(), 3), 3)
	assert.Equal(t, 1, fetcher.calls)
}

func TestLatest_StoreErrorFallsBackToFetch(t *testing.T) {
	fetcher := &stubFetcher{items: items(1)}
	h := New(stubLoader{err: errors.New("redis down")}, fetcher, &stubReplier{}, formatter, Options{})

	assert.Len(t, h.Latest(t.Context(), 3), 1)
	assert.Equal(t, 1, fetcher.calls)
}

func TestReply_EmptyWhenNothingAvailable(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("site down")}
	h := New(stubLoader{}, fetcher, &stubReplier{}, formatter, Options{})

	assert.Equal(t, "Henüz duyuru bulunamadı.", h.Reply(t.Context(), "/duyuru"))
}

func TestHandle(t *testing.T) {
	replier := &stubReplier{}
	h := New(stubLoader{snap: models.Snapshot{Items: items(4)}}, nil, replier, formatter, Options{DefaultCount: 2})

	u := tgbotapi.Update{Message: &tgbotapi.Message{Text: "/duyuru", Chat: &tgbotapi.Chat{ID: -1001234}}}

	require.NoError(t, h.Handle(t.Context(), u))
	require.Len(t, replier.replies, 1)
	assert.Equal(t, "-1001234", replier.replies[0].chatID)
	assert.Equal(t, 2, strings.Count(replier.replies[0].text, "<a href="))
}

func TestHandle_IgnoresIncompleteUpdates(t *testing.T) {
	replier := &stubReplier{}
	h := New(stubLoader{}, nil, replier, formatter, Options{})

	require.NoError(t, h.Handle(t.Context(), tgbotapi.Update{}))
	require.NoError(t, h.Handle(t.Context(), tgbotapi.Update{Message: &tgbotapi.Message{Text: "/start"}}))
	require.NoError(t, h.Handle(t.Context(), tgbotapi.Update{Message: &tgbotapi.Message{Text: " ", Chat: &tgbotapi.Chat{ID: 7}}}))
	assert.Empty(t, replier.replies)
}

func TestHandle_ReplyFailure(t *testing.T) {
	replier := &stubReplier{err: &notifier.DeliveryError{Channel: "telegram", Err: errors.New("blocked")}}
	h := New(stubLoader{}, nil, replier, formatter, Options{})

	u := tgbotapi.Update{Message: &tgbotapi.Message{Text: "/start", Chat: &tgbotapi.Chat{ID: 7}}}

	err := h.Handle(t.Context(), u)
	var de *notifier.DeliveryError
	assert.ErrorAs(t, err, &de)
}
