package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mfenderov/duyuru-watch/internal/notifier"
	"github.com/mfenderov/duyuru-watch/internal/reconcile"
	"github.com/mfenderov/duyuru-watch/internal/scraper"
	"github.com/mfenderov/duyuru-watch/internal/snapshot"
	"github.com/mfenderov/duyuru-watch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "s3cret"

type countingStore struct {
	snap  models.Snapshot
	err   error
	loads int
}

func (s *countingStore) Load(ctx context.Context) (models.Snapshot, error) {
	s.loads++
	return s.snap, s.err
}

type fakeRunner struct {
	result  *reconcile.Result
	err     error
	runs    []reconcile.RunOptions
	resets  int
	panics  bool
	sawDone bool
}

func (f *fakeRunner) Run(ctx context.Context, opts reconcile.RunOptions) (*reconcile.Result, error) {
	if f.panics {
		panic("boom")
	}
	f.runs = append(f.runs, opts)
	_, f.sawDone = ctx.Deadline()
	return f.result, f.err
}

func (f *fakeRunner) Reset(ctx context.Context) error {
	f.resets++
	return nil
}

type fakeChat struct {
	updates []tgbotapi.Update
	err     error
}

func (f *fakeChat) Handle(ctx context.Context, u tgbotapi.Update) error {
	f.updates = append(f.updates, u)
	return f.err
}

type env struct {
	store  *countingStore
	runner *fakeRunner
	chat   *fakeChat
	seeds  int
	server *Server
}

func newEnv(t *testing.T, cfg Config) *env {
	t.Helper()
	e := &env{
		store: &countingStore{},
		runner: &fakeRunner{result: &reconcile.Result{
			CycleID:   "cycle-1",
			Status:    reconcile.StatusUpdated,
			Total:     3,
			New:       1,
			Notified:  1,
			CheckedAt: time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC),
		}},
		chat: &fakeChat{},
	}
	e.server = NewServer(cfg, Deps{
		Store:  e.store,
		Runner: e.runner,
		Chat:   e.chat,
		Seed: func(ctx context.Context) (models.Snapshot, error) {
			e.seeds++
			return models.Snapshot{Items: make([]models.Announcement, 5)}, nil
		},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return e
}

func do(t *testing.T, h http.Handler, method, path, auth, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func TestTrigger_RejectsBadCredentials(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		auth       string
		method     string
		path       string
	}{
		{"wrong secret", secret, "Bearer nope", http.MethodGet, "/api/cron"},
		{"missing header", secret, "", http.MethodPost, "/api/cron"},
		{"wrong scheme", secret, "Basic " + secret, http.MethodGet, "/api/cron"},
		{"secret without scheme", secret, secret, http.MethodGet, "/api/cron"},
		{"no secret configured", "", "Bearer ", http.MethodGet, "/api/cron"},
		{"admin check", secret, "Bearer nope", http.MethodPost, "/api/admin/check"},
		{"admin seed", secret, "Bearer nope", http.MethodPost, "/api/admin/seed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, Config{CronSecret: tt.configured})

			rec, body := do(t, e.server.Handler(), tt.method, tt.path, tt.auth, `{"reset":true,"force":true}`)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.Empty(t, e.runner.runs, "fetcher and notifier are never reached")
			assert.Zero(t, e.runner.resets)
			assert.Zero(t, e.store.loads)
			assert.Zero(t, e.seeds)
		})
	}
}

func TestTrigger_RunsCycle(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		t.Run(method, func(t *testing.T) {
			e := newEnv(t, Config{CronSecret: secret})

			rec, body := do(t, e.server.Handler(), method, "/api/cron", "Bearer "+secret, "")

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, true, body["success"])
			assert.Equal(t, "updated", body["status"])
			assert.Equal(t, "cycle-1", body["cycle_id"])
			assert.EqualValues(t, 3, body["total"])
			assert.EqualValues(t, 1, body["new"])
			assert.Equal(t, "2025-01-15T09:00:00Z", body["last_check"])
			require.Len(t, e.runner.runs, 1)
			assert.False(t, e.runner.runs[0].Silent)
			assert.True(t, e.runner.sawDone, "cycle runs under a deadline")
		})
	}
}

func TestTrigger_ReportsDegraded(t *testing.T) {
	e := newEnv(t, Config{CronSecret: secret})
	e.runner.result = &reconcile.Result{
		Status: reconcile.StatusDegraded,
		Err:    &scraper.FetchError{Kind: scraper.KindStructure, Attempts: 3, Err: scraper.ErrNoRecords},
	}

	rec, body := do(t, e.server.Handler(), http.MethodGet, "/api/cron", "Bearer "+secret, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", body["status"])
	assert.Contains(t, body["message"], "layout may have changed")
	assert.NotEmpty(t, body["error"])
}

func TestTrigger_ReportsDeliveryErrors(t *testing.T) {
	e := newEnv(t, Config{CronSecret: secret})
	e.runner.result.DeliveryErrors = []error{&notifier.DeliveryError{Channel: "telegram", StatusCode: 429, Err: errors.New("flood")}}

	rec, body := do(t, e.server.Handler(), http.MethodGet, "/api/cron", "Bearer "+secret, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body["delivery_errors"], 1)
}

func TestTrigger_ReportsPersistFailure(t *testing.T) {
	e := newEnv(t, Config{CronSecret: secret})
	e.runner.result = &reconcile.Result{Status: reconcile.StatusFailed}
	e.runner.err = errors.New("failed to persist snapshot: connection reset")

	rec, body := do(t, e.server.Handler(), http.MethodPost, "/api/cron", "Bearer "+secret, "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "failed", body["status"])
	assert.Contains(t, body["error"], "connection reset")
}

func TestAnnouncements(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		e := newEnv(t, Config{})
		rec, body := do(t, e.server.Handler(), http.MethodGet, "/api/announcements", "", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "empty", body["status"])
		assert.Equal(t, []any{}, body["announcements"])
		assert.EqualValues(t, 0, body["total"])
	})

	t.Run("ok", func(t *testing.T) {
		e := newEnv(t, Config{})
		e.store.snap = models.Snapshot{
			Items:     []models.Announcement{{ID: "a", Title: "Duyuru A", Link: "https://x.gov.tr/a", Date: "01.01.2025"}},
			CheckedAt: time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC),
		}
		rec, body := do(t, e.server.Handler(), http.MethodGet, "/api/announcements", "", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", body["status"])
		assert.EqualValues(t, 1, body["total"])
		assert.Equal(t, "2025-01-15T09:00:00Z", body["last_check"])
		items := body["announcements"].([]any)
		assert.Equal(t, "Duyuru A", items[0].(map[string]any)["title"])
	})

	t.Run("store unavailable", func(t *testing.T) {
		e := newEnv(t, Config{})
		e.store.err = &snapshot.StoreError{Op: "load", Backend: "redis", Err: errors.New("dial tcp: refused")}
		rec, body := do(t, e.server.Handler(), http.MethodGet, "/api/announcements", "", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "unavailable", body["status"])
		assert.Equal(t, []any{}, body["announcements"])
		assert.NotContains(t, body["message"], "refused", "backend details stay in the logs")
	})
}

func TestAdminCheck(t *testing.T) {
	auth := "Bearer " + secret

	t.Run("reset only", func(t *testing.T) {
		e := newEnv(t, Config{CronSecret: secret})
		rec, body := do(t, e.server.Handler(), http.MethodPost, "/api/admin/check", auth, `{"reset":true}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, 1, e.runner.resets)
		assert.Empty(t, e.runner.runs)
	})

	t.Run("reset and force", func(t *testing.T) {
		e := newEnv(t, Config{CronSecret: secret})
		rec, _ := do(t, e.server.Handler(), http.MethodPost, "/api/admin/check", auth, `{"reset":true,"force":true}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, e.runner.resets)
		assert.Len(t, e.runner.runs, 1)
	})

	t.Run("silent force", func(t *testing.T) {
		e := newEnv(t, Config{CronSecret: secret})
		do(t, e.server.Handler(), http.MethodPost, "/api/admin/check", auth, `{"force":true,"silent":true}`)

		require.Len(t, e.runner.runs, 1)
		assert.True(t, e.runner.runs[0].Silent)
	})

	t.Run("no flags returns cached snapshot", func(t *testing.T) {
		e := newEnv(t, Config{CronSecret: secret})
		e.store.snap = models.Snapshot{Items: make([]models.Announcement, 4)}
		rec, body := do(t, e.server.Handler(), http.MethodPost, "/api/admin/check", auth, "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 4, body["total"])
		assert.Empty(t, e.runner.runs)
	})

	t.Run("malformed body", func(t *testing.T) {
		e := newEnv(t, Config{CronSecret: secret})
		rec, body := do(t, e.server.Handler(), http.MethodPost, "/api/admin/check", auth, `{"reset":`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, false, body["success"])
		assert.Zero(t, e.runner.resets)
	})
}

func TestSeed(t *testing.T) {
	e := newEnv(t, Config{CronSecret: secret})
	rec, body := do(t, e.server.Handler(), http.MethodPost, "/api/admin/seed", "Bearer "+secret, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 5, body["total"])
	assert.Equal(t, 1, e.seeds)
}

func TestTelegramWebhook(t *testing.T) {
	update := `{"update_id":1,"message":{"text":"/duyuru","chat":{"id":42}}}`

	t.Run("dispatches update", func(t *testing.T) {
		e := newEnv(t, Config{})
		rec, body := do(t, e.server.Handler(), http.MethodPost, "/api/telegram/webhook", "", update)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["success"])
		require.Len(t, e.chat.updates, 1)
		assert.Equal(t, "/duyuru", e.chat.updates[0].Message.Text)
		assert.Equal(t, int64(42), e.chat.updates[0].Message.Chat.ID)
	})

	t.Run("handler failure still 200", func(t *testing.T) {
		e := newEnv(t, Config{})
		e.chat.err = errors.New("telegram down")
		rec, _ := do(t, e.server.Handler(), http.MethodPost, "/api/telegram/webhook", "", update)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("malformed update still 200", func(t *testing.T) {
		e := newEnv(t, Config{})
		rec, _ := do(t, e.server.Handler(), http.MethodPost, "/api/telegram/webhook", "", `not json`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, e.chat.updates)
	})

	t.Run("secret token checked", func(t *testing.T) {
		e := newEnv(t, Config{WebhookSecret: "hook"})
		rec, _ := do(t, e.server.Handler(), http.MethodPost, "/api/telegram/webhook", "", update)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, e.chat.updates)

		for _, wrong := range []string{"hoo", "hook ", "HOOK", "hookk"} {
			req := httptest.NewRequest(http.MethodPost, "/api/telegram/webhook", strings.NewReader(update))
			req.Header.Set("X-Telegram-Bot-Api-Secret-Token", wrong)
			w := httptest.NewRecorder()
			e.server.Handler().ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code, wrong)
		}
		assert.Empty(t, e.chat.updates)

		req := httptest.NewRequest(http.MethodPost, "/api/telegram/webhook", strings.NewReader(update))
		req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "hook")
		w := httptest.NewRecorder()
		e.server.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, e.chat.updates, 1)
	})
}

func TestRecoverer(t *testing.T) {
	e := newEnv(t, Config{CronSecret: secret})
	e.runner.panics = true

	rec, body := do(t, e.server.Handler(), http.MethodGet, "/api/cron", "Bearer "+secret, "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", body["error"])
}

func TestHealthAndNotFound(t *testing.T) {
	e := newEnv(t, Config{})

	rec, body := do(t, e.server.Handler(), http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec, _ = do(t, e.server.Handler(), http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, e.server.Handler(), http.MethodDelete, "/api/announcements", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type failingFetcher struct{ calls int }

func (f *failingFetcher) Fetch(ctx context.Context) ([]models.Announcement, error) {
	f.calls++
	return nil, &scraper.FetchError{Kind: scraper.KindStructure, Attempts: 3, Err: scraper.ErrNoRecords}
}

func TestDegradedCycleKeepsServingPreviousSnapshot(t *testing.T) {
	store := snapshot.NewMemory()
	prior := models.Snapshot{
		Items:     []models.Announcement{models.NewAnnouncement("Önceki duyuru", "https://x.gov.tr/d/1", "01.01.2025")},
		CheckedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(t.Context(), prior))

	fetcher := &failingFetcher{}
	ctrl, err := reconcile.New(fetcher, store, notifier.Log{}, reconcile.Options{
		Formatter: notifier.NewFormatter(notifier.Messages{}),
	})
	require.NoError(t, err)

	srv := NewServer(Config{CronSecret: secret}, Deps{Store: store, Runner: ctrl},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec, body := do(t, srv.Handler(), http.MethodGet, "/api/cron", "Bearer "+secret, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, 1, fetcher.calls)

	rec, body = do(t, srv.Handler(), http.MethodGet, "/api/announcements", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "2025-01-01T00:00:00Z", body["last_check"])
	items := body["announcements"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "Önceki duyuru", items[0].(map[string]any)["title"])
}
