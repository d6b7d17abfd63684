package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mfenderov/duyuru-watch/internal/reconcile"
	"github.com/mfenderov/duyuru-watch/internal/scraper"
	"github.com/mfenderov/duyuru-watch/pkg/models"
)

type announcementsResponse struct {
	Announcements []models.Announcement `json:"announcements"`
	LastCheck     string                `json:"last_check,omitempty"`
	Total         int                   `json:"total"`
	Status        string                `json:"status"` // ok, empty, unavailable
	Message       string                `json:"message,omitempty"`
}

type cycleResponse struct {
	Success        bool     `json:"success"`
	CycleID        string   `json:"cycle_id,omitempty"`
	Status         string   `json:"status,omitempty"`
	Message        string   `json:"message"`
	Total          int      `json:"total"`
	New            int      `json:"new"`
	Notified       int      `json:"notified"`
	DeliveryErrors []string `json:"delivery_errors,omitempty"`
	LastCheck      string   `json:"last_check,omitempty"`
	DurationMS     int64    `json:"duration_ms"`
	Error          string   `json:"error,omitempty"`
}

type adminCheckRequest struct {
	Reset  bool `json:"reset"`
	Force  bool `json:"force"`
	Silent bool `json:"silent"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAnnouncements always answers 200; problems are described in the
// status and message fields.
func (s *Server) handleAnnouncements(w http.ResponseWriter, r *http.Request) {
	resp := announcementsResponse{Announcements: []models.Announcement{}}

	snap, err := s.deps.Store.Load(r.Context())
	switch {
	case err != nil:
		s.logger.Error("failed to load snapshot", "error", err)
		resp.Status = "unavailable"
		resp.Message = "announcements are temporarily unavailable"
	case snap.IsEmpty():
		resp.Status = "empty"
		resp.Message = "no announcements have been recorded yet"
	default:
		resp.Announcements = snap.Items
		resp.Status = "ok"
	}
	resp.LastCheck = formatTime(snap.CheckedAt)
	resp.Total = len(resp.Announcements)

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCron(w http.ResponseWriter, r *http.Request) {
	s.runCycle(w, r, reconcile.RunOptions{})
}

func (s *Server) handleAdminCheck(w http.ResponseWriter, r *http.Request) {
	var req adminCheckRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Reset {
		if err := s.deps.Runner.Reset(r.Context()); err != nil {
			s.logger.Error("reset failed", "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !req.Force {
			writeJSON(w, http.StatusOK, map[string]any{
				"success": true,
				"message": "snapshot cleared",
			})
			return
		}
	}

	if req.Force {
		s.runCycle(w, r, reconcile.RunOptions{Silent: req.Silent})
		return
	}

	snap, err := s.deps.Store.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cycleResponse{
		Success:   true,
		Message:   "cached snapshot, pass force to run a cycle",
		Total:     len(snap.Items),
		LastCheck: formatTime(snap.CheckedAt),
	})
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Seed(r.Context())
	if err != nil {
		s.logger.Error("seed failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       fmt.Sprintf("%d sample announcements loaded", len(snap.Items)),
		"total":         len(snap.Items),
		"announcements": snap.Items,
	})
}

// handleTelegramWebhook always answers 200 once the secret matches, so the
// Bot API does not redeliver updates that failed on our side.
func (s *Server) handleTelegramWebhook(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
	if s.cfg.WebhookSecret != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.WebhookSecret)) != 1 {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var u tgbotapi.Update
	if err := decodeBody(r, &u); err != nil {
		s.logger.Warn("ignoring malformed webhook update", "error", err)
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}

	if err := s.deps.Chat.Handle(r.Context(), u); err != nil {
		s.logger.Error("chat command failed", "update_id", u.UpdateID, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// runCycle detaches the cycle from the request so a scheduler that gives up
// early does not cut notifications off halfway.
func (s *Server) runCycle(w http.ResponseWriter, r *http.Request, opts reconcile.RunOptions) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.cfg.CycleTimeout)
	defer cancel()

	res, err := s.deps.Runner.Run(ctx, opts)
	if res == nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("cycle failed: %v", err))
		return
	}

	resp := cycleResponse{
		Success:    err == nil,
		CycleID:    res.CycleID,
		Status:     string(res.Status),
		Total:      res.Total,
		New:        res.New,
		Notified:   res.Notified,
		LastCheck:  formatTime(res.CheckedAt),
		DurationMS: res.Duration.Milliseconds(),
	}
	for _, de := range res.DeliveryErrors {
		resp.DeliveryErrors = append(resp.DeliveryErrors, de.Error())
	}

	status := http.StatusOK
	switch res.Status {
	case reconcile.StatusUpdated:
		resp.Message = fmt.Sprintf("%d announcements checked, %d new", res.Total, res.New)
	case reconcile.StatusDegraded:
		resp.Message = "source unavailable, serving previous snapshot"
		if scraper.IsStructureChange(res.Err) {
			resp.Message = "no announcements found on the source page, its layout may have changed"
		}
		resp.Error = errString(res.Err)
	default:
		status = http.StatusInternalServerError
		resp.Message = "cycle failed"
		resp.Error = errString(err)
	}
	writeJSON(w, status, resp)
}

// decodeBody decodes an optional JSON body; an empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("invalid JSON body: %w", err)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
