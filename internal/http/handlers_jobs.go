package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"financebackend/internal/core"
)

func (s *Server) handleRunJobs(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeError(w, r, fmt.Errorf("job runner not configured: %w", core.ErrConfiguration))
		return
	}

	slog.InfoContext(r.Context(), "Manual job run triggered")
	reports := s.runner.RunAll(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

// handleSendEmail queues a one-off email. Delivery happens in the background
// so a slow mail server never stalls the request.
func (s *Server) handleSendEmail(w http.ResponseWriter, r *http.Request) {
	if s.notifier == nil {
		writeError(w, r, fmt.Errorf("notifier not configured: %w", core.ErrConfiguration))
		return
	}

	var req struct {
		To      string `json:"to"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.To == "" || req.Subject == "" {
		writeError(w, r, fmt.Errorf("%w: to and subject are required", core.ErrValidation))
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.notifier.Send(ctx, req.To, req.Subject, req.Body); err != nil {
			slog.ErrorContext(ctx, "Background email send failed", "error", err, "to", req.To)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"queued": true})
}
