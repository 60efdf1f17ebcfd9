package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"financebackend/internal/core"
	applog "financebackend/internal/log"
)

const maxBodyBytes = 1 << 20 // 1 MiB

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", core.ErrValidation, err)
	}
	// Only one JSON document per request.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("%w: request body must contain a single JSON object", core.ErrValidation)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrUserExists), errors.Is(err, core.ErrAccountExists):
		status = http.StatusConflict
	case errors.Is(err, core.ErrValidation),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, core.ErrInvalidInterval),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrInvalidType):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrConfiguration):
		status = http.StatusServiceUnavailable
	}

	logger := applog.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", "error", err, "url", r.URL.Path)
	} else {
		logger.WarnContext(r.Context(), "Request rejected", "error", err, "status", status, "url", r.URL.Path)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
