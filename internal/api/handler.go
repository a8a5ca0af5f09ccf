// Package api provides HTTP handlers for the journey API.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ashureev/cosmic-journey/internal/config"
	"github.com/ashureev/cosmic-journey/internal/domain"
	"github.com/ashureev/cosmic-journey/internal/feed"
	"github.com/ashureev/cosmic-journey/internal/store"
)

const maxBodyBytes = 1 << 20

// Handler provides common handler utilities.
type Handler struct {
	repo store.Repository
	hub  *feed.Hub
	cfg  *config.Config
}

// NewHandler creates a new Handler with common dependencies. hub may be nil.
func NewHandler(repo store.Repository, hub *feed.Hub, cfg *config.Config) *Handler {
	return &Handler{
		repo: repo,
		hub:  hub,
		cfg:  cfg,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decode reads a JSON body into v. An empty body decodes as {}.
func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// storeError maps a repository error onto a status code and writes it.
// Unexpected errors are logged and hidden behind a generic message.
func storeError(w http.ResponseWriter, err error, notFound string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		Error(w, http.StatusNotFound, notFound)
	case errors.Is(err, domain.ErrStaleUpdate):
		Error(w, http.StatusConflict, "stale update")
	case errors.Is(err, domain.ErrConflict):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrValidation):
		Error(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("Store operation failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
	}
}
