package api

import (
	"bytes"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/cosmic-journey/internal/domain"
	"github.com/ashureev/cosmic-journey/web"
	"github.com/go-chi/chi/v5"
)

// AdminHandler renders the journey listing page.
type AdminHandler struct {
	*Handler
	tmpl *template.Template
}

// NewAdminHandler parses the admin template.
func NewAdminHandler(base *Handler) (*AdminHandler, error) {
	tmpl, err := web.AdminTemplate()
	if err != nil {
		return nil, err
	}
	return &AdminHandler{Handler: base, tmpl: tmpl}, nil
}

// RegisterRoutes registers the admin page.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Get("/admin", h.Page)
}

type adminRow struct {
	Title         string
	SessionID     string
	Screen        domain.Screen
	ScreenLabel   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Completed     bool
	CompletedAt   time.Time
	Constellation string
}

type adminPage struct {
	Total    int
	Journeys []adminRow
}

func newAdminRow(j *domain.Journey) adminRow {
	row := adminRow{
		Title:       j.Title(),
		SessionID:   j.SessionID,
		Screen:      j.CurrentScreen,
		ScreenLabel: j.CurrentScreen.Label(),
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
	if j.CompletedAt != nil {
		row.Completed = true
		row.CompletedAt = *j.CompletedAt
	}
	if j.ConstellationData != nil {
		if data, err := json.MarshalIndent(j.ConstellationData, "", "  "); err == nil {
			row.Constellation = string(data)
		}
	}
	return row
}

// Page renders the most recent journeys, newest first.
func (h *AdminHandler) Page(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if h.cfg != nil {
		limit = h.cfg.RecentLimitMax
	}
	journeys, err := h.repo.RecentJourneys(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to load journeys for admin", "error", err)
		http.Error(w, "failed to load journeys", http.StatusInternalServerError)
		return
	}

	page := adminPage{Total: len(journeys), Journeys: make([]adminRow, 0, len(journeys))}
	for _, j := range journeys {
		page.Journeys = append(page.Journeys, newAdminRow(j))
	}

	var buf bytes.Buffer
	if err := h.tmpl.Execute(&buf, page); err != nil {
		slog.Error("Failed to render admin page", "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
