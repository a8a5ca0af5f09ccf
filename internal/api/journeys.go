package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ashureev/cosmic-journey/internal/domain"
	"github.com/go-chi/chi/v5"
)

// JourneyHandler handles journey endpoints.
type JourneyHandler struct {
	*Handler
}

// NewJourneyHandler creates a new journey handler.
func NewJourneyHandler(base *Handler) *JourneyHandler {
	return &JourneyHandler{Handler: base}
}

// RegisterRoutes registers journey routes.
func (h *JourneyHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/journeys", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/session/{sessionId}", h.GetBySession)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
	})
}

// createJourneyRequest is the body of POST /api/journeys. JSON null is
// treated the same as an absent field.
type createJourneyRequest struct {
	SessionID         string                `json:"sessionId" validate:"required,max=256"`
	SelectedPath      *domain.Path          `json:"selectedPath" validate:"omitempty,oneof=wonder reflection"`
	CurrentScreen     *domain.Screen        `json:"currentScreen" validate:"omitempty,oneof=landing journey branch climactic"`
	CompletedAt       *string               `json:"completedAt" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	ConstellationData *domain.Constellation `json:"constellationData" validate:"omitempty"`
}

// updateJourneyRequest is the body of PUT /api/journeys/{id}. Every field
// is optional; seq, when present, must be positive.
type updateJourneyRequest struct {
	SessionID         *string               `json:"sessionId" validate:"omitempty,min=1,max=256"`
	SelectedPath      *domain.Path          `json:"selectedPath" validate:"omitempty,oneof=wonder reflection"`
	CurrentScreen     *domain.Screen        `json:"currentScreen" validate:"omitempty,oneof=landing journey branch climactic"`
	CompletedAt       *string               `json:"completedAt" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	ConstellationData *domain.Constellation `json:"constellationData" validate:"omitempty"`
	Seq               *int64                `json:"seq" validate:"omitempty,gt=0"`
}

func parseCompletedAt(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil, fmt.Errorf("completedAt must be an RFC 3339 timestamp")
	}
	t = t.UTC()
	return &t, nil
}

func (req createJourneyRequest) toDomain() (domain.NewJourney, error) {
	if err := validateStruct(req); err != nil {
		return domain.NewJourney{}, err
	}
	if err := req.ConstellationData.Validate(); err != nil {
		return domain.NewJourney{}, err
	}
	completedAt, err := parseCompletedAt(req.CompletedAt)
	if err != nil {
		return domain.NewJourney{}, err
	}
	in := domain.NewJourney{
		SessionID:         req.SessionID,
		SelectedPath:      req.SelectedPath,
		CompletedAt:       completedAt,
		ConstellationData: req.ConstellationData,
	}
	if req.CurrentScreen != nil {
		in.CurrentScreen = *req.CurrentScreen
	}
	return in, nil
}

func (req updateJourneyRequest) toDomain() (domain.JourneyUpdate, error) {
	if err := validateStruct(req); err != nil {
		return domain.JourneyUpdate{}, err
	}
	if err := req.ConstellationData.Validate(); err != nil {
		return domain.JourneyUpdate{}, err
	}
	completedAt, err := parseCompletedAt(req.CompletedAt)
	if err != nil {
		return domain.JourneyUpdate{}, err
	}
	upd := domain.JourneyUpdate{
		SessionID:         req.SessionID,
		SelectedPath:      req.SelectedPath,
		CurrentScreen:     req.CurrentScreen,
		CompletedAt:       completedAt,
		ConstellationData: req.ConstellationData,
	}
	if req.Seq != nil {
		upd.Seq = *req.Seq
	}
	return upd, nil
}

// Create stores a new journey.
func (h *JourneyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createJourneyRequest
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid journey data: malformed JSON")
		return
	}
	in, err := req.toDomain()
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid journey data: "+err.Error())
		return
	}

	j, err := h.repo.CreateJourney(r.Context(), in)
	if err != nil {
		storeError(w, err, "journey not found")
		return
	}

	slog.Info("Journey created", "journey_id", j.ID, "session_id", j.SessionID, "screen", j.CurrentScreen)
	h.hub.Journey(true, j)
	JSON(w, http.StatusOK, j)
}

// Get returns a journey by id.
func (h *JourneyHandler) Get(w http.ResponseWriter, r *http.Request) {
	j, err := h.repo.GetJourney(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		storeError(w, err, "journey not found")
		return
	}
	JSON(w, http.StatusOK, j)
}

// GetBySession returns the first journey recorded for a session.
func (h *JourneyHandler) GetBySession(w http.ResponseWriter, r *http.Request) {
	j, err := h.repo.GetJourneyBySessionID(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		storeError(w, err, "journey not found")
		return
	}
	JSON(w, http.StatusOK, j)
}

// Update merges the supplied fields into a journey.
func (h *JourneyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateJourneyRequest
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid journey data: malformed JSON")
		return
	}
	upd, err := req.toDomain()
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid journey data: "+err.Error())
		return
	}

	j, err := h.repo.UpdateJourney(r.Context(), id, upd)
	if err != nil {
		storeError(w, err, "journey not found")
		return
	}

	slog.Info("Journey updated", "journey_id", j.ID, "screen", j.CurrentScreen, "seq", upd.Seq)
	h.hub.Journey(false, j)
	JSON(w, http.StatusOK, j)
}

// List returns the most recent journeys, newest first.
func (h *JourneyHandler) List(w http.ResponseWriter, r *http.Request) {
	journeys, err := h.repo.RecentJourneys(r.Context(), h.limit(r))
	if err != nil {
		storeError(w, err, "journeys not found")
		return
	}
	JSON(w, http.StatusOK, journeys)
}

// limit reads ?limit=, capped by the configured maximum. Missing,
// malformed or non-positive values yield 0 so the store default applies.
func (h *JourneyHandler) limit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return 0
	}
	if h.cfg != nil && n > h.cfg.RecentLimitMax {
		n = h.cfg.RecentLimitMax
	}
	return n
}
