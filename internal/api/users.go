package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/cosmic-journey/internal/domain"
	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
)

// UserHandler handles the ancillary user endpoints.
type UserHandler struct {
	*Handler
	cost int
}

// NewUserHandler creates a new user handler.
func NewUserHandler(base *Handler) *UserHandler {
	return &UserHandler{Handler: base, cost: bcrypt.DefaultCost}
}

// RegisterRoutes registers user routes.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/users", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
	})
}

type createUserRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=72"`
}

// Create registers a user. The password is stored as a bcrypt hash.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid user data: malformed JSON")
		return
	}
	if err := validateStruct(req); err != nil {
		Error(w, http.StatusBadRequest, "invalid user data: "+err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.cost)
	if err != nil {
		slog.Error("Failed to hash password", "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	u, err := h.repo.CreateUser(r.Context(), domain.NewUser{Username: req.Username, PasswordHash: string(hash)})
	if errors.Is(err, domain.ErrConflict) {
		Error(w, http.StatusBadRequest, "invalid user data: username already exists")
		return
	}
	if err != nil {
		storeError(w, err, "user not found")
		return
	}

	slog.Info("User created", "user_id", u.ID, "username", u.Username)
	JSON(w, http.StatusOK, u)
}

// Get returns a user by id.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.repo.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		storeError(w, err, "user not found")
		return
	}
	JSON(w, http.StatusOK, u)
}
