//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ashureev/cosmic-journey/internal/config"
	"github.com/ashureev/cosmic-journey/internal/domain"
	"github.com/ashureev/cosmic-journey/internal/feed"
	"github.com/ashureev/cosmic-journey/internal/store"
	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	router http.Handler
	repo   store.Repository
	hub    *feed.Hub
}

func newTestServer(t *testing.T, repo store.Repository, limitMax int) *testServer {
	t.Helper()
	hub := feed.NewHub(8, nil)
	base := NewHandler(repo, hub, &config.Config{RecentLimitMax: limitMax})

	r := chi.NewRouter()
	NewJourneyHandler(base).RegisterRoutes(r)
	users := NewUserHandler(base)
	users.cost = bcrypt.MinCost
	users.RegisterRoutes(r)
	admin, err := NewAdminHandler(base)
	if err != nil {
		t.Fatalf("NewAdminHandler() error = %v", err)
	}
	admin.RegisterRoutes(r)
	NewHealthHandler(repo).RegisterHealth(r)

	return &testServer{router: r, repo: repo, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decodeBody(t, w, &body)
	return body["error"]
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusNotFound, "journey not found")

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
	if msg := errorMessage(t, w); msg != "journey not found" {
		t.Errorf("Expected error message, got %q", msg)
	}
}

func TestCreateJourney_Defaults(t *testing.T) {
	s := newTestServer(t, store.NewMemory(), 100)

	w := s.do(t, http.MethodPost, "/api/journeys", `{"sessionId":"session_1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var raw map[string]interface{}
	decodeBody(t, w, &raw)
	if raw["currentScreen"] != "landing" {
		t.Errorf("Expected landing, got %v", raw["currentScreen"])
	}
	for _, field := range []string{"selectedPath", "completedAt", "constellationData"} {
		v, ok := raw[field]
		if !ok || v != nil {
			t.Errorf("Expected %s to be present and null, got %v (present=%v)", field, v, ok)
		}
	}
	if _, ok := raw["seq"]; ok {
		t.Error("Sequence bookkeeping must not be exposed")
	}
	if id, _ := raw["id"].(string); id == "" {
		t.Error("Expected an id")
	}
}

func TestCreateJourney_Validation(t *testing.T) {
	s := newTestServer(t, store.NewMemory(), 100)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing session", `{}`, "sessionId is required"},
		{"empty session", `{"sessionId":""}`, "sessionId is required"},
		{"bad path", `{"sessionId":"s","selectedPath":"curiosity"}`, "selectedPath must be one of"},
		{"bad screen", `{"sessionId":"s","currentScreen":"attic"}`, "currentScreen must be one of"},
		{"bad timestamp", `{"sessionId":"s","completedAt":"yesterday"}`, "completedAt must be an RFC 3339 timestamp"},
		{"no points", `{"sessionId":"s","constellationData":{"path":"wonder","label":"x","points":[]}}`, "constellationData.points"},
		{"bad connection", `{"sessionId":"s","constellationData":{"path":"wonder","label":"x","points":[{"x":1,"y":2}],"connections":[[0,3]]}}`, "out of range"},
		{"malformed", `{"sessionId":`, "malformed JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/journeys", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
			}
			if msg := errorMessage(t, w); !strings.Contains(msg, tt.want) {
				t.Errorf("Expected error containing %q, got %q", tt.want, msg)
			}
		})
	}
}

func TestGetJourney_NotFound(t *testing.T) {
	s := newTestServer(t, store.NewMemory(), 100)

	for _, path := range []string{"/api/journeys/missing", "/api/journeys/session/missing"} {
		w := s.do(t, http.MethodGet, path, "")
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, w.Code)
			continue
		}
		if msg := errorMessage(t, w); msg != "journey not found" {
			t.Errorf("%s: unexpected error %q", path, msg)
		}
	}
}

func TestJourneyLifecycle(t *testing.T) {
	s := newTestServer(t, store.NewMemory(), 100)

	w := s.do(t, http.MethodPost, "/api/journeys", `{"sessionId":"session_1","currentScreen":"journey"}`)
	var created domain.Journey
	decodeBody(t, w, &created)

	w = s.do(t, http.MethodGet, "/api/journeys/session/session_1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var bySession domain.Journey
	decodeBody(t, w, &bySession)
	if bySession.ID != created.ID {
		t.Errorf("Session lookup returned %s, want %s", bySession.ID, created.ID)
	}

	body := `{"currentScreen":"climactic","selectedPath":"wonder","completedAt":"2026-02-03T04:05:06.789Z",` +
		`"constellationData":{"path":"wonder","label":"The Reality Hacker","points":[{"x":1,"y":2},{"x":3,"y":4}],"connections":[[0,1]]},"seq":10}`
	w = s.do(t, http.MethodPut, "/api/journeys/"+created.ID, body)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// A screen-only update must not drop the constellation.
	w = s.do(t, http.MethodPut, "/api/journeys/"+created.ID, `{"currentScreen":"branch","selectedPath":null,"seq":11}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var updated domain.Journey
	decodeBody(t, w, &updated)
	if updated.CurrentScreen != domain.ScreenBranch {
		t.Errorf("Expected branch, got %s", updated.CurrentScreen)
	}
	if updated.ConstellationData == nil || updated.ConstellationData.Label != "The Reality Hacker" {
		t.Errorf("Constellation lost on merge: %+v", updated.ConstellationData)
	}
	if updated.SelectedPath == nil || *updated.SelectedPath != domain.PathWonder {
		t.Errorf("A null field must leave the stored value alone, got %v", updated.SelectedPath)
	}
	if updated.CompletedAt == nil || updated.CompletedAt.Year() != 2026 {
		t.Errorf("Unexpected completedAt %v", updated.CompletedAt)
	}

	w = s.do(t, http.MethodPut, "/api/journeys/"+created.ID, `{"currentScreen":"journey","seq":11}`)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for a stale seq, got %d", w.Code)
	}

	w = s.do(t, http.MethodPut, "/api/journeys/"+created.ID, `{"seq":0}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for seq 0, got %d", w.Code)
	}

	w = s.do(t, http.MethodPut, "/api/journeys/missing", `{"currentScreen":"journey"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown id, got %d", w.Code)
	}
}

func TestListJourneys(t *testing.T) {
	s := newTestServer(t, store.NewMemory(), 3)

	for i := 0; i < 5; i++ {
		w := s.do(t, http.MethodPost, "/api/journeys", `{"sessionId":"s`+string(rune('a'+i))+`"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("create %d: %d", i, w.Code)
		}
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", 5},
		{"?limit=2", 2},
		{"?limit=50", 3},
		{"?limit=0", 5},
		{"?limit=abc", 5},
	}
	for _, tt := range tests {
		w := s.do(t, http.MethodGet, "/api/journeys"+tt.query, "")
		if w.Code != http.StatusOK {
			t.Errorf("%q: expected 200, got %d", tt.query, w.Code)
			continue
		}
		var out []domain.Journey
		decodeBody(t, w, &out)
		if len(out) != tt.want {
			t.Errorf("%q: expected %d journeys, got %d", tt.query, tt.want, len(out))
		}
	}
}

func TestListJourneys_EmptyIsArray(t *testing.T) {
	s := newTestServer(t, store.NewMemory(), 100)
	w := s.do(t, http.MethodGet, "/api/journeys", "")
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("Expected [], got %q", w.Body.String())
	}
}

func TestCreateJourney_PublishesEvent(t *testing.T) {
	s := newTestServer(t, store.NewMemory(), 100)
	events, cancel := s.hub.Subscribe()
	defer cancel()

	s.do(t, http.MethodPost, "/api/journeys", `{"sessionId":"session_1"}`)

	e := <-events
	if e.Type != feed.EventCreated || e.Journey.SessionID != "session_1" {
		t.Errorf("Unexpected event %+v", e)
	}
}

func TestUsers(t *testing.T) {
	s := newTestServer(t, store.NewMemory(), 100)

	w := s.do(t, http.MethodPost, "/api/users", `{"username":"ada","password":"lovelace"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "lovelace") || strings.Contains(strings.ToLower(w.Body.String()), "password") {
		t.Errorf("Password leaked in response: %s", w.Body.String())
	}
	var u domain.User
	decodeBody(t, w, &u)

	stored, err := s.repo.GetUser(context.Background(), u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("lovelace")) != nil {
		t.Error("Stored hash does not match the password")
	}

	w = s.do(t, http.MethodPost, "/api/users", `{"username":"ada","password":"other"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for duplicate username, got %d", w.Code)
	}

	w = s.do(t, http.MethodPost, "/api/users", `{"username":"grace"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing password, got %d", w.Code)
	}

	w = s.do(t, http.MethodGet, "/api/users/"+u.ID, "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	w = s.do(t, http.MethodGet, "/api/users/missing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

// failingRepo fails every call that reaches the backing store.
type failingRepo struct {
	*store.MemoryStore
}

var errDown = errors.New("database is down")

func (failingRepo) Ping(context.Context) error { return errDown }

func (failingRepo) GetJourney(context.Context, string) (*domain.Journey, error) {
	return nil, errDown
}

func (failingRepo) RecentJourneys(context.Context, int) ([]*domain.Journey, error) {
	return nil, errDown
}

func TestTransientErrorsAre500(t *testing.T) {
	s := newTestServer(t, failingRepo{store.NewMemory()}, 100)

	for _, path := range []string{"/api/journeys/abc", "/api/journeys", "/admin"} {
		w := s.do(t, http.MethodGet, path, "")
		if w.Code != http.StatusInternalServerError {
			t.Errorf("%s: expected 500, got %d", path, w.Code)
		}
		if strings.Contains(w.Body.String(), "database is down") {
			t.Errorf("%s: internal error leaked: %s", path, w.Body.String())
		}
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		repo     store.Repository
		wantCode int
		wantDB   string
	}{
		{"healthy", store.NewMemory(), http.StatusOK, "ok"},
		{"degraded", failingRepo{store.NewMemory()}, http.StatusServiceUnavailable, "unreachable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.repo, 100)
			w := s.do(t, http.MethodGet, "/health", "")
			if w.Code != tt.wantCode {
				t.Fatalf("Expected %d, got %d", tt.wantCode, w.Code)
			}
			var body struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			decodeBody(t, w, &body)
			if body.Checks["database"] != tt.wantDB {
				t.Errorf("Expected database=%s, got %v", tt.wantDB, body.Checks)
			}
		})
	}
}

func TestAdminPage(t *testing.T) {
	s := newTestServer(t, store.NewMemory(), 100)
	s.do(t, http.MethodPost, "/api/journeys", `{"sessionId":"session_a"}`)
	s.do(t, http.MethodPost, "/api/journeys",
		`{"sessionId":"session_b","selectedPath":"wonder","currentScreen":"climactic","completedAt":"2026-02-03T04:05:06Z",`+
			`"constellationData":{"path":"wonder","label":"The Reality Hacker","points":[{"x":1,"y":2}]}}`)

	w := s.do(t, http.MethodGet, "/admin", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Expected HTML, got %q", ct)
	}

	out := w.Body.String()
	for _, want := range []string{
		"Total Journeys: 2",
		"Journey Started",
		"Path of Wonder",
		"Session: session_b",
		"Climactic",
		"In Progress",
		"The Reality Hacker",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Admin page missing %q", want)
		}
	}
}
