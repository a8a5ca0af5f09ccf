package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/cosmic-journey/internal/domain"
	"github.com/coder/websocket"
)

func dialFeed(t *testing.T, srv *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := &websocket.DialOptions{}
	if origin != "" {
		opts.HTTPHeader = http.Header{"Origin": []string{origin}}
	}
	return websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), opts)
}

func readJSON(t *testing.T, ws *websocket.Conn, v interface{}) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := ws.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("Failed to decode %q: %v", data, err)
	}
}

func TestWebSocketHandler_StreamsEvents(t *testing.T) {
	hub := NewHub(4, nil)
	srv := httptest.NewServer(NewWebSocketHandler(hub, []string{"*"}, false))
	defer srv.Close()

	ws, _, err := dialFeed(t, srv, "")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer ws.Close(websocket.StatusNormalClosure, "")

	var ready map[string]string
	readJSON(t, ws, &ready)
	if ready["type"] != "ready" {
		t.Fatalf("Expected ready message, got %v", ready)
	}

	hub.Journey(false, &domain.Journey{ID: "j1", SessionID: "s1", CurrentScreen: domain.ScreenBranch})

	var e Event
	readJSON(t, ws, &e)
	if e.Type != EventUpdated {
		t.Errorf("Expected %s, got %s", EventUpdated, e.Type)
	}
	if e.Journey == nil || e.Journey.ID != "j1" || e.Journey.CurrentScreen != domain.ScreenBranch {
		t.Errorf("Unexpected journey %+v", e.Journey)
	}
}

func TestWebSocketHandler_RejectsOrigin(t *testing.T) {
	hub := NewHub(4, nil)
	srv := httptest.NewServer(NewWebSocketHandler(hub, []string{"https://admin.example"}, false))
	defer srv.Close()

	_, resp, err := dialFeed(t, srv, "https://evil.example")
	if err == nil {
		t.Fatal("Expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403, got %v", resp)
	}
	if hub.Count() != 0 {
		t.Errorf("Rejected client must not subscribe, got %d", hub.Count())
	}
}

func TestCheckOrigin(t *testing.T) {
	h := NewWebSocketHandler(nil, []string{"https://admin.example"}, false)
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://admin.example", true},
		{"https://evil.example", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws/journeys", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := h.checkOrigin(r); got != tt.want {
			t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}

	dev := NewWebSocketHandler(nil, nil, true)
	r := httptest.NewRequest(http.MethodGet, "/ws/journeys", nil)
	r.Header.Set("Origin", "https://anything.example")
	if !dev.checkOrigin(r) {
		t.Error("Development mode should accept any origin")
	}
}
