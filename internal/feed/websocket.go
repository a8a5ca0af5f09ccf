package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

// WebSocketHandler streams hub events to admin clients as JSON text frames.
type WebSocketHandler struct {
	hub            *Hub
	allowedOrigins []string
	isDev          bool
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(hub *Hub, allowedOrigins []string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		allowedOrigins: allowedOrigins,
		isDev:          isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	slog.Info("Feed connection request", "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "feed ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	events, cancel := h.hub.Subscribe()
	defer cancel()

	// The feed is one-way; CloseRead handles control frames and cancels ctx
	// once the client goes away.
	ctx := ws.CloseRead(r.Context())

	if err := writeJSON(ctx, ws, map[string]string{"type": "ready"}); err != nil {
		slog.Debug("Failed to send ready", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			slog.Debug("Feed client disconnected")
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := writeJSON(ctx, ws, e); err != nil {
				slog.Warn("Feed write error", "error", err)
				return
			}
		}
	}
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.allowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigins)
	return false
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
