package main

import (
	"net/http"

	"github.com/ashureev/cosmic-journey/internal/api"
	"github.com/ashureev/cosmic-journey/internal/config"
	"github.com/ashureev/cosmic-journey/internal/feed"
	"github.com/ashureev/cosmic-journey/internal/metrics"
	"github.com/ashureev/cosmic-journey/internal/middleware"
	"github.com/ashureev/cosmic-journey/internal/store"
	"github.com/ashureev/cosmic-journey/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func newRouter(cfg *config.Config, repo store.Repository, hub *feed.Hub, m *metrics.Collector) (http.Handler, error) {
	baseHandler := api.NewHandler(repo, hub, cfg)
	healthHandler := api.NewHealthHandler(repo)
	adminHandler, err := api.NewAdminHandler(baseHandler)
	if err != nil {
		return nil, err
	}
	wsHandler := feed.NewWebSocketHandler(hub, cfg.CORSOrigins, cfg.IsDevelopment())

	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(m.Middleware)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", m.Handler())

	api.NewJourneyHandler(baseHandler).RegisterRoutes(r)
	api.NewUserHandler(baseHandler).RegisterRoutes(r)
	adminHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/journeys", wsHandler.ServeHTTP)

	// Serve embedded assets (catch-all).
	r.Handle("/*", web.SPAHandler())

	return r, nil
}
