// Package api exposes the HTTP surface: the websocket endpoint the whole
// command protocol runs over, plus health, stats and metrics.
package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/huskiesio/api/internal/socket"
	"github.com/huskiesio/api/internal/store"
)

// NewRouter creates and configures the HTTP router. Everything except the
// operational endpoints lives behind the websocket at /ws.
func NewRouter(logger zerolog.Logger, db store.DataStore, cache store.CacheStore, ws *socket.Server) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	ops := &opsHandler{db: db, cache: cache, logger: logger}

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", ops.Health)
	r.Get("/stats", ops.Stats)
	r.Handle("/ws", ws)

	return r
}
