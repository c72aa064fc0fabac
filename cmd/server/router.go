package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hoursync/hoursync/internal/api"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	syncHandler := api.NewSyncHandler(app.dispatcher, app.logger)
	wsHandler := api.NewWSHandler(app.registry, app.dispatcher, app.logger)

	r.Route("/api", func(r chi.Router) {
		// One-shot lookups
		r.Post("/worklogs", syncHandler.HandleSync)

		// Persistent connections
		r.Get("/ws", wsHandler.HandleWS)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte("OK"))
		if err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
