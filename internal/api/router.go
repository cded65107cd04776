package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nerrad567/video-route/internal/panel"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.traceMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(middleware.RequestSize(maxRequestBodySize))

	// Selection page and its icons
	page := panel.Handler(s.cfg.StaticDir)
	r.Handle("/", page)
	r.Handle("/static/*", page)

	// Legacy selection endpoint used by existing pages and button boxes
	r.With(s.authMiddleware).Post("/system", s.handleLegacySystem)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/sources", s.handleSources)
			r.Post("/dispatch", s.handleDispatch)

			r.Route("/dispatches", func(r chi.Router) {
				r.Get("/", s.handleListDispatches)
				r.Get("/{id}", s.handleGetDispatch)
			})

			r.Get("/serial-ports", s.handleSerialPorts)

			// Browsers cannot set headers on the upgrade request, so the
			// middleware also accepts ?token= here.
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}
