package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// buildRouter creates the HTTP router with all routes and middleware.
//
// Trailing slashes are optional: /api/datasensor/latest and
// /api/datasensor/latest/ reach the same handler.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.StripSlashes)
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleMethodNotAllowed)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get(s.wsPath(), s.handleWebSocket)

		r.Get("/devices", s.handleListDevices)
		r.Post("/device", s.handleControlDevice)

		r.Route("/datasensor", func(r chi.Router) {
			r.Get("/", s.handleListReadings)
			r.Post("/", s.handleCreateReading)
			r.Get("/latest", s.handleLatest)
			r.Get("/chartlatest", s.handleChart)
			r.Get("/sort", s.handleSortReadings)
			r.Post("/sort", s.handleSortReadings)
			r.Get("/search", s.handleSearchReadings)
			r.Post("/search", s.handleSearchReadings)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetReading)
				r.Put("/", handleAppendOnly)
				r.Patch("/", handleAppendOnly)
				r.Delete("/", handleAppendOnly)
			})
		})

		r.Route("/historyaction", func(r chi.Router) {
			r.Get("/", s.handleListHistory)
			r.Post("/", s.handleCreateHistory)
			r.Get("/filter", s.handleFilterHistory)
			r.Post("/filter", s.handleFilterHistory)
			r.Get("/search", s.handleSearchHistory)
			r.Post("/search", s.handleSearchHistory)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetHistory)
				r.Put("/", handleAppendOnly)
				r.Patch("/", handleAppendOnly)
				r.Delete("/", handleAppendOnly)
			})
		})
	})

	return r
}

func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}
