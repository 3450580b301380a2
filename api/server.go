/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/datasets/*   Dataset upload, inspection, runs, calibration
  /api/runs/*       Run records and comparison grids
  /api/scenarios/*  Demo datasets
  /api/reset        Database reset (dev only)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Dataset routes
		r.Route("/datasets", func(r chi.Router) {
			r.Get("/", h.ListDatasets)
			r.Post("/", h.CreateDataset)
			r.Get("/{id}", h.GetDataset)
			r.Delete("/{id}", h.DeleteDataset)
			r.Get("/{id}/holdings", h.GetHoldings)
			r.Get("/{id}/runs", h.ListRuns)
			r.Post("/{id}/runs", h.RunScenario)
			r.Post("/{id}/calibrate/convergence", h.CalibrateConvergence)
			r.Post("/{id}/calibrate/uniform-value", h.CalibrateUniformValue)
		})

		// Run routes
		r.Route("/runs", func(r chi.Router) {
			r.Get("/{id}", h.GetRun)
			r.Get("/{id}/comparison", h.GetComparison)
			r.Delete("/{id}", h.DeleteRun)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})

		r.Post("/reset", h.ResetDatabase)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Subsidy Simulation Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Subsidy Simulation Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/datasets">/api/datasets</a> - List datasets</li>
<li><a href="/api/scenarios">/api/scenarios</a> - List demo datasets</li>
</ul>
</body>
</html>`))
	})

	return r
}
