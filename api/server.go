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
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client IP from X-Forwarded-For/X-Real-IP
  3. Logger:     Request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/v1/colleges/*    College registry
  /api/v1/branches/*    Branch registry with commission rates
  /api/v1/config        Agency configuration
  /api/v1/plans/*       Payment plan lifecycle and payments
  /api/v1/templates     Plan template presets
  /api/v1/reports/*     Commission breakdown and forecast
  /api/v1/audit/*       Commission audit runs
  /api/v1/scenarios/*   Demo scenarios and reset (dev only)
  /*                    Static files (frontend)

STATIC FILE SERVING:
  In production, serves the built React app from web/dist/.
  Falls back to index.html for client-side routing.

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// College routes
		r.Route("/colleges", func(r chi.Router) {
			r.Get("/", h.ListColleges)
			r.Post("/", h.CreateCollege)
			r.Get("/{id}", h.GetCollege)
		})

		// Branch routes
		r.Route("/branches", func(r chi.Router) {
			r.Get("/", h.ListBranches)
			r.Post("/", h.CreateBranch)
			r.Get("/{id}", h.GetBranch)
		})

		// Agency configuration routes
		r.Route("/config", func(r chi.Router) {
			r.Get("/", h.GetConfig)
			r.Put("/", h.UpdateConfig)
		})

		// Plan routes
		r.Route("/plans", func(r chi.Router) {
			r.Get("/", h.ListPlans)
			r.Post("/", h.CreatePlan)
			r.Post("/from-template", h.CreatePlanFromTemplate)
			r.Post("/preview", h.PreviewSchedule)
			r.Get("/{id}", h.GetPlan)
			r.Delete("/{id}", h.DeletePlan)
			r.Put("/{id}/schedule", h.UpdateSchedule)
			r.Post("/{id}/schedule/reset", h.ResetSchedule)
			r.Post("/{id}/approve", h.ApprovePlan)
			r.Post("/{id}/cancel", h.CancelPlan)
			r.Post("/{id}/recalculate", h.RecalculatePlan)
			r.Post("/{id}/payments", h.RecordPayment)
			r.Get("/{id}/payments", h.ListPayments)
		})

		// Template routes
		r.Route("/templates", func(r chi.Router) {
			r.Get("/", h.ListTemplates)
		})

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/breakdown", h.GetBreakdown)
			r.Get("/forecast", h.GetForecast)
		})

		// Audit routes
		r.Route("/audit", func(r chi.Router) {
			r.Get("/runs", h.ListAuditRuns)
			r.Post("/run", h.TriggerAudit)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	// Serve static files (React app)
	// First try ./web/dist (development), then fall back to message
	staticDir := "./web/dist"
	if _, err := os.Stat(staticDir); os.IsNotExist(err) {
		// Try relative to executable
		exe, _ := os.Executable()
		staticDir = filepath.Join(filepath.Dir(exe), "web", "dist")
	}

	if _, err := os.Stat(staticDir); err == nil {
		fileServer := http.FileServer(http.Dir(staticDir))
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			fullPath := filepath.Join(staticDir, path)

			// Check if file exists
			if _, err := os.Stat(fullPath); os.IsNotExist(err) {
				// SPA routing: serve index.html
				http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
				return
			}
			fileServer.ServeHTTP(w, r)
		})
	} else {
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Commission Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Commission Engine API</h1>
<p>The frontend is not built yet. Run <code>cd web && npm install && npm run build</code></p>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/v1/plans">/api/v1/plans</a> - List payment plans</li>
<li><a href="/api/v1/reports/breakdown">/api/v1/reports/breakdown</a> - Commission breakdown</li>
<li><a href="/api/v1/scenarios">/api/v1/scenarios</a> - List scenarios</li>
</ul>
</body>
</html>`))
		})
	}

	return r
}
