package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/campaign-insights/internal/metrics"
)

// SetupRoutes configures the router: health and scrape endpoints at the root,
// dataset ingestion and analysis under /api.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return metrics.Middleware(next)
	})

	// CORS - the dashboard frontend runs on a separate origin in development.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/datasets/{datasetID}", func(r chi.Router) {
			// Ingestion
			r.Post("/uploads/{kind}", h.UploadCSV)
			r.Get("/uploads", h.ListUploads)

			// Analyses
			r.Get("/series", h.GetSeries)
			r.Get("/audience", h.GetAudience)
			r.Get("/frequency", h.GetFrequency)
			r.Get("/gaps", h.GetGaps)
			r.Get("/flows/{flowID}", h.GetFlowScore)
			r.Get("/subjects", h.GetSubjects)
			r.Get("/cohorts", h.GetCohorts)
		})
	})

	return r
}
