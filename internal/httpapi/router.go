// Package httpapi exposes the submission pipeline and form publishing over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"formflow/internal/common/logger"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type RouterOptions struct {
	JWTSecret    string
	Logger       logger.Logger
	Submissions  *SubmissionHandler
	Forms        *FormHandler
	HealthChecks map[string]HealthCheck
}

func NewRouter(opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogging(opts.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthz(opts.HealthChecks))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/submissions/{formId}", opts.Submissions.Create)
		r.Get("/forms/{formId}", opts.Forms.Get)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(Authenticate(opts.JWTSecret))

			r.Get("/submissions/{formId}", opts.Submissions.List)
			r.Get("/forms", opts.Forms.List)
			r.Post("/forms", opts.Forms.Create)
		})
	})

	return r
}

func healthz(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		failing := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failing[name] = err.Error()
			}
		}
		if len(failing) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unhealthy", "failing": failing})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}
