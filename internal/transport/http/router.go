// Package httptransport assembles the public HTTP surface: the shared
// middleware chain, health and metrics endpoints, and each bounded context's
// routes split into a public group and an authenticated group.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pixellocker/internal/platform/health"
	"pixellocker/pkg/platform/middleware/auth"
	"pixellocker/pkg/platform/middleware/metadata"
	"pixellocker/pkg/platform/middleware/request"
	"pixellocker/pkg/platform/middleware/requesttime"
	"pixellocker/pkg/validation"
)

const defaultRequestTimeout = 30 * time.Second

// Module is a bounded context's HTTP handler. RegisterPublic mounts routes
// that need no caller identity.
type Module interface {
	RegisterPublic(r chi.Router)
}

// ProtectedModule additionally mounts routes behind bearer authentication.
type ProtectedModule interface {
	Module
	Register(r chi.Router)
}

type Config struct {
	Logger         *slog.Logger
	Validator      auth.JWTValidator
	Health         *health.Handler
	Metadata       *metadata.Config
	RequestMetrics *request.Metrics
	RequestTimeout time.Duration
}

// NewRouter wires every module behind the shared middleware chain.
func NewRouter(cfg Config, modules ...Module) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.NewMiddleware(cfg.Metadata).Handler)
	r.Use(request.Logger(logger))
	r.Use(request.LatencyMiddleware(cfg.RequestMetrics))

	if cfg.Health != nil {
		cfg.Health.Register(r)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(timeout))
		r.Use(request.BodyLimit(validation.MaxBodySize))
		r.Use(request.ContentTypeJSON)

		for _, m := range modules {
			m.RegisterPublic(r)
		}

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(cfg.Validator, logger))
			for _, m := range modules {
				if p, ok := m.(ProtectedModule); ok {
					p.Register(r)
				}
			}
		})
	})

	return r
}
