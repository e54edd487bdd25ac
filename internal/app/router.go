package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/stockledger/stockledger/internal/observability"
	"github.com/stockledger/stockledger/internal/platform/httpx"
	"github.com/stockledger/stockledger/jobs"
)

// RouterParams groups dependencies for building the operational HTTP router.
// The posting core has no wire protocol of its own; this surface only
// exposes health and observability endpoints.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
	Jobs    *jobs.Handler
	// Ready reports dependency health for /readyz. nil means always ready.
	Ready func(ctx context.Context) error
}

// NewRouter constructs the chi.Router with stockledger defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        params.Config != nil && params.Config.IsProduction(),
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(secureMiddleware.Handler)
	r.Use(httprate.LimitByIP(120, time.Minute))
	if params.Metrics != nil {
		r.Use(params.Metrics.Middleware)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if params.Ready != nil {
			if err := params.Ready(r.Context()); err != nil {
				if params.Logger != nil {
					params.Logger.Warn("readiness", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusServiceUnavailable, "not ready", err.Error())
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.Jobs != nil {
		r.Route("/jobs", params.Jobs.MountRoutes)
	}

	return r
}
