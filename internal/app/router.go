package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aegle-his/aegle/internal/masterdata"
	"github.com/aegle-his/aegle/internal/medicals"
	"github.com/aegle-his/aegle/internal/observability"
	"github.com/aegle-his/aegle/internal/stock"
	"github.com/aegle-his/aegle/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	StockHandler      *stock.Handler
	MedicalsHandler   *medicals.Handler
	MasterdataHandler *masterdata.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
	Pool              *pgxpool.Pool
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.Pool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := params.Pool.Ping(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		if params.StockHandler != nil {
			params.StockHandler.MountRoutes(api)
		}
		if params.MedicalsHandler != nil {
			params.MedicalsHandler.MountRoutes(api)
		}
		if params.MasterdataHandler != nil {
			params.MasterdataHandler.MountRoutes(api)
		}
		if params.JobHandler != nil {
			api.Route("/jobs", func(jr chi.Router) {
				params.JobHandler.MountRoutes(jr)
			})
		}
	})

	return r
}
