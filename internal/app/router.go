package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/codigix/nobal-casting-sub005/internal/inventory"
	"github.com/codigix/nobal-casting-sub005/internal/jobcard"
	"github.com/codigix/nobal-casting-sub005/internal/masterdata"
	"github.com/codigix/nobal-casting-sub005/internal/observability"
	"github.com/codigix/nobal-casting-sub005/internal/workorder"
	"github.com/codigix/nobal-casting-sub005/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	StockHandler      *inventory.Handler
	WorkOrderHandler  *workorder.Handler
	JobCardHandler    *jobcard.Handler
	MasterDataHandler *masterdata.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router for the JSON API.
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
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.StockHandler != nil {
		r.Route("/stock", params.StockHandler.MountRoutes)
	}
	if params.WorkOrderHandler != nil {
		r.Route("/work-orders", params.WorkOrderHandler.MountRoutes)
	}
	if params.JobCardHandler != nil {
		r.Route("/job-cards", params.JobCardHandler.MountRoutes)
	}
	if params.MasterDataHandler != nil {
		r.Route("/masterdata", params.MasterDataHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
