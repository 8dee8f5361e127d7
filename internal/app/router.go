package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/payflow-app/payflow/internal/auth"
	"github.com/payflow-app/payflow/internal/notify"
	"github.com/payflow-app/payflow/internal/observability"
	"github.com/payflow-app/payflow/internal/requests"
	"github.com/payflow-app/payflow/internal/schedule"
	"github.com/payflow-app/payflow/internal/users"
	"github.com/payflow-app/payflow/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	AuthHandler         *auth.Handler
	UsersHandler        *users.Handler
	RequestsHandler     *requests.Handler
	ScheduleHandler     *schedule.Handler
	NotificationHandler *notify.Handler
	JobHandler          *jobs.Handler
	Metrics             *observability.Metrics
}

// NewRouter constructs the chi.Router with PayFlow defaults.
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

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.RequestsHandler != nil {
		r.Route("/requests", params.RequestsHandler.MountRoutes)
	}
	if params.ScheduleHandler != nil {
		r.Route("/schedules", params.ScheduleHandler.MountRoutes)
	}
	if params.NotificationHandler != nil {
		r.Route("/notifications", params.NotificationHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
