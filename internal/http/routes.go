package httpx

import (
	"log/slog"
	"net/http"

	"github.com/target/hpcjobs/internal/ports"
	"github.com/target/hpcjobs/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Jobs          *service.JobService
	Queues        *service.QueueService
	Authenticator ports.Authenticator
	Logger        *slog.Logger // Logger for handler errors (optional)
}

// NewRouter creates and configures the API router. Everything under /api requires a caller identity.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	authed := RequireUser(services.Authenticator)

	registerJobRoutes(mux, &JobHandlers{Svc: services.Jobs, Logger: logger}, authed)
	registerQueueRoutes(mux, &QueueHandlers{Svc: services.Queues, Logger: logger}, authed)
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	return mux
}

type middleware func(http.Handler) http.Handler

func registerJobRoutes(mux *http.ServeMux, h *JobHandlers, mw middleware) {
	mux.Handle("POST /api/jobs", mw(http.HandlerFunc(h.CreateJob)))
	mux.Handle("GET /api/jobs", mw(http.HandlerFunc(h.ListJobs)))
	mux.Handle("GET /api/jobs/{id}", mw(http.HandlerFunc(h.GetJob)))
	mux.Handle("POST /api/jobs/{id}/cancel", mw(http.HandlerFunc(h.CancelJob)))
	mux.Handle("GET /api/jobs/{id}/events", mw(http.HandlerFunc(h.ListEvents)))
	mux.Handle("GET /api/jobs/{id}/usage", mw(http.HandlerFunc(h.GetUsage)))
	mux.Handle("GET /api/usage", mw(http.HandlerFunc(h.UsageSummary)))
}

func registerQueueRoutes(mux *http.ServeMux, h *QueueHandlers, mw middleware) {
	mux.Handle("GET /api/queues", mw(http.HandlerFunc(h.ListQueues)))
}
