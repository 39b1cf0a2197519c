package httpx

import (
	"log/slog"
	"net/http"

	"github.com/target/hpcjobs/internal/domain/model"
	"github.com/target/hpcjobs/internal/service"
)

// QueueHandlers exposes the scheduler partitions.
type QueueHandlers struct {
	Svc    *service.QueueService
	Logger *slog.Logger
}

// ListQueues returns the visible partitions.
func (h *QueueHandlers) ListQueues(w http.ResponseWriter, r *http.Request) {
	queues, err := h.Svc.List(r.Context())
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	if queues == nil {
		queues = []model.QueueInfo{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{"queues": queues})
}
