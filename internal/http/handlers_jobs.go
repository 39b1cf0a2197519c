// Package httpx provides the JSON API for submitting and tracking batch jobs.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/target/hpcjobs/internal/domain/model"
	"github.com/target/hpcjobs/internal/service"
)

const (
	maxJobListLimit   = 500
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

// JobHandlers provides HTTP handlers for job-related operations.
type JobHandlers struct {
	Svc    *service.JobService
	Logger *slog.Logger
}

// CreateJob submits a new job for the caller. A job that was stored but rejected
// by the scheduler is reported as 502 with its id.
func (h *JobHandlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req model.CreateJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.Svc.Submit(r.Context(), UserIDFromContext(r.Context()), req)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}

	WriteJSON(w, http.StatusCreated, job)
}

type jobListResponse struct {
	Jobs   []*model.Job `json:"jobs"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// ListJobs returns the caller's jobs newest first.
func (h *JobHandlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, model.DefaultJobListLimit, maxJobListLimit)
	opts := model.JobListOptions{
		UserID: UserIDFromContext(r.Context()),
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Limit:  limit,
		Offset: offset,
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		var status model.JobStatus
		if err := status.UnmarshalText([]byte(raw)); err != nil {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_status", Err: err, Field: "status"})
			return
		}
		opts.Status = &status
	}

	jobs, err := h.Svc.List(r.Context(), opts)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	if jobs == nil {
		jobs = []*model.Job{}
	}

	WriteJSON(w, http.StatusOK, jobListResponse{Jobs: jobs, Limit: limit, Offset: offset})
}

// GetJob returns the job with its most recent events.
func (h *JobHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDFromPath(w, r)
	if !ok {
		return
	}

	detail, err := h.Svc.Detail(r.Context(), UserIDFromContext(r.Context()), id)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, detail)
}

// CancelJob cancels a queued or running job.
func (h *JobHandlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDFromPath(w, r)
	if !ok {
		return
	}

	job, err := h.Svc.Cancel(r.Context(), UserIDFromContext(r.Context()), id)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// ListEvents returns the job's lifecycle events newest first.
func (h *JobHandlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDFromPath(w, r)
	if !ok {
		return
	}
	limit, _ := ParseLimitOffset(r, defaultEventLimit, maxEventLimit)

	events, err := h.Svc.Events(r.Context(), UserIDFromContext(r.Context()), id, limit)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	if events == nil {
		events = []*model.JobEvent{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

// GetUsage returns the usage recorded when the job completed.
func (h *JobHandlers) GetUsage(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDFromPath(w, r)
	if !ok {
		return
	}

	rec, err := h.Svc.Usage(r.Context(), UserIDFromContext(r.Context()), id)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, rec)
}

// UsageSummary totals the caller's usage since the optional "since" timestamp.
func (h *JobHandlers) UsageSummary(w http.ResponseWriter, r *http.Request) {
	since, err := parseSince(r)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_since", Err: err, Field: "since"})
		return
	}

	sum, err := h.Svc.Summary(r.Context(), UserIDFromContext(r.Context()), since)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, sum)
}

func jobIDFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")},
		)
		return "", false
	}
	return id, true
}
