package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/hpcjobs/internal/core"
	"github.com/target/hpcjobs/internal/data"
	"github.com/target/hpcjobs/internal/domain/model"
	"github.com/target/hpcjobs/internal/domain/usage"
	apperrors "github.com/target/hpcjobs/internal/errors"
)

// UsageAccountantOptions groups dependencies for UsageAccountant.
type UsageAccountantOptions struct {
	Repo   core.UsageRepository // Required: usage repository
	Logger *slog.Logger         // Optional: structured logger
}

// UsageAccountant computes usage for jobs entering COMPLETED and answers usage queries.
type UsageAccountant struct {
	repo   core.UsageRepository
	logger *slog.Logger
}

// NewUsageAccountant constructs a UsageAccountant.
func NewUsageAccountant(opts UsageAccountantOptions) (*UsageAccountant, error) {
	if opts.Repo == nil {
		return nil, errors.New("UsageRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &UsageAccountant{
		repo:   opts.Repo,
		logger: logger.With("component", "usage_accountant"),
	}, nil
}

// ForTransition returns the usage to record when job moves to next, or nil.
// Usage is only produced on the edge into COMPLETED and only when both the start
// and end times are known. The start falls back to the job's stored start time.
func (a *UsageAccountant) ForTransition(job *model.Job, next model.JobStatus, observed *model.SchedulerStatus) *model.UsageRecord {
	if next != model.JobStatusCompleted || job.Status == model.JobStatusCompleted || observed == nil {
		return nil
	}

	start := observed.StartTime
	if start == nil {
		start = job.StartedAt
	}
	if start == nil || observed.EndTime == nil {
		a.logger.Warn("completed job has no runtime window, usage not recorded",
			"job_id", job.ID,
			"has_start", start != nil,
			"has_end", observed.EndTime != nil,
		)
		return nil
	}

	rec := usage.Compute(job, *start, *observed.EndTime)
	return &rec
}

// ForJob returns the usage recorded for jobID.
func (a *UsageAccountant) ForJob(ctx context.Context, jobID string) (*model.UsageRecord, error) {
	rec, err := a.repo.GetByJobID(ctx, jobID)
	if errors.Is(err, data.ErrUsageNotFound) {
		return nil, apperrors.NotFound("No usage recorded for this job")
	}
	if err != nil {
		return nil, fmt.Errorf("get usage: %w", apperrors.MapDBError(err))
	}
	return rec, nil
}

// Summary totals userID's usage recorded at or after since.
func (a *UsageAccountant) Summary(ctx context.Context, userID string, since time.Time) (*model.UsageSummary, error) {
	if userID == "" {
		return nil, apperrors.Validation("user id is required")
	}
	sum, err := a.repo.SummarizeByUser(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("summarize usage: %w", apperrors.MapDBError(err))
	}
	return sum, nil
}
