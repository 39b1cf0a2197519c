package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/hpcjobs/internal/core"
	"github.com/target/hpcjobs/internal/domain/lifecycle"
	"github.com/target/hpcjobs/internal/domain/model"
	"github.com/target/hpcjobs/internal/observability/metrics"
	"github.com/target/hpcjobs/internal/observability/notify"
	"github.com/target/hpcjobs/internal/observability/statsd"
	"github.com/target/hpcjobs/internal/service/failurenotifier"
)

// LifecycleServiceOptions groups dependencies for LifecycleService.
type LifecycleServiceOptions struct {
	Repo            core.JobRepository       // Required: job repository
	Usage           *UsageAccountant         // Required: usage computation
	Logger          *slog.Logger             // Optional: structured logger
	Metrics         statsd.Sink              // Optional: metrics sink (StatsD-compatible)
	FailureNotifier *failurenotifier.Service // Optional: failure notification fan-out
}

// LifecycleService applies scheduler observations to stored jobs.
type LifecycleService struct {
	repo            core.JobRepository
	usage           *UsageAccountant
	logger          *slog.Logger
	metrics         statsd.Sink
	failureNotifier *failurenotifier.Service
}

// NewLifecycleService constructs a LifecycleService.
func NewLifecycleService(opts LifecycleServiceOptions) (*LifecycleService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Usage == nil {
		return nil, errors.New("UsageAccountant is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &LifecycleService{
		repo:            opts.Repo,
		usage:           opts.Usage,
		logger:          logger.With("component", "lifecycle_service"),
		metrics:         opts.Metrics,
		failureNotifier: opts.FailureNotifier,
	}, nil
}

// Reconcile moves job forward to match observed. It reports whether a transition was
// persisted. Observations that do not advance the job are a no-op with no writes.
func (s *LifecycleService) Reconcile(ctx context.Context, job *model.Job, observed *model.SchedulerStatus) (bool, error) {
	if job == nil || observed == nil {
		return false, errors.New("job and observed status are required")
	}

	next, ok := lifecycle.Transition(job.Status, observed.Status)
	if !ok {
		return false, nil
	}

	rec := s.buildTransition(job, next, observed)
	applied, err := s.repo.ApplyTransition(ctx, rec)
	if err != nil {
		s.emit(job, next, metrics.ResultError, err)
		return false, fmt.Errorf("apply transition %s->%s: %w", job.Status, next, err)
	}
	if !applied {
		s.logger.DebugContext(ctx, "transition skipped, job changed concurrently",
			"job_id", job.ID,
			"from", job.Status,
			"to", next,
		)
		s.emit(job, next, metrics.ResultNoop, nil)
		return false, nil
	}

	s.logger.InfoContext(ctx, "job transitioned",
		"job_id", job.ID,
		"external_id", externalID(job),
		"from", job.Status,
		"to", next,
	)
	s.emit(job, next, metrics.ResultSuccess, nil)
	if rec.Usage != nil {
		metrics.EmitUsage(s.metrics, job.Queue, rec.Usage.CPUHours, rec.Usage.GPUHours)
	}
	if next == model.JobStatusFailed {
		s.notifyFailed(ctx, job, rec)
	}
	return true, nil
}

func (s *LifecycleService) buildTransition(
	job *model.Job,
	next model.JobStatus,
	observed *model.SchedulerStatus,
) model.TransitionRecord {
	kind := lifecycle.EventKindFor(next)
	rec := model.TransitionRecord{
		JobID:     job.ID,
		From:      job.Status,
		To:        next,
		StartedAt: observed.StartTime,
		EndedAt:   observed.EndTime,
		ExitCode:  observed.ExitCode,
		Event: model.JobEvent{
			Kind:    kind,
			Message: lifecycle.EventMessage(kind, observed.Reason),
		},
		Usage: s.usage.ForTransition(job, next, observed),
	}
	if observed.Reason != "" {
		reason := observed.Reason
		rec.Reason = &reason
	}
	return rec
}

func (s *LifecycleService) notifyFailed(ctx context.Context, job *model.Job, rec model.TransitionRecord) {
	if !s.failureNotifier.Enabled() {
		return
	}
	failed := *job
	failed.Status = rec.To
	failed.ExitCode = rec.ExitCode
	if rec.Reason != nil {
		failed.StatusReason = rec.Reason
	}
	s.failureNotifier.NotifyJob(ctx, &failed, notify.StageRuntime, nil)
}

func (s *LifecycleService) emit(job *model.Job, next model.JobStatus, result string, err error) {
	metrics.EmitTransition(s.metrics, metrics.Transition{
		From:   string(job.Status),
		To:     string(next),
		Queue:  job.Queue,
		Result: result,
		Err:    err,
	})
}

func externalID(job *model.Job) string {
	if job.ExternalID == nil {
		return ""
	}
	return *job.ExternalID
}
