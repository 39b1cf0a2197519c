package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/hpcjobs/internal/adapters/slurm"
	"github.com/target/hpcjobs/internal/core"
	"github.com/target/hpcjobs/internal/data"
	"github.com/target/hpcjobs/internal/domain/lifecycle"
	"github.com/target/hpcjobs/internal/domain/model"
	apperrors "github.com/target/hpcjobs/internal/errors"
	"github.com/target/hpcjobs/internal/observability/metrics"
	"github.com/target/hpcjobs/internal/observability/notify"
	"github.com/target/hpcjobs/internal/observability/statsd"
	"github.com/target/hpcjobs/internal/service/failurenotifier"
)

// RecentEventLimit is the number of events returned with a job detail.
const RecentEventLimit = 20

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo            core.JobRepository       // Required: job repository
	Events          core.JobEventRepository  // Required: job event repository
	Gateway         core.SchedulerGateway    // Required: batch scheduler gateway
	Workspace       core.Workspace           // Required: job directory preparation
	Usage           *UsageAccountant         // Required: usage queries
	Logger          *slog.Logger             // Optional: structured logger
	Metrics         statsd.Sink              // Optional: metrics sink (StatsD-compatible)
	FailureNotifier *failurenotifier.Service // Optional: failure notification fan-out
	ScriptName      string                   // Optional: defaults to slurm.ScriptFileName
	Render          func(*model.Job) string  // Optional: defaults to slurm.RenderScript
	Now             func() time.Time         // Optional: clock for cancellation end times
}

// JobService owns the user-facing job operations: submit, inspect and cancel.
type JobService struct {
	repo            core.JobRepository
	events          core.JobEventRepository
	gateway         core.SchedulerGateway
	workspace       core.Workspace
	usage           *UsageAccountant
	logger          *slog.Logger
	metrics         statsd.Sink
	failureNotifier *failurenotifier.Service
	scriptName      string
	render          func(*model.Job) string
	now             func() time.Time
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	switch {
	case opts.Repo == nil:
		return nil, errors.New("JobRepository is required")
	case opts.Events == nil:
		return nil, errors.New("JobEventRepository is required")
	case opts.Gateway == nil:
		return nil, errors.New("SchedulerGateway is required")
	case opts.Workspace == nil:
		return nil, errors.New("Workspace is required")
	case opts.Usage == nil:
		return nil, errors.New("UsageAccountant is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	scriptName := opts.ScriptName
	if scriptName == "" {
		scriptName = slurm.ScriptFileName
	}
	render := opts.Render
	if render == nil {
		render = slurm.RenderScript
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &JobService{
		repo:            opts.Repo,
		events:          opts.Events,
		gateway:         opts.Gateway,
		workspace:       opts.Workspace,
		usage:           opts.Usage,
		logger:          logger.With("component", "job_service"),
		metrics:         opts.Metrics,
		failureNotifier: opts.FailureNotifier,
		scriptName:      scriptName,
		render:          render,
		now:             now,
	}, nil
}

// SubmissionError reports that a stored job could not be handed to the scheduler.
// The job has been marked FAILED; Err is the original cause.
type SubmissionError struct {
	JobID string
	Err   error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit job %s: %v", e.JobID, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Submit stores the request for userID, prepares its workspace, renders and writes the
// batch script and submits it. On success the job is QUEUED with its scheduler handle.
// Any failure after the job is stored marks it FAILED and returns a *SubmissionError.
func (s *JobService) Submit(ctx context.Context, userID string, req model.CreateJobRequest) (*model.Job, error) {
	if userID == "" {
		return nil, apperrors.Validation("user id is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	job, err := s.repo.Create(ctx, &model.CreateJobRecord{UserID: userID, Request: req})
	if err != nil {
		return nil, fmt.Errorf("create job: %w", apperrors.MapDBError(err))
	}

	start := time.Now()
	externalID, err := s.dispatch(ctx, job)
	if err != nil {
		s.emitCommand(metrics.CommandSubmit, job.Queue, start, err)
		return nil, s.failSubmission(ctx, job, err)
	}

	// The scheduler owns the job now; its handle must be stored even if the request is gone.
	queued, err := s.repo.MarkSubmitted(context.WithoutCancel(ctx), job.ID, externalID)
	if err != nil {
		s.emitCommand(metrics.CommandSubmit, job.Queue, start, err)
		s.logger.ErrorContext(ctx, "failed to record scheduler handle",
			"job_id", job.ID,
			"external_id", externalID,
			"error", err,
		)
		return nil, fmt.Errorf("record submission of %s: %w", externalID, apperrors.MapDBError(err))
	}
	s.emitCommand(metrics.CommandSubmit, job.Queue, start, nil)

	s.logger.InfoContext(ctx, "job submitted",
		"job_id", queued.ID,
		"external_id", externalID,
		"user_id", userID,
		"queue", queued.Queue,
	)
	return queued, nil
}

// dispatch prepares the workspace, writes the script and submits it.
func (s *JobService) dispatch(ctx context.Context, job *model.Job) (string, error) {
	dir, err := s.workspace.Prepare(ctx, job.UserID, job.ID)
	if err != nil {
		return "", err
	}
	if err := s.repo.SetWorkingDirectory(ctx, job.ID, dir); err != nil {
		return "", fmt.Errorf("store working directory: %w", err)
	}
	job.WorkingDirectory = dir

	scriptPath, err := s.workspace.WriteScript(ctx, dir, s.scriptName, s.render(job))
	if err != nil {
		return "", err
	}
	return s.gateway.Submit(ctx, scriptPath)
}

func (s *JobService) failSubmission(ctx context.Context, job *model.Job, cause error) error {
	s.logger.ErrorContext(ctx, "job submission failed",
		"job_id", job.ID,
		"user_id", job.UserID,
		"error", cause,
	)

	// The request context may already be done; the failure must still be recorded.
	recordCtx := context.WithoutCancel(ctx)
	failed, err := s.repo.MarkSubmissionFailed(recordCtx, job.ID, cause.Error())
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record submission failure", "job_id", job.ID, "error", err)
		failed = job
	}
	s.failureNotifier.NotifyJob(recordCtx, failed, notify.StageSubmission, cause)

	return &SubmissionError{JobID: job.ID, Err: cause}
}

// Get returns the job with id if userID owns it.
func (s *JobService) Get(ctx context.Context, userID, id string) (*model.Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, data.ErrJobNotFound) {
		return nil, apperrors.NotFound("Job not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", apperrors.MapDBError(err))
	}
	if job.UserID != userID {
		return nil, apperrors.Forbidden("You do not have access to this job")
	}
	return job, nil
}

// JobDetail is a job with its most recent events.
type JobDetail struct {
	*model.Job
	Events []*model.JobEvent `json:"events"`
}

// Detail returns the job with its RecentEventLimit most recent events.
func (s *JobService) Detail(ctx context.Context, userID, id string) (*JobDetail, error) {
	job, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	events, err := s.events.ListByJob(ctx, job.ID, RecentEventLimit)
	if err != nil {
		return nil, fmt.Errorf("list job events: %w", apperrors.MapDBError(err))
	}
	return &JobDetail{Job: job, Events: events}, nil
}

// List returns the caller's jobs newest first.
func (s *JobService) List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error) {
	if opts.UserID == "" {
		return nil, apperrors.Validation("user id is required")
	}
	jobs, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", apperrors.MapDBError(err))
	}
	return jobs, nil
}

// Events returns the job's events newest first.
func (s *JobService) Events(ctx context.Context, userID, id string, limit int) ([]*model.JobEvent, error) {
	job, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	events, err := s.events.ListByJob(ctx, job.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list job events: %w", apperrors.MapDBError(err))
	}
	return events, nil
}

// Usage returns the usage record of a completed job owned by userID.
func (s *JobService) Usage(ctx context.Context, userID, id string) (*model.UsageRecord, error) {
	job, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.usage.ForJob(ctx, job.ID)
}

// Cancel asks the scheduler to stop the job and then records CANCELLED.
// The scheduler is not consulted again, so the recorded state is optimistic.
// If the poller moved the job concurrently, the current job is returned unchanged.
func (s *JobService) Cancel(ctx context.Context, userID, id string) (*model.Job, error) {
	job, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !lifecycle.CanCancel(job.Status) {
		return nil, apperrors.Conflictf("Job cannot be cancelled in status %s", job.Status)
	}
	if !job.HasExternalID() {
		return nil, apperrors.Conflict("Job has no scheduler id yet")
	}

	start := time.Now()
	if err := s.gateway.Cancel(ctx, *job.ExternalID); err != nil {
		s.emitCommand(metrics.CommandCancel, job.Queue, start, err)
		s.logger.ErrorContext(ctx, "scheduler cancel failed",
			"job_id", job.ID,
			"external_id", *job.ExternalID,
			"error", err,
		)
		return nil, err
	}

	endedAt := s.now()
	applied, err := s.repo.ApplyTransition(ctx, model.TransitionRecord{
		JobID:   job.ID,
		From:    job.Status,
		To:      model.JobStatusCancelled,
		EndedAt: &endedAt,
		Event: model.JobEvent{
			Kind:    model.EventCancelled,
			Message: lifecycle.CancelledByUserMessage,
		},
	})
	if err != nil {
		s.emitCommand(metrics.CommandCancel, job.Queue, start, err)
		return nil, fmt.Errorf("record cancellation: %w", apperrors.MapDBError(err))
	}

	result := metrics.ResultSuccess
	if !applied {
		result = metrics.ResultNoop
		s.logger.WarnContext(ctx, "job changed status during cancel",
			"job_id", job.ID,
			"expected_status", job.Status,
		)
	}
	metrics.EmitCommand(s.metrics, metrics.Command{
		Name:     metrics.CommandCancel,
		Queue:    job.Queue,
		Result:   result,
		Duration: time.Since(start),
	})
	metrics.EmitTransition(s.metrics, metrics.Transition{
		From:   string(job.Status),
		To:     string(model.JobStatusCancelled),
		Queue:  job.Queue,
		Result: result,
	})

	current, err := s.repo.GetByID(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("reload job: %w", apperrors.MapDBError(err))
	}
	s.logger.InfoContext(ctx, "job cancel requested",
		"job_id", job.ID,
		"external_id", *job.ExternalID,
		"status", current.Status,
	)
	return current, nil
}

// Summary totals the caller's usage since the given time.
func (s *JobService) Summary(ctx context.Context, userID string, since time.Time) (*model.UsageSummary, error) {
	return s.usage.Summary(ctx, userID, since)
}

func (s *JobService) emitCommand(name, queue string, start time.Time, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.EmitCommand(s.metrics, metrics.Command{
		Name:     name,
		Queue:    queue,
		Result:   result,
		Duration: time.Since(start),
		Err:      err,
	})
}
