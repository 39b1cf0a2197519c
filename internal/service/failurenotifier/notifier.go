// Package failurenotifier fans job failure notifications out to the configured sinks.
package failurenotifier

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/target/hpcjobs/internal/domain/model"
	obserrors "github.com/target/hpcjobs/internal/observability/errors"
	"github.com/target/hpcjobs/internal/observability/notify"
)

// SinkRegistration pairs a sink with the name used in logs.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the failure notifier.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
	// Now overrides the clock used for OccurredAt.
	Now func() time.Time
}

// Service dispatches failure events to all registered sinks. A nil *Service is a no-op.
type Service struct {
	logger *slog.Logger
	sinks  []SinkRegistration
	now    func() time.Time
}

// NewService constructs a failure notifier, dropping nil sinks.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	sinks := make([]SinkRegistration, 0, len(opts.Sinks))
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		if entry.Name == "" {
			entry.Name = "sink"
		}
		sinks = append(sinks, entry)
	}

	return &Service{
		logger: logger.With("component", "failure_notifier"),
		sinks:  sinks,
		now:    now,
	}
}

// Enabled reports whether any sink is registered.
func (s *Service) Enabled() bool {
	return s != nil && len(s.sinks) > 0
}

// NotifyJob builds a payload for job failing at stage and delivers it.
func (s *Service) NotifyJob(ctx context.Context, job *model.Job, stage string, cause error) {
	if !s.Enabled() || job == nil {
		return
	}

	payload := notify.JobFailurePayload{
		JobID:    job.ID,
		JobName:  job.Name,
		UserID:   job.UserID,
		Queue:    job.Queue,
		Stage:    stage,
		Severity: notify.SeverityCritical,
	}
	if job.ExternalID != nil {
		payload.ExternalID = *job.ExternalID
	}
	switch {
	case cause != nil:
		payload.Error = cause.Error()
		payload.ErrorClass = obserrors.Classify(cause)
	case job.StatusReason != nil:
		payload.Error = *job.StatusReason
	}
	if job.ExitCode != nil {
		payload.Metadata = map[string]string{"exit_code": strconv.Itoa(*job.ExitCode)}
	}
	s.NotifyJobFailure(ctx, payload)
}

// NotifyJobFailure delivers payload to every sink concurrently and waits for all of them.
// Delivery errors are logged, never returned.
func (s *Service) NotifyJobFailure(ctx context.Context, payload notify.JobFailurePayload) {
	if !s.Enabled() {
		return
	}
	if payload.JobID == "" {
		s.logger.WarnContext(ctx, "dropping failure notification without job id")
		return
	}
	if payload.Severity == "" {
		payload.Severity = notify.SeverityCritical
	}
	if payload.OccurredAt.IsZero() {
		payload.OccurredAt = s.now()
	}

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.SendJobFailure(ctx, payload); err != nil {
				s.logger.ErrorContext(ctx, "failure notification delivery error",
					"sink", entry.Name,
					"job_id", payload.JobID,
					"stage", payload.Stage,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}
