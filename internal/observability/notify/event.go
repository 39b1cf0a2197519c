// Package notify defines the job failure notification payload and the sink contract.
package notify

import (
	"context"
	"time"
)

// SeverityCritical is the default severity for failure notifications.
const SeverityCritical = "critical"

// Failure stages.
const (
	StageSubmission = "submission"
	StageRuntime    = "runtime"
)

// JobFailurePayload is the data sent to every sink when a job fails.
type JobFailurePayload struct {
	JobID      string
	JobName    string
	ExternalID string
	UserID     string
	Queue      string
	Stage      string
	Error      string
	ErrorClass string
	Severity   string
	OccurredAt time.Time
	Metadata   map[string]string
}

// Sink consumes job failure notifications.
type Sink interface {
	SendJobFailure(ctx context.Context, payload JobFailurePayload) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, payload JobFailurePayload) error

// SendJobFailure implements Sink.
func (f SinkFunc) SendJobFailure(ctx context.Context, payload JobFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
