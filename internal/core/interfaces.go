// Package core defines the ports between the hpcjobs services and their adapters.
package core

import (
	"context"
	"time"

	"github.com/target/hpcjobs/internal/domain/model"
)

// These interfaces are the contracts between the service layer and the data/scheduler adapters.
// Services depend on them, never on concrete implementations.

// JobRepository persists jobs and applies lifecycle changes atomically with their events.
type JobRepository interface {
	Create(ctx context.Context, rec *model.CreateJobRecord) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error)
	// ListActive returns up to limit jobs in SUBMITTED, QUEUED or RUNNING ordered by
	// (submitted_at, id), starting after the cursor. A nil cursor starts at the oldest job.
	ListActive(ctx context.Context, after *model.ActiveJobCursor, limit int) ([]*model.Job, error)
	SetWorkingDirectory(ctx context.Context, id, dir string) error
	// MarkSubmitted stores the scheduler handle, moves the job to QUEUED and records a SUBMITTED event.
	MarkSubmitted(ctx context.Context, id, externalID string) (*model.Job, error)
	// MarkSubmissionFailed moves the job to FAILED with reason and records a FAILED event.
	MarkSubmissionFailed(ctx context.Context, id, reason string) (*model.Job, error)
	// ApplyTransition updates the job only if it is still in rec.From, appending the event
	// and usage record in the same transaction. It returns false when the precondition failed.
	ApplyTransition(ctx context.Context, rec model.TransitionRecord) (bool, error)
}

// JobEventRepository reads the append-only event log.
type JobEventRepository interface {
	// ListByJob returns events newest first.
	ListByJob(ctx context.Context, jobID string, limit int) ([]*model.JobEvent, error)
}

// UsageRepository reads usage records.
type UsageRepository interface {
	GetByJobID(ctx context.Context, jobID string) (*model.UsageRecord, error)
	SummarizeByUser(ctx context.Context, userID string, since time.Time) (*model.UsageSummary, error)
}

// SchedulerGateway is the boundary to the batch scheduler.
type SchedulerGateway interface {
	Submit(ctx context.Context, scriptPath string) (string, error)
	Cancel(ctx context.Context, externalID string) error
	QueryStatus(ctx context.Context, externalID string) (*model.SchedulerStatus, error)
	ListQueues(ctx context.Context) ([]model.QueueInfo, error)
}

// Workspace prepares job directories and writes batch scripts.
type Workspace interface {
	Prepare(ctx context.Context, userID, jobID string) (string, error)
	WriteScript(ctx context.Context, dir, name, content string) (string, error)
}

// CacheRepository is a small key/value cache with TTLs.
type CacheRepository interface {
	// Get returns nil, nil when the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)
	// SetIfNotExists atomically sets key only if absent; it returns true when the key was set.
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// DeleteIfValue deletes key only while it still holds value.
	DeleteIfValue(ctx context.Context, key string, value []byte) (bool, error)
	Health(ctx context.Context) error
}
