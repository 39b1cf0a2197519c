package model

import "time"

// EventKind classifies a lifecycle event.
type EventKind string

const (
	// EventSubmitted records a successful scheduler submission.
	EventSubmitted EventKind = "SUBMITTED"
	// EventQueued records the scheduler reporting the job as pending.
	EventQueued EventKind = "QUEUED"
	// EventStarted records the job starting on compute nodes.
	EventStarted EventKind = "STARTED"
	// EventCompleted records successful completion.
	EventCompleted EventKind = "COMPLETED"
	// EventFailed records a submission or run-time failure.
	EventFailed EventKind = "FAILED"
	// EventCancelled records cancellation.
	EventCancelled EventKind = "CANCELLED"
)

// JobEvent is an append-only record of one observed transition.
type JobEvent struct {
	ID        string    `json:"id"         db:"id"`
	JobID     string    `json:"job_id"     db:"job_id"`
	Kind      EventKind `json:"kind"       db:"kind"`
	Message   string    `json:"message"    db:"message"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// UsageRecord captures billable resource consumption for a completed job.
type UsageRecord struct {
	ID              string    `json:"id"               db:"id"`
	JobID           string    `json:"job_id"           db:"job_id"`
	UserID          string    `json:"user_id"          db:"user_id"`
	CPUHours        float64   `json:"cpu_hours"        db:"cpu_hours"`
	GPUHours        float64   `json:"gpu_hours"        db:"gpu_hours"`
	WalltimeSeconds int64     `json:"walltime_seconds" db:"walltime_seconds"`
	CreatedAt       time.Time `json:"created_at"       db:"created_at"`
}

// UsageSummary aggregates a user's usage over a window.
type UsageSummary struct {
	UserID          string    `json:"user_id"`
	Since           time.Time `json:"since"`
	Jobs            int       `json:"jobs"`
	CPUHours        float64   `json:"cpu_hours"`
	GPUHours        float64   `json:"gpu_hours"`
	WalltimeSeconds int64     `json:"walltime_seconds"`
}

// QueueInfo describes a scheduler partition.
type QueueInfo struct {
	Name    string `json:"name"`
	State   string `json:"state"`
	Nodes   int    `json:"nodes"`
	CPUs    int    `json:"cpus"`
	Default bool   `json:"default"`
}
