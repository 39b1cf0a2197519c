// Package model defines the core data types shared by the hpcjobs lifecycle engine.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobType represents the execution shape of a batch job.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobType string

// JobStatus represents the internal lifecycle status of a job.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobStatus string

const (
	// JobTypeSingle is a plain single-step job.
	JobTypeSingle JobType = "SINGLE"
	// JobTypeMPI is a multi-node MPI job.
	JobTypeMPI JobType = "MPI"
	// JobTypeArray is a scheduler array job.
	JobTypeArray JobType = "ARRAY"

	// JobStatusSubmitted indicates the job was accepted but has no scheduler handle yet.
	JobStatusSubmitted JobStatus = "SUBMITTED"
	// JobStatusQueued indicates the scheduler accepted the job and it is waiting for resources.
	JobStatusQueued JobStatus = "QUEUED"
	// JobStatusRunning indicates the job is executing on compute nodes.
	JobStatusRunning JobStatus = "RUNNING"
	// JobStatusCompleted indicates the job finished successfully.
	JobStatusCompleted JobStatus = "COMPLETED"
	// JobStatusFailed indicates the job failed, either at submission or at run time.
	JobStatusFailed JobStatus = "FAILED"
	// JobStatusCancelled indicates the job was cancelled.
	JobStatusCancelled JobStatus = "CANCELLED"
)

// ActiveJobStatuses lists the statuses the status poller reconciles.
var ActiveJobStatuses = []JobStatus{JobStatusSubmitted, JobStatusQueued, JobStatusRunning}

// ActiveJobCursor is the keyset position after which ListActive resumes.
type ActiveJobCursor struct {
	SubmittedAt time.Time
	ID          string
}

// CursorAfter returns the cursor positioned at j.
func (j *Job) CursorAfter() *ActiveJobCursor {
	return &ActiveJobCursor{SubmittedAt: j.SubmittedAt, ID: j.ID}
}

// UnmarshalText implements encoding.TextUnmarshaler for JobType.
func (t *JobType) UnmarshalText(text []byte) error {
	v := JobType(strings.ToUpper(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid JobType: %q", string(text))
	}
	*t = v
	return nil
}

// Valid returns true if the JobType is valid.
func (t JobType) Valid() bool {
	return t == JobTypeSingle || t == JobTypeMPI || t == JobTypeArray
}

// UnmarshalText implements encoding.TextUnmarshaler for JobStatus.
func (s *JobStatus) UnmarshalText(text []byte) error {
	v := JobStatus(strings.ToUpper(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid JobStatus: %q", string(text))
	}
	*s = v
	return nil
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusSubmitted, JobStatusQueued, JobStatusRunning,
		JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are accepted from s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job is a user-submitted batch workload and its lifecycle state.
type Job struct {
	ID          string  `json:"id"                    db:"id"`
	UserID      string  `json:"user_id"               db:"user_id"`
	Name        string  `json:"name"                  db:"name"`
	Description *string `json:"description,omitempty" db:"description"`
	Type        JobType `json:"type"                  db:"job_type"`
	ExternalID  *string `json:"external_id,omitempty" db:"external_id"`

	Queue           string `json:"queue"              db:"queue"`
	Nodes           int    `json:"nodes"              db:"nodes"`
	TasksPerNode    int    `json:"tasks_per_node"     db:"tasks_per_node"`
	CPUsPerTask     int    `json:"cpus_per_task"      db:"cpus_per_task"`
	MemoryPerNodeGB int    `json:"memory_per_node_gb" db:"memory_per_node_gb"`
	GPUsPerNode     int    `json:"gpus_per_node"      db:"gpus_per_node"`
	WalltimeSeconds int    `json:"walltime_seconds"   db:"walltime_seconds"`
	Priority        int    `json:"priority"           db:"priority"`

	Environment      Environment `json:"environment"           db:"environment"`
	Command          string      `json:"command"               db:"command"`
	Arguments        *string     `json:"arguments,omitempty"   db:"arguments"`
	PreScript        *string     `json:"pre_script,omitempty"  db:"pre_script"`
	PostScript       *string     `json:"post_script,omitempty" db:"post_script"`
	WorkingDirectory string      `json:"working_directory"     db:"working_directory"`

	Status       JobStatus  `json:"status"                  db:"status"`
	StatusReason *string    `json:"status_reason,omitempty" db:"status_reason"`
	SubmittedAt  time.Time  `json:"submitted_at"            db:"submitted_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"    db:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"      db:"ended_at"`
	ExitCode     *int       `json:"exit_code,omitempty"     db:"exit_code"`
	CreatedAt    time.Time  `json:"created_at"              db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"              db:"updated_at"`
}

// HasExternalID reports whether the scheduler handle is set.
func (j *Job) HasExternalID() bool {
	return j.ExternalID != nil && *j.ExternalID != ""
}

// Default resource values applied to a CreateJobRequest when the caller omits them.
const (
	DefaultNodes           = 1
	DefaultTasksPerNode    = 1
	DefaultCPUsPerTask     = 1
	DefaultMemoryPerNodeGB = 4
	MinWalltimeSeconds     = 60
)

// CreateJobRequest is the caller-facing request to submit a new job.
type CreateJobRequest struct {
	Name            string      `json:"name"`
	Description     *string     `json:"description,omitempty"`
	Type            JobType     `json:"type,omitempty"`
	Queue           string      `json:"queue"`
	Nodes           *int        `json:"nodes,omitempty"`
	TasksPerNode    *int        `json:"tasks_per_node,omitempty"`
	CPUsPerTask     *int        `json:"cpus_per_task,omitempty"`
	MemoryPerNodeGB *int        `json:"memory_per_node_gb,omitempty"`
	GPUsPerNode     *int        `json:"gpus_per_node,omitempty"`
	WalltimeSeconds int         `json:"walltime_seconds"`
	Priority        int         `json:"priority,omitempty"`
	Environment     Environment `json:"environment"`
	Command         string      `json:"command"`
	Arguments       *string     `json:"arguments,omitempty"`
	PreScript       *string     `json:"pre_script,omitempty"`
	PostScript      *string     `json:"post_script,omitempty"`
}

// Normalize trims string fields and fills in resource defaults.
func (r *CreateJobRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Queue = strings.TrimSpace(r.Queue)
	r.Command = strings.TrimSpace(r.Command)
	if r.Type == "" {
		r.Type = JobTypeSingle
	}
	r.Nodes = defaultInt(r.Nodes, DefaultNodes)
	r.TasksPerNode = defaultInt(r.TasksPerNode, DefaultTasksPerNode)
	r.CPUsPerTask = defaultInt(r.CPUsPerTask, DefaultCPUsPerTask)
	r.MemoryPerNodeGB = defaultInt(r.MemoryPerNodeGB, DefaultMemoryPerNodeGB)
	r.GPUsPerNode = defaultInt(r.GPUsPerNode, 0)
}

func defaultInt(v *int, def int) *int {
	if v != nil {
		return v
	}
	return &def
}

// Validate checks the request after Normalize has been applied.
func (r *CreateJobRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if r.Queue == "" {
		return errors.New("queue is required")
	}
	if r.Command == "" {
		return errors.New("command is required")
	}
	if !r.Type.Valid() {
		return fmt.Errorf("invalid job type: %q", r.Type)
	}
	if err := validateMin("nodes", r.Nodes, 1); err != nil {
		return err
	}
	if err := validateMin("tasks_per_node", r.TasksPerNode, 1); err != nil {
		return err
	}
	if err := validateMin("cpus_per_task", r.CPUsPerTask, 1); err != nil {
		return err
	}
	if err := validateMin("memory_per_node_gb", r.MemoryPerNodeGB, 1); err != nil {
		return err
	}
	if err := validateMin("gpus_per_node", r.GPUsPerNode, 0); err != nil {
		return err
	}
	if r.WalltimeSeconds < MinWalltimeSeconds {
		return fmt.Errorf("walltime_seconds must be >= %d", MinWalltimeSeconds)
	}
	if err := r.Environment.Validate(); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return nil
}

func validateMin(field string, v *int, minimum int) error {
	if v == nil || *v < minimum {
		return fmt.Errorf("%s must be >= %d", field, minimum)
	}
	return nil
}

// CreateJobRecord is the normalized input persisted by JobRepository.Create.
type CreateJobRecord struct {
	UserID  string
	Request CreateJobRequest
}

// JobListOptions filters and paginates a user's job listing.
type JobListOptions struct {
	UserID string
	Status *JobStatus
	Search string
	Limit  int
	Offset int
}

// DefaultJobListLimit is the page size used when none is given.
const DefaultJobListLimit = 50

// SchedulerStatus is a point-in-time observation of a job from the scheduler.
type SchedulerStatus struct {
	Status    JobStatus
	StartTime *time.Time
	EndTime   *time.Time
	ExitCode  *int
	Reason    string
}

// TransitionRecord describes a single lifecycle transition to persist atomically.
type TransitionRecord struct {
	JobID     string
	From      JobStatus
	To        JobStatus
	StartedAt *time.Time
	EndedAt   *time.Time
	ExitCode  *int
	Reason    *string
	Event     JobEvent
	Usage     *UsageRecord
}
