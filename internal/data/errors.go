package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrJobNotFound is returned when a job id does not exist or is not a valid uuid.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobStatusConflict is returned when a submission update finds the job no longer SUBMITTED.
	ErrJobStatusConflict = errors.New("job status changed concurrently")
	// ErrUsageNotFound is returned when no usage has been recorded for a job.
	ErrUsageNotFound = errors.New("usage not found")
	// ErrJobIDRequired is returned when an operation is called without a job id.
	ErrJobIDRequired = errors.New("job_id is required")
)
