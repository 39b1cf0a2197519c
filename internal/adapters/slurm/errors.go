package slurm

import (
	"errors"
	"fmt"
)

// SubmissionExecError reports that sbatch could not be run or exited non-zero.
type SubmissionExecError struct {
	ScriptPath string
	Err        error
}

func (e *SubmissionExecError) Error() string {
	return fmt.Sprintf("sbatch %s: %v", e.ScriptPath, e.Err)
}

func (e *SubmissionExecError) Unwrap() error { return e.Err }

// SubmissionParseError reports that sbatch succeeded but printed no job id.
type SubmissionParseError struct {
	Output string
}

func (e *SubmissionParseError) Error() string {
	return fmt.Sprintf("failed to parse job id from sbatch output: %q", e.Output)
}

// CancelExecError reports that scancel failed.
type CancelExecError struct {
	ExternalID string
	Err        error
}

func (e *CancelExecError) Error() string {
	return fmt.Sprintf("scancel %s: %v", e.ExternalID, e.Err)
}

func (e *CancelExecError) Unwrap() error { return e.Err }

// StatusQueryError reports that a status query could not be completed.
type StatusQueryError struct {
	ExternalID string
	Command    string
	Err        error
}

func (e *StatusQueryError) Error() string {
	return fmt.Sprintf("%s for job %s: %v", e.Command, e.ExternalID, e.Err)
}

func (e *StatusQueryError) Unwrap() error { return e.Err }

// JobNotFoundError reports that neither the live queue nor accounting knows the job.
type JobNotFoundError struct {
	ExternalID string
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("job %s not found in slurm", e.ExternalID)
}

// ExitError is returned by executors when a command ran but exited non-zero.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s exited with code %d", e.Command, e.Code)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Command, e.Code, e.Stderr)
}

// IsExitError reports whether err is, or wraps, an *ExitError.
func IsExitError(err error) bool {
	var ee *ExitError
	return errors.As(err, &ee)
}

// IsSubmissionError reports whether err came from a failed sbatch call.
func IsSubmissionError(err error) bool {
	var execErr *SubmissionExecError
	var parseErr *SubmissionParseError
	return errors.As(err, &execErr) || errors.As(err, &parseErr)
}
