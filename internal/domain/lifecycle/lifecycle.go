// Package lifecycle holds the pure job state machine used to reconcile scheduler observations.
package lifecycle

import (
	"strings"

	"github.com/target/hpcjobs/internal/domain/model"
)

// Rank orders statuses so that transitions only ever move forward.
// Unknown statuses rank -1.
func Rank(s model.JobStatus) int {
	switch s {
	case model.JobStatusSubmitted:
		return 0
	case model.JobStatusQueued:
		return 1
	case model.JobStatusRunning:
		return 2
	case model.JobStatusCompleted, model.JobStatusFailed, model.JobStatusCancelled:
		return 3
	default:
		return -1
	}
}

// Transition decides whether observed moves a job out of current.
// It returns the next status and true when a transition fires.
func Transition(current, observed model.JobStatus) (model.JobStatus, bool) {
	if current.IsTerminal() || !observed.Valid() || observed == current {
		return current, false
	}
	if Rank(observed) <= Rank(current) {
		return current, false
	}
	return observed, true
}

// EventKindFor maps the status entered by a transition to its event kind.
func EventKindFor(s model.JobStatus) model.EventKind {
	switch s {
	case model.JobStatusSubmitted:
		return model.EventSubmitted
	case model.JobStatusQueued:
		return model.EventQueued
	case model.JobStatusRunning:
		return model.EventStarted
	case model.JobStatusCompleted:
		return model.EventCompleted
	case model.JobStatusFailed:
		return model.EventFailed
	case model.JobStatusCancelled:
		return model.EventCancelled
	default:
		return model.EventKind(s)
	}
}

// EventMessage returns reason when set, otherwise "Job <kind>".
func EventMessage(kind model.EventKind, reason string) string {
	if r := strings.TrimSpace(reason); r != "" {
		return r
	}
	return "Job " + strings.ToLower(string(kind))
}

// CanCancel reports whether a user cancellation is permitted from s.
func CanCancel(s model.JobStatus) bool {
	return s == model.JobStatusQueued || s == model.JobStatusRunning
}

// CancelledByUserMessage is the event message recorded for a user cancellation.
const CancelledByUserMessage = "Job cancelled by user"

// SubmittedMessage is the event message recorded when the scheduler accepts a job.
func SubmittedMessage(externalID string) string {
	return "Job submitted to Slurm with ID " + externalID
}

// SubmissionFailedMessage is the event message recorded when submission fails.
func SubmissionFailedMessage(reason string) string {
	return "Job submission failed: " + reason
}
