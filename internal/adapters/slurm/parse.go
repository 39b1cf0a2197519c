package slurm

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/target/hpcjobs/internal/domain/model"
)

// TimeLayout is the timestamp format printed by squeue and sacct.
const TimeLayout = "2006-01-02T15:04:05"

var submitPattern = regexp.MustCompile(`Submitted batch job (\d+)`)

// ParseSubmitOutput extracts the job id from sbatch stdout.
func ParseSubmitOutput(out string) (string, error) {
	m := submitPattern.FindStringSubmatch(out)
	if len(m) < 2 {
		return "", &SubmissionParseError{Output: strings.TrimSpace(out)}
	}
	return m[1], nil
}

// MapSqueueState maps a live-queue state token to a job status.
func MapSqueueState(state string) model.JobStatus {
	switch {
	case strings.Contains(state, "RUNNING") || state == "R":
		return model.JobStatusRunning
	case strings.Contains(state, "PENDING") || state == "PD":
		return model.JobStatusQueued
	case strings.Contains(state, "COMPLETED") || state == "CD":
		return model.JobStatusCompleted
	case strings.Contains(state, "FAILED") || state == "F":
		return model.JobStatusFailed
	case strings.Contains(state, "CANCELLED") || state == "CA":
		return model.JobStatusCancelled
	default:
		return model.JobStatusQueued
	}
}

// MapSacctState maps an accounting state to a job status.
// Checks are substring matches applied in order.
func MapSacctState(state string) model.JobStatus {
	switch {
	case strings.Contains(state, "COMPLETED"):
		return model.JobStatusCompleted
	case strings.Contains(state, "FAILED"),
		strings.Contains(state, "TIMEOUT"),
		strings.Contains(state, "OUT_OF_MEMORY"),
		strings.Contains(state, "NODE_FAIL"):
		return model.JobStatusFailed
	case strings.Contains(state, "CANCELLED"):
		return model.JobStatusCancelled
	case strings.Contains(state, "RUNNING"):
		return model.JobStatusRunning
	default:
		return model.JobStatusQueued
	}
}

// ParseSqueueOutput reads the first line of squeue output.
// It returns false when the output is empty, meaning the job has left the queue.
// The start time is kept only for running jobs.
func ParseSqueueOutput(out string, loc *time.Location) (*model.SchedulerStatus, bool) {
	line := firstLine(out)
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, false
	}

	st := &model.SchedulerStatus{Status: MapSqueueState(fields[0])}
	if st.Status == model.JobStatusRunning && len(fields) > 1 {
		st.StartTime = parseTimestamp(fields[1], loc)
	}
	return st, true
}

// ParseSacctOutput reads the first record of pipe-delimited sacct output:
// State|Start|End|ExitCode.
func ParseSacctOutput(out string, loc *time.Location) (*model.SchedulerStatus, error) {
	line := firstLine(out)
	if line == "" {
		return nil, errors.New("empty sacct output")
	}
	parts := strings.Split(line, "|")
	if len(parts) < 4 {
		return nil, fmt.Errorf("malformed sacct record %q: want 4 fields, got %d", line, len(parts))
	}

	state := strings.TrimSpace(parts[0])
	if state == "" {
		return nil, fmt.Errorf("malformed sacct record %q: empty state", line)
	}

	st := &model.SchedulerStatus{
		Status:    MapSacctState(state),
		StartTime: parseTimestamp(parts[1], loc),
		EndTime:   parseTimestamp(parts[2], loc),
		ExitCode:  parseExitCode(parts[3]),
	}
	if st.Status == model.JobStatusFailed || st.Status == model.JobStatusCancelled {
		st.Reason = state
	}
	return st, nil
}

// ParseSinfoOutput reads one partition per non-empty line:
// PartitionName StateCompact Nodes CPUs.
func ParseSinfoOutput(out string) []model.QueueInfo {
	queues := make([]model.QueueInfo, 0)
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		q := model.QueueInfo{Name: fields[0]}
		if strings.HasSuffix(q.Name, "*") {
			q.Name = strings.TrimSuffix(q.Name, "*")
			q.Default = true
		}
		if len(fields) > 1 {
			q.State = fields[1]
		}
		if len(fields) > 2 {
			q.Nodes = atoiOrZero(fields[2])
		}
		if len(fields) > 3 {
			q.CPUs = atoiOrZero(fields[3])
		}
		queues = append(queues, q)
	}
	return queues
}

func firstLine(out string) string {
	out = strings.TrimSpace(out)
	if i := strings.IndexByte(out, '\n'); i >= 0 {
		out = out[:i]
	}
	return strings.TrimSpace(out)
}

func parseTimestamp(s string, loc *time.Location) *time.Time {
	s = strings.TrimSpace(s)
	switch s {
	case "", "Unknown", "None", "N/A":
		return nil
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(TimeLayout, s, loc)
	if err != nil {
		return nil
	}
	return &t
}

func parseExitCode(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	code, _, _ := strings.Cut(s, ":")
	v, err := strconv.Atoi(code)
	if err != nil {
		return nil
	}
	return &v
}

func atoiOrZero(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
