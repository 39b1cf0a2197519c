// Package slurm implements the scheduler gateway on top of the Slurm command line tools.
package slurm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/target/hpcjobs/internal/domain/model"
)

// DefaultCommandTimeout bounds each scheduler command when no timeout is configured.
const DefaultCommandTimeout = 30 * time.Second

// GatewayOptions configures a Gateway.
type GatewayOptions struct {
	Executor       Executor // Required
	Logger         *slog.Logger
	CommandTimeout time.Duration
	// Location is the time zone of timestamps printed by the scheduler. Defaults to time.Local.
	Location *time.Location
}

// Gateway submits, cancels, and queries jobs via sbatch, scancel, squeue, sacct, and sinfo.
type Gateway struct {
	exec    Executor
	logger  *slog.Logger
	timeout time.Duration
	loc     *time.Location
}

// NewGateway creates a Gateway.
func NewGateway(opts GatewayOptions) (*Gateway, error) {
	if opts.Executor == nil {
		return nil, errors.New("executor is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.CommandTimeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &Gateway{
		exec:    opts.Executor,
		logger:  logger.With("component", "slurm_gateway"),
		timeout: timeout,
		loc:     loc,
	}, nil
}

func (g *Gateway) run(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	out, err := g.exec.Run(ctx, name, args...)
	return string(out), err
}

// Submit runs sbatch on scriptPath and returns the scheduler job id.
func (g *Gateway) Submit(ctx context.Context, scriptPath string) (string, error) {
	out, err := g.run(ctx, "sbatch", scriptPath)
	if err != nil {
		return "", &SubmissionExecError{ScriptPath: scriptPath, Err: err}
	}
	id, err := ParseSubmitOutput(out)
	if err != nil {
		return "", err
	}
	g.logger.InfoContext(ctx, "job submitted", "external_id", id, "script", scriptPath)
	return id, nil
}

// Cancel requests cancellation; it does not wait for the job to stop.
func (g *Gateway) Cancel(ctx context.Context, externalID string) error {
	if _, err := g.run(ctx, "scancel", externalID); err != nil {
		return &CancelExecError{ExternalID: externalID, Err: err}
	}
	g.logger.InfoContext(ctx, "job cancel requested", "external_id", externalID)
	return nil
}

// QueryStatus reports the scheduler's view of a job, consulting the live queue first
// and accounting once the job has left the queue.
func (g *Gateway) QueryStatus(ctx context.Context, externalID string) (*model.SchedulerStatus, error) {
	out, err := g.run(ctx, "squeue", "-j", externalID,
		"--Format=State,StartTime,EndTime,ExitCode", "--noheader")
	switch {
	case err == nil:
		if st, ok := ParseSqueueOutput(out, g.loc); ok {
			return st, nil
		}
	case IsExitError(err):
		// squeue exits non-zero for ids that are no longer in the queue.
		g.logger.DebugContext(ctx, "squeue lookup failed; falling back to sacct",
			"external_id", externalID, "error", err)
	default:
		return nil, &StatusQueryError{ExternalID: externalID, Command: "squeue", Err: err}
	}

	out, err = g.run(ctx, "sacct", "-j", externalID,
		"--format=State,Start,End,ExitCode", "--noheader", "--parsable2")
	if err != nil {
		return nil, &StatusQueryError{ExternalID: externalID, Command: "sacct", Err: err}
	}
	if strings.TrimSpace(out) == "" {
		return nil, &JobNotFoundError{ExternalID: externalID}
	}
	st, err := ParseSacctOutput(out, g.loc)
	if err != nil {
		return nil, &StatusQueryError{ExternalID: externalID, Command: "sacct", Err: err}
	}
	return st, nil
}

// ListQueues lists partitions. Failures are logged and yield an empty list.
func (g *Gateway) ListQueues(ctx context.Context) ([]model.QueueInfo, error) {
	out, err := g.run(ctx, "sinfo", "--Format=PartitionName,StateCompact,Nodes,CPUs", "--noheader")
	if err != nil {
		g.logger.WarnContext(ctx, "failed to list queues", "error", err)
		return []model.QueueInfo{}, nil
	}
	return ParseSinfoOutput(out), nil
}
