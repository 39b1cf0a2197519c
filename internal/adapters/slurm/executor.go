package slurm

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
)

// Executor runs a scheduler CLI command and returns its stdout.
// A command that ran and exited non-zero must be reported as *ExitError.
type Executor interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// CommandFunc builds an *exec.Cmd; exec.CommandContext in production.
type CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// LocalExecutor runs scheduler commands on the current host.
type LocalExecutor struct {
	command CommandFunc
	logger  *slog.Logger
}

// NewLocalExecutor creates a LocalExecutor. A nil command uses exec.CommandContext.
func NewLocalExecutor(command CommandFunc, logger *slog.Logger) *LocalExecutor {
	if command == nil {
		command = exec.CommandContext
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalExecutor{command: command, logger: logger.With("component", "slurm_local_exec")}
}

// Run executes name with args and returns stdout.
func (e *LocalExecutor) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := e.command(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	e.logger.DebugContext(ctx, "slurm command finished", "cmd", cmd.String(), "error", err)
	if err == nil {
		return stdout.Bytes(), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), &ExitError{
			Command: commandLine(name, args),
			Code:    exitErr.ExitCode(),
			Stderr:  strings.TrimSpace(stderr.String()),
		}
	}
	return nil, err
}

func commandLine(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}
