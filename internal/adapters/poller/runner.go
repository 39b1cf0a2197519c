// Package poller provides the adapter for running the status poller.
package poller

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/hpcjobs/config"
	"github.com/target/hpcjobs/internal/core"
	"github.com/target/hpcjobs/internal/data"
	"github.com/target/hpcjobs/internal/observability/statsd"
	"github.com/target/hpcjobs/internal/service"
	"github.com/target/hpcjobs/internal/service/failurenotifier"
)

// Runner wires the poller service and runs its loop.
type Runner struct {
	poller *service.PollerService
	logger *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB      *sql.DB
	Gateway core.SchedulerGateway
	Config  config.PollerConfig
	Logger  *slog.Logger

	Lock            core.CacheRepository
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service

	// Optional dependency injection for testing/decoupling
	Repo  core.JobRepository
	Usage core.UsageRepository
}

// NewRunner creates a new poller runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	poller, err := wirePollerService(opts)
	if err != nil {
		return nil, fmt.Errorf("wire poller service: %w", err)
	}

	return &Runner{poller: poller, logger: opts.Logger}, nil
}

// validateRunnerOptions validates and sets defaults for RunnerOptions.
func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.DB == nil && (opts.Repo == nil || opts.Usage == nil) {
		return errors.New("database connection is required")
	}
	if opts.Gateway == nil {
		return errors.New("scheduler gateway is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

// wirePollerService wires the repositories, usage accountant and lifecycle service.
func wirePollerService(opts RunnerOptions) (*service.PollerService, error) {
	repo := opts.Repo
	if repo == nil {
		repo = data.NewJobRepo(opts.DB, data.RepoConfig{Logger: opts.Logger})
	}
	usageRepo := opts.Usage
	if usageRepo == nil {
		usageRepo = data.NewUsageRepo(opts.DB)
	}

	accountant, err := service.NewUsageAccountant(service.UsageAccountantOptions{
		Repo:   usageRepo,
		Logger: opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	lifecycle, err := service.NewLifecycleService(service.LifecycleServiceOptions{
		Repo:            repo,
		Usage:           accountant,
		Logger:          opts.Logger,
		Metrics:         opts.Metrics,
		FailureNotifier: opts.FailureNotifier,
	})
	if err != nil {
		return nil, err
	}

	return service.NewPollerService(service.PollerServiceOptions{
		Repo:      repo,
		Gateway:   opts.Gateway,
		Lifecycle: lifecycle,
		Config:    opts.Config,
		Lock:      opts.Lock,
		Logger:    opts.Logger,
		Metrics:   opts.Metrics,
	})
}

// Run starts the poll loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting poller runner")
	return r.poller.Run(ctx)
}

// PollOnce runs a single cycle, for the admin reconcile command.
func (r *Runner) PollOnce(ctx context.Context) (service.CycleStats, error) {
	return r.poller.PollOnce(ctx)
}
