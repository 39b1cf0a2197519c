package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/target/hpcjobs/config"
	"github.com/target/hpcjobs/internal/adapters/poller"
	"github.com/target/hpcjobs/internal/adapters/slurm"
	"github.com/target/hpcjobs/internal/adapters/workspace"
	"github.com/target/hpcjobs/internal/core"
	"github.com/target/hpcjobs/internal/observability/statsd"
	"github.com/target/hpcjobs/internal/service/failurenotifier"
)

// GatewayConfig contains configuration for the scheduler gateway.
type GatewayConfig struct {
	Slurm  config.SlurmConfig
	Logger *slog.Logger
}

// Gateway is the scheduler gateway plus the executor resources it holds open.
type Gateway struct {
	*slurm.Gateway
	closer io.Closer
}

// Close releases the SSH connection when the gateway runs in ssh mode.
func (g *Gateway) Close() error {
	if g == nil || g.closer == nil {
		return nil
	}
	return g.closer.Close()
}

// BuildGateway selects the local or SSH executor and wraps it in a slurm gateway.
func BuildGateway(cfg GatewayConfig) (*Gateway, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	loc, err := cfg.Slurm.Location()
	if err != nil {
		return nil, err
	}

	var (
		executor slurm.Executor
		closer   io.Closer
	)
	switch cfg.Slurm.Mode {
	case config.SlurmModeSSH:
		sshExec, sshErr := slurm.NewSSHExecutor(slurm.SSHConfig{
			Host:                  cfg.Slurm.SSHHost,
			Port:                  cfg.Slurm.SSHPort,
			User:                  cfg.Slurm.SSHUser,
			KeyPath:               cfg.Slurm.SSHKeyPath,
			KeyPassphrase:         cfg.Slurm.SSHKeyPassphrase,
			Password:              cfg.Slurm.SSHPassword,
			KnownHostsPath:        cfg.Slurm.SSHKnownHosts,
			InsecureIgnoreHostKey: cfg.Slurm.SSHInsecureIgnoreHostKey,
			ProxyURL:              cfg.Slurm.SSHProxyURL,
			DialTimeout:           cfg.Slurm.SSHDialTimeout,
			Logger:                logger,
		})
		if sshErr != nil {
			return nil, fmt.Errorf("create ssh executor: %w", sshErr)
		}
		if cfg.Slurm.SSHInsecureIgnoreHostKey {
			logger.Warn("ssh host key verification disabled", "host", cfg.Slurm.SSHHost)
		}
		executor, closer = sshExec, sshExec
	case config.SlurmModeLocal, "":
		executor = slurm.NewLocalExecutor(nil, logger)
	default:
		return nil, fmt.Errorf("unsupported slurm mode %q", cfg.Slurm.Mode)
	}

	gw, err := slurm.NewGateway(slurm.GatewayOptions{
		Executor:       executor,
		Logger:         logger,
		CommandTimeout: cfg.Slurm.CommandTimeout,
		Location:       loc,
	})
	if err != nil {
		if closer != nil {
			err = errors.Join(err, closer.Close())
		}
		return nil, fmt.Errorf("create slurm gateway: %w", err)
	}

	logger.Info("scheduler gateway configured", "mode", cfg.Slurm.Mode, "timezone", loc.String())
	return &Gateway{Gateway: gw, closer: closer}, nil
}

// BuildWorkspace creates the shared job directory layout.
func BuildWorkspace(cfg config.WorkspaceConfig, logger *slog.Logger) (*workspace.Workspace, error) {
	ws, err := workspace.New(workspace.Options{
		Root:       cfg.Root,
		DirMode:    fs.FileMode(cfg.DirMode),
		ScriptMode: fs.FileMode(cfg.ScriptMode),
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return ws, nil
}

// PollerConfig contains configuration for the status poller.
type PollerConfig struct {
	DB              *sql.DB
	Gateway         core.SchedulerGateway
	Lock            core.CacheRepository
	Logger          *slog.Logger
	Config          config.PollerConfig
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// NewPollerRunner wires the poller adapter.
func NewPollerRunner(cfg PollerConfig) (*poller.Runner, error) {
	runner, err := poller.NewRunner(poller.RunnerOptions{
		DB:              cfg.DB,
		Gateway:         cfg.Gateway,
		Config:          cfg.Config,
		Logger:          cfg.Logger,
		Lock:            cfg.Lock,
		Metrics:         cfg.Metrics,
		FailureNotifier: cfg.FailureNotifier,
	})
	if err != nil {
		return nil, fmt.Errorf("create poller runner: %w", err)
	}
	return runner, nil
}

// RunPoller starts the status poller service.
func RunPoller(ctx context.Context, cfg PollerConfig) error {
	runner, err := NewPollerRunner(cfg)
	if err != nil {
		return err
	}
	return runner.Run(ctx)
}
