package slurm

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shellCommand runs the requested command through sh so tests can script exit codes and output.
func shellCommand(script string) CommandFunc {
	return func(ctx context.Context, _ string, _ ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", script)
	}
}

func TestLocalExecutor_Run(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	t.Run("stdout returned", func(t *testing.T) {
		e := NewLocalExecutor(shellCommand("echo 'Submitted batch job 12'"), nil)
		out, err := e.Run(context.Background(), "sbatch", "job.sh")
		require.NoError(t, err)
		assert.Equal(t, "Submitted batch job 12\n", string(out))
	})

	t.Run("non-zero exit becomes ExitError", func(t *testing.T) {
		e := NewLocalExecutor(shellCommand("echo 'bad partition' >&2; exit 3"), nil)
		_, err := e.Run(context.Background(), "sbatch", "job.sh")
		var exitErr *ExitError
		require.True(t, errors.As(err, &exitErr))
		assert.Equal(t, 3, exitErr.Code)
		assert.Equal(t, "bad partition", exitErr.Stderr)
		assert.Equal(t, "sbatch job.sh", exitErr.Command)
	})

	t.Run("context cancellation wins", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		e := NewLocalExecutor(shellCommand("sleep 5"), nil)
		_, err := e.Run(ctx, "squeue")
		require.ErrorIs(t, err, context.Canceled)
		assert.False(t, IsExitError(err))
	})
}

func TestShellQuote(t *testing.T) {
	tests := map[string]string{
		"sbatch":                     "sbatch",
		"/shared/u1/jobs/j1/job.sh":  "/shared/u1/jobs/j1/job.sh",
		"--format=State,Start,End":   "--format=State,Start,End",
		"":                           "''",
		"my job.sh":                  "'my job.sh'",
		"it's":                       `'it'\''s'`,
		"$(rm -rf /)":                "'$(rm -rf /)'",
	}
	for in, want := range tests {
		assert.Equal(t, want, ShellQuote(in), in)
	}
	assert.Equal(t, "scancel 42", ShellJoin("scancel", "42"))
}

func TestNewSSHExecutor_Validation(t *testing.T) {
	dir := t.TempDir()
	knownHosts := filepath.Join(dir, "known_hosts")
	require.NoError(t, os.WriteFile(knownHosts, nil, 0o600))

	tests := []struct {
		name    string
		cfg     SSHConfig
		wantErr string
	}{
		{name: "missing host", cfg: SSHConfig{User: "svc", Password: "x"}, wantErr: "ssh host is required"},
		{name: "missing user", cfg: SSHConfig{Host: "login1", Password: "x"}, wantErr: "ssh user is required"},
		{name: "no auth", cfg: SSHConfig{Host: "login1", User: "svc"}, wantErr: "ssh key path or password is required"},
		{
			name:    "unreadable key",
			cfg:     SSHConfig{Host: "login1", User: "svc", KeyPath: filepath.Join(dir, "missing")},
			wantErr: "read ssh key",
		},
		{
			name:    "no host key policy",
			cfg:     SSHConfig{Host: "login1", User: "svc", Password: "x"},
			wantErr: "known_hosts path is required",
		},
		{
			name:    "bad proxy scheme",
			cfg:     SSHConfig{Host: "login1", User: "svc", Password: "x", InsecureIgnoreHostKey: true, ProxyURL: "gopher://p:70"},
			wantErr: "ssh proxy",
		},
		{
			name: "password with known hosts",
			cfg:  SSHConfig{Host: "login1", User: "svc", Password: "x", KnownHostsPath: knownHosts},
		},
		{
			name: "socks5 proxy",
			cfg: SSHConfig{
				Host: "login1", User: "svc", Password: "x", InsecureIgnoreHostKey: true,
				ProxyURL: "socks5://bastion:1080",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewSSHExecutor(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "login1:22", e.addr)
			assert.NoError(t, e.Close())
		})
	}
}
