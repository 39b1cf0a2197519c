package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SlurmMode selects how scheduler commands are executed.
type SlurmMode string

const (
	// SlurmModeLocal runs sbatch and friends on this host.
	SlurmModeLocal SlurmMode = "local"
	// SlurmModeSSH runs them on a login node over SSH.
	SlurmModeSSH SlurmMode = "ssh"
)

// UnmarshalText implements encoding.TextUnmarshaler for SlurmMode.
func (m *SlurmMode) UnmarshalText(text []byte) error {
	v := SlurmMode(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case SlurmModeLocal, SlurmModeSSH:
		*m = v
		return nil
	default:
		return fmt.Errorf("invalid SlurmMode: %q (valid options: local, ssh)", string(text))
	}
}

// SlurmConfig contains scheduler access configuration.
type SlurmConfig struct {
	Mode SlurmMode `env:"MODE" envDefault:"local"`

	SSHHost                  string        `env:"SSH_HOST"`
	SSHPort                  int           `env:"SSH_PORT"                     envDefault:"22"`
	SSHUser                  string        `env:"SSH_USER"`
	SSHKeyPath               string        `env:"SSH_KEY_PATH"`
	SSHKeyPassphrase         string        `env:"SSH_KEY_PASSPHRASE"`
	SSHPassword              string        `env:"SSH_PASSWORD"`
	SSHKnownHosts            string        `env:"SSH_KNOWN_HOSTS"`
	SSHInsecureIgnoreHostKey bool          `env:"SSH_INSECURE_IGNORE_HOST_KEY" envDefault:"false"`
	SSHProxyURL              string        `env:"SSH_PROXY_URL"`
	SSHDialTimeout           time.Duration `env:"SSH_DIAL_TIMEOUT"             envDefault:"10s"`

	// CommandTimeout bounds every sbatch, scancel, squeue, sacct and sinfo call.
	CommandTimeout time.Duration `env:"COMMAND_TIMEOUT" envDefault:"30s"`

	// Timezone of the timestamps printed by sacct and squeue. "Local" uses the host zone.
	Timezone string `env:"TIMEZONE" envDefault:"Local"`

	// QueueFilter is a JMESPath expression applied to the partition list, e.g. "[?state=='up']".
	QueueFilter string `env:"QUEUE_FILTER"`

	// QueueCacheTTL is how long partition listings are cached in Redis.
	QueueCacheTTL time.Duration `env:"QUEUE_CACHE_TTL" envDefault:"30s"`
}

// Sanitize applies guardrails to scheduler configuration values.
func (s *SlurmConfig) Sanitize() {
	if s.Mode == "" {
		s.Mode = SlurmModeLocal
	}
	s.SSHHost = strings.TrimSpace(s.SSHHost)
	s.SSHProxyURL = strings.TrimSpace(s.SSHProxyURL)
	if s.SSHPort <= 0 {
		s.SSHPort = 22
	}
	if s.SSHDialTimeout <= 0 {
		s.SSHDialTimeout = 10 * time.Second
	}
	if s.CommandTimeout < time.Second {
		s.CommandTimeout = time.Second
	}
	if s.Timezone = strings.TrimSpace(s.Timezone); s.Timezone == "" {
		s.Timezone = "Local"
	}
	s.QueueFilter = strings.TrimSpace(s.QueueFilter)
	if s.QueueCacheTTL <= 0 {
		s.QueueCacheTTL = 30 * time.Second
	}
}

// Validate reports settings that make the scheduler unreachable.
func (s *SlurmConfig) Validate() error {
	if _, err := s.Location(); err != nil {
		return err
	}
	if s.Mode != SlurmModeSSH {
		return nil
	}
	if s.SSHHost == "" {
		return errors.New("SLURM_SSH_HOST is required in ssh mode")
	}
	if s.SSHUser == "" {
		return errors.New("SLURM_SSH_USER is required in ssh mode")
	}
	if s.SSHKeyPath == "" && s.SSHPassword == "" {
		return errors.New("SLURM_SSH_KEY_PATH or SLURM_SSH_PASSWORD is required in ssh mode")
	}
	if s.SSHKnownHosts == "" && !s.SSHInsecureIgnoreHostKey {
		return errors.New("SLURM_SSH_KNOWN_HOSTS is required unless SLURM_SSH_INSECURE_IGNORE_HOST_KEY is set")
	}
	return nil
}

// Location resolves Timezone.
func (s *SlurmConfig) Location() (*time.Location, error) {
	if s.Timezone == "" || strings.EqualFold(s.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}
