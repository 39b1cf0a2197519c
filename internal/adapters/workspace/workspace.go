// Package workspace manages per-job working directories on the shared filesystem.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Options configures a Workspace.
type Options struct {
	Root       string // Required
	DirMode    fs.FileMode
	ScriptMode fs.FileMode
	Logger     *slog.Logger
}

// Workspace lays out job directories as <root>/users/<user>/jobs/<job>.
type Workspace struct {
	root       string
	dirMode    fs.FileMode
	scriptMode fs.FileMode
	logger     *slog.Logger
}

// New creates a Workspace rooted at opts.Root.
func New(opts Options) (*Workspace, error) {
	root := strings.TrimSpace(opts.Root)
	if root == "" {
		return nil, errors.New("workspace root is required")
	}
	if opts.DirMode == 0 {
		opts.DirMode = 0o777
	}
	if opts.ScriptMode == 0 {
		opts.ScriptMode = 0o755
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Workspace{
		root:       filepath.Clean(root),
		dirMode:    opts.DirMode,
		scriptMode: opts.ScriptMode,
		logger:     logger.With("component", "workspace"),
	}, nil
}

// JobDir returns the working directory path for a job without touching the filesystem.
func (w *Workspace) JobDir(userID, jobID string) (string, error) {
	if err := validateSegment("user id", userID); err != nil {
		return "", err
	}
	if err := validateSegment("job id", jobID); err != nil {
		return "", err
	}
	return filepath.Join(w.root, "users", userID, "jobs", jobID), nil
}

// Prepare creates the job's working directory and returns its path.
func (w *Workspace) Prepare(ctx context.Context, userID, jobID string) (string, error) {
	dir, err := w.JobDir(userID, jobID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, w.dirMode); err != nil {
		return "", fmt.Errorf("create job directory: %w", err)
	}
	// MkdirAll is subject to umask; the scheduler runs as the submitting user and needs write access.
	if err := os.Chmod(dir, w.dirMode); err != nil {
		return "", fmt.Errorf("chmod job directory: %w", err)
	}
	w.logger.DebugContext(ctx, "job directory ready", "job_id", jobID, "dir", dir)
	return dir, nil
}

// WriteScript writes content to <dir>/<name> and returns the full path.
func (w *Workspace) WriteScript(ctx context.Context, dir, name, content string) (string, error) {
	if err := validateSegment("script name", name); err != nil {
		return "", err
	}
	if !w.contains(dir) {
		return "", fmt.Errorf("directory %q is outside the workspace root", dir)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), w.scriptMode); err != nil {
		return "", fmt.Errorf("write job script: %w", err)
	}
	if err := os.Chmod(path, w.scriptMode); err != nil {
		return "", fmt.Errorf("chmod job script: %w", err)
	}
	w.logger.DebugContext(ctx, "job script written", "path", path)
	return path, nil
}

func (w *Workspace) contains(dir string) bool {
	rel, err := filepath.Rel(w.root, filepath.Clean(dir))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func validateSegment(field, v string) error {
	switch {
	case strings.TrimSpace(v) == "":
		return fmt.Errorf("%s is required", field)
	case v == "." || v == "..":
		return fmt.Errorf("invalid %s: %q", field, v)
	case strings.ContainsAny(v, `/\`) || strings.ContainsRune(v, 0):
		return fmt.Errorf("invalid %s: %q", field, v)
	default:
		return nil
	}
}
