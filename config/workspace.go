package config

import (
	"fmt"
	"io/fs"
	"strconv"
	"strings"
)

// FileMode is an octal permission string such as "0777".
type FileMode fs.FileMode

// UnmarshalText implements encoding.TextUnmarshaler for FileMode.
func (m *FileMode) UnmarshalText(text []byte) error {
	v, err := strconv.ParseUint(strings.TrimSpace(string(text)), 8, 32)
	if err != nil || v > 0o7777 {
		return fmt.Errorf("invalid file mode: %q", string(text))
	}
	*m = FileMode(v)
	return nil
}

// WorkspaceConfig describes the shared filesystem that holds job directories.
type WorkspaceConfig struct {
	// Root must be visible at the same path on the API host and the compute nodes.
	Root       string   `env:"WORKSPACE_ROOT"        envDefault:"/shared/hpc-portal"`
	DirMode    FileMode `env:"WORKSPACE_DIR_MODE"    envDefault:"0777"`
	ScriptMode FileMode `env:"WORKSPACE_SCRIPT_MODE" envDefault:"0755"`
}

// Sanitize applies guardrails to workspace configuration values.
func (w *WorkspaceConfig) Sanitize() {
	if w.Root = strings.TrimSpace(w.Root); w.Root == "" {
		w.Root = "/shared/hpc-portal"
	}
	if w.DirMode == 0 {
		w.DirMode = 0o777
	}
	if w.ScriptMode == 0 {
		w.ScriptMode = 0o755
	}
}
