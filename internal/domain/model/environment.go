package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// EnvironmentKind selects how a job's runtime environment is prepared.
type EnvironmentKind string

const (
	// EnvironmentModules loads environment modules.
	EnvironmentModules EnvironmentKind = "MODULES"
	// EnvironmentConda activates a conda environment.
	EnvironmentConda EnvironmentKind = "CONDA"
	// EnvironmentContainer runs the command inside a Singularity image.
	EnvironmentContainer EnvironmentKind = "CONTAINER"
	// EnvironmentRaw injects shell commands verbatim.
	EnvironmentRaw EnvironmentKind = "RAW"
)

// ModulesEnv lists modules to load, in order.
type ModulesEnv struct {
	Modules []string `json:"modules"`
}

// Validate checks the module list.
func (m ModulesEnv) Validate() error {
	for i, mod := range m.Modules {
		if strings.TrimSpace(mod) == "" {
			return fmt.Errorf("modules[%d] is empty", i)
		}
	}
	return nil
}

// CondaEnv names the conda environment to activate.
type CondaEnv struct {
	EnvName string `json:"envName"`
}

// Validate checks the conda environment name.
func (c CondaEnv) Validate() error {
	if strings.TrimSpace(c.EnvName) == "" {
		return errors.New("envName is required")
	}
	return nil
}

// ContainerEnv names the image and optional bind paths.
type ContainerEnv struct {
	Image     string `json:"image"`
	BindPaths string `json:"bindPaths,omitempty"`
}

// Validate checks the container image.
func (c ContainerEnv) Validate() error {
	if strings.TrimSpace(c.Image) == "" {
		return errors.New("image is required")
	}
	return nil
}

// RawEnv holds shell commands injected before the job command.
type RawEnv struct {
	Commands string `json:"commands,omitempty"`
}

// Validate always succeeds; an empty raw block is allowed.
func (RawEnv) Validate() error { return nil }

// Environment is a closed tagged union over the supported environment kinds.
// Exactly one payload pointer matching Kind is set.
type Environment struct {
	Kind      EnvironmentKind
	Modules   *ModulesEnv
	Conda     *CondaEnv
	Container *ContainerEnv
	Raw       *RawEnv
}

// NewModulesEnvironment builds a MODULES environment.
func NewModulesEnvironment(modules ...string) Environment {
	return Environment{Kind: EnvironmentModules, Modules: &ModulesEnv{Modules: modules}}
}

// NewCondaEnvironment builds a CONDA environment.
func NewCondaEnvironment(name string) Environment {
	return Environment{Kind: EnvironmentConda, Conda: &CondaEnv{EnvName: name}}
}

// NewContainerEnvironment builds a CONTAINER environment.
func NewContainerEnvironment(image, bindPaths string) Environment {
	return Environment{Kind: EnvironmentContainer, Container: &ContainerEnv{Image: image, BindPaths: bindPaths}}
}

// NewRawEnvironment builds a RAW environment.
func NewRawEnvironment(commands string) Environment {
	return Environment{Kind: EnvironmentRaw, Raw: &RawEnv{Commands: commands}}
}

// Validate checks that the payload matches Kind and is itself valid.
func (e Environment) Validate() error {
	switch e.Kind {
	case EnvironmentModules:
		if e.Modules == nil {
			return errors.New("modules config is required")
		}
		return e.Modules.Validate()
	case EnvironmentConda:
		if e.Conda == nil {
			return errors.New("conda config is required")
		}
		return e.Conda.Validate()
	case EnvironmentContainer:
		if e.Container == nil {
			return errors.New("container config is required")
		}
		return e.Container.Validate()
	case EnvironmentRaw:
		if e.Raw == nil {
			return errors.New("raw config is required")
		}
		return e.Raw.Validate()
	case "":
		return errors.New("kind is required")
	default:
		return fmt.Errorf("unknown environment kind: %q", e.Kind)
	}
}

type environmentJSON struct {
	Kind   EnvironmentKind `json:"kind"`
	Config json.RawMessage `json:"config,omitempty"`
}

// MarshalJSON encodes the environment as {"kind": ..., "config": {...}}.
func (e Environment) MarshalJSON() ([]byte, error) {
	var payload any
	switch e.Kind {
	case EnvironmentModules:
		payload = e.Modules
	case EnvironmentConda:
		payload = e.Conda
	case EnvironmentContainer:
		payload = e.Container
	case EnvironmentRaw:
		payload = e.Raw
	case "":
		return []byte("null"), nil
	default:
		return nil, fmt.Errorf("unknown environment kind: %q", e.Kind)
	}
	cfg, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(environmentJSON{Kind: e.Kind, Config: cfg})
}

// UnmarshalJSON decodes {"kind": ..., "config": {...}} into the matching payload.
func (e *Environment) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*e = Environment{}
		return nil
	}
	var raw environmentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	kind := EnvironmentKind(strings.ToUpper(strings.TrimSpace(string(raw.Kind))))
	cfg := raw.Config
	if len(cfg) == 0 {
		cfg = []byte("{}")
	}

	out := Environment{Kind: kind}
	var err error
	switch kind {
	case EnvironmentModules:
		out.Modules = &ModulesEnv{}
		err = json.Unmarshal(cfg, out.Modules)
	case EnvironmentConda:
		out.Conda = &CondaEnv{}
		err = json.Unmarshal(cfg, out.Conda)
	case EnvironmentContainer:
		out.Container = &ContainerEnv{}
		err = json.Unmarshal(cfg, out.Container)
	case EnvironmentRaw:
		out.Raw = &RawEnv{}
		err = json.Unmarshal(cfg, out.Raw)
	default:
		return fmt.Errorf("unknown environment kind: %q", raw.Kind)
	}
	if err != nil {
		return fmt.Errorf("decode %s config: %w", kind, err)
	}
	*e = out
	return nil
}

// Value implements driver.Valuer so the environment is stored as JSONB.
func (e Environment) Value() (driver.Value, error) {
	b, err := e.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSONB columns.
func (e *Environment) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*e = Environment{}
		return nil
	case []byte:
		return e.UnmarshalJSON(v)
	case string:
		return e.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("cannot scan %T into Environment", src)
	}
}
