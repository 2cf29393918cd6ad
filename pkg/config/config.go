package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default file locations, relative to the user's home directory.
const (
	// GlobalConfigDir is the directory name for global configuration.
	GlobalConfigDir = ".velcro"

	// GlobalConfigFile is the name of the global configuration file.
	GlobalConfigFile = "config.toml"

	// ProjectConfigDir is the marker directory for project configuration.
	ProjectConfigDir = ".velcro"

	// ProjectOverridesFile is the project override file name inside the
	// marker directory.
	ProjectOverridesFile = "overrides.toml"
)

// Config is the fully merged Velcro configuration.
type Config struct {
	// Handlers are the global handler definitions, in definition order.
	Handlers []*Handler `json:"handlers,omitempty" koanf:"handlers" toml:"handlers,omitempty"`

	// Packages is the module allow-list available to handlers.
	Packages []PackageConfig `json:"packages,omitempty" koanf:"packages" toml:"packages,omitempty"`

	// Dispatch configures the execution fan-out.
	Dispatch DispatchConfig `json:"dispatch,omitempty" koanf:"dispatch" toml:"dispatch,omitempty"`

	// Log configures diagnostic logging.
	Log LogConfig `json:"log,omitempty" koanf:"log" toml:"log,omitempty"`

	// Session configures the session override store.
	Session SessionConfig `json:"session,omitempty" koanf:"session" toml:"session,omitempty"`

	// Stats configures handler statistics persistence.
	Stats StatsConfig `json:"stats,omitempty" koanf:"stats" toml:"stats,omitempty"`

	// Audit configures the execution audit log.
	Audit AuditConfig `json:"audit,omitempty" koanf:"audit" toml:"audit,omitempty"`
}

// FindHandler returns the handler with the given name, or nil.
func (c *Config) FindHandler(name string) *Handler {
	for _, h := range c.Handlers {
		if h.Name == name {
			return h
		}
	}

	return nil
}

// PackageConfig is one entry of the module allow-list.
type PackageConfig struct {
	// Name is the package name handlers refer to.
	Name string `json:"name" koanf:"name" toml:"name"`

	// Path is the resolved filesystem path for the package.
	Path string `json:"path" koanf:"path" toml:"path"`

	// Version is the installed version, if known.
	Version string `json:"version,omitempty" koanf:"version" toml:"version,omitempty"`

	// Constraint is an optional semver range the installed version must
	// satisfy (e.g. ">=2.0.0 <3").
	Constraint string `json:"constraint,omitempty" koanf:"constraint" toml:"constraint,omitempty"`
}

// DispatchConfig configures concurrent handler execution.
type DispatchConfig struct {
	// MaxConcurrent caps the number of handler invocations in flight for
	// one event. Zero means NumCPU*2.
	MaxConcurrent int `json:"max_concurrent,omitempty" koanf:"max_concurrent" toml:"max_concurrent,omitempty"`
}

// LogConfig configures diagnostic logging.
type LogConfig struct {
	// File is the log file path. Empty disables file logging.
	File string `json:"file,omitempty" koanf:"file" toml:"file,omitempty"`

	// Debug enables info-level logging.
	Debug bool `json:"debug,omitempty" koanf:"debug" toml:"debug,omitempty"`

	// Trace enables debug-level logging.
	Trace bool `json:"trace,omitempty" koanf:"trace" toml:"trace,omitempty"`
}

// SessionConfig configures the session override store.
type SessionConfig struct {
	// StateFile is where session overrides are seeded from between CLI
	// invocations.
	StateFile string `json:"state_file,omitempty" koanf:"state_file" toml:"state_file,omitempty"`

	// MaxAge is how long an idle session's overrides are kept.
	MaxAge time.Duration `json:"max_age,omitempty" koanf:"max_age" toml:"max_age,omitempty"`
}

// StatsConfig configures handler statistics persistence.
type StatsConfig struct {
	// File is the stats file path.
	File string `json:"file,omitempty" koanf:"file" toml:"file,omitempty"`
}

// AuditConfig configures the execution audit log.
type AuditConfig struct {
	// File is the JSONL audit log path. Empty disables auditing.
	File string `json:"file,omitempty" koanf:"file" toml:"file,omitempty"`
}

// ExpandPath expands a leading ~/ against the user's home directory.
func ExpandPath(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}

	return path
}
