// Package config provides multi-source configuration loading for Velcro.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	tomlparser "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/velcrohq/velcro/pkg/config"
)

// ErrInvalidTOML is returned when a configuration file cannot be parsed.
var ErrInvalidTOML = errors.New("invalid TOML")

// envPrefix is the prefix for environment variable configuration.
const envPrefix = "VELCRO_"

// Default configuration values.
const (
	defaultSessionStateFile = "~/.velcro/session_state.json"
	defaultSessionMaxAge    = "24h"
	defaultStatsFile        = "~/.velcro/stats.json"
	defaultLogFile          = "~/.velcro/velcro.log"
)

// Loader loads configuration from multiple sources using koanf.
// Precedence order (highest to lowest):
//  1. Environment variables (VELCRO_*)
//  2. Project config (.velcro/config.toml)
//  3. Global config (~/.velcro/config.toml)
//  4. Defaults
type Loader struct {
	k       *koanf.Koanf
	homeDir string
	workDir string

	// globalPath, when set, replaces the default global config location.
	globalPath string
}

// NewLoader creates a Loader rooted at the user's home and working
// directories.
func NewLoader() (*Loader, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get home directory")
	}

	workDir, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get working directory")
	}

	return NewLoaderWithDirs(homeDir, workDir), nil
}

// NewLoaderWithDirs creates a Loader with custom directories (for testing).
func NewLoaderWithDirs(homeDir, workDir string) *Loader {
	return &Loader{
		k:       koanf.New("."),
		homeDir: homeDir,
		workDir: workDir,
	}
}

// GlobalConfigPath returns the global configuration file path.
func (l *Loader) GlobalConfigPath() string {
	if l.globalPath != "" {
		return l.globalPath
	}

	return filepath.Join(l.homeDir, config.GlobalConfigDir, config.GlobalConfigFile)
}

// SetGlobalConfigPath replaces the default global config location, for the
// --config flag.
func (l *Loader) SetGlobalConfigPath(path string) {
	l.globalPath = path
}

// Load loads configuration from all sources with precedence and validates
// every handler definition. A definition violating the payload invariant is
// a configuration error surfaced immediately, never retried.
func (l *Loader) Load() (*config.Config, error) {
	// Fresh koanf instance per load.
	l.k = koanf.New(".")

	if err := l.k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load defaults")
	}

	// Global handler definitions come first; project definitions append
	// after them, preserving definition order across both sources.
	var handlers []*config.Handler

	globalPath := l.GlobalConfigPath()
	if err := l.loadTOMLFile(globalPath); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to load global config")
	} else if err == nil {
		handlers = append(handlers, l.extractHandlers("global")...)
	}

	projectPath := l.findProjectConfig()
	if projectPath != "" {
		if err := l.loadTOMLFile(projectPath); err != nil {
			return nil, errors.Wrap(err, "failed to load project config")
		}

		handlers = appendHandlers(handlers, l.extractHandlers("project"))
	}

	envOpt := env.Opt{
		Prefix:        envPrefix,
		TransformFunc: envTransform,
	}

	if err := l.k.Load(env.Provider(".", envOpt), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load env vars")
	}

	var cfg config.Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	cfg.Handlers = handlers

	for _, h := range cfg.Handlers {
		if err := h.Validate(); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// loadTOMLFile loads one TOML file into the koanf state.
func (l *Loader) loadTOMLFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}

	if err := l.k.Load(file.Provider(path), tomlparser.Parser()); err != nil {
		return errors.Wrapf(ErrInvalidTOML, "%s: %v", path, err)
	}

	return nil
}

// extractHandlers unmarshals the handler tables loaded so far and tags their
// provenance, then clears them from the koanf state so the next source
// starts clean.
func (l *Loader) extractHandlers(source string) []*config.Handler {
	var handlers []*config.Handler

	if err := l.k.Unmarshal("handlers", &handlers); err != nil {
		return nil
	}

	l.k.Delete("handlers")

	for _, h := range handlers {
		h.Source = source
	}

	return handlers
}

// appendHandlers appends project handlers, letting a project definition with
// the same name replace the global one in place.
func appendHandlers(global, project []*config.Handler) []*config.Handler {
	merged := global

	for _, p := range project {
		replaced := false

		for i, g := range merged {
			if g.Name == p.Name {
				merged[i] = p
				replaced = true

				break
			}
		}

		if !replaced {
			merged = append(merged, p)
		}
	}

	return merged
}

// findProjectConfig walks up from the working directory looking for the
// project marker.
func (l *Loader) findProjectConfig() string {
	dir := l.workDir

	for {
		candidate := filepath.Join(dir, config.ProjectConfigDir, config.GlobalConfigFile)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}

		dir = parent
	}
}

// envTransform maps VELCRO_LOG_DEBUG to log.debug and so on. Only the first
// underscore becomes a separator; the rest of the key is preserved.
func envTransform(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	key = strings.Replace(key, "_", ".", 1)

	return key, value
}

// defaults returns the lowest-priority configuration values.
func defaults() map[string]any {
	return map[string]any{
		"log.file":           defaultLogFile,
		"session.state_file": defaultSessionStateFile,
		"session.max_age":    defaultSessionMaxAge,
		"stats.file":         defaultStatsFile,
	}
}
