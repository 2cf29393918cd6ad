package config

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"

	"github.com/velcrohq/velcro/pkg/config"
)

// File permission constants.
const (
	// configFilePermissions is the permission mode for config files.
	configFilePermissions = 0o600

	// configDirPermissions is the permission mode for config directories.
	configDirPermissions = 0o700
)

var (
	// ErrHandlerExists is returned when adding a handler whose name is
	// already taken.
	ErrHandlerExists = errors.New("handler already exists")

	// ErrHandlerNotFound is returned when the named handler does not
	// exist.
	ErrHandlerNotFound = errors.New("handler not found")
)

// Writer persists handler definition changes to the global config file. Only
// the CLI mutates definitions; the dispatch core reads them.
type Writer struct {
	path string
}

// NewWriter creates a Writer for the given config file path.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// writtenConfig is the on-disk shape the writer manages: the full config
// schema, round-tripped through go-toml.
type writtenConfig = config.Config

// AddHandler validates and appends a handler definition.
func (w *Writer) AddHandler(h *config.Handler) error {
	if err := h.Validate(); err != nil {
		return err
	}

	cfg, err := w.read()
	if err != nil {
		return err
	}

	for _, existing := range cfg.Handlers {
		if existing.Name == h.Name {
			return errors.Wrapf(ErrHandlerExists, "%q", h.Name)
		}
	}

	cfg.Handlers = append(cfg.Handlers, h)

	return w.write(cfg)
}

// RemoveHandler deletes a handler definition by name.
func (w *Writer) RemoveHandler(name string) error {
	cfg, err := w.read()
	if err != nil {
		return err
	}

	kept := cfg.Handlers[:0]
	found := false

	for _, h := range cfg.Handlers {
		if h.Name == name {
			found = true

			continue
		}

		kept = append(kept, h)
	}

	if !found {
		return errors.Wrapf(ErrHandlerNotFound, "%q", name)
	}

	cfg.Handlers = kept

	return w.write(cfg)
}

// SetHandlerDisabled flips a handler's global enabled flag.
func (w *Writer) SetHandlerDisabled(name string, disabled bool) error {
	cfg, err := w.read()
	if err != nil {
		return err
	}

	for _, h := range cfg.Handlers {
		if h.Name == name {
			h.Disabled = disabled

			return w.write(cfg)
		}
	}

	return errors.Wrapf(ErrHandlerNotFound, "%q", name)
}

// read loads the current config file, tolerating a missing file.
func (w *Writer) read() (*writtenConfig, error) {
	cfg := &writtenConfig{}

	data, err := os.ReadFile(w.path) //nolint:gosec // path comes from config
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}

		return nil, errors.Wrap(err, "reading config file")
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config file")
	}

	return cfg, nil
}

// write marshals and atomically replaces the config file.
func (w *Writer) write(cfg *writtenConfig) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshaling config")
	}

	if err := os.MkdirAll(filepath.Dir(w.path), configDirPermissions); err != nil {
		return errors.Wrap(err, "creating config directory")
	}

	tmpPath := w.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, configFilePermissions); err != nil {
		return errors.Wrap(err, "writing temp config file")
	}

	if err := os.Rename(tmpPath, w.path); err != nil {
		_ = os.Remove(tmpPath)

		return errors.Wrap(err, "renaming config file")
	}

	return nil
}
