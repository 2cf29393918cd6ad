package stats

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/velcrohq/velcro/pkg/config"
)

// File permission constants.
const (
	// statsFilePermissions is the permission mode for the stats file.
	statsFilePermissions = 0o600

	// statsDirPermissions is the permission mode for the stats directory.
	statsDirPermissions = 0o700
)

// Load replaces the in-memory map from the stats file. A missing or
// malformed file degrades to an empty map.
func (r *Recorder) Load() error {
	if r.file == "" {
		return nil
	}

	path := config.ExpandPath(r.file)

	data, err := os.ReadFile(path) //nolint:gosec // path comes from config
	if err != nil {
		if os.IsNotExist(err) {
			r.logger.Debug("stats file does not exist, starting fresh", "path", path)

			return nil
		}

		return errors.Wrap(err, "reading stats file")
	}

	var loaded map[string]*HandlerStats
	if err := json.Unmarshal(data, &loaded); err != nil {
		r.logger.Debug("failed to parse stats file, starting fresh",
			"path", path,
			"error", err.Error(),
		)

		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats = loaded
	if r.stats == nil {
		r.stats = make(map[string]*HandlerStats)
	}

	return nil
}

// saveLocked persists the map via temp-file rename. Must be called with mu
// held.
func (r *Recorder) saveLocked() error {
	if r.file == "" {
		return nil
	}

	path := config.ExpandPath(r.file)

	data, err := json.MarshalIndent(r.stats, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling stats")
	}

	if err := os.MkdirAll(filepath.Dir(path), statsDirPermissions); err != nil {
		return errors.Wrap(err, "creating stats directory")
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, statsFilePermissions); err != nil {
		return errors.Wrap(err, "writing temp stats file")
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)

		return errors.Wrap(err, "renaming stats file")
	}

	return nil
}
