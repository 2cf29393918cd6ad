package overrides

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/velcrohq/velcro/pkg/config"
)

// File permission constants.
const (
	// stateFilePermissions is the permission mode for the state file.
	stateFilePermissions = 0o600

	// stateDirPermissions is the permission mode for the state directory.
	stateDirPermissions = 0o700
)

// sessionState is the on-disk shape of the store. The store itself is
// in-memory; this file only lets the session CLI seed overrides into the
// next dispatch and carries no durability guarantee.
type sessionState struct {
	Sessions map[string]*sessionEntry `json:"sessions"`
}

// Load replaces the store contents from the state file. A missing or
// malformed file degrades to an empty store, never an error surfaced to
// dispatch.
func (s *SessionStore) Load(path string) error {
	path = config.ExpandPath(path)

	data, err := os.ReadFile(path) //nolint:gosec // path comes from config
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug("session state file does not exist, using fresh state",
				"path", path,
			)

			return nil
		}

		return errors.Wrap(err, "reading session state file")
	}

	var state sessionState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Debug("failed to parse session state file, using fresh state",
			"path", path,
			"error", err.Error(),
		)

		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[string]*sessionEntry, len(state.Sessions))

	for id, entry := range state.Sessions {
		if entry == nil || s.expired(entry) {
			continue
		}

		if entry.Enabled == nil {
			entry.Enabled = make(map[string]struct{})
		}

		if entry.Disabled == nil {
			entry.Disabled = make(map[string]struct{})
		}

		s.sessions[id] = entry
	}

	return nil
}

// Save persists the store to the state file via temp-file rename so a
// concurrent reader never sees a partial write.
func (s *SessionStore) Save(path string) error {
	path = config.ExpandPath(path)

	s.mu.RLock()
	state := sessionState{Sessions: s.sessions}
	data, err := json.MarshalIndent(state, "", "  ")
	s.mu.RUnlock()

	if err != nil {
		return errors.Wrap(err, "marshaling session state")
	}

	if err := os.MkdirAll(filepath.Dir(path), stateDirPermissions); err != nil {
		return errors.Wrap(err, "creating session state directory")
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, stateFilePermissions); err != nil {
		return errors.Wrap(err, "writing temp session state file")
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)

		return errors.Wrap(err, "renaming session state file")
	}

	return nil
}
