// Package overrides provides the session and project override stores that
// layer on top of global handler definitions.
package overrides

import (
	"sync"
	"time"

	"github.com/velcrohq/velcro/pkg/logger"
)

// defaultMaxSessionAge is how long an idle session's overrides are kept
// before pruning.
const defaultMaxSessionAge = 24 * time.Hour

// State is the tri-state answer of an override lookup.
type State int

const (
	// StateNone means no override exists for the handler.
	StateNone State = iota

	// StateEnabled means the handler is force-enabled.
	StateEnabled

	// StateDisabled means the handler is force-disabled.
	StateDisabled
)

// String returns a readable form of the state.
func (s State) String() string {
	switch s {
	case StateEnabled:
		return "enabled"
	case StateDisabled:
		return "disabled"
	default:
		return "none"
	}
}

// sessionEntry holds the two override sets for one session. A handler name
// never appears in both: Set removes it from the opposite set first.
type sessionEntry struct {
	Enabled      map[string]struct{} `json:"enabled"`
	Disabled     map[string]struct{} `json:"disabled"`
	LastActivity time.Time           `json:"last_activity"`
}

func newSessionEntry() *sessionEntry {
	return &sessionEntry{
		Enabled:  make(map[string]struct{}),
		Disabled: make(map[string]struct{}),
	}
}

// SessionStore holds ephemeral per-session enable/disable flags, keyed by
// session id. State lives in memory and is pruned by age; there is no
// cross-restart durability guarantee.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	maxAge   time.Duration
	logger   logger.Logger

	// now is swapped in tests to control time.
	now func() time.Time
}

// SessionStoreOption configures the SessionStore.
type SessionStoreOption func(*SessionStore)

// WithSessionLogger sets the logger.
func WithSessionLogger(log logger.Logger) SessionStoreOption {
	return func(s *SessionStore) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithMaxAge sets a custom maximum session age.
func WithMaxAge(d time.Duration) SessionStoreOption {
	return func(s *SessionStore) {
		if d > 0 {
			s.maxAge = d
		}
	}
}

// WithTimeFunc sets a custom time function for testing.
func WithTimeFunc(fn func() time.Time) SessionStoreOption {
	return func(s *SessionStore) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore(opts ...SessionStoreOption) *SessionStore {
	s := &SessionStore{
		sessions: make(map[string]*sessionEntry),
		maxAge:   defaultMaxSessionAge,
		logger:   logger.NewNoOpLogger(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Set records an override for (session, handler). Enabling clears a prior
// disable and vice versa; last write wins.
func (s *SessionStore) Set(sessionID, handlerName string, enabled bool) {
	if sessionID == "" || handlerName == "" {
		s.logger.Debug("ignoring session override with empty key",
			"session", sessionID,
			"handler", handlerName,
		)

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[sessionID]
	if !ok {
		entry = newSessionEntry()
		s.sessions[sessionID] = entry
	}

	if enabled {
		delete(entry.Disabled, handlerName)
		entry.Enabled[handlerName] = struct{}{}
	} else {
		delete(entry.Enabled, handlerName)
		entry.Disabled[handlerName] = struct{}{}
	}

	entry.LastActivity = s.now()
}

// Clear removes any override for (session, handler).
func (s *SessionStore) Clear(sessionID, handlerName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[sessionID]
	if !ok {
		return
	}

	delete(entry.Enabled, handlerName)
	delete(entry.Disabled, handlerName)
	entry.LastActivity = s.now()
}

// Get returns the override state for (session, handler).
func (s *SessionStore) Get(sessionID, handlerName string) State {
	if sessionID == "" {
		return StateNone
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.sessions[sessionID]
	if !ok || s.expired(entry) {
		return StateNone
	}

	if _, ok := entry.Enabled[handlerName]; ok {
		return StateEnabled
	}

	if _, ok := entry.Disabled[handlerName]; ok {
		return StateDisabled
	}

	return StateNone
}

// Prune removes sessions idle longer than the maximum age and returns how
// many were dropped.
func (s *SessionStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0

	for id, entry := range s.sessions {
		if s.expired(entry) {
			delete(s.sessions, id)

			dropped++
		}
	}

	if dropped > 0 {
		s.logger.Debug("pruned expired session overrides", "count", dropped)
	}

	return dropped
}

// expired reports whether an entry is past the maximum age.
func (s *SessionStore) expired(entry *sessionEntry) bool {
	return s.now().Sub(entry.LastActivity) > s.maxAge
}
