package overrides

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	tomlparser "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/velcrohq/velcro/pkg/config"
	"github.com/velcrohq/velcro/pkg/logger"
)

// ProjectStore holds per-project include/exclude lists and field overrides,
// loaded from the nearest ancestor .velcro directory. A malformed or missing
// override file degrades to "no project overrides"; loading never fails
// dispatch.
type ProjectStore struct {
	overrides *config.ProjectOverrides
	logger    logger.Logger

	// path is the override file that was loaded, for diagnostics.
	path string
}

// NewProjectStore creates a ProjectStore with no overrides loaded.
func NewProjectStore(log logger.Logger) *ProjectStore {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &ProjectStore{
		overrides: &config.ProjectOverrides{},
		logger:    log,
	}
}

// LoadFrom walks up from startDir looking for the project marker directory
// and loads its override file. The nearest ancestor wins.
func (p *ProjectStore) LoadFrom(startDir string) {
	path := findOverridesFile(startDir)
	if path == "" {
		p.logger.Debug("no project overrides found", "start", startDir)

		return
	}

	p.LoadFile(path)
}

// LoadFile loads a specific override file.
func (p *ProjectStore) LoadFile(path string) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), tomlparser.Parser()); err != nil {
		p.logger.Error("failed to parse project overrides, ignoring",
			"path", path,
			"error", err.Error(),
		)

		return
	}

	var loaded config.ProjectOverrides
	if err := k.Unmarshal("", &loaded); err != nil {
		p.logger.Error("failed to decode project overrides, ignoring",
			"path", path,
			"error", err.Error(),
		)

		return
	}

	p.overrides = &loaded
	p.path = path

	p.logger.Debug("loaded project overrides",
		"path", path,
		"include", len(loaded.Include),
		"exclude", len(loaded.Exclude),
		"field_overrides", len(loaded.Handlers),
	)
}

// Path returns the loaded override file path, or "" when none was found.
func (p *ProjectStore) Path() string {
	return p.path
}

// Effective returns the project-level tri-state for a handler name.
// Exclude takes precedence over include.
func (p *ProjectStore) Effective(handlerName string) State {
	if matchAny(p.overrides.Exclude, handlerName) {
		return StateDisabled
	}

	if matchAny(p.overrides.Include, handlerName) {
		return StateEnabled
	}

	return StateNone
}

// FieldOverride returns the partial field override for a handler, or nil.
func (p *ProjectStore) FieldOverride(handlerName string) *config.HandlerOverride {
	if p.overrides.Handlers == nil {
		return nil
	}

	return p.overrides.Handlers[handlerName]
}

// matchAny reports whether the name matches any entry. Entries may be exact
// names or doublestar globs ("lint-*").
func matchAny(entries []string, name string) bool {
	for _, entry := range entries {
		if entry == name {
			return true
		}

		if ok, err := doublestar.Match(entry, name); err == nil && ok {
			return true
		}
	}

	return false
}

// findOverridesFile walks up from startDir to the filesystem root looking
// for <dir>/.velcro/overrides.toml.
func findOverridesFile(startDir string) string {
	dir := startDir

	for {
		candidate := filepath.Join(dir, config.ProjectConfigDir, config.ProjectOverridesFile)
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
