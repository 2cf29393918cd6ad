// Package modules provides the capability-scoped package path resolver that
// restricts which modules handler code may load. Handler subprocesses only
// ever see the precomputed allow-list, never an unrestricted loader.
package modules

import (
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"

	"github.com/velcrohq/velcro/pkg/config"
	"github.com/velcrohq/velcro/pkg/logger"
)

var (
	// ErrPackageNotFound is returned when a package is not in the
	// allow-list.
	ErrPackageNotFound = errors.New("package not found in allow-list")

	// ErrVersionConstraint is returned when the installed version violates
	// the configured constraint.
	ErrVersionConstraint = errors.New("package version violates constraint")
)

// Resolver maps package names to resolved filesystem paths. The table is
// built once, before any handler invocation.
type Resolver struct {
	table  map[string]config.PackageConfig
	logger logger.Logger
}

// NewResolver builds a Resolver from the configured allow-list.
func NewResolver(packages []config.PackageConfig, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	table := make(map[string]config.PackageConfig, len(packages))
	for _, pkg := range packages {
		table[pkg.Name] = pkg
	}

	return &Resolver{
		table:  table,
		logger: log,
	}
}

// Resolve returns the path for a package, or an error when the package is
// absent from the allow-list or fails its version constraint. handlerName is
// recorded for diagnostics only.
func (r *Resolver) Resolve(name, handlerName string) (string, error) {
	pkg, ok := r.table[name]
	if !ok {
		r.logger.Debug("package resolution failed",
			"package", name,
			"handler", handlerName,
		)

		return "", errors.Wrapf(ErrPackageNotFound, "%q (handler %q)", name, handlerName)
	}

	if err := checkConstraint(pkg); err != nil {
		return "", err
	}

	return pkg.Path, nil
}

// Verify checks that every named package resolves. Used before subprocess
// execution so a handler with unsatisfied requirements fails fast.
func (r *Resolver) Verify(names []string, handlerName string) error {
	for _, name := range names {
		if _, err := r.Resolve(name, handlerName); err != nil {
			return err
		}
	}

	return nil
}

// AllowedPaths returns every allow-listed path in deterministic order, for
// export to subprocess handlers.
func (r *Resolver) AllowedPaths() []string {
	paths := make([]string, 0, len(r.table))
	for _, pkg := range r.table {
		if pkg.Path != "" {
			paths = append(paths, pkg.Path)
		}
	}

	sort.Strings(paths)

	return paths
}

// checkConstraint validates the installed version against the configured
// semver range. Entries without a constraint or version always pass.
func checkConstraint(pkg config.PackageConfig) error {
	if pkg.Constraint == "" || pkg.Version == "" {
		return nil
	}

	constraint, err := semver.NewConstraint(pkg.Constraint)
	if err != nil {
		return errors.Wrapf(err, "invalid constraint for package %q", pkg.Name)
	}

	version, err := semver.NewVersion(pkg.Version)
	if err != nil {
		return errors.Wrapf(err, "invalid version for package %q", pkg.Name)
	}

	if !constraint.Check(version) {
		return errors.Wrapf(ErrVersionConstraint,
			"package %q: %s does not satisfy %s", pkg.Name, pkg.Version, pkg.Constraint)
	}

	return nil
}
