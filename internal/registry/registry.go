// Package registry maps package names to their definitions and scans the
// packages directory for installed versions.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ZebulonRouseFrantzich/parts/internal/logging"
	"github.com/ZebulonRouseFrantzich/parts/internal/parts"
)

// PackageNotFoundError reports a name with no definition.
type PackageNotFoundError struct {
	Name string
}

func (e *PackageNotFoundError) Error() string {
	return fmt.Sprintf("package not found: %s", e.Name)
}

// DuplicateError reports a second registration under the same name.
type DuplicateError struct {
	Name string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("package already registered: %s", e.Name)
}

// Constructor builds a package on demand.
type Constructor func() parts.Package

// Discoverer finds package definitions that have not been registered yet.
type Discoverer interface {
	// Find returns the package for name, or found == false if none exists.
	Find(ctx context.Context, name string) (pkg parts.Package, found bool, err error)
	// Names lists every name the discoverer can find.
	Names(ctx context.Context) ([]string, error)
}

// Registry is a name-keyed set of package definitions. It is safe for
// concurrent use.
type Registry struct {
	discoverer Discoverer
	logger     logging.Logger

	mu       sync.RWMutex
	packages map[string]Constructor
}

// Option configures a Registry.
type Option func(*Registry)

// WithDiscoverer sets the source consulted for unregistered names.
func WithDiscoverer(d Discoverer) Option {
	return func(r *Registry) { r.discoverer = d }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Registry) { r.logger = logging.OrNop(l) }
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		logger:   logging.Nop(),
		packages: make(map[string]Constructor),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a constructor under name.
func (r *Registry) Register(name string, c Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.packages[name]; exists {
		return &DuplicateError{Name: name}
	}
	r.packages[name] = c
	return nil
}

// RegisterPackage registers an already built package under its own name.
func (r *Registry) RegisterPackage(pkg parts.Package) error {
	return r.Register(pkg.Definition().Name, func() parts.Package { return pkg })
}

// Resolve returns the package for name, consulting the discoverer when the
// name is not registered yet.
func (r *Registry) Resolve(ctx context.Context, name string) (parts.Package, error) {
	if err := r.discover(ctx, name); err != nil {
		return nil, err
	}

	r.mu.RLock()
	c, ok := r.packages[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &PackageNotFoundError{Name: name}
	}
	return c(), nil
}

func (r *Registry) discover(ctx context.Context, name string) error {
	if r.discoverer == nil {
		return nil
	}

	r.mu.RLock()
	_, ok := r.packages[name]
	r.mu.RUnlock()
	if ok {
		return nil
	}

	pkg, found, err := r.discoverer.Find(ctx, name)
	if err != nil {
		return fmt.Errorf("discover %s: %w", name, err)
	}
	if !found {
		return nil
	}

	err = r.RegisterPackage(pkg)
	var dup *DuplicateError
	if errors.As(err, &dup) {
		// Lost a race with another Resolve; the first registration wins.
		return nil
	}
	if err == nil {
		r.logger.Debug("discovered package", "name", name, "version", pkg.Definition().Version)
	}
	return err
}

// DiscoverAll registers every package the discoverer knows about.
func (r *Registry) DiscoverAll(ctx context.Context) error {
	if r.discoverer == nil {
		return nil
	}
	names, err := r.discoverer.Names(ctx)
	if err != nil {
		return fmt.Errorf("list definitions: %w", err)
	}
	for _, name := range names {
		if err := r.discover(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.packages))
	for name := range r.packages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dependency returns the definition of another package. Build hooks use it
// to find a sibling's paths.
func (r *Registry) Dependency(ctx context.Context, name string) (parts.Definition, error) {
	pkg, err := r.Resolve(ctx, name)
	if err != nil {
		return parts.Definition{}, err
	}
	return pkg.Definition(), nil
}

// Installed scans packagesDir and returns, for every package name with at
// least one non-empty version directory, its sorted versions. It reflects
// the disk, not the registry. A missing packagesDir has nothing installed.
func Installed(packagesDir string) (map[string][]string, error) {
	installed := make(map[string][]string)

	names, err := os.ReadDir(packagesDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return installed, nil
		}
		return nil, fmt.Errorf("read packages: %w", err)
	}

	for _, name := range names {
		if !name.IsDir() {
			continue
		}
		versions, err := installedVersions(filepath.Join(packagesDir, name.Name()))
		if err != nil {
			return nil, err
		}
		if len(versions) > 0 {
			installed[name.Name()] = versions
		}
	}
	return installed, nil
}

// IsInstalled reports whether any version of name is installed.
func IsInstalled(packagesDir, name string) (bool, error) {
	versions, err := installedVersions(filepath.Join(packagesDir, name))
	if err != nil {
		return false, err
	}
	return len(versions) > 0, nil
}

func installedVersions(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var versions []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		contents, err := os.ReadDir(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		if len(contents) > 0 {
			versions = append(versions, entry.Name())
		}
	}
	sort.Strings(versions)
	return versions, nil
}
