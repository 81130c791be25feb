package loader

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/km-arc/go-deptrac/framework/container"
)

var (
	// ErrNoLoader is returned when no registered loader supports a resource.
	ErrNoLoader = errors.New("cannot find a loader")
	// ErrImportCycle is returned when a file imports itself, directly or not.
	ErrImportCycle = errors.New("import cycle")
)

// Loader reads one kind of resource into a container.
type Loader interface {
	Supports(resource string) bool
	Load(c *container.Container, resource string) error
}

// Resolver picks the first loader that supports a resource.
type Resolver struct {
	loaders []Loader
}

// NewResolver returns a resolver trying loaders in order.
func NewResolver(loaders ...Loader) *Resolver {
	return &Resolver{loaders: loaders}
}

// Add appends a loader.
func (r *Resolver) Add(l Loader) {
	r.loaders = append(r.loaders, l)
}

// Resolve returns the loader for resource.
func (r *Resolver) Resolve(resource string) (Loader, bool) {
	for _, l := range r.loaders {
		if l.Supports(resource) {
			return l, true
		}
	}
	return nil, false
}

// DelegatingLoader hands each resource to the loader its Resolver picks.
// File loaders created by New import through it, so an import may be any
// format the delegating loader understands.
type DelegatingLoader struct {
	resolver *Resolver
	stack    *loadStack
}

// NewDelegatingLoader wires r's file loaders to import through the returned
// loader and share one cycle detector.
func NewDelegatingLoader(r *Resolver) *DelegatingLoader {
	d := &DelegatingLoader{resolver: r, stack: &loadStack{}}
	for _, l := range r.loaders {
		if fl, ok := l.(*FileLoader); ok {
			fl.parent = d
			fl.stack = d.stack
		}
	}
	return d
}

// New returns the default delegating loader: YAML, TOML and HCL files plus
// the built-in resources of providers (which may be nil).
func New(locator *FileLocator, providers *container.ProviderRegistry, logger *slog.Logger) *DelegatingLoader {
	r := NewResolver(
		NewYAMLLoader(locator, logger),
		NewTOMLLoader(locator, logger),
		NewHCLLoader(locator, logger),
	)
	if providers != nil {
		r.Add(NewProviderLoader(providers))
	}
	return NewDelegatingLoader(r)
}

// Supports reports whether any registered loader supports resource.
func (d *DelegatingLoader) Supports(resource string) bool {
	_, ok := d.resolver.Resolve(resource)
	return ok
}

// Load delegates to the loader supporting resource.
func (d *DelegatingLoader) Load(c *container.Container, resource string) error {
	l, ok := d.resolver.Resolve(resource)
	if !ok {
		return fmt.Errorf("%w for %q", ErrNoLoader, resource)
	}
	return l.Load(c, resource)
}

type loadStack struct {
	files []string
}

func (s *loadStack) push(file string) error {
	for _, f := range s.files {
		if f == file {
			chain := append(append([]string(nil), s.files...), file)
			for i := range chain {
				chain[i] = filepath.Base(chain[i])
			}
			return fmt.Errorf("%w: %s", ErrImportCycle, strings.Join(chain, " -> "))
		}
	}
	s.files = append(s.files, file)
	return nil
}

func (s *loadStack) pop() {
	s.files = s.files[:len(s.files)-1]
}

// ProviderLoader loads the built-in resources named in a ProviderRegistry.
type ProviderLoader struct {
	providers *container.ProviderRegistry
}

// NewProviderLoader returns a loader for the names in providers.
func NewProviderLoader(providers *container.ProviderRegistry) *ProviderLoader {
	return &ProviderLoader{providers: providers}
}

// Supports reports whether resource names a registered provider group.
func (l *ProviderLoader) Supports(resource string) bool {
	return l.providers.Has(resource)
}

// Load registers every provider of the named group.
func (l *ProviderLoader) Load(c *container.Container, resource string) error {
	return l.providers.Load(c, resource)
}
