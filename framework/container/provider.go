package container

import (
	"fmt"
	"sort"
)

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider registers a group of definitions, parameters and passes.
// Providers are the Go counterpart of a built-in configuration file: they
// ship with the binary and are looked up by name from a ProviderRegistry.
//
//	type CacheServices struct{ container.BaseProvider }
//
//	func (CacheServices) Register(c *container.Container) error {
//	    c.Register("ast_cache", "AstFileReferenceFileCache").Arguments = []any{"%cache_file%"}
//	    return nil
//	}
type ServiceProvider interface {
	// Register binds services into the container. It runs before Compile,
	// so parameters may still hold placeholders.
	Register(c *Container) error

	// Provides lists the service ids the provider registers, for diagnostics.
	Provides() []string
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is embeddable and supplies a no-op Provides.
type BaseProvider struct{}

func (BaseProvider) Provides() []string { return nil }

// ProviderFunc adapts a function to ServiceProvider.
type ProviderFunc func(c *Container) error

func (f ProviderFunc) Register(c *Container) error { return f(c) }
func (ProviderFunc) Provides() []string            { return nil }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry maps resource names ("services", "cache", ...) to the
// providers that implement them.
type ProviderRegistry struct {
	providers map[string][]ServiceProvider
}

// NewProviderRegistry creates an empty registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{providers: make(map[string][]ServiceProvider)}
}

// Add appends provider to the named resource. Adding the same provider value
// twice under one name is ignored.
func (r *ProviderRegistry) Add(name string, provider ServiceProvider) *ProviderRegistry {
	for _, p := range r.providers[name] {
		if sameProvider(p, provider) {
			return r
		}
	}
	r.providers[name] = append(r.providers[name], provider)
	return r
}

// Has reports whether anything is registered under name.
func (r *ProviderRegistry) Has(name string) bool {
	return len(r.providers[name]) > 0
}

// Names returns the registered resource names, sorted.
func (r *ProviderRegistry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Providers returns the providers registered under name, in order.
func (r *ProviderRegistry) Providers(name string) []ServiceProvider {
	return append([]ServiceProvider(nil), r.providers[name]...)
}

// Load runs every provider registered under name against c. A compiled
// container is rejected with ErrFrozen before any provider runs.
func (r *ProviderRegistry) Load(c *Container, name string) error {
	providers, ok := r.providers[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrProviderNotFound, name)
	}
	if c.IsCompiled() {
		return fmt.Errorf("loading %q: %w", name, ErrFrozen)
	}
	for _, p := range providers {
		if err := p.Register(c); err != nil {
			return fmt.Errorf("provider %T: %w", p, err)
		}
	}
	return nil
}

// sameProvider compares comparable providers; funcs and other uncomparable
// values never count as duplicates.
func sameProvider(a, b ServiceProvider) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
