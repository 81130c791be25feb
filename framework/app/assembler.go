package app

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/km-arc/go-deptrac/framework/container"
	"github.com/km-arc/go-deptrac/framework/providers"
)

// Assembler builds the deptrac container for one working directory.
//
// Build runs the stages in a fixed order: core passes and the deptrac
// extension, built-in services, the optional configuration file, the cache
// decision with its optional clear and load, then Compile. Any failure
// aborts the build and no container is returned.
type Assembler struct {
	workingDir       string
	configFile       string
	logger           *slog.Logger
	providers        *container.ProviderRegistry
	defaultCacheFile string
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the logger for stage tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) { a.logger = logger }
}

// WithProviders replaces the built-in resources ("services", "cache").
func WithProviders(registry *container.ProviderRegistry) Option {
	return func(a *Assembler) { a.providers = registry }
}

// WithDefaultCacheFile changes the cache file name used when nothing else
// decides it.
func WithDefaultCacheFile(name string) Option {
	return func(a *Assembler) { a.defaultCacheFile = name }
}

// NewAssembler returns an assembler rooted at workingDir, which must be absolute.
func NewAssembler(workingDir string, opts ...Option) (*Assembler, error) {
	if workingDir == "" || !filepath.IsAbs(workingDir) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidWorkingDirectory, workingDir)
	}
	a := &Assembler{
		workingDir:       filepath.Clean(workingDir),
		providers:        providers.Builtins(),
		defaultCacheFile: DefaultCacheFile,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.DiscardHandler)
	}
	return a, nil
}

// WithConfig returns a copy of a that loads configFile. An empty path
// returns a itself; relative paths are resolved against the working directory.
func (a *Assembler) WithConfig(configFile string) *Assembler {
	if configFile == "" {
		return a
	}
	cp := *a
	cp.configFile = ResolvePath(configFile, a.workingDir)
	return &cp
}

// WorkingDir returns the directory the assembler resolves paths against.
func (a *Assembler) WorkingDir() string { return a.workingDir }

// ConfigFile returns the absolute configuration path, or "" when none is set.
func (a *Assembler) ConfigFile() string { return a.configFile }

// Build assembles and compiles a new container.
func (a *Assembler) Build(override CacheOverride, clearCache bool) (*container.Container, error) {
	c := container.New()
	log := a.logger.With("working_dir", a.workingDir)

	if err := c.SetParameter("currentWorkingDirectory", container.EscapeValue(a.workingDir)); err != nil {
		return nil, err
	}

	c.AddCompilerPass(providers.AddConsoleCommandPass{})
	c.AddCompilerPass(providers.RegisterListenersPass{})
	c.RegisterExtension(providers.Extension{})

	if err := c.SetParameter("projectDirectory", container.EscapeValue(a.workingDir)); err != nil {
		return nil, err
	}

	log.Debug("loading built-in services")
	if err := a.providers.Load(c, providers.ServicesResource); err != nil {
		return nil, &CannotLoadConfigurationError{Source: SourceServices, FileName: providers.ServicesResource, Err: err}
	}

	if a.configFile != "" {
		log.Debug("loading configuration", "file", a.configFile)
		if err := LoadConfiguration(c, a.configFile, a.logger); err != nil {
			return nil, err
		}
	}

	configured, err := configuredCacheFile(c, a.configFile)
	if err != nil {
		return nil, err
	}
	decision := DecideCache(override, configured, a.defaultCacheFile, a.workingDir)
	log.Debug("cache decided", "override", override.String(), "disabled", decision.Disabled, "path", decision.Path)

	if !decision.Disabled {
		if clearCache {
			log.Debug("clearing cache", "path", decision.Path)
			if err := ClearCache(decision.Path); err != nil {
				return nil, err
			}
		}
		if err := EnsureCacheFile(decision.Path); err != nil {
			return nil, err
		}
		if err := LoadCache(c, decision.Path, a.providers); err != nil {
			return nil, err
		}
	}

	if err := c.Compile(true); err != nil {
		return nil, fmt.Errorf("app: compiling container: %w", err)
	}
	log.Debug("container compiled", "services", len(c.ServiceIDs()), "resources", len(c.Resources()))
	return c, nil
}
