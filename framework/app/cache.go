package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/km-arc/go-deptrac/framework/container"
	"github.com/km-arc/go-deptrac/framework/providers"
)

// DefaultCacheFile is used when neither an override nor the configuration
// names a cache file.
const DefaultCacheFile = ".deptrac.cache"

type overrideKind int

const (
	overrideUnset overrideKind = iota
	overrideDisabled
	overridePath
)

// CacheOverride is the caller's say on the cache location: unset (defer to
// configuration), disabled, or an explicit path.
type CacheOverride struct {
	kind overrideKind
	path string
}

// NoCacheOverride leaves the decision to configuration and defaults.
func NoCacheOverride() CacheOverride { return CacheOverride{} }

// CacheDisabled turns caching off regardless of configuration.
func CacheDisabled() CacheOverride { return CacheOverride{kind: overrideDisabled} }

// CachePath forces the cache location. An empty path is the same as
// NoCacheOverride.
func CachePath(path string) CacheOverride {
	if path == "" {
		return NoCacheOverride()
	}
	return CacheOverride{kind: overridePath, path: path}
}

// IsSet reports whether the override takes precedence over configuration.
func (o CacheOverride) IsSet() bool { return o.kind != overrideUnset }

// Disabled reports whether caching is switched off.
func (o CacheOverride) Disabled() bool { return o.kind == overrideDisabled }

// Path returns the forced path, if any.
func (o CacheOverride) Path() (string, bool) { return o.path, o.kind == overridePath }

func (o CacheOverride) String() string {
	switch o.kind {
	case overrideDisabled:
		return "disabled"
	case overridePath:
		return o.path
	default:
		return "unset"
	}
}

// CacheDecision is the effective cache location for one build.
type CacheDecision struct {
	Disabled bool
	Path     string // absolute; empty when Disabled
}

// DecideCache applies the precedence override > configured > defaultName and
// resolves the winner against workingDir.
func DecideCache(override CacheOverride, configured *string, defaultName, workingDir string) CacheDecision {
	if override.Disabled() {
		return CacheDecision{Disabled: true}
	}
	name := defaultName
	if p, ok := override.Path(); ok {
		name = p
	} else if configured != nil {
		name = *configured
	}
	return CacheDecision{Path: ResolvePath(name, workingDir)}
}

// ClearCache removes the cache file. A missing file is not an error.
func ClearCache(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &CacheFileError{Kind: CacheNotRemovable, Path: path, Err: err}
	}
	return nil
}

// EnsureCacheFile creates an empty cache file, and its parent directories,
// when none exists at path.
func EnsureCacheFile(path string) error {
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return &CacheFileError{Kind: CacheNotWritable, Path: path, Err: fmt.Errorf("is a directory")}
	case err == nil:
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return &CacheFileError{Kind: CacheNotWritable, Path: path, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
		return &CacheFileError{Kind: CacheNotWritable, Path: path, Err: err}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o666)
	if err != nil {
		return &CacheFileError{Kind: CacheNotWritable, Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &CacheFileError{Kind: CacheNotWritable, Path: path, Err: err}
	}
	return nil
}

// LoadCache publishes path as the cache_file parameter and registers the
// built-in cache resource. The path is stored escaped, so a "%" in it is kept
// literally.
func LoadCache(c *container.Container, path string, registry *container.ProviderRegistry) error {
	if err := c.SetParameter("cache_file", container.EscapeValue(path)); err != nil {
		return &CannotLoadConfigurationError{Source: SourceCache, FileName: providers.CacheResource, Err: err}
	}
	if err := registry.Load(c, providers.CacheResource); err != nil {
		return &CannotLoadConfigurationError{Source: SourceCache, FileName: providers.CacheResource, Err: err}
	}
	return nil
}

// configuredCacheFile reads cache_file from the first deptrac section only;
// later sections cannot move the cache. Placeholders, env() included, are
// expanded here because the file is created before the container compiles.
// A value that expands to "" counts as unset.
func configuredCacheFile(c *container.Container, configFile string) (*string, error) {
	sections := c.GetExtensionConfig(providers.Extension{}.Alias())
	if len(sections) == 0 {
		return nil, nil
	}
	fail := func(err error) error {
		return &CannotLoadConfigurationError{Source: SourceConfig, FileName: filepath.Base(configFile), Err: err}
	}

	raw, ok := sections[0]["cache_file"].(string)
	if !ok {
		if v := sections[0]["cache_file"]; v != nil {
			return nil, fail(fmt.Errorf("deptrac.cache_file must be a string, got %T", v))
		}
		return nil, nil
	}
	resolved, err := c.ResolveValue(raw, true)
	if err != nil {
		return nil, fail(fmt.Errorf("deptrac.cache_file: %w", err))
	}
	path, ok := resolved.(string)
	if !ok {
		return nil, fail(fmt.Errorf("deptrac.cache_file must resolve to a string, got %T", resolved))
	}
	if path == "" {
		return nil, nil
	}
	return &path, nil
}
