package app

import (
	"errors"
	"fmt"
)

// ErrInvalidWorkingDirectory is returned by NewAssembler for an empty or
// relative working directory.
var ErrInvalidWorkingDirectory = errors.New("app: working directory must be an absolute path")

// Source names the load stage a CannotLoadConfigurationError comes from.
type Source string

const (
	SourceServices Source = "services"
	SourceConfig   Source = "config"
	SourceCache    Source = "cache"
)

// CannotLoadConfigurationError reports a parse or registration failure in one
// of the three load stages.
type CannotLoadConfigurationError struct {
	Source   Source
	FileName string
	Err      error
}

func (e *CannotLoadConfigurationError) Error() string {
	return fmt.Sprintf("could not load %s %q: %v", e.Source, e.FileName, e.Err)
}

func (e *CannotLoadConfigurationError) Unwrap() error { return e.Err }

// CacheFileKind tells why a cache file is unusable.
type CacheFileKind int

const (
	CacheNotWritable CacheFileKind = iota + 1
	CacheNotRemovable
)

func (k CacheFileKind) String() string {
	switch k {
	case CacheNotWritable:
		return "not writable"
	case CacheNotRemovable:
		return "not removable"
	default:
		return "unknown"
	}
}

// CacheFileError reports a cache file that cannot be created or removed.
type CacheFileError struct {
	Kind CacheFileKind
	Path string
	Err  error
}

func (e *CacheFileError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cache file %q is %s", e.Path, e.Kind)
	}
	return fmt.Sprintf("cache file %q is %s: %v", e.Path, e.Kind, e.Err)
}

func (e *CacheFileError) Unwrap() error { return e.Err }
