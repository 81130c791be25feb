package loader

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileLocator finds configuration files by name. Relative names are tried
// against the directory of the file being loaded first, then each search path.
type FileLocator struct {
	paths []string
}

// NewFileLocator returns a locator searching paths in order.
func NewFileLocator(paths ...string) *FileLocator {
	return &FileLocator{paths: paths}
}

// Locate returns the absolute path of name.
func (l *FileLocator) Locate(name, currentDir string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("an empty file name is not valid to be located")
	}

	if filepath.IsAbs(name) {
		if exists(name) {
			return filepath.Clean(name), nil
		}
		return "", fmt.Errorf("the file %q does not exist: %w", name, fs.ErrNotExist)
	}

	var candidates []string
	if currentDir != "" {
		candidates = append(candidates, currentDir)
	}
	if l != nil {
		candidates = append(candidates, l.paths...)
	}

	for _, dir := range candidates {
		p := filepath.Join(dir, name)
		if exists(p) {
			abs, err := filepath.Abs(p)
			if err != nil {
				return "", err
			}
			return abs, nil
		}
	}
	return "", fmt.Errorf("the file %q does not exist (in: %v): %w", name, candidates, fs.ErrNotExist)
}

func exists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
