package app

import "path/filepath"

// ResolvePath makes path absolute against workingDir and normalises it.
// Absolute paths only get cleaned.
func ResolvePath(path, workingDir string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(workingDir, path)
}
