package loader

import (
	"log/slog"

	"github.com/pelletier/go-toml/v2"
)

// NewTOMLLoader returns the loader for .toml files. TOML has no null, so a
// key is left out to keep its default.
func NewTOMLLoader(locator *FileLocator, logger *slog.Logger) *FileLoader {
	return NewFileLoader("toml", []string{"toml"}, decodeTOML, locator, logger)
}

func decodeTOML(data []byte, _ string) (map[string]any, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
