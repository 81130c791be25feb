package loader

import (
	"log/slog"

	"gopkg.in/yaml.v3"
)

// NewYAMLLoader returns the loader for .yaml and .yml files.
func NewYAMLLoader(locator *FileLocator, logger *slog.Logger) *FileLoader {
	return NewFileLoader("yaml", []string{"yaml", "yml"}, decodeYAML, locator, logger)
}

func decodeYAML(data []byte, _ string) (map[string]any, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
