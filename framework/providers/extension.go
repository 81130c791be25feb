package providers

import (
	"fmt"

	"github.com/km-arc/go-deptrac/framework/config"
	"github.com/km-arc/go-deptrac/framework/container"
)

// Extension owns the "deptrac" configuration section.
//
// Published parameters:
//   - paths, exclude_files, layers, ruleset, skip_violations
//   - formatters, analyser, ignore_uncovered_internal_classes
//
// cache_file is validated but not published: the assembler decides the cache
// location before compiling and sets that parameter itself.
type Extension struct{}

// Alias is the configuration key the extension answers to.
func (Extension) Alias() string { return config.Section }

// Load merges the queued sections in order and publishes the result.
func (Extension) Load(configs []map[string]any, c *container.Container) error {
	cfg, err := config.Decode(configs)
	if err != nil {
		return err
	}
	for name, value := range cfg.Parameters() {
		if err := c.SetParameter(name, value); err != nil {
			return fmt.Errorf("publishing %q: %w", name, err)
		}
	}
	return nil
}
