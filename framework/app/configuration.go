package app

import (
	"log/slog"
	"path/filepath"

	"github.com/km-arc/go-deptrac/framework/config"
	"github.com/km-arc/go-deptrac/framework/container"
	"github.com/km-arc/go-deptrac/framework/loader"
	"github.com/km-arc/go-deptrac/framework/providers"
)

// LoadConfiguration loads the user's configuration file into c. The file's
// directory becomes the projectDirectory parameter and the base for relative
// imports. The deptrac sections gathered so far are validated eagerly so a
// schema mistake is reported against the file.
func LoadConfiguration(c *container.Container, configFile string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	dir, name := filepath.Dir(configFile), filepath.Base(configFile)

	fail := func(err error) error {
		return &CannotLoadConfigurationError{Source: SourceConfig, FileName: name, Err: err}
	}

	if err := c.SetParameter("projectDirectory", container.EscapeValue(dir)); err != nil {
		return fail(err)
	}

	l := loader.New(loader.NewFileLocator(dir), nil, logger)
	if err := l.Load(c, name); err != nil {
		return fail(err)
	}

	if _, err := config.Decode(c.GetExtensionConfig(providers.Extension{}.Alias())); err != nil {
		return fail(err)
	}
	return nil
}
