// Package cmd is the deptrac command line: it assembles the service container
// for the current directory and reports on it.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/km-arc/go-deptrac/framework/app"
	"github.com/km-arc/go-deptrac/framework/config"
	"github.com/km-arc/go-deptrac/framework/container"
	"github.com/km-arc/go-deptrac/framework/logging"
	"github.com/km-arc/go-deptrac/framework/providers"
)

var version = "dev"

// rootOptions holds the flag values shared by every subcommand.
type rootOptions struct {
	env        config.Environment
	workingDir string

	configFile string
	cacheFile  string
	noCache    bool
	clearCache bool
	logLevel   string

	logger   *slog.Logger
	closeLog func() error
}

// NewRootCommand returns the deptrac command tree. Flag defaults come from env;
// relative paths are resolved against workingDir.
func NewRootCommand(env config.Environment, workingDir string) *cobra.Command {
	opts := &rootOptions{env: env, workingDir: workingDir}

	root := &cobra.Command{
		Use:           "deptrac",
		Short:         "Assemble the deptrac service container",
		Long:          `Assemble the deptrac service container from the built-in services, an optional configuration file and the AST cache, and list the console commands it provides.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, closeLog, err := logging.New(logging.Options{
				Level:  opts.logLevel,
				Format: opts.env.LogFormat,
				File:   opts.env.LogFile,
			}, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			opts.logger, opts.closeLog = logger, closeLog
			// An explicit --cache-file beats DEPTRAC_NO_CACHE.
			if cmd.Flags().Changed("cache-file") {
				opts.noCache = false
			}
			return nil
		},
		RunE: opts.run(func(cmd *cobra.Command) error {
			return runRoot(cmd, opts)
		}),
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config-file", "c", env.ConfigFile, "configuration file (yaml, toml or hcl)")
	flags.StringVar(&opts.cacheFile, "cache-file", env.CacheFile, "AST cache file (default: configured cache_file or .deptrac.cache)")
	flags.BoolVar(&opts.noCache, "no-cache", env.NoCache, "disable the AST file cache")
	flags.BoolVar(&opts.clearCache, "clear-cache", false, "remove the cache file before loading it")
	flags.StringVar(&opts.logLevel, "log-level", env.LogLevel, "log level: debug, info, warn or error")
	root.MarkFlagsMutuallyExclusive("no-cache", "cache-file")

	root.AddCommand(newDebugContainerCommand(opts))
	return root
}

// Execute runs the deptrac command with the process environment and prints a
// failure to stderr.
func Execute() error {
	env := config.LoadEnvironment()
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(env, wd)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), FormatError(err))
		return err
	}
	return nil
}

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) {
	version = v
}

// buildContainer assembles the container the flags describe.
func buildContainer(opts *rootOptions) (*container.Container, error) {
	assembler, err := app.NewAssembler(opts.workingDir, app.WithLogger(opts.logger))
	if err != nil {
		return nil, err
	}
	return assembler.WithConfig(opts.configFile).Build(opts.cacheOverride(), opts.clearCache)
}

// run wraps a command body so the log file is closed on every exit path.
// cobra skips PersistentPostRunE when RunE fails.
func (o *rootOptions) run(fn func(cmd *cobra.Command) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		err := fn(cmd)
		if o.closeLog != nil {
			err = errors.Join(err, o.closeLog())
			o.closeLog = nil
		}
		return err
	}
}

func (o *rootOptions) cacheOverride() app.CacheOverride {
	if o.noCache {
		return app.CacheDisabled()
	}
	return app.CachePath(o.cacheFile)
}

func runRoot(cmd *cobra.Command, opts *rootOptions) error {
	c, err := buildContainer(opts)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	source := "built-in services"
	if opts.configFile != "" {
		source = app.ResolvePath(opts.configFile, opts.workingDir)
	}
	cache := "disabled"
	if v, err := container.Parameter[string](c, "cache_file"); err == nil {
		cache = v
	}

	fmt.Fprintf(out, "Container compiled from %s\n", source)
	fmt.Fprintf(out, "  services:   %d\n", len(c.ServiceIDs()))
	fmt.Fprintf(out, "  parameters: %d\n", len(c.Parameters()))
	fmt.Fprintf(out, "  cache:      %s\n", cache)

	loader, err := container.Resolve[*providers.CommandLoader](c, "console.command_loader")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Commands:")
	for _, name := range loader.Names() {
		fmt.Fprintf(out, "  %s\n", name)
	}
	return nil
}

// FormatError renders a build failure with its stage and file when known.
func FormatError(err error) string {
	var loadErr *app.CannotLoadConfigurationError
	var cacheErr *app.CacheFileError
	switch {
	case errors.As(err, &loadErr):
		return fmt.Sprintf("[ERROR] %s stage failed for %q: %v", loadErr.Source, loadErr.FileName, loadErr.Err)
	case errors.As(err, &cacheErr):
		return fmt.Sprintf("[ERROR] cache stage failed for %q: %v", cacheErr.Path, cacheErr)
	default:
		return fmt.Sprintf("[ERROR] %v", err)
	}
}
