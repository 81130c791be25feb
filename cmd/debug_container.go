package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/km-arc/go-deptrac/framework/container"
	"github.com/km-arc/go-deptrac/routing"
)

const shutdownTimeout = 5 * time.Second

func newDebugContainerCommand(opts *rootOptions) *cobra.Command {
	var serveAddr string

	cmd := &cobra.Command{
		Use:   "debug:container",
		Short: "Show the parameters and services of the assembled container",
		Long: `Assemble the container and print its parameters and services, or serve
them as JSON with --serve.

Example:
  deptrac debug:container
  deptrac debug:container --serve                 # listen on DEPTRAC_INSPECT_ADDR
  deptrac debug:container --serve 127.0.0.1:9000`,
		Args: cobra.NoArgs,
		RunE: opts.run(func(cmd *cobra.Command) error {
			c, err := buildContainer(opts)
			if err != nil {
				return err
			}
			if serveAddr == "" {
				return printContainer(cmd.OutOrStdout(), c)
			}
			ln, err := net.Listen("tcp", serveAddr)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", serveAddr, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Inspector listening on http://%s\n", ln.Addr())
			return serveInspector(cmd.Context(), ln, routing.NewInspector(c, opts.logger), opts.logger)
		}),
	}

	cmd.Flags().StringVar(&serveAddr, "serve", "", "serve the container as JSON on this address")
	cmd.Flags().Lookup("serve").NoOptDefVal = opts.env.InspectAddr
	return cmd
}

func printContainer(out io.Writer, c *container.Container) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	params := c.Parameters()
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(tw, "PARAMETER\tVALUE")
	for _, name := range names {
		fmt.Fprintf(tw, "%s\t%v\n", name, params[name])
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "SERVICE\tCLASS\tPUBLIC")
	for _, id := range c.ServiceIDs() {
		def, err := c.GetDefinition(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\n", id, def.Class, def.Public)
	}

	aliases := c.Aliases()
	if len(aliases) > 0 {
		ids := make([]string, 0, len(aliases))
		for alias := range aliases {
			ids = append(ids, alias)
		}
		sort.Strings(ids)
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "ALIAS\tSERVICE")
		for _, alias := range ids {
			fmt.Fprintf(tw, "%s\t%s\n", alias, aliases[alias])
		}
	}
	return tw.Flush()
}

// serveInspector serves h on ln until ctx is done, then shuts down.
func serveInspector(ctx context.Context, ln net.Listener, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Info("inspector started", "addr", ln.Addr().String())

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serving inspector: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down inspector")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down inspector: %w", err)
	}
	return nil
}
