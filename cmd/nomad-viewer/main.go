// Package main is a command-line host for the viewer bridge. It drives a
// session the same way a GUI would, which is useful when diagnosing a
// simulation host without the GUI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	viewer "github.com/louteranas/nomad-viewer"
	"github.com/louteranas/nomad-viewer/internal/x/loggingx"
	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}

type globalOptions struct {
	Debug   bool
	Timeout time.Duration
}

func newRootCommand() *cobra.Command {
	var g globalOptions

	root := &cobra.Command{
		Use:          "nomad-viewer",
		Short:        "Drive the viewer bridge from the command line",
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVar(&g.Debug, "debug", false, "enable debug logging")
	root.PersistentFlags().DurationVar(&g.Timeout, "timeout", 0, "deadline applied to each worker request")

	root.AddCommand(
		newPositionsCommand(&g),
		newCollisionCommand(&g),
		newListCommand(&g),
		newGetCommand(&g),
		newSetCommand(&g),
		newWatchCommand(&g),
	)

	return root
}

// withSession initializes a session, calls fn and terminates the session.
func withSession(
	cmd *cobra.Command,
	g *globalOptions,
	v viewer.Variant,
	record string,
	fn func(context.Context, *viewer.Session) error,
) (err error) {
	z, err := loggingx.NewZap(g.Debug)
	if err != nil {
		return err
	}
	defer z.Sync() // nolint:errcheck

	var logger logging.Logger = loggingx.Zap(z)
	ctx := cmd.Context()

	s, err := viewer.Init(
		ctx,
		v,
		record,
		viewer.WithLogger(logger),
		viewer.WithRequestTimeout(g.Timeout),
	)
	if err != nil {
		return err
	}
	defer func() {
		if e := s.Terminate(); err == nil {
			err = e
		}
	}()

	return fn(ctx, s)
}
