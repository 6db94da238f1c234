// Package main runs the process manager, and optionally the property server,
// of one simulation host.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dogmatiq/dodeca/config"
	"github.com/spf13/cobra"
)

// Environment variables that provide the defaults for the command-line flags.
const (
	listenEnv     = "NOMAD_LISTEN"
	endpointEnv   = "NOMAD_ENDPOINT"
	metricsEnv    = "NOMAD_METRICS_LISTEN"
	catalogEnv    = "NOMAD_CATALOG"
	propertiesEnv = "NOMAD_PROPERTIES"
	dataEnv       = "NOMAD_DATA"
	debugEnv      = "NOMAD_DEBUG"
)

// newContext returns a cancelable context that is canceled when the process
// receives a SIGTERM or SIGINT.
func newContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	ctx, cancel := newContext()
	defer cancel()

	if err := newCommand(config.Environment()).ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}

func newCommand(env config.Bucket) *cobra.Command {
	var o daemonOptions

	cmd := &cobra.Command{
		Use:          "nomadd",
		Short:        "Run the process manager of a simulation host",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.Listen, "listen", config.AsStringDefault(env, listenEnv, ":9000"), "address on which to serve the gRPC API")
	f.StringVar(&o.Endpoint, "endpoint", config.AsStringDefault(env, endpointEnv, ""), "dial target passed to workers, defaults to the listen address")
	f.StringVar(&o.MetricsListen, "metrics-listen", config.AsStringDefault(env, metricsEnv, ""), "address on which to serve Prometheus metrics, disabled if empty")
	f.StringVar(&o.Catalog, "catalog", config.AsStringDefault(env, catalogEnv, "catalog.yaml"), "path to the application catalog")
	f.StringVar(&o.Properties, "properties", config.AsStringDefault(env, propertiesEnv, ""), "path to the property declarations, the property server is disabled if empty")
	f.StringVar(&o.Data, "data", config.AsStringDefault(env, dataEnv, ""), "path to the property database, values are kept in memory if empty")
	f.BoolVar(&o.Debug, "debug", config.AsStringDefault(env, debugEnv, "") != "", "enable debug logging")

	return cmd
}
