package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/louteranas/nomad-viewer/api"
	"github.com/louteranas/nomad-viewer/internal/x/bboltx"
	"github.com/louteranas/nomad-viewer/internal/x/grpcx"
	"github.com/louteranas/nomad-viewer/internal/x/loggingx"
	"github.com/louteranas/nomad-viewer/manager"
	"github.com/louteranas/nomad-viewer/servant"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// openTimeout bounds how long the daemon waits for the property database
// lock.
const openTimeout = 10 * time.Second

type daemonOptions struct {
	Listen        string
	Endpoint      string
	MetricsListen string
	Catalog       string
	Properties    string
	Data          string
	Debug         bool
}

func run(ctx context.Context, o daemonOptions) (err error) {
	z, err := loggingx.NewZap(o.Debug)
	if err != nil {
		return err
	}
	defer z.Sync() // nolint:errcheck

	logger := loggingx.Zap(z)

	cat, err := manager.LoadCatalogFile(o.Catalog)
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", o.Listen)
	if err != nil {
		return err
	}
	defer lis.Close()

	endpoint := o.Endpoint
	if endpoint == "" {
		endpoint = lis.Addr().String()
	}

	m := &manager.Manager{
		Catalog: cat,
		Runner: &manager.ExecRunner{
			ManagerEndpoint: endpoint,
			Stdout:          os.Stdout,
			Stderr:          os.Stderr,
		},
		Logger: logger,
	}

	s := grpc.NewServer()
	api.RegisterApplicationServer(s, m)

	if o.Properties != "" {
		var props *servant.Server
		props, err = newPropertyServer(ctx, o, logger)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, props.Close())
		}()

		api.RegisterPropertyServer(s, props)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logging.Log(logger, "serving the application API on %s", lis.Addr())
		return grpcx.Serve(ctx, lis, s)
	})

	if o.MetricsListen != "" {
		g.Go(func() error {
			return serveMetrics(ctx, o.MetricsListen, logger)
		})
	}

	return g.Wait()
}

// newPropertyServer loads the property declarations and opens the store that
// holds their values.
func newPropertyServer(
	ctx context.Context,
	o daemonOptions,
	logger logging.Logger,
) (*servant.Server, error) {
	decls, err := servant.LoadDeclarationsFile(o.Properties)
	if err != nil {
		return nil, err
	}

	var store servant.Store = &servant.MemoryStore{}

	if o.Data != "" {
		octx, cancel := context.WithTimeout(ctx, openTimeout)
		defer cancel()

		db, err := bboltx.Open(octx, o.Data, 0, nil)
		if err != nil {
			return nil, err
		}

		store = &servant.BoltStore{DB: db}
	}

	srv, err := servant.NewServer(ctx, decls, store, nil, logger)
	if err != nil {
		return nil, multierr.Append(err, store.Close())
	}

	logging.Log(logger, "serving %d properties", len(decls))

	return srv, nil
}

// serveMetrics serves the Prometheus metrics endpoint until ctx is canceled.
func serveMetrics(ctx context.Context, addr string, logger logging.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	s := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	logging.Log(logger, "serving metrics on %s", addr)

	if err := s.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
