// Package managertest runs an in-memory process manager whose applications
// are goroutines rather than operating system processes.
package managertest

import (
	"context"
	"errors"
	"sync"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/louteranas/nomad-viewer/api"
	"github.com/louteranas/nomad-viewer/internal/testing/bufnet"
	"github.com/louteranas/nomad-viewer/manager"
	"github.com/louteranas/nomad-viewer/responder"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// Worker is an application that runs in-process.
type Worker struct {
	Definition manager.Definition

	// Handlers maps each operation to the handler that serves it.
	Handlers map[string]responder.Handler

	// NewHandlers, if non-nil, builds the handlers for each launched
	// instance, in place of Handlers.
	NewHandlers func(s manager.Spec) map[string]responder.Handler

	// Run, if non-nil, replaces the default behavior of serving the
	// handlers until the instance is killed.
	Run func(ctx context.Context, s manager.Spec) error

	// LaunchError, if non-nil, causes every launch to fail.
	LaunchError error

	// Launch, if non-nil, is called before each launch. If it returns an
	// error the launch fails.
	Launch func(s manager.Spec) error
}

// Env is a running process manager and a client connected to it.
type Env struct {
	Manager *manager.Manager
	Client  api.ApplicationClient
	Conn    *grpc.ClientConn

	server *bufnet.Server

	m        sync.Mutex
	launches []manager.Spec
}

// Start runs a process manager that knows the given workers.
func Start(ctx context.Context, logger logging.Logger, workers ...Worker) (*Env, error) {
	return StartWith(ctx, logger, nil, workers...)
}

// StartWith runs a process manager that knows the given workers, on a server
// that also hosts the services added by register.
func StartWith(
	ctx context.Context,
	logger logging.Logger,
	register func(*grpc.Server),
	workers ...Worker,
) (*Env, error) {
	e := &Env{}

	byName := map[string]Worker{}
	cat := &manager.Catalog{}

	for _, w := range workers {
		byName[w.Definition.Name] = w
		cat.Applications = append(cat.Applications, w.Definition)
	}

	if err := cat.Validate(); err != nil {
		return nil, err
	}

	e.Manager = &manager.Manager{
		Catalog: cat,
		Logger:  logger,
		Runner: manager.RunnerFunc(func(s manager.Spec) (manager.Process, error) {
			w := byName[s.Definition.Name]
			if w.LaunchError != nil {
				return nil, w.LaunchError
			}

			if w.Launch != nil {
				if err := w.Launch(s); err != nil {
					return nil, err
				}
			}

			e.m.Lock()
			e.launches = append(e.launches, s)
			e.m.Unlock()

			return manager.Go(func(ctx context.Context) error {
				if w.Run != nil {
					return w.Run(ctx, s)
				}

				handlers := w.Handlers
				if w.NewHandlers != nil {
					handlers = w.NewHandlers(s)
				}

				return e.serve(ctx, s.InstanceID, handlers, logger)
			}), nil
		}),
	}

	e.server = bufnet.Start(func(s *grpc.Server) {
		api.RegisterApplicationServer(s, e.Manager)
		if register != nil {
			register(s)
		}
	})

	conn, err := e.server.Dial(ctx)
	if err != nil {
		e.server.Stop()
		return nil, err
	}

	e.Conn = conn
	e.Client = api.NewApplicationClient(conn)

	return e, nil
}

// serve runs a responder for each handler until ctx is canceled.
func (e *Env) serve(
	ctx context.Context,
	id int32,
	handlers map[string]responder.Handler,
	logger logging.Logger,
) error {
	if len(handlers) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	g, ctx := errgroup.WithContext(ctx)

	for op, h := range handlers {
		op, h := op, h
		g.Go(func() error {
			return responder.Serve(ctx, e.Client, id, op, h, logger)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return err
}

// Launches returns the specs of every instance launched so far.
func (e *Env) Launches() []manager.Spec {
	e.m.Lock()
	defer e.m.Unlock()

	return append([]manager.Spec(nil), e.launches...)
}

// DialOption returns a dial option that connects to the manager regardless
// of the dial target.
func (e *Env) DialOption() grpc.DialOption {
	return e.server.DialOption()
}

// Server returns the in-memory server that hosts the manager.
func (e *Env) Server() *bufnet.Server {
	return e.server
}

// Stop closes the client connection and stops the manager's server.
func (e *Env) Stop() {
	e.Conn.Close()
	e.server.Stop()
}
