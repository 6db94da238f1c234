// Package viewer bridges a single-threaded GUI host to the remote workers and
// property servers of a simulation.
//
// A host creates a Session with Init() and passes it to every entry point.
// Calls that reach the remote side block the calling goroutine; property
// change callbacks and asynchronous request results are delivered on the
// session's host loop, which the host pumps from its own event loop.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/louteranas/nomad-viewer/api"
	"github.com/louteranas/nomad-viewer/application"
	"github.com/louteranas/nomad-viewer/bootargs"
	"github.com/louteranas/nomad-viewer/fault"
	"github.com/louteranas/nomad-viewer/hostloop"
	"github.com/louteranas/nomad-viewer/internal/x/loggingx"
	"github.com/louteranas/nomad-viewer/internal/x/syncx"
	"github.com/louteranas/nomad-viewer/notify"
	"github.com/louteranas/nomad-viewer/property"
	"go.uber.org/multierr"
	"google.golang.org/grpc"
)

// ErrTerminated is returned by the entry points of a session after
// Terminate() has been called.
var ErrTerminated = errors.New("session has been terminated")

// Session is the state shared by the entry points of one bridge.
type Session struct {
	variant  Variant
	config   bootargs.Config
	opts     *sessionOptions
	loop     *hostloop.Loop
	ownsLoop bool
	bridge   *notify.Bridge

	// ctx bounds background work such as the property watcher and
	// asynchronous requests. It is canceled by Terminate().
	ctx    context.Context
	cancel context.CancelFunc

	// lm guards terminated and every wg.Add(), so that no background work
	// starts once teardown has begun.
	lm         sync.Mutex
	terminated bool
	wg         sync.WaitGroup

	local      *grpc.ClientConn
	remote     *grpc.ClientConn
	apps       api.ApplicationClient
	remoteApps api.ApplicationClient
	properties api.PropertyClient
	accessor   *property.Accessor

	watchOnce sync.Once

	// m guards channel. Requests hold a read lock for their duration, Reset()
	// holds the write lock while it builds the replacement.
	m       syncx.RWMutex
	channel *channel
}

// channel is the worker instance a session drives and the requester bound to
// it.
type channel struct {
	worker    worker
	lifecycle *application.Lifecycle
	instance  *application.Instance
	requester *application.Requester
}

// Init creates a session for the given variant from an init record.
//
// It connects to the process manager at the record's local endpoint, and to
// the remote simulation server if the variant uses one. If the variant drives
// a worker it is set up, preempting any existing instance, and a requester is
// bound to it. Any failure releases everything that was acquired.
func Init(
	ctx context.Context,
	v Variant,
	record string,
	options ...SessionOption,
) (_ *Session, err error) {
	cfg, err := v.parse(record)
	if err != nil {
		return nil, err
	}

	opts := resolveSessionOptions(options...)
	logger := loggingx.WithPrefix(opts.Logger, "[%s %s] ", v, cfg.ProcessName)

	s := &Session{
		variant: v,
		config:  cfg,
		opts:    opts,
		loop:    opts.Loop,
	}

	if s.loop == nil {
		s.loop = &hostloop.Loop{Logger: logger}
		s.ownsLoop = true
	}

	s.opts.Logger = logger
	s.bridge = &notify.Bridge{Loop: s.loop, Logger: logger}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	defer func() {
		if err != nil {
			s.markTerminated()
			err = multierr.Append(err, s.release())
		}
	}()

	s.local, err = s.dial(ctx, cfg.LocalEndpoint)
	if err != nil {
		return nil, err
	}
	s.apps = api.NewApplicationClient(s.local)

	if v.hasRemote() {
		s.remote, err = s.dial(ctx, cfg.RemoteEndpoint)
		if err != nil {
			return nil, err
		}

		s.remoteApps = api.NewApplicationClient(s.remote)
		s.properties = api.NewPropertyClient(s.remote)
		s.accessor = &property.Accessor{
			Client: s.properties,
			Logger: logger,
		}
	}

	if w, ok := v.worker(cfg); ok {
		s.channel, err = s.open(ctx, w)
		if err != nil {
			return nil, err
		}
	}

	logger.Log("session initialized")

	return s, nil
}

// Variant returns the variant of the session.
func (s *Session) Variant() Variant {
	return s.variant
}

// Config returns the parsed init record.
func (s *Session) Config() bootargs.Config {
	return s.config
}

// Loop returns the host loop on which callbacks are delivered.
//
// The host must drain it from its own goroutine, either by calling Run() or
// by calling RunPending() from an idle hook.
func (s *Session) Loop() *hostloop.Loop {
	return s.loop
}

// Terminate releases the session.
//
// Any property change callbacks are unregistered, the requester is closed and
// the connections are released. Requests already in progress on other
// goroutines are allowed to finish first. The worker instance is left running
// so that the next session can reuse or preempt it. Calling Terminate() more
// than once has no further effect.
func (s *Session) Terminate() error {
	if !s.markTerminated() {
		return nil
	}

	err := s.release()
	s.opts.Logger.Log("session terminated")

	return err
}

// release cancels background work and closes everything the session holds.
//
// It must only be called once no more background work can be started.
func (s *Session) release() error {
	s.cancel()
	s.wg.Wait()
	s.bridge.Close()

	var err error

	if e := s.m.Lock(context.Background()); e != nil {
		return e
	}

	if s.channel != nil {
		err = multierr.Append(err, s.channel.requester.Close())
		s.channel = nil
	}

	s.m.Unlock()

	if s.local != nil {
		err = multierr.Append(err, s.local.Close())
	}

	if s.remote != nil {
		err = multierr.Append(err, s.remote.Close())
	}

	if s.ownsLoop {
		s.loop.Close()
	}

	return err
}

// dial connects to the gRPC server at a tcp:// endpoint.
func (s *Session) dial(ctx context.Context, endpoint string) (*grpc.ClientConn, error) {
	target, err := bootargs.DialTarget(endpoint)
	if err != nil {
		return nil, err
	}

	conn, err := grpc.DialContext(ctx, target, s.opts.DialOptions...)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to dial %s: %s", fault.ErrTransportFailure, endpoint, err)
	}

	return conn, nil
}

// check returns ErrTerminated if the session has been terminated.
func (s *Session) check() error {
	s.lm.Lock()
	defer s.lm.Unlock()

	if s.terminated {
		return ErrTerminated
	}

	return nil
}

// markTerminated flags the session as terminated. It returns false if it
// already was.
func (s *Session) markTerminated() bool {
	s.lm.Lock()
	defer s.lm.Unlock()

	if s.terminated {
		return false
	}

	s.terminated = true
	return true
}

// spawn runs fn on a new goroutine that Terminate() waits for.
//
// It returns ErrTerminated instead if the session has been terminated.
func (s *Session) spawn(fn func()) error {
	s.lm.Lock()
	defer s.lm.Unlock()

	if s.terminated {
		return ErrTerminated
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()

	return nil
}
