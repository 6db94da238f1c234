package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/louteranas/nomad-viewer/api"
	"github.com/louteranas/nomad-viewer/fault"
	"github.com/louteranas/nomad-viewer/internal/mlog"
)

// ErrInvalidTransition is returned when a lifecycle operation is attempted
// from a phase that does not permit it.
var ErrInvalidTransition = errors.New("invalid application lifecycle transition")

// Phase is the position of a Lifecycle in its connect/start cycle.
type Phase int

const (
	// NotConnected is the initial phase.
	NotConnected Phase = iota

	// Connected means the process manager has been asked whether an
	// instance of the application exists.
	Connected

	// Started means an instance has been started, or attached to. It is
	// terminal until Connect() begins a new cycle.
	Started
)

func (p Phase) String() string {
	switch p {
	case NotConnected:
		return "not connected"
	case Connected:
		return "connected"
	case Started:
		return "started"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Lifecycle drives a named application through connect, preempt and start.
//
// It is not safe for concurrent use.
type Lifecycle struct {
	Name   string
	Client api.ApplicationClient
	Logger logging.Logger

	phase    Phase
	instance *Instance
}

// Phase returns the current phase.
func (l *Lifecycle) Phase() Phase {
	return l.phase
}

// Instance returns the instance found by Connect() or created by a start
// operation. It is nil before the first call to Connect().
func (l *Lifecycle) Instance() *Instance {
	return l.instance
}

// Connect asks the process manager for the live instance of the application.
//
// It may be called from any phase, and begins a new cycle.
func (l *Lifecycle) Connect(ctx context.Context) (*Instance, error) {
	res, err := l.Client.Connect(ctx, &api.ConnectRequest{Name: l.Name})
	if err != nil {
		return nil, fmt.Errorf("unable to connect to %s: %w", l.Name, err)
	}

	l.phase = Connected
	l.instance = newInstance(l.Client, res.Instance)

	if l.instance.Exists() {
		mlog.LogLifecycle(l.Logger, l.Name, l.instance.ID, nil, "found existing instance (%s)", l.instance.State)
	} else {
		logging.Debug(l.Logger, "no instance of %s exists", l.Name)
	}

	return l.instance, nil
}

// Start launches a new instance with the given arguments.
//
// It is only permitted when connected and no instance exists.
func (l *Lifecycle) Start(ctx context.Context, args []string) (*Instance, error) {
	if l.phase != Connected || l.instance.Exists() {
		return nil, l.invalid("start")
	}

	return l.start(ctx, args)
}

// PreemptAndStart kills the existing instance, waits for it to exit, then
// launches a new instance with the given arguments.
//
// It is only permitted when connected and an instance exists. Failure to kill
// or wait for the old instance is logged and does not prevent the start.
func (l *Lifecycle) PreemptAndStart(ctx context.Context, args []string) (*Instance, error) {
	if l.phase != Connected || !l.instance.Exists() {
		return nil, l.invalid("preempt")
	}

	old := l.instance

	if err := old.Kill(ctx); err != nil {
		mlog.LogLifecycle(l.Logger, l.Name, old.ID, err, "unable to kill existing instance")
	} else if s, err := old.WaitFor(ctx); err != nil {
		mlog.LogLifecycle(l.Logger, l.Name, old.ID, err, "unable to wait for existing instance to exit")
	} else {
		mlog.LogLifecycle(l.Logger, l.Name, old.ID, nil, "existing instance exited (%s)", s)
	}

	return l.start(ctx, args)
}

// Setup connects to the application and starts a fresh instance, preempting
// any existing one.
func (l *Lifecycle) Setup(ctx context.Context, args []string) (*Instance, error) {
	i, err := l.Connect(ctx)
	if err != nil {
		return nil, err
	}

	if i.Exists() {
		return l.PreemptAndStart(ctx, args)
	}

	return l.start(ctx, args)
}

// Attach connects to an instance that is managed by someone else, without
// starting or killing anything.
//
// It returns an error that wraps fault.ErrChannelUnavailable if no instance
// exists.
func (l *Lifecycle) Attach(ctx context.Context) (*Instance, error) {
	i, err := l.Connect(ctx)
	if err != nil {
		return nil, err
	}

	if !i.Exists() {
		return nil, fault.New(fault.ChannelUnavailable, "%s is not running", l.Name)
	}

	l.phase = Started
	return i, nil
}

func (l *Lifecycle) start(ctx context.Context, args []string) (*Instance, error) {
	res, err := l.Client.Start(
		ctx,
		&api.StartRequest{
			Name: l.Name,
			Args: args,
		},
	)
	if err != nil {
		mlog.LogLifecycle(l.Logger, l.Name, NoInstance, err, "unable to start")

		if _, ok := fault.KindOf(err); ok {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %s: %s", fault.ErrStartFailed, l.Name, err)
	}

	i := newInstance(l.Client, res.Instance)
	if !i.Exists() {
		return nil, fault.New(fault.StartFailed, "%s does not exist after being started", l.Name)
	}

	l.phase = Started
	l.instance = i

	mlog.LogLifecycle(l.Logger, l.Name, i.ID, nil, "started with %d argument(s)", len(args))

	return i, nil
}

func (l *Lifecycle) invalid(op string) error {
	exists := l.instance != nil && l.instance.Exists()

	return fmt.Errorf(
		"%w: can not %s %s while %s (instance exists: %t)",
		ErrInvalidTransition,
		op,
		l.Name,
		l.phase,
		exists,
	)
}
