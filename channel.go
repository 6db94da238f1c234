package viewer

import (
	"context"
	"fmt"

	"github.com/louteranas/nomad-viewer/application"
	"github.com/louteranas/nomad-viewer/fault"
)

// Commands understood by the position query worker.
const (
	PositionsCommand = "POSITIONS"
	PauseCommand     = "PAUSE"
	RestartCommand   = "RESTART"
)

// open sets up the worker instance and binds a requester to it.
func (s *Session) open(ctx context.Context, w worker) (*channel, error) {
	lc := &application.Lifecycle{
		Name:   w.Name,
		Client: s.apps,
		Logger: s.opts.Logger,
	}

	var (
		inst *application.Instance
		err  error
	)

	if w.Attach {
		inst, err = lc.Attach(ctx)
	} else {
		inst, err = lc.Setup(ctx, w.Args)
	}
	if err != nil {
		return nil, err
	}

	req, err := application.NewRequester(ctx, s.apps, inst, w.Operation, s.opts.Logger)
	if err != nil {
		return nil, err
	}

	return &channel{
		worker:    w,
		lifecycle: lc,
		instance:  inst,
		requester: req,
	}, nil
}

// RequestCall sends a request to the worker and blocks until it replies.
//
// It fails with an error that wraps fault.ErrChannelUnavailable if the
// session has no worker.
func (s *Session) RequestCall(ctx context.Context, payload []byte) ([]byte, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	if err := s.m.RLock(ctx); err != nil {
		return nil, err
	}
	defer s.m.RUnlock()

	if err := s.check(); err != nil {
		return nil, err
	}

	ch := s.channel
	if ch == nil {
		return nil, fault.New(fault.ChannelUnavailable, "the %s session has no worker", s.variant)
	}

	if d := s.opts.RequestTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	return ch.requester.Call(ctx, payload)
}

// RequestCallAsync sends a request to the worker without blocking the
// caller. fn is called on the host loop with the reply.
//
// The request is abandoned if the session is terminated first, in which case
// fn is not called.
func (s *Session) RequestCallAsync(payload []byte, fn func([]byte, error)) error {
	return s.spawn(func() {
		reply, err := s.RequestCall(s.ctx, payload)
		if s.ctx.Err() != nil {
			return
		}

		if err := s.loop.Post(func() error {
			fn(reply, err)
			return nil
		}); err != nil {
			s.opts.Logger.Log("unable to deliver reply on the host loop: %s", err)
		}
	})
}

// Positions asks the position query worker for the current positions.
func (s *Session) Positions(ctx context.Context) (string, error) {
	return s.command(ctx, PositionsCommand)
}

// Pause asks the position query worker to pause the simulation.
func (s *Session) Pause(ctx context.Context) (string, error) {
	return s.command(ctx, PauseCommand)
}

// Restart asks the position query worker to restart the simulation.
func (s *Session) Restart(ctx context.Context) (string, error) {
	return s.command(ctx, RestartCommand)
}

func (s *Session) command(ctx context.Context, cmd string) (string, error) {
	reply, err := s.RequestCall(ctx, []byte(cmd))
	if err != nil {
		return "", err
	}

	return string(reply), nil
}

// Reset rebinds the position query worker to another simulation instance on
// the remote server.
//
// A new worker instance is started, preempting the current one, and a new
// requester is bound to it. The session only switches to the new instance
// once it is fully set up. If the reset fails the session keeps its previous
// channel.
func (s *Session) Reset(ctx context.Context, remoteID string) error {
	if err := s.check(); err != nil {
		return err
	}

	if s.variant != Positions {
		return fmt.Errorf("the %s session can not be reset", s.variant)
	}

	if err := s.m.Lock(ctx); err != nil {
		return err
	}
	defer s.m.Unlock()

	// Terminate() may have released the channel while this call waited for
	// the lock.
	if err := s.check(); err != nil {
		return err
	}

	w := worker{
		Name:      PositionsWorker,
		Args:      []string{s.config.RemoteEndpoint + "," + remoteID},
		Operation: PositionsOperation,
	}

	s.opts.Logger.Log("resetting %s to remote instance %s", w.Name, remoteID)

	next, err := s.open(ctx, w)
	if err != nil {
		return fmt.Errorf("unable to reset to remote instance %s: %w", remoteID, err)
	}

	prev := s.channel
	s.channel = next

	if prev != nil {
		return prev.requester.Close()
	}

	return nil
}

// Instance returns the worker instance the session currently drives, or nil
// if the session has no worker.
func (s *Session) Instance(ctx context.Context) (*application.Instance, error) {
	if err := s.m.RLock(ctx); err != nil {
		return nil, err
	}
	defer s.m.RUnlock()

	if s.channel == nil {
		return nil, nil
	}

	return s.channel.instance, nil
}

// ListRemoteInstances returns the IDs of the live instances on the remote
// server whose application name matches pattern.
//
// If pattern is empty the pattern set by WithRemoteListPattern() is used.
func (s *Session) ListRemoteInstances(ctx context.Context, pattern string) ([]int32, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	if s.remoteApps == nil {
		return nil, fault.New(fault.ChannelUnavailable, "the %s session has no remote server", s.variant)
	}

	if pattern == "" {
		pattern = s.opts.RemoteListPattern
	}

	instances, err := application.ListInstances(ctx, s.remoteApps, pattern)
	if err != nil {
		return nil, err
	}

	ids := make([]int32, len(instances))
	for i, inst := range instances {
		ids[i] = inst.ID
	}

	return ids, nil
}
