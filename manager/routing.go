package manager

import (
	"context"
	"errors"
	"sync"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/louteranas/nomad-viewer/api"
	"github.com/louteranas/nomad-viewer/fault"
)

// responder is a worker's Respond stream for one operation.
type responder struct {
	stream api.RespondServer

	// turn is a single-slot semaphore that serializes requests.
	turn chan struct{}
	gone chan struct{}

	m       sync.Mutex
	pending map[string]chan *api.Reply
}

func newResponder(s api.RespondServer) *responder {
	return &responder{
		stream:  s,
		turn:    make(chan struct{}, 1),
		gone:    make(chan struct{}),
		pending: map[string]chan *api.Reply{},
	}
}

// call dispatches a request to the worker and waits for its reply.
func (r *responder) call(
	ctx context.Context,
	exited <-chan struct{},
	id string,
	payload []byte,
) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.gone:
		return nil, fault.New(fault.ChannelUnavailable, "responder disconnected")
	case <-exited:
		return nil, fault.New(fault.ChannelUnavailable, "instance has exited")
	case r.turn <- struct{}{}:
	}
	defer func() { <-r.turn }()

	select {
	case <-exited:
		return nil, fault.New(fault.ChannelUnavailable, "instance has exited")
	default:
	}

	reply := make(chan *api.Reply, 1)

	r.m.Lock()
	r.pending[id] = reply
	r.m.Unlock()

	defer func() {
		r.m.Lock()
		delete(r.pending, id)
		r.m.Unlock()
	}()

	if err := r.stream.Send(&api.Dispatch{RequestID: id, Payload: payload}); err != nil {
		return nil, fault.New(fault.TransportFailure, "unable to dispatch request: %s", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.gone:
		return nil, fault.New(fault.ChannelUnavailable, "responder disconnected before replying")
	case <-exited:
		return nil, fault.New(fault.ChannelUnavailable, "instance exited before replying")
	case rep := <-reply:
		if rep.Error != "" {
			return nil, fault.New(fault.TransportFailure, "request failed: %s", rep.Error)
		}
		return rep.Payload, nil
	}
}

// resolve passes a reply to the waiting call, if any.
func (r *responder) resolve(rep *api.Reply) bool {
	r.m.Lock()
	ch, ok := r.pending[rep.RequestID]
	r.m.Unlock()

	if !ok {
		return false
	}

	select {
	case ch <- rep:
		return true
	default:
		return false
	}
}

// Bind blocks until the instance has a responder for the operation.
func (m *Manager) Bind(ctx context.Context, req *api.BindRequest) (*api.BindResponse, error) {
	for {
		m.m.Lock()
		i, ok := m.instances[req.InstanceID]
		if !ok {
			m.m.Unlock()
			return nil, fault.New(fault.ChannelUnavailable, "no instance with ID %d", req.InstanceID)
		}

		if !i.def.Declares(req.Operation) {
			m.m.Unlock()
			return nil, fault.New(fault.ChannelUnavailable, "%s does not serve %q", i.def.Name, req.Operation)
		}

		if _, ok := i.responders[req.Operation]; ok {
			m.m.Unlock()
			return &api.BindResponse{}, nil
		}

		if !i.state.IsLive() {
			m.m.Unlock()
			return nil, fault.New(fault.ChannelUnavailable, "%s#%d is %s", i.def.Name, i.id, i.state)
		}

		if i.ready == nil {
			i.ready = make(chan struct{})
		}
		ready := i.ready
		m.m.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-i.done:
		case <-ready:
		}
	}
}

// Request forwards a request to the responder for the operation.
func (m *Manager) Request(ctx context.Context, req *api.CallRequest) (*api.CallResponse, error) {
	m.m.Lock()
	i, ok := m.instances[req.InstanceID]
	var r *responder
	if ok {
		r = i.responders[req.Operation]
	}
	m.m.Unlock()

	if !ok {
		return nil, fault.New(fault.ChannelUnavailable, "no instance with ID %d", req.InstanceID)
	}

	if r == nil {
		return nil, fault.New(fault.ChannelUnavailable, "%s#%d has no responder for %q", i.def.Name, i.id, req.Operation)
	}

	payload, err := r.call(ctx, i.done, req.RequestID, req.Payload)
	if err != nil {
		return nil, err
	}

	return &api.CallResponse{Payload: payload}, nil
}

// Respond registers a worker's responder and routes replies back to the
// waiting requests until the stream ends.
func (m *Manager) Respond(s api.RespondServer) error {
	msg, err := s.Recv()
	if err != nil {
		return err
	}

	reg := msg.Register
	if reg == nil {
		return errors.New("the first message on a respond stream must register the responder")
	}

	r := newResponder(s)
	if err := m.register(reg, r); err != nil {
		return err
	}
	defer m.unregister(reg, r)

	for {
		msg, err := s.Recv()
		if err != nil {
			return err
		}

		if msg.Reply == nil {
			continue
		}

		if !r.resolve(msg.Reply) {
			logging.Debug(m.Logger, "discarded reply to abandoned request %s", msg.Reply.RequestID)
		}
	}
}

func (m *Manager) register(reg *api.RegisterResponder, r *responder) error {
	m.m.Lock()
	defer m.m.Unlock()

	i, err := m.lookup(reg.InstanceID)
	if err != nil {
		return err
	}

	if !i.state.IsLive() {
		return fault.New(fault.ChannelUnavailable, "%s#%d is %s", i.def.Name, i.id, i.state)
	}

	if !i.def.Declares(reg.Operation) {
		return fault.New(fault.ChannelUnavailable, "%s does not declare %q", i.def.Name, reg.Operation)
	}

	if i.responders == nil {
		i.responders = map[string]*responder{}
	}
	i.responders[reg.Operation] = r

	if i.ready != nil {
		close(i.ready)
		i.ready = nil
	}

	logging.Debug(m.Logger, "%s#%d serves %s", i.def.Name, i.id, reg.Operation)

	return nil
}

func (m *Manager) unregister(reg *api.RegisterResponder, r *responder) {
	close(r.gone)

	m.m.Lock()
	defer m.m.Unlock()

	if i, ok := m.instances[reg.InstanceID]; ok && i.responders[reg.Operation] == r {
		delete(i.responders, reg.Operation)
	}
}
