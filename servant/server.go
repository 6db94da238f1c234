package servant

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/louteranas/nomad-viewer/api"
	"github.com/louteranas/nomad-viewer/fault"
	"github.com/louteranas/nomad-viewer/internal/mlog"
	"github.com/louteranas/nomad-viewer/value"
	"go.uber.org/multierr"
)

// Server is the property server. It implements api.PropertyServer.
type Server struct {
	store  Store
	log    *ChangeLog
	logger logging.Logger

	props []Property       // index is ID - 1
	byKey map[string]int32 // "servant.property" -> ID

	m      sync.RWMutex
	values []value.Value
}

var _ api.PropertyServer = (*Server)(nil)

// NewServer returns a property server for the given declarations.
//
// Properties are assigned IDs from 1 in declaration order. Values are loaded
// from s; properties that have no stored value start at their initial value.
func NewServer(
	ctx context.Context,
	props []Property,
	s Store,
	l *ChangeLog,
	logger logging.Logger,
) (*Server, error) {
	if s == nil {
		s = &MemoryStore{}
	}

	if l == nil {
		l = &ChangeLog{}
	}

	srv := &Server{
		store:  s,
		log:    l,
		logger: logger,
		props:  props,
		byKey:  make(map[string]int32, len(props)),
		values: make([]value.Value, len(props)),
	}

	for i, p := range props {
		if err := p.validate(); err != nil {
			return nil, err
		}

		if _, ok := srv.byKey[p.Key()]; ok {
			return nil, fmt.Errorf("property %s is declared more than once", p.Key())
		}

		id := int32(i + 1)
		srv.byKey[p.Key()] = id

		v, ok, err := s.Load(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("unable to load %s: %w", p.Key(), err)
		}

		if ok && v.Kind() != p.Kind {
			logging.Log(logger, "discarding stored %s value of %s, it is now declared as %s", v.Kind(), p.Key(), p.Kind)
			ok = false
		}

		if !ok {
			v = p.Initial
			if !v.IsValid() {
				v = value.Zero(p.Kind)
			}
		}

		srv.values[i] = v
	}

	return srv, nil
}

// Properties returns the declarations served, in ID order.
func (s *Server) Properties() []Property {
	return append([]Property(nil), s.props...)
}

// Resolve returns the ID and kind of a property.
func (s *Server) Resolve(_ context.Context, req *api.ResolveRequest) (*api.ResolveResponse, error) {
	id, ok := s.byKey[req.Servant+"."+req.Property]
	if !ok {
		return nil, fault.New(fault.NotFound, "servant %q has no property %q", req.Servant, req.Property)
	}

	p := s.props[id-1]

	return &api.ResolveResponse{
		ID:       id,
		Kind:     p.Kind,
		ReadOnly: p.ReadOnly,
	}, nil
}

// Get returns the current value of a property.
func (s *Server) Get(_ context.Context, req *api.GetRequest) (*api.GetResponse, error) {
	p, err := s.property(req.ID)
	if err != nil {
		return nil, err
	}

	if req.Kind != p.Kind {
		return nil, fmt.Errorf("%s: %w", p.Key(), value.MismatchError{Want: req.Kind, Got: p.Kind})
	}

	s.m.RLock()
	v := s.values[req.ID-1]
	s.m.RUnlock()

	return &api.GetResponse{Value: v}, nil
}

// Set assigns a new value to a property.
//
// A read-only property is left unchanged and the response reports that the
// value was not accepted.
func (s *Server) Set(ctx context.Context, req *api.SetRequest) (*api.SetResponse, error) {
	p, err := s.property(req.ID)
	if err != nil {
		return nil, err
	}

	if p.ReadOnly {
		logging.Debug(s.logger, "rejected write to read-only property %s", p.Key())
		return &api.SetResponse{Accepted: false}, nil
	}

	if err := s.assign(ctx, req.ID, p, req.Value); err != nil {
		return nil, err
	}

	return &api.SetResponse{Accepted: true}, nil
}

// Publish assigns a new value to a property on behalf of the process that
// hosts the server.
//
// Unlike Set() it also changes read-only properties.
func (s *Server) Publish(ctx context.Context, id int32, v value.Value) error {
	p, err := s.property(id)
	if err != nil {
		return err
	}

	return s.assign(ctx, id, p, v)
}

func (s *Server) assign(ctx context.Context, id int32, p Property, v value.Value) error {
	if err := v.Expect(p.Kind); err != nil {
		return fmt.Errorf("%s: %w", p.Key(), err)
	}

	// The write lock is held while saving so that the log order matches the
	// order in which values are stored.
	s.m.Lock()
	defer s.m.Unlock()

	if err := s.store.Save(ctx, id, v); err != nil {
		return fmt.Errorf("unable to save %s: %w", p.Key(), err)
	}

	s.values[id-1] = v
	s.log.Append(id, v)

	mlog.LogNotification(s.logger, id, v, false)

	return nil
}

// Watch streams changes to the requested properties until the client
// disconnects or the server is closed.
//
// Only changes made after the stream is opened are sent.
func (s *Server) Watch(req *api.WatchRequest, stream api.WatchServer) error {
	filter := map[int32]struct{}{}
	for _, id := range req.IDs {
		if _, err := s.property(id); err != nil {
			return err
		}
		filter[id] = struct{}{}
	}

	ctx := stream.Context()
	o := s.log.End()

	for {
		c, err := s.log.Next(ctx, o)
		if err != nil {
			if errors.Is(err, ErrLogClosed) {
				return nil
			}
			return err
		}
		o++

		if len(filter) > 0 {
			if _, ok := filter[c.ID]; !ok {
				continue
			}
		}

		if err := stream.Send(&api.ChangeEvent{
			ID:    c.ID,
			Value: c.Value,
		}); err != nil {
			return err
		}
	}
}

// Close stops all watch streams and closes the store.
func (s *Server) Close() error {
	return multierr.Append(
		s.log.Close(),
		s.store.Close(),
	)
}

func (s *Server) property(id int32) (Property, error) {
	if id < 1 || int(id) > len(s.props) {
		return Property{}, fault.New(fault.NotFound, "no property with ID %d", id)
	}

	return s.props[id-1], nil
}
