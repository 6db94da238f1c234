package viewer

import (
	"context"

	"github.com/louteranas/nomad-viewer/fault"
	"github.com/louteranas/nomad-viewer/notify"
	"github.com/louteranas/nomad-viewer/property"
	"github.com/louteranas/nomad-viewer/value"
)

// ResolveID returns the ID of a property of a servant on the remote server.
func (s *Session) ResolveID(ctx context.Context, servant, prop string) (property.ID, error) {
	a, err := s.propertyAccessor()
	if err != nil {
		return 0, err
	}

	return a.ResolveID(ctx, servant, prop)
}

// Get reads a property of type T.
func Get[T value.Native](ctx context.Context, s *Session, id property.ID) (T, error) {
	a, err := s.propertyAccessor()
	if err != nil {
		var zero T
		return zero, err
	}

	return property.Get[T](ctx, a, id)
}

// Set writes a property of type T. It returns false if the remote side does
// not accept the value.
func Set[T value.Native](ctx context.Context, s *Session, id property.ID, x T) (bool, error) {
	a, err := s.propertyAccessor()
	if err != nil {
		return false, err
	}

	return property.Set(ctx, a, id, x)
}

// GetFloat64 reads a float64 property.
func (s *Session) GetFloat64(ctx context.Context, id property.ID) (float64, error) {
	return Get[float64](ctx, s, id)
}

// GetInt32 reads an int32 property.
func (s *Session) GetInt32(ctx context.Context, id property.ID) (int32, error) {
	return Get[int32](ctx, s, id)
}

// GetBool reads a boolean property.
func (s *Session) GetBool(ctx context.Context, id property.ID) (bool, error) {
	return Get[bool](ctx, s, id)
}

// GetString reads a string property.
func (s *Session) GetString(ctx context.Context, id property.ID) (string, error) {
	return Get[string](ctx, s, id)
}

// GetFloat64Array reads a float64 array property.
func (s *Session) GetFloat64Array(ctx context.Context, id property.ID) ([]float64, error) {
	return Get[[]float64](ctx, s, id)
}

// GetInt32Array reads an int32 array property.
func (s *Session) GetInt32Array(ctx context.Context, id property.ID) ([]int32, error) {
	return Get[[]int32](ctx, s, id)
}

// SetFloat64 writes a float64 property.
func (s *Session) SetFloat64(ctx context.Context, id property.ID, x float64) (bool, error) {
	return Set(ctx, s, id, x)
}

// SetInt32 writes an int32 property.
func (s *Session) SetInt32(ctx context.Context, id property.ID, x int32) (bool, error) {
	return Set(ctx, s, id, x)
}

// SetBool writes a boolean property.
func (s *Session) SetBool(ctx context.Context, id property.ID, x bool) (bool, error) {
	return Set(ctx, s, id, x)
}

// SetString writes a string property.
func (s *Session) SetString(ctx context.Context, id property.ID, x string) (bool, error) {
	return Set(ctx, s, id, x)
}

// SetFloat64Array writes a float64 array property.
func (s *Session) SetFloat64Array(ctx context.Context, id property.ID, x []float64) (bool, error) {
	return Set(ctx, s, id, x)
}

// SetInt32Array writes an int32 array property.
func (s *Session) SetInt32Array(ctx context.Context, id property.ID, x []int32) (bool, error) {
	return Set(ctx, s, id, x)
}

// OnChange registers fn to be called on the host loop whenever the property
// changes, replacing any callback already registered for it.
//
// Changes that were queued for a replaced callback are discarded.
func OnChange[T value.Native](s *Session, id property.ID, fn func(T)) error {
	if _, err := s.propertyAccessor(); err != nil {
		return err
	}

	if err := s.watch(); err != nil {
		return err
	}

	notify.On(s.bridge, id, fn)

	return nil
}

// RegisterChangedFloat64 registers a change callback for a float64 property.
func (s *Session) RegisterChangedFloat64(id property.ID, fn func(float64)) error {
	return OnChange(s, id, fn)
}

// RegisterChangedInt32 registers a change callback for an int32 property.
func (s *Session) RegisterChangedInt32(id property.ID, fn func(int32)) error {
	return OnChange(s, id, fn)
}

// RegisterChangedBool registers a change callback for a boolean property.
func (s *Session) RegisterChangedBool(id property.ID, fn func(bool)) error {
	return OnChange(s, id, fn)
}

// RegisterChangedString registers a change callback for a string property.
func (s *Session) RegisterChangedString(id property.ID, fn func(string)) error {
	return OnChange(s, id, fn)
}

// RegisterChangedFloat64Array registers a change callback for a float64 array
// property.
func (s *Session) RegisterChangedFloat64Array(id property.ID, fn func([]float64)) error {
	return OnChange(s, id, fn)
}

// RegisterChangedInt32Array registers a change callback for an int32 array
// property.
func (s *Session) RegisterChangedInt32Array(id property.ID, fn func([]int32)) error {
	return OnChange(s, id, fn)
}

// UnregisterChanged removes the change callback of a property.
func (s *Session) UnregisterChanged(id property.ID) {
	s.bridge.Unregister(id)
}

// watch starts streaming property changes to the notification bridge, if it
// is not already doing so.
func (s *Session) watch() error {
	var err error

	s.watchOnce.Do(func() {
		w := &property.Watcher{
			Client:          s.properties,
			Sink:            s.bridge.Deliver,
			BackoffStrategy: s.opts.WatchBackoff,
			Logger:          s.opts.Logger,
		}

		err = s.spawn(func() {
			_ = w.Run(s.ctx)
		})
	})

	return err
}

func (s *Session) propertyAccessor() (*property.Accessor, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	if s.accessor == nil {
		return nil, fault.New(fault.ChannelUnavailable, "the %s session has no property server", s.variant)
	}

	return s.accessor, nil
}
