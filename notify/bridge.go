// Package notify delivers property change notifications, which arrive on
// arbitrary goroutines, to callbacks that run on the host loop.
package notify

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/louteranas/nomad-viewer/hostloop"
	"github.com/louteranas/nomad-viewer/internal/mlog"
	"github.com/louteranas/nomad-viewer/property"
	"github.com/louteranas/nomad-viewer/value"
)

// ErrClosed is returned by Bridge.Deliver() after the bridge is closed.
var ErrClosed = errors.New("notification bridge is closed")

// Callback is a function that handles a property change on the host loop.
type Callback func(value.Value) error

// CallbackError is reported to the host loop when a callback fails, or when
// a change can not be passed to its callback.
type CallbackError struct {
	ID    property.ID
	Cause error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("change callback for property %d failed: %s", e.ID, e.Cause)
}

func (e *CallbackError) Unwrap() error {
	return e.Cause
}

// Bridge maps property IDs to host callbacks.
//
// At most one callback is registered per property. Changes are copied and
// posted to the host loop as work items. A work item whose registration has
// been replaced or removed by the time it reaches the front of the loop is
// dropped.
type Bridge struct {
	Loop   hostloop.Poster
	Logger logging.Logger

	m      sync.Mutex
	regs   map[property.ID]*registration
	closed bool
}

type registration struct {
	id   property.ID
	kind value.Kind
	fn   Callback
}

// workItem is a single change awaiting delivery on the host loop.
type workItem struct {
	reg *registration
	v   value.Value
}

// Register installs fn as the callback for changes to the property with the
// given ID, replacing any existing callback.
//
// k is the kind of the property. Changes of any other kind are reported as
// failures rather than being passed to fn.
func (b *Bridge) Register(id property.ID, k value.Kind, fn Callback) {
	if fn == nil {
		panic("callback must not be nil")
	}

	b.m.Lock()
	defer b.m.Unlock()

	if b.regs == nil {
		b.regs = map[property.ID]*registration{}
	}

	b.regs[id] = &registration{id, k, fn}
}

// Unregister removes the callback for the property with the given ID.
//
// Changes that are already queued on the host loop are dropped.
func (b *Bridge) Unregister(id property.ID) {
	b.m.Lock()
	defer b.m.Unlock()

	delete(b.regs, id)
}

// Deliver queues a change for delivery to the property's callback.
//
// It is safe to call from any goroutine and never blocks. Changes to
// properties without a callback are dropped. Its signature matches
// property.Sink.
func (b *Bridge) Deliver(id property.ID, v value.Value) error {
	b.m.Lock()
	reg := b.regs[id]
	closed := b.closed
	b.m.Unlock()

	if closed {
		return ErrClosed
	}

	if reg == nil {
		droppedEvents.Inc()
		mlog.LogNotification(b.Logger, int32(id), v, true)
		return nil
	}

	item := workItem{reg, v.Clone()}

	return b.Loop.Post(func() error {
		return b.drain(item)
	})
}

// Close unregisters every callback. Changes that are already queued are
// dropped and subsequent calls to Deliver() return ErrClosed.
func (b *Bridge) Close() {
	b.m.Lock()
	defer b.m.Unlock()

	b.closed = true
	b.regs = nil
}

// drain passes a queued change to its callback. It runs on the host loop.
func (b *Bridge) drain(item workItem) error {
	if !b.isCurrent(item.reg) {
		droppedEvents.Inc()
		logging.Debug(b.Logger, "dropped change of property %d, its callback was replaced", item.reg.id)
		return nil
	}

	mlog.LogNotification(b.Logger, int32(item.reg.id), item.v, false)

	err := item.v.Expect(item.reg.kind)
	if err == nil {
		err = invoke(item.reg.fn, item.v)
	}

	if err != nil {
		failedEvents.Inc()
		mlog.LogCallbackFailure(b.Logger, int32(item.reg.id), err)
		return &CallbackError{item.reg.id, err}
	}

	deliveredEvents.Inc()
	return nil
}

func (b *Bridge) isCurrent(reg *registration) bool {
	b.m.Lock()
	defer b.m.Unlock()

	return b.regs[reg.id] == reg
}

func invoke(fn Callback, v value.Value) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panicked: %v", r)
		}
	}()

	return fn(v)
}

// On registers fn as the callback for a property of type T.
func On[T value.Native](b *Bridge, id property.ID, fn func(T)) {
	b.Register(
		id,
		value.KindFor[T](),
		func(v value.Value) error {
			x, err := value.As[T](v)
			if err != nil {
				return err
			}

			fn(x)
			return nil
		},
	)
}
