package servant

import (
	"context"
	"errors"
	"sync"

	"github.com/louteranas/nomad-viewer/value"
)

var (
	// ErrCursorLagged is returned when a watcher asks for a change that is
	// no longer retained by the log.
	ErrCursorLagged = errors.New("watcher fell behind the retained change log")

	// ErrLogClosed is returned by ChangeLog.Next() after the log is closed.
	ErrLogClosed = errors.New("change log is closed")
)

// DefaultLogSize is the default number of changes retained by a ChangeLog.
const DefaultLogSize = 1000

// Change is a single change to a property value.
type Change struct {
	Offset uint64
	ID     int32
	Value  value.Value
}

// ChangeLog is a bounded in-memory log of recent property changes.
//
// Watchers read the log from an offset and block at the end of the log until
// a change is appended.
type ChangeLog struct {
	// Size is the number of changes retained. If it is non-positive,
	// DefaultLogSize is used.
	Size int

	m      sync.Mutex
	ring   []Change
	end    uint64
	ready  chan struct{}
	closed bool
}

// Append adds a change to the log and wakes any blocked readers.
func (l *ChangeLog) Append(id int32, v value.Value) uint64 {
	l.m.Lock()
	defer l.m.Unlock()

	if l.ring == nil {
		size := l.Size
		if size <= 0 {
			size = DefaultLogSize
		}
		l.ring = make([]Change, size)
	}

	o := l.end
	l.ring[o%uint64(len(l.ring))] = Change{
		Offset: o,
		ID:     id,
		Value:  v,
	}
	l.end++

	if l.ready != nil {
		close(l.ready)
		l.ready = nil
	}

	return o
}

// End returns the offset of the next change to be appended.
func (l *ChangeLog) End() uint64 {
	l.m.Lock()
	defer l.m.Unlock()

	return l.end
}

// Next returns the change at offset o.
//
// If o is the end of the log it blocks until a change is appended, ctx is
// canceled or the log is closed. It returns ErrCursorLagged if the change
// has already been discarded.
func (l *ChangeLog) Next(ctx context.Context, o uint64) (Change, error) {
	for {
		c, ready, err := l.get(o)
		if ready == nil {
			return c, err
		}

		select {
		case <-ctx.Done():
			return Change{}, ctx.Err()
		case <-ready:
		}
	}
}

func (l *ChangeLog) get(o uint64) (Change, <-chan struct{}, error) {
	l.m.Lock()
	defer l.m.Unlock()

	if l.closed {
		return Change{}, nil, ErrLogClosed
	}

	if o < l.end {
		if l.end-o > uint64(len(l.ring)) {
			return Change{}, nil, ErrCursorLagged
		}

		return l.ring[o%uint64(len(l.ring))], nil, nil
	}

	if l.ready == nil {
		l.ready = make(chan struct{})
	}

	return Change{}, l.ready, nil
}

// Close closes the log, waking any blocked readers.
func (l *ChangeLog) Close() error {
	l.m.Lock()
	defer l.m.Unlock()

	if l.closed {
		return ErrLogClosed
	}

	l.closed = true

	if l.ready != nil {
		close(l.ready)
		l.ready = nil
	}

	return nil
}
