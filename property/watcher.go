package property

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger"
	"github.com/dogmatiq/linger/backoff"
	"github.com/louteranas/nomad-viewer/api"
	"github.com/louteranas/nomad-viewer/internal/mlog"
	"github.com/louteranas/nomad-viewer/value"
)

// DefaultWatchBackoff is the default strategy for delaying reconnection
// attempts after a Watch stream fails.
var DefaultWatchBackoff backoff.Strategy = backoff.WithTransforms(
	backoff.Exponential(100*time.Millisecond),
	linger.FullJitter,
	linger.Limiter(0, 30*time.Second),
)

// Sink receives property changes, in the order the remote side reports them.
type Sink func(ID, value.Value) error

// Watcher streams property changes from the remote side to a Sink.
//
// It runs on its own goroutine, the sink must not assume it is called on the
// host's goroutine.
type Watcher struct {
	Client api.PropertyClient

	// IDs is the set of properties to watch. If it is empty every property is
	// watched.
	IDs []ID

	Sink Sink

	// BackoffStrategy controls the delay between reconnection attempts. If it
	// is nil, DefaultWatchBackoff is used.
	BackoffStrategy backoff.Strategy

	Logger logging.Logger
}

// Run watches for changes until ctx is canceled.
//
// Stream failures are logged and the stream is re-opened after a delay. Sink
// failures are logged and do not interrupt the stream.
func (w *Watcher) Run(ctx context.Context) error {
	s := w.BackoffStrategy
	if s == nil {
		s = DefaultWatchBackoff
	}

	var failures uint

	for {
		received, err := w.watch(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if received {
			failures = 0
		}

		delay := s(err, failures)
		failures++

		mlog.LogRetry(w.Logger, "watch property changes", err, delay)

		if err := linger.Sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// watch consumes a single Watch stream. It returns true if at least one event
// was received.
func (w *Watcher) watch(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req := &api.WatchRequest{}
	for _, id := range w.IDs {
		req.IDs = append(req.IDs, int32(id))
	}

	stream, err := w.Client.Watch(ctx, req)
	if err != nil {
		return false, err
	}

	received := false

	for {
		ev, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = errors.New("stream closed by the remote side")
			}
			return received, err
		}

		received = true

		if err := w.Sink(ID(ev.ID), ev.Value); err != nil {
			logging.Log(w.Logger, "unable to deliver change of property %d: %s", ev.ID, err)
		}
	}
}
