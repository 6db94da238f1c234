package application

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/google/uuid"
	"github.com/louteranas/nomad-viewer/api"
	"github.com/louteranas/nomad-viewer/fault"
	"github.com/louteranas/nomad-viewer/internal/mlog"
)

// ErrCallInFlight is returned by Requester.Call() if another call on the same
// requester has not yet completed.
var ErrCallInFlight = errors.New("a request is already in flight on this channel")

// Requester is a synchronous request/reply channel bound to one operation of
// one application instance.
//
// At most one request is in flight at a time. Call() is safe to use from any
// goroutine, but concurrent calls fail with ErrCallInFlight rather than
// queueing.
type Requester struct {
	client    api.ApplicationClient
	instance  *Instance
	operation string
	logger    logging.Logger

	inFlight int32 // atomic
	closed   int32 // atomic
}

// NewRequester binds a requester to the named operation of a live instance.
//
// It blocks until the instance serves the operation or ctx is canceled. It
// returns an error that wraps fault.ErrChannelUnavailable if the instance
// does not exist, does not declare the operation or exits before serving it.
func NewRequester(
	ctx context.Context,
	c api.ApplicationClient,
	i *Instance,
	operation string,
	logger logging.Logger,
) (*Requester, error) {
	if !i.Exists() {
		return nil, fault.New(
			fault.ChannelUnavailable,
			"can not bind to %s of %s, it is not running",
			operation,
			i.Name,
		)
	}

	_, err := c.Bind(
		ctx,
		&api.BindRequest{
			InstanceID: i.ID,
			Operation:  operation,
		},
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}

		if errors.Is(err, fault.ErrChannelUnavailable) {
			return nil, err
		}

		return nil, fmt.Errorf(
			"%w: unable to bind to %s of %s: %s",
			fault.ErrChannelUnavailable,
			operation,
			i,
			err,
		)
	}

	logging.Debug(logger, "bound to %s of %s", operation, i)

	return &Requester{
		client:    c,
		instance:  i,
		operation: operation,
		logger:    logger,
	}, nil
}

// Instance returns the instance the requester is bound to.
func (r *Requester) Instance() *Instance {
	return r.instance
}

// Operation returns the name of the operation the requester is bound to.
func (r *Requester) Operation() string {
	return r.operation
}

// Call sends payload to the bound operation and returns its reply.
//
// There is no timeout other than the deadline of ctx. Transport failures
// wrap fault.ErrTransportFailure. After Close() it returns an error that
// wraps fault.ErrChannelUnavailable.
func (r *Requester) Call(ctx context.Context, payload []byte) ([]byte, error) {
	if atomic.LoadInt32(&r.closed) != 0 {
		return nil, fault.New(fault.ChannelUnavailable, "requester for %s is closed", r.operation)
	}

	if !atomic.CompareAndSwapInt32(&r.inFlight, 0, 1) {
		return nil, ErrCallInFlight
	}
	defer atomic.StoreInt32(&r.inFlight, 0)

	id := uuid.NewString()
	mlog.LogRequest(r.logger, id, r.instance.Name, r.instance.ID, r.operation, len(payload))

	start := time.Now()
	res, err := r.client.Request(
		ctx,
		&api.CallRequest{
			InstanceID: r.instance.ID,
			Operation:  r.operation,
			RequestID:  id,
			Payload:    payload,
		},
	)
	elapsed := time.Since(start)

	if err != nil {
		observeRequest(r.operation, "error", elapsed)
		mlog.LogResponse(r.logger, id, r.instance.Name, r.instance.ID, r.operation, 0, elapsed, err)
		return nil, err
	}

	observeRequest(r.operation, "ok", elapsed)
	mlog.LogResponse(r.logger, id, r.instance.Name, r.instance.ID, r.operation, len(res.Payload), elapsed, nil)

	return res.Payload, nil
}

// Close releases the requester. Subsequent calls fail.
func (r *Requester) Close() error {
	atomic.StoreInt32(&r.closed, 1)
	return nil
}
