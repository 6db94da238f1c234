// Package responder lets a worker started by the process manager serve
// requests for a named operation.
package responder

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dogmatiq/dodeca/config"
	"github.com/dogmatiq/dodeca/logging"
	"github.com/louteranas/nomad-viewer/api"
)

// Handler handles requests sent to an operation.
type Handler interface {
	HandleRequest(ctx context.Context, payload []byte) ([]byte, error)
}

// HandlerFunc is an adaptor to use a function as a Handler.
type HandlerFunc func(ctx context.Context, payload []byte) ([]byte, error)

// HandleRequest calls fn(ctx, payload).
func (fn HandlerFunc) HandleRequest(ctx context.Context, payload []byte) ([]byte, error) {
	return fn(ctx, payload)
}

// Serve registers h as the responder for the operation of the given
// instance and handles requests, one at a time, until ctx is canceled or the
// stream fails.
//
// A handler error is reported to the requester and does not stop serving.
func Serve(
	ctx context.Context,
	c api.ApplicationClient,
	instanceID int32,
	operation string,
	h Handler,
	logger logging.Logger,
) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.Respond(ctx)
	if err != nil {
		return err
	}

	if err := stream.Send(&api.ResponderMessage{
		Register: &api.RegisterResponder{
			InstanceID: instanceID,
			Operation:  operation,
		},
	}); err != nil {
		return err
	}

	logging.Log(logger, "serving %s as instance %d", operation, instanceID)

	for {
		d, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		rep := &api.Reply{RequestID: d.RequestID}

		payload, err := h.HandleRequest(ctx, d.Payload)
		if err != nil {
			logging.Log(logger, "unable to handle %s request %s: %s", operation, d.RequestID, err)
			rep.Error = err.Error()
		} else {
			rep.Payload = payload
		}

		if err := stream.Send(&api.ResponderMessage{Reply: rep}); err != nil {
			return err
		}
	}
}

// Environment is the information the process manager passes to the workers
// it launches.
type Environment struct {
	ManagerEndpoint string
	InstanceID      int32
}

// FromEnvironment reads the worker environment from the process environment.
func FromEnvironment() (Environment, error) {
	return FromBucket(config.Environment())
}

// FromBucket reads the worker environment from a configuration bucket.
func FromBucket(b config.Bucket) (Environment, error) {
	endpoint := config.AsStringDefault(b, api.ManagerEndpointEnv, "")
	if endpoint == "" {
		return Environment{}, fmt.Errorf("%s is not set, was the worker started by the process manager?", api.ManagerEndpointEnv)
	}

	id, err := strconv.ParseInt(config.AsStringDefault(b, api.InstanceIDEnv, ""), 10, 32)
	if err != nil {
		return Environment{}, fmt.Errorf("%s is not a valid instance ID: %w", api.InstanceIDEnv, err)
	}

	return Environment{
		ManagerEndpoint: endpoint,
		InstanceID:      int32(id),
	}, nil
}
