package grpcx

import (
	"context"
	"errors"
	"fmt"

	"github.com/louteranas/nomad-viewer/fault"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/runtime/protoiface"
	"google.golang.org/protobuf/runtime/protoimpl"
)

// Domain is the ErrorInfo domain used to tag failure kinds.
const Domain = "nomad-viewer"

// Errorf returns a new gRPC status error, with optional detail messages.
func Errorf(
	code codes.Code,
	details []proto.Message,
	f string,
	v ...interface{},
) error {
	s := status.Newf(code, f, v...)

	detailsV1 := make([]protoiface.MessageV1, len(details))

	for i, m := range details {
		detailsV1[i] = protoimpl.X.ProtoMessageV1Of(m)
	}

	var err error
	s, err = s.WithDetails(detailsV1...)
	if err != nil {
		panic(err)
	}

	return s.Err()
}

// FaultError returns a gRPC status error for a failure of kind k.
//
// The kind travels as the reason of an ErrorInfo detail, so that clients can
// map the error back to the matching fault sentinel.
func FaultError(k fault.Kind, f string, v ...interface{}) error {
	return Errorf(
		codeFor(k),
		[]proto.Message{
			&errdetails.ErrorInfo{
				Reason: string(k),
				Domain: Domain,
			},
		},
		f, v...,
	)
}

// ToStatus converts err to a gRPC status error.
//
// Errors that wrap a fault sentinel keep their kind, context errors map to
// their gRPC equivalents, and anything else becomes an internal error.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := status.FromError(err); ok {
		return err
	}

	if k, ok := fault.KindOf(err); ok {
		return FaultError(k, "%s", err)
	}

	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// FromStatus converts a gRPC error returned by a client call into an error
// that wraps the matching fault sentinel.
//
// Context cancelation is returned as the context error, so callers can
// distinguish their own deadlines from remote failures.
func FromStatus(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	s, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %s", fault.ErrTransportFailure, err)
	}

	for _, d := range s.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == Domain {
			if sentinel, ok := fault.Sentinel(fault.Kind(info.GetReason())); ok {
				return fmt.Errorf("%w: %s", sentinel, s.Message())
			}
		}
	}

	switch s.Code() {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	case codes.NotFound:
		return fmt.Errorf("%w: %s", fault.ErrNotFound, s.Message())
	default:
		// Unavailable, Unimplemented, Internal and friends all mean that the
		// remote side could not be reached or could not make sense of the
		// call.
		return fmt.Errorf("%w: %s", fault.ErrTransportFailure, s.Message())
	}
}

func codeFor(k fault.Kind) codes.Code {
	switch k {
	case fault.NotFound:
		return codes.NotFound
	case fault.TypeMismatch:
		return codes.InvalidArgument
	case fault.ChannelUnavailable, fault.StartFailed:
		return codes.FailedPrecondition
	default:
		return codes.Unavailable
	}
}
