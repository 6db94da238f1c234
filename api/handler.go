package api

import (
	"context"

	"github.com/louteranas/nomad-viewer/internal/x/grpcx"
	"google.golang.org/grpc"
)

// unary returns the descriptor of a unary method of the named service.
//
// Errors returned by fn are converted to gRPC status errors that carry the
// failure kind.
func unary[S, Req, Res any](
	service, method string,
	fn func(S, context.Context, *Req) (*Res, error),
) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method

	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(
			srv interface{},
			ctx context.Context,
			dec func(interface{}) error,
			interceptor grpc.UnaryServerInterceptor,
		) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}

			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				out, err := fn(srv.(S), ctx, req.(*Req))
				if err != nil {
					return nil, grpcx.ToStatus(err)
				}
				return out, nil
			}

			if interceptor == nil {
				return handler(ctx, in)
			}

			return interceptor(
				ctx,
				in,
				&grpc.UnaryServerInfo{
					Server:     srv,
					FullMethod: fullMethod,
				},
				handler,
			)
		},
	}
}

// invoke performs a unary call and maps any failure to a fault error.
func invoke[Res any](
	ctx context.Context,
	cc grpc.ClientConnInterface,
	method string,
	in interface{},
	opts []grpc.CallOption,
) (*Res, error) {
	out := new(Res)

	if err := cc.Invoke(ctx, method, in, out, withCodec(opts)...); err != nil {
		return nil, grpcx.FromStatus(ctx, err)
	}

	return out, nil
}
