package api

import (
	"context"

	"github.com/louteranas/nomad-viewer/internal/x/grpcx"
	"github.com/louteranas/nomad-viewer/value"
	"google.golang.org/grpc"
)

// PropertyServiceName is the full name of the property service.
const PropertyServiceName = "nomad.property.v1.PropertyAPI"

// ResolveRequest asks for the numeric ID of a property of a named servant.
type ResolveRequest struct {
	Servant  string `json:"servant"`
	Property string `json:"property"`
}

// ResolveResponse describes the resolved property.
type ResolveResponse struct {
	ID       int32      `json:"id"`
	Kind     value.Kind `json:"kind"`
	ReadOnly bool       `json:"read_only,omitempty"`
}

// GetRequest asks for the current value of a property.
//
// Kind is the kind the caller expects. The server rejects the request with a
// type mismatch if it differs from the property's declared kind.
type GetRequest struct {
	ID   int32      `json:"id"`
	Kind value.Kind `json:"kind"`
}

// GetResponse carries the property value.
type GetResponse struct {
	Value value.Value `json:"value"`
}

// SetRequest asks for a property to be assigned a new value.
type SetRequest struct {
	ID    int32       `json:"id"`
	Value value.Value `json:"value"`
}

// SetResponse reports whether the new value was accepted.
type SetResponse struct {
	Accepted bool `json:"accepted"`
}

// WatchRequest opens a stream of property changes.
//
// If IDs is empty, changes to every property are streamed.
type WatchRequest struct {
	IDs []int32 `json:"ids,omitempty"`
}

// ChangeEvent is a single property change.
type ChangeEvent struct {
	ID    int32       `json:"id"`
	Value value.Value `json:"value"`
}

// PropertyServer is the server-side interface of the property service.
type PropertyServer interface {
	Resolve(context.Context, *ResolveRequest) (*ResolveResponse, error)
	Get(context.Context, *GetRequest) (*GetResponse, error)
	Set(context.Context, *SetRequest) (*SetResponse, error)
	Watch(*WatchRequest, WatchServer) error
}

// WatchServer is the server side of a Watch stream.
type WatchServer interface {
	Send(*ChangeEvent) error
	Context() context.Context
}

// RegisterPropertyServer registers s with the gRPC server.
func RegisterPropertyServer(r grpc.ServiceRegistrar, s PropertyServer) {
	r.RegisterService(&propertyServiceDesc, s)
}

var propertyServiceDesc = grpc.ServiceDesc{
	ServiceName: PropertyServiceName,
	HandlerType: (*PropertyServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(PropertyServiceName, "Resolve", PropertyServer.Resolve),
		unary(PropertyServiceName, "Get", PropertyServer.Get),
		unary(PropertyServiceName, "Set", PropertyServer.Set),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName: "Watch",
			Handler: func(srv interface{}, stream grpc.ServerStream) error {
				in := new(WatchRequest)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}

				err := srv.(PropertyServer).Watch(in, &watchServer{stream})
				return grpcx.ToStatus(err)
			},
			ServerStreams: true,
		},
	},
}

type watchServer struct {
	grpc.ServerStream
}

func (s *watchServer) Send(m *ChangeEvent) error {
	return s.ServerStream.SendMsg(m)
}

// PropertyClient is the client-side interface of the property service.
//
// Failures are returned as errors that wrap the fault sentinels.
type PropertyClient interface {
	Resolve(ctx context.Context, in *ResolveRequest, opts ...grpc.CallOption) (*ResolveResponse, error)
	Get(ctx context.Context, in *GetRequest, opts ...grpc.CallOption) (*GetResponse, error)
	Set(ctx context.Context, in *SetRequest, opts ...grpc.CallOption) (*SetResponse, error)
	Watch(ctx context.Context, in *WatchRequest, opts ...grpc.CallOption) (WatchClient, error)
}

// WatchClient is the client side of a Watch stream.
type WatchClient interface {
	Recv() (*ChangeEvent, error)
}

// NewPropertyClient returns a client of the property service.
func NewPropertyClient(cc grpc.ClientConnInterface) PropertyClient {
	return &propertyClient{cc}
}

type propertyClient struct {
	cc grpc.ClientConnInterface
}

func (c *propertyClient) method(m string) string {
	return "/" + PropertyServiceName + "/" + m
}

func (c *propertyClient) Resolve(ctx context.Context, in *ResolveRequest, opts ...grpc.CallOption) (*ResolveResponse, error) {
	return invoke[ResolveResponse](ctx, c.cc, c.method("Resolve"), in, opts)
}

func (c *propertyClient) Get(ctx context.Context, in *GetRequest, opts ...grpc.CallOption) (*GetResponse, error) {
	return invoke[GetResponse](ctx, c.cc, c.method("Get"), in, opts)
}

func (c *propertyClient) Set(ctx context.Context, in *SetRequest, opts ...grpc.CallOption) (*SetResponse, error) {
	return invoke[SetResponse](ctx, c.cc, c.method("Set"), in, opts)
}

func (c *propertyClient) Watch(ctx context.Context, in *WatchRequest, opts ...grpc.CallOption) (WatchClient, error) {
	stream, err := c.cc.NewStream(
		ctx,
		&propertyServiceDesc.Streams[0],
		c.method("Watch"),
		withCodec(opts)...,
	)
	if err != nil {
		return nil, grpcx.FromStatus(ctx, err)
	}

	if err := stream.SendMsg(in); err != nil {
		return nil, streamError(ctx, err)
	}

	if err := stream.CloseSend(); err != nil {
		return nil, streamError(ctx, err)
	}

	return &watchClient{stream}, nil
}

type watchClient struct {
	grpc.ClientStream
}

func (c *watchClient) Recv() (*ChangeEvent, error) {
	m := new(ChangeEvent)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, streamError(c.Context(), err)
	}
	return m, nil
}
