package api

import (
	"context"
	"io"

	"github.com/louteranas/nomad-viewer/internal/x/grpcx"
	"google.golang.org/grpc"
)

// ApplicationServiceName is the full name of the application lifecycle
// service.
const ApplicationServiceName = "nomad.application.v1.ApplicationAPI"

// ConnectRequest asks for the live instance of a named application.
type ConnectRequest struct {
	Name string `json:"name"`
}

// ConnectResponse describes the instance found by Connect. Its ID is
// NoInstance if there is no live instance.
type ConnectResponse struct {
	Instance Instance `json:"instance"`
}

// ConnectAllRequest asks for every live instance whose name matches a
// path.Match pattern.
type ConnectAllRequest struct {
	Pattern string `json:"pattern"`
}

// ConnectAllResponse lists the matching instances in ascending ID order.
type ConnectAllResponse struct {
	Instances []Instance `json:"instances"`
}

// StartRequest asks the process manager to launch a new instance.
type StartRequest struct {
	Name string   `json:"name"`
	Args []string `json:"args"`
}

// StartResponse describes the newly started instance.
type StartResponse struct {
	Instance Instance `json:"instance"`
}

// KillRequest asks the process manager to terminate an instance.
type KillRequest struct {
	InstanceID int32 `json:"instance_id"`
}

// KillResponse is the (empty) response to a KillRequest.
type KillResponse struct{}

// StateRequest asks for the current state of an instance.
type StateRequest struct {
	InstanceID int32 `json:"instance_id"`
}

// StateResponse describes the instance.
type StateResponse struct {
	Instance Instance `json:"instance"`
}

// WaitForRequest asks the process manager to block until an instance reaches
// a terminal state.
type WaitForRequest struct {
	InstanceID int32 `json:"instance_id"`
}

// WaitForResponse describes the instance in its terminal state.
type WaitForResponse struct {
	Instance Instance `json:"instance"`
}

// BindRequest asks the process manager to block until the instance serves
// the named operation.
type BindRequest struct {
	InstanceID int32  `json:"instance_id"`
	Operation  string `json:"operation"`
}

// BindResponse is the (empty) response to a BindRequest.
type BindResponse struct{}

// CallRequest is a request forwarded to an instance's responder.
type CallRequest struct {
	InstanceID int32  `json:"instance_id"`
	Operation  string `json:"operation"`
	RequestID  string `json:"request_id"`
	Payload    []byte `json:"payload"`
}

// CallResponse carries the responder's reply.
type CallResponse struct {
	Payload []byte `json:"payload"`
}

// ResponderMessage is sent by a worker on the Respond stream.
//
// The first message must contain Register, every subsequent message must
// contain Reply.
type ResponderMessage struct {
	Register *RegisterResponder `json:"register,omitempty"`
	Reply    *Reply             `json:"reply,omitempty"`
}

// RegisterResponder announces that a worker serves an operation.
type RegisterResponder struct {
	InstanceID int32  `json:"instance_id"`
	Operation  string `json:"operation"`
}

// Reply is a worker's answer to a dispatched request.
//
// A non-empty Error means the handler failed.
type Reply struct {
	RequestID string `json:"request_id"`
	Payload   []byte `json:"payload,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Dispatch is a request delivered to a worker on the Respond stream.
type Dispatch struct {
	RequestID string `json:"request_id"`
	Payload   []byte `json:"payload"`
}

// ApplicationServer is the server-side interface of the application
// lifecycle service.
type ApplicationServer interface {
	Connect(context.Context, *ConnectRequest) (*ConnectResponse, error)
	ConnectAll(context.Context, *ConnectAllRequest) (*ConnectAllResponse, error)
	Start(context.Context, *StartRequest) (*StartResponse, error)
	Kill(context.Context, *KillRequest) (*KillResponse, error)
	State(context.Context, *StateRequest) (*StateResponse, error)
	WaitFor(context.Context, *WaitForRequest) (*WaitForResponse, error)
	Bind(context.Context, *BindRequest) (*BindResponse, error)
	Request(context.Context, *CallRequest) (*CallResponse, error)
	Respond(RespondServer) error
}

// RespondServer is the server side of a worker's Respond stream.
type RespondServer interface {
	Send(*Dispatch) error
	Recv() (*ResponderMessage, error)
	Context() context.Context
}

// RegisterApplicationServer registers s with the gRPC server.
func RegisterApplicationServer(r grpc.ServiceRegistrar, s ApplicationServer) {
	r.RegisterService(&applicationServiceDesc, s)
}

var applicationServiceDesc = grpc.ServiceDesc{
	ServiceName: ApplicationServiceName,
	HandlerType: (*ApplicationServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(ApplicationServiceName, "Connect", ApplicationServer.Connect),
		unary(ApplicationServiceName, "ConnectAll", ApplicationServer.ConnectAll),
		unary(ApplicationServiceName, "Start", ApplicationServer.Start),
		unary(ApplicationServiceName, "Kill", ApplicationServer.Kill),
		unary(ApplicationServiceName, "State", ApplicationServer.State),
		unary(ApplicationServiceName, "WaitFor", ApplicationServer.WaitFor),
		unary(ApplicationServiceName, "Bind", ApplicationServer.Bind),
		unary(ApplicationServiceName, "Request", ApplicationServer.Request),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName: "Respond",
			Handler: func(srv interface{}, stream grpc.ServerStream) error {
				err := srv.(ApplicationServer).Respond(&respondServer{stream})
				return grpcx.ToStatus(err)
			},
			ServerStreams: true,
			ClientStreams: true,
		},
	},
}

type respondServer struct {
	grpc.ServerStream
}

func (s *respondServer) Send(m *Dispatch) error {
	return s.ServerStream.SendMsg(m)
}

func (s *respondServer) Recv() (*ResponderMessage, error) {
	m := new(ResponderMessage)
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ApplicationClient is the client-side interface of the application
// lifecycle service.
//
// Failures are returned as errors that wrap the fault sentinels.
type ApplicationClient interface {
	Connect(ctx context.Context, in *ConnectRequest, opts ...grpc.CallOption) (*ConnectResponse, error)
	ConnectAll(ctx context.Context, in *ConnectAllRequest, opts ...grpc.CallOption) (*ConnectAllResponse, error)
	Start(ctx context.Context, in *StartRequest, opts ...grpc.CallOption) (*StartResponse, error)
	Kill(ctx context.Context, in *KillRequest, opts ...grpc.CallOption) (*KillResponse, error)
	State(ctx context.Context, in *StateRequest, opts ...grpc.CallOption) (*StateResponse, error)
	WaitFor(ctx context.Context, in *WaitForRequest, opts ...grpc.CallOption) (*WaitForResponse, error)
	Bind(ctx context.Context, in *BindRequest, opts ...grpc.CallOption) (*BindResponse, error)
	Request(ctx context.Context, in *CallRequest, opts ...grpc.CallOption) (*CallResponse, error)
	Respond(ctx context.Context, opts ...grpc.CallOption) (RespondClient, error)
}

// RespondClient is the worker side of a Respond stream.
type RespondClient interface {
	Send(*ResponderMessage) error
	Recv() (*Dispatch, error)
	CloseSend() error
}

// NewApplicationClient returns a client of the application lifecycle service.
func NewApplicationClient(cc grpc.ClientConnInterface) ApplicationClient {
	return &applicationClient{cc}
}

type applicationClient struct {
	cc grpc.ClientConnInterface
}

func (c *applicationClient) method(m string) string {
	return "/" + ApplicationServiceName + "/" + m
}

func (c *applicationClient) Connect(ctx context.Context, in *ConnectRequest, opts ...grpc.CallOption) (*ConnectResponse, error) {
	return invoke[ConnectResponse](ctx, c.cc, c.method("Connect"), in, opts)
}

func (c *applicationClient) ConnectAll(ctx context.Context, in *ConnectAllRequest, opts ...grpc.CallOption) (*ConnectAllResponse, error) {
	return invoke[ConnectAllResponse](ctx, c.cc, c.method("ConnectAll"), in, opts)
}

func (c *applicationClient) Start(ctx context.Context, in *StartRequest, opts ...grpc.CallOption) (*StartResponse, error) {
	return invoke[StartResponse](ctx, c.cc, c.method("Start"), in, opts)
}

func (c *applicationClient) Kill(ctx context.Context, in *KillRequest, opts ...grpc.CallOption) (*KillResponse, error) {
	return invoke[KillResponse](ctx, c.cc, c.method("Kill"), in, opts)
}

func (c *applicationClient) State(ctx context.Context, in *StateRequest, opts ...grpc.CallOption) (*StateResponse, error) {
	return invoke[StateResponse](ctx, c.cc, c.method("State"), in, opts)
}

func (c *applicationClient) WaitFor(ctx context.Context, in *WaitForRequest, opts ...grpc.CallOption) (*WaitForResponse, error) {
	return invoke[WaitForResponse](ctx, c.cc, c.method("WaitFor"), in, opts)
}

func (c *applicationClient) Bind(ctx context.Context, in *BindRequest, opts ...grpc.CallOption) (*BindResponse, error) {
	return invoke[BindResponse](ctx, c.cc, c.method("Bind"), in, opts)
}

func (c *applicationClient) Request(ctx context.Context, in *CallRequest, opts ...grpc.CallOption) (*CallResponse, error) {
	return invoke[CallResponse](ctx, c.cc, c.method("Request"), in, opts)
}

func (c *applicationClient) Respond(ctx context.Context, opts ...grpc.CallOption) (RespondClient, error) {
	stream, err := c.cc.NewStream(
		ctx,
		&applicationServiceDesc.Streams[0],
		c.method("Respond"),
		withCodec(opts)...,
	)
	if err != nil {
		return nil, grpcx.FromStatus(ctx, err)
	}

	return &respondClient{stream}, nil
}

type respondClient struct {
	grpc.ClientStream
}

func (c *respondClient) Send(m *ResponderMessage) error {
	if err := c.ClientStream.SendMsg(m); err != nil {
		return streamError(c.Context(), err)
	}
	return nil
}

func (c *respondClient) Recv() (*Dispatch, error) {
	m := new(Dispatch)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, streamError(c.Context(), err)
	}
	return m, nil
}

// streamError maps a stream failure to a fault error, leaving io.EOF intact.
func streamError(ctx context.Context, err error) error {
	if err == io.EOF {
		return err
	}
	return grpcx.FromStatus(ctx, err)
}
