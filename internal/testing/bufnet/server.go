// Package bufnet runs gRPC servers on in-memory listeners for use in tests.
package bufnet

import (
	"context"
	"fmt"
	"net"

	"github.com/louteranas/nomad-viewer/internal/x/grpcx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

const bufferSize = 1 << 20

// Server is a gRPC server listening on an in-memory listener.
type Server struct {
	listener *bufconn.Listener
	cancel   context.CancelFunc
	done     chan struct{}
}

// Start starts a gRPC server with the services added by register.
//
// The server runs until Stop() is called.
func Start(register func(*grpc.Server)) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		listener: bufconn.Listen(bufferSize),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	g := grpc.NewServer()
	register(g)

	go func() {
		defer close(s.done)
		_ = grpcx.Serve(ctx, s.listener, g)
	}()

	return s
}

// Dial returns a client connection to the server.
func (s *Server) Dial(ctx context.Context, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	return grpc.DialContext(
		ctx,
		"bufnet",
		append(
			[]grpc.DialOption{
				s.DialOption(),
				grpc.WithTransportCredentials(insecure.NewCredentials()),
			},
			opts...,
		)...,
	)
}

// DialOption returns a dial option that connects to this server regardless
// of the dial target.
func (s *Server) DialOption() grpc.DialOption {
	return grpc.WithContextDialer(
		func(ctx context.Context, _ string) (net.Conn, error) {
			return s.Connect(ctx)
		},
	)
}

// Connect opens a raw connection to the server's listener.
func (s *Server) Connect(ctx context.Context) (net.Conn, error) {
	return s.listener.DialContext(ctx)
}

// Router returns a dial option that connects to one of several servers
// depending on the dial target.
func Router(servers map[string]*Server) grpc.DialOption {
	return grpc.WithContextDialer(
		func(ctx context.Context, addr string) (net.Conn, error) {
			s, ok := servers[addr]
			if !ok {
				return nil, fmt.Errorf("no in-memory server at %s", addr)
			}
			return s.Connect(ctx)
		},
	)
}

// Stop stops the server and waits for it to exit.
func (s *Server) Stop() {
	s.cancel()
	<-s.done
}
