package grpcx

import (
	"context"
	"net"

	"google.golang.org/grpc"
)

// Serve runs s on lis until ctx is canceled or the server fails.
//
// The caller must not stop s itself. When ctx is canceled the server is
// stopped and ctx.Err() is returned.
func Serve(
	ctx context.Context,
	lis net.Listener,
	s *grpc.Server,
) error {
	// Guarantees the goroutine below exits if Serve() fails first.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	err := s.Serve(lis)

	// A nil error means the server was stopped by the goroutine above.
	if err == nil {
		<-ctx.Done()
		err = ctx.Err()
	}

	return err
}
