package viewer

import (
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger/backoff"
	"github.com/louteranas/nomad-viewer/hostloop"
	"github.com/louteranas/nomad-viewer/property"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var (
	// DefaultLogger is the default target for log messages produced by a
	// session.
	//
	// It is overridden by the WithLogger() option.
	DefaultLogger = logging.DefaultLogger

	// DefaultDialOptions are the options used to dial the process managers.
	//
	// Options passed to WithDialOptions() are applied after these.
	DefaultDialOptions = []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}

	// DefaultRequestTimeout is the default deadline applied to each request
	// sent over the request channel. Zero means no deadline other than that
	// of the caller's context.
	//
	// It is overridden by the WithRequestTimeout() option.
	DefaultRequestTimeout time.Duration

	// DefaultWatchBackoff is the default strategy for delaying reconnection
	// of the property change stream.
	//
	// It is overridden by the WithWatchBackoff() option.
	DefaultWatchBackoff = property.DefaultWatchBackoff

	// DefaultRemoteListPattern is the default application name pattern used
	// by Session.ListRemoteInstances().
	//
	// It is overridden by the WithRemoteListPattern() option.
	DefaultRemoteListPattern = "nssim"
)

// SessionOption configures the behavior of a session.
type SessionOption func(*sessionOptions)

// WithLogger returns a session option that sets the target for log messages
// produced by the session.
//
// If this option is omitted or l is nil DefaultLogger is used.
func WithLogger(l logging.Logger) SessionOption {
	return func(opts *sessionOptions) {
		opts.Logger = l
	}
}

// WithDialOptions returns a session option that adds gRPC dial options used
// when connecting to the process managers.
func WithDialOptions(o ...grpc.DialOption) SessionOption {
	return func(opts *sessionOptions) {
		opts.DialOptions = append(opts.DialOptions, o...)
	}
}

// WithRequestTimeout returns a session option that sets the deadline applied
// to each request sent over the request channel.
//
// If this option is omitted or d is zero DefaultRequestTimeout is used.
func WithRequestTimeout(d time.Duration) SessionOption {
	if d < 0 {
		panic("duration must not be negative")
	}

	return func(opts *sessionOptions) {
		opts.RequestTimeout = d
	}
}

// WithWatchBackoff returns a session option that sets the backoff strategy
// used to delay reconnection of the property change stream.
//
// If this option is omitted or s is nil DefaultWatchBackoff is used.
func WithWatchBackoff(s backoff.Strategy) SessionOption {
	return func(opts *sessionOptions) {
		opts.WatchBackoff = s
	}
}

// WithRemoteListPattern returns a session option that sets the application
// name pattern used when ListRemoteInstances() is called without one.
//
// If this option is omitted or p is empty DefaultRemoteListPattern is used.
func WithRemoteListPattern(p string) SessionOption {
	return func(opts *sessionOptions) {
		opts.RemoteListPattern = p
	}
}

// WithLoop returns a session option that delivers property change callbacks
// and asynchronous request results on a host loop owned by the caller.
//
// If this option is omitted the session creates its own loop, which the host
// pumps via Session.Loop(), and closes it when the session is terminated.
func WithLoop(l *hostloop.Loop) SessionOption {
	return func(opts *sessionOptions) {
		opts.Loop = l
	}
}

// sessionOptions is a container for a fully-resolved set of session options.
type sessionOptions struct {
	Logger            logging.Logger
	DialOptions       []grpc.DialOption
	RequestTimeout    time.Duration
	WatchBackoff      backoff.Strategy
	RemoteListPattern string
	Loop              *hostloop.Loop
}

// resolveSessionOptions returns a fully-populated set of session options
// built from the given set of option functions.
func resolveSessionOptions(options ...SessionOption) *sessionOptions {
	opts := &sessionOptions{
		DialOptions: append([]grpc.DialOption(nil), DefaultDialOptions...),
	}

	for _, o := range options {
		o(opts)
	}

	if opts.Logger == nil {
		opts.Logger = DefaultLogger
	}

	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}

	if opts.WatchBackoff == nil {
		opts.WatchBackoff = DefaultWatchBackoff
	}

	if opts.RemoteListPattern == "" {
		opts.RemoteListPattern = DefaultRemoteListPattern
	}

	return opts
}
