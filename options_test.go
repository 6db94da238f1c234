package viewer

import (
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger/backoff"
	"github.com/louteranas/nomad-viewer/hostloop"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/grpc"
)

var _ = Describe("func WithLogger()", func() {
	It("sets the logger", func() {
		l := &logging.BufferedLogger{}
		opts := resolveSessionOptions(WithLogger(l))
		Expect(opts.Logger).To(BeIdenticalTo(l))
	})

	It("uses the default if the logger is nil", func() {
		opts := resolveSessionOptions(WithLogger(nil))
		Expect(opts.Logger).To(Equal(DefaultLogger))
	})
})

var _ = Describe("func WithDialOptions()", func() {
	It("appends to the default dial options", func() {
		opts := resolveSessionOptions(
			WithDialOptions(grpc.WithUserAgent("<agent>")),
			WithDialOptions(grpc.WithUserAgent("<other>")),
		)
		Expect(opts.DialOptions).To(HaveLen(len(DefaultDialOptions) + 2))
	})
})

var _ = Describe("func WithRequestTimeout()", func() {
	It("sets the request timeout", func() {
		opts := resolveSessionOptions(WithRequestTimeout(10 * time.Second))
		Expect(opts.RequestTimeout).To(Equal(10 * time.Second))
	})

	It("defaults to no timeout", func() {
		opts := resolveSessionOptions()
		Expect(opts.RequestTimeout).To(Equal(DefaultRequestTimeout))
		Expect(opts.RequestTimeout).To(BeZero())
	})

	It("panics if the duration is negative", func() {
		Expect(func() {
			WithRequestTimeout(-1)
		}).To(Panic())
	})
})

var _ = Describe("func WithWatchBackoff()", func() {
	It("sets the backoff strategy", func() {
		p := backoff.Constant(10 * time.Second)
		opts := resolveSessionOptions(WithWatchBackoff(p))
		Expect(opts.WatchBackoff(nil, 1)).To(Equal(10 * time.Second))
	})

	It("uses the default if the strategy is nil", func() {
		opts := resolveSessionOptions(WithWatchBackoff(nil))
		Expect(opts.WatchBackoff).NotTo(BeNil())
	})
})

var _ = Describe("func WithRemoteListPattern()", func() {
	It("sets the pattern", func() {
		opts := resolveSessionOptions(WithRemoteListPattern("ns*"))
		Expect(opts.RemoteListPattern).To(Equal("ns*"))
	})

	It("uses the default if the pattern is empty", func() {
		opts := resolveSessionOptions(WithRemoteListPattern(""))
		Expect(opts.RemoteListPattern).To(Equal(DefaultRemoteListPattern))
	})
})

var _ = Describe("func WithLoop()", func() {
	It("sets the host loop", func() {
		l := &hostloop.Loop{}
		opts := resolveSessionOptions(WithLoop(l))
		Expect(opts.Loop).To(BeIdenticalTo(l))
	})
})
