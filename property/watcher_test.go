package property_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dogmatiq/linger/backoff"
	"github.com/louteranas/nomad-viewer/api"
	"github.com/louteranas/nomad-viewer/internal/testing/bufnet"
	. "github.com/louteranas/nomad-viewer/property"
	"github.com/louteranas/nomad-viewer/servant"
	"github.com/louteranas/nomad-viewer/value"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/grpc"
)

// flakyClient is a PropertyClient whose first Watch() call fails.
type flakyClient struct {
	api.PropertyClient

	m     sync.Mutex
	calls int
}

func (c *flakyClient) Watch(ctx context.Context, in *api.WatchRequest, opts ...grpc.CallOption) (api.WatchClient, error) {
	c.m.Lock()
	c.calls++
	n := c.calls
	c.m.Unlock()

	if n == 1 {
		return nil, errors.New("<error>")
	}

	return c.PropertyClient.Watch(ctx, in, opts...)
}

type change struct {
	ID    ID
	Value value.Value
}

var _ = Describe("type Watcher", func() {
	var (
		ctx     context.Context
		cancel  context.CancelFunc
		srv     *servant.Server
		server  *bufnet.Server
		conn    *grpc.ClientConn
		client  *flakyClient
		changes chan change
		watcher *Watcher
		result  chan error
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)

		var err error
		srv, err = servant.NewServer(
			ctx,
			[]servant.Property{
				{Servant: "simulation", Name: "speed", Kind: value.Float64},
				{Servant: "simulation", Name: "step", Kind: value.Int32},
			},
			nil,
			nil,
			nil,
		)
		Expect(err).ShouldNot(HaveOccurred())

		server = bufnet.Start(func(s *grpc.Server) {
			api.RegisterPropertyServer(s, srv)
		})

		conn, err = server.Dial(ctx)
		Expect(err).ShouldNot(HaveOccurred())

		client = &flakyClient{PropertyClient: api.NewPropertyClient(conn)}
		changes = make(chan change, 100)
		result = make(chan error, 1)

		watcher = &Watcher{
			Client: client,
			Sink: func(id ID, v value.Value) error {
				changes <- change{id, v}
				return nil
			},
			BackoffStrategy: backoff.Constant(5 * time.Millisecond),
		}
	})

	AfterEach(func() {
		cancel()
		conn.Close()
		server.Stop()
		srv.Close()
	})

	run := func() {
		go func() {
			result <- watcher.Run(ctx)
		}()
	}

	// publishUntilReceived publishes changes to the property until the sink
	// sees one, which shows that the stream is established.
	publishUntilReceived := func(id int32) {
		Eventually(func() bool {
			if err := srv.Publish(ctx, id, value.NewInt32(-1)); err != nil {
				return false
			}

			select {
			case <-changes:
				return true
			case <-time.After(10 * time.Millisecond):
				return false
			}
		}).Should(BeTrue())

		// Discard any further markers that were in flight.
		Consistently(func() bool {
			select {
			case c := <-changes:
				Expect(c.Value.Equal(value.NewInt32(-1))).To(BeTrue())
			default:
			}
			return true
		}, 30*time.Millisecond).Should(BeTrue())
	}

	It("reconnects after the stream fails and passes changes to the sink in order", func() {
		run()
		publishUntilReceived(2)

		Expect(srv.Publish(ctx, 1, value.NewFloat64(1))).To(Succeed())
		Expect(srv.Publish(ctx, 2, value.NewInt32(2))).To(Succeed())

		var c change
		Eventually(changes).Should(Receive(&c))
		Expect(c.ID).To(Equal(ID(1)))
		Expect(c.Value.Equal(value.NewFloat64(1))).To(BeTrue())

		Eventually(changes).Should(Receive(&c))
		Expect(c.ID).To(Equal(ID(2)))
		Expect(c.Value.Equal(value.NewInt32(2))).To(BeTrue())

		client.m.Lock()
		Expect(client.calls).To(BeNumerically(">=", 2))
		client.m.Unlock()
	})

	It("only watches the requested properties", func() {
		watcher.IDs = []ID{2}

		run()
		publishUntilReceived(2)

		Expect(srv.Publish(ctx, 1, value.NewFloat64(1))).To(Succeed())
		Expect(srv.Publish(ctx, 2, value.NewInt32(2))).To(Succeed())

		var c change
		Eventually(changes).Should(Receive(&c))
		Expect(c.ID).To(Equal(ID(2)))
	})

	It("keeps watching when the sink fails", func() {
		var once sync.Once
		watcher.Sink = func(id ID, v value.Value) error {
			var err error
			once.Do(func() { err = errors.New("<error>") })
			changes <- change{id, v}
			return err
		}

		run()
		publishUntilReceived(2)

		Expect(srv.Publish(ctx, 2, value.NewInt32(2))).To(Succeed())

		var c change
		Eventually(changes).Should(Receive(&c))
		Expect(c.Value.Equal(value.NewInt32(2))).To(BeTrue())
	})

	It("returns the context error when ctx is canceled", func() {
		run()
		cancel()

		Eventually(result).Should(Receive(Equal(context.Canceled)))
	})
})
