package servant_test

import (
	"context"
	"time"

	"github.com/louteranas/nomad-viewer/api"
	"github.com/louteranas/nomad-viewer/fault"
	"github.com/louteranas/nomad-viewer/internal/testing/bufnet"
	. "github.com/louteranas/nomad-viewer/servant"
	"github.com/louteranas/nomad-viewer/value"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/grpc"
)

var _ = Describe("type Server", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		store  *MemoryStore
		srv    *Server
		props  []Property
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		store = &MemoryStore{}

		props = []Property{
			{Servant: "simulation", Name: "speed", Kind: value.Float64, Initial: value.NewFloat64(1.5)},
			{Servant: "simulation", Name: "step", Kind: value.Int32, ReadOnly: true},
			{Servant: "viewer", Name: "label", Kind: value.String},
		}

		var err error
		srv, err = NewServer(ctx, props, store, &ChangeLog{}, nil)
		Expect(err).ShouldNot(HaveOccurred())
	})

	AfterEach(func() {
		srv.Close()
		cancel()
	})

	Describe("func NewServer()", func() {
		It("rejects duplicate declarations", func() {
			_, err := NewServer(ctx, append(props, props[0]), nil, nil, nil)
			Expect(err).To(MatchError("property simulation.speed is declared more than once"))
		})

		It("rejects an initial value of the wrong kind", func() {
			_, err := NewServer(
				ctx,
				[]Property{
					{Servant: "s", Name: "p", Kind: value.Bool, Initial: value.NewInt32(1)},
				},
				nil, nil, nil,
			)
			Expect(err).To(MatchError(fault.ErrTypeMismatch))
		})

		It("loads stored values", func() {
			s := &MemoryStore{}
			Expect(s.Save(ctx, 1, value.NewFloat64(9))).To(Succeed())

			srv, err := NewServer(ctx, props, s, nil, nil)
			Expect(err).ShouldNot(HaveOccurred())

			res, err := srv.Get(ctx, &api.GetRequest{ID: 1, Kind: value.Float64})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(res.Value.Equal(value.NewFloat64(9))).To(BeTrue())
		})

		It("ignores stored values of a kind that is no longer declared", func() {
			s := &MemoryStore{}
			Expect(s.Save(ctx, 1, value.NewString("<stale>"))).To(Succeed())

			srv, err := NewServer(ctx, props, s, nil, nil)
			Expect(err).ShouldNot(HaveOccurred())

			res, err := srv.Get(ctx, &api.GetRequest{ID: 1, Kind: value.Float64})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(res.Value.Equal(value.NewFloat64(1.5))).To(BeTrue())
		})
	})

	Describe("func Resolve()", func() {
		It("assigns IDs in declaration order", func() {
			for i, p := range props {
				res, err := srv.Resolve(ctx, &api.ResolveRequest{Servant: p.Servant, Property: p.Name})
				Expect(err).ShouldNot(HaveOccurred())
				Expect(res.ID).To(BeNumerically("==", i+1))
				Expect(res.Kind).To(Equal(p.Kind))
				Expect(res.ReadOnly).To(Equal(p.ReadOnly))
			}
		})

		It("fails for an unknown property", func() {
			_, err := srv.Resolve(ctx, &api.ResolveRequest{Servant: "simulation", Property: "<unknown>"})
			Expect(err).To(MatchError(fault.ErrNotFound))
		})
	})

	Describe("func Get()", func() {
		It("returns the zero value of properties without an initial value", func() {
			res, err := srv.Get(ctx, &api.GetRequest{ID: 3, Kind: value.String})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(res.Value.Equal(value.NewString(""))).To(BeTrue())
		})

		It("fails if the kind differs from the declaration", func() {
			_, err := srv.Get(ctx, &api.GetRequest{ID: 1, Kind: value.Int32})
			Expect(err).To(MatchError(fault.ErrTypeMismatch))
		})

		It("fails for an unknown ID", func() {
			_, err := srv.Get(ctx, &api.GetRequest{ID: 100, Kind: value.Int32})
			Expect(err).To(MatchError(fault.ErrNotFound))
		})
	})

	Describe("func Set()", func() {
		It("stores the new value", func() {
			res, err := srv.Set(ctx, &api.SetRequest{ID: 1, Value: value.NewFloat64(2.5)})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(res.Accepted).To(BeTrue())

			v, ok, err := store.Load(ctx, 1)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(v.Equal(value.NewFloat64(2.5))).To(BeTrue())
		})

		It("does not accept writes to read-only properties", func() {
			res, err := srv.Set(ctx, &api.SetRequest{ID: 2, Value: value.NewInt32(5)})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(res.Accepted).To(BeFalse())

			got, err := srv.Get(ctx, &api.GetRequest{ID: 2, Kind: value.Int32})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(got.Value.Equal(value.NewInt32(0))).To(BeTrue())
		})

		It("fails if the value is of the wrong kind", func() {
			_, err := srv.Set(ctx, &api.SetRequest{ID: 1, Value: value.NewInt32(5)})
			Expect(err).To(MatchError(fault.ErrTypeMismatch))
		})
	})

	Describe("func Publish()", func() {
		It("changes read-only properties", func() {
			Expect(srv.Publish(ctx, 2, value.NewInt32(5))).To(Succeed())

			got, err := srv.Get(ctx, &api.GetRequest{ID: 2, Kind: value.Int32})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(got.Value.Equal(value.NewInt32(5))).To(BeTrue())
		})
	})

	Describe("func Watch()", func() {
		var (
			server *bufnet.Server
			conn   *grpc.ClientConn
			client api.PropertyClient
		)

		BeforeEach(func() {
			server = bufnet.Start(func(s *grpc.Server) {
				api.RegisterPropertyServer(s, srv)
			})

			var err error
			conn, err = server.Dial(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			client = api.NewPropertyClient(conn)
		})

		AfterEach(func() {
			conn.Close()
			server.Stop()
		})

		// watch opens a stream and waits until the server is reading the
		// log, so that no change made afterwards is missed.
		watch := func(ids ...int32) api.WatchClient {
			stream, err := client.Watch(ctx, &api.WatchRequest{IDs: ids})
			Expect(err).ShouldNot(HaveOccurred())

			// Changes made before the server starts reading are not sent, so
			// publish a marker until one arrives.
			marker := int32(3)
			if len(ids) > 0 {
				marker = ids[0]
			}

			received := make(chan *api.ChangeEvent, 1)
			go func() {
				defer GinkgoRecover()
				ev, err := stream.Recv()
				Expect(err).ShouldNot(HaveOccurred())
				received <- ev
			}()

			Eventually(func() bool {
				p := props[marker-1]
				v := value.Zero(p.Kind)
				Expect(srv.Publish(ctx, marker, v)).To(Succeed())

				select {
				case <-received:
					return true
				case <-time.After(10 * time.Millisecond):
					return false
				}
			}).Should(BeTrue())

			// Drain any extra markers so that tests start from a clean log.
			return &drainingStream{stream, marker}
		}

		It("streams changes in order", func() {
			stream := watch()

			Expect(srv.Publish(ctx, 1, value.NewFloat64(1))).To(Succeed())
			Expect(srv.Publish(ctx, 1, value.NewFloat64(2))).To(Succeed())

			ev, err := stream.Recv()
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ev.ID).To(BeNumerically("==", 1))
			Expect(ev.Value.Equal(value.NewFloat64(1))).To(BeTrue())

			ev, err = stream.Recv()
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ev.Value.Equal(value.NewFloat64(2))).To(BeTrue())
		})

		It("only streams the requested properties", func() {
			stream := watch(2)

			Expect(srv.Publish(ctx, 1, value.NewFloat64(1))).To(Succeed())
			Expect(srv.Publish(ctx, 2, value.NewInt32(7))).To(Succeed())

			ev, err := stream.Recv()
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ev.ID).To(BeNumerically("==", 2))
			Expect(ev.Value.Equal(value.NewInt32(7))).To(BeTrue())
		})

		It("fails for an unknown ID", func() {
			stream, err := client.Watch(ctx, &api.WatchRequest{IDs: []int32{100}})
			Expect(err).ShouldNot(HaveOccurred())

			_, err = stream.Recv()
			Expect(err).To(MatchError(fault.ErrNotFound))
		})
	})
})

// drainingStream skips the marker events published while a watch stream
// was being established.
type drainingStream struct {
	api.WatchClient
	marker int32
}

func (s *drainingStream) Recv() (*api.ChangeEvent, error) {
	for {
		ev, err := s.WatchClient.Recv()
		if err != nil {
			return nil, err
		}

		if ev.ID == s.marker && ev.Value.Equal(zeroOf(ev.Value)) {
			continue
		}

		return ev, nil
	}
}

func zeroOf(v value.Value) value.Value {
	return value.Zero(v.Kind())
}
