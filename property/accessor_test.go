package property_test

import (
	"context"
	"time"

	"github.com/louteranas/nomad-viewer/api"
	"github.com/louteranas/nomad-viewer/fault"
	"github.com/louteranas/nomad-viewer/internal/testing/bufnet"
	. "github.com/louteranas/nomad-viewer/property"
	"github.com/louteranas/nomad-viewer/servant"
	"github.com/louteranas/nomad-viewer/value"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/grpc"
)

// countingClient is a PropertyClient that counts Resolve() calls.
type countingClient struct {
	api.PropertyClient
	resolves int
}

func (c *countingClient) Resolve(ctx context.Context, in *api.ResolveRequest, opts ...grpc.CallOption) (*api.ResolveResponse, error) {
	c.resolves++
	return c.PropertyClient.Resolve(ctx, in, opts...)
}

var _ = Describe("type Accessor", func() {
	var (
		ctx      context.Context
		cancel   context.CancelFunc
		srv      *servant.Server
		server   *bufnet.Server
		conn     *grpc.ClientConn
		client   *countingClient
		accessor *Accessor
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)

		var err error
		srv, err = servant.NewServer(
			ctx,
			[]servant.Property{
				{Servant: "simulation", Name: "speed", Kind: value.Float64, Initial: value.NewFloat64(1.5)},
				{Servant: "simulation", Name: "step", Kind: value.Int32, ReadOnly: true},
				{Servant: "viewer", Name: "bodies", Kind: value.Int32Array},
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

		client = &countingClient{PropertyClient: api.NewPropertyClient(conn)}
		accessor = &Accessor{Client: client}
	})

	AfterEach(func() {
		conn.Close()
		server.Stop()
		srv.Close()
		cancel()
	})

	Describe("func ResolveID()", func() {
		It("returns the ID assigned by the remote side", func() {
			id, err := accessor.ResolveID(ctx, "simulation", "step")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(id).To(Equal(ID(2)))

			d, ok := accessor.Declaration(id)
			Expect(ok).To(BeTrue())
			Expect(d).To(Equal(Declaration{
				Key:      Key{"simulation", "step"},
				ID:       2,
				Kind:     value.Int32,
				ReadOnly: true,
			}))
		})

		It("returns the same ID without a round trip when called again", func() {
			a, err := accessor.ResolveID(ctx, "viewer", "bodies")
			Expect(err).ShouldNot(HaveOccurred())

			b, err := accessor.ResolveID(ctx, "viewer", "bodies")
			Expect(err).ShouldNot(HaveOccurred())

			Expect(a).To(Equal(b))
			Expect(client.resolves).To(Equal(1))
		})

		It("fails for an unknown property", func() {
			_, err := accessor.ResolveID(ctx, "viewer", "<unknown>")
			Expect(err).To(MatchError(fault.ErrNotFound))
			Expect(err).To(MatchError(ContainSubstring("unable to resolve viewer.<unknown>")))
		})

		It("fails with a transport failure if the remote side is unreachable", func() {
			server.Stop()

			_, err := accessor.ResolveID(ctx, "viewer", "bodies")
			Expect(err).To(MatchError(fault.ErrTransportFailure))
		})
	})

	Describe("func Get()", func() {
		It("returns the current value", func() {
			id, err := accessor.ResolveID(ctx, "simulation", "speed")
			Expect(err).ShouldNot(HaveOccurred())

			x, err := Get[float64](ctx, accessor, id)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(x).To(Equal(1.5))
		})

		It("fails locally if the kind differs from the resolved declaration", func() {
			id, err := accessor.ResolveID(ctx, "simulation", "speed")
			Expect(err).ShouldNot(HaveOccurred())

			_, err = accessor.Get(ctx, id, value.String)
			Expect(err).To(Equal(value.MismatchError{Want: value.String, Got: value.Float64}))
		})

		It("fails remotely if the property was not resolved", func() {
			_, err := Get[string](ctx, accessor, 1)
			Expect(err).To(MatchError(fault.ErrTypeMismatch))
		})

		It("fails for an unknown ID", func() {
			_, err := accessor.Get(ctx, 100, value.Bool)
			Expect(err).To(MatchError(fault.ErrNotFound))
		})
	})

	Describe("func Set()", func() {
		It("writes the value", func() {
			id, err := accessor.ResolveID(ctx, "viewer", "bodies")
			Expect(err).ShouldNot(HaveOccurred())

			ok, err := Set(ctx, accessor, id, []int32{4, 5})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeTrue())

			x, err := Get[[]int32](ctx, accessor, id)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(x).To(Equal([]int32{4, 5}))
		})

		It("returns false and keeps the prior value if the property is read-only", func() {
			id, err := accessor.ResolveID(ctx, "simulation", "step")
			Expect(err).ShouldNot(HaveOccurred())

			Expect(srv.Publish(ctx, int32(id), value.NewInt32(7))).To(Succeed())

			ok, err := Set(ctx, accessor, id, int32(3))
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeFalse())

			x, err := Get[int32](ctx, accessor, id)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(x).To(BeNumerically("==", 7))
		})

		It("fails if the value is of the wrong kind", func() {
			id, err := accessor.ResolveID(ctx, "simulation", "step")
			Expect(err).ShouldNot(HaveOccurred())

			_, err = Set(ctx, accessor, id, "<value>")
			Expect(err).To(MatchError(fault.ErrTypeMismatch))
		})
	})
})
