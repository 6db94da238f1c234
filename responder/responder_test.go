package responder_test

import (
	"context"
	"errors"
	"time"

	"github.com/louteranas/nomad-viewer/api"
	"github.com/louteranas/nomad-viewer/fault"
	"github.com/louteranas/nomad-viewer/internal/testing/bufnet"
	"github.com/louteranas/nomad-viewer/manager"
	. "github.com/louteranas/nomad-viewer/responder"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/grpc"
)

var _ = Describe("func Serve()", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		server *bufnet.Server
		conn   *grpc.ClientConn
		client api.ApplicationClient
		id     int32
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)

		m := &manager.Manager{
			Catalog: &manager.Catalog{
				Applications: []manager.Definition{
					{Name: "echo", Operations: []string{"echo"}},
				},
			},
			Runner: manager.RunnerFunc(func(manager.Spec) (manager.Process, error) {
				return manager.Go(func(ctx context.Context) error {
					<-ctx.Done()
					return ctx.Err()
				}), nil
			}),
		}

		server = bufnet.Start(func(s *grpc.Server) {
			api.RegisterApplicationServer(s, m)
		})

		var err error
		conn, err = server.Dial(ctx)
		Expect(err).ShouldNot(HaveOccurred())

		client = api.NewApplicationClient(conn)

		res, err := client.Start(ctx, &api.StartRequest{Name: "echo"})
		Expect(err).ShouldNot(HaveOccurred())
		id = res.Instance.ID
	})

	AfterEach(func() {
		cancel()
		conn.Close()
		server.Stop()
	})

	It("answers requests with the handler's reply", func() {
		go Serve(
			ctx,
			client,
			id,
			"echo",
			HandlerFunc(func(_ context.Context, p []byte) ([]byte, error) {
				return append([]byte("echo:"), p...), nil
			}),
			nil,
		)

		_, err := client.Bind(ctx, &api.BindRequest{InstanceID: id, Operation: "echo"})
		Expect(err).ShouldNot(HaveOccurred())

		res, err := client.Request(ctx, &api.CallRequest{
			InstanceID: id,
			Operation:  "echo",
			RequestID:  "<request>",
			Payload:    []byte("<payload>"),
		})
		Expect(err).ShouldNot(HaveOccurred())
		Expect(res.Payload).To(Equal([]byte("echo:<payload>")))
	})

	It("reports handler failures to the requester and keeps serving", func() {
		go Serve(
			ctx,
			client,
			id,
			"echo",
			HandlerFunc(func(_ context.Context, p []byte) ([]byte, error) {
				if string(p) == "<fail>" {
					return nil, errors.New("<error>")
				}
				return p, nil
			}),
			nil,
		)

		_, err := client.Bind(ctx, &api.BindRequest{InstanceID: id, Operation: "echo"})
		Expect(err).ShouldNot(HaveOccurred())

		_, err = client.Request(ctx, &api.CallRequest{InstanceID: id, Operation: "echo", RequestID: "1", Payload: []byte("<fail>")})
		Expect(err).To(MatchError(ContainSubstring("<error>")))

		res, err := client.Request(ctx, &api.CallRequest{InstanceID: id, Operation: "echo", RequestID: "2", Payload: []byte("<ok>")})
		Expect(err).ShouldNot(HaveOccurred())
		Expect(res.Payload).To(Equal([]byte("<ok>")))
	})

	It("is rejected for operations the application does not declare", func() {
		err := Serve(
			ctx,
			client,
			id,
			"<unknown>",
			HandlerFunc(func(context.Context, []byte) ([]byte, error) { return nil, nil }),
			nil,
		)
		Expect(err).To(MatchError(fault.ErrChannelUnavailable))
	})
})

var _ = Describe("func FromEnvironment()", func() {
	It("reads the manager endpoint and instance ID", func() {
		GinkgoT().Setenv(api.ManagerEndpointEnv, "localhost:9000")
		GinkgoT().Setenv(api.InstanceIDEnv, "42")

		env, err := FromEnvironment()
		Expect(err).ShouldNot(HaveOccurred())
		Expect(env).To(Equal(Environment{
			ManagerEndpoint: "localhost:9000",
			InstanceID:      42,
		}))
	})

	It("returns an error if the worker was not started by a manager", func() {
		GinkgoT().Setenv(api.ManagerEndpointEnv, "")

		_, err := FromEnvironment()
		Expect(err).Should(HaveOccurred())
	})

	It("returns an error if the instance ID is malformed", func() {
		GinkgoT().Setenv(api.ManagerEndpointEnv, "localhost:9000")
		GinkgoT().Setenv(api.InstanceIDEnv, "<id>")

		_, err := FromEnvironment()
		Expect(err).Should(HaveOccurred())
	})
})
