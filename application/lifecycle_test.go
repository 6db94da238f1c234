package application_test

import (
	"context"
	"errors"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	. "github.com/louteranas/nomad-viewer/application"
	"github.com/louteranas/nomad-viewer/fault"
	"github.com/louteranas/nomad-viewer/internal/testing/managertest"
	"github.com/louteranas/nomad-viewer/manager"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Lifecycle", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		env    *managertest.Env
		logger *logging.BufferedLogger
		lc     *Lifecycle
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		logger = &logging.BufferedLogger{}

		var err error
		env, err = managertest.Start(
			ctx,
			nil,
			managertest.Worker{
				Definition: manager.Definition{Name: "n3dpositions"},
			},
			managertest.Worker{
				Definition:  manager.Definition{Name: "broken"},
				LaunchError: errors.New("<launch error>"),
			},
		)
		Expect(err).ShouldNot(HaveOccurred())

		lc = &Lifecycle{
			Name:   "n3dpositions",
			Client: env.Client,
			Logger: logger,
		}
	})

	AfterEach(func() {
		env.Stop()
		cancel()
	})

	It("starts in the not connected phase", func() {
		Expect(lc.Phase()).To(Equal(NotConnected))
		Expect(lc.Instance()).To(BeNil())
	})

	Describe("func Connect()", func() {
		It("reports a missing instance", func() {
			i, err := lc.Connect(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(i.Exists()).To(BeFalse())
			Expect(i.ID).To(Equal(NoInstance))
			Expect(lc.Phase()).To(Equal(Connected))
		})

		It("finds an existing instance", func() {
			other := &Lifecycle{Name: "n3dpositions", Client: env.Client}
			started, err := other.Setup(ctx, nil)
			Expect(err).ShouldNot(HaveOccurred())

			i, err := lc.Connect(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(i.ID).To(Equal(started.ID))
			Expect(i.State).To(Equal(Running))
		})
	})

	Describe("func Start()", func() {
		It("launches an instance with the given arguments", func() {
			_, err := lc.Connect(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			i, err := lc.Start(ctx, []string{"tcp://localhost:9001"})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(i.Exists()).To(BeTrue())
			Expect(lc.Phase()).To(Equal(Started))
			Expect(lc.Instance()).To(BeIdenticalTo(i))

			launches := env.Launches()
			Expect(launches).To(HaveLen(1))
			Expect(launches[0].Args).To(Equal([]string{"tcp://localhost:9001"}))
		})

		It("is not permitted before connecting", func() {
			_, err := lc.Start(ctx, nil)
			Expect(err).To(MatchError(ErrInvalidTransition))
		})

		It("is not permitted when an instance already exists", func() {
			_, err := lc.Setup(ctx, nil)
			Expect(err).ShouldNot(HaveOccurred())

			_, err = lc.Connect(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			_, err = lc.Start(ctx, nil)
			Expect(err).To(MatchError(ErrInvalidTransition))
		})

		It("is not permitted after starting", func() {
			_, err := lc.Setup(ctx, nil)
			Expect(err).ShouldNot(HaveOccurred())

			_, err = lc.Start(ctx, nil)
			Expect(err).To(MatchError(ErrInvalidTransition))
		})

		It("fails with a start failure if the launch fails", func() {
			lc.Name = "broken"

			_, err := lc.Connect(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			_, err = lc.Start(ctx, nil)
			Expect(err).To(MatchError(fault.ErrStartFailed))
			Expect(lc.Phase()).To(Equal(Connected))
		})
	})

	Describe("func PreemptAndStart()", func() {
		It("replaces the existing instance", func() {
			old, err := lc.Setup(ctx, nil)
			Expect(err).ShouldNot(HaveOccurred())

			_, err = lc.Connect(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			i, err := lc.PreemptAndStart(ctx, []string{"<arg>"})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(i.ID).NotTo(Equal(old.ID))

			Expect(old.Refresh(ctx)).To(Succeed())
			Expect(old.State).To(Equal(Killed))
		})

		It("is not permitted when no instance exists", func() {
			_, err := lc.Connect(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			_, err = lc.PreemptAndStart(ctx, nil)
			Expect(err).To(MatchError(ErrInvalidTransition))
		})
	})

	Describe("func Setup()", func() {
		It("starts an instance when none exists", func() {
			i, err := lc.Setup(ctx, nil)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(i.State).To(Equal(Running))
		})

		It("preempts an existing instance", func() {
			a, err := lc.Setup(ctx, nil)
			Expect(err).ShouldNot(HaveOccurred())

			b, err := lc.Setup(ctx, nil)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(b.ID).To(BeNumerically(">", a.ID))

			Expect(env.Launches()).To(HaveLen(2))
		})
	})

	Describe("func Attach()", func() {
		It("uses the existing instance without starting anything", func() {
			other := &Lifecycle{Name: "n3dpositions", Client: env.Client}
			started, err := other.Setup(ctx, nil)
			Expect(err).ShouldNot(HaveOccurred())

			i, err := lc.Attach(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(i.ID).To(Equal(started.ID))
			Expect(lc.Phase()).To(Equal(Started))
			Expect(env.Launches()).To(HaveLen(1))
		})

		It("fails if the application is not running", func() {
			_, err := lc.Attach(ctx)
			Expect(err).To(MatchError(fault.ErrChannelUnavailable))
		})
	})
})

var _ = Describe("type Phase", func() {
	It("has a human-readable name", func() {
		Expect(NotConnected.String()).To(Equal("not connected"))
		Expect(Connected.String()).To(Equal("connected"))
		Expect(Started.String()).To(Equal("started"))
		Expect(Phase(10).String()).To(Equal("phase(10)"))
	})
})
