package servant_test

import (
	"context"
	"time"

	. "github.com/louteranas/nomad-viewer/internal/x/gomegax"
	. "github.com/louteranas/nomad-viewer/servant"
	"github.com/louteranas/nomad-viewer/value"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type ChangeLog", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		log    *ChangeLog
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		log = &ChangeLog{Size: 3}
	})

	AfterEach(func() {
		cancel()
	})

	It("returns changes in the order they were appended", func() {
		log.Append(1, value.NewInt32(10))
		log.Append(2, value.NewInt32(20))

		c, err := log.Next(ctx, 0)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(c).To(EqualX(Change{Offset: 0, ID: 1, Value: value.NewInt32(10)}))

		c, err = log.Next(ctx, 1)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(c).To(EqualX(Change{Offset: 1, ID: 2, Value: value.NewInt32(20)}))
	})

	It("blocks at the end of the log until a change is appended", func() {
		go func() {
			time.Sleep(10 * time.Millisecond)
			log.Append(5, value.NewBool(true))
		}()

		c, err := log.Next(ctx, log.End())
		Expect(err).ShouldNot(HaveOccurred())
		Expect(c.ID).To(BeNumerically("==", 5))
	})

	It("returns the context error if ctx is canceled while blocked", func() {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()

		_, err := log.Next(ctx, 0)
		Expect(err).To(Equal(context.DeadlineExceeded))
	})

	It("fails a reader that falls behind the retained window", func() {
		for i := int32(0); i < 4; i++ {
			log.Append(i, value.NewInt32(i))
		}

		_, err := log.Next(ctx, 0)
		Expect(err).To(Equal(ErrCursorLagged))

		c, err := log.Next(ctx, 1)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(c.ID).To(BeNumerically("==", 1))
	})

	It("wakes blocked readers when closed", func() {
		go func() {
			time.Sleep(10 * time.Millisecond)
			log.Close()
		}()

		_, err := log.Next(ctx, 0)
		Expect(err).To(Equal(ErrLogClosed))
	})

	It("returns an error if closed twice", func() {
		Expect(log.Close()).To(Succeed())
		Expect(log.Close()).To(Equal(ErrLogClosed))
	})
})
