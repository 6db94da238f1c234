package syncx_test

import (
	"context"
	"time"

	. "github.com/louteranas/nomad-viewer/internal/x/syncx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type RWMutex", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		mutex  *RWMutex
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 50*time.Millisecond)
		mutex = &RWMutex{}
	})

	AfterEach(func() {
		cancel()
	})

	Describe("func Lock()", func() {
		It("excludes other writers", func() {
			err := mutex.Lock(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			err = mutex.Lock(ctx)
			Expect(err).To(Equal(context.DeadlineExceeded))
		})

		It("excludes readers", func() {
			err := mutex.Lock(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			err = mutex.RLock(ctx)
			Expect(err).To(Equal(context.DeadlineExceeded))
		})

		It("returns an error if the context is already canceled", func() {
			cancel()

			err := mutex.Lock(ctx)
			Expect(err).To(Equal(context.Canceled))
		})
	})

	Describe("func Unlock()", func() {
		It("unblocks a pending call to Lock()", func() {
			err := mutex.Lock(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			result := make(chan error, 1)
			go func() { result <- mutex.Lock(ctx) }()

			time.Sleep(5 * time.Millisecond)
			mutex.Unlock()

			Expect(<-result).ShouldNot(HaveOccurred())
		})

		It("unblocks all pending calls to RLock()", func() {
			err := mutex.Lock(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			result := make(chan error, 2)
			fn := func() { result <- mutex.RLock(ctx) }
			go fn()
			go fn()

			time.Sleep(5 * time.Millisecond)
			mutex.Unlock()

			Expect(<-result).ShouldNot(HaveOccurred())
			Expect(<-result).ShouldNot(HaveOccurred())
		})

		It("panics if the mutex is not write-locked", func() {
			Expect(func() {
				mutex.Unlock()
			}).To(Panic())
		})
	})

	Describe("func RLock()", func() {
		It("allows other readers", func() {
			err := mutex.RLock(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			err = mutex.RLock(ctx)
			Expect(err).ShouldNot(HaveOccurred())
		})

		It("excludes writers", func() {
			err := mutex.RLock(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			err = mutex.Lock(ctx)
			Expect(err).To(Equal(context.DeadlineExceeded))
		})

		It("waits behind a pending writer", func() {
			err := mutex.RLock(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			writer := make(chan error, 1)
			go func() { writer <- mutex.Lock(ctx) }()
			time.Sleep(5 * time.Millisecond)

			short, cancelShort := context.WithTimeout(ctx, 10*time.Millisecond)
			defer cancelShort()

			err = mutex.RLock(short)
			Expect(err).To(Equal(context.DeadlineExceeded))

			mutex.RUnlock()
			Expect(<-writer).ShouldNot(HaveOccurred())
		})

		It("survives many concurrent readers", func() {
			const concurrency = 200
			result := make(chan error, concurrency)

			for i := 0; i < concurrency; i++ {
				go func() {
					err := mutex.RLock(ctx)
					if err == nil {
						mutex.RUnlock()
					}
					result <- err
				}()
			}

			for i := 0; i < concurrency; i++ {
				Expect(<-result).ShouldNot(HaveOccurred())
			}

			err := mutex.Lock(ctx)
			Expect(err).ShouldNot(HaveOccurred())
		})
	})

	Describe("func RUnlock()", func() {
		It("allows Lock() once every reader has unlocked", func() {
			err := mutex.RLock(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			err = mutex.RLock(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			mutex.RUnlock()
			mutex.RUnlock()

			err = mutex.Lock(ctx)
			Expect(err).ShouldNot(HaveOccurred())
		})

		It("panics if the mutex is not read-locked", func() {
			Expect(func() {
				mutex.RUnlock()
			}).To(Panic())
		})
	})
})
