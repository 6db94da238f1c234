package fault_test

import (
	"errors"
	"fmt"

	. "github.com/louteranas/nomad-viewer/fault"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("func New()", func() {
	It("wraps the sentinel for the kind", func() {
		err := New(StartFailed, "no executable for %s", "<app>")
		Expect(err).To(MatchError(ErrStartFailed))
		Expect(err).To(MatchError("start failed: no executable for <app>"))
	})

	It("panics if the kind is not recognized", func() {
		Expect(func() {
			New("<unknown>", "")
		}).To(Panic())
	})
})

var _ = Describe("func KindOf()", func() {
	It("returns the kind of a wrapped sentinel", func() {
		err := fmt.Errorf("<context>: %w", ErrChannelUnavailable)

		k, ok := KindOf(err)
		Expect(ok).To(BeTrue())
		Expect(k).To(Equal(ChannelUnavailable))
	})

	It("returns false for unrelated errors", func() {
		_, ok := KindOf(errors.New("<error>"))
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("func Sentinel()", func() {
	It("returns the sentinel for each kind", func() {
		err, ok := Sentinel(TransportFailure)
		Expect(ok).To(BeTrue())
		Expect(err).To(BeIdenticalTo(ErrTransportFailure))
	})
})
