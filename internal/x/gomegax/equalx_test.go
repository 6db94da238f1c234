package gomegax_test

import (
	. "github.com/louteranas/nomad-viewer/internal/x/gomegax"
	"github.com/louteranas/nomad-viewer/value"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
)

var _ = Describe("func EqualX()", func() {
	It("compares values with their Equal() method", func() {
		Expect(value.NewInt32Array([]int32{1, 2})).To(EqualX(value.NewInt32Array([]int32{1, 2})))
		Expect(value.NewInt32Array([]int32{1, 2})).NotTo(EqualX(value.NewInt32Array([]int32{2, 1})))
	})

	It("compares protocol buffers messages semantically", func() {
		Expect(&errdetails.ErrorInfo{Reason: "NOT_FOUND"}).To(EqualX(&errdetails.ErrorInfo{Reason: "NOT_FOUND"}))
	})

	It("treats nil and empty slices as equal", func() {
		Expect([]string{}).To(EqualX([]string(nil)))
	})
})
