package gomegax

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/onsi/gomega/format"
	"github.com/onsi/gomega/types"
	"google.golang.org/protobuf/testing/protocmp"
)

// EqualX is an alternative to gomega.Equal() that compares values with
// go-cmp.
//
// Types with an Equal() method, such as value.Value, are compared using that
// method. Protocol buffers messages are compared semantically. Empty and nil
// slices are considered equal.
func EqualX(expected interface{}, options ...cmp.Option) types.GomegaMatcher {
	if len(options) == 0 {
		options = DefaultOptions
	}

	return &equalMatcher{
		expected: expected,
		options:  options,
	}
}

// DefaultOptions is the set of cmp options used by EqualX() when none are
// given.
var DefaultOptions = cmp.Options{
	protocmp.Transform(),
	cmpopts.EquateEmpty(),
}

type equalMatcher struct {
	expected interface{}
	options  cmp.Options
}

func (m *equalMatcher) Match(actual interface{}) (bool, error) {
	return cmp.Equal(actual, m.expected, m.options), nil
}

func (m *equalMatcher) FailureMessage(actual interface{}) string {
	actualString, actualOK := actual.(string)
	expectedString, expectedOK := m.expected.(string)
	if actualOK && expectedOK {
		return format.MessageWithDiff(actualString, "to equal", expectedString)
	}

	return format.Message(actual, "to equal", m.expected) +
		"\n\nDiff:\n" + format.IndentString(cmp.Diff(actual, m.expected, m.options), 1)
}

func (m *equalMatcher) NegatedFailureMessage(actual interface{}) string {
	return format.Message(actual, "not to equal", m.expected)
}
