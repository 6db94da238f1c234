package mlog

import (
	"strings"

	"github.com/dogmatiq/iago/must"
)

// String renders a log line: labelled IDs, then icons, then the non-empty
// text fragments joined by SeparatorIcon.
func String(
	ids []IconWithLabel,
	icons []Icon,
	text ...string,
) string {
	w := &strings.Builder{}

	for _, v := range ids {
		must.WriteTo(w, v)
		must.Write(w, space2)
	}

	for _, v := range icons {
		must.WriteTo(w, v)
		must.Write(w, space1)
	}

	first := true
	for _, v := range text {
		if v == "" {
			continue
		}

		must.Write(w, space1)

		if !first {
			must.WriteTo(w, SeparatorIcon)
			must.Write(w, space1)
		}

		must.WriteString(w, v)
		first = false
	}

	return w.String()
}

var (
	space1 = []byte{' '}
	space2 = []byte{' ', ' '}
)
