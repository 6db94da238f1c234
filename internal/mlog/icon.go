package mlog

import (
	"fmt"
	"io"

	"github.com/dogmatiq/iago/must"
)

const (
	// RequestIDIcon is the icon shown directly before a request ID. It is an
	// "equals sign", indicating that the request "has exactly" this ID.
	RequestIDIcon Icon = "="

	// InstanceIcon is the icon shown directly before an application instance.
	InstanceIcon Icon = "≡"

	// PropertyIcon is the icon shown directly before a property ID.
	PropertyIcon Icon = "Σ"

	// InboundIcon is the icon shown when something is received from the
	// remote side, such as a response or a change notification.
	InboundIcon Icon = "▼"

	// InboundErrorIcon is the hollow variant of InboundIcon.
	InboundErrorIcon Icon = "▽"

	// OutboundIcon is the icon shown when something is sent to the remote
	// side.
	OutboundIcon Icon = "▲"

	// OutboundErrorIcon is the hollow variant of OutboundIcon.
	OutboundErrorIcon Icon = "△"

	// RetryIcon is shown when an operation is re-attempted.
	RetryIcon Icon = "↻"

	// ErrorIcon is the icon shown when logging information about an error.
	ErrorIcon Icon = "✖"

	// SystemIcon is shown for messages about the internals of the bridge,
	// such as application lifecycle transitions.
	SystemIcon Icon = "⚙"

	// SeparatorIcon separates unrelated text within a single log message.
	SeparatorIcon Icon = "●"
)

// Icon is a unicode symbol used as an icon in log messages.
type Icon string

func (i Icon) String() string {
	return string(i)
}

// WriteTo writes a string representation of the icon to w.
// If i is the zero-value, a single space is rendered.
func (i Icon) WriteTo(w io.Writer) (int64, error) {
	s := i.String()
	if i == "" {
		s = " "
	}

	n, err := io.WriteString(w, s)
	return int64(n), err
}

// WithLabel return an IconWithLabel containing this icon and the given label.
func (i Icon) WithLabel(f string, v ...interface{}) IconWithLabel {
	return IconWithLabel{
		i,
		formatLabel(fmt.Sprintf(f, v...)),
	}
}

// WithID return an IconWithLabel containing this icon and an ID as its label.
//
// The id is formatted using FormatID().
func (i Icon) WithID(id string) IconWithLabel {
	return i.WithLabel(FormatID(id))
}

// IconWithLabel is a container for an icon and its associated text label.
type IconWithLabel struct {
	Icon  Icon
	Label string
}

func (i IconWithLabel) String() string {
	return i.Icon.String() + " " + i.Label
}

// WriteTo writes a string representation of the icon and its label to w.
func (i IconWithLabel) WriteTo(w io.Writer) (_ int64, err error) {
	defer must.Recover(&err)

	n := must.WriteTo(w, i.Icon)
	n += must.Write(w, space1)
	n += must.WriteString(w, i.Label)

	return int64(n), err
}

func formatLabel(label string) string {
	if label == "" {
		return "-"
	}

	return label
}

// InstanceLabel returns the label used for an application instance.
func InstanceLabel(name string, id int32) IconWithLabel {
	if id < 0 {
		return InstanceIcon.WithLabel(name)
	}

	return InstanceIcon.WithLabel("%s#%d", name, id)
}

func errorIcon(err error) Icon {
	if err == nil {
		return ""
	}

	return ErrorIcon
}
