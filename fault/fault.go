// Package fault defines the categories of failure shared by the property
// accessor, the application lifecycle and the request channel.
//
// Errors produced by those components wrap exactly one of the sentinel values
// below, so callers can classify any failure with errors.Is().
package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that a servant or property is unknown to the
	// remote side.
	ErrNotFound = errors.New("not found")

	// ErrTypeMismatch indicates that a value of one kind was used where a
	// different kind was required.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrChannelUnavailable indicates that there is no live instance, or that
	// the instance does not expose the requested operation.
	ErrChannelUnavailable = errors.New("channel unavailable")

	// ErrStartFailed indicates that a remote application could not be
	// (re)started.
	ErrStartFailed = errors.New("start failed")

	// ErrTransportFailure indicates that the underlying connection to the
	// remote side has been lost.
	ErrTransportFailure = errors.New("transport failure")
)

// Kind is the name of a failure category as it appears on the wire.
type Kind string

const (
	// NotFound is the wire name of ErrNotFound.
	NotFound Kind = "NOT_FOUND"

	// TypeMismatch is the wire name of ErrTypeMismatch.
	TypeMismatch Kind = "TYPE_MISMATCH"

	// ChannelUnavailable is the wire name of ErrChannelUnavailable.
	ChannelUnavailable Kind = "CHANNEL_UNAVAILABLE"

	// StartFailed is the wire name of ErrStartFailed.
	StartFailed Kind = "START_FAILED"

	// TransportFailure is the wire name of ErrTransportFailure.
	TransportFailure Kind = "TRANSPORT_FAILURE"
)

var sentinels = map[Kind]error{
	NotFound:           ErrNotFound,
	TypeMismatch:       ErrTypeMismatch,
	ChannelUnavailable: ErrChannelUnavailable,
	StartFailed:        ErrStartFailed,
	TransportFailure:   ErrTransportFailure,
}

// Sentinel returns the sentinel error for k.
//
// It returns false if k is not a recognized kind.
func Sentinel(k Kind) (error, bool) {
	err, ok := sentinels[k]
	return err, ok
}

// KindOf returns the kind of the sentinel wrapped by err.
//
// It returns false if err does not wrap any of the sentinels.
func KindOf(err error) (Kind, bool) {
	for k, s := range sentinels {
		if errors.Is(err, s) {
			return k, true
		}
	}

	return "", false
}

// New returns an error of kind k with a formatted description.
//
// It panics if k is not a recognized kind.
func New(k Kind, f string, v ...interface{}) error {
	s, ok := sentinels[k]
	if !ok {
		panic(fmt.Sprintf("unrecognized fault kind: %s", k))
	}

	return fmt.Errorf("%w: %s", s, fmt.Sprintf(f, v...))
}
