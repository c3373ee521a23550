// Package gameerr defines the error taxonomy shared by the Room, the
// Registry, the Connection Hub, and the HTTP control surface. Every
// rejection a command can produce is one of these kinds; callers branch on
// Kind rather than on sentinel values or string matching.
package gameerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so that callers at the HTTP and WebSocket
// boundaries can map it to a status code or close code without inspecting
// error text.
type Kind string

const (
	NotFound            Kind = "not_found"
	InvalidState        Kind = "invalid_state"
	PermissionDenied    Kind = "permission_denied"
	NameConflict        Kind = "name_conflict"
	CapacityExhausted   Kind = "capacity_exhausted"
	UpstreamUnavailable Kind = "upstream_unavailable"
	NoSongAvailable     Kind = "no_song_available"
	ClientProtocol      Kind = "client_protocol"
	RoomGone            Kind = "room_gone"
	BackpressureDropped Kind = "backpressure_dropped"
)

// Error is the concrete error type returned by every command handler in
// internal/room, internal/catalog, and internal/hub.
type Error struct {
	Kind    Kind
	Message string
	// Cause is the underlying error, if any (e.g. a transport error from
	// the Song Catalog). It participates in errors.Unwrap.
	Cause error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, gameerr.New(SomeKind, "")) match on Kind alone,
// which is the comparison every caller in this codebase actually wants.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the Kind from err if it is (or wraps) a *Error, defaulting
// to the zero Kind ("") when err is nil or of a different type. Handlers use
// this to pick an HTTP status or WebSocket close code.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}
