// Package errs defines the error taxonomy shared by every NearClip
// component: each failure carries a Kind naming its
// root cause so callers can decide whether to retry, fail over, or
// surface it to the host via on_sync_error.
package errs

import "fmt"

// Kind categorizes the root cause of an Error.
type Kind string

const (
	KindNetwork        Kind = "network"
	KindBluetooth      Kind = "bluetooth"
	KindCrypto         Kind = "crypto"
	KindDeviceNotFound Kind = "device_not_found"
	KindSync           Kind = "sync"
	KindTimeout        Kind = "timeout"
	KindLocal          Kind = "local" // io / config / not-initialized misuse
)

// Error is the concrete error type produced by every package in this
// module. Title is a short machine-readable code; Err carries the
// underlying cause or detail, if any.
type Error struct {
	Kind  Kind
	Title string
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Title, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Title)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is lets errors.Is match on Kind+Title regardless of the wrapped
// cause, so callers can test against a sentinel created with New.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t == nil || e == nil {
		return false
	}
	return e.Kind == t.Kind && e.Title == t.Title
}

// New creates a sentinel Error with no wrapped cause.
func New(kind Kind, title string) *Error {
	return &Error{Kind: kind, Title: title}
}

// Wrap attaches an underlying cause to a Kind/Title pair.
func Wrap(kind Kind, title string, cause error) *Error {
	if cause == nil {
		return New(kind, title)
	}
	return &Error{Kind: kind, Title: title, Err: cause}
}

var (
	ErrConnectionClosed   = New(KindNetwork, "connection_closed")
	ErrTooLarge           = New(KindNetwork, "frame_too_large")
	ErrAuthenticationFail = New(KindCrypto, "authentication_failed")
	ErrInvalidPublicKey   = New(KindCrypto, "invalid_public_key")
	ErrTlsHandshake       = New(KindCrypto, "tls_handshake_failed")
	ErrDeviceNotFound     = New(KindDeviceNotFound, "device_not_found")
	ErrAckTimeout         = New(KindTimeout, "ack_timeout")
	ErrIncompleteMessage  = New(KindTimeout, "incomplete_message")
	ErrNotInitialized     = New(KindLocal, "not_initialized")
	ErrPlatformUnsupported = New(KindBluetooth, "platform_not_supported")
)
