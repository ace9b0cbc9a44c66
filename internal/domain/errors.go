package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent error conditions in the threadmirror domain.
// These errors can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("threadmirror: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("threadmirror: not running")

	// ErrShutdownTimeout is returned when the poll loop does not return in time.
	ErrShutdownTimeout = errors.New("threadmirror: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("threadmirror: invalid configuration")

	// ErrThreadNotFound is returned when no aggregation thread can be located.
	// It is a lookup miss, not a failure: the mirror attempt is skipped.
	ErrThreadNotFound = errors.New("threadmirror: aggregation thread not found")

	// ErrCorruptState is returned when the durable pair image cannot be parsed.
	ErrCorruptState = errors.New("threadmirror: corrupt state image")
)

// TransportKind classifies a failure talking to the forum.
type TransportKind int

const (
	// KindRequest is a generic request failure (dial, timeout, reset).
	KindRequest TransportKind = iota
	// KindResponse is an unusable response: bad status, rate limit, malformed body.
	KindResponse
	// KindServer is a server-side outage (5xx).
	KindServer
)

// String returns a human-readable representation of the kind.
func (k TransportKind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// TransportError is returned by forum clients for failures the poll loop
// recovers from by backing off.
type TransportError struct {
	Kind TransportKind
	Op   string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError wraps err as a transport failure of the given kind.
func NewTransportError(kind TransportKind, op string, err error) *TransportError {
	return &TransportError{Kind: kind, Op: op, Err: err}
}

// AsTransport reports whether err is (or wraps) a TransportError.
func AsTransport(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
