// Package openeyeserr defines the error taxonomy shared across the
// perception-decision-guidance pipeline, so callers can branch on kind
// without parsing message text.
package openeyeserr

import "fmt"

// Kind classifies a pipeline-level failure.
type Kind string

const (
	KindInvalidPacket   Kind = "invalid_packet"
	KindStalePacket     Kind = "stale_packet"
	KindInvalidState    Kind = "invalid_state"
	KindNoValidRule     Kind = "no_valid_rule"
	KindTransportError  Kind = "transport_error"
	KindSpeechError     Kind = "speech_error"
	KindNavigationError Kind = "navigation_error"
)

// Error wraps an underlying cause with a Kind so callers can type-switch
// on failure class while %w-chains stay intact for logging.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind, wrapping cause if non-nil.
func New(op string, kind Kind, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Is reports whether err is an *Error of the given kind, unwrapping as
// needed.
func Is(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind == kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
