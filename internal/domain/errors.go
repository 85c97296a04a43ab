package domain

import (
	"errors"
	"fmt"
)

// Protocol error kinds. None of them crosses a context boundary: agents log
// them and carry on, the session service surfaces them to callers.
var (
	// ErrMissingDelivery signals that the target context of a message is gone.
	ErrMissingDelivery = errors.New("missing delivery")
	// ErrStaleMessage signals a message from a superseded session epoch.
	ErrStaleMessage = errors.New("stale message")
	// ErrNoCandidate signals that a scan found no eligible hint tree-wide.
	ErrNoCandidate = errors.New("no candidate")
	// ErrLabelCollision signals that fewer prefix codes than leaves were produced.
	ErrLabelCollision = errors.New("label collision")
)

// Service-level errors.
var (
	// ErrSessionNotFound signals a missing hint session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrFrameNotFound signals a missing document context.
	ErrFrameNotFound = errors.New("frame not found")
	// ErrTooManySessions signals that the session limit is reached.
	ErrTooManySessions = errors.New("too many sessions")
	// ErrNotStarted signals a hint command issued before start.
	ErrNotStarted = errors.New("hint mode not started")
	// ErrInvalidStrategy signals an unknown or unsupported label strategy.
	ErrInvalidStrategy = errors.New("invalid label strategy")
	// ErrInvalidQuery signals a discovery query that does not compile.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidLabel signals a label that no hint can carry under the session strategy.
	ErrInvalidLabel = errors.New("invalid label")
	// ErrInvalidAlphabet signals a prefix-code alphabet that cannot produce codes.
	ErrInvalidAlphabet = errors.New("invalid alphabet")
	// ErrInvalidDocument signals an unparseable page.
	ErrInvalidDocument = errors.New("invalid document")
)

// ContextError attaches the failing context to a protocol error.
type ContextError struct {
	Context string
	Err     error
}

func (e *ContextError) Error() string {
	return fmt.Sprintf("context %s: %s", e.Context, e.Err.Error())
}

func (e *ContextError) Unwrap() error { return e.Err }

// NewContextError wraps err with the id of the context it happened in.
func NewContextError(context string, err error) error {
	return &ContextError{Context: context, Err: err}
}
