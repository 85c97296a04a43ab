package hintd

import "github.com/kailas-cloud/hintd/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrSessionNotFound = domain.ErrSessionNotFound
	ErrFrameNotFound   = domain.ErrFrameNotFound
	ErrTooManySessions = domain.ErrTooManySessions
	ErrNotStarted      = domain.ErrNotStarted
	ErrInvalidStrategy = domain.ErrInvalidStrategy
	ErrInvalidQuery    = domain.ErrInvalidQuery
	ErrInvalidLabel    = domain.ErrInvalidLabel
	ErrInvalidAlphabet = domain.ErrInvalidAlphabet
	ErrInvalidDocument = domain.ErrInvalidDocument
	ErrLabelCollision  = domain.ErrLabelCollision
)
