package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedIdentifier marks a drag token that could not be decoded.
	ErrMalformedIdentifier = errors.New("malformed identifier")
	// ErrTargetNotFound marks a drop whose target is not in the current board state.
	ErrTargetNotFound = errors.New("target not found")
	// ErrForbidden marks a gesture the viewer is not allowed to perform.
	ErrForbidden = errors.New("forbidden")
)

// PersistenceError wraps a rejected persistence call.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// RefetchError wraps a failed recovery refetch.
type RefetchError struct {
	BoardID int
	Err     error
}

func (e *RefetchError) Error() string {
	return fmt.Sprintf("refetch board %d: %v", e.BoardID, e.Err)
}

func (e *RefetchError) Unwrap() error { return e.Err }
