package library

import "errors"

var (
	// ErrNotFound is returned when a book, user, record or queue entry does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID is returned when inserting an id that is already present.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrInvalidState is returned when an operation is not valid for the current book or user status.
	ErrInvalidState = errors.New("invalid state")

	// ErrCapacityExceeded is returned when a user has reached the borrow limit.
	ErrCapacityExceeded = errors.New("borrow limit reached")

	// ErrAllocation is returned when a configured container capacity would be exceeded.
	ErrAllocation = errors.New("capacity exhausted")
)

var (
	// ErrAlreadyQueued is returned when a user is already waiting for a book.
	ErrAlreadyQueued = wrapKind("user is already in the reservation queue", ErrInvalidState)

	// ErrQueueEmpty is returned when a book has no waiting users.
	ErrQueueEmpty = wrapKind("no reservations for this book", ErrNotFound)

	// ErrNoRecentReturns is returned when the return history is empty.
	ErrNoRecentReturns = wrapKind("no recent returns", ErrNotFound)

	// ErrNothingToUndo is returned when the system undo stack is empty.
	ErrNothingToUndo = wrapKind("no actions to undo", ErrNotFound)

	// ErrCorruptSnapshot is returned when a stored snapshot fails verification.
	ErrCorruptSnapshot = errors.New("snapshot is corrupt")
)

// kindError is a sentinel with its own message that still matches a broader kind.
type kindError struct {
	msg  string
	kind error
}

func wrapKind(msg string, kind error) error { return &kindError{msg: msg, kind: kind} }

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }
