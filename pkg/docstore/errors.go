package docstore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("docstore: not found")

	// ErrConflict is returned when a write carries a stale revision.
	ErrConflict = errors.New("docstore: revision conflict")

	// ErrClosed is returned by connectors that have been closed.
	ErrClosed = errors.New("docstore: closed")
)

// NotFound returns an error for a missing document id.
func NotFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// ConflictError describes a rejected write.
type ConflictError struct {
	ID               string
	ExpectedRevision string
	CurrentRevision  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("docstore: revision conflict on %s (have %q, stored %q)",
		e.ID, e.ExpectedRevision, e.CurrentRevision)
}

// Is makes errors.Is(err, ErrConflict) true for a *ConflictError.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// IsNotFound reports whether err means the document does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// CheckRevision returns a *ConflictError unless doc may overwrite a stored
// document with revision current. exists is false when nothing is stored.
func CheckRevision(doc Document, current string, exists bool) error {
	if !exists {
		if doc.Rev != "" {
			return &ConflictError{ID: doc.ID, ExpectedRevision: doc.Rev}
		}
		return nil
	}
	if doc.Rev != current {
		return &ConflictError{ID: doc.ID, ExpectedRevision: doc.Rev, CurrentRevision: current}
	}
	return nil
}
