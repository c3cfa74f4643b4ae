package book

import (
	"fmt"

	"github.com/google/uuid"
)

// NotFoundError reports that no book exists with the requested id.
type NotFoundError struct {
	ID uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("book %s not found", e.ID)
}

// AlreadyExistsError reports a uniqueness conflict, either on ISBN or
// on the title+author+year triple. ISBN is empty for the latter.
type AlreadyExistsError struct {
	ISBN   string
	Title  string
	Author string
	Year   int
}

func (e *AlreadyExistsError) Error() string {
	if e.ISBN != "" {
		return fmt.Sprintf("book with isbn %s already exists", e.ISBN)
	}
	return fmt.Sprintf("book %q by %s (%d) already exists", e.Title, e.Author, e.Year)
}

// ValidationError reports a business-rule violation on a single field.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// NotAvailableError reports a checkout of a book that is already
// checked out.
type NotAvailableError struct {
	ID uuid.UUID
}

func (e *NotAvailableError) Error() string {
	return fmt.Sprintf("book %s is not available", e.ID)
}

// OpError wraps an unexpected lower-layer failure with the name of the
// service operation that hit it.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("book %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }
