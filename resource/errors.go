package resource

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable class of a resourceful error.
type Kind string

const (
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
	KindValidation Kind = "validation"
	KindConfig     Kind = "config"
	KindChildren   Kind = "has_children"
	KindAdapter    Kind = "adapter"
)

var (
	// ErrNotFound is returned when a record doesn't exist.
	ErrNotFound = errors.New("resourceful: record not found")

	// ErrConflict is returned when creating a record with an identifier that is already taken.
	ErrConflict = errors.New("resourceful: record already exists")

	// ErrValidation is returned when an attribute set violates the resource schema.
	ErrValidation = errors.New("resourceful: validation failed")

	// ErrDuplicateResource is returned when a resource name is registered twice.
	ErrDuplicateResource = errors.New("resourceful: resource already defined")

	// ErrUnknownResource is returned when a resource name is not registered.
	ErrUnknownResource = errors.New("resourceful: unknown resource")

	// ErrDuplicateRelationship is returned when a parent/child pair is declared twice.
	ErrDuplicateRelationship = errors.New("resourceful: relationship already defined")

	// ErrHasChildren is returned when destroying a parent that still has children.
	ErrHasChildren = errors.New("resourceful: resource has children")
)

// Error carries the kind of a failure together with the record it concerns.
type Error struct {
	Kind     Kind
	Resource string
	ID       string
	Err      error
}

func (e *Error) Error() string {
	switch {
	case e.ID != "":
		return fmt.Sprintf("%v: %s %q", e.Err, e.Resource, e.ID)
	case e.Resource != "":
		return fmt.Sprintf("%v: %s", e.Err, e.Resource)
	default:
		return e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound builds the error engines return from Get and Destroy for a missing record.
func NotFound(resource, id string) error {
	return &Error{Kind: KindNotFound, Resource: resource, ID: id, Err: ErrNotFound}
}

// Conflict builds the error engines return from Create for a taken identifier.
func Conflict(resource, id string) error {
	return &Error{Kind: KindConflict, Resource: resource, ID: id, Err: ErrConflict}
}

// KindOf reports the kind of err. Errors that resourceful does not know about
// are opaque engine failures and report KindAdapter. A nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrDuplicateResource),
		errors.Is(err, ErrUnknownResource),
		errors.Is(err, ErrDuplicateRelationship):
		return KindConfig
	case errors.Is(err, ErrHasChildren):
		return KindChildren
	}
	return KindAdapter
}

// IsConflict reports whether err is a duplicate identifier failure.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsNotFound reports whether err is a missing record failure.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }
