package service

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindConflict
)

var (
	// ErrNotFound matches errors for ids that are not stored.
	ErrNotFound = errors.New("not found")
	// ErrValidation matches errors for entities that violate their field rules.
	ErrValidation = errors.New("validation failed")
	// ErrConflict matches errors for business rules that refuse an operation.
	ErrConflict = errors.New("conflict")
)

// Error is a classified service failure. Field, Code and Detail are set for
// reservation conflicts, which are reported with a structured body.
type Error struct {
	Kind    Kind
	Message string
	Field   string
	Code    string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match an Error against the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrConflict:
		return e.Kind == KindConflict
	}
	return false
}

// KindOf returns the kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Kind
	}
	return KindInternal
}

func notFound(entity string, id any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s with id: %v was not found", entity, id)}
}

func conflictf(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func invalid(err error) error {
	return &Error{Kind: KindValidation, Message: "Validation failed: " + err.Error(), Err: err}
}
