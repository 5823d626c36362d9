package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced to callers.
type ErrorKind string

// Error kinds. All but KindPersistence are correctable by the caller.
const (
	KindNotFound            ErrorKind = "not_found"
	KindDuplicateIdentifier ErrorKind = "duplicate_identifier"
	KindInvalidState        ErrorKind = "invalid_state"
	KindInvalidRequest      ErrorKind = "invalid_request"
	KindConflict            ErrorKind = "conflict"
	KindForbidden           ErrorKind = "forbidden"
	KindIdentifierExhausted ErrorKind = "identifier_exhausted"
	KindPersistence         ErrorKind = "persistence"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrDuplicateIdentifier = &Error{Kind: KindDuplicateIdentifier}
	ErrInvalidState        = &Error{Kind: KindInvalidState}
	ErrInvalidRequest      = &Error{Kind: KindInvalidRequest}
	ErrConflict            = &Error{Kind: KindConflict}
	ErrForbidden           = &Error{Kind: KindForbidden}
	ErrIdentifierExhausted = &Error{Kind: KindIdentifierExhausted}
	ErrPersistence         = &Error{Kind: KindPersistence}
)

// Error carries the kind of failure plus the entity it concerns.
type Error struct {
	Kind    ErrorKind
	Entity  EntityType
	ID      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
		if e.Entity != "" {
			msg = fmt.Sprintf("%s %s: %s", e.Entity, e.ID, e.Kind)
		}
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of err, or "" when err is not a domain error.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	var rv RuleViolationError
	if errors.As(err, &rv) {
		return KindConflict
	}
	return ""
}

// NotFound reports that the referenced entity is absent.
func NotFound(entity EntityType, id string) error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// DuplicateIdentifier reports a code collision.
func DuplicateIdentifier(entity EntityType, code string) error {
	return &Error{Kind: KindDuplicateIdentifier, Entity: entity, ID: code, Message: fmt.Sprintf("%s code %s already exists", entity, code)}
}

// InvalidState reports an operation that is illegal in the current state.
func InvalidState(entity EntityType, id, format string, args ...any) error {
	return &Error{Kind: KindInvalidState, Entity: entity, ID: id, Message: fmt.Sprintf(format, args...)}
}

// InvalidRequest reports malformed input.
func InvalidRequest(entity EntityType, id, format string, args ...any) error {
	return &Error{Kind: KindInvalidRequest, Entity: entity, ID: id, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a blocked delete or an edit of an immutable record.
func Conflict(entity EntityType, id, format string, args ...any) error {
	return &Error{Kind: KindConflict, Entity: entity, ID: id, Message: fmt.Sprintf(format, args...)}
}

// Forbidden reports a failed ownership check.
func Forbidden(entity EntityType, id, actor string) error {
	return &Error{Kind: KindForbidden, Entity: entity, ID: id, Message: fmt.Sprintf("%s %s is not owned by %q", entity, id, actor)}
}

// IdentifierExhausted reports that code generation gave up after retries.
func IdentifierExhausted(entity EntityType, scope string, attempts int) error {
	return &Error{Kind: KindIdentifierExhausted, Entity: entity, ID: scope, Message: fmt.Sprintf("no free %s code in scope %s after %d attempts", entity, scope, attempts)}
}

// PersistenceError wraps a store failure. A nil err yields nil.
func PersistenceError(err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	var rv RuleViolationError
	if errors.As(err, &rv) {
		return err
	}
	return &Error{Kind: KindPersistence, Message: "persistence failure", Err: err}
}
