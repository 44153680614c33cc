package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNoConnection is matched by every *ConnectionError.
	ErrNoConnection = errors.New("no active database connection")
	ErrNotFound     = errors.New("record not found")
	// ErrConstraint is matched by every *ConstraintError.
	ErrConstraint = errors.New("constraint violation")
	// ErrSchema is matched by every *SchemaError.
	ErrSchema = errors.New("schema mismatch")
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("invalid field value")
)

// ConnectionError is returned when an operation runs without an active
// session, or when the backend cannot hand one out.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Op, ErrNoConnection, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, ErrNoConnection)
}

func (e *ConnectionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrNoConnection}
	}
	return []error{ErrNoConnection, e.Err}
}

// ConstraintKind classifies a storage-level constraint violation.
type ConstraintKind string

const (
	KindUnique        ConstraintKind = "unique"
	KindForeignKey    ConstraintKind = "foreign_key"
	KindNotNull       ConstraintKind = "not_null"
	KindCheck         ConstraintKind = "check"
	KindDependency    ConstraintKind = "dependency"
	KindSerialization ConstraintKind = "serialization"
)

// ConstraintError reports a uniqueness, foreign-key or similar violation
// detected by the backend. It is never retried by the store.
type ConstraintError struct {
	Collection string
	Constraint string
	Kind       ConstraintKind
	Err        error
}

func (e *ConstraintError) Error() string {
	msg := fmt.Sprintf("%s: %s constraint violated", e.Collection, e.Kind)
	if e.Constraint != "" {
		msg += " (" + e.Constraint + ")"
	}
	return msg
}

func (e *ConstraintError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConstraint}
	}
	return []error{ErrConstraint, e.Err}
}

// SchemaError reports a collection definition that conflicts with what the
// backend already holds, or an operation on an undefined collection.
type SchemaError struct {
	Collection string
	Reason     string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("collection %s: %s", e.Collection, e.Reason)
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// ValidationError reports a caller-supplied field that fails a type, range
// or enumeration check.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// IsConstraint reports whether err is a constraint violation of the given kind.
func IsConstraint(err error, kind ConstraintKind) bool {
	var ce *ConstraintError
	return errors.As(err, &ce) && ce.Kind == kind
}
