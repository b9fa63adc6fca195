/*
Copyright © 2026 David Ying davidmying@gmail.com
*/
package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures for retry eligibility and reporting.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindLeaseConflict ErrorKind = "lease_conflict"
	KindAction        ErrorKind = "action"
	KindVersionCtrl   ErrorKind = "vcs"
	KindTransient     ErrorKind = "transient"
)

// EngineError carries a classified error through the execution pipeline.
type EngineError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *EngineError) Unwrap() error { return e.Err }

// NewEngineError creates a classified engine error.
func NewEngineError(kind ErrorKind, message string, err error) *EngineError {
	return &EngineError{Kind: kind, Message: message, Err: err}
}

// KindOf returns the classification of err, or an empty kind for plain errors.
func KindOf(err error) ErrorKind {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ""
}
