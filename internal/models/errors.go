package models

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrPersistence         = errors.New("persistence failure")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrNotFound            = errors.New("not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
)

// FieldError describes one rejected input field. Index is the position of
// the offending item inside a batch, or -1 for single-item input.
type FieldError struct {
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned before any persistence or computation when
// caller input is rejected.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Index >= 0 {
			parts = append(parts, fmt.Sprintf("[%d].%s: %s", f.Index, f.Field, f.Message))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Add(index int, field, message string) {
	e.Fields = append(e.Fields, FieldError{Index: index, Field: field, Message: message})
}

// OrNil returns nil when no field was rejected so callers can write
// `return verr.OrNil()`.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Index: -1, Field: field, Message: message}}}
}

func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
