package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeSchema indicates a malformed template.
	ErrCodeSchema ErrorCode = "SCHEMA"

	// ErrCodeOrdering indicates a selector was consulted while an earlier
	// selector was unset.
	ErrCodeOrdering ErrorCode = "ORDERING_VIOLATION"

	// ErrCodeDidNotCreate indicates a synchronization pass failed. The
	// underlying remote error is available through errors.Unwrap.
	ErrCodeDidNotCreate ErrorCode = "DID_NOT_CREATE"

	// ErrCodeDuplicateBinding indicates an attempt to create a remote item
	// while one is already bound.
	ErrCodeDuplicateBinding ErrorCode = "DUPLICATE_BINDING"
)

// Error is the structured error returned by templates and calculations.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Label identifies the field involved, if any.
	Label string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Label != "" {
		msg = fmt.Sprintf("%s: %s: %s", e.Code, e.Label, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsSchemaError reports whether err is a template schema error.
func IsSchemaError(err error) bool { return hasCode(err, ErrCodeSchema) }

// IsOrderingError reports whether err is, or wraps, an ordering violation.
func IsOrderingError(err error) bool { return hasCode(err, ErrCodeOrdering) }

// IsDidNotCreateError reports whether err is a failed synchronization pass.
func IsDidNotCreateError(err error) bool { return hasCode(err, ErrCodeDidNotCreate) }

// IsDuplicateBindingError reports whether err is a duplicate item binding.
func IsDuplicateBindingError(err error) bool { return hasCode(err, ErrCodeDuplicateBinding) }

func newSchemaError(label, format string, args ...any) *Error {
	return &Error{Code: ErrCodeSchema, Label: label, Message: fmt.Sprintf(format, args...)}
}

func newOrderingError(label, earlier string) *Error {
	return &Error{
		Code:    ErrCodeOrdering,
		Label:   label,
		Message: fmt.Sprintf("earlier selector %q is unset", earlier),
		Details: map[string]string{"earlier": earlier},
	}
}

func newDidNotCreateError(cause error) *Error {
	return &Error{
		Code:    ErrCodeDidNotCreate,
		Message: "remote item was not synchronized",
		Err:     cause,
	}
}

func newDuplicateBindingError(itemID string) *Error {
	return &Error{
		Code:    ErrCodeDuplicateBinding,
		Message: "calculation is already bound to a remote item",
		Details: map[string]string{"item": itemID},
	}
}

// ValidationError lists the fields whose values were rejected and cleared
// by Validate, keyed by label.
type ValidationError struct {
	Messages map[string]string

	causes []error
}

func (e *ValidationError) Error() string {
	labels := make([]string, 0, len(e.Messages))
	for l := range e.Messages {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = l + ": " + e.Messages[l]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes the ordering violations that caused fields to be cleared.
func (e *ValidationError) Unwrap() []error { return e.causes }

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
