package field

import (
	"errors"
	"fmt"
)

// ErrorCode classifies field errors.
type ErrorCode string

const (
	// CodeSchema indicates a malformed field or collection declaration.
	CodeSchema ErrorCode = "SCHEMA"

	// CodeFixedValue indicates an attempt to change a fixed field.
	CodeFixedValue ErrorCode = "FIXED_VALUE"

	// CodeInvalidInterface indicates an unknown presentation interface.
	CodeInvalidInterface ErrorCode = "INVALID_INTERFACE"

	// CodeNotFound indicates a lookup by label or path that matched nothing.
	CodeNotFound ErrorCode = "NOT_FOUND"
)

// Error is returned by field construction, mutation and collection lookups.
type Error struct {
	Code    ErrorCode
	Label   string
	Message string
}

func (e *Error) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Label, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func newSchemaError(label, format string, args ...any) *Error {
	return &Error{Code: CodeSchema, Label: label, Message: fmt.Sprintf(format, args...)}
}

func newFixedValueError(label, fixed, attempted string) *Error {
	return &Error{
		Code:    CodeFixedValue,
		Label:   label,
		Message: fmt.Sprintf("fixed to %q, cannot set %q", fixed, attempted),
	}
}

func newNotFoundError(label string) *Error {
	return &Error{Code: CodeNotFound, Label: label, Message: "no such field"}
}

func hasCode(err error, code ErrorCode) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}

// IsSchemaError reports whether err is a field schema error.
func IsSchemaError(err error) bool { return hasCode(err, CodeSchema) }

// IsFixedValueError reports whether err rejects a change to a fixed field.
func IsFixedValueError(err error) bool { return hasCode(err, CodeFixedValue) }

// IsInvalidInterfaceError reports whether err names an unknown interface.
func IsInvalidInterfaceError(err error) bool { return hasCode(err, CodeInvalidInterface) }

// IsNotFoundError reports whether err is a failed collection lookup.
func IsNotFoundError(err error) bool { return hasCode(err, CodeNotFound) }
