// Package apperr defines the internal error taxonomy and the registry that
// translates tagged errors into the stable public response envelope.
//
// Errors are classified by layer (where they were raised), type (what kind of
// failure) and code (the specific reason). The registry maps that triple to a
// public error code and HTTP status; internal vocabulary never reaches the
// wire.
package apperr

import (
	"errors"
	"fmt"
)

// Layer identifies where an error was raised.
type Layer string

const (
	LayerQuery    Layer = "QUERY"
	LayerService  Layer = "SERVICE"
	LayerEndpoint Layer = "ENDPOINT"
)

// Type is the failure category.
type Type string

const (
	TypeResource   Type = "RESOURCE"
	TypeValidation Type = "VALIDATION"
	TypeConflict   Type = "CONFLICT"
	TypeAuth       Type = "AUTH"
	TypeInternal   Type = "INTERNAL"
)

// Specific reason codes within a type.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeDuplicate          = "DUPLICATE"
	CodeReference          = "REFERENCE"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeUnknownFeature     = "UNKNOWN_FEATURE"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInternal           = "INTERNAL_ERROR"
)

// Detail describes a single field-level problem, typically from validation.
type Detail struct {
	Field   string `json:"field,omitempty"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message"`
}

// Error is a tagged application error carrying the full taxonomy triple.
type Error struct {
	Layer   Layer
	Type    Type
	Code    string
	Message string
	Details []Detail

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s/%s/%s: %s: %v", e.Layer, e.Type, e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s/%s/%s: %s", e.Layer, e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs a tagged error.
func New(layer Layer, typ Type, code, message string) *Error {
	return &Error{Layer: layer, Type: typ, Code: code, Message: message}
}

// Newf constructs a tagged error with a formatted message.
func Newf(layer Layer, typ Type, code, format string, args ...any) *Error {
	return New(layer, typ, code, fmt.Sprintf(format, args...))
}

// WithDetails attaches field-level details and returns the error.
func (e *Error) WithDetails(details ...Detail) *Error {
	e.Details = append(e.Details, details...)
	return e
}

// WithCause records the underlying error for logs; it is never rendered
// in the public envelope.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// As extracts an *Error from an error chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Convenience constructors for the common cases.

func NotFound(entity, id string) *Error {
	return Newf(LayerService, TypeResource, CodeNotFound, "%s with id %s not found", entity, id)
}

func Validation(details []Detail) *Error {
	return New(LayerEndpoint, TypeValidation, CodeInvalidInput, "Validation failed").WithDetails(details...)
}

func UnknownFeature(name string) *Error {
	return Newf(LayerEndpoint, TypeResource, CodeUnknownFeature, "Unknown entity: %s", name)
}

func Unauthorized(message string) *Error {
	return New(LayerEndpoint, TypeAuth, CodeUnauthorized, message)
}

func Forbidden(message string) *Error {
	return New(LayerEndpoint, TypeAuth, CodeForbidden, message)
}

func Internal(err error) *Error {
	return New(LayerService, TypeInternal, CodeInternal, "internal error").WithCause(err)
}
