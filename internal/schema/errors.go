package schema

import (
	"errors"
	"fmt"
)

// Domain errors for the schema package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, schema.ErrValidation) {
//	    // value failed validation
//	}
var (
	// ErrMalformed is returned when a schema definition document is not
	// structurally valid (bad JSON, wrong container types).
	ErrMalformed = errors.New("schema: malformed definition")

	// ErrUnknownType is returned when a definition declares a type name
	// that is not one of integer, number, boolean, string, object, array.
	ErrUnknownType = errors.New("schema: unknown type")

	// ErrInvalidConstraint is returned when a constraint value is malformed
	// or incompatible with the declared type (e.g. minimum on a string).
	ErrInvalidConstraint = errors.New("schema: invalid constraint")

	// ErrValidation is the class error wrapped by every ValidationError.
	ErrValidation = errors.New("schema: validation failed")
)

// Stable machine-readable codes carried by ValidationError.
const (
	CodeTypeMismatch    = "type_mismatch"
	CodeOutOfRange      = "out_of_range"
	CodeMissingProperty = "missing_property"
	CodeUnknownProperty = "unknown_property"
	CodeNotInEnum       = "not_in_enum"
)

// ValidationError describes a single schema violation.
//
// Path locates the offending value using dotted property notation with
// bracketed array indices, e.g. "params.height" or "readings[2].value".
// An empty path refers to the root value. Code is one of the Code*
// constants and is stable across releases.
type ValidationError struct {
	Path    string
	Code    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("schema: validation failed: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("schema: validation failed at %q: %s (%s)", e.Path, e.Message, e.Code)
}

// Unwrap allows errors.Is(err, ErrValidation) to match.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// newViolation constructs a ValidationError for the given path.
func newViolation(path, code, format string, args ...any) *ValidationError {
	return &ValidationError{
		Path:    path,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}
