package state

import "errors"

// Domain errors for the state package.
var (
	// ErrMalformedDefinition is returned when a property definition document
	// is not structurally valid.
	ErrMalformedDefinition = errors.New("state: malformed definition document")

	// ErrUnknownProperty is returned when a write names a property that has
	// no declared schema.
	ErrUnknownProperty = errors.New("state: unknown property")

	// ErrDuplicateProperty is returned when a definition document declares a
	// property name that is already registered.
	ErrDuplicateProperty = errors.New("state: duplicate property")
)
