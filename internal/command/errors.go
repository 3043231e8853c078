package command

import "errors"

// Domain errors for the command package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, command.ErrNotFound) {
//	    // unknown command name or id
//	}
var (
	// ErrMalformedDefinition is returned when a command definition document
	// is not structurally valid.
	ErrMalformedDefinition = errors.New("command: malformed definition document")

	// ErrMalformedPayload is returned when an inbound command payload is
	// missing required fields or uses wrong field types.
	ErrMalformedPayload = errors.New("command: malformed payload")

	// ErrDuplicateName is returned when loading a category would register a
	// command name already owned by another category.
	ErrDuplicateName = errors.New("command: duplicate command name")

	// ErrNotFound is returned when a command name or instance id is unknown.
	ErrNotFound = errors.New("command: not found")

	// ErrInvalidState is returned when an operation is illegal for the
	// instance's current state, including any mutation of a terminal
	// instance.
	ErrInvalidState = errors.New("command: invalid state transition")

	// ErrDuplicateID is returned when adding an instance whose id is
	// already tracked by the manager.
	ErrDuplicateID = errors.New("command: duplicate instance id")
)
