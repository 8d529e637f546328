package workflow

import "errors"

var (
	// ErrReadOnly indicates a mutation on a session that cannot be edited.
	ErrReadOnly = errors.New("report is read-only")
	// ErrInvalidEvent indicates an event the current state does not accept.
	ErrInvalidEvent = errors.New("event not allowed in current state")
	// ErrMissingDependency indicates a Machine built without a collaborator.
	ErrMissingDependency = errors.New("missing workflow dependency")
)
