package supervisor

import "errors"

var (
	// ErrInvalidMode indicates a mode other than form or viewer.
	ErrInvalidMode = errors.New("invalid session mode")
	// ErrInvalidEvent indicates an event the current state does not accept.
	ErrInvalidEvent = errors.New("event not allowed in current state")
	// ErrNotInForm indicates a form operation on a session that is not editing.
	ErrNotInForm = errors.New("session is not in form mode")
	// ErrNotInViewer indicates a viewer operation on a session that is not viewing.
	ErrNotInViewer = errors.New("session is not in viewer mode")
)
