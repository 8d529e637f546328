package sessions

import "errors"

var (
	// ErrSessionNotFound indicates an unknown or closed session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidInput indicates a malformed open request.
	ErrInvalidInput = errors.New("invalid input")
)
