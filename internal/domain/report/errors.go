package report

import (
	"errors"
	"strings"
)

var (
	// ErrValidation indicates the report failed the submit guard.
	ErrValidation = errors.New("report is incomplete")
	// ErrUnknownField indicates an update named a field the report does not have.
	ErrUnknownField = errors.New("unknown field")
	// ErrRowNotFound indicates a row id that is not in the report.
	ErrRowNotFound = errors.New("row not found")
	// ErrInvalidPayload indicates a decrypted payload that is not a report.
	ErrInvalidPayload = errors.New("invalid report payload")
)

// ValidationError lists every reason a report cannot be submitted.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return ErrValidation.Error() + ": " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
