package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/prodreport/internal/catalog"
	"github.com/rpggio/prodreport/internal/client"
	"github.com/rpggio/prodreport/internal/domain/report"
	"github.com/rpggio/prodreport/internal/envelope"
	"github.com/rpggio/prodreport/internal/sessions"
	"github.com/rpggio/prodreport/internal/supervisor"
	"github.com/rpggio/prodreport/internal/workflow"
)

// ErrMissingSession is returned when a tool needs a session and none was
// given or pinned.
var ErrMissingSession = errors.New("session_id is required")

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
	cause        error
}

func (e *APIError) Error() string {
	if e.RecoveryHint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.RecoveryHint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// MapError maps domain errors to MCP error codes.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	var verr *report.ValidationError
	switch {
	case errors.As(err, &verr):
		return &APIError{Code: "VALIDATION_FAILED", Message: "report is incomplete", Details: verr.Problems, RecoveryHint: "Fill the listed fields and submit again", cause: err}
	case errors.Is(err, ErrMissingSession):
		return &APIError{Code: "SESSION_REQUIRED", Message: err.Error(), RecoveryHint: "Call open_thread and pass its session_id", cause: err}
	case errors.Is(err, sessions.ErrSessionNotFound):
		return &APIError{Code: "SESSION_NOT_FOUND", Message: "session not found", RecoveryHint: "Call open_thread to start a new session", cause: err}
	case errors.Is(err, sessions.ErrInvalidInput), errors.Is(err, supervisor.ErrInvalidMode),
		errors.Is(err, catalog.ErrInvalidOption), errors.Is(err, catalog.ErrOptionIndex):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error(), cause: err}
	case errors.Is(err, supervisor.ErrNotInForm):
		return &APIError{Code: "NOT_EDITING", Message: "session is not editing a report", RecoveryHint: "Open the thread in form mode", cause: err}
	case errors.Is(err, supervisor.ErrNotInViewer):
		return &APIError{Code: "NOT_VIEWING", Message: "session is not listing reports", RecoveryHint: "Open the thread in viewer mode", cause: err}
	case errors.Is(err, workflow.ErrReadOnly):
		return &APIError{Code: "READ_ONLY", Message: "report cannot be edited", RecoveryHint: "Submitted reports and other members' drafts are read-only", cause: err}
	case errors.Is(err, workflow.ErrInvalidEvent), errors.Is(err, supervisor.ErrInvalidEvent):
		return &APIError{Code: "INVALID_STATE", Message: err.Error(), RecoveryHint: "Check session_state before retrying", cause: err}
	case errors.Is(err, report.ErrUnknownField):
		return &APIError{Code: "UNKNOWN_FIELD", Message: err.Error(), cause: err}
	case errors.Is(err, report.ErrRowNotFound):
		return &APIError{Code: "ROW_NOT_FOUND", Message: err.Error(), RecoveryHint: "Use a row_id from session_state", cause: err}
	case errors.Is(err, envelope.ErrKeyImport):
		return &APIError{Code: "INVALID_KEY", Message: "encryption key could not be imported", RecoveryHint: "Pass a base64 AES key", cause: err}
	case errors.Is(err, client.ErrSubmission), errors.Is(err, client.ErrThreadFetch), errors.Is(err, client.ErrReferenceFetch):
		return &APIError{Code: "BACKEND_ERROR", Message: err.Error(), RecoveryHint: "Call retry once the backend is reachable", cause: err}
	default:
		return nil
	}
}

// toolError converts a domain error into the error a tool handler returns.
func toolError(err error) error {
	if api := MapError(err); api != nil {
		return api
	}
	return err
}
