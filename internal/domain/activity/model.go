package activity

import "time"

// Type identifies what happened in a session.
type Type string

const (
	TypeSessionOpened      Type = "session_opened"
	TypeSessionClosed      Type = "session_closed"
	TypeReportSubmitted    Type = "report_submitted"
	TypeReportSubmitFailed Type = "report_submit_failed"
	TypeCatalogPushed      Type = "catalog_pushed"
	TypeCatalogOptionAdded Type = "catalog_option_added"
)

// Entry is one line of the session audit log.
type Entry struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	ThreadID  string    `json:"thread_id"`
	Type      Type      `json:"type"`
	Summary   string    `json:"summary"`
	Details   string    `json:"details,omitempty"` // JSON string
	CreatedAt time.Time `json:"created_at"`
}
