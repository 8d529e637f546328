// Package report defines the productivity report, its rows and the payloads
// exchanged with the thread backend.
package report

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a submitted report.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusSubmitted
}

// Report is one team member's submission for a thread.
type Report struct {
	TeamName   string    `json:"teamName"`
	TeamMember string    `json:"teamMember"`
	TeamRole   string    `json:"teamRole"`
	Entries    []Entry   `json:"entries"`
	Timestamp  time.Time `json:"timestamp"`
	Status     Status    `json:"status"`
	AuthorID   string    `json:"authorId"`
}

// Clone deep-copies the report.
func (r Report) Clone() Report {
	out := r
	out.Entries = make([]Entry, len(r.Entries))
	for i, e := range r.Entries {
		out.Entries[i] = e.Clone()
	}
	return out
}

// Entry is a single task row. Times are the decimal strings held by the form.
type Entry struct {
	ID                     string `json:"id"`
	Platform               string `json:"platform"`
	ProjectInitiative      string `json:"projectInitiative"`
	SDLCStep               string `json:"sdlcStep"`
	SDLCTask               string `json:"sdlcTask"`
	TaskCategory           string `json:"taskCategory"`
	EstimatedTimeWithoutAI string `json:"estimatedTimeWithoutAI"`
	ActualTimeWithAI       string `json:"actualTimeWithAI"`
	TimeSaved              string `json:"timeSaved"`
	Complexity             string `json:"complexity"`
	QualityImpact          string `json:"qualityImpact"`
	AIToolsUsed            Tools  `json:"aiToolsUsed"`
	TaskDetails            string `json:"taskDetails"`
	NotesHowAIHelped       string `json:"notesHowAIHelped"`
}

// NewEntry returns an empty row with a fresh identity.
func NewEntry() Entry {
	return Entry{ID: uuid.NewString(), AIToolsUsed: Tools{}}
}

// Clone deep-copies the entry.
func (e Entry) Clone() Entry {
	e.AIToolsUsed = slices.Clone(e.AIToolsUsed)
	return e
}
