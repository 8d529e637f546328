// Package workflow drives one report-editing session: load and reconcile the
// reference catalogs, accept edits, validate, then push catalog changes and
// upload the encrypted report side by side.
package workflow

import (
	"maps"

	"github.com/rpggio/prodreport/internal/catalog"
	"github.com/rpggio/prodreport/internal/domain/report"
)

// State is the session's position in the workflow.
type State string

const (
	StateLoading    State = "loading"
	StateIdle       State = "ready.idle"
	StateDirty      State = "ready.dirty"
	StateSubmitting State = "submitting"
	StateSuccess    State = "success"
	StateFailure    State = "failure"
)

// Ready reports whether the session accepts edits.
func (s State) Ready() bool {
	return s == StateIdle || s == StateDirty
}

// Settled reports whether the session is waiting on the user rather than on
// an effect.
func (s State) Settled() bool {
	return s != StateLoading && s != StateSubmitting
}

// Snapshot is the full session context. Catalog is replaced, never mutated,
// so snapshots may share it.
type Snapshot struct {
	State        State
	ThreadID     string
	ThreadTitle  string
	AuthorID     string
	MessageIndex *int
	Report       report.Report
	Expanded     map[string]bool
	Catalog      catalog.Catalog
	ReadOnly     bool

	LoadError        string
	SubmitError      string
	SubmitStatus     report.Status
	CatalogPushError string
	CatalogPushed    int
	CatalogEditError string

	// PendingEdits counts option saves still in flight. A submit made while
	// saves are pending defers the catalog push until they land.
	PendingEdits int
	PushDeferred bool
}

// Clone copies the parts of the snapshot a transition may modify.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Report = s.Report.Clone()
	out.Expanded = maps.Clone(s.Expanded)
	if out.Expanded == nil {
		out.Expanded = map[string]bool{}
	}
	if s.MessageIndex != nil {
		idx := *s.MessageIndex
		out.MessageIndex = &idx
	}
	return out
}

// Row returns the row with id.
func (s Snapshot) Row(id string) (report.Entry, bool) {
	for _, e := range s.Report.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return report.Entry{}, false
}

// Config seeds a new session.
type Config struct {
	ThreadID    string
	ThreadTitle string
	AuthorID    string
	TeamName    string
	// Seed is the existing report when editing; nil starts a blank form.
	Seed *report.Loaded
	// MessageIndex is the message an upload replaces. It overrides the
	// seed's index and stays set when the seed could not be loaded.
	MessageIndex *int
	// ReadOnly forces the session read-only regardless of the seed status.
	ReadOnly bool
}

// Initial projects cfg into the loading snapshot. A submitted seed makes the
// session read-only.
func Initial(cfg Config) Snapshot {
	s := Snapshot{
		State:       StateLoading,
		ThreadID:    cfg.ThreadID,
		ThreadTitle: cfg.ThreadTitle,
		AuthorID:    cfg.AuthorID,
		Expanded:    map[string]bool{},
		Catalog:     catalog.New(),
		ReadOnly:    cfg.ReadOnly,
		Report: report.Report{
			TeamName: cfg.TeamName,
			Entries:  []report.Entry{},
			Status:   report.StatusDraft,
		},
	}

	if cfg.Seed != nil {
		s.Report = cfg.Seed.Report.Clone()
		if s.Report.Entries == nil {
			s.Report.Entries = []report.Entry{}
		}
		if s.Report.TeamName == "" {
			s.Report.TeamName = cfg.TeamName
		}
		idx := cfg.Seed.MessageIndex
		s.MessageIndex = &idx
		if s.Report.Status == report.StatusSubmitted {
			s.ReadOnly = true
		}
	}
	if cfg.MessageIndex != nil {
		idx := *cfg.MessageIndex
		s.MessageIndex = &idx
	}
	return s
}
