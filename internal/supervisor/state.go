// Package supervisor loads the reports of a thread and routes the session to
// either the editing workflow or the read-only viewer.
package supervisor

import (
	"slices"

	"github.com/rpggio/prodreport/internal/domain/report"
	"github.com/rpggio/prodreport/internal/workflow"
)

// Mode selects what the session is opened for.
type Mode string

const (
	ModeForm   Mode = "form"
	ModeViewer Mode = "viewer"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeForm || m == ModeViewer
}

// State is the supervisor's position.
type State string

const (
	StateLoading  State = "loading"
	StateDeciding State = "deciding"
	StateForm     State = "form"
	StateViewer   State = "viewer"
	StateFailure  State = "failure"
)

// Settled reports whether the supervisor has finished routing.
func (s State) Settled() bool {
	return s == StateForm || s == StateViewer || s == StateFailure
}

// Config describes the thread being opened.
type Config struct {
	ThreadID    string
	ThreadTitle string
	TeamName    string
	// CreatorID is the author id of whoever created the thread.
	CreatorID string
	// ViewerID is this client's author id.
	ViewerID string
	Mode     Mode
	// MessageIndex targets one existing report in form mode.
	MessageIndex *int
}

// Snapshot is the supervisor context.
type Snapshot struct {
	State        State
	Mode         Mode
	ThreadID     string
	ThreadTitle  string
	TeamName     string
	CreatorID    string
	ViewerID     string
	MessageIndex *int
	Reports      []report.Loaded
	Skipped      int
	ReadOnly     bool
	Error        string
}

// Clone copies the report list so callers cannot alias machine state.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Reports = make([]report.Loaded, len(s.Reports))
	for i, r := range s.Reports {
		out.Reports[i] = report.Loaded{Report: r.Report.Clone(), MessageIndex: r.MessageIndex}
	}
	if s.MessageIndex != nil {
		idx := *s.MessageIndex
		out.MessageIndex = &idx
	}
	return out
}

// Initial builds the loading snapshot for cfg.
func Initial(cfg Config) Snapshot {
	s := Snapshot{
		State:       StateLoading,
		Mode:        cfg.Mode,
		ThreadID:    cfg.ThreadID,
		ThreadTitle: cfg.ThreadTitle,
		TeamName:    cfg.TeamName,
		CreatorID:   cfg.CreatorID,
		ViewerID:    cfg.ViewerID,
		Reports:     []report.Loaded{},
	}
	if cfg.MessageIndex != nil {
		idx := *cfg.MessageIndex
		s.MessageIndex = &idx
	}
	return s
}

// ReadOnly derives whether the form may be edited: a viewer who is neither
// the thread creator nor the report author cannot edit, and a submitted
// report is frozen. A blank form is always editable.
func ReadOnly(viewerID, creatorID string, seed *report.Loaded) bool {
	if seed == nil {
		return false
	}
	if seed.Report.Status == report.StatusSubmitted {
		return true
	}
	return viewerID != creatorID && viewerID != seed.Report.AuthorID
}

// FormConfig projects the loaded snapshot into the workflow seed. With a
// requested message index the report at that index is the seed and uploads
// replace that message even if it failed to load. Otherwise the newest loaded
// report, if any, becomes the seed.
func FormConfig(s Snapshot) workflow.Config {
	var seed *report.Loaded
	for _, l := range s.Reports {
		if s.MessageIndex == nil || l.MessageIndex == *s.MessageIndex {
			picked := report.Loaded{Report: l.Report.Clone(), MessageIndex: l.MessageIndex}
			seed = &picked
			break
		}
	}
	cfg := workflow.Config{
		ThreadID:    s.ThreadID,
		ThreadTitle: s.ThreadTitle,
		AuthorID:    s.ViewerID,
		TeamName:    s.TeamName,
		Seed:        seed,
		ReadOnly:    ReadOnly(s.ViewerID, s.CreatorID, seed),
	}
	if s.MessageIndex != nil {
		idx := *s.MessageIndex
		cfg.MessageIndex = &idx
	}
	return cfg
}

// SortNewestFirst orders reports by timestamp, newest first. Ties keep their
// download order.
func SortNewestFirst(reports []report.Loaded) {
	slices.SortStableFunc(reports, func(a, b report.Loaded) int {
		return b.Report.Timestamp.Compare(a.Report.Timestamp)
	})
}
