package supervisor

import (
	"slices"
	"strings"

	"github.com/rpggio/prodreport/internal/domain/report"
)

// Filter narrows the viewer's report list. Empty fields match everything.
type Filter struct {
	TeamMember string
	Status     report.Status
	AuthorID   string
}

func (f Filter) match(l report.Loaded) bool {
	if f.TeamMember != "" && !strings.EqualFold(strings.TrimSpace(l.Report.TeamMember), strings.TrimSpace(f.TeamMember)) {
		return false
	}
	if f.Status != "" && l.Report.Status != f.Status {
		return false
	}
	if f.AuthorID != "" && l.Report.AuthorID != f.AuthorID {
		return false
	}
	return true
}

// Viewer is the read-only listing of a thread's reports.
type Viewer struct {
	reports []report.Loaded
}

// NewViewer sorts reports newest first and keeps a private copy.
func NewViewer(reports []report.Loaded) *Viewer {
	own := make([]report.Loaded, len(reports))
	for i, r := range reports {
		own[i] = report.Loaded{Report: r.Report.Clone(), MessageIndex: r.MessageIndex}
	}
	SortNewestFirst(own)
	return &Viewer{reports: own}
}

// Reports returns every report, newest first.
func (v *Viewer) Reports() []report.Loaded {
	return v.Filter(Filter{})
}

// Filter returns the reports matching f, newest first.
func (v *Viewer) Filter(f Filter) []report.Loaded {
	out := make([]report.Loaded, 0, len(v.reports))
	for _, r := range v.reports {
		if f.match(r) {
			out = append(out, report.Loaded{Report: r.Report.Clone(), MessageIndex: r.MessageIndex})
		}
	}
	return out
}

// Members lists the distinct team members, sorted.
func (v *Viewer) Members() []string {
	var out []string
	for _, r := range v.reports {
		name := strings.TrimSpace(r.Report.TeamMember)
		if name != "" && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}
