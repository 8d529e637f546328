package supervisor

import (
	"fmt"

	"github.com/rpggio/prodreport/internal/domain/report"
)

// Transition is the pure step function of the supervisor.
func Transition(s Snapshot, ev Event) (Snapshot, []Effect, error) {
	switch s.State {
	case StateLoading:
		switch e := ev.(type) {
		case ReportsLoaded:
			next := s.Clone()
			next.Reports = append([]report.Loaded{}, e.Reports...)
			next.Skipped = e.Skipped
			next.Error = ""
			next.State = StateDeciding
			return next, []Effect{decide(next)}, nil
		case LoadFailed:
			next := s.Clone()
			next.Error = errText(e.Err)
			next.State = StateFailure
			return next, nil, nil
		}

	case StateDeciding:
		switch e := ev.(type) {
		case FormStarted:
			next := s.Clone()
			next.ReadOnly = FormConfig(next).ReadOnly
			next.State = StateForm
			return next, nil, nil
		case ViewerStarted:
			next := s.Clone()
			next.ReadOnly = true
			next.State = StateViewer
			return next, nil, nil
		case SpawnFailed:
			next := s.Clone()
			next.Error = errText(e.Err)
			next.State = StateFailure
			return next, nil, nil
		}

	case StateFailure:
		if _, ok := ev.(Retry); ok {
			next := s.Clone()
			next.State = StateLoading
			return next, []Effect{LoadEffect(next)}, nil
		}
	}
	return s, nil, fmt.Errorf("%w: %T in %s", ErrInvalidEvent, ev, s.State)
}

// LoadEffect builds the download for s: the single target message in form
// mode, the whole thread in viewer mode, nothing for a blank form.
func LoadEffect(s Snapshot) LoadReports {
	q := report.ThreadQuery{ThreadID: s.ThreadID, AuthorID: s.ViewerID}
	if s.Mode == ModeForm {
		if s.MessageIndex == nil {
			return LoadReports{Query: q, Skip: true}
		}
		idx := *s.MessageIndex
		q.MessageIndex = &idx
	}
	return LoadReports{Query: q}
}

func decide(s Snapshot) Effect {
	if s.Mode == ModeViewer {
		return StartViewer{Reports: s.Clone().Reports}
	}
	return StartForm{Config: FormConfig(s)}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
