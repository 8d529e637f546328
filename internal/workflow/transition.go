package workflow

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rpggio/prodreport/internal/catalog"
	"github.com/rpggio/prodreport/internal/domain/report"
)

// Transition is the pure step function of the workflow. It never performs
// I/O; work it needs done is returned as effects. On error the snapshot is
// returned unchanged.
func Transition(s Snapshot, ev Event) (Snapshot, []Effect, error) {
	// Effect results that only update bookkeeping are accepted in any state.
	switch e := ev.(type) {
	case CatalogEditSaved:
		next := s.Clone()
		next.CatalogEditError = errText(e.Err)
		if next.PendingEdits > 0 {
			next.PendingEdits--
		}
		if next.PendingEdits == 0 && next.PushDeferred {
			next.PushDeferred = false
			return next, []Effect{PushCatalog{}}, nil
		}
		return next, nil, nil
	case CatalogPushed:
		next := s.Clone()
		next.CatalogPushed += e.Pushed
		next.CatalogPushError = errText(e.Err)
		return next, nil, nil
	case ToggleRow:
		return toggleRow(s, e)
	}

	switch s.State {
	case StateLoading:
		return fromLoading(s, ev)
	case StateFailure:
		return fromFailure(s, ev)
	case StateIdle, StateDirty:
		return fromReady(s, ev)
	case StateSubmitting:
		return fromSubmitting(s, ev)
	}
	return s, nil, invalid(s, ev)
}

func fromLoading(s Snapshot, ev Event) (Snapshot, []Effect, error) {
	switch e := ev.(type) {
	case ReferenceLoaded:
		next := s.Clone()
		next.Catalog = e.Catalog
		next.LoadError = ""
		next.State = StateIdle
		return next, nil, nil
	case ReferenceFailed:
		next := s.Clone()
		next.LoadError = errText(e.Err)
		next.State = StateFailure
		return next, nil, nil
	}
	return s, nil, invalid(s, ev)
}

func fromFailure(s Snapshot, ev Event) (Snapshot, []Effect, error) {
	if _, ok := ev.(Retry); ok {
		next := s.Clone()
		next.State = StateLoading
		return next, []Effect{FetchReference{}}, nil
	}
	return s, nil, invalid(s, ev)
}

func fromReady(s Snapshot, ev Event) (Snapshot, []Effect, error) {
	if s.ReadOnly {
		switch ev.(type) {
		case UpdateField, AddRow, RemoveRow, UpdateRow, AddOption, Submit:
			return s, nil, ErrReadOnly
		}
	}

	switch e := ev.(type) {
	case UpdateField:
		next := s.Clone()
		if err := next.Report.SetField(e.Field, e.Value); err != nil {
			return s, nil, err
		}
		next.State = StateDirty
		return next, nil, nil

	case AddRow:
		if e.ID == "" {
			return s, nil, fmt.Errorf("%w: row id required", ErrInvalidEvent)
		}
		if _, exists := s.Row(e.ID); exists {
			return s, nil, fmt.Errorf("%w: duplicate row id %q", ErrInvalidEvent, e.ID)
		}
		next := s.Clone()
		row := report.NewEntry()
		row.ID = e.ID
		next.Report.Entries = append(next.Report.Entries, row)
		next.Expanded[e.ID] = true
		next.State = StateDirty
		return next, nil, nil

	case RemoveRow:
		idx := rowIndex(s, e.ID)
		if idx < 0 {
			return s, nil, report.ErrRowNotFound
		}
		next := s.Clone()
		next.Report.Entries = slices.Delete(next.Report.Entries, idx, idx+1)
		delete(next.Expanded, e.ID)
		next.State = StateDirty
		return next, nil, nil

	case UpdateRow:
		idx := rowIndex(s, e.ID)
		if idx < 0 {
			return s, nil, report.ErrRowNotFound
		}
		updated, err := s.Report.Entries[idx].Set(e.Field, e.Value)
		if err != nil {
			return s, nil, err
		}
		next := s.Clone()
		next.Report.Entries[idx] = updated
		next.State = StateDirty
		return next, nil, nil

	case AddOption:
		value := strings.TrimSpace(e.Value)
		if e.Category == catalog.Tasks && strings.TrimSpace(e.Step) == "" {
			return s, nil, catalog.ErrInvalidOption
		}
		if err := catalog.CheckOption(e.Category, value); err != nil {
			return s, nil, err
		}
		next := s.Clone()
		if e.Category == catalog.Tasks {
			next.Catalog = s.Catalog.WithTask(e.Step, value)
		} else {
			next.Catalog = s.Catalog.WithOption(e.Category, value)
		}
		next.State = StateDirty
		next.PendingEdits++
		return next, []Effect{SaveCatalogEdit{Category: e.Category, Step: e.Step, Value: value}}, nil

	case Submit:
		if !e.Status.Valid() {
			return s, nil, fmt.Errorf("%w: unknown status %q", ErrInvalidEvent, e.Status)
		}
		if err := report.Validate(s.Report); err != nil {
			return s, nil, err
		}
		next := s.Clone()
		next.State = StateSubmitting
		next.SubmitError = ""
		next.SubmitStatus = e.Status

		payload := next.Report.Clone()
		payload.Status = e.Status
		payload.Timestamp = e.At
		payload.AuthorID = s.AuthorID

		submit := SubmitReport{
			ThreadID:     s.ThreadID,
			ThreadTitle:  s.ThreadTitle,
			MessageIndex: next.MessageIndex,
			Report:       payload,
		}
		if next.PendingEdits > 0 {
			next.PushDeferred = true
			return next, []Effect{submit}, nil
		}
		return next, []Effect{PushCatalog{}, submit}, nil
	}
	return s, nil, invalid(s, ev)
}

func fromSubmitting(s Snapshot, ev Event) (Snapshot, []Effect, error) {
	switch e := ev.(type) {
	case SubmitSucceeded:
		next := s.Clone()
		next.State = StateSuccess
		next.SubmitError = ""
		next.Report.Status = next.SubmitStatus
		if next.SubmitStatus == report.StatusSubmitted {
			next.ReadOnly = true
		}
		return next, nil, nil
	case SubmitFailed:
		next := s.Clone()
		next.State = StateIdle
		next.SubmitError = errText(e.Err)
		return next, nil, nil
	}
	return s, nil, invalid(s, ev)
}

func toggleRow(s Snapshot, e ToggleRow) (Snapshot, []Effect, error) {
	if rowIndex(s, e.ID) < 0 {
		return s, nil, report.ErrRowNotFound
	}
	next := s.Clone()
	if next.Expanded[e.ID] {
		delete(next.Expanded, e.ID)
	} else {
		next.Expanded[e.ID] = true
	}
	return next, nil, nil
}

func rowIndex(s Snapshot, id string) int {
	return slices.IndexFunc(s.Report.Entries, func(e report.Entry) bool { return e.ID == id })
}

func invalid(s Snapshot, ev Event) error {
	return fmt.Errorf("%w: %T in %s", ErrInvalidEvent, ev, s.State)
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
