package workflow_test

import (
	"errors"
	"testing"
	"time"

	"github.com/rpggio/prodreport/internal/catalog"
	"github.com/rpggio/prodreport/internal/domain/report"
	"github.com/rpggio/prodreport/internal/workflow"
	"github.com/stretchr/testify/require"
)

func apply(t *testing.T, s workflow.Snapshot, ev workflow.Event) (workflow.Snapshot, []workflow.Effect) {
	t.Helper()
	next, effects, err := workflow.Transition(s, ev)
	require.NoError(t, err)
	return next, effects
}

func readySnapshot(t *testing.T) workflow.Snapshot {
	t.Helper()
	s := workflow.Initial(workflow.Config{ThreadID: "t1", AuthorID: "author-1"})
	s, _ = apply(t, s, workflow.ReferenceLoaded{Catalog: catalog.New()})
	require.Equal(t, workflow.StateIdle, s.State)
	return s
}

func fillValidForm(t *testing.T, s workflow.Snapshot) workflow.Snapshot {
	t.Helper()
	s, _ = apply(t, s, workflow.UpdateField{Field: report.FieldTeamMember, Value: "Ana"})
	s, _ = apply(t, s, workflow.UpdateField{Field: report.FieldTeamRole, Value: "Developer"})
	s, _ = apply(t, s, workflow.AddRow{ID: "r1"})
	for _, kv := range [][2]string{
		{report.FieldPlatform, "Web"},
		{report.FieldProjectInitiative, "Checkout"},
		{report.FieldSDLCStep, "Build"},
		{report.FieldSDLCTask, "Coding"},
		{report.FieldTaskCategory, "Feature"},
		{report.FieldEstimatedTime, "3.00"},
		{report.FieldActualTime, "1.00"},
		{report.FieldComplexity, "Medium"},
		{report.FieldQualityImpact, "Improved"},
		{report.FieldAIToolsUsed, "Copilot, ChatGPT"},
		{report.FieldTaskDetails, "Built the cart"},
	} {
		s, _ = apply(t, s, workflow.UpdateRow{ID: "r1", Field: kv[0], Value: kv[1]})
	}
	return s
}

func TestInitial_ProjectsSeed(t *testing.T) {
	seed := &report.Loaded{
		MessageIndex: 3,
		Report: report.Report{
			TeamMember: "Ana",
			TeamRole:   "QA",
			Entries:    []report.Entry{{ID: "r1", Platform: "Web"}},
			Status:     report.StatusDraft,
		},
	}

	s := workflow.Initial(workflow.Config{ThreadID: "t1", Seed: seed})
	require.Equal(t, workflow.StateLoading, s.State)
	require.Equal(t, "Ana", s.Report.TeamMember)
	require.Len(t, s.Report.Entries, 1)
	require.False(t, s.ReadOnly)
	require.NotNil(t, s.MessageIndex)
	require.Equal(t, 3, *s.MessageIndex)

	seed.Report.Status = report.StatusSubmitted
	require.True(t, workflow.Initial(workflow.Config{Seed: seed}).ReadOnly)
	require.True(t, workflow.Initial(workflow.Config{ReadOnly: true}).ReadOnly)
}

func TestTransition_LoadingFailureAndRetry(t *testing.T) {
	s := workflow.Initial(workflow.Config{})

	_, _, err := workflow.Transition(s, workflow.UpdateField{Field: report.FieldTeamMember, Value: "x"})
	require.ErrorIs(t, err, workflow.ErrInvalidEvent)

	s, effects := apply(t, s, workflow.ReferenceFailed{Err: errors.New("503")})
	require.Equal(t, workflow.StateFailure, s.State)
	require.Equal(t, "503", s.LoadError)
	require.Empty(t, effects)

	_, _, err = workflow.Transition(s, workflow.Submit{Status: report.StatusDraft})
	require.ErrorIs(t, err, workflow.ErrInvalidEvent)

	s, effects = apply(t, s, workflow.Retry{})
	require.Equal(t, workflow.StateLoading, s.State)
	require.Equal(t, []workflow.Effect{workflow.FetchReference{}}, effects)

	s, _ = apply(t, s, workflow.ReferenceLoaded{Catalog: catalog.New()})
	require.Equal(t, workflow.StateIdle, s.State)
	require.Empty(t, s.LoadError)
}

func TestTransition_MutationsMarkDirty(t *testing.T) {
	s := readySnapshot(t)

	s, _ = apply(t, s, workflow.AddRow{ID: "r1"})
	require.Equal(t, workflow.StateDirty, s.State)
	require.True(t, s.Expanded["r1"])
	require.Len(t, s.Report.Entries, 1)

	_, _, err := workflow.Transition(s, workflow.AddRow{ID: "r1"})
	require.ErrorIs(t, err, workflow.ErrInvalidEvent)

	s, _ = apply(t, s, workflow.UpdateRow{ID: "r1", Field: report.FieldSDLCStep, Value: "Build"})
	s, _ = apply(t, s, workflow.UpdateRow{ID: "r1", Field: report.FieldSDLCTask, Value: "Coding"})
	s, _ = apply(t, s, workflow.UpdateRow{ID: "r1", Field: report.FieldSDLCStep, Value: "Test"})
	row, ok := s.Row("r1")
	require.True(t, ok)
	require.Empty(t, row.SDLCTask)

	s, _ = apply(t, s, workflow.UpdateRow{ID: "r1", Field: report.FieldEstimatedTime, Value: "3.00"})
	s, _ = apply(t, s, workflow.UpdateRow{ID: "r1", Field: report.FieldActualTime, Value: "1.00"})
	row, _ = s.Row("r1")
	require.Equal(t, "2.00", row.TimeSaved)

	s, _ = apply(t, s, workflow.UpdateRow{ID: "r1", Field: report.FieldActualTime, Value: "3.00"})
	row, _ = s.Row("r1")
	require.Equal(t, "0.00", row.TimeSaved)

	_, _, err = workflow.Transition(s, workflow.UpdateRow{ID: "missing", Field: report.FieldPlatform, Value: "x"})
	require.ErrorIs(t, err, report.ErrRowNotFound)

	s, _ = apply(t, s, workflow.RemoveRow{ID: "r1"})
	require.Empty(t, s.Report.Entries)
	require.NotContains(t, s.Expanded, "r1")
}

func TestTransition_ToggleDoesNotDirty(t *testing.T) {
	s := readySnapshot(t)
	s, _ = apply(t, s, workflow.AddRow{ID: "r1"})
	s.State = workflow.StateIdle

	s, _ = apply(t, s, workflow.ToggleRow{ID: "r1"})
	require.False(t, s.Expanded["r1"])
	require.Equal(t, workflow.StateIdle, s.State)

	s, _ = apply(t, s, workflow.ToggleRow{ID: "r1"})
	require.True(t, s.Expanded["r1"])

	_, _, err := workflow.Transition(s, workflow.ToggleRow{ID: "nope"})
	require.ErrorIs(t, err, report.ErrRowNotFound)
}

func TestTransition_TransitionsDoNotMutateInput(t *testing.T) {
	s := readySnapshot(t)
	s, _ = apply(t, s, workflow.AddRow{ID: "r1"})

	_, _ = apply(t, s, workflow.UpdateRow{ID: "r1", Field: report.FieldPlatform, Value: "Web"})
	_, _ = apply(t, s, workflow.RemoveRow{ID: "r1"})
	_, _ = apply(t, s, workflow.ToggleRow{ID: "r1"})

	row, ok := s.Row("r1")
	require.True(t, ok)
	require.Empty(t, row.Platform)
	require.True(t, s.Expanded["r1"])
}

func TestTransition_SubmittedSeedIsReadOnly(t *testing.T) {
	seed := &report.Loaded{Report: report.Report{
		TeamMember: "Ana",
		Entries:    []report.Entry{{ID: "r1"}},
		Status:     report.StatusSubmitted,
	}}
	s := workflow.Initial(workflow.Config{Seed: seed})
	s, _ = apply(t, s, workflow.ReferenceLoaded{Catalog: catalog.New()})

	rejected := []workflow.Event{
		workflow.UpdateField{Field: report.FieldTeamMember, Value: "Bo"},
		workflow.AddRow{ID: "r2"},
		workflow.RemoveRow{ID: "r1"},
		workflow.UpdateRow{ID: "r1", Field: report.FieldPlatform, Value: "Web"},
		workflow.AddOption{Category: catalog.Platforms, Value: "Web"},
		workflow.Submit{Status: report.StatusSubmitted},
	}
	for _, ev := range rejected {
		next, effects, err := workflow.Transition(s, ev)
		require.ErrorIs(t, err, workflow.ErrReadOnly, "%T", ev)
		require.Empty(t, effects)
		require.Equal(t, workflow.StateIdle, next.State)
	}

	s, _ = apply(t, s, workflow.ToggleRow{ID: "r1"})
	require.True(t, s.Expanded["r1"])
}

func TestTransition_SubmitGuard(t *testing.T) {
	s := fillValidForm(t, readySnapshot(t))

	required := []string{
		report.FieldPlatform, report.FieldProjectInitiative, report.FieldSDLCTask,
		report.FieldTaskCategory, report.FieldEstimatedTime, report.FieldActualTime,
		report.FieldComplexity, report.FieldQualityImpact, report.FieldAIToolsUsed,
		report.FieldTaskDetails,
	}
	for _, field := range required {
		incomplete, _ := apply(t, s, workflow.UpdateRow{ID: "r1", Field: field, Value: ""})
		next, effects, err := workflow.Transition(incomplete, workflow.Submit{Status: report.StatusSubmitted})
		require.ErrorIs(t, err, report.ErrValidation, field)
		require.Empty(t, effects)
		require.NotEqual(t, workflow.StateSubmitting, next.State)
	}

	noMember, _ := apply(t, s, workflow.UpdateField{Field: report.FieldTeamMember, Value: "  "})
	_, _, err := workflow.Transition(noMember, workflow.Submit{Status: report.StatusDraft})
	require.ErrorIs(t, err, report.ErrValidation)

	noRows, _ := apply(t, s, workflow.RemoveRow{ID: "r1"})
	_, _, err = workflow.Transition(noRows, workflow.Submit{Status: report.StatusDraft})
	require.ErrorIs(t, err, report.ErrValidation)

	_, _, err = workflow.Transition(s, workflow.Submit{Status: "archived"})
	require.ErrorIs(t, err, workflow.ErrInvalidEvent)
}

func TestTransition_SubmitDispatchesBothEffects(t *testing.T) {
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s := fillValidForm(t, readySnapshot(t))

	s, effects := apply(t, s, workflow.Submit{Status: report.StatusSubmitted, At: at})
	require.Equal(t, workflow.StateSubmitting, s.State)
	require.Len(t, effects, 2)
	require.Equal(t, workflow.PushCatalog{}, effects[0])

	submit, ok := effects[1].(workflow.SubmitReport)
	require.True(t, ok)
	require.Equal(t, "t1", submit.ThreadID)
	require.Nil(t, submit.MessageIndex)
	require.Equal(t, report.StatusSubmitted, submit.Report.Status)
	require.Equal(t, at, submit.Report.Timestamp)
	require.Equal(t, "author-1", submit.Report.AuthorID)
	require.Equal(t, report.Tools{"Copilot", "ChatGPT"}, submit.Report.Entries[0].AIToolsUsed)

	_, _, err := workflow.Transition(s, workflow.AddRow{ID: "r9"})
	require.ErrorIs(t, err, workflow.ErrInvalidEvent)

	pushed, _ := apply(t, s, workflow.CatalogPushed{Err: errors.New("offline")})
	require.Equal(t, workflow.StateSubmitting, pushed.State)
	require.Equal(t, "offline", pushed.CatalogPushError)

	done, _ := apply(t, pushed, workflow.SubmitSucceeded{})
	require.Equal(t, workflow.StateSuccess, done.State)
	require.Equal(t, report.StatusSubmitted, done.Report.Status)
	require.True(t, done.ReadOnly)
}

func TestTransition_SubmitFailureKeepsEdits(t *testing.T) {
	s := fillValidForm(t, readySnapshot(t))
	before := s.Report

	s, _ = apply(t, s, workflow.Submit{Status: report.StatusDraft})
	s, _ = apply(t, s, workflow.SubmitFailed{Err: errors.New("upload rejected")})
	require.Equal(t, workflow.StateIdle, s.State)
	require.Equal(t, "upload rejected", s.SubmitError)
	require.Equal(t, before, s.Report)

	s, effects := apply(t, s, workflow.Submit{Status: report.StatusDraft})
	require.Equal(t, workflow.StateSubmitting, s.State)
	require.Empty(t, s.SubmitError)
	require.Len(t, effects, 2)
}

func TestTransition_EditSubmissionTargetsMessageIndex(t *testing.T) {
	s := workflow.Initial(workflow.Config{
		ThreadID: "t1",
		AuthorID: "author-1",
		Seed:     &report.Loaded{MessageIndex: 2, Report: report.Report{Status: report.StatusDraft}},
	})
	s, _ = apply(t, s, workflow.ReferenceLoaded{Catalog: catalog.New()})
	s = fillValidForm(t, s)

	_, effects := apply(t, s, workflow.Submit{Status: report.StatusSubmitted})
	submit := effects[1].(workflow.SubmitReport)
	require.NotNil(t, submit.MessageIndex)
	require.Equal(t, 2, *submit.MessageIndex)
}

func TestInitial_MessageIndexOverridesSeed(t *testing.T) {
	idx := 3
	s := workflow.Initial(workflow.Config{
		ThreadID:     "t1",
		Seed:         &report.Loaded{MessageIndex: 0, Report: report.Report{Status: report.StatusDraft}},
		MessageIndex: &idx,
	})
	require.NotNil(t, s.MessageIndex)
	require.Equal(t, 3, *s.MessageIndex)

	blank := workflow.Initial(workflow.Config{ThreadID: "t1", MessageIndex: &idx})
	require.False(t, blank.ReadOnly)
	require.NotNil(t, blank.MessageIndex)
	require.Equal(t, 3, *blank.MessageIndex)
	require.Empty(t, blank.Report.Entries)
}

func TestTransition_AddOption(t *testing.T) {
	s := readySnapshot(t)

	s, effects := apply(t, s, workflow.AddOption{Category: catalog.Platforms, Value: " Desktop "})
	require.Equal(t, []string{"Desktop"}, s.Catalog.Options(catalog.Platforms))
	require.Equal(t, []workflow.Effect{workflow.SaveCatalogEdit{Category: catalog.Platforms, Value: "Desktop"}}, effects)
	require.Equal(t, workflow.StateDirty, s.State)

	s, effects = apply(t, s, workflow.AddOption{Category: catalog.Tasks, Step: "Build", Value: "Coding"})
	require.Equal(t, []string{"Coding"}, s.Catalog.TaskOptions("Build"))
	require.Len(t, effects, 1)

	_, _, err := workflow.Transition(s, workflow.AddOption{Category: catalog.Tasks, Value: "Coding"})
	require.ErrorIs(t, err, catalog.ErrInvalidOption)

	_, _, err = workflow.Transition(s, workflow.AddOption{Category: catalog.AITools, Value: "Claude, Opus"})
	require.ErrorIs(t, err, catalog.ErrInvalidOption)

	s, _ = apply(t, s, workflow.CatalogEditSaved{Category: catalog.Platforms, Err: errors.New("disk full")})
	require.Equal(t, "disk full", s.CatalogEditError)
}

func TestTransition_PushWaitsForPendingOptionSaves(t *testing.T) {
	s := fillValidForm(t, readySnapshot(t))
	s, _ = apply(t, s, workflow.AddOption{Category: catalog.Platforms, Value: "Desktop"})
	require.Equal(t, 1, s.PendingEdits)

	s, effects := apply(t, s, workflow.Submit{Status: report.StatusSubmitted})
	require.Len(t, effects, 1)
	require.IsType(t, workflow.SubmitReport{}, effects[0])
	require.True(t, s.PushDeferred)

	s, effects = apply(t, s, workflow.CatalogEditSaved{Category: catalog.Platforms, Value: "Desktop"})
	require.Equal(t, []workflow.Effect{workflow.PushCatalog{}}, effects)
	require.False(t, s.PushDeferred)
	require.Zero(t, s.PendingEdits)
	require.Equal(t, workflow.StateSubmitting, s.State)
}
