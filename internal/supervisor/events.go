package supervisor

import (
	"github.com/rpggio/prodreport/internal/domain/report"
	"github.com/rpggio/prodreport/internal/workflow"
)

// Event is the closed set of supervisor inputs.
type Event interface {
	isEvent()
}

// ReportsLoaded carries the decrypted reports, newest first.
type ReportsLoaded struct {
	Reports []report.Loaded
	Skipped int
}

// LoadFailed reports that the thread could not be downloaded.
type LoadFailed struct {
	Err error
}

// FormStarted reports that the editing workflow is running.
type FormStarted struct{}

// ViewerStarted reports that the viewer is ready.
type ViewerStarted struct{}

// SpawnFailed reports that the child session could not be built.
type SpawnFailed struct {
	Err error
}

// Retry reloads after a failure.
type Retry struct{}

func (ReportsLoaded) isEvent() {}
func (LoadFailed) isEvent()    {}
func (FormStarted) isEvent()   {}
func (ViewerStarted) isEvent() {}
func (SpawnFailed) isEvent()   {}
func (Retry) isEvent()         {}

// Effect is work done by the supervisor's interpreter.
type Effect interface {
	isEffect()
}

// LoadReports downloads and decrypts the thread's reports.
type LoadReports struct {
	Query report.ThreadQuery
	// Skip short-circuits the download for a blank form.
	Skip bool
}

// StartForm builds and starts the editing workflow.
type StartForm struct {
	Config workflow.Config
}

// StartViewer builds the viewer over the loaded reports.
type StartViewer struct {
	Reports []report.Loaded
}

func (LoadReports) isEffect() {}
func (StartForm) isEffect()   {}
func (StartViewer) isEffect() {}
