package workflow

import "github.com/rpggio/prodreport/internal/domain/report"

// Effect is work the interpreter performs outside the transition function.
type Effect interface {
	isEffect()
}

// FetchReference loads the server catalog and reconciles it with local edits.
type FetchReference struct{}

// SaveCatalogEdit persists a locally added option and marks it new.
type SaveCatalogEdit struct {
	Category string
	Step     string
	Value    string
}

// PushCatalog sends pending catalog deltas. Its outcome never changes State.
type PushCatalog struct{}

// SubmitReport encrypts and uploads the report.
type SubmitReport struct {
	ThreadID     string
	ThreadTitle  string
	MessageIndex *int
	Report       report.Report
}

func (FetchReference) isEffect()  {}
func (SaveCatalogEdit) isEffect() {}
func (PushCatalog) isEffect()     {}
func (SubmitReport) isEffect()    {}
