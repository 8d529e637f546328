package workflow

import (
	"time"

	"github.com/rpggio/prodreport/internal/catalog"
	"github.com/rpggio/prodreport/internal/domain/report"
)

// Event is the closed set of inputs the workflow accepts.
type Event interface {
	isEvent()
}

// UpdateField sets a report-level field such as teamMember.
type UpdateField struct {
	Field string
	Value string
}

// AddRow appends a blank row with the given identity and expands it.
type AddRow struct {
	ID string
}

// RemoveRow deletes a row and its expansion flag.
type RemoveRow struct {
	ID string
}

// UpdateRow sets one field of a row.
type UpdateRow struct {
	ID    string
	Field string
	Value string
}

// ToggleRow flips a row's expansion flag. It is allowed on read-only sessions.
type ToggleRow struct {
	ID string
}

// AddOption adds a value to a pick-list. Step selects the SDLC step when
// Category is catalog.Tasks.
type AddOption struct {
	Category string
	Step     string
	Value    string
}

// Submit validates the form and uploads it with the given status.
type Submit struct {
	Status report.Status
	At     time.Time
}

// Retry reloads reference data after a failed load.
type Retry struct{}

// ReferenceLoaded carries the reconciled catalog.
type ReferenceLoaded struct {
	Catalog catalog.Catalog
}

// ReferenceFailed reports that the reference catalog could not be fetched.
type ReferenceFailed struct {
	Err error
}

// CatalogEditSaved reports the outcome of persisting a local option.
type CatalogEditSaved struct {
	Category string
	Value    string
	Err      error
}

// CatalogPushed reports how many deltas reached the server.
type CatalogPushed struct {
	Pushed int
	Err    error
}

// SubmitSucceeded reports a successful upload.
type SubmitSucceeded struct{}

// SubmitFailed reports a failed encryption or upload.
type SubmitFailed struct {
	Err error
}

func (UpdateField) isEvent()      {}
func (AddRow) isEvent()           {}
func (RemoveRow) isEvent()        {}
func (UpdateRow) isEvent()        {}
func (ToggleRow) isEvent()        {}
func (AddOption) isEvent()        {}
func (Submit) isEvent()           {}
func (Retry) isEvent()            {}
func (ReferenceLoaded) isEvent()  {}
func (ReferenceFailed) isEvent()  {}
func (CatalogEditSaved) isEvent() {}
func (CatalogPushed) isEvent()    {}
func (SubmitSucceeded) isEvent()  {}
func (SubmitFailed) isEvent()     {}
