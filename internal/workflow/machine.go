package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/prodreport/internal/catalog"
	"github.com/rpggio/prodreport/internal/domain/report"
	"github.com/rpggio/prodreport/internal/envelope"
	"github.com/rpggio/prodreport/internal/fsm"
)

// ReferenceClient reads and updates the server's reference catalog.
type ReferenceClient interface {
	FetchReference(ctx context.Context) (catalog.Catalog, error)
	PushCatalog(ctx context.Context, delta catalog.Delta) error
}

// ReportUploader stores an encrypted report in a thread.
type ReportUploader interface {
	UploadReport(ctx context.Context, req report.UploadRequest) error
}

// Deps are the collaborators the interpreter runs effects against.
type Deps struct {
	Reference ReferenceClient
	Uploader  ReportUploader
	Catalog   *catalog.Store
	Key       *envelope.Key
	Logger    *slog.Logger

	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string
}

// Machine runs one report-editing session.
type Machine struct {
	fsm    *fsm.Machine[Snapshot, Event, Effect]
	deps   Deps
	logger *slog.Logger
}

// NewMachine builds a session in the loading state. Call Start to fetch the
// reference data.
func NewMachine(cfg Config, deps Deps) (*Machine, error) {
	switch {
	case deps.Reference == nil:
		return nil, fmt.Errorf("%w: reference client", ErrMissingDependency)
	case deps.Uploader == nil:
		return nil, fmt.Errorf("%w: report uploader", ErrMissingDependency)
	case deps.Catalog == nil:
		return nil, fmt.Errorf("%w: catalog store", ErrMissingDependency)
	case deps.Key == nil:
		return nil, fmt.Errorf("%w: encryption key", ErrMissingDependency)
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}

	m := &Machine{
		deps:   deps,
		logger: deps.Logger.With("thread_id", cfg.ThreadID),
	}
	m.fsm = fsm.New(Initial(cfg), Transition, m.run,
		fsm.WithLogger(m.logger), fsm.WithName("workflow"))
	return m, nil
}

// Start begins loading reference data.
func (m *Machine) Start(ctx context.Context) {
	m.fsm.Start(ctx, FetchReference{})
}

// Send applies an event and returns the resulting snapshot.
func (m *Machine) Send(ctx context.Context, ev Event) (Snapshot, error) {
	s, err := m.fsm.Send(ctx, ev)
	if err != nil {
		return m.Snapshot(), err
	}
	return s.Clone(), nil
}

// Snapshot returns a copy of the current session context.
func (m *Machine) Snapshot() Snapshot {
	return m.fsm.State().Clone()
}

// Wait blocks until pred holds for the session.
func (m *Machine) Wait(ctx context.Context, pred func(Snapshot) bool) (Snapshot, error) {
	s, err := m.fsm.Wait(ctx, pred)
	return s.Clone(), err
}

// WaitSettled blocks until no load or submit is in flight.
func (m *Machine) WaitSettled(ctx context.Context) (Snapshot, error) {
	return m.Wait(ctx, func(s Snapshot) bool { return s.State.Settled() })
}

// Close waits for in-flight effects and stops the session.
func (m *Machine) Close() {
	m.fsm.Close()
}

// AddRow appends a row with a fresh identity and returns that identity.
func (m *Machine) AddRow(ctx context.Context) (Snapshot, string, error) {
	id := m.deps.NewID()
	s, err := m.Send(ctx, AddRow{ID: id})
	if err != nil {
		return s, "", err
	}
	return s, id, nil
}

// Submit stamps the report with the current time and submits it.
func (m *Machine) Submit(ctx context.Context, status report.Status) (Snapshot, error) {
	return m.Send(ctx, Submit{Status: status, At: m.deps.Now().UTC()})
}

func (m *Machine) run(ctx context.Context, effect Effect) (Event, bool) {
	switch e := effect.(type) {
	case FetchReference:
		return m.fetchReference(ctx), true
	case SaveCatalogEdit:
		return m.saveCatalogEdit(ctx, e), true
	case PushCatalog:
		return m.pushCatalog(ctx), true
	case SubmitReport:
		return m.submitReport(ctx, e), true
	}
	m.logger.Error("unknown workflow effect", "effect", fmt.Sprintf("%T", effect))
	return nil, false
}

func (m *Machine) fetchReference(ctx context.Context) Event {
	server, err := m.deps.Reference.FetchReference(ctx)
	if err != nil {
		m.logger.Warn("reference data fetch failed", "error", err)
		return ReferenceFailed{Err: err}
	}

	merged, err := m.deps.Catalog.Reconcile(ctx, server)
	if err != nil {
		m.logger.Warn("catalog reconcile failed", "error", err)
	}
	return ReferenceLoaded{Catalog: merged}
}

func (m *Machine) saveCatalogEdit(ctx context.Context, e SaveCatalogEdit) Event {
	var err error
	if e.Category == catalog.Tasks {
		err = m.deps.Catalog.AddTask(ctx, e.Step, e.Value)
	} else {
		err = m.deps.Catalog.AddOption(ctx, e.Category, e.Value)
	}
	if errors.Is(err, catalog.ErrDuplicateOption) {
		err = nil
	}
	if err != nil {
		m.logger.Warn("saving catalog option failed", "category", e.Category, "error", err)
	}
	return CatalogEditSaved{Category: e.Category, Value: e.Value, Err: err}
}

func (m *Machine) pushCatalog(ctx context.Context) Event {
	pushed, err := m.deps.Catalog.Push(ctx, m.deps.Reference.PushCatalog)
	if err != nil {
		m.logger.Warn("catalog push incomplete", "pushed", pushed, "error", err)
	} else if pushed > 0 {
		m.logger.Info("catalog changes pushed", "categories", pushed)
	}
	return CatalogPushed{Pushed: pushed, Err: err}
}

func (m *Machine) submitReport(ctx context.Context, e SubmitReport) Event {
	req, err := BuildUpload(e, m.deps.Key)
	if err != nil {
		m.logger.Error("preparing report failed", "error", err)
		return SubmitFailed{Err: err}
	}
	if err := m.deps.Uploader.UploadReport(ctx, req); err != nil {
		m.logger.Warn("report upload failed", "error", err)
		return SubmitFailed{Err: err}
	}
	m.logger.Info("report uploaded", "status", e.Report.Status, "rows", len(e.Report.Entries))
	return SubmitSucceeded{}
}

// BuildUpload serializes and encrypts the report into an upload request.
func BuildUpload(e SubmitReport, key *envelope.Key) (report.UploadRequest, error) {
	plaintext, err := report.EncodePayload(e.Report)
	if err != nil {
		return report.UploadRequest{}, err
	}
	sealed, err := envelope.Seal(plaintext, key)
	if err != nil {
		return report.UploadRequest{}, fmt.Errorf("encrypting report: %w", err)
	}
	return report.UploadRequest{
		ThreadID:    e.ThreadID,
		ThreadTitle: e.ThreadTitle,
		Data:        sealed,
		Metadata: report.Metadata{
			AuthorID:  e.Report.AuthorID,
			IsReport:  true,
			Timestamp: e.Report.Timestamp,
			Status:    e.Report.Status,
		},
		MessageIndex: e.MessageIndex,
	}, nil
}
