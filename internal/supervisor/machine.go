package supervisor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/rpggio/prodreport/internal/domain/report"
	"github.com/rpggio/prodreport/internal/envelope"
	"github.com/rpggio/prodreport/internal/fsm"
	"github.com/rpggio/prodreport/internal/workflow"
)

// ThreadSource downloads thread messages.
type ThreadSource interface {
	DownloadThread(ctx context.Context, query report.ThreadQuery) ([]report.Message, error)
}

// Deps are the collaborators of a supervisor and the workflow it spawns.
type Deps struct {
	Threads  ThreadSource
	Key      *envelope.Key
	Workflow workflow.Deps
	Logger   *slog.Logger
}

// Supervisor owns one opened thread.
type Supervisor struct {
	fsm    *fsm.Machine[Snapshot, Event, Effect]
	deps   Deps
	logger *slog.Logger

	mu     sync.Mutex
	form   *workflow.Machine
	viewer *Viewer
}

// New builds a supervisor in the loading state.
func New(cfg Config, deps Deps) (*Supervisor, error) {
	if !cfg.Mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, cfg.Mode)
	}
	if deps.Threads == nil {
		return nil, fmt.Errorf("%w: thread source", workflow.ErrMissingDependency)
	}
	if deps.Key == nil {
		return nil, fmt.Errorf("%w: encryption key", workflow.ErrMissingDependency)
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Workflow.Key == nil {
		deps.Workflow.Key = deps.Key
	}
	if deps.Workflow.Logger == nil {
		deps.Workflow.Logger = deps.Logger
	}

	s := &Supervisor{
		deps:   deps,
		logger: deps.Logger.With("thread_id", cfg.ThreadID, "mode", cfg.Mode),
	}
	s.fsm = fsm.New(Initial(cfg), Transition, s.run,
		fsm.WithLogger(s.logger), fsm.WithName("supervisor"))
	return s, nil
}

// Start downloads the thread.
func (s *Supervisor) Start(ctx context.Context) {
	s.fsm.Start(ctx, LoadEffect(s.fsm.State()))
}

// Snapshot returns a copy of the supervisor context.
func (s *Supervisor) Snapshot() Snapshot {
	return s.fsm.State().Clone()
}

// Wait blocks until pred holds.
func (s *Supervisor) Wait(ctx context.Context, pred func(Snapshot) bool) (Snapshot, error) {
	snap, err := s.fsm.Wait(ctx, pred)
	return snap.Clone(), err
}

// WaitSettled blocks until the session is routed to form, viewer or failure.
func (s *Supervisor) WaitSettled(ctx context.Context) (Snapshot, error) {
	return s.Wait(ctx, func(snap Snapshot) bool { return snap.State.Settled() })
}

// Retry reloads a failed session.
func (s *Supervisor) Retry(ctx context.Context) (Snapshot, error) {
	snap, err := s.fsm.Send(ctx, Retry{})
	return snap.Clone(), err
}

// Form returns the running workflow.
func (s *Supervisor) Form() (*workflow.Machine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.form == nil {
		return nil, ErrNotInForm
	}
	return s.form, nil
}

// Viewer returns the report listing.
func (s *Supervisor) Viewer() (*Viewer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.viewer == nil {
		return nil, ErrNotInViewer
	}
	return s.viewer, nil
}

// Close stops the supervisor and any workflow it spawned.
func (s *Supervisor) Close() {
	s.fsm.Close()
	s.mu.Lock()
	form := s.form
	s.mu.Unlock()
	if form != nil {
		form.Close()
	}
}

func (s *Supervisor) run(ctx context.Context, effect Effect) (Event, bool) {
	switch e := effect.(type) {
	case LoadReports:
		return s.loadReports(ctx, e), true
	case StartForm:
		return s.startForm(ctx, e), true
	case StartViewer:
		s.mu.Lock()
		s.viewer = NewViewer(e.Reports)
		s.mu.Unlock()
		return ViewerStarted{}, true
	}
	s.logger.Error("unknown supervisor effect", "effect", fmt.Sprintf("%T", effect))
	return nil, false
}

func (s *Supervisor) loadReports(ctx context.Context, e LoadReports) Event {
	if e.Skip {
		return ReportsLoaded{Reports: []report.Loaded{}}
	}
	msgs, err := s.deps.Threads.DownloadThread(ctx, e.Query)
	if err != nil {
		s.logger.Warn("thread download failed", "error", err)
		return LoadFailed{Err: err}
	}
	loaded, skipped := DecryptReports(msgs, s.deps.Key, s.logger)
	s.logger.Info("thread reports loaded", "reports", len(loaded), "skipped", skipped)
	return ReportsLoaded{Reports: loaded, Skipped: skipped}
}

func (s *Supervisor) startForm(ctx context.Context, e StartForm) Event {
	form, err := workflow.NewMachine(e.Config, s.deps.Workflow)
	if err != nil {
		s.logger.Error("starting report form failed", "error", err)
		return SpawnFailed{Err: err}
	}
	s.mu.Lock()
	s.form = form
	s.mu.Unlock()
	form.Start(ctx)
	return FormStarted{}
}

// DecryptReports opens every report-tagged message. Messages that fail to
// decrypt or parse are skipped and counted. The result is newest first.
func DecryptReports(msgs []report.Message, key *envelope.Key, logger *slog.Logger) ([]report.Loaded, int) {
	out := make([]report.Loaded, 0, len(msgs))
	skipped := 0
	for _, m := range msgs {
		if !m.Metadata.IsReport {
			continue
		}
		plaintext, err := envelope.Open(m.Data, key)
		if err != nil {
			logger.Debug("skipping undecryptable message", "message_index", m.Index, "error", err)
			skipped++
			continue
		}
		r, err := report.DecodePayload(plaintext)
		if err != nil {
			logger.Debug("skipping malformed report", "message_index", m.Index, "error", err)
			skipped++
			continue
		}
		if r.AuthorID == "" {
			r.AuthorID = m.Metadata.AuthorID
		}
		if r.Timestamp.IsZero() {
			r.Timestamp = m.Metadata.Timestamp
		}
		out = append(out, report.Loaded{Report: r, MessageIndex: m.Index})
	}
	SortNewestFirst(out)
	return out, skipped
}
