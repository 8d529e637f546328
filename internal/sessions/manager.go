// Package sessions keeps the supervisors of opened threads alive between
// calls and records what happens to them in the activity log.
package sessions

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/prodreport/internal/catalog"
	"github.com/rpggio/prodreport/internal/domain/activity"
	"github.com/rpggio/prodreport/internal/domain/report"
	"github.com/rpggio/prodreport/internal/envelope"
	"github.com/rpggio/prodreport/internal/identity"
	"github.com/rpggio/prodreport/internal/supervisor"
	"github.com/rpggio/prodreport/internal/workflow"
)

// Backend is the HTTP surface a session talks to.
type Backend interface {
	supervisor.ThreadSource
	workflow.ReferenceClient
	workflow.ReportUploader
}

// Deps wires a Manager.
type Deps struct {
	Backend  Backend
	Catalog  *catalog.Store
	Identity *identity.Provider
	Activity *activity.Service
	// Key is used when an open request carries no key of its own.
	Key    *envelope.Key
	Logger *slog.Logger
}

// OpenRequest describes a thread to open.
type OpenRequest struct {
	ThreadID    string
	ThreadTitle string
	TeamName    string
	// CreatorID defaults to this client's author id.
	CreatorID    string
	Mode         supervisor.Mode
	MessageIndex *int
	// Key is an optional base64 key overriding the default.
	Key string
}

// Session is one opened thread.
type Session struct {
	ID         string
	ThreadID   string
	Mode       supervisor.Mode
	OpenedAt   time.Time
	Supervisor *supervisor.Supervisor
}

// Manager is the registry of open sessions.
type Manager struct {
	deps   Deps
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty registry.
func NewManager(deps Deps) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Activity == nil {
		deps.Activity = activity.NewService(nopActivity{}, deps.Logger)
	}
	return &Manager{deps: deps, logger: deps.Logger, sessions: map[string]*Session{}}
}

// Open starts a supervisor for req and registers it.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (*Session, error) {
	req.ThreadID = strings.TrimSpace(req.ThreadID)
	if req.ThreadID == "" {
		return nil, fmt.Errorf("%w: thread id is required", ErrInvalidInput)
	}
	if req.Mode == "" {
		req.Mode = supervisor.ModeForm
	}
	if m.deps.Identity == nil {
		return nil, fmt.Errorf("%w: identity provider", workflow.ErrMissingDependency)
	}

	key := m.deps.Key
	if req.Key != "" {
		k, err := envelope.ImportKey(req.Key)
		if err != nil {
			return nil, err
		}
		key = k
	}

	authorID, err := m.deps.Identity.AuthorID(ctx)
	if err != nil {
		return nil, err
	}
	creatorID := req.CreatorID
	if creatorID == "" {
		creatorID = authorID
	}

	id := uuid.NewString()
	logger := m.logger.With("session_id", id)
	sup, err := supervisor.New(supervisor.Config{
		ThreadID:     req.ThreadID,
		ThreadTitle:  req.ThreadTitle,
		TeamName:     req.TeamName,
		CreatorID:    creatorID,
		ViewerID:     authorID,
		Mode:         req.Mode,
		MessageIndex: req.MessageIndex,
	}, supervisor.Deps{
		Threads: m.deps.Backend,
		Key:     key,
		Logger:  logger,
		Workflow: workflow.Deps{
			Reference: m.deps.Backend,
			Uploader:  m.deps.Backend,
			Catalog:   m.deps.Catalog,
			Key:       key,
			Logger:    logger,
		},
	})
	if err != nil {
		return nil, err
	}

	sess := &Session{
		ID:         id,
		ThreadID:   req.ThreadID,
		Mode:       req.Mode,
		OpenedAt:   time.Now().UTC(),
		Supervisor: sup,
	}
	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	sup.Start(ctx)
	logger.Info("session opened", "thread_id", req.ThreadID, "mode", req.Mode)
	m.deps.Activity.Record(ctx, id, req.ThreadID, activity.TypeSessionOpened,
		fmt.Sprintf("opened thread %s in %s mode", req.ThreadID, req.Mode))
	return sess, nil
}

// Get returns an open session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// IDs lists the open session ids, sorted.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.sessions))
}

// Form returns the workflow of a session opened for editing.
func (m *Manager) Form(id string) (*workflow.Machine, error) {
	sess, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return sess.Supervisor.Form()
}

// AddOption adds a pick-list value through the session's workflow.
func (m *Manager) AddOption(ctx context.Context, id string, opt workflow.AddOption) (workflow.Snapshot, error) {
	sess, err := m.Get(id)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	form, err := sess.Supervisor.Form()
	if err != nil {
		return workflow.Snapshot{}, err
	}
	snap, err := form.Send(ctx, opt)
	if err != nil {
		return snap, err
	}
	m.deps.Activity.Record(ctx, id, sess.ThreadID, activity.TypeCatalogOptionAdded,
		fmt.Sprintf("added %q to %s", opt.Value, opt.Category))
	return snap, nil
}

// Submit submits the session's report and waits for the upload to finish.
func (m *Manager) Submit(ctx context.Context, id string, status report.Status) (workflow.Snapshot, error) {
	sess, err := m.Get(id)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	form, err := sess.Supervisor.Form()
	if err != nil {
		return workflow.Snapshot{}, err
	}
	if _, err := form.Submit(ctx, status); err != nil {
		return form.Snapshot(), err
	}

	snap, err := form.WaitSettled(ctx)
	if err != nil {
		return snap, err
	}
	if snap.State == workflow.StateSuccess {
		m.logger.Info("report submitted", "session_id", id, "status", status)
		m.deps.Activity.Record(ctx, id, sess.ThreadID, activity.TypeReportSubmitted,
			fmt.Sprintf("%s report with %d rows", status, len(snap.Report.Entries)))
	} else {
		m.logger.Warn("report submit failed", "session_id", id, "error", snap.SubmitError)
		m.deps.Activity.Record(ctx, id, sess.ThreadID, activity.TypeReportSubmitFailed, snap.SubmitError)
	}
	return snap, nil
}

// View is a consistent picture of a session: the supervisor and, once it is
// editing, the form.
type View struct {
	Session    *Session
	Supervisor supervisor.Snapshot
	Form       *workflow.Snapshot
}

// Settle waits until neither the supervisor nor its form has work in flight.
func (m *Manager) Settle(ctx context.Context, id string) (View, error) {
	sess, err := m.Get(id)
	if err != nil {
		return View{}, err
	}
	sup, err := sess.Supervisor.WaitSettled(ctx)
	if err != nil {
		return View{Session: sess, Supervisor: sup}, err
	}
	view := View{Session: sess, Supervisor: sup}
	if sup.State != supervisor.StateForm {
		return view, nil
	}
	form, err := sess.Supervisor.Form()
	if err != nil {
		return view, err
	}
	snap, err := form.WaitSettled(ctx)
	view.Form = &snap
	return view, err
}

// Retry reloads whichever part of the session failed.
func (m *Manager) Retry(ctx context.Context, id string) (View, error) {
	sess, err := m.Get(id)
	if err != nil {
		return View{}, err
	}
	if sess.Supervisor.Snapshot().State == supervisor.StateFailure {
		if _, err := sess.Supervisor.Retry(ctx); err != nil {
			return View{}, err
		}
		return m.Settle(ctx, id)
	}
	form, err := sess.Supervisor.Form()
	if err != nil {
		return View{}, err
	}
	if _, err := form.Send(ctx, workflow.Retry{}); err != nil {
		return View{}, err
	}
	return m.Settle(ctx, id)
}

// Close stops and forgets a session.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	sess.Supervisor.Close()
	m.logger.Info("session closed", "session_id", id)
	m.deps.Activity.Record(ctx, id, sess.ThreadID, activity.TypeSessionClosed, "session closed")
	return nil
}

// CloseAll stops every session.
func (m *Manager) CloseAll(ctx context.Context) {
	for _, id := range m.IDs() {
		_ = m.Close(ctx, id)
	}
}

// Activity exposes the audit log.
func (m *Manager) Activity() *activity.Service {
	return m.deps.Activity
}

type nopActivity struct{}

func (nopActivity) Log(context.Context, *activity.Entry) error { return nil }
func (nopActivity) List(context.Context, activity.ListOptions) ([]activity.Entry, error) {
	return nil, nil
}
