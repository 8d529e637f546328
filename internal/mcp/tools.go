package mcp

import (
	"context"
	"io"
	"log/slog"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/prodreport/internal/domain/activity"
	"github.com/rpggio/prodreport/internal/domain/report"
	"github.com/rpggio/prodreport/internal/sessions"
	"github.com/rpggio/prodreport/internal/supervisor"
	"github.com/rpggio/prodreport/internal/workflow"
)

// Tools implements the MCP tool handlers over a session registry.
type Tools struct {
	sessions *sessions.Manager
	logger   *slog.Logger
}

// NewTools creates the tool handlers.
func NewTools(mgr *sessions.Manager, logger *slog.Logger) *Tools {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Tools{sessions: mgr, logger: logger}
}

func registerTools(server *sdkmcp.Server, t *Tools) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "ping", Description: "Check that the server is alive"}, t.Ping)

	// Sessions
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "open_thread",
		Description: "Open a thread to edit a report (mode=form) or list its reports (mode=viewer). Returns once the reports and reference data are loaded.",
	}, t.OpenThread)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "session_state", Description: "Show the current state of a session, including the form and its pick-lists"}, t.SessionState)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "retry", Description: "Reload a session whose thread or reference data failed to load"}, t.Retry)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "close_session", Description: "Close a session and release it"}, t.CloseSession)

	// Form editing
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "update_field", Description: "Set a report-level field (teamName, teamMember, teamRole)"}, t.UpdateField)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "add_row", Description: "Append an empty task row and return its id"}, t.AddRow)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "update_row", Description: "Set one field of a task row. Changing sdlcStep clears sdlcTask; changing a time recomputes timeSaved."}, t.UpdateRow)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "remove_row", Description: "Delete a task row"}, t.RemoveRow)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "toggle_row", Description: "Expand or collapse a task row"}, t.ToggleRow)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "add_option", Description: "Add a value to a shared pick-list; it is pushed to the server on the next submit"}, t.AddOption)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "submit_report", Description: "Validate, encrypt and upload the report as a draft or a final submission"}, t.SubmitReport)

	// Viewing
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "list_reports", Description: "List the decrypted reports of a thread, newest first, optionally filtered"}, t.ListReports)
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "recent_activity", Description: "List recent session activity such as submissions and failures"}, t.RecentActivity)
}

func (t *Tools) Ping(_ context.Context, _ *sdkmcp.CallToolRequest, _ PingInput) (*sdkmcp.CallToolResult, PingOutput, error) {
	return nil, PingOutput{Message: "pong"}, nil
}

func (t *Tools) OpenThread(ctx context.Context, _ *sdkmcp.CallToolRequest, in OpenThreadInput) (*sdkmcp.CallToolResult, SessionView, error) {
	sess, err := t.sessions.Open(ctx, sessions.OpenRequest{
		ThreadID:     in.ThreadID,
		ThreadTitle:  in.ThreadTitle,
		TeamName:     in.TeamName,
		CreatorID:    in.CreatorID,
		Mode:         supervisor.Mode(strings.ToLower(strings.TrimSpace(in.Mode))),
		MessageIndex: in.MessageIndex,
		Key:          in.Key,
	})
	if err != nil {
		return nil, SessionView{}, toolError(err)
	}
	return t.view(ctx, sess.ID)
}

func (t *Tools) SessionState(ctx context.Context, _ *sdkmcp.CallToolRequest, in SessionInput) (*sdkmcp.CallToolResult, SessionView, error) {
	id, err := resolveSession(ctx, in.SessionID)
	if err != nil {
		return nil, SessionView{}, toolError(err)
	}
	return t.view(ctx, id)
}

func (t *Tools) Retry(ctx context.Context, _ *sdkmcp.CallToolRequest, in SessionInput) (*sdkmcp.CallToolResult, SessionView, error) {
	id, err := resolveSession(ctx, in.SessionID)
	if err != nil {
		return nil, SessionView{}, toolError(err)
	}
	v, err := t.sessions.Retry(ctx, id)
	if err != nil {
		return nil, SessionView{}, toolError(err)
	}
	return nil, newSessionView(v), nil
}

func (t *Tools) CloseSession(ctx context.Context, _ *sdkmcp.CallToolRequest, in SessionInput) (*sdkmcp.CallToolResult, CloseOutput, error) {
	id, err := resolveSession(ctx, in.SessionID)
	if err != nil {
		return nil, CloseOutput{}, toolError(err)
	}
	if err := t.sessions.Close(ctx, id); err != nil {
		return nil, CloseOutput{}, toolError(err)
	}
	return nil, CloseOutput{Closed: true}, nil
}

func (t *Tools) UpdateField(ctx context.Context, _ *sdkmcp.CallToolRequest, in UpdateFieldInput) (*sdkmcp.CallToolResult, SessionView, error) {
	return t.send(ctx, in.SessionID, workflow.UpdateField{Field: in.Field, Value: in.Value})
}

func (t *Tools) AddRow(ctx context.Context, _ *sdkmcp.CallToolRequest, in SessionInput) (*sdkmcp.CallToolResult, AddRowOutput, error) {
	id, err := resolveSession(ctx, in.SessionID)
	if err != nil {
		return nil, AddRowOutput{}, toolError(err)
	}
	form, err := t.sessions.Form(id)
	if err != nil {
		return nil, AddRowOutput{}, toolError(err)
	}
	_, rowID, err := form.AddRow(ctx)
	if err != nil {
		return nil, AddRowOutput{}, toolError(err)
	}
	_, view, err := t.view(ctx, id)
	if err != nil {
		return nil, AddRowOutput{}, err
	}
	return nil, AddRowOutput{RowID: rowID, Session: view}, nil
}

func (t *Tools) UpdateRow(ctx context.Context, _ *sdkmcp.CallToolRequest, in UpdateRowInput) (*sdkmcp.CallToolResult, SessionView, error) {
	return t.send(ctx, in.SessionID, workflow.UpdateRow{ID: in.RowID, Field: in.Field, Value: in.Value})
}

func (t *Tools) RemoveRow(ctx context.Context, _ *sdkmcp.CallToolRequest, in RowInput) (*sdkmcp.CallToolResult, SessionView, error) {
	return t.send(ctx, in.SessionID, workflow.RemoveRow{ID: in.RowID})
}

func (t *Tools) ToggleRow(ctx context.Context, _ *sdkmcp.CallToolRequest, in RowInput) (*sdkmcp.CallToolResult, SessionView, error) {
	return t.send(ctx, in.SessionID, workflow.ToggleRow{ID: in.RowID})
}

func (t *Tools) AddOption(ctx context.Context, _ *sdkmcp.CallToolRequest, in AddOptionInput) (*sdkmcp.CallToolResult, SessionView, error) {
	id, err := resolveSession(ctx, in.SessionID)
	if err != nil {
		return nil, SessionView{}, toolError(err)
	}
	opt := workflow.AddOption{Category: in.Category, Step: in.Step, Value: in.Value}
	if _, err := t.sessions.AddOption(ctx, id, opt); err != nil {
		return nil, SessionView{}, toolError(err)
	}
	return t.view(ctx, id)
}

func (t *Tools) SubmitReport(ctx context.Context, _ *sdkmcp.CallToolRequest, in SubmitInput) (*sdkmcp.CallToolResult, SessionView, error) {
	id, err := resolveSession(ctx, in.SessionID)
	if err != nil {
		return nil, SessionView{}, toolError(err)
	}
	status := report.StatusSubmitted
	if in.Status != "" {
		status = report.Status(strings.ToLower(strings.TrimSpace(in.Status)))
	}
	if _, err := t.sessions.Submit(ctx, id, status); err != nil {
		return nil, SessionView{}, toolError(err)
	}
	return t.view(ctx, id)
}

func (t *Tools) ListReports(ctx context.Context, _ *sdkmcp.CallToolRequest, in ListReportsInput) (*sdkmcp.CallToolResult, ListReportsOutput, error) {
	id, err := resolveSession(ctx, in.SessionID)
	if err != nil {
		return nil, ListReportsOutput{}, toolError(err)
	}
	if _, err := t.sessions.Settle(ctx, id); err != nil {
		return nil, ListReportsOutput{}, toolError(err)
	}
	sess, err := t.sessions.Get(id)
	if err != nil {
		return nil, ListReportsOutput{}, toolError(err)
	}
	viewer, err := sess.Supervisor.Viewer()
	if err != nil {
		return nil, ListReportsOutput{}, toolError(err)
	}

	reports := viewer.Filter(supervisor.Filter{
		TeamMember: in.TeamMember,
		Status:     report.Status(in.Status),
		AuthorID:   in.AuthorID,
	})
	members := viewer.Members()
	if members == nil {
		members = []string{}
	}
	return nil, ListReportsOutput{Members: members, Reports: summarize(reports)}, nil
}

func (t *Tools) RecentActivity(ctx context.Context, _ *sdkmcp.CallToolRequest, in RecentActivityInput) (*sdkmcp.CallToolResult, ActivityOutput, error) {
	opts := activity.ListOptions{
		SessionID: in.SessionID,
		ThreadID:  in.ThreadID,
		Limit:     in.Limit,
		Offset:    in.Offset,
	}
	if in.Type != "" {
		typ := activity.Type(in.Type)
		opts.Type = &typ
	}
	entries, err := t.sessions.Activity().GetRecentActivity(ctx, opts)
	if err != nil {
		return nil, ActivityOutput{}, toolError(err)
	}
	out := ActivityOutput{Entries: make([]ActivityView, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, newActivityView(e))
	}
	return nil, out, nil
}

// send delivers a form event and returns the updated session.
func (t *Tools) send(ctx context.Context, sessionID string, ev workflow.Event) (*sdkmcp.CallToolResult, SessionView, error) {
	id, err := resolveSession(ctx, sessionID)
	if err != nil {
		return nil, SessionView{}, toolError(err)
	}
	form, err := t.sessions.Form(id)
	if err != nil {
		return nil, SessionView{}, toolError(err)
	}
	if _, err := form.Send(ctx, ev); err != nil {
		t.logger.Debug("form event rejected", "session_id", id, "error", err)
		return nil, SessionView{}, toolError(err)
	}
	return t.view(ctx, id)
}

func (t *Tools) view(ctx context.Context, id string) (*sdkmcp.CallToolResult, SessionView, error) {
	v, err := t.sessions.Settle(ctx, id)
	if err != nil {
		return nil, SessionView{}, toolError(err)
	}
	return nil, newSessionView(v), nil
}

// resolveSession prefers the explicit id, then the one pinned by middleware.
func resolveSession(ctx context.Context, explicit string) (string, error) {
	if id := strings.TrimSpace(explicit); id != "" {
		return id, nil
	}
	if id := defaultSessionID(ctx); id != "" {
		return id, nil
	}
	return "", ErrMissingSession
}
