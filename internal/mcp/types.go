package mcp

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rpggio/prodreport/internal/domain/activity"
	"github.com/rpggio/prodreport/internal/domain/report"
	"github.com/rpggio/prodreport/internal/sessions"
	"github.com/rpggio/prodreport/internal/supervisor"
	"github.com/rpggio/prodreport/internal/workflow"
)

// Tool inputs. Fields without omitempty are required by the generated schema.

type PingInput struct{}

type OpenThreadInput struct {
	ThreadID     string `json:"thread_id" jsonschema:"thread the report belongs to"`
	ThreadTitle  string `json:"thread_title,omitempty" jsonschema:"title stored with the first upload"`
	TeamName     string `json:"team_name,omitempty" jsonschema:"team name prefilled on a blank report"`
	CreatorID    string `json:"creator_id,omitempty" jsonschema:"author id of the thread creator; defaults to this client"`
	Mode         string `json:"mode,omitempty" jsonschema:"form to edit a report or viewer to list reports; default form"`
	MessageIndex *int   `json:"message_index,omitempty" jsonschema:"existing report to edit"`
	Key          string `json:"key,omitempty" jsonschema:"base64 AES key overriding the configured key"`
}

type SessionInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"session from open_thread; may be pinned instead"`
}

type UpdateFieldInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"session from open_thread"`
	Field     string `json:"field" jsonschema:"teamName, teamMember or teamRole"`
	Value     string `json:"value"`
}

type RowInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"session from open_thread"`
	RowID     string `json:"row_id" jsonschema:"row id from session_state"`
}

type UpdateRowInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"session from open_thread"`
	RowID     string `json:"row_id" jsonschema:"row id from session_state"`
	Field     string `json:"field" jsonschema:"row field such as platform, sdlcStep or actualTimeWithAI"`
	Value     string `json:"value" jsonschema:"new value; aiToolsUsed takes a comma separated list"`
}

type AddOptionInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"session from open_thread"`
	Category  string `json:"category" jsonschema:"catalog category such as platforms or sdlcTasks"`
	Step      string `json:"step,omitempty" jsonschema:"SDLC step when category is sdlcTasks"`
	Value     string `json:"value"`
}

type SubmitInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"session from open_thread"`
	Status    string `json:"status,omitempty" jsonschema:"draft or submitted; default submitted"`
}

type ListReportsInput struct {
	SessionID  string `json:"session_id,omitempty" jsonschema:"viewer session from open_thread"`
	TeamMember string `json:"team_member,omitempty"`
	Status     string `json:"status,omitempty" jsonschema:"draft or submitted"`
	AuthorID   string `json:"author_id,omitempty"`
}

type RecentActivityInput struct {
	SessionID string `json:"session_id,omitempty"`
	ThreadID  string `json:"thread_id,omitempty"`
	Type      string `json:"type,omitempty" jsonschema:"activity type such as report_submitted"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// Tool outputs.

type PingOutput struct {
	Message string `json:"message"`
}

type RowView struct {
	ID                     string   `json:"id"`
	Platform               string   `json:"platform"`
	ProjectInitiative      string   `json:"projectInitiative"`
	SDLCStep               string   `json:"sdlcStep"`
	SDLCTask               string   `json:"sdlcTask"`
	TaskCategory           string   `json:"taskCategory"`
	EstimatedTimeWithoutAI string   `json:"estimatedTimeWithoutAI"`
	ActualTimeWithAI       string   `json:"actualTimeWithAI"`
	TimeSaved              string   `json:"timeSaved"`
	Complexity             string   `json:"complexity"`
	QualityImpact          string   `json:"qualityImpact"`
	AIToolsUsed            []string `json:"aiToolsUsed"`
	TaskDetails            string   `json:"taskDetails"`
	NotesHowAIHelped       string   `json:"notesHowAIHelped"`
	Expanded               bool     `json:"expanded"`
}

type ReportView struct {
	TeamName   string    `json:"teamName"`
	TeamMember string    `json:"teamMember"`
	TeamRole   string    `json:"teamRole"`
	Status     string    `json:"status"`
	AuthorID   string    `json:"authorId,omitempty"`
	Timestamp  string    `json:"timestamp,omitempty"`
	Rows       []RowView `json:"rows"`
}

type FormView struct {
	State            string              `json:"state"`
	ReadOnly         bool                `json:"read_only"`
	MessageIndex     *int                `json:"message_index,omitempty"`
	Report           ReportView          `json:"report"`
	Options          map[string][]string `json:"options"`
	Tasks            map[string][]string `json:"tasks"`
	LoadError        string              `json:"load_error,omitempty"`
	SubmitError      string              `json:"submit_error,omitempty"`
	CatalogPushError string              `json:"catalog_push_error,omitempty"`
	CatalogEditError string              `json:"catalog_edit_error,omitempty"`
	CatalogPushed    int                 `json:"catalog_pushed"`
}

type ReportSummary struct {
	MessageIndex   int    `json:"message_index"`
	TeamMember     string `json:"team_member"`
	TeamRole       string `json:"team_role"`
	Status         string `json:"status"`
	AuthorID       string `json:"author_id"`
	Timestamp      string `json:"timestamp,omitempty"`
	Rows           int    `json:"rows"`
	TotalTimeSaved string `json:"total_time_saved"`
}

type SessionView struct {
	SessionID string          `json:"session_id"`
	ThreadID  string          `json:"thread_id"`
	Mode      string          `json:"mode"`
	State     string          `json:"state"`
	ReadOnly  bool            `json:"read_only"`
	Error     string          `json:"error,omitempty"`
	Skipped   int             `json:"skipped,omitempty"`
	Form      *FormView       `json:"form,omitempty"`
	Reports   []ReportSummary `json:"reports,omitempty"`
}

type AddRowOutput struct {
	RowID   string      `json:"row_id"`
	Session SessionView `json:"session"`
}

type ListReportsOutput struct {
	Members []string        `json:"members"`
	Reports []ReportSummary `json:"reports"`
}

type CloseOutput struct {
	Closed bool `json:"closed"`
}

type ActivityView struct {
	ID        int64  `json:"id"`
	SessionID string `json:"session_id"`
	ThreadID  string `json:"thread_id"`
	Type      string `json:"type"`
	Summary   string `json:"summary"`
	CreatedAt string `json:"created_at"`
}

type ActivityOutput struct {
	Entries []ActivityView `json:"entries"`
}

func newSessionView(v sessions.View) SessionView {
	out := SessionView{
		SessionID: v.Session.ID,
		ThreadID:  v.Session.ThreadID,
		Mode:      string(v.Session.Mode),
		State:     string(v.Supervisor.State),
		ReadOnly:  v.Supervisor.ReadOnly,
		Error:     v.Supervisor.Error,
		Skipped:   v.Supervisor.Skipped,
	}
	if v.Form != nil {
		form := newFormView(*v.Form)
		out.Form = &form
		out.ReadOnly = form.ReadOnly
	}
	if v.Supervisor.State == supervisor.StateViewer {
		out.Reports = summarize(v.Supervisor.Reports)
	}
	return out
}

func newFormView(s workflow.Snapshot) FormView {
	return FormView{
		State:            string(s.State),
		ReadOnly:         s.ReadOnly,
		MessageIndex:     s.MessageIndex,
		Report:           newReportView(s.Report, s.Expanded),
		Options:          s.Catalog.Clone().Lists,
		Tasks:            s.Catalog.Clone().Tasks,
		LoadError:        s.LoadError,
		SubmitError:      s.SubmitError,
		CatalogPushError: s.CatalogPushError,
		CatalogEditError: s.CatalogEditError,
		CatalogPushed:    s.CatalogPushed,
	}
}

func newReportView(r report.Report, expanded map[string]bool) ReportView {
	out := ReportView{
		TeamName:   r.TeamName,
		TeamMember: r.TeamMember,
		TeamRole:   r.TeamRole,
		Status:     string(r.Status),
		AuthorID:   r.AuthorID,
		Timestamp:  formatTime(r.Timestamp),
		Rows:       make([]RowView, 0, len(r.Entries)),
	}
	for _, e := range r.Entries {
		out.Rows = append(out.Rows, RowView{
			ID:                     e.ID,
			Platform:               e.Platform,
			ProjectInitiative:      e.ProjectInitiative,
			SDLCStep:               e.SDLCStep,
			SDLCTask:               e.SDLCTask,
			TaskCategory:           e.TaskCategory,
			EstimatedTimeWithoutAI: e.EstimatedTimeWithoutAI,
			ActualTimeWithAI:       e.ActualTimeWithAI,
			TimeSaved:              e.TimeSaved,
			Complexity:             e.Complexity,
			QualityImpact:          e.QualityImpact,
			AIToolsUsed:            append([]string{}, e.AIToolsUsed...),
			TaskDetails:            e.TaskDetails,
			NotesHowAIHelped:       e.NotesHowAIHelped,
			Expanded:               expanded[e.ID],
		})
	}
	return out
}

func summarize(reports []report.Loaded) []ReportSummary {
	out := make([]ReportSummary, 0, len(reports))
	for _, l := range reports {
		out = append(out, ReportSummary{
			MessageIndex:   l.MessageIndex,
			TeamMember:     l.Report.TeamMember,
			TeamRole:       l.Report.TeamRole,
			Status:         string(l.Report.Status),
			AuthorID:       l.Report.AuthorID,
			Timestamp:      formatTime(l.Report.Timestamp),
			Rows:           len(l.Report.Entries),
			TotalTimeSaved: totalTimeSaved(l.Report.Entries),
		})
	}
	return out
}

func totalTimeSaved(entries []report.Entry) string {
	total := 0.0
	for _, e := range entries {
		if v, err := strconv.ParseFloat(strings.TrimSpace(e.TimeSaved), 64); err == nil {
			total += v
		}
	}
	return fmt.Sprintf("%.2f", total)
}

func newActivityView(e activity.Entry) ActivityView {
	return ActivityView{
		ID:        e.ID,
		SessionID: e.SessionID,
		ThreadID:  e.ThreadID,
		Type:      string(e.Type),
		Summary:   e.Summary,
		CreatedAt: formatTime(e.CreatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
