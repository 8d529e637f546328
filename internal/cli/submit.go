package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/rpggio/prodreport/internal/catalog"
	"github.com/rpggio/prodreport/internal/domain/report"
	"github.com/rpggio/prodreport/internal/sessions"
	"github.com/rpggio/prodreport/internal/supervisor"
	"github.com/rpggio/prodreport/internal/workflow"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// reportFile is the YAML form of a report accepted by submit.
type reportFile struct {
	TeamName   string      `yaml:"teamName"`
	TeamMember string      `yaml:"teamMember"`
	TeamRole   string      `yaml:"teamRole"`
	Entries    []entryFile `yaml:"entries"`
}

type entryFile struct {
	Platform          string   `yaml:"platform"`
	ProjectInitiative string   `yaml:"projectInitiative"`
	SDLCStep          string   `yaml:"sdlcStep"`
	SDLCTask          string   `yaml:"sdlcTask"`
	TaskCategory      string   `yaml:"taskCategory"`
	EstimatedTime     string   `yaml:"estimatedTimeWithoutAI"`
	ActualTime        string   `yaml:"actualTimeWithAI"`
	Complexity        string   `yaml:"complexity"`
	QualityImpact     string   `yaml:"qualityImpact"`
	AIToolsUsed       []string `yaml:"aiToolsUsed"`
	TaskDetails       string   `yaml:"taskDetails"`
	NotesHowAIHelped  string   `yaml:"notesHowAIHelped"`
}

// fields lists the row edits in the order they must be applied; the step
// comes before the task because setting a step clears the task.
func (e entryFile) fields() [][2]string {
	return [][2]string{
		{report.FieldPlatform, e.Platform},
		{report.FieldProjectInitiative, e.ProjectInitiative},
		{report.FieldSDLCStep, e.SDLCStep},
		{report.FieldSDLCTask, e.SDLCTask},
		{report.FieldTaskCategory, e.TaskCategory},
		{report.FieldEstimatedTime, e.EstimatedTime},
		{report.FieldActualTime, e.ActualTime},
		{report.FieldComplexity, e.Complexity},
		{report.FieldQualityImpact, e.QualityImpact},
		{report.FieldAIToolsUsed, strings.Join(e.AIToolsUsed, ",")},
		{report.FieldTaskDetails, e.TaskDetails},
		{report.FieldNotesHowAIHelped, e.NotesHowAIHelped},
	}
}

func readReportFile(path string) (reportFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return reportFile{}, fmt.Errorf("read report file: %w", err)
	}
	var rf reportFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return reportFile{}, fmt.Errorf("parse report file: %w", err)
	}
	return rf, nil
}

type submitResult struct {
	ThreadID     string        `json:"threadId"`
	MessageIndex *int          `json:"messageIndex,omitempty"`
	Status       report.Status `json:"status"`
	State        string        `json:"state"`
	Rows         int           `json:"rows"`
	Error        string        `json:"error,omitempty"`
}

func newSubmitCmd(a *App) *cobra.Command {
	var (
		threadID     string
		threadTitle  string
		file         string
		draft        bool
		messageIndex int
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Encrypt and upload a report described by a YAML file",
		Long: strings.TrimSpace(`
Opens the thread for editing, applies the report file, and uploads it.
With --message-index the existing report at that index is loaded and
replaced: the file's entries take the place of the stored ones.
Pick-list values missing from the catalog are added locally and pushed
alongside the upload.`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(threadID) == "" {
				return errors.New("missing --thread")
			}
			rf, err := readReportFile(file)
			if err != nil {
				return err
			}

			wired, ctx, done, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer done()
			if _, err := wired.RequireKey(); err != nil {
				return err
			}

			req := sessions.OpenRequest{
				ThreadID:    threadID,
				ThreadTitle: threadTitle,
				TeamName:    rf.TeamName,
				Mode:        supervisor.ModeForm,
			}
			if cmd.Flags().Changed("message-index") {
				req.MessageIndex = &messageIndex
			}
			sess, err := wired.Sessions.Open(ctx, req)
			if err != nil {
				return err
			}

			form, err := openForm(ctx, wired.Sessions, sess.ID)
			if err != nil {
				return err
			}
			if err := applyReport(ctx, wired.Sessions, sess.ID, form, rf); err != nil {
				return err
			}

			status := report.StatusSubmitted
			if draft {
				status = report.StatusDraft
			}
			snap, err := wired.Sessions.Submit(ctx, sess.ID, status)
			if err != nil {
				return err
			}

			res := submitResult{
				ThreadID:     threadID,
				MessageIndex: req.MessageIndex,
				Status:       status,
				State:        string(snap.State),
				Rows:         len(snap.Report.Entries),
				Error:        snap.SubmitError,
			}
			if err := a.writeJSON(cmd, res); err != nil {
				return err
			}
			if snap.State != workflow.StateSuccess {
				return fmt.Errorf("submit failed: %s", snap.SubmitError)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&threadID, "thread", "", "Thread id")
	cmd.Flags().StringVar(&threadTitle, "title", "", "Thread title sent with the upload")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Report YAML file")
	cmd.Flags().BoolVar(&draft, "draft", false, "Save as a draft instead of submitting")
	cmd.Flags().IntVar(&messageIndex, "message-index", 0, "Replace the report stored at this message index")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// openForm waits for the session to reach an editable form.
func openForm(ctx context.Context, mgr *sessions.Manager, id string) (*workflow.Machine, error) {
	view, err := mgr.Settle(ctx, id)
	if err != nil {
		return nil, err
	}
	if view.Supervisor.State == supervisor.StateFailure {
		return nil, fmt.Errorf("loading thread: %s", view.Supervisor.Error)
	}
	if view.Form == nil {
		return nil, fmt.Errorf("session is in %s state", view.Supervisor.State)
	}
	if view.Form.State == workflow.StateFailure {
		return nil, fmt.Errorf("loading reference data: %s", view.Form.LoadError)
	}
	if view.Form.ReadOnly {
		return nil, workflow.ErrReadOnly
	}
	return mgr.Form(id)
}

func applyReport(ctx context.Context, mgr *sessions.Manager, id string, form *workflow.Machine, rf reportFile) error {
	for _, f := range [][2]string{
		{report.FieldTeamName, rf.TeamName},
		{report.FieldTeamMember, rf.TeamMember},
		{report.FieldTeamRole, rf.TeamRole},
	} {
		if f[1] == "" {
			continue
		}
		if _, err := form.Send(ctx, workflow.UpdateField{Field: f[0], Value: f[1]}); err != nil {
			return fmt.Errorf("setting %s: %w", f[0], err)
		}
	}
	if err := ensureOption(ctx, mgr, id, form, catalog.TeamRoles, "", rf.TeamRole); err != nil {
		return err
	}

	if len(rf.Entries) > 0 {
		for _, row := range form.Snapshot().Report.Entries {
			if _, err := form.Send(ctx, workflow.RemoveRow{ID: row.ID}); err != nil {
				return err
			}
		}
	}

	for i, entry := range rf.Entries {
		_, rowID, err := form.AddRow(ctx)
		if err != nil {
			return err
		}
		for _, f := range entry.fields() {
			if f[1] == "" {
				continue
			}
			if _, err := form.Send(ctx, workflow.UpdateRow{ID: rowID, Field: f[0], Value: f[1]}); err != nil {
				return fmt.Errorf("entry %d: setting %s: %w", i+1, f[0], err)
			}
		}
		if err := ensureRowOptions(ctx, mgr, id, form, entry); err != nil {
			return fmt.Errorf("entry %d: %w", i+1, err)
		}
	}
	return nil
}

func ensureRowOptions(ctx context.Context, mgr *sessions.Manager, id string, form *workflow.Machine, entry entryFile) error {
	for _, f := range entry.fields() {
		category, ok := report.CatalogCategory(f[0])
		if !ok {
			continue
		}
		values := []string{f[1]}
		if f[0] == report.FieldAIToolsUsed {
			values = entry.AIToolsUsed
		}
		for _, v := range values {
			if err := ensureOption(ctx, mgr, id, form, category, "", v); err != nil {
				return err
			}
		}
	}
	if entry.SDLCStep != "" {
		return ensureOption(ctx, mgr, id, form, catalog.Tasks, entry.SDLCStep, entry.SDLCTask)
	}
	return nil
}

// ensureOption adds value to the category when the session's catalog lacks it.
func ensureOption(ctx context.Context, mgr *sessions.Manager, id string, form *workflow.Machine, category, step, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	cat := form.Snapshot().Catalog
	existing := cat.Options(category)
	if category == catalog.Tasks {
		existing = cat.TaskOptions(step)
	}
	if slices.Contains(existing, value) {
		return nil
	}
	_, err := mgr.AddOption(ctx, id, workflow.AddOption{Category: category, Step: step, Value: value})
	return err
}
