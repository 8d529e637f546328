package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rpggio/prodreport/internal/domain/report"
	"github.com/rpggio/prodreport/internal/sessions"
	"github.com/rpggio/prodreport/internal/supervisor"
	"github.com/spf13/cobra"
)

type listedReport struct {
	MessageIndex int           `json:"messageIndex"`
	TeamMember   string        `json:"teamMember"`
	TeamRole     string        `json:"teamRole"`
	Status       report.Status `json:"status"`
	AuthorID     string        `json:"authorId"`
	Timestamp    string        `json:"timestamp"`
	Rows         int           `json:"rows"`
	TimeSaved    string        `json:"timeSaved"`
}

type listResult struct {
	ThreadID string         `json:"threadId"`
	Members  []string       `json:"members"`
	Reports  []listedReport `json:"reports"`
	Skipped  int            `json:"skipped"`
}

func newListCmd(a *App) *cobra.Command {
	var (
		threadID string
		member   string
		status   string
		author   string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Decrypt and list the reports of a thread, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(threadID) == "" {
				return errors.New("missing --thread")
			}
			st := report.Status(status)
			if st != "" && !st.Valid() {
				return fmt.Errorf("invalid --status %q (want draft|submitted)", status)
			}

			wired, ctx, done, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer done()
			if _, err := wired.RequireKey(); err != nil {
				return err
			}

			sess, err := wired.Sessions.Open(ctx, sessions.OpenRequest{
				ThreadID: threadID,
				Mode:     supervisor.ModeViewer,
			})
			if err != nil {
				return err
			}
			view, err := wired.Sessions.Settle(ctx, sess.ID)
			if err != nil {
				return err
			}
			if view.Supervisor.State == supervisor.StateFailure {
				return fmt.Errorf("loading thread: %s", view.Supervisor.Error)
			}
			viewer, err := sess.Supervisor.Viewer()
			if err != nil {
				return err
			}

			res := listResult{
				ThreadID: threadID,
				Members:  viewer.Members(),
				Reports:  []listedReport{},
				Skipped:  view.Supervisor.Skipped,
			}
			for _, l := range viewer.Filter(supervisor.Filter{TeamMember: member, Status: st, AuthorID: author}) {
				res.Reports = append(res.Reports, newListedReport(l))
			}
			if res.Members == nil {
				res.Members = []string{}
			}
			return a.writeJSON(cmd, res)
		},
	}

	cmd.Flags().StringVar(&threadID, "thread", "", "Thread id")
	cmd.Flags().StringVar(&member, "member", "", "Only reports by this team member (case-insensitive)")
	cmd.Flags().StringVar(&status, "status", "", "Only reports with this status (draft|submitted)")
	cmd.Flags().StringVar(&author, "author", "", "Only reports by this author id")

	return cmd
}

func newListedReport(l report.Loaded) listedReport {
	total := 0.0
	for _, e := range l.Report.Entries {
		v, err := strconv.ParseFloat(e.TimeSaved, 64)
		if err == nil {
			total += v
		}
	}
	ts := ""
	if !l.Report.Timestamp.IsZero() {
		ts = l.Report.Timestamp.UTC().Format(time.RFC3339)
	}
	return listedReport{
		MessageIndex: l.MessageIndex,
		TeamMember:   l.Report.TeamMember,
		TeamRole:     l.Report.TeamRole,
		Status:       l.Report.Status,
		AuthorID:     l.Report.AuthorID,
		Timestamp:    ts,
		Rows:         len(l.Report.Entries),
		TimeSaved:    strconv.FormatFloat(total, 'f', 2, 64),
	}
}
