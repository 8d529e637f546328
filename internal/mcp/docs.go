package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `prodreport fills in, encrypts and submits AI productivity reports stored in threads.

Core concepts:
- Thread: a conversation on the backend; each report is one encrypted message in it.
- Session: an opened thread. mode=form edits one report, mode=viewer lists every report.
- Row: one task in a report, with platform, SDLC step/task, times and AI tools used.
- Pick-lists: shared catalogs (platforms, sdlcSteps, aiTools, ...). add_option adds a value locally; it is pushed on the next submit.

Default workflow:
1) open_thread(thread_id) for a new report, or with message_index to edit an existing one.
2) update_field for teamMember and teamRole, add_row, then update_row for each row field.
3) submit_report(status=draft) to save progress, status=submitted to finalize. Submitted reports are read-only.
4) If a load fails the session reports state=failure; call retry.
5) close_session when done.

Session pinning: pass session_id on each call, or pin it with the X-Report-Session header (HTTP) or _meta.session_id (stdio).

Docs:
- prodreport://docs/report-fields (every field and the submit rules)
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "prodreport://docs/report-fields",
		Name:        "report_fields",
		Title:       "Report fields and submit rules",
		Description: "Field names accepted by update_field and update_row, and what submit_report checks.",
		Content: `# Report fields

## Report level (update_field)
- teamName
- teamMember (required)
- teamRole (required)

## Row level (update_row)
All are required unless noted.
- platform
- projectInitiative
- sdlcStep: changing it clears sdlcTask
- sdlcTask: options depend on sdlcStep
- taskCategory
- estimatedTimeWithoutAI, actualTimeWithAI: hours as decimals; timeSaved is computed
  as max(0, estimated - actual) rounded to the nearest quarter hour
- complexity
- qualityImpact
- aiToolsUsed: comma separated
- taskDetails
- notesHowAIHelped (optional)

## Submitting
- A report needs teamMember, teamRole and at least one complete row.
- status=draft can be edited later by its author or the thread creator.
- status=submitted freezes the report.
- A failed upload keeps every edit; fix the backend problem and submit again.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
