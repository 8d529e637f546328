package integration_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/prodreport/internal/app"
	"github.com/rpggio/prodreport/internal/catalog"
	"github.com/rpggio/prodreport/internal/config"
	"github.com/rpggio/prodreport/internal/envelope"
	"github.com/rpggio/prodreport/internal/mcp"
	"github.com/rpggio/prodreport/internal/testserver"
	"github.com/rpggio/prodreport/internal/transport"
	"github.com/stretchr/testify/require"
)

const token = "integration-secret"

type bearer struct {
	token string
	base  http.RoundTripper
}

func (b bearer) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Authorization", "Bearer "+b.token)
	return b.base.RoundTrip(r)
}

// member is one installation: its own local store, author id and MCP server,
// talking to the shared backend.
type member struct {
	app     *app.App
	session *sdkmcp.ClientSession
}

func newMember(t *testing.T, backend *testserver.TestServer, key string) *member {
	t.Helper()

	cfg := config.Config{
		Store:     config.StoreConfig{Driver: config.StoreMemory},
		API:       config.APIConfig{BaseURL: backend.URL(), Timeout: 5 * time.Second},
		Transport: "http",
		Key:       key,
	}
	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		a.Sessions.CloseAll(context.Background())
		_ = a.Close()
	})

	server := mcp.NewServer(mcp.Config{Sessions: a.Sessions, TransportMode: "http", Version: "test"})
	router := transport.NewServer(server, nil, transport.AuthMiddleware(transport.StaticTokens{token: "member"}))
	httpServer := httptest.NewServer(router)
	t.Cleanup(httpServer.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "integration", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, &sdkmcp.StreamableClientTransport{
		Endpoint:   httpServer.URL + "/mcp",
		HTTPClient: &http.Client{Transport: bearer{token: token, base: http.DefaultTransport}},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })

	return &member{app: a, session: cs}
}

func (m *member) call(t *testing.T, tool string, args map[string]any) map[string]any {
	t.Helper()
	res := m.callRaw(t, tool, args)
	require.False(t, res.IsError, "%s failed: %s", tool, text(res))

	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func (m *member) callRaw(t *testing.T, tool string, args map[string]any) *sdkmcp.CallToolResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if args == nil {
		args = map[string]any{}
	}
	res, err := m.session.CallTool(ctx, &sdkmcp.CallToolParams{Name: tool, Arguments: args})
	require.NoError(t, err)
	return res
}

func text(res *sdkmcp.CallToolResult) string {
	for _, c := range res.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func fillRow(t *testing.T, m *member, sessionID, rowID string) {
	t.Helper()
	for _, f := range [][2]string{
		{"platform", "Web"},
		{"projectInitiative", "Checkout"},
		{"sdlcStep", "Build"},
		{"sdlcTask", "Coding"},
		{"taskCategory", "Feature"},
		{"estimatedTimeWithoutAI", "4"},
		{"actualTimeWithAI", "2.5"},
		{"complexity", "Medium"},
		{"qualityImpact", "Improved"},
		{"aiToolsUsed", "Claude, Copilot"},
		{"taskDetails", "Payment form"},
	} {
		m.call(t, "update_row", map[string]any{"session_id": sessionID, "row_id": rowID, "field": f[0], "value": f[1]})
	}
}

func TestIntegration_DraftReviewAndSubmit(t *testing.T) {
	backend := testserver.New(t)
	ref := catalog.New()
	ref.Lists[catalog.Platforms] = []string{"Web", "iOS"}
	ref.Lists[catalog.AITools] = []string{"Copilot"}
	ref.Tasks["Build"] = []string{"Coding"}
	backend.SetReference(ref)

	key, err := envelope.GenerateKey()
	require.NoError(t, err)
	ana := newMember(t, backend, key)
	lead := newMember(t, backend, key)

	// Ana starts a blank report, adds a tool the catalog lacks and saves a draft.
	opened := ana.call(t, "open_thread", map[string]any{"thread_id": "sprint-7", "thread_title": "Sprint 7", "team_name": "Payments"})
	sid := opened["session_id"].(string)
	require.Equal(t, "form", opened["state"])

	ana.call(t, "update_field", map[string]any{"session_id": sid, "field": "teamMember", "value": "Ana"})
	ana.call(t, "update_field", map[string]any{"session_id": sid, "field": "teamRole", "value": "Developer"})
	ana.call(t, "add_option", map[string]any{"session_id": sid, "category": catalog.AITools, "value": "Claude"})
	added := ana.call(t, "add_row", map[string]any{"session_id": sid})
	rowID := added["row_id"].(string)
	fillRow(t, ana, sid, rowID)

	submitted := ana.call(t, "submit_report", map[string]any{"session_id": sid, "status": "draft"})
	form := submitted["form"].(map[string]any)
	require.Equal(t, "success", form["state"])
	require.Len(t, backend.Messages("sprint-7"), 1)
	require.Equal(t, "Sprint 7", backend.Title("sprint-7"))

	require.Eventually(t, func() bool {
		return len(backend.Reference().Options(catalog.AITools)) == 2
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"Copilot", "Claude"}, backend.Reference().Options(catalog.AITools))

	// The lead sees the draft in the viewer but cannot edit a thread Ana created.
	viewer := lead.call(t, "open_thread", map[string]any{"thread_id": "sprint-7", "mode": "viewer"})
	require.Equal(t, "viewer", viewer["state"])
	listed := lead.call(t, "list_reports", map[string]any{"session_id": viewer["session_id"], "team_member": "ana"})
	reports := listed["reports"].([]any)
	require.Len(t, reports, 1)
	summary := reports[0].(map[string]any)
	require.Equal(t, "draft", summary["status"])
	require.Equal(t, "1.50", summary["total_time_saved"])

	anaID, err := ana.app.Identity.AuthorID(context.Background())
	require.NoError(t, err)
	leadForm := lead.call(t, "open_thread", map[string]any{"thread_id": "sprint-7", "message_index": 0, "creator_id": anaID})
	require.Equal(t, true, leadForm["read_only"])
	res := lead.callRaw(t, "update_field", map[string]any{"session_id": leadForm["session_id"], "field": "teamMember", "value": "Lead"})
	require.True(t, res.IsError)
	require.Contains(t, text(res), "READ_ONLY")

	// Ana reopens her draft and submits it in place.
	ana.call(t, "close_session", map[string]any{"session_id": sid})
	reopened := ana.call(t, "open_thread", map[string]any{"thread_id": "sprint-7", "message_index": 0})
	require.Equal(t, false, reopened["read_only"])
	reForm := reopened["form"].(map[string]any)
	require.Equal(t, "Ana", reForm["report"].(map[string]any)["teamMember"])
	require.Contains(t, reForm["options"].(map[string]any)[catalog.AITools], "Claude")

	final := ana.call(t, "submit_report", map[string]any{"session_id": reopened["session_id"]})
	require.Equal(t, "success", final["form"].(map[string]any)["state"])
	msgs := backend.Messages("sprint-7")
	require.Len(t, msgs, 1)
	require.Equal(t, "submitted", string(msgs[0].Metadata.Status))

	// Once submitted the report is read-only even for its author.
	again := ana.call(t, "open_thread", map[string]any{"thread_id": "sprint-7", "message_index": 0})
	require.Equal(t, true, again["read_only"])

	activity := ana.call(t, "recent_activity", map[string]any{"thread_id": "sprint-7", "type": "report_submitted"})
	require.Len(t, activity["entries"].([]any), 2)
}

func TestIntegration_WrongKeySkipsReports(t *testing.T) {
	backend := testserver.New(t)
	backend.SetReference(catalog.New())

	keyA, err := envelope.GenerateKey()
	require.NoError(t, err)
	keyB, err := envelope.GenerateKey()
	require.NoError(t, err)

	writer := newMember(t, backend, keyA)
	opened := writer.call(t, "open_thread", map[string]any{"thread_id": "t-keys"})
	sid := opened["session_id"].(string)
	writer.call(t, "update_field", map[string]any{"session_id": sid, "field": "teamMember", "value": "Ana"})
	writer.call(t, "update_field", map[string]any{"session_id": sid, "field": "teamRole", "value": "QA"})
	row := writer.call(t, "add_row", map[string]any{"session_id": sid})["row_id"].(string)
	fillRow(t, writer, sid, row)
	writer.call(t, "submit_report", map[string]any{"session_id": sid})

	reader := newMember(t, backend, keyB)
	viewer := reader.call(t, "open_thread", map[string]any{"thread_id": "t-keys", "mode": "viewer"})
	require.Equal(t, float64(1), viewer["skipped"])
	listed := reader.call(t, "list_reports", map[string]any{"session_id": viewer["session_id"]})
	require.Empty(t, listed["reports"])

	withKey := reader.call(t, "open_thread", map[string]any{"thread_id": "t-keys", "mode": "viewer", "key": keyA})
	listed = reader.call(t, "list_reports", map[string]any{"session_id": withKey["session_id"]})
	require.Len(t, listed["reports"], 1)
}

func TestIntegration_HealthAndAuth(t *testing.T) {
	backend := testserver.New(t)
	a, err := app.New(context.Background(), config.Config{
		Store: config.StoreConfig{Driver: config.StoreMemory},
		API:   config.APIConfig{BaseURL: backend.URL()},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	server := mcp.NewServer(mcp.Config{Sessions: a.Sessions, TransportMode: "http"})
	httpServer := httptest.NewServer(transport.NewServer(server, nil, transport.AuthMiddleware(transport.StaticTokens{token: "member"})))
	t.Cleanup(httpServer.Close)

	resp, err := http.Get(httpServer.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(httpServer.URL+"/mcp", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
