// Package testserver provides an in-process fake of the thread and
// reference-data backend for client and end-to-end tests.
package testserver

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rpggio/prodreport/internal/catalog"
	"github.com/rpggio/prodreport/internal/domain/report"
)

// StoredMessage is one message held by the fake backend.
type StoredMessage struct {
	ThreadID     string          `json:"-"`
	MessageIndex int             `json:"messageIndex"`
	Metadata     report.Metadata `json:"metadata"`
	Data         []byte          `json:"data"`
}

// TestServer is a fake backend. The zero value is not usable; call New.
type TestServer struct {
	Server *httptest.Server

	mu        sync.Mutex
	reference catalog.Catalog
	pushes    [][]byte
	threads   map[string][]StoredMessage
	titles    map[string]string
	calls     map[string]int
	failures  map[string][]int
}

// New starts a fake backend that is shut down when t finishes.
func New(t *testing.T) *TestServer {
	t.Helper()

	ts := &TestServer{
		reference: catalog.New(),
		threads:   map[string][]StoredMessage{},
		titles:    map[string]string{},
		calls:     map[string]int{},
		failures:  map[string][]int{},
	}

	r := chi.NewRouter()
	r.Get("/api/reference-data", ts.handleGetReference)
	r.Post("/api/reference-data", ts.handlePushReference)
	r.Get("/api/reports", ts.handleListReports)
	r.Post("/api/reports", ts.handleUpload)

	ts.Server = httptest.NewServer(r)
	t.Cleanup(ts.Server.Close)
	return ts
}

// URL is the base URL clients should use.
func (ts *TestServer) URL() string {
	return ts.Server.URL
}

// SetReference replaces the server catalog.
func (ts *TestServer) SetReference(c catalog.Catalog) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.reference = c.Clone()
}

// Reference returns a copy of the server catalog.
func (ts *TestServer) Reference() catalog.Catalog {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.reference.Clone()
}

// Pushes returns the raw bodies of every catalog push.
func (ts *TestServer) Pushes() [][]byte {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := make([][]byte, len(ts.pushes))
	copy(out, ts.pushes)
	return out
}

// Seed appends a message to a thread and returns its index.
func (ts *TestServer) Seed(threadID string, meta report.Metadata, data []byte) int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	idx := len(ts.threads[threadID])
	ts.threads[threadID] = append(ts.threads[threadID], StoredMessage{
		ThreadID: threadID, MessageIndex: idx, Metadata: meta, Data: data,
	})
	return idx
}

// Messages returns a copy of a thread's messages.
func (ts *TestServer) Messages(threadID string) []StoredMessage {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]StoredMessage(nil), ts.threads[threadID]...)
}

// Title returns the title recorded for a thread.
func (ts *TestServer) Title(threadID string) string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.titles[threadID]
}

// Calls counts requests by "METHOD /path".
func (ts *TestServer) Calls(route string) int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.calls[route]
}

// FailNext answers the next requests on route with the given statuses, in
// order, before handling normally again.
func (ts *TestServer) FailNext(route string, statuses ...int) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.failures[route] = append(ts.failures[route], statuses...)
}

// intercept records the call and reports whether a scripted failure was
// written.
func (ts *TestServer) intercept(w http.ResponseWriter, r *http.Request) bool {
	route := r.Method + " " + r.URL.Path
	ts.mu.Lock()
	ts.calls[route]++
	var status int
	if queue := ts.failures[route]; len(queue) > 0 {
		status = queue[0]
		ts.failures[route] = queue[1:]
	}
	ts.mu.Unlock()

	if status == 0 {
		return false
	}
	http.Error(w, http.StatusText(status), status)
	return true
}

func (ts *TestServer) handleGetReference(w http.ResponseWriter, r *http.Request) {
	if ts.intercept(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, ts.Reference())
}

func (ts *TestServer) handlePushReference(w http.ResponseWriter, r *http.Request) {
	if ts.intercept(w, r) {
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read failed", http.StatusBadRequest)
		return
	}
	var pushed catalog.Catalog
	if err := json.Unmarshal(body, &pushed); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ts.mu.Lock()
	ts.pushes = append(ts.pushes, body)
	for k, v := range pushed.Lists {
		ts.reference.Lists[k] = v
	}
	for step, tasks := range pushed.Tasks {
		ts.reference.Tasks[step] = tasks
	}
	ts.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (ts *TestServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if ts.intercept(w, r) {
		return
	}
	var req report.UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ThreadID == "" || len(req.Data) == 0 {
		http.Error(w, "threadId and data are required", http.StatusBadRequest)
		return
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	if req.ThreadTitle != "" {
		ts.titles[req.ThreadID] = req.ThreadTitle
	}
	msgs := ts.threads[req.ThreadID]
	msg := StoredMessage{ThreadID: req.ThreadID, Metadata: req.Metadata, Data: req.Data}
	if req.MessageIndex != nil && *req.MessageIndex >= 0 && *req.MessageIndex < len(msgs) {
		msg.MessageIndex = *req.MessageIndex
		msgs[*req.MessageIndex] = msg
	} else {
		msg.MessageIndex = len(msgs)
		msgs = append(msgs, msg)
	}
	ts.threads[req.ThreadID] = msgs

	writeJSON(w, http.StatusCreated, map[string]int{"messageIndex": msg.MessageIndex})
}

func (ts *TestServer) handleListReports(w http.ResponseWriter, r *http.Request) {
	if ts.intercept(w, r) {
		return
	}
	threadID := r.URL.Query().Get("threadId")
	if threadID == "" {
		http.Error(w, "threadId is required", http.StatusBadRequest)
		return
	}

	msgs := ts.Messages(threadID)
	if raw := r.URL.Query().Get("messageIndex"); raw != "" {
		idx, err := strconv.Atoi(raw)
		if err != nil || idx < 0 || idx >= len(msgs) {
			http.Error(w, "message not found", http.StatusNotFound)
			return
		}
		msgs = msgs[idx : idx+1]
	}
	if msgs == nil {
		msgs = []StoredMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
