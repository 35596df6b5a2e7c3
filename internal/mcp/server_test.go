package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/taskledger/internal/core"
	"github.com/valter-silva-au/taskledger/internal/observability"
	"github.com/valter-silva-au/taskledger/internal/storage"
)

// --- Fake implementations ---

type fakeMetricsCalculator struct {
	metrics *observability.Metrics
}

func (f *fakeMetricsCalculator) Calculate(_ time.Time) (*observability.Metrics, error) {
	return f.metrics, nil
}

type fakeAlertEngine struct {
	alerts []observability.Alert
}

func (f *fakeAlertEngine) Evaluate() ([]observability.Alert, error) {
	return f.alerts, nil
}

// --- Test helpers ---

func newTestLifecycle() core.LifecycleService {
	return core.NewLifecycleService(storage.NewMemoryStore(), nil)
}

// connect starts srv on an in-memory transport and returns a client session.
func connect(t *testing.T, srv *Server) *gomcp.ClientSession {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	client := gomcp.NewClient(&gomcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	t1, t2 := gomcp.NewInMemoryTransports()

	go func() {
		_ = srv.MCPServer().Run(ctx, t1)
	}()

	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

// call invokes a tool and fails the test on protocol-level errors.
func call(t *testing.T, session *gomcp.ClientSession, toolName string, args map[string]any) *gomcp.CallToolResult {
	t.Helper()

	result, err := session.CallTool(context.Background(), &gomcp.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("call tool %s: %v", toolName, err)
	}
	return result
}

// decode reads the tool output from structured content, falling back to the
// text content.
func decode(t *testing.T, result *gomcp.CallToolResult, out any) {
	t.Helper()

	if result.StructuredContent != nil {
		data, err := json.Marshal(result.StructuredContent)
		if err != nil {
			t.Fatalf("marshalling structured content: %v", err)
		}
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("unmarshalling structured content: %v", err)
		}
		return
	}
	text := extractText(result)
	if err := json.Unmarshal([]byte(text), out); err != nil {
		t.Fatalf("unmarshalling output: %v (text was: %s)", err, text)
	}
}

func mustSucceed(t *testing.T, result *gomcp.CallToolResult) {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
}

// --- Tests ---

func TestCreateAndGetTask(t *testing.T) {
	session := connect(t, NewServer(newTestLifecycle(), nil, nil, "test"))

	result := call(t, session, "create_task", map[string]any{
		"actor_id": "alice",
		"id":       "T-1",
		"title":    "Write migration",
		"tags":     []string{"db"},
	})
	mustSucceed(t, result)

	result = call(t, session, "get_task", map[string]any{"task_id": "T-1"})
	mustSucceed(t, result)

	var out taskOutput
	decode(t, result, &out)
	if out.ID != "T-1" || out.Title != "Write migration" {
		t.Errorf("unexpected task %+v", out)
	}
	if out.Status != "UNCLAIMED" {
		t.Errorf("status = %s, want UNCLAIMED", out.Status)
	}
	if out.CreatedBy != "alice" {
		t.Errorf("created_by = %s, want alice", out.CreatedBy)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	session := connect(t, NewServer(newTestLifecycle(), nil, nil, "test"))

	result := call(t, session, "get_task", map[string]any{"task_id": "T-404"})
	if !result.IsError {
		t.Fatal("expected error result for non-existent task")
	}
	if text := extractText(result); !strings.HasPrefix(text, "[404]") {
		t.Errorf("error text %q should start with [404]", text)
	}
}

func TestGetTaskMissingID(t *testing.T) {
	srv := NewServer(newTestLifecycle(), nil, nil, "test")
	session := connect(t, srv)

	// The SDK validates required fields at the schema level, so the call may
	// be rejected before it reaches the handler.
	result, err := session.CallTool(context.Background(), &gomcp.CallToolParams{
		Name:      "get_task",
		Arguments: map[string]any{},
	})
	if err != nil {
		return
	}
	if !result.IsError {
		t.Fatal("expected error result for missing task_id")
	}
}

func TestLifecycleThroughTools(t *testing.T) {
	session := connect(t, NewServer(newTestLifecycle(), nil, nil, "test"))

	mustSucceed(t, call(t, session, "create_task", map[string]any{
		"actor_id": "alice", "id": "T-1", "title": "Ship it",
	}))

	var out taskOutput
	result := call(t, session, "claim_task", map[string]any{"task_id": "T-1", "actor_id": "bob"})
	mustSucceed(t, result)
	decode(t, result, &out)
	if out.Status != "CLAIMED" || out.AssigneeID != "bob" {
		t.Fatalf("after claim: %+v", out)
	}

	result = call(t, session, "update_task_progress", map[string]any{
		"task_id": "T-1", "actor_id": "bob", "percentage": 40, "notes": "halfway there",
	})
	mustSucceed(t, result)
	out = taskOutput{}
	decode(t, result, &out)
	if out.Status != "IN_PROGRESS" || out.ProgressPercentage != 40 {
		t.Fatalf("after progress: %+v", out)
	}
	if out.ActualStartDate == "" {
		t.Error("actual_start_date should be set once work starts")
	}

	result = call(t, session, "update_task_status", map[string]any{
		"task_id": "T-1", "actor_id": "bob", "status": "paused", "pause_reason": "waiting on review",
	})
	mustSucceed(t, result)
	out = taskOutput{}
	decode(t, result, &out)
	if out.Status != "PAUSED" || out.PauseReason != "waiting on review" {
		t.Fatalf("after pause: %+v", out)
	}

	result = call(t, session, "update_task_progress", map[string]any{
		"task_id": "T-1", "actor_id": "bob", "percentage": 100,
	})
	mustSucceed(t, result)
	out = taskOutput{}
	decode(t, result, &out)
	if out.Status != "DONE" || out.ClosedAt == "" {
		t.Fatalf("after completion: %+v", out)
	}
	if out.PauseReason != "" {
		t.Errorf("pause_reason should be cleared on completion, got %q", out.PauseReason)
	}

	result = call(t, session, "get_task_progress_logs", map[string]any{"task_id": "T-1"})
	mustSucceed(t, result)
	var logs progressLogsOutput
	decode(t, result, &logs)
	if logs.Count != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", logs.Count)
	}
	if logs.Entries[0].ReportType != "COMPLETE" || logs.Entries[0].ProgressDelta != 60 {
		t.Errorf("newest entry = %+v, want COMPLETE with delta 60", logs.Entries[0])
	}
	if logs.Entries[1].Notes != "halfway there" {
		t.Errorf("oldest entry notes = %q", logs.Entries[1].Notes)
	}
}

func TestClaimTask_Conflict(t *testing.T) {
	session := connect(t, NewServer(newTestLifecycle(), nil, nil, "test"))

	mustSucceed(t, call(t, session, "create_task", map[string]any{
		"actor_id": "alice", "id": "T-1", "title": "Contended", "assignee_id": "alice",
	}))

	result := call(t, session, "claim_task", map[string]any{"task_id": "T-1", "actor_id": "bob"})
	if !result.IsError {
		t.Fatal("expected error claiming an already claimed task")
	}
	if text := extractText(result); !strings.HasPrefix(text, "[409]") {
		t.Errorf("error text %q should start with [409]", text)
	}
}

func TestUnclaimTask(t *testing.T) {
	session := connect(t, NewServer(newTestLifecycle(), nil, nil, "test"))

	mustSucceed(t, call(t, session, "create_task", map[string]any{
		"actor_id": "alice", "id": "T-1", "title": "Release me", "assignee_id": "alice",
	}))

	result := call(t, session, "unclaim_task", map[string]any{"task_id": "T-1", "actor_id": "bob"})
	if !result.IsError {
		t.Fatal("expected error when a non-owner releases the task")
	}

	result = call(t, session, "unclaim_task", map[string]any{"task_id": "T-1", "actor_id": "alice"})
	mustSucceed(t, result)
	var out taskOutput
	decode(t, result, &out)
	if out.Status != "UNCLAIMED" || out.AssigneeID != "" {
		t.Errorf("after unclaim: %+v", out)
	}
}

func TestUpdateTaskStatus_Invalid(t *testing.T) {
	session := connect(t, NewServer(newTestLifecycle(), nil, nil, "test"))

	mustSucceed(t, call(t, session, "create_task", map[string]any{
		"actor_id": "alice", "id": "T-1", "title": "Not started",
	}))

	tests := []struct {
		name   string
		args   map[string]any
		prefix string
	}{
		{"unknown status", map[string]any{"task_id": "T-1", "actor_id": "alice", "status": "review"}, "[400]"},
		{"skip claim", map[string]any{"task_id": "T-1", "actor_id": "alice", "status": "IN_PROGRESS"}, "[400]"},
		{"unknown task", map[string]any{"task_id": "T-404", "actor_id": "alice", "status": "DONE"}, "[404]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := call(t, session, "update_task_status", tt.args)
			if !result.IsError {
				t.Fatal("expected error result")
			}
			if text := extractText(result); !strings.HasPrefix(text, tt.prefix) {
				t.Errorf("error text %q should start with %s", text, tt.prefix)
			}
		})
	}
}

func TestGetMetrics(t *testing.T) {
	now := time.Now().UTC()
	mc := &fakeMetricsCalculator{
		metrics: &observability.Metrics{
			TasksCreated:    5,
			TasksClaimed:    4,
			TasksCompleted:  3,
			ProgressReports: 9,
			TransitionsTo:   map[string]int{"IN_PROGRESS": 4, "DONE": 3},
			ReportsByActor:  map[string]int{"alice": 6, "bob": 3},
			EventCount:      42,
			OldestEvent:     &now,
			NewestEvent:     &now,
		},
	}
	session := connect(t, NewServer(newTestLifecycle(), mc, nil, "test"))

	result := call(t, session, "get_metrics", map[string]any{})
	mustSucceed(t, result)

	var m metricsOutput
	decode(t, result, &m)
	if m.TasksCreated != 5 || m.TasksCompleted != 3 {
		t.Errorf("unexpected counters %+v", m)
	}
	if m.ReportsByActor["alice"] != 6 {
		t.Errorf("reports_by_actor[alice] = %d, want 6", m.ReportsByActor["alice"])
	}
	if m.EventCount != 42 {
		t.Errorf("expected 42 events, got %d", m.EventCount)
	}
}

func TestGetMetricsDisabled(t *testing.T) {
	session := connect(t, NewServer(newTestLifecycle(), nil, nil, "test"))

	result := call(t, session, "get_metrics", map[string]any{})
	if !result.IsError {
		t.Fatal("expected error when metrics calculator is nil")
	}
	if extractText(result) == "" {
		t.Fatal("expected error message in result")
	}
}

func TestGetAlerts(t *testing.T) {
	ae := &fakeAlertEngine{
		alerts: []observability.Alert{
			{
				ID:          "blocked-T-1",
				Condition:   "task_blocked_too_long",
				Severity:    observability.SeverityHigh,
				TaskID:      "T-1",
				Message:     "task T-1 has been blocked for more than 24 hours",
				TriggeredAt: time.Now().UTC(),
			},
		},
	}
	session := connect(t, NewServer(newTestLifecycle(), nil, ae, "test"))

	result := call(t, session, "get_alerts", map[string]any{})
	mustSucceed(t, result)

	var out getAlertsOutput
	decode(t, result, &out)
	if out.Count != 1 {
		t.Fatalf("expected 1 alert, got %d", out.Count)
	}
	if out.Alerts[0].Severity != "high" || out.Alerts[0].TaskID != "T-1" {
		t.Errorf("unexpected alert %+v", out.Alerts[0])
	}
}

func TestGetAlertsDisabled(t *testing.T) {
	session := connect(t, NewServer(newTestLifecycle(), nil, nil, "test"))

	result := call(t, session, "get_alerts", map[string]any{})
	if !result.IsError {
		t.Fatal("expected error when alert engine is nil")
	}
}

func TestParseSince(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"7d", false},
		{"30d", false},
		{"24h", false},
		{"1h", false},
		{"", true},
		{"x", true},
		{"7x", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := parseSince(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseSince(%q) error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

// extractText extracts the text from the first TextContent in a CallToolResult.
func extractText(result *gomcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(*gomcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestServer_Tools(t *testing.T) {
	srv := NewServer(core.NewLifecycleService(storage.NewMemoryStore(), nil), nil, nil, "test")

	tools := srv.Tools()
	want := []string{
		"create_task", "get_task", "claim_task", "unclaim_task", "update_task_status",
		"update_task_progress", "get_task_progress_logs", "get_metrics", "get_alerts",
	}
	if len(tools) != len(want) {
		t.Fatalf("got %d tools, want %d", len(tools), len(want))
	}
	for i, name := range want {
		if tools[i].Name != name || tools[i].Description == "" {
			t.Errorf("tool %d = %+v, want %s", i, tools[i], name)
		}
	}
}

func TestGetTaskProgressLogs_UnknownTask(t *testing.T) {
	session := connect(t, NewServer(newTestLifecycle(), nil, nil, "test"))

	result := call(t, session, "get_task_progress_logs", map[string]any{"task_id": "T-404"})
	if !result.IsError {
		t.Fatal("expected error result for an unknown task")
	}
	if text := extractText(result); !strings.HasPrefix(text, "[404]") {
		t.Errorf("error text %q should start with [404]", text)
	}
}
