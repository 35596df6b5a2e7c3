// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the task lifecycle as MCP tools, so agents can claim tasks and report
// progress directly.
package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/taskledger/internal/core"
	"github.com/valter-silva-au/taskledger/internal/observability"
	"github.com/valter-silva-au/taskledger/pkg/models"
)

// Server wraps the lifecycle service and exposes it as MCP tools.
type Server struct {
	server      *gomcp.Server
	lifecycle   core.LifecycleService
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
	tools       []*gomcp.Tool
}

// ToolInfo describes one registered tool.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NewServer creates a new MCP server backed by lifecycle. metricsCalc and
// alertEngine may be nil when the event log is disabled.
func NewServer(lifecycle core.LifecycleService, metricsCalc observability.MetricsCalculator, alertEngine observability.AlertEngine, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		lifecycle:   lifecycle,
		metricsCalc: metricsCalc,
		alertEngine: alertEngine,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "tledger", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run serves on stdio, blocking until the client disconnects or the context
// is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// Tools lists the registered tools in registration order.
func (s *Server) Tools() []ToolInfo {
	out := make([]ToolInfo, len(s.tools))
	for i, t := range s.tools {
		out[i] = ToolInfo{Name: t.Name, Description: t.Description}
	}
	return out
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type createTaskInput struct {
	ActorID       string   `json:"actor_id" jsonschema:"required,the actor creating the task"`
	Title         string   `json:"title" jsonschema:"required,a short human-readable title"`
	ID            string   `json:"id,omitempty" jsonschema:"optional task id; generated when empty"`
	AssigneeID    string   `json:"assignee_id,omitempty" jsonschema:"create the task already claimed by this actor"`
	Dependencies  []string `json:"dependencies,omitempty" jsonschema:"ids of existing tasks this task depends on"`
	Collaborators []string `json:"collaborators,omitempty" jsonschema:"actors allowed to report progress besides the assignee"`
	Tags          []string `json:"tags,omitempty" jsonschema:"lowercase tags"`
}

type taskIDInput struct {
	TaskID string `json:"task_id" jsonschema:"required,the unique task identifier"`
}

type claimInput struct {
	TaskID  string `json:"task_id" jsonschema:"required,the unique task identifier"`
	ActorID string `json:"actor_id" jsonschema:"required,the actor claiming or releasing the task"`
}

type updateTaskStatusInput struct {
	TaskID        string `json:"task_id" jsonschema:"required,the unique task identifier"`
	ActorID       string `json:"actor_id" jsonschema:"required,the actor changing the status"`
	Status        string `json:"status" jsonschema:"required,the target status (IN_PROGRESS, PAUSED, BLOCKED, DONE)"`
	PauseReason   string `json:"pause_reason,omitempty" jsonschema:"required when pausing"`
	PauseNote     string `json:"pause_note,omitempty" jsonschema:"optional note stored when pausing"`
	BlockerReason string `json:"blocker_reason,omitempty" jsonschema:"optional reason stored when blocking"`
}

type updateTaskProgressInput struct {
	TaskID     string `json:"task_id" jsonschema:"required,the unique task identifier"`
	ActorID    string `json:"actor_id" jsonschema:"required,the actor reporting progress"`
	Percentage int    `json:"percentage" jsonschema:"required,the new completion percentage from 0 to 100"`
	Notes      string `json:"notes,omitempty" jsonschema:"free-form notes stored in the progress ledger"`
}

type taskOutput struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Status             string   `json:"status"`
	AssigneeID         string   `json:"assignee_id,omitempty"`
	ProgressPercentage int      `json:"progress_percentage"`
	PauseReason        string   `json:"pause_reason,omitempty"`
	PauseNote          string   `json:"pause_note,omitempty"`
	PausedAt           string   `json:"paused_at,omitempty"`
	BlockerReason      string   `json:"blocker_reason,omitempty"`
	ActualStartDate    string   `json:"actual_start_date,omitempty"`
	ActualEndDate      string   `json:"actual_end_date,omitempty"`
	ClosedAt           string   `json:"closed_at,omitempty"`
	Dependencies       []string `json:"dependencies,omitempty"`
	Collaborators      []string `json:"collaborators,omitempty"`
	Tags               []string `json:"tags,omitempty"`
	CreatedBy          string   `json:"created_by"`
	Created            string   `json:"created"`
	Updated            string   `json:"updated"`
}

type progressLogOutput struct {
	ID                 string `json:"id"`
	TaskID             string `json:"task_id"`
	ActorID            string `json:"actor_id"`
	ProgressPercentage int    `json:"progress_percentage"`
	ProgressDelta      int    `json:"progress_delta"`
	ReportType         string `json:"report_type"`
	Notes              string `json:"notes,omitempty"`
	ReportedAt         string `json:"reported_at"`
}

type progressLogsOutput struct {
	Entries []progressLogOutput `json:"entries"`
	Count   int                 `json:"count"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	TasksCreated    int            `json:"tasks_created"`
	TasksClaimed    int            `json:"tasks_claimed"`
	TasksUnclaimed  int            `json:"tasks_unclaimed"`
	TasksCompleted  int            `json:"tasks_completed"`
	ProgressReports int            `json:"progress_reports"`
	TransitionsTo   map[string]int `json:"transitions_to"`
	ReportsByActor  map[string]int `json:"reports_by_actor"`
	EventCount      int            `json:"event_count"`
	OldestEvent     string         `json:"oldest_event,omitempty"`
	NewestEvent     string         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	TaskID      string `json:"task_id,omitempty"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) add(tool *gomcp.Tool) *gomcp.Tool {
	s.tools = append(s.tools, tool)
	return tool
}

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, s.add(&gomcp.Tool{
		Name:        "create_task",
		Description: "Create a task. It starts UNCLAIMED, or CLAIMED when assignee_id is given.",
	}), s.handleCreateTask)

	gomcp.AddTool(s.server, s.add(&gomcp.Tool{
		Name:        "get_task",
		Description: "Get a task by ID, including status, assignee, progress and lifecycle timestamps.",
	}), s.handleGetTask)

	gomcp.AddTool(s.server, s.add(&gomcp.Tool{
		Name:        "claim_task",
		Description: "Claim an UNCLAIMED task. When several actors claim at once, exactly one succeeds.",
	}), s.handleClaimTask)

	gomcp.AddTool(s.server, s.add(&gomcp.Tool{
		Name:        "unclaim_task",
		Description: "Release a CLAIMED or IN_PROGRESS task you own. Progress is reset to 0.",
	}), s.handleUnclaimTask)

	gomcp.AddTool(s.server, s.add(&gomcp.Tool{
		Name:        "update_task_status",
		Description: "Move a task to IN_PROGRESS, PAUSED, BLOCKED or DONE. PAUSED requires pause_reason.",
	}), s.handleUpdateTaskStatus)

	gomcp.AddTool(s.server, s.add(&gomcp.Tool{
		Name:        "update_task_progress",
		Description: "Report a completion percentage. Records a progress ledger entry; 100 completes the task.",
	}), s.handleUpdateTaskProgress)

	gomcp.AddTool(s.server, s.add(&gomcp.Tool{
		Name:        "get_task_progress_logs",
		Description: "List the progress ledger of a task, newest first.",
	}), s.handleGetTaskProgressLogs)

	gomcp.AddTool(s.server, s.add(&gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get lifecycle counters from the event log: tasks created, claimed, completed and progress reports.",
	}), s.handleGetMetrics)

	gomcp.AddTool(s.server, s.add(&gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active alerts (blocked, paused or stale tasks and unclaimed backlog size).",
	}), s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleCreateTask(ctx context.Context, _ *gomcp.CallToolRequest, input createTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	task, err := s.lifecycle.CreateTask(ctx, input.ActorID, models.NewTask{
		ID:            input.ID,
		Title:         input.Title,
		AssigneeID:    input.AssigneeID,
		Dependencies:  input.Dependencies,
		Collaborators: input.Collaborators,
		Tags:          input.Tags,
	})
	if err != nil {
		return lifecycleError("creating task", err), taskOutput{}, nil
	}
	return nil, taskToOutput(task), nil
}

func (s *Server) handleGetTask(ctx context.Context, _ *gomcp.CallToolRequest, input taskIDInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), taskOutput{}, nil
	}

	task, err := s.lifecycle.GetTask(ctx, input.TaskID)
	if err != nil {
		return lifecycleError("getting task "+input.TaskID, err), taskOutput{}, nil
	}
	return nil, taskToOutput(task), nil
}

func (s *Server) handleClaimTask(ctx context.Context, _ *gomcp.CallToolRequest, input claimInput) (*gomcp.CallToolResult, taskOutput, error) {
	task, err := s.lifecycle.ClaimTask(ctx, input.TaskID, input.ActorID)
	if err != nil {
		return lifecycleError("claiming task "+input.TaskID, err), taskOutput{}, nil
	}
	return nil, taskToOutput(task), nil
}

func (s *Server) handleUnclaimTask(ctx context.Context, _ *gomcp.CallToolRequest, input claimInput) (*gomcp.CallToolResult, taskOutput, error) {
	task, err := s.lifecycle.UnclaimTask(ctx, input.TaskID, input.ActorID)
	if err != nil {
		return lifecycleError("releasing task "+input.TaskID, err), taskOutput{}, nil
	}
	return nil, taskToOutput(task), nil
}

func (s *Server) handleUpdateTaskStatus(ctx context.Context, _ *gomcp.CallToolRequest, input updateTaskStatusInput) (*gomcp.CallToolResult, taskOutput, error) {
	status := models.TaskStatus(strings.ToUpper(strings.TrimSpace(input.Status)))
	task, err := s.lifecycle.UpdateStatus(ctx, input.TaskID, input.ActorID, status, models.TransitionPayload{
		PauseReason:   input.PauseReason,
		PauseNote:     input.PauseNote,
		BlockerReason: input.BlockerReason,
	})
	if err != nil {
		return lifecycleError(fmt.Sprintf("updating task %s status", input.TaskID), err), taskOutput{}, nil
	}
	return nil, taskToOutput(task), nil
}

func (s *Server) handleUpdateTaskProgress(ctx context.Context, _ *gomcp.CallToolRequest, input updateTaskProgressInput) (*gomcp.CallToolResult, taskOutput, error) {
	task, err := s.lifecycle.UpdateProgress(ctx, input.TaskID, input.ActorID, input.Percentage, input.Notes)
	if err != nil {
		return lifecycleError(fmt.Sprintf("reporting progress on task %s", input.TaskID), err), taskOutput{}, nil
	}
	return nil, taskToOutput(task), nil
}

func (s *Server) handleGetTaskProgressLogs(ctx context.Context, _ *gomcp.CallToolRequest, input taskIDInput) (*gomcp.CallToolResult, progressLogsOutput, error) {
	empty := progressLogsOutput{Entries: []progressLogOutput{}}
	if input.TaskID == "" {
		return errorResult("task_id is required"), empty, nil
	}

	entries, err := s.lifecycle.GetTaskProgressLogs(ctx, input.TaskID)
	if err != nil {
		return lifecycleError("listing progress logs of task "+input.TaskID, err), empty, nil
	}

	out := progressLogsOutput{
		Entries: make([]progressLogOutput, len(entries)),
		Count:   len(entries),
	}
	for i, e := range entries {
		out.Entries[i] = progressLogOutput{
			ID:                 e.ID,
			TaskID:             e.TaskID,
			ActorID:            e.ActorID,
			ProgressPercentage: e.ProgressPercentage,
			ProgressDelta:      e.ProgressDelta,
			ReportType:         string(e.ReportType),
			Notes:              e.Notes,
			ReportedAt:         e.ReportedAt.Format(time.RFC3339Nano),
		}
	}
	return nil, out, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (events may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}

	sinceTime, err := parseSince(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		TasksCreated:    metrics.TasksCreated,
		TasksClaimed:    metrics.TasksClaimed,
		TasksUnclaimed:  metrics.TasksUnclaimed,
		TasksCompleted:  metrics.TasksCompleted,
		ProgressReports: metrics.ProgressReports,
		TransitionsTo:   metrics.TransitionsTo,
		ReportsByActor:  metrics.ReportsByActor,
		EventCount:      metrics.EventCount,
	}
	if out.TransitionsTo == nil {
		out.TransitionsTo = make(map[string]int)
	}
	if out.ReportsByActor == nil {
		out.ReportsByActor = make(map[string]int)
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}

	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available (events may be disabled)"), getAlertsOutput{Alerts: []alertOutput{}}, nil
	}

	alerts, err := s.alertEngine.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{Alerts: []alertOutput{}}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			TaskID:      a.TaskID,
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}

	return nil, out, nil
}

// --- Helpers ---

func taskToOutput(t *models.Task) taskOutput {
	return taskOutput{
		ID:                 t.ID,
		Title:              t.Title,
		Status:             string(t.Status),
		AssigneeID:         t.Assignee(),
		ProgressPercentage: t.ProgressPercentage,
		PauseReason:        deref(t.PauseReason),
		PauseNote:          deref(t.PauseNote),
		PausedAt:           formatTime(t.PausedAt),
		BlockerReason:      deref(t.BlockerReason),
		ActualStartDate:    formatTime(t.ActualStartDate),
		ActualEndDate:      formatTime(t.ActualEndDate),
		ClosedAt:           formatTime(t.ClosedAt),
		Dependencies:       t.Dependencies,
		Collaborators:      t.Collaborators,
		Tags:               t.Tags,
		CreatedBy:          t.CreatedBy,
		Created:            t.Created.Format(time.RFC3339),
		Updated:            t.Updated.Format(time.RFC3339),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{
		TransitionsTo:  make(map[string]int),
		ReportsByActor: make(map[string]int),
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// lifecycleError renders a lifecycle failure as a tool error whose text
// starts with the error class, e.g. "[409] claiming task T-1: ...".
func lifecycleError(action string, err error) *gomcp.CallToolResult {
	return errorResult(fmt.Sprintf("[%d] %s: %s", core.ErrorClass(err), action, err))
}

// parseSince parses a duration such as "7d" or "24h" into the corresponding
// point in the past.
func parseSince(s string) (time.Time, error) {
	now := time.Now().UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
