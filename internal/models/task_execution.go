package models

import (
	"time"

	"agentsched/internal/state"
)

// TaskExecution is one append-only history record per run. Tool name and
// params are snapshotted as of execution time so later task edits do not
// rewrite history.
type TaskExecution struct {
	ID          string                `json:"id"`
	TaskID      string                `json:"task_id"`
	TenantID    string                `json:"tenant_id"`
	AgentID     string                `json:"agent_id"`
	ToolName    string                `json:"tool_name"`
	ToolParams  map[string]any        `json:"tool_params"`
	Status      state.ExecutionStatus `json:"status"`
	StartedAt   time.Time             `json:"started_at"`
	CompletedAt time.Time             `json:"completed_at"`
	DurationMs  int64                 `json:"duration_ms"`
	Result      map[string]any        `json:"result,omitempty"`
	Error       string                `json:"error,omitempty"`
}
