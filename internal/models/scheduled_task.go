package models

import (
	"time"

	"agentsched/internal/state"
)

type ScheduleType string

const (
	ScheduleCron     ScheduleType = "cron"
	ScheduleInterval ScheduleType = "interval"
	ScheduleOneTime  ScheduleType = "one_time"
)

type OnCompleteAction string

const (
	OnCompleteNotification OnCompleteAction = "send_notification"
	OnCompleteRunTool      OnCompleteAction = "run_tool"
	OnCompleteWebhook      OnCompleteAction = "webhook"
)

// Schedule is the trigger definition of a task. Exactly one variant is
// populated, matching Type: CronExpression for cron, IntervalMinutes for
// interval, RunAt for one_time. Timezone applies to cron evaluation and
// defaults to UTC.
type Schedule struct {
	Type            ScheduleType `json:"type"`
	CronExpression  string       `json:"cron_expression,omitempty"`
	IntervalMinutes int          `json:"interval_minutes,omitempty"`
	RunAt           *time.Time   `json:"run_at,omitempty"`
	Timezone        string       `json:"timezone,omitempty"`
}

// OnComplete is an optional follow-up action dispatched after a successful
// execution. Delivery is best-effort and never affects the task's own status.
type OnComplete struct {
	Action OnCompleteAction `json:"action"`
	Params map[string]any   `json:"params,omitempty"`
}

// ExecutionSnapshot is the last_execution summary embedded in the task row.
type ExecutionSnapshot struct {
	Status      state.ExecutionStatus `json:"status"`
	StartedAt   time.Time             `json:"started_at"`
	CompletedAt time.Time             `json:"completed_at"`
	DurationMs  int64                 `json:"duration_ms"`
	Summary     string                `json:"summary,omitempty"`
	Error       string                `json:"error,omitempty"`
}

type ScheduledTask struct {
	ID             string             `json:"id"`
	TenantID       string             `json:"tenant_id"`
	AgentID        string             `json:"agent_id"`
	Name           string             `json:"name"`
	Description    string             `json:"description,omitempty"`
	ToolName       string             `json:"tool_name"`
	ToolParams     map[string]any     `json:"tool_params"`
	Schedule       Schedule           `json:"schedule"`
	Enabled        bool               `json:"enabled"`
	OnComplete     *OnComplete        `json:"on_complete,omitempty"`
	LastExecution  *ExecutionSnapshot `json:"last_execution,omitempty"`
	NextRun        *time.Time         `json:"next_run,omitempty"`
	ExecutionCount int64              `json:"execution_count"`
	SuccessCount   int64              `json:"success_count"`
	FailureCount   int64              `json:"failure_count"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}
