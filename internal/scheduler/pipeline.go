package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"agentsched/internal/metrics"
	"agentsched/internal/models"
	"agentsched/internal/state"
	"agentsched/internal/store"
	"agentsched/internal/tools"
	"agentsched/internal/trigger"
)

// execute runs one attempt for the task. Overlap is rejected up front: a task
// already in flight returns a skipped result that touches neither statistics
// nor history. Every attempt that actually starts is bookkept, whatever its
// outcome.
func (e *Engine) execute(ctx context.Context, task *models.ScheduledTask) *models.TaskExecution {
	e.mu.Lock()
	if e.running[task.ID] {
		e.mu.Unlock()
		log.Printf("[Scheduler] Task %s is already running, skipping", task.ID)
		now := time.Now().UTC()
		return &models.TaskExecution{
			ID:          uuid.NewString(),
			TaskID:      task.ID,
			TenantID:    task.TenantID,
			AgentID:     task.AgentID,
			ToolName:    task.ToolName,
			Status:      state.StatusSkipped,
			StartedAt:   now,
			CompletedAt: now,
			Error:       "execution already in progress",
		}
	}
	e.running[task.ID] = true
	e.mu.Unlock()

	// The flag is always cleared, so one bad run can never block a task
	// permanently.
	defer func() {
		e.mu.Lock()
		delete(e.running, task.ID)
		e.mu.Unlock()
	}()

	started := time.Now().UTC()
	execution := &models.TaskExecution{
		ID:         uuid.NewString(),
		TaskID:     task.ID,
		TenantID:   task.TenantID,
		AgentID:    task.AgentID,
		ToolName:   task.ToolName,
		ToolParams: task.ToolParams,
		StartedAt:  started,
	}

	result, runErr := e.runTool(ctx, task)
	completed := time.Now().UTC()
	execution.CompletedAt = completed
	execution.DurationMs = completed.Sub(started).Milliseconds()

	switch {
	case runErr != nil:
		execution.Status = state.StatusError
		execution.Error = runErr.Error()
	case result.Success():
		execution.Status = state.StatusSuccess
		execution.Result = result
	default:
		execution.Status = state.StatusFailed
		execution.Error = result.Error()
		execution.Result = result
	}

	e.recordOutcome(ctx, task, execution)

	if execution.Status == state.StatusSuccess && task.OnComplete != nil {
		e.dispatchOnComplete(task, execution)
	}
	return execution
}

// runTool resolves the tenant tier and executes the tool under the configured
// timeout. The dispatcher runs in its own goroutine so a tool that ignores
// context cancellation still cannot hold the pipeline past the deadline.
func (e *Engine) runTool(ctx context.Context, task *models.ScheduledTask) (tools.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ExecutionTimeout)
	defer cancel()

	tenantTier := e.tiers.Resolve(ctx, task.TenantID)

	resultCh := make(chan tools.Result, 1)
	panicCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				panicCh <- fmt.Errorf("tool panicked: %v", r)
			}
		}()
		resultCh <- e.dispatcher.ExecuteTool(ctx, task.ToolName, task.ToolParams, task.TenantID, task.AgentID, tenantTier)
	}()

	select {
	case result := <-resultCh:
		return result, nil
	case err := <-panicCh:
		return nil, err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("execution timed out after %s", e.cfg.ExecutionTimeout)
		}
		return nil, fmt.Errorf("execution aborted: %w", ctx.Err())
	}
}

// recordOutcome persists statistics, the last_execution snapshot and the
// history record. A one_time task is disabled in the same store update so its
// past run_at can never fire again.
func (e *Engine) recordOutcome(ctx context.Context, task *models.ScheduledTask, execution *models.TaskExecution) {
	snapshot := models.ExecutionSnapshot{
		Status:      execution.Status,
		StartedAt:   execution.StartedAt,
		CompletedAt: execution.CompletedAt,
		DurationMs:  execution.DurationMs,
		Summary:     summarize(execution),
		Error:       execution.Error,
	}

	var nextRun *time.Time
	if next, err := trigger.NextRun(task.Schedule, execution.CompletedAt); err != nil {
		log.Printf("[Scheduler] Failed to recompute next run for task %s: %v", task.ID, err)
	} else if !next.IsZero() {
		nextRun = &next
	}

	disable := task.Schedule.Type == models.ScheduleOneTime
	err := e.tasks.RecordExecution(ctx, task.TenantID, task.ID, store.ExecutionResult{
		Snapshot: snapshot,
		NextRun:  nextRun,
		Success:  execution.Status == state.StatusSuccess,
		Disable:  disable,
	})
	if err != nil {
		log.Printf("[Scheduler] Failed to record execution stats for task %s: %v", task.ID, err)
	}
	if disable {
		e.deregister(task.ID)
	}

	if execution.Status.Recordable() {
		if err := e.executions.Insert(ctx, execution); err != nil {
			log.Printf("[Scheduler] Failed to write execution history for task %s: %v", task.ID, err)
		}
	}

	metrics.RecordExecution(task.ToolName, execution.Status.String(), execution.CompletedAt.Sub(execution.StartedAt))
	log.Printf("[Scheduler] Task %s (%s) finished with status %s in %dms",
		task.ID, task.Name, execution.Status, execution.DurationMs)
}

func summarize(execution *models.TaskExecution) string {
	if execution.Error != "" {
		return execution.Error
	}
	return fmt.Sprintf("%s completed in %dms", execution.ToolName, execution.DurationMs)
}

// dispatchOnComplete fires the follow-up action asynchronously. Delivery is
// best-effort: failures are logged and counted, never surfaced to the task.
func (e *Engine) dispatchOnComplete(task *models.ScheduledTask, execution *models.TaskExecution) {
	action := *task.OnComplete
	if !e.onCompleteSem.TryAcquire(1) {
		log.Printf("[Scheduler] on_complete workers saturated, dropping %s for task %s", action.Action, task.ID)
		metrics.OnCompleteFailures.WithLabelValues(string(action.Action)).Inc()
		return
	}
	go func() {
		defer e.onCompleteSem.Release(1)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := e.runOnComplete(ctx, task, execution, action); err != nil {
			log.Printf("[Scheduler] on_complete %s for task %s failed: %v", action.Action, task.ID, err)
			metrics.OnCompleteFailures.WithLabelValues(string(action.Action)).Inc()
		}
	}()
}

func (e *Engine) runOnComplete(ctx context.Context, task *models.ScheduledTask, execution *models.TaskExecution, action models.OnComplete) error {
	switch action.Action {
	case models.OnCompleteNotification:
		to, _ := action.Params["to"].(string)
		if to == "" {
			return errors.New("send_notification requires a 'to' address")
		}
		subject, _ := action.Params["subject"].(string)
		if subject == "" {
			subject = fmt.Sprintf("Scheduled task %q completed", task.Name)
		}
		body, _ := action.Params["body"].(string)
		if body == "" {
			body = summarize(execution)
		}
		return e.notifier.SendEmail(ctx, to, subject, body)

	case models.OnCompleteRunTool:
		toolName, _ := action.Params["tool_name"].(string)
		if toolName == "" {
			return errors.New("run_tool requires 'tool_name'")
		}
		toolParams, _ := action.Params["tool_params"].(map[string]any)
		tenantTier := e.tiers.Resolve(ctx, task.TenantID)
		result := e.dispatcher.ExecuteTool(ctx, toolName, toolParams, task.TenantID, task.AgentID, tenantTier)
		if !result.Success() {
			return errors.New(result.Error())
		}
		return nil

	case models.OnCompleteWebhook:
		url, _ := action.Params["url"].(string)
		if url == "" {
			return errors.New("webhook requires 'url'")
		}
		envelope := map[string]any{
			"task_id":      task.ID,
			"task_name":    task.Name,
			"tool_name":    execution.ToolName,
			"status":       execution.Status,
			"completed_at": execution.CompletedAt,
			"duration_ms":  execution.DurationMs,
			"summary":      summarize(execution),
		}
		return e.notifier.PostWebhook(ctx, url, envelope)

	default:
		return fmt.Errorf("unknown on_complete action %q", action.Action)
	}
}
