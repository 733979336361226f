// Package scheduler owns the scheduled-task lifecycle: CRUD over the task
// store, an in-memory trigger registry mirroring every enabled task, and the
// execution pipeline. The store is the durable source of truth; the registry
// is a derived index rebuilt from scratch on every Start.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/semaphore"

	"agentsched/internal/metrics"
	"agentsched/internal/models"
	"agentsched/internal/store"
	"agentsched/internal/tools"
	"agentsched/internal/trigger"
	"agentsched/types"
)

var ErrTaskNotFound = errors.New("task not found")

// Dispatcher executes a named tool against tenant-scoped data. Implemented by
// tools.Executor.
type Dispatcher interface {
	ExecuteTool(ctx context.Context, toolName string, params map[string]any, tenantID, agentID string, tier models.Tier) tools.Result
}

// Notifier delivers on_complete notifications and webhooks. Implemented by
// notify.Notifier.
type Notifier interface {
	SendEmail(ctx context.Context, to, subject, body string) error
	PostWebhook(ctx context.Context, url string, payload any) error
}

// TierResolver looks up a tenant's subscription tier. Implemented by
// tier.Resolver.
type TierResolver interface {
	Resolve(ctx context.Context, tenantID string) models.Tier
}

type Config struct {
	ExecutionTimeout  time.Duration
	OnCompleteWorkers int64
}

type Engine struct {
	tasks      store.TaskStore
	executions store.ExecutionStore
	dispatcher Dispatcher
	notifier   Notifier
	tiers      TierResolver
	cfg        Config

	onCompleteSem *semaphore.Weighted

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
	running map[string]bool
	started bool
}

// New wires an engine instance. Nothing is registered until Start.
func New(tasks store.TaskStore, executions store.ExecutionStore, dispatcher Dispatcher, notifier Notifier, tiers TierResolver, cfg Config) *Engine {
	if cfg.ExecutionTimeout <= 0 {
		cfg.ExecutionTimeout = 10 * time.Minute
	}
	if cfg.OnCompleteWorkers <= 0 {
		cfg.OnCompleteWorkers = 8
	}
	return &Engine{
		tasks:         tasks,
		executions:    executions,
		dispatcher:    dispatcher,
		notifier:      notifier,
		tiers:         tiers,
		cfg:           cfg,
		onCompleteSem: semaphore.NewWeighted(cfg.OnCompleteWorkers),
		entries:       make(map[string]cron.EntryID),
		running:       make(map[string]bool),
	}
}

// Start performs the warm rebuild: every enabled task is loaded from the
// store and registered before the clock starts ticking. One bad task is
// logged and skipped, never blocking the rest.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return nil
	}
	e.cron = cron.New(cron.WithLocation(time.UTC))

	enabled, err := e.tasks.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("failed to load enabled tasks: %w", err)
	}
	for i := range enabled {
		task := enabled[i]
		if err := e.registerLocked(&task); err != nil {
			log.Printf("[Scheduler] Skipping task %s (%s): %v", task.ID, task.Name, err)
		}
	}

	e.cron.Start()
	e.started = true
	log.Printf("[Scheduler] Started with %d registered tasks", len(e.entries))
	return nil
}

// Stop halts the registry without waiting for in-flight executions and drops
// every entry; a later Start rebuilds from the store.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return
	}
	e.cron.Stop()
	e.cron = nil
	e.entries = make(map[string]cron.EntryID)
	e.started = false
	metrics.RegisteredTriggers.Set(0)
	log.Println("[Scheduler] Stopped")
}

type CreateTaskInput struct {
	TenantID    string
	AgentID     string
	Name        string
	Description string
	ToolName    string
	ToolParams  map[string]any
	Schedule    models.Schedule
	Enabled     *bool
	OnComplete  *models.OnComplete
}

func (e *Engine) CreateTask(ctx context.Context, input CreateTaskInput) (*models.ScheduledTask, error) {
	if input.Name == "" {
		return nil, errors.New("name is required")
	}
	if input.ToolName == "" {
		return nil, errors.New("tool_name is required")
	}

	now := time.Now().UTC()
	next, err := trigger.NextRun(input.Schedule, now)
	if err != nil {
		return nil, err
	}

	enabled := true
	if input.Enabled != nil {
		enabled = *input.Enabled
	}

	task := &models.ScheduledTask{
		ID:          uuid.NewString(),
		TenantID:    input.TenantID,
		AgentID:     input.AgentID,
		Name:        input.Name,
		Description: input.Description,
		ToolName:    input.ToolName,
		ToolParams:  input.ToolParams,
		Schedule:    input.Schedule,
		Enabled:     enabled,
		OnComplete:  input.OnComplete,
		NextRun:     &next,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.tasks.Create(ctx, task); err != nil {
		return nil, err
	}

	if task.Enabled {
		if err := e.register(task); err != nil {
			// The task exists but is dormant until its schedule is corrected.
			log.Printf("[Scheduler] Created task %s but registration failed: %v", task.ID, err)
		}
	}
	return task, nil
}

func (e *Engine) GetTask(ctx context.Context, tenantID, id string) (*models.ScheduledTask, error) {
	return e.tasks.GetByID(ctx, tenantID, id)
}

func (e *Engine) GetTaskByName(ctx context.Context, tenantID, name string) (*models.ScheduledTask, error) {
	return e.tasks.GetByName(ctx, tenantID, name)
}

func (e *Engine) ListTasks(ctx context.Context, tenantID string, filter store.TaskFilter) (types.PaginationResult[models.ScheduledTask], error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	tasks, total, err := e.tasks.List(ctx, tenantID, filter)
	if err != nil {
		return types.PaginationResult[models.ScheduledTask]{}, err
	}
	return types.NewPaginationResult(tasks, total, filter.Limit, filter.Skip), nil
}

type UpdateTaskInput struct {
	Name        *string
	Description *string
	ToolName    *string
	ToolParams  map[string]any
	Schedule    *models.Schedule
	Enabled     *bool
	OnComplete  *models.OnComplete
}

// UpdateTask merges the given fields into the stored task. A schedule change
// recomputes next_run; a schedule or enabled change re-registers the trigger.
// Returns (nil, nil) when the task does not exist.
func (e *Engine) UpdateTask(ctx context.Context, tenantID, id string, input UpdateTaskInput) (*models.ScheduledTask, error) {
	task, err := e.tasks.GetByID(ctx, tenantID, id)
	if err != nil || task == nil {
		return nil, err
	}

	if input.Name != nil {
		task.Name = *input.Name
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.ToolName != nil {
		task.ToolName = *input.ToolName
	}
	if input.ToolParams != nil {
		task.ToolParams = input.ToolParams
	}
	if input.OnComplete != nil {
		task.OnComplete = input.OnComplete
	}

	scheduleChanged := input.Schedule != nil
	if scheduleChanged {
		task.Schedule = *input.Schedule
		next, err := trigger.NextRun(task.Schedule, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		task.NextRun = &next
	}

	enabledChanged := input.Enabled != nil && task.Enabled != *input.Enabled
	if input.Enabled != nil {
		task.Enabled = *input.Enabled
	}

	task.UpdatedAt = time.Now().UTC()
	if err := e.tasks.Update(ctx, task); err != nil {
		return nil, err
	}

	if scheduleChanged || enabledChanged {
		e.deregister(id)
		if task.Enabled {
			if err := e.register(task); err != nil {
				log.Printf("[Scheduler] Updated task %s but registration failed: %v", task.ID, err)
			}
		}
	}
	return task, nil
}

// DeleteTask deregisters first, then removes the row. A missing trigger is
// not an error.
func (e *Engine) DeleteTask(ctx context.Context, tenantID, id string) (bool, error) {
	e.deregister(id)
	return e.tasks.Delete(ctx, tenantID, id)
}

func (e *Engine) EnableTask(ctx context.Context, tenantID, id string) (*models.ScheduledTask, error) {
	enabled := true
	return e.UpdateTask(ctx, tenantID, id, UpdateTaskInput{Enabled: &enabled})
}

func (e *Engine) DisableTask(ctx context.Context, tenantID, id string) (*models.ScheduledTask, error) {
	enabled := false
	return e.UpdateTask(ctx, tenantID, id, UpdateTaskInput{Enabled: &enabled})
}

// RunTaskNow executes the task synchronously, bypassing the trigger registry.
// The overlap guard still applies: a task already in flight yields a skipped
// result.
func (e *Engine) RunTaskNow(ctx context.Context, tenantID, id string) (*models.TaskExecution, error) {
	task, err := e.tasks.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	return e.execute(ctx, task), nil
}

func (e *Engine) GetTaskExecutions(ctx context.Context, tenantID, taskID string, limit, skip int) (types.PaginationResult[models.TaskExecution], error) {
	if limit <= 0 {
		limit = 50
	}
	executions, total, err := e.executions.ListByTask(ctx, tenantID, taskID, limit, skip)
	if err != nil {
		return types.PaginationResult[models.TaskExecution]{}, err
	}
	return types.NewPaginationResult(executions, total, limit, skip), nil
}

func (e *Engine) GetAllExecutions(ctx context.Context, tenantID string, filter store.ExecutionFilter) (types.PaginationResult[models.TaskExecution], error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	executions, total, err := e.executions.List(ctx, tenantID, filter)
	if err != nil {
		return types.PaginationResult[models.TaskExecution]{}, err
	}
	return types.NewPaginationResult(executions, total, filter.Limit, filter.Skip), nil
}

type Stats struct {
	Running  bool     `json:"running"`
	JobCount int      `json:"job_count"`
	JobIDs   []string `json:"job_ids"`
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.entries))
	for id := range e.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return Stats{Running: e.started, JobCount: len(ids), JobIDs: ids}
}

func (e *Engine) register(task *models.ScheduledTask) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registerLocked(task)
}

func (e *Engine) registerLocked(task *models.ScheduledTask) error {
	if e.cron == nil {
		// Not started yet; Start will pick the task up from the store.
		return nil
	}
	sched, err := trigger.Schedule(task.Schedule)
	if err != nil {
		return err
	}
	if entryID, exists := e.entries[task.ID]; exists {
		e.cron.Remove(entryID)
	}

	taskID, tenantID := task.ID, task.TenantID
	entryID := e.cron.Schedule(sched, cron.FuncJob(func() {
		e.fire(tenantID, taskID)
	}))
	e.entries[task.ID] = entryID
	metrics.RegisteredTriggers.Set(float64(len(e.entries)))
	return nil
}

func (e *Engine) deregister(taskID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entryID, exists := e.entries[taskID]
	if !exists {
		return
	}
	if e.cron != nil {
		e.cron.Remove(entryID)
	}
	delete(e.entries, taskID)
	metrics.RegisteredTriggers.Set(float64(len(e.entries)))
}

// fire is the registry callback. It re-reads the task so a trigger firing
// after an update or disable always sees current state.
func (e *Engine) fire(tenantID, taskID string) {
	ctx := context.Background()
	task, err := e.tasks.GetByID(ctx, tenantID, taskID)
	if err != nil {
		log.Printf("[Scheduler] Failed to load task %s for execution: %v", taskID, err)
		return
	}
	if task == nil || !task.Enabled {
		return
	}
	e.execute(ctx, task)
}
