package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentsched/internal/models"
	"agentsched/internal/state"
	"agentsched/internal/store"
	"agentsched/internal/store/mocks"
	"agentsched/internal/tools"
)

type dispatcherFunc func(ctx context.Context, toolName string, params map[string]any, tenantID, agentID string, tier models.Tier) tools.Result

func (f dispatcherFunc) ExecuteTool(ctx context.Context, toolName string, params map[string]any, tenantID, agentID string, tier models.Tier) tools.Result {
	return f(ctx, toolName, params, tenantID, agentID, tier)
}

func okDispatcher(ctx context.Context, toolName string, params map[string]any, tenantID, agentID string, tier models.Tier) tools.Result {
	return tools.Result{"success": true}
}

type fakeNotifier struct {
	mu       sync.Mutex
	webhooks []string
	emails   []string
	err      error
	done     chan struct{}
}

func newFakeNotifier(err error) *fakeNotifier {
	return &fakeNotifier{err: err, done: make(chan struct{}, 16)}
}

func (f *fakeNotifier) SendEmail(ctx context.Context, to, subject, body string) error {
	f.mu.Lock()
	f.emails = append(f.emails, to)
	f.mu.Unlock()
	f.done <- struct{}{}
	return f.err
}

func (f *fakeNotifier) PostWebhook(ctx context.Context, url string, payload any) error {
	f.mu.Lock()
	f.webhooks = append(f.webhooks, url)
	f.mu.Unlock()
	f.done <- struct{}{}
	return f.err
}

type staticTier struct{}

func (staticTier) Resolve(ctx context.Context, tenantID string) models.Tier {
	return models.TierPro
}

type testEnv struct {
	engine     *Engine
	tasks      *mocks.MockTaskStore
	executions *mocks.MockExecutionStore
	notifier   *fakeNotifier
}

func newTestEngine(t *testing.T, dispatcher Dispatcher, cfg Config) *testEnv {
	t.Helper()
	env := &testEnv{
		tasks:      mocks.NewMockTaskStore(),
		executions: mocks.NewMockExecutionStore(),
		notifier:   newFakeNotifier(nil),
	}
	env.engine = New(env.tasks, env.executions, dispatcher, env.notifier, staticTier{}, cfg)
	require.NoError(t, env.engine.Start(context.Background()))
	t.Cleanup(env.engine.Stop)
	return env
}

func intervalInput(name string) CreateTaskInput {
	return CreateTaskInput{
		TenantID: "tenant-1",
		AgentID:  "agent-1",
		Name:     name,
		ToolName: "create_task",
		ToolParams: map[string]any{
			"project_id": "p-1",
			"name":       "from schedule",
		},
		Schedule: models.Schedule{Type: models.ScheduleInterval, IntervalMinutes: 60},
	}
}

func TestCreateTask_RegistersTrigger(t *testing.T) {
	env := newTestEngine(t, dispatcherFunc(okDispatcher), Config{})

	task, err := env.engine.CreateTask(context.Background(), intervalInput("hourly"))
	require.NoError(t, err)

	assert.True(t, task.Enabled)
	require.NotNil(t, task.NextRun)
	now := time.Now()
	assert.True(t, task.NextRun.After(now.Add(59*time.Minute)))
	assert.True(t, task.NextRun.Before(now.Add(61*time.Minute)))

	stats := env.engine.Stats()
	assert.True(t, stats.Running)
	assert.Contains(t, stats.JobIDs, task.ID)
}

func TestCreateTask_DisabledNotRegistered(t *testing.T) {
	env := newTestEngine(t, dispatcherFunc(okDispatcher), Config{})

	enabled := false
	input := intervalInput("dormant")
	input.Enabled = &enabled

	task, err := env.engine.CreateTask(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, task.Enabled)
	assert.NotContains(t, env.engine.Stats().JobIDs, task.ID)
}

func TestCreateTask_InvalidSchedule(t *testing.T) {
	env := newTestEngine(t, dispatcherFunc(okDispatcher), Config{})

	input := intervalInput("bad")
	input.Schedule = models.Schedule{Type: models.ScheduleCron, CronExpression: "nope"}

	_, err := env.engine.CreateTask(context.Background(), input)
	assert.Error(t, err)
}

func TestStart_WarmRebuildLoadsOnlyEnabled(t *testing.T) {
	tasks := mocks.NewMockTaskStore()
	executions := mocks.NewMockExecutionStore()
	engine := New(tasks, executions, dispatcherFunc(okDispatcher), newFakeNotifier(nil), staticTier{}, Config{})

	seed := func(id string, enabled bool) {
		_ = tasks.Create(context.Background(), &models.ScheduledTask{
			ID:       id,
			TenantID: "tenant-1",
			Name:     id,
			ToolName: "create_task",
			Schedule: models.Schedule{Type: models.ScheduleInterval, IntervalMinutes: 5},
			Enabled:  enabled,
		})
	}
	seed("on-1", true)
	seed("on-2", true)
	seed("off-1", false)

	require.NoError(t, engine.Start(context.Background()))
	defer engine.Stop()

	stats := engine.Stats()
	assert.Equal(t, 2, stats.JobCount)
	assert.ElementsMatch(t, []string{"on-1", "on-2"}, stats.JobIDs)
}

func TestStart_SkipsBrokenTask(t *testing.T) {
	tasks := mocks.NewMockTaskStore()
	engine := New(tasks, mocks.NewMockExecutionStore(), dispatcherFunc(okDispatcher), newFakeNotifier(nil), staticTier{}, Config{})

	_ = tasks.Create(context.Background(), &models.ScheduledTask{
		ID: "broken", TenantID: "tenant-1", Name: "broken", ToolName: "x",
		Schedule: models.Schedule{Type: models.ScheduleOneTime}, // run_at missing
		Enabled:  true,
	})
	_ = tasks.Create(context.Background(), &models.ScheduledTask{
		ID: "fine", TenantID: "tenant-1", Name: "fine", ToolName: "x",
		Schedule: models.Schedule{Type: models.ScheduleInterval, IntervalMinutes: 5},
		Enabled:  true,
	})

	require.NoError(t, engine.Start(context.Background()))
	defer engine.Stop()

	assert.Equal(t, []string{"fine"}, engine.Stats().JobIDs)
}

func TestStop_ClearsRegistry(t *testing.T) {
	env := newTestEngine(t, dispatcherFunc(okDispatcher), Config{})
	_, err := env.engine.CreateTask(context.Background(), intervalInput("hourly"))
	require.NoError(t, err)

	env.engine.Stop()
	stats := env.engine.Stats()
	assert.False(t, stats.Running)
	assert.Empty(t, stats.JobIDs)

	// Restart rebuilds from the store.
	require.NoError(t, env.engine.Start(context.Background()))
	assert.Equal(t, 1, env.engine.Stats().JobCount)
}

func TestDisableEnable_KeepsNextRun(t *testing.T) {
	env := newTestEngine(t, dispatcherFunc(okDispatcher), Config{})

	input := intervalInput("toggle")
	input.Schedule = models.Schedule{Type: models.ScheduleCron, CronExpression: "0 12 * * *"}
	task, err := env.engine.CreateTask(context.Background(), input)
	require.NoError(t, err)
	originalNext := *task.NextRun

	disabled, err := env.engine.DisableTask(context.Background(), "tenant-1", task.ID)
	require.NoError(t, err)
	assert.False(t, disabled.Enabled)
	assert.NotContains(t, env.engine.Stats().JobIDs, task.ID)

	enabled, err := env.engine.EnableTask(context.Background(), "tenant-1", task.ID)
	require.NoError(t, err)
	assert.True(t, enabled.Enabled)
	assert.Contains(t, env.engine.Stats().JobIDs, task.ID)
	assert.Equal(t, originalNext, *enabled.NextRun)
}

func TestUpdateTask_ScheduleChangeRecomputesNextRun(t *testing.T) {
	env := newTestEngine(t, dispatcherFunc(okDispatcher), Config{})

	task, err := env.engine.CreateTask(context.Background(), intervalInput("hourly"))
	require.NoError(t, err)

	updated, err := env.engine.UpdateTask(context.Background(), "tenant-1", task.ID, UpdateTaskInput{
		Schedule: &models.Schedule{Type: models.ScheduleInterval, IntervalMinutes: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Schedule.IntervalMinutes)
	assert.True(t, updated.NextRun.Before(time.Now().Add(6*time.Minute)))
}

func TestUpdateTask_Missing(t *testing.T) {
	env := newTestEngine(t, dispatcherFunc(okDispatcher), Config{})

	name := "renamed"
	task, err := env.engine.UpdateTask(context.Background(), "tenant-1", "no-such-id", UpdateTaskInput{Name: &name})
	assert.NoError(t, err)
	assert.Nil(t, task)
}

func TestDeleteTask_RemovesTrigger(t *testing.T) {
	env := newTestEngine(t, dispatcherFunc(okDispatcher), Config{})

	task, err := env.engine.CreateTask(context.Background(), intervalInput("doomed"))
	require.NoError(t, err)
	require.Contains(t, env.engine.Stats().JobIDs, task.ID)

	deleted, err := env.engine.DeleteTask(context.Background(), "tenant-1", task.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.NotContains(t, env.engine.Stats().JobIDs, task.ID)

	got, err := env.engine.GetTask(context.Background(), "tenant-1", task.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting again is not an error, just a no-op.
	deleted, err = env.engine.DeleteTask(context.Background(), "tenant-1", task.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestRunTaskNow_NotFound(t *testing.T) {
	env := newTestEngine(t, dispatcherFunc(okDispatcher), Config{})

	_, err := env.engine.RunTaskNow(context.Background(), "tenant-1", "ghost")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestRunTaskNow_RecordsHistoryAndStats(t *testing.T) {
	env := newTestEngine(t, dispatcherFunc(okDispatcher), Config{})

	task, err := env.engine.CreateTask(context.Background(), intervalInput("manual"))
	require.NoError(t, err)

	execution, err := env.engine.RunTaskNow(context.Background(), "tenant-1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, state.StatusSuccess, execution.Status)

	history, err := env.engine.GetTaskExecutions(context.Background(), "tenant-1", task.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, history.Items, 1)
	assert.Equal(t, task.ID, history.Items[0].TaskID)

	stored, err := env.engine.GetTask(context.Background(), "tenant-1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.ExecutionCount)
	assert.Equal(t, int64(1), stored.SuccessCount)
	assert.Equal(t, int64(0), stored.FailureCount)
	require.NotNil(t, stored.LastExecution)
	assert.Equal(t, state.StatusSuccess, stored.LastExecution.Status)
}

func TestRunTaskNow_UnknownToolRecordedAsFailed(t *testing.T) {
	// Use the real dispatcher so the failure envelope shape is exercised
	// end to end.
	executor := tools.NewExecutor(mocks.NewMockProjectStore())
	env := newTestEngine(t, executor, Config{})

	input := intervalInput("misconfigured")
	input.ToolName = "does_not_exist"
	task, err := env.engine.CreateTask(context.Background(), input)
	require.NoError(t, err)

	execution, err := env.engine.RunTaskNow(context.Background(), "tenant-1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, state.StatusFailed, execution.Status)
	assert.Contains(t, execution.Error, "Unknown project tool")

	stored, _ := env.engine.GetTask(context.Background(), "tenant-1", task.ID)
	assert.Equal(t, int64(1), stored.FailureCount)
	assert.Equal(t, int64(0), stored.SuccessCount)

	history, err := env.engine.GetTaskExecutions(context.Background(), "tenant-1", task.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, history.Items, 1)
	assert.Equal(t, state.StatusFailed, history.Items[0].Status)
}

func TestExecute_OverlapSkippedWithoutStats(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	slow := dispatcherFunc(func(ctx context.Context, toolName string, params map[string]any, tenantID, agentID string, tier models.Tier) tools.Result {
		close(started)
		<-release
		return tools.Result{"success": true}
	})
	env := newTestEngine(t, slow, Config{})

	task, err := env.engine.CreateTask(context.Background(), intervalInput("slow"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = env.engine.RunTaskNow(context.Background(), "tenant-1", task.ID)
	}()
	<-started

	skipped, err := env.engine.RunTaskNow(context.Background(), "tenant-1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, state.StatusSkipped, skipped.Status)

	close(release)
	wg.Wait()

	stored, _ := env.engine.GetTask(context.Background(), "tenant-1", task.ID)
	assert.Equal(t, int64(1), stored.ExecutionCount)

	history, err := env.engine.GetTaskExecutions(context.Background(), "tenant-1", task.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, history.Items, 1)
}

func TestExecute_TimeoutRecordedAsError(t *testing.T) {
	hang := dispatcherFunc(func(ctx context.Context, toolName string, params map[string]any, tenantID, agentID string, tier models.Tier) tools.Result {
		time.Sleep(2 * time.Second)
		return tools.Result{"success": true}
	})
	env := newTestEngine(t, hang, Config{ExecutionTimeout: 50 * time.Millisecond})

	task, err := env.engine.CreateTask(context.Background(), intervalInput("hung"))
	require.NoError(t, err)

	execution, err := env.engine.RunTaskNow(context.Background(), "tenant-1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, state.StatusError, execution.Status)
	assert.Contains(t, execution.Error, "timed out")

	stored, _ := env.engine.GetTask(context.Background(), "tenant-1", task.ID)
	assert.Equal(t, int64(1), stored.FailureCount)

	// The running flag must be clear: a follow-up run is not skipped.
	execution, err = env.engine.RunTaskNow(context.Background(), "tenant-1", task.ID)
	require.NoError(t, err)
	assert.NotEqual(t, state.StatusSkipped, execution.Status)
}

func TestExecute_PanicRecordedAsError(t *testing.T) {
	boom := dispatcherFunc(func(ctx context.Context, toolName string, params map[string]any, tenantID, agentID string, tier models.Tier) tools.Result {
		panic("tool exploded")
	})
	env := newTestEngine(t, boom, Config{})

	task, err := env.engine.CreateTask(context.Background(), intervalInput("explosive"))
	require.NoError(t, err)

	execution, err := env.engine.RunTaskNow(context.Background(), "tenant-1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, state.StatusError, execution.Status)
	assert.Contains(t, execution.Error, "tool exploded")

	history, err := env.engine.GetTaskExecutions(context.Background(), "tenant-1", task.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, history.Items, 1)
}

func TestExecute_CountInvariant(t *testing.T) {
	var calls int
	var mu sync.Mutex
	flaky := dispatcherFunc(func(ctx context.Context, toolName string, params map[string]any, tenantID, agentID string, tier models.Tier) tools.Result {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n%2 == 0 {
			return tools.Result{"success": false, "error": "even call"}
		}
		return tools.Result{"success": true}
	})
	env := newTestEngine(t, flaky, Config{})

	task, err := env.engine.CreateTask(context.Background(), intervalInput("flaky"))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := env.engine.RunTaskNow(context.Background(), "tenant-1", task.ID)
		require.NoError(t, err)
	}

	stored, _ := env.engine.GetTask(context.Background(), "tenant-1", task.ID)
	assert.Equal(t, stored.ExecutionCount, stored.SuccessCount+stored.FailureCount)
	assert.Equal(t, int64(5), stored.ExecutionCount)
}

func TestExecute_OneTimeAutoDisables(t *testing.T) {
	env := newTestEngine(t, dispatcherFunc(okDispatcher), Config{})

	runAt := time.Now().Add(time.Hour).UTC()
	input := intervalInput("once")
	input.Schedule = models.Schedule{Type: models.ScheduleOneTime, RunAt: &runAt}
	task, err := env.engine.CreateTask(context.Background(), input)
	require.NoError(t, err)
	require.Contains(t, env.engine.Stats().JobIDs, task.ID)

	execution, err := env.engine.RunTaskNow(context.Background(), "tenant-1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, state.StatusSuccess, execution.Status)

	stored, _ := env.engine.GetTask(context.Background(), "tenant-1", task.ID)
	assert.False(t, stored.Enabled)
	assert.NotContains(t, env.engine.Stats().JobIDs, task.ID)
}

func TestOnComplete_WebhookFailureDoesNotAffectStatus(t *testing.T) {
	env := newTestEngine(t, dispatcherFunc(okDispatcher), Config{})
	env.notifier.err = assert.AnError

	input := intervalInput("hooked")
	input.OnComplete = &models.OnComplete{
		Action: models.OnCompleteWebhook,
		Params: map[string]any{"url": "http://unreachable.invalid/hook"},
	}
	task, err := env.engine.CreateTask(context.Background(), input)
	require.NoError(t, err)

	execution, err := env.engine.RunTaskNow(context.Background(), "tenant-1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, state.StatusSuccess, execution.Status)

	select {
	case <-env.notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was never attempted")
	}

	stored, _ := env.engine.GetTask(context.Background(), "tenant-1", task.ID)
	require.NotNil(t, stored.LastExecution)
	assert.Equal(t, state.StatusSuccess, stored.LastExecution.Status)
	assert.Equal(t, int64(1), stored.SuccessCount)
}

func TestOnComplete_NotSentOnFailure(t *testing.T) {
	failing := dispatcherFunc(func(ctx context.Context, toolName string, params map[string]any, tenantID, agentID string, tier models.Tier) tools.Result {
		return tools.Result{"success": false, "error": "nope"}
	})
	env := newTestEngine(t, failing, Config{})

	input := intervalInput("no-hook")
	input.OnComplete = &models.OnComplete{
		Action: models.OnCompleteWebhook,
		Params: map[string]any{"url": "http://example.invalid/hook"},
	}
	task, err := env.engine.CreateTask(context.Background(), input)
	require.NoError(t, err)

	_, err = env.engine.RunTaskNow(context.Background(), "tenant-1", task.ID)
	require.NoError(t, err)

	select {
	case <-env.notifier.done:
		t.Fatal("on_complete must not fire for a failed run")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestOnComplete_RunTool(t *testing.T) {
	var mu sync.Mutex
	var toolCalls []string
	recording := dispatcherFunc(func(ctx context.Context, toolName string, params map[string]any, tenantID, agentID string, tier models.Tier) tools.Result {
		mu.Lock()
		toolCalls = append(toolCalls, toolName)
		mu.Unlock()
		return tools.Result{"success": true}
	})
	env := newTestEngine(t, recording, Config{})

	input := intervalInput("chained")
	input.OnComplete = &models.OnComplete{
		Action: models.OnCompleteRunTool,
		Params: map[string]any{
			"tool_name":   "list_projects",
			"tool_params": map[string]any{},
		},
	}
	task, err := env.engine.CreateTask(context.Background(), input)
	require.NoError(t, err)

	_, err = env.engine.RunTaskNow(context.Background(), "tenant-1", task.ID)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(toolCalls) == 2 && toolCalls[1] == "list_projects"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestListTasks_FiltersAndPaginates(t *testing.T) {
	env := newTestEngine(t, dispatcherFunc(okDispatcher), Config{})

	for _, name := range []string{"a", "b", "c"} {
		input := intervalInput(name)
		if name == "c" {
			input.AgentID = "agent-2"
		}
		_, err := env.engine.CreateTask(context.Background(), input)
		require.NoError(t, err)
	}

	agent := "agent-1"
	page, err := env.engine.ListTasks(context.Background(), "tenant-1", store.TaskFilter{AgentID: &agent, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalItems)
	assert.Len(t, page.Items, 2)

	// Another tenant sees nothing.
	page, err = env.engine.ListTasks(context.Background(), "tenant-2", store.TaskFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, page.TotalItems)
}
