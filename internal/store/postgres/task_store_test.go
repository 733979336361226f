package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentsched/internal/models"
	"agentsched/internal/state"
	"agentsched/internal/store"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *TaskStore) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewTaskStore(db)
}

func taskRows(t *testing.T, task *models.ScheduledTask) *sqlmock.Rows {
	params, err := json.Marshal(task.ToolParams)
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{
		"id", "tenant_id", "agent_id", "name", "description", "tool_name", "tool_params",
		"schedule_type", "cron_expression", "interval_minutes", "run_at", "timezone",
		"enabled", "on_complete", "last_execution", "next_run",
		"execution_count", "success_count", "failure_count", "created_at", "updated_at",
	})
	rows.AddRow(
		task.ID, task.TenantID, task.AgentID, task.Name, task.Description, task.ToolName, params,
		string(task.Schedule.Type), task.Schedule.CronExpression, int64(task.Schedule.IntervalMinutes),
		nil, "UTC",
		task.Enabled, nil, nil, task.NextRun,
		task.ExecutionCount, task.SuccessCount, task.FailureCount, task.CreatedAt, task.UpdatedAt,
	)
	return rows
}

func sampleTask() *models.ScheduledTask {
	now := time.Now().UTC().Truncate(time.Second)
	next := now.Add(time.Hour)
	return &models.ScheduledTask{
		ID:       "5f6b2a1e-7c63-42e1-8a9e-0b1f6f6d0001",
		TenantID: "tenant-1",
		AgentID:  "agent-1",
		Name:     "daily report",
		ToolName: "create_task",
		ToolParams: map[string]any{
			"project_id": "p-1",
			"name":       "write report",
		},
		Schedule: models.Schedule{
			Type:            models.ScheduleInterval,
			IntervalMinutes: 60,
			Timezone:        "UTC",
		},
		Enabled:   true,
		NextRun:   &next,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestTaskStore_Create(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer func() { _ = db.Close() }()

	task := sampleTask()
	mock.ExpectExec("INSERT INTO scheduled_tasks").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), task)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskStore_GetByID(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer func() { _ = db.Close() }()

	task := sampleTask()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT .* FROM scheduled_tasks WHERE tenant_id").
			WithArgs(task.TenantID, task.ID).
			WillReturnRows(taskRows(t, task))

		got, err := repo.GetByID(context.Background(), task.TenantID, task.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, task.ID, got.ID)
		assert.Equal(t, task.ToolName, got.ToolName)
		assert.Equal(t, 60, got.Schedule.IntervalMinutes)
		assert.Equal(t, "p-1", got.ToolParams["project_id"])
	})

	t.Run("absent returns nil, nil", func(t *testing.T) {
		mock.ExpectQuery("SELECT .* FROM scheduled_tasks WHERE tenant_id").
			WithArgs("tenant-1", "missing").
			WillReturnError(sql.ErrNoRows)

		got, err := repo.GetByID(context.Background(), "tenant-1", "missing")
		assert.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestTaskStore_List(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer func() { _ = db.Close() }()

	task := sampleTask()
	enabled := true

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(task.TenantID, enabled).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT .* FROM scheduled_tasks WHERE tenant_id").
		WithArgs(task.TenantID, enabled, 20, 0).
		WillReturnRows(taskRows(t, task))

	tasks, total, err := repo.List(context.Background(), task.TenantID, store.TaskFilter{Enabled: &enabled, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.Name, tasks[0].Name)
}

func TestTaskStore_RecordExecution(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer func() { _ = db.Close() }()

	next := time.Now().Add(time.Hour)
	result := store.ExecutionResult{
		Snapshot: models.ExecutionSnapshot{
			Status:     state.StatusSuccess,
			DurationMs: 42,
		},
		NextRun: &next,
		Success: true,
	}

	mock.ExpectExec("UPDATE scheduled_tasks SET").
		WithArgs("tenant-1", "task-1", 1, 0, sqlmock.AnyArg(), sqlmock.AnyArg(), false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.RecordExecution(context.Background(), "tenant-1", "task-1", result)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskStore_Delete(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer func() { _ = db.Close() }()

	t.Run("deleted", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM scheduled_tasks").
			WithArgs("tenant-1", "task-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		deleted, err := repo.Delete(context.Background(), "tenant-1", "task-1")
		require.NoError(t, err)
		assert.True(t, deleted)
	})

	t.Run("absent", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM scheduled_tasks").
			WithArgs("tenant-1", "missing").
			WillReturnResult(sqlmock.NewResult(0, 0))

		deleted, err := repo.Delete(context.Background(), "tenant-1", "missing")
		require.NoError(t, err)
		assert.False(t, deleted)
	})
}
