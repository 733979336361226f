package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"agentsched/internal/models"
	"agentsched/internal/store"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

const taskColumns = `id, tenant_id, agent_id, name, description, tool_name, tool_params,
       schedule_type, cron_expression, interval_minutes, run_at, timezone,
       enabled, on_complete, last_execution, next_run,
       execution_count, success_count, failure_count, created_at, updated_at`

func (s *TaskStore) Create(ctx context.Context, task *models.ScheduledTask) error {
	params, err := json.Marshal(task.ToolParams)
	if err != nil {
		return fmt.Errorf("failed to marshal tool params: %w", err)
	}
	onComplete, err := marshalNullable(task.OnComplete)
	if err != nil {
		return fmt.Errorf("failed to marshal on_complete: %w", err)
	}

	query := `
		INSERT INTO scheduled_tasks (
			id, tenant_id, agent_id, name, description, tool_name, tool_params,
			schedule_type, cron_expression, interval_minutes, run_at, timezone,
			enabled, on_complete, next_run, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = s.db.ExecContext(ctx, query,
		task.ID, task.TenantID, task.AgentID, task.Name, task.Description,
		task.ToolName, params,
		task.Schedule.Type, nullString(task.Schedule.CronExpression),
		nullInt(task.Schedule.IntervalMinutes), task.Schedule.RunAt, timezoneOrUTC(task.Schedule.Timezone),
		task.Enabled, onComplete, task.NextRun, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert scheduled task: %w", err)
	}
	return nil
}

func (s *TaskStore) GetByID(ctx context.Context, tenantID, id string) (*models.ScheduledTask, error) {
	query := `SELECT ` + taskColumns + ` FROM scheduled_tasks WHERE tenant_id = $1 AND id = $2`
	return s.getOne(ctx, query, tenantID, id)
}

func (s *TaskStore) GetByName(ctx context.Context, tenantID, name string) (*models.ScheduledTask, error) {
	query := `SELECT ` + taskColumns + ` FROM scheduled_tasks WHERE tenant_id = $1 AND name = $2`
	return s.getOne(ctx, query, tenantID, name)
}

func (s *TaskStore) getOne(ctx context.Context, query string, args ...any) (*models.ScheduledTask, error) {
	task, err := scanTask(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled task: %w", err)
	}
	return task, nil
}

func (s *TaskStore) List(ctx context.Context, tenantID string, filter store.TaskFilter) ([]models.ScheduledTask, int, error) {
	where := "tenant_id = $1"
	args := []any{tenantID}

	if filter.AgentID != nil {
		args = append(args, *filter.AgentID)
		where += fmt.Sprintf(" AND agent_id = $%d", len(args))
	}
	if filter.Enabled != nil {
		args = append(args, *filter.Enabled)
		where += fmt.Sprintf(" AND enabled = $%d", len(args))
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM scheduled_tasks WHERE ` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count scheduled tasks: %w", err)
	}

	args = append(args, filter.Limit, filter.Skip)
	query := `SELECT ` + taskColumns + ` FROM scheduled_tasks WHERE ` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list scheduled tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.ScheduledTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan scheduled task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, total, rows.Err()
}

func (s *TaskStore) ListEnabled(ctx context.Context) ([]models.ScheduledTask, error) {
	query := `SELECT ` + taskColumns + ` FROM scheduled_tasks WHERE enabled = TRUE ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.ScheduledTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (s *TaskStore) Update(ctx context.Context, task *models.ScheduledTask) error {
	params, err := json.Marshal(task.ToolParams)
	if err != nil {
		return fmt.Errorf("failed to marshal tool params: %w", err)
	}
	onComplete, err := marshalNullable(task.OnComplete)
	if err != nil {
		return fmt.Errorf("failed to marshal on_complete: %w", err)
	}

	query := `
		UPDATE scheduled_tasks SET
			name = $3, description = $4, tool_name = $5, tool_params = $6,
			schedule_type = $7, cron_expression = $8, interval_minutes = $9,
			run_at = $10, timezone = $11, enabled = $12, on_complete = $13,
			next_run = $14, updated_at = $15
		WHERE tenant_id = $1 AND id = $2
	`
	_, err = s.db.ExecContext(ctx, query,
		task.TenantID, task.ID,
		task.Name, task.Description, task.ToolName, params,
		task.Schedule.Type, nullString(task.Schedule.CronExpression),
		nullInt(task.Schedule.IntervalMinutes), task.Schedule.RunAt, timezoneOrUTC(task.Schedule.Timezone),
		task.Enabled, onComplete, task.NextRun, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update scheduled task: %w", err)
	}
	return nil
}

// RecordExecution is a single UPDATE so the counter invariant holds even if
// the process dies right after: increments, last_execution snapshot, next_run
// and the optional one_time disable land atomically.
func (s *TaskStore) RecordExecution(ctx context.Context, tenantID, id string, result store.ExecutionResult) error {
	snapshot, err := json.Marshal(result.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal last_execution: %w", err)
	}

	successInc := 0
	failureInc := 1
	if result.Success {
		successInc, failureInc = 1, 0
	}

	query := `
		UPDATE scheduled_tasks SET
			execution_count = execution_count + 1,
			success_count = success_count + $3,
			failure_count = failure_count + $4,
			last_execution = $5,
			next_run = $6,
			enabled = CASE WHEN $7 THEN FALSE ELSE enabled END,
			updated_at = now()
		WHERE tenant_id = $1 AND id = $2
	`
	_, err = s.db.ExecContext(ctx, query, tenantID, id, successInc, failureInc, snapshot, result.NextRun, result.Disable)
	if err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}
	return nil
}

func (s *TaskStore) Delete(ctx context.Context, tenantID, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_tasks WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete scheduled task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.ScheduledTask, error) {
	var (
		task            models.ScheduledTask
		params          []byte
		cronExpr        sql.NullString
		intervalMinutes sql.NullInt64
		runAt           sql.NullTime
		onComplete      []byte
		lastExecution   []byte
		nextRun         sql.NullTime
	)

	err := row.Scan(
		&task.ID, &task.TenantID, &task.AgentID, &task.Name, &task.Description,
		&task.ToolName, &params,
		&task.Schedule.Type, &cronExpr, &intervalMinutes, &runAt, &task.Schedule.Timezone,
		&task.Enabled, &onComplete, &lastExecution, &nextRun,
		&task.ExecutionCount, &task.SuccessCount, &task.FailureCount,
		&task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(params) > 0 {
		if err := json.Unmarshal(params, &task.ToolParams); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tool params: %w", err)
		}
	}
	task.Schedule.CronExpression = cronExpr.String
	task.Schedule.IntervalMinutes = int(intervalMinutes.Int64)
	if runAt.Valid {
		t := runAt.Time
		task.Schedule.RunAt = &t
	}
	if len(onComplete) > 0 {
		task.OnComplete = &models.OnComplete{}
		if err := json.Unmarshal(onComplete, task.OnComplete); err != nil {
			return nil, fmt.Errorf("failed to unmarshal on_complete: %w", err)
		}
	}
	if len(lastExecution) > 0 {
		task.LastExecution = &models.ExecutionSnapshot{}
		if err := json.Unmarshal(lastExecution, task.LastExecution); err != nil {
			return nil, fmt.Errorf("failed to unmarshal last_execution: %w", err)
		}
	}
	if nextRun.Valid {
		t := nextRun.Time
		task.NextRun = &t
	}
	return &task, nil
}

func marshalNullable(v any) ([]byte, error) {
	switch val := v.(type) {
	case *models.OnComplete:
		if val == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}

func timezoneOrUTC(tz string) string {
	if tz == "" {
		return "UTC"
	}
	return tz
}
