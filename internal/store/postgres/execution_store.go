package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"agentsched/internal/models"
	"agentsched/internal/store"
)

type ExecutionStore struct {
	db *sql.DB
}

func NewExecutionStore(db *sql.DB) *ExecutionStore {
	return &ExecutionStore{db: db}
}

const executionColumns = `id, task_id, tenant_id, agent_id, tool_name, tool_params,
       status, started_at, completed_at, duration_ms, result, error`

func (s *ExecutionStore) Insert(ctx context.Context, execution *models.TaskExecution) error {
	params, err := json.Marshal(execution.ToolParams)
	if err != nil {
		return fmt.Errorf("failed to marshal tool params: %w", err)
	}
	var result []byte
	if execution.Result != nil {
		if result, err = json.Marshal(execution.Result); err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
	}

	query := `
		INSERT INTO task_executions (
			id, task_id, tenant_id, agent_id, tool_name, tool_params,
			status, started_at, completed_at, duration_ms, result, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.db.ExecContext(ctx, query,
		execution.ID, execution.TaskID, execution.TenantID, execution.AgentID,
		execution.ToolName, params, execution.Status,
		execution.StartedAt, execution.CompletedAt, execution.DurationMs,
		result, nullString(execution.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to insert task execution: %w", err)
	}
	return nil
}

func (s *ExecutionStore) ListByTask(ctx context.Context, tenantID, taskID string, limit, skip int) ([]models.TaskExecution, int, error) {
	where := "tenant_id = $1 AND task_id = $2"
	return s.list(ctx, where, []any{tenantID, taskID}, limit, skip)
}

func (s *ExecutionStore) List(ctx context.Context, tenantID string, filter store.ExecutionFilter) ([]models.TaskExecution, int, error) {
	where := "tenant_id = $1"
	args := []any{tenantID}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	return s.list(ctx, where, args, filter.Limit, filter.Skip)
}

func (s *ExecutionStore) list(ctx context.Context, where string, args []any, limit, skip int) ([]models.TaskExecution, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM task_executions WHERE ` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count task executions: %w", err)
	}

	args = append(args, limit, skip)
	query := `SELECT ` + executionColumns + ` FROM task_executions WHERE ` + where +
		fmt.Sprintf(" ORDER BY started_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list task executions: %w", err)
	}
	defer rows.Close()

	var executions []models.TaskExecution
	for rows.Next() {
		var (
			execution models.TaskExecution
			params    []byte
			result    []byte
			errText   sql.NullString
		)
		err := rows.Scan(
			&execution.ID, &execution.TaskID, &execution.TenantID, &execution.AgentID,
			&execution.ToolName, &params, &execution.Status,
			&execution.StartedAt, &execution.CompletedAt, &execution.DurationMs,
			&result, &errText,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan task execution: %w", err)
		}
		if len(params) > 0 {
			if err := json.Unmarshal(params, &execution.ToolParams); err != nil {
				return nil, 0, fmt.Errorf("failed to unmarshal tool params: %w", err)
			}
		}
		if len(result) > 0 {
			if err := json.Unmarshal(result, &execution.Result); err != nil {
				return nil, 0, fmt.Errorf("failed to unmarshal result: %w", err)
			}
		}
		execution.Error = errText.String
		executions = append(executions, execution)
	}
	return executions, total, rows.Err()
}
