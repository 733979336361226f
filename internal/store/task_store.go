// Package store defines the persistence interfaces of the service. The
// scheduler engine, tool dispatcher and HTTP layer depend only on these;
// the postgres subpackage implements them and the mocks subpackage provides
// in-memory versions for tests.
package store

import (
	"context"
	"errors"
	"time"

	"agentsched/internal/models"
	"agentsched/internal/state"
)

var ErrNotFound = errors.New("not found")

// TaskFilter narrows List results. Nil fields are ignored.
type TaskFilter struct {
	AgentID *string
	Enabled *bool
	Limit   int
	Skip    int
}

// ExecutionResult is the bookkeeping written after one execution attempt in
// a single atomic update: counter increments, snapshot overwrite, next_run,
// and the optional one_time auto-disable.
type ExecutionResult struct {
	Snapshot models.ExecutionSnapshot
	NextRun  *time.Time
	Success  bool
	Disable  bool
}

type TaskStore interface {
	Create(ctx context.Context, task *models.ScheduledTask) error

	// GetByID and GetByName return (nil, nil) when no task matches; the
	// caller decides whether absence is an error.
	GetByID(ctx context.Context, tenantID, id string) (*models.ScheduledTask, error)
	GetByName(ctx context.Context, tenantID, name string) (*models.ScheduledTask, error)

	// List returns the tenant's tasks newest first, plus the total matching
	// count before limit/skip.
	List(ctx context.Context, tenantID string, filter TaskFilter) ([]models.ScheduledTask, int, error)

	// ListEnabled spans all tenants; it feeds the warm rebuild at startup.
	ListEnabled(ctx context.Context) ([]models.ScheduledTask, error)

	Update(ctx context.Context, task *models.ScheduledTask) error

	// RecordExecution applies an ExecutionResult as one atomic UPDATE so the
	// execution_count == success_count + failure_count invariant can never be
	// observed broken.
	RecordExecution(ctx context.Context, tenantID, id string, result ExecutionResult) error

	// Delete reports whether a row was actually removed.
	Delete(ctx context.Context, tenantID, id string) (bool, error)
}

type ExecutionFilter struct {
	Status *state.ExecutionStatus
	Limit  int
	Skip   int
}

type ExecutionStore interface {
	Insert(ctx context.Context, execution *models.TaskExecution) error
	ListByTask(ctx context.Context, tenantID, taskID string, limit, skip int) ([]models.TaskExecution, int, error)
	List(ctx context.Context, tenantID string, filter ExecutionFilter) ([]models.TaskExecution, int, error)
}

type TenantStore interface {
	// GetTier returns ErrNotFound for unknown tenants.
	GetTier(ctx context.Context, tenantID string) (models.Tier, error)
}
