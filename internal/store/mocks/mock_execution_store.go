package mocks

import (
	"context"
	"sort"
	"sync"

	"agentsched/internal/models"
	"agentsched/internal/store"
)

type MockExecutionStore struct {
	mu         sync.Mutex
	executions []models.TaskExecution
}

func NewMockExecutionStore() *MockExecutionStore {
	return &MockExecutionStore{}
}

func (m *MockExecutionStore) Insert(ctx context.Context, execution *models.TaskExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.executions = append(m.executions, *execution)
	return nil
}

func (m *MockExecutionStore) ListByTask(ctx context.Context, tenantID, taskID string, limit, skip int) ([]models.TaskExecution, int, error) {
	return m.filter(tenantID, limit, skip, func(e models.TaskExecution) bool {
		return e.TaskID == taskID
	})
}

func (m *MockExecutionStore) List(ctx context.Context, tenantID string, filter store.ExecutionFilter) ([]models.TaskExecution, int, error) {
	return m.filter(tenantID, filter.Limit, filter.Skip, func(e models.TaskExecution) bool {
		return filter.Status == nil || e.Status == *filter.Status
	})
}

func (m *MockExecutionStore) filter(tenantID string, limit, skip int, match func(models.TaskExecution) bool) ([]models.TaskExecution, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []models.TaskExecution
	for _, e := range m.executions {
		if e.TenantID == tenantID && match(e) {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartedAt.After(matched[j].StartedAt)
	})

	total := len(matched)
	if skip < len(matched) {
		matched = matched[skip:]
	} else {
		matched = nil
	}
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}
