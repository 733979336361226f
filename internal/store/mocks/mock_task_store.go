// Package mocks provides in-memory store implementations for tests.
package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"agentsched/internal/models"
	"agentsched/internal/store"
)

type MockTaskStore struct {
	mu    sync.Mutex
	tasks map[string]*models.ScheduledTask
}

func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{tasks: make(map[string]*models.ScheduledTask)}
}

func (m *MockTaskStore) Create(ctx context.Context, task *models.ScheduledTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *task
	m.tasks[task.ID] = &clone
	return nil
}

func (m *MockTaskStore) GetByID(ctx context.Context, tenantID, id string) (*models.ScheduledTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok || task.TenantID != tenantID {
		return nil, nil
	}
	clone := *task
	return &clone, nil
}

func (m *MockTaskStore) GetByName(ctx context.Context, tenantID, name string) (*models.ScheduledTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, task := range m.tasks {
		if task.TenantID == tenantID && task.Name == name {
			clone := *task
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *MockTaskStore) List(ctx context.Context, tenantID string, filter store.TaskFilter) ([]models.ScheduledTask, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []models.ScheduledTask
	for _, task := range m.tasks {
		if task.TenantID != tenantID {
			continue
		}
		if filter.AgentID != nil && task.AgentID != *filter.AgentID {
			continue
		}
		if filter.Enabled != nil && task.Enabled != *filter.Enabled {
			continue
		}
		matched = append(matched, *task)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if filter.Skip < len(matched) {
		matched = matched[filter.Skip:]
	} else {
		matched = nil
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (m *MockTaskStore) ListEnabled(ctx context.Context) ([]models.ScheduledTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var enabled []models.ScheduledTask
	for _, task := range m.tasks {
		if task.Enabled {
			enabled = append(enabled, *task)
		}
	}
	return enabled, nil
}

func (m *MockTaskStore) Update(ctx context.Context, task *models.ScheduledTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.tasks[task.ID]
	if !ok || existing.TenantID != task.TenantID {
		return nil
	}
	clone := *task
	clone.UpdatedAt = time.Now().UTC()
	m.tasks[task.ID] = &clone
	return nil
}

func (m *MockTaskStore) RecordExecution(ctx context.Context, tenantID, id string, result store.ExecutionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok || task.TenantID != tenantID {
		return nil
	}
	task.ExecutionCount++
	if result.Success {
		task.SuccessCount++
	} else {
		task.FailureCount++
	}
	snapshot := result.Snapshot
	task.LastExecution = &snapshot
	task.NextRun = result.NextRun
	if result.Disable {
		task.Enabled = false
	}
	task.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockTaskStore) Delete(ctx context.Context, tenantID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok || task.TenantID != tenantID {
		return false, nil
	}
	delete(m.tasks, id)
	return true, nil
}
