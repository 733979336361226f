package mocks

import (
	"context"
	"sync"

	"agentsched/internal/models"
	"agentsched/internal/store"
)

type MockProjectStore struct {
	mu           sync.Mutex
	projects     map[string]*models.Project
	spaces       map[string]*models.Space
	lists        map[string]*models.TaskList
	tasks        map[string]*models.ProjectTask
	subtasks     map[string]*models.Subtask
	checklists   map[string]*models.Checklist
	items        map[string]*models.ChecklistItem
	dependencies map[string]*models.TaskDependency
}

func NewMockProjectStore() *MockProjectStore {
	return &MockProjectStore{
		projects:     make(map[string]*models.Project),
		spaces:       make(map[string]*models.Space),
		lists:        make(map[string]*models.TaskList),
		tasks:        make(map[string]*models.ProjectTask),
		subtasks:     make(map[string]*models.Subtask),
		checklists:   make(map[string]*models.Checklist),
		items:        make(map[string]*models.ChecklistItem),
		dependencies: make(map[string]*models.TaskDependency),
	}
}

func (m *MockProjectStore) CreateProject(ctx context.Context, p *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *p
	m.projects[p.ID] = &clone
	return nil
}

func (m *MockProjectStore) UpdateProject(ctx context.Context, tenantID, id string, update store.ProjectUpdate) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.projects[id]
	if !ok || p.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	if update.Name != nil {
		p.Name = *update.Name
	}
	if update.Description != nil {
		p.Description = *update.Description
	}
	if update.Status != nil {
		p.Status = *update.Status
	}
	clone := *p
	return &clone, nil
}

func (m *MockProjectStore) DeleteProject(ctx context.Context, tenantID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.projects[id]
	if !ok || p.TenantID != tenantID {
		return false, nil
	}
	delete(m.projects, id)
	return true, nil
}

func (m *MockProjectStore) ListProjects(ctx context.Context, tenantID string) ([]models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var projects []models.Project
	for _, p := range m.projects {
		if p.TenantID == tenantID {
			projects = append(projects, *p)
		}
	}
	return projects, nil
}

func (m *MockProjectStore) CountProjects(ctx context.Context, tenantID string) (int, error) {
	projects, _ := m.ListProjects(ctx, tenantID)
	return len(projects), nil
}

func (m *MockProjectStore) CreateSpace(ctx context.Context, s *models.Space) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *s
	m.spaces[s.ID] = &clone
	return nil
}

func (m *MockProjectStore) CreateList(ctx context.Context, l *models.TaskList) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *l
	m.lists[l.ID] = &clone
	return nil
}

func (m *MockProjectStore) CreateTask(ctx context.Context, t *models.ProjectTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *t
	m.tasks[t.ID] = &clone
	return nil
}

func (m *MockProjectStore) UpdateTask(ctx context.Context, tenantID, id string, update store.TaskUpdate) (*models.ProjectTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok || t.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	if update.Name != nil {
		t.Name = *update.Name
	}
	if update.Description != nil {
		t.Description = *update.Description
	}
	if update.Status != nil {
		t.Status = *update.Status
	}
	if update.Priority != nil {
		t.Priority = *update.Priority
	}
	if update.Assignee != nil {
		t.Assignee = *update.Assignee
	}
	if update.ListID != nil {
		t.ListID = *update.ListID
	}
	clone := *t
	return &clone, nil
}

func (m *MockProjectStore) DeleteTask(ctx context.Context, tenantID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok || t.TenantID != tenantID {
		return false, nil
	}
	delete(m.tasks, id)
	return true, nil
}

func (m *MockProjectStore) ListTasks(ctx context.Context, tenantID, projectID string) ([]models.ProjectTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var tasks []models.ProjectTask
	for _, t := range m.tasks {
		if t.TenantID == tenantID && t.ProjectID == projectID {
			tasks = append(tasks, *t)
		}
	}
	return tasks, nil
}

func (m *MockProjectStore) CreateSubtask(ctx context.Context, s *models.Subtask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *s
	m.subtasks[s.ID] = &clone
	return nil
}

func (m *MockProjectStore) CompleteSubtask(ctx context.Context, tenantID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.subtasks[id]
	if !ok || s.TenantID != tenantID {
		return false, nil
	}
	s.Done = true
	return true, nil
}

func (m *MockProjectStore) CreateChecklist(ctx context.Context, c *models.Checklist) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *c
	m.checklists[c.ID] = &clone
	return nil
}

func (m *MockProjectStore) AddChecklistItem(ctx context.Context, item *models.ChecklistItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *item
	m.items[item.ID] = &clone
	return nil
}

func (m *MockProjectStore) AddDependency(ctx context.Context, d *models.TaskDependency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *d
	m.dependencies[d.ID] = &clone
	return nil
}
