package store

import (
	"context"

	"agentsched/internal/models"
)

// ProjectUpdate and TaskUpdate carry partial field changes; nil means leave
// the column alone.
type ProjectUpdate struct {
	Name        *string
	Description *string
	Status      *string
}

type TaskUpdate struct {
	Name        *string
	Description *string
	Status      *string
	Priority    *string
	Assignee    *string
	ListID      *string
}

// ProjectStore is the tenant-scoped data surface the tool dispatcher operates
// on. Every method filters by tenant id.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *models.Project) error
	UpdateProject(ctx context.Context, tenantID, id string, update ProjectUpdate) (*models.Project, error)
	DeleteProject(ctx context.Context, tenantID, id string) (bool, error)
	ListProjects(ctx context.Context, tenantID string) ([]models.Project, error)
	CountProjects(ctx context.Context, tenantID string) (int, error)

	CreateSpace(ctx context.Context, s *models.Space) error
	CreateList(ctx context.Context, l *models.TaskList) error

	CreateTask(ctx context.Context, t *models.ProjectTask) error
	UpdateTask(ctx context.Context, tenantID, id string, update TaskUpdate) (*models.ProjectTask, error)
	DeleteTask(ctx context.Context, tenantID, id string) (bool, error)
	ListTasks(ctx context.Context, tenantID, projectID string) ([]models.ProjectTask, error)

	CreateSubtask(ctx context.Context, s *models.Subtask) error
	CompleteSubtask(ctx context.Context, tenantID, id string) (bool, error)

	CreateChecklist(ctx context.Context, c *models.Checklist) error
	AddChecklistItem(ctx context.Context, item *models.ChecklistItem) error

	AddDependency(ctx context.Context, d *models.TaskDependency) error
}
