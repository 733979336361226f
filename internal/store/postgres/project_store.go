package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"agentsched/internal/models"
	"agentsched/internal/store"
)

type ProjectStore struct {
	db *sql.DB
}

func NewProjectStore(db *sql.DB) *ProjectStore {
	return &ProjectStore{db: db}
}

func (s *ProjectStore) CreateProject(ctx context.Context, p *models.Project) error {
	query := `
		INSERT INTO projects (id, tenant_id, space_id, name, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.TenantID, nullString(p.SpaceID), p.Name, p.Description, p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

func (s *ProjectStore) UpdateProject(ctx context.Context, tenantID, id string, update store.ProjectUpdate) (*models.Project, error) {
	sets := []string{"updated_at = now()"}
	args := []any{tenantID, id}

	appendSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.Name != nil {
		appendSet("name", *update.Name)
	}
	if update.Description != nil {
		appendSet("description", *update.Description)
	}
	if update.Status != nil {
		appendSet("status", *update.Status)
	}

	query := `
		UPDATE projects SET ` + strings.Join(sets, ", ") + `
		WHERE tenant_id = $1 AND id = $2
		RETURNING id, tenant_id, space_id, name, description, status, created_at, updated_at
	`
	var (
		p       models.Project
		spaceID sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&p.ID, &p.TenantID, &spaceID, &p.Name, &p.Description, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	p.SpaceID = spaceID.String
	return &p, nil
}

func (s *ProjectStore) DeleteProject(ctx context.Context, tenantID, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete project: %w", err)
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

func (s *ProjectStore) ListProjects(ctx context.Context, tenantID string) ([]models.Project, error) {
	query := `
		SELECT id, tenant_id, space_id, name, description, status, created_at, updated_at
		FROM projects WHERE tenant_id = $1 ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var (
			p       models.Project
			spaceID sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.TenantID, &spaceID, &p.Name, &p.Description, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		p.SpaceID = spaceID.String
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *ProjectStore) CountProjects(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE tenant_id = $1`, tenantID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count projects: %w", err)
	}
	return count, nil
}

func (s *ProjectStore) CreateSpace(ctx context.Context, space *models.Space) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO spaces (id, tenant_id, name, created_at) VALUES ($1, $2, $3, $4)`,
		space.ID, space.TenantID, space.Name, space.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert space: %w", err)
	}
	return nil
}

func (s *ProjectStore) CreateList(ctx context.Context, list *models.TaskList) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_lists (id, tenant_id, project_id, name, created_at) VALUES ($1, $2, $3, $4, $5)`,
		list.ID, list.TenantID, list.ProjectID, list.Name, list.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert task list: %w", err)
	}
	return nil
}

func (s *ProjectStore) CreateTask(ctx context.Context, t *models.ProjectTask) error {
	query := `
		INSERT INTO project_tasks (id, tenant_id, project_id, list_id, name, description,
			status, priority, assignee, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.TenantID, t.ProjectID, nullString(t.ListID), t.Name, t.Description,
		t.Status, nullString(t.Priority), nullString(t.Assignee), t.DueDate, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert project task: %w", err)
	}
	return nil
}

func (s *ProjectStore) UpdateTask(ctx context.Context, tenantID, id string, update store.TaskUpdate) (*models.ProjectTask, error) {
	sets := []string{"updated_at = now()"}
	args := []any{tenantID, id}

	appendSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.Name != nil {
		appendSet("name", *update.Name)
	}
	if update.Description != nil {
		appendSet("description", *update.Description)
	}
	if update.Status != nil {
		appendSet("status", *update.Status)
	}
	if update.Priority != nil {
		appendSet("priority", *update.Priority)
	}
	if update.Assignee != nil {
		appendSet("assignee", *update.Assignee)
	}
	if update.ListID != nil {
		appendSet("list_id", *update.ListID)
	}

	query := `
		UPDATE project_tasks SET ` + strings.Join(sets, ", ") + `
		WHERE tenant_id = $1 AND id = $2
		RETURNING id, tenant_id, project_id, list_id, name, description, status, priority, assignee, due_date, created_at, updated_at
	`
	task, err := scanProjectTask(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update project task: %w", err)
	}
	return task, nil
}

func (s *ProjectStore) DeleteTask(ctx context.Context, tenantID, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM project_tasks WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete project task: %w", err)
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

func (s *ProjectStore) ListTasks(ctx context.Context, tenantID, projectID string) ([]models.ProjectTask, error) {
	query := `
		SELECT id, tenant_id, project_id, list_id, name, description, status, priority, assignee, due_date, created_at, updated_at
		FROM project_tasks WHERE tenant_id = $1 AND project_id = $2 ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.ProjectTask
	for rows.Next() {
		task, err := scanProjectTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (s *ProjectStore) CreateSubtask(ctx context.Context, sub *models.Subtask) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subtasks (id, tenant_id, task_id, name, done, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		sub.ID, sub.TenantID, sub.TaskID, sub.Name, sub.Done, sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert subtask: %w", err)
	}
	return nil
}

func (s *ProjectStore) CompleteSubtask(ctx context.Context, tenantID, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subtasks SET done = TRUE WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return false, fmt.Errorf("failed to complete subtask: %w", err)
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

func (s *ProjectStore) CreateChecklist(ctx context.Context, c *models.Checklist) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checklists (id, tenant_id, task_id, name, created_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.TenantID, c.TaskID, c.Name, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert checklist: %w", err)
	}
	return nil
}

func (s *ProjectStore) AddChecklistItem(ctx context.Context, item *models.ChecklistItem) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checklist_items (id, tenant_id, checklist_id, content, done, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		item.ID, item.TenantID, item.ChecklistID, item.Content, item.Done, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert checklist item: %w", err)
	}
	return nil
}

func (s *ProjectStore) AddDependency(ctx context.Context, d *models.TaskDependency) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_dependencies (id, tenant_id, task_id, depends_on, created_at) VALUES ($1, $2, $3, $4, $5)`,
		d.ID, d.TenantID, d.TaskID, d.DependsOn, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert task dependency: %w", err)
	}
	return nil
}

func scanProjectTask(row rowScanner) (*models.ProjectTask, error) {
	var (
		t        models.ProjectTask
		listID   sql.NullString
		priority sql.NullString
		assignee sql.NullString
		dueDate  sql.NullTime
	)
	err := row.Scan(
		&t.ID, &t.TenantID, &t.ProjectID, &listID, &t.Name, &t.Description,
		&t.Status, &priority, &assignee, &dueDate, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.ListID = listID.String
	t.Priority = priority.String
	t.Assignee = assignee.String
	if dueDate.Valid {
		d := dueDate.Time
		t.DueDate = &d
	}
	return &t, nil
}
