package models

import "time"

// Tenant-scoped project management entities operated on by the tool
// dispatcher. Every row carries the owning tenant id; cross-tenant reads are
// impossible by construction since every store query filters on it.

type Project struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	SpaceID     string    `json:"space_id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Space struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type TaskList struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type ProjectTask struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	ProjectID   string     `json:"project_id"`
	ListID      string     `json:"list_id,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Subtask struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	TaskID    string    `json:"task_id"`
	Name      string    `json:"name"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at"`
}

type Checklist struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	TaskID    string    `json:"task_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type ChecklistItem struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	ChecklistID string    `json:"checklist_id"`
	Content     string    `json:"content"`
	Done        bool      `json:"done"`
	CreatedAt   time.Time `json:"created_at"`
}

type TaskDependency struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	TaskID    string    `json:"task_id"`
	DependsOn string    `json:"depends_on"`
	CreatedAt time.Time `json:"created_at"`
}
