// Package tools resolves named project-management tools and executes them
// against tenant-scoped data. Every outcome is a Result envelope; an unknown
// tool or a bad parameter produces success:false rather than an error return,
// so a misconfigured scheduled task records a failure instead of crashing its
// pipeline.
package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"agentsched/internal/models"
	"agentsched/internal/store"
)

// Result is the uniform tool envelope: {"success": bool, ...} with an "error"
// key on failure.
type Result map[string]any

func (r Result) Success() bool {
	ok, _ := r["success"].(bool)
	return ok
}

func (r Result) Error() string {
	msg, _ := r["error"].(string)
	return msg
}

func failure(format string, args ...any) Result {
	return Result{"success": false, "error": fmt.Sprintf(format, args...)}
}

func success(fields map[string]any) Result {
	r := Result{"success": true}
	for k, v := range fields {
		r[k] = v
	}
	return r
}

// invocation carries the tenant scope of one tool call.
type invocation struct {
	tenantID string
	agentID  string
	tier     models.Tier
}

type handlerFunc func(ctx context.Context, inv invocation, params map[string]any) Result

// Executor dispatches tool calls by name. The registry is fixed at
// construction; tools are not registered dynamically.
type Executor struct {
	projects store.ProjectStore
	handlers map[string]handlerFunc
}

func NewExecutor(projects store.ProjectStore) *Executor {
	e := &Executor{projects: projects}
	e.handlers = map[string]handlerFunc{
		"create_project":     e.createProject,
		"update_project":     e.updateProject,
		"delete_project":     e.deleteProject,
		"list_projects":      e.listProjects,
		"create_space":       e.createSpace,
		"create_list":        e.createList,
		"create_task":        e.createTask,
		"update_task":        e.updateTask,
		"delete_task":        e.deleteTask,
		"complete_task":      e.completeTask,
		"list_tasks":         e.listTasks,
		"create_subtask":     e.createSubtask,
		"complete_subtask":   e.completeSubtask,
		"create_checklist":   e.createChecklist,
		"add_checklist_item": e.addChecklistItem,
		"add_dependency":     e.addDependency,
	}
	return e
}

// ToolNames lists the registered tools, for introspection endpoints.
func (e *Executor) ToolNames() []string {
	names := make([]string, 0, len(e.handlers))
	for name := range e.handlers {
		names = append(names, name)
	}
	return names
}

func (e *Executor) ExecuteTool(ctx context.Context, toolName string, params map[string]any, tenantID, agentID string, tier models.Tier) Result {
	handler, ok := e.handlers[toolName]
	if !ok {
		return failure("Unknown project tool: %s", toolName)
	}
	if params == nil {
		params = map[string]any{}
	}
	return handler(ctx, invocation{tenantID: tenantID, agentID: agentID, tier: tier}, params)
}

// maxFreeProjects caps project creation for free-tier tenants.
const maxFreeProjects = 3

func (e *Executor) createProject(ctx context.Context, inv invocation, params map[string]any) Result {
	name, err := stringParam(params, "name")
	if err != nil {
		return failure("%v", err)
	}

	if inv.tier == models.TierFree {
		count, err := e.projects.CountProjects(ctx, inv.tenantID)
		if err != nil {
			return failure("failed to count projects: %v", err)
		}
		if count >= maxFreeProjects {
			return failure("free tier is limited to %d projects", maxFreeProjects)
		}
	}

	now := time.Now().UTC()
	project := &models.Project{
		ID:          uuid.NewString(),
		TenantID:    inv.tenantID,
		SpaceID:     optionalString(params, "space_id"),
		Name:        name,
		Description: optionalString(params, "description"),
		Status:      "active",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.projects.CreateProject(ctx, project); err != nil {
		return failure("failed to create project: %v", err)
	}
	return success(map[string]any{"project": project})
}

func (e *Executor) updateProject(ctx context.Context, inv invocation, params map[string]any) Result {
	id, err := stringParam(params, "project_id")
	if err != nil {
		return failure("%v", err)
	}

	update := store.ProjectUpdate{
		Name:        optionalStringPtr(params, "name"),
		Description: optionalStringPtr(params, "description"),
		Status:      optionalStringPtr(params, "status"),
	}
	project, err := e.projects.UpdateProject(ctx, inv.tenantID, id, update)
	if err == store.ErrNotFound {
		return failure("project %s not found", id)
	}
	if err != nil {
		return failure("failed to update project: %v", err)
	}
	return success(map[string]any{"project": project})
}

func (e *Executor) deleteProject(ctx context.Context, inv invocation, params map[string]any) Result {
	id, err := stringParam(params, "project_id")
	if err != nil {
		return failure("%v", err)
	}
	deleted, err := e.projects.DeleteProject(ctx, inv.tenantID, id)
	if err != nil {
		return failure("failed to delete project: %v", err)
	}
	if !deleted {
		return failure("project %s not found", id)
	}
	return success(map[string]any{"deleted": id})
}

func (e *Executor) listProjects(ctx context.Context, inv invocation, params map[string]any) Result {
	projects, err := e.projects.ListProjects(ctx, inv.tenantID)
	if err != nil {
		return failure("failed to list projects: %v", err)
	}
	return success(map[string]any{"projects": projects, "count": len(projects)})
}

func (e *Executor) createSpace(ctx context.Context, inv invocation, params map[string]any) Result {
	name, err := stringParam(params, "name")
	if err != nil {
		return failure("%v", err)
	}
	space := &models.Space{
		ID:        uuid.NewString(),
		TenantID:  inv.tenantID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.projects.CreateSpace(ctx, space); err != nil {
		return failure("failed to create space: %v", err)
	}
	return success(map[string]any{"space": space})
}

func (e *Executor) createList(ctx context.Context, inv invocation, params map[string]any) Result {
	projectID, err := stringParam(params, "project_id")
	if err != nil {
		return failure("%v", err)
	}
	name, err := stringParam(params, "name")
	if err != nil {
		return failure("%v", err)
	}
	list := &models.TaskList{
		ID:        uuid.NewString(),
		TenantID:  inv.tenantID,
		ProjectID: projectID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.projects.CreateList(ctx, list); err != nil {
		return failure("failed to create list: %v", err)
	}
	return success(map[string]any{"list": list})
}

func (e *Executor) createTask(ctx context.Context, inv invocation, params map[string]any) Result {
	projectID, err := stringParam(params, "project_id")
	if err != nil {
		return failure("%v", err)
	}
	name, err := stringParam(params, "name")
	if err != nil {
		return failure("%v", err)
	}

	now := time.Now().UTC()
	task := &models.ProjectTask{
		ID:          uuid.NewString(),
		TenantID:    inv.tenantID,
		ProjectID:   projectID,
		ListID:      optionalString(params, "list_id"),
		Name:        name,
		Description: optionalString(params, "description"),
		Status:      "open",
		Priority:    optionalString(params, "priority"),
		Assignee:    optionalString(params, "assignee"),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if due := optionalString(params, "due_date"); due != "" {
		parsed, err := time.Parse(time.RFC3339, due)
		if err != nil {
			return failure("invalid due_date %q: %v", due, err)
		}
		task.DueDate = &parsed
	}
	if err := e.projects.CreateTask(ctx, task); err != nil {
		return failure("failed to create task: %v", err)
	}
	return success(map[string]any{"task": task})
}

func (e *Executor) updateTask(ctx context.Context, inv invocation, params map[string]any) Result {
	id, err := stringParam(params, "task_id")
	if err != nil {
		return failure("%v", err)
	}
	update := store.TaskUpdate{
		Name:        optionalStringPtr(params, "name"),
		Description: optionalStringPtr(params, "description"),
		Status:      optionalStringPtr(params, "status"),
		Priority:    optionalStringPtr(params, "priority"),
		Assignee:    optionalStringPtr(params, "assignee"),
		ListID:      optionalStringPtr(params, "list_id"),
	}
	task, err := e.projects.UpdateTask(ctx, inv.tenantID, id, update)
	if err == store.ErrNotFound {
		return failure("task %s not found", id)
	}
	if err != nil {
		return failure("failed to update task: %v", err)
	}
	return success(map[string]any{"task": task})
}

func (e *Executor) deleteTask(ctx context.Context, inv invocation, params map[string]any) Result {
	id, err := stringParam(params, "task_id")
	if err != nil {
		return failure("%v", err)
	}
	deleted, err := e.projects.DeleteTask(ctx, inv.tenantID, id)
	if err != nil {
		return failure("failed to delete task: %v", err)
	}
	if !deleted {
		return failure("task %s not found", id)
	}
	return success(map[string]any{"deleted": id})
}

func (e *Executor) completeTask(ctx context.Context, inv invocation, params map[string]any) Result {
	id, err := stringParam(params, "task_id")
	if err != nil {
		return failure("%v", err)
	}
	done := "done"
	task, err := e.projects.UpdateTask(ctx, inv.tenantID, id, store.TaskUpdate{Status: &done})
	if err == store.ErrNotFound {
		return failure("task %s not found", id)
	}
	if err != nil {
		return failure("failed to complete task: %v", err)
	}
	return success(map[string]any{"task": task})
}

func (e *Executor) listTasks(ctx context.Context, inv invocation, params map[string]any) Result {
	projectID, err := stringParam(params, "project_id")
	if err != nil {
		return failure("%v", err)
	}
	tasks, err := e.projects.ListTasks(ctx, inv.tenantID, projectID)
	if err != nil {
		return failure("failed to list tasks: %v", err)
	}
	return success(map[string]any{"tasks": tasks, "count": len(tasks)})
}

func (e *Executor) createSubtask(ctx context.Context, inv invocation, params map[string]any) Result {
	taskID, err := stringParam(params, "task_id")
	if err != nil {
		return failure("%v", err)
	}
	name, err := stringParam(params, "name")
	if err != nil {
		return failure("%v", err)
	}
	subtask := &models.Subtask{
		ID:        uuid.NewString(),
		TenantID:  inv.tenantID,
		TaskID:    taskID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.projects.CreateSubtask(ctx, subtask); err != nil {
		return failure("failed to create subtask: %v", err)
	}
	return success(map[string]any{"subtask": subtask})
}

func (e *Executor) completeSubtask(ctx context.Context, inv invocation, params map[string]any) Result {
	id, err := stringParam(params, "subtask_id")
	if err != nil {
		return failure("%v", err)
	}
	done, err := e.projects.CompleteSubtask(ctx, inv.tenantID, id)
	if err != nil {
		return failure("failed to complete subtask: %v", err)
	}
	if !done {
		return failure("subtask %s not found", id)
	}
	return success(map[string]any{"completed": id})
}

func (e *Executor) createChecklist(ctx context.Context, inv invocation, params map[string]any) Result {
	taskID, err := stringParam(params, "task_id")
	if err != nil {
		return failure("%v", err)
	}
	name, err := stringParam(params, "name")
	if err != nil {
		return failure("%v", err)
	}
	checklist := &models.Checklist{
		ID:        uuid.NewString(),
		TenantID:  inv.tenantID,
		TaskID:    taskID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.projects.CreateChecklist(ctx, checklist); err != nil {
		return failure("failed to create checklist: %v", err)
	}
	return success(map[string]any{"checklist": checklist})
}

func (e *Executor) addChecklistItem(ctx context.Context, inv invocation, params map[string]any) Result {
	checklistID, err := stringParam(params, "checklist_id")
	if err != nil {
		return failure("%v", err)
	}
	content, err := stringParam(params, "content")
	if err != nil {
		return failure("%v", err)
	}
	item := &models.ChecklistItem{
		ID:          uuid.NewString(),
		TenantID:    inv.tenantID,
		ChecklistID: checklistID,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.projects.AddChecklistItem(ctx, item); err != nil {
		return failure("failed to add checklist item: %v", err)
	}
	return success(map[string]any{"item": item})
}

func (e *Executor) addDependency(ctx context.Context, inv invocation, params map[string]any) Result {
	taskID, err := stringParam(params, "task_id")
	if err != nil {
		return failure("%v", err)
	}
	dependsOn, err := stringParam(params, "depends_on")
	if err != nil {
		return failure("%v", err)
	}
	if taskID == dependsOn {
		return failure("a task cannot depend on itself")
	}
	dependency := &models.TaskDependency{
		ID:        uuid.NewString(),
		TenantID:  inv.tenantID,
		TaskID:    taskID,
		DependsOn: dependsOn,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.projects.AddDependency(ctx, dependency); err != nil {
		return failure("failed to add dependency: %v", err)
	}
	return success(map[string]any{"dependency": dependency})
}

func stringParam(params map[string]any, key string) (string, error) {
	value, ok := params[key].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("missing required parameter %q", key)
	}
	return value, nil
}

func optionalString(params map[string]any, key string) string {
	value, _ := params[key].(string)
	return value
}

func optionalStringPtr(params map[string]any, key string) *string {
	value, ok := params[key].(string)
	if !ok {
		return nil
	}
	return &value
}
