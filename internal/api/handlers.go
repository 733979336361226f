package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"agentsched/internal/models"
	"agentsched/internal/scheduler"
	"agentsched/internal/state"
	"agentsched/internal/store"
)

type createTaskRequest struct {
	AgentID     string             `json:"agent_id"`
	Name        string             `json:"name" binding:"required"`
	Description string             `json:"description"`
	ToolName    string             `json:"tool_name" binding:"required"`
	ToolParams  map[string]any     `json:"tool_params"`
	Schedule    models.Schedule    `json:"schedule" binding:"required"`
	Enabled     *bool              `json:"enabled"`
	OnComplete  *models.OnComplete `json:"on_complete"`
}

type updateTaskRequest struct {
	Name        *string            `json:"name"`
	Description *string            `json:"description"`
	ToolName    *string            `json:"tool_name"`
	ToolParams  map[string]any     `json:"tool_params"`
	Schedule    *models.Schedule   `json:"schedule"`
	Enabled     *bool              `json:"enabled"`
	OnComplete  *models.OnComplete `json:"on_complete"`
}

func (s *Server) createTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := s.engine.CreateTask(c.Request.Context(), scheduler.CreateTaskInput{
		TenantID:    tenantID(c),
		AgentID:     req.AgentID,
		Name:        req.Name,
		Description: req.Description,
		ToolName:    req.ToolName,
		ToolParams:  req.ToolParams,
		Schedule:    req.Schedule,
		Enabled:     req.Enabled,
		OnComplete:  req.OnComplete,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (s *Server) listTasks(c *gin.Context) {
	filter := store.TaskFilter{
		Limit: queryInt(c, "limit", 50),
		Skip:  queryInt(c, "skip", 0),
	}
	if agent := c.Query("agent_id"); agent != "" {
		filter.AgentID = &agent
	}
	if raw := c.Query("enabled"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "enabled must be a boolean"})
			return
		}
		filter.Enabled = &enabled
	}

	page, err := s.engine.ListTasks(c.Request.Context(), tenantID(c), filter)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) getTask(c *gin.Context) {
	task, err := s.engine.GetTask(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if task == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) updateTask(c *gin.Context) {
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := s.engine.UpdateTask(c.Request.Context(), tenantID(c), c.Param("id"), scheduler.UpdateTaskInput{
		Name:        req.Name,
		Description: req.Description,
		ToolName:    req.ToolName,
		ToolParams:  req.ToolParams,
		Schedule:    req.Schedule,
		Enabled:     req.Enabled,
		OnComplete:  req.OnComplete,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if task == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) deleteTask(c *gin.Context) {
	deleted, err := s.engine.DeleteTask(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// runTask triggers a synchronous execution. The execution outcome, including
// failed and skipped, is a 200 body; only a missing task is a 404.
func (s *Server) runTask(c *gin.Context) {
	execution, err := s.engine.RunTaskNow(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, scheduler.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, execution)
}

func (s *Server) enableTask(c *gin.Context) {
	s.toggleTask(c, true)
}

func (s *Server) disableTask(c *gin.Context) {
	s.toggleTask(c, false)
}

func (s *Server) toggleTask(c *gin.Context, enabled bool) {
	var (
		task *models.ScheduledTask
		err  error
	)
	if enabled {
		task, err = s.engine.EnableTask(c.Request.Context(), tenantID(c), c.Param("id"))
	} else {
		task, err = s.engine.DisableTask(c.Request.Context(), tenantID(c), c.Param("id"))
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if task == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) listTaskExecutions(c *gin.Context) {
	task, err := s.engine.GetTask(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if task == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}

	page, err := s.engine.GetTaskExecutions(c.Request.Context(), tenantID(c), task.ID, queryInt(c, "limit", 50), queryInt(c, "skip", 0))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) listAllExecutions(c *gin.Context) {
	filter := store.ExecutionFilter{
		Limit: queryInt(c, "limit", 50),
		Skip:  queryInt(c, "skip", 0),
	}
	if raw := c.Query("status"); raw != "" {
		status := state.ExecutionStatus(raw)
		if !state.IsValid(status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
			return
		}
		filter.Status = &status
	}

	page, err := s.engine.GetAllExecutions(c.Request.Context(), tenantID(c), filter)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) schedulerStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Stats())
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
