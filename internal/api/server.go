// Package api exposes the scheduler over HTTP. Routing is gin; the tenant is
// resolved by middleware from the X-Tenant-ID header, authentication itself
// being the gateway's job.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agentsched/internal/metrics"
	"agentsched/internal/scheduler"
)

const tenantKey = "tenant_id"

type Server struct {
	engine *scheduler.Engine
}

func NewServer(engine *scheduler.Engine) *Server {
	return &Server{engine: engine}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), metricsMiddleware())

	router.GET("/healthz", s.healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authed := router.Group("/", tenantMiddleware())
	{
		authed.POST("/scheduled-tasks", s.createTask)
		authed.GET("/scheduled-tasks", s.listTasks)
		authed.GET("/scheduled-tasks/:id", s.getTask)
		authed.PATCH("/scheduled-tasks/:id", s.updateTask)
		authed.DELETE("/scheduled-tasks/:id", s.deleteTask)
		authed.POST("/scheduled-tasks/:id/run", s.runTask)
		authed.POST("/scheduled-tasks/:id/enable", s.enableTask)
		authed.POST("/scheduled-tasks/:id/disable", s.disableTask)
		authed.GET("/scheduled-tasks/:id/executions", s.listTaskExecutions)
		authed.GET("/scheduled-task-executions", s.listAllExecutions)
		authed.GET("/scheduler/stats", s.schedulerStats)
	}
	return router
}

func tenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader("X-Tenant-ID")
		if tenantID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "X-Tenant-ID header is required"})
			return
		}
		c.Set(tenantKey, tenantID)
		c.Next()
	}
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

func tenantID(c *gin.Context) string {
	return c.GetString(tenantKey)
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "scheduler_running": s.engine.Stats().Running})
}
