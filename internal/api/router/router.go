package router

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/jobstore/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint, reports the backing database
	r.GET("/health", func(c *gin.Context) {
		if err := deps.Storage.Ping(c.Request.Context()); err != nil {
			deps.Logger.Warn("Health check failed", slog.String("error", err.Error()))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"service": deps.Service,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": deps.Service,
			"store":   deps.Storage.Describe(),
		})
	})

	// Initialize job handler
	jobHandler := handler.NewJobHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			// GET /api/v1/jobs - List loaded jobs with pagination
			jobs.GET("", jobHandler.ListJobs)

			// POST /api/v1/jobs/reload - Reload jobs from the table
			jobs.POST("/reload", jobHandler.ReloadJobs)

			// GET /api/v1/jobs/:job_id - Get job details
			jobs.GET("/:job_id", jobHandler.GetJob)

			// DELETE /api/v1/jobs/:job_id - Delete a job
			jobs.DELETE("/:job_id", jobHandler.DeleteJob)
		}
	}

	return r
}
