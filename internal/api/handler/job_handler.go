package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/jobstore/internal/api/dto"
	"github.com/cuongbtq/jobstore/internal/api/storage"
	"github.com/cuongbtq/jobstore/internal/domain"
	"github.com/cuongbtq/jobstore/internal/jobstore"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListJobs handles GET /api/v1/jobs
// Lists the loaded jobs in id order with cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}

	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	jobs := h.storage.ListJobs(storage.JobFilter{
		PageSize: req.PageSize,
		Cursor:   cursor,
	})

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobs))
	for i, job := range jobs {
		jobResponse[i] = dto.FromJob(job)
	}

	var nextCursor string
	if hasMore {
		nextCursor = EncodeJobCursor(&storage.JobCursor{AfterID: jobs[len(jobs)-1].ID})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := h.parseJobID(c)
	if !ok {
		return
	}

	job, err := h.storage.GetJobByID(jobID)
	if err != nil {
		h.writeError(c, "Failed to get job", err)
		return
	}

	c.JSON(http.StatusOK, dto.FromJob(job))
}

// ReloadJobs handles POST /api/v1/jobs/reload
// Rebuilds the in-memory job list from the table
func (h *JobHandler) ReloadJobs(c *gin.Context) {
	loaded, err := h.storage.Reload(c.Request.Context())
	if err != nil {
		h.writeError(c, "Failed to reload jobs", err)
		return
	}

	h.logger.Info("Jobs reloaded", slog.Int("count", loaded))

	c.JSON(http.StatusOK, dto.ReloadResponse{Loaded: loaded})
}

// DeleteJob handles DELETE /api/v1/jobs/:job_id
// Permanently deletes a job record
func (h *JobHandler) DeleteJob(c *gin.Context) {
	jobID, ok := h.parseJobID(c)
	if !ok {
		return
	}

	if err := h.storage.DeleteJob(c.Request.Context(), jobID); err != nil {
		h.writeError(c, "Failed to delete job", err)
		return
	}

	h.logger.Info("Job deleted", slog.Int64("job_id", jobID))

	c.Status(http.StatusNoContent)
}

func (h *JobHandler) parseJobID(c *gin.Context) (int64, bool) {
	raw := c.Param("job_id")

	jobID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || jobID <= 0 {
		h.logger.Error("Invalid job_id format", slog.String("job_id", raw))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a positive integer",
		})
		return 0, false
	}
	return jobID, true
}

// writeError maps the store's error taxonomy onto HTTP status codes
func (h *JobHandler) writeError(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, slog.String("error", err.Error()))

	var loadErr *jobstore.LoadError
	switch {
	case errors.As(err, &loadErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":   msg,
			"job_ids": loadErr.IDs(),
			"detail":  loadErr.Error(),
		})
	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job not found",
		})
	case errors.Is(err, domain.ErrStorageUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Job storage unavailable",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": msg,
		})
	}
}
