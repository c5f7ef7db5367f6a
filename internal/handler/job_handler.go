package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adpulse/go-expiry-service/internal/domain"
	"github.com/adpulse/go-expiry-service/internal/repository"
	"github.com/adpulse/go-expiry-service/internal/scheduler"
	"github.com/adpulse/go-expiry-service/internal/shared/errors"
	"github.com/adpulse/go-expiry-service/internal/shared/logger"
)

// JobHandler handles HTTP requests for delivery jobs and their audit trail.
type JobHandler struct {
	job     scheduler.JobRunner
	history *repository.HistoryRepository
	log     *logger.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(job scheduler.JobRunner, history *repository.HistoryRepository, log *logger.Logger) *JobHandler {
	return &JobHandler{
		job:     job,
		history: history,
		log:     log,
	}
}

// RunJob triggers a delivery job. A start while another job is in flight
// answers 409 without queueing.
func (h *JobHandler) RunJob(c *gin.Context) {
	var req domain.RunJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	result, err := h.job.Run(c.Request.Context(), req)
	if err != nil {
		h.log.Warn("Job refused", "error", err, "mode", string(req.Mode))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetHistory returns the audit trail, newest first.
func (h *JobHandler) GetHistory(c *gin.Context) {
	entries := h.history.ListNewestFirst()
	c.JSON(http.StatusOK, gin.H{"history": entries, "count": len(entries)})
}
