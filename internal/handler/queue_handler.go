package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adpulse/go-expiry-service/internal/domain"
	"github.com/adpulse/go-expiry-service/internal/metrics"
	"github.com/adpulse/go-expiry-service/internal/repository"
	"github.com/adpulse/go-expiry-service/internal/shared/errors"
	"github.com/adpulse/go-expiry-service/internal/shared/logger"
)

// QueueHandler handles HTTP requests for the delivery queue.
type QueueHandler struct {
	queue *repository.QueueRepository
	log   *logger.Logger
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(queue *repository.QueueRepository, log *logger.Logger) *QueueHandler {
	return &QueueHandler{
		queue: queue,
		log:   log,
	}
}

// GetQueue returns the queue state including the pause flag.
func (h *QueueHandler) GetQueue(c *gin.Context) {
	c.JSON(http.StatusOK, h.queue.State())
}

// TogglePause flips the queue's pause flag.
func (h *QueueHandler) TogglePause(c *gin.Context) {
	paused, err := h.queue.TogglePause()
	if err != nil {
		h.log.Error("Failed to toggle queue pause", "error", err)
		respondError(c, err)
		return
	}
	h.log.Info("Queue pause toggled", "paused", paused)
	c.JSON(http.StatusOK, gin.H{"paused": paused})
}

// CancelItem removes one queued delivery task. Cancelling an absent item
// is a no-op.
func (h *QueueHandler) CancelItem(c *gin.Context) {
	var req domain.QueueCancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	if err := h.queue.Cancel(req.ID); err != nil {
		h.log.Error("Failed to cancel queue item", "error", err, "id", req.ID)
		respondError(c, err)
		return
	}
	h.updateGauge()
	c.JSON(http.StatusOK, gin.H{"message": "Item cancelled"})
}

// ClearQueue drops all queued tasks, keeping the pause flag as is.
func (h *QueueHandler) ClearQueue(c *gin.Context) {
	if err := h.queue.Clear(); err != nil {
		h.log.Error("Failed to clear queue", "error", err)
		respondError(c, err)
		return
	}
	h.updateGauge()
	c.JSON(http.StatusOK, gin.H{"message": "Queue cleared"})
}

func (h *QueueHandler) updateGauge() {
	metrics.QueueSize.Set(float64(len(h.queue.State().Items)))
}
