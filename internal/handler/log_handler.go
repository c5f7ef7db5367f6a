package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adpulse/go-expiry-service/internal/shared/logger"
)

// LogHandler exposes the recent-log ring for the console panel.
type LogHandler struct {
	log *logger.Logger
}

// NewLogHandler creates a new log handler
func NewLogHandler(log *logger.Logger) *LogHandler {
	return &LogHandler{log: log}
}

// GetLogs returns the recent log entries, oldest first.
func (h *LogHandler) GetLogs(c *gin.Context) {
	entries := h.log.Recent()
	c.JSON(http.StatusOK, gin.H{"logs": entries, "count": len(entries)})
}
