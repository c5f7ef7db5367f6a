package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adpulse/go-expiry-service/internal/domain"
	"github.com/adpulse/go-expiry-service/internal/repository"
	"github.com/adpulse/go-expiry-service/internal/service"
	"github.com/adpulse/go-expiry-service/internal/shared/errors"
	"github.com/adpulse/go-expiry-service/internal/shared/logger"
)

// DirectoryHandler handles HTTP requests against the directory.
type DirectoryHandler struct {
	envs   *repository.EnvironmentRepository
	graph  GraphFactory
	expiry *service.ExpiryService
	log    *logger.Logger
}

// NewDirectoryHandler creates a new directory handler
func NewDirectoryHandler(envs *repository.EnvironmentRepository, graph GraphFactory, expiry *service.ExpiryService, log *logger.Logger) *DirectoryHandler {
	return &DirectoryHandler{
		envs:   envs,
		graph:  graph,
		expiry: expiry,
		log:    log,
	}
}

// GetUsers returns the directory with derived expiry fields. Without
// credentials the answer is an empty list, not an error, so the UI can
// render before the environment is configured.
func (h *DirectoryHandler) GetUsers(c *gin.Context) {
	client := h.graph(h.envs.GetActive().Graph)
	if !client.Configured() {
		c.JSON(http.StatusOK, gin.H{"users": []domain.DirectoryUser{}, "count": 0, "stats": domain.ExpirySummary{}})
		return
	}

	users, err := client.ListUsers(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to list users", "error", err)
		respondError(c, err)
		return
	}

	users = h.expiry.NormalizeAll(users, client.ExpiryDays(), time.Now())
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users), "stats": domain.Summarize(users)})
}

// VerifyGroup resolves a group name to its transitive member count.
func (h *DirectoryHandler) VerifyGroup(c *gin.Context) {
	h.verifyGroup(c, false)
}

// VerifyGroupDetailed resolves a group name to its transitive members with
// expiry fields computed.
func (h *DirectoryHandler) VerifyGroupDetailed(c *gin.Context) {
	h.verifyGroup(c, true)
}

func (h *DirectoryHandler) verifyGroup(c *gin.Context, detailed bool) {
	var req domain.VerifyGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	client := h.graph(h.envs.GetActive().Graph)
	ctx := c.Request.Context()

	group, err := client.FindGroupByName(ctx, req.Name)
	if err != nil {
		h.log.Warn("Group lookup failed", "error", err, "name", req.Name)
		respondError(c, err)
		return
	}

	members, err := client.ListTransitiveMembers(ctx, group.ID)
	if err != nil {
		h.log.Error("Failed to list group members", "error", err, "group", group.ID)
		respondError(c, err)
		return
	}

	resp := domain.VerifyGroupResponse{
		Success: true,
		ID:      group.ID,
		Count:   len(members),
	}
	if detailed {
		expiryDays := req.ExpiryDays
		if expiryDays <= 0 {
			expiryDays = client.ExpiryDays()
		}
		resp.Members = h.expiry.NormalizeAll(members, expiryDays, time.Now())
	}
	c.JSON(http.StatusOK, resp)
}
