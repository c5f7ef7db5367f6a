package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adpulse/go-expiry-service/internal/domain"
	"github.com/adpulse/go-expiry-service/internal/repository"
	"github.com/adpulse/go-expiry-service/internal/shared/errors"
	"github.com/adpulse/go-expiry-service/internal/shared/logger"
)

// ProfileHandler handles HTTP requests for notification profiles
type ProfileHandler struct {
	profiles *repository.ProfileRepository
	log      *logger.Logger
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profiles *repository.ProfileRepository, log *logger.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		log:      log,
	}
}

// GetProfiles lists all notification profiles.
func (h *ProfileHandler) GetProfiles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"profiles": h.profiles.List()})
}

// SaveProfile creates or updates a profile. Malformed cadences are
// rejected here, never at delivery time.
func (h *ProfileHandler) SaveProfile(c *gin.Context) {
	var profile domain.NotificationProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	saved, err := h.profiles.Save(profile)
	if err != nil {
		h.log.Warn("Profile rejected", "error", err, "name", profile.Name)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": saved})
}

// DeleteProfile removes a profile by ID.
func (h *ProfileHandler) DeleteProfile(c *gin.Context) {
	id := c.Param("id")
	if err := h.profiles.Delete(id); err != nil {
		h.log.Warn("Profile delete failed", "error", err, "id", id)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile deleted"})
}
