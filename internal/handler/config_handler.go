package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adpulse/go-expiry-service/internal/domain"
	"github.com/adpulse/go-expiry-service/internal/repository"
	"github.com/adpulse/go-expiry-service/internal/service"
	"github.com/adpulse/go-expiry-service/internal/shared/errors"
	"github.com/adpulse/go-expiry-service/internal/shared/logger"
)

// GraphClient is the directory surface the handlers consume; *graph.Client
// satisfies it.
type GraphClient interface {
	service.DirectoryClient
	Configured() bool
	ExpiryDays() int
	Token(ctx context.Context) (string, error)
	CheckUserScope(ctx context.Context) error
	CheckGroupScope(ctx context.Context) error
}

// GraphFactory builds a directory client for the given credentials.
type GraphFactory func(cfg domain.GraphConfig) GraphClient

// SMTPVerifier probes relay reachability and authentication.
type SMTPVerifier interface {
	Verify() error
}

// VerifierFactory builds an SMTP verifier for the given relay settings.
type VerifierFactory func(cfg domain.SMTPConfig) SMTPVerifier

// ConfigHandler handles HTTP requests for environment configuration
type ConfigHandler struct {
	envs     *repository.EnvironmentRepository
	graph    GraphFactory
	verifier VerifierFactory
	log      *logger.Logger
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(envs *repository.EnvironmentRepository, graph GraphFactory, verifier VerifierFactory, log *logger.Logger) *ConfigHandler {
	return &ConfigHandler{
		envs:     envs,
		graph:    graph,
		verifier: verifier,
		log:      log,
	}
}

// sanitize strips credentials before an environment leaves the API.
func sanitize(env domain.EnvironmentProfile) domain.EnvironmentProfile {
	env.Graph.ClientSecret = ""
	env.SMTP.Password = ""
	return env
}

// GetConfig returns the active environment with credentials redacted.
func (h *ConfigHandler) GetConfig(c *gin.Context) {
	active := h.envs.GetActive()
	client := h.graph(active.Graph)

	c.JSON(http.StatusOK, gin.H{
		"environment":     sanitize(active),
		"graphConfigured": client.Configured(),
		"expiryDays":      client.ExpiryDays(),
	})
}

// GetEnvironments lists all environments with credentials redacted.
func (h *ConfigHandler) GetEnvironments(c *gin.Context) {
	envs := h.envs.GetAll()
	out := make([]domain.EnvironmentProfile, 0, len(envs))
	for _, env := range envs {
		out = append(out, sanitize(env))
	}
	c.JSON(http.StatusOK, gin.H{"environments": out})
}

// MutateEnvironments adds, switches, or updates an environment.
func (h *ConfigHandler) MutateEnvironments(c *gin.Context) {
	var req domain.EnvironmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	switch req.Action {
	case domain.EnvironmentActionAdd:
		if req.Name == "" {
			c.JSON(http.StatusBadRequest, errors.NewValidationError("Name is required", nil))
			return
		}
		env, err := h.envs.Add(req.Name)
		if err != nil {
			h.log.Error("Failed to add environment", "error", err, "name", req.Name)
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"environment": sanitize(env)})

	case domain.EnvironmentActionSwitch:
		if err := h.envs.Switch(req.ID); err != nil {
			h.log.Error("Failed to switch environment", "error", err, "id", req.ID)
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"environment": sanitize(h.envs.GetActive())})

	case domain.EnvironmentActionUpdate:
		if err := h.envs.Update(req.ID, req.Graph, req.SMTP); err != nil {
			h.log.Error("Failed to update environment", "error", err, "id", req.ID)
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Environment updated"})

	default:
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Unknown action", nil))
	}
}

// ValidatePermissions probes Graph connectivity and the granted scopes,
// either for ad-hoc credentials or a stored environment, and persists the
// outcome. Any failed check answers 401 with the per-check results and the
// provider's error text.
func (h *ConfigHandler) ValidatePermissions(c *gin.Context) {
	var req domain.ValidatePermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	cfg := domain.GraphConfig{
		TenantID:     req.TenantID,
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
	}
	if req.EnvID != "" {
		for _, env := range h.envs.GetAll() {
			if env.ID == req.EnvID {
				cfg = env.Graph
				break
			}
		}
	}

	client := h.graph(cfg)
	checks := domain.PermissionChecks{}
	var detail string

	ctx := c.Request.Context()
	if _, err := client.Token(ctx); err != nil {
		detail = err.Error()
		h.log.Warn("Permission probe failed at token", "error", err)
	} else {
		checks.Auth = true
		checks.UserScope = client.CheckUserScope(ctx) == nil
		checks.GroupScope = client.CheckGroupScope(ctx) == nil
	}

	if err := h.envs.SaveValidation(req.EnvID, checks); err != nil {
		h.log.Error("Failed to persist validation result", "error", err)
	}

	success := checks.Auth && checks.UserScope && checks.GroupScope
	status := http.StatusOK
	if !success {
		status = http.StatusUnauthorized
	}
	c.JSON(status, gin.H{
		"success": success,
		"checks":  checks,
		"message": detail,
	})
}

// TestSMTP probes the relay. Settings in the body override the active
// environment's, so unsaved relay settings can be exercised.
func (h *ConfigHandler) TestSMTP(c *gin.Context) {
	cfg := h.envs.GetActive().SMTP
	var override domain.SMTPConfig
	if err := c.ShouldBindJSON(&override); err == nil && override.Host != "" {
		cfg = override
	}

	if err := h.verifier(cfg).Verify(); err != nil {
		h.log.Warn("SMTP probe failed", "error", err, "host", cfg.Host)
		c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
