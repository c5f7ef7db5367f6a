package repository

import (
	"time"

	"github.com/google/uuid"

	"github.com/adpulse/go-expiry-service/internal/domain"
	apperrors "github.com/adpulse/go-expiry-service/internal/shared/errors"
	"github.com/adpulse/go-expiry-service/internal/shared/logger"
	"github.com/adpulse/go-expiry-service/internal/store"
)

const environmentsFile = "config/environments.json"

// EnvironmentRepository manages the persisted environment collection.
// Invariant: exactly one environment carries active=true; every mutation
// that touches the flag rewrites the whole collection atomically.
type EnvironmentRepository struct {
	store *store.Store
	log   *logger.Logger
}

// NewEnvironmentRepository creates a new repository
func NewEnvironmentRepository(s *store.Store, log *logger.Logger) *EnvironmentRepository {
	return &EnvironmentRepository{store: s, log: log}
}

func defaultEnvironment() domain.EnvironmentProfile {
	return domain.EnvironmentProfile{
		ID:     "default",
		Name:   "Global Controller",
		Active: true,
		Graph:  domain.GraphConfig{DefaultExpiryDays: 90},
		SMTP:   domain.SMTPConfig{Port: 587, Secure: true},
	}
}

// GetAll returns every environment profile.
func (r *EnvironmentRepository) GetAll() []domain.EnvironmentProfile {
	var envs []domain.EnvironmentProfile
	r.store.Read(environmentsFile, &envs)
	return envs
}

// GetActive returns the active environment, seeding a default one when the
// collection is empty so read paths always have a configuration to work with.
func (r *EnvironmentRepository) GetActive() domain.EnvironmentProfile {
	envs := r.GetAll()
	for _, e := range envs {
		if e.Active {
			return e
		}
	}
	if len(envs) > 0 {
		return envs[0]
	}

	env := defaultEnvironment()
	if err := r.store.Write(environmentsFile, []domain.EnvironmentProfile{env}); err != nil {
		r.log.Error("Failed to seed default environment", "error", err)
	}
	return env
}

// Add creates a new environment and makes it the active one.
func (r *EnvironmentRepository) Add(name string) (domain.EnvironmentProfile, error) {
	env := domain.EnvironmentProfile{
		ID:     uuid.New().String(),
		Name:   name,
		Active: true,
		Graph:  domain.GraphConfig{DefaultExpiryDays: 90},
		SMTP:   domain.SMTPConfig{Port: 587, Secure: true},
	}
	err := store.Mutate(r.store, environmentsFile, func(envs []domain.EnvironmentProfile) ([]domain.EnvironmentProfile, error) {
		for i := range envs {
			envs[i].Active = false
		}
		return append(envs, env), nil
	})
	if err != nil {
		return domain.EnvironmentProfile{}, err
	}
	r.log.Info("Environment added", "id", env.ID, "name", name)
	return env, nil
}

// Switch makes the environment with the given id the single active one.
func (r *EnvironmentRepository) Switch(id string) error {
	return store.Mutate(r.store, environmentsFile, func(envs []domain.EnvironmentProfile) ([]domain.EnvironmentProfile, error) {
		found := false
		for i := range envs {
			envs[i].Active = envs[i].ID == id
			if envs[i].Active {
				found = true
			}
		}
		if !found {
			return nil, apperrors.NewNotFoundError("environment not found", nil)
		}
		return envs, nil
	})
}

// Update replaces the Graph and/or SMTP settings of one environment.
func (r *EnvironmentRepository) Update(id string, graph *domain.GraphConfig, smtp *domain.SMTPConfig) error {
	return store.Mutate(r.store, environmentsFile, func(envs []domain.EnvironmentProfile) ([]domain.EnvironmentProfile, error) {
		for i := range envs {
			if envs[i].ID != id {
				continue
			}
			if graph != nil {
				envs[i].Graph = *graph
			}
			if smtp != nil {
				envs[i].SMTP = *smtp
			}
			return envs, nil
		}
		return nil, apperrors.NewNotFoundError("environment not found", nil)
	})
}

// SaveValidation persists the latest permission probe result. With an empty
// id the active environment is updated.
func (r *EnvironmentRepository) SaveValidation(id string, checks domain.PermissionChecks) error {
	now := time.Now().UTC().Format(time.RFC3339)
	checks.Timestamp = &now
	return store.Mutate(r.store, environmentsFile, func(envs []domain.EnvironmentProfile) ([]domain.EnvironmentProfile, error) {
		target := -1
		for i := range envs {
			if envs[i].ID == id {
				target = i
				break
			}
			if id == "" && envs[i].Active && target == -1 {
				target = i
			}
		}
		if target == -1 && len(envs) > 0 {
			target = 0
		}
		if target == -1 {
			return envs, nil
		}
		envs[target].LastValidation = checks
		return envs, nil
	})
}
