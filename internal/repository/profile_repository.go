package repository

import (
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/adpulse/go-expiry-service/internal/domain"
	apperrors "github.com/adpulse/go-expiry-service/internal/shared/errors"
	"github.com/adpulse/go-expiry-service/internal/shared/logger"
	"github.com/adpulse/go-expiry-service/internal/store"
)

const profilesFile = "config/profiles.json"

// ProfileRepository manages the persisted notification profiles. Malformed
// cadences are rejected here, at save time, so the evaluator never has to
// defend against them.
type ProfileRepository struct {
	store    *store.Store
	validate *validator.Validate
	log      *logger.Logger
}

// NewProfileRepository creates a new repository
func NewProfileRepository(s *store.Store, log *logger.Logger) *ProfileRepository {
	return &ProfileRepository{
		store:    s,
		validate: validator.New(),
		log:      log,
	}
}

// List returns every notification profile.
func (r *ProfileRepository) List() []domain.NotificationProfile {
	var profiles []domain.NotificationProfile
	r.store.Read(profilesFile, &profiles)
	return profiles
}

// Get returns one profile by id.
func (r *ProfileRepository) Get(id string) (domain.NotificationProfile, error) {
	for _, p := range r.List() {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.NotificationProfile{}, apperrors.NewNotFoundError("profile not found", nil)
}

// Save validates and upserts a profile, assigning an id to new ones.
func (r *ProfileRepository) Save(p domain.NotificationProfile) (domain.NotificationProfile, error) {
	if err := r.validate.Struct(p); err != nil {
		return domain.NotificationProfile{}, apperrors.NewValidationError("invalid notification profile", err)
	}
	if err := validateCadence(p.Cadence); err != nil {
		return domain.NotificationProfile{}, err
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	err := store.Mutate(r.store, profilesFile, func(profiles []domain.NotificationProfile) ([]domain.NotificationProfile, error) {
		for i := range profiles {
			if profiles[i].ID == p.ID {
				profiles[i] = p
				return profiles, nil
			}
		}
		return append(profiles, p), nil
	})
	if err != nil {
		return domain.NotificationProfile{}, err
	}
	r.log.Info("Notification profile saved", "id", p.ID, "name", p.Name)
	return p, nil
}

// Delete removes one profile by id.
func (r *ProfileRepository) Delete(id string) error {
	return store.Mutate(r.store, profilesFile, func(profiles []domain.NotificationProfile) ([]domain.NotificationProfile, error) {
		for i := range profiles {
			if profiles[i].ID == id {
				return append(profiles[:i], profiles[i+1:]...), nil
			}
		}
		return nil, apperrors.NewNotFoundError("profile not found", nil)
	})
}

// validateCadence enforces a non-empty set of distinct, non-negative day
// offsets.
func validateCadence(c domain.Cadence) error {
	if len(c.DaysBefore) == 0 {
		return apperrors.NewValidationError("cadence must contain at least one day offset", nil)
	}
	seen := make(map[int]struct{}, len(c.DaysBefore))
	for _, d := range c.DaysBefore {
		if d < 0 {
			return apperrors.NewValidationError("cadence offsets must be non-negative", nil)
		}
		if _, dup := seen[d]; dup {
			return apperrors.NewValidationError("cadence offsets must be distinct", nil)
		}
		seen[d] = struct{}{}
	}
	return nil
}
