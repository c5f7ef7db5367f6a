package service

import (
	stderrors "errors"
	"math"
	"strings"
	"time"

	"github.com/adpulse/go-expiry-service/internal/domain"
	"github.com/adpulse/go-expiry-service/internal/shared/logger"
)

// ErrMissingTimestamp signals a principal with neither a last-password-set
// nor a creation timestamp; there is no anchor to compute expiry from.
var ErrMissingTimestamp = stderrors.New("principal has no password-set or creation timestamp")

// dayMillis is the fixed bucket the day arithmetic truncates into.
const dayMillis = 86_400_000

// ExpiryService derives password-expiry state from raw directory
// attributes.
type ExpiryService struct {
	log *logger.Logger
}

// NewExpiryService creates a new expiry service
func NewExpiryService(log *logger.Logger) *ExpiryService {
	return &ExpiryService{log: log}
}

// Normalize computes the expiry record for one principal. It is a pure
// function of (principal, expiryDays, now): no side effects, deterministic.
//
// Hybrid-synced accounts are always treated as expiring, even when the
// cloud policy string disables expiration, because their effective policy
// lives in the on-premises directory this service cannot see.
func (s *ExpiryService) Normalize(u domain.DirectoryUser, expiryDays int, now time.Time) (domain.ExpiryRecord, error) {
	lastSet, ok := domain.ParseTime(u.LastPasswordChangeDateTime)
	if !ok {
		lastSet, ok = domain.ParseTime(u.CreatedDateTime)
	}
	if !ok {
		return domain.ExpiryRecord{}, ErrMissingTimestamp
	}

	if expiryDays <= 0 {
		expiryDays = 90
	}

	never := strings.Contains(u.PasswordPolicies, domain.DisablePasswordExpirationPolicy) && !u.Hybrid()

	rec := domain.ExpiryRecord{
		LastSet:        lastSet,
		NeverExpires:   never,
		DaysSinceReset: int(math.Floor(float64(now.Sub(lastSet).Milliseconds()) / dayMillis)),
	}

	if never {
		rec.DaysRemaining = domain.NeverExpiresSentinel
		return rec, nil
	}

	expiry := lastSet.AddDate(0, 0, expiryDays)
	rec.ExpiryDate = &expiry
	rec.DaysRemaining = int(math.Ceil(float64(expiry.Sub(now).Milliseconds()) / dayMillis))
	return rec, nil
}

// Apply copies a computed record onto the principal's derived JSON fields.
func (s *ExpiryService) Apply(u *domain.DirectoryUser, rec domain.ExpiryRecord) {
	u.PasswordLastSetDateTime = rec.LastSet.UTC().Format(time.RFC3339)
	u.NeverExpires = rec.NeverExpires
	u.PasswordExpiresInDays = rec.DaysRemaining
	u.DaysSinceLastReset = rec.DaysSinceReset
	if rec.ExpiryDate != nil {
		formatted := rec.ExpiryDate.UTC().Format(time.RFC3339)
		u.PasswordExpiryDate = &formatted
	} else {
		u.PasswordExpiryDate = nil
	}
}

// NormalizeAll augments every principal with derived expiry state.
// Principals with no usable timestamp are dropped with a warning rather
// than failing the whole fetch.
func (s *ExpiryService) NormalizeAll(users []domain.DirectoryUser, expiryDays int, now time.Time) []domain.DirectoryUser {
	out := make([]domain.DirectoryUser, 0, len(users))
	for _, u := range users {
		rec, err := s.Normalize(u, expiryDays, now)
		if err != nil {
			s.log.Warn("Skipping principal without timestamps", "user", u.UserPrincipalName, "error", err)
			continue
		}
		s.Apply(&u, rec)
		out = append(out, u)
	}
	return out
}
