package service

import (
	"github.com/adpulse/go-expiry-service/internal/domain"
	"github.com/adpulse/go-expiry-service/internal/repository"
	"github.com/adpulse/go-expiry-service/internal/shared/logger"
)

// MatchPolicy controls how a remaining-day count is matched against the
// configured cadence offsets.
type MatchPolicy int

const (
	// MatchExact fires only when the remaining days equal a configured
	// offset. A user whose count jumps past an offset between polls (a
	// delayed sync going 15 to 6 with cadence {14,7,1}) is never notified
	// for the skipped offsets. This mirrors the historical behavior and is
	// the default.
	MatchExact MatchPolicy = iota
	// MatchAtMost fires at the largest configured offset that is >= the
	// remaining days and not yet served, catching skipped offsets.
	MatchAtMost
)

// CadenceService decides whether a reminder is due for a user under a
// profile's cadence, given the history of prior sends.
type CadenceService struct {
	policy MatchPolicy
	log    *logger.Logger
}

// NewCadenceService creates a new cadence service
func NewCadenceService(policy MatchPolicy, log *logger.Logger) *CadenceService {
	return &CadenceService{policy: policy, log: log}
}

// IsDue reports whether a reminder should fire today, and at which cadence
// offset. Never-expiring accounts are never due. sentLog is keyed with
// repository.SentKey; a triple already present suppresses the send.
//
// Malformed cadences are rejected at profile-save time, so offsets here are
// assumed distinct and non-negative.
func (s *CadenceService) IsDue(rec domain.ExpiryRecord, daysBefore []int, sentLog map[string]struct{}, profileID, userID string) (bool, int) {
	if rec.NeverExpires {
		return false, 0
	}

	switch s.policy {
	case MatchAtMost:
		// Largest unserved offset covering the remaining days wins, so a
		// jump from 15 to 6 against {14,7,1} still fires once, at 14.
		best := -1
		for _, offset := range daysBefore {
			if rec.DaysRemaining > offset {
				continue
			}
			if _, served := sentLog[repository.SentKey(profileID, userID, offset)]; served {
				continue
			}
			if offset > best {
				best = offset
			}
		}
		if best >= 0 {
			return true, best
		}
		return false, 0
	default:
		for _, offset := range daysBefore {
			if rec.DaysRemaining != offset {
				continue
			}
			if _, served := sentLog[repository.SentKey(profileID, userID, offset)]; served {
				return false, 0
			}
			return true, offset
		}
		return false, 0
	}
}
