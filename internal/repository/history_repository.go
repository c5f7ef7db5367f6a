package repository

import (
	"fmt"

	"github.com/adpulse/go-expiry-service/internal/domain"
	"github.com/adpulse/go-expiry-service/internal/shared/logger"
	"github.com/adpulse/go-expiry-service/internal/store"
)

const historyFile = "state/history.json"

// historyCap bounds the audit log to the most recent entries.
const historyCap = 2000

// HistoryRepository manages the append-only delivery audit log.
type HistoryRepository struct {
	store *store.Store
	log   *logger.Logger
}

// NewHistoryRepository creates a new repository
func NewHistoryRepository(s *store.Store, log *logger.Logger) *HistoryRepository {
	return &HistoryRepository{store: s, log: log}
}

// Append records one delivery attempt. Entries are never mutated afterwards;
// the log is capped to the most recent entries on write, dropping the oldest.
func (r *HistoryRepository) Append(entry domain.AuditEntry) error {
	return store.Mutate(r.store, historyFile, func(entries []domain.AuditEntry) ([]domain.AuditEntry, error) {
		entries = append(entries, entry)
		if len(entries) > historyCap {
			entries = entries[len(entries)-historyCap:]
		}
		return entries, nil
	})
}

// ListNewestFirst returns the audit log, most recent entry first.
func (r *HistoryRepository) ListNewestFirst() []domain.AuditEntry {
	var entries []domain.AuditEntry
	r.store.Read(historyFile, &entries)
	out := make([]domain.AuditEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
	}
	return out
}

// SentLog builds the set of (profile, recipient, offset) triples that have a
// successful send on record. The cadence evaluator consults it to avoid
// re-notifying a user at an offset already served.
func (r *HistoryRepository) SentLog() map[string]struct{} {
	var entries []domain.AuditEntry
	r.store.Read(historyFile, &entries)
	sent := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.Status != domain.AuditStatusSent {
			continue
		}
		sent[SentKey(e.ProfileID, e.Recipient, e.Offset)] = struct{}{}
	}
	return sent
}

// SentKey is the canonical sent-log key for one (profile, user, offset).
func SentKey(profileID, recipient string, offset int) string {
	return fmt.Sprintf("%s|%s|%d", profileID, recipient, offset)
}
