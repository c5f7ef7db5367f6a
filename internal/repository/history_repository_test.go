package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/adpulse/go-expiry-service/internal/domain"
	"github.com/adpulse/go-expiry-service/internal/shared/logger"
)

func auditEntry(recipient string, status domain.AuditStatus, offset int) domain.AuditEntry {
	return domain.AuditEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Recipient: recipient,
		ProfileID: "profile-1",
		Offset:    offset,
		Status:    status,
	}
}

func TestListNewestFirst(t *testing.T) {
	repo := NewHistoryRepository(newTestStore(t), logger.NewLogger())

	for i := 0; i < 3; i++ {
		entry := auditEntry(fmt.Sprintf("user%d@example.com", i), domain.AuditStatusSent, 7)
		if err := repo.Append(entry); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got := repo.ListNewestFirst()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Recipient != "user2@example.com" {
		t.Errorf("newest first violated: got[0] = %s", got[0].Recipient)
	}
	if got[2].Recipient != "user0@example.com" {
		t.Errorf("oldest last violated: got[2] = %s", got[2].Recipient)
	}
}

func TestHistoryCapDropsOldest(t *testing.T) {
	repo := NewHistoryRepository(newTestStore(t), logger.NewLogger())

	for i := 0; i < historyCap+1; i++ {
		entry := auditEntry(fmt.Sprintf("user%d@example.com", i), domain.AuditStatusSent, 14)
		if err := repo.Append(entry); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got := repo.ListNewestFirst()
	if len(got) != historyCap {
		t.Fatalf("len = %d, want %d", len(got), historyCap)
	}
	// Entry #0 must have been dropped; the most recent must survive.
	if got[0].Recipient != fmt.Sprintf("user%d@example.com", historyCap) {
		t.Errorf("newest entry = %s", got[0].Recipient)
	}
	if got[len(got)-1].Recipient != "user1@example.com" {
		t.Errorf("oldest retained = %s, want user1@example.com", got[len(got)-1].Recipient)
	}
}

func TestSentLogOnlyIncludesSuccesses(t *testing.T) {
	repo := NewHistoryRepository(newTestStore(t), logger.NewLogger())

	repo.Append(auditEntry("ok@example.com", domain.AuditStatusSent, 7))
	repo.Append(auditEntry("bad@example.com", domain.AuditStatusFailed, 7))

	sent := repo.SentLog()
	if _, ok := sent[SentKey("profile-1", "ok@example.com", 7)]; !ok {
		t.Error("successful send missing from sent log")
	}
	if _, ok := sent[SentKey("profile-1", "bad@example.com", 7)]; ok {
		t.Error("failed send must not appear in sent log")
	}
}

func TestSentLogKeyedByOffset(t *testing.T) {
	repo := NewHistoryRepository(newTestStore(t), logger.NewLogger())
	repo.Append(auditEntry("user@example.com", domain.AuditStatusSent, 14))

	sent := repo.SentLog()
	if _, ok := sent[SentKey("profile-1", "user@example.com", 7)]; ok {
		t.Error("a send at offset 14 must not satisfy offset 7")
	}
}
