package domain

import "testing"

func TestExpiryRecordClassification(t *testing.T) {
	tests := []struct {
		name     string
		rec      ExpiryRecord
		expired  bool
		critical bool
	}{
		{"already past expiry", ExpiryRecord{DaysRemaining: -3}, true, false},
		{"expires today", ExpiryRecord{DaysRemaining: 0}, true, false},
		{"last day of warning window", ExpiryRecord{DaysRemaining: 14}, false, true},
		{"just outside warning window", ExpiryRecord{DaysRemaining: 15}, false, false},
		{"one day left", ExpiryRecord{DaysRemaining: 1}, false, true},
		{"never expires trumps negative days", ExpiryRecord{NeverExpires: true, DaysRemaining: -3}, false, false},
		{"never expires sentinel", ExpiryRecord{NeverExpires: true, DaysRemaining: NeverExpiresSentinel}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Expired(); got != tt.expired {
				t.Errorf("Expired() = %v, want %v", got, tt.expired)
			}
			if got := tt.rec.Critical(); got != tt.critical {
				t.Errorf("Critical() = %v, want %v", got, tt.critical)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	users := []DirectoryUser{
		{PasswordExpiresInDays: -1},
		{PasswordExpiresInDays: 0},
		{PasswordExpiresInDays: 7},
		{PasswordExpiresInDays: 30},
		{NeverExpires: true, PasswordExpiresInDays: NeverExpiresSentinel},
	}

	got := Summarize(users)
	want := ExpirySummary{Total: 5, Expired: 2, Critical: 1, NeverExpires: 1}
	if got != want {
		t.Fatalf("Summarize() = %+v, want %+v", got, want)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	if got := Summarize(nil); got != (ExpirySummary{}) {
		t.Fatalf("Summarize(nil) = %+v, want zero summary", got)
	}
}
