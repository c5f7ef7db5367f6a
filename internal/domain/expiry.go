package domain

import "time"

// ExpiryRecord is the normalized password-expiry state derived from a
// directory principal. It is a point-in-time snapshot: every field depends
// on the clock supplied at computation time and must not be cached.
type ExpiryRecord struct {
	LastSet        time.Time
	NeverExpires   bool
	ExpiryDate     *time.Time
	DaysRemaining  int
	DaysSinceReset int
}

// Expired reports whether the password is already past its expiry date.
// Negative remaining days plus a real expiry policy is the sole condition.
func (r ExpiryRecord) Expired() bool {
	return !r.NeverExpires && r.DaysRemaining <= 0
}

// Critical reports whether the password enters the warning window (at most
// 14 days left but not yet expired).
func (r ExpiryRecord) Critical() bool {
	return !r.NeverExpires && r.DaysRemaining > 0 && r.DaysRemaining <= 14
}

// ExpirySummary is the directory-level classification rollup.
type ExpirySummary struct {
	Total        int `json:"total"`
	Expired      int `json:"expired"`
	Critical     int `json:"critical"`
	NeverExpires int `json:"neverExpires"`
}

// Summarize classifies principals that already carry derived expiry
// fields. Never-expiring accounts count only toward NeverExpires.
func Summarize(users []DirectoryUser) ExpirySummary {
	s := ExpirySummary{Total: len(users)}
	for _, u := range users {
		rec := ExpiryRecord{NeverExpires: u.NeverExpires, DaysRemaining: u.PasswordExpiresInDays}
		switch {
		case u.NeverExpires:
			s.NeverExpires++
		case rec.Expired():
			s.Expired++
		case rec.Critical():
			s.Critical++
		}
	}
	return s
}
