package domain

import (
	"time"
)

// NeverExpiresSentinel is reported as the remaining-day count for accounts
// whose password never expires.
const NeverExpiresSentinel = 999

// DisablePasswordExpirationPolicy is the Entra ID password policy flag that
// turns off cloud-side password expiry for an account.
const DisablePasswordExpirationPolicy = "DisablePasswordExpiration"

// ProfileStatus represents the lifecycle state of a notification profile.
type ProfileStatus string

const (
	ProfileStatusActive ProfileStatus = "active"
	ProfileStatusPaused ProfileStatus = "paused"
	ProfileStatusDryRun ProfileStatus = "dryrun"
)

// AuditStatus represents the delivery outcome recorded for one recipient.
type AuditStatus string

const (
	AuditStatusSent   AuditStatus = "sent"
	AuditStatusFailed AuditStatus = "failed"
)

// QueueItemStatus represents the state of a scheduled delivery task.
type QueueItemStatus string

const (
	QueueItemStatusPending  QueueItemStatus = "pending"
	QueueItemStatusInFlight QueueItemStatus = "in-flight"
)

// DirectoryUser is a directory principal as returned by Microsoft Graph,
// augmented with the derived password-expiry fields. The expiry fields are
// recomputed on every fetch and never persisted.
type DirectoryUser struct {
	ID                         string   `json:"id"`
	DisplayName                string   `json:"displayName"`
	UserPrincipalName          string   `json:"userPrincipalName"`
	AccountEnabled             *bool    `json:"accountEnabled,omitempty"`
	PasswordPolicies           string   `json:"passwordPolicies,omitempty"`
	LastPasswordChangeDateTime string   `json:"lastPasswordChangeDateTime,omitempty"`
	CreatedDateTime            string   `json:"createdDateTime,omitempty"`
	OnPremisesSyncEnabled      *bool    `json:"onPremisesSyncEnabled,omitempty"`
	AssignedGroups             []string `json:"assignedGroups,omitempty"`
	ManagerEmail               string   `json:"managerEmail,omitempty"`

	// Derived expiry state, populated by the expiry service.
	PasswordLastSetDateTime string  `json:"passwordLastSetDateTime,omitempty"`
	PasswordExpiresInDays   int     `json:"passwordExpiresInDays"`
	PasswordExpiryDate      *string `json:"passwordExpiryDate"`
	NeverExpires            bool    `json:"neverExpires"`
	DaysSinceLastReset      int     `json:"daysSinceLastReset"`
}

// Hybrid reports whether the account is synchronized from an on-premises
// directory. Hybrid passwords are governed by policy this service cannot see.
func (u *DirectoryUser) Hybrid() bool {
	return u.OnPremisesSyncEnabled != nil && *u.OnPremisesSyncEnabled
}

// Group is a directory group as returned by Microsoft Graph.
type Group struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// GraphConfig holds the Entra ID application credentials and the tenant's
// password-expiry window.
type GraphConfig struct {
	TenantID          string `json:"tenantId"`
	ClientID          string `json:"clientId"`
	ClientSecret      string `json:"clientSecret"`
	DefaultExpiryDays int    `json:"defaultExpiryDays"`
}

// SMTPConfig holds the mail relay transport settings.
type SMTPConfig struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Secure    bool   `json:"secure"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FromEmail string `json:"fromEmail"`
}

// PermissionChecks records the outcome of the last Graph permission probe.
type PermissionChecks struct {
	Auth       bool    `json:"auth"`
	UserScope  bool    `json:"userScope"`
	GroupScope bool    `json:"groupScope"`
	Timestamp  *string `json:"timestamp"`
}

// EnvironmentProfile bundles the Graph and SMTP settings for one managed
// environment. Exactly one environment is active at a time.
type EnvironmentProfile struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Active         bool             `json:"active"`
	Graph          GraphConfig      `json:"graph"`
	SMTP           SMTPConfig       `json:"smtp"`
	LastValidation PermissionChecks `json:"lastValidation"`
}

// Cadence is the set of day-offsets before expiry at which reminders fire.
type Cadence struct {
	DaysBefore []int `json:"daysBefore" validate:"required,min=1,dive,gte=0"`
}

// RecipientPolicy controls who receives each rendered reminder.
type RecipientPolicy struct {
	ToUser      bool     `json:"toUser"`
	ToManager   bool     `json:"toManager"`
	ToAdmins    []string `json:"toAdmins"`
	ReadReceipt bool     `json:"readReceipt"`
}

// NotificationProfile is a user-authored reminder policy: what to send, to
// whom, and on which cadence.
type NotificationProfile struct {
	ID             string          `json:"id"`
	Name           string          `json:"name" validate:"required"`
	Description    string          `json:"description"`
	SubjectLine    string          `json:"subjectLine" validate:"required"`
	EmailTemplate  string          `json:"emailTemplate" validate:"required"`
	PreferredTime  string          `json:"preferredTime,omitempty"`
	Cadence        Cadence         `json:"cadence"`
	Recipients     RecipientPolicy `json:"recipients"`
	AssignedGroups []string        `json:"assignedGroups"`
	Status         ProfileStatus   `json:"status" validate:"required,oneof=active paused dryrun"`
}

// AuditEntry is one append-only delivery record. ProfileID is the stable
// profile identifier; ProfileName is a display convenience and may go stale
// if the profile is renamed after the send.
type AuditEntry struct {
	Timestamp   string      `json:"timestamp"`
	Recipient   string      `json:"recipient"`
	ProfileID   string      `json:"profileId"`
	ProfileName string      `json:"profileName,omitempty"`
	Offset      int         `json:"offset"`
	Status      AuditStatus `json:"status"`
	Error       string      `json:"error,omitempty"`
}

// QueueItem is a scheduled-but-not-yet-sent delivery task.
type QueueItem struct {
	ID           string          `json:"id"`
	Recipient    string          `json:"recipient"`
	ScheduledFor string          `json:"scheduledFor"`
	ProfileID    string          `json:"profileId"`
	ProfileName  string          `json:"profileName"`
	Offset       int             `json:"offset"`
	Status       QueueItemStatus `json:"status"`
}

// QueueState is the persisted delivery queue plus the global pause flag that
// gates the queue's consumer independently of individual item status.
type QueueState struct {
	Paused bool        `json:"paused"`
	Items  []QueueItem `json:"items"`
}

// LogEntry is one structured log record as exposed to log subscribers and
// the console panel.
type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// JobMode selects how a delivery job treats its targets.
type JobMode string

const (
	// JobModePreview renders the plan without sending or recording anything.
	JobModePreview JobMode = "preview"
	// JobModeTest sends every rendered message to the caller's address.
	JobModeTest JobMode = "test"
	// JobModeLive sends to the real recipients.
	JobModeLive JobMode = "live"
)

// JobPreviewRow is one planned action in a preview run.
type JobPreviewRow struct {
	User       string `json:"user"`
	Email      string `json:"email"`
	DaysLeft   int    `json:"daysLeft"`
	ExpiryDate string `json:"expiryDate"`
	Action     string `json:"action"`
}

// JobResult summarizes one delivery job invocation.
type JobResult struct {
	Success     bool            `json:"success"`
	Sent        int             `json:"sent"`
	Failed      int             `json:"failed"`
	Skipped     int             `json:"skipped"`
	PreviewData []JobPreviewRow `json:"previewData,omitempty"`
}

// ParseTime parses the RFC 3339 timestamps Graph returns. The zero time and
// false are returned for empty or malformed values.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
