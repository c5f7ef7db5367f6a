package domain

// EnvironmentAction is the action discriminator for POST /api/environments.
type EnvironmentAction string

const (
	EnvironmentActionAdd    EnvironmentAction = "add"
	EnvironmentActionSwitch EnvironmentAction = "switch"
	EnvironmentActionUpdate EnvironmentAction = "update"
)

// EnvironmentRequest mutates the environment collection.
type EnvironmentRequest struct {
	Action EnvironmentAction `json:"action" binding:"required"`
	ID     string            `json:"id,omitempty"`
	Name   string            `json:"name,omitempty"`
	Graph  *GraphConfig      `json:"graph,omitempty"`
	SMTP   *SMTPConfig       `json:"smtp,omitempty"`
}

// ValidatePermissionsRequest probes Graph permissions, either for an ad-hoc
// config or for a stored environment.
type ValidatePermissionsRequest struct {
	EnvID        string `json:"envId,omitempty"`
	TenantID     string `json:"tenantId,omitempty"`
	ClientID     string `json:"clientId,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`
}

// VerifyGroupRequest resolves a configured group name against the directory.
type VerifyGroupRequest struct {
	Name       string `json:"name" binding:"required"`
	ExpiryDays int    `json:"expiryDays,omitempty"`
}

// VerifyGroupResponse reports the transitive member count for a group.
type VerifyGroupResponse struct {
	Success bool            `json:"success"`
	ID      string          `json:"id"`
	Count   int             `json:"count"`
	Members []DirectoryUser `json:"members,omitempty"`
}

// RunJobRequest triggers a delivery job. Either ProfileID (stored profile) or
// an inline Profile may be supplied.
type RunJobRequest struct {
	ProfileID string               `json:"profileId,omitempty"`
	Profile   *NotificationProfile `json:"profile,omitempty"`
	Mode      JobMode              `json:"mode" binding:"required,oneof=preview test live"`
	TestEmail string               `json:"testEmail,omitempty"`
}

// QueueCancelRequest removes one queued delivery task.
type QueueCancelRequest struct {
	ID string `json:"id" binding:"required"`
}
