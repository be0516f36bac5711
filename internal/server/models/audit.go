package models

import "time"

// AuditEntry is one append-only record of a security-relevant action.
type AuditEntry struct {
	ID          string    `json:"id"`
	PrincipalID string    `json:"principal_id"`
	Action      string    `json:"action"`
	ObjectID    string    `json:"object_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Audit action tags.
const (
	ActionUpload              = "upload"
	ActionUploadNewVersion    = "upload-new-version"
	ActionUpdate              = "update"
	ActionDelete              = "delete"
	ActionEnableSecondFactor  = "enable-second-factor"
	ActionDisableSecondFactor = "disable-second-factor"
)

// ActionDownloadPrivate tags an owner's retrieval of a private object.
func ActionDownloadPrivate(name string) string {
	return "downloaded private file " + name
}
