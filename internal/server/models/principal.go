package models

import (
	"slices"
	"time"
)

// Principal is a registered identity. A non-empty TOTPSecret means login
// requires a second factor.
type Principal struct {
	ID                  string    `json:"id"`
	Username            string    `json:"username"`
	PasswordHash        string    `json:"password_hash"`
	TOTPSecret          string    `json:"totp_secret,omitempty"`
	OwnedObjectIDs      []string  `json:"owned_objects"`
	DownloadedObjectIDs []string  `json:"downloaded_objects"`
	CreatedAt           time.Time `json:"created_at"`
}

// HasSecondFactor reports whether step-up verification is configured.
func (p *Principal) HasSecondFactor() bool {
	return p.TOTPSecret != ""
}

// HasDownloaded reports whether objectID is in the downloaded set.
func (p *Principal) HasDownloaded(objectID string) bool {
	return slices.Contains(p.DownloadedObjectIDs, objectID)
}
