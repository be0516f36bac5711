package client

import (
	"context"
	"time"
)

// Object is the metadata of one stored version, as listed by the server.
type Object struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	OwnerID          string    `json:"owner_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Visibility       string    `json:"visibility"`
	Size             int64     `json:"size"`
	Version          int       `json:"version"`
	PreviousVersions []string  `json:"previous_versions"`
	LatestVersion    string    `json:"latest_version,omitempty"`
	Superseded       bool      `json:"superseded"`
	DownloadCount    int64     `json:"download_count"`
	CreatedAt        time.Time `json:"created_at"`
}

type Session struct {
	PrincipalID string    `json:"principal_id"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// LoginResult has either Session set or, when a second factor is required,
// PendingPrincipalID.
type LoginResult struct {
	Session            *Session
	PendingPrincipalID string
}

type Enrollment struct {
	Secret    string `json:"secret"`
	URI       string `json:"uri"`
	QRDataURL string `json:"qr_data_url"`
}

// UploadOptions are the optional form fields of an upload. Empty values are
// not sent, so the server keeps the previous version's metadata.
type UploadOptions struct {
	Title       string
	Description string
	Visibility  string
}

type UploadResult struct {
	Object       Object `json:"object"`
	IsNewVersion bool   `json:"is_new_version"`
}

type Download struct {
	Name          string
	Version       int
	DownloadCount int64
	Data          []byte
}

// Patch carries the fields of an update; nil fields are left unchanged.
type Patch struct {
	Name        *string `json:"name,omitempty"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Visibility  *string `json:"visibility,omitempty"`
}

type Client interface {
	Token() string
	SetToken(token string)

	Register(ctx context.Context, username, password string) (*Session, error)
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	VerifySecondFactor(ctx context.Context, principalID, code string) (*Session, error)
	Logout(ctx context.Context) error
	Verify(ctx context.Context) (*Session, error)

	EnableSecondFactor(ctx context.Context) (*Enrollment, error)
	DisableSecondFactor(ctx context.Context) error
	SecondFactorStatus(ctx context.Context) (bool, error)

	Upload(ctx context.Context, name string, data []byte, opts UploadOptions) (*UploadResult, error)
	ListPublic(ctx context.Context) ([]Object, error)
	ListUploaded(ctx context.Context) ([]Object, error)
	ListDownloaded(ctx context.Context) ([]Object, error)
	Download(ctx context.Context, id string) (*Download, error)
	Update(ctx context.Context, id string, patch Patch) (*Object, error)
	Delete(ctx context.Context, id string) error
}
