package models

import (
	"fmt"
	"time"
)

// Visibility controls who may read a StoredObject.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// ParseVisibility accepts "public", "private" or "" (which means private).
func ParseVisibility(s string) (Visibility, error) {
	switch Visibility(s) {
	case "", VisibilityPrivate:
		return VisibilityPrivate, nil
	case VisibilityPublic:
		return VisibilityPublic, nil
	default:
		return "", fmt.Errorf("unknown visibility %q", s)
	}
}

// StoredObject is one version of an owner's named object.
//
// Version always equals len(PreviousVersions)+1. LatestVersion is set once a
// successor exists; the superseded object stays readable by id.
type StoredObject struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	OwnerID     string     `json:"owner_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Visibility  Visibility `json:"visibility"`

	// Data is IV || ciphertext. Empty when the blob lives in the payload
	// store under StorageKey.
	Data       []byte `json:"data,omitempty"`
	StorageKey string `json:"storage_key,omitempty"`
	// Size is the ciphertext length, used as an approximate payload size.
	Size int64 `json:"size"`

	Version          int      `json:"version"`
	PreviousVersions []string `json:"previous_versions"`
	LatestVersion    string   `json:"latest_version,omitempty"`

	DownloadCount int64     `json:"download_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// IsPublic reports whether anyone may read the object.
func (o *StoredObject) IsPublic() bool {
	return o.Visibility == VisibilityPublic
}

// IsSuperseded reports whether a newer version exists.
func (o *StoredObject) IsSuperseded() bool {
	return o.LatestVersion != ""
}

// NextVersion builds the successor of o carrying the given id and payload,
// inheriting title, description and visibility. The caller overrides those
// afterwards when new values were supplied.
func (o *StoredObject) NextVersion(id string) *StoredObject {
	prev := make([]string, 0, len(o.PreviousVersions)+1)
	prev = append(prev, o.PreviousVersions...)
	prev = append(prev, o.ID)

	return &StoredObject{
		ID:               id,
		Name:             o.Name,
		OwnerID:          o.OwnerID,
		Title:            o.Title,
		Description:      o.Description,
		Visibility:       o.Visibility,
		Version:          o.Version + 1,
		PreviousVersions: prev,
	}
}

// ObjectPatch carries the optional fields of an update. Nil means "keep".
type ObjectPatch struct {
	Name        *string
	Title       *string
	Description *string
	Visibility  *Visibility
}

// Apply overwrites the fields of o that are set in p. Empty strings are
// treated as absent, matching how the upload form submits untouched fields.
func (p ObjectPatch) Apply(o *StoredObject) {
	if p.Name != nil && *p.Name != "" {
		o.Name = *p.Name
	}
	if p.Title != nil && *p.Title != "" {
		o.Title = *p.Title
	}
	if p.Description != nil && *p.Description != "" {
		o.Description = *p.Description
	}
	if p.Visibility != nil && *p.Visibility != "" {
		o.Visibility = *p.Visibility
	}
}

// Draft describes an upload before lineage has been resolved. ID, payload and
// CreatedAt are assigned by the caller; the rest of the object is derived from
// the lineage head in Resolve.
type Draft struct {
	ID          string
	OwnerID     string
	Name        string
	Title       *string
	Description *string
	Visibility  *Visibility

	Data       []byte
	StorageKey string
	Size       int64
	CreatedAt  time.Time
}

// Resolve builds the object to insert given the current lineage head for
// (OwnerID, Name), or nil when this is the first version.
func (d *Draft) Resolve(head *StoredObject) *StoredObject {
	var o *StoredObject
	if head == nil {
		o = &StoredObject{
			ID:               d.ID,
			Name:             d.Name,
			OwnerID:          d.OwnerID,
			Title:            d.Name,
			Visibility:       VisibilityPrivate,
			Version:          1,
			PreviousVersions: []string{},
		}
	} else {
		o = head.NextVersion(d.ID)
	}

	ObjectPatch{Title: d.Title, Description: d.Description, Visibility: d.Visibility}.Apply(o)

	o.Data = d.Data
	o.StorageKey = d.StorageKey
	o.Size = d.Size
	o.CreatedAt = d.CreatedAt
	return o
}
