// Package principals stores registered principals: credentials, the optional
// second-factor secret and the owned/downloaded object reference sets.
package principals

import (
	"context"

	"github.com/dmitrijs2005/gophvault/internal/server/models"
)

// Repository updates are atomic per principal; no operation spans documents.
type Repository interface {
	// Create returns common.ErrDuplicateUsername when the username is taken.
	Create(ctx context.Context, p *models.Principal) (*models.Principal, error)
	FindByUsername(ctx context.Context, username string) (*models.Principal, error)
	FindByID(ctx context.Context, id string) (*models.Principal, error)
	// SetSecondFactorSecret overwrites the secret; "" clears it.
	SetSecondFactorSecret(ctx context.Context, id, secret string) error
	AddOwnedObject(ctx context.Context, id, objectID string) error
	RemoveOwnedObject(ctx context.Context, id, objectID string) error
	// AddDownloadedObject reports whether objectID was newly added.
	AddDownloadedObject(ctx context.Context, id, objectID string) (bool, error)
}
