// Package objects persists stored object versions and their lineage.
package objects

import (
	"context"

	"github.com/dmitrijs2005/gophvault/internal/server/models"
)

type Repository interface {
	// AppendVersion resolves the lineage head for (d.OwnerID, d.Name),
	// inserts the new version and points the head at it, atomically with
	// respect to other appends for the same key. It returns the inserted
	// object and the previous head, which is nil for a first version.
	AppendVersion(ctx context.Context, d *models.Draft) (*models.StoredObject, *models.StoredObject, error)
	// FindByID returns the object including its inline payload.
	FindByID(ctx context.Context, id string) (*models.StoredObject, error)
	// The list operations never load payloads.
	ListPublic(ctx context.Context) ([]*models.StoredObject, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.StoredObject, error)
	ListByIDs(ctx context.Context, ids []string) ([]*models.StoredObject, error)
	Update(ctx context.Context, id string, patch models.ObjectPatch) (*models.StoredObject, error)
	Delete(ctx context.Context, id string) error
	IncrementDownloadCount(ctx context.Context, id string) (int64, error)
}
