package objects

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"go.etcd.io/bbolt"
)

var bucketObjects = []byte("objects")

// EnsureBoltBuckets creates the buckets used by BoltRepository.
func EnsureBoltBuckets(tx *bbolt.Tx) error {
	if _, err := tx.CreateBucketIfNotExists(bucketObjects); err != nil {
		return fmt.Errorf("create bucket %q: %w", bucketObjects, err)
	}
	return nil
}

// BoltRepository keeps objects as JSON documents keyed by id. bbolt allows a
// single writer at a time, which serializes AppendVersion.
type BoltRepository struct {
	db *bbolt.DB
}

var _ Repository = (*BoltRepository)(nil)

func NewBoltRepository(db *bbolt.DB) *BoltRepository {
	return &BoltRepository{db: db}
}

func (r *BoltRepository) AppendVersion(ctx context.Context, d *models.Draft) (*models.StoredObject, *models.StoredObject, error) {
	var created, head *models.StoredObject

	err := r.db.Update(func(tx *bbolt.Tx) error {
		err := each(tx, func(o *models.StoredObject) {
			if o.OwnerID == d.OwnerID && o.Name == d.Name && (head == nil || o.Version > head.Version) {
				head = o
			}
		})
		if err != nil {
			return err
		}

		created = d.Resolve(head)
		if err := put(tx, created); err != nil {
			return err
		}

		if head != nil {
			head.LatestVersion = created.ID
			return put(tx, head)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if head != nil {
		head.Data = nil
	}
	return created, head, nil
}

func (r *BoltRepository) FindByID(ctx context.Context, id string) (*models.StoredObject, error) {
	var o *models.StoredObject
	err := r.db.View(func(tx *bbolt.Tx) error {
		var err error
		o, err = get(tx, id)
		return err
	})
	return o, err
}

func (r *BoltRepository) filter(keep func(o *models.StoredObject) bool) ([]*models.StoredObject, error) {
	result := []*models.StoredObject{}
	err := r.db.View(func(tx *bbolt.Tx) error {
		return each(tx, func(o *models.StoredObject) {
			if keep(o) {
				o.Data = nil
				result = append(result, o)
			}
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(result, func(a, b *models.StoredObject) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return result, nil
}

func (r *BoltRepository) ListPublic(ctx context.Context) ([]*models.StoredObject, error) {
	return r.filter(func(o *models.StoredObject) bool { return o.IsPublic() })
}

func (r *BoltRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.StoredObject, error) {
	return r.filter(func(o *models.StoredObject) bool { return o.OwnerID == ownerID })
}

func (r *BoltRepository) ListByIDs(ctx context.Context, ids []string) ([]*models.StoredObject, error) {
	if len(ids) == 0 {
		return []*models.StoredObject{}, nil
	}
	return r.filter(func(o *models.StoredObject) bool { return slices.Contains(ids, o.ID) })
}

func (r *BoltRepository) Update(ctx context.Context, id string, patch models.ObjectPatch) (*models.StoredObject, error) {
	var o *models.StoredObject
	err := r.db.Update(func(tx *bbolt.Tx) error {
		var err error
		if o, err = get(tx, id); err != nil {
			return err
		}
		patch.Apply(o)
		return put(tx, o)
	})
	if err != nil {
		return nil, err
	}
	o.Data = nil
	return o, nil
}

func (r *BoltRepository) Delete(ctx context.Context, id string) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketObjects)
		if b.Get([]byte(id)) == nil {
			return common.ErrorNotFound
		}
		return b.Delete([]byte(id))
	})
}

func (r *BoltRepository) IncrementDownloadCount(ctx context.Context, id string) (int64, error) {
	var count int64
	err := r.db.Update(func(tx *bbolt.Tx) error {
		o, err := get(tx, id)
		if err != nil {
			return err
		}
		o.DownloadCount++
		count = o.DownloadCount
		return put(tx, o)
	})
	return count, err
}

func each(tx *bbolt.Tx, fn func(o *models.StoredObject)) error {
	return tx.Bucket(bucketObjects).ForEach(func(_, v []byte) error {
		o := &models.StoredObject{}
		if err := json.Unmarshal(v, o); err != nil {
			return fmt.Errorf("bolt: decode object: %w", err)
		}
		fn(o)
		return nil
	})
}

func get(tx *bbolt.Tx, id string) (*models.StoredObject, error) {
	data := tx.Bucket(bucketObjects).Get([]byte(id))
	if data == nil {
		return nil, common.ErrorNotFound
	}
	o := &models.StoredObject{}
	if err := json.Unmarshal(data, o); err != nil {
		return nil, fmt.Errorf("bolt: decode object: %w", err)
	}
	if o.PreviousVersions == nil {
		o.PreviousVersions = []string{}
	}
	return o, nil
}

func put(tx *bbolt.Tx, o *models.StoredObject) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("bolt: encode object: %w", err)
	}
	if err := tx.Bucket(bucketObjects).Put([]byte(o.ID), data); err != nil {
		return fmt.Errorf("bolt: put object: %w", err)
	}
	return nil
}
