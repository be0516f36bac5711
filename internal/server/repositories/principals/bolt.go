package principals

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"go.etcd.io/bbolt"
)

var (
	bucketPrincipals = []byte("principals")
	bucketUsernames  = []byte("principal_usernames")
)

// EnsureBoltBuckets creates the buckets used by BoltRepository.
func EnsureBoltBuckets(tx *bbolt.Tx) error {
	for _, name := range [][]byte{bucketPrincipals, bucketUsernames} {
		if _, err := tx.CreateBucketIfNotExists(name); err != nil {
			return fmt.Errorf("create bucket %q: %w", name, err)
		}
	}
	return nil
}

// BoltRepository keeps principals as JSON documents keyed by id, with a
// username -> id index bucket enforcing uniqueness.
type BoltRepository struct {
	db *bbolt.DB
}

var _ Repository = (*BoltRepository)(nil)

func NewBoltRepository(db *bbolt.DB) *BoltRepository {
	return &BoltRepository{db: db}
}

func (r *BoltRepository) Create(ctx context.Context, p *models.Principal) (*models.Principal, error) {
	if p.OwnedObjectIDs == nil {
		p.OwnedObjectIDs = []string{}
	}
	if p.DownloadedObjectIDs == nil {
		p.DownloadedObjectIDs = []string{}
	}

	err := r.db.Update(func(tx *bbolt.Tx) error {
		idx := tx.Bucket(bucketUsernames)
		if idx.Get([]byte(p.Username)) != nil {
			return common.ErrDuplicateUsername
		}
		if err := idx.Put([]byte(p.Username), []byte(p.ID)); err != nil {
			return fmt.Errorf("bolt: put username: %w", err)
		}
		return put(tx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *BoltRepository) FindByUsername(ctx context.Context, username string) (*models.Principal, error) {
	var p *models.Principal
	err := r.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(bucketUsernames).Get([]byte(username))
		if id == nil {
			return common.ErrorNotFound
		}
		var err error
		p, err = get(tx, string(id))
		return err
	})
	return p, err
}

func (r *BoltRepository) FindByID(ctx context.Context, id string) (*models.Principal, error) {
	var p *models.Principal
	err := r.db.View(func(tx *bbolt.Tx) error {
		var err error
		p, err = get(tx, id)
		return err
	})
	return p, err
}

func (r *BoltRepository) SetSecondFactorSecret(ctx context.Context, id, secret string) error {
	return r.modify(id, func(p *models.Principal) bool {
		p.TOTPSecret = secret
		return true
	})
}

func (r *BoltRepository) AddOwnedObject(ctx context.Context, id, objectID string) error {
	err := r.modify(id, func(p *models.Principal) bool {
		if slices.Contains(p.OwnedObjectIDs, objectID) {
			return false
		}
		p.OwnedObjectIDs = append(p.OwnedObjectIDs, objectID)
		return true
	})
	return ignoreNotFound(err)
}

func (r *BoltRepository) RemoveOwnedObject(ctx context.Context, id, objectID string) error {
	err := r.modify(id, func(p *models.Principal) bool {
		n := len(p.OwnedObjectIDs)
		p.OwnedObjectIDs = slices.DeleteFunc(p.OwnedObjectIDs, func(s string) bool { return s == objectID })
		return len(p.OwnedObjectIDs) != n
	})
	return ignoreNotFound(err)
}

func (r *BoltRepository) AddDownloadedObject(ctx context.Context, id, objectID string) (bool, error) {
	var added bool
	err := r.modify(id, func(p *models.Principal) bool {
		if p.HasDownloaded(objectID) {
			return false
		}
		p.DownloadedObjectIDs = append(p.DownloadedObjectIDs, objectID)
		added = true
		return true
	})
	return added, ignoreNotFound(err)
}

// modify loads, mutates and stores one principal in a single write
// transaction. fn reports whether anything changed.
func (r *BoltRepository) modify(id string, fn func(p *models.Principal) bool) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		p, err := get(tx, id)
		if err != nil {
			return err
		}
		if !fn(p) {
			return nil
		}
		return put(tx, p)
	})
}

// Missing principals are a no-op for set updates, same as an UPDATE that
// matches no row.
func ignoreNotFound(err error) error {
	if err == common.ErrorNotFound {
		return nil
	}
	return err
}

func get(tx *bbolt.Tx, id string) (*models.Principal, error) {
	data := tx.Bucket(bucketPrincipals).Get([]byte(id))
	if data == nil {
		return nil, common.ErrorNotFound
	}
	p := &models.Principal{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("bolt: decode principal: %w", err)
	}
	if p.OwnedObjectIDs == nil {
		p.OwnedObjectIDs = []string{}
	}
	if p.DownloadedObjectIDs == nil {
		p.DownloadedObjectIDs = []string{}
	}
	return p, nil
}

func put(tx *bbolt.Tx, p *models.Principal) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("bolt: encode principal: %w", err)
	}
	if err := tx.Bucket(bucketPrincipals).Put([]byte(p.ID), data); err != nil {
		return fmt.Errorf("bolt: put principal: %w", err)
	}
	return nil
}
