package repomanager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/server/repositories/audit"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/objects"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/principals"
	"go.etcd.io/bbolt"
)

var (
	bucketMeta    = []byte("meta")
	keySchema     = []byte("schema_version")
	schemaVersion = []byte("1")
)

// BoltRepositoryManager keeps everything in a single embedded bbolt file.
type BoltRepositoryManager struct {
	db *bbolt.DB
}

// NewBoltRepositoryManager opens or creates the database at path. The parent
// directory is created if it does not exist.
func NewBoltRepositoryManager(path string) (*BoltRepositoryManager, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("bolt: create directory: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt: open %s: %w", path, err)
	}
	return &BoltRepositoryManager{db: db}, nil
}

func (m *BoltRepositoryManager) Principals() principals.Repository {
	return principals.NewBoltRepository(m.db)
}

func (m *BoltRepositoryManager) Objects() objects.Repository {
	return objects.NewBoltRepository(m.db)
}

func (m *BoltRepositoryManager) Audit() audit.Repository {
	return audit.NewBoltRepository(m.db)
}

// RunMigrations creates all buckets and records the schema version.
func (m *BoltRepositoryManager) RunMigrations(ctx context.Context) error {
	return m.db.Update(func(tx *bbolt.Tx) error {
		for _, ensure := range []func(*bbolt.Tx) error{
			principals.EnsureBoltBuckets,
			objects.EnsureBoltBuckets,
			audit.EnsureBoltBuckets,
		} {
			if err := ensure(tx); err != nil {
				return err
			}
		}

		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return fmt.Errorf("create bucket %q: %w", bucketMeta, err)
		}
		return meta.Put(keySchema, schemaVersion)
	})
}

func (m *BoltRepositoryManager) Close() error {
	return m.db.Close()
}
