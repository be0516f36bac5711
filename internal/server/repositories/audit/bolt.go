package audit

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"go.etcd.io/bbolt"
)

var bucketAudit = []byte("audit_entries")

// EnsureBoltBuckets creates the buckets used by BoltRepository.
func EnsureBoltBuckets(tx *bbolt.Tx) error {
	if _, err := tx.CreateBucketIfNotExists(bucketAudit); err != nil {
		return fmt.Errorf("create bucket %q: %w", bucketAudit, err)
	}
	return nil
}

// BoltRepository stores entries under the bucket's monotonically increasing
// sequence, so iteration order is append order.
type BoltRepository struct {
	db *bbolt.DB
}

var _ Repository = (*BoltRepository)(nil)

func NewBoltRepository(db *bbolt.DB) *BoltRepository {
	return &BoltRepository{db: db}
}

func (r *BoltRepository) Append(ctx context.Context, e *models.AuditEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("bolt: encode audit entry: %w", err)
	}

	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAudit)
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("bolt: next sequence: %w", err)
		}
		if err := b.Put(seqKey(seq), data); err != nil {
			return fmt.Errorf("bolt: put audit entry: %w", err)
		}
		return nil
	})
}

// seqKey encodes a sequence number as an 8-byte big-endian key for sorted
// storage.
func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
