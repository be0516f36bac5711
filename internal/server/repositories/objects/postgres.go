package objects

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/google/uuid"
)

// PostgresRepository implements object storage over *sql.DB. AppendVersion
// runs in its own transaction under an advisory lock on (owner, name).
type PostgresRepository struct {
	db *sql.DB
}

var _ Repository = (*PostgresRepository)(nil)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const listColumns = `id, name, owner_id, title, description, visibility, storage_key, size,
		version, previous_versions, latest_version, download_count, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanObject(row scanner, withData bool) (*models.StoredObject, error) {
	o := &models.StoredObject{}
	var (
		visibility string
		prev       []byte
		latest     sql.NullString
	)

	dest := []any{&o.ID, &o.Name, &o.OwnerID, &o.Title, &o.Description, &visibility, &o.StorageKey, &o.Size,
		&o.Version, &prev, &latest, &o.DownloadCount, &o.CreatedAt}
	if withData {
		dest = append(dest, &o.Data)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	o.Visibility = models.Visibility(visibility)
	o.LatestVersion = latest.String
	o.PreviousVersions = []string{}
	if len(prev) > 0 {
		if err := json.Unmarshal(prev, &o.PreviousVersions); err != nil {
			return nil, fmt.Errorf("decode previous_versions: %w", err)
		}
	}
	return o, nil
}

func lineageKey(ownerID, name string) string {
	return "objects:" + ownerID + ":" + name
}

func (r *PostgresRepository) AppendVersion(ctx context.Context, d *models.Draft) (*models.StoredObject, *models.StoredObject, error) {
	var created, head *models.StoredObject

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := dbx.AdvisoryXactLock(ctx, tx, lineageKey(d.OwnerID, d.Name)); err != nil {
			return err
		}

		headQuery := `SELECT ` + listColumns + ` FROM objects
		WHERE owner_id = $1 AND name = $2
		ORDER BY version DESC LIMIT 1`

		h, err := scanObject(tx.QueryRowContext(ctx, headQuery, d.OwnerID, d.Name), false)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("db error: %w", err)
		default:
			head = h
		}

		created = d.Resolve(head)

		prev, err := json.Marshal(created.PreviousVersions)
		if err != nil {
			return err
		}

		insert := `INSERT INTO objects (id, name, owner_id, title, description, visibility, data, storage_key, size,
			version, previous_versions, download_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, $12)`

		if _, err := tx.ExecContext(ctx, insert, created.ID, created.Name, created.OwnerID, created.Title,
			created.Description, string(created.Visibility), created.Data, created.StorageKey, created.Size,
			created.Version, string(prev), created.CreatedAt); err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		if head != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE objects SET latest_version = $2 WHERE id = $1`, head.ID, created.ID); err != nil {
				return fmt.Errorf("db error: %w", err)
			}
			head.LatestVersion = created.ID
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return created, head, nil
}

// FindByID returns ErrorNotFound for ids that are not UUIDs; the id column
// would otherwise reject them with a type error.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.StoredObject, error) {
	if uuid.Validate(id) != nil {
		return nil, common.ErrorNotFound
	}
	query := `SELECT ` + listColumns + `, data FROM objects WHERE id = $1`

	o, err := scanObject(r.db.QueryRowContext(ctx, query, id), true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return o, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.StoredObject, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select objects: %w", err)
	}
	defer rows.Close()

	result := []*models.StoredObject{}
	for rows.Next() {
		o, err := scanObject(rows, false)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) ListPublic(ctx context.Context) ([]*models.StoredObject, error) {
	return r.list(ctx, `SELECT `+listColumns+` FROM objects WHERE visibility = $1 ORDER BY created_at DESC`,
		string(models.VisibilityPublic))
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.StoredObject, error) {
	return r.list(ctx, `SELECT `+listColumns+` FROM objects WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
}

func (r *PostgresRepository) ListByIDs(ctx context.Context, ids []string) ([]*models.StoredObject, error) {
	if len(ids) == 0 {
		return []*models.StoredObject{}, nil
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	return r.list(ctx, `SELECT `+listColumns+` FROM objects
		WHERE id::text IN (SELECT jsonb_array_elements_text($1::jsonb))
		ORDER BY created_at DESC`, string(raw))
}

func (r *PostgresRepository) Update(ctx context.Context, id string, patch models.ObjectPatch) (*models.StoredObject, error) {
	query := `UPDATE objects SET
			name = COALESCE(NULLIF($2, ''), name),
			title = COALESCE(NULLIF($3, ''), title),
			description = COALESCE(NULLIF($4, ''), description),
			visibility = COALESCE(NULLIF($5, ''), visibility)
		WHERE id = $1
		RETURNING ` + listColumns

	var visibility string
	if patch.Visibility != nil {
		visibility = string(*patch.Visibility)
	}

	o, err := scanObject(r.db.QueryRowContext(ctx, query, id,
		deref(patch.Name), deref(patch.Title), deref(patch.Description), visibility), false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return o, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM objects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) IncrementDownloadCount(ctx context.Context, id string) (int64, error) {
	query := `UPDATE objects SET download_count = download_count + 1
		 WHERE id = $1
		 RETURNING download_count`

	var count int64
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return count, nil
}
