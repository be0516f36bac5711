package principals

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
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.Principal) (*models.Principal, error) {

	query :=
		`INSERT INTO principals (id, username, password_hash, totp_secret, created_at)
         VALUES ($1, $2, $3, $4, $5)
		 `

	_, err := r.db.ExecContext(ctx, query, p.ID, p.Username, p.PasswordHash, p.TOTPSecret, p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrDuplicateUsername
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if p.OwnedObjectIDs == nil {
		p.OwnedObjectIDs = []string{}
	}
	if p.DownloadedObjectIDs == nil {
		p.DownloadedObjectIDs = []string{}
	}

	return p, nil
}

const selectPrincipal = `SELECT id, username, password_hash, totp_secret, owned_objects, downloaded_objects, created_at
		 FROM principals
		 `

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Principal, error) {
	p := &models.Principal{}
	var owned, downloaded []byte

	err := row.Scan(&p.ID, &p.Username, &p.PasswordHash, &p.TOTPSecret, &owned, &downloaded, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := decodeSet(owned, &p.OwnedObjectIDs); err != nil {
		return nil, err
	}
	if err := decodeSet(downloaded, &p.DownloadedObjectIDs); err != nil {
		return nil, err
	}

	return p, nil
}

func decodeSet(raw []byte, dst *[]string) error {
	*dst = []string{}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode reference set: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (*models.Principal, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectPrincipal+`WHERE username = $1`, username))
}

// FindByID returns ErrorNotFound for ids that are not UUIDs, such as a
// forged pending principal id.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Principal, error) {
	if uuid.Validate(id) != nil {
		return nil, common.ErrorNotFound
	}
	return r.scanOne(r.db.QueryRowContext(ctx, selectPrincipal+`WHERE id = $1`, id))
}

func (r *PostgresRepository) SetSecondFactorSecret(ctx context.Context, id, secret string) error {
	query := `UPDATE principals SET totp_secret = $2 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, secret)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireOne(res)
}

func (r *PostgresRepository) AddOwnedObject(ctx context.Context, id, objectID string) error {
	query :=
		`UPDATE principals SET owned_objects = owned_objects || jsonb_build_array($2::text)
		 WHERE id = $1 AND NOT owned_objects @> jsonb_build_array($2::text)
		 `

	if _, err := r.db.ExecContext(ctx, query, id, objectID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RemoveOwnedObject(ctx context.Context, id, objectID string) error {
	query := `UPDATE principals SET owned_objects = owned_objects - $2::text WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, objectID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) AddDownloadedObject(ctx context.Context, id, objectID string) (bool, error) {
	query :=
		`UPDATE principals SET downloaded_objects = downloaded_objects || jsonb_build_array($2::text)
		 WHERE id = $1 AND NOT downloaded_objects @> jsonb_build_array($2::text)
		 `

	res, err := r.db.ExecContext(ctx, query, id, objectID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}

func requireOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
