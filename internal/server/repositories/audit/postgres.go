package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
)

// PostgresRepository writes audit entries over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, e *models.AuditEntry) error {
	query := `
		INSERT INTO audit_entries (id, principal_id, action, object_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	objectID := sql.NullString{String: e.ObjectID, Valid: e.ObjectID != ""}

	if _, err := r.db.ExecContext(ctx, query, e.ID, e.PrincipalID, e.Action, objectID, e.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
