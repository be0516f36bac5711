// Package audit declares the append-only store for audit entries.
package audit

import (
	"context"

	"github.com/dmitrijs2005/gophvault/internal/server/models"
)

// Repository appends audit entries. There is deliberately no update or
// delete.
type Repository interface {
	Append(ctx context.Context, e *models.AuditEntry) error
}
