// Package repomanager bundles the repositories of one storage backend
// together with its schema setup.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/gophvault/internal/server/repositories/audit"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/objects"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/principals"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Principals() principals.Repository
	Objects() objects.Repository
	Audit() audit.Repository
	Close() error
}
