// Package repomanager vends repositories bound to a database handle or to a
// running transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	// InTx runs fn inside one transaction. Repositories created from tx
	// see and commit together.
	InTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx dbx.DBTX) error) error
}
