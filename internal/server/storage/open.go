// Package storage selects the repository backend from a DSN.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/memory"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

// Open returns the repository manager for dsn. "memory://" selects the
// in-process store and a nil *sql.DB; anything else is opened with pgx,
// pinged and, when migrate is set, migrated to the latest schema.
func Open(ctx context.Context, dsn string, migrate bool) (*sql.DB, repomanager.RepositoryManager, error) {
	if dbx.IsMemoryDSN(dsn) {
		return nil, memory.NewManager(), nil
	}

	db, err := sql.Open("pgx", dbx.NormalizeDSN(dsn))
	if err != nil {
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()
	if migrate {
		if err := m.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("db migrations error: %w", err)
		}
	}
	return db, m, nil
}
