// Package authctl implements the gophauth admin command line: schema
// migrations, account provisioning, expired session cleanup and token
// introspection.
package authctl

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/dmitrijs2005/gophauth/internal/server/storage"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// loadConfig is a test seam for config.LoadFromEnv.
var loadConfig = config.LoadFromEnv

type env struct {
	cfg     *config.Config
	db      *sql.DB
	manager repomanager.RepositoryManager
}

func (e *env) close() {
	if e.db != nil {
		_ = e.db.Close()
	}
}

// NewRootCommand builds the authctl command tree writing to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	var dbURL string

	cmd := &cobra.Command{
		Use:           "authctl",
		Short:         "Administration tool for the gophauth server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "Database URL, overrides DB_URL")

	open := func(ctx context.Context, migrate bool) (*env, error) {
		cfg, err := loadConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if dbURL != "" {
			cfg.DatabaseDSN = dbURL
		}

		db, m, err := storage.Open(ctx, cfg.DatabaseDSN, migrate)
		if err != nil {
			return nil, err
		}
		return &env{cfg: cfg, db: db, manager: m}, nil
	}

	cmd.AddCommand(newMigrateCommand(open))
	cmd.AddCommand(newCreateUserCommand(open))
	cmd.AddCommand(newPurgeExpiredCommand(open))
	cmd.AddCommand(newWhoAmICommand())
	return cmd
}

type opener func(ctx context.Context, migrate bool) (*env, error)

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newService(e *env) (*services.UserService, error) {
	return services.NewUserService(e.db, e.manager, e.cfg,
		services.WithLogger(logging.New(e.cfg.LogFormat, "error", os.Stderr)))
}
