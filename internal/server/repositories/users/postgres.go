package users

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/sqlscan"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (email, password_hash)
		 VALUES ($1, $2)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query, user.Email, user.PasswordHash).Scan(&user.ID)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query :=
		`SELECT id, email, password_hash FROM users
		 WHERE email = $1
		 `
	return r.get(ctx, query, email)
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query :=
		`SELECT id, email, password_hash FROM users
		 WHERE id = $1
		 `
	return r.get(ctx, query, id)
}

func (r *PostgresRepository) get(ctx context.Context, query string, arg any) (*models.User, error) {
	user := &models.User{}
	if err := sqlscan.Get(ctx, r.db, user, query, arg); err != nil {
		if sqlscan.NotFound(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}
