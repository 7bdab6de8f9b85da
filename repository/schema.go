package repository

import (
	"context"
	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-jwt-auth"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

const (
	sqliteCreateAuthTokens = `CREATE TABLE IF NOT EXISTS auth_tokens (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    token TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`
	pgCreateAuthTokens = `CREATE TABLE IF NOT EXISTS auth_tokens (
    id BIGSERIAL PRIMARY KEY,
    user_id TEXT NOT NULL,
    token TEXT NOT NULL,
    created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
);`
	createAuthTokensIndex = `CREATE INDEX IF NOT EXISTS idx_auth_tokens_user_id ON auth_tokens (user_id, id);`
)

// CreateSchema creates the users and auth_tokens tables if missing
func CreateSchema(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewCreateTable().
		Model((*auth.User)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create users table")
	}

	ddl := sqliteCreateAuthTokens
	if db.Dialect().Name() == dialect.PG {
		ddl = pgCreateAuthTokens
	}

	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create auth_tokens table")
	}

	if _, err := db.ExecContext(ctx, createAuthTokensIndex); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create auth_tokens index")
	}

	return nil
}
