package repository

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-jwt-auth"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

const trimAuthTokens = `DELETE FROM auth_tokens
WHERE user_id = ?
  AND id NOT IN (
    SELECT id FROM auth_tokens WHERE user_id = ? ORDER BY id DESC LIMIT ?
  )`

// AuthTokenModel is one live session token. The autoincrement id keeps the
// issue order.
type AuthTokenModel struct {
	bun.BaseModel `bun:"table:auth_tokens"`

	ID        int64     `bun:"id,pk,autoincrement"`
	UserID    string    `bun:"user_id,notnull"`
	Token     string    `bun:"token,notnull"`
	CreatedAt time.Time `bun:"created_at,default:current_timestamp"`
}

// AuthTokenRepository implements auth.SessionTokenRepository using Bun.
type AuthTokenRepository struct {
	db *bun.DB
}

var _ auth.SessionTokenRepository = (*AuthTokenRepository)(nil)

// NewAuthTokenRepository creates a new repository.
func NewAuthTokenRepository(db *bun.DB) *AuthTokenRepository {
	return &AuthTokenRepository{db: db}
}

// PushAuthToken inserts token and deletes all but the newest max rows for
// userID in a single transaction.
func (r *AuthTokenRepository) PushAuthToken(ctx context.Context, userID, token string, max int) ([]string, int, error) {
	var (
		tokens  []string
		evicted int
	)

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// serialize pushes per user; sqlite already runs one writer at a time
		if tx.Dialect().Name() == dialect.PG {
			if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext(?))", userID); err != nil {
				return err
			}
		}

		model := &AuthTokenModel{
			UserID:    userID,
			Token:     token,
			CreatedAt: time.Now().UTC(),
		}
		if _, err := tx.NewInsert().Model(model).Exec(ctx); err != nil {
			return err
		}

		if max > 0 {
			res, err := tx.ExecContext(ctx, trimAuthTokens, userID, userID, max)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			evicted = int(n)
		}

		var err error
		tokens, err = selectTokens(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to push auth token")
	}

	return tokens, evicted, nil
}

// AuthTokens implements auth.SessionTokenRepository.
func (r *AuthTokenRepository) AuthTokens(ctx context.Context, userID string) ([]string, error) {
	tokens, err := selectTokens(ctx, r.db, userID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load auth tokens")
	}
	return tokens, nil
}

// RemoveAuthToken implements auth.SessionTokenRepository.
func (r *AuthTokenRepository) RemoveAuthToken(ctx context.Context, userID, token string) error {
	_, err := r.db.NewDelete().
		Model((*AuthTokenModel)(nil)).
		Where("user_id = ?", userID).
		Where("token = ?", token).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove auth token")
	}
	return nil
}

// ClearAuthTokens implements auth.SessionTokenRepository.
func (r *AuthTokenRepository) ClearAuthTokens(ctx context.Context, userID string) error {
	_, err := r.db.NewDelete().
		Model((*AuthTokenModel)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear auth tokens")
	}
	return nil
}

func selectTokens(ctx context.Context, db bun.IDB, userID string) ([]string, error) {
	tokens := []string{}
	err := db.NewSelect().
		Model((*AuthTokenModel)(nil)).
		Column("token").
		Where("user_id = ?", userID).
		OrderExpr("id ASC").
		Scan(ctx, &tokens)
	if err != nil {
		return nil, err
	}
	return tokens, nil
}
