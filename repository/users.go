package repository

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-jwt-auth"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var lookupFields = map[string]bool{
	"id":                   true,
	"email":                true,
	"confirmation_token":   true,
	"reset_password_token": true,
	"invitation_token":     true,
}

// UserRepository implements auth.TxUserRepository on top of a
// repository.Repository[*auth.User].
type UserRepository struct {
	repo repository.Repository[*auth.User]
	db   bun.IDB
}

var _ auth.TxUserRepository = (*UserRepository)(nil)

// NewUserRepository creates a new repository.
func NewUserRepository(db bun.IDB) *UserRepository {
	repo := repository.NewRepository[*auth.User](db, repository.ModelHandlers[*auth.User]{
		NewRecord: func() *auth.User { return &auth.User{} },
		GetID: func(u *auth.User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *auth.User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string { return "email" },
	})

	return &UserRepository{repo: repo, db: db}
}

// FindBy implements auth.UserRepository.
func (r *UserRepository) FindBy(ctx context.Context, field, value string) (*auth.User, error) {
	if !lookupFields[field] {
		return nil, unknownField(field)
	}

	if value == "" {
		return nil, auth.ErrIdentityNotFound.Clone()
	}

	if field == "email" {
		value = auth.NormalizeEmail(value)
	}

	user, err := r.repo.GetTx(ctx, r.db, repository.SelectBy(field, "=", value))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, auth.ErrIdentityNotFound.Clone().WithMetadata(map[string]any{
				"field": field,
			})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to find user")
	}

	return user, nil
}

// Create implements auth.UserRepository.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) (*auth.User, error) {
	record := user.Clone()
	record.Email = auth.NormalizeEmail(record.Email)

	now := time.Now().UTC()
	record.CreatedAt = &now
	record.UpdatedAt = &now

	created, err := r.repo.CreateTx(ctx, r.db, record)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, uniqueViolation(err)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create user")
	}

	return created, nil
}

// Update implements auth.UserRepository. Only the listed columns are set
// and guards become extra WHERE clauses, so the check and the write happen
// in one statement.
func (r *UserRepository) Update(ctx context.Context, user *auth.User, columns []string, guards ...auth.Guard) error {
	now := time.Now().UTC()
	user.UpdatedAt = &now
	user.Email = auth.NormalizeEmail(user.Email)

	criteria := make([]repository.UpdateCriteria, 0, len(columns)+len(guards)+1)
	seen := map[string]bool{}
	columns = append(append([]string(nil), columns...), auth.ColumnUpdatedAt)
	for _, column := range columns {
		if seen[column] {
			continue
		}
		seen[column] = true

		value, ok := user.ColumnValue(column)
		if !ok {
			return unknownField(column)
		}
		criteria = append(criteria, repository.UpdateSetColumn(column, value))
	}

	for _, g := range guards {
		if !lookupFields[g.Field] {
			return unknownField(g.Field)
		}
		criteria = append(criteria, repository.UpdateBy(g.Field, "=", g.Value))
	}

	if _, err := r.repo.UpdateTx(ctx, r.db, user, criteria...); err != nil {
		switch {
		case isUniqueViolation(err):
			return uniqueViolation(err)
		case repository.IsRecordNotFound(err) && len(guards) > 0:
			return auth.ErrStaleRecord.Clone()
		case repository.IsRecordNotFound(err):
			return auth.ErrIdentityNotFound.Clone()
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user")
	}

	return nil
}

// RunInTx implements auth.TxUserRepository. fn receives a repository bound
// to the transaction.
func (r *UserRepository) RunInTx(ctx context.Context, fn func(ctx context.Context, users auth.UserRepository) error) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled before transaction")
	default:
	}

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &UserRepository{repo: r.repo, db: tx})
	})
}
