package memstore

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-jwt-auth"
	"github.com/google/uuid"
)

// Users implements auth.UserRepository
type Users struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*auth.User
	now  func() time.Time
}

var _ auth.TxUserRepository = (*Users)(nil)

// NewUsers returns an empty repository
func NewUsers() *Users {
	return &Users{
		byID: make(map[uuid.UUID]*auth.User),
		now:  time.Now,
	}
}

// FindBy returns a copy of the user whose field equals value
func (r *Users) FindBy(_ context.Context, field, value string) (*auth.User, error) {
	if value == "" {
		return nil, auth.ErrIdentityNotFound.Clone()
	}

	if field == "email" {
		value = auth.NormalizeEmail(value)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.byID {
		v, ok := u.FieldValue(field)
		if !ok {
			return nil, unknownField(field)
		}
		if v == value {
			return u.Clone(), nil
		}
	}

	return nil, auth.ErrIdentityNotFound.Clone().WithMetadata(map[string]any{
		"field": field,
	})
}

// Create stores a copy of user. Emails must be unique.
func (r *Users) Create(_ context.Context, user *auth.User) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record := user.Clone()
	record.Email = auth.NormalizeEmail(record.Email)
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if _, ok := r.byID[record.ID]; ok {
		return nil, duplicate("id")
	}
	if r.emailTaken(record.Email, record.ID) {
		return nil, duplicate("email")
	}

	now := r.now()
	record.CreatedAt = &now
	record.UpdatedAt = &now
	record.AuthTokens = nil

	r.byID[record.ID] = record
	return record.Clone(), nil
}

// Update copies the listed columns of user onto the stored record. Every
// guard must match the stored record or auth.ErrStaleRecord is returned and
// nothing changes.
func (r *Users) Update(_ context.Context, user *auth.User, columns []string, guards ...auth.Guard) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[user.ID]
	if !ok {
		return auth.ErrIdentityNotFound.Clone()
	}

	for _, g := range guards {
		v, ok := current.FieldValue(g.Field)
		if !ok {
			return unknownField(g.Field)
		}
		if v != g.Value {
			return auth.ErrStaleRecord.Clone().WithMetadata(map[string]any{
				"field": g.Field,
			})
		}
	}

	record := current.Clone()
	if column, ok := record.CopyColumns(user, columns...); !ok {
		return unknownField(column)
	}

	record.Email = auth.NormalizeEmail(record.Email)
	if r.emailTaken(record.Email, record.ID) {
		return duplicate("email")
	}

	now := r.now()
	record.UpdatedAt = &now

	r.byID[record.ID] = record
	return nil
}

// RunInTx runs fn and restores every record when it fails. Writes made by
// other goroutines while fn runs are lost on rollback.
func (r *Users) RunInTx(ctx context.Context, fn func(ctx context.Context, users auth.UserRepository) error) error {
	r.mu.RLock()
	snapshot := make(map[uuid.UUID]*auth.User, len(r.byID))
	for id, u := range r.byID {
		snapshot[id] = u.Clone()
	}
	r.mu.RUnlock()

	if err := fn(ctx, r); err != nil {
		r.mu.Lock()
		r.byID = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

// Len is the number of stored users
func (r *Users) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *Users) emailTaken(email string, id uuid.UUID) bool {
	for _, u := range r.byID {
		if u.Email == email && u.ID != id {
			return true
		}
	}
	return false
}

func duplicate(field string) error {
	return auth.ErrValidation.Clone().WithMetadata(map[string]any{
		field: "has already been taken",
	})
}

func unknownField(field string) error {
	return goerrors.New("unknown lookup field", goerrors.CategoryBadInput).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{"field": field})
}
