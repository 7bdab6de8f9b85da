package repository

import (
	"context"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// Manager groups the bun backed auth repositories over one database
type Manager struct {
	db       *bun.DB
	users    *UserRepository
	sessions *AuthTokenRepository
}

// NewRepositoryManager creates the users and auth token repositories
func NewRepositoryManager(db *bun.DB) *Manager {
	return &Manager{
		db:       db,
		users:    NewUserRepository(db),
		sessions: NewAuthTokenRepository(db),
	}
}

func (m *Manager) Validate() error {
	if m.db == nil {
		return errors.New("repository db should be initialized")
	}

	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.sessions == nil {
		return errors.New("repository sessions should be initialized")
	}

	return nil
}

func (m *Manager) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

// Users implements auth.UserRepository
func (m *Manager) Users() *UserRepository {
	return m.users
}

// Sessions implements auth.SessionTokenRepository
func (m *Manager) Sessions() *AuthTokenRepository {
	return m.sessions
}

// CreateSchema creates the tables used by the repositories
func (m *Manager) CreateSchema(ctx context.Context) error {
	return CreateSchema(ctx, m.db)
}
