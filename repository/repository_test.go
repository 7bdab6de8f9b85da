package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-jwt-auth"
	"github.com/goliatone/go-jwt-auth/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupManager(t *testing.T) *repository.Manager {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())
	t.Cleanup(func() { _ = bunDB.Close() })

	m := repository.NewRepositoryManager(bunDB)
	m.MustValidate()
	require.NoError(t, m.CreateSchema(context.Background()))

	return m
}

func TestCreateSchema_WrapsFailures(t *testing.T) {
	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	bunDB := bun.NewDB(db, sqlitedialect.New())
	require.NoError(t, bunDB.Close())

	err = repository.CreateSchema(context.Background(), bunDB)
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryInternal, richErr.Category)
}

func TestUserRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := setupManager(t).Users()

	created, err := repo.Create(ctx, auth.NewUser("Jane@Example.com"))
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", created.Email)
	assert.NotNil(t, created.CreatedAt)

	byEmail, err := repo.FindBy(ctx, "email", "JANE@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	byID, err := repo.FindBy(ctx, "id", created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created.Email, byID.Email)
	assert.False(t, byID.Confirmed)

	_, err = repo.FindBy(ctx, "email", "missing@example.com")
	assert.True(t, auth.IsIdentityNotFound(err))

	_, err = repo.FindBy(ctx, "password_hash", "x")
	assert.Error(t, err)
	assert.False(t, auth.IsIdentityNotFound(err))
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := setupManager(t).Users()

	_, err := repo.Create(ctx, auth.NewUser("dup@example.com"))
	require.NoError(t, err)

	_, err = repo.Create(ctx, auth.NewUser("DUP@example.com"))
	require.Error(t, err)
	assert.True(t, auth.IsValidationError(err))
}

func TestUserRepository_GuardedUpdate(t *testing.T) {
	ctx := context.Background()
	repo := setupManager(t).Users()

	user, err := repo.Create(ctx, auth.NewUser("guard@example.com"))
	require.NoError(t, err)

	user.SetLifecycleToken(auth.TokenKindConfirmation, "tok-1", time.Now())
	require.NoError(t, repo.Update(ctx, user, auth.TokenKindConfirmation.Columns()))

	found, err := repo.FindBy(ctx, "confirmation_token", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	require.NotNil(t, found.ConfirmationSentAt)

	first := found.Clone()
	first.Confirm(time.Now())
	first.ClearLifecycleToken(auth.TokenKindConfirmation)

	second := found.Clone()
	second.ClearLifecycleToken(auth.TokenKindConfirmation)

	columns := append(auth.TokenKindConfirmation.Columns(), auth.ColumnConfirmed, auth.ColumnConfirmedAt)
	guard := auth.Guard{Field: "confirmation_token", Value: "tok-1"}
	require.NoError(t, repo.Update(ctx, first, columns, guard))

	err = repo.Update(ctx, second, columns, guard)
	assert.True(t, auth.IsStaleRecord(err))

	stored, err := repo.FindBy(ctx, "id", user.ID.String())
	require.NoError(t, err)
	assert.True(t, stored.Confirmed)
	assert.Empty(t, stored.ConfirmationToken)

	_, err = repo.FindBy(ctx, "confirmation_token", "tok-1")
	assert.True(t, auth.IsIdentityNotFound(err))
}

func TestUserRepository_UpdateWritesOnlyListedColumns(t *testing.T) {
	ctx := context.Background()
	repo := setupManager(t).Users()

	user, err := repo.Create(ctx, auth.NewUser("columns@example.com"))
	require.NoError(t, err)
	stale := user.Clone()

	user.Confirm(time.Now())
	require.NoError(t, repo.Update(ctx, user, []string{auth.ColumnConfirmed, auth.ColumnConfirmedAt}))

	stale.PasswordHash = "new-hash"
	require.NoError(t, repo.Update(ctx, stale, []string{auth.ColumnPasswordHash}))

	stored, err := repo.FindBy(ctx, "id", user.ID.String())
	require.NoError(t, err)
	assert.True(t, stored.Confirmed)
	assert.Equal(t, "new-hash", stored.PasswordHash)

	err = repo.Update(ctx, stale, []string{"id"})
	require.Error(t, err)
	assert.False(t, auth.IsStaleRecord(err))

	missing := auth.NewUser("missing@example.com")
	err = repo.Update(ctx, missing, []string{auth.ColumnPasswordHash})
	assert.True(t, auth.IsIdentityNotFound(err))
}

func TestUserRepository_RunInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := setupManager(t).Users()

	boom := errors.New("boom")
	err := repo.RunInTx(ctx, func(ctx context.Context, users auth.UserRepository) error {
		_, err := users.Create(ctx, auth.NewUser("rollback@example.com"))
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repo.FindBy(ctx, "email", "rollback@example.com")
	assert.True(t, auth.IsIdentityNotFound(err))

	err = repo.RunInTx(ctx, func(ctx context.Context, users auth.UserRepository) error {
		_, err := users.Create(ctx, auth.NewUser("commit@example.com"))
		return err
	})
	require.NoError(t, err)

	_, err = repo.FindBy(ctx, "email", "commit@example.com")
	assert.NoError(t, err)
}

func TestAuthTokenRepository_PushTrimsOldest(t *testing.T) {
	ctx := context.Background()
	repo := setupManager(t).Sessions()

	tokens, evicted, err := repo.PushAuthToken(ctx, "u1", "A", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, tokens)
	assert.Equal(t, 0, evicted)

	_, _, err = repo.PushAuthToken(ctx, "u1", "B", 2)
	require.NoError(t, err)

	tokens, evicted, err = repo.PushAuthToken(ctx, "u1", "C", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, tokens)
	assert.Equal(t, 1, evicted)

	other, _, err := repo.PushAuthToken(ctx, "u2", "Z", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Z"}, other)

	stored, err := repo.AuthTokens(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, stored)
}

func TestAuthTokenRepository_ConcurrentPushesSurvive(t *testing.T) {
	ctx := context.Background()
	repo := setupManager(t).Sessions()

	var wg sync.WaitGroup
	for _, tok := range []string{"X", "Y"} {
		wg.Add(1)
		go func(tok string) {
			defer wg.Done()
			_, _, err := repo.PushAuthToken(ctx, "u1", tok, 2)
			assert.NoError(t, err)
		}(tok)
	}
	wg.Wait()

	stored, err := repo.AuthTokens(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"X", "Y"}, stored)
}

func TestAuthTokenRepository_RemoveAndClear(t *testing.T) {
	ctx := context.Background()
	repo := setupManager(t).Sessions()

	for _, tok := range []string{"A", "B"} {
		_, _, err := repo.PushAuthToken(ctx, "u1", tok, 5)
		require.NoError(t, err)
	}

	require.NoError(t, repo.RemoveAuthToken(ctx, "u1", "A"))
	stored, err := repo.AuthTokens(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, stored)

	require.NoError(t, repo.ClearAuthTokens(ctx, "u1"))
	stored, err = repo.AuthTokens(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestRepositories_LifecycleConsumeOnce(t *testing.T) {
	ctx := context.Background()
	m := setupManager(t)

	cfg := auth.DefaultConfig()
	cfg.SigningKey = "0123456789abcdef0123"

	engine := auth.NewLifecycleEngine(cfg, m.Users())
	user, err := m.Users().Create(ctx, auth.NewUser("flow@example.com"))
	require.NoError(t, err)

	token, err := engine.Request(ctx, user, auth.TokenKindConfirmation)
	require.NoError(t, err)

	confirmed, err := engine.Consume(ctx, auth.TokenKindConfirmation, token)
	require.NoError(t, err)
	assert.True(t, confirmed.Confirmed)

	_, err = engine.Consume(ctx, auth.TokenKindConfirmation, token)
	assert.True(t, auth.IsLifecycleNotFound(err))

	sessions := auth.NewSessionStore(cfg, m.Sessions())
	id, err := sessions.Issue(ctx, confirmed)
	require.NoError(t, err)

	ok, err := sessions.Valid(ctx, confirmed, id)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRepositories_StaleRequestKeepsConsumedToken(t *testing.T) {
	ctx := context.Background()
	m := setupManager(t)

	cfg := auth.DefaultConfig()
	cfg.SigningKey = "0123456789abcdef0123"

	engine := auth.NewLifecycleEngine(cfg, m.Users())
	user, err := m.Users().Create(ctx, auth.NewUser("stale@example.com"))
	require.NoError(t, err)

	token, err := engine.Request(ctx, user, auth.TokenKindConfirmation)
	require.NoError(t, err)

	stale, err := m.Users().FindBy(ctx, "id", user.ID.String())
	require.NoError(t, err)

	_, err = engine.Consume(ctx, auth.TokenKindConfirmation, token)
	require.NoError(t, err)

	_, err = engine.Request(ctx, stale, auth.TokenKindResetPassword)
	require.NoError(t, err)

	_, err = engine.Consume(ctx, auth.TokenKindConfirmation, token)
	assert.True(t, auth.IsLifecycleNotFound(err))

	stored, err := m.Users().FindBy(ctx, "id", user.ID.String())
	require.NoError(t, err)
	assert.True(t, stored.Confirmed)
	assert.NotNil(t, stored.ConfirmedAt)
	assert.Empty(t, stored.ConfirmationToken)
	assert.NotEmpty(t, stored.ResetPasswordToken)
}
