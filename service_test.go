package auth_test

import (
	"context"
	"strings"
	"testing"
	"time"

	auth "github.com/goliatone/go-jwt-auth"
	"github.com/goliatone/go-jwt-auth/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	svc    *auth.Service
	users  *memstore.Users
	mailer *recordingMailer
	sink   *recordingSink
}

func newServiceFixture(t *testing.T, mutate func(*auth.Config)) *serviceFixture {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	f := &serviceFixture{
		users:  memstore.NewUsers(),
		mailer: newRecordingMailer(),
		sink:   &recordingSink{},
	}

	svc, err := auth.NewService(cfg, f.users, memstore.NewSessions(),
		auth.WithServiceMailer(f.mailer),
		auth.WithServiceActivitySink(f.sink),
	)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *serviceFixture) register(t *testing.T, email, password string) *auth.User {
	t.Helper()
	var user *auth.User
	err := f.svc.RegisterUser.Execute(context.Background(), auth.RegisterUserMessage{
		Email:      email,
		Password:   password,
		OnResponse: func(u *auth.User) { user = u },
	})
	require.NoError(t, err)
	require.NotNil(t, user)
	return user
}

func TestNewServiceValidatesConfig(t *testing.T) {
	_, err := auth.NewService(auth.DefaultConfig(), memstore.NewUsers(), memstore.NewSessions())
	assert.Error(t, err)
}

func TestRegisterAndConfirm(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, nil)

	user := f.register(t, "User@Example.com", "password123")
	assert.Equal(t, "user@example.com", user.Email)
	assert.False(t, user.Confirmed)

	token := f.mailer.last(auth.TokenKindConfirmation)
	require.NotEmpty(t, token)

	_, err := f.svc.Auther.Login(ctx, "user@example.com", "password123", auth.RequestContext{})
	assert.True(t, auth.HasTextCode(err, auth.TextCodeUnconfirmed))

	var confirmed *auth.User
	err = f.svc.ConfirmAccount.Execute(ctx, auth.ConfirmAccountMessage{
		Token:      token,
		OnResponse: func(u *auth.User) { confirmed = u },
	})
	require.NoError(t, err)
	assert.True(t, confirmed.Confirmed)

	_, err = f.svc.Auther.Login(ctx, "user@example.com", "password123", auth.RequestContext{})
	assert.NoError(t, err)

	err = f.svc.RequestConfirmation.Execute(ctx, auth.RequestConfirmationMessage{Email: "user@example.com"})
	assert.True(t, auth.IsAlreadyConfirmed(err))

	assert.Contains(t, f.sink.types(), auth.ActivityEventUserRegistered)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, nil)
	f.register(t, "user@example.com", "password123")

	tests := []struct {
		name string
		msg  auth.RegisterUserMessage
	}{
		{name: "bad email", msg: auth.RegisterUserMessage{Email: "nope", Password: "password123"}},
		{name: "short password", msg: auth.RegisterUserMessage{Email: "a@example.com", Password: "short"}},
		{name: "duplicate email", msg: auth.RegisterUserMessage{Email: "USER@example.com", Password: "password123"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, f.svc.RegisterUser.Execute(ctx, tt.msg))
		})
	}
	assert.Equal(t, 1, f.users.Len())
}

func TestRequestConfirmationUnknownEmail(t *testing.T) {
	f := newServiceFixture(t, nil)

	err := f.svc.RequestConfirmation.Execute(context.Background(), auth.RequestConfirmationMessage{Email: "ghost@example.com"})
	assert.True(t, auth.IsIdentityNotFound(err))
}

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, nil)

	f.register(t, "user@example.com", "password123")
	require.NoError(t, f.svc.ConfirmAccount.Execute(ctx, auth.ConfirmAccountMessage{
		Token: f.mailer.last(auth.TokenKindConfirmation),
	}))

	jwt, err := f.svc.Auther.Login(ctx, "user@example.com", "password123", auth.RequestContext{})
	require.NoError(t, err)

	require.NoError(t, f.svc.InitializePasswordReset.Execute(ctx, auth.InitializePasswordResetMessage{
		Email: "user@example.com",
	}))
	token := f.mailer.last(auth.TokenKindResetPassword)
	require.NotEmpty(t, token)

	err = f.svc.FinalizePasswordReset.Execute(ctx, auth.FinalizePasswordResetMessage{Token: "bogus", Password: "x"})
	assert.True(t, auth.IsLifecycleNotFound(err), "token errors win over password validation")

	err = f.svc.FinalizePasswordReset.Execute(ctx, auth.FinalizePasswordResetMessage{Token: token, Password: "x"})
	require.Error(t, err)
	assert.False(t, auth.IsLifecycleNotFound(err))

	require.NoError(t, f.svc.FinalizePasswordReset.Execute(ctx, auth.FinalizePasswordResetMessage{
		Token:    token,
		Password: "new-password-456",
	}))

	_, err = f.svc.Gate.Authenticate(ctx, jwt, auth.RequestContext{})
	assert.True(t, auth.IsUnauthorized(err), "sessions are revoked after a reset")

	_, err = f.svc.Auther.Login(ctx, "user@example.com", "password123", auth.RequestContext{})
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidCredentials))

	_, err = f.svc.Auther.Login(ctx, "user@example.com", "new-password-456", auth.RequestContext{})
	assert.NoError(t, err)

	assert.Contains(t, f.sink.types(), auth.ActivityEventPasswordReset)
}

func TestInvitationFlow(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, nil)

	var invited *auth.User
	require.NoError(t, f.svc.InviteUser.Execute(ctx, auth.InviteUserMessage{
		Email:      "guest@example.com",
		InvitedBy:  "admin",
		OnResponse: func(u *auth.User) { invited = u },
	}))
	require.NotNil(t, invited)
	first := f.mailer.last(auth.TokenKindInvitation)

	require.NoError(t, f.svc.InviteUser.Execute(ctx, auth.InviteUserMessage{Email: "guest@example.com"}))
	second := f.mailer.last(auth.TokenKindInvitation)
	assert.NotEqual(t, first, second, "re inviting replaces the pending token")
	assert.Equal(t, 1, f.users.Len())

	var jwt string
	err := f.svc.AcceptInvitation.Execute(ctx, auth.AcceptInvitationMessage{
		Token:    second,
		Password: "guest-password-1",
		OnResponse: func(_ *auth.User, token string) {
			jwt = token
		},
	})
	require.NoError(t, err)

	user, err := f.svc.Gate.Authenticate(ctx, jwt, auth.RequestContext{})
	require.NoError(t, err)
	assert.Equal(t, invited.ID, user.ID)
	assert.True(t, user.Confirmed)

	err = f.svc.InviteUser.Execute(ctx, auth.InviteUserMessage{Email: "guest@example.com"})
	assert.True(t, auth.HasTextCode(err, auth.TextCodeAlreadyAccepted))

	assert.Contains(t, f.sink.types(), auth.ActivityEventUserInvited)
}

func TestInviteConfirmedUser(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, nil)

	f.register(t, "user@example.com", "password123")
	require.NoError(t, f.svc.ConfirmAccount.Execute(ctx, auth.ConfirmAccountMessage{
		Token: f.mailer.last(auth.TokenKindConfirmation),
	}))

	err := f.svc.InviteUser.Execute(ctx, auth.InviteUserMessage{Email: "user@example.com"})
	assert.True(t, auth.IsAlreadyConfirmed(err))
}

func TestInviteWithHashid(t *testing.T) {
	f := newServiceFixture(t, func(c *auth.Config) { c.UseHashid = true })

	var first, second *auth.User
	require.NoError(t, f.svc.InviteUser.Execute(context.Background(), auth.InviteUserMessage{
		Email:      "guest@example.com",
		OnResponse: func(u *auth.User) { first = u },
	}))

	other := newServiceFixture(t, func(c *auth.Config) { c.UseHashid = true })
	require.NoError(t, other.svc.InviteUser.Execute(context.Background(), auth.InviteUserMessage{
		Email:      "guest@example.com",
		OnResponse: func(u *auth.User) { second = u },
	}))

	assert.Equal(t, first.ID, second.ID, "ids derive from the email")
}

func TestHandlersHonourCancelledContext(t *testing.T) {
	f := newServiceFixture(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.svc.RegisterUser.Execute(ctx, auth.RegisterUserMessage{Email: "user@example.com", Password: "password123"})
	assert.Error(t, err)
	assert.Equal(t, 0, f.users.Len())
}

func TestRegisterRollsBackWhenMailFails(t *testing.T) {
	users := memstore.NewUsers()
	failing := auth.MailerFunc(func(context.Context, auth.TokenKind, *auth.User, string) error {
		return assert.AnError
	})

	svc, err := auth.NewService(testConfig(), users, memstore.NewSessions(), auth.WithServiceMailer(failing))
	require.NoError(t, err)

	ctx := context.Background()
	err = svc.RegisterUser.Execute(ctx, auth.RegisterUserMessage{Email: "user@example.com", Password: "password123"})
	require.Error(t, err)
	assert.Equal(t, 0, users.Len())

	err = svc.InviteUser.Execute(ctx, auth.InviteUserMessage{Email: "guest@example.com"})
	require.Error(t, err)
	assert.Equal(t, 0, users.Len())
}

func TestRegisterRejectsPasswordOverBcryptLimit(t *testing.T) {
	f := newServiceFixture(t, nil)

	err := f.svc.RegisterUser.Execute(context.Background(), auth.RegisterUserMessage{
		Email:    "user@example.com",
		Password: strings.Repeat("a", 80),
	})
	require.Error(t, err)
	assert.Equal(t, 0, f.users.Len())
}

func TestLogMailer(t *testing.T) {
	logger := &captureLogger{}
	mailer := auth.NewLogMailer(logger, testConfig())

	user := auth.NewUser("user@example.com")
	require.NoError(t, mailer.Send(context.Background(), auth.TokenKindConfirmation, user, "tok"))

	require.Len(t, logger.lines, 1)
	assert.Contains(t, logger.lines[0], "tok")
	assert.Contains(t, logger.lines[0], "user@example.com")
	assert.Contains(t, logger.lines[0], auth.DefaultMailerSender)
	assert.NotContains(t, logger.lines[0], "link")
}

func TestLogMailerLinksToConfiguredPage(t *testing.T) {
	cfg := testConfig()
	cfg.MailerSender = "auth@example.com"
	cfg.ConfirmationURL = "https://app.example.com/confirm"

	logger := &captureLogger{}
	mailer := auth.NewLogMailer(logger, cfg)

	user := auth.NewUser("user@example.com")
	require.NoError(t, mailer.Send(context.Background(), auth.TokenKindConfirmation, user, "tok"))

	require.Len(t, logger.lines, 1)
	assert.Contains(t, logger.lines[0], "auth@example.com")
	assert.Contains(t, logger.lines[0], "https://app.example.com/confirm?confirmation_token=tok")
}

func TestLoadedConfigDrivesService(t *testing.T) {
	t.Setenv("AUTH_SIGNING_KEY", testSigningKey)
	t.Setenv("AUTH_SIMULTANEOUS_SESSIONS", "1")
	t.Setenv("AUTH_TOKEN_EXPIRATION", "1h")

	cfg, err := auth.LoadConfig()
	require.NoError(t, err)

	svc, err := auth.NewService(cfg, memstore.NewUsers(), memstore.NewSessions())
	require.NoError(t, err)
	assert.Equal(t, 1, svc.Sessions.Max())
	assert.Equal(t, time.Hour, svc.Config.TokenExpiration)
}
