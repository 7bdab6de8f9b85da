package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTokenKind(t *testing.T) {
	cases := []struct {
		in   string
		kind TokenKind
		ok   bool
	}{
		{in: "confirmation", kind: TokenKindConfirmation, ok: true},
		{in: " Reset_Password ", kind: TokenKindResetPassword, ok: true},
		{in: "invitation", kind: TokenKindInvitation, ok: true},
		{in: "unlock", ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			kind, ok := ParseTokenKind(tc.in)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.kind, kind)
			}
		})
	}
}

func TestTokenKindFields(t *testing.T) {
	assert.Equal(t, "confirmation_token", TokenKindConfirmation.TokenField())
	assert.Equal(t, "reset_password_sent_at", TokenKindResetPassword.SentAtField())
	assert.Equal(t, "invitation_token", TokenKindInvitation.TokenField())
}

func TestUserLifecycleSlots(t *testing.T) {
	u := NewUser("  User@Example.COM ")
	assert.Equal(t, "user@example.com", u.Email)

	sent := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, kind := range TokenKinds {
		u.SetLifecycleToken(kind, "token-"+kind.String(), sent)
	}

	for _, kind := range TokenKinds {
		token, at := u.LifecycleToken(kind)
		assert.Equal(t, "token-"+kind.String(), token)
		require.NotNil(t, at)
		assert.True(t, at.Equal(sent))

		value, ok := u.FieldValue(kind.TokenField())
		assert.True(t, ok)
		assert.Equal(t, token, value)
	}

	u.ClearLifecycleToken(TokenKindResetPassword)
	token, at := u.LifecycleToken(TokenKindResetPassword)
	assert.Empty(t, token)
	assert.Nil(t, at)

	token, _ = u.LifecycleToken(TokenKindConfirmation)
	assert.Equal(t, "token-confirmation", token, "slots are independent")
}

func TestUserClone(t *testing.T) {
	u := NewUser("user@example.com")
	u.Confirm(time.Now())
	u.AuthTokens = []string{"a", "b"}

	c := u.Clone()
	c.AuthTokens[0] = "z"
	*c.ConfirmedAt = time.Time{}

	assert.Equal(t, "a", u.AuthTokens[0])
	assert.False(t, u.ConfirmedAt.IsZero())
	assert.Nil(t, (*User)(nil).Clone())
}

func TestUserFieldValueUnknown(t *testing.T) {
	_, ok := NewUser("user@example.com").FieldValue("password_hash")
	assert.False(t, ok)
}

func TestUserIdentity(t *testing.T) {
	u := NewUser("user@example.com")

	identity := NewIdentityFromUser(u)
	require.NotNil(t, identity)
	assert.Equal(t, u.ID.String(), identity.ID())
	assert.Equal(t, "user@example.com", identity.Email())
	assert.Same(t, u, identity.(UserIdentity).User())

	assert.Nil(t, NewIdentityFromUser(nil))
}
