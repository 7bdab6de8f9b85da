package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TokenKind names a lifecycle token slot on the user record
type TokenKind string

const (
	// TokenKindConfirmation confirms the account email
	TokenKindConfirmation TokenKind = "confirmation"
	// TokenKindResetPassword lets the user pick a new password
	TokenKindResetPassword TokenKind = "reset_password"
	// TokenKindInvitation lets an invited user set a password and sign in
	TokenKindInvitation TokenKind = "invitation"
)

// TokenKinds lists every lifecycle kind
var TokenKinds = []TokenKind{
	TokenKindConfirmation,
	TokenKindResetPassword,
	TokenKindInvitation,
}

// ParseTokenKind returns the kind named by s
func ParseTokenKind(s string) (TokenKind, bool) {
	k := TokenKind(strings.ToLower(strings.TrimSpace(s)))
	return k, k.Valid()
}

// Valid reports whether k is a known kind
func (k TokenKind) Valid() bool {
	switch k {
	case TokenKindConfirmation, TokenKindResetPassword, TokenKindInvitation:
		return true
	}
	return false
}

func (k TokenKind) String() string {
	return string(k)
}

// TokenField is the column holding the pending token for k
func (k TokenKind) TokenField() string {
	return string(k) + "_token"
}

// SentAtField is the column holding the issue time for k
func (k TokenKind) SentAtField() string {
	return string(k) + "_sent_at"
}

// Columns returns the token and sent at columns of k
func (k TokenKind) Columns() []string {
	return []string{k.TokenField(), k.SentAtField()}
}

// Writable user columns outside the lifecycle slots
const (
	ColumnEmail                = "email"
	ColumnPasswordHash         = "password_hash"
	ColumnConfirmed            = "confirmed"
	ColumnConfirmedAt          = "confirmed_at"
	ColumnInvitationAcceptedAt = "invitation_accepted_at"
	ColumnUpdatedAt            = "updated_at"
)

// User is the user model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID           uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Email        string    `bun:"email,notnull,unique" json:"email"`
	PasswordHash string    `bun:"password_hash" json:"-"`

	Confirmed   bool       `bun:"confirmed,notnull,default:false" json:"confirmed"`
	ConfirmedAt *time.Time `bun:"confirmed_at,nullzero" json:"confirmed_at,omitempty"`

	ConfirmationToken  string     `bun:"confirmation_token,nullzero,unique" json:"-"`
	ConfirmationSentAt *time.Time `bun:"confirmation_sent_at,nullzero" json:"confirmation_sent_at,omitempty"`

	ResetPasswordToken  string     `bun:"reset_password_token,nullzero,unique" json:"-"`
	ResetPasswordSentAt *time.Time `bun:"reset_password_sent_at,nullzero" json:"reset_password_sent_at,omitempty"`

	InvitationToken      string     `bun:"invitation_token,nullzero,unique" json:"-"`
	InvitationSentAt     *time.Time `bun:"invitation_sent_at,nullzero" json:"invitation_sent_at,omitempty"`
	InvitationAcceptedAt *time.Time `bun:"invitation_accepted_at,nullzero" json:"invitation_accepted_at,omitempty"`

	// AuthTokens is the last observed session sequence, oldest first.
	AuthTokens []string `bun:"-" json:"-"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// NewUser returns a user with a fresh id and a normalized email
func NewUser(email string) *User {
	return &User{
		ID:    uuid.New(),
		Email: NormalizeEmail(email),
	}
}

// NormalizeEmail lower cases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// LifecycleToken returns the pending token for kind and when it was sent
func (u *User) LifecycleToken(kind TokenKind) (string, *time.Time) {
	switch kind {
	case TokenKindConfirmation:
		return u.ConfirmationToken, u.ConfirmationSentAt
	case TokenKindResetPassword:
		return u.ResetPasswordToken, u.ResetPasswordSentAt
	case TokenKindInvitation:
		return u.InvitationToken, u.InvitationSentAt
	}
	return "", nil
}

// SetLifecycleToken replaces the pending token for kind
func (u *User) SetLifecycleToken(kind TokenKind, token string, sentAt time.Time) {
	at := sentAt
	switch kind {
	case TokenKindConfirmation:
		u.ConfirmationToken, u.ConfirmationSentAt = token, &at
	case TokenKindResetPassword:
		u.ResetPasswordToken, u.ResetPasswordSentAt = token, &at
	case TokenKindInvitation:
		u.InvitationToken, u.InvitationSentAt = token, &at
	}
}

// ClearLifecycleToken empties the slot for kind
func (u *User) ClearLifecycleToken(kind TokenKind) {
	switch kind {
	case TokenKindConfirmation:
		u.ConfirmationToken, u.ConfirmationSentAt = "", nil
	case TokenKindResetPassword:
		u.ResetPasswordToken, u.ResetPasswordSentAt = "", nil
	case TokenKindInvitation:
		u.InvitationToken, u.InvitationSentAt = "", nil
	}
}

// Confirm marks the user as confirmed at t
func (u *User) Confirm(t time.Time) {
	u.Confirmed = true
	u.ConfirmedAt = &t
}

// InvitationAccepted reports whether the user went through an invitation
func (u *User) InvitationAccepted() bool {
	return u.InvitationAcceptedAt != nil
}

// FieldValue returns the string value of a lookup column. It backs
// repositories that cannot query by column name.
func (u *User) FieldValue(field string) (string, bool) {
	switch field {
	case "id":
		return u.ID.String(), true
	case "email":
		return u.Email, true
	case "confirmation_token":
		return u.ConfirmationToken, true
	case "reset_password_token":
		return u.ResetPasswordToken, true
	case "invitation_token":
		return u.InvitationToken, true
	}
	return "", false
}

// ColumnValue returns the value of a writable column as stored in the
// database. Empty tokens and unset times are nil.
func (u *User) ColumnValue(column string) (any, bool) {
	switch p := u.column(column).(type) {
	case *string:
		if *p == "" {
			return nil, true
		}
		return *p, true
	case *bool:
		return *p, true
	case **time.Time:
		if *p == nil {
			return nil, true
		}
		return **p, true
	}
	return nil, false
}

// CopyColumns copies the listed columns of src into u. It returns the
// first column it does not know.
func (u *User) CopyColumns(src *User, columns ...string) (string, bool) {
	for _, column := range columns {
		switch dst := u.column(column).(type) {
		case *string:
			*dst = *src.column(column).(*string)
		case *bool:
			*dst = *src.column(column).(*bool)
		case **time.Time:
			*dst = cloneTime(*src.column(column).(**time.Time))
		default:
			return column, false
		}
	}
	return "", true
}

func (u *User) column(name string) any {
	switch name {
	case ColumnEmail:
		return &u.Email
	case ColumnPasswordHash:
		return &u.PasswordHash
	case ColumnConfirmed:
		return &u.Confirmed
	case ColumnConfirmedAt:
		return &u.ConfirmedAt
	case ColumnInvitationAcceptedAt:
		return &u.InvitationAcceptedAt
	case ColumnUpdatedAt:
		return &u.UpdatedAt
	case "confirmation_token":
		return &u.ConfirmationToken
	case "confirmation_sent_at":
		return &u.ConfirmationSentAt
	case "reset_password_token":
		return &u.ResetPasswordToken
	case "reset_password_sent_at":
		return &u.ResetPasswordSentAt
	case "invitation_token":
		return &u.InvitationToken
	case "invitation_sent_at":
		return &u.InvitationSentAt
	}
	return nil
}

// Clone returns a deep copy of u
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.ConfirmedAt = cloneTime(u.ConfirmedAt)
	c.ConfirmationSentAt = cloneTime(u.ConfirmationSentAt)
	c.ResetPasswordSentAt = cloneTime(u.ResetPasswordSentAt)
	c.InvitationSentAt = cloneTime(u.InvitationSentAt)
	c.InvitationAcceptedAt = cloneTime(u.InvitationAcceptedAt)
	c.CreatedAt = cloneTime(u.CreatedAt)
	c.UpdatedAt = cloneTime(u.UpdatedAt)
	if u.AuthTokens != nil {
		c.AuthTokens = append([]string(nil), u.AuthTokens...)
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
