package auth

import (
	"errors"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joeshaw/envdecode"
)

const (
	DefaultSigningMethod           = "HS256"
	DefaultKeyID                   = "primary"
	DefaultIssuer                  = "go-jwt-auth"
	DefaultNamespace               = "user"
	DefaultTokenExpiration         = 7 * 24 * time.Hour
	DefaultConfirmationExpiration  = 24 * time.Hour
	DefaultResetPasswordExpiration = 24 * time.Hour
	DefaultInvitationExpiration    = 48 * time.Hour
	DefaultSimultaneousSessions    = 2
	DefaultAuthFieldName           = "email"
	DefaultMailerSender            = "no-reply@example.com"
)

var authFieldNames = []any{"email", "id"}

var supportedSigningMethods = []any{
	"HS256", "HS384", "HS512",
	"RS256", "RS384", "RS512",
	"ES256", "ES384", "ES512",
	"EdDSA",
}

// Config holds auth options. It is built once at startup and handed by
// value to every component constructor.
type Config struct {
	// SigningKey is the shared secret for HS* methods.
	SigningKey string `env:"AUTH_SIGNING_KEY" json:"-"`
	// SigningMethod is the JWT alg, HS256 by default.
	SigningMethod string `env:"AUTH_SIGNING_METHOD" json:"signing_method"`
	// PrivateKeyPEM and PublicKeyPEM hold the key pair for RS*, ES* and EdDSA.
	PrivateKeyPEM string `env:"AUTH_PRIVATE_KEY" json:"-"`
	PublicKeyPEM  string `env:"AUTH_PUBLIC_KEY" json:"-"`
	// KeyID is written to the token header and required on verification.
	KeyID string `env:"AUTH_KEY_ID" json:"key_id"`

	Issuer string `env:"AUTH_ISSUER" json:"issuer"`
	// Namespace is the claims key holding the identity payload.
	Namespace string `env:"AUTH_NAMESPACE" json:"namespace"`

	TokenExpiration         time.Duration `env:"AUTH_TOKEN_EXPIRATION" json:"token_expiration"`
	ConfirmationExpiration  time.Duration `env:"AUTH_CONFIRMATION_EXPIRATION" json:"confirmation_expiration"`
	ResetPasswordExpiration time.Duration `env:"AUTH_RESET_PASSWORD_EXPIRATION" json:"reset_password_expiration"`
	InvitationExpiration    time.Duration `env:"AUTH_INVITATION_EXPIRATION" json:"invitation_expiration"`

	// SimultaneousSessions bounds the live session tokens per user.
	SimultaneousSessions int `env:"AUTH_SIMULTANEOUS_SESSIONS" json:"simultaneous_sessions"`

	ValidateIP        bool `env:"AUTH_VALIDATE_IP" json:"validate_ip"`
	ValidateUserAgent bool `env:"AUTH_VALIDATE_USER_AGENT" json:"validate_user_agent"`

	// DeliverLater dispatches lifecycle mails without waiting for the mailer.
	DeliverLater bool `env:"AUTH_DELIVER_LATER" json:"deliver_later"`
	// UseHashid derives user ids from the email when inviting users.
	UseHashid bool `env:"AUTH_USE_HASHID" json:"use_hashid"`

	// AuthFieldName is the user column Login matches the identifier against.
	AuthFieldName string `env:"AUTH_FIELD_NAME" json:"auth_field_name"`
	// MailerSender is the from address of lifecycle mails.
	MailerSender string `env:"AUTH_MAILER_SENDER" json:"mailer_sender"`

	// Front end pages that receive lifecycle tokens. Mails link to them
	// with the token in the <kind>_token query parameter.
	ConfirmationURL     string `env:"AUTH_CONFIRMATION_URL" json:"confirmation_url"`
	ResetPasswordURL    string `env:"AUTH_RESET_PASSWORD_URL" json:"reset_password_url"`
	SetPasswordURL      string `env:"AUTH_SET_PASSWORD_URL" json:"set_password_url"`
	AcceptInvitationURL string `env:"AUTH_ACCEPT_INVITATION_URL" json:"accept_invitation_url"`
}

// DefaultConfig returns a Config with every option set to its default.
// SigningKey (or a key pair) still has to be provided.
func DefaultConfig() Config {
	return Config{
		SigningMethod:           DefaultSigningMethod,
		KeyID:                   DefaultKeyID,
		Issuer:                  DefaultIssuer,
		Namespace:               DefaultNamespace,
		TokenExpiration:         DefaultTokenExpiration,
		ConfirmationExpiration:  DefaultConfirmationExpiration,
		ResetPasswordExpiration: DefaultResetPasswordExpiration,
		InvitationExpiration:    DefaultInvitationExpiration,
		SimultaneousSessions:    DefaultSimultaneousSessions,
		AuthFieldName:           DefaultAuthFieldName,
		MailerSender:            DefaultMailerSender,
	}
}

// LoadConfig reads AUTH_* environment variables on top of DefaultConfig.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode auth config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.SigningMethod, validation.Required, validation.In(supportedSigningMethods...)),
		validation.Field(&c.SigningKey, validation.By(c.requireSecret)),
		validation.Field(&c.PrivateKeyPEM, validation.By(c.requireKeyPair)),
		validation.Field(&c.KeyID, validation.Required),
		validation.Field(&c.Issuer, validation.Required),
		validation.Field(&c.Namespace, validation.Required),
		validation.Field(&c.TokenExpiration, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.ConfirmationExpiration, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.ResetPasswordExpiration, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.InvitationExpiration, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.SimultaneousSessions, validation.Required, validation.Min(1)),
		validation.Field(&c.AuthFieldName, validation.In(authFieldNames...)),
		validation.Field(&c.MailerSender, is.Email),
		validation.Field(&c.ConfirmationURL, is.URL),
		validation.Field(&c.ResetPasswordURL, is.URL),
		validation.Field(&c.SetPasswordURL, is.URL),
		validation.Field(&c.AcceptInvitationURL, is.URL),
	)
}

// TTL returns the expiration configured for a lifecycle token kind.
func (c Config) TTL(kind TokenKind) time.Duration {
	switch kind {
	case TokenKindConfirmation:
		return c.ConfirmationExpiration
	case TokenKindResetPassword:
		return c.ResetPasswordExpiration
	case TokenKindInvitation:
		return c.InvitationExpiration
	default:
		return 0
	}
}

// LifecycleLink returns the page URL a mail for kind points user to, with
// token added as the <kind>_token query parameter. Reset mails for users
// that never confirmed go to SetPasswordURL when it is configured. It
// returns "" when no page is configured for kind.
func (c Config) LifecycleLink(kind TokenKind, user *User, token string) string {
	var raw string
	switch kind {
	case TokenKindConfirmation:
		raw = c.ConfirmationURL
	case TokenKindResetPassword:
		raw = c.ResetPasswordURL
		if user != nil && !user.Confirmed && c.SetPasswordURL != "" {
			raw = c.SetPasswordURL
		}
	case TokenKindInvitation:
		raw = c.AcceptInvitationURL
	}

	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	q := u.Query()
	q.Set(kind.TokenField(), token)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c Config) authField() string {
	if c.AuthFieldName == "" {
		return DefaultAuthFieldName
	}
	return c.AuthFieldName
}

func (c Config) usesSharedSecret() bool {
	return strings.HasPrefix(c.SigningMethod, "HS")
}

func (c Config) requireSecret(value any) error {
	if !c.usesSharedSecret() {
		return nil
	}
	s, _ := value.(string)
	if len(s) < 16 {
		return errors.New("must be at least 16 characters for HMAC signing")
	}
	return nil
}

func (c Config) requireKeyPair(value any) error {
	if c.usesSharedSecret() {
		return nil
	}
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" || strings.TrimSpace(c.PublicKeyPEM) == "" {
		return errors.New("private and public keys are required for asymmetric signing")
	}
	return nil
}
