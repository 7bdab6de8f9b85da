package auth

import (
	"context"
	"time"
)

// Auther signs users in and out
type Auther struct {
	cfg          Config
	users        UserRepository
	codec        *Codec
	sessions     *SessionStore
	logger       Logger
	activitySink ActivitySink
	clock        Clock
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(cfg Config, users UserRepository, codec *Codec, sessions *SessionStore) *Auther {
	return &Auther{
		cfg:          cfg,
		users:        users,
		codec:        codec,
		sessions:     sessions,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		clock:        time.Now,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithClock overrides the time source used for token timestamps.
func (s *Auther) WithClock(clock Clock) *Auther {
	s.clock = normalizeClock(clock)
	return s
}

// Codec returns the codec used to sign tokens
func (s *Auther) Codec() *Codec {
	return s.codec
}

// Login checks the credentials and returns a signed session token. The
// identifier is matched against Config.AuthFieldName. Unknown identifiers
// and wrong passwords both return ErrInvalidCredentials.
func (s *Auther) Login(ctx context.Context, email, password string, rc RequestContext) (string, error) {
	field := s.cfg.authField()
	if field == DefaultAuthFieldName {
		email = NormalizeEmail(email)
	}

	user, err := s.users.FindBy(ctx, field, email)
	if err != nil {
		if IsIdentityNotFound(err) {
			s.emitAuthEvent(ctx, ActivityEventLoginFailure, "", map[string]any{
				"email": email,
				"error": "not_found",
			})
			return "", wrapAs(ErrInvalidCredentials, err)
		}
		s.logger.Error("Login failed to find user: %s", err)
		return "", repoError(err, "failed to find user")
	}

	if !user.Confirmed {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, user.ID.String(), map[string]any{
			"email": email,
			"error": "unconfirmed",
		})
		return "", ErrUnconfirmed.Clone()
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, user.ID.String(), map[string]any{
			"email": email,
			"error": "password",
		})
		return "", wrapAs(ErrInvalidCredentials, err)
	}

	token, err := s.IssueToken(ctx, user, rc)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, user.ID.String(), map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return "", err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, user.ID.String(), map[string]any{
		"email": email,
	})

	return token, nil
}

// IssueToken opens a new session for user and signs a token for it. The
// request ip and user agent are embedded when binding is enabled.
func (s *Auther) IssueToken(ctx context.Context, user *User, rc RequestContext) (string, error) {
	sessionID, err := s.sessions.Issue(ctx, user)
	if err != nil {
		return "", err
	}

	now := s.clock()
	claims := &Claims{
		UserID:    user.ID.String(),
		AuthToken: sessionID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.TokenExpiration),
	}
	if s.cfg.ValidateIP {
		claims.IP = rc.IP
	}
	if s.cfg.ValidateUserAgent {
		claims.UserAgent = rc.UserAgent
	}

	return s.codec.EncodeClaims(claims)
}

// Logout revokes every session of user
func (s *Auther) Logout(ctx context.Context, user *User) error {
	if err := s.sessions.RevokeAll(ctx, user); err != nil {
		return err
	}
	s.emitAuthEvent(ctx, ActivityEventLogout, user.ID.String(), nil)
	return nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, userID string, metadata map[string]any) {
	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType:  eventType,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: s.clock(),
	})
}
