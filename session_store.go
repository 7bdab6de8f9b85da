package auth

import (
	"context"

	"github.com/google/uuid"
)

// SessionStore keeps a bounded, ordered list of live session token ids per
// user. Issuing past the limit evicts the oldest entries.
type SessionStore struct {
	repo     SessionTokenRepository
	max      int
	logger   Logger
	metrics  MetricsRecorder
	activity ActivitySink
	newID    func() string
}

// SessionStoreOption configures a SessionStore
type SessionStoreOption func(*SessionStore)

// WithSessionLogger sets the logger
func WithSessionLogger(logger Logger) SessionStoreOption {
	return func(s *SessionStore) {
		s.logger = logger
	}
}

// WithSessionMetrics sets the metrics recorder
func WithSessionMetrics(m MetricsRecorder) SessionStoreOption {
	return func(s *SessionStore) {
		s.metrics = m
	}
}

// WithSessionActivitySink sets the sink notified of evictions
func WithSessionActivitySink(sink ActivitySink) SessionStoreOption {
	return func(s *SessionStore) {
		s.activity = sink
	}
}

// WithSessionIDGenerator replaces the uuid generator for session ids
func WithSessionIDGenerator(fn func() string) SessionStoreOption {
	return func(s *SessionStore) {
		s.newID = fn
	}
}

// NewSessionStore returns a store bounded by cfg.SimultaneousSessions
func NewSessionStore(cfg Config, repo SessionTokenRepository, opts ...SessionStoreOption) *SessionStore {
	limit := cfg.SimultaneousSessions
	if limit < 1 {
		limit = DefaultSimultaneousSessions
	}

	s := &SessionStore{
		repo: repo,
		max:  limit,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.logger = normalizeLogger(s.logger)
	s.metrics = normalizeMetrics(s.metrics)
	s.activity = normalizeActivitySink(s.activity)
	if s.newID == nil {
		s.newID = uuid.NewString
	}

	return s
}

// Max is the number of sessions kept per user
func (s *SessionStore) Max() int {
	return s.max
}

// Issue appends a new session token id for user and returns it. The
// repository appends and trims in one step, so concurrent issues for the
// same user are all recorded.
func (s *SessionStore) Issue(ctx context.Context, user *User) (string, error) {
	if user == nil {
		return "", ErrIdentityNotFound.Clone()
	}

	id := s.newID()
	tokens, evicted, err := s.repo.PushAuthToken(ctx, user.ID.String(), id, s.max)
	if err != nil {
		s.logger.Error("SessionStore failed to push auth token: %s", err)
		return "", internalError(err, "failed to store session token")
	}

	user.AuthTokens = tokens
	s.metrics.SessionIssued(evicted)

	if evicted > 0 {
		s.logger.Debug("SessionStore evicted %d session(s) for user %s", evicted, user.ID)
		recordActivity(ctx, s.activity, s.logger, ActivityEvent{
			EventType: ActivityEventSessionEvicted,
			UserID:    user.ID.String(),
			Metadata: map[string]any{
				"evicted": evicted,
				"max":     s.max,
			},
		})
	}

	return id, nil
}

// Valid reports whether tokenID is among the live sessions of user
func (s *SessionStore) Valid(ctx context.Context, user *User, tokenID string) (bool, error) {
	if user == nil || tokenID == "" {
		return false, nil
	}

	tokens, err := s.repo.AuthTokens(ctx, user.ID.String())
	if err != nil {
		return false, internalError(err, "failed to load session tokens")
	}
	user.AuthTokens = tokens

	for _, t := range tokens {
		if t == tokenID {
			return true, nil
		}
	}
	return false, nil
}

// RevokeAll drops every live session of user
func (s *SessionStore) RevokeAll(ctx context.Context, user *User) error {
	if user == nil {
		return ErrIdentityNotFound.Clone()
	}

	if err := s.repo.ClearAuthTokens(ctx, user.ID.String()); err != nil {
		return internalError(err, "failed to revoke session tokens")
	}

	user.AuthTokens = []string{}
	s.metrics.SessionsRevoked()
	return nil
}

// Revoke drops a single session of user
func (s *SessionStore) Revoke(ctx context.Context, user *User, tokenID string) error {
	if user == nil {
		return ErrIdentityNotFound.Clone()
	}

	if err := s.repo.RemoveAuthToken(ctx, user.ID.String(), tokenID); err != nil {
		return internalError(err, "failed to revoke session token")
	}

	tokens := make([]string, 0, len(user.AuthTokens))
	for _, t := range user.AuthTokens {
		if t != tokenID {
			tokens = append(tokens, t)
		}
	}
	user.AuthTokens = tokens
	return nil
}
