package auth

import (
	"context"
	"strings"
)

// Gate authenticates bearer tokens on inbound requests. Every rejection is
// reported as ErrUnauthorized; the cause is only logged.
type Gate struct {
	cfg      Config
	codec    *Codec
	sessions *SessionStore
	users    UserRepository
	logger   Logger
	metrics  MetricsRecorder
}

// GateOption configures a Gate
type GateOption func(*Gate)

// WithGateLogger sets the logger
func WithGateLogger(logger Logger) GateOption {
	return func(g *Gate) {
		g.logger = logger
	}
}

// WithGateMetrics sets the metrics recorder
func WithGateMetrics(m MetricsRecorder) GateOption {
	return func(g *Gate) {
		g.metrics = m
	}
}

// NewGate wires the codec, session store and user repository
func NewGate(cfg Config, codec *Codec, sessions *SessionStore, users UserRepository, opts ...GateOption) *Gate {
	g := &Gate{
		cfg:      cfg,
		codec:    codec,
		sessions: sessions,
		users:    users,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	g.logger = normalizeLogger(g.logger)
	g.metrics = normalizeMetrics(g.metrics)

	return g
}

// BearerToken returns the last whitespace separated field of an
// Authorization header value
func BearerToken(header string) string {
	fields := strings.Fields(header)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// Authenticate resolves the user owning bearer. Token, payload, identity,
// session and request binding failures all return ErrUnauthorized.
// Failures of the repositories themselves are returned as internal errors
// so they are not reported to clients as bad credentials.
func (g *Gate) Authenticate(ctx context.Context, bearer string, rc RequestContext) (*User, error) {
	user, _, err := g.authenticate(ctx, bearer, rc)
	return user, err
}

// AuthenticateClaims is Authenticate that also returns the verified claims
func (g *Gate) AuthenticateClaims(ctx context.Context, bearer string, rc RequestContext) (*User, *Claims, error) {
	return g.authenticate(ctx, bearer, rc)
}

func (g *Gate) authenticate(ctx context.Context, bearer string, rc RequestContext) (*User, *Claims, error) {
	if strings.TrimSpace(bearer) == "" {
		return nil, nil, g.deny("missing bearer token", nil)
	}

	raw, err := g.codec.Decode(bearer)
	if err != nil {
		return nil, nil, g.deny("token rejected", err)
	}

	if !g.codec.ValidPayload(raw) {
		return nil, nil, g.deny("token payload is invalid", nil)
	}

	claims, err := ParseClaims(raw, g.codec.Namespace())
	if err != nil || claims.UserID == "" {
		return nil, nil, g.deny("token payload is invalid", err)
	}

	user, err := g.users.FindBy(ctx, "id", claims.UserID)
	if err != nil {
		if IsIdentityNotFound(err) {
			return nil, nil, g.deny("identity not found", err)
		}
		g.metrics.Authentication(OutcomeError)
		g.logger.Error("Gate failed to load identity %s: %s", claims.UserID, err)
		return nil, nil, internalError(err, "failed to load identity")
	}

	ok, err := g.sessions.Valid(ctx, user, claims.AuthToken)
	if err != nil {
		g.metrics.Authentication(OutcomeError)
		g.logger.Error("Gate failed to load sessions for %s: %s", claims.UserID, err)
		return nil, nil, err
	}
	if !ok {
		return nil, nil, g.deny("session token is not live", nil)
	}

	if g.cfg.ValidateIP && claims.IP != rc.IP {
		return nil, nil, g.deny("token bound to another ip", nil)
	}

	if g.cfg.ValidateUserAgent && claims.UserAgent != rc.UserAgent {
		return nil, nil, g.deny("token bound to another user agent", nil)
	}

	g.metrics.Authentication(OutcomeSuccess)
	return user, claims, nil
}

func (g *Gate) deny(reason string, cause error) error {
	g.metrics.Authentication(OutcomeUnauthorized)
	if cause != nil {
		g.logger.Debug("Gate unauthorized: %s: %s", reason, cause)
	} else {
		g.logger.Debug("Gate unauthorized: %s", reason)
	}
	return ErrUnauthorized.Clone()
}
