package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// LifecycleEngine issues and consumes single use tokens for account
// confirmation, password reset and invitation acceptance. Each kind owns
// one slot on the user record, so requesting again replaces the pending
// token.
type LifecycleEngine struct {
	cfg      Config
	users    UserRepository
	mailer   Mailer
	logger   Logger
	clock    Clock
	metrics  MetricsRecorder
	activity ActivitySink
	newToken func() (string, error)
}

// LifecycleOption configures a LifecycleEngine
type LifecycleOption func(*LifecycleEngine)

// WithMailer sets the mailer used to deliver tokens
func WithMailer(m Mailer) LifecycleOption {
	return func(e *LifecycleEngine) {
		e.mailer = m
	}
}

// WithLifecycleLogger sets the logger
func WithLifecycleLogger(logger Logger) LifecycleOption {
	return func(e *LifecycleEngine) {
		e.logger = logger
	}
}

// WithLifecycleClock sets the time source
func WithLifecycleClock(clock Clock) LifecycleOption {
	return func(e *LifecycleEngine) {
		e.clock = clock
	}
}

// WithLifecycleMetrics sets the metrics recorder
func WithLifecycleMetrics(m MetricsRecorder) LifecycleOption {
	return func(e *LifecycleEngine) {
		e.metrics = m
	}
}

// WithLifecycleActivitySink sets the activity sink
func WithLifecycleActivitySink(sink ActivitySink) LifecycleOption {
	return func(e *LifecycleEngine) {
		e.activity = sink
	}
}

// WithTokenGenerator replaces the random token source
func WithTokenGenerator(fn func() (string, error)) LifecycleOption {
	return func(e *LifecycleEngine) {
		e.newToken = fn
	}
}

// NewLifecycleEngine creates an engine backed by users
func NewLifecycleEngine(cfg Config, users UserRepository, opts ...LifecycleOption) *LifecycleEngine {
	e := &LifecycleEngine{
		cfg:   cfg,
		users: users,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	e.mailer = normalizeMailer(e.mailer)
	e.logger = normalizeLogger(e.logger)
	e.clock = normalizeClock(e.clock)
	e.metrics = normalizeMetrics(e.metrics)
	e.activity = normalizeActivitySink(e.activity)
	if e.newToken == nil {
		e.newToken = generateToken
	}

	return e
}

// WithRepository returns a copy of e that reads and writes through users,
// typically a repository bound to a transaction
func (e *LifecycleEngine) WithRepository(users UserRepository) *LifecycleEngine {
	c := *e
	c.users = users
	return &c
}

// ConsumeOption carries the input some token kinds need on consumption
type ConsumeOption func(*consumeOptions)

type consumeOptions struct {
	password     string
	passwordHash string
}

// WithPassword hashes password and stores it when the token is consumed
func WithPassword(password string) ConsumeOption {
	return func(o *consumeOptions) {
		o.password = password
	}
}

// WithPasswordHash stores an already hashed password when the token is consumed
func WithPasswordHash(hash string) ConsumeOption {
	return func(o *consumeOptions) {
		o.passwordHash = hash
	}
}

// Request generates a token of kind for user, stores it with the send
// time and hands it to the mailer. Confirmed users cannot request a
// confirmation token and accepted invitations cannot be re sent; in both
// cases the user is left untouched.
func (e *LifecycleEngine) Request(ctx context.Context, user *User, kind TokenKind) (string, error) {
	if err := checkKind(kind); err != nil {
		return "", err
	}

	if user == nil {
		return "", ErrIdentityNotFound.Clone()
	}

	switch kind {
	case TokenKindConfirmation:
		if user.Confirmed {
			e.metrics.Lifecycle(kind, "request", OutcomeConflict)
			return "", ErrAlreadyConfirmed.Clone()
		}
	case TokenKindInvitation:
		if user.InvitationAccepted() {
			e.metrics.Lifecycle(kind, "request", OutcomeConflict)
			return "", ErrInvitationAccepted.Clone()
		}
	}

	token, err := e.newToken()
	if err != nil {
		e.metrics.Lifecycle(kind, "request", OutcomeError)
		return "", err
	}

	now := e.clock()
	user.SetLifecycleToken(kind, token, now)
	user.UpdatedAt = &now

	columns := append(kind.Columns(), ColumnUpdatedAt)
	if err := e.users.Update(ctx, user, columns); err != nil {
		e.logger.Error("LifecycleEngine failed to save %s token: %s", kind, err)
		e.metrics.Lifecycle(kind, "request", OutcomeError)
		return "", repoError(err, "failed to store lifecycle token")
	}

	if err := e.deliver(ctx, kind, user, token); err != nil {
		e.metrics.Lifecycle(kind, "request", OutcomeError)
		return "", err
	}

	e.metrics.Lifecycle(kind, "request", OutcomeSuccess)
	recordActivity(ctx, e.activity, e.logger, ActivityEvent{
		EventType:  ActivityEventLifecycleRequested,
		UserID:     user.ID.String(),
		Kind:       kind,
		OccurredAt: now,
	})

	return token, nil
}

// Consume applies the effect of token and clears it. A token can only be
// consumed once: the save is conditional on the slot still holding token,
// so a concurrent consume of the same value reports not found.
func (e *LifecycleEngine) Consume(ctx context.Context, kind TokenKind, token string, opts ...ConsumeOption) (*User, error) {
	o := &consumeOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	now := e.clock()
	user, err := e.lookup(ctx, kind, token, now, "consume")
	if err != nil {
		return nil, err
	}

	if kind == TokenKindConfirmation && user.Confirmed {
		e.reject(ctx, kind, "consume", OutcomeConflict, user)
		return nil, ErrAlreadyConfirmed.Clone()
	}

	if kind == TokenKindInvitation && user.InvitationAccepted() {
		e.reject(ctx, kind, "consume", OutcomeConflict, user)
		return nil, ErrInvitationAccepted.Clone()
	}

	columns := append(kind.Columns(), ColumnUpdatedAt)

	if kind != TokenKindConfirmation {
		hash, err := o.hash()
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
		columns = append(columns, ColumnPasswordHash)
	}

	switch kind {
	case TokenKindConfirmation:
		user.Confirm(now)
		columns = append(columns, ColumnConfirmed, ColumnConfirmedAt)
	case TokenKindInvitation:
		user.InvitationAcceptedAt = &now
		columns = append(columns, ColumnInvitationAcceptedAt)
		if !user.Confirmed {
			user.Confirm(now)
			columns = append(columns, ColumnConfirmed, ColumnConfirmedAt)
		}
	}

	user.ClearLifecycleToken(kind)
	user.UpdatedAt = &now

	err = e.users.Update(ctx, user, columns, Guard{Field: kind.TokenField(), Value: token})
	if err != nil {
		if IsStaleRecord(err) {
			e.reject(ctx, kind, "consume", OutcomeNotFound, user)
			return nil, wrapAs(ErrLifecycleTokenNotFound, err)
		}
		e.metrics.Lifecycle(kind, "consume", OutcomeError)
		return nil, repoError(err, "failed to consume lifecycle token")
	}

	e.metrics.Lifecycle(kind, "consume", OutcomeSuccess)
	recordActivity(ctx, e.activity, e.logger, ActivityEvent{
		EventType:  ActivityEventLifecycleConsumed,
		UserID:     user.ID.String(),
		Kind:       kind,
		OccurredAt: now,
	})

	return user, nil
}

// Peek returns the user holding a live token without consuming it
func (e *LifecycleEngine) Peek(ctx context.Context, kind TokenKind, token string) (*User, error) {
	return e.lookup(ctx, kind, token, e.clock(), "peek")
}

// Expired reports whether the token of kind held by user is past its ttl
// at now. A slot without a send time counts as expired.
func (e *LifecycleEngine) Expired(user *User, kind TokenKind, now time.Time) bool {
	_, sentAt := user.LifecycleToken(kind)
	if sentAt == nil {
		return true
	}
	return now.After(sentAt.Add(e.cfg.TTL(kind)))
}

func (e *LifecycleEngine) lookup(ctx context.Context, kind TokenKind, token string, now time.Time, action string) (*User, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}

	if strings.TrimSpace(token) == "" {
		e.reject(ctx, kind, action, OutcomeNotFound, nil)
		return nil, ErrLifecycleTokenNotFound.Clone()
	}

	user, err := e.users.FindBy(ctx, kind.TokenField(), token)
	if err != nil {
		if IsIdentityNotFound(err) || goerrors.IsNotFound(err) {
			e.reject(ctx, kind, action, OutcomeNotFound, nil)
			return nil, wrapAs(ErrLifecycleTokenNotFound, err)
		}
		e.metrics.Lifecycle(kind, action, OutcomeError)
		return nil, repoError(err, "failed to find lifecycle token")
	}

	if e.Expired(user, kind, now) {
		e.reject(ctx, kind, action, OutcomeExpired, user)
		return nil, ErrLifecycleTokenExpired.Clone().WithMetadata(map[string]any{
			"kind": kind,
		})
	}

	return user, nil
}

func (e *LifecycleEngine) reject(ctx context.Context, kind TokenKind, action, outcome string, user *User) {
	e.metrics.Lifecycle(kind, action, outcome)
	if action != "consume" {
		return
	}
	event := ActivityEvent{
		EventType: ActivityEventLifecycleRejected,
		Kind:      kind,
		Metadata:  map[string]any{"reason": outcome},
	}
	if user != nil {
		event.UserID = user.ID.String()
	}
	recordActivity(ctx, e.activity, e.logger, event)
}

func (e *LifecycleEngine) deliver(ctx context.Context, kind TokenKind, user *User, token string) error {
	if e.cfg.DeliverLater {
		recipient := user.Clone()
		go func() {
			if err := e.mailer.Send(context.WithoutCancel(ctx), kind, recipient, token); err != nil {
				e.logger.Error("LifecycleEngine failed to deliver %s mail: %s", kind, err)
			}
		}()
		return nil
	}

	if err := e.mailer.Send(ctx, kind, user, token); err != nil {
		e.logger.Error("LifecycleEngine failed to deliver %s mail: %s", kind, err)
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to deliver lifecycle token")
	}
	return nil
}

func (o *consumeOptions) hash() (string, error) {
	if o.passwordHash != "" {
		return o.passwordHash, nil
	}
	if o.password == "" {
		return "", ErrPasswordRequired.Clone()
	}
	return HashPassword(o.password)
}

func checkKind(kind TokenKind) error {
	if kind.Valid() {
		return nil
	}
	return goerrors.New("unknown token kind", goerrors.CategoryBadInput).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(TextCodeUnknownTokenKind).
		WithMetadata(map[string]any{"kind": string(kind)})
}
