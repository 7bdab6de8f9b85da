package auth

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated subject
type Identity interface {
	ID() string
	Email() string
}

// RequestContext carries the values observed on the inbound request that
// a token may be bound to.
type RequestContext struct {
	IP        string
	UserAgent string
}

// Guard restricts a Save to records whose column still holds Value.
type Guard struct {
	Field string
	Value string
}

// UserRepository is the persistence collaborator for user records.
// FindBy must return ErrIdentityNotFound when no record matches.
type UserRepository interface {
	FindBy(ctx context.Context, field, value string) (*User, error)
	Create(ctx context.Context, user *User) (*User, error)
	// Update persists only the listed columns of user, so a stale copy
	// cannot overwrite columns it did not change. When guards are given the
	// update only applies if every guard matches, otherwise ErrStaleRecord.
	Update(ctx context.Context, user *User, columns []string, guards ...Guard) error
}

// TxUserRepository is a UserRepository that can run several writes as one
// unit. fn receives a repository bound to the transaction; returning an
// error rolls every write back.
type TxUserRepository interface {
	UserRepository
	RunInTx(ctx context.Context, fn func(ctx context.Context, users UserRepository) error) error
}

// runInTx runs fn in a transaction when users supports one
func runInTx(ctx context.Context, users UserRepository, fn func(ctx context.Context, users UserRepository) error) error {
	if tx, ok := users.(TxUserRepository); ok {
		return tx.RunInTx(ctx, fn)
	}
	return fn(ctx, users)
}

// SessionTokenRepository stores the ordered list of live session token ids
// for a user. PushAuthToken must append and trim atomically so concurrent
// pushes for the same user all survive.
type SessionTokenRepository interface {
	PushAuthToken(ctx context.Context, userID, token string, max int) (tokens []string, evicted int, err error)
	AuthTokens(ctx context.Context, userID string) ([]string, error)
	RemoveAuthToken(ctx context.Context, userID, token string) error
	ClearAuthTokens(ctx context.Context, userID string) error
}

// Mailer delivers lifecycle tokens out of band.
type Mailer interface {
	Send(ctx context.Context, kind TokenKind, user *User, token string) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, kind TokenKind, user *User, token string) error

// Send implements Mailer.
func (f MailerFunc) Send(ctx context.Context, kind TokenKind, user *User, token string) error {
	if f == nil {
		return nil
	}
	return f(ctx, kind, user, token)
}

// Clock returns the current time. Components read it once per operation.
type Clock func() time.Time

func normalizeClock(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
