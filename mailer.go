package auth

import (
	"context"

	"github.com/goliatone/go-print"
)

// LogMailer writes lifecycle mails to a Logger. Useful in development
// where no mail transport is configured.
type LogMailer struct {
	Logger Logger
	// Config supplies the sender and the page links.
	Config Config
}

// NewLogMailer returns a mailer that logs every delivery
func NewLogMailer(logger Logger, cfg Config) *LogMailer {
	return &LogMailer{Logger: normalizeLogger(logger), Config: cfg}
}

// Send implements Mailer
func (m *LogMailer) Send(_ context.Context, kind TokenKind, user *User, token string) error {
	logger := normalizeLogger(m.Logger)
	payload := map[string]any{
		"kind":  kind,
		"token": token,
		"from":  m.Config.MailerSender,
	}
	if link := m.Config.LifecycleLink(kind, user, token); link != "" {
		payload["link"] = link
	}
	if user != nil {
		payload["to"] = user.Email
		payload["user_id"] = user.ID.String()
	}
	logger.Info("deliver %s mail: %s", kind, print.MaybePrettyJSON(payload))
	return nil
}

type noopMailer struct{}

func (noopMailer) Send(context.Context, TokenKind, *User, string) error {
	return nil
}

func normalizeMailer(m Mailer) Mailer {
	if m == nil {
		return noopMailer{}
	}
	return m
}
