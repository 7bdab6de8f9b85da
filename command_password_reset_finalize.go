package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

type FinalizePasswordResetMessage struct {
	Token    string `json:"reset_password_token" doc:"Reset password token"`
	Password string `json:"password" example:"some_secret_word" doc:"Password"`
}

func (e FinalizePasswordResetMessage) Type() string { return "user.password_reset.finalize" }

// Validate checks the new password
func (e FinalizePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Password, PasswordRules()...),
	)
}

// FinalizePasswordResetHandler consumes a reset password token, stores the
// new password and signs the user out everywhere
type FinalizePasswordResetHandler struct {
	lifecycle *LifecycleEngine
	sessions  *SessionStore
	activity  ActivitySink
	logger    Logger
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(lifecycle *LifecycleEngine, sessions *SessionStore) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		lifecycle: lifecycle,
		sessions:  sessions,
		activity:  noopActivitySink{},
		logger:    defLogger{},
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	// token errors take precedence over password errors
	if _, err := h.lifecycle.Peek(ctx, TokenKindResetPassword, event.Token); err != nil {
		return err
	}

	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
	}

	user, err := h.lifecycle.Consume(ctx, TokenKindResetPassword, event.Token, WithPassword(event.Password))
	if err != nil {
		return err
	}

	if err := h.sessions.RevokeAll(ctx, user); err != nil {
		h.logger.Error("FinalizePasswordReset failed to revoke sessions: %s", err)
		return err
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordReset,
		UserID:    user.ID.String(),
	})

	return nil
}
