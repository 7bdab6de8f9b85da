package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

type RequestConfirmationMessage struct {
	Email string `json:"email"`
}

func (e RequestConfirmationMessage) Type() string { return "user.confirmation.request" }

// Validate checks the request payload
func (e RequestConfirmationMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.Email),
	)
}

// RequestConfirmationHandler sends a new confirmation token to an
// unconfirmed user
type RequestConfirmationHandler struct {
	users     UserRepository
	lifecycle *LifecycleEngine
}

// NewRequestConfirmationHandler creates a handler
func NewRequestConfirmationHandler(users UserRepository, lifecycle *LifecycleEngine) *RequestConfirmationHandler {
	return &RequestConfirmationHandler{users: users, lifecycle: lifecycle}
}

func (h *RequestConfirmationHandler) Execute(ctx context.Context, event RequestConfirmationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during confirmation request",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestConfirmationHandler) execute(ctx context.Context, event RequestConfirmationMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.users.FindBy(ctx, "email", NormalizeEmail(event.Email))
	if err != nil {
		return repoError(err, "failed to find user")
	}

	_, err = h.lifecycle.Request(ctx, user, TokenKindConfirmation)
	return err
}

type ConfirmAccountMessage struct {
	Token      string `json:"confirmation_token"`
	OnResponse func(user *User)
}

func (e ConfirmAccountMessage) Type() string { return "user.confirmation.consume" }

// ConfirmAccountHandler consumes a confirmation token
type ConfirmAccountHandler struct {
	lifecycle *LifecycleEngine
}

// NewConfirmAccountHandler creates a handler
func NewConfirmAccountHandler(lifecycle *LifecycleEngine) *ConfirmAccountHandler {
	return &ConfirmAccountHandler{lifecycle: lifecycle}
}

func (h *ConfirmAccountHandler) Execute(ctx context.Context, event ConfirmAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account confirmation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ConfirmAccountHandler) execute(ctx context.Context, event ConfirmAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.lifecycle.Consume(ctx, TokenKindConfirmation, event.Token)
	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}
	return nil
}
