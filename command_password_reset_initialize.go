package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

type InitializePasswordResetMessage struct {
	Email string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

// Validate checks the request payload
func (p InitializePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
	)
}

// InitializePasswordResetHandler sends a reset password token to the
// account owning the email
type InitializePasswordResetHandler struct {
	users     UserRepository
	lifecycle *LifecycleEngine
}

// NewInitializePasswordResetHandler creates a handler
func NewInitializePasswordResetHandler(users UserRepository, lifecycle *LifecycleEngine) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{users: users, lifecycle: lifecycle}
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.users.FindBy(ctx, "email", NormalizeEmail(event.Email))
	if err != nil {
		return repoError(err, "failed to find user")
	}

	_, err = h.lifecycle.Request(ctx, user, TokenKindResetPassword)
	return err
}
