package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

type RegisterUserMessage struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	OnResponse func(user *User)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate checks the registration payload
func (e RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&e.Password, PasswordRules()...),
	)
}

// RegisterUserHandler creates an unconfirmed user and sends it a
// confirmation token
type RegisterUserHandler struct {
	cfg       Config
	users     UserRepository
	lifecycle *LifecycleEngine
	activity  ActivitySink
	logger    Logger
}

// NewRegisterUserHandler creates a handler with sane defaults.
func NewRegisterUserHandler(cfg Config, users UserRepository, lifecycle *LifecycleEngine) *RegisterUserHandler {
	return &RegisterUserHandler{
		cfg:       cfg,
		users:     users,
		lifecycle: lifecycle,
		activity:  noopActivitySink{},
		logger:    defLogger{},
	}
}

// WithActivitySink sets the sink used to emit registration events.
func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration payload")
	}

	hash, err := HashPassword(event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := NewUser(event.Email)
	user.PasswordHash = hash
	if h.cfg.UseHashid {
		if id, err := hashid.NewUUID(user.Email); err == nil {
			user.ID = id
		}
	}

	// the account only exists if its confirmation token was stored and sent
	err = runInTx(ctx, h.users, func(ctx context.Context, users UserRepository) error {
		created, err := users.Create(ctx, user)
		if err != nil {
			return repoError(err, "could not create user")
		}

		if _, err := h.lifecycle.WithRepository(users).Request(ctx, created, TokenKindConfirmation); err != nil {
			h.logger.Error("RegisterUser failed to request confirmation: %s", err)
			return err
		}

		user = created
		return nil
	})
	if err != nil {
		return err
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventUserRegistered,
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"email": user.Email},
	})

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}
