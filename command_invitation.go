package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

type InviteUserMessage struct {
	Email      string `json:"email"`
	InvitedBy  string `json:"-"`
	OnResponse func(user *User)
}

func (e InviteUserMessage) Type() string { return "user.invite" }

// Validate checks the invitation payload
func (e InviteUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, validation.Length(3, 254), is.Email),
	)
}

// InviteUserHandler creates a placeholder account for an email and sends
// it an invitation token. Pending invitations are re sent.
type InviteUserHandler struct {
	cfg       Config
	users     UserRepository
	lifecycle *LifecycleEngine
	activity  ActivitySink
	logger    Logger
}

// NewInviteUserHandler creates a handler with sane defaults.
func NewInviteUserHandler(cfg Config, users UserRepository, lifecycle *LifecycleEngine) *InviteUserHandler {
	return &InviteUserHandler{
		cfg:       cfg,
		users:     users,
		lifecycle: lifecycle,
		activity:  noopActivitySink{},
		logger:    defLogger{},
	}
}

// WithActivitySink sets the sink used to emit invitation events.
func (h *InviteUserHandler) WithActivitySink(sink ActivitySink) *InviteUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *InviteUserHandler) WithLogger(logger Logger) *InviteUserHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *InviteUserHandler) Execute(ctx context.Context, event InviteUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user invitation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InviteUserHandler) execute(ctx context.Context, event InviteUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid invitation payload")
	}

	email := NormalizeEmail(event.Email)

	var user *User
	err := runInTx(ctx, h.users, func(ctx context.Context, users UserRepository) error {
		found, err := users.FindBy(ctx, "email", email)
		switch {
		case err == nil:
			if found.Confirmed && !found.InvitationAccepted() {
				return ErrAlreadyConfirmed.Clone()
			}
		case IsIdentityNotFound(err):
			if found, err = h.create(ctx, users, email); err != nil {
				return err
			}
		default:
			return repoError(err, "failed to find user")
		}

		if _, err := h.lifecycle.WithRepository(users).Request(ctx, found, TokenKindInvitation); err != nil {
			return err
		}

		user = found
		return nil
	})
	if err != nil {
		return err
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventUserInvited,
		UserID:    user.ID.String(),
		Metadata: map[string]any{
			"email":      user.Email,
			"invited_by": event.InvitedBy,
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}

func (h *InviteUserHandler) create(ctx context.Context, users UserRepository, email string) (*User, error) {
	hash, err := RandomPasswordHash()
	if err != nil {
		return nil, err
	}

	user := NewUser(email)
	user.PasswordHash = hash
	if h.cfg.UseHashid {
		if id, err := hashid.NewUUID(email); err == nil {
			user.ID = id
		}
	}

	created, err := users.Create(ctx, user)
	if err != nil {
		return nil, repoError(err, "could not create invited user")
	}
	return created, nil
}

type AcceptInvitationMessage struct {
	Token      string         `json:"invitation_token"`
	Password   string         `json:"password"`
	Request    RequestContext `json:"-"`
	OnResponse func(user *User, jwt string)
}

func (e AcceptInvitationMessage) Type() string { return "user.invite.accept" }

// Validate checks the chosen password
func (e AcceptInvitationMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Password, PasswordRules()...),
	)
}

// AcceptInvitationHandler consumes an invitation token, stores the chosen
// password and signs the user in
type AcceptInvitationHandler struct {
	lifecycle *LifecycleEngine
	auther    *Auther
}

// NewAcceptInvitationHandler creates a handler
func NewAcceptInvitationHandler(lifecycle *LifecycleEngine, auther *Auther) *AcceptInvitationHandler {
	return &AcceptInvitationHandler{lifecycle: lifecycle, auther: auther}
}

func (h *AcceptInvitationHandler) Execute(ctx context.Context, event AcceptInvitationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during invitation acceptance",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *AcceptInvitationHandler) execute(ctx context.Context, event AcceptInvitationMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if _, err := h.lifecycle.Peek(ctx, TokenKindInvitation, event.Token); err != nil {
		return err
	}

	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
	}

	user, err := h.lifecycle.Consume(ctx, TokenKindInvitation, event.Token, WithPassword(event.Password))
	if err != nil {
		return err
	}

	token, err := h.auther.IssueToken(ctx, user, event.Request)
	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(user, token)
	}
	return nil
}
