package fiberauth

import (
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	auth "github.com/goliatone/go-jwt-auth"
)

type Routes struct {
	Session       string
	Registration  string
	Confirmations string
	Passwords     string
	Invitations   string
	Metrics       string
}

// Controller exposes the auth service as a JSON API
type Controller struct {
	Service *auth.Service
	Logger  auth.Logger
	Routes  *Routes
	// Metrics is mounted on Routes.Metrics when set
	Metrics http.Handler
}

// NewController returns a controller with the default routes
func NewController(svc *auth.Service) *Controller {
	return &Controller{
		Service: svc,
		Logger:  defLogger{},
		Routes: &Routes{
			Session:       "/session",
			Registration:  "/registration",
			Confirmations: "/confirmations",
			Passwords:     "/passwords",
			Invitations:   "/invitations",
			Metrics:       "/metrics",
		},
	}
}

// RegisterRoutes mounts every endpoint on app
func (a *Controller) RegisterRoutes(app fiber.Router) {
	a.Logger = normalizeLogger(a.Logger)
	protected := Protected(a.Service.Gate, a.Logger)

	app.Post(a.Routes.Session, a.SessionCreate)
	app.Delete(a.Routes.Session, protected, a.SessionDestroy)

	app.Post(a.Routes.Registration, a.RegistrationCreate)

	app.Post(a.Routes.Confirmations, a.ConfirmationCreate)
	app.Put(a.Routes.Confirmations, a.ConfirmationUpdate)
	app.Put(a.Routes.Confirmations+"/:token", a.ConfirmationUpdate)

	app.Post(a.Routes.Passwords, a.PasswordCreate)
	app.Put(a.Routes.Passwords, a.PasswordUpdate)
	app.Put(a.Routes.Passwords+"/:token", a.PasswordUpdate)

	app.Post(a.Routes.Invitations, protected, a.InvitationCreate)
	app.Put(a.Routes.Invitations, a.InvitationUpdate)
	app.Put(a.Routes.Invitations+"/:token", a.InvitationUpdate)

	if a.Metrics != nil {
		app.Get(a.Routes.Metrics, adaptor.HTTPHandler(a.Metrics))
	}
}

// SessionPayload is the login payload
type SessionPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will validate the payload
func (r SessionPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *Controller) SessionCreate(c *fiber.Ctx) error {
	payload := SessionPayload{}
	if ok, err := bindRoot(c, "session", &payload); !ok {
		return err
	}

	if err := payload.Validate(); err != nil {
		return renderValidation(c, err)
	}

	jwt, err := a.Service.Auther.Login(c.UserContext(), payload.Email, payload.Password, requestContext(c))
	if err != nil {
		if auth.HasTextCode(err, auth.TextCodeInvalidCredentials) || auth.HasTextCode(err, auth.TextCodeUnconfirmed) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"errors": fiber.Map{"session": []string{errorMessage(err)}},
			})
		}
		return renderInternal(c, a.Logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session": fiber.Map{"jwt": jwt},
	})
}

func (a *Controller) SessionDestroy(c *fiber.Ctx) error {
	user, ok := CurrentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{})
	}

	if err := a.Service.Auther.Logout(c.UserContext(), user); err != nil {
		return renderInternal(c, a.Logger, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// RegistrationPayload is the sign up payload
type RegistrationPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will validate the payload
func (r RegistrationPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, auth.PasswordRules()...),
	)
}

func (a *Controller) RegistrationCreate(c *fiber.Ctx) error {
	payload := RegistrationPayload{}
	if ok, err := bindRoot(c, "user", &payload); !ok {
		return err
	}

	if err := payload.Validate(); err != nil {
		return renderValidation(c, err)
	}

	var created *auth.User
	err := a.Service.RegisterUser.Execute(c.UserContext(), auth.RegisterUserMessage{
		Email:      payload.Email,
		Password:   payload.Password,
		OnResponse: func(u *auth.User) { created = u },
	})
	if err != nil {
		return renderLifecycleError(c, a.Logger, "email", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user": fiber.Map{
			"id":    created.ID.String(),
			"email": created.Email,
		},
	})
}

// EmailPayload carries the email of the account a token is requested for
type EmailPayload struct {
	Email string `json:"email"`
}

// Validate will validate the payload
func (r EmailPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
	)
}

// PasswordPayload carries the password chosen with a reset or invitation token
type PasswordPayload struct {
	Password string `json:"password"`
}

func (a *Controller) ConfirmationCreate(c *fiber.Ctx) error {
	payload := EmailPayload{}
	if ok, err := bindRoot(c, "confirmation", &payload); !ok {
		return err
	}

	if err := payload.Validate(); err != nil {
		return renderValidation(c, err)
	}

	err := a.Service.RequestConfirmation.Execute(c.UserContext(), auth.RequestConfirmationMessage{
		Email: payload.Email,
	})
	if err != nil {
		return renderLifecycleError(c, a.Logger, "email", err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (a *Controller) ConfirmationUpdate(c *fiber.Ctx) error {
	err := a.Service.ConfirmAccount.Execute(c.UserContext(), auth.ConfirmAccountMessage{
		Token: c.Params("token"),
	})
	if err != nil {
		return renderLifecycleError(c, a.Logger, "confirmation_token", err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (a *Controller) PasswordCreate(c *fiber.Ctx) error {
	payload := EmailPayload{}
	if ok, err := bindRoot(c, "password", &payload); !ok {
		return err
	}

	if err := payload.Validate(); err != nil {
		return renderValidation(c, err)
	}

	err := a.Service.InitializePasswordReset.Execute(c.UserContext(), auth.InitializePasswordResetMessage{
		Email: payload.Email,
	})
	if err != nil {
		return renderLifecycleError(c, a.Logger, "email", err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (a *Controller) PasswordUpdate(c *fiber.Ctx) error {
	payload := PasswordPayload{}
	if ok, err := bindRoot(c, "password", &payload); !ok {
		return err
	}

	err := a.Service.FinalizePasswordReset.Execute(c.UserContext(), auth.FinalizePasswordResetMessage{
		Token:    c.Params("token"),
		Password: payload.Password,
	})
	if err != nil {
		return renderLifecycleError(c, a.Logger, "reset_password_token", err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (a *Controller) InvitationCreate(c *fiber.Ctx) error {
	payload := EmailPayload{}
	if ok, err := bindRoot(c, "invitation", &payload); !ok {
		return err
	}

	if err := payload.Validate(); err != nil {
		return renderValidation(c, err)
	}

	msg := auth.InviteUserMessage{Email: payload.Email}
	if inviter, ok := CurrentUser(c); ok {
		msg.InvitedBy = inviter.ID.String()
	}

	if err := a.Service.InviteUser.Execute(c.UserContext(), msg); err != nil {
		return renderLifecycleError(c, a.Logger, "email", err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (a *Controller) InvitationUpdate(c *fiber.Ctx) error {
	payload := PasswordPayload{}
	if ok, err := bindRoot(c, "invitation", &payload); !ok {
		return err
	}

	var jwt string
	err := a.Service.AcceptInvitation.Execute(c.UserContext(), auth.AcceptInvitationMessage{
		Token:    c.Params("token"),
		Password: payload.Password,
		Request:  requestContext(c),
		OnResponse: func(_ *auth.User, token string) {
			jwt = token
		},
	})
	if err != nil {
		return renderLifecycleError(c, a.Logger, "invitation_token", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session": fiber.Map{"jwt": jwt},
	})
}

func requestContext(c *fiber.Ctx) auth.RequestContext {
	return auth.RequestContext{
		IP:        c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
}

func errorMessage(err error) string {
	if auth.HasTextCode(err, auth.TextCodeUnconfirmed) {
		return auth.ErrUnconfirmed.Message
	}
	return auth.ErrInvalidCredentials.Message
}
