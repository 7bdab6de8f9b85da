package fiberauth

import (
	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-jwt-auth"
)

const (
	// LocalsUser holds the authenticated *auth.User
	LocalsUser = "auth_user"
	// LocalsClaims holds the verified *auth.Claims
	LocalsClaims = "auth_claims"
)

// Protected rejects requests without a live bearer token. Rejections get
// 401 with an empty JSON object; repository failures get 500.
func Protected(gate *auth.Gate, logger auth.Logger) fiber.Handler {
	logger = normalizeLogger(logger)

	return func(c *fiber.Ctx) error {
		rc := auth.RequestContext{
			IP:        c.IP(),
			UserAgent: c.Get(fiber.HeaderUserAgent),
		}
		bearer := auth.BearerToken(c.Get(fiber.HeaderAuthorization))

		user, claims, err := gate.AuthenticateClaims(c.UserContext(), bearer, rc)
		if err != nil {
			if auth.IsUnauthorized(err) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{})
			}
			return renderInternal(c, logger, err)
		}

		c.Locals(LocalsUser, user)
		c.Locals(LocalsClaims, claims)
		ctx := auth.WithContext(c.UserContext(), user)
		c.SetUserContext(auth.WithClaimsContext(ctx, claims))

		return c.Next()
	}
}

// CurrentUser returns the user stored by Protected
func CurrentUser(c *fiber.Ctx) (*auth.User, bool) {
	user, ok := c.Locals(LocalsUser).(*auth.User)
	return user, ok && user != nil
}

// CurrentClaims returns the claims stored by Protected
func CurrentClaims(c *fiber.Ctx) (*auth.Claims, bool) {
	claims, ok := c.Locals(LocalsClaims).(*auth.Claims)
	return claims, ok && claims != nil
}

type defLogger struct{}

func (defLogger) Debug(string, ...any) {}
func (defLogger) Info(string, ...any)  {}
func (defLogger) Warn(string, ...any)  {}
func (defLogger) Error(string, ...any) {}

func normalizeLogger(l auth.Logger) auth.Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}

// CurrentIdentity returns the authenticated user as an auth.Identity
func CurrentIdentity(c *fiber.Ctx) (auth.Identity, bool) {
	user, ok := CurrentUser(c)
	if !ok {
		return nil, false
	}
	return auth.NewIdentityFromUser(user), true
}
