package fiberauth

import (
	"encoding/json"
	stderrors "errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-jwt-auth"
	"github.com/goliatone/go-print"
)

// FieldError is one entry of a 422 errors list
type FieldError struct {
	Error string `json:"error"`
}

// bindRoot decodes the object under root into out. When root is missing it
// writes the 422 response and returns false.
func bindRoot(c *fiber.Ctx, root string, out any) (bool, error) {
	body := map[string]json.RawMessage{}
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return false, renderRequired(c, root)
		}
	}

	raw, ok := body[root]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return false, renderRequired(c, root)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return false, renderRequired(c, root)
	}

	return true, nil
}

func renderRequired(c *fiber.Ctx, root string) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{root: "is required"})
}

func renderFieldErrors(c *fiber.Ctx, errs map[string][]FieldError) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"errors": errs})
}

func renderValidation(c *fiber.Ctx, err error) error {
	var verrs validation.Errors
	if !stderrors.As(err, &verrs) {
		return renderFieldErrors(c, map[string][]FieldError{
			"base": {{Error: err.Error()}},
		})
	}

	errs := make(map[string][]FieldError, len(verrs))
	for field, ferr := range verrs {
		errs[field] = append(errs[field], FieldError{Error: ferr.Error()})
	}
	return renderFieldErrors(c, errs)
}

// errorCode maps lifecycle failures to the codes clients match on
func errorCode(err error) (string, bool) {
	switch auth.TextCodeOf(err) {
	case auth.TextCodeExpired:
		return "expired", true
	case auth.TextCodeNotFound, auth.TextCodeIdentityNotFound:
		return "not_found", true
	case auth.TextCodeAlreadyConfirmed:
		return "already_confirmed", true
	case auth.TextCodeAlreadyAccepted:
		return "already_accepted", true
	case auth.TextCodePasswordRequired:
		return "blank", true
	case auth.TextCodePasswordTooLong:
		return "too_long", true
	case auth.TextCodeValidation:
		return "taken", true
	}
	return "", false
}

// renderLifecycleError renders known lifecycle failures under field and
// anything else as a server error
func renderLifecycleError(c *fiber.Ctx, logger auth.Logger, field string, err error) error {
	code, ok := errorCode(err)
	if !ok {
		var verrs validation.Errors
		if stderrors.As(err, &verrs) {
			return renderValidation(c, verrs)
		}
		return renderInternal(c, logger, err)
	}

	if code == "blank" || code == "too_long" {
		field = "password"
	}

	return renderFieldErrors(c, map[string][]FieldError{
		field: {{Error: code}},
	})
}

func renderInternal(c *fiber.Ctx, logger auth.Logger, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	logger.Error("request failed: %s category=%v details=%s",
		richErr.Message,
		richErr.Category,
		print.MaybePrettyJSON(richErr.Metadata),
	)

	status := fiber.StatusInternalServerError
	if richErr.Category == goerrors.CategoryOperation {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{"error": "internal server error"})
}
