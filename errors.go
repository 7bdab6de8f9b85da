package auth

import (
	stderrors "errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeUnauthorized         = "UNAUTHORIZED"
	TextCodeTokenExpired         = "TOKEN_EXPIRED"
	TextCodeSignatureInvalid     = "SIGNATURE_INVALID"
	TextCodeTokenMalformed       = "TOKEN_MALFORMED"
	TextCodeExpired              = "EXPIRED"
	TextCodeNotFound             = "NOT_FOUND"
	TextCodeAlreadyConfirmed     = "ALREADY_CONFIRMED"
	TextCodeAlreadyAccepted      = "ALREADY_ACCEPTED"
	TextCodeIdentityNotFound     = "IDENTITY_NOT_FOUND"
	TextCodeValidation           = "VALIDATION_ERROR"
	TextCodeStaleRecord          = "STALE_RECORD"
	TextCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	TextCodeUnconfirmed          = "UNCONFIRMED"
	TextCodePasswordRequired     = "PASSWORD_REQUIRED"
	TextCodePasswordTooLong      = "PASSWORD_TOO_LONG"
	TextCodeUnknownTokenKind     = "UNKNOWN_TOKEN_KIND"
	TextCodeMissingExpiration    = "MISSING_EXPIRATION"
	TextCodeUnsupportedAlgorithm = "UNSUPPORTED_ALGORITHM"
)

// ErrUnauthorized is the only outcome callers of Gate see for a rejected token
var ErrUnauthorized = goerrors.New("unauthorized", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeUnauthorized)

// ErrTokenExpired the token exp claim is at or before now
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenExpired)

// ErrSignatureInvalid the token signature does not verify with the configured key
var ErrSignatureInvalid = goerrors.New("token signature is invalid", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeSignatureInvalid)

// ErrTokenMalformed the token is not a well formed JWT
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenMalformed)

// ErrLifecycleTokenExpired the pending token exists but its ttl elapsed
var ErrLifecycleTokenExpired = goerrors.New("token has expired", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeExpired)

// ErrLifecycleTokenNotFound no user holds the presented pending token
var ErrLifecycleTokenNotFound = goerrors.New("token not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode(TextCodeNotFound)

// ErrAlreadyConfirmed the user is already confirmed
var ErrAlreadyConfirmed = goerrors.New("user is already confirmed", goerrors.CategoryConflict).
	WithCode(goerrors.CodeConflict).
	WithTextCode(TextCodeAlreadyConfirmed)

// ErrInvitationAccepted the invitation was already accepted
var ErrInvitationAccepted = goerrors.New("invitation already accepted", goerrors.CategoryConflict).
	WithCode(goerrors.CodeConflict).
	WithTextCode(TextCodeAlreadyAccepted)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode(TextCodeIdentityNotFound)

// ErrValidation persistence rejected the record, e.g. duplicated email
var ErrValidation = goerrors.New("record failed validation", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeValidation)

// ErrStaleRecord a guarded save found the record changed underneath
var ErrStaleRecord = goerrors.New("record was modified concurrently", goerrors.CategoryConflict).
	WithCode(goerrors.CodeConflict).
	WithTextCode(TextCodeStaleRecord)

// ErrInvalidCredentials unknown email or wrong password
var ErrInvalidCredentials = goerrors.New("invalid email or password", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidCredentials)

// ErrUnconfirmed the account has to be confirmed before login
var ErrUnconfirmed = goerrors.New("account is not confirmed", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeUnconfirmed)

// ErrPasswordRequired consuming this token kind needs a new password
var ErrPasswordRequired = goerrors.New("password is required", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodePasswordRequired)

// ErrNoEmptyString password must not be empty
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodePasswordRequired)

// ErrPasswordTooLong bcrypt only reads the first MaxPasswordBytes bytes
var ErrPasswordTooLong = goerrors.New("password must be at most 72 bytes", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodePasswordTooLong)

// ErrMismatchedHashAndPassword bcrypt comparison failed
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidCredentials)

// HasTextCode walks the error chain looking for a go-errors value with code
func HasTextCode(err error, code string) bool {
	for err != nil {
		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) {
			return false
		}
		if richErr.TextCode == code {
			return true
		}
		err = stderrors.Unwrap(richErr)
	}
	return false
}

// TextCodeOf returns the text code of the first rich error in the chain
func TextCodeOf(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}

// IsUnauthorized reports a gate rejection
func IsUnauthorized(err error) bool { return HasTextCode(err, TextCodeUnauthorized) }

// IsTokenExpired reports an expired bearer token
func IsTokenExpired(err error) bool { return HasTextCode(err, TextCodeTokenExpired) }

// IsSignatureInvalid reports a bad signature
func IsSignatureInvalid(err error) bool { return HasTextCode(err, TextCodeSignatureInvalid) }

// IsTokenMalformed reports a token that could not be parsed
func IsTokenMalformed(err error) bool { return HasTextCode(err, TextCodeTokenMalformed) }

// IsLifecycleExpired reports an expired confirmation/reset/invitation token
func IsLifecycleExpired(err error) bool { return HasTextCode(err, TextCodeExpired) }

// IsLifecycleNotFound reports a confirmation/reset/invitation token that matched nobody
func IsLifecycleNotFound(err error) bool { return HasTextCode(err, TextCodeNotFound) }

// IsAlreadyConfirmed reports a confirmation attempt on a confirmed user
func IsAlreadyConfirmed(err error) bool { return HasTextCode(err, TextCodeAlreadyConfirmed) }

// IsIdentityNotFound reports a missing user record
func IsIdentityNotFound(err error) bool { return HasTextCode(err, TextCodeIdentityNotFound) }

// IsStaleRecord reports a failed guarded save
func IsStaleRecord(err error) bool { return HasTextCode(err, TextCodeStaleRecord) }

// IsValidationError reports a persistence validation failure
func IsValidationError(err error) bool { return HasTextCode(err, TextCodeValidation) }

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return IsTokenMalformed(err) || strings.Contains(err.Error(), "token is malformed")
}

// wrapAs clones sentinel and keeps err as its source
func wrapAs(sentinel *goerrors.Error, err error) *goerrors.Error {
	clone := sentinel.Clone()
	if err != nil {
		clone.Source = err
	}
	return clone
}

// internalError wraps a collaborator failure so it is never mistaken for a
// rejected credential
func internalError(err error, msg string) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Category == goerrors.CategoryInternal {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}

// repoError keeps categorised repository errors and wraps anything else as
// an internal failure
func repoError(err error, msg string) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}
