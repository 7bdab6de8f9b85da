package auth

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest input bcrypt accepts
const MaxPasswordBytes = 72

// PasswordRules are the ozzo rules every chosen password goes through.
// Length counts runes, the byte cap keeps multibyte input within bcrypt.
func PasswordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(8, 0),
		validation.NewStringRule(func(s string) bool {
			return len(s) <= MaxPasswordBytes
		}, fmt.Sprintf("the length must be no more than %d bytes", MaxPasswordBytes)),
	}
}

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString.Clone()
	}

	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong.Clone()
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost())
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", wrapAs(ErrPasswordTooLong, err)
		}
		return "", internalError(err, "failed to hash password")
	}
	return string(h), nil
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return wrapAs(ErrMismatchedHashAndPassword, err)
		}
		return wrapAs(ErrInvalidCredentials, err)
	}
	return nil
}

// RandomPasswordHash returns the hash of a random password. Invited users
// hold one until they accept.
func RandomPasswordHash() (string, error) {
	return HashPassword(uuid.NewString())
}
