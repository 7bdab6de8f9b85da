package repository

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-jwt-auth"
)

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "23505")
}

func uniqueViolation(err error) error {
	clone := auth.ErrValidation.Clone()
	clone.Source = err
	return clone.WithMetadata(map[string]any{
		"email": "has already been taken",
	})
}

func unknownField(field string) error {
	return goerrors.New("unknown lookup field", goerrors.CategoryBadInput).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{"field": field})
}
