package auth_test

import (
	"errors"
	"fmt"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/lettermark/go-auth"
	"github.com/stretchr/testify/assert"
)

func TestIsAuthTokenError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "session token error",
			err:      auth.NewAuthTokenError("token not found"),
			expected: true,
		},
		{
			name:     "wrapped session token error",
			err:      fmt.Errorf("resolving request: %w", auth.NewAuthTokenError("token expired")),
			expected: true,
		},
		{
			name:     "confirmation token error",
			err:      auth.NewInvalidTokenError("token not found"),
			expected: false,
		},
		{
			name:     "different structured error",
			err:      auth.ErrIdentityNotFound,
			expected: false,
		},
		{
			name:     "plain error",
			err:      errors.New("invalid token"),
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, auth.IsAuthTokenError(tt.err))
		})
	}
}

func TestStructuredErrorProperties(t *testing.T) {
	t.Run("ErrIdentityNotFound", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryNotFound, auth.ErrIdentityNotFound.Category)
		assert.Equal(t, "identity not found", auth.ErrIdentityNotFound.Message)
	})

	t.Run("ErrMismatchedHashAndPassword", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuth, auth.ErrMismatchedHashAndPassword.Category)
		assert.Equal(t, auth.TextCodeInvalidCreds, auth.ErrMismatchedHashAndPassword.TextCode)
		assert.Equal(t, "the credentials provided are invalid", auth.ErrMismatchedHashAndPassword.Message)
	})

	t.Run("ErrNoEmptyString", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryValidation, auth.ErrNoEmptyString.Category)
		assert.Equal(t, auth.TextCodeEmptyPassword, auth.ErrNoEmptyString.TextCode)
	})

	t.Run("ErrWeakPassword", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryValidation, auth.ErrWeakPassword.Category)
		assert.Equal(t, auth.TextCodeWeakPassword, auth.ErrWeakPassword.TextCode)
	})

	t.Run("ErrInvalidUsername", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryValidation, auth.ErrInvalidUsername.Category)
		assert.Equal(t, auth.TextCodeInvalidUsername, auth.ErrInvalidUsername.TextCode)
	})

	t.Run("ErrUserAlreadyVerified", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryConflict, auth.ErrUserAlreadyVerified.Category)
		assert.Equal(t, auth.TextCodeAlreadyVerified, auth.ErrUserAlreadyVerified.TextCode)
		assert.Equal(t, goerrors.CodeConflict, auth.ErrUserAlreadyVerified.Code)
	})

	t.Run("ErrInsufficientPermission", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuthz, auth.ErrInsufficientPermission.Category)
		assert.Equal(t, auth.TextCodeNotPermitted, auth.ErrInsufficientPermission.TextCode)
		assert.Equal(t, goerrors.CodeForbidden, auth.ErrInsufficientPermission.Code)
	})
}

func TestTokenErrorFlavors(t *testing.T) {
	sessionErr := auth.NewAuthTokenError("token mismatch")
	assert.Equal(t, goerrors.CategoryAuth, sessionErr.Category)
	assert.Equal(t, auth.TextCodeAuthTokenInvalid, sessionErr.TextCode)
	assert.Equal(t, goerrors.CodeUnauthorized, sessionErr.Code)

	confirmationErr := auth.NewInvalidTokenError("token mismatch")
	assert.Equal(t, goerrors.CategoryValidation, confirmationErr.Category)
	assert.Equal(t, auth.TextCodeTokenInvalid, confirmationErr.TextCode)
	assert.Equal(t, goerrors.CodeBadRequest, confirmationErr.Code)

	loginErr := auth.NewLoginFailedError("username not found")
	assert.Equal(t, goerrors.CategoryAuth, loginErr.Category)
	assert.Equal(t, auth.TextCodeLoginFailed, loginErr.TextCode)
	assert.Equal(t, goerrors.CodeUnauthorized, loginErr.Code)
}
