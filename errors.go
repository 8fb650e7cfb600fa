package auth

import (
	goerrors "github.com/goliatone/go-errors"
)

// Text codes carried across the HTTP boundary
const (
	TextCodeInvalidCreds      = "INVALID_CREDENTIALS"
	TextCodeEmptyPassword     = "EMPTY_PASSWORD"
	TextCodeWeakPassword      = "WEAK_PASSWORD"
	TextCodeInvalidUsername   = "INVALID_USERNAME"
	TextCodeAuthTokenInvalid  = "AUTH_TOKEN_INVALID"
	TextCodeTokenInvalid      = "TOKEN_INVALID"
	TextCodeUserNotVerified   = "USER_NOT_VERIFIED"
	TextCodeAlreadyVerified   = "USER_ALREADY_VERIFIED"
	TextCodeNotPermitted      = "INSUFFICIENT_PERMISSION"
	TextCodeLoginFailed       = "LOGIN_FAILED"
	TextCodeIdentityNotFound  = "IDENTITY_NOT_FOUND"
	TextCodeDuplicateIdentity = "DUPLICATE_IDENTITY"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrMismatchedHashAndPassword is returned when the password does not match
// the stored hash. The message is deliberately generic.
var ErrMismatchedHashAndPassword = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString rejects empty passwords before hashing
var ErrNoEmptyString = goerrors.New("password cannot be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrWeakPassword rejects passwords below the strength threshold
var ErrWeakPassword = goerrors.New("password is too weak", goerrors.CategoryValidation).
	WithTextCode(TextCodeWeakPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidUsername rejects usernames outside the allowed character set
var ErrInvalidUsername = goerrors.New("username contains invalid characters", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidUsername).
	WithCode(goerrors.CodeBadRequest)

// ErrUserNotVerified gates routes that require a confirmed account
var ErrUserNotVerified = goerrors.New("user account is not verified", goerrors.CategoryAuthz).
	WithTextCode(TextCodeUserNotVerified).
	WithCode(goerrors.CodeForbidden)

// ErrUserAlreadyVerified is returned when re-requesting verification for a
// confirmed account
var ErrUserAlreadyVerified = goerrors.New("user account is already verified", goerrors.CategoryConflict).
	WithTextCode(TextCodeAlreadyVerified).
	WithCode(goerrors.CodeConflict)

// ErrInsufficientPermission is returned when a token belongs to a different
// user than the authenticated caller
var ErrInsufficientPermission = goerrors.New("insufficient permission", goerrors.CategoryAuthz).
	WithTextCode(TextCodeNotPermitted).
	WithCode(goerrors.CodeForbidden)

// NewAuthTokenError flavors token resolution failures on the session path.
// These always surface as 401 regardless of the underlying reason.
func NewAuthTokenError(reason string) *goerrors.Error {
	return goerrors.New(reason, goerrors.CategoryAuth).
		WithTextCode(TextCodeAuthTokenInvalid).
		WithCode(goerrors.CodeUnauthorized)
}

// NewInvalidTokenError flavors token resolution failures on the confirmation
// path, where a bad token is client input rather than missing authentication.
func NewInvalidTokenError(reason string) *goerrors.Error {
	return goerrors.New(reason, goerrors.CategoryValidation).
		WithTextCode(TextCodeTokenInvalid).
		WithCode(goerrors.CodeBadRequest)
}

// NewLoginFailedError wraps login failures with a reason that is logged but
// shares a single text code toward clients.
func NewLoginFailedError(reason string) *goerrors.Error {
	return goerrors.New(reason, goerrors.CategoryAuth).
		WithTextCode(TextCodeLoginFailed).
		WithCode(goerrors.CodeUnauthorized)
}

// IsAuthTokenError checks whether err came out of session token resolution
func IsAuthTokenError(err error) bool {
	if richErr, ok := asRichError(err); ok {
		return richErr.TextCode == TextCodeAuthTokenInvalid
	}
	return false
}

func asRichError(err error) (*goerrors.Error, bool) {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr, true
	}
	return nil, false
}
