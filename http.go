package auth

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

// FieldError is one validation failure scoped to a request field
type FieldError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Params  map[string]any `json:"params,omitempty"`
}

// ErrorPayload is the wire shape of every error response
type ErrorPayload struct {
	Level   string                  `json:"level"`
	Message string                  `json:"message"`
	Status  int                     `json:"status"`
	Details map[string][]FieldError `json:"details,omitempty"`
}

type constraintMessage struct {
	field   string
	message string
}

// unique constraint names as reported by postgres and sqlite, mapped to the
// messages clients see when the pre-insert uniqueness checks race
var constraintMessages = map[string]constraintMessage{
	"users_email_key":               {"email", "Email already registered"},
	"users.email":                   {"email", "Email already registered"},
	"users_username_key":            {"username", "Username not available"},
	"users.username":                {"username", "Username not available"},
	"users_normalized_username_key": {"username", "Username not available"},
	"users.normalized_username":     {"username", "Username not available"},
	"idx_users_email":               {"email", "Email already registered"},
	"idx_users_normalized_username": {"username", "Username not available"},
}

// PayloadFromError converts any error into the wire payload. Internal
// failures collapse to a generic 500 body, nothing from inside the module
// leaks to clients.
func PayloadFromError(err error) *ErrorPayload {
	if err == nil {
		return nil
	}

	if verr, ok := err.(validation.Errors); ok {
		return payloadFromValidationErrors(verr)
	}

	if field, msg, ok := matchConstraint(err); ok {
		return &ErrorPayload{
			Level:   "error",
			Message: msg,
			Status:  fiber.StatusBadRequest,
			Details: map[string][]FieldError{
				field: {{Code: "unique", Message: msg}},
			},
		}
	}

	if richErr, ok := asRichError(err); ok {
		status := statusFromRichError(richErr)
		if status >= fiber.StatusInternalServerError {
			return internalErrorPayload()
		}

		payload := &ErrorPayload{
			Level:   "error",
			Message: richErr.Message,
			Status:  status,
		}

		if field, ok := fieldForTextCode(richErr.TextCode); ok {
			payload.Details = map[string][]FieldError{
				field: {{Code: strings.ToLower(richErr.TextCode), Message: richErr.Message}},
			}
		}

		return payload
	}

	return internalErrorPayload()
}

func payloadFromValidationErrors(verr validation.Errors) *ErrorPayload {
	details := map[string][]FieldError{}
	for field, ferr := range verr {
		details[field] = append(details[field], FieldError{
			Code:    "invalid",
			Message: ferr.Error(),
		})
	}

	return &ErrorPayload{
		Level:   "error",
		Message: "The request contains invalid fields",
		Status:  fiber.StatusBadRequest,
		Details: details,
	}
}

func internalErrorPayload() *ErrorPayload {
	return &ErrorPayload{
		Level:   "error",
		Message: "An unexpected error occurred",
		Status:  fiber.StatusInternalServerError,
	}
}

func statusFromRichError(richErr *goerrors.Error) int {
	if richErr.Code >= 400 && richErr.Code < 600 {
		return richErr.Code
	}

	switch richErr.Category {
	case goerrors.CategoryAuth:
		return fiber.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return fiber.StatusForbidden
	case goerrors.CategoryNotFound:
		return fiber.StatusNotFound
	case goerrors.CategoryValidation, goerrors.CategoryBadInput, goerrors.CategoryConflict:
		return fiber.StatusBadRequest
	case goerrors.CategoryRateLimit:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}

func fieldForTextCode(textCode string) (string, bool) {
	switch textCode {
	case TextCodeWeakPassword, TextCodeEmptyPassword:
		return "password", true
	case TextCodeInvalidUsername:
		return "username", true
	}
	return "", false
}

func matchConstraint(err error) (field, message string, ok bool) {
	text := err.Error()
	for constraint, m := range constraintMessages {
		if strings.Contains(text, constraint) {
			return m.field, m.message, true
		}
	}
	return "", "", false
}

// WriteError renders err as the wire payload. Server faults are logged with
// the original error before being collapsed.
func WriteError(c *fiber.Ctx, logger Logger, err error) error {
	payload := PayloadFromError(err)

	if payload.Status >= fiber.StatusInternalServerError {
		if logger == nil {
			logger = defLogger{}
		}
		logger.Error("request failed: %v", err)
	}

	return c.Status(payload.Status).JSON(payload)
}
