package auth

import (
	"github.com/alexedwards/argon2id"
	"github.com/trustelem/zxcvbn"
)

// MinPasswordScore is the zxcvbn score (0-4) a password must reach
const MinPasswordScore = 3

// HashPassword will generate an argon2id password hash with a random salt
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	return argon2id.CreateHash(password, argon2id.DefaultParams)
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password. An unparsable stored hash reads as
// a mismatch rather than an internal error so login failures stay uniform.
func ComparePasswordAndHash(password, hash string) error {
	match, err := argon2id.ComparePasswordAndHash(password, hash)
	if err != nil || !match {
		return ErrMismatchedHashAndPassword
	}
	return nil
}

// CheckPasswordStrength estimates the password against the user's own
// identifying inputs, which zxcvbn penalizes as guessable material.
func CheckPasswordStrength(password string, userInputs []string) error {
	if password == "" {
		return ErrNoEmptyString
	}

	strength := zxcvbn.PasswordStrength(password, userInputs)
	if strength.Score < MinPasswordScore {
		return ErrWeakPassword.Clone().WithMetadata(map[string]any{
			"score":    strength.Score,
			"required": MinPasswordScore,
		})
	}

	return nil
}
