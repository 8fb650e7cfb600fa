package auth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// leetSubstitutions folds the digits of common letter-for-digit spellings
// back into letters so visually interchangeable usernames collide on the
// same normalized form.
var leetSubstitutions = map[rune]rune{
	'0': 'o',
	'1': 'l',
	'2': 'z',
	'3': 'e',
	'4': 'a',
	'5': 's',
	'6': 'b',
	'7': 't',
	'8': 'b',
	'9': 'g',
}

// NormalizeUsername maps a display username to its canonical lowercase form.
// Only ASCII letters, digits, '.' and '_' are accepted. Digits are folded to
// their look-alike letters before lowercasing, so "Apple1" and "appleL"
// normalize to the same value. The function is idempotent.
func NormalizeUsername(raw string) (string, error) {
	if raw == "" {
		return "", goerrors.New("username cannot be empty", goerrors.CategoryValidation).
			WithTextCode(TextCodeInvalidUsername).
			WithCode(goerrors.CodeBadRequest)
	}

	var b strings.Builder
	b.Grow(len(raw))

	for _, r := range raw {
		if !isUsernameRune(r) {
			return "", ErrInvalidUsername.Clone().WithMetadata(map[string]any{
				"username": raw,
			})
		}
		if sub, ok := leetSubstitutions[r]; ok {
			r = sub
		}
		b.WriteRune(r)
	}

	return strings.ToLower(b.String()), nil
}

func isUsernameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '.' || r == '_':
		return true
	}
	return false
}
