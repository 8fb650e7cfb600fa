package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenSeparator joins the identifier and verifier halves of a serialized
// token.
const TokenSeparator = "."

// NewTokenPair generates the two random halves of a token. The identifier is
// safe to store and index; the verifier only ever exists in the serialized
// token handed to the client, the database keeps its digest.
func NewTokenPair() (identifier, verifier uuid.UUID) {
	return uuid.New(), uuid.New()
}

// DigestVerifier computes the stored form of a verifier
func DigestVerifier(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return hex.EncodeToString(sum[:])
}

// FormatToken serializes a token pair for transport
func FormatToken(identifier, verifier uuid.UUID) string {
	return identifier.String() + TokenSeparator + verifier.String()
}

// ParseToken splits a serialized token into its identifier and verifier
// halves. The verifier comes back as the raw string; lookups compare its
// digest against the stored hash. Malformed input is reported with a coarse
// reason so callers can flavor it for their boundary.
func ParseToken(raw string) (uuid.UUID, string, error) {
	identifierPart, verifierPart, found := strings.Cut(raw, TokenSeparator)
	if !found {
		return uuid.Nil, "", goerrors.New("incomplete token", goerrors.CategoryAuth).
			WithTextCode(TextCodeAuthTokenInvalid).
			WithCode(goerrors.CodeUnauthorized)
	}

	if identifierPart == "" || verifierPart == "" {
		return uuid.Nil, "", goerrors.New("empty token part", goerrors.CategoryAuth).
			WithTextCode(TextCodeAuthTokenInvalid).
			WithCode(goerrors.CodeUnauthorized)
	}

	identifier, err := uuid.Parse(identifierPart)
	if err != nil {
		return uuid.Nil, "", goerrors.Wrap(err, goerrors.CategoryAuth, "invalid token").
			WithTextCode(TextCodeAuthTokenInvalid).
			WithCode(goerrors.CodeUnauthorized)
	}

	return identifier, verifierPart, nil
}

// VerifierMatches compares a presented verifier against a stored digest
func VerifierMatches(verifier, storedDigest string) bool {
	return DigestVerifier(verifier) == storedDigest
}
