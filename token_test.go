package auth_test

import (
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	auth "github.com/lettermark/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	identifier, verifier := auth.NewTokenPair()
	assert.NotEqual(t, identifier, verifier)

	token := auth.FormatToken(identifier, verifier)
	assert.Equal(t, identifier.String()+"."+verifier.String(), token)

	parsedID, parsedVerifier, err := auth.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, identifier, parsedID)
	assert.Equal(t, verifier.String(), parsedVerifier)
	assert.True(t, auth.VerifierMatches(parsedVerifier, auth.DigestVerifier(verifier.String())))
}

func TestDigestVerifier(t *testing.T) {
	digest := auth.DigestVerifier("a2a5e52f-4e87-40a9-a3f1-9b00a9dbcf1f")

	assert.Len(t, digest, 64)
	assert.Equal(t, strings.ToLower(digest), digest)
	assert.Equal(t, digest, auth.DigestVerifier("a2a5e52f-4e87-40a9-a3f1-9b00a9dbcf1f"))
	assert.NotEqual(t, digest, auth.DigestVerifier("something else"))
}

func TestParseTokenRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		message string
	}{
		{
			name:    "missing separator",
			token:   uuid.New().String(),
			message: "incomplete token",
		},
		{
			name:    "empty string",
			token:   "",
			message: "incomplete token",
		},
		{
			name:    "empty identifier",
			token:   "." + uuid.New().String(),
			message: "empty token part",
		},
		{
			name:    "empty verifier",
			token:   uuid.New().String() + ".",
			message: "empty token part",
		},
		{
			name:    "identifier is not a uuid",
			token:   "not-a-uuid." + uuid.New().String(),
			message: "invalid token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := auth.ParseToken(tt.token)
			require.Error(t, err)

			var richErr *goerrors.Error
			require.True(t, goerrors.As(err, &richErr))
			assert.Equal(t, tt.message, richErr.Message)
			assert.Equal(t, goerrors.CategoryAuth, richErr.Category)
			assert.Equal(t, auth.TextCodeAuthTokenInvalid, richErr.TextCode)
		})
	}
}

func TestParseTokenSplitsOnFirstSeparator(t *testing.T) {
	identifier := uuid.New()
	_, verifier, err := auth.ParseToken(identifier.String() + ".left.right")
	require.NoError(t, err)
	assert.Equal(t, "left.right", verifier)
}
