package auth_test

import (
	"encoding/json"
	"fmt"
	"testing"

	auth "github.com/lettermark/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretRedaction(t *testing.T) {
	secret := auth.Secret("hunter2")

	assert.Equal(t, "[REDACTED]", secret.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", secret))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%s", secret))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%#v", secret))
	assert.Equal(t, "hunter2", secret.Expose())
}

func TestSecretJSON(t *testing.T) {
	out, err := json.Marshal(auth.Secret("hunter2"))
	require.NoError(t, err)
	assert.JSONEq(t, `"[REDACTED]"`, string(out))
}

func TestSecretScan(t *testing.T) {
	var secret auth.Secret

	require.NoError(t, secret.Scan("from-string"))
	assert.Equal(t, "from-string", secret.Expose())

	require.NoError(t, secret.Scan([]byte("from-bytes")))
	assert.Equal(t, "from-bytes", secret.Expose())

	require.NoError(t, secret.Scan(nil))
	assert.Equal(t, "", secret.Expose())

	assert.Error(t, secret.Scan(42))
}

func TestUserJSONHidesSensitiveFields(t *testing.T) {
	user := &auth.User{
		Name:               "Grace",
		Email:              "grace@example.com",
		Username:           "grace",
		NormalizedUsername: "grace",
		PasswordHash:       auth.Secret("$argon2id$..."),
	}

	out, err := json.Marshal(user)
	require.NoError(t, err)

	assert.NotContains(t, string(out), "argon2id")
	assert.NotContains(t, string(out), "password_hash")
	assert.NotContains(t, string(out), "normalized_username")
	assert.Contains(t, string(out), "grace@example.com")
}
