package auth_test

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/lettermark/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func requireIdentityNotFound(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, auth.TextCodeIdentityNotFound, richErr.TextCode)
	assert.True(t, goerrors.IsNotFound(err))
}

func TestUsersGetByEmailOrUsername(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	user := createUser(t, repo, "vaulted-orchid-kettle-9")

	lookup := func(identifier string) (*auth.User, error) {
		var found *auth.User
		err := repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			var err error
			found, err = repo.Users().GetByEmailOrUsernameTx(ctx, tx, identifier)
			return err
		})
		return found, err
	}

	t.Run("by email", func(t *testing.T) {
		found, err := lookup(user.Email)
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("by username", func(t *testing.T) {
		found, err := lookup(user.Username)
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("unknown identifier", func(t *testing.T) {
		_, err := lookup("nobody@example.com")
		requireIdentityNotFound(t, err)
	})

	t.Run("unknown username", func(t *testing.T) {
		_, err := lookup("nobody.here")
		requireIdentityNotFound(t, err)
	})

	t.Run("unparseable identifier", func(t *testing.T) {
		_, err := lookup("not a username")
		requireIdentityNotFound(t, err)
	})
}
