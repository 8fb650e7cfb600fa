package auth_test

import (
	"context"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/lettermark/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializePasswordReset(t *testing.T) {
	repo := setupRepo(t)
	dispatcher, recorder := newTestDispatcher()
	handler := auth.NewInitializePasswordResetHandler(repo, dispatcher)
	ctx := context.Background()

	user := createUser(t, repo, "vaulted-orchid-kettle-9")

	var resp *auth.InitializePasswordResetResponse
	require.NoError(t, handler.Execute(ctx, auth.InitializePasswordResetMessage{
		Identifier: user.Email,
		OnResponse: func(r *auth.InitializePasswordResetResponse) {
			resp = r
		},
	}))
	require.NotNil(t, resp)
	assert.True(t, resp.Success)

	waitForTask(t, dispatcher, "password_reset_email")
	email := recorder.last(t)
	assert.Equal(t, user.Email, email.To)

	token := tokenFromEmail(t, email, "/auth/reset-password/")
	confirmation, err := repo.Confirmations().Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, auth.ActionPasswordReset, confirmation.Action)
	assert.Equal(t, user.ID, confirmation.UserID)
}

func TestInitializePasswordResetByUsername(t *testing.T) {
	repo := setupRepo(t)
	dispatcher, recorder := newTestDispatcher()
	handler := auth.NewInitializePasswordResetHandler(repo, dispatcher)

	user := createUser(t, repo, "vaulted-orchid-kettle-9")

	require.NoError(t, handler.Execute(context.Background(), auth.InitializePasswordResetMessage{
		Identifier: user.Username,
	}))

	waitForTask(t, dispatcher, "password_reset_email")
	assert.Equal(t, user.Email, recorder.last(t).To)
}

func TestInitializePasswordResetUnknownIdentifier(t *testing.T) {
	repo := setupRepo(t)
	dispatcher, recorder := newTestDispatcher()
	handler := auth.NewInitializePasswordResetHandler(repo, dispatcher)

	// identical outcome for unknown accounts, and no email
	var resp *auth.InitializePasswordResetResponse
	require.NoError(t, handler.Execute(context.Background(), auth.InitializePasswordResetMessage{
		Identifier: "nobody@example.com",
		OnResponse: func(r *auth.InitializePasswordResetResponse) {
			resp = r
		},
	}))
	require.NotNil(t, resp)
	assert.True(t, resp.Success)
	assert.Equal(t, 0, recorder.count())
}

func TestCheckPasswordReset(t *testing.T) {
	repo := setupRepo(t)
	handler := auth.NewCheckPasswordResetHandler(repo)
	ctx := context.Background()

	user := createUser(t, repo, "vaulted-orchid-kettle-9")

	_, token, err := repo.Confirmations().Issue(ctx, user.ID, auth.ActionPasswordReset, nil)
	require.NoError(t, err)

	var resp *auth.CheckPasswordResetResponse
	require.NoError(t, handler.Execute(ctx, auth.CheckPasswordResetMessage{
		Token: token,
		OnResponse: func(r *auth.CheckPasswordResetResponse) {
			resp = r
		},
	}))
	require.NotNil(t, resp)
	assert.Equal(t, user.Name, resp.Name)
	assert.Equal(t, user.Username, resp.Username)

	// checking does not consume the token
	_, err = repo.Confirmations().Resolve(ctx, token)
	assert.NoError(t, err)
}

func TestCheckPasswordResetRejectsVerificationToken(t *testing.T) {
	repo := setupRepo(t)
	handler := auth.NewCheckPasswordResetHandler(repo)
	ctx := context.Background()

	user := createUser(t, repo, "vaulted-orchid-kettle-9")

	_, token, err := repo.Confirmations().Issue(ctx, user.ID, auth.ActionUserVerification, map[string]any{
		"email": user.Email,
	})
	require.NoError(t, err)

	err = handler.Execute(ctx, auth.CheckPasswordResetMessage{Token: token})
	requireInvalidTokenError(t, err, "token does not reset a password")
}

func TestFinalizePasswordReset(t *testing.T) {
	repo := setupRepo(t)
	dispatcher, recorder := newTestDispatcher()
	handler := auth.NewFinalizePasswordResetHandler(repo, dispatcher)
	auther := auth.NewAuthenticator(repo)
	ctx := context.Background()

	user := createUser(t, repo, "vaulted-orchid-kettle-9")

	// two live sessions that must both die with the old password
	oldToken, _, err := auther.Login(ctx, user.Username, "vaulted-orchid-kettle-9")
	require.NoError(t, err)
	otherToken, _, err := auther.Login(ctx, user.Username, "vaulted-orchid-kettle-9")
	require.NoError(t, err)

	_, resetToken, err := repo.Confirmations().Issue(ctx, user.ID, auth.ActionPasswordReset, nil)
	require.NoError(t, err)

	var resp *auth.FinalizePasswordResetResponse
	require.NoError(t, handler.Execute(ctx, auth.FinalizePasswordResetMessage{
		Token:    resetToken,
		Password: "brand-new-quartz-lantern-7",
		OnResponse: func(r *auth.FinalizePasswordResetResponse) {
			resp = r
		},
	}))
	require.NotNil(t, resp)

	// old sessions are gone, the replacement works
	_, _, err = repo.Sessions().Resolve(ctx, oldToken)
	requireAuthTokenError(t, err, "token not found")
	_, _, err = repo.Sessions().Resolve(ctx, otherToken)
	requireAuthTokenError(t, err, "token not found")

	resolved, _, err := repo.Sessions().Resolve(ctx, resp.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)

	// the password actually changed
	_, _, err = auther.Login(ctx, user.Username, "vaulted-orchid-kettle-9")
	requireLoginFailed(t, err, "username or password is incorrect")
	_, _, err = auther.Login(ctx, user.Username, "brand-new-quartz-lantern-7")
	require.NoError(t, err)

	// the reset token is spent
	err = handler.Execute(ctx, auth.FinalizePasswordResetMessage{
		Token:    resetToken,
		Password: "brand-new-quartz-lantern-7",
	})
	requireInvalidTokenError(t, err, "token not found")

	// the notice went out
	waitForTask(t, dispatcher, "password_changed_email")
	email := recorder.last(t)
	assert.Equal(t, user.Email, email.To)
	assert.Equal(t, "Your password was reset recently", email.Subject)
}

func TestFinalizePasswordResetRejectsWeakPassword(t *testing.T) {
	repo := setupRepo(t)
	handler := auth.NewFinalizePasswordResetHandler(repo, nil)
	ctx := context.Background()

	user := createUser(t, repo, "vaulted-orchid-kettle-9")

	_, resetToken, err := repo.Confirmations().Issue(ctx, user.ID, auth.ActionPasswordReset, nil)
	require.NoError(t, err)

	err = handler.Execute(ctx, auth.FinalizePasswordResetMessage{
		Token:    resetToken,
		Password: "password",
	})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, auth.TextCodeWeakPassword, richErr.TextCode)

	// a failed attempt does not consume the token
	_, err = repo.Confirmations().Resolve(ctx, resetToken)
	assert.NoError(t, err)
}

func TestFinalizePasswordResetExpiredToken(t *testing.T) {
	clock := newTestClock()
	repo := setupRepo(t, auth.WithManagerClock(clock))
	handler := auth.NewFinalizePasswordResetHandler(repo, nil)
	ctx := context.Background()

	user := createUser(t, repo, "vaulted-orchid-kettle-9")

	_, resetToken, err := repo.Confirmations().Issue(ctx, user.ID, auth.ActionPasswordReset, nil)
	require.NoError(t, err)

	clock.Advance(auth.ConfirmationDuration + time.Hour)

	err = handler.Execute(ctx, auth.FinalizePasswordResetMessage{
		Token:    resetToken,
		Password: "brand-new-quartz-lantern-7",
	})
	requireInvalidTokenError(t, err, "token expired")
}
