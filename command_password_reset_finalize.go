package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// FinalizePasswordResetMessage consumes a reset token and replaces the
// account password. Every existing session is revoked and a fresh one is
// opened for the caller.
type FinalizePasswordResetMessage struct {
	Token    string `json:"token"`
	Password string `json:"password"`

	// SessionMetadata is stored with the replacement session
	SessionMetadata map[string]any

	OnResponse func(resp *FinalizePasswordResetResponse)
}

func (p FinalizePasswordResetMessage) Type() string { return "user.password_reset_finalize" }

type FinalizePasswordResetResponse struct {
	User         *User
	SessionToken string
}

type FinalizePasswordResetHandler struct {
	repo       RepositoryManager
	dispatcher *Dispatcher
	activity   ActivitySink
	logger     Logger
}

func NewFinalizePasswordResetHandler(repo RepositoryManager, dispatcher *Dispatcher) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:       repo,
		dispatcher: dispatcher,
		activity:   noopActivitySink{},
		logger:     defLogger{},
	}
}

func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	resp := &FinalizePasswordResetResponse{}
	var user *User

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		confirmation, err := h.repo.Confirmations().ResolveTx(ctx, tx, event.Token)
		if err != nil {
			return err
		}

		if confirmation.Action != ActionPasswordReset {
			return NewInvalidTokenError("token does not reset a password")
		}

		user, err = getUserByIDTx(ctx, tx, confirmation.UserID)
		if err != nil {
			if goerrors.IsNotFound(err) {
				if err := h.repo.Confirmations().DiscardTx(ctx, tx, confirmation.Identifier); err != nil {
					return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to discard orphaned confirmation")
				}
				return NewInvalidTokenError("token not found")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
		}

		if err := CheckPasswordStrength(event.Password, []string{user.Name, user.Username}); err != nil {
			return err
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			if richErr, ok := asRichError(err); ok {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		if err := h.repo.Users().UpdatePasswordTx(ctx, tx, user.ID, hash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password")
		}
		user.PasswordHash = Secret(hash)

		if err := h.repo.Sessions().RevokeForUserTx(ctx, tx, user.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke user sessions")
		}

		if err := h.repo.Confirmations().ClearTx(ctx, tx, user.ID, ActionPasswordReset); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear password reset confirmations")
		}

		_, resp.SessionToken, err = h.repo.Sessions().IssueTx(ctx, tx, user.ID, event.SessionMetadata)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create replacement session")
		}

		return nil
	})

	if err != nil {
		if richErr, ok := asRichError(err); ok {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	resp.User = user

	if h.dispatcher != nil {
		h.dispatcher.SendPasswordChanged(user)
	}

	if err := h.activity.Record(ctx, ActivityEvent{
		EventType:  ActivityEventPasswordResetSuccess,
		UserID:     user.ID,
		Metadata:   map[string]any{},
		OccurredAt: time.Now(),
	}); err != nil {
		h.logger.Error("activity sink record error: %v", err)
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
