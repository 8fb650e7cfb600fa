package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// CheckPasswordResetMessage validates a reset token without consuming it, so
// the reset form can greet the account owner before asking for a new
// password.
type CheckPasswordResetMessage struct {
	Token string `json:"token"`

	OnResponse func(resp *CheckPasswordResetResponse)
}

func (p CheckPasswordResetMessage) Type() string { return "user.password_reset_check" }

type CheckPasswordResetResponse struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

type CheckPasswordResetHandler struct {
	repo   RepositoryManager
	logger Logger
}

func NewCheckPasswordResetHandler(repo RepositoryManager) *CheckPasswordResetHandler {
	return &CheckPasswordResetHandler{
		repo:   repo,
		logger: defLogger{},
	}
}

func (h *CheckPasswordResetHandler) WithLogger(logger Logger) *CheckPasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *CheckPasswordResetHandler) Execute(ctx context.Context, event CheckPasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset check",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CheckPasswordResetHandler) execute(ctx context.Context, event CheckPasswordResetMessage) error {
	resp := &CheckPasswordResetResponse{}

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

		user, err := getUserByIDTx(ctx, tx, confirmation.UserID)
		if err != nil {
			if goerrors.IsNotFound(err) {
				// orphaned confirmation, the account is gone
				if err := h.repo.Confirmations().DiscardTx(ctx, tx, confirmation.Identifier); err != nil {
					return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to discard orphaned confirmation")
				}
				return NewInvalidTokenError("token not found")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset check")
		}

		resp.Name = user.Name
		resp.Username = user.Username
		return nil
	})

	if err != nil {
		if richErr, ok := asRichError(err); ok {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check password reset")
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
