package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// ConfirmAccountMessage consumes a verification token on behalf of the
// authenticated caller.
type ConfirmAccountMessage struct {
	Token string `json:"token"`
	User  *User
}

func (e ConfirmAccountMessage) Type() string { return "user.confirm_account" }

type ConfirmAccountHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

func NewConfirmAccountHandler(repo RepositoryManager) *ConfirmAccountHandler {
	return &ConfirmAccountHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *ConfirmAccountHandler) WithLogger(logger Logger) *ConfirmAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ConfirmAccountHandler) WithActivitySink(sink ActivitySink) *ConfirmAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *ConfirmAccountHandler) Execute(ctx context.Context, event ConfirmAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account confirmation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ConfirmAccountHandler) execute(ctx context.Context, event ConfirmAccountMessage) error {
	if event.User == nil {
		return goerrors.New("account confirmation requires a user", goerrors.CategoryBadInput)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		confirmation, err := h.repo.Confirmations().ResolveTx(ctx, tx, event.Token)
		if err != nil {
			return err
		}

		if confirmation.UserID != event.User.ID {
			return ErrInsufficientPermission
		}

		if confirmation.Action != ActionUserVerification {
			return NewInvalidTokenError("token does not verify an account")
		}

		// a stale token issued before an email change must not confirm the
		// new address, throw it away
		email, ok := confirmation.DetailEmail()
		if !ok || !strings.EqualFold(email, event.User.Email) {
			if err := h.repo.Confirmations().DiscardTx(ctx, tx, confirmation.Identifier); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to discard stale confirmation")
			}
			return NewInvalidTokenError("token email does not match account")
		}

		if err := h.repo.Confirmations().ConsumeForVerificationTx(ctx, tx, confirmation); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume verification confirmation")
		}

		return nil
	})

	if err != nil {
		if richErr, ok := asRichError(err); ok {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to confirm account")
	}

	if err := h.activity.Record(ctx, ActivityEvent{
		EventType:  ActivityEventAccountVerified,
		UserID:     event.User.ID,
		Metadata:   map[string]any{},
		OccurredAt: time.Now(),
	}); err != nil {
		h.logger.Error("activity sink record error: %v", err)
	}

	return nil
}
