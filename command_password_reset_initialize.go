package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// InitializePasswordResetMessage starts a password reset for the account
// matching the identifier. The outcome is deliberately identical whether the
// account exists or not, callers learn nothing about registered identities.
type InitializePasswordResetMessage struct {
	Identifier string `json:"identifier"`

	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

type InitializePasswordResetResponse struct {
	Success bool
}

type InitializePasswordResetHandler struct {
	repo       RepositoryManager
	dispatcher *Dispatcher
	activity   ActivitySink
	logger     Logger
}

func NewInitializePasswordResetHandler(repo RepositoryManager, dispatcher *Dispatcher) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:       repo,
		dispatcher: dispatcher,
		activity:   noopActivitySink{},
		logger:     defLogger{},
	}
}

func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	resp := &InitializePasswordResetResponse{}

	var user *User
	var token string

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		found, err := h.repo.Users().GetByEmailOrUsernameTx(ctx, tx, event.Identifier)
		if err != nil {
			if goerrors.IsNotFound(err) {
				h.logger.Debug("password reset requested for unknown identifier")
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
		}

		user = found

		_, token, err = h.repo.Confirmations().IssueTx(ctx, tx, user.ID, ActionPasswordReset, map[string]any{})
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create password reset confirmation")
		}

		return nil
	})

	if err != nil {
		if richErr, ok := asRichError(err); ok {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	if user != nil {
		if h.dispatcher != nil {
			h.dispatcher.SendPasswordReset(user, token)
		}

		if err := h.activity.Record(ctx, ActivityEvent{
			EventType:  ActivityEventPasswordResetStarted,
			UserID:     user.ID,
			Metadata:   map[string]any{},
			OccurredAt: time.Now(),
		}); err != nil {
			h.logger.Error("activity sink record error: %v", err)
		}
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
