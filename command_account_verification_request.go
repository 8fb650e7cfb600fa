package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// VerificationRequestMessage re-issues a verification link for the
// authenticated, not yet confirmed caller.
type VerificationRequestMessage struct {
	User *User

	OnResponse func(resp *VerificationRequestResponse)
}

func (e VerificationRequestMessage) Type() string { return "user.verification_request" }

type VerificationRequestResponse struct {
	Confirmation *Confirmation
}

type VerificationRequestHandler struct {
	repo       RepositoryManager
	dispatcher *Dispatcher
	logger     Logger
}

func NewVerificationRequestHandler(repo RepositoryManager, dispatcher *Dispatcher) *VerificationRequestHandler {
	return &VerificationRequestHandler{
		repo:       repo,
		dispatcher: dispatcher,
		logger:     defLogger{},
	}
}

func (h *VerificationRequestHandler) WithLogger(logger Logger) *VerificationRequestHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *VerificationRequestHandler) Execute(ctx context.Context, event VerificationRequestMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during verification request",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerificationRequestHandler) execute(ctx context.Context, event VerificationRequestMessage) error {
	if event.User == nil {
		return goerrors.New("verification request requires a user", goerrors.CategoryBadInput)
	}

	if event.User.IsConfirmed {
		return ErrUserAlreadyVerified
	}

	resp := &VerificationRequestResponse{}
	var token string

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		confirmation, confirmationToken, err := h.repo.Confirmations().IssueTx(ctx, tx, event.User.ID, ActionUserVerification, map[string]any{
			"email": event.User.Email,
		})
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create verification confirmation")
		}

		resp.Confirmation = confirmation
		token = confirmationToken
		return nil
	})

	if err != nil {
		if richErr, ok := asRichError(err); ok {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to request account verification")
	}

	if h.dispatcher != nil {
		h.dispatcher.SendVerification(event.User, token)
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
