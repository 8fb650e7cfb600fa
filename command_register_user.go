package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Name      string `json:"name"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	UseHashid bool

	// SessionMetadata is stored with the session opened for the new account
	SessionMetadata map[string]any

	OnResponse func(resp *RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

type RegisterUserResponse struct {
	User         *User
	SessionToken string
}

type RegisterUserHandler struct {
	repo       RepositoryManager
	dispatcher *Dispatcher
	activity   ActivitySink
	logger     Logger
}

func NewRegisterUserHandler(repo RepositoryManager, dispatcher *Dispatcher) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:       repo,
		dispatcher: dispatcher,
		activity:   noopActivitySink{},
		logger:     defLogger{},
	}
}

func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	user := &User{}
	resp := &RegisterUserResponse{}
	var verificationToken string

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		normalized, err := NormalizeUsername(event.Username)
		if err != nil {
			return err
		}

		if err := CheckPasswordStrength(event.Password, []string{event.Name, event.Username, event.Email}); err != nil {
			return err
		}

		email := strings.ToLower(strings.TrimSpace(event.Email))

		if _, err := h.repo.Users().GetByEmailTx(ctx, tx, email); err == nil {
			return goerrors.New("email already registered", goerrors.CategoryConflict).
				WithTextCode(TextCodeDuplicateIdentity).
				WithCode(goerrors.CodeBadRequest).
				WithMetadata(map[string]any{"field": "email"})
		} else if !goerrors.IsNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email uniqueness")
		}

		if _, err := h.repo.Users().GetByNormalizedUsernameTx(ctx, tx, normalized); err == nil {
			return goerrors.New("username not available", goerrors.CategoryConflict).
				WithTextCode(TextCodeDuplicateIdentity).
				WithCode(goerrors.CodeBadRequest).
				WithMetadata(map[string]any{"field": "username"})
		} else if !goerrors.IsNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check username uniqueness")
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			if richErr, ok := asRichError(err); ok {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.Name = event.Name
		user.Email = email
		user.Username = event.Username
		user.NormalizedUsername = normalized
		user.PasswordHash = Secret(hash)
		if event.UseHashid {
			if id, err := hashid.NewUUID(email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		_, verificationToken, err = h.repo.Confirmations().IssueTx(ctx, tx, user.ID, ActionUserVerification, map[string]any{
			"email": user.Email,
		})
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create verification confirmation")
		}

		_, resp.SessionToken, err = h.repo.Sessions().IssueTx(ctx, tx, user.ID, event.SessionMetadata)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create session")
		}

		return nil
	})

	if err != nil {
		if richErr, ok := asRichError(err); ok {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	resp.User = user

	if h.dispatcher != nil {
		h.dispatcher.SendVerification(user, verificationToken)
	}

	if err := h.activity.Record(ctx, ActivityEvent{
		EventType:  ActivityEventUserRegistered,
		UserID:     user.ID,
		Metadata:   map[string]any{"username": user.Username},
		OccurredAt: time.Now(),
	}); err != nil {
		h.logger.Error("activity sink record error: %v", err)
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
