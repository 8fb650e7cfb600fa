package auth

import (
	"context"
	"database/sql"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Auther authenticates credentials and manages the session lifecycle
type Auther struct {
	repo         RepositoryManager
	logger       Logger
	activitySink ActivitySink
}

// NewAuthenticator returns a new Auther
func NewAuthenticator(repo RepositoryManager) *Auther {
	return &Auther{
		repo:         repo,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// Login verifies the credentials and opens a session. The returned string is
// the serialized session token.
func (s *Auther) Login(ctx context.Context, username, password string) (string, *User, error) {
	return s.LoginWithMetadata(ctx, username, password, nil)
}

// LoginWithMetadata is Login with extra session metadata, request origin,
// user agent and the like.
func (s *Auther) LoginWithMetadata(ctx context.Context, username, password string, metadata map[string]any) (string, *User, error) {
	var token string
	var user *User

	err := s.repo.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		normalized, err := NormalizeUsername(username)
		if err != nil {
			// an unparseable username cannot belong to any account
			s.logger.Debug("login rejected, unparseable username %q", username)
			s.emitAuthEvent(ctx, ActivityEventLoginFailure, uuid.Nil, map[string]any{
				"reason": "invalid username",
			})
			return NewLoginFailedError("username not found")
		}

		user, err = s.repo.Users().GetByNormalizedUsernameTx(ctx, tx, normalized)
		if err != nil {
			if goerrors.IsNotFound(err) {
				s.logger.Debug("login failed, username %q not found", normalized)
				s.emitAuthEvent(ctx, ActivityEventLoginFailure, uuid.Nil, map[string]any{
					"reason": "username not found",
				})
				return NewLoginFailedError("username not found")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for login")
		}

		if !user.CheckPassword(password) {
			s.logger.Debug("login failed, password mismatch for %q", normalized)
			s.emitAuthEvent(ctx, ActivityEventLoginFailure, user.ID, map[string]any{
				"reason": "password mismatch",
			})
			return NewLoginFailedError("username or password is incorrect")
		}

		_, token, err = s.repo.Sessions().IssueTx(ctx, tx, user.ID, metadata)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create session")
		}

		// a successful login proves account control, pending password reset
		// tokens are no longer needed
		if err := s.repo.Confirmations().ClearTx(ctx, tx, user.ID, ActionPasswordReset); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear password reset confirmations")
		}

		return nil
	})

	if err != nil {
		return "", nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, user.ID, nil)

	return token, user, nil
}

// Logout revokes the caller's own session. Revoking an absent session is
// not an error.
func (s *Auther) Logout(ctx context.Context, sessionID uuid.UUID, userID uuid.UUID) error {
	err := s.repo.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return s.repo.Sessions().RevokeTx(ctx, tx, sessionID)
	})

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke session")
	}

	s.emitAuthEvent(ctx, ActivityEventLogout, userID, nil)

	return nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, userID uuid.UUID, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		UserID:    userID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Error("activity sink record error: %v", err)
	}
}
