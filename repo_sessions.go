package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Sessions interface {
	repository.Repository[*Session]

	Issue(ctx context.Context, userID uuid.UUID, extraInfo map[string]any) (*Session, string, error)
	IssueTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, extraInfo map[string]any) (*Session, string, error)

	Resolve(ctx context.Context, token string) (*User, *Session, error)
	ResolveTx(ctx context.Context, tx bun.IDB, token string) (*User, *Session, error)

	Revoke(ctx context.Context, identifier uuid.UUID) error
	RevokeTx(ctx context.Context, tx bun.IDB, identifier uuid.UUID) error
	RevokeForUser(ctx context.Context, userID uuid.UUID) error
	RevokeForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error
}

type sessions struct {
	repository.Repository[*Session]
	db    *bun.DB
	clock Clock
}

var (
	_ Sessions                        = (*sessions)(nil)
	_ repository.Repository[*Session] = (*sessions)(nil)
)

type SessionsOption func(*sessions)

func WithSessionsClock(clock Clock) SessionsOption {
	return func(s *sessions) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewSessionsRepository(db *bun.DB, opts ...SessionsOption) Sessions {
	repo := repository.NewRepository[*Session](db, repository.ModelHandlers[*Session]{
		NewRecord: func() *Session { return &Session{} },
		GetID: func(s *Session) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.Identifier
		},
		SetID: func(s *Session, id uuid.UUID) {
			if s != nil {
				s.Identifier = id
			}
		},
	})

	repoSessions := &sessions{
		Repository: repo,
		db:         db,
		clock:      SystemClock(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoSessions)
		}
	}

	return repoSessions
}

func (a *sessions) Issue(ctx context.Context, userID uuid.UUID, extraInfo map[string]any) (*Session, string, error) {
	return a.IssueTx(ctx, a.db, userID, extraInfo)
}

// IssueTx creates a session row and returns the serialized token for the
// client. The verifier half of the token is not recoverable afterwards.
func (a *sessions) IssueTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, extraInfo map[string]any) (*Session, string, error) {
	session, token := NewSession(userID, extraInfo, a.clock.Now())

	created, err := a.Repository.CreateTx(ctx, tx, session)
	if err != nil {
		return nil, "", err
	}

	return created, token, nil
}

func (a *sessions) Resolve(ctx context.Context, token string) (*User, *Session, error) {
	return a.ResolveTx(ctx, a.db, token)
}

// ResolveTx validates a serialized token against the store and returns the
// owning user. Expired sessions are deleted on sight. Sessions close to
// expiry get their expiration pushed forward, so active users stay signed in.
func (a *sessions) ResolveTx(ctx context.Context, tx bun.IDB, token string) (*User, *Session, error) {
	identifier, verifier, err := ParseToken(token)
	if err != nil {
		return nil, nil, err
	}

	session := &Session{}
	err = tx.NewSelect().Model(session).
		Where("?TableAlias.identifier = ?", identifier).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil, NewAuthTokenError("token not found")
		}
		return nil, nil, err
	}

	now := a.clock.Now()

	if session.IsExpiredAt(now) {
		if err := a.RevokeTx(ctx, tx, session.Identifier); err != nil {
			return nil, nil, err
		}
		return nil, nil, NewAuthTokenError("token expired")
	}

	if !VerifierMatches(verifier, session.VerifierHash) {
		return nil, nil, NewAuthTokenError("token mismatch")
	}

	if session.ShouldExtendAt(now) {
		session.ExpirationDate = now.Add(SessionDuration)
		_, err = tx.NewUpdate().Model(session).
			Column("expiration_date").
			WherePK().
			Exec(ctx)
		if err != nil {
			return nil, nil, err
		}
	}

	user := &User{}
	err = tx.NewSelect().Model(user).
		Where("?TableAlias.id = ?", session.UserID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil, NewAuthTokenError("token not found")
		}
		return nil, nil, err
	}

	return user, session, nil
}

func (a *sessions) Revoke(ctx context.Context, identifier uuid.UUID) error {
	return a.RevokeTx(ctx, a.db, identifier)
}

// RevokeTx deletes a single session. Idempotent, revoking an absent session
// is not an error.
func (a *sessions) RevokeTx(ctx context.Context, tx bun.IDB, identifier uuid.UUID) error {
	_, err := tx.NewDelete().Model((*Session)(nil)).
		Where("?TableAlias.identifier = ?", identifier).
		Exec(ctx)

	return err
}

func (a *sessions) RevokeForUser(ctx context.Context, userID uuid.UUID) error {
	return a.RevokeForUserTx(ctx, a.db, userID)
}

// RevokeForUserTx deletes every session owned by the user. Used when a
// password changes.
func (a *sessions) RevokeForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	_, err := tx.NewDelete().Model((*Session)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Exec(ctx)

	return err
}
