package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Confirmations interface {
	repository.Repository[*Confirmation]

	Issue(ctx context.Context, userID uuid.UUID, action ConfirmationAction, details map[string]any) (*Confirmation, string, error)
	IssueTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, action ConfirmationAction, details map[string]any) (*Confirmation, string, error)

	Resolve(ctx context.Context, token string) (*Confirmation, error)
	ResolveTx(ctx context.Context, tx bun.IDB, token string) (*Confirmation, error)

	Discard(ctx context.Context, identifier uuid.UUID) error
	DiscardTx(ctx context.Context, tx bun.IDB, identifier uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID, action ConfirmationAction) error
	ClearTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, action ConfirmationAction) error

	ConsumeForVerificationTx(ctx context.Context, tx bun.IDB, confirmation *Confirmation) error
}

type confirmations struct {
	repository.Repository[*Confirmation]
	db    *bun.DB
	users Users
	clock Clock
}

var (
	_ Confirmations                        = (*confirmations)(nil)
	_ repository.Repository[*Confirmation] = (*confirmations)(nil)
)

type ConfirmationsOption func(*confirmations)

func WithConfirmationsClock(clock Clock) ConfirmationsOption {
	return func(c *confirmations) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithConfirmationsUsers shares an existing Users repository instead of
// building a private one.
func WithConfirmationsUsers(users Users) ConfirmationsOption {
	return func(c *confirmations) {
		if users != nil {
			c.users = users
		}
	}
}

func NewConfirmationsRepository(db *bun.DB, opts ...ConfirmationsOption) Confirmations {
	repo := repository.NewRepository[*Confirmation](db, repository.ModelHandlers[*Confirmation]{
		NewRecord: func() *Confirmation { return &Confirmation{} },
		GetID: func(c *Confirmation) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.Identifier
		},
		SetID: func(c *Confirmation, id uuid.UUID) {
			if c != nil {
				c.Identifier = id
			}
		},
	})

	repoConfirmations := &confirmations{
		Repository: repo,
		db:         db,
		clock:      SystemClock(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoConfirmations)
		}
	}

	if repoConfirmations.users == nil {
		repoConfirmations.users = NewUsersRepository(db)
	}

	return repoConfirmations
}

func (a *confirmations) Issue(ctx context.Context, userID uuid.UUID, action ConfirmationAction, details map[string]any) (*Confirmation, string, error) {
	return a.IssueTx(ctx, a.db, userID, action, details)
}

// IssueTx creates a confirmation row and returns the serialized token that
// goes into the emailed link.
func (a *confirmations) IssueTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, action ConfirmationAction, details map[string]any) (*Confirmation, string, error) {
	if details == nil {
		details = map[string]any{}
	}

	confirmation, token := NewConfirmation(userID, action, details, a.clock.Now())

	created, err := a.Repository.CreateTx(ctx, tx, confirmation)
	if err != nil {
		return nil, "", err
	}

	return created, token, nil
}

func (a *confirmations) Resolve(ctx context.Context, token string) (*Confirmation, error) {
	return a.ResolveTx(ctx, a.db, token)
}

// ResolveTx validates a serialized token and returns the full record so the
// caller can branch on the action type. Expired confirmations are deleted on
// sight; a consumed token reads as not found.
func (a *confirmations) ResolveTx(ctx context.Context, tx bun.IDB, token string) (*Confirmation, error) {
	identifier, verifier, err := ParseToken(token)
	if err != nil {
		return nil, a.reflavor(err)
	}

	confirmation := &Confirmation{}
	err = tx.NewSelect().Model(confirmation).
		Where("?TableAlias.identifier = ?", identifier).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, NewInvalidTokenError("token not found")
		}
		return nil, err
	}

	if confirmation.IsExpiredAt(a.clock.Now()) {
		if err := a.DiscardTx(ctx, tx, confirmation.Identifier); err != nil {
			return nil, err
		}
		return nil, NewInvalidTokenError("token expired")
	}

	if !VerifierMatches(verifier, confirmation.VerifierHash) {
		return nil, NewInvalidTokenError("token mismatch")
	}

	confirmation.Action = ParseConfirmationAction(confirmation.Action)

	return confirmation, nil
}

func (a *confirmations) Discard(ctx context.Context, identifier uuid.UUID) error {
	return a.DiscardTx(ctx, a.db, identifier)
}

// DiscardTx deletes a single confirmation. Idempotent.
func (a *confirmations) DiscardTx(ctx context.Context, tx bun.IDB, identifier uuid.UUID) error {
	_, err := tx.NewDelete().Model((*Confirmation)(nil)).
		Where("?TableAlias.identifier = ?", identifier).
		Exec(ctx)

	return err
}

func (a *confirmations) Clear(ctx context.Context, userID uuid.UUID, action ConfirmationAction) error {
	return a.ClearTx(ctx, a.db, userID, action)
}

// ClearTx deletes every confirmation of the given action type for a user
func (a *confirmations) ClearTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, action ConfirmationAction) error {
	_, err := tx.NewDelete().Model((*Confirmation)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.action_type = ?", action).
		Exec(ctx)

	return err
}

// ConsumeForVerificationTx marks the owning user confirmed and removes the
// confirmation, plus any other pending verification tokens for the same
// user, in one transaction scope.
func (a *confirmations) ConsumeForVerificationTx(ctx context.Context, tx bun.IDB, confirmation *Confirmation) error {
	if err := a.users.MarkConfirmedTx(ctx, tx, confirmation.UserID); err != nil {
		return err
	}

	return a.ClearTx(ctx, tx, confirmation.UserID, ActionUserVerification)
}

// session and confirmation tokens share the parser but not the failure
// flavor, token shape problems on this path are client input errors
func (a *confirmations) reflavor(err error) error {
	if richErr, ok := asRichError(err); ok {
		return NewInvalidTokenError(richErr.Message)
	}
	return err
}
