package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Sessions() Sessions
	Confirmations() Confirmations
}

type mngr struct {
	db            *bun.DB
	users         Users
	sessions      Sessions
	confirmations Confirmations
}

type ManagerOption func(*mngr)

// WithManagerClock threads a single clock through the session and
// confirmation repositories.
func WithManagerClock(clock Clock) ManagerOption {
	return func(m *mngr) {
		if clock == nil {
			return
		}
		m.sessions = NewSessionsRepository(m.db, WithSessionsClock(clock))
		m.confirmations = NewConfirmationsRepository(m.db,
			WithConfirmationsClock(clock),
			WithConfirmationsUsers(m.users),
		)
	}
}

func NewRepositoryManager(db *bun.DB, opts ...ManagerOption) RepositoryManager {
	m := &mngr{
		db:       db,
		users:    NewUsersRepository(db),
		sessions: NewSessionsRepository(db),
	}
	m.confirmations = NewConfirmationsRepository(db, WithConfirmationsUsers(m.users))

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.sessions == nil {
		return errors.New("repository sessions should be initialized")
	}

	if m.confirmations == nil {
		return errors.New("repository confirmations should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Sessions() Sessions {
	return m.sessions
}

func (m mngr) Confirmations() Confirmations {
	return m.confirmations
}
