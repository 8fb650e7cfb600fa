package auth_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	auth "github.com/lettermark/go-auth"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	sqliteCreateUsers = `CREATE TABLE users (
    id TEXT NOT NULL PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    username TEXT NOT NULL UNIQUE,
    normalized_username TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    is_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

	sqliteCreateSessions = `CREATE TABLE sessions (
    identifier TEXT NOT NULL PRIMARY KEY,
    verifier_hash TEXT NOT NULL,
    user_id TEXT NOT NULL,
    extra_info TEXT,
    expiration_date TIMESTAMP NOT NULL,
    FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
);`

	sqliteCreateConfirmations = `CREATE TABLE confirmations (
    identifier TEXT NOT NULL PRIMARY KEY,
    verifier_hash TEXT NOT NULL,
    user_id TEXT NOT NULL,
    details TEXT,
    action_type TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    expires_at TIMESTAMP NOT NULL,
    FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
);`
)

func setupDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	_, err = bunDB.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	for _, ddl := range []string{sqliteCreateUsers, sqliteCreateSessions, sqliteCreateConfirmations} {
		_, err = bunDB.Exec(ddl)
		require.NoError(t, err)
	}

	t.Cleanup(func() {
		_ = bunDB.Close()
		_ = db.Close()
	})

	return bunDB
}

func setupRepo(t *testing.T, opts ...auth.ManagerOption) auth.RepositoryManager {
	t.Helper()
	return auth.NewRepositoryManager(setupDB(t), opts...)
}

func mustHash(t *testing.T, password string) auth.Secret {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	return auth.Secret(hash)
}

var userSeq int

func createUser(t *testing.T, repo auth.RepositoryManager, password string) *auth.User {
	t.Helper()

	userSeq++
	username := fmt.Sprintf("testuser%d", userSeq)
	normalized, err := auth.NormalizeUsername(username)
	require.NoError(t, err)

	user, err := repo.Users().Create(context.Background(), &auth.User{
		Name:               "Test User",
		Email:              fmt.Sprintf("%s@example.com", username),
		Username:           username,
		NormalizedUsername: normalized,
		PasswordHash:       mustHash(t, password),
	})
	require.NoError(t, err)

	return user
}

// mailRecorder captures outbound email for inspection
type mailRecorder struct {
	mu     sync.Mutex
	emails []auth.Email
}

func (m *mailRecorder) Send(_ context.Context, email auth.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails = append(m.emails, email)
	return nil
}

func (m *mailRecorder) last(t *testing.T) auth.Email {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.emails)
	return m.emails[len(m.emails)-1]
}

func (m *mailRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.emails)
}

const testBaseURL = "https://app.example.com"

func newTestDispatcher() (*auth.Dispatcher, *mailRecorder) {
	recorder := &mailRecorder{}
	tasks := make(chan auth.TaskReport, 16)
	dispatcher := auth.NewDispatcher(recorder, testBaseURL, auth.WithDispatcherTasks(tasks))
	return dispatcher, recorder
}

func waitForTask(t *testing.T, dispatcher *auth.Dispatcher, name string) {
	t.Helper()
	select {
	case report := <-dispatcher.Tasks:
		require.NoError(t, report.Error)
		require.Equal(t, name, report.Name)
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", name)
	}
}

// tokenFromEmail pulls the workflow token out of an emailed link
func tokenFromEmail(t *testing.T, email auth.Email, route string) string {
	t.Helper()

	prefix := testBaseURL + route
	idx := strings.Index(email.Plain, prefix)
	require.GreaterOrEqual(t, idx, 0, "email does not link to %s", route)

	rest := email.Plain[idx+len(prefix):]
	if end := strings.IndexAny(rest, "\n \t"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

// testClock is an adjustable clock shared by stores under test
type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
