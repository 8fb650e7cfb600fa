package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// AuthorizedUser couples a resolved user with the session that vouched for
// them, so handlers can operate on their own session (logout).
type AuthorizedUser struct {
	User      *User
	SessionID uuid.UUID
}

// Guard resolves the requesting user from session tokens carried in the
// Authorization header or the session cookie.
type Guard struct {
	repo       RepositoryManager
	cookieName string
	logger     Logger
}

type GuardOption func(*Guard)

func WithGuardLogger(logger Logger) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithGuardCookieName(name string) GuardOption {
	return func(g *Guard) {
		if name != "" {
			g.cookieName = name
		}
	}
}

func NewGuard(repo RepositoryManager, opts ...GuardOption) *Guard {
	guard := &Guard{
		repo:       repo,
		cookieName: DefaultSessionCookieName,
		logger:     defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(guard)
		}
	}

	return guard
}

// CookieName is the cookie the guard reads session tokens from
func (g *Guard) CookieName() string {
	return g.cookieName
}

// HeaderUser resolves the user from the Authorization header only. Use for
// API clients that never carry cookies.
func (g *Guard) HeaderUser(c *fiber.Ctx) (*AuthorizedUser, error) {
	return g.resolve(c, g.headerToken(c))
}

// LoggedInUser resolves the user from the Authorization header, falling back
// to the session cookie.
func (g *Guard) LoggedInUser(c *fiber.Ctx) (*AuthorizedUser, error) {
	token := g.headerToken(c)
	if token == "" {
		token = c.Cookies(g.cookieName)
	}
	return g.resolve(c, token)
}

// VerifiedUser resolves the user like LoggedInUser and additionally requires
// a confirmed account.
func (g *Guard) VerifiedUser(c *fiber.Ctx) (*AuthorizedUser, error) {
	authorized, err := g.LoggedInUser(c)
	if err != nil {
		return nil, err
	}

	if !authorized.User.IsConfirmed {
		return nil, ErrUserNotVerified
	}

	return authorized, nil
}

func (g *Guard) resolve(c *fiber.Ctx, token string) (*AuthorizedUser, error) {
	if token == "" {
		return nil, NewAuthTokenError("token not available")
	}

	user, session, err := g.repo.Sessions().Resolve(c.UserContext(), token)
	if err != nil {
		if !IsAuthTokenError(err) {
			g.logger.Error("session resolution error: %v", err)
		}
		return nil, err
	}

	return &AuthorizedUser{
		User:      user,
		SessionID: session.Identifier,
	}, nil
}

func (g *Guard) headerToken(c *fiber.Ctx) string {
	raw := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	raw = strings.TrimPrefix(raw, "Bearer ")
	return strings.TrimSpace(raw)
}
