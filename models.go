package auth

import (
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SessionDuration is the lifetime of a freshly issued session.
var SessionDuration = 30 * 24 * time.Hour

// SessionRenewalWindow controls sliding expiration: a session resolved with
// less remaining lifetime than this is pushed forward to now + SessionDuration.
var SessionRenewalWindow = 5 * 24 * time.Hour

// ConfirmationDuration is the lifetime of a confirmation token.
var ConfirmationDuration = 24 * time.Hour

// User is the account model
type User struct {
	bun.BaseModel      `bun:"table:users,alias:usr"`
	ID                 uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name               string     `bun:"name,notnull" json:"name,omitempty"`
	Email              string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Username           string     `bun:"username,notnull,unique" json:"username,omitempty"`
	NormalizedUsername string     `bun:"normalized_username,notnull,unique" json:"-"`
	PasswordHash       Secret     `bun:"password_hash,notnull" json:"-"`
	IsActive           bool       `bun:"is_active" json:"is_active,omitempty"`
	IsConfirmed        bool       `bun:"is_confirmed" json:"is_confirmed"`
	CreatedAt          *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt          *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// CheckPassword will validate the given cleartext password against the
// stored hash. An unparsable stored hash reads as a non match.
func (u *User) CheckPassword(password string) bool {
	match, err := argon2id.ComparePasswordAndHash(password, u.PasswordHash.Expose())
	return err == nil && match
}

// Session is a login grant. The verifier half of the token is never stored,
// only its digest.
type Session struct {
	bun.BaseModel  `bun:"table:sessions,alias:ses"`
	Identifier     uuid.UUID      `bun:"identifier,pk,type:uuid" json:"identifier,omitempty"`
	VerifierHash   string         `bun:"verifier_hash,notnull" json:"-"`
	UserID         uuid.UUID      `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	ExtraInfo      map[string]any `bun:"extra_info,type:jsonb" json:"extra_info,omitempty"`
	ExpirationDate time.Time      `bun:"expiration_date,notnull" json:"expiration_date,omitempty"`
}

// NewSession generates a session record plus the serialized token that should
// be handed to the client. The token is the only place the verifier appears
// in plaintext.
func NewSession(userID uuid.UUID, extraInfo map[string]any, now time.Time) (*Session, string) {
	identifier, verifier := NewTokenPair()

	session := &Session{
		Identifier:     identifier,
		VerifierHash:   DigestVerifier(verifier.String()),
		UserID:         userID,
		ExtraInfo:      extraInfo,
		ExpirationDate: now.Add(SessionDuration),
	}

	return session, FormatToken(identifier, verifier)
}

// IsExpiredAt checks the session expiry against the given instant
func (s *Session) IsExpiredAt(now time.Time) bool {
	return s.ExpirationDate.Before(now)
}

// ShouldExtendAt reports whether the sliding expiration policy applies
func (s *Session) ShouldExtendAt(now time.Time) bool {
	return s.ExpirationDate.Before(now.Add(SessionRenewalWindow))
}

// ConfirmationAction tags a confirmation with the account action it authorizes
type ConfirmationAction = string

const (
	// ActionUserVerification confirms ownership of the registered email
	ActionUserVerification ConfirmationAction = "userverification"
	// ActionPasswordReset authorizes a password change
	ActionPasswordReset ConfirmationAction = "passwordreset"
	// ActionInvalid is the catch-all for unrecognized stored values
	ActionInvalid ConfirmationAction = "invalid"
)

// ParseConfirmationAction maps a stored action string to a known action,
// falling back to ActionInvalid.
func ParseConfirmationAction(value string) ConfirmationAction {
	switch value {
	case ActionUserVerification:
		return ActionUserVerification
	case ActionPasswordReset:
		return ActionPasswordReset
	default:
		return ActionInvalid
	}
}

// Confirmation is a single use, typed, expiring token authorizing one account
// action. Consumed, expired, and invalidated confirmations are deleted; there
// is no retained history of spent tokens.
type Confirmation struct {
	bun.BaseModel `bun:"table:confirmations,alias:cnf"`
	Identifier    uuid.UUID          `bun:"identifier,pk,type:uuid" json:"identifier,omitempty"`
	VerifierHash  string             `bun:"verifier_hash,notnull" json:"-"`
	UserID        uuid.UUID          `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	Details       map[string]any     `bun:"details,type:jsonb" json:"details,omitempty"`
	Action        ConfirmationAction `bun:"action_type,notnull" json:"action_type,omitempty"`
	CreatedAt     time.Time          `bun:"created_at,notnull" json:"created_at,omitempty"`
	ExpiresAt     time.Time          `bun:"expires_at,notnull" json:"expires_at,omitempty"`
}

// NewConfirmation generates a confirmation record plus its serialized token.
func NewConfirmation(userID uuid.UUID, action ConfirmationAction, details map[string]any, now time.Time) (*Confirmation, string) {
	identifier, verifier := NewTokenPair()

	confirmation := &Confirmation{
		Identifier:   identifier,
		VerifierHash: DigestVerifier(verifier.String()),
		UserID:       userID,
		Details:      details,
		Action:       action,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ConfirmationDuration),
	}

	return confirmation, FormatToken(identifier, verifier)
}

// IsExpiredAt checks the confirmation expiry against the given instant
func (c *Confirmation) IsExpiredAt(now time.Time) bool {
	return c.ExpiresAt.Before(now)
}

// DetailEmail returns the email address embedded in the confirmation details
func (c *Confirmation) DetailEmail() (string, bool) {
	if c.Details == nil {
		return "", false
	}
	raw, ok := c.Details["email"]
	if !ok {
		return "", false
	}
	email, ok := raw.(string)
	return email, ok
}
