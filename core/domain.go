package core

import (
	"fmt"
	"strings"
	"time"
)

// TokenKind distinguishes the two token lifetimes the service issues.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

func ParseTokenKind(value string) (TokenKind, error) {
	switch TokenKind(strings.TrimSpace(strings.ToLower(value))) {
	case TokenKindAccess:
		return TokenKindAccess, nil
	case TokenKindRefresh:
		return TokenKindRefresh, nil
	default:
		return "", fmt.Errorf("%w: unknown token kind %q", ErrMalformedClaims, value)
	}
}

// User is the authenticated principal owned by the directory store. The
// lifecycle service mutates verification, activity and password fields only
// through explicit store operations.
type User struct {
	ID                     string
	Email                  string
	HashedPassword         string
	Name                   string
	IsActive               bool
	IsVerified             bool
	IsSuperuser            bool
	VerificationCodeExpiry *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// FirstName is used by notification templates; falls back to the local part
// of the email when no display name is set.
func (u User) FirstName() string {
	name := strings.TrimSpace(u.Name)
	if name != "" {
		if idx := strings.IndexByte(name, ' '); idx > 0 {
			return name[:idx]
		}
		return name
	}
	email := strings.TrimSpace(u.Email)
	if idx := strings.IndexByte(email, '@'); idx > 0 {
		return email[:idx]
	}
	return email
}

// TokenClaims is the decoded token payload. ExpiresAt is always present and
// is re-checked against the wall clock at verification time, independent of
// whatever expiry enforcement the cipher applies.
type TokenClaims struct {
	Subject   string
	Kind      TokenKind
	ExpiresAt time.Time
}

func (c TokenClaims) Validate() error {
	if strings.TrimSpace(c.Subject) == "" {
		return fmt.Errorf("%w: missing subject", ErrMalformedClaims)
	}
	if c.Kind != TokenKindAccess && c.Kind != TokenKindRefresh {
		return fmt.Errorf("%w: missing token kind", ErrMalformedClaims)
	}
	if c.ExpiresAt.IsZero() {
		return fmt.Errorf("%w: missing expiry", ErrMalformedClaims)
	}
	return nil
}

// TokenPair is the shape returned by login and refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// APIKey is the stored record for a long-lived key. The raw secret is never
// persisted; the caller-presented composite key is PublicID + "." + secret
// and the record is looked up by PublicID alone.
type APIKey struct {
	ID           string
	UserID       string
	PublicID     string
	HashedSecret string
	Name         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IssuedAPIKey carries the one-time composite key back to the caller. The
// CompositeKey field is the only place the raw secret ever appears.
type IssuedAPIKey struct {
	ID           string
	PublicID     string
	Name         string
	CompositeKey string
}

// VerificationCode binds a one-time email verification code to a user. At
// most one active code exists per user; storing a new one supersedes it.
type VerificationCode struct {
	UserID    string
	Code      string
	ExpiresAt time.Time
}

// ResetToken binds a one-time password reset token to a user, same
// supersede-on-issue behavior as VerificationCode.
type ResetToken struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// BlacklistedToken records a revoked token. Entries are monotonic: once a
// token string is recorded it is never re-validated; the only removal path
// is the expiry sweep, which purges entries whose token expiry has passed.
type BlacklistedToken struct {
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}
