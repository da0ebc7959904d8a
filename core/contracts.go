package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// CredentialCipher is the boundary to all cryptographic material: token
// signing, password hashing, API key generation and one-time codes. The
// lifecycle services never touch key material directly.
type CredentialCipher interface {
	// SignToken produces an opaque signed token string carrying the given
	// claims and expiry.
	SignToken(ctx context.Context, claims map[string]any, expiresAt time.Time) (string, error)
	// VerifyToken validates signature and integrity and returns the raw
	// payload. A rejection (bad signature, garbage input) is an error; the
	// caller interprets the payload shape.
	VerifyToken(ctx context.Context, token string) (map[string]any, error)

	HashPassword(password string) (string, error)
	// VerifyPassword returns false on mismatch. An error return means the
	// stored value is not a usable hash, which callers must treat as an
	// internal fault rather than a user failure.
	VerifyPassword(password string, hashed string) (bool, error)

	GenerateAPIKey() (publicID string, rawSecret string, err error)
	HashAPIKey(rawSecret string) string
	VerifyAPIKey(rawSecret string, hashed string) bool

	GenerateOneTimeCode() (string, error)
}

type CreateUserInput struct {
	Email          string
	HashedPassword string
	Name           string
	IsVerified     bool
	IsSuperuser    bool
}

type SaveAPIKeyInput struct {
	UserID       string
	PublicID     string
	HashedSecret string
	Name         string
}

// UserStore owns User rows. CreateUser fails with ErrAlreadyExists on a
// duplicate email; lookups fail with ErrUserNotFound.
type UserStore interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	MarkUserVerified(ctx context.Context, id string) error
	MarkUserSuperuser(ctx context.Context, id string) error
	UpdateUserPassword(ctx context.Context, id string, hashedPassword string) error
}

// APIKeyStore owns APIKey rows. Rename and Delete are scoped to the owning
// user and report false for keys that do not exist or are owned by someone
// else, with no distinction between the two.
type APIKeyStore interface {
	SaveAPIKey(ctx context.Context, in SaveAPIKeyInput) (APIKey, error)
	GetAPIKeyByPublicID(ctx context.Context, publicID string) (APIKey, error)
	ListAPIKeys(ctx context.Context, userID string) ([]APIKey, error)
	RenameAPIKey(ctx context.Context, userID string, keyID string, name string) (bool, error)
	DeleteAPIKey(ctx context.Context, userID string, keyID string) (bool, error)
}

// VerificationCodeStore holds at most one active code per user; storing a
// new code supersedes the previous one.
type VerificationCodeStore interface {
	StoreVerificationCode(ctx context.Context, userID string, code string, expiresAt time.Time) error
	// GetUserIDByVerificationCode resolves an unexpired code to its user,
	// failing with ErrInvalidVerificationCode otherwise.
	GetUserIDByVerificationCode(ctx context.Context, code string) (string, error)
	RemoveVerificationCode(ctx context.Context, code string) error
}

// ResetTokenStore mirrors VerificationCodeStore for password reset tokens.
type ResetTokenStore interface {
	StoreResetToken(ctx context.Context, userID string, token string, expiresAt time.Time) error
	GetUserIDByResetToken(ctx context.Context, token string) (string, error)
	RemoveResetToken(ctx context.Context, userID string) error
}

// TokenBlacklist is the only shared mutable resource in this module. Insert
// is idempotent and concurrent revokes of the same token are safe no-ops.
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, token string, expiresAt time.Time) error
	IsTokenBlacklisted(ctx context.Context, token string) (bool, error)
	// CleanExpiredTokens purges entries whose recorded token expiry is in
	// the past, bounding blacklist growth.
	CleanExpiredTokens(ctx context.Context, now time.Time) error
}

// StoreProvider bundles the directory store surfaces a fully wired
// deployment needs. Individual services depend only on the slices they use.
type StoreProvider interface {
	Users() UserStore
	APIKeys() APIKeyStore
	VerificationCodes() VerificationCodeStore
	ResetTokens() ResetTokenStore
	Blacklist() TokenBlacklist
}

// RepositoryStoreFactory builds a StoreProvider from an opaque persistence
// client (a *bun.DB or a go-persistence-bun client).
type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

// Notifier delivers account emails. The context map carries template data
// such as the recipient's first name.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, email string, code string, data map[string]any) error
	SendPasswordResetEmail(ctx context.Context, email string, token string, data map[string]any) error
}

// CollectionProvisioner creates the default owned collection for a newly
// registered user. Deployments without collections can use a nop.
type CollectionProvisioner interface {
	ProvisionDefaultCollection(ctx context.Context, userID string) error
}

type NopCollectionProvisioner struct{}

func (NopCollectionProvisioner) ProvisionDefaultCollection(context.Context, string) error {
	return nil
}

// CredentialAuthenticator resolves one kind of credential string to a
// principal. The resolver runs an ordered chain of these so new credential
// kinds can be added without touching existing logic.
type CredentialAuthenticator interface {
	Kind() string
	Authenticate(ctx context.Context, credential string) (User, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
