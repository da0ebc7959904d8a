package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type userRecord struct {
	bun.BaseModel `bun:"table:identity_users,alias:iu"`

	ID                     string     `bun:"id,pk"`
	Email                  string     `bun:"email,notnull,unique"`
	HashedPassword         string     `bun:"hashed_password,notnull"`
	Name                   string     `bun:"name"`
	IsActive               bool       `bun:"is_active,notnull"`
	IsVerified             bool       `bun:"is_verified,notnull"`
	IsSuperuser            bool       `bun:"is_superuser,notnull"`
	VerificationCodeExpiry *time.Time `bun:"verification_code_expiry,nullzero"`
	CreatedAt              time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt              time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type apiKeyRecord struct {
	bun.BaseModel `bun:"table:identity_api_keys,alias:iak"`

	ID           string    `bun:"id,pk"`
	UserID       string    `bun:"user_id,notnull"`
	PublicID     string    `bun:"public_id,notnull,unique"`
	HashedSecret string    `bun:"hashed_secret,notnull"`
	Name         string    `bun:"name"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// verificationCodeRecord holds at most one row per user; a new code replaces
// the previous one through an upsert on user_id.
type verificationCodeRecord struct {
	bun.BaseModel `bun:"table:identity_verification_codes,alias:ivc"`

	UserID    string    `bun:"user_id,pk"`
	Code      string    `bun:"code,notnull"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type resetTokenRecord struct {
	bun.BaseModel `bun:"table:identity_reset_tokens,alias:irt"`

	UserID    string    `bun:"user_id,pk"`
	Token     string    `bun:"token,notnull"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type blacklistedTokenRecord struct {
	bun.BaseModel `bun:"table:identity_blacklisted_tokens,alias:ibt"`

	Token     string    `bun:"token,pk"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
