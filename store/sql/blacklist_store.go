package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-identity/core"
)

// BlacklistStore is the revocation ledger. Inserts are idempotent via an
// ON CONFLICT DO NOTHING on the token primary key, so concurrent revokes of
// the same token are safe no-ops.
type BlacklistStore struct {
	db *bun.DB
}

func NewBlacklistStore(db *bun.DB) (*BlacklistStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &BlacklistStore{db: db}, nil
}

func (s *BlacklistStore) BlacklistToken(ctx context.Context, token string, expiresAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: blacklist store is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("sqlstore: token is required")
	}

	record := &blacklistedTokenRecord{
		Token:     token,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (token) DO NOTHING").
		Exec(ctx)
	return err
}

func (s *BlacklistStore) IsTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: blacklist store is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}

	exists, err := s.db.NewSelect().
		Model((*blacklistedTokenRecord)(nil)).
		Where("?TableAlias.token = ?", token).
		Exists(ctx)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *BlacklistStore) CleanExpiredTokens(ctx context.Context, now time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: blacklist store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*blacklistedTokenRecord)(nil)).
		Where("expires_at <= ?", now.UTC()).
		Exec(ctx)
	return err
}

var _ core.TokenBlacklist = (*BlacklistStore)(nil)
