package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-identity/core"
)

// VerificationCodeStore keeps one active email verification code per user.
// Storing a new code replaces the previous one.
type VerificationCodeStore struct {
	db *bun.DB
}

func NewVerificationCodeStore(db *bun.DB) (*VerificationCodeStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &VerificationCodeStore{db: db}, nil
}

func (s *VerificationCodeStore) StoreVerificationCode(ctx context.Context, userID string, code string, expiresAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: verification code store is not configured")
	}
	userID = strings.TrimSpace(userID)
	code = strings.TrimSpace(code)
	if userID == "" || code == "" {
		return fmt.Errorf("sqlstore: user id and code are required")
	}

	record := &verificationCodeRecord{
		UserID:    userID,
		Code:      code,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (user_id) DO UPDATE").
		Set("code = EXCLUDED.code").
		Set("expires_at = EXCLUDED.expires_at").
		Set("created_at = EXCLUDED.created_at").
		Exec(ctx)
	return err
}

func (s *VerificationCodeStore) GetUserIDByVerificationCode(ctx context.Context, code string) (string, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("sqlstore: verification code store is not configured")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return "", core.ErrInvalidVerificationCode
	}

	record := &verificationCodeRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.code = ?", code).
		Where("?TableAlias.expires_at > ?", time.Now().UTC()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", core.ErrInvalidVerificationCode
		}
		return "", err
	}
	return record.UserID, nil
}

func (s *VerificationCodeStore) RemoveVerificationCode(ctx context.Context, code string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: verification code store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*verificationCodeRecord)(nil)).
		Where("code = ?", strings.TrimSpace(code)).
		Exec(ctx)
	return err
}

// ResetTokenStore mirrors VerificationCodeStore for password reset tokens.
type ResetTokenStore struct {
	db *bun.DB
}

func NewResetTokenStore(db *bun.DB) (*ResetTokenStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &ResetTokenStore{db: db}, nil
}

func (s *ResetTokenStore) StoreResetToken(ctx context.Context, userID string, token string, expiresAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: reset token store is not configured")
	}
	userID = strings.TrimSpace(userID)
	token = strings.TrimSpace(token)
	if userID == "" || token == "" {
		return fmt.Errorf("sqlstore: user id and token are required")
	}

	record := &resetTokenRecord{
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (user_id) DO UPDATE").
		Set("token = EXCLUDED.token").
		Set("expires_at = EXCLUDED.expires_at").
		Set("created_at = EXCLUDED.created_at").
		Exec(ctx)
	return err
}

func (s *ResetTokenStore) GetUserIDByResetToken(ctx context.Context, token string) (string, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("sqlstore: reset token store is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", core.ErrInvalidResetToken
	}

	record := &resetTokenRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Where("?TableAlias.expires_at > ?", time.Now().UTC()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", core.ErrInvalidResetToken
		}
		return "", err
	}
	return record.UserID, nil
}

func (s *ResetTokenStore) RemoveResetToken(ctx context.Context, userID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: reset token store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*resetTokenRecord)(nil)).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Exec(ctx)
	return err
}

var (
	_ core.VerificationCodeStore = (*VerificationCodeStore)(nil)
	_ core.ResetTokenStore       = (*ResetTokenStore)(nil)
)
