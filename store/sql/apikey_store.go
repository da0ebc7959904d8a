package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-identity/core"
)

type APIKeyStore struct {
	db   *bun.DB
	repo repository.Repository[*apiKeyRecord]
}

func (s *APIKeyStore) SaveAPIKey(ctx context.Context, in core.SaveAPIKeyInput) (core.APIKey, error) {
	if s == nil || s.repo == nil {
		return core.APIKey{}, fmt.Errorf("sqlstore: api key store is not configured")
	}
	in.UserID = strings.TrimSpace(in.UserID)
	in.PublicID = strings.TrimSpace(in.PublicID)
	if in.UserID == "" {
		return core.APIKey{}, fmt.Errorf("sqlstore: user id is required")
	}
	if in.PublicID == "" {
		return core.APIKey{}, fmt.Errorf("sqlstore: public id is required")
	}
	if strings.TrimSpace(in.HashedSecret) == "" {
		return core.APIKey{}, fmt.Errorf("sqlstore: hashed secret is required")
	}

	record := newAPIKeyRecord(in, time.Now().UTC())
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.APIKey{}, err
	}
	return created.toDomain(), nil
}

func (s *APIKeyStore) GetAPIKeyByPublicID(ctx context.Context, publicID string) (core.APIKey, error) {
	if s == nil || s.repo == nil {
		return core.APIKey{}, fmt.Errorf("sqlstore: api key store is not configured")
	}
	publicID = strings.TrimSpace(publicID)
	if publicID == "" {
		return core.APIKey{}, core.ErrAPIKeyNotFound
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("public_id", "=", publicID),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.APIKey{}, err
	}
	if len(records) == 0 {
		return core.APIKey{}, core.ErrAPIKeyNotFound
	}
	return records[0].toDomain(), nil
}

func (s *APIKeyStore) ListAPIKeys(ctx context.Context, userID string) ([]core.APIKey, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: api key store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_id", "=", strings.TrimSpace(userID)),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}

	out := make([]core.APIKey, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

// RenameAPIKey reports false for keys that do not exist or belong to another
// user; the two are indistinguishable by design.
func (s *APIKeyStore) RenameAPIKey(ctx context.Context, userID string, keyID string, name string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: api key store is not configured")
	}
	userID = strings.TrimSpace(userID)
	keyID = strings.TrimSpace(keyID)
	if userID == "" || keyID == "" {
		return false, nil
	}

	result, err := s.db.NewUpdate().
		Model((*apiKeyRecord)(nil)).
		Set("name = ?", strings.TrimSpace(name)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", keyID).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *APIKeyStore) DeleteAPIKey(ctx context.Context, userID string, keyID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: api key store is not configured")
	}
	userID = strings.TrimSpace(userID)
	keyID = strings.TrimSpace(keyID)
	if userID == "" || keyID == "" {
		return false, nil
	}

	result, err := s.db.NewDelete().
		Model((*apiKeyRecord)(nil)).
		Where("id = ?", keyID).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

var _ core.APIKeyStore = (*APIKeyStore)(nil)
