package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-identity/core"
)

const userCacheKeyPrefix = "go-identity::user::v1"

// CachedUserStore is a read-through cache over user lookups. Credential
// resolution hits GetUserByEmail on every request; login-heavy deployments
// put this in front of the SQL store. Writes invalidate both lookup keys.
type CachedUserStore struct {
	base  core.UserStore
	cache repositorycache.CacheService
}

func NewCachedUserStore(base core.UserStore, cacheService repositorycache.CacheService) (*CachedUserStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base user store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: user cache service is required")
	}
	return &CachedUserStore{base: base, cache: cacheService}, nil
}

// UserCacheKey returns the deterministic cache key for a user lookup:
// go-identity::user::v1::<field>::<value> with the value URL-path escaped.
func UserCacheKey(field string, value string) string {
	return strings.Join([]string{
		userCacheKeyPrefix,
		field,
		url.PathEscape(strings.ToLower(strings.TrimSpace(value))),
	}, "::")
}

func (s *CachedUserStore) CreateUser(ctx context.Context, in core.CreateUserInput) (core.User, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.User{}, fmt.Errorf("sqlstore: cached user store is not configured")
	}
	user, err := s.base.CreateUser(ctx, in)
	if err != nil {
		return core.User{}, err
	}
	if err := s.invalidate(ctx, user); err != nil {
		return core.User{}, err
	}
	return user, nil
}

func (s *CachedUserStore) GetUserByID(ctx context.Context, id string) (core.User, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.User{}, fmt.Errorf("sqlstore: cached user store is not configured")
	}
	return repositorycache.GetOrFetch(ctx, s.cache, UserCacheKey("id", id), func(ctx context.Context) (core.User, error) {
		return s.base.GetUserByID(ctx, id)
	})
}

func (s *CachedUserStore) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.User{}, fmt.Errorf("sqlstore: cached user store is not configured")
	}
	return repositorycache.GetOrFetch(ctx, s.cache, UserCacheKey("email", email), func(ctx context.Context) (core.User, error) {
		return s.base.GetUserByEmail(ctx, email)
	})
}

func (s *CachedUserStore) MarkUserVerified(ctx context.Context, id string) error {
	return s.writeThrough(ctx, id, func(ctx context.Context) error {
		return s.base.MarkUserVerified(ctx, id)
	})
}

func (s *CachedUserStore) MarkUserSuperuser(ctx context.Context, id string) error {
	return s.writeThrough(ctx, id, func(ctx context.Context) error {
		return s.base.MarkUserSuperuser(ctx, id)
	})
}

func (s *CachedUserStore) UpdateUserPassword(ctx context.Context, id string, hashedPassword string) error {
	return s.writeThrough(ctx, id, func(ctx context.Context) error {
		return s.base.UpdateUserPassword(ctx, id, hashedPassword)
	})
}

func (s *CachedUserStore) writeThrough(ctx context.Context, id string, write func(context.Context) error) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached user store is not configured")
	}
	if err := write(ctx); err != nil {
		return err
	}

	// The email key must be invalidated too; resolve it from the base
	// store, never from the possibly stale cache.
	user, err := s.base.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return s.cache.Delete(ctx, UserCacheKey("id", id))
		}
		return err
	}
	return s.invalidate(ctx, user)
}

func (s *CachedUserStore) invalidate(ctx context.Context, user core.User) error {
	if err := s.cache.Delete(ctx, UserCacheKey("id", user.ID)); err != nil {
		return err
	}
	return s.cache.Delete(ctx, UserCacheKey("email", user.Email))
}

var _ core.UserStore = (*CachedUserStore)(nil)
