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

type UserStore struct {
	db   *bun.DB
	repo repository.Repository[*userRecord]
}

func (s *UserStore) CreateUser(ctx context.Context, in core.CreateUserInput) (core.User, error) {
	if s == nil || s.repo == nil {
		return core.User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return core.User{}, fmt.Errorf("sqlstore: email is required")
	}
	if strings.TrimSpace(in.HashedPassword) == "" {
		return core.User{}, fmt.Errorf("sqlstore: hashed password is required")
	}
	in.Email = email

	record := newUserRecord(in, time.Now().UTC())
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, core.ErrAlreadyExists
		}
		return core.User{}, err
	}
	return created.toDomain(), nil
}

func (s *UserStore) GetUserByID(ctx context.Context, id string) (core.User, error) {
	if s == nil || s.repo == nil {
		return core.User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.User{}, core.ErrUserNotFound
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("id", "=", id),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.User{}, err
	}
	if len(records) == 0 {
		return core.User{}, core.ErrUserNotFound
	}
	return records[0].toDomain(), nil
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	if s == nil || s.repo == nil {
		return core.User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return core.User{}, core.ErrUserNotFound
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("email", "=", email),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.User{}, err
	}
	if len(records) == 0 {
		return core.User{}, core.ErrUserNotFound
	}
	return records[0].toDomain(), nil
}

func (s *UserStore) MarkUserVerified(ctx context.Context, id string) error {
	return s.setFlag(ctx, id, "is_verified")
}

func (s *UserStore) MarkUserSuperuser(ctx context.Context, id string) error {
	return s.setFlag(ctx, id, "is_superuser")
}

func (s *UserStore) UpdateUserPassword(ctx context.Context, id string, hashedPassword string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: user store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.ErrUserNotFound
	}
	if strings.TrimSpace(hashedPassword) == "" {
		return fmt.Errorf("sqlstore: hashed password is required")
	}

	result, err := s.db.NewUpdate().
		Model((*userRecord)(nil)).
		Set("hashed_password = ?", hashedPassword).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) setFlag(ctx context.Context, id string, column string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: user store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.ErrUserNotFound
	}

	result, err := s.db.NewUpdate().
		Model((*userRecord)(nil)).
		Set(column+" = ?", true).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.ErrUserNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

var _ core.UserStore = (*UserStore)(nil)
