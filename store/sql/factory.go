// Package sqlstore implements the directory store contracts over bun. It
// supports postgres and sqlite through the dialect configured on the bun.DB
// it receives.
package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-identity/core"
)

type RepositoryFactory struct {
	db *bun.DB

	userStore             *UserStore
	apiKeyStore           *APIKeyStore
	verificationCodeStore *VerificationCodeStore
	resetTokenStore       *ResetTokenStore
	blacklistStore        *BlacklistStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.userStore != nil && f.apiKeyStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) Users() core.UserStore {
	if f == nil {
		return nil
	}
	return f.userStore
}

func (f *RepositoryFactory) APIKeys() core.APIKeyStore {
	if f == nil {
		return nil
	}
	return f.apiKeyStore
}

func (f *RepositoryFactory) VerificationCodes() core.VerificationCodeStore {
	if f == nil {
		return nil
	}
	return f.verificationCodeStore
}

func (f *RepositoryFactory) ResetTokens() core.ResetTokenStore {
	if f == nil {
		return nil
	}
	return f.resetTokenStore
}

func (f *RepositoryFactory) Blacklist() core.TokenBlacklist {
	if f == nil {
		return nil
	}
	return f.blacklistStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	userRepo := repository.NewRepository[*userRecord](f.db, userHandlers())
	if validator, ok := userRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid user repository wiring: %w", err)
		}
	}

	apiKeyRepo := repository.NewRepository[*apiKeyRecord](f.db, apiKeyHandlers())
	if validator, ok := apiKeyRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid api key repository wiring: %w", err)
		}
	}

	f.userStore = &UserStore{db: f.db, repo: userRepo}
	f.apiKeyStore = &APIKeyStore{db: f.db, repo: apiKeyRepo}

	verificationCodeStore, err := NewVerificationCodeStore(f.db)
	if err != nil {
		return err
	}
	f.verificationCodeStore = verificationCodeStore

	resetTokenStore, err := NewResetTokenStore(f.db)
	if err != nil {
		return err
	}
	f.resetTokenStore = resetTokenStore

	blacklistStore, err := NewBlacklistStore(f.db)
	if err != nil {
		return err
	}
	f.blacklistStore = blacklistStore

	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}

var (
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
