package apikey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-identity/core"
)

// compositeSeparator joins the public identifier and the raw secret in the
// caller-facing key string. The secret may itself contain separators; only
// the first one splits.
const compositeSeparator = "."

// Service manages long-lived API keys. The raw secret appears exactly once,
// in the IssuedAPIKey returned by Issue; only its hash is stored.
type Service struct {
	store    core.APIKeyStore
	users    core.UserStore
	cipher   core.CredentialCipher
	observer *core.Observer
	now      func() time.Time
}

type serviceBuilder struct {
	store           core.APIKeyStore
	users           core.UserStore
	cipher          core.CredentialCipher
	logger          core.Logger
	loggerProvider  core.LoggerProvider
	metricsRecorder core.MetricsRecorder
	now             func() time.Time
}

type Option func(*serviceBuilder)

func WithStore(store core.APIKeyStore) Option {
	return func(b *serviceBuilder) {
		b.store = store
	}
}

func WithUserStore(users core.UserStore) Option {
	return func(b *serviceBuilder) {
		b.users = users
	}
}

func WithCipher(cipher core.CredentialCipher) Option {
	return func(b *serviceBuilder) {
		b.cipher = cipher
	}
}

func WithLogger(logger core.Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.now = now
	}
}

func NewService(opts ...Option) (*Service, error) {
	builder := serviceBuilder{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	if builder.store == nil {
		return nil, fmt.Errorf("apikey: api key store is required")
	}
	if builder.users == nil {
		return nil, fmt.Errorf("apikey: user store is required")
	}
	if builder.cipher == nil {
		return nil, fmt.Errorf("apikey: credential cipher is required")
	}

	_, logger := glog.Resolve("apikeys", builder.loggerProvider, builder.logger)
	now := builder.now
	if now == nil {
		now = time.Now
	}

	return &Service{
		store:    builder.store,
		users:    builder.users,
		cipher:   builder.cipher,
		observer: core.NewObserver("identity.apikeys", logger, builder.metricsRecorder),
		now:      now,
	}, nil
}

// Issue creates a new key for userID and returns the composite key string.
// The composite is not recoverable later; losing it means issuing a new key.
func (s *Service) Issue(ctx context.Context, userID string, name string) (issued core.IssuedAPIKey, err error) {
	if s == nil {
		return core.IssuedAPIKey{}, fmt.Errorf("apikey: service is not configured")
	}
	startedAt := s.now()
	defer func() {
		s.observer.ObserveOperation(ctx, startedAt, "apikey_issue", err, map[string]any{
			"user_id": userID,
			"key_id":  issued.ID,
		})
	}()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return core.IssuedAPIKey{}, fmt.Errorf("apikey: user id is required")
	}
	name = strings.TrimSpace(name)

	publicID, rawSecret, err := s.cipher.GenerateAPIKey()
	if err != nil {
		return core.IssuedAPIKey{}, fmt.Errorf("apikey: generate key material: %w", err)
	}

	record, err := s.store.SaveAPIKey(ctx, core.SaveAPIKeyInput{
		UserID:       userID,
		PublicID:     publicID,
		HashedSecret: s.cipher.HashAPIKey(rawSecret),
		Name:         name,
	})
	if err != nil {
		return core.IssuedAPIKey{}, fmt.Errorf("apikey: save key: %w", err)
	}

	issued = core.IssuedAPIKey{
		ID:           record.ID,
		PublicID:     record.PublicID,
		Name:         record.Name,
		CompositeKey: publicID + compositeSeparator + rawSecret,
	}
	return issued, nil
}

// Verify resolves a presented composite key to the owning user. A missing
// record and a secret mismatch both fail with ErrAPIKeyInvalid so callers
// cannot probe which public identifiers exist. An inactive owner fails with
// ErrInactiveAccount after the key itself checked out.
func (s *Service) Verify(ctx context.Context, compositeKey string) (user core.User, err error) {
	if s == nil {
		return core.User{}, fmt.Errorf("apikey: service is not configured")
	}
	startedAt := s.now()
	var keyID string
	defer func() {
		s.observer.ObserveOperation(ctx, startedAt, "apikey_verify", err, map[string]any{
			"key_id": keyID,
		})
	}()

	record, err := s.verifyKey(ctx, compositeKey)
	if err != nil {
		return core.User{}, err
	}
	keyID = record.ID

	user, err = s.users.GetUserByID(ctx, record.UserID)
	if err != nil {
		// A key whose owner row is gone behaves like an invalid key.
		if errors.Is(err, core.ErrUserNotFound) {
			return core.User{}, core.ErrAPIKeyInvalid
		}
		return core.User{}, fmt.Errorf("apikey: lookup owner: %w", err)
	}
	if !user.IsActive {
		return core.User{}, core.ErrInactiveAccount
	}
	return user, nil
}

func (s *Service) verifyKey(ctx context.Context, compositeKey string) (core.APIKey, error) {
	publicID, rawSecret, err := splitCompositeKey(compositeKey)
	if err != nil {
		return core.APIKey{}, err
	}

	record, err := s.store.GetAPIKeyByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, core.ErrAPIKeyNotFound) {
			return core.APIKey{}, core.ErrAPIKeyInvalid
		}
		return core.APIKey{}, fmt.Errorf("apikey: lookup key: %w", err)
	}
	if !s.cipher.VerifyAPIKey(rawSecret, record.HashedSecret) {
		return core.APIKey{}, core.ErrAPIKeyInvalid
	}
	return record, nil
}

// List returns all keys owned by userID, without secrets.
func (s *Service) List(ctx context.Context, userID string) (keys []core.APIKey, err error) {
	if s == nil {
		return nil, fmt.Errorf("apikey: service is not configured")
	}
	startedAt := s.now()
	defer func() {
		s.observer.ObserveOperation(ctx, startedAt, "apikey_list", err, map[string]any{
			"user_id": userID,
		})
	}()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("apikey: user id is required")
	}
	keys, err = s.store.ListAPIKeys(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("apikey: list keys: %w", err)
	}
	return keys, nil
}

// Rename updates the label of a key owned by userID. A key that does not
// exist or belongs to another user fails with ErrAPIKeyNotFound; ownership
// is never disclosed.
func (s *Service) Rename(ctx context.Context, userID string, keyID string, name string) (err error) {
	if s == nil {
		return fmt.Errorf("apikey: service is not configured")
	}
	startedAt := s.now()
	defer func() {
		s.observer.ObserveOperation(ctx, startedAt, "apikey_rename", err, map[string]any{
			"user_id": userID,
			"key_id":  keyID,
		})
	}()

	userID = strings.TrimSpace(userID)
	keyID = strings.TrimSpace(keyID)
	if userID == "" || keyID == "" {
		return fmt.Errorf("apikey: user id and key id are required")
	}

	renamed, err := s.store.RenameAPIKey(ctx, userID, keyID, strings.TrimSpace(name))
	if err != nil {
		return fmt.Errorf("apikey: rename key: %w", err)
	}
	if !renamed {
		return core.ErrAPIKeyNotFound
	}
	return nil
}

// Delete removes a key owned by userID, with the same not-found semantics
// as Rename. Deletion is immediate; in-flight requests that already passed
// Verify are unaffected.
func (s *Service) Delete(ctx context.Context, userID string, keyID string) (err error) {
	if s == nil {
		return fmt.Errorf("apikey: service is not configured")
	}
	startedAt := s.now()
	defer func() {
		s.observer.ObserveOperation(ctx, startedAt, "apikey_delete", err, map[string]any{
			"user_id": userID,
			"key_id":  keyID,
		})
	}()

	userID = strings.TrimSpace(userID)
	keyID = strings.TrimSpace(keyID)
	if userID == "" || keyID == "" {
		return fmt.Errorf("apikey: user id and key id are required")
	}

	deleted, err := s.store.DeleteAPIKey(ctx, userID, keyID)
	if err != nil {
		return fmt.Errorf("apikey: delete key: %w", err)
	}
	if !deleted {
		return core.ErrAPIKeyNotFound
	}
	return nil
}

func splitCompositeKey(compositeKey string) (publicID string, rawSecret string, err error) {
	compositeKey = strings.TrimSpace(compositeKey)
	publicID, rawSecret, found := strings.Cut(compositeKey, compositeSeparator)
	if !found || strings.TrimSpace(publicID) == "" || strings.TrimSpace(rawSecret) == "" {
		return "", "", core.ErrAPIKeyInvalidFormat
	}
	return publicID, rawSecret, nil
}
