package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-identity/core"
)

func TestNew_RequiresStores(t *testing.T) {
	_, err := New(DefaultConfig(), WithSigningKey("test-signing-key"))
	if err == nil {
		t.Fatalf("expected error when no store provider is configured")
	}
}

func TestNew_RequiresCipherOrSigningKey(t *testing.T) {
	_, err := New(DefaultConfig(), WithStoreProvider(newMemoryStores()))
	if err == nil {
		t.Fatalf("expected error when neither cipher nor signing key is configured")
	}
}

func TestServiceEndToEnd(t *testing.T) {
	ctx := context.Background()
	svc, err := New(DefaultConfig(),
		WithSigningKey("test-signing-key"),
		WithStoreProvider(newMemoryStores()),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	user, err := svc.Accounts().Register(ctx, RegisterRequest{
		Email:    "ada@example.com",
		Password: "correct horse battery",
		Name:     "Ada Lovelace",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !user.IsVerified {
		t.Fatalf("expected auto-verified account when verification is not required")
	}

	pair, err := svc.Accounts().Login(ctx, "ada@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	resolved, err := svc.Resolve(ctx, "Bearer "+pair.AccessToken)
	if err != nil {
		t.Fatalf("resolve access token: %v", err)
	}
	if resolved.ID != user.ID {
		t.Fatalf("expected token to resolve to %q, got %q", user.ID, resolved.ID)
	}

	issued, err := svc.APIKeys().Issue(ctx, user.ID, "ci")
	if err != nil {
		t.Fatalf("issue api key: %v", err)
	}
	resolved, err = svc.Resolve(ctx, "Bearer "+issued.CompositeKey)
	if err != nil {
		t.Fatalf("resolve api key: %v", err)
	}
	if resolved.ID != user.ID {
		t.Fatalf("expected api key to resolve to %q, got %q", user.ID, resolved.ID)
	}

	if err := svc.Accounts().Logout(ctx, pair.AccessToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Resolve(ctx, pair.AccessToken); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Fatalf("expected revoked token to collapse to ErrInvalidCredentials, got %v", err)
	}

	if _, err := svc.Resolve(ctx, "not-a-credential"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Fatalf("expected garbage credential to fail with ErrInvalidCredentials, got %v", err)
	}
}

func TestInitializeSeedsAdmin(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Admin = AdminConfig{Email: "root@example.com", Password: "bootstrap-secret"}

	stores := newMemoryStores()
	svc, err := New(cfg,
		WithSigningKey("test-signing-key"),
		WithStoreProvider(stores),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if err := svc.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	admin, err := stores.Users().GetUserByEmail(ctx, "root@example.com")
	if err != nil {
		t.Fatalf("load admin: %v", err)
	}
	if !admin.IsSuperuser || !admin.IsVerified {
		t.Fatalf("expected verified superuser admin, got %+v", admin)
	}

	// Second boot with the account already present.
	if err := svc.Initialize(ctx); err != nil {
		t.Fatalf("repeat initialize: %v", err)
	}
}

func TestNewFacade(t *testing.T) {
	if _, err := NewFacade(nil); err == nil {
		t.Fatalf("expected error for nil service")
	}

	svc, err := New(DefaultConfig(),
		WithSigningKey("test-signing-key"),
		WithStoreProvider(newMemoryStores()),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	facade, err := NewFacade(svc.Accounts())
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	commands := facade.Commands()
	if commands.Register == nil || commands.Login == nil || commands.Logout == nil ||
		commands.VerifyEmail == nil || commands.ChangePassword == nil ||
		commands.RequestPasswordReset == nil || commands.ConfirmPasswordReset == nil ||
		commands.CleanBlacklist == nil || commands.Bootstrap == nil {
		t.Fatalf("expected every command to be wired: %+v", commands)
	}
}

type memoryStores struct {
	users     *memoryUserStore
	keys      *memoryKeyStore
	codes     *memoryOneTimeStore
	resets    *memoryOneTimeStore
	blacklist *memoryBlacklist
}

func newMemoryStores() *memoryStores {
	return &memoryStores{
		users:     &memoryUserStore{byID: map[string]core.User{}},
		keys:      &memoryKeyStore{byID: map[string]core.APIKey{}},
		codes:     &memoryOneTimeStore{byUser: map[string]oneTimeEntry{}},
		resets:    &memoryOneTimeStore{byUser: map[string]oneTimeEntry{}},
		blacklist: &memoryBlacklist{tokens: map[string]time.Time{}},
	}
}

func (s *memoryStores) Users() core.UserStore                         { return s.users }
func (s *memoryStores) APIKeys() core.APIKeyStore                     { return s.keys }
func (s *memoryStores) VerificationCodes() core.VerificationCodeStore { return s.codes }
func (s *memoryStores) ResetTokens() core.ResetTokenStore             { return s.resets }
func (s *memoryStores) Blacklist() core.TokenBlacklist                { return s.blacklist }

type memoryUserStore struct {
	mu   sync.Mutex
	seq  int
	byID map[string]core.User
}

func (s *memoryUserStore) CreateUser(_ context.Context, in core.CreateUserInput) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(in.Email))
	for _, user := range s.byID {
		if user.Email == email {
			return core.User{}, core.ErrAlreadyExists
		}
	}
	s.seq++
	user := core.User{
		ID:             fmt.Sprintf("usr-%d", s.seq),
		Email:          email,
		HashedPassword: in.HashedPassword,
		Name:           in.Name,
		IsActive:       true,
		IsVerified:     in.IsVerified,
		IsSuperuser:    in.IsSuperuser,
	}
	s.byID[user.ID] = user
	return user, nil
}

func (s *memoryUserStore) GetUserByID(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[id]
	if !ok {
		return core.User{}, core.ErrUserNotFound
	}
	return user, nil
}

func (s *memoryUserStore) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, user := range s.byID {
		if user.Email == email {
			return user, nil
		}
	}
	return core.User{}, core.ErrUserNotFound
}

func (s *memoryUserStore) MarkUserVerified(_ context.Context, id string) error {
	return s.update(id, func(user *core.User) { user.IsVerified = true })
}

func (s *memoryUserStore) MarkUserSuperuser(_ context.Context, id string) error {
	return s.update(id, func(user *core.User) { user.IsSuperuser = true })
}

func (s *memoryUserStore) UpdateUserPassword(_ context.Context, id string, hashedPassword string) error {
	return s.update(id, func(user *core.User) { user.HashedPassword = hashedPassword })
}

func (s *memoryUserStore) update(id string, apply func(*core.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[id]
	if !ok {
		return core.ErrUserNotFound
	}
	apply(&user)
	s.byID[id] = user
	return nil
}

type memoryKeyStore struct {
	mu   sync.Mutex
	seq  int
	byID map[string]core.APIKey
}

func (s *memoryKeyStore) SaveAPIKey(_ context.Context, in core.SaveAPIKeyInput) (core.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	key := core.APIKey{
		ID:           fmt.Sprintf("key-%d", s.seq),
		UserID:       in.UserID,
		PublicID:     in.PublicID,
		HashedSecret: in.HashedSecret,
		Name:         in.Name,
	}
	s.byID[key.ID] = key
	return key, nil
}

func (s *memoryKeyStore) GetAPIKeyByPublicID(_ context.Context, publicID string) (core.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range s.byID {
		if key.PublicID == publicID {
			return key, nil
		}
	}
	return core.APIKey{}, core.ErrAPIKeyNotFound
}

func (s *memoryKeyStore) ListAPIKeys(_ context.Context, userID string) ([]core.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.APIKey
	for _, key := range s.byID {
		if key.UserID == userID {
			out = append(out, key)
		}
	}
	return out, nil
}

func (s *memoryKeyStore) RenameAPIKey(_ context.Context, userID string, keyID string, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.byID[keyID]
	if !ok || key.UserID != userID {
		return false, nil
	}
	key.Name = name
	s.byID[keyID] = key
	return true, nil
}

func (s *memoryKeyStore) DeleteAPIKey(_ context.Context, userID string, keyID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.byID[keyID]
	if !ok || key.UserID != userID {
		return false, nil
	}
	delete(s.byID, keyID)
	return true, nil
}

type oneTimeEntry struct {
	value     string
	expiresAt time.Time
}

// memoryOneTimeStore backs both verification codes and reset tokens; the
// two contracts share the same single-value-per-user shape.
type memoryOneTimeStore struct {
	mu     sync.Mutex
	byUser map[string]oneTimeEntry
}

func (s *memoryOneTimeStore) StoreVerificationCode(ctx context.Context, userID string, code string, expiresAt time.Time) error {
	return s.put(userID, code, expiresAt)
}

func (s *memoryOneTimeStore) GetUserIDByVerificationCode(_ context.Context, code string) (string, error) {
	userID, ok := s.lookup(code)
	if !ok {
		return "", core.ErrInvalidVerificationCode
	}
	return userID, nil
}

func (s *memoryOneTimeStore) RemoveVerificationCode(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for userID, entry := range s.byUser {
		if entry.value == code {
			delete(s.byUser, userID)
		}
	}
	return nil
}

func (s *memoryOneTimeStore) StoreResetToken(ctx context.Context, userID string, token string, expiresAt time.Time) error {
	return s.put(userID, token, expiresAt)
}

func (s *memoryOneTimeStore) GetUserIDByResetToken(_ context.Context, token string) (string, error) {
	userID, ok := s.lookup(token)
	if !ok {
		return "", core.ErrInvalidResetToken
	}
	return userID, nil
}

func (s *memoryOneTimeStore) RemoveResetToken(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byUser, userID)
	return nil
}

func (s *memoryOneTimeStore) put(userID string, value string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[userID] = oneTimeEntry{value: value, expiresAt: expiresAt}
	return nil
}

func (s *memoryOneTimeStore) lookup(value string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for userID, entry := range s.byUser {
		if entry.value == value && entry.expiresAt.After(time.Now()) {
			return userID, true
		}
	}
	return "", false
}

type memoryBlacklist struct {
	mu     sync.Mutex
	tokens map[string]time.Time
}

func (s *memoryBlacklist) BlacklistToken(_ context.Context, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[token]; !ok {
		s.tokens[token] = expiresAt
	}
	return nil
}

func (s *memoryBlacklist) IsTokenBlacklisted(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tokens[token]
	return ok, nil
}

func (s *memoryBlacklist) CleanExpiredTokens(_ context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, expiresAt := range s.tokens {
		if !expiresAt.After(now) {
			delete(s.tokens, token)
		}
	}
	return nil
}

var (
	_ core.StoreProvider         = (*memoryStores)(nil)
	_ core.VerificationCodeStore = (*memoryOneTimeStore)(nil)
	_ core.ResetTokenStore       = (*memoryOneTimeStore)(nil)
)
