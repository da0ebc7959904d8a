package token

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-identity/core"
)

// stubCipher signs by serializing claims to JSON with a "sig." prefix, so
// tests can assert on payload handling without real cryptography.
type stubCipher struct {
	failVerify bool
}

func (c *stubCipher) SignToken(_ context.Context, claims map[string]any, expiresAt time.Time) (string, error) {
	payload := make(map[string]any, len(claims)+1)
	for key, value := range claims {
		payload[key] = value
	}
	payload["exp"] = float64(expiresAt.Unix())
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return "sig." + string(raw), nil
}

func (c *stubCipher) VerifyToken(_ context.Context, token string) (map[string]any, error) {
	if c.failVerify || !strings.HasPrefix(token, "sig.") {
		return nil, errors.New("signature mismatch")
	}
	payload := map[string]any{}
	if err := json.Unmarshal([]byte(strings.TrimPrefix(token, "sig.")), &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *stubCipher) HashPassword(password string) (string, error) { return "h:" + password, nil }

func (c *stubCipher) VerifyPassword(password, hashed string) (bool, error) {
	return "h:"+password == hashed, nil
}

func (c *stubCipher) GenerateAPIKey() (string, string, error) { return "pub", "secret", nil }

func (c *stubCipher) HashAPIKey(rawSecret string) string { return "h:" + rawSecret }

func (c *stubCipher) VerifyAPIKey(rawSecret, hashed string) bool { return "h:"+rawSecret == hashed }

func (c *stubCipher) GenerateOneTimeCode() (string, error) { return "123456", nil }

type memoryBlacklist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	failPut bool
}

func newMemoryBlacklist() *memoryBlacklist {
	return &memoryBlacklist{entries: map[string]time.Time{}}
}

func (b *memoryBlacklist) BlacklistToken(_ context.Context, token string, expiresAt time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failPut {
		return errors.New("blacklist unavailable")
	}
	if _, exists := b.entries[token]; !exists {
		b.entries[token] = expiresAt
	}
	return nil
}

func (b *memoryBlacklist) IsTokenBlacklisted(_ context.Context, token string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, found := b.entries[token]
	return found, nil
}

func (b *memoryBlacklist) CleanExpiredTokens(_ context.Context, now time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for token, expiresAt := range b.entries {
		if !expiresAt.After(now) {
			delete(b.entries, token)
		}
	}
	return nil
}

func (b *memoryBlacklist) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func newTestService(t *testing.T, blacklist core.TokenBlacklist, extra ...Option) *Service {
	t.Helper()
	opts := append([]Option{
		WithCipher(&stubCipher{}),
		WithBlacklist(blacklist),
	}, extra...)
	svc, err := NewService(core.TokenConfig{
		AccessLifetimeMinutes: 60,
		RefreshLifetimeDays:   7,
	}, opts...)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}

func TestServiceRequiresCipherAndBlacklist(t *testing.T) {
	if _, err := NewService(core.TokenConfig{}, WithBlacklist(newMemoryBlacklist())); err == nil {
		t.Fatal("expected error when cipher is missing")
	}
	if _, err := NewService(core.TokenConfig{}, WithCipher(&stubCipher{})); err == nil {
		t.Fatal("expected error when blacklist is missing")
	}
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	svc := newTestService(t, newMemoryBlacklist())
	ctx := context.Background()

	signed, err := svc.Issue(ctx, "user-1", core.TokenKindAccess)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	claims, err := svc.Verify(ctx, signed)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("expected subject user-1, got %q", claims.Subject)
	}
	if claims.Kind != core.TokenKindAccess {
		t.Fatalf("expected access kind, got %q", claims.Kind)
	}
	if !claims.ExpiresAt.After(time.Now()) {
		t.Fatal("expected expiry in the future")
	}
}

func TestIssueRejectsEmptySubject(t *testing.T) {
	svc := newTestService(t, newMemoryBlacklist())
	if _, err := svc.Issue(context.Background(), "   ", core.TokenKindAccess); err == nil {
		t.Fatal("expected error for blank subject")
	}
}

func TestVerifyRejectsTampered(t *testing.T) {
	svc := newTestService(t, newMemoryBlacklist())
	if _, err := svc.Verify(context.Background(), "garbage-token"); !errors.Is(err, core.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyRejectsEmpty(t *testing.T) {
	svc := newTestService(t, newMemoryBlacklist())
	if _, err := svc.Verify(context.Background(), ""); !errors.Is(err, core.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyChecksBlacklistBeforeDecoding(t *testing.T) {
	blacklist := newMemoryBlacklist()
	svc := newTestService(t, blacklist)
	ctx := context.Background()

	// Undecodable string blacklisted via Revoke must fail as revoked, not
	// as invalid.
	if err := svc.Revoke(ctx, "opaque-undecodable"); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}
	if _, err := svc.Verify(ctx, "opaque-undecodable"); !errors.Is(err, core.ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
}

func TestVerifyWallClockExpiry(t *testing.T) {
	current := time.Now()
	clock := func() time.Time { return current }
	svc := newTestService(t, newMemoryBlacklist(), WithClock(clock))
	ctx := context.Background()

	signed, err := svc.Issue(ctx, "user-1", core.TokenKindAccess)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	current = current.Add(61 * time.Minute)
	if _, err := svc.Verify(ctx, signed); !errors.Is(err, core.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyRejectsMissingClaims(t *testing.T) {
	svc := newTestService(t, newMemoryBlacklist())
	ctx := context.Background()

	cipher := &stubCipher{}
	signed, err := cipher.SignToken(ctx, map[string]any{"sub": "user-1"}, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("SignToken returned error: %v", err)
	}
	if _, err := svc.Verify(ctx, signed); !errors.Is(err, core.ErrMalformedClaims) {
		t.Fatalf("expected ErrMalformedClaims, got %v", err)
	}
}

func TestVerifyKindMismatch(t *testing.T) {
	svc := newTestService(t, newMemoryBlacklist())
	ctx := context.Background()

	signed, err := svc.Issue(ctx, "user-1", core.TokenKindAccess)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if _, err := svc.VerifyKind(ctx, signed, core.TokenKindRefresh); !errors.Is(err, core.ErrWrongTokenType) {
		t.Fatalf("expected ErrWrongTokenType, got %v", err)
	}
}

func TestRefreshRotatesAndRevokesOldToken(t *testing.T) {
	blacklist := newMemoryBlacklist()
	svc := newTestService(t, blacklist)
	ctx := context.Background()

	refresh, err := svc.Issue(ctx, "user-1", core.TokenKindRefresh)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	pair, err := svc.Refresh(ctx, refresh)
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected a full token pair")
	}
	if pair.RefreshToken == refresh {
		t.Fatal("expected a new refresh token")
	}

	if _, err := svc.Verify(ctx, refresh); !errors.Is(err, core.ErrTokenRevoked) {
		t.Fatalf("expected presented token to be revoked, got %v", err)
	}
	if _, err := svc.Verify(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("new refresh token should verify, got %v", err)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc := newTestService(t, newMemoryBlacklist())
	ctx := context.Background()

	access, err := svc.Issue(ctx, "user-1", core.TokenKindAccess)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if _, err := svc.Refresh(ctx, access); !errors.Is(err, core.ErrWrongTokenType) {
		t.Fatalf("expected ErrWrongTokenType, got %v", err)
	}
}

func TestRefreshFailsWhenBlacklistWriteFails(t *testing.T) {
	blacklist := newMemoryBlacklist()
	svc := newTestService(t, blacklist)
	ctx := context.Background()

	refresh, err := svc.Issue(ctx, "user-1", core.TokenKindRefresh)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	blacklist.failPut = true
	if _, err := svc.Refresh(ctx, refresh); err == nil {
		t.Fatal("expected Refresh to fail when the blacklist write fails")
	}

	// The presented token was never recorded, so it remains valid.
	blacklist.failPut = false
	if _, err := svc.Verify(ctx, refresh); err != nil {
		t.Fatalf("token should still verify after failed rotation, got %v", err)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	blacklist := newMemoryBlacklist()
	svc := newTestService(t, blacklist)
	ctx := context.Background()

	signed, err := svc.Issue(ctx, "user-1", core.TokenKindAccess)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := svc.Revoke(ctx, signed); err != nil {
			t.Fatalf("Revoke attempt %d returned error: %v", i, err)
		}
	}
	if blacklist.size() != 1 {
		t.Fatalf("expected one blacklist entry, got %d", blacklist.size())
	}
	if _, err := svc.Verify(ctx, signed); !errors.Is(err, core.ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
}

func TestRevokeUndecodableUsesFallbackExpiry(t *testing.T) {
	blacklist := newMemoryBlacklist()
	svc := newTestService(t, blacklist)
	ctx := context.Background()

	if err := svc.Revoke(ctx, "not-a-token"); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}
	blacklist.mu.Lock()
	expiresAt := blacklist.entries["not-a-token"]
	blacklist.mu.Unlock()
	if expiresAt.Before(time.Now().Add(300 * 24 * time.Hour)) {
		t.Fatalf("expected far-future fallback expiry, got %v", expiresAt)
	}
}

func TestCleanExpiredPurgesOnlyPastEntries(t *testing.T) {
	current := time.Now()
	clock := func() time.Time { return current }
	blacklist := newMemoryBlacklist()
	svc := newTestService(t, blacklist, WithClock(clock))
	ctx := context.Background()

	access, err := svc.Issue(ctx, "user-1", core.TokenKindAccess)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	refresh, err := svc.Issue(ctx, "user-1", core.TokenKindRefresh)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if err := svc.Revoke(ctx, access); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}
	if err := svc.Revoke(ctx, refresh); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}

	// Past the access lifetime but inside the refresh lifetime.
	current = current.Add(2 * time.Hour)
	if err := svc.CleanExpired(ctx); err != nil {
		t.Fatalf("CleanExpired returned error: %v", err)
	}
	if blacklist.size() != 1 {
		t.Fatalf("expected only the refresh entry to remain, got %d", blacklist.size())
	}
}

func TestConcurrentRevokeSameToken(t *testing.T) {
	blacklist := newMemoryBlacklist()
	svc := newTestService(t, blacklist)
	ctx := context.Background()

	signed, err := svc.Issue(ctx, "user-1", core.TokenKindAccess)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.Revoke(ctx, signed)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent Revoke returned error: %v", err)
		}
	}
	if blacklist.size() != 1 {
		t.Fatalf("expected one blacklist entry, got %d", blacklist.size())
	}
}

func TestLifetimesComeFromConfig(t *testing.T) {
	current := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := func() time.Time { return current }
	svc := newTestService(t, newMemoryBlacklist(), WithClock(clock))
	ctx := context.Background()

	for _, tc := range []struct {
		kind core.TokenKind
		want time.Time
	}{
		{core.TokenKindAccess, current.Add(60 * time.Minute)},
		{core.TokenKindRefresh, current.Add(7 * 24 * time.Hour)},
	} {
		signed, err := svc.Issue(ctx, "user-1", tc.kind)
		if err != nil {
			t.Fatalf("Issue(%s) returned error: %v", tc.kind, err)
		}
		claims, err := svc.Verify(ctx, signed)
		if err != nil {
			t.Fatalf("Verify(%s) returned error: %v", tc.kind, err)
		}
		if !claims.ExpiresAt.Equal(tc.want.Truncate(time.Second)) {
			t.Fatalf("%s expiry = %v, want %v", tc.kind, claims.ExpiresAt, tc.want)
		}
	}
}
