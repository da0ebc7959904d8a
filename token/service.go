package token

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-identity/core"
)

// revokeFallbackTTL bounds how long a blacklist entry lives when the token
// being revoked cannot be decoded and its real expiry is unknown. The entry
// must outlive any plausible token lifetime so the sweep never resurrects a
// revoked token early.
const revokeFallbackTTL = 366 * 24 * time.Hour

// Service issues, verifies, refreshes and revokes signed tokens. It owns no
// user state; subjects are opaque strings supplied by the caller.
type Service struct {
	config    core.TokenConfig
	codec     *Codec
	blacklist core.TokenBlacklist
	observer  *core.Observer
	now       func() time.Time
}

type serviceBuilder struct {
	cipher          core.CredentialCipher
	blacklist       core.TokenBlacklist
	logger          core.Logger
	loggerProvider  core.LoggerProvider
	metricsRecorder core.MetricsRecorder
	now             func() time.Time
}

type Option func(*serviceBuilder)

func WithCipher(cipher core.CredentialCipher) Option {
	return func(b *serviceBuilder) {
		b.cipher = cipher
	}
}

func WithBlacklist(blacklist core.TokenBlacklist) Option {
	return func(b *serviceBuilder) {
		b.blacklist = blacklist
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

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.now = now
	}
}

func NewService(cfg core.TokenConfig, opts ...Option) (*Service, error) {
	builder := serviceBuilder{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	if builder.cipher == nil {
		return nil, fmt.Errorf("token: credential cipher is required")
	}
	if builder.blacklist == nil {
		return nil, fmt.Errorf("token: token blacklist is required")
	}
	if cfg.AccessLifetimeMinutes <= 0 {
		cfg.AccessLifetimeMinutes = core.DefaultAccessTokenLifetimeMinutes
	}
	if cfg.RefreshLifetimeDays <= 0 {
		cfg.RefreshLifetimeDays = core.DefaultRefreshTokenLifetimeDays
	}

	codec, err := NewCodec(builder.cipher)
	if err != nil {
		return nil, err
	}

	_, logger := glog.Resolve("tokens", builder.loggerProvider, builder.logger)
	now := builder.now
	if now == nil {
		now = time.Now
	}

	return &Service{
		config:    cfg,
		codec:     codec,
		blacklist: builder.blacklist,
		observer:  core.NewObserver("identity.tokens", logger, builder.metricsRecorder),
		now:       now,
	}, nil
}

// Issue signs a new token of the given kind for subject. The expiry comes
// from the configured lifetime for that kind.
func (s *Service) Issue(ctx context.Context, subject string, kind core.TokenKind) (signed string, err error) {
	if s == nil {
		return "", fmt.Errorf("token: service is not configured")
	}
	startedAt := s.now()
	defer func() {
		s.observer.ObserveOperation(ctx, startedAt, "token_issue", err, map[string]any{
			"user_id": subject,
			"kind":    string(kind),
		})
	}()

	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", fmt.Errorf("token: subject is required")
	}
	if kind != core.TokenKindAccess && kind != core.TokenKindRefresh {
		return "", fmt.Errorf("token: unknown token kind %q", kind)
	}

	expiresAt := s.now().Add(s.lifetimeFor(kind))
	signed, err = s.codec.Encode(ctx, subject, kind, expiresAt)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// IssueAccessToken signs a short-lived access token for subject.
func (s *Service) IssueAccessToken(ctx context.Context, subject string) (string, error) {
	return s.Issue(ctx, subject, core.TokenKindAccess)
}

// IssueRefreshToken signs a long-lived refresh token for subject.
func (s *Service) IssueRefreshToken(ctx context.Context, subject string) (string, error) {
	return s.Issue(ctx, subject, core.TokenKindRefresh)
}

// IssuePair issues a fresh access and refresh token for subject.
func (s *Service) IssuePair(ctx context.Context, subject string) (core.TokenPair, error) {
	access, err := s.Issue(ctx, subject, core.TokenKindAccess)
	if err != nil {
		return core.TokenPair{}, err
	}
	refresh, err := s.Issue(ctx, subject, core.TokenKindRefresh)
	if err != nil {
		return core.TokenPair{}, err
	}
	return core.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify checks a presented token. The blacklist is consulted before any
// cryptographic work so a revoked token fails with ErrTokenRevoked even when
// it would not decode. Expiry is re-checked against the wall clock after
// decoding, independent of the cipher's own enforcement.
func (s *Service) Verify(ctx context.Context, tokenString string) (claims core.TokenClaims, err error) {
	if s == nil {
		return core.TokenClaims{}, fmt.Errorf("token: service is not configured")
	}
	startedAt := s.now()
	defer func() {
		s.observer.ObserveOperation(ctx, startedAt, "token_verify", err, map[string]any{
			"kind": string(claims.Kind),
		})
	}()

	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return core.TokenClaims{}, core.ErrTokenInvalid
	}

	revoked, err := s.blacklist.IsTokenBlacklisted(ctx, tokenString)
	if err != nil {
		return core.TokenClaims{}, fmt.Errorf("token: blacklist lookup: %w", err)
	}
	if revoked {
		return core.TokenClaims{}, core.ErrTokenRevoked
	}

	claims, err = s.codec.Decode(ctx, tokenString)
	if err != nil {
		return core.TokenClaims{}, err
	}
	if !claims.ExpiresAt.After(s.now()) {
		return core.TokenClaims{}, core.ErrTokenExpired
	}
	return claims, nil
}

// VerifyKind verifies the token and additionally requires it to be of the
// given kind, failing with ErrWrongTokenType otherwise.
func (s *Service) VerifyKind(ctx context.Context, tokenString string, kind core.TokenKind) (core.TokenClaims, error) {
	claims, err := s.Verify(ctx, tokenString)
	if err != nil {
		return core.TokenClaims{}, err
	}
	if claims.Kind != kind {
		return core.TokenClaims{}, fmt.Errorf("%w: expected %s, got %s", core.ErrWrongTokenType, kind, claims.Kind)
	}
	return claims, nil
}

// Refresh rotates a refresh token: the presented token is verified, then
// blacklisted, then a new pair is issued for the same subject. The
// blacklist write happens before issuance and a write failure fails the
// whole operation, so a token that produced a new pair can never be
// replayed.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (pair core.TokenPair, err error) {
	if s == nil {
		return core.TokenPair{}, fmt.Errorf("token: service is not configured")
	}
	startedAt := s.now()
	var subject string
	defer func() {
		s.observer.ObserveOperation(ctx, startedAt, "token_refresh", err, map[string]any{
			"user_id": subject,
		})
	}()

	claims, err := s.VerifyKind(ctx, refreshToken, core.TokenKindRefresh)
	if err != nil {
		return core.TokenPair{}, err
	}
	subject = claims.Subject

	if err = s.blacklist.BlacklistToken(ctx, strings.TrimSpace(refreshToken), claims.ExpiresAt); err != nil {
		return core.TokenPair{}, fmt.Errorf("token: blacklist rotated token: %w", err)
	}

	pair, err = s.IssuePair(ctx, claims.Subject)
	if err != nil {
		return core.TokenPair{}, err
	}
	return pair, nil
}

// Revoke blacklists a presented token. Decoding is best effort: when the
// token does not decode its expiry is unknown, and the entry is recorded
// with a far-future expiry so the sweep keeps it for longer than any real
// token could live. Revoking an already revoked token is a no-op.
func (s *Service) Revoke(ctx context.Context, tokenString string) (err error) {
	if s == nil {
		return fmt.Errorf("token: service is not configured")
	}
	startedAt := s.now()
	defer func() {
		s.observer.ObserveOperation(ctx, startedAt, "token_revoke", err, nil)
	}()

	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return core.ErrTokenInvalid
	}

	expiresAt := s.now().Add(revokeFallbackTTL)
	if claims, decodeErr := s.codec.Decode(ctx, tokenString); decodeErr == nil {
		expiresAt = claims.ExpiresAt
	}

	if err = s.blacklist.BlacklistToken(ctx, tokenString, expiresAt); err != nil {
		return fmt.Errorf("token: blacklist token: %w", err)
	}
	return nil
}

// CleanExpired purges blacklist entries whose token expiry has passed.
func (s *Service) CleanExpired(ctx context.Context) (err error) {
	if s == nil {
		return fmt.Errorf("token: service is not configured")
	}
	startedAt := s.now()
	defer func() {
		s.observer.ObserveOperation(ctx, startedAt, "token_sweep", err, nil)
	}()

	if err = s.blacklist.CleanExpiredTokens(ctx, s.now()); err != nil {
		return fmt.Errorf("token: clean expired tokens: %w", err)
	}
	return nil
}

func (s *Service) lifetimeFor(kind core.TokenKind) time.Duration {
	if kind == core.TokenKindRefresh {
		return s.config.RefreshLifetime()
	}
	return s.config.AccessLifetime()
}
