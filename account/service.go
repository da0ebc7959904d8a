// Package account drives the user lifecycle: registration, email
// verification, login, logout, password change and reset. It composes the
// directory stores, the credential cipher, the token service and the
// notifier; it owns no cryptography and no persistence of its own.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-identity/core"
	"github.com/goliatone/go-identity/token"
)

const (
	verificationCodeTTL = 24 * time.Hour
	resetTokenTTL       = time.Hour

	// sentinelUsedCode is stored when verification is not required, so the
	// per-user code slot is occupied by a value no caller can present.
	sentinelUsedCode    = "-1"
	sentinelExpiryYears = 100
	minPasswordLength   = 8

	// GenericResetMessage is returned by RequestPasswordReset for existing
	// and unknown emails alike.
	GenericResetMessage = "If the email exists, a reset link has been sent"
)

type RegisterRequest struct {
	Email    string
	Password string
	Name     string
}

// Service implements the account state machine. All operations are
// request-scoped; the only shared mutable state lives behind the stores.
type Service struct {
	config      core.Config
	users       core.UserStore
	codes       core.VerificationCodeStore
	resets      core.ResetTokenStore
	tokens      *token.Service
	cipher      core.CredentialCipher
	notifier    core.Notifier
	provisioner core.CollectionProvisioner
	observer    *core.Observer
	now         func() time.Time
}

type serviceBuilder struct {
	users           core.UserStore
	codes           core.VerificationCodeStore
	resets          core.ResetTokenStore
	tokens          *token.Service
	cipher          core.CredentialCipher
	notifier        core.Notifier
	provisioner     core.CollectionProvisioner
	logger          core.Logger
	loggerProvider  core.LoggerProvider
	metricsRecorder core.MetricsRecorder
	now             func() time.Time
}

type Option func(*serviceBuilder)

func WithUserStore(users core.UserStore) Option {
	return func(b *serviceBuilder) {
		b.users = users
	}
}

func WithVerificationCodeStore(codes core.VerificationCodeStore) Option {
	return func(b *serviceBuilder) {
		b.codes = codes
	}
}

func WithResetTokenStore(resets core.ResetTokenStore) Option {
	return func(b *serviceBuilder) {
		b.resets = resets
	}
}

func WithTokenService(tokens *token.Service) Option {
	return func(b *serviceBuilder) {
		b.tokens = tokens
	}
}

func WithCipher(cipher core.CredentialCipher) Option {
	return func(b *serviceBuilder) {
		b.cipher = cipher
	}
}

func WithNotifier(notifier core.Notifier) Option {
	return func(b *serviceBuilder) {
		b.notifier = notifier
	}
}

func WithCollectionProvisioner(provisioner core.CollectionProvisioner) Option {
	return func(b *serviceBuilder) {
		b.provisioner = provisioner
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

func NewService(cfg core.Config, opts ...Option) (*Service, error) {
	builder := serviceBuilder{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	if builder.users == nil {
		return nil, fmt.Errorf("account: user store is required")
	}
	if builder.codes == nil {
		return nil, fmt.Errorf("account: verification code store is required")
	}
	if builder.resets == nil {
		return nil, fmt.Errorf("account: reset token store is required")
	}
	if builder.tokens == nil {
		return nil, fmt.Errorf("account: token service is required")
	}
	if builder.cipher == nil {
		return nil, fmt.Errorf("account: credential cipher is required")
	}
	if builder.notifier == nil {
		return nil, fmt.Errorf("account: notifier is required")
	}
	if builder.provisioner == nil {
		builder.provisioner = core.NopCollectionProvisioner{}
	}

	_, logger := glog.Resolve("accounts", builder.loggerProvider, builder.logger)
	now := builder.now
	if now == nil {
		now = time.Now
	}

	return &Service{
		config:      cfg,
		users:       builder.users,
		codes:       builder.codes,
		resets:      builder.resets,
		tokens:      builder.tokens,
		cipher:      builder.cipher,
		notifier:    builder.notifier,
		provisioner: builder.provisioner,
		observer:    core.NewObserver("identity.accounts", logger, builder.metricsRecorder),
		now:         now,
	}, nil
}

// Register creates a new account and its default collection. When email
// verification is required the user stays unverified and receives a code;
// otherwise the code slot is burned with a sentinel and the user is marked
// verified immediately.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (user core.User, err error) {
	if s == nil {
		return core.User{}, fmt.Errorf("account: service is not configured")
	}
	startedAt := s.now()
	defer func() {
		s.observer.ObserveOperation(ctx, startedAt, "account_register", err, map[string]any{
			"email":   req.Email,
			"user_id": user.ID,
		})
	}()

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return core.User{}, err
	}
	if err = validatePassword(req.Password); err != nil {
		return core.User{}, err
	}

	hashed, err := s.cipher.HashPassword(req.Password)
	if err != nil {
		return core.User{}, fmt.Errorf("account: hash password: %w", err)
	}

	requireVerification := s.config.RequireEmailVerification
	user, err = s.users.CreateUser(ctx, core.CreateUserInput{
		Email:          email,
		HashedPassword: hashed,
		Name:           strings.TrimSpace(req.Name),
		IsVerified:     !requireVerification,
	})
	if err != nil {
		return core.User{}, err
	}

	if err = s.provisioner.ProvisionDefaultCollection(ctx, user.ID); err != nil {
		return core.User{}, fmt.Errorf("account: provision default collection: %w", err)
	}

	if !requireVerification {
		expiresAt := s.now().AddDate(sentinelExpiryYears, 0, 0)
		if err = s.codes.StoreVerificationCode(ctx, user.ID, sentinelUsedCode, expiresAt); err != nil {
			return core.User{}, fmt.Errorf("account: store sentinel code: %w", err)
		}
		if err = s.users.MarkUserVerified(ctx, user.ID); err != nil {
			return core.User{}, fmt.Errorf("account: mark verified: %w", err)
		}
		user.IsVerified = true
		return user, nil
	}

	code, err := s.cipher.GenerateOneTimeCode()
	if err != nil {
		return core.User{}, fmt.Errorf("account: generate verification code: %w", err)
	}
	if err = s.codes.StoreVerificationCode(ctx, user.ID, code, s.now().Add(verificationCodeTTL)); err != nil {
		return core.User{}, fmt.Errorf("account: store verification code: %w", err)
	}
	if err = s.notifier.SendVerificationEmail(ctx, user.Email, code, map[string]any{
		"FirstName": user.FirstName(),
	}); err != nil {
		return core.User{}, fmt.Errorf("account: send verification email: %w", err)
	}
	return user, nil
}

// VerifyEmail consumes a verification code. A code bound to no user, an
// expired code, or a code bound to a different account all fail the same
// way.
func (s *Service) VerifyEmail(ctx context.Context, email string, code string) (err error) {
	if s == nil {
		return fmt.Errorf("account: service is not configured")
	}
	startedAt := s.now()
	defer func() {
		s.observer.ObserveOperation(ctx, startedAt, "account_verify_email", err, map[string]any{
			"email": email,
		})
	}()

	email, err = normalizeEmail(email)
	if err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if code == "" || code == sentinelUsedCode {
		return core.ErrInvalidVerificationCode
	}

	userID, err := s.codes.GetUserIDByVerificationCode(ctx, code)
	if err != nil {
		return err
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return core.ErrInvalidVerificationCode
		}
		return fmt.Errorf("account: load user: %w", err)
	}
	if !strings.EqualFold(user.Email, email) {
		return core.ErrInvalidVerificationCode
	}

	if err = s.users.MarkUserVerified(ctx, user.ID); err != nil {
		return fmt.Errorf("account: mark verified: %w", err)
	}
	if err = s.codes.RemoveVerificationCode(ctx, code); err != nil {
		return fmt.Errorf("account: remove verification code: %w", err)
	}
	return nil
}

// Login authenticates with email and password and issues a token pair. An
// unknown email and a wrong password return the same failure.
func (s *Service) Login(ctx context.Context, email string, password string) (pair core.TokenPair, err error) {
	if s == nil {
		return core.TokenPair{}, fmt.Errorf("account: service is not configured")
	}
	startedAt := s.now()
	defer func() {
		s.observer.ObserveOperation(ctx, startedAt, "account_login", err, map[string]any{
			"email": email,
		})
	}()

	email, err = normalizeEmail(email)
	if err != nil {
		return core.TokenPair{}, core.ErrInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return core.TokenPair{}, core.ErrInvalidCredentials
		}
		return core.TokenPair{}, fmt.Errorf("account: load user: %w", err)
	}

	ok, err := s.cipher.VerifyPassword(password, user.HashedPassword)
	if err != nil {
		// The stored hash is unusable. This is our data corruption, not a
		// caller mistake, and must never read as a bad password.
		return core.TokenPair{}, fmt.Errorf("%w: %v", core.ErrCredentialIntegrity, err)
	}
	if !ok {
		return core.TokenPair{}, core.ErrInvalidCredentials
	}

	if !user.IsActive {
		return core.TokenPair{}, core.ErrInactiveAccount
	}
	if s.config.RequireEmailVerification && !user.IsVerified {
		return core.TokenPair{}, core.ErrEmailNotVerified
	}

	pair, err = s.tokens.IssuePair(ctx, user.Email)
	if err != nil {
		return core.TokenPair{}, err
	}
	return pair, nil
}

// ChangePassword swaps the password of an authenticated user after checking
// the current one.
func (s *Service) ChangePassword(ctx context.Context, user core.User, currentPassword string, newPassword string) (err error) {
	if s == nil {
		return fmt.Errorf("account: service is not configured")
	}
	startedAt := s.now()
	defer func() {
		s.observer.ObserveOperation(ctx, startedAt, "account_change_password", err, map[string]any{
			"user_id": user.ID,
		})
	}()

	if err = validatePassword(newPassword); err != nil {
		return err
	}

	ok, err := s.cipher.VerifyPassword(currentPassword, user.HashedPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrCredentialIntegrity, err)
	}
	if !ok {
		return core.ErrWrongPassword
	}

	hashed, err := s.cipher.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("account: hash password: %w", err)
	}
	if err = s.users.UpdateUserPassword(ctx, user.ID, hashed); err != nil {
		return fmt.Errorf("account: update password: %w", err)
	}
	return nil
}

// RequestPasswordReset returns GenericResetMessage whether or not the email
// exists. Only the user-not-found case is absorbed; store or delivery
// failures for an existing account propagate.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (message string, err error) {
	if s == nil {
		return "", fmt.Errorf("account: service is not configured")
	}
	startedAt := s.now()
	defer func() {
		s.observer.ObserveOperation(ctx, startedAt, "account_request_reset", err, map[string]any{
			"email": email,
		})
	}()

	email, err = normalizeEmail(email)
	if err != nil {
		return "", err
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return GenericResetMessage, nil
		}
		return "", fmt.Errorf("account: load user: %w", err)
	}

	resetToken, err := s.cipher.GenerateOneTimeCode()
	if err != nil {
		return "", fmt.Errorf("account: generate reset token: %w", err)
	}
	if err = s.resets.StoreResetToken(ctx, user.ID, resetToken, s.now().Add(resetTokenTTL)); err != nil {
		return "", fmt.Errorf("account: store reset token: %w", err)
	}
	if err = s.notifier.SendPasswordResetEmail(ctx, user.Email, resetToken, map[string]any{
		"FirstName": user.FirstName(),
	}); err != nil {
		return "", fmt.Errorf("account: send reset email: %w", err)
	}
	return GenericResetMessage, nil
}

// ConfirmPasswordReset consumes a reset token and installs the new password.
func (s *Service) ConfirmPasswordReset(ctx context.Context, resetToken string, newPassword string) (err error) {
	if s == nil {
		return fmt.Errorf("account: service is not configured")
	}
	startedAt := s.now()
	defer func() {
		s.observer.ObserveOperation(ctx, startedAt, "account_confirm_reset", err, nil)
	}()

	resetToken = strings.TrimSpace(resetToken)
	if resetToken == "" {
		return core.ErrInvalidResetToken
	}
	if err = validatePassword(newPassword); err != nil {
		return err
	}

	userID, err := s.resets.GetUserIDByResetToken(ctx, resetToken)
	if err != nil {
		return err
	}

	hashed, err := s.cipher.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("account: hash password: %w", err)
	}
	if err = s.users.UpdateUserPassword(ctx, userID, hashed); err != nil {
		return fmt.Errorf("account: update password: %w", err)
	}
	if err = s.resets.RemoveResetToken(ctx, userID); err != nil {
		return fmt.Errorf("account: remove reset token: %w", err)
	}
	return nil
}

// Logout revokes the presented token. Repeated logouts with the same token
// succeed.
func (s *Service) Logout(ctx context.Context, tokenString string) (err error) {
	if s == nil {
		return fmt.Errorf("account: service is not configured")
	}
	startedAt := s.now()
	defer func() {
		s.observer.ObserveOperation(ctx, startedAt, "account_logout", err, nil)
	}()
	return s.tokens.Revoke(ctx, tokenString)
}

// CleanExpiredBlacklistedTokens runs the blacklist sweep.
func (s *Service) CleanExpiredBlacklistedTokens(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("account: service is not configured")
	}
	return s.tokens.CleanExpired(ctx)
}

// Initialize seeds the configured admin account. It runs at startup and is
// a no-op when no admin email is configured or the account already exists.
func (s *Service) Initialize(ctx context.Context) (err error) {
	if s == nil {
		return fmt.Errorf("account: service is not configured")
	}
	startedAt := s.now()
	defer func() {
		s.observer.ObserveOperation(ctx, startedAt, "account_initialize", err, map[string]any{
			"email": s.config.Admin.Email,
		})
	}()

	email := strings.TrimSpace(s.config.Admin.Email)
	if email == "" {
		return nil
	}
	email, err = normalizeEmail(email)
	if err != nil {
		return err
	}

	hashed, err := s.cipher.HashPassword(s.config.Admin.Password)
	if err != nil {
		return fmt.Errorf("account: hash admin password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, core.CreateUserInput{
		Email:          email,
		HashedPassword: hashed,
		IsVerified:     true,
		IsSuperuser:    true,
	})
	if err != nil {
		if errors.Is(err, core.ErrAlreadyExists) {
			return nil
		}
		return err
	}

	expiresAt := s.now().AddDate(sentinelExpiryYears, 0, 0)
	if err = s.codes.StoreVerificationCode(ctx, user.ID, sentinelUsedCode, expiresAt); err != nil {
		return fmt.Errorf("account: store sentinel code: %w", err)
	}
	if err = s.users.MarkUserVerified(ctx, user.ID); err != nil {
		return fmt.Errorf("account: mark verified: %w", err)
	}
	if err = s.users.MarkUserSuperuser(ctx, user.ID); err != nil {
		return fmt.Errorf("account: mark superuser: %w", err)
	}
	return nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return "", fmt.Errorf("account: invalid email address")
	}
	return email, nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("account: password must be at least %d characters", minPasswordLength)
	}
	return nil
}
