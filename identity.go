// Package identity assembles the credential services of this module behind
// a single builder: token issue/verify/refresh, API key management, the
// dual-mode credential resolver and the account lifecycle service. Storage
// is resolved from a repository factory or supplied store provider; the
// cipher defaults to the bundled JWT/bcrypt implementation when only a
// signing key is given.
package identity

import (
	"context"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-identity/account"
	"github.com/goliatone/go-identity/apikey"
	"github.com/goliatone/go-identity/core"
	"github.com/goliatone/go-identity/crypto"
	"github.com/goliatone/go-identity/notify"
	"github.com/goliatone/go-identity/resolver"
	"github.com/goliatone/go-identity/token"
)

type Config = core.Config

type TokenConfig = core.TokenConfig

type AdminConfig = core.AdminConfig

type User = core.User
type TokenPair = core.TokenPair
type TokenClaims = core.TokenClaims
type APIKey = core.APIKey
type IssuedAPIKey = core.IssuedAPIKey

type RegisterRequest = account.RegisterRequest

type StoreProvider = core.StoreProvider
type CredentialCipher = core.CredentialCipher
type Notifier = core.Notifier

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// Service is the assembled module. The sub-services stay individually
// addressable; nothing here adds behavior on top of them.
type Service struct {
	config         core.Config
	logger         core.Logger
	loggerProvider core.LoggerProvider
	stores         core.StoreProvider
	cipher         core.CredentialCipher
	tokens         *token.Service
	keys           *apikey.Service
	accounts       *account.Service
	credentials    *resolver.Resolver
}

type serviceBuilder struct {
	runtimeConfig     core.Config
	logger            core.Logger
	loggerProvider    core.LoggerProvider
	metricsRecorder   core.MetricsRecorder
	cipher            core.CredentialCipher
	signingKey        string
	notifier          core.Notifier
	provisioner       core.CollectionProvisioner
	persistenceClient any
	repositoryFactory any
	storeProvider     core.StoreProvider
	userStore         core.UserStore
	configProvider    core.ConfigProvider
	optionsResolver   core.OptionsResolver
}

type Option func(*serviceBuilder)

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

func WithCipher(cipher core.CredentialCipher) Option {
	return func(b *serviceBuilder) {
		b.cipher = cipher
	}
}

// WithSigningKey builds the default cipher from the given HMAC key. Ignored
// when WithCipher supplies a full implementation.
func WithSigningKey(key string) Option {
	return func(b *serviceBuilder) {
		b.signingKey = key
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

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithStoreProvider(provider core.StoreProvider) Option {
	return func(b *serviceBuilder) {
		b.storeProvider = provider
	}
}

// WithUserStore overrides the provider's user store, typically to interpose
// a read-through cache in front of the SQL store.
func WithUserStore(users core.UserStore) Option {
	return func(b *serviceBuilder) {
		b.userStore = users
	}
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func New(cfg Config, opts ...Option) (*Service, error) {
	builder := serviceBuilder{runtimeConfig: cfg}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("identity", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("identity"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = core.NopMetricsRecorder{}
	}
	if builder.configProvider == nil {
		builder.configProvider = core.NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = core.GoOptionsResolver{}
	}
	if builder.notifier == nil {
		builder.notifier = notify.NopNotifier{}
	}

	defaults := core.DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(err)
	}

	stores, err := resolveStores(builder)
	if err != nil {
		return nil, mapBuildError(err)
	}
	users := builder.userStore
	if users == nil {
		users = stores.Users()
	}
	if users == nil {
		return nil, fmt.Errorf("identity: user store is required")
	}

	cipher := builder.cipher
	if cipher == nil {
		if strings.TrimSpace(builder.signingKey) == "" {
			return nil, fmt.Errorf("identity: a cipher or signing key is required")
		}
		cipher, err = crypto.NewCipher(builder.signingKey, crypto.WithIssuer(finalConfig.ServiceName))
		if err != nil {
			return nil, mapBuildError(err)
		}
	}

	tokens, err := token.NewService(finalConfig.Tokens,
		token.WithCipher(cipher),
		token.WithBlacklist(stores.Blacklist()),
		token.WithLogger(logger),
		token.WithMetricsRecorder(builder.metricsRecorder),
	)
	if err != nil {
		return nil, mapBuildError(err)
	}

	keys, err := apikey.NewService(
		apikey.WithStore(stores.APIKeys()),
		apikey.WithUserStore(users),
		apikey.WithCipher(cipher),
		apikey.WithLogger(logger),
		apikey.WithMetricsRecorder(builder.metricsRecorder),
	)
	if err != nil {
		return nil, mapBuildError(err)
	}

	accountOpts := []account.Option{
		account.WithUserStore(users),
		account.WithVerificationCodeStore(stores.VerificationCodes()),
		account.WithResetTokenStore(stores.ResetTokens()),
		account.WithTokenService(tokens),
		account.WithCipher(cipher),
		account.WithNotifier(builder.notifier),
		account.WithLogger(logger),
		account.WithMetricsRecorder(builder.metricsRecorder),
	}
	if builder.provisioner != nil {
		accountOpts = append(accountOpts, account.WithCollectionProvisioner(builder.provisioner))
	}
	accounts, err := account.NewService(finalConfig, accountOpts...)
	if err != nil {
		return nil, mapBuildError(err)
	}

	tokenAuth, err := resolver.NewTokenAuthenticator(tokens, users)
	if err != nil {
		return nil, mapBuildError(err)
	}
	apiKeyAuth, err := resolver.NewAPIKeyAuthenticator(keys)
	if err != nil {
		return nil, mapBuildError(err)
	}
	credentials, err := resolver.New(
		resolver.WithAuthenticator(tokenAuth),
		resolver.WithAuthenticator(apiKeyAuth),
		resolver.WithLogger(logger),
		resolver.WithMetricsRecorder(builder.metricsRecorder),
	)
	if err != nil {
		return nil, mapBuildError(err)
	}

	return &Service{
		config:         finalConfig,
		logger:         logger,
		loggerProvider: provider,
		stores:         stores,
		cipher:         cipher,
		tokens:         tokens,
		keys:           keys,
		accounts:       accounts,
		credentials:    credentials,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return New(cfg, opts...)
}

func resolveStores(builder serviceBuilder) (core.StoreProvider, error) {
	if builder.storeProvider != nil {
		return builder.storeProvider, nil
	}
	if builder.repositoryFactory == nil {
		return nil, fmt.Errorf("identity: a store provider or repository factory is required")
	}
	if factory, ok := builder.repositoryFactory.(core.RepositoryStoreFactory); ok {
		return factory.BuildStores(builder.persistenceClient)
	}
	if provider, ok := builder.repositoryFactory.(core.StoreProvider); ok {
		return provider, nil
	}
	return nil, fmt.Errorf("identity: unsupported repository factory type %T", builder.repositoryFactory)
}

func mapBuildError(err error) error {
	if err == nil {
		return nil
	}
	mapped := core.IdentityErrorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Tokens() *token.Service {
	if s == nil {
		return nil
	}
	return s.tokens
}

func (s *Service) APIKeys() *apikey.Service {
	if s == nil {
		return nil
	}
	return s.keys
}

func (s *Service) Accounts() *account.Service {
	if s == nil {
		return nil
	}
	return s.accounts
}

func (s *Service) Credentials() *resolver.Resolver {
	if s == nil {
		return nil
	}
	return s.credentials
}

func (s *Service) Stores() core.StoreProvider {
	if s == nil {
		return nil
	}
	return s.stores
}

func (s *Service) Cipher() core.CredentialCipher {
	if s == nil {
		return nil
	}
	return s.cipher
}

// Resolve authenticates a presented credential, token first then API key.
func (s *Service) Resolve(ctx context.Context, credential string) (core.User, error) {
	if s == nil || s.credentials == nil {
		return core.User{}, fmt.Errorf("identity: service is not configured")
	}
	return s.credentials.Resolve(ctx, credential)
}

// Initialize seeds the configured admin account. Safe to call on every boot.
func (s *Service) Initialize(ctx context.Context) error {
	if s == nil || s.accounts == nil {
		return fmt.Errorf("identity: service is not configured")
	}
	return s.accounts.Initialize(ctx)
}
