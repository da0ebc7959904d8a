// Package resolver turns an opaque credential string into a principal by
// running an ordered chain of authenticators. Callers present whatever they
// received, a signed token or a composite API key, and get back a user or a
// single uninformative failure.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-identity/core"
)

// Resolver is the dual-mode credential front door. Authenticators run in
// registration order and the first success wins.
type Resolver struct {
	chain    []core.CredentialAuthenticator
	observer *core.Observer
	now      func() time.Time
}

type resolverBuilder struct {
	chain           []core.CredentialAuthenticator
	logger          core.Logger
	loggerProvider  core.LoggerProvider
	metricsRecorder core.MetricsRecorder
	now             func() time.Time
}

type Option func(*resolverBuilder)

// WithAuthenticator appends one authenticator to the chain. Order of calls
// is the order of attempts.
func WithAuthenticator(authenticator core.CredentialAuthenticator) Option {
	return func(b *resolverBuilder) {
		if authenticator != nil {
			b.chain = append(b.chain, authenticator)
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(b *resolverBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *resolverBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(b *resolverBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *resolverBuilder) {
		b.now = now
	}
}

func New(opts ...Option) (*Resolver, error) {
	builder := resolverBuilder{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}
	if len(builder.chain) == 0 {
		return nil, fmt.Errorf("resolver: at least one authenticator is required")
	}

	_, logger := glog.Resolve("resolver", builder.loggerProvider, builder.logger)
	now := builder.now
	if now == nil {
		now = time.Now
	}

	return &Resolver{
		chain:    builder.chain,
		observer: core.NewObserver("identity.resolver", logger, builder.metricsRecorder),
		now:      now,
	}, nil
}

// Resolve runs the chain over the presented credential. Every input yields
// either an active user or exactly one terminal failure: an inactive
// principal surfaces as ErrInactiveAccount, everything else collapses to
// ErrInvalidCredentials so the caller learns nothing about why the chain
// rejected the credential.
func (r *Resolver) Resolve(ctx context.Context, credential string) (user core.User, err error) {
	if r == nil || len(r.chain) == 0 {
		return core.User{}, fmt.Errorf("resolver: resolver is not configured")
	}
	startedAt := r.now()
	var matchedKind string
	defer func() {
		r.observer.ObserveOperation(ctx, startedAt, "credential_resolve", err, map[string]any{
			"kind":    matchedKind,
			"user_id": user.ID,
		})
	}()

	for _, authenticator := range r.chain {
		candidate, attemptErr := authenticator.Authenticate(ctx, credential)
		if attemptErr == nil {
			matchedKind = authenticator.Kind()
			user, err = ActiveUser(candidate)
			if err != nil {
				return core.User{}, err
			}
			return user, nil
		}
		// An authenticator that recognized the credential but found the
		// account disabled is terminal; trying the next kind would let an
		// attacker sidestep the suspension.
		if errors.Is(attemptErr, core.ErrInactiveAccount) {
			matchedKind = authenticator.Kind()
			return core.User{}, core.ErrInactiveAccount
		}
	}
	return core.User{}, core.ErrInvalidCredentials
}

// ActiveUser rejects principals whose account is disabled.
func ActiveUser(user core.User) (core.User, error) {
	if !user.IsActive {
		return core.User{}, core.ErrInactiveAccount
	}
	return user, nil
}
