package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-identity/apikey"
	"github.com/goliatone/go-identity/core"
	"github.com/goliatone/go-identity/token"
)

const bearerPrefix = "Bearer "

// TokenAuthenticator resolves a signed token to its user. Any decodable,
// unrevoked token qualifies regardless of kind.
type TokenAuthenticator struct {
	tokens *token.Service
	users  core.UserStore
}

func NewTokenAuthenticator(tokens *token.Service, users core.UserStore) (*TokenAuthenticator, error) {
	if tokens == nil {
		return nil, fmt.Errorf("resolver: token service is required")
	}
	if users == nil {
		return nil, fmt.Errorf("resolver: user store is required")
	}
	return &TokenAuthenticator{tokens: tokens, users: users}, nil
}

func (a *TokenAuthenticator) Kind() string { return "token" }

func (a *TokenAuthenticator) Authenticate(ctx context.Context, credential string) (core.User, error) {
	if a == nil || a.tokens == nil || a.users == nil {
		return core.User{}, fmt.Errorf("resolver: token authenticator is not configured")
	}
	claims, err := a.tokens.Verify(ctx, stripBearer(credential))
	if err != nil {
		return core.User{}, err
	}
	// Subjects are the account email. A token whose subject no longer has
	// a user row is indistinguishable from a bad credential.
	user, err := a.users.GetUserByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return core.User{}, core.ErrInvalidCredentials
		}
		return core.User{}, fmt.Errorf("resolver: lookup subject: %w", err)
	}
	return user, nil
}

// APIKeyAuthenticator resolves a composite API key to its owner.
type APIKeyAuthenticator struct {
	keys *apikey.Service
}

func NewAPIKeyAuthenticator(keys *apikey.Service) (*APIKeyAuthenticator, error) {
	if keys == nil {
		return nil, fmt.Errorf("resolver: api key service is required")
	}
	return &APIKeyAuthenticator{keys: keys}, nil
}

func (a *APIKeyAuthenticator) Kind() string { return "api_key" }

func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, credential string) (core.User, error) {
	if a == nil || a.keys == nil {
		return core.User{}, fmt.Errorf("resolver: api key authenticator is not configured")
	}
	return a.keys.Verify(ctx, stripBearer(credential))
}

// stripBearer removes an optional "Bearer " scheme prefix, matching how
// credentials arrive from an Authorization header.
func stripBearer(credential string) string {
	credential = strings.TrimSpace(credential)
	if len(credential) >= len(bearerPrefix) && strings.EqualFold(credential[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(credential[len(bearerPrefix):])
	}
	return credential
}

var (
	_ core.CredentialAuthenticator = (*TokenAuthenticator)(nil)
	_ core.CredentialAuthenticator = (*APIKeyAuthenticator)(nil)
)
