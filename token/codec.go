package token

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-identity/core"
)

const (
	claimSubject   = "sub"
	claimTokenType = "token_type"
	claimExpiry    = "exp"
)

// Codec builds and parses signed token payloads through the credential
// cipher. It knows nothing about revocation; that is the guard's job.
type Codec struct {
	cipher core.CredentialCipher
}

func NewCodec(cipher core.CredentialCipher) (*Codec, error) {
	if cipher == nil {
		return nil, fmt.Errorf("token: credential cipher is required")
	}
	return &Codec{cipher: cipher}, nil
}

func (c *Codec) Encode(ctx context.Context, subject string, kind core.TokenKind, expiresAt time.Time) (string, error) {
	if c == nil || c.cipher == nil {
		return "", fmt.Errorf("token: codec is not configured")
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", fmt.Errorf("token: subject is required")
	}
	claims := map[string]any{
		claimSubject:   subject,
		claimTokenType: string(kind),
	}
	signed, err := c.cipher.SignToken(ctx, claims, expiresAt.UTC())
	if err != nil {
		return "", fmt.Errorf("token: sign token: %w", err)
	}
	return signed, nil
}

// Decode validates signature and integrity via the cipher and extracts the
// claims this module relies on. Cipher rejection maps to ErrTokenInvalid;
// a payload missing subject, kind or expiry maps to ErrMalformedClaims.
// Expiry is returned as decoded, not checked here.
func (c *Codec) Decode(ctx context.Context, tokenString string) (core.TokenClaims, error) {
	if c == nil || c.cipher == nil {
		return core.TokenClaims{}, fmt.Errorf("token: codec is not configured")
	}
	payload, err := c.cipher.VerifyToken(ctx, tokenString)
	if err != nil {
		return core.TokenClaims{}, fmt.Errorf("%w: %v", core.ErrTokenInvalid, err)
	}

	subject := readClaimString(payload[claimSubject])
	kindRaw := readClaimString(payload[claimTokenType])
	expiresAt, hasExpiry := readClaimTime(payload[claimExpiry])
	if subject == "" || kindRaw == "" || !hasExpiry {
		return core.TokenClaims{}, core.ErrMalformedClaims
	}
	kind, err := core.ParseTokenKind(kindRaw)
	if err != nil {
		return core.TokenClaims{}, err
	}

	claims := core.TokenClaims{
		Subject:   subject,
		Kind:      kind,
		ExpiresAt: expiresAt.UTC(),
	}
	if err := claims.Validate(); err != nil {
		return core.TokenClaims{}, err
	}
	return claims, nil
}

func readClaimString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	default:
		return ""
	}
}

// readClaimTime accepts the numeric shapes JSON decoders and JWT libraries
// produce for "exp" as well as time.Time itself.
func readClaimTime(value any) (time.Time, bool) {
	switch typed := value.(type) {
	case time.Time:
		if typed.IsZero() {
			return time.Time{}, false
		}
		return typed, true
	case *time.Time:
		if typed == nil || typed.IsZero() {
			return time.Time{}, false
		}
		return *typed, true
	case float64:
		if typed <= 0 {
			return time.Time{}, false
		}
		return time.Unix(int64(typed), 0), true
	case int64:
		if typed <= 0 {
			return time.Time{}, false
		}
		return time.Unix(typed, 0), true
	case int:
		if typed <= 0 {
			return time.Time{}, false
		}
		return time.Unix(int64(typed), 0), true
	case json.Number:
		seconds, err := typed.Float64()
		if err != nil || seconds <= 0 {
			return time.Time{}, false
		}
		return time.Unix(int64(seconds), 0), true
	default:
		return time.Time{}, false
	}
}
