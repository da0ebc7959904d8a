// Package crypto provides the reference core.CredentialCipher: HS256 signed
// tokens, bcrypt password hashes, random API key material and one-time
// codes. Deployments with an external KMS implement the same contract.
package crypto

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	publicIDBytes    = 8
	secretBytes      = 24
	oneTimeCodeBytes = 16

	signingMethodName = "HS256"
)

// Cipher signs and verifies tokens with a shared HMAC secret. Verification
// checks signature and shape only; claim freshness is the caller's problem,
// so revoked-but-unexpired and expired tokens can be told apart upstream.
type Cipher struct {
	signingKey []byte
	issuer     string
	bcryptCost int
	parser     *jwt.Parser
	now        func() time.Time
}

type CipherOption func(*Cipher)

// WithIssuer stamps an "iss" claim on every signed token.
func WithIssuer(issuer string) CipherOption {
	return func(c *Cipher) {
		c.issuer = strings.TrimSpace(issuer)
	}
}

func WithBcryptCost(cost int) CipherOption {
	return func(c *Cipher) {
		c.bcryptCost = cost
	}
}

func WithClock(now func() time.Time) CipherOption {
	return func(c *Cipher) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCipher(signingKey string, opts ...CipherOption) (*Cipher, error) {
	signingKey = strings.TrimSpace(signingKey)
	if signingKey == "" {
		return nil, fmt.Errorf("crypto: signing key is required")
	}

	cipher := &Cipher{
		signingKey: []byte(signingKey),
		bcryptCost: bcrypt.DefaultCost,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{signingMethodName}),
			jwt.WithoutClaimsValidation(),
		),
		now: time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(cipher)
	}
	if cipher.bcryptCost < bcrypt.MinCost || cipher.bcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("crypto: bcrypt cost %d out of range", cipher.bcryptCost)
	}
	return cipher, nil
}

func (c *Cipher) SignToken(_ context.Context, claims map[string]any, expiresAt time.Time) (string, error) {
	if c == nil || len(c.signingKey) == 0 {
		return "", fmt.Errorf("crypto: cipher is not configured")
	}

	payload := jwt.MapClaims{}
	for key, value := range claims {
		payload[key] = value
	}
	payload["exp"] = jwt.NewNumericDate(expiresAt.UTC())
	payload["iat"] = jwt.NewNumericDate(c.now().UTC())
	if c.issuer != "" {
		payload["iss"] = c.issuer
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(c.signingKey)
	if err != nil {
		return "", fmt.Errorf("crypto: sign token: %w", err)
	}
	return signed, nil
}

func (c *Cipher) VerifyToken(_ context.Context, token string) (map[string]any, error) {
	if c == nil || len(c.signingKey) == 0 {
		return nil, fmt.Errorf("crypto: cipher is not configured")
	}

	parsed, err := c.parser.Parse(strings.TrimSpace(token), func(*jwt.Token) (any, error) {
		return c.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("crypto: parse token: %w", err)
	}
	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("crypto: unexpected claims payload")
	}
	return map[string]any(mapClaims), nil
}

func (c *Cipher) HashPassword(password string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("crypto: cipher is not configured")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), c.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("crypto: hash password: %w", err)
	}
	return string(hashed), nil
}

// VerifyPassword reports a plain mismatch as (false, nil). Any other bcrypt
// failure means the stored value is not a bcrypt hash at all and comes back
// as an error.
func (c *Cipher) VerifyPassword(password string, hashed string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password))
	if err == nil {
		return true, nil
	}
	if err == bcrypt.ErrMismatchedHashAndPassword {
		return false, nil
	}
	return false, fmt.Errorf("crypto: compare password: %w", err)
}

func (c *Cipher) GenerateAPIKey() (string, string, error) {
	publicID, err := randomHex(publicIDBytes)
	if err != nil {
		return "", "", fmt.Errorf("crypto: generate key id: %w", err)
	}
	rawSecret, err := randomHex(secretBytes)
	if err != nil {
		return "", "", fmt.Errorf("crypto: generate key secret: %w", err)
	}
	return publicID, rawSecret, nil
}

func (c *Cipher) HashAPIKey(rawSecret string) string {
	digest := sha256.Sum256([]byte(rawSecret))
	return hex.EncodeToString(digest[:])
}

func (c *Cipher) VerifyAPIKey(rawSecret string, hashed string) bool {
	computed := c.HashAPIKey(rawSecret)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(strings.TrimSpace(hashed))) == 1
}

func (c *Cipher) GenerateOneTimeCode() (string, error) {
	code, err := randomHex(oneTimeCodeBytes)
	if err != nil {
		return "", fmt.Errorf("crypto: generate one-time code: %w", err)
	}
	return code, nil
}

func randomHex(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
