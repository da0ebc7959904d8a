package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseTokenKind(t *testing.T) {
	tests := []struct {
		input   string
		want    TokenKind
		wantErr bool
	}{
		{input: "access", want: TokenKindAccess},
		{input: "refresh", want: TokenKindRefresh},
		{input: "  ACCESS  ", want: TokenKindAccess},
		{input: "session", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		kind, err := ParseTokenKind(tt.input)
		if tt.wantErr {
			if !errors.Is(err, ErrMalformedClaims) {
				t.Fatalf("ParseTokenKind(%q): expected ErrMalformedClaims, got %v", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseTokenKind(%q): %v", tt.input, err)
		}
		if kind != tt.want {
			t.Fatalf("ParseTokenKind(%q) = %q, want %q", tt.input, kind, tt.want)
		}
	}
}

func TestTokenClaimsValidate(t *testing.T) {
	valid := TokenClaims{
		Subject:   "ada@example.com",
		Kind:      TokenKindAccess,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid claims, got %v", err)
	}

	tests := []struct {
		name   string
		claims TokenClaims
	}{
		{name: "missing subject", claims: TokenClaims{Kind: TokenKindAccess, ExpiresAt: valid.ExpiresAt}},
		{name: "blank subject", claims: TokenClaims{Subject: "   ", Kind: TokenKindAccess, ExpiresAt: valid.ExpiresAt}},
		{name: "missing kind", claims: TokenClaims{Subject: "ada@example.com", ExpiresAt: valid.ExpiresAt}},
		{name: "unknown kind", claims: TokenClaims{Subject: "ada@example.com", Kind: "session", ExpiresAt: valid.ExpiresAt}},
		{name: "missing expiry", claims: TokenClaims{Subject: "ada@example.com", Kind: TokenKindRefresh}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.claims.Validate(); !errors.Is(err, ErrMalformedClaims) {
				t.Fatalf("expected ErrMalformedClaims, got %v", err)
			}
		})
	}
}

func TestUserFirstName(t *testing.T) {
	tests := []struct {
		name string
		user User
		want string
	}{
		{name: "full name", user: User{Name: "Ada Lovelace", Email: "ada@example.com"}, want: "Ada"},
		{name: "single name", user: User{Name: "Ada", Email: "ada@example.com"}, want: "Ada"},
		{name: "falls back to email local part", user: User{Email: "ada@example.com"}, want: "ada"},
		{name: "whitespace name", user: User{Name: "   ", Email: "ada@example.com"}, want: "ada"},
		{name: "no at sign", user: User{Email: "ada"}, want: "ada"},
		{name: "empty", user: User{}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.FirstName(); got != tt.want {
				t.Fatalf("FirstName() = %q, want %q", got, tt.want)
			}
		})
	}
}
