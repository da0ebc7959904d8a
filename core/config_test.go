package core

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ServiceName != "identity" {
		t.Fatalf("unexpected service name %q", cfg.ServiceName)
	}
	if cfg.Tokens.AccessLifetimeMinutes != DefaultAccessTokenLifetimeMinutes {
		t.Fatalf("unexpected access lifetime %d", cfg.Tokens.AccessLifetimeMinutes)
	}
	if cfg.Tokens.RefreshLifetimeDays != DefaultRefreshTokenLifetimeDays {
		t.Fatalf("unexpected refresh lifetime %d", cfg.Tokens.RefreshLifetimeDays)
	}
	if cfg.RequireEmailVerification {
		t.Fatalf("expected verification to be opt-in")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestTokenConfigLifetimes(t *testing.T) {
	cfg := TokenConfig{AccessLifetimeMinutes: 90, RefreshLifetimeDays: 2}
	if got := cfg.AccessLifetime(); got != 90*time.Minute {
		t.Fatalf("access lifetime = %v", got)
	}
	if got := cfg.RefreshLifetime(); got != 48*time.Hour {
		t.Fatalf("refresh lifetime = %v", got)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing service name",
			mutate:  func(c *Config) { c.ServiceName = "  " },
			wantErr: "service_name",
		},
		{
			name:    "zero access lifetime",
			mutate:  func(c *Config) { c.Tokens.AccessLifetimeMinutes = 0 },
			wantErr: "access_lifetime_minutes",
		},
		{
			name:    "negative refresh lifetime",
			mutate:  func(c *Config) { c.Tokens.RefreshLifetimeDays = -1 },
			wantErr: "refresh_lifetime_days",
		},
		{
			name:    "admin email without password",
			mutate:  func(c *Config) { c.Admin.Email = "root@example.com" },
			wantErr: "admin.password",
		},
		{
			name: "admin with password",
			mutate: func(c *Config) {
				c.Admin.Email = "root@example.com"
				c.Admin.Password = "bootstrap-secret"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}
