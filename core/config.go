package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultAccessTokenLifetimeMinutes = 3600
	DefaultRefreshTokenLifetimeDays   = 7
)

type TokenConfig struct {
	AccessLifetimeMinutes int `koanf:"access_lifetime_minutes" mapstructure:"access_lifetime_minutes"`
	RefreshLifetimeDays   int `koanf:"refresh_lifetime_days" mapstructure:"refresh_lifetime_days"`
}

func (c TokenConfig) AccessLifetime() time.Duration {
	return time.Duration(c.AccessLifetimeMinutes) * time.Minute
}

func (c TokenConfig) RefreshLifetime() time.Duration {
	return time.Duration(c.RefreshLifetimeDays) * 24 * time.Hour
}

// AdminConfig seeds a superuser at startup when Email is set. Used once by
// account.Service.Initialize; an existing account is not an error.
type AdminConfig struct {
	Email    string `koanf:"email" mapstructure:"email"`
	Password string `koanf:"password" mapstructure:"password"`
}

type Config struct {
	ServiceName              string      `koanf:"service_name" mapstructure:"service_name"`
	Tokens                   TokenConfig `koanf:"tokens" mapstructure:"tokens"`
	RequireEmailVerification bool        `koanf:"require_email_verification" mapstructure:"require_email_verification"`
	Admin                    AdminConfig `koanf:"admin" mapstructure:"admin"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "identity",
		Tokens: TokenConfig{
			AccessLifetimeMinutes: DefaultAccessTokenLifetimeMinutes,
			RefreshLifetimeDays:   DefaultRefreshTokenLifetimeDays,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Tokens.AccessLifetimeMinutes <= 0 {
		return fmt.Errorf("core: tokens.access_lifetime_minutes must be positive")
	}
	if c.Tokens.RefreshLifetimeDays <= 0 {
		return fmt.Errorf("core: tokens.refresh_lifetime_days must be positive")
	}
	if strings.TrimSpace(c.Admin.Email) != "" && strings.TrimSpace(c.Admin.Password) == "" {
		return fmt.Errorf("core: admin.password is required when admin.email is set")
	}
	return nil
}
