package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-identity/account"
	"github.com/goliatone/go-identity/core"
)

const (
	TypeRegister             = "identity.command.register"
	TypeVerifyEmail          = "identity.command.verify_email"
	TypeLogin                = "identity.command.login"
	TypeChangePassword       = "identity.command.password.change"
	TypeRequestPasswordReset = "identity.command.password.reset.request"
	TypeConfirmPasswordReset = "identity.command.password.reset.confirm"
	TypeLogout               = "identity.command.logout"
	TypeCleanBlacklist       = "identity.command.blacklist.clean"
	TypeBootstrap            = "identity.command.bootstrap"
)

type RegisterMessage struct {
	Request account.RegisterRequest
}

func (RegisterMessage) Type() string { return TypeRegister }

func (m RegisterMessage) Validate() error {
	if strings.TrimSpace(m.Request.Email) == "" {
		return fmt.Errorf("command: email is required")
	}
	if m.Request.Password == "" {
		return fmt.Errorf("command: password is required")
	}
	return nil
}

type VerifyEmailMessage struct {
	Email string
	Code  string
}

func (VerifyEmailMessage) Type() string { return TypeVerifyEmail }

func (m VerifyEmailMessage) Validate() error {
	if strings.TrimSpace(m.Email) == "" {
		return fmt.Errorf("command: email is required")
	}
	if strings.TrimSpace(m.Code) == "" {
		return fmt.Errorf("command: verification code is required")
	}
	return nil
}

type LoginMessage struct {
	Email    string
	Password string
}

func (LoginMessage) Type() string { return TypeLogin }

func (m LoginMessage) Validate() error {
	if strings.TrimSpace(m.Email) == "" {
		return fmt.Errorf("command: email is required")
	}
	if m.Password == "" {
		return fmt.Errorf("command: password is required")
	}
	return nil
}

type ChangePasswordMessage struct {
	User            core.User
	CurrentPassword string
	NewPassword     string
}

func (ChangePasswordMessage) Type() string { return TypeChangePassword }

func (m ChangePasswordMessage) Validate() error {
	if strings.TrimSpace(m.User.ID) == "" {
		return fmt.Errorf("command: user id is required")
	}
	if m.CurrentPassword == "" {
		return fmt.Errorf("command: current password is required")
	}
	if m.NewPassword == "" {
		return fmt.Errorf("command: new password is required")
	}
	return nil
}

type RequestPasswordResetMessage struct {
	Email string
}

func (RequestPasswordResetMessage) Type() string { return TypeRequestPasswordReset }

func (m RequestPasswordResetMessage) Validate() error {
	if strings.TrimSpace(m.Email) == "" {
		return fmt.Errorf("command: email is required")
	}
	return nil
}

type ConfirmPasswordResetMessage struct {
	ResetToken  string
	NewPassword string
}

func (ConfirmPasswordResetMessage) Type() string { return TypeConfirmPasswordReset }

func (m ConfirmPasswordResetMessage) Validate() error {
	if strings.TrimSpace(m.ResetToken) == "" {
		return fmt.Errorf("command: reset token is required")
	}
	if m.NewPassword == "" {
		return fmt.Errorf("command: new password is required")
	}
	return nil
}

type LogoutMessage struct {
	Token string
}

func (LogoutMessage) Type() string { return TypeLogout }

func (m LogoutMessage) Validate() error {
	if strings.TrimSpace(m.Token) == "" {
		return fmt.Errorf("command: token is required")
	}
	return nil
}

// CleanBlacklistMessage has no payload; the sweep uses the service clock.
type CleanBlacklistMessage struct{}

func (CleanBlacklistMessage) Type() string { return TypeCleanBlacklist }

func (CleanBlacklistMessage) Validate() error { return nil }

// BootstrapMessage seeds the configured admin account. It carries no payload
// because the admin identity comes from configuration, not the caller.
type BootstrapMessage struct{}

func (BootstrapMessage) Type() string { return TypeBootstrap }

func (BootstrapMessage) Validate() error { return nil }
