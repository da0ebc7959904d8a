// Package command wraps the mutating account operations in go-command
// message and handler envelopes so they can sit behind a dispatcher.
package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-identity/account"
	"github.com/goliatone/go-identity/core"
)

type MutatingService interface {
	Register(ctx context.Context, req account.RegisterRequest) (core.User, error)
	VerifyEmail(ctx context.Context, email string, code string) error
	Login(ctx context.Context, email string, password string) (core.TokenPair, error)
	ChangePassword(ctx context.Context, user core.User, currentPassword string, newPassword string) error
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ConfirmPasswordReset(ctx context.Context, resetToken string, newPassword string) error
	Logout(ctx context.Context, tokenString string) error
	CleanExpiredBlacklistedTokens(ctx context.Context) error
	Initialize(ctx context.Context) error
}

type RegisterCommand struct {
	service MutatingService
}

func NewRegisterCommand(service MutatingService) *RegisterCommand {
	return &RegisterCommand{service: service}
}

func (c *RegisterCommand) Execute(ctx context.Context, msg RegisterMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: register service is required")
	}
	user, err := c.service.Register(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, user)
	return nil
}

type VerifyEmailCommand struct {
	service MutatingService
}

func NewVerifyEmailCommand(service MutatingService) *VerifyEmailCommand {
	return &VerifyEmailCommand{service: service}
}

func (c *VerifyEmailCommand) Execute(ctx context.Context, msg VerifyEmailMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: verify email service is required")
	}
	return c.service.VerifyEmail(ctx, msg.Email, msg.Code)
}

type LoginCommand struct {
	service MutatingService
}

func NewLoginCommand(service MutatingService) *LoginCommand {
	return &LoginCommand{service: service}
}

func (c *LoginCommand) Execute(ctx context.Context, msg LoginMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: login service is required")
	}
	pair, err := c.service.Login(ctx, msg.Email, msg.Password)
	if err != nil {
		return err
	}
	storeResult(ctx, pair)
	return nil
}

type ChangePasswordCommand struct {
	service MutatingService
}

func NewChangePasswordCommand(service MutatingService) *ChangePasswordCommand {
	return &ChangePasswordCommand{service: service}
}

func (c *ChangePasswordCommand) Execute(ctx context.Context, msg ChangePasswordMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: change password service is required")
	}
	return c.service.ChangePassword(ctx, msg.User, msg.CurrentPassword, msg.NewPassword)
}

type RequestPasswordResetCommand struct {
	service MutatingService
}

func NewRequestPasswordResetCommand(service MutatingService) *RequestPasswordResetCommand {
	return &RequestPasswordResetCommand{service: service}
}

func (c *RequestPasswordResetCommand) Execute(ctx context.Context, msg RequestPasswordResetMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: password reset service is required")
	}
	message, err := c.service.RequestPasswordReset(ctx, msg.Email)
	if err != nil {
		return err
	}
	storeResult(ctx, message)
	return nil
}

type ConfirmPasswordResetCommand struct {
	service MutatingService
}

func NewConfirmPasswordResetCommand(service MutatingService) *ConfirmPasswordResetCommand {
	return &ConfirmPasswordResetCommand{service: service}
}

func (c *ConfirmPasswordResetCommand) Execute(ctx context.Context, msg ConfirmPasswordResetMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: password reset service is required")
	}
	return c.service.ConfirmPasswordReset(ctx, msg.ResetToken, msg.NewPassword)
}

type LogoutCommand struct {
	service MutatingService
}

func NewLogoutCommand(service MutatingService) *LogoutCommand {
	return &LogoutCommand{service: service}
}

func (c *LogoutCommand) Execute(ctx context.Context, msg LogoutMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: logout service is required")
	}
	return c.service.Logout(ctx, msg.Token)
}

type CleanBlacklistCommand struct {
	service MutatingService
}

func NewCleanBlacklistCommand(service MutatingService) *CleanBlacklistCommand {
	return &CleanBlacklistCommand{service: service}
}

func (c *CleanBlacklistCommand) Execute(ctx context.Context, _ CleanBlacklistMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: blacklist service is required")
	}
	return c.service.CleanExpiredBlacklistedTokens(ctx)
}

type BootstrapCommand struct {
	service MutatingService
}

func NewBootstrapCommand(service MutatingService) *BootstrapCommand {
	return &BootstrapCommand{service: service}
}

func (c *BootstrapCommand) Execute(ctx context.Context, _ BootstrapMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: bootstrap service is required")
	}
	return c.service.Initialize(ctx)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
