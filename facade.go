package identity

import (
	"fmt"

	identitycommand "github.com/goliatone/go-identity/command"
)

// Commands groups the go-command handlers for every mutating account
// operation, ready to register with a dispatcher.
type Commands struct {
	Register             *identitycommand.RegisterCommand
	VerifyEmail          *identitycommand.VerifyEmailCommand
	Login                *identitycommand.LoginCommand
	ChangePassword       *identitycommand.ChangePasswordCommand
	RequestPasswordReset *identitycommand.RequestPasswordResetCommand
	ConfirmPasswordReset *identitycommand.ConfirmPasswordResetCommand
	Logout               *identitycommand.LogoutCommand
	CleanBlacklist       *identitycommand.CleanBlacklistCommand
	Bootstrap            *identitycommand.BootstrapCommand
}

type Facade struct {
	service  identitycommand.MutatingService
	commands Commands
}

func NewFacade(service identitycommand.MutatingService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("identity: mutating service is required")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		Register:             identitycommand.NewRegisterCommand(service),
		VerifyEmail:          identitycommand.NewVerifyEmailCommand(service),
		Login:                identitycommand.NewLoginCommand(service),
		ChangePassword:       identitycommand.NewChangePasswordCommand(service),
		RequestPasswordReset: identitycommand.NewRequestPasswordResetCommand(service),
		ConfirmPasswordReset: identitycommand.NewConfirmPasswordResetCommand(service),
		Logout:               identitycommand.NewLogoutCommand(service),
		CleanBlacklist:       identitycommand.NewCleanBlacklistCommand(service),
		Bootstrap:            identitycommand.NewBootstrapCommand(service),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Service() identitycommand.MutatingService {
	if f == nil {
		return nil
	}
	return f.service
}
