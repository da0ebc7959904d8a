package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[RegisterMessage]             = (*RegisterCommand)(nil)
	_ gocmd.Commander[VerifyEmailMessage]          = (*VerifyEmailCommand)(nil)
	_ gocmd.Commander[LoginMessage]                = (*LoginCommand)(nil)
	_ gocmd.Commander[ChangePasswordMessage]       = (*ChangePasswordCommand)(nil)
	_ gocmd.Commander[RequestPasswordResetMessage] = (*RequestPasswordResetCommand)(nil)
	_ gocmd.Commander[ConfirmPasswordResetMessage] = (*ConfirmPasswordResetCommand)(nil)
	_ gocmd.Commander[LogoutMessage]               = (*LogoutCommand)(nil)
	_ gocmd.Commander[CleanBlacklistMessage]       = (*CleanBlacklistCommand)(nil)
	_ gocmd.Commander[BootstrapMessage]            = (*BootstrapCommand)(nil)
)
