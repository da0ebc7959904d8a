package crypto

import "github.com/goliatone/go-identity/core"

var _ core.CredentialCipher = (*Cipher)(nil)
