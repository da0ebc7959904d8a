package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

var (
	// ErrInvalidCredentials is the deliberately uninformative failure for
	// enumeration-sensitive paths: bad password, unknown account at login,
	// or a bearer string that resolves through neither token nor API key.
	ErrInvalidCredentials = errors.New("core: invalid credentials")

	ErrTokenRevoked    = errors.New("core: token has been revoked")
	ErrTokenInvalid    = errors.New("core: invalid token")
	ErrTokenExpired    = errors.New("core: token has expired")
	ErrMalformedClaims = errors.New("core: invalid token claims")
	ErrWrongTokenType  = errors.New("core: wrong token type")

	ErrAPIKeyInvalidFormat = errors.New("core: invalid api key format")
	// ErrAPIKeyInvalid covers both "no such key" and "secret mismatch" so
	// the two are indistinguishable to the caller.
	ErrAPIKeyInvalid  = errors.New("core: invalid api key")
	ErrAPIKeyNotFound = errors.New("core: api key not found")

	ErrInactiveAccount  = errors.New("core: account is inactive")
	ErrEmailNotVerified = errors.New("core: email not verified")

	ErrInvalidVerificationCode = errors.New("core: invalid verification code")
	ErrInvalidResetToken       = errors.New("core: invalid or expired reset token")
	ErrWrongPassword           = errors.New("core: incorrect current password")

	ErrAlreadyExists = errors.New("core: account already exists")
	ErrUserNotFound  = errors.New("core: user not found")

	// ErrCredentialIntegrity marks a stored credential that is not a valid
	// hash. This is an internal fault, never surfaced as a user error.
	ErrCredentialIntegrity = errors.New("core: stored credential is not a valid hash")
)

const (
	ErrorCodeInvalidCredentials  = "AUTH_INVALID_CREDENTIALS"
	ErrorCodeTokenRevoked        = "AUTH_TOKEN_REVOKED"
	ErrorCodeTokenInvalid        = "AUTH_TOKEN_INVALID"
	ErrorCodeTokenExpired        = "AUTH_TOKEN_EXPIRED"
	ErrorCodeMalformedClaims     = "AUTH_MALFORMED_CLAIMS"
	ErrorCodeWrongTokenType      = "AUTH_WRONG_TOKEN_TYPE"
	ErrorCodeKeyInvalidFormat    = "AUTH_KEY_INVALID_FORMAT"
	ErrorCodeKeyInvalid          = "AUTH_KEY_INVALID"
	ErrorCodeAccountInactive     = "AUTH_ACCOUNT_INACTIVE"
	ErrorCodeEmailNotVerified    = "AUTH_EMAIL_NOT_VERIFIED"
	ErrorCodeCodeInvalid         = "AUTH_CODE_INVALID"
	ErrorCodeResetTokenInvalid   = "AUTH_RESET_TOKEN_INVALID"
	ErrorCodeWrongPassword       = "AUTH_WRONG_PASSWORD"
	ErrorCodeAlreadyExists       = "AUTH_ALREADY_EXISTS"
	ErrorCodeNotFound            = "AUTH_NOT_FOUND"
	ErrorCodeCredentialIntegrity = "AUTH_CREDENTIAL_INTEGRITY"
	ErrorCodeBadInput            = "AUTH_BAD_INPUT"
	ErrorCodeInternal            = "AUTH_INTERNAL_ERROR"
)

// IdentityErrorMapper folds any error into the go-errors envelope used at
// the module boundary, assigning the category and text code for the
// sentinel it wraps.
func IdentityErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureIdentityErrorEnvelope(richErr)
	}

	for _, mapping := range sentinelMappings {
		if errors.Is(err, mapping.sentinel) {
			return newIdentityError(err.Error(), mapping.category, mapping.textCode)
		}
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureIdentityErrorEnvelope(mapped)
}

type sentinelMapping struct {
	sentinel error
	category goerrors.Category
	textCode string
}

// Order matters where sentinels wrap each other; the most specific entry
// must come first.
var sentinelMappings = []sentinelMapping{
	{ErrTokenRevoked, goerrors.CategoryAuth, ErrorCodeTokenRevoked},
	{ErrTokenExpired, goerrors.CategoryAuth, ErrorCodeTokenExpired},
	{ErrMalformedClaims, goerrors.CategoryAuth, ErrorCodeMalformedClaims},
	{ErrWrongTokenType, goerrors.CategoryAuth, ErrorCodeWrongTokenType},
	{ErrTokenInvalid, goerrors.CategoryAuth, ErrorCodeTokenInvalid},
	{ErrAPIKeyInvalidFormat, goerrors.CategoryAuth, ErrorCodeKeyInvalidFormat},
	{ErrAPIKeyInvalid, goerrors.CategoryAuth, ErrorCodeKeyInvalid},
	{ErrAPIKeyNotFound, goerrors.CategoryNotFound, ErrorCodeNotFound},
	{ErrInactiveAccount, goerrors.CategoryAuth, ErrorCodeAccountInactive},
	{ErrEmailNotVerified, goerrors.CategoryAuth, ErrorCodeEmailNotVerified},
	{ErrInvalidVerificationCode, goerrors.CategoryBadInput, ErrorCodeCodeInvalid},
	{ErrInvalidResetToken, goerrors.CategoryBadInput, ErrorCodeResetTokenInvalid},
	{ErrWrongPassword, goerrors.CategoryBadInput, ErrorCodeWrongPassword},
	{ErrAlreadyExists, goerrors.CategoryConflict, ErrorCodeAlreadyExists},
	{ErrUserNotFound, goerrors.CategoryNotFound, ErrorCodeNotFound},
	{ErrCredentialIntegrity, goerrors.CategoryInternal, ErrorCodeCredentialIntegrity},
	{ErrInvalidCredentials, goerrors.CategoryAuth, ErrorCodeInvalidCredentials},
}

func newIdentityError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureIdentityErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureIdentityErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = identityHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultIdentityTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultIdentityTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorCodeBadInput
	case goerrors.CategoryNotFound:
		return ErrorCodeNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorCodeInvalidCredentials
	case goerrors.CategoryConflict:
		return ErrorCodeAlreadyExists
	default:
		return ErrorCodeInternal
	}
}

func identityHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
