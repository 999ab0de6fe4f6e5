package identity

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes carried by structured errors so boundaries can branch without
// string matching.
const (
	TextCodeTokenExpired          = "TOKEN_EXPIRED"
	TextCodeTokenMalformed        = "TOKEN_MALFORMED"
	TextCodeTokenSignature        = "TOKEN_SIGNATURE_INVALID"
	TextCodeTokenUnsupported      = "TOKEN_UNSUPPORTED"
	TextCodeTokenEmpty            = "TOKEN_EMPTY"
	TextCodeNoAuthorities         = "USER_HAS_NO_AUTHORITIES"
	TextCodeRefreshTokenExpired   = "REFRESH_TOKEN_EXPIRED"
	TextCodeRefreshTokenInvalid   = "REFRESH_TOKEN_INVALID"
	TextCodeInvalidVerification   = "INVALID_VERIFICATION_REQUEST"
	TextCodeUserNotFound          = "USER_NOT_FOUND"
	TextCodeUserDisabled          = "USER_DISABLED"
	TextCodeTooManyLoginAttempts  = "TOO_MANY_LOGIN_ATTEMPTS"
	TextCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	TextCodeDuplicateRegistration = "USER_ALREADY_EXISTS"
)

// ErrTokenExpired is returned when a parsed token is past its expiration.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned when the token string cannot be decoded.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenSignatureInvalid is returned when the signature check fails.
var ErrTokenSignatureInvalid = goerrors.New("token signature is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenSignature).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenUnsupported is returned for tokens signed with an unexpected
// method or otherwise unverifiable.
var ErrTokenUnsupported = goerrors.New("token is unsupported", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenUnsupported).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenEmpty is returned when an empty or blank token string is presented.
var ErrTokenEmpty = goerrors.New("token is empty", goerrors.CategoryBadInput).
	WithTextCode(TextCodeTokenEmpty).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoAuthorities is returned when access-token issuance is attempted for a
// user with zero authority grants. A user must never reach issuance in that
// state, so this signals misconfiguration rather than a default-empty claim.
var ErrNoAuthorities = goerrors.New("user has no authority roles", goerrors.CategoryAuth).
	WithTextCode(TextCodeNoAuthorities).
	WithCode(goerrors.CodeUnauthorized)

// ErrRefreshTokenExpired rejects a refresh call whose token expired.
var ErrRefreshTokenExpired = goerrors.New("Refresh token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeRefreshTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrRefreshTokenInvalid rejects a refresh call whose token is unparseable or
// does not carry the refresh scope. Access tokens replayed as refresh tokens
// land here.
var ErrRefreshTokenInvalid = goerrors.New("Refresh token is invalid or is not a refresh token", goerrors.CategoryAuth).
	WithTextCode(TextCodeRefreshTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidVerification is returned for any unusable verification hash:
// never issued, already consumed, expired, or pointing at the wrong email.
// The cases are deliberately indistinguishable so valid emails cannot be
// enumerated.
var ErrInvalidVerification = goerrors.New("Request is invalid", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidVerification).
	WithCode(goerrors.CodeBadRequest)

// ErrUserNotFound is returned for direct user lookups that miss.
var ErrUserNotFound = goerrors.New("user does not exist", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrUserDisabled blocks authentication for disabled accounts.
var ErrUserDisabled = goerrors.New("user account is disabled", goerrors.CategoryAuth).
	WithTextCode(TextCodeUserDisabled).
	WithCode(goerrors.CodeUnauthorized)

// ErrMismatchedHashAndPassword is the generic credential failure.
var ErrMismatchedHashAndPassword = goerrors.New("invalid identifier or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrTooManyLoginAttempts is returned while the cool-down window is active.
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryAuth).
	WithTextCode(TextCodeTooManyLoginAttempts).
	WithCode(goerrors.CodeUnauthorized)

// ErrUserAlreadyExists is returned when a registration collides with an
// existing username or email.
var ErrUserAlreadyExists = goerrors.New("user name or email already exist", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateRegistration).
	WithCode(goerrors.CodeConflict)

// ErrNoEmptyString is returned when hashing an empty password.
var ErrNoEmptyString = goerrors.New("value must not be an empty string", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest)

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return hasTextCode(err, TextCodeTokenExpired) ||
		strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for undecodable tokens
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return hasTextCode(err, TextCodeTokenMalformed) ||
		strings.Contains(err.Error(), "token is malformed")
}

// IsInvalidVerificationError will check for unusable verification hashes
func IsInvalidVerificationError(err error) bool {
	return hasTextCode(err, TextCodeInvalidVerification)
}

// IsUserNotFoundError reports whether the error is a user lookup miss,
// either ours or the repository layer's.
func IsUserNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	return hasTextCode(err, TextCodeUserNotFound) || goerrors.IsNotFound(err)
}
