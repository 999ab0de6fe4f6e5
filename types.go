package identity

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds identity options. The embedding application implements this;
// services copy values out at construction and never re-read it.
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	// GetAccessTokenExpiration is the access token TTL in seconds.
	GetAccessTokenExpiration() int
	// GetRefreshTokenExpiration is the refresh token TTL in seconds. It must
	// exceed the access token TTL.
	GetRefreshTokenExpiration() int
	// GetTemporaryTokenExpiration is the verification-hash TTL in seconds.
	GetTemporaryTokenExpiration() int
	// GetVerificationEnabled toggles the email verification handshake for
	// registration-style flows.
	GetVerificationEnabled() bool
	GetFrontendBaseURL() string
	GetVerificationPagePath() string
	GetChangePasswordPagePath() string
	GetAdminEmail() string
}

// TokenData is a minted token plus its issuance metadata
type TokenData struct {
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresIn int64     `json:"expires_in"`
}

// TokenService mints and validates signed bearer tokens
type TokenService interface {
	IssueAccessToken(user *User) (*TokenData, error)
	IssueRefreshToken(user *User) (*TokenData, error)
	IssueTemporaryToken(subject string) (*TokenData, error)
	// Parse validates signature and expiration, returning typed errors.
	Parse(tokenString string) (*AccessClaims, error)
	// IsValid is the lenient probe: true iff Parse succeeds and the token
	// expires strictly in the future. Never returns an error.
	IsValid(tokenString string) bool
	ReadAuthorities(tokenString string) ([]string, error)
}

// Authenticator composes credential verification, token issuance, and
// refresh into the sign-in use cases.
type Authenticator interface {
	SignIn(ctx context.Context, identifier, password string) (*LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*LoginResponse, error)
}

// LoginResponse is the access/refresh pair returned to callers
type LoginResponse struct {
	TokenType    string `json:"type"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IssuedAt     int64  `json:"issued_at,omitempty"`
}

// CredentialProvider verifies an identifier/secret pair against the backing
// credential store and returns the matching principal.
type CredentialProvider interface {
	VerifyCredentials(ctx context.Context, identifier, password string) (*User, error)
}

// UserSource resolves principals by a flexible identifier (id, email, or
// username), with authority grants loaded.
type UserSource interface {
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
}

// VerificationNotice is the rendered context handed to the notifier
type VerificationNotice struct {
	Type          VerificationType `json:"type"`
	RecipientName string           `json:"recipient_name"`
	Email         string           `json:"email"`
	Hash          string           `json:"hash"`
	TargetURL     string           `json:"target_url"`
}

// Notifier delivers verification notices out-of-band. Delivery is
// fire-and-forget from the core's perspective; failures are logged, not
// retried.
type Notifier interface {
	Send(ctx context.Context, notice VerificationNotice) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] IDENTITY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] IDENTITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] IDENTITY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] IDENTITY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
