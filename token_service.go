package identity

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	key          SigningKey
	accessTTL    time.Duration
	refreshTTL   time.Duration
	temporaryTTL time.Duration
	issuer       string
	audience     jwt.ClaimStrings
	logger       Logger
	now          func() time.Time
}

// TokenServiceOption customizes token service construction.
type TokenServiceOption func(*TokenServiceImpl)

// WithTokenClock injects a custom clock (useful for tests).
func WithTokenClock(clock func() time.Time) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if clock != nil {
			ts.now = clock
		}
	}
}

// WithTokenLogger overrides the logger used by the token service.
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// NewTokenService creates a TokenService signing with the given key and the
// TTLs, issuer, and audience from opts.
func NewTokenService(key SigningKey, opts Config, options ...TokenServiceOption) *TokenServiceImpl {
	ts := &TokenServiceImpl{
		key:          key,
		accessTTL:    time.Duration(opts.GetAccessTokenExpiration()) * time.Second,
		refreshTTL:   time.Duration(opts.GetRefreshTokenExpiration()) * time.Second,
		temporaryTTL: time.Duration(opts.GetTemporaryTokenExpiration()) * time.Second,
		issuer:       opts.GetIssuer(),
		audience:     opts.GetAudience(),
		logger:       defLogger{},
		now:          time.Now,
	}

	for _, opt := range options {
		if opt != nil {
			opt(ts)
		}
	}

	return ts
}

var _ TokenService = (*TokenServiceImpl)(nil)

// IssueAccessToken mints an access token carrying the user's authority names
// and tenancy. A user with zero grants cannot be issued an access token.
func (ts *TokenServiceImpl) IssueAccessToken(user *User) (*TokenData, error) {
	if user == nil {
		return nil, goerrors.New("user must not be nil", goerrors.CategoryBadInput)
	}

	authorities := user.AuthorityNames()
	if len(authorities) == 0 {
		return nil, ErrNoAuthorities.Clone().WithMetadata(map[string]any{
			"user_id": user.ID.String(),
		})
	}

	claims := ts.newClaims(user.Username, ts.accessTTL)
	claims.Authorities = authorities
	claims.Tenancy = tenancyClaim(user)
	claims.Scopes = []string{ScopeAccess}

	return ts.signClaims(claims)
}

// IssueRefreshToken mints a refresh token: refresh scope, no authorities,
// longer TTL.
func (ts *TokenServiceImpl) IssueRefreshToken(user *User) (*TokenData, error) {
	if user == nil {
		return nil, goerrors.New("user must not be nil", goerrors.CategoryBadInput)
	}

	claims := ts.newClaims(user.Username, ts.refreshTTL)
	claims.Tenancy = tenancyClaim(user)
	claims.Scopes = []string{ScopeRefresh}

	return ts.signClaims(claims)
}

// IssueTemporaryToken mints a short-lived token with no authority claims.
// The verification handshake uses it as the basis of its hashes; the subject
// is usually an email address.
func (ts *TokenServiceImpl) IssueTemporaryToken(subject string) (*TokenData, error) {
	if subject == "" {
		return nil, goerrors.New("subject must not be empty", goerrors.CategoryBadInput)
	}

	claims := ts.newClaims(subject, ts.temporaryTTL)

	return ts.signClaims(claims)
}

// Parse validates the token string and returns its claims, surfacing typed
// errors so boundaries can distinguish expiry from forgery.
func (ts *TokenServiceImpl) Parse(tokenString string) (*AccessClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrTokenEmpty
	}

	parserOptions := make([]jwt.ParserOption, 0, 3)
	parserOptions = append(parserOptions, jwt.WithTimeFunc(ts.now))
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService parse encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.key.Bytes(), nil
	}, parserOptions...)

	if err != nil {
		return nil, classifyParseError(err)
	}

	if claims, ok := token.Claims.(*AccessClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService parse could not decode or validate claims")
	return nil, ErrTokenMalformed
}

// IsValid reports whether the token parses and expires strictly in the
// future. Any parse failure yields false without surfacing an error.
func (ts *TokenServiceImpl) IsValid(tokenString string) bool {
	claims, err := ts.Parse(tokenString)
	if err != nil {
		return false
	}
	return claims.Expires().After(ts.now())
}

// ReadAuthorities returns the authority names from a successfully parsed
// token.
func (ts *TokenServiceImpl) ReadAuthorities(tokenString string) ([]string, error) {
	claims, err := ts.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	return claims.Authorities, nil
}

func (ts *TokenServiceImpl) newClaims(subject string, ttl time.Duration) *AccessClaims {
	now := ts.now()

	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	return &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   subject,
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

func (ts *TokenServiceImpl) signClaims(claims *AccessClaims) (*TokenData, error) {
	if claims == nil {
		return nil, goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.key.Bytes())
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return &TokenData{
		Token:     signedString,
		IssuedAt:  claims.IssuedTime(),
		ExpiresIn: int64(claims.Expires().Sub(claims.IssuedTime()).Seconds()),
	}, nil
}

func classifyParseError(err error) error {
	switch {
	case goerrors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case goerrors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrTokenSignatureInvalid
	case goerrors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	case goerrors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenUnsupported
	}
	return goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
		WithTextCode(ErrTokenMalformed.TextCode)
}

func tenancyClaim(user *User) string {
	if user == nil || user.TenancyID == nil {
		return ""
	}
	return strconv.FormatInt(*user.TenancyID, 10)
}
