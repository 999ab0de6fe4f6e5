package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// TokenTypeBearer is the token type reported in login responses.
const TokenTypeBearer = "Bearer"

// Auther orchestrates sign-in and refresh over the credential provider, the
// user store, and the token engine.
type Auther struct {
	credentials CredentialProvider
	users       UserSource
	tokens      TokenService
	logger      Logger
	activity    ActivitySink
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(credentials CredentialProvider, users UserSource, tokens TokenService) *Auther {
	return &Auther{
		credentials: credentials,
		users:       users,
		tokens:      tokens,
		logger:      defLogger{},
		activity:    noopActivitySink{},
	}
}

// WithLogger overrides the logger.
func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activity = normalizeActivitySink(sink)
	return s
}

var _ Authenticator = (*Auther)(nil)

// SignIn verifies the credentials and issues an access/refresh pair.
// Credential failures are surfaced unchanged; retry and backoff belong to
// the credential store, not here.
func (s *Auther) SignIn(ctx context.Context, identifier, password string) (*LoginResponse, error) {
	user, err := s.credentials.VerifyCredentials(ctx, identifier, password)
	if err != nil {
		s.logger.Error("SignIn credential verification error", "error", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return nil, err
	}

	access, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		s.logger.Error("SignIn access token issuance error", "error", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFromUser(user), user.ID.String(), map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return nil, err
	}

	refresh, err := s.tokens.IssueRefreshToken(user)
	if err != nil {
		s.logger.Error("SignIn refresh token issuance error", "error", err)
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, s.actorFromUser(user), user.ID.String(), map[string]any{
		"identifier": identifier,
	})

	return &LoginResponse{
		TokenType:    TokenTypeBearer,
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		IssuedAt:     access.IssuedAt.Unix(),
	}, nil
}

// Refresh validates a refresh token and issues a fresh access token paired
// with the original, unmodified refresh token. Refresh tokens are not
// rotated on use; the returned refresh string equals the input byte for
// byte.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (*LoginResponse, error) {
	if !s.tokens.IsValid(refreshToken) {
		rejection := ErrRefreshTokenInvalid
		if _, err := s.tokens.Parse(refreshToken); IsTokenExpiredError(err) {
			rejection = ErrRefreshTokenExpired
		}
		s.emitAuthEvent(ctx, ActivityEventRefreshRejected, ActorRef{Type: "unknown"}, "", map[string]any{
			"reason": rejection.Error(),
		})
		return nil, rejection
	}

	claims, err := s.tokens.Parse(refreshToken)
	if err != nil {
		// the probe raced expiration between checks, reject the same way
		return nil, ErrRefreshTokenInvalid
	}

	// access tokens replayed as refresh tokens are rejected here
	if !claims.IsRefresh() {
		s.emitAuthEvent(ctx, ActivityEventRefreshRejected, ActorRef{Type: "unknown"}, "", map[string]any{
			"subject": claims.Username(),
			"reason":  "missing refresh scope",
		})
		return nil, ErrRefreshTokenInvalid
	}

	user, err := s.users.GetByIdentifier(ctx, claims.Username())
	if err != nil {
		if goerrors.IsNotFound(err) {
			// typed as not-found for programmatic callers, unauthorized
			// at the boundary so subject existence does not leak
			return nil, ErrUserNotFound.Clone().
				WithCode(goerrors.CodeUnauthorized).
				WithMetadata(map[string]any{"subject": claims.Username()})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve refresh subject")
	}

	access, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		s.logger.Error("Refresh access token issuance error", "error", err)
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventTokenRefreshed, s.actorFromUser(user), user.ID.String(), nil)

	return &LoginResponse{
		TokenType:    TokenTypeBearer,
		AccessToken:  access.Token,
		RefreshToken: refreshToken,
		IssuedAt:     access.IssuedAt.Unix(),
	}, nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := normalizeActivitySink(s.activity).Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

func (s *Auther) actorFromUser(user *User) ActorRef {
	if user == nil {
		return ActorRef{Type: "unknown"}
	}

	return ActorRef{
		ID:   user.ID.String(),
		Type: "user",
	}
}
