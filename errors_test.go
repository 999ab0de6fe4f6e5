package identity_test

import (
	"errors"
	"testing"

	identity "github.com/tradejournal/go-identity"

	"github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/assert"
)

func TestIsTokenExpiredError(t *testing.T) {
	assert.True(t, identity.IsTokenExpiredError(identity.ErrTokenExpired))
	assert.True(t, identity.IsTokenExpiredError(errors.New("token is expired")))
	assert.False(t, identity.IsTokenExpiredError(identity.ErrTokenMalformed))
	assert.False(t, identity.IsTokenExpiredError(nil))
}

func TestIsMalformedError(t *testing.T) {
	assert.True(t, identity.IsMalformedError(identity.ErrTokenMalformed))
	assert.False(t, identity.IsMalformedError(identity.ErrTokenExpired))
	assert.False(t, identity.IsMalformedError(nil))
}

func TestIsInvalidVerificationError(t *testing.T) {
	assert.True(t, identity.IsInvalidVerificationError(identity.ErrInvalidVerification))
	assert.False(t, identity.IsInvalidVerificationError(errors.New("some other error")))
	assert.False(t, identity.IsInvalidVerificationError(nil))
}

func TestIsUserNotFoundError(t *testing.T) {
	assert.True(t, identity.IsUserNotFoundError(identity.ErrUserNotFound))
	assert.True(t, identity.IsUserNotFoundError(repository.NewRecordNotFound()))
	assert.False(t, identity.IsUserNotFoundError(identity.ErrUserDisabled))
	assert.False(t, identity.IsUserNotFoundError(nil))
}

func TestRefreshRejectionMessages(t *testing.T) {
	assert.Contains(t, identity.ErrRefreshTokenExpired.Error(), "Refresh token is expired")
	assert.Contains(t, identity.ErrRefreshTokenInvalid.Error(), "Refresh token is invalid or is not a refresh token")
	assert.Contains(t, identity.ErrInvalidVerification.Error(), "Request is invalid")
}
