package identity_test

import (
	"context"
	"testing"
	"time"

	identity "github.com/tradejournal/go-identity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trackedUser(t *testing.T, password string) *identity.User {
	t.Helper()

	hash, err := identity.HashPassword(password)
	require.NoError(t, err)

	user := testUser(identity.RoleUser)
	user.PasswordHash = hash
	return user
}

func TestUserProviderVerifyCredentials(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the principal on a correct password", func(t *testing.T) {
		user := trackedUser(t, "Sup3r$ecret!")
		tracker := newMemUserTracker(user)
		provider := identity.NewUserProvider(tracker).WithLogger(testLogger{})

		found, err := provider.VerifyCredentials(ctx, "pepe", "Sup3r$ecret!")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
		assert.Equal(t, 1, tracker.succeeded)
	})

	t.Run("lookup miss and wrong password are indistinguishable", func(t *testing.T) {
		user := trackedUser(t, "Sup3r$ecret!")
		tracker := newMemUserTracker(user)
		provider := identity.NewUserProvider(tracker).WithLogger(testLogger{})

		_, missErr := provider.VerifyCredentials(ctx, "nobody", "whatever")
		_, wrongErr := provider.VerifyCredentials(ctx, "pepe", "wrong-password")

		assert.ErrorIs(t, missErr, identity.ErrMismatchedHashAndPassword)
		assert.ErrorIs(t, wrongErr, identity.ErrMismatchedHashAndPassword)
	})

	t.Run("wrong password tracks the attempt", func(t *testing.T) {
		user := trackedUser(t, "Sup3r$ecret!")
		tracker := newMemUserTracker(user)
		provider := identity.NewUserProvider(tracker).WithLogger(testLogger{})

		_, err := provider.VerifyCredentials(ctx, "pepe", "wrong-password")
		assert.Error(t, err)
		assert.Equal(t, 1, tracker.attempted)
		assert.Equal(t, 1, user.LoginAttempts)
	})

	t.Run("rejects disabled accounts", func(t *testing.T) {
		user := trackedUser(t, "Sup3r$ecret!")
		user.Enabled = false
		tracker := newMemUserTracker(user)
		provider := identity.NewUserProvider(tracker).WithLogger(testLogger{})

		_, err := provider.VerifyCredentials(ctx, "pepe", "Sup3r$ecret!")
		assert.ErrorIs(t, err, identity.ErrUserDisabled)
	})

	t.Run("rejects after too many attempts inside the window", func(t *testing.T) {
		user := trackedUser(t, "Sup3r$ecret!")
		user.LoginAttempts = identity.MaxLoginAttempts + 1
		now := time.Now()
		user.LoginAttemptAt = &now

		tracker := newMemUserTracker(user)
		provider := identity.NewUserProvider(tracker).WithLogger(testLogger{})

		_, err := provider.VerifyCredentials(ctx, "pepe", "Sup3r$ecret!")
		assert.Equal(t, identity.ErrTooManyLoginAttempts, err)
	})

	t.Run("cool down expiry resets the attempt counter", func(t *testing.T) {
		user := trackedUser(t, "Sup3r$ecret!")
		user.LoginAttempts = identity.MaxLoginAttempts + 1
		stale := time.Now().Add(-48 * time.Hour)
		user.LoginAttemptAt = &stale

		tracker := newMemUserTracker(user)
		provider := identity.NewUserProvider(tracker).WithLogger(testLogger{})

		found, err := provider.VerifyCredentials(ctx, "pepe", "Sup3r$ecret!")
		require.NoError(t, err)
		assert.Equal(t, 0, found.LoginAttempts)
	})
}
