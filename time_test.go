package identity_test

import (
	"testing"
	"time"

	identity "github.com/tradejournal/go-identity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsWithinThresholdPeriod(t *testing.T) {
	t.Run("recent time is within the window", func(t *testing.T) {
		within, err := identity.IsWithinThresholdPeriod(time.Now().Add(-time.Hour), "24h")
		require.NoError(t, err)
		assert.True(t, within)
	})

	t.Run("old time is outside the window", func(t *testing.T) {
		within, err := identity.IsWithinThresholdPeriod(time.Now().Add(-48*time.Hour), "24h")
		require.NoError(t, err)
		assert.False(t, within)
	})

	t.Run("bad pattern errors", func(t *testing.T) {
		_, err := identity.IsWithinThresholdPeriod(time.Now(), "not-a-duration")
		assert.Error(t, err)
	})
}

func TestIsOutsideThresholdPeriod(t *testing.T) {
	outside, err := identity.IsOutsideThresholdPeriod(time.Now().Add(-48*time.Hour), "24h")
	require.NoError(t, err)
	assert.True(t, outside)

	outside, err = identity.IsOutsideThresholdPeriod(time.Now(), "24h")
	require.NoError(t, err)
	assert.False(t, outside)
}
