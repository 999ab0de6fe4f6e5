package identity_test

import (
	"context"
	"strings"
	"testing"

	identity "github.com/tradejournal/go-identity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newVerificationFixture(t *testing.T, cfg *testConfig) (*identity.VerificationServiceImpl, *memVerificationStore, *memUserReader, *identity.User) {
	t.Helper()

	if cfg == nil {
		cfg = newTestConfig()
	}

	user := testUser(identity.RoleUser)
	store := newMemVerificationStore()
	users := &memUserReader{users: map[string]*identity.User{user.Email: user}}
	hashes := identity.NewHashProvider(newTestTokenService(t, cfg))

	service := identity.NewVerificationService(store, users, hashes, cfg,
		identity.WithVerificationLogger(testLogger{}),
	)

	return service, store, users, user
}

func TestVerificationSend(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a single pending record", func(t *testing.T) {
		service, store, _, user := newVerificationFixture(t, nil)

		require.NoError(t, service.Send(ctx, identity.VerificationRegistration, user))
		assert.Equal(t, 1, store.count())

		record, err := store.GetByTypeAndEmail(ctx, identity.VerificationRegistration, user.Email)
		require.NoError(t, err)
		assert.Equal(t, identity.VerificationPending, record.Status)
		assert.NotEmpty(t, record.Hash)
		assert.NotNil(t, record.LastChange)
	})

	t.Run("second send renews the hash in place", func(t *testing.T) {
		service, store, _, user := newVerificationFixture(t, nil)

		require.NoError(t, service.Send(ctx, identity.VerificationRegistration, user))
		first, err := store.GetByTypeAndEmail(ctx, identity.VerificationRegistration, user.Email)
		require.NoError(t, err)
		firstHash := first.Hash

		require.NoError(t, service.Send(ctx, identity.VerificationRegistration, user))
		assert.Equal(t, 1, store.count())

		second, err := store.GetByTypeAndEmail(ctx, identity.VerificationRegistration, user.Email)
		require.NoError(t, err)
		assert.NotEqual(t, firstHash, second.Hash)
	})

	t.Run("hands the rendered notice to the notifier", func(t *testing.T) {
		cfg := newTestConfig()
		user := testUser(identity.RoleUser)
		user.FirstName = "Pepe"
		user.LastName = "Rone"

		store := newMemVerificationStore()
		users := &memUserReader{users: map[string]*identity.User{user.Email: user}}
		hashes := identity.NewHashProvider(newTestTokenService(t, cfg))

		notifier := &MockNotifier{}
		notifier.On("Send", mock.Anything, mock.MatchedBy(func(notice identity.VerificationNotice) bool {
			return notice.Email == user.Email &&
				notice.RecipientName == "Pepe Rone" &&
				notice.Hash != "" &&
				notice.Type == identity.VerificationRegistration
		})).Return(nil).Once()

		service := identity.NewVerificationService(store, users, hashes, cfg,
			identity.WithVerificationLogger(testLogger{}),
			identity.WithVerificationNotifier(notifier),
		)

		require.NoError(t, service.Send(ctx, identity.VerificationRegistration, user))
		notifier.AssertExpectations(t)
	})

	t.Run("deep links point at the right page", func(t *testing.T) {
		cfg := newTestConfig()
		user := testUser(identity.RoleUser)

		store := newMemVerificationStore()
		users := &memUserReader{users: map[string]*identity.User{user.Email: user}}
		hashes := identity.NewHashProvider(newTestTokenService(t, cfg))

		notifier := &MockNotifier{}
		notifier.On("Send", mock.Anything, mock.MatchedBy(func(notice identity.VerificationNotice) bool {
			return notice.Type == identity.VerificationRegistration &&
				strings.HasPrefix(notice.TargetURL, "https://app.example.com/verify?hash=")
		})).Return(nil).Once()
		notifier.On("Send", mock.Anything, mock.MatchedBy(func(notice identity.VerificationNotice) bool {
			return notice.Type == identity.VerificationChangePassword &&
				strings.HasPrefix(notice.TargetURL, "https://app.example.com/change-password?hash=")
		})).Return(nil).Once()

		service := identity.NewVerificationService(store, users, hashes, cfg,
			identity.WithVerificationLogger(testLogger{}),
			identity.WithVerificationNotifier(notifier),
		)

		require.NoError(t, service.Send(ctx, identity.VerificationRegistration, user))
		require.NoError(t, service.Send(ctx, identity.VerificationChangePassword, user))
		notifier.AssertExpectations(t)
	})

	t.Run("suppresses registration handshakes when verification is disabled", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.verificationEnabled = false

		service, store, _, user := newVerificationFixture(t, cfg)

		require.NoError(t, service.Send(ctx, identity.VerificationRegistration, user))
		require.NoError(t, service.Send(ctx, identity.VerificationAdminRegistration, user))
		require.NoError(t, service.Send(ctx, identity.VerificationNewOrganisationUser, user))
		assert.Equal(t, 0, store.count())

		// password changes still go through
		require.NoError(t, service.Send(ctx, identity.VerificationChangePassword, user))
		assert.Equal(t, 1, store.count())
	})
}

func TestVerificationRetrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves a hash back to its record", func(t *testing.T) {
		service, store, _, user := newVerificationFixture(t, nil)

		require.NoError(t, service.Send(ctx, identity.VerificationRegistration, user))
		record, err := store.GetByTypeAndEmail(ctx, identity.VerificationRegistration, user.Email)
		require.NoError(t, err)

		found, err := service.Retrieve(ctx, record.Hash)
		require.NoError(t, err)
		assert.Equal(t, user.Email, found.Email)
		assert.Equal(t, identity.VerificationRegistration, found.Type)
	})

	t.Run("rejects garbage hashes", func(t *testing.T) {
		service, _, _, _ := newVerificationFixture(t, nil)

		_, err := service.Retrieve(ctx, "garbage-hash")
		require.Error(t, err)
		assert.True(t, identity.IsInvalidVerificationError(err))
		assert.Contains(t, err.Error(), "Request is invalid")
	})

	t.Run("rejects a hash whose record was already consumed", func(t *testing.T) {
		service, store, _, user := newVerificationFixture(t, nil)

		require.NoError(t, service.Send(ctx, identity.VerificationRegistration, user))
		record, err := store.GetByTypeAndEmail(ctx, identity.VerificationRegistration, user.Email)
		require.NoError(t, err)
		hash := record.Hash

		require.NoError(t, service.Verify(ctx, record))

		_, err = service.Retrieve(ctx, hash)
		require.Error(t, err)
		assert.True(t, identity.IsInvalidVerificationError(err))
	})

	t.Run("rejects a superseded hash", func(t *testing.T) {
		service, store, _, user := newVerificationFixture(t, nil)

		require.NoError(t, service.Send(ctx, identity.VerificationRegistration, user))
		record, err := store.GetByTypeAndEmail(ctx, identity.VerificationRegistration, user.Email)
		require.NoError(t, err)
		stale := record.Hash

		require.NoError(t, service.Send(ctx, identity.VerificationRegistration, user))

		_, err = service.Retrieve(ctx, stale)
		require.Error(t, err)
		assert.True(t, identity.IsInvalidVerificationError(err))
	})
}

func TestVerificationVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("consumes the record", func(t *testing.T) {
		service, store, _, user := newVerificationFixture(t, nil)

		require.NoError(t, service.Send(ctx, identity.VerificationRegistration, user))
		record, err := store.GetByTypeAndEmail(ctx, identity.VerificationRegistration, user.Email)
		require.NoError(t, err)

		require.NoError(t, service.Verify(ctx, record))
		assert.Equal(t, 0, store.count())
	})

	t.Run("chains a change password handshake for onboarding types", func(t *testing.T) {
		for _, vtype := range []identity.VerificationType{
			identity.VerificationAdminRegistration,
			identity.VerificationNewOrganisationUser,
		} {
			service, store, _, user := newVerificationFixture(t, nil)

			require.NoError(t, service.Send(ctx, vtype, user))
			record, err := store.GetByTypeAndEmail(ctx, vtype, user.Email)
			require.NoError(t, err)

			require.NoError(t, service.Verify(ctx, record))

			// onboarding record consumed, change password pending
			assert.Equal(t, 1, store.count())
			chained, err := store.GetByTypeAndEmail(ctx, identity.VerificationChangePassword, user.Email)
			require.NoError(t, err)
			assert.Equal(t, identity.VerificationPending, chained.Status)
		}
	})

	t.Run("does not chain for plain registration", func(t *testing.T) {
		service, store, _, user := newVerificationFixture(t, nil)

		require.NoError(t, service.Send(ctx, identity.VerificationRegistration, user))
		record, err := store.GetByTypeAndEmail(ctx, identity.VerificationRegistration, user.Email)
		require.NoError(t, err)

		require.NoError(t, service.Verify(ctx, record))
		assert.Equal(t, 0, store.count())
	})

	t.Run("rejects nil records", func(t *testing.T) {
		service, _, _, _ := newVerificationFixture(t, nil)
		assert.Error(t, service.Verify(ctx, nil))
	})
}

func TestHashProviderRoundTrip(t *testing.T) {
	service := newTestTokenService(t, nil)
	hashes := identity.NewHashProvider(service)

	t.Run("embeds and recovers the email", func(t *testing.T) {
		hash, err := hashes.GenerateHash("pepe@example.com")
		require.NoError(t, err)
		require.NotEmpty(t, hash)

		email, err := hashes.ReadHashValue(hash)
		require.NoError(t, err)
		assert.Equal(t, "pepe@example.com", email)
	})

	t.Run("two hashes for the same email differ", func(t *testing.T) {
		first, err := hashes.GenerateHash("pepe@example.com")
		require.NoError(t, err)
		second, err := hashes.GenerateHash("pepe@example.com")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("rejects tampered hashes", func(t *testing.T) {
		_, err := hashes.ReadHashValue("@@not-base64@@")
		require.Error(t, err)
		assert.True(t, identity.IsInvalidVerificationError(err))
	})
}
