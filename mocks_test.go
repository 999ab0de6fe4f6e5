package identity_test

import (
	"context"
	"sync"

	identity "github.com/tradejournal/go-identity"

	"github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/mock"
)

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// testConfig implements identity.Config with sensible test defaults.
type testConfig struct {
	signingKey          string
	issuer              string
	audience            []string
	accessExpiration    int
	refreshExpiration   int
	temporaryExpiration int
	verificationEnabled bool
	frontendBaseURL     string
	adminEmail          string
}

func newTestConfig() *testConfig {
	return &testConfig{
		signingKey:          "test-signing-key",
		issuer:              "test-issuer",
		audience:            []string{"test-audience"},
		accessExpiration:    3600,
		refreshExpiration:   86400,
		temporaryExpiration: 900,
		verificationEnabled: true,
		frontendBaseURL:     "https://app.example.com",
		adminEmail:          "admin@example.com",
	}
}

func (c *testConfig) GetSigningKey() string            { return c.signingKey }
func (c *testConfig) GetIssuer() string                { return c.issuer }
func (c *testConfig) GetAudience() []string            { return c.audience }
func (c *testConfig) GetAccessTokenExpiration() int    { return c.accessExpiration }
func (c *testConfig) GetRefreshTokenExpiration() int   { return c.refreshExpiration }
func (c *testConfig) GetTemporaryTokenExpiration() int { return c.temporaryExpiration }
func (c *testConfig) GetVerificationEnabled() bool     { return c.verificationEnabled }
func (c *testConfig) GetFrontendBaseURL() string       { return c.frontendBaseURL }
func (c *testConfig) GetVerificationPagePath() string  { return "/verify" }
func (c *testConfig) GetChangePasswordPagePath() string {
	return "/change-password"
}
func (c *testConfig) GetAdminEmail() string { return c.adminEmail }

// MockTokenService implements identity.TokenService
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) IssueAccessToken(user *identity.User) (*identity.TokenData, error) {
	args := m.Called(user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.TokenData), args.Error(1)
}

func (m *MockTokenService) IssueRefreshToken(user *identity.User) (*identity.TokenData, error) {
	args := m.Called(user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.TokenData), args.Error(1)
}

func (m *MockTokenService) IssueTemporaryToken(subject string) (*identity.TokenData, error) {
	args := m.Called(subject)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.TokenData), args.Error(1)
}

func (m *MockTokenService) Parse(tokenString string) (*identity.AccessClaims, error) {
	args := m.Called(tokenString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.AccessClaims), args.Error(1)
}

func (m *MockTokenService) IsValid(tokenString string) bool {
	args := m.Called(tokenString)
	return args.Bool(0)
}

func (m *MockTokenService) ReadAuthorities(tokenString string) ([]string, error) {
	args := m.Called(tokenString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockCredentialProvider implements identity.CredentialProvider
type MockCredentialProvider struct {
	mock.Mock
}

func (m *MockCredentialProvider) VerifyCredentials(ctx context.Context, identifier, password string) (*identity.User, error) {
	args := m.Called(ctx, identifier, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

// MockUserSource implements identity.UserSource
type MockUserSource struct {
	mock.Mock
}

func (m *MockUserSource) GetByIdentifier(ctx context.Context, identifier string) (*identity.User, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

// MockNotifier implements identity.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, notice identity.VerificationNotice) error {
	args := m.Called(ctx, notice)
	return args.Error(0)
}

// recordingSink captures every activity event it is handed.
type recordingSink struct {
	mu     sync.Mutex
	events []identity.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event identity.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) byType(eventType identity.ActivityEventType) []identity.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []identity.ActivityEvent
	for _, e := range s.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// memVerificationStore is an in-memory VerificationStore keyed by
// (type, email).
type memVerificationStore struct {
	mu      sync.Mutex
	records map[string]*identity.Verification
}

func newMemVerificationStore() *memVerificationStore {
	return &memVerificationStore{records: map[string]*identity.Verification{}}
}

func verificationKey(vtype identity.VerificationType, email string) string {
	return vtype + "|" + email
}

func (s *memVerificationStore) GetByTypeAndEmail(_ context.Context, vtype identity.VerificationType, email string) (*identity.Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[verificationKey(vtype, email)]; ok {
		return record, nil
	}
	return nil, repository.NewRecordNotFound()
}

func (s *memVerificationStore) GetByHashAndEmail(_ context.Context, hash, email string) (*identity.Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.records {
		if record.Hash == hash && record.Email == email {
			return record, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (s *memVerificationStore) Save(_ context.Context, record *identity.Verification) (*identity.Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[verificationKey(record.Type, record.Email)] = record
	return record, nil
}

func (s *memVerificationStore) Delete(_ context.Context, record *identity.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, verificationKey(record.Type, record.Email))
	return nil
}

func (s *memVerificationStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// memUserReader resolves users by email from a fixed set.
type memUserReader struct {
	users map[string]*identity.User
}

func (r *memUserReader) GetByEmail(_ context.Context, email string) (*identity.User, error) {
	if user, ok := r.users[email]; ok {
		return user, nil
	}
	return nil, repository.NewRecordNotFound()
}

// memAuthorityStore serves the canonical catalog with assigned ids.
type memAuthorityStore struct {
	catalog []*identity.Authority
}

func newMemAuthorityStore() *memAuthorityStore {
	catalog := identity.DefaultAuthorities()
	for i, authority := range catalog {
		authority.ID = int64(i + 1)
	}
	return &memAuthorityStore{catalog: catalog}
}

func (s *memAuthorityStore) GetAll(context.Context) ([]*identity.Authority, error) {
	return s.catalog, nil
}

func (s *memAuthorityStore) GetByCategory(_ context.Context, category identity.AuthorityCategory) ([]*identity.Authority, error) {
	var out []*identity.Authority
	for _, authority := range s.catalog {
		if authority.Category == category {
			out = append(out, authority)
		}
	}
	return out, nil
}

func (s *memAuthorityStore) GetByName(_ context.Context, name string) (*identity.Authority, error) {
	for _, authority := range s.catalog {
		if authority.Name == name {
			return authority, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

// memGrantStore is an in-memory UserAuthorityStore.
type memGrantStore struct {
	mu     sync.Mutex
	nextID int64
	grants []*identity.UserAuthority
}

func newMemGrantStore() *memGrantStore {
	return &memGrantStore{nextID: 1}
}

func (s *memGrantStore) FindByUserID(_ context.Context, user *identity.User) ([]*identity.UserAuthority, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*identity.UserAuthority
	for _, grant := range s.grants {
		if grant.UserID == user.ID {
			out = append(out, grant)
		}
	}
	return out, nil
}

func (s *memGrantStore) Save(_ context.Context, grant *identity.UserAuthority) (*identity.UserAuthority, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant.ID = s.nextID
	s.nextID++
	s.grants = append(s.grants, grant)
	return grant, nil
}

func (s *memGrantStore) Delete(_ context.Context, grant *identity.UserAuthority) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, held := range s.grants {
		if held.ID == grant.ID {
			s.grants = append(s.grants[:i], s.grants[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *memGrantStore) CountUsersWithAuthorities(_ context.Context, names []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	for _, grant := range s.grants {
		for _, name := range names {
			if grant.Name == name {
				seen[grant.UserID.String()] = true
			}
		}
	}
	return len(seen), nil
}

// memUserTracker backs the credential provider in tests.
type memUserTracker struct {
	mu        sync.Mutex
	users     map[string]*identity.User
	attempted int
	succeeded int
}

func newMemUserTracker(users ...*identity.User) *memUserTracker {
	tracker := &memUserTracker{users: map[string]*identity.User{}}
	for _, user := range users {
		tracker.users[user.Username] = user
	}
	return tracker
}

func (s *memUserTracker) GetByIdentifier(_ context.Context, identifier string) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Username == identifier || user.Email == identifier || user.ID.String() == identifier {
			return user, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (s *memUserTracker) TrackAttemptedLogin(_ context.Context, user *identity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempted++
	user.LoginAttempts++
	return nil
}

func (s *memUserTracker) TrackSuccessfulLogin(_ context.Context, user *identity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.succeeded++
	user.LoginAttempts = 0
	user.LoginAttemptAt = nil
	return nil
}
