package identity

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Seeder feeds the authority catalog and bootstraps the first administrator
// account on an empty database. Both feeds are idempotent so the embedding
// application can run EnsureSeeded on every start.
type Seeder struct {
	repos        RepositoryManager
	authorities  UserAuthorityService
	verification VerificationService
	cfg          Config
	logger       Logger
	activity     ActivitySink
}

// SeederOption customizes seeder construction.
type SeederOption func(*Seeder)

// WithSeederLogger overrides the logger.
func WithSeederLogger(logger Logger) SeederOption {
	return func(s *Seeder) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSeederActivitySink sets the audit sink.
func WithSeederActivitySink(sink ActivitySink) SeederOption {
	return func(s *Seeder) {
		s.activity = normalizeActivitySink(sink)
	}
}

// NewSeeder builds a seeder over the repository manager.
func NewSeeder(repos RepositoryManager, authorities UserAuthorityService, verification VerificationService, cfg Config, opts ...SeederOption) *Seeder {
	s := &Seeder{
		repos:        repos,
		authorities:  authorities,
		verification: verification,
		cfg:          cfg,
		logger:       defLogger{},
		activity:     noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// EnsureSeeded runs the authority feed and then the admin feed.
func (s *Seeder) EnsureSeeded(ctx context.Context) error {
	if err := s.feedAuthorities(ctx); err != nil {
		return err
	}
	return s.feedAdmin(ctx)
}

// feedAuthorities upserts the canonical catalog. Existing rows are left
// untouched so the feed never clobbers operator edits.
func (s *Seeder) feedAuthorities(ctx context.Context) error {
	created := 0
	for _, authority := range DefaultAuthorities() {
		existing, err := s.repos.Authorities().GetOrCreate(ctx, authority)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to feed authority catalog")
		}
		// GetOrCreate returns the passed record only when it inserted it
		if existing == authority {
			created++
		}
	}

	if created > 0 {
		s.logger.Info("authority catalog seeded, %d new entries", created)
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventAuthoritiesSeeded,
			Actor:     ActorRef{Type: "system"},
			Metadata:  map[string]any{"created": created},
		})
	}

	return nil
}

// feedAdmin creates the first administrator when no user holds an
// administrator-category authority. The account starts disabled and
// unverified with a throwaway hash; the chained handshakes walk the
// operator through verification and a real password.
func (s *Seeder) feedAdmin(ctx context.Context) error {
	adminNames := AuthorityNamesByCategory(CategoryAdministrator)

	count, err := s.repos.UserAuthorities().CountUsersWithAuthorities(ctx, adminNames)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to count administrator grants")
	}

	if count > 0 {
		return nil
	}

	email := strings.TrimSpace(s.cfg.GetAdminEmail())
	if email == "" {
		s.logger.Warn("no administrator email configured, skipping admin feed")
		return nil
	}

	admin := &User{
		Username:     email,
		Email:        email,
		FirstName:    "Admin",
		LastName:     "Admin",
		PasswordHash: RandomPasswordHash(),
		Enabled:      false,
		Verified:     false,
	}

	admin, err = s.repos.Users().Register(ctx, admin)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to register administrator")
	}

	if _, err := s.authorities.GrantAdminAuthorities(ctx, admin); err != nil {
		return err
	}

	if err := s.verification.Send(ctx, VerificationAdminRegistration, admin); err != nil {
		return err
	}

	s.logger.Info("administrator account seeded for %s", email)
	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventAdminSeeded,
		Actor:     ActorRef{Type: "system"},
		UserID:    admin.ID.String(),
		Email:     admin.Email,
	})

	return nil
}

func (s *Seeder) recordActivity(ctx context.Context, event ActivityEvent) {
	if err := normalizeActivitySink(s.activity).Record(ctx, event); err != nil {
		s.logger.Warn("seeder activity sink error: %v", err)
	}
}
