package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// UserAuthorityService is the authority ledger: it keeps a user's grant set
// consistent and auditable. Every mutation returns the full post-state,
// which is the authoritative signal of what actually applied.
type UserAuthorityService interface {
	GrantCommonUserAuthorities(ctx context.Context, user *User) ([]*UserAuthority, error)
	GrantAdminAuthorities(ctx context.Context, user *User) ([]*UserAuthority, error)
	GrantOrganisationAdminAuthorities(ctx context.Context, user *User) ([]*UserAuthority, error)
	AddAuthorities(ctx context.Context, user *User, names []string) ([]*UserAuthority, error)
	RemoveAuthorities(ctx context.Context, user *User, names []string) ([]*UserAuthority, error)
}

// UserAuthorityServiceImpl implements UserAuthorityService
type UserAuthorityServiceImpl struct {
	authorities AuthorityStore
	grants      UserAuthorityStore
	logger      Logger
	activity    ActivitySink
}

// UserAuthorityOption customizes ledger construction.
type UserAuthorityOption func(*UserAuthorityServiceImpl)

// WithUserAuthorityLogger overrides the logger.
func WithUserAuthorityLogger(logger Logger) UserAuthorityOption {
	return func(s *UserAuthorityServiceImpl) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithUserAuthorityActivitySink sets the audit sink.
func WithUserAuthorityActivitySink(sink ActivitySink) UserAuthorityOption {
	return func(s *UserAuthorityServiceImpl) {
		s.activity = normalizeActivitySink(sink)
	}
}

// NewUserAuthorityService builds the default ledger over the given stores.
func NewUserAuthorityService(authorities AuthorityStore, grants UserAuthorityStore, opts ...UserAuthorityOption) *UserAuthorityServiceImpl {
	s := &UserAuthorityServiceImpl{
		authorities: authorities,
		grants:      grants,
		logger:      defLogger{},
		activity:    noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

var _ UserAuthorityService = (*UserAuthorityServiceImpl)(nil)

// GrantCommonUserAuthorities grants every authority in the COMMON_USER
// category.
func (s *UserAuthorityServiceImpl) GrantCommonUserAuthorities(ctx context.Context, user *User) ([]*UserAuthority, error) {
	authorities, err := s.authorities.GetByCategory(ctx, CategoryCommonUser)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load common user authorities")
	}
	return s.grant(ctx, user, authorities, ActivityEventAuthoritiesGranted)
}

// GrantAdminAuthorities grants every authority across all categories
// (administrator bootstrap).
func (s *UserAuthorityServiceImpl) GrantAdminAuthorities(ctx context.Context, user *User) ([]*UserAuthority, error) {
	authorities, err := s.authorities.GetAll(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load authorities")
	}
	return s.grant(ctx, user, authorities, ActivityEventAuthoritiesGranted)
}

// GrantOrganisationAdminAuthorities grants every authority in the
// ORGANISATION category.
func (s *UserAuthorityServiceImpl) GrantOrganisationAdminAuthorities(ctx context.Context, user *User) ([]*UserAuthority, error) {
	authorities, err := s.authorities.GetByCategory(ctx, CategoryOrganisation)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load organisation authorities")
	}
	return s.grant(ctx, user, authorities, ActivityEventAuthoritiesGranted)
}

// AddAuthorities resolves each name and grants the ones not already held.
// Unknown names are dropped silently; repeating the call yields the same end
// state.
func (s *UserAuthorityServiceImpl) AddAuthorities(ctx context.Context, user *User, names []string) ([]*UserAuthority, error) {
	authorities, err := s.resolve(ctx, names)
	if err != nil {
		return nil, err
	}
	return s.grant(ctx, user, authorities, ActivityEventAuthoritiesGranted)
}

// RemoveAuthorities removes grants whose authority matches any resolved
// name and id. Unresolvable or absent names are no-ops.
func (s *UserAuthorityServiceImpl) RemoveAuthorities(ctx context.Context, user *User, names []string) ([]*UserAuthority, error) {
	authorities, err := s.resolve(ctx, names)
	if err != nil {
		return nil, err
	}

	held, err := s.grants.FindByUserID(ctx, user)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user grants")
	}

	removed := make([]string, 0, len(authorities))
	for _, grant := range held {
		if !matchesAny(grant, authorities) {
			continue
		}
		if err := s.grants.Delete(ctx, grant); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove user authority")
		}
		removed = append(removed, grant.Name)
	}

	if len(removed) > 0 {
		s.recordActivity(ctx, user, ActivityEventAuthoritiesRevoked, removed)
	}

	return s.grants.FindByUserID(ctx, user)
}

// grant persists only the authorities not already held, deduplicated by
// name and id, then returns the full post-state.
func (s *UserAuthorityServiceImpl) grant(ctx context.Context, user *User, authorities []*Authority, event ActivityEventType) ([]*UserAuthority, error) {
	held, err := s.grants.FindByUserID(ctx, user)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user grants")
	}

	added := make([]string, 0, len(authorities))
	for _, authority := range authorities {
		if isHeld(held, authority) {
			continue
		}
		if _, err := s.grants.Save(ctx, NewUserAuthority(user, authority)); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to save user authority")
		}
		added = append(added, authority.Name)
	}

	if len(added) > 0 {
		s.recordActivity(ctx, user, event, added)
	}

	return s.grants.FindByUserID(ctx, user)
}

// resolve maps names to catalog records, dropping unknown names silently.
func (s *UserAuthorityServiceImpl) resolve(ctx context.Context, names []string) ([]*Authority, error) {
	authorities := make([]*Authority, 0, len(names))
	for _, name := range names {
		authority, err := s.authorities.GetByName(ctx, name)
		if err != nil {
			if goerrors.IsNotFound(err) {
				s.logger.Debug("dropping unknown authority name %q", name)
				continue
			}
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve authority")
		}
		authorities = append(authorities, authority)
	}
	return authorities, nil
}

func isHeld(held []*UserAuthority, authority *Authority) bool {
	for _, grant := range held {
		if grant.Name == authority.Name && grant.AuthorityID == authority.ID {
			return true
		}
	}
	return false
}

func matchesAny(grant *UserAuthority, authorities []*Authority) bool {
	for _, authority := range authorities {
		if grant.Name == authority.Name && grant.AuthorityID == authority.ID {
			return true
		}
	}
	return false
}

func (s *UserAuthorityServiceImpl) recordActivity(ctx context.Context, user *User, event ActivityEventType, names []string) {
	err := normalizeActivitySink(s.activity).Record(ctx, ActivityEvent{
		EventType:  event,
		Actor:      ActorRef{Type: "system"},
		UserID:     user.ID.String(),
		Email:      user.Email,
		Metadata:   map[string]any{"authorities": names},
		OccurredAt: time.Now(),
	})
	if err != nil {
		s.logger.Warn("authority ledger activity sink error: %v", err)
	}
}
