package identity

import "context"

// Canonical authority names.
const (
	RoleUser     = "ROLE_USER"
	TenancyAdmin = "TENANCY_ADMIN"
	RoleAdmin    = "ROLE_ADMIN"
)

// DefaultAuthorities is the canonical authority catalog the seeder feeds
// into the backing store.
func DefaultAuthorities() []*Authority {
	return []*Authority{
		{Name: RoleUser, Category: CategoryCommonUser},
		{Name: TenancyAdmin, Category: CategoryOrganisation},
		{Name: RoleAdmin, Category: CategoryAdministrator},
	}
}

// AuthorityNamesByCategory filters the canonical catalog by category.
func AuthorityNamesByCategory(category AuthorityCategory) []string {
	var names []string
	for _, a := range DefaultAuthorities() {
		if a.Category == category {
			names = append(names, a.Name)
		}
	}
	return names
}

// AuthorityStore is the authority catalog lookup the ledger consumes.
type AuthorityStore interface {
	GetAll(ctx context.Context) ([]*Authority, error)
	GetByCategory(ctx context.Context, category AuthorityCategory) ([]*Authority, error)
	// GetByName returns a record-not-found error for unknown names.
	GetByName(ctx context.Context, name string) (*Authority, error)
}

// UserAuthorityStore persists individual grants.
type UserAuthorityStore interface {
	FindByUserID(ctx context.Context, user *User) ([]*UserAuthority, error)
	Save(ctx context.Context, grant *UserAuthority) (*UserAuthority, error)
	Delete(ctx context.Context, grant *UserAuthority) error
	// CountUsersWithAuthorities counts distinct users holding any of the
	// given authority names.
	CountUsersWithAuthorities(ctx context.Context, names []string) (int, error)
}
