package identity

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Authorities() Authorities
	UserAuthorities() UserAuthorities
	Verifications() Verifications
	Tenancies() Tenancies
}

// Tenancies is the organisational unit repository. Tenancies carry no
// behavior of their own; get-or-create is all registration needs.
type Tenancies interface {
	GetByName(ctx context.Context, name string) (*Tenancy, error)
	GetOrCreate(ctx context.Context, record *Tenancy) (*Tenancy, error)
	GetOrCreateTx(ctx context.Context, tx bun.IDB, record *Tenancy) (*Tenancy, error)
}

type tenancies struct {
	db *bun.DB
}

var _ Tenancies = (*tenancies)(nil)

func NewTenanciesRepository(db *bun.DB) Tenancies {
	return &tenancies{db: db}
}

func (t *tenancies) GetByName(ctx context.Context, name string) (*Tenancy, error) {
	return t.getByNameTx(ctx, t.db, name)
}

func (t *tenancies) getByNameTx(ctx context.Context, tx bun.IDB, name string) (*Tenancy, error) {
	record := &Tenancy{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", name).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"name": name,
				})
		}
		return nil, err
	}

	return record, nil
}

func (t *tenancies) GetOrCreate(ctx context.Context, record *Tenancy) (*Tenancy, error) {
	return t.GetOrCreateTx(ctx, t.db, record)
}

func (t *tenancies) GetOrCreateTx(ctx context.Context, tx bun.IDB, record *Tenancy) (*Tenancy, error) {
	existing, err := t.getByNameTx(ctx, tx, record.Name)
	if err == nil {
		return existing, nil
	}

	if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}

	return record, nil
}

type mngr struct {
	db              *bun.DB
	users           Users
	authorities     Authorities
	userAuthorities UserAuthorities
	verifications   Verifications
	tenancies       Tenancies
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:              db,
		users:           NewUsersRepository(db),
		authorities:     NewAuthoritiesRepository(db),
		userAuthorities: NewUserAuthoritiesRepository(db),
		verifications:   NewVerificationsRepository(db),
		tenancies:       NewTenanciesRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.authorities == nil {
		return errors.New("repository authorities should be initialized")
	}

	if m.userAuthorities == nil {
		return errors.New("repository userAuthorities should be initialized")
	}

	if m.verifications == nil {
		return errors.New("repository verifications should be initialized")
	}

	if m.tenancies == nil {
		return errors.New("repository tenancies should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Authorities() Authorities {
	return m.authorities
}

func (m mngr) UserAuthorities() UserAuthorities {
	return m.userAuthorities
}

func (m mngr) Verifications() Verifications {
	return m.verifications
}

func (m mngr) Tenancies() Tenancies {
	return m.tenancies
}
