package identity

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// Authorities is the authority catalog repository. The catalog is small and
// append-only, so this is plain bun rather than the generic repository: the
// generic handlers assume uuid keys and these rows use serial ids.
type Authorities interface {
	AuthorityStore
	GetOrCreate(ctx context.Context, record *Authority) (*Authority, error)
	GetOrCreateTx(ctx context.Context, tx bun.IDB, record *Authority) (*Authority, error)
}

type authorities struct {
	db *bun.DB
}

var _ Authorities = (*authorities)(nil)

func NewAuthoritiesRepository(db *bun.DB) Authorities {
	return &authorities{db: db}
}

func (a *authorities) GetAll(ctx context.Context) ([]*Authority, error) {
	var records []*Authority
	err := a.db.NewSelect().
		Model(&records).
		Order("aut.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (a *authorities) GetByCategory(ctx context.Context, category AuthorityCategory) ([]*Authority, error) {
	var records []*Authority
	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.category = ?", category).
		Order("aut.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (a *authorities) GetByName(ctx context.Context, name string) (*Authority, error) {
	return a.getByNameTx(ctx, a.db, name)
}

func (a *authorities) getByNameTx(ctx context.Context, tx bun.IDB, name string) (*Authority, error) {
	record := &Authority{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", strings.TrimSpace(name)).
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

func (a *authorities) GetOrCreate(ctx context.Context, record *Authority) (*Authority, error) {
	return a.GetOrCreateTx(ctx, a.db, record)
}

func (a *authorities) GetOrCreateTx(ctx context.Context, tx bun.IDB, record *Authority) (*Authority, error) {
	existing, err := a.getByNameTx(ctx, tx, record.Name)
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

// UserAuthorities persists grants and answers the ledger's queries.
type UserAuthorities interface {
	UserAuthorityStore
	SaveTx(ctx context.Context, tx bun.IDB, grant *UserAuthority) (*UserAuthority, error)
}

type userAuthorities struct {
	db *bun.DB
}

var _ UserAuthorities = (*userAuthorities)(nil)

func NewUserAuthoritiesRepository(db *bun.DB) UserAuthorities {
	return &userAuthorities{db: db}
}

func (r *userAuthorities) FindByUserID(ctx context.Context, user *User) ([]*UserAuthority, error) {
	var records []*UserAuthority
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", user.ID).
		Order("uaut.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *userAuthorities) Save(ctx context.Context, grant *UserAuthority) (*UserAuthority, error) {
	return r.SaveTx(ctx, r.db, grant)
}

func (r *userAuthorities) SaveTx(ctx context.Context, tx bun.IDB, grant *UserAuthority) (*UserAuthority, error) {
	if _, err := tx.NewInsert().Model(grant).Exec(ctx); err != nil {
		return nil, err
	}
	return grant, nil
}

func (r *userAuthorities) Delete(ctx context.Context, grant *UserAuthority) error {
	_, err := r.db.NewDelete().
		Model((*UserAuthority)(nil)).
		Where("?TableAlias.id = ?", grant.ID).
		Exec(ctx)
	return err
}

func (r *userAuthorities) CountUsersWithAuthorities(ctx context.Context, names []string) (int, error) {
	if len(names) == 0 {
		return 0, nil
	}

	return r.db.NewSelect().
		Model((*UserAuthority)(nil)).
		ColumnExpr("DISTINCT ?TableAlias.user_id").
		Where("?TableAlias.name IN (?)", bun.In(names)).
		Count(ctx)
}
