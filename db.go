package identity

import (
	"context"
	"database/sql"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// OpenSQLite opens a sqlite-backed *bun.DB. Embedding applications usually
// bring their own database handle; this covers development setups and tests.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}

	// in-memory databases vanish when their only connection closes
	if strings.Contains(dsn, ":memory:") {
		sqldb.SetMaxOpenConns(1)
	}

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// ResetSchema creates the identity tables, dropping existing ones first.
// Meant for development and tests; production schemas are migrated by the
// embedding application.
func ResetSchema(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*Tenancy)(nil),
		(*User)(nil),
		(*Authority)(nil),
		(*UserAuthority)(nil),
		(*Verification)(nil),
	}

	for _, model := range models {
		if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
			return err
		}
		if _, err := db.NewCreateTable().Model(model).Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}
