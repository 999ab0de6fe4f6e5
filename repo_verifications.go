package identity

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Verifications persists verification handshakes. Save upserts so a renewed
// record replaces the previous one for the same (email, type) pair.
type Verifications interface {
	VerificationStore
	SaveTx(ctx context.Context, tx bun.IDB, record *Verification) (*Verification, error)
}

type verifications struct {
	repository.Repository[*Verification]
	db *bun.DB
}

var (
	_ Verifications = (*verifications)(nil)
)

func NewVerificationsRepository(db *bun.DB) Verifications {
	repo := repository.NewRepository[*Verification](db, repository.ModelHandlers[*Verification]{
		NewRecord: func() *Verification { return &Verification{} },
		GetID: func(v *Verification) uuid.UUID {
			if v == nil {
				return uuid.Nil
			}
			return v.ID
		},
		SetID: func(v *Verification, id uuid.UUID) {
			if v != nil {
				v.ID = id
			}
		},
		GetIdentifier: func() string {
			return "hash"
		},
	})

	return &verifications{
		Repository: repo,
		db:         db,
	}
}

func (r *verifications) GetByTypeAndEmail(ctx context.Context, vtype VerificationType, email string) (*Verification, error) {
	record := &Verification{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.type = ?", vtype).
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"type":  vtype,
					"email": email,
				})
		}
		return nil, err
	}

	return record, nil
}

func (r *verifications) GetByHashAndEmail(ctx context.Context, hash, email string) (*Verification, error) {
	record := &Verification{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.hash = ?", hash).
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"email": email,
				})
		}
		return nil, err
	}

	return record, nil
}

func (r *verifications) Save(ctx context.Context, record *Verification) (*Verification, error) {
	return r.SaveTx(ctx, r.db, record)
}

func (r *verifications) SaveTx(ctx context.Context, tx bun.IDB, record *Verification) (*Verification, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
		return r.Repository.CreateTx(ctx, tx, record)
	}
	return r.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(record.ID.String()))
}

func (r *verifications) Delete(ctx context.Context, record *Verification) error {
	_, err := r.db.NewDelete().
		Model((*Verification)(nil)).
		Where("?TableAlias.id = ?", record.ID).
		Exec(ctx)
	return err
}
