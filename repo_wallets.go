package custody

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Wallets stores custodial accounts
type Wallets interface {
	repository.Repository[*Wallet]

	GetOwnedTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, address string) (*Wallet, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Wallet, error)
	AddTx(ctx context.Context, tx bun.IDB, wallet *Wallet) (*Wallet, error)
	MarkInsecureTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	DeleteOwnedTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, address string) error
	DeleteByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int64, error)
}

type wallets struct {
	repository.Repository[*Wallet]
	db *bun.DB
}

var _ Wallets = (*wallets)(nil)

func NewWalletsRepository(db *bun.DB) Wallets {
	repo := repository.NewRepository[*Wallet](db, repository.ModelHandlers[*Wallet]{
		NewRecord: func() *Wallet { return &Wallet{} },
		GetID: func(w *Wallet) uuid.UUID {
			if w == nil {
				return uuid.Nil
			}
			return w.ID
		},
		SetID: func(w *Wallet, id uuid.UUID) {
			if w != nil {
				w.ID = id
			}
		},
		GetIdentifier: func() string {
			return "address"
		},
	})

	return &wallets{
		Repository: repo,
		db:         db,
	}
}

func (w *wallets) GetOwnedTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, address string) (*Wallet, error) {
	record := &Wallet{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Where("lower(?TableAlias.address) = ?", strings.ToLower(strings.TrimSpace(address))).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"address": address})
		}
		return nil, err
	}

	return record, nil
}

func (w *wallets) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Wallet, error) {
	records := make([]*Wallet, 0)
	err := w.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Order("created_at ASC", "address ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (w *wallets) AddTx(ctx context.Context, tx bun.IDB, wallet *Wallet) (*Wallet, error) {
	prepareWalletDefaults(wallet)
	return w.Repository.CreateTx(ctx, tx, wallet)
}

func (w *wallets) MarkInsecureTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewUpdate().
		Model((*Wallet)(nil)).
		Set("is_secure = ?", false).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, id)
}

func (w *wallets) DeleteOwnedTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, address string) error {
	res, err := tx.NewDelete().
		Model((*Wallet)(nil)).
		Where("user_id = ?", userID).
		Where("lower(address) = ?", strings.ToLower(strings.TrimSpace(address))).
		Exec(ctx)
	if err != nil {
		return err
	}
	if !affected(res) {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"address": address})
	}
	return nil
}

func (w *wallets) DeleteByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int64, error) {
	res, err := tx.NewDelete().
		Model((*Wallet)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
