package custody

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Users is the identity store. Every read goes to the database, nothing is cached.
type Users interface {
	repository.Repository[*User]

	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	ExistsTx(ctx context.Context, tx bun.IDB, username, email string) (bool, error)

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	MarkVerifiedByEmailTx(ctx context.Context, tx bun.IDB, email string) (bool, error)
	ResetPasswordByEmailTx(ctx context.Context, tx bun.IDB, email, passwordHash string) (bool, error)
	UpdateProfileTx(ctx context.Context, tx bun.IDB, id uuid.UUID, username, email string, verified bool) error
	LockChainsTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (ChainPreferences, error)
	UpdateChainsTx(ctx context.Context, tx bun.IDB, id uuid.UUID, chains ChainPreferences) error
	SetActiveTx(ctx context.Context, tx bun.IDB, id uuid.UUID, active bool) error
	DeleteByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	ListPage(ctx context.Context, limit, offset int) ([]*User, int, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) GetByUsername(ctx context.Context, username string) (*User, error) {
	return a.GetByUsernameTx(ctx, a.db, username)
}

func (a *users) GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*User, error) {
	return a.getBy(ctx, tx, "username", strings.TrimSpace(username))
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	return a.getBy(ctx, tx, "email", strings.TrimSpace(email))
}

func (a *users) getBy(ctx context.Context, tx bun.IDB, column, value string) (*User, error) {
	if value == "" {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{column: value})
	}

	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{column: value})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) ExistsTx(ctx context.Context, tx bun.IDB, username, email string) (bool, error) {
	q := tx.NewSelect().Model((*User)(nil))
	q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
		q = q.WhereOr("?TableAlias.username = ?", username)
		if email != "" {
			q = q.WhereOr("?TableAlias.email = ?", email)
		}
		return q
	})
	return q.Exists(ctx)
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)
	return a.Repository.CreateTx(ctx, tx, user)
}

func (a *users) MarkVerifiedByEmailTx(ctx context.Context, tx bun.IDB, email string) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("is_verified = ?", true).
		Set("updated_at = ?", time.Now()).
		Where("email = ?", email).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return affected(res), nil
}

func (a *users) ResetPasswordByEmailTx(ctx context.Context, tx bun.IDB, email, passwordHash string) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = ?", time.Now()).
		Where("email = ?", email).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return affected(res), nil
}

func (a *users) UpdateProfileTx(ctx context.Context, tx bun.IDB, id uuid.UUID, username, email string, verified bool) error {
	var emailValue any
	if email != "" {
		emailValue = email
	}

	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("username = ?", username).
		Set("email = ?", emailValue).
		Set("is_verified = ?", verified).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, id)
}

// LockChainsTx reads the stored chain preferences of a user. On postgres the
// row stays locked until tx ends.
func (a *users) LockChainsTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (ChainPreferences, error) {
	var chains ChainPreferences
	q := tx.NewSelect().
		Model((*User)(nil)).
		Column("chains").
		Where("?TableAlias.id = ?", id).
		Limit(1)
	if tx.Dialect().Name() == dialect.PG {
		q = q.For("UPDATE")
	}

	if err := q.Scan(ctx, &chains); err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}
	return chains, nil
}

func (a *users) UpdateChainsTx(ctx context.Context, tx bun.IDB, id uuid.UUID, chains ChainPreferences) error {
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("chains = ?", chains).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, id)
}

func (a *users) SetActiveTx(ctx context.Context, tx bun.IDB, id uuid.UUID, active bool) error {
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("is_active = ?", active).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, id)
}

func (a *users) DeleteByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewDelete().
		Model((*User)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, id)
}

// ListPage returns one page of users ordered by username and the total count
func (a *users) ListPage(ctx context.Context, limit, offset int) ([]*User, int, error) {
	var records []*User
	count, err := a.db.NewSelect().
		Model(&records).
		Order("username ASC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return records, count, nil
}

func affected(res sql.Result) bool {
	if res == nil {
		return false
	}
	n, err := res.RowsAffected()
	return err == nil && n > 0
}

func requireAffected(res sql.Result, id uuid.UUID) error {
	if affected(res) {
		return nil
	}
	return repository.NewRecordNotFound().
		WithMetadata(map[string]any{"id": id.String()})
}

// isUniqueViolation reports whether err is a uniqueness conflict in
// postgres or sqlite.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
