package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gyber/go-custody"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Open returns a bun database for a postgres:// DSN or a sqlite file:
// DSN. Anything that is not postgres is handed to sqlite.
func Open(dsn string) (*bun.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("persistence: dsn is required")
	}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		sqldb.SetConnMaxIdleTime(5 * time.Minute)
		return bun.NewDB(sqldb, pgdialect.New()), nil
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("persistence: open sqlite: %w", err)
	}
	// sqlite serializes writers, a single connection avoids SQLITE_BUSY
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persistence: sqlite pragma: %w", err)
	}
	return db, nil
}

// Ping checks connectivity within timeout
func Ping(ctx context.Context, db *bun.DB, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return db.PingContext(ctx)
}

// Migrate creates the users and wallets tables when missing
func Migrate(ctx context.Context, db *bun.DB) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewCreateTable().
			Model((*custody.User)(nil)).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("persistence: create users: %w", err)
		}

		if _, err := tx.NewCreateTable().
			Model((*custody.Wallet)(nil)).
			IfNotExists().
			ForeignKey(`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`).
			Exec(ctx); err != nil {
			return fmt.Errorf("persistence: create wallets: %w", err)
		}

		if _, err := tx.NewCreateIndex().
			Model((*custody.Wallet)(nil)).
			Index("wallets_user_id_idx").
			Column("user_id").
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("persistence: index wallets: %w", err)
		}

		return nil
	})
}
