package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// migrationLockKey is the advisory lock shared by the API auto-migration and gallerytool migrate.
const migrationLockKey int64 = 0x67616c6c657279

// WithTx runs fn inside one transaction and rolls back when fn fails.
func WithTx(ctx context.Context, pool *pgxpool.Pool, opts pgx.TxOptions, fn func(context.Context, pgx.Tx) error) error {
	if pool == nil {
		return errors.New("postgres pool is nil")
	}

	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin %s tx: %w", txLabel(opts), err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s tx: %w", txLabel(opts), err)
	}

	return nil
}

// withMigrationLock serializes schema changes across processes. The lock is released on commit or rollback.
func withMigrationLock(ctx context.Context, pool *pgxpool.Pool, fn func(context.Context, pgx.Tx) error) error {
	return WithTx(ctx, pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockKey); err != nil {
			return fmt.Errorf("acquire gallery migration lock: %w", err)
		}
		return fn(ctx, tx)
	})
}

func txLabel(opts pgx.TxOptions) string {
	if opts.IsoLevel == "" {
		return "default"
	}
	return string(opts.IsoLevel)
}
