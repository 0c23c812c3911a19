// internal/repository/postgres/db.go
package postgres

import (
	"context"
	"errors"

	xerrors "repurpose-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	pool *pgxpool.Pool
}

func NewDB(pool *pgxpool.Pool) *DB {
	return &DB{pool: pool}
}

// BeginTx starts a transaction with the engine's bounded lock wait already
// applied, so callers composing *Tx repository methods inherit it.
func (db *DB) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if err := setLockTimeout(ctx, tx); err != nil {
		tx.Rollback(ctx)
		return nil, err
	}
	return tx, nil
}

func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// lockTimeout bounds how long a transaction may wait for a row lock before
// failing with a retryable error instead of blocking indefinitely.
const lockTimeout = "3s"

func setLockTimeout(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, "SET LOCAL lock_timeout = '"+lockTimeout+"'")
	return err
}

// lockNotAvailable is the Postgres error code raised when lock_timeout
// expires while waiting on a row lock.
const lockNotAvailable = "55P03"

// mapError rewrites low-level Postgres failures into engine outcomes.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == lockNotAvailable {
		return xerrors.ErrConcurrencyTimeout
	}
	return err
}
