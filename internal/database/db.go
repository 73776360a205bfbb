package database

import (
	"context"
	"errors"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jojo6550/jefitness-sub002/internal/models"
)

// MapPostgresError translates driver-level errors into the model sentinels.
// Transport failures surface as ErrStoreUnavailable so handlers can answer 503.
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return models.ErrDuplicate
		case "23503": // foreign_key_violation
			return models.ErrBadRequest
		case "23502": // not_null_violation
			return models.ErrBadRequest
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return models.ErrStoreUnavailable
	}
	if pgconn.Timeout(err) {
		return models.ErrStoreUnavailable
	}

	return err
}

// WithTransaction runs fn inside a transaction, committing on a nil return
// and rolling back otherwise. The error result is named so the deferred
// commit can report its own failure; without that, a broken COMMIT would
// leave the caller believing the write succeeded.
func (db *DB) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return MapPostgresError(err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else if commitErr := tx.Commit(ctx); commitErr != nil {
			err = MapPostgresError(commitErr)
		}
	}()

	return fn(tx)
}
