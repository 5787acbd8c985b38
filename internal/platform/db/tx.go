package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

// Beginner starts transactions. *pgxpool.Pool and pgxmock pools satisfy it.
type Beginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// ParseIsolation maps a configured name to a pgx isolation level.
func ParseIsolation(name string) (pgx.TxIsoLevel, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "_", " ")) {
	case "", "read committed":
		return pgx.ReadCommitted, nil
	case "repeatable read":
		return pgx.RepeatableRead, nil
	case "serializable":
		return pgx.Serializable, nil
	}
	return "", fmt.Errorf("platform/db: unsupported isolation %q", name)
}

// WithTx executes fn within a transaction at the given isolation level and
// maps driver errors onto the shared taxonomy.
func WithTx(ctx context.Context, db Beginner, iso pgx.TxIsoLevel, fn func(pgx.Tx) error) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{IsoLevel: iso})
	if err != nil {
		return MapError(fmt.Errorf("platform/db: begin tx: %w", err))
	}

	defer func() {
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if err := fn(tx); err != nil {
		return MapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return MapError(fmt.Errorf("platform/db: commit tx: %w", err))
	}

	return nil
}

// MapError translates PostgreSQL and context failures. Errors that already
// carry a shared kind pass through untouched.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if shared.KindOf(err) != "" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return shared.ErrTransactionTimeout.Wrap(err)
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "40001", "40P01":
		return shared.ErrSerializationFailure.Wrap(err)
	case "55P03":
		return shared.ErrLockWaitTimeout.Wrap(err)
	case "57014":
		return shared.ErrTransactionTimeout.Wrap(err)
	case "23505":
		if strings.HasSuffix(pgErr.ConstraintName, "_number_key") {
			return shared.ErrDuplicateNumber.Wrap(err)
		}
		if strings.HasPrefix(pgErr.ConstraintName, "idempotency_keys") {
			return shared.ErrIdempotencyConflict.Wrap(err)
		}
	case "23514":
		if strings.Contains(pgErr.ConstraintName, "quantity") {
			return shared.ErrBatchQuantityNegative.Wrap(err)
		}
	}
	return err
}
