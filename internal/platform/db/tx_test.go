package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

func TestWithTxCommits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectExec("UPDATE batches").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	err = WithTx(context.Background(), mock, pgx.ReadCommitted, func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), "UPDATE batches SET status='active'")
		return err
	})
	require.NoError(t, err)
}

func TestWithTxMapsSerializationFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	mock.ExpectExec("UPDATE batches").WillReturnError(&pgconn.PgError{Code: "40001"})
	mock.ExpectRollback()

	err = WithTx(context.Background(), mock, pgx.RepeatableRead, func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), "UPDATE batches SET status='active'")
		return err
	})
	require.ErrorIs(t, err, shared.ErrSerializationFailure)
	require.True(t, shared.IsKind(err, shared.KindTransient))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"deadlock", &pgconn.PgError{Code: "40P01"}, shared.ErrSerializationFailure},
		{"lock timeout", &pgconn.PgError{Code: "55P03"}, shared.ErrLockWaitTimeout},
		{"invoice number", &pgconn.PgError{Code: "23505", ConstraintName: "invoices_org_id_invoice_number_key"}, shared.ErrDuplicateNumber},
		{"idempotency", &pgconn.PgError{Code: "23505", ConstraintName: "idempotency_keys_pkey"}, shared.ErrIdempotencyConflict},
		{"deadline", context.DeadlineExceeded, shared.ErrTransactionTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, MapError(tc.in), tc.want)
		})
	}

	plain := errors.New("boom")
	require.Equal(t, plain, MapError(plain))
	require.Equal(t, shared.ErrCustomerNotFound, MapError(shared.ErrCustomerNotFound))
}

func TestParseIsolation(t *testing.T) {
	iso, err := ParseIsolation("")
	require.NoError(t, err)
	require.Equal(t, pgx.ReadCommitted, iso)

	iso, err = ParseIsolation("repeatable_read")
	require.NoError(t, err)
	require.Equal(t, pgx.RepeatableRead, iso)

	_, err = ParseIsolation("chaos")
	require.Error(t, err)
}
