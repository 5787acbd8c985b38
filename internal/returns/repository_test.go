package returns

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/suite"

	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

type RepositorySuite struct {
	suite.Suite
	mock pgxmock.PgxPoolIface
	tx   TxRepository
	org  uuid.UUID
}

func (s *RepositorySuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	s.Require().NoError(err)
	s.mock = mock
	s.tx = NewTxRepository(mock)
	s.org = uuid.New()
}

func (s *RepositorySuite) TearDownTest() {
	s.Require().NoError(s.mock.ExpectationsWereMet())
	s.mock.Close()
}

func (s *RepositorySuite) TestListReturnedQuantities() {
	s.mock.ExpectQuery(`SELECT ri.product_id, ri.batch_id, SUM\(ri.quantity\)`).
		WithArgs(s.org, int64(9)).
		WillReturnRows(pgxmock.NewRows([]string{"product_id", "batch_id", "sum"}).
			AddRow(int64(1), int64(10), int64(3)).
			AddRow(int64(1), int64(11), int64(2)))

	got, err := s.tx.ListReturnedQuantities(context.Background(), s.org, 9)
	s.Require().NoError(err)
	s.Equal([]ReturnedQuantity{{ProductID: 1, BatchID: 10, Quantity: 3}, {ProductID: 1, BatchID: 11, Quantity: 2}}, got)
}

func (s *RepositorySuite) TestSetNoteLedgerEntryMissingNote() {
	s.mock.ExpectExec(`UPDATE financial_notes SET ledger_entry_id`).
		WithArgs(s.org, int64(4), int64(40)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.tx.SetNoteLedgerEntry(context.Background(), s.org, 4, 40)
	s.Require().ErrorIs(err, shared.ErrNoteNotFound)
}

func (s *RepositorySuite) TestGetNoteForUpdateNotFound() {
	s.mock.ExpectQuery(`SELECT .* FROM financial_notes WHERE org_id=\$1 AND id=\$2 FOR UPDATE`).
		WithArgs(s.org, int64(5)).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.tx.GetNoteForUpdate(context.Background(), s.org, 5)
	s.Require().ErrorIs(err, shared.ErrNoteNotFound)
}

func (s *RepositorySuite) TestCancelNoteRecordTwice() {
	at := time.Date(2024, 12, 1, 10, 30, 0, 0, time.UTC)
	s.mock.ExpectExec(`UPDATE financial_notes SET status='cancelled'`).
		WithArgs(s.org, int64(6), "typo", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.tx.CancelNoteRecord(context.Background(), s.org, 6, "typo", at)
	s.Require().ErrorIs(err, shared.ErrAlreadyCancelled)
}

func (s *RepositorySuite) TestWithTxRollsBackOnError() {
	s.mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	s.mock.ExpectExec(`UPDATE financial_notes SET ledger_entry_id`).
		WithArgs(s.org, int64(4), int64(40)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	s.mock.ExpectRollback()

	err := NewRepository(s.mock, pgx.ReadCommitted).WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		return tx.SetNoteLedgerEntry(ctx, s.org, 4, 40)
	})
	s.Require().ErrorIs(err, shared.ErrNoteNotFound)
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}
