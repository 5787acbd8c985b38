package sales

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

type RepositorySuite struct {
	suite.Suite
	mock pgxmock.PgxPoolIface
	repo *Repository
	org  uuid.UUID
}

func (s *RepositorySuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	s.Require().NoError(err)
	s.mock = mock
	s.repo = NewRepository(mock, pgx.ReadCommitted)
	s.org = uuid.New()
}

func (s *RepositorySuite) TearDownTest() {
	s.Require().NoError(s.mock.ExpectationsWereMet())
	s.mock.Close()
}

func (s *RepositorySuite) TestInsertPaymentInsideTransaction() {
	at := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	s.mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	s.mock.ExpectQuery(`INSERT INTO invoice_payments`).
		WithArgs(s.org, int64(4), "PAY202412010001", at, "upi", pgxmock.AnyArg(), "UTR1", PaymentCompleted).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(12)))
	s.mock.ExpectCommit()
	s.mock.ExpectRollback()

	var id int64
	err := s.repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		var err error
		id, err = tx.InsertPayment(ctx, Payment{
			OrgID: s.org, InvoiceID: 4, PaymentNumber: "PAY202412010001", PaymentDate: at,
			Mode: ModeUPI, Amount: decimal.NewFromInt(500), Reference: "UTR1", Status: PaymentCompleted,
		})
		return err
	})
	s.Require().NoError(err)
	s.Equal(int64(12), id)
}

func (s *RepositorySuite) TestCancelInvoiceRecordTwice() {
	at := time.Date(2024, 12, 2, 9, 0, 0, 0, time.UTC)
	s.mock.ExpectExec(`UPDATE invoices SET invoice_status='cancelled'`).
		WithArgs(s.org, int64(3), "duplicate", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := NewTxRepository(s.mock).CancelInvoiceRecord(context.Background(), s.org, 3, "duplicate", at)
	s.Require().ErrorIs(err, shared.ErrAlreadyCancelled)
}

func (s *RepositorySuite) TestUpdateOrderStatusMissingOrder() {
	s.mock.ExpectExec(`UPDATE orders SET status`).
		WithArgs(s.org, int64(8), "cancelled").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := NewTxRepository(s.mock).UpdateOrderStatus(context.Background(), s.org, 8, OrderCancelled)
	s.Require().ErrorIs(err, shared.ErrOrderNotFound)
}

func (s *RepositorySuite) TestInvoiceHasReturnsIgnoresCancelled() {
	s.mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM return_requests .* status <> 'cancelled'\)`).
		WithArgs(s.org, int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := NewTxRepository(s.mock).InvoiceHasReturns(context.Background(), s.org, 5)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *RepositorySuite) TestGetInvoiceForUpdateNotFound() {
	s.mock.ExpectQuery(`SELECT .* FROM invoices WHERE org_id=\$1 AND id=\$2 FOR UPDATE`).
		WithArgs(s.org, int64(77)).
		WillReturnError(pgx.ErrNoRows)

	_, err := NewInvoiceStore(s.mock).GetInvoiceForUpdate(context.Background(), s.org, 77)
	s.Require().ErrorIs(err, shared.ErrInvoiceNotFound)
}

func (s *RepositorySuite) TestGetOrderForUpdateNotFound() {
	s.mock.ExpectQuery(`SELECT .* FROM orders WHERE org_id=\$1 AND id=\$2 FOR UPDATE`).
		WithArgs(s.org, int64(6)).
		WillReturnError(pgx.ErrNoRows)

	_, err := NewTxRepository(s.mock).GetOrderForUpdate(context.Background(), s.org, 6)
	s.Require().ErrorIs(err, shared.ErrOrderNotFound)
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}
