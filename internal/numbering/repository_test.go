package numbering

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/suite"
)

type PGStoreSuite struct {
	suite.Suite
	mock  pgxmock.PgxPoolIface
	store *PGStore
	org   uuid.UUID
}

func (s *PGStoreSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	s.Require().NoError(err)
	s.mock = mock
	s.store = NewPGStore(mock)
	s.org = uuid.New()
}

func (s *PGStoreSuite) TearDownTest() {
	s.Require().NoError(s.mock.ExpectationsWereMet())
	s.mock.Close()
}

func (s *PGStoreSuite) TestLockSequenceUsesAdvisoryLock() {
	s.mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
		WithArgs("numbering:" + s.org.String() + ":invoice").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	s.Require().NoError(s.store.LockSequence(context.Background(), s.org, KindInvoice))
}

func (s *PGStoreSuite) TestLastNumberReadsHighest() {
	s.mock.ExpectQuery(`SELECT COALESCE\(\(SELECT invoice_number FROM invoices`).
		WithArgs(s.org, "INV2425%").
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow("INV242500041"))

	last, err := s.store.LastNumber(context.Background(), s.org, KindInvoice, "INV2425")
	s.Require().NoError(err)
	s.Equal("INV242500041", last)
}

func (s *PGStoreSuite) TestNumberExistsFiltersNotes() {
	s.mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM financial_notes`).
		WithArgs(s.org, "CN-20241015-143052").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := s.store.NumberExists(context.Background(), s.org, KindCreditNote, "CN-20241015-143052")
	s.Require().NoError(err)
	s.True(exists)
}

func TestPGStoreSuite(t *testing.T) {
	suite.Run(t, new(PGStoreSuite))
}
