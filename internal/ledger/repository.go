package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/vikasgargbear/production-infra-sub000/internal/platform/db"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

const entryColumns = `id, org_id, party_id, party_kind, transaction_date, transaction_type, reference_type, reference_id,
debit_amount, credit_amount, description`

// PGStore implements Store and ReadRepository with SQL. Bind it to a
// transaction for postings and to the pool for reports.
type PGStore struct {
	q db.Querier
}

// NewPGStore binds the store to q.
func NewPGStore(q db.Querier) *PGStore {
	return &PGStore{q: q}
}

func (s *PGStore) InsertEntry(ctx context.Context, e Entry) (int64, error) {
	var id int64
	err := s.q.QueryRow(ctx, `INSERT INTO party_ledger (org_id, party_id, party_kind, transaction_date, transaction_type,
reference_type, reference_id, debit_amount, credit_amount, description)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		e.OrgID, e.PartyID, string(e.PartyKind), e.TransactionDate, string(e.TransactionType), e.ReferenceType,
		e.ReferenceID, e.Debit, e.Credit, e.Description).Scan(&id)
	return id, err
}

func (s *PGStore) AdjustOutstanding(ctx context.Context, orgID uuid.UUID, customerID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	var outstanding decimal.Decimal
	err := s.q.QueryRow(ctx, `UPDATE customers SET outstanding_amount = outstanding_amount + $3, updated_at = NOW()
WHERE org_id=$1 AND id=$2 RETURNING outstanding_amount`, orgID, customerID, delta).Scan(&outstanding)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, shared.ErrCustomerNotFound
	}
	return outstanding, err
}

func (s *PGStore) PartyTotals(ctx context.Context, orgID uuid.UUID, kind PartyKind, partyID int64) (decimal.Decimal, decimal.Decimal, error) {
	var debit, credit decimal.Decimal
	err := s.q.QueryRow(ctx, `SELECT COALESCE(SUM(debit_amount), 0), COALESCE(SUM(credit_amount), 0)
FROM party_ledger WHERE org_id=$1 AND party_kind=$2 AND party_id=$3`, orgID, string(kind), partyID).Scan(&debit, &credit)
	return debit, credit, err
}

func (s *PGStore) GetEntry(ctx context.Context, orgID uuid.UUID, entryID int64) (Entry, error) {
	e, err := scanEntry(s.q.QueryRow(ctx, `SELECT `+entryColumns+` FROM party_ledger WHERE org_id=$1 AND id=$2`, orgID, entryID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, shared.ErrEntryNotFound
	}
	return e, err
}

func (s *PGStore) PartyExists(ctx context.Context, orgID uuid.UUID, kind PartyKind, partyID int64) (bool, error) {
	table := "customers"
	if kind == PartySupplier {
		table = "suppliers"
	}
	var exists bool
	err := s.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE org_id=$1 AND id=$2)`, orgID, partyID).Scan(&exists)
	return exists, err
}

func (s *PGStore) ListEntries(ctx context.Context, orgID uuid.UUID, kind PartyKind, partyID int64) ([]Entry, error) {
	rows, err := s.q.Query(ctx, `SELECT `+entryColumns+` FROM party_ledger
WHERE org_id=$1 AND party_kind=$2 AND party_id=$3 ORDER BY transaction_date, id`, orgID, string(kind), partyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PGStore) ListOpenInvoices(ctx context.Context, orgID uuid.UUID, customerID int64) ([]OpenInvoice, error) {
	rows, err := s.q.Query(ctx, `SELECT id, invoice_number, customer_id, customer_name, invoice_date, due_date, total_amount, paid_amount
FROM invoices
WHERE org_id=$1 AND ($2::bigint = 0 OR customer_id=$2) AND invoice_status NOT IN ('cancelled', 'paid', 'draft')
AND total_amount > paid_amount
ORDER BY due_date, id`, orgID, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var invoices []OpenInvoice
	for rows.Next() {
		var inv OpenInvoice
		if err := rows.Scan(&inv.InvoiceID, &inv.InvoiceNumber, &inv.CustomerID, &inv.CustomerName, &inv.InvoiceDate,
			&inv.DueDate, &inv.Total, &inv.Paid); err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	var kind, typ string
	err := row.Scan(&e.ID, &e.OrgID, &e.PartyID, &kind, &e.TransactionDate, &typ, &e.ReferenceType, &e.ReferenceID,
		&e.Debit, &e.Credit, &e.Description)
	e.PartyKind = PartyKind(kind)
	e.TransactionType = TransactionType(typ)
	return e, err
}
