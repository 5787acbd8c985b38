package numbering

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vikasgargbear/production-infra-sub000/internal/platform/db"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

type column struct {
	table  string
	column string
	filter string
}

var columns = map[Kind]column{
	KindOrder:      {table: "orders", column: "order_number"},
	KindInvoice:    {table: "invoices", column: "invoice_number"},
	KindPayment:    {table: "invoice_payments", column: "payment_number"},
	KindReturn:     {table: "return_requests", column: "return_number"},
	KindCreditNote: {table: "financial_notes", column: "note_number", filter: " AND note_type='credit'"},
	KindDebitNote:  {table: "financial_notes", column: "note_number", filter: " AND note_type='debit'"},
}

// PGStore implements Store on a pgx transaction.
type PGStore struct {
	q db.Querier
}

// NewPGStore binds the store to q.
func NewPGStore(q db.Querier) *PGStore {
	return &PGStore{q: q}
}

// LockSequence takes a transaction-scoped advisory lock.
func (s *PGStore) LockSequence(ctx context.Context, orgID uuid.UUID, kind Kind) error {
	_, err := s.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, shared.SequenceLockKey(orgID, string(kind)))
	return err
}

// LastNumber returns the highest number bearing prefix.
func (s *PGStore) LastNumber(ctx context.Context, orgID uuid.UUID, kind Kind, prefix string) (string, error) {
	col, ok := columns[kind]
	if !ok {
		return "", fmt.Errorf("numbering: unknown kind %q", kind)
	}
	var last string
	query := fmt.Sprintf(`SELECT COALESCE((SELECT %[2]s FROM %[1]s WHERE org_id=$1 AND %[2]s LIKE $2%[3]s
ORDER BY length(%[2]s) DESC, %[2]s DESC LIMIT 1), '')`, col.table, col.column, col.filter)
	if err := s.q.QueryRow(ctx, query, orgID, prefix+"%").Scan(&last); err != nil {
		return "", err
	}
	return last, nil
}

// NumberExists checks a single number.
func (s *PGStore) NumberExists(ctx context.Context, orgID uuid.UUID, kind Kind, number string) (bool, error) {
	col, ok := columns[kind]
	if !ok {
		return false, fmt.Errorf("numbering: unknown kind %q", kind)
	}
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %[1]s WHERE org_id=$1 AND %[2]s=$2)`, col.table, col.column)
	if err := s.q.QueryRow(ctx, query, orgID, number).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
