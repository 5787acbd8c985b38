package returns

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vikasgargbear/production-infra-sub000/internal/inventory"
	"github.com/vikasgargbear/production-infra-sub000/internal/ledger"
	"github.com/vikasgargbear/production-infra-sub000/internal/masterdata"
	"github.com/vikasgargbear/production-infra-sub000/internal/numbering"
	"github.com/vikasgargbear/production-infra-sub000/internal/platform/db"
	"github.com/vikasgargbear/production-infra-sub000/internal/sales"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
	"github.com/vikasgargbear/production-infra-sub000/internal/tax"
)

// Repository provides PostgreSQL backed persistence for returns and notes.
type Repository struct {
	pool db.Beginner
	iso  pgx.TxIsoLevel
}

// NewRepository constructs a repository.
func NewRepository(pool db.Beginner, iso pgx.TxIsoLevel) *Repository {
	return &Repository{pool: pool, iso: iso}
}

type (
	masterStore    = masterdata.TxStore
	inventoryStore = inventory.PGStore
	ledgerStore    = ledger.PGStore
	numberStore    = numbering.PGStore
	invoiceStore   = sales.InvoiceStore
)

type txRepo struct {
	*masterStore
	*inventoryStore
	*ledgerStore
	*numberStore
	*invoiceStore
	q db.Querier
}

// NewTxRepository binds every store to one transaction.
func NewTxRepository(q db.Querier) TxRepository {
	return &txRepo{
		masterStore:    masterdata.NewTxStore(q),
		inventoryStore: inventory.NewPGStore(q),
		ledgerStore:    ledger.NewPGStore(q),
		numberStore:    numbering.NewPGStore(q),
		invoiceStore:   sales.NewInvoiceStore(q),
		q:              q,
	}
}

// WithTx wraps callback in a transaction at the configured isolation.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, r.iso, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// ============================================================================
// RETURN OPERATIONS
// ============================================================================

func (r *txRepo) ListReturnedQuantities(ctx context.Context, orgID uuid.UUID, invoiceID int64) ([]ReturnedQuantity, error) {
	rows, err := r.q.Query(ctx, `SELECT ri.product_id, ri.batch_id, SUM(ri.quantity)
FROM return_items ri JOIN return_requests rr ON rr.id = ri.return_id
WHERE rr.org_id=$1 AND rr.invoice_id=$2 AND rr.return_type='sales' AND rr.status <> 'cancelled'
GROUP BY ri.product_id, ri.batch_id ORDER BY ri.product_id, ri.batch_id`, orgID, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ReturnedQuantity
	for rows.Next() {
		var q ReturnedQuantity
		if err := rows.Scan(&q.ProductID, &q.BatchID, &q.Quantity); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *txRepo) InsertReturn(ctx context.Context, ret Return) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `INSERT INTO return_requests (org_id, return_number, return_type, invoice_id, customer_id,
supplier_id, return_date, reason, status, gst_type, taxable_amount, cgst_amount, sgst_amount, igst_amount, tax_amount,
round_off, total_amount, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18) RETURNING id`,
		ret.OrgID, ret.ReturnNumber, string(ret.Type), ret.InvoiceID, ret.CustomerID, ret.SupplierID, ret.ReturnDate,
		ret.Reason, string(ret.Status), string(ret.GSTType), ret.TaxableAmount, ret.CGSTAmount, ret.SGSTAmount,
		ret.IGSTAmount, ret.TaxAmount, ret.RoundOff, ret.TotalAmount, ret.CreatedBy).Scan(&id)
	return id, err
}

func (r *txRepo) InsertReturnItem(ctx context.Context, item ReturnItem) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `INSERT INTO return_items (org_id, return_id, product_id, batch_id, quantity, return_price,
discount_percent, tax_percent, taxable_amount, tax_amount, total_amount)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		item.OrgID, item.ReturnID, item.ProductID, item.BatchID, item.Quantity, item.ReturnPrice, item.DiscountPercent,
		item.TaxPercent, item.TaxableAmount, item.TaxAmount, item.TotalAmount).Scan(&id)
	return id, err
}

// ============================================================================
// NOTE OPERATIONS
// ============================================================================

const noteColumns = `id, org_id, note_number, note_type, party_kind, party_id, invoice_id, return_id, note_date, reason,
gst_type, taxable_amount, gst_percent, cgst_amount, sgst_amount, igst_amount, tax_amount, total_amount, status,
COALESCE(ledger_entry_id, 0), COALESCE(cancel_reason, ''), cancelled_at, created_by`

func (r *txRepo) InsertNote(ctx context.Context, n Note) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `INSERT INTO financial_notes (org_id, note_number, note_type, party_kind, party_id, invoice_id,
return_id, note_date, reason, gst_type, taxable_amount, gst_percent, cgst_amount, sgst_amount, igst_amount, tax_amount,
total_amount, status, ledger_entry_id, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20) RETURNING id`,
		n.OrgID, n.NoteNumber, string(n.Type), string(n.PartyKind), n.PartyID, n.InvoiceID, n.ReturnID, n.NoteDate,
		n.Reason, string(n.GSTType), n.TaxableAmount, n.GSTPercent, n.CGSTAmount, n.SGSTAmount, n.IGSTAmount,
		n.TaxAmount, n.TotalAmount, string(n.Status), nullID(n.LedgerEntryID), n.CreatedBy).Scan(&id)
	return id, err
}

func (r *txRepo) SetNoteLedgerEntry(ctx context.Context, orgID uuid.UUID, noteID, entryID int64) error {
	tag, err := r.q.Exec(ctx, `UPDATE financial_notes SET ledger_entry_id=$3, updated_at=NOW() WHERE org_id=$1 AND id=$2`,
		orgID, noteID, entryID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNoteNotFound
	}
	return nil
}

func (r *txRepo) GetNoteForUpdate(ctx context.Context, orgID uuid.UUID, noteID int64) (Note, error) {
	var n Note
	var typ, kind, gstType, status string
	err := r.q.QueryRow(ctx, `SELECT `+noteColumns+` FROM financial_notes WHERE org_id=$1 AND id=$2 FOR UPDATE`, orgID, noteID).
		Scan(&n.ID, &n.OrgID, &n.NoteNumber, &typ, &kind, &n.PartyID, &n.InvoiceID, &n.ReturnID, &n.NoteDate,
			&n.Reason, &gstType, &n.TaxableAmount, &n.GSTPercent, &n.CGSTAmount, &n.SGSTAmount, &n.IGSTAmount,
			&n.TaxAmount, &n.TotalAmount, &status, &n.LedgerEntryID, &n.CancelReason, &n.CancelledAt, &n.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Note{}, shared.ErrNoteNotFound
		}
		return Note{}, err
	}
	n.Type = NoteType(typ)
	n.PartyKind = ledger.PartyKind(kind)
	n.GSTType = tax.GSTType(gstType)
	n.Status = NoteStatus(status)
	return n, nil
}

func (r *txRepo) CancelNoteRecord(ctx context.Context, orgID uuid.UUID, noteID int64, reason string, at time.Time) error {
	tag, err := r.q.Exec(ctx, `UPDATE financial_notes SET status='cancelled', cancel_reason=$3, cancelled_at=$4,
updated_at=NOW() WHERE org_id=$1 AND id=$2 AND status <> 'cancelled'`, orgID, noteID, reason, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrAlreadyCancelled
	}
	return nil
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
