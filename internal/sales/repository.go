package sales

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/vikasgargbear/production-infra-sub000/internal/inventory"
	"github.com/vikasgargbear/production-infra-sub000/internal/ledger"
	"github.com/vikasgargbear/production-infra-sub000/internal/masterdata"
	"github.com/vikasgargbear/production-infra-sub000/internal/numbering"
	"github.com/vikasgargbear/production-infra-sub000/internal/platform/db"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
	"github.com/vikasgargbear/production-infra-sub000/internal/tax"
)

// InvoiceReader loads invoices for follow-up documents.
type InvoiceReader interface {
	// GetInvoiceForUpdate locks the invoice row until the transaction ends.
	GetInvoiceForUpdate(ctx context.Context, orgID uuid.UUID, invoiceID int64) (Invoice, error)
	ListInvoiceItems(ctx context.Context, orgID uuid.UUID, invoiceID int64) ([]InvoiceItem, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	masterdata.TxReader
	inventory.Store
	ledger.Store
	numbering.Store
	InvoiceReader

	LookupIdempotent(ctx context.Context, orgID uuid.UUID, module, key string) ([]byte, bool, error)
	SaveIdempotent(ctx context.Context, orgID uuid.UUID, module, key string, result []byte) error

	// Order operations
	InsertOrder(ctx context.Context, order Order) (int64, error)
	InsertOrderItem(ctx context.Context, item OrderItem) (int64, error)
	GetOrderForUpdate(ctx context.Context, orgID uuid.UUID, orderID int64) (Order, error)
	UpdateOrderPayment(ctx context.Context, orgID uuid.UUID, orderID int64, paid, balance decimal.Decimal, status PaymentStatus) error
	UpdateOrderStatus(ctx context.Context, orgID uuid.UUID, orderID int64, status OrderStatus) error

	// Invoice operations
	InsertInvoice(ctx context.Context, invoice Invoice) (int64, error)
	InsertInvoiceItem(ctx context.Context, item InvoiceItem) (int64, error)
	UpdateInvoicePayment(ctx context.Context, orgID uuid.UUID, invoiceID int64, paid, balance decimal.Decimal, status InvoiceStatus) error
	CancelInvoiceRecord(ctx context.Context, orgID uuid.UUID, invoiceID int64, reason string, at time.Time) error
	InvoiceHasReturns(ctx context.Context, orgID uuid.UUID, invoiceID int64) (bool, error)

	// Payment operations
	InsertPayment(ctx context.Context, payment Payment) (int64, error)
}

// Repository provides PostgreSQL backed persistence for sales operations.
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
)

type txRepo struct {
	*masterStore
	*inventoryStore
	*ledgerStore
	*numberStore
	*shared.IdempotencyStore
	*InvoiceStore
	q db.Querier
}

// NewTxRepository binds every store to one transaction.
func NewTxRepository(q db.Querier) TxRepository {
	return &txRepo{
		masterStore:      masterdata.NewTxStore(q),
		inventoryStore:   inventory.NewPGStore(q),
		ledgerStore:      ledger.NewPGStore(q),
		numberStore:      numbering.NewPGStore(q),
		IdempotencyStore: shared.NewIdempotencyStore(q),
		InvoiceStore:     NewInvoiceStore(q),
		q:                q,
	}
}

// WithTx wraps callback in a transaction at the configured isolation.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, r.iso, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// ============================================================================
// ORDER OPERATIONS
// ============================================================================

const orderColumns = `id, org_id, order_number, customer_id, customer_name, customer_phone, order_date, status, subtotal,
discount_amount, tax_amount, delivery_charges, other_charges, round_off, final_amount, paid_amount, balance_amount,
payment_mode, payment_status, COALESCE(invoice_number, ''), billing_address, shipping_address, notes, created_by`

func (r *txRepo) InsertOrder(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `INSERT INTO orders (org_id, order_number, customer_id, customer_name, customer_phone, order_date,
status, subtotal, discount_amount, tax_amount, delivery_charges, other_charges, round_off, final_amount, paid_amount,
balance_amount, payment_mode, payment_status, invoice_number, billing_address, shipping_address, notes, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
RETURNING id`,
		o.OrgID, o.OrderNumber, o.CustomerID, o.CustomerName, o.CustomerPhone, o.OrderDate, string(o.Status),
		o.Subtotal, o.DiscountAmount, o.TaxAmount, o.DeliveryCharges, o.OtherCharges, o.RoundOff, o.FinalAmount,
		o.PaidAmount, o.BalanceAmount, string(o.PaymentMode), string(o.PaymentStatus), nullString(o.InvoiceNumber),
		o.BillingAddress, o.ShippingAddress, o.Notes, o.CreatedBy).Scan(&id)
	return id, err
}

func (r *txRepo) InsertOrderItem(ctx context.Context, item OrderItem) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `INSERT INTO order_items (org_id, order_id, product_id, batch_id, quantity, unit_price,
discount_percent, discount_amount, tax_percent, tax_amount, line_total, total_price)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`,
		item.OrgID, item.OrderID, item.ProductID, item.BatchID, item.Quantity, item.UnitPrice, item.DiscountPercent,
		item.DiscountAmount, item.TaxPercent, item.TaxAmount, item.LineTotal, item.TotalPrice).Scan(&id)
	return id, err
}

func (r *txRepo) GetOrderForUpdate(ctx context.Context, orgID uuid.UUID, orderID int64) (Order, error) {
	var o Order
	var status, mode, paymentStatus string
	err := r.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE org_id=$1 AND id=$2 FOR UPDATE`, orgID, orderID).
		Scan(&o.ID, &o.OrgID, &o.OrderNumber, &o.CustomerID, &o.CustomerName, &o.CustomerPhone, &o.OrderDate, &status,
			&o.Subtotal, &o.DiscountAmount, &o.TaxAmount, &o.DeliveryCharges, &o.OtherCharges, &o.RoundOff, &o.FinalAmount,
			&o.PaidAmount, &o.BalanceAmount, &mode, &paymentStatus, &o.InvoiceNumber, &o.BillingAddress,
			&o.ShippingAddress, &o.Notes, &o.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, shared.ErrOrderNotFound
		}
		return Order{}, err
	}
	o.Status = OrderStatus(status)
	o.PaymentMode = PaymentMode(mode)
	o.PaymentStatus = PaymentStatus(paymentStatus)
	return o, nil
}

func (r *txRepo) UpdateOrderPayment(ctx context.Context, orgID uuid.UUID, orderID int64, paid, balance decimal.Decimal, status PaymentStatus) error {
	tag, err := r.q.Exec(ctx, `UPDATE orders SET paid_amount=$3, balance_amount=$4, payment_status=$5, updated_at=NOW()
WHERE org_id=$1 AND id=$2`, orgID, orderID, paid, balance, string(status))
	return requireRow(tag, err, shared.ErrOrderNotFound)
}

func (r *txRepo) UpdateOrderStatus(ctx context.Context, orgID uuid.UUID, orderID int64, status OrderStatus) error {
	tag, err := r.q.Exec(ctx, `UPDATE orders SET status=$3, updated_at=NOW() WHERE org_id=$1 AND id=$2`,
		orgID, orderID, string(status))
	return requireRow(tag, err, shared.ErrOrderNotFound)
}

// ============================================================================
// INVOICE OPERATIONS
// ============================================================================

func (r *txRepo) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `INSERT INTO invoices (org_id, invoice_number, order_id, customer_id, customer_name, customer_phone,
customer_gstin, billing_address, shipping_address, place_of_supply, invoice_date, due_date, gst_type, subtotal,
discount_amount, taxable_amount, cgst_amount, sgst_amount, igst_amount, total_tax_amount, delivery_charges,
other_charges, round_off, total_amount, paid_amount, balance, invoice_status, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24,
$25, $26, $27, $28) RETURNING id`,
		inv.OrgID, inv.InvoiceNumber, inv.OrderID, inv.CustomerID, inv.CustomerName, inv.CustomerPhone,
		nullString(inv.CustomerGSTIN), inv.BillingAddress, inv.ShippingAddress, inv.PlaceOfSupply, inv.InvoiceDate,
		inv.DueDate, string(inv.GSTType), inv.Subtotal, inv.DiscountAmount, inv.TaxableAmount, inv.CGSTAmount,
		inv.SGSTAmount, inv.IGSTAmount, inv.TotalTaxAmount, inv.DeliveryCharges, inv.OtherCharges, inv.RoundOff,
		inv.TotalAmount, inv.PaidAmount, inv.Balance, string(inv.Status), inv.CreatedBy).Scan(&id)
	return id, err
}

func (r *txRepo) InsertInvoiceItem(ctx context.Context, item InvoiceItem) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `INSERT INTO invoice_items (org_id, invoice_id, product_id, product_name, hsn_code, batch_id,
batch_number, quantity, unit_price, discount_percent, discount_amount, taxable_amount, tax_percent, cgst_amount,
sgst_amount, igst_amount, tax_amount, line_total, total_price)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19) RETURNING id`,
		item.OrgID, item.InvoiceID, item.ProductID, item.ProductName, item.HSNCode, item.BatchID, item.BatchNumber,
		item.Quantity, item.UnitPrice, item.DiscountPercent, item.DiscountAmount, item.TaxableAmount, item.TaxPercent,
		item.CGSTAmount, item.SGSTAmount, item.IGSTAmount, item.TaxAmount, item.LineTotal, item.TotalPrice).Scan(&id)
	return id, err
}

func (r *txRepo) UpdateInvoicePayment(ctx context.Context, orgID uuid.UUID, invoiceID int64, paid, balance decimal.Decimal, status InvoiceStatus) error {
	tag, err := r.q.Exec(ctx, `UPDATE invoices SET paid_amount=$3, balance=$4, invoice_status=$5, updated_at=NOW()
WHERE org_id=$1 AND id=$2`, orgID, invoiceID, paid, balance, string(status))
	return requireRow(tag, err, shared.ErrInvoiceNotFound)
}

func (r *txRepo) CancelInvoiceRecord(ctx context.Context, orgID uuid.UUID, invoiceID int64, reason string, at time.Time) error {
	tag, err := r.q.Exec(ctx, `UPDATE invoices SET invoice_status='cancelled', cancel_reason=$3, cancelled_at=$4,
updated_at=NOW() WHERE org_id=$1 AND id=$2 AND invoice_status <> 'cancelled'`, orgID, invoiceID, reason, at)
	return requireRow(tag, err, shared.ErrAlreadyCancelled)
}

func (r *txRepo) InvoiceHasReturns(ctx context.Context, orgID uuid.UUID, invoiceID int64) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM return_requests WHERE org_id=$1 AND invoice_id=$2
AND status <> 'cancelled')`, orgID, invoiceID).Scan(&exists)
	return exists, err
}

// ============================================================================
// PAYMENT OPERATIONS
// ============================================================================

func (r *txRepo) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `INSERT INTO invoice_payments (org_id, invoice_id, payment_number, payment_date, payment_mode,
amount, reference, status) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		p.OrgID, p.InvoiceID, p.PaymentNumber, p.PaymentDate, string(p.Mode), p.Amount, p.Reference, p.Status).Scan(&id)
	return id, err
}

// ============================================================================
// INVOICE READS
// ============================================================================

const invoiceColumns = `id, org_id, invoice_number, order_id, customer_id, customer_name, customer_phone,
COALESCE(customer_gstin, ''), billing_address, shipping_address, place_of_supply, invoice_date, due_date, gst_type,
subtotal, discount_amount, taxable_amount, cgst_amount, sgst_amount, igst_amount, total_tax_amount, delivery_charges,
other_charges, round_off, total_amount, paid_amount, balance, invoice_status, COALESCE(cancel_reason, ''),
cancelled_at, created_by`

const invoiceItemColumns = `id, org_id, invoice_id, product_id, product_name, hsn_code, batch_id, COALESCE(batch_number, ''),
quantity, unit_price, discount_percent, discount_amount, taxable_amount, tax_percent, cgst_amount, sgst_amount,
igst_amount, tax_amount, line_total, total_price`

// InvoiceStore implements InvoiceReader with SQL.
type InvoiceStore struct {
	q db.Querier
}

// NewInvoiceStore binds the store to q.
func NewInvoiceStore(q db.Querier) *InvoiceStore {
	return &InvoiceStore{q: q}
}

func (s *InvoiceStore) GetInvoiceForUpdate(ctx context.Context, orgID uuid.UUID, invoiceID int64) (Invoice, error) {
	var inv Invoice
	var gstType, status string
	err := s.q.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE org_id=$1 AND id=$2 FOR UPDATE`, orgID, invoiceID).
		Scan(&inv.ID, &inv.OrgID, &inv.InvoiceNumber, &inv.OrderID, &inv.CustomerID, &inv.CustomerName, &inv.CustomerPhone,
			&inv.CustomerGSTIN, &inv.BillingAddress, &inv.ShippingAddress, &inv.PlaceOfSupply, &inv.InvoiceDate,
			&inv.DueDate, &gstType, &inv.Subtotal, &inv.DiscountAmount, &inv.TaxableAmount, &inv.CGSTAmount,
			&inv.SGSTAmount, &inv.IGSTAmount, &inv.TotalTaxAmount, &inv.DeliveryCharges, &inv.OtherCharges,
			&inv.RoundOff, &inv.TotalAmount, &inv.PaidAmount, &inv.Balance, &status, &inv.CancelReason,
			&inv.CancelledAt, &inv.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, shared.ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	inv.GSTType = tax.GSTType(gstType)
	inv.Status = InvoiceStatus(status)
	return inv, nil
}

func (s *InvoiceStore) ListInvoiceItems(ctx context.Context, orgID uuid.UUID, invoiceID int64) ([]InvoiceItem, error) {
	rows, err := s.q.Query(ctx, `SELECT `+invoiceItemColumns+` FROM invoice_items WHERE org_id=$1 AND invoice_id=$2
ORDER BY id`, orgID, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []InvoiceItem
	for rows.Next() {
		var it InvoiceItem
		if err := rows.Scan(&it.ID, &it.OrgID, &it.InvoiceID, &it.ProductID, &it.ProductName, &it.HSNCode, &it.BatchID,
			&it.BatchNumber, &it.Quantity, &it.UnitPrice, &it.DiscountPercent, &it.DiscountAmount, &it.TaxableAmount,
			&it.TaxPercent, &it.CGSTAmount, &it.SGSTAmount, &it.IGSTAmount, &it.TaxAmount, &it.LineTotal,
			&it.TotalPrice); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ============================================================================
// HELPERS
// ============================================================================

func requireRow(tag pgconn.CommandTag, err error, missing error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return missing
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
