package masterdata

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/vikasgargbear/production-infra-sub000/internal/platform/db"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

const customerColumns = `id, org_id, name, phone, address, state_code, COALESCE(gstin, ''), credit_limit, credit_period_days,
outstanding_amount, loyalty_points, total_business, last_order_at`

// Repository reads master data outside of business transactions.
type Repository struct {
	q db.Querier
}

// NewRepository constructs Repository on a pool.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

// GetCustomer returns a customer without locking.
func (r *Repository) GetCustomer(ctx context.Context, orgID uuid.UUID, customerID int64) (Customer, error) {
	return scanCustomer(r.q.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE org_id=$1 AND id=$2`, orgID, customerID))
}

// GetProduct returns a product.
func (r *Repository) GetProduct(ctx context.Context, orgID uuid.UUID, productID int64) (Product, error) {
	return NewTxStore(r.q).GetProduct(ctx, orgID, productID)
}

// TxStore implements TxReader on a transaction.
type TxStore struct {
	q db.Querier
}

// NewTxStore binds the store to q.
func NewTxStore(q db.Querier) *TxStore {
	return &TxStore{q: q}
}

func (s *TxStore) GetOrganisation(ctx context.Context, orgID uuid.UUID) (Organisation, error) {
	var o Organisation
	err := s.q.QueryRow(ctx, `SELECT id, name, state_code, COALESCE(gstin, ''), address FROM organisations WHERE id=$1`, orgID).
		Scan(&o.ID, &o.Name, &o.StateCode, &o.GSTIN, &o.Address)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Organisation{}, shared.ErrOrgNotFound
		}
		return Organisation{}, err
	}
	return o, nil
}

func (s *TxStore) GetCustomerForUpdate(ctx context.Context, orgID uuid.UUID, customerID int64) (Customer, error) {
	return scanCustomer(s.q.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE org_id=$1 AND id=$2 FOR UPDATE`, orgID, customerID))
}

func (s *TxStore) GetSupplier(ctx context.Context, orgID uuid.UUID, supplierID int64) (Supplier, error) {
	var sup Supplier
	err := s.q.QueryRow(ctx, `SELECT id, org_id, name, phone, state_code, COALESCE(gstin, '') FROM suppliers WHERE org_id=$1 AND id=$2`, orgID, supplierID).
		Scan(&sup.ID, &sup.OrgID, &sup.Name, &sup.Phone, &sup.StateCode, &sup.GSTIN)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Supplier{}, shared.ErrSupplierNotFound
		}
		return Supplier{}, err
	}
	return sup, nil
}

func (s *TxStore) GetProduct(ctx context.Context, orgID uuid.UUID, productID int64) (Product, error) {
	var p Product
	err := s.q.QueryRow(ctx, `SELECT id, org_id, name, hsn_code, gst_percent, mrp, sale_price, minimum_stock_level, prescription_required
FROM products WHERE org_id=$1 AND id=$2`, orgID, productID).
		Scan(&p.ID, &p.OrgID, &p.Name, &p.HSNCode, &p.GSTPercent, &p.MRP, &p.SalePrice, &p.MinimumStockLevel, &p.PrescriptionRequired)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.ErrProductNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (s *TxStore) RecordCustomerSale(ctx context.Context, orgID uuid.UUID, customerID int64, amount decimal.Decimal, points int64, at time.Time) error {
	tag, err := s.q.Exec(ctx, `UPDATE customers SET total_business = total_business + $3, loyalty_points = loyalty_points + $4,
last_order_at = $5, updated_at = NOW() WHERE org_id=$1 AND id=$2`, orgID, customerID, amount, points, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrCustomerNotFound
	}
	return nil
}

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.OrgID, &c.Name, &c.Phone, &c.Address, &c.StateCode, &c.GSTIN, &c.CreditLimit, &c.CreditPeriodDays,
		&c.OutstandingAmount, &c.LoyaltyPoints, &c.TotalBusiness, &c.LastOrderAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, shared.ErrCustomerNotFound
		}
		return Customer{}, err
	}
	return c, nil
}
