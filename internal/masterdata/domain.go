// Package masterdata holds the parties and products the engine reads.
package masterdata

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Organisation is the seller side of every document.
type Organisation struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	StateCode string    `json:"state_code"`
	GSTIN     string    `json:"gstin"`
	Address   string    `json:"address"`
}

// Customer is a buyer with a credit account.
type Customer struct {
	ID                int64           `json:"id"`
	OrgID             uuid.UUID       `json:"org_id"`
	Name              string          `json:"name"`
	Phone             string          `json:"phone"`
	Address           string          `json:"address"`
	StateCode         string          `json:"state_code"`
	GSTIN             string          `json:"gstin,omitempty"`
	CreditLimit       decimal.Decimal `json:"credit_limit"`
	CreditPeriodDays  int             `json:"credit_period_days"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
	LoyaltyPoints     int64           `json:"loyalty_points"`
	TotalBusiness     decimal.Decimal `json:"total_business"`
	LastOrderAt       *time.Time      `json:"last_order_at,omitempty"`
}

// HasGSTIN reports whether the customer is GST registered.
func (c Customer) HasGSTIN() bool { return c.GSTIN != "" }

// Supplier provides batches.
type Supplier struct {
	ID        int64     `json:"id"`
	OrgID     uuid.UUID `json:"org_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	StateCode string    `json:"state_code"`
	GSTIN     string    `json:"gstin,omitempty"`
}

// HasGSTIN reports whether the supplier is GST registered.
func (s Supplier) HasGSTIN() bool { return s.GSTIN != "" }

// Product is a logical grouping over batches; it carries no stock.
type Product struct {
	ID                   int64               `json:"id"`
	OrgID                uuid.UUID           `json:"org_id"`
	Name                 string              `json:"name"`
	HSNCode              string              `json:"hsn_code"`
	GSTPercent           decimal.NullDecimal `json:"gst_percent"`
	MRP                  decimal.Decimal     `json:"mrp"`
	SalePrice            decimal.Decimal     `json:"sale_price"`
	MinimumStockLevel    int64               `json:"minimum_stock_level"`
	PrescriptionRequired bool                `json:"prescription_required"`
}

// TxReader is the transactional view of master data used by the engine.
type TxReader interface {
	GetOrganisation(ctx context.Context, orgID uuid.UUID) (Organisation, error)
	// GetCustomerForUpdate locks the customer row until the transaction ends.
	GetCustomerForUpdate(ctx context.Context, orgID uuid.UUID, customerID int64) (Customer, error)
	GetSupplier(ctx context.Context, orgID uuid.UUID, supplierID int64) (Supplier, error)
	GetProduct(ctx context.Context, orgID uuid.UUID, productID int64) (Product, error)
	// RecordCustomerSale updates business metrics and loyalty points.
	RecordCustomerSale(ctx context.Context, orgID uuid.UUID, customerID int64, amount decimal.Decimal, points int64, at time.Time) error
}
