// Package inventory tracks stock per batch and allocates it to sales.
package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Strategy orders batches for allocation.
type Strategy string

const (
	// FIFO consumes the oldest batch first.
	FIFO Strategy = "FIFO"
	// FEFO consumes the batch expiring first.
	FEFO Strategy = "FEFO"
)

// ParseStrategy accepts either strategy name case-insensitively.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToUpper(strings.TrimSpace(s))) {
	case "", FEFO:
		return FEFO, nil
	case FIFO:
		return FIFO, nil
	}
	return "", fmt.Errorf("inventory: unknown allocation strategy %q", s)
}

// BatchStatus is the lifecycle state of a batch.
type BatchStatus string

const (
	BatchActive      BatchStatus = "active"
	BatchExpired     BatchStatus = "expired"
	BatchExhausted   BatchStatus = "exhausted"
	BatchQuarantined BatchStatus = "quarantined"
)

// MovementType classifies stock movements.
type MovementType string

const (
	MovementPurchase      MovementType = "purchase"
	MovementSale          MovementType = "sale"
	MovementReturnIn      MovementType = "return_in"
	MovementReturnOut     MovementType = "return_out"
	MovementAdjustmentIn  MovementType = "adjustment_in"
	MovementAdjustmentOut MovementType = "adjustment_out"
	MovementDamage        MovementType = "damage"
	MovementExpiry        MovementType = "expiry"
	MovementCount         MovementType = "count"
)

// Reference types written on movements.
const (
	RefOrder          = "order"
	RefInvoice        = "invoice"
	RefInvoiceCancel  = "invoice_cancel"
	RefSalesReturn    = "sales_return"
	RefPurchaseReturn = "purchase_return"
	RefExpirySweep    = "expiry_sweep"
)

// Batch is a tracked lot of a product.
type Batch struct {
	ID                int64           `json:"id"`
	OrgID             uuid.UUID       `json:"org_id"`
	ProductID         int64           `json:"product_id"`
	BatchNumber       string          `json:"batch_number"`
	ManufacturingDate *time.Time      `json:"manufacturing_date,omitempty"`
	ExpiryDate        *time.Time      `json:"expiry_date,omitempty"`
	QuantityReceived  int64           `json:"quantity_received"`
	QuantityAvailable int64           `json:"quantity_available"`
	QuantitySold      int64           `json:"quantity_sold"`
	QuantityReturned  int64           `json:"quantity_returned"`
	QuantityDamaged   int64           `json:"quantity_damaged"`
	CostPrice         decimal.Decimal `json:"cost_price"`
	SellingPrice      decimal.Decimal `json:"selling_price"`
	MRP               decimal.Decimal `json:"mrp"`
	SupplierID        *int64          `json:"supplier_id,omitempty"`
	Status            BatchStatus     `json:"status"`
}

// Balanced reports whether the quantity identity holds.
func (b Batch) Balanced() bool {
	return b.QuantityAvailable == b.QuantityReceived-b.QuantitySold-b.QuantityDamaged+b.QuantityReturned
}

// ExpiredOn reports whether the batch is expired on day. A batch expiring
// today is already expired.
func (b Batch) ExpiredOn(day time.Time) bool {
	return b.ExpiryDate != nil && !civil(*b.ExpiryDate).After(civil(day))
}

// NearExpiry reports whether the batch expires within windowDays of day.
func (b Batch) NearExpiry(day time.Time, windowDays int) bool {
	if b.ExpiryDate == nil || windowDays <= 0 {
		return false
	}
	return !civil(*b.ExpiryDate).After(civil(day).AddDate(0, 0, windowDays))
}

// Allocatable reports whether the planner may draw from the batch.
func (b Batch) Allocatable(day time.Time) bool {
	return b.Status == BatchActive && b.QuantityAvailable > 0 && !b.ExpiredOn(day)
}

func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Movement is an immutable stock movement; exactly one of QuantityIn and
// QuantityOut is non-zero.
type Movement struct {
	ID            int64        `json:"id"`
	OrgID         uuid.UUID    `json:"org_id"`
	ProductID     int64        `json:"product_id"`
	BatchID       *int64       `json:"batch_id,omitempty"`
	Type          MovementType `json:"movement_type"`
	QuantityIn    int64        `json:"quantity_in"`
	QuantityOut   int64        `json:"quantity_out"`
	ReferenceType string       `json:"reference_type"`
	ReferenceID   int64        `json:"reference_id"`
	MovementDate  time.Time    `json:"movement_date"`
	Notes         string       `json:"notes,omitempty"`
}

// Reference points a movement at the document that caused it.
type Reference struct {
	Type string
	ID   int64
}

// Allocation is a quantity drawn from one batch.
type Allocation struct {
	ProductID    int64           `json:"product_id"`
	BatchID      int64           `json:"batch_id"`
	BatchNumber  string          `json:"batch_number"`
	Quantity     int64           `json:"quantity"`
	ExpiryDate   *time.Time      `json:"expiry_date,omitempty"`
	NearExpiry   bool            `json:"near_expiry"`
	MRP          decimal.Decimal `json:"mrp"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	CostPrice    decimal.Decimal `json:"cost_price"`
}

// Store is the transactional persistence the allocator works against.
type Store interface {
	// LockProduct serialises batch mutation for (org, product) until the
	// transaction ends.
	LockProduct(ctx context.Context, orgID uuid.UUID, productID int64) error
	// ListAllocatableBatches returns active, unexpired batches with stock,
	// locked for update, in batch id order.
	ListAllocatableBatches(ctx context.Context, orgID uuid.UUID, productID int64, today time.Time) ([]Batch, error)
	GetBatchForUpdate(ctx context.Context, orgID uuid.UUID, batchID int64) (Batch, error)
	SaveBatch(ctx context.Context, batch Batch) error
	InsertMovement(ctx context.Context, m Movement) (int64, error)
	// ListExpiringBatches returns active batches expiring on or before asOf
	// without locking; callers lock the product and re-read each batch.
	ListExpiringBatches(ctx context.Context, orgID uuid.UUID, asOf time.Time) ([]Batch, error)
}
