package returns_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vikasgargbear/production-infra-sub000/internal/inventory"
	"github.com/vikasgargbear/production-infra-sub000/internal/masterdata"
	"github.com/vikasgargbear/production-infra-sub000/internal/returns"
	"github.com/vikasgargbear/production-infra-sub000/internal/sales"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
	"github.com/vikasgargbear/production-infra-sub000/internal/testing/memstore"
)

var testOrg = uuid.MustParse("7d1e0a2b-3c4d-4e5f-8a9b-0c1d2e3f4a5b")

type recordingAudit struct {
	mu      sync.Mutex
	actions []string
}

func (a *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, log.Action)
	return nil
}

type fixture struct {
	store   *memstore.Store
	audit   *recordingAudit
	sales   *sales.Service
	returns *returns.Service
	oc      shared.OrgContext
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	store.AddOrganisation(masterdata.Organisation{ID: testOrg, Name: "Shree Pharma", StateCode: "29", GSTIN: "29ABCDE1234F1Z5"})
	policy := shared.TxPolicy{Timeout: 5 * time.Second, TransientRetries: 3, NumberingRetries: 5}
	clock := shared.FixedClock{At: time.Date(2024, time.December, 1, 10, 30, 0, 0, time.UTC)}
	audit := &recordingAudit{}
	return &fixture{
		store:   store,
		audit:   audit,
		sales:   sales.NewService(store.Sales(), audit, sales.ServiceConfig{Location: time.UTC, Policy: policy}, sales.Components{Clock: clock}),
		returns: returns.NewService(store.Returns(), audit, returns.ServiceConfig{Location: time.UTC, Policy: policy}, returns.Components{Clock: clock}),
		oc:      shared.OrgContext{OrgID: testOrg, UserID: uuid.MustParse("1b2c3d4e-5f6a-4b7c-8d9e-0f1a2b3c4d5e")},
	}
}

func (f *fixture) customer(state, gstin string, outstanding int64) int64 {
	return f.store.AddCustomer(masterdata.Customer{
		OrgID:             testOrg,
		Name:              "Apollo Chemists",
		Phone:             "9800000002",
		Address:           "4 FC Road",
		StateCode:         state,
		GSTIN:             gstin,
		CreditPeriodDays:  30,
		OutstandingAmount: decimal.NewFromInt(outstanding),
	})
}

func (f *fixture) product(gst int64) int64 {
	return f.store.AddProduct(masterdata.Product{
		OrgID:      testOrg,
		Name:       "Paracetamol 650",
		HSNCode:    "3004",
		GSTPercent: decimal.NewNullDecimal(decimal.NewFromInt(gst)),
		MRP:        decimal.NewFromInt(120),
		SalePrice:  decimal.NewFromInt(100),
	})
}

func (f *fixture) batch(productID, qty int64, expiry time.Time, supplierID *int64) int64 {
	return f.store.AddBatch(inventory.Batch{
		OrgID:             testOrg,
		ProductID:         productID,
		BatchNumber:       "PC" + expiry.Format("0601"),
		ExpiryDate:        &expiry,
		QuantityReceived:  qty,
		QuantityAvailable: qty,
		CostPrice:         decimal.NewFromInt(50),
		SellingPrice:      decimal.NewFromInt(100),
		MRP:               decimal.NewFromInt(120),
		SupplierID:        supplierID,
		Status:            inventory.BatchActive,
	})
}

type soldInvoice struct {
	customerID int64
	productID  int64
	sooner     int64
	later      int64
	invoice    sales.SaleResult
}

// interStateSale books 15 units at 100 with 12% IGST over two batches: 8
// from the sooner batch and 7 from the later one, 1680 on account.
func (f *fixture) interStateSale(t *testing.T, gstin string) soldInvoice {
	t.Helper()
	s := soldInvoice{customerID: f.customer("27", gstin, 0), productID: f.product(12)}
	s.later = f.batch(s.productID, 20, date(2025, time.June, 30), nil)
	s.sooner = f.batch(s.productID, 8, date(2025, time.January, 31), nil)
	var err error
	s.invoice, err = f.sales.CreateOrder(context.Background(), f.oc, sales.SaleRequest{
		CustomerID:  s.customerID,
		Items:       []sales.SaleItem{{ProductID: s.productID, Quantity: 15, UnitPrice: price(100)}},
		PaymentMode: "credit",
	})
	require.NoError(t, err)
	return s
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func price(v int64) decimal.NullDecimal { return decimal.NewNullDecimal(decimal.NewFromInt(v)) }

func assertDec(t *testing.T, want int64, got decimal.Decimal, msg string) {
	t.Helper()
	if !got.Equal(decimal.NewFromInt(want)) {
		t.Errorf("%s: want %d, got %s", msg, want, got.String())
	}
}
