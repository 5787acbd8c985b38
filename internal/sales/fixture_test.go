package sales_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vikasgargbear/production-infra-sub000/internal/inventory"
	"github.com/vikasgargbear/production-infra-sub000/internal/masterdata"
	"github.com/vikasgargbear/production-infra-sub000/internal/sales"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
	"github.com/vikasgargbear/production-infra-sub000/internal/testing/memstore"
)

var testOrg = uuid.MustParse("4f1c2d3e-5a6b-4c7d-8e9f-0a1b2c3d4e5f")

type recordingAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.logs))
	for i, l := range a.logs {
		out[i] = l.Action
	}
	return out
}

type fixture struct {
	store *memstore.Store
	audit *recordingAudit
	svc   *sales.Service
	oc    shared.OrgContext
	now   time.Time
}

func newFixture(t *testing.T, mutate ...func(*sales.ServiceConfig)) *fixture {
	t.Helper()
	store := memstore.New()
	store.AddOrganisation(masterdata.Organisation{ID: testOrg, Name: "Shree Pharma", StateCode: "29", GSTIN: "29ABCDE1234F1Z5"})
	cfg := sales.ServiceConfig{
		Location: time.UTC,
		Policy: shared.TxPolicy{
			Timeout:          5 * time.Second,
			TransientRetries: 3,
			NumberingRetries: 5,
		},
	}
	for _, m := range mutate {
		m(&cfg)
	}
	now := time.Date(2024, time.December, 1, 10, 30, 0, 0, time.UTC)
	audit := &recordingAudit{}
	svc := sales.NewService(store.Sales(), audit, cfg, sales.Components{Clock: shared.FixedClock{At: now}})
	return &fixture{
		store: store,
		audit: audit,
		svc:   svc,
		oc:    shared.OrgContext{OrgID: testOrg, UserID: uuid.MustParse("0a0b0c0d-0e0f-4a1b-8c2d-3e4f5a6b7c8d")},
		now:   now,
	}
}

func (f *fixture) customer(state string, limit, outstanding int64) int64 {
	return f.store.AddCustomer(masterdata.Customer{
		OrgID:             testOrg,
		Name:              "City Medicals",
		Phone:             "9800000001",
		Address:           "12 MG Road",
		StateCode:         state,
		CreditLimit:       decimal.NewFromInt(limit),
		CreditPeriodDays:  30,
		OutstandingAmount: decimal.NewFromInt(outstanding),
	})
}

func (f *fixture) product(gst int64) int64 {
	return f.store.AddProduct(masterdata.Product{
		OrgID:      testOrg,
		Name:       "Amoxicillin 500",
		HSNCode:    "3004",
		GSTPercent: decimal.NewNullDecimal(decimal.NewFromInt(gst)),
		MRP:        decimal.NewFromInt(100),
		SalePrice:  decimal.NewFromInt(90),
	})
}

func (f *fixture) batch(productID, qty int64, expiry time.Time) int64 {
	return f.store.AddBatch(inventory.Batch{
		OrgID:             testOrg,
		ProductID:         productID,
		BatchNumber:       "B" + expiry.Format("0601"),
		ExpiryDate:        &expiry,
		QuantityReceived:  qty,
		QuantityAvailable: qty,
		CostPrice:         decimal.NewFromInt(50),
		SellingPrice:      decimal.NewFromInt(90),
		MRP:               decimal.NewFromInt(100),
		Status:            inventory.BatchActive,
	})
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
