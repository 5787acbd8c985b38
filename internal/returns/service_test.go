package returns_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikasgargbear/production-infra-sub000/internal/inventory"
	"github.com/vikasgargbear/production-infra-sub000/internal/ledger"
	"github.com/vikasgargbear/production-infra-sub000/internal/masterdata"
	"github.com/vikasgargbear/production-infra-sub000/internal/returns"
	"github.com/vikasgargbear/production-infra-sub000/internal/sales"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
	"github.com/vikasgargbear/production-infra-sub000/internal/tax"
)

func TestSalesReturnRestocksAndIssuesCreditNote(t *testing.T) {
	f := newFixture(t)
	sold := f.interStateSale(t, "27AAACA1234B1Z9")

	result, err := f.returns.CreateSalesReturn(context.Background(), f.oc, returns.SalesReturnRequest{
		InvoiceID: sold.invoice.InvoiceID,
		Items:     []returns.ReturnLine{{ProductID: sold.productID, Quantity: 5}},
		Reason:    " damaged strips ",
	})
	require.NoError(t, err)

	assert.Equal(t, "RET202412010001", result.ReturnNumber)
	assert.Equal(t, tax.InterState, result.GSTType)
	assertDec(t, 500, result.TaxableAmount, "taxable")
	assertDec(t, 60, result.TaxAmount, "tax")
	assertDec(t, 560, result.TotalAmount, "total")
	require.Len(t, result.Items, 1)
	assert.Equal(t, sold.later, result.Items[0].BatchID)

	later := f.store.Batch(sold.later)
	assert.Equal(t, int64(18), later.QuantityAvailable)
	assert.Equal(t, int64(5), later.QuantityReturned)
	assert.Equal(t, int64(0), f.store.Batch(sold.sooner).QuantityAvailable)

	movements := f.store.Movements()
	last := movements[len(movements)-1]
	assert.Equal(t, inventory.MovementReturnIn, last.Type)
	assert.Equal(t, inventory.RefSalesReturn, last.ReferenceType)
	assert.Equal(t, int64(5), last.QuantityIn)

	require.NotNil(t, result.NoteID)
	assert.Equal(t, "CN-20241201-103000", result.NoteNumber)
	note := f.store.Note(*result.NoteID)
	assert.Equal(t, returns.NoteCredit, note.Type)
	assertDec(t, 560, note.TotalAmount, "note total")
	assertDec(t, 60, note.IGSTAmount, "note igst")
	require.NotNil(t, note.ReturnID)
	assert.Equal(t, result.ReturnID, *note.ReturnID)

	entries := f.store.Entries()
	require.Len(t, entries, 2)
	credit := entries[1]
	assert.Equal(t, ledger.TxSalesReturn, credit.TransactionType)
	assertDec(t, 560, credit.Credit, "credit")
	assert.Equal(t, credit.ID, note.LedgerEntryID)
	assertDec(t, 1120, f.store.Customer(sold.customerID).OutstandingAmount, "outstanding")

	ret := f.store.ReturnRequests()[0]
	assert.Equal(t, "damaged strips", ret.Reason)
	assert.Equal(t, returns.ReturnApproved, ret.Status)
	assert.Equal(t, []string{"invoice:1", "customer:1", "product:1", "sequence:return", "sequence:credit_note"}, f.store.LockTrace())
	assert.Contains(t, f.audit.actions, "returns:create_sales_return")
	assert.Empty(t, f.store.Violations())
}

func TestSalesReturnWithoutGSTINSkipsNote(t *testing.T) {
	f := newFixture(t)
	sold := f.interStateSale(t, "")

	result, err := f.returns.CreateSalesReturn(context.Background(), f.oc, returns.SalesReturnRequest{
		InvoiceID: sold.invoice.InvoiceID,
		Items:     []returns.ReturnLine{{ProductID: sold.productID, Quantity: 2}},
		Reason:    "short expiry",
	})
	require.NoError(t, err)
	assert.Nil(t, result.NoteID)
	assert.Empty(t, f.store.Notes())
	assertDec(t, 224, result.TotalAmount, "total")
	assertDec(t, 1456, f.store.Customer(sold.customerID).OutstandingAmount, "outstanding")
	assert.Empty(t, f.store.Violations())
}

func TestSalesReturnSpreadsAcrossBatchesLastAllocatedFirst(t *testing.T) {
	f := newFixture(t)
	sold := f.interStateSale(t, "")

	result, err := f.returns.CreateSalesReturn(context.Background(), f.oc, returns.SalesReturnRequest{
		InvoiceID: sold.invoice.InvoiceID,
		Items:     []returns.ReturnLine{{ProductID: sold.productID, Quantity: 10}},
		Reason:    "order cancelled by clinic",
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.Equal(t, sold.later, result.Items[0].BatchID)
	assert.Equal(t, int64(7), result.Items[0].Quantity)
	assert.Equal(t, sold.sooner, result.Items[1].BatchID)
	assert.Equal(t, int64(3), result.Items[1].Quantity)
	assert.Equal(t, int64(3), f.store.Batch(sold.sooner).QuantityAvailable)
	assert.Equal(t, inventory.BatchActive, f.store.Batch(sold.sooner).Status)
	assert.Empty(t, f.store.Violations())
}

func TestSalesReturnBound(t *testing.T) {
	f := newFixture(t)
	sold := f.interStateSale(t, "")
	ctx := context.Background()

	_, err := f.returns.CreateSalesReturn(ctx, f.oc, returns.SalesReturnRequest{
		InvoiceID: sold.invoice.InvoiceID,
		Items:     []returns.ReturnLine{{ProductID: sold.productID, Quantity: 12}},
		Reason:    "first",
	})
	require.NoError(t, err)

	_, err = f.returns.CreateSalesReturn(ctx, f.oc, returns.SalesReturnRequest{
		InvoiceID: sold.invoice.InvoiceID,
		Items:     []returns.ReturnLine{{ProductID: sold.productID, Quantity: 4}},
		Reason:    "second",
	})
	require.ErrorIs(t, err, shared.ErrQuantityExceeded)
	details := shared.Details(err)
	assert.Equal(t, int64(3), details["returnable"])
	assert.Equal(t, int64(4), details["requested"])

	_, err = f.returns.CreateSalesReturn(ctx, f.oc, returns.SalesReturnRequest{
		InvoiceID: sold.invoice.InvoiceID,
		Items:     []returns.ReturnLine{{ProductID: sold.productID, BatchID: &sold.later, Quantity: 1}},
		Reason:    "per batch",
	})
	require.ErrorIs(t, err, shared.ErrQuantityExceeded)

	_, err = f.returns.CreateSalesReturn(ctx, f.oc, returns.SalesReturnRequest{
		InvoiceID: sold.invoice.InvoiceID,
		Items:     []returns.ReturnLine{{ProductID: sold.productID, BatchID: &sold.sooner, Quantity: 3}},
		Reason:    "rest of the sooner batch",
	})
	require.NoError(t, err)
	assert.Len(t, f.store.ReturnRequests(), 2)
	assert.Empty(t, f.store.Violations())

	_, err = f.sales.CancelInvoice(ctx, f.oc, sold.invoice.InvoiceID, sales.CancelRequest{Reason: "late"})
	require.ErrorIs(t, err, shared.ErrHasReturns)
}

func TestSalesReturnRejections(t *testing.T) {
	f := newFixture(t)
	sold := f.interStateSale(t, "")
	other := f.product(5)

	tests := []struct {
		name string
		req  returns.SalesReturnRequest
		want error
	}{
		{"no items", returns.SalesReturnRequest{InvoiceID: sold.invoice.InvoiceID, Reason: "x"}, shared.ErrEmptyItems},
		{"zero quantity", returns.SalesReturnRequest{InvoiceID: sold.invoice.InvoiceID, Reason: "x",
			Items: []returns.ReturnLine{{ProductID: sold.productID}}}, shared.ErrInvalidQuantity},
		{"blank reason", returns.SalesReturnRequest{InvoiceID: sold.invoice.InvoiceID, Reason: "  ",
			Items: []returns.ReturnLine{{ProductID: sold.productID, Quantity: 1}}}, shared.ErrValidation},
		{"product not on invoice", returns.SalesReturnRequest{InvoiceID: sold.invoice.InvoiceID, Reason: "x",
			Items: []returns.ReturnLine{{ProductID: other, Quantity: 1}}}, shared.ErrQuantityExceeded},
		{"unknown invoice", returns.SalesReturnRequest{InvoiceID: 404, Reason: "x",
			Items: []returns.ReturnLine{{ProductID: sold.productID, Quantity: 1}}}, shared.ErrInvoiceNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.returns.CreateSalesReturn(context.Background(), f.oc, tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.store.ReturnRequests())
}

func TestSalesReturnOnCancelledInvoice(t *testing.T) {
	f := newFixture(t)
	sold := f.interStateSale(t, "")
	_, err := f.sales.CancelInvoice(context.Background(), f.oc, sold.invoice.InvoiceID, sales.CancelRequest{Reason: "void"})
	require.NoError(t, err)

	_, err = f.returns.CreateSalesReturn(context.Background(), f.oc, returns.SalesReturnRequest{
		InvoiceID: sold.invoice.InvoiceID,
		Items:     []returns.ReturnLine{{ProductID: sold.productID, Quantity: 1}},
		Reason:    "late",
	})
	require.ErrorIs(t, err, shared.ErrInvoiceCancelled)
}

func TestPurchaseReturnDebitsSupplier(t *testing.T) {
	f := newFixture(t)
	supplierID := f.store.AddSupplier(masterdata.Supplier{OrgID: testOrg, Name: "Cipla Distributors", StateCode: "29", GSTIN: "29AAACC1111D1Z3"})
	productID := f.product(12)
	batchID := f.batch(productID, 100, date(2026, time.May, 31), &supplierID)

	result, err := f.returns.CreatePurchaseReturn(context.Background(), f.oc, returns.PurchaseReturnRequest{
		SupplierID: supplierID,
		Items:      []returns.ReturnLine{{ProductID: productID, BatchID: &batchID, Quantity: 4}},
		Reason:     "near expiry",
	})
	require.NoError(t, err)
	assert.Equal(t, tax.IntraState, result.GSTType)
	assertDec(t, 200, result.TaxableAmount, "taxable")
	assertDec(t, 224, result.TotalAmount, "total")
	assert.Equal(t, "DN-20241201-103000", result.NoteNumber)

	b := f.store.Batch(batchID)
	assert.Equal(t, int64(96), b.QuantityAvailable)
	assert.Equal(t, int64(-4), b.QuantityReturned)

	movements := f.store.Movements()
	require.Len(t, movements, 1)
	assert.Equal(t, inventory.MovementReturnOut, movements[0].Type)
	assert.Equal(t, inventory.RefPurchaseReturn, movements[0].ReferenceType)

	entries := f.store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.PartySupplier, entries[0].PartyKind)
	assert.Equal(t, ledger.TxPurchaseReturn, entries[0].TransactionType)
	assertDec(t, 224, entries[0].Debit, "debit")

	note := f.store.Note(*result.NoteID)
	assert.Equal(t, returns.NoteDebit, note.Type)
	assert.Equal(t, ledger.PartySupplier, note.PartyKind)
	assert.Equal(t, entries[0].ID, note.LedgerEntryID)
	assert.Contains(t, f.audit.actions, "returns:create_purchase_return")
	assert.Empty(t, f.store.Violations())
}

func TestPurchaseReturnRejections(t *testing.T) {
	f := newFixture(t)
	supplierID := f.store.AddSupplier(masterdata.Supplier{OrgID: testOrg, Name: "Cipla Distributors", StateCode: "29"})
	otherSupplier := f.store.AddSupplier(masterdata.Supplier{OrgID: testOrg, Name: "Sun Agencies", StateCode: "27"})
	productID := f.product(12)
	batchID := f.batch(productID, 10, date(2026, time.May, 31), &otherSupplier)

	_, err := f.returns.CreatePurchaseReturn(context.Background(), f.oc, returns.PurchaseReturnRequest{
		SupplierID: supplierID,
		Items:      []returns.ReturnLine{{ProductID: productID, Quantity: 1}},
		Reason:     "no batch",
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.returns.CreatePurchaseReturn(context.Background(), f.oc, returns.PurchaseReturnRequest{
		SupplierID: supplierID,
		Items:      []returns.ReturnLine{{ProductID: productID, BatchID: &batchID, Quantity: 1}},
		Reason:     "wrong supplier",
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.returns.CreatePurchaseReturn(context.Background(), f.oc, returns.PurchaseReturnRequest{
		SupplierID: otherSupplier,
		Items:      []returns.ReturnLine{{ProductID: productID, BatchID: &batchID, Quantity: 11}},
		Reason:     "too many",
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	assert.Equal(t, int64(10), f.store.Batch(batchID).QuantityAvailable)
	assert.Empty(t, f.store.ReturnRequests())
}
