package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vikasgargbear/production-infra-sub000/internal/inventory"
	"github.com/vikasgargbear/production-infra-sub000/internal/ledger"
	"github.com/vikasgargbear/production-infra-sub000/internal/masterdata"
	"github.com/vikasgargbear/production-infra-sub000/internal/numbering"
	"github.com/vikasgargbear/production-infra-sub000/internal/returns"
	"github.com/vikasgargbear/production-infra-sub000/internal/sales"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

// Tx is one transaction's view of the store. It implements both
// sales.TxRepository and returns.TxRepository.
type Tx struct {
	store *Store
	st    *state
	trace []string
}

var (
	_ sales.TxRepository   = (*Tx)(nil)
	_ returns.TxRepository = (*Tx)(nil)
)

func (t *Tx) fault(method string) error {
	return t.store.fault(method)
}

func (t *Tx) lock(name string, id any) {
	t.trace = append(t.trace, fmt.Sprintf("%s:%v", name, id))
}

// ============================================================================
// MASTER DATA
// ============================================================================

func (t *Tx) GetOrganisation(_ context.Context, orgID uuid.UUID) (masterdata.Organisation, error) {
	if err := t.fault("GetOrganisation"); err != nil {
		return masterdata.Organisation{}, err
	}
	org, ok := t.st.orgs[orgID]
	if !ok {
		return masterdata.Organisation{}, shared.ErrOrgNotFound
	}
	return org, nil
}

func (t *Tx) GetCustomerForUpdate(_ context.Context, orgID uuid.UUID, customerID int64) (masterdata.Customer, error) {
	if err := t.fault("GetCustomerForUpdate"); err != nil {
		return masterdata.Customer{}, err
	}
	c, ok := t.st.customers[customerID]
	if !ok || c.OrgID != orgID {
		return masterdata.Customer{}, shared.ErrCustomerNotFound
	}
	t.lock("customer", customerID)
	return c, nil
}

func (t *Tx) GetSupplier(_ context.Context, orgID uuid.UUID, supplierID int64) (masterdata.Supplier, error) {
	if err := t.fault("GetSupplier"); err != nil {
		return masterdata.Supplier{}, err
	}
	s, ok := t.st.suppliers[supplierID]
	if !ok || s.OrgID != orgID {
		return masterdata.Supplier{}, shared.ErrSupplierNotFound
	}
	return s, nil
}

func (t *Tx) GetProduct(_ context.Context, orgID uuid.UUID, productID int64) (masterdata.Product, error) {
	if err := t.fault("GetProduct"); err != nil {
		return masterdata.Product{}, err
	}
	p, ok := t.st.products[productID]
	if !ok || p.OrgID != orgID {
		return masterdata.Product{}, shared.ErrProductNotFound
	}
	return p, nil
}

func (t *Tx) RecordCustomerSale(_ context.Context, orgID uuid.UUID, customerID int64, amount decimal.Decimal, points int64, at time.Time) error {
	if err := t.fault("RecordCustomerSale"); err != nil {
		return err
	}
	c, ok := t.st.customers[customerID]
	if !ok || c.OrgID != orgID {
		return shared.ErrCustomerNotFound
	}
	c.TotalBusiness = c.TotalBusiness.Add(amount)
	c.LoyaltyPoints += points
	c.LastOrderAt = &at
	t.st.customers[customerID] = c
	return nil
}

// ============================================================================
// INVENTORY
// ============================================================================

func (t *Tx) LockProduct(_ context.Context, _ uuid.UUID, productID int64) error {
	if err := t.fault("LockProduct"); err != nil {
		return err
	}
	t.lock("product", productID)
	return nil
}

func (t *Tx) ListAllocatableBatches(_ context.Context, orgID uuid.UUID, productID int64, today time.Time) ([]inventory.Batch, error) {
	if err := t.fault("ListAllocatableBatches"); err != nil {
		return nil, err
	}
	var out []inventory.Batch
	for _, b := range sortedValues(t.st.batches, func(b inventory.Batch) int64 { return b.ID }) {
		if b.OrgID == orgID && b.ProductID == productID && b.Allocatable(today) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (t *Tx) GetBatchForUpdate(_ context.Context, orgID uuid.UUID, batchID int64) (inventory.Batch, error) {
	if err := t.fault("GetBatchForUpdate"); err != nil {
		return inventory.Batch{}, err
	}
	b, ok := t.st.batches[batchID]
	if !ok || b.OrgID != orgID {
		return inventory.Batch{}, shared.ErrBatchNotFound
	}
	return b, nil
}

func (t *Tx) SaveBatch(_ context.Context, b inventory.Batch) error {
	if err := t.fault("SaveBatch"); err != nil {
		return err
	}
	if _, ok := t.st.batches[b.ID]; !ok {
		return shared.ErrBatchNotFound
	}
	if b.QuantityAvailable < 0 {
		return shared.NegativeBatch(b.ID, b.QuantityAvailable)
	}
	t.st.batches[b.ID] = b
	return nil
}

func (t *Tx) InsertMovement(_ context.Context, m inventory.Movement) (int64, error) {
	if err := t.fault("InsertMovement"); err != nil {
		return 0, err
	}
	m.ID = t.st.next("movements")
	t.st.movements = append(t.st.movements, m)
	return m.ID, nil
}

func (t *Tx) ListExpiringBatches(_ context.Context, orgID uuid.UUID, asOf time.Time) ([]inventory.Batch, error) {
	if err := t.fault("ListExpiringBatches"); err != nil {
		return nil, err
	}
	var out []inventory.Batch
	for _, b := range sortedValues(t.st.batches, func(b inventory.Batch) int64 { return b.ID }) {
		if b.OrgID == orgID && b.Status != inventory.BatchExpired && b.ExpiredOn(asOf) {
			out = append(out, b)
		}
	}
	return out, nil
}

// ============================================================================
// LEDGER
// ============================================================================

func (t *Tx) InsertEntry(_ context.Context, e ledger.Entry) (int64, error) {
	if err := t.fault("InsertEntry"); err != nil {
		return 0, err
	}
	e.ID = t.st.next("entries")
	t.st.entries = append(t.st.entries, e)
	return e.ID, nil
}

func (t *Tx) AdjustOutstanding(_ context.Context, orgID uuid.UUID, customerID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	if err := t.fault("AdjustOutstanding"); err != nil {
		return decimal.Zero, err
	}
	c, ok := t.st.customers[customerID]
	if !ok || c.OrgID != orgID {
		return decimal.Zero, shared.ErrCustomerNotFound
	}
	c.OutstandingAmount = c.OutstandingAmount.Add(delta)
	t.st.customers[customerID] = c
	return c.OutstandingAmount, nil
}

func (t *Tx) PartyTotals(_ context.Context, orgID uuid.UUID, kind ledger.PartyKind, partyID int64) (decimal.Decimal, decimal.Decimal, error) {
	if err := t.fault("PartyTotals"); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	debit, credit := decimal.Zero, decimal.Zero
	for _, e := range t.st.entries {
		if e.OrgID == orgID && e.PartyKind == kind && e.PartyID == partyID {
			debit = debit.Add(e.Debit)
			credit = credit.Add(e.Credit)
		}
	}
	return debit, credit, nil
}

func (t *Tx) GetEntry(_ context.Context, orgID uuid.UUID, entryID int64) (ledger.Entry, error) {
	if err := t.fault("GetEntry"); err != nil {
		return ledger.Entry{}, err
	}
	for _, e := range t.st.entries {
		if e.ID == entryID && e.OrgID == orgID {
			return e, nil
		}
	}
	return ledger.Entry{}, shared.ErrEntryNotFound
}

// ============================================================================
// NUMBERING
// ============================================================================

func (t *Tx) LockSequence(_ context.Context, _ uuid.UUID, kind numbering.Kind) error {
	if err := t.fault("LockSequence"); err != nil {
		return err
	}
	t.lock("sequence", kind)
	return nil
}

func (t *Tx) LastNumber(_ context.Context, orgID uuid.UUID, kind numbering.Kind, prefix string) (string, error) {
	if err := t.fault("LastNumber"); err != nil {
		return "", err
	}
	var matching []string
	for _, n := range t.numbers(orgID, kind) {
		if strings.HasPrefix(n, prefix) {
			matching = append(matching, n)
		}
	}
	if len(matching) == 0 {
		return "", nil
	}
	sort.Slice(matching, func(i, j int) bool {
		if len(matching[i]) != len(matching[j]) {
			return len(matching[i]) > len(matching[j])
		}
		return matching[i] > matching[j]
	})
	return matching[0], nil
}

func (t *Tx) NumberExists(_ context.Context, orgID uuid.UUID, kind numbering.Kind, number string) (bool, error) {
	if err := t.fault("NumberExists"); err != nil {
		return false, err
	}
	for _, n := range t.numbers(orgID, kind) {
		if n == number {
			return true, nil
		}
	}
	return false, nil
}

func (t *Tx) numbers(orgID uuid.UUID, kind numbering.Kind) []string {
	var out []string
	switch kind {
	case numbering.KindOrder:
		for _, o := range t.st.orders {
			if o.OrgID == orgID {
				out = append(out, o.OrderNumber)
			}
		}
	case numbering.KindInvoice:
		for _, inv := range t.st.invoices {
			if inv.OrgID == orgID {
				out = append(out, inv.InvoiceNumber)
			}
		}
	case numbering.KindPayment:
		for _, p := range t.st.payments {
			if p.OrgID == orgID {
				out = append(out, p.PaymentNumber)
			}
		}
	case numbering.KindReturn:
		for _, r := range t.st.returns {
			if r.OrgID == orgID {
				out = append(out, r.ReturnNumber)
			}
		}
	case numbering.KindCreditNote, numbering.KindDebitNote:
		for _, n := range t.st.notes {
			if n.OrgID == orgID {
				out = append(out, n.NoteNumber)
			}
		}
	}
	return out
}

// ============================================================================
// IDEMPOTENCY
// ============================================================================

func idemKey(orgID uuid.UUID, module, key string) string {
	return orgID.String() + "|" + module + "|" + key
}

func (t *Tx) LookupIdempotent(_ context.Context, orgID uuid.UUID, module, key string) ([]byte, bool, error) {
	if err := t.fault("LookupIdempotent"); err != nil {
		return nil, false, err
	}
	result, ok := t.st.idempotency[idemKey(orgID, module, key)]
	return result, ok, nil
}

func (t *Tx) SaveIdempotent(_ context.Context, orgID uuid.UUID, module, key string, result []byte) error {
	if err := t.fault("SaveIdempotent"); err != nil {
		return err
	}
	k := idemKey(orgID, module, key)
	if _, ok := t.st.idempotency[k]; ok {
		return shared.ErrIdempotencyConflict
	}
	t.st.idempotency[k] = result
	return nil
}

// ============================================================================
// ORDERS
// ============================================================================

func (t *Tx) InsertOrder(_ context.Context, o sales.Order) (int64, error) {
	if err := t.fault("InsertOrder"); err != nil {
		return 0, err
	}
	for _, existing := range t.st.orders {
		if existing.OrgID == o.OrgID && existing.OrderNumber == o.OrderNumber {
			return 0, shared.ErrDuplicateNumber.Withf("order number %s already issued", o.OrderNumber)
		}
	}
	o.ID = t.st.next("orders")
	t.st.orders[o.ID] = o
	return o.ID, nil
}

func (t *Tx) InsertOrderItem(_ context.Context, item sales.OrderItem) (int64, error) {
	if err := t.fault("InsertOrderItem"); err != nil {
		return 0, err
	}
	item.ID = t.st.next("order_items")
	t.st.orderItems = append(t.st.orderItems, item)
	return item.ID, nil
}

func (t *Tx) GetOrderForUpdate(_ context.Context, orgID uuid.UUID, orderID int64) (sales.Order, error) {
	if err := t.fault("GetOrderForUpdate"); err != nil {
		return sales.Order{}, err
	}
	o, ok := t.st.orders[orderID]
	if !ok || o.OrgID != orgID {
		return sales.Order{}, shared.ErrOrderNotFound
	}
	t.lock("order", orderID)
	return o, nil
}

func (t *Tx) UpdateOrderPayment(_ context.Context, orgID uuid.UUID, orderID int64, paid, balance decimal.Decimal, status sales.PaymentStatus) error {
	if err := t.fault("UpdateOrderPayment"); err != nil {
		return err
	}
	o, ok := t.st.orders[orderID]
	if !ok || o.OrgID != orgID {
		return shared.ErrOrderNotFound
	}
	o.PaidAmount, o.BalanceAmount, o.PaymentStatus = paid, balance, status
	t.st.orders[orderID] = o
	return nil
}

func (t *Tx) UpdateOrderStatus(_ context.Context, orgID uuid.UUID, orderID int64, status sales.OrderStatus) error {
	if err := t.fault("UpdateOrderStatus"); err != nil {
		return err
	}
	o, ok := t.st.orders[orderID]
	if !ok || o.OrgID != orgID {
		return shared.ErrOrderNotFound
	}
	o.Status = status
	t.st.orders[orderID] = o
	return nil
}

// ============================================================================
// INVOICES
// ============================================================================

func (t *Tx) InsertInvoice(_ context.Context, inv sales.Invoice) (int64, error) {
	if err := t.fault("InsertInvoice"); err != nil {
		return 0, err
	}
	for _, existing := range t.st.invoices {
		if existing.OrgID == inv.OrgID && existing.InvoiceNumber == inv.InvoiceNumber {
			return 0, shared.ErrDuplicateNumber.Withf("invoice number %s already issued", inv.InvoiceNumber)
		}
	}
	inv.ID = t.st.next("invoices")
	t.st.invoices[inv.ID] = inv
	return inv.ID, nil
}

func (t *Tx) InsertInvoiceItem(_ context.Context, item sales.InvoiceItem) (int64, error) {
	if err := t.fault("InsertInvoiceItem"); err != nil {
		return 0, err
	}
	item.ID = t.st.next("invoice_items")
	t.st.invoiceItems = append(t.st.invoiceItems, item)
	return item.ID, nil
}

func (t *Tx) GetInvoiceForUpdate(_ context.Context, orgID uuid.UUID, invoiceID int64) (sales.Invoice, error) {
	if err := t.fault("GetInvoiceForUpdate"); err != nil {
		return sales.Invoice{}, err
	}
	inv, ok := t.st.invoices[invoiceID]
	if !ok || inv.OrgID != orgID {
		return sales.Invoice{}, shared.ErrInvoiceNotFound
	}
	t.lock("invoice", invoiceID)
	return inv, nil
}

func (t *Tx) ListInvoiceItems(_ context.Context, orgID uuid.UUID, invoiceID int64) ([]sales.InvoiceItem, error) {
	if err := t.fault("ListInvoiceItems"); err != nil {
		return nil, err
	}
	var out []sales.InvoiceItem
	for _, it := range t.st.invoiceItems {
		if it.OrgID == orgID && it.InvoiceID == invoiceID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (t *Tx) UpdateInvoicePayment(_ context.Context, orgID uuid.UUID, invoiceID int64, paid, balance decimal.Decimal, status sales.InvoiceStatus) error {
	if err := t.fault("UpdateInvoicePayment"); err != nil {
		return err
	}
	inv, ok := t.st.invoices[invoiceID]
	if !ok || inv.OrgID != orgID {
		return shared.ErrInvoiceNotFound
	}
	inv.PaidAmount, inv.Balance, inv.Status = paid, balance, status
	t.st.invoices[invoiceID] = inv
	return nil
}

func (t *Tx) CancelInvoiceRecord(_ context.Context, orgID uuid.UUID, invoiceID int64, reason string, at time.Time) error {
	if err := t.fault("CancelInvoiceRecord"); err != nil {
		return err
	}
	inv, ok := t.st.invoices[invoiceID]
	if !ok || inv.OrgID != orgID {
		return shared.ErrInvoiceNotFound
	}
	if inv.Status == sales.InvoiceCancelled {
		return shared.ErrAlreadyCancelled
	}
	inv.Status = sales.InvoiceCancelled
	inv.CancelReason = reason
	inv.CancelledAt = &at
	t.st.invoices[invoiceID] = inv
	return nil
}

func (t *Tx) InvoiceHasReturns(_ context.Context, orgID uuid.UUID, invoiceID int64) (bool, error) {
	if err := t.fault("InvoiceHasReturns"); err != nil {
		return false, err
	}
	for _, r := range t.st.returns {
		if r.OrgID == orgID && r.InvoiceID != nil && *r.InvoiceID == invoiceID && r.Status != returns.ReturnCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (t *Tx) InsertPayment(_ context.Context, p sales.Payment) (int64, error) {
	if err := t.fault("InsertPayment"); err != nil {
		return 0, err
	}
	for _, existing := range t.st.payments {
		if existing.OrgID == p.OrgID && existing.PaymentNumber == p.PaymentNumber {
			return 0, shared.ErrDuplicateNumber.Withf("payment number %s already issued", p.PaymentNumber)
		}
	}
	p.ID = t.st.next("payments")
	t.st.payments = append(t.st.payments, p)
	return p.ID, nil
}

// ============================================================================
// RETURNS AND NOTES
// ============================================================================

func (t *Tx) ListReturnedQuantities(_ context.Context, orgID uuid.UUID, invoiceID int64) ([]returns.ReturnedQuantity, error) {
	if err := t.fault("ListReturnedQuantities"); err != nil {
		return nil, err
	}
	type key struct{ product, batch int64 }
	sums := make(map[key]int64)
	var order []key
	for _, it := range t.st.returnItems {
		r := t.st.returns[it.ReturnID]
		if r.OrgID != orgID || r.Type != returns.ReturnSales || r.Status == returns.ReturnCancelled ||
			r.InvoiceID == nil || *r.InvoiceID != invoiceID {
			continue
		}
		k := key{it.ProductID, it.BatchID}
		if _, seen := sums[k]; !seen {
			order = append(order, k)
		}
		sums[k] += it.Quantity
	}
	out := make([]returns.ReturnedQuantity, 0, len(order))
	for _, k := range order {
		out = append(out, returns.ReturnedQuantity{ProductID: k.product, BatchID: k.batch, Quantity: sums[k]})
	}
	return out, nil
}

func (t *Tx) InsertReturn(_ context.Context, r returns.Return) (int64, error) {
	if err := t.fault("InsertReturn"); err != nil {
		return 0, err
	}
	for _, existing := range t.st.returns {
		if existing.OrgID == r.OrgID && existing.ReturnNumber == r.ReturnNumber {
			return 0, shared.ErrDuplicateNumber.Withf("return number %s already issued", r.ReturnNumber)
		}
	}
	r.ID = t.st.next("returns")
	t.st.returns[r.ID] = r
	return r.ID, nil
}

func (t *Tx) InsertReturnItem(_ context.Context, item returns.ReturnItem) (int64, error) {
	if err := t.fault("InsertReturnItem"); err != nil {
		return 0, err
	}
	item.ID = t.st.next("return_items")
	t.st.returnItems = append(t.st.returnItems, item)
	return item.ID, nil
}

func (t *Tx) InsertNote(_ context.Context, n returns.Note) (int64, error) {
	if err := t.fault("InsertNote"); err != nil {
		return 0, err
	}
	for _, existing := range t.st.notes {
		if existing.OrgID == n.OrgID && existing.NoteNumber == n.NoteNumber {
			return 0, shared.ErrDuplicateNumber.Withf("note number %s already issued", n.NoteNumber)
		}
	}
	n.ID = t.st.next("notes")
	t.st.notes[n.ID] = n
	return n.ID, nil
}

func (t *Tx) SetNoteLedgerEntry(_ context.Context, orgID uuid.UUID, noteID, entryID int64) error {
	if err := t.fault("SetNoteLedgerEntry"); err != nil {
		return err
	}
	n, ok := t.st.notes[noteID]
	if !ok || n.OrgID != orgID {
		return shared.ErrNoteNotFound
	}
	n.LedgerEntryID = entryID
	t.st.notes[noteID] = n
	return nil
}

func (t *Tx) GetNoteForUpdate(_ context.Context, orgID uuid.UUID, noteID int64) (returns.Note, error) {
	if err := t.fault("GetNoteForUpdate"); err != nil {
		return returns.Note{}, err
	}
	n, ok := t.st.notes[noteID]
	if !ok || n.OrgID != orgID {
		return returns.Note{}, shared.ErrNoteNotFound
	}
	t.lock("note", noteID)
	return n, nil
}

func (t *Tx) CancelNoteRecord(_ context.Context, orgID uuid.UUID, noteID int64, reason string, at time.Time) error {
	if err := t.fault("CancelNoteRecord"); err != nil {
		return err
	}
	n, ok := t.st.notes[noteID]
	if !ok || n.OrgID != orgID {
		return shared.ErrNoteNotFound
	}
	if n.Status == returns.NoteCancelled {
		return shared.ErrAlreadyCancelled
	}
	n.Status = returns.NoteCancelled
	n.CancelReason = reason
	n.CancelledAt = &at
	t.st.notes[noteID] = n
	return nil
}
