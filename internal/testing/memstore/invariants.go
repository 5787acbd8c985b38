package memstore

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vikasgargbear/production-infra-sub000/internal/inventory"
	"github.com/vikasgargbear/production-infra-sub000/internal/ledger"
	"github.com/vikasgargbear/production-infra-sub000/internal/masterdata"
	"github.com/vikasgargbear/production-infra-sub000/internal/returns"
	"github.com/vikasgargbear/production-infra-sub000/internal/sales"
	"github.com/vikasgargbear/production-infra-sub000/internal/tax"
)

// Violations checks the committed state against the engine's invariants and
// describes every breach found. Batches are expected to be seeded with
// quantity_available equal to quantity_received.
func (s *Store) Violations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	report := func(format string, args ...any) { out = append(out, fmt.Sprintf(format, args...)) }

	moved := make(map[int64]int64)
	for _, m := range s.st.movements {
		if m.BatchID != nil {
			moved[*m.BatchID] += m.QuantityIn - m.QuantityOut
		}
	}
	for _, b := range sortedValues(s.st.batches, func(b inventory.Batch) int64 { return b.ID }) {
		if b.QuantityAvailable < 0 {
			report("batch %d: negative quantity %d", b.ID, b.QuantityAvailable)
		}
		if !b.Balanced() {
			report("batch %d: quantity identity broken", b.ID)
		}
		if got := b.QuantityReceived + moved[b.ID]; got != b.QuantityAvailable {
			report("batch %d: movements give %d, available %d", b.ID, got, b.QuantityAvailable)
		}
	}

	paid := make(map[int64]decimal.Decimal)
	for _, p := range s.st.payments {
		if p.Status == sales.PaymentCompleted {
			paid[p.InvoiceID] = paid[p.InvoiceID].Add(p.Amount)
		}
	}
	itemCGST := make(map[int64]decimal.Decimal)
	itemSGST := make(map[int64]decimal.Decimal)
	for _, it := range s.st.invoiceItems {
		itemCGST[it.InvoiceID] = itemCGST[it.InvoiceID].Add(it.CGSTAmount)
		itemSGST[it.InvoiceID] = itemSGST[it.InvoiceID].Add(it.SGSTAmount)
	}
	onePaisa := decimal.New(1, -2)
	seenInvoice := make(map[string]bool)
	byOrg := make(map[string][]sales.Invoice)
	for _, inv := range sortedValues(s.st.invoices, func(i sales.Invoice) int64 { return i.ID }) {
		if !inv.CGSTAmount.Add(inv.SGSTAmount).Add(inv.IGSTAmount).Equal(inv.TotalTaxAmount) {
			report("invoice %s: tax split does not add up", inv.InvoiceNumber)
		}
		if inv.CGSTAmount.Sub(inv.SGSTAmount).Abs().GreaterThan(onePaisa) {
			report("invoice %s: cgst %s and sgst %s differ by more than a paisa", inv.InvoiceNumber, inv.CGSTAmount, inv.SGSTAmount)
		}
		if !itemCGST[inv.ID].Equal(inv.CGSTAmount) || !itemSGST[inv.ID].Equal(inv.SGSTAmount) {
			report("invoice %s: item cgst/sgst columns do not add up to the header", inv.InvoiceNumber)
		}
		if inv.GSTType == tax.IntraState && !inv.IGSTAmount.IsZero() {
			report("invoice %s: igst on intra-state invoice", inv.InvoiceNumber)
		}
		if inv.GSTType == tax.InterState && !(inv.CGSTAmount.IsZero() && inv.SGSTAmount.IsZero()) {
			report("invoice %s: cgst/sgst on inter-state invoice", inv.InvoiceNumber)
		}
		if !paid[inv.ID].Equal(inv.PaidAmount) || inv.PaidAmount.GreaterThan(inv.TotalAmount) {
			report("invoice %s: payments %s, paid %s, total %s", inv.InvoiceNumber, paid[inv.ID], inv.PaidAmount, inv.TotalAmount)
		}
		if !inv.TotalAmount.Equal(inv.TotalAmount.Truncate(0)) {
			report("invoice %s: final %s is not whole rupees", inv.InvoiceNumber, inv.TotalAmount)
		}
		key := inv.OrgID.String() + "|" + inv.InvoiceNumber
		if seenInvoice[key] {
			report("invoice number %s issued twice", inv.InvoiceNumber)
		}
		seenInvoice[key] = true
		byOrg[inv.OrgID.String()] = append(byOrg[inv.OrgID.String()], inv)
	}
	for _, invoices := range byOrg {
		for i := 1; i < len(invoices); i++ {
			if fy(invoices[i].InvoiceNumber) == fy(invoices[i-1].InvoiceNumber) &&
				invoices[i].InvoiceNumber <= invoices[i-1].InvoiceNumber {
				report("invoice number %s not after %s", invoices[i].InvoiceNumber, invoices[i-1].InvoiceNumber)
			}
		}
	}

	seenOrder := make(map[string]bool)
	for _, o := range s.st.orders {
		key := o.OrgID.String() + "|" + o.OrderNumber
		if seenOrder[key] {
			report("order number %s issued twice", o.OrderNumber)
		}
		seenOrder[key] = true
	}

	for _, c := range sortedValues(s.st.customers, func(c masterdata.Customer) int64 { return c.ID }) {
		sum := decimal.Zero
		for _, e := range s.st.entries {
			if e.OrgID == c.OrgID && e.PartyKind == ledger.PartyCustomer && e.PartyID == c.ID {
				sum = sum.Add(e.Net())
			}
		}
		if !sum.Equal(c.OutstandingAmount) {
			report("customer %d: outstanding %s, ledger %s", c.ID, c.OutstandingAmount, sum)
		}
	}

	type soldKey struct{ invoice, product int64 }
	sold := make(map[soldKey]int64)
	for _, it := range s.st.invoiceItems {
		sold[soldKey{it.InvoiceID, it.ProductID}] += it.Quantity
	}
	returned := make(map[soldKey]int64)
	for _, it := range s.st.returnItems {
		r := s.st.returns[it.ReturnID]
		if r.Type == returns.ReturnSales && r.InvoiceID != nil && r.Status != returns.ReturnCancelled {
			returned[soldKey{*r.InvoiceID, it.ProductID}] += it.Quantity
		}
	}
	keys := make([]soldKey, 0, len(returned))
	for k := range returned {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].invoice < keys[j].invoice })
	for _, k := range keys {
		if returned[k] > sold[k] {
			report("invoice %d product %d: returned %d of %d sold", k.invoice, k.product, returned[k], sold[k])
		}
	}
	return out
}

func fy(invoiceNumber string) string {
	if len(invoiceNumber) < 7 {
		return ""
	}
	return invoiceNumber[:7]
}
