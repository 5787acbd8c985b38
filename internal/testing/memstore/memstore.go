// Package memstore is an in-memory implementation of every transactional
// port of the engine. Transactions run one at a time on a copy of the state
// that replaces the committed state only when the callback succeeds.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vikasgargbear/production-infra-sub000/internal/inventory"
	"github.com/vikasgargbear/production-infra-sub000/internal/ledger"
	"github.com/vikasgargbear/production-infra-sub000/internal/masterdata"
	"github.com/vikasgargbear/production-infra-sub000/internal/returns"
	"github.com/vikasgargbear/production-infra-sub000/internal/sales"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

type state struct {
	ids          map[string]int64
	orgs         map[uuid.UUID]masterdata.Organisation
	customers    map[int64]masterdata.Customer
	suppliers    map[int64]masterdata.Supplier
	products     map[int64]masterdata.Product
	batches      map[int64]inventory.Batch
	movements    []inventory.Movement
	entries      []ledger.Entry
	orders       map[int64]sales.Order
	orderItems   []sales.OrderItem
	invoices     map[int64]sales.Invoice
	invoiceItems []sales.InvoiceItem
	payments     []sales.Payment
	returns      map[int64]returns.Return
	returnItems  []returns.ReturnItem
	notes        map[int64]returns.Note
	idempotency  map[string][]byte
}

func newState() *state {
	return &state{
		ids:         make(map[string]int64),
		orgs:        make(map[uuid.UUID]masterdata.Organisation),
		customers:   make(map[int64]masterdata.Customer),
		suppliers:   make(map[int64]masterdata.Supplier),
		products:    make(map[int64]masterdata.Product),
		batches:     make(map[int64]inventory.Batch),
		orders:      make(map[int64]sales.Order),
		invoices:    make(map[int64]sales.Invoice),
		returns:     make(map[int64]returns.Return),
		notes:       make(map[int64]returns.Note),
		idempotency: make(map[string][]byte),
	}
}

func (s *state) clone() *state {
	return &state{
		ids:          maps.Clone(s.ids),
		orgs:         maps.Clone(s.orgs),
		customers:    maps.Clone(s.customers),
		suppliers:    maps.Clone(s.suppliers),
		products:     maps.Clone(s.products),
		batches:      maps.Clone(s.batches),
		movements:    slices.Clone(s.movements),
		entries:      slices.Clone(s.entries),
		orders:       maps.Clone(s.orders),
		orderItems:   slices.Clone(s.orderItems),
		invoices:     maps.Clone(s.invoices),
		invoiceItems: slices.Clone(s.invoiceItems),
		payments:     slices.Clone(s.payments),
		returns:      maps.Clone(s.returns),
		returnItems:  slices.Clone(s.returnItems),
		notes:        maps.Clone(s.notes),
		idempotency:  maps.Clone(s.idempotency),
	}
}

func (s *state) next(table string) int64 {
	s.ids[table]++
	return s.ids[table]
}

type fault struct {
	err       error
	remaining int
}

// Store holds the committed state.
type Store struct {
	mu      sync.Mutex
	st      *state
	faults  map[string]*fault
	trace   []string
	commits int
}

// New returns an empty store.
func New() *Store {
	return &Store{st: newState(), faults: make(map[string]*fault)}
}

// Fail makes every call of method return err.
func (s *Store) Fail(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method] = &fault{err: err, remaining: -1}
}

// FailTimes makes the next n calls of method return err.
func (s *Store) FailTimes(method string, n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method] = &fault{err: err, remaining: n}
}

// Heal removes every injected fault.
func (s *Store) Heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.faults)
}

// Commits counts successful transactions.
func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// LockTrace returns the locks taken by the last transaction, in order.
func (s *Store) LockTrace() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.trace)
}

func (s *Store) withTx(ctx context.Context, fn func(*Tx) error) error {
	if err := ctx.Err(); err != nil {
		return shared.ErrTransactionTimeout.Wrap(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &Tx{store: s, st: s.st.clone()}
	err := fn(tx)
	s.trace = tx.trace
	if err != nil {
		return err
	}
	s.st = tx.st
	s.commits++
	return nil
}

func (s *Store) fault(method string) error {
	f, ok := s.faults[method]
	if !ok || f.remaining == 0 {
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
	}
	return f.err
}

// ============================================================================
// ADAPTERS
// ============================================================================

// Sales returns the store as the sales repository port.
func (s *Store) Sales() sales.RepositoryPort { return salesRepo{s} }

// Returns returns the store as the returns repository port.
func (s *Store) Returns() returns.RepositoryPort { return returnsRepo{s} }

// Inventory returns the store as the inventory repository port.
func (s *Store) Inventory() inventory.RepositoryPort { return inventoryRepo{s} }

type salesRepo struct{ s *Store }

func (r salesRepo) WithTx(ctx context.Context, fn func(context.Context, sales.TxRepository) error) error {
	return r.s.withTx(ctx, func(tx *Tx) error { return fn(ctx, tx) })
}

type returnsRepo struct{ s *Store }

func (r returnsRepo) WithTx(ctx context.Context, fn func(context.Context, returns.TxRepository) error) error {
	return r.s.withTx(ctx, func(tx *Tx) error { return fn(ctx, tx) })
}

type inventoryRepo struct{ s *Store }

func (r inventoryRepo) WithTx(ctx context.Context, fn func(context.Context, inventory.Store) error) error {
	return r.s.withTx(ctx, func(tx *Tx) error { return fn(ctx, tx) })
}

// ============================================================================
// SEEDING
// ============================================================================

// AddOrganisation registers an organisation.
func (s *Store) AddOrganisation(org masterdata.Organisation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.orgs[org.ID] = org
}

// AddCustomer registers a customer and returns its id. A non-zero
// outstanding is backed by an opening balance entry.
func (s *Store) AddCustomer(c masterdata.Customer) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.st.next("customers")
	} else if c.ID > s.st.ids["customers"] {
		s.st.ids["customers"] = c.ID
	}
	s.st.customers[c.ID] = c
	if !c.OutstandingAmount.IsZero() {
		e := ledger.Debit(ledger.PartyCustomer, c.ID, ledger.TxOpeningBalance, "customer", c.ID, c.OutstandingAmount)
		if c.OutstandingAmount.IsNegative() {
			e = ledger.Credit(ledger.PartyCustomer, c.ID, ledger.TxOpeningBalance, "customer", c.ID, c.OutstandingAmount.Neg())
		}
		e.OrgID = c.OrgID
		e.ID = s.st.next("entries")
		s.st.entries = append(s.st.entries, e)
	}
	return c.ID
}

// AddSupplier registers a supplier and returns its id.
func (s *Store) AddSupplier(sup masterdata.Supplier) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sup.ID == 0 {
		sup.ID = s.st.next("suppliers")
	} else if sup.ID > s.st.ids["suppliers"] {
		s.st.ids["suppliers"] = sup.ID
	}
	s.st.suppliers[sup.ID] = sup
	return sup.ID
}

// AddProduct registers a product and returns its id.
func (s *Store) AddProduct(p masterdata.Product) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.st.next("products")
	} else if p.ID > s.st.ids["products"] {
		s.st.ids["products"] = p.ID
	}
	s.st.products[p.ID] = p
	return p.ID
}

// AddBatch registers a batch and returns its id.
func (s *Store) AddBatch(b inventory.Batch) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == 0 {
		b.ID = s.st.next("batches")
	} else if b.ID > s.st.ids["batches"] {
		s.st.ids["batches"] = b.ID
	}
	if b.Status == "" {
		b.Status = inventory.BatchActive
	}
	s.st.batches[b.ID] = b
	return b.ID
}

// ============================================================================
// QUERIES
// ============================================================================

// Batch returns the committed batch.
func (s *Store) Batch(id int64) inventory.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.batches[id]
}

// Batches returns every committed batch ordered by id.
func (s *Store) Batches() []inventory.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.st.batches, func(b inventory.Batch) int64 { return b.ID })
}

// Customer returns the committed customer.
func (s *Store) Customer(id int64) masterdata.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.customers[id]
}

// Movements returns every committed stock movement.
func (s *Store) Movements() []inventory.Movement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.movements)
}

// Entries returns every committed ledger entry.
func (s *Store) Entries() []ledger.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.entries)
}

// LedgerBalance is debit minus credit for a party.
func (s *Store) LedgerBalance(kind ledger.PartyKind, partyID int64) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := decimal.Zero
	for _, e := range s.st.entries {
		if e.PartyKind == kind && e.PartyID == partyID {
			sum = sum.Add(e.Net())
		}
	}
	return sum
}

// Orders returns every committed order ordered by id.
func (s *Store) Orders() []sales.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.st.orders, func(o sales.Order) int64 { return o.ID })
}

// OrderItems returns the items of an order.
func (s *Store) OrderItems(orderID int64) []sales.OrderItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sales.OrderItem
	for _, it := range s.st.orderItems {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	return out
}

// Invoice returns the committed invoice.
func (s *Store) Invoice(id int64) sales.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.invoices[id]
}

// Invoices returns every committed invoice ordered by id.
func (s *Store) Invoices() []sales.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.st.invoices, func(i sales.Invoice) int64 { return i.ID })
}

// InvoiceItems returns the items of an invoice.
func (s *Store) InvoiceItems(invoiceID int64) []sales.InvoiceItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sales.InvoiceItem
	for _, it := range s.st.invoiceItems {
		if it.InvoiceID == invoiceID {
			out = append(out, it)
		}
	}
	return out
}

// Payments returns every committed payment.
func (s *Store) Payments() []sales.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.payments)
}

// ReturnRequests returns every committed return ordered by id.
func (s *Store) ReturnRequests() []returns.Return {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.st.returns, func(r returns.Return) int64 { return r.ID })
}

// ReturnItems returns every committed return item.
func (s *Store) ReturnItems() []returns.ReturnItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.returnItems)
}

// Notes returns every committed note ordered by id.
func (s *Store) Notes() []returns.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.st.notes, func(n returns.Note) int64 { return n.ID })
}

// Note returns the committed note.
func (s *Store) Note(id int64) returns.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.notes[id]
}

func sortedValues[V any](m map[int64]V, id func(V) int64) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}

// ============================================================================
// NON-TRANSACTIONAL READS
// ============================================================================

// GetCustomer reads a committed customer.
func (s *Store) GetCustomer(_ context.Context, orgID uuid.UUID, customerID int64) (masterdata.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.st.customers[customerID]
	if !ok || c.OrgID != orgID {
		return masterdata.Customer{}, shared.ErrCustomerNotFound
	}
	return c, nil
}

// GetProduct reads a committed product.
func (s *Store) GetProduct(_ context.Context, orgID uuid.UUID, productID int64) (masterdata.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[productID]
	if !ok || p.OrgID != orgID {
		return masterdata.Product{}, shared.ErrProductNotFound
	}
	return p, nil
}

// PartyExists reports whether a customer or supplier exists.
func (s *Store) PartyExists(_ context.Context, orgID uuid.UUID, kind ledger.PartyKind, partyID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kind == ledger.PartySupplier {
		sup, ok := s.st.suppliers[partyID]
		return ok && sup.OrgID == orgID, nil
	}
	c, ok := s.st.customers[partyID]
	return ok && c.OrgID == orgID, nil
}

// ListEntries returns a party's entries in posting order.
func (s *Store) ListEntries(_ context.Context, orgID uuid.UUID, kind ledger.PartyKind, partyID int64) ([]ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.Entry
	for _, e := range s.st.entries {
		if e.OrgID == orgID && e.PartyKind == kind && e.PartyID == partyID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListOpenInvoices returns unpaid, non-cancelled invoices by due date.
func (s *Store) ListOpenInvoices(_ context.Context, orgID uuid.UUID, customerID int64) ([]ledger.OpenInvoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.OpenInvoice
	for _, inv := range sortedValues(s.st.invoices, func(i sales.Invoice) int64 { return i.ID }) {
		if inv.OrgID != orgID || inv.Status == sales.InvoiceCancelled || !inv.Balance.IsPositive() {
			continue
		}
		if customerID != 0 && inv.CustomerID != customerID {
			continue
		}
		out = append(out, ledger.OpenInvoice{
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			CustomerID:    inv.CustomerID,
			CustomerName:  inv.CustomerName,
			InvoiceDate:   inv.InvoiceDate,
			DueDate:       inv.DueDate,
			Total:         inv.TotalAmount,
			Paid:          inv.PaidAmount,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}
