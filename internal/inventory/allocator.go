package inventory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

// Config tunes batch selection.
type Config struct {
	Strategy             Strategy
	NearExpiryWindowDays int
}

// DefaultConfig returns FEFO with a 90 day near-expiry window.
func DefaultConfig() Config {
	return Config{Strategy: FEFO, NearExpiryWindowDays: 90}
}

// Plan chooses batches for required units of productID. It never mutates
// the input and fails with InsufficientStock when the eligible batches do
// not cover the request.
func Plan(productID int64, batches []Batch, required int64, strategy Strategy, today time.Time, windowDays int) ([]Allocation, error) {
	if required <= 0 {
		return nil, shared.ErrInvalidQuantity
	}
	eligible := make([]Batch, 0, len(batches))
	var available int64
	for _, b := range batches {
		if !b.Allocatable(today) {
			continue
		}
		eligible = append(eligible, b)
		available += b.QuantityAvailable
	}
	if available < required {
		return nil, shared.InsufficientStock(productID, available, required)
	}
	sortBatches(eligible, strategy)

	remaining := required
	allocations := make([]Allocation, 0, 2)
	for _, b := range eligible {
		if remaining == 0 {
			break
		}
		take := min(remaining, b.QuantityAvailable)
		allocations = append(allocations, allocationFrom(b, take, today, windowDays))
		remaining -= take
	}
	return allocations, nil
}

func sortBatches(batches []Batch, strategy Strategy) {
	sort.SliceStable(batches, func(i, j int) bool {
		a, b := batches[i], batches[j]
		if strategy == FEFO {
			switch {
			case a.ExpiryDate == nil && b.ExpiryDate != nil:
				return false
			case a.ExpiryDate != nil && b.ExpiryDate == nil:
				return true
			case a.ExpiryDate != nil && b.ExpiryDate != nil:
				ea, eb := civil(*a.ExpiryDate), civil(*b.ExpiryDate)
				if !ea.Equal(eb) {
					return ea.Before(eb)
				}
			}
		}
		return a.ID < b.ID
	})
}

func allocationFrom(b Batch, qty int64, today time.Time, windowDays int) Allocation {
	return Allocation{
		ProductID:    b.ProductID,
		BatchID:      b.ID,
		BatchNumber:  b.BatchNumber,
		Quantity:     qty,
		ExpiryDate:   b.ExpiryDate,
		NearExpiry:   b.NearExpiry(today, windowDays),
		MRP:          b.MRP,
		SellingPrice: b.SellingPrice,
		CostPrice:    b.CostPrice,
	}
}

// Allocator opens allocation sessions.
type Allocator struct {
	cfg Config
}

// NewAllocator builds an Allocator.
func NewAllocator(cfg Config) *Allocator {
	if cfg.Strategy == "" {
		cfg.Strategy = FEFO
	}
	return &Allocator{cfg: cfg}
}

// Config returns the allocator settings.
func (a *Allocator) Config() Config { return a.cfg }

// Begin opens a session bound to one transaction's store.
func (a *Allocator) Begin(store Store, orgID uuid.UUID, today time.Time) *Session {
	return &Session{
		store:   store,
		orgID:   orgID,
		today:   today,
		cfg:     a.cfg,
		locked:  make(map[int64]bool),
		pools:   make(map[int64][]*Batch),
		batches: make(map[int64]*Batch),
		dirty:   make(map[int64]bool),
	}
}

// RestockKind selects which counter a return_in movement reverses.
type RestockKind int

const (
	// RestockReturn records goods coming back from a customer.
	RestockReturn RestockKind = iota
	// RestockReversal undoes a sale, e.g. on invoice cancellation.
	RestockReversal
)

type pendingMove struct {
	productID int64
	batchID   int64
	typ       MovementType
	in, out   int64
	note      string
}

// Session holds the in-transaction view of the batches touched by one
// document. Mutations stay in memory until Apply writes them.
type Session struct {
	store   Store
	orgID   uuid.UUID
	today   time.Time
	cfg     Config
	locked  map[int64]bool
	pools   map[int64][]*Batch
	batches map[int64]*Batch
	dirty   map[int64]bool
	pending []pendingMove
}

// Today is the business date the session evaluates expiry against.
func (s *Session) Today() time.Time { return s.today }

// Lock takes the per-product locks in ascending product order. Callers
// should lock every product of a document up front.
func (s *Session) Lock(ctx context.Context, productIDs ...int64) error {
	ids := slices.Clone(productIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	for _, id := range ids {
		if s.locked[id] {
			continue
		}
		if err := s.store.LockProduct(ctx, s.orgID, id); err != nil {
			return fmt.Errorf("inventory: lock product %d: %w", id, err)
		}
		s.locked[id] = true
	}
	return nil
}

func (s *Session) pool(ctx context.Context, productID int64) ([]*Batch, error) {
	if pool, ok := s.pools[productID]; ok {
		return pool, nil
	}
	if err := s.Lock(ctx, productID); err != nil {
		return nil, err
	}
	rows, err := s.store.ListAllocatableBatches(ctx, s.orgID, productID, s.today)
	if err != nil {
		return nil, fmt.Errorf("inventory: list batches: %w", err)
	}
	pool := make([]*Batch, 0, len(rows))
	for i := range rows {
		b := s.track(rows[i])
		pool = append(pool, b)
	}
	s.pools[productID] = pool
	return pool, nil
}

func (s *Session) track(b Batch) *Batch {
	if existing, ok := s.batches[b.ID]; ok {
		return existing
	}
	ptr := &b
	s.batches[b.ID] = ptr
	return ptr
}

func (s *Session) batch(ctx context.Context, productID, batchID int64) (*Batch, error) {
	if err := s.Lock(ctx, productID); err != nil {
		return nil, err
	}
	b, ok := s.batches[batchID]
	if !ok {
		row, err := s.store.GetBatchForUpdate(ctx, s.orgID, batchID)
		if err != nil {
			return nil, err
		}
		b = s.track(row)
		if pool, loaded := s.pools[b.ProductID]; loaded && !slices.Contains(pool, b) {
			s.pools[b.ProductID] = append(pool, b)
		}
	}
	if b.ProductID != productID {
		return nil, shared.ErrBatchNotFound.Withf("batch %d does not belong to product %d", batchID, productID)
	}
	return b, nil
}

// Preview plans an allocation against the current snapshot without
// reserving anything.
func (s *Session) Preview(ctx context.Context, productID, qty int64) ([]Allocation, error) {
	pool, err := s.pool(ctx, productID)
	if err != nil {
		return nil, err
	}
	return Plan(productID, snapshot(pool), qty, s.cfg.Strategy, s.today, s.cfg.NearExpiryWindowDays)
}

// Allocate reserves qty units of productID using the configured strategy.
// Later calls for the same product see the earlier reservations.
func (s *Session) Allocate(ctx context.Context, productID, qty int64) ([]Allocation, error) {
	allocations, err := s.Preview(ctx, productID, qty)
	if err != nil {
		return nil, err
	}
	for _, a := range allocations {
		s.consume(s.batches[a.BatchID], a.Quantity, MovementSale)
	}
	return allocations, nil
}

// Take reserves qty units from an explicitly requested batch.
func (s *Session) Take(ctx context.Context, productID, batchID, qty int64) (Allocation, error) {
	if qty <= 0 {
		return Allocation{}, shared.ErrInvalidQuantity
	}
	b, err := s.batch(ctx, productID, batchID)
	if err != nil {
		return Allocation{}, err
	}
	if b.ExpiredOn(s.today) {
		return Allocation{}, shared.ExpiredBatch(batchID, string(BatchExpired))
	}
	if b.Status != BatchActive && b.Status != BatchExhausted {
		return Allocation{}, shared.ExpiredBatch(batchID, string(b.Status))
	}
	if b.QuantityAvailable < qty {
		return Allocation{}, shared.InsufficientStock(productID, b.QuantityAvailable, qty)
	}
	allocation := allocationFrom(*b, qty, s.today, s.cfg.NearExpiryWindowDays)
	s.consume(b, qty, MovementSale)
	return allocation, nil
}

func (s *Session) consume(b *Batch, qty int64, typ MovementType) {
	b.QuantityAvailable -= qty
	b.QuantitySold += qty
	if b.QuantityAvailable == 0 && b.Status == BatchActive {
		b.Status = BatchExhausted
	}
	s.dirty[b.ID] = true
	s.pending = append(s.pending, pendingMove{productID: b.ProductID, batchID: b.ID, typ: typ, out: qty})
}

// Restock puts qty units back on a batch with a return_in movement.
func (s *Session) Restock(ctx context.Context, productID, batchID, qty int64, kind RestockKind) error {
	if qty <= 0 {
		return shared.ErrInvalidQuantity
	}
	b, err := s.batch(ctx, productID, batchID)
	if err != nil {
		return err
	}
	switch kind {
	case RestockReversal:
		if b.QuantitySold < qty {
			return shared.ErrBatchQuantityNegative.Withf("batch %d sold quantity %d cannot be reduced by %d", batchID, b.QuantitySold, qty)
		}
		b.QuantitySold -= qty
	default:
		b.QuantityReturned += qty
	}
	b.QuantityAvailable += qty
	if b.Status == BatchExhausted {
		b.Status = BatchActive
	}
	s.dirty[b.ID] = true
	s.pending = append(s.pending, pendingMove{productID: productID, batchID: batchID, typ: MovementReturnIn, in: qty})
	return nil
}

// ReturnToSupplier removes qty units from a batch with a return_out movement.
// The net returned counter is reduced so the batch identity keeps holding.
func (s *Session) ReturnToSupplier(ctx context.Context, productID, batchID, qty int64) (Batch, error) {
	if qty <= 0 {
		return Batch{}, shared.ErrInvalidQuantity
	}
	b, err := s.batch(ctx, productID, batchID)
	if err != nil {
		return Batch{}, err
	}
	if b.QuantityAvailable < qty {
		return Batch{}, shared.InsufficientStock(productID, b.QuantityAvailable, qty)
	}
	b.QuantityAvailable -= qty
	b.QuantityReturned -= qty
	if b.QuantityAvailable == 0 && b.Status == BatchActive {
		b.Status = BatchExhausted
	}
	s.dirty[b.ID] = true
	s.pending = append(s.pending, pendingMove{productID: productID, batchID: batchID, typ: MovementReturnOut, out: qty})
	return *b, nil
}

// Apply persists every touched batch and writes one movement per
// reservation against ref.
func (s *Session) Apply(ctx context.Context, ref Reference, at time.Time) ([]Movement, error) {
	ids := make([]int64, 0, len(s.dirty))
	for id := range s.dirty {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		b := s.batches[id]
		if b.QuantityAvailable < 0 {
			return nil, shared.NegativeBatch(b.ID, b.QuantityAvailable)
		}
		if err := s.store.SaveBatch(ctx, *b); err != nil {
			return nil, fmt.Errorf("inventory: save batch %d: %w", id, err)
		}
	}
	movements := make([]Movement, 0, len(s.pending))
	for _, p := range s.pending {
		batchID := p.batchID
		m := Movement{
			OrgID:         s.orgID,
			ProductID:     p.productID,
			BatchID:       &batchID,
			Type:          p.typ,
			QuantityIn:    p.in,
			QuantityOut:   p.out,
			ReferenceType: ref.Type,
			ReferenceID:   ref.ID,
			MovementDate:  at,
			Notes:         p.note,
		}
		id, err := s.store.InsertMovement(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("inventory: insert movement: %w", err)
		}
		m.ID = id
		movements = append(movements, m)
	}
	s.pending = nil
	clear(s.dirty)
	return movements, nil
}

func snapshot(pool []*Batch) []Batch {
	out := make([]Batch, len(pool))
	for i, b := range pool {
		out[i] = *b
	}
	return out
}
