package inventory

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

var testOrg = uuid.MustParse("7f1a0c52-2b0e-4f7e-9a53-3f0c1f4a2d11")

type memoryStore struct {
	batches   map[int64]Batch
	movements []Movement
	locks     []int64
	saves     int
}

func newMemoryStore(batches ...Batch) *memoryStore {
	s := &memoryStore{batches: make(map[int64]Batch)}
	for _, b := range batches {
		if b.OrgID == uuid.Nil {
			b.OrgID = testOrg
		}
		s.batches[b.ID] = b
	}
	return s
}

func (s *memoryStore) WithTx(ctx context.Context, fn func(context.Context, Store) error) error {
	return fn(ctx, s)
}

func (s *memoryStore) LockProduct(_ context.Context, _ uuid.UUID, productID int64) error {
	s.locks = append(s.locks, productID)
	return nil
}

func (s *memoryStore) ListAllocatableBatches(_ context.Context, orgID uuid.UUID, productID int64, today time.Time) ([]Batch, error) {
	var out []Batch
	for _, b := range s.batches {
		if b.OrgID == orgID && b.ProductID == productID && b.Allocatable(today) {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b Batch) int { return int(a.ID - b.ID) })
	return out, nil
}

func (s *memoryStore) ListExpiringBatches(_ context.Context, orgID uuid.UUID, asOf time.Time) ([]Batch, error) {
	var out []Batch
	for _, b := range s.batches {
		if b.OrgID == orgID && b.ExpiredOn(asOf) && (b.Status == BatchActive || b.Status == BatchExhausted) {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b Batch) int { return int(a.ID - b.ID) })
	return out, nil
}

func (s *memoryStore) GetBatchForUpdate(_ context.Context, orgID uuid.UUID, batchID int64) (Batch, error) {
	b, ok := s.batches[batchID]
	if !ok || b.OrgID != orgID {
		return Batch{}, shared.ErrBatchNotFound
	}
	return b, nil
}

func (s *memoryStore) SaveBatch(_ context.Context, b Batch) error {
	s.saves++
	s.batches[b.ID] = b
	return nil
}

func (s *memoryStore) InsertMovement(_ context.Context, m Movement) (int64, error) {
	m.ID = int64(len(s.movements) + 1)
	s.movements = append(s.movements, m)
	return m.ID, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func expiry(y int, m time.Month, d int) *time.Time {
	t := day(y, m, d)
	return &t
}

func stocked(id, productID, qty int64, exp *time.Time) Batch {
	return Batch{
		ID:                id,
		OrgID:             testOrg,
		ProductID:         productID,
		BatchNumber:       fmt.Sprintf("B%d", id),
		ExpiryDate:        exp,
		QuantityReceived:  qty,
		QuantityAvailable: qty,
		CostPrice:         decimal.NewFromInt(50),
		SellingPrice:      decimal.NewFromInt(90),
		MRP:               decimal.NewFromInt(100),
		Status:            BatchActive,
	}
}

func quantities(allocations []Allocation) map[int64]int64 {
	out := make(map[int64]int64)
	for _, a := range allocations {
		out[a.BatchID] += a.Quantity
	}
	return out
}

func TestPlanFEFOAcrossBatches(t *testing.T) {
	today := day(2024, time.December, 1)
	batches := []Batch{
		stocked(22, 2, 20, expiry(2025, time.June, 30)),
		stocked(21, 2, 8, expiry(2025, time.January, 31)),
	}
	allocations, err := Plan(2, batches, 15, FEFO, today, 90)
	require.NoError(t, err)
	require.Len(t, allocations, 2)
	assert.Equal(t, int64(21), allocations[0].BatchID)
	assert.Equal(t, int64(8), allocations[0].Quantity)
	assert.True(t, allocations[0].NearExpiry)
	assert.Equal(t, int64(22), allocations[1].BatchID)
	assert.Equal(t, int64(7), allocations[1].Quantity)
	assert.False(t, allocations[1].NearExpiry)
	assert.Equal(t, int64(20), batches[0].QuantityAvailable, "plan must not mutate input")
}

func TestPlanFEFOTieBreakAndNullsLast(t *testing.T) {
	today := day(2024, time.December, 1)
	batches := []Batch{
		stocked(5, 1, 5, nil),
		stocked(4, 1, 5, expiry(2025, time.March, 1)),
		stocked(3, 1, 5, expiry(2025, time.March, 1)),
	}
	allocations, err := Plan(1, batches, 12, FEFO, today, 0)
	require.NoError(t, err)
	ids := make([]int64, 0, len(allocations))
	for _, a := range allocations {
		ids = append(ids, a.BatchID)
	}
	assert.Equal(t, []int64{3, 4, 5}, ids)
	assert.Equal(t, int64(2), allocations[2].Quantity)
}

func TestPlanFIFOUsesBatchOrder(t *testing.T) {
	today := day(2024, time.December, 1)
	batches := []Batch{
		stocked(9, 1, 10, expiry(2025, time.January, 5)),
		stocked(2, 1, 10, expiry(2026, time.January, 5)),
	}
	allocations, err := Plan(1, batches, 12, FIFO, today, 90)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{2: 10, 9: 2}, quantities(allocations))
	assert.Equal(t, int64(2), allocations[0].BatchID)
}

func TestPlanExcludesBatchExpiringToday(t *testing.T) {
	today := day(2025, time.January, 31)
	batches := []Batch{
		stocked(1, 1, 8, expiry(2025, time.January, 31)),
		stocked(2, 1, 4, expiry(2025, time.February, 1)),
	}
	_, err := Plan(1, batches, 5, FEFO, today, 90)
	require.Error(t, err)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	details := shared.Details(err)
	assert.Equal(t, int64(4), details["available"])
	assert.Equal(t, int64(5), details["requested"])
	assert.Equal(t, int64(1), details["shortfall"])
}

func TestPlanSkipsInactiveBatches(t *testing.T) {
	today := day(2024, time.December, 1)
	quarantined := stocked(1, 1, 50, nil)
	quarantined.Status = BatchQuarantined
	allocations, err := Plan(1, []Batch{quarantined, stocked(2, 1, 5, nil)}, 5, FEFO, today, 90)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{2: 5}, quantities(allocations))
}

func TestSessionAllocateAndApply(t *testing.T) {
	ctx := context.Background()
	today := day(2024, time.December, 1)
	store := newMemoryStore(
		stocked(21, 2, 8, expiry(2025, time.January, 31)),
		stocked(22, 2, 20, expiry(2025, time.June, 30)),
	)
	session := NewAllocator(DefaultConfig()).Begin(store, testOrg, today)
	require.NoError(t, session.Lock(ctx, 2))

	allocations, err := session.Allocate(ctx, 2, 15)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{21: 8, 22: 7}, quantities(allocations))
	assert.Zero(t, store.saves, "nothing is written before apply")

	movements, err := session.Apply(ctx, Reference{Type: RefOrder, ID: 77}, today)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	for _, m := range movements {
		assert.Equal(t, MovementSale, m.Type)
		assert.Equal(t, RefOrder, m.ReferenceType)
		assert.Equal(t, int64(77), m.ReferenceID)
		assert.Zero(t, m.QuantityIn)
	}

	b2a, b2b := store.batches[21], store.batches[22]
	assert.Equal(t, BatchExhausted, b2a.Status)
	assert.Equal(t, int64(0), b2a.QuantityAvailable)
	assert.Equal(t, int64(13), b2b.QuantityAvailable)
	assert.Equal(t, int64(7), b2b.QuantitySold)
	assert.True(t, b2a.Balanced())
	assert.True(t, b2b.Balanced())
	assert.Equal(t, []int64{2}, store.locks)
}

func TestSessionSuccessiveLinesShareSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(stocked(1, 1, 10, nil))
	session := NewAllocator(DefaultConfig()).Begin(store, testOrg, day(2024, time.June, 1))

	_, err := session.Allocate(ctx, 1, 7)
	require.NoError(t, err)
	_, err = session.Allocate(ctx, 1, 7)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	assert.Equal(t, int64(3), shared.Details(err)["available"])
	assert.Equal(t, int64(10), store.batches[1].QuantityAvailable)
}

func TestSessionLockOrderIsAscending(t *testing.T) {
	store := newMemoryStore()
	session := NewAllocator(DefaultConfig()).Begin(store, testOrg, day(2024, time.June, 1))
	require.NoError(t, session.Lock(context.Background(), 9, 3, 9, 5))
	require.NoError(t, session.Lock(context.Background(), 3))
	assert.Equal(t, []int64{3, 5, 9}, store.locks)
}

func TestSessionTake(t *testing.T) {
	ctx := context.Background()
	today := day(2025, time.January, 31)
	expired := stocked(1, 1, 10, expiry(2025, time.January, 31))
	quarantined := stocked(2, 1, 10, nil)
	quarantined.Status = BatchQuarantined
	store := newMemoryStore(expired, quarantined, stocked(3, 1, 4, nil), stocked(4, 2, 4, nil))
	session := NewAllocator(DefaultConfig()).Begin(store, testOrg, today)

	_, err := session.Take(ctx, 1, 1, 2)
	require.ErrorIs(t, err, shared.ErrExpiredBatchSelected)
	assert.Equal(t, shared.KindPolicy, shared.KindOf(err))

	_, err = session.Take(ctx, 1, 2, 2)
	require.ErrorIs(t, err, shared.ErrExpiredBatchSelected)

	_, err = session.Take(ctx, 1, 4, 2)
	require.ErrorIs(t, err, shared.ErrBatchNotFound)

	_, err = session.Take(ctx, 1, 99, 2)
	require.ErrorIs(t, err, shared.ErrBatchNotFound)

	_, err = session.Take(ctx, 1, 3, 5)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	allocation, err := session.Take(ctx, 1, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), allocation.Quantity)

	_, err = session.Apply(ctx, Reference{Type: RefInvoice, ID: 5}, today)
	require.NoError(t, err)
	assert.Equal(t, BatchExhausted, store.batches[3].Status)
}

func TestSessionRestockAndSupplierReturn(t *testing.T) {
	ctx := context.Background()
	today := day(2024, time.December, 1)
	sold := stocked(1, 1, 10, nil)
	sold.QuantityAvailable, sold.QuantitySold, sold.Status = 0, 10, BatchExhausted
	store := newMemoryStore(sold, stocked(2, 1, 20, nil))
	session := NewAllocator(DefaultConfig()).Begin(store, testOrg, today)

	require.NoError(t, session.Restock(ctx, 1, 1, 4, RestockReversal))
	require.NoError(t, session.Restock(ctx, 1, 1, 1, RestockReturn))
	_, err := session.ReturnToSupplier(ctx, 1, 2, 21)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	after, err := session.ReturnToSupplier(ctx, 1, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(15), after.QuantityAvailable)

	movements, err := session.Apply(ctx, Reference{Type: RefSalesReturn, ID: 3}, today)
	require.NoError(t, err)
	require.Len(t, movements, 3)
	assert.Equal(t, MovementReturnIn, movements[0].Type)
	assert.Equal(t, MovementReturnOut, movements[2].Type)

	b1 := store.batches[1]
	assert.Equal(t, int64(5), b1.QuantityAvailable)
	assert.Equal(t, int64(6), b1.QuantitySold)
	assert.Equal(t, int64(1), b1.QuantityReturned)
	assert.Equal(t, BatchActive, b1.Status)
	assert.True(t, b1.Balanced())
	b2 := store.batches[2]
	assert.Equal(t, int64(-5), b2.QuantityReturned)
	assert.True(t, b2.Balanced())

	err = session.Restock(ctx, 1, 1, 50, RestockReversal)
	require.ErrorIs(t, err, shared.ErrBatchQuantityNegative)
}

func TestMovementsAgreeWithBatches(t *testing.T) {
	ctx := context.Background()
	today := day(2024, time.December, 1)
	store := newMemoryStore(stocked(1, 1, 10, nil), stocked(2, 1, 10, nil))
	allocator := NewAllocator(Config{Strategy: FIFO})

	s1 := allocator.Begin(store, testOrg, today)
	_, err := s1.Allocate(ctx, 1, 14)
	require.NoError(t, err)
	_, err = s1.Apply(ctx, Reference{Type: RefOrder, ID: 1}, today)
	require.NoError(t, err)

	s2 := allocator.Begin(store, testOrg, today)
	require.NoError(t, s2.Restock(ctx, 1, 2, 3, RestockReturn))
	_, err = s2.Apply(ctx, Reference{Type: RefSalesReturn, ID: 1}, today)
	require.NoError(t, err)

	for id, b := range store.batches {
		net := b.QuantityReceived
		for _, m := range store.movements {
			if m.BatchID != nil && *m.BatchID == id {
				net += m.QuantityIn - m.QuantityOut
			}
		}
		assert.Equal(t, b.QuantityAvailable, net, "batch %d", id)
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("fifo")
	require.NoError(t, err)
	assert.Equal(t, FIFO, s)
	s, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, FEFO, s)
	_, err = ParseStrategy("lifo")
	require.Error(t, err)
}
