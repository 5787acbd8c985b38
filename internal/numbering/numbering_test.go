package numbering

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

type memoryStore struct {
	issued map[Kind][]string
	locks  int
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{issued: make(map[Kind][]string)}
}

func (s *memoryStore) LockSequence(ctx context.Context, _ uuid.UUID, _ Kind) error {
	s.locks++
	return s.err
}

func (s *memoryStore) LastNumber(ctx context.Context, _ uuid.UUID, kind Kind, prefix string) (string, error) {
	last := ""
	for _, n := range s.issued[kind] {
		if strings.HasPrefix(n, prefix) && (len(n) > len(last) || (len(n) == len(last) && n > last)) {
			last = n
		}
	}
	return last, nil
}

func (s *memoryStore) NumberExists(ctx context.Context, _ uuid.UUID, kind Kind, number string) (bool, error) {
	for _, n := range s.issued[kind] {
		if n == number {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryStore) issue(t *testing.T, g *Generator, kind Kind, at time.Time) string {
	t.Helper()
	n, err := g.Next(context.Background(), s, uuid.Nil, kind, at)
	require.NoError(t, err)
	s.issued[kind] = append(s.issued[kind], n)
	return n
}

func TestFinancialYear(t *testing.T) {
	require.Equal(t, "2425", FinancialYear(time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, "2425", FinancialYear(time.Date(2025, time.March, 31, 23, 0, 0, 0, time.UTC)))
	require.Equal(t, "2324", FinancialYear(time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, "9900", FinancialYear(time.Date(2099, time.June, 1, 0, 0, 0, 0, time.UTC)))
}

func TestOrderNumbersCountTodaysPrefix(t *testing.T) {
	store := newMemoryStore()
	g := NewGenerator(5)
	at := time.Date(2024, time.October, 15, 14, 30, 52, 0, time.UTC)

	require.Equal(t, "ORD202410150001-143052", store.issue(t, g, KindOrder, at))
	require.Equal(t, "ORD202410150002-143052", store.issue(t, g, KindOrder, at))
	require.Equal(t, "ORD202410160001-090000", store.issue(t, g, KindOrder, time.Date(2024, time.October, 16, 9, 0, 0, 0, time.UTC)))
	require.Equal(t, 3, store.locks)
}

func TestInvoiceNumbersIncreaseWithinYear(t *testing.T) {
	store := newMemoryStore()
	g := NewGenerator(5)
	prev := ""
	for i := 0; i < 12; i++ {
		n := store.issue(t, g, KindInvoice, time.Date(2024, time.Month(4+i%9), 1, 0, 0, 0, 0, time.UTC))
		require.True(t, strings.HasPrefix(n, "INV2425"))
		require.Greater(t, n, prev)
		prev = n
	}
	require.Equal(t, "INV242500012", prev)
	require.Equal(t, "INV252600001", store.issue(t, g, KindInvoice, time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)))
}

func TestNoteNumbersRetryOnCollision(t *testing.T) {
	store := newMemoryStore()
	g := NewGenerator(3)
	at := time.Date(2024, time.October, 15, 14, 30, 52, 0, time.UTC)

	require.Equal(t, "CN-20241015-143052", store.issue(t, g, KindCreditNote, at))
	require.Equal(t, "CN-20241015-143052-2", store.issue(t, g, KindCreditNote, at))
	require.Equal(t, "CN-20241015-143052-3", store.issue(t, g, KindCreditNote, at))
	require.Equal(t, "DN-20241015-143052", store.issue(t, g, KindDebitNote, at))

	_, err := g.Next(context.Background(), store, uuid.Nil, KindCreditNote, at)
	require.ErrorIs(t, err, shared.ErrDuplicateNumber)
}

func TestLockFailurePropagates(t *testing.T) {
	store := newMemoryStore()
	store.err = shared.ErrLockWaitTimeout
	_, err := NewGenerator(1).Next(context.Background(), store, uuid.Nil, KindPayment, time.Now())
	require.True(t, errors.Is(err, shared.ErrLockWaitTimeout))
}

func TestSequenceOfRejectsForeignNumbers(t *testing.T) {
	_, err := sequenceOf("XYZ", "INV2425", 5)
	require.Error(t, err)
	n, err := sequenceOf("INV2425123456", "INV2425", 5)
	require.NoError(t, err)
	require.Equal(t, 123456, n)
}
