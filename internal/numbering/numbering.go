// Package numbering issues per-organisation document numbers.
package numbering

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

// Kind identifies a numbered document type.
type Kind string

const (
	KindOrder      Kind = "order"
	KindInvoice    Kind = "invoice"
	KindPayment    Kind = "payment"
	KindReturn     Kind = "return"
	KindCreditNote Kind = "credit_note"
	KindDebitNote  Kind = "debit_note"
)

// Store is the transactional view numbering needs.
type Store interface {
	// LockSequence serialises issuers of (org, kind) until the transaction ends.
	LockSequence(ctx context.Context, orgID uuid.UUID, kind Kind) error
	// LastNumber returns the highest issued number starting with prefix, or "".
	LastNumber(ctx context.Context, orgID uuid.UUID, kind Kind, prefix string) (string, error)
	// NumberExists reports whether number was already issued.
	NumberExists(ctx context.Context, orgID uuid.UUID, kind Kind, number string) (bool, error)
}

// FinancialYear returns the Indian financial year pair for t, e.g. "2425"
// for any date from 1 April 2024 to 31 March 2025.
func FinancialYear(t time.Time) string {
	start := t.Year()
	if t.Month() < time.April {
		start--
	}
	return fmt.Sprintf("%02d%02d", start%100, (start+1)%100)
}

// Prefix returns the date or year prefix a kind's sequence restarts on.
func Prefix(kind Kind, at time.Time) string {
	switch kind {
	case KindOrder:
		return "ORD" + at.Format("20060102")
	case KindInvoice:
		return "INV" + FinancialYear(at)
	case KindPayment:
		return "PAY" + at.Format("20060102")
	case KindReturn:
		return "RET" + at.Format("20060102")
	case KindCreditNote:
		return "CN-" + at.Format("20060102-150405")
	case KindDebitNote:
		return "DN-" + at.Format("20060102-150405")
	}
	return ""
}

func width(kind Kind) int {
	if kind == KindInvoice {
		return 5
	}
	return 4
}

// Generator issues numbers inside the caller's transaction.
type Generator struct {
	retryLimit int
}

// NewGenerator builds a Generator. retryLimit bounds note collision retries.
func NewGenerator(retryLimit int) *Generator {
	if retryLimit <= 0 {
		retryLimit = 5
	}
	return &Generator{retryLimit: retryLimit}
}

// Next returns the next number of kind for org. at must already be in the
// business timezone.
func (g *Generator) Next(ctx context.Context, store Store, orgID uuid.UUID, kind Kind, at time.Time) (string, error) {
	prefix := Prefix(kind, at)
	if prefix == "" {
		return "", fmt.Errorf("numbering: unknown kind %q", kind)
	}
	if err := store.LockSequence(ctx, orgID, kind); err != nil {
		return "", fmt.Errorf("numbering: lock %s: %w", kind, err)
	}
	if kind == KindCreditNote || kind == KindDebitNote {
		return g.nextNote(ctx, store, orgID, kind, prefix)
	}
	last, err := store.LastNumber(ctx, orgID, kind, prefix)
	if err != nil {
		return "", fmt.Errorf("numbering: read last %s: %w", kind, err)
	}
	seq, err := sequenceOf(last, prefix, width(kind))
	if err != nil {
		return "", err
	}
	number := fmt.Sprintf("%s%0*d", prefix, width(kind), seq+1)
	if kind == KindOrder {
		number += "-" + at.Format("150405")
	}
	return number, nil
}

func (g *Generator) nextNote(ctx context.Context, store Store, orgID uuid.UUID, kind Kind, prefix string) (string, error) {
	for attempt := 0; attempt < g.retryLimit; attempt++ {
		candidate := prefix
		if attempt > 0 {
			candidate = fmt.Sprintf("%s-%d", prefix, attempt+1)
		}
		exists, err := store.NumberExists(ctx, orgID, kind, candidate)
		if err != nil {
			return "", fmt.Errorf("numbering: check %s: %w", kind, err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", shared.ErrDuplicateNumber.Withf("numbering: no free %s number for %s after %d attempts", kind, prefix, g.retryLimit)
}

func sequenceOf(last, prefix string, w int) (int, error) {
	if last == "" {
		return 0, nil
	}
	if len(last) < len(prefix)+w || last[:len(prefix)] != prefix {
		return 0, fmt.Errorf("numbering: %q does not extend prefix %q", last, prefix)
	}
	digits := last[len(prefix):]
	end := 0
	for end < len(digits) && digits[end] >= '0' && digits[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(digits[:end])
	if err != nil {
		return 0, fmt.Errorf("numbering: parse %q: %w", last, err)
	}
	return n, nil
}
