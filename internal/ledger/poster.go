package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vikasgargbear/production-infra-sub000/internal/money"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

// Poster appends entries inside a caller's transaction and keeps the
// customer outstanding cache equal to the ledger sum.
type Poster struct {
	store Store
	orgID uuid.UUID
	at    time.Time
}

// NewPoster binds a poster to one transaction.
func NewPoster(store Store, orgID uuid.UUID, at time.Time) *Poster {
	return &Poster{store: store, orgID: orgID, at: at}
}

// Post appends e and, for customers, updates and verifies the outstanding.
func (p *Poster) Post(ctx context.Context, e Entry) (Entry, error) {
	e.OrgID = p.orgID
	e.Debit = money.Round(e.Debit)
	e.Credit = money.Round(e.Credit)
	if e.TransactionDate.IsZero() {
		e.TransactionDate = p.at
	}
	e.Description = describe(e)
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	id, err := p.store.InsertEntry(ctx, e)
	if err != nil {
		return Entry{}, fmt.Errorf("ledger: insert entry: %w", err)
	}
	e.ID = id
	if e.PartyKind != PartyCustomer {
		return e, nil
	}
	outstanding, err := p.store.AdjustOutstanding(ctx, p.orgID, e.PartyID, e.Net())
	if err != nil {
		return Entry{}, fmt.Errorf("ledger: adjust outstanding: %w", err)
	}
	debit, credit, err := p.store.PartyTotals(ctx, p.orgID, PartyCustomer, e.PartyID)
	if err != nil {
		return Entry{}, fmt.Errorf("ledger: party totals: %w", err)
	}
	if sum := debit.Sub(credit); !sum.Equal(outstanding) {
		return Entry{}, shared.OutstandingMismatch(e.PartyID, outstanding, sum)
	}
	return e, nil
}

// Reverse loads entryID and posts its opposite.
func (p *Poster) Reverse(ctx context.Context, entryID int64, typ TransactionType, description string) (Entry, error) {
	original, err := p.store.GetEntry(ctx, p.orgID, entryID)
	if err != nil {
		return Entry{}, err
	}
	return p.Post(ctx, Reverse(original, typ, description))
}
