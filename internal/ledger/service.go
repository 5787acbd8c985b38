package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

// ReadRepository serves ledger reports outside of business transactions.
type ReadRepository interface {
	PartyExists(ctx context.Context, orgID uuid.UUID, kind PartyKind, partyID int64) (bool, error)
	ListEntries(ctx context.Context, orgID uuid.UUID, kind PartyKind, partyID int64) ([]Entry, error)
	// ListOpenInvoices returns unpaid, non-cancelled invoices; customerID 0
	// lists every customer.
	ListOpenInvoices(ctx context.Context, orgID uuid.UUID, customerID int64) ([]OpenInvoice, error)
}

// Service exposes ledger reports.
type Service struct {
	repo   ReadRepository
	clock  shared.Clock
	loc    *time.Location
	logger *slog.Logger
	group  singleflight.Group
}

// NewService builds Service.
func NewService(repo ReadRepository, clock shared.Clock, loc *time.Location, logger *slog.Logger) *Service {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, clock: clock, loc: loc, logger: logger}
}

// CustomerAging buckets a customer's open invoices. Identical concurrent
// requests share one read.
func (s *Service) CustomerAging(ctx context.Context, oc shared.OrgContext, customerID int64) (AgingReport, error) {
	if err := oc.Validate(); err != nil {
		return AgingReport{}, err
	}
	asOf := shared.BusinessDate(s.clock.Now(), s.loc)
	key := fmt.Sprintf("%s:%d:%s", oc.OrgID, customerID, asOf.Format(time.DateOnly))
	v, err, _ := s.group.Do(key, func() (any, error) {
		if err := s.requireParty(ctx, oc.OrgID, PartyCustomer, customerID); err != nil {
			return AgingReport{}, err
		}
		invoices, err := s.repo.ListOpenInvoices(ctx, oc.OrgID, customerID)
		if err != nil {
			return AgingReport{}, fmt.Errorf("ledger: list open invoices: %w", err)
		}
		return Age(customerID, invoices, asOf), nil
	})
	if err != nil {
		return AgingReport{}, err
	}
	return v.(AgingReport), nil
}

// Statement returns the party's ledger with a running balance.
func (s *Service) Statement(ctx context.Context, oc shared.OrgContext, kind PartyKind, partyID int64) (Statement, error) {
	if err := oc.Validate(); err != nil {
		return Statement{}, err
	}
	if err := s.requireParty(ctx, oc.OrgID, kind, partyID); err != nil {
		return Statement{}, err
	}
	entries, err := s.repo.ListEntries(ctx, oc.OrgID, kind, partyID)
	if err != nil {
		return Statement{}, fmt.Errorf("ledger: list entries: %w", err)
	}
	return BuildStatement(kind, partyID, entries), nil
}

// OverdueInvoices lists open invoices at least minDays past due across the org.
func (s *Service) OverdueInvoices(ctx context.Context, oc shared.OrgContext, minDays int) ([]AgedInvoice, error) {
	if err := oc.Validate(); err != nil {
		return nil, err
	}
	asOf := shared.BusinessDate(s.clock.Now(), s.loc)
	invoices, err := s.repo.ListOpenInvoices(ctx, oc.OrgID, 0)
	if err != nil {
		return nil, fmt.Errorf("ledger: list open invoices: %w", err)
	}
	var overdue []AgedInvoice
	for _, aged := range Age(0, invoices, asOf).Invoices {
		if aged.DaysPastDue >= minDays && aged.DaysPastDue > 0 {
			overdue = append(overdue, aged)
		}
	}
	return overdue, nil
}

func (s *Service) requireParty(ctx context.Context, orgID uuid.UUID, kind PartyKind, partyID int64) error {
	ok, err := s.repo.PartyExists(ctx, orgID, kind, partyID)
	if err != nil {
		return fmt.Errorf("ledger: party lookup: %w", err)
	}
	if !ok {
		if kind == PartySupplier {
			return shared.ErrSupplierNotFound
		}
		return shared.ErrCustomerNotFound
	}
	return nil
}
