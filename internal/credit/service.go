package credit

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vikasgargbear/production-infra-sub000/internal/masterdata"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

// CustomerReader loads customers outside of a transaction.
type CustomerReader interface {
	GetCustomer(ctx context.Context, orgID uuid.UUID, customerID int64) (masterdata.Customer, error)
}

// Service answers read-only credit checks.
type Service struct {
	customers CustomerReader
}

// NewService builds Service.
func NewService(customers CustomerReader) *Service {
	return &Service{customers: customers}
}

// CheckCredit evaluates amount against the customer's limit and outstanding.
func (s *Service) CheckCredit(ctx context.Context, oc shared.OrgContext, customerID int64, amount decimal.Decimal) (Decision, error) {
	if err := oc.Validate(); err != nil {
		return Decision{}, err
	}
	if amount.IsNegative() {
		return Decision{}, shared.ErrInvalidAmount
	}
	customer, err := s.customers.GetCustomer(ctx, oc.OrgID, customerID)
	if err != nil {
		return Decision{}, err
	}
	return Check(customer.CreditLimit, customer.OutstandingAmount, amount), nil
}
