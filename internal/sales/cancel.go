package sales

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vikasgargbear/production-infra-sub000/internal/inventory"
	"github.com/vikasgargbear/production-infra-sub000/internal/ledger"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

// CancelInvoice cancels an unpaid invoice. Stock goes back to the batches it
// came from and the receivable is reversed.
func (s *Service) CancelInvoice(ctx context.Context, oc shared.OrgContext, invoiceID int64, req CancelRequest) (CancelResult, error) {
	started := time.Now()
	result, err := s.cancelInvoice(ctx, oc, invoiceID, req)
	s.observe(opCancelInvoice, err, started)
	if err != nil {
		s.fail(ctx, oc, opCancelInvoice, err)
		return CancelResult{}, err
	}
	return result, nil
}

func (s *Service) cancelInvoice(ctx context.Context, oc shared.OrgContext, invoiceID int64, req CancelRequest) (CancelResult, error) {
	if err := oc.Validate(); err != nil {
		return CancelResult{}, err
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Reason == "" {
		return CancelResult{}, shared.Validationf("cancel reason is required")
	}
	if err := shared.ValidateStruct(req); err != nil {
		return CancelResult{}, err
	}

	var result CancelResult
	err := shared.RunTx(ctx, s.cfg.Policy, func(ctx context.Context) error {
		result = CancelResult{}
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			invoice, err := tx.GetInvoiceForUpdate(ctx, oc.OrgID, invoiceID)
			if err != nil {
				return err
			}
			if invoice.Status == InvoiceCancelled {
				return shared.ErrAlreadyCancelled.Withf("invoice %s is already cancelled", invoice.InvoiceNumber)
			}
			if invoice.PaidAmount.IsPositive() {
				return shared.ErrHasPayments.Withf("invoice %s has payments of %s", invoice.InvoiceNumber, invoice.PaidAmount.StringFixed(2))
			}
			hasReturns, err := tx.InvoiceHasReturns(ctx, oc.OrgID, invoice.ID)
			if err != nil {
				return fmt.Errorf("sales: check returns: %w", err)
			}
			if hasReturns {
				return shared.ErrHasReturns.Withf("invoice %s has returns", invoice.InvoiceNumber)
			}
			if _, err := tx.GetCustomerForUpdate(ctx, oc.OrgID, invoice.CustomerID); err != nil {
				return err
			}

			now := s.clock.Now()
			items, err := tx.ListInvoiceItems(ctx, oc.OrgID, invoice.ID)
			if err != nil {
				return fmt.Errorf("sales: list invoice items: %w", err)
			}
			session := s.allocator.Begin(tx, oc.OrgID, shared.BusinessDate(now, s.cfg.Location))
			productIDs := make([]int64, 0, len(items))
			for _, item := range items {
				productIDs = append(productIDs, item.ProductID)
			}
			if err := session.Lock(ctx, productIDs...); err != nil {
				return err
			}
			var restocked int64
			for _, item := range items {
				if item.BatchID == nil {
					continue
				}
				if err := session.Restock(ctx, item.ProductID, *item.BatchID, item.Quantity, inventory.RestockReversal); err != nil {
					return err
				}
				restocked += item.Quantity
			}
			if _, err := session.Apply(ctx, inventory.Reference{Type: inventory.RefInvoiceCancel, ID: invoice.ID}, now); err != nil {
				return err
			}

			if invoice.OrderID != nil {
				order, err := tx.GetOrderForUpdate(ctx, oc.OrgID, *invoice.OrderID)
				if err != nil {
					return err
				}
				if !order.Status.CanTransition(OrderCancelled) {
					return shared.ErrInvalidTransition.Withf("order %s cannot move from %s to %s", order.OrderNumber, order.Status, OrderCancelled)
				}
				if err := tx.UpdateOrderStatus(ctx, oc.OrgID, order.ID, OrderCancelled); err != nil {
					return fmt.Errorf("sales: cancel order: %w", err)
				}
			}
			if err := tx.CancelInvoiceRecord(ctx, oc.OrgID, invoice.ID, req.Reason, now); err != nil {
				return fmt.Errorf("sales: cancel invoice: %w", err)
			}

			if invoice.TotalAmount.IsPositive() {
				entry := ledger.Credit(ledger.PartyCustomer, invoice.CustomerID, ledger.TxInvoiceCancel, "invoice", invoice.ID, invoice.TotalAmount)
				entry.Description = "Cancellation of " + invoice.InvoiceNumber + ": " + req.Reason
				if _, err := ledger.NewPoster(tx, oc.OrgID, now).Post(ctx, entry); err != nil {
					return err
				}
			}
			result = CancelResult{
				InvoiceID:     invoice.ID,
				InvoiceNumber: invoice.InvoiceNumber,
				Status:        InvoiceCancelled,
				Reversed:      invoice.TotalAmount,
				Restocked:     restocked,
			}
			return nil
		})
	})
	if err != nil {
		return CancelResult{}, err
	}

	s.logger.Info("sales: invoice cancelled",
		slog.String("org_id", oc.OrgID.String()),
		slog.String("invoice_number", result.InvoiceNumber),
		slog.Int64("restocked", result.Restocked))
	s.record(ctx, oc, "sales:cancel_invoice", "invoices", result.InvoiceNumber, map[string]any{
		"reason":   req.Reason,
		"reversed": result.Reversed.StringFixed(2),
	})
	return result, nil
}
