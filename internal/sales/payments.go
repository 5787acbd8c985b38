package sales

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vikasgargbear/production-infra-sub000/internal/ledger"
	"github.com/vikasgargbear/production-infra-sub000/internal/money"
	"github.com/vikasgargbear/production-infra-sub000/internal/numbering"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

// RecordPayment applies a completed payment to an open invoice.
func (s *Service) RecordPayment(ctx context.Context, oc shared.OrgContext, invoiceID int64, req PaymentRequest) (PaymentResult, error) {
	started := time.Now()
	result, err := s.recordPayment(ctx, oc, invoiceID, req)
	s.observe(opRecordPayment, err, started)
	if err != nil {
		s.fail(ctx, oc, opRecordPayment, err)
		return PaymentResult{}, err
	}
	return result, nil
}

func (s *Service) recordPayment(ctx context.Context, oc shared.OrgContext, invoiceID int64, req PaymentRequest) (PaymentResult, error) {
	if err := oc.Validate(); err != nil {
		return PaymentResult{}, err
	}
	amount := money.Round(req.Amount)
	if !amount.IsPositive() {
		return PaymentResult{}, shared.ErrInvalidAmount
	}
	mode, err := ParsePaymentMode(req.Mode)
	if err != nil {
		return PaymentResult{}, err
	}
	if mode == ModeCredit {
		return PaymentResult{}, shared.ErrInvalidPayment.Withf("payment mode credit cannot settle an invoice")
	}
	if err := shared.ValidateStruct(req); err != nil {
		return PaymentResult{}, err
	}

	var result PaymentResult
	err = shared.RunTx(ctx, s.cfg.Policy, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			invoice, err := tx.GetInvoiceForUpdate(ctx, oc.OrgID, invoiceID)
			if err != nil {
				return err
			}
			if invoice.Status == InvoiceCancelled {
				return shared.ErrInvoiceCancelled.Withf("invoice %s is cancelled", invoice.InvoiceNumber)
			}
			balance := invoice.TotalAmount.Sub(invoice.PaidAmount)
			if amount.GreaterThan(balance) {
				return shared.Overpayment(balance, amount)
			}
			now := s.clock.Now()
			poster := ledger.NewPoster(tx, oc.OrgID, now)
			payment, updated, err := s.applyPayment(ctx, tx, poster, oc, invoice, amount, mode, req.Reference, now)
			if err != nil {
				return err
			}
			result = PaymentResult{
				PaymentID:     payment.ID,
				PaymentNumber: payment.PaymentNumber,
				InvoiceID:     updated.ID,
				Amount:        payment.Amount,
				PaidAmount:    updated.PaidAmount,
				Balance:       updated.Balance,
				InvoiceStatus: updated.Status,
			}
			return nil
		})
	})
	if err != nil {
		return PaymentResult{}, err
	}

	s.logger.Info("sales: payment recorded",
		slog.String("org_id", oc.OrgID.String()),
		slog.String("payment_number", result.PaymentNumber),
		slog.Int64("invoice_id", result.InvoiceID),
		slog.String("amount", result.Amount.StringFixed(2)))
	s.record(ctx, oc, "sales:record_payment", "invoice_payments", result.PaymentNumber, map[string]any{
		"invoice_id":     result.InvoiceID,
		"amount":         result.Amount.StringFixed(2),
		"balance":        result.Balance.StringFixed(2),
		"invoice_status": string(result.InvoiceStatus),
	})
	return result, nil
}

// applyPayment inserts the payment, moves the invoice and order balances and
// posts the ledger credit. The caller holds the invoice row lock.
func (s *Service) applyPayment(ctx context.Context, tx TxRepository, poster *ledger.Poster, oc shared.OrgContext, invoice Invoice, amount decimal.Decimal, mode PaymentMode, reference string, now time.Time) (Payment, Invoice, error) {
	if open := invoice.TotalAmount.Sub(invoice.PaidAmount); amount.GreaterThan(open) {
		return Payment{}, Invoice{}, shared.Overpayment(open, amount)
	}
	number, err := s.numbers.Next(ctx, tx, oc.OrgID, numbering.KindPayment, now.In(s.cfg.Location))
	if err != nil {
		return Payment{}, Invoice{}, err
	}
	payment := Payment{
		OrgID:         oc.OrgID,
		InvoiceID:     invoice.ID,
		PaymentNumber: number,
		PaymentDate:   now,
		Mode:          mode,
		Amount:        amount,
		Reference:     reference,
		Status:        PaymentCompleted,
	}
	payment.ID, err = tx.InsertPayment(ctx, payment)
	if err != nil {
		return Payment{}, Invoice{}, fmt.Errorf("sales: insert payment: %w", err)
	}

	invoice.PaidAmount = invoice.PaidAmount.Add(amount)
	invoice.Balance = invoice.TotalAmount.Sub(invoice.PaidAmount)
	invoice.Status = invoiceStatusFor(invoice.PaidAmount, invoice.TotalAmount)
	if err := tx.UpdateInvoicePayment(ctx, oc.OrgID, invoice.ID, invoice.PaidAmount, invoice.Balance, invoice.Status); err != nil {
		return Payment{}, Invoice{}, fmt.Errorf("sales: update invoice payment: %w", err)
	}
	if invoice.OrderID != nil {
		status := paymentStatusFor(invoice.PaidAmount, invoice.TotalAmount)
		if err := tx.UpdateOrderPayment(ctx, oc.OrgID, *invoice.OrderID, invoice.PaidAmount, invoice.Balance, status); err != nil {
			return Payment{}, Invoice{}, fmt.Errorf("sales: update order payment: %w", err)
		}
	}

	entry := ledger.Credit(ledger.PartyCustomer, invoice.CustomerID, ledger.TxPayment, "payment", payment.ID, amount)
	entry.Description = "Payment " + number + " against " + invoice.InvoiceNumber
	if reference != "" {
		entry.Description += " ref " + strconv.Quote(reference)
	}
	if _, err := poster.Post(ctx, entry); err != nil {
		return Payment{}, Invoice{}, err
	}
	return payment, invoice, nil
}
