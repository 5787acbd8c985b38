package returns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vikasgargbear/production-infra-sub000/internal/ledger"
	"github.com/vikasgargbear/production-infra-sub000/internal/money"
	"github.com/vikasgargbear/production-infra-sub000/internal/numbering"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
	"github.com/vikasgargbear/production-infra-sub000/internal/tax"
)

// CreateCreditNote issues a standalone credit note.
func (s *Service) CreateCreditNote(ctx context.Context, oc shared.OrgContext, req NoteRequest) (NoteResult, error) {
	return s.createNote(ctx, oc, NoteCredit, req)
}

// CreateDebitNote issues a standalone debit note.
func (s *Service) CreateDebitNote(ctx context.Context, oc shared.OrgContext, req NoteRequest) (NoteResult, error) {
	return s.createNote(ctx, oc, NoteDebit, req)
}

func (s *Service) createNote(ctx context.Context, oc shared.OrgContext, typ NoteType, req NoteRequest) (NoteResult, error) {
	op := "create_" + string(typ) + "_note"
	started := time.Now()
	result, err := s.issueNote(ctx, oc, typ, req)
	s.observe(op, err, started)
	if err != nil {
		s.fail(ctx, oc, op, err)
		return NoteResult{}, err
	}
	s.logger.Info("returns: note issued",
		slog.String("org_id", oc.OrgID.String()),
		slog.String("note_number", result.NoteNumber),
		slog.String("party_kind", req.PartyKind),
		slog.Int64("party_id", req.PartyID),
		slog.String("total_amount", result.TotalAmount.StringFixed(2)))
	s.record(ctx, oc, "returns:"+op, "financial_notes", result.NoteNumber, map[string]any{
		"party_kind":   req.PartyKind,
		"party_id":     req.PartyID,
		"total_amount": result.TotalAmount.StringFixed(2),
	})
	return result, nil
}

func (s *Service) issueNote(ctx context.Context, oc shared.OrgContext, typ NoteType, req NoteRequest) (NoteResult, error) {
	if err := oc.Validate(); err != nil {
		return NoteResult{}, err
	}
	req.Amount = money.Round(req.Amount)
	if !req.Amount.IsPositive() {
		return NoteResult{}, shared.ErrInvalidAmount.Withf("note amount must be greater than zero")
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if err := shared.ValidateStruct(req); err != nil {
		return NoteResult{}, err
	}
	kind, err := ledger.ParsePartyKind(req.PartyKind)
	if err != nil {
		return NoteResult{}, err
	}
	if req.InvoiceID != nil && kind != ledger.PartyCustomer {
		return NoteResult{}, shared.Validationf("linked_invoice_id applies to customer notes only")
	}

	var result NoteResult
	err = shared.RunTx(ctx, s.cfg.Policy, func(ctx context.Context) error {
		result = NoteResult{}
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			var err error
			result, err = s.note(ctx, tx, oc, typ, kind, req)
			return err
		})
	})
	if err != nil {
		return NoteResult{}, err
	}
	return result, nil
}

func (s *Service) note(ctx context.Context, tx TxRepository, oc shared.OrgContext, typ NoteType, kind ledger.PartyKind, req NoteRequest) (NoteResult, error) {
	now := s.clock.Now()
	org, err := tx.GetOrganisation(ctx, oc.OrgID)
	if err != nil {
		return NoteResult{}, err
	}
	state, gstin, err := s.party(ctx, tx, oc, kind, req.PartyID)
	if err != nil {
		return NoteResult{}, err
	}
	if req.InvoiceID != nil {
		invoice, err := tx.GetInvoiceForUpdate(ctx, oc.OrgID, *req.InvoiceID)
		if err != nil {
			return NoteResult{}, err
		}
		if invoice.CustomerID != req.PartyID {
			return NoteResult{}, shared.Validationf("invoice %s does not belong to customer %d", invoice.InvoiceNumber, req.PartyID)
		}
	}
	gstType := s.tax.Classify(org.StateCode, tax.BuyerState(state, gstin))

	note := Note{
		OrgID:         oc.OrgID,
		Type:          typ,
		PartyKind:     kind,
		PartyID:       req.PartyID,
		InvoiceID:     req.InvoiceID,
		NoteDate:      shared.BusinessDate(now, s.cfg.Location),
		Reason:        req.Reason,
		GSTType:       gstType,
		TaxableAmount: req.Amount,
		TotalAmount:   req.Amount,
		Status:        NoteActive,
		CreatedBy:     oc.UserID,
	}
	if req.GSTPercent.Valid {
		lt, err := s.tax.ComputeLine(gstType, tax.Line{Quantity: 1, UnitPrice: req.Amount, GSTPercent: req.GSTPercent})
		if err != nil {
			return NoteResult{}, err
		}
		note.TaxableAmount = lt.Taxable
		note.GSTPercent = lt.GSTPercent
		note.CGSTAmount = lt.CGST
		note.SGSTAmount = lt.SGST
		note.IGSTAmount = lt.IGST
		note.TaxAmount = lt.TaxTotal
		note.TotalAmount = lt.TotalPrice
	}

	numberKind := numbering.KindCreditNote
	if typ == NoteDebit {
		numberKind = numbering.KindDebitNote
	}
	note.NoteNumber, err = s.numbers.Next(ctx, tx, oc.OrgID, numberKind, now.In(s.cfg.Location))
	if err != nil {
		return NoteResult{}, err
	}
	note.ID, err = tx.InsertNote(ctx, note)
	if err != nil {
		return NoteResult{}, fmt.Errorf("returns: insert note: %w", err)
	}

	build := ledger.Credit
	if postingSide(kind, typ) {
		build = ledger.Debit
	}
	entry := build(kind, req.PartyID, transactionType(typ), string(typ)+"_note", note.ID, note.TotalAmount)
	entry.Description = strings.ToUpper(string(typ[:1])) + string(typ[1:]) + " note " + note.NoteNumber
	posted, err := ledger.NewPoster(tx, oc.OrgID, now).Post(ctx, entry)
	if err != nil {
		return NoteResult{}, err
	}
	if err := tx.SetNoteLedgerEntry(ctx, oc.OrgID, note.ID, posted.ID); err != nil {
		return NoteResult{}, err
	}
	return NoteResult{
		NoteID:      note.ID,
		NoteNumber:  note.NoteNumber,
		Type:        typ,
		TotalAmount: note.TotalAmount,
	}, nil
}

// party loads and, for customers, locks the counterparty of a note.
func (s *Service) party(ctx context.Context, tx TxRepository, oc shared.OrgContext, kind ledger.PartyKind, id int64) (state, gstin string, err error) {
	switch kind {
	case ledger.PartyCustomer:
		c, err := tx.GetCustomerForUpdate(ctx, oc.OrgID, id)
		if errors.Is(err, shared.ErrCustomerNotFound) {
			return "", "", shared.ErrPartyNotFound.Withf("customer %d not found", id)
		}
		if err != nil {
			return "", "", err
		}
		return c.StateCode, c.GSTIN, nil
	default:
		sup, err := tx.GetSupplier(ctx, oc.OrgID, id)
		if errors.Is(err, shared.ErrSupplierNotFound) {
			return "", "", shared.ErrPartyNotFound.Withf("supplier %d not found", id)
		}
		if err != nil {
			return "", "", err
		}
		return sup.StateCode, sup.GSTIN, nil
	}
}

// CancelNote voids a standalone note and posts the opposite entry.
func (s *Service) CancelNote(ctx context.Context, oc shared.OrgContext, noteID int64, req CancelRequest) (CancelResult, error) {
	started := time.Now()
	result, err := s.cancelNote(ctx, oc, noteID, req)
	s.observe("cancel_note", err, started)
	if err != nil {
		s.fail(ctx, oc, "cancel_note", err)
		return CancelResult{}, err
	}
	s.logger.Info("returns: note cancelled",
		slog.String("org_id", oc.OrgID.String()),
		slog.String("note_number", result.NoteNumber),
		slog.String("reversed_amount", result.Reversed.StringFixed(2)))
	s.record(ctx, oc, "returns:cancel_note", "financial_notes", result.NoteNumber, map[string]any{
		"reason":          strings.TrimSpace(req.Reason),
		"reversed_amount": result.Reversed.StringFixed(2),
	})
	return result, nil
}

func (s *Service) cancelNote(ctx context.Context, oc shared.OrgContext, noteID int64, req CancelRequest) (CancelResult, error) {
	if err := oc.Validate(); err != nil {
		return CancelResult{}, err
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if err := shared.ValidateStruct(req); err != nil {
		return CancelResult{}, err
	}

	var result CancelResult
	err := shared.RunTx(ctx, s.cfg.Policy, func(ctx context.Context) error {
		result = CancelResult{}
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			now := s.clock.Now()
			note, err := tx.GetNoteForUpdate(ctx, oc.OrgID, noteID)
			if err != nil {
				return err
			}
			if note.Status == NoteCancelled {
				return shared.ErrAlreadyCancelled.Withf("note %s is already cancelled", note.NoteNumber)
			}
			if note.ReturnID != nil {
				return shared.ErrInvalidTransition.Withf("note %s belongs to return %d and cannot be cancelled on its own", note.NoteNumber, *note.ReturnID)
			}
			if note.PartyKind == ledger.PartyCustomer {
				if _, err := tx.GetCustomerForUpdate(ctx, oc.OrgID, note.PartyID); err != nil {
					return err
				}
			}
			reversed := note.TotalAmount
			if note.LedgerEntryID > 0 {
				entry, err := ledger.NewPoster(tx, oc.OrgID, now).Reverse(ctx, note.LedgerEntryID, ledger.TxNoteCancel,
					"Cancellation of "+note.NoteNumber+": "+req.Reason)
				if err != nil {
					return err
				}
				reversed = entry.Debit.Add(entry.Credit)
			}
			if err := tx.CancelNoteRecord(ctx, oc.OrgID, note.ID, req.Reason, now); err != nil {
				return err
			}
			result = CancelResult{
				NoteID:     note.ID,
				NoteNumber: note.NoteNumber,
				Status:     NoteCancelled,
				Reversed:   reversed,
			}
			return nil
		})
	})
	if err != nil {
		return CancelResult{}, err
	}
	return result, nil
}
