package returns

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vikasgargbear/production-infra-sub000/internal/inventory"
	"github.com/vikasgargbear/production-infra-sub000/internal/ledger"
	"github.com/vikasgargbear/production-infra-sub000/internal/masterdata"
	"github.com/vikasgargbear/production-infra-sub000/internal/numbering"
	"github.com/vikasgargbear/production-infra-sub000/internal/sales"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
	"github.com/vikasgargbear/production-infra-sub000/internal/tax"
)

// TxRepository exposes transactional operations.
type TxRepository interface {
	masterdata.TxReader
	inventory.Store
	ledger.Store
	numbering.Store
	sales.InvoiceReader

	ListReturnedQuantities(ctx context.Context, orgID uuid.UUID, invoiceID int64) ([]ReturnedQuantity, error)
	InsertReturn(ctx context.Context, r Return) (int64, error)
	InsertReturnItem(ctx context.Context, item ReturnItem) (int64, error)

	InsertNote(ctx context.Context, n Note) (int64, error)
	SetNoteLedgerEntry(ctx context.Context, orgID uuid.UUID, noteID, entryID int64) error
	GetNoteForUpdate(ctx context.Context, orgID uuid.UUID, noteID int64) (Note, error)
	CancelNoteRecord(ctx context.Context, orgID uuid.UUID, noteID int64, reason string, at time.Time) error
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Recorder receives one observation per operation.
type Recorder interface {
	ObserveOperation(op, outcome string, elapsed time.Duration)
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	Location *time.Location
	Policy   shared.TxPolicy
}

// Components are the collaborators the service composes.
type Components struct {
	Tax       *tax.Engine
	Allocator *inventory.Allocator
	Numbers   *numbering.Generator
	Metrics   Recorder
	Clock     shared.Clock
	Logger    *slog.Logger
}

// Service creates returns and notes.
type Service struct {
	repo      RepositoryPort
	audit     AuditPort
	cfg       ServiceConfig
	tax       *tax.Engine
	allocator *inventory.Allocator
	numbers   *numbering.Generator
	metrics   Recorder
	clock     shared.Clock
	logger    *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, cfg ServiceConfig, c Components) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if c.Tax == nil {
		c.Tax = tax.NewEngine(tax.DefaultConfig())
	}
	if c.Allocator == nil {
		c.Allocator = inventory.NewAllocator(inventory.DefaultConfig())
	}
	if c.Numbers == nil {
		c.Numbers = numbering.NewGenerator(cfg.Policy.NumberingRetries)
	}
	if c.Clock == nil {
		c.Clock = shared.SystemClock{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		audit:     audit,
		cfg:       cfg,
		tax:       c.Tax,
		allocator: c.Allocator,
		numbers:   c.Numbers,
		metrics:   c.Metrics,
		clock:     c.Clock,
		logger:    c.Logger,
	}
}

// CreateSalesReturn takes goods back against an invoice, restocks the
// batches they came from and credits the customer.
func (s *Service) CreateSalesReturn(ctx context.Context, oc shared.OrgContext, req SalesReturnRequest) (ReturnResult, error) {
	started := time.Now()
	result, err := s.createSalesReturn(ctx, oc, req)
	s.observe("create_sales_return", err, started)
	if err != nil {
		s.fail(ctx, oc, "create_sales_return", err)
		return ReturnResult{}, err
	}
	return result, nil
}

func (s *Service) createSalesReturn(ctx context.Context, oc shared.OrgContext, req SalesReturnRequest) (ReturnResult, error) {
	if err := oc.Validate(); err != nil {
		return ReturnResult{}, err
	}
	if err := validateLines(req.Items, false); err != nil {
		return ReturnResult{}, err
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if err := shared.ValidateStruct(req); err != nil {
		return ReturnResult{}, err
	}

	var result ReturnResult
	err := shared.RunTx(ctx, s.cfg.Policy, func(ctx context.Context) error {
		result = ReturnResult{}
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			var err error
			result, err = s.salesReturn(ctx, tx, oc, req)
			return err
		})
	})
	if err != nil {
		return ReturnResult{}, err
	}
	s.logger.Info("returns: sales return created",
		slog.String("org_id", oc.OrgID.String()),
		slog.String("return_number", result.ReturnNumber),
		slog.String("total_amount", result.TotalAmount.StringFixed(2)),
		slog.String("note_number", result.NoteNumber))
	s.record(ctx, oc, "returns:create_sales_return", "return_requests", result.ReturnNumber, map[string]any{
		"invoice_id":   req.InvoiceID,
		"total_amount": result.TotalAmount.StringFixed(2),
		"note_number":  result.NoteNumber,
	})
	return result, nil
}

func (s *Service) salesReturn(ctx context.Context, tx TxRepository, oc shared.OrgContext, req SalesReturnRequest) (ReturnResult, error) {
	now := s.clock.Now()
	invoice, err := tx.GetInvoiceForUpdate(ctx, oc.OrgID, req.InvoiceID)
	if err != nil {
		return ReturnResult{}, err
	}
	if invoice.Status == sales.InvoiceCancelled {
		return ReturnResult{}, shared.ErrInvoiceCancelled.Withf("invoice %s is cancelled", invoice.InvoiceNumber)
	}
	customer, err := tx.GetCustomerForUpdate(ctx, oc.OrgID, invoice.CustomerID)
	if err != nil {
		return ReturnResult{}, err
	}
	items, err := tx.ListInvoiceItems(ctx, oc.OrgID, invoice.ID)
	if err != nil {
		return ReturnResult{}, fmt.Errorf("returns: list invoice items: %w", err)
	}
	prior, err := tx.ListReturnedQuantities(ctx, oc.OrgID, invoice.ID)
	if err != nil {
		return ReturnResult{}, fmt.Errorf("returns: list returned quantities: %w", err)
	}
	planned, err := planSalesReturn(items, prior, req.Items)
	if err != nil {
		return ReturnResult{}, err
	}

	session := s.allocator.Begin(tx, oc.OrgID, shared.BusinessDate(now, s.cfg.Location))
	if err := session.Lock(ctx, productIDs(planned)...); err != nil {
		return ReturnResult{}, err
	}
	for _, p := range planned {
		if err := session.Restock(ctx, p.productID, p.batchID, p.quantity, inventory.RestockReturn); err != nil {
			return ReturnResult{}, err
		}
	}
	priced, err := s.tax.Compute(invoice.GSTType, taxLines(planned), tax.Charges{})
	if err != nil {
		return ReturnResult{}, err
	}

	ret, retItems, err := s.insertReturn(ctx, tx, oc, Return{
		Type:       ReturnSales,
		InvoiceID:  &invoice.ID,
		CustomerID: &customer.ID,
		Reason:     req.Reason,
		GSTType:    invoice.GSTType,
	}, planned, priced, now)
	if err != nil {
		return ReturnResult{}, err
	}
	if _, err := session.Apply(ctx, inventory.Reference{Type: inventory.RefSalesReturn, ID: ret.ID}, now); err != nil {
		return ReturnResult{}, err
	}

	result := resultOf(ret, retItems)
	if !ret.TotalAmount.IsPositive() {
		return result, nil
	}
	entry := ledger.Credit(ledger.PartyCustomer, customer.ID, ledger.TxSalesReturn, "return", ret.ID, ret.TotalAmount)
	entry.Description = "Sales return " + ret.ReturnNumber + " against " + invoice.InvoiceNumber
	posted, err := ledger.NewPoster(tx, oc.OrgID, now).Post(ctx, entry)
	if err != nil {
		return ReturnResult{}, err
	}
	if customer.HasGSTIN() {
		note, err := s.noteForReturn(ctx, tx, oc, NoteCredit, ledger.PartyCustomer, customer.ID, ret, posted.ID, now)
		if err != nil {
			return ReturnResult{}, err
		}
		result.NoteID = &note.ID
		result.NoteNumber = note.NoteNumber
	}
	return result, nil
}

// CreatePurchaseReturn sends goods back to their supplier and reduces the
// payable.
func (s *Service) CreatePurchaseReturn(ctx context.Context, oc shared.OrgContext, req PurchaseReturnRequest) (ReturnResult, error) {
	started := time.Now()
	result, err := s.createPurchaseReturn(ctx, oc, req)
	s.observe("create_purchase_return", err, started)
	if err != nil {
		s.fail(ctx, oc, "create_purchase_return", err)
		return ReturnResult{}, err
	}
	return result, nil
}

func (s *Service) createPurchaseReturn(ctx context.Context, oc shared.OrgContext, req PurchaseReturnRequest) (ReturnResult, error) {
	if err := oc.Validate(); err != nil {
		return ReturnResult{}, err
	}
	if err := validateLines(req.Items, true); err != nil {
		return ReturnResult{}, err
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if err := shared.ValidateStruct(req); err != nil {
		return ReturnResult{}, err
	}

	var result ReturnResult
	err := shared.RunTx(ctx, s.cfg.Policy, func(ctx context.Context) error {
		result = ReturnResult{}
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			var err error
			result, err = s.purchaseReturn(ctx, tx, oc, req)
			return err
		})
	})
	if err != nil {
		return ReturnResult{}, err
	}
	s.logger.Info("returns: purchase return created",
		slog.String("org_id", oc.OrgID.String()),
		slog.String("return_number", result.ReturnNumber),
		slog.String("total_amount", result.TotalAmount.StringFixed(2)))
	s.record(ctx, oc, "returns:create_purchase_return", "return_requests", result.ReturnNumber, map[string]any{
		"supplier_id":  req.SupplierID,
		"total_amount": result.TotalAmount.StringFixed(2),
		"note_number":  result.NoteNumber,
	})
	return result, nil
}

func (s *Service) purchaseReturn(ctx context.Context, tx TxRepository, oc shared.OrgContext, req PurchaseReturnRequest) (ReturnResult, error) {
	now := s.clock.Now()
	org, err := tx.GetOrganisation(ctx, oc.OrgID)
	if err != nil {
		return ReturnResult{}, err
	}
	supplier, err := tx.GetSupplier(ctx, oc.OrgID, req.SupplierID)
	if err != nil {
		return ReturnResult{}, err
	}
	gstType := s.tax.Classify(org.StateCode, tax.BuyerState(supplier.StateCode, supplier.GSTIN))

	products := make(map[int64]masterdata.Product)
	ids := make([]int64, 0, len(req.Items))
	for _, line := range req.Items {
		if _, ok := products[line.ProductID]; ok {
			continue
		}
		p, err := tx.GetProduct(ctx, oc.OrgID, line.ProductID)
		if err != nil {
			return ReturnResult{}, err
		}
		products[line.ProductID] = p
		ids = append(ids, line.ProductID)
	}
	session := s.allocator.Begin(tx, oc.OrgID, shared.BusinessDate(now, s.cfg.Location))
	if err := session.Lock(ctx, ids...); err != nil {
		return ReturnResult{}, err
	}
	planned := make([]plannedLine, 0, len(req.Items))
	for _, line := range req.Items {
		b, err := session.ReturnToSupplier(ctx, line.ProductID, *line.BatchID, line.Quantity)
		if err != nil {
			return ReturnResult{}, err
		}
		if b.SupplierID != nil && *b.SupplierID != supplier.ID {
			return ReturnResult{}, shared.Validationf("batch %s was not supplied by supplier %d", b.BatchNumber, supplier.ID)
		}
		price := b.CostPrice
		if line.ReturnPrice.Valid {
			price = line.ReturnPrice.Decimal
		}
		planned = append(planned, plannedLine{
			productID: line.ProductID,
			batchID:   b.ID,
			quantity:  line.Quantity,
			price:     price,
			discount:  decimal.Zero,
			gst:       products[line.ProductID].GSTPercent,
		})
	}
	priced, err := s.tax.Compute(gstType, taxLines(planned), tax.Charges{})
	if err != nil {
		return ReturnResult{}, err
	}
	ret, retItems, err := s.insertReturn(ctx, tx, oc, Return{
		Type:       ReturnPurchase,
		SupplierID: &supplier.ID,
		Reason:     req.Reason,
		GSTType:    gstType,
	}, planned, priced, now)
	if err != nil {
		return ReturnResult{}, err
	}
	if _, err := session.Apply(ctx, inventory.Reference{Type: inventory.RefPurchaseReturn, ID: ret.ID}, now); err != nil {
		return ReturnResult{}, err
	}

	result := resultOf(ret, retItems)
	if !ret.TotalAmount.IsPositive() {
		return result, nil
	}
	entry := ledger.Debit(ledger.PartySupplier, supplier.ID, ledger.TxPurchaseReturn, "return", ret.ID, ret.TotalAmount)
	entry.Description = "Purchase return " + ret.ReturnNumber
	posted, err := ledger.NewPoster(tx, oc.OrgID, now).Post(ctx, entry)
	if err != nil {
		return ReturnResult{}, err
	}
	if supplier.HasGSTIN() {
		note, err := s.noteForReturn(ctx, tx, oc, NoteDebit, ledger.PartySupplier, supplier.ID, ret, posted.ID, now)
		if err != nil {
			return ReturnResult{}, err
		}
		result.NoteID = &note.ID
		result.NoteNumber = note.NoteNumber
	}
	return result, nil
}

// insertReturn numbers and stores a return with its items.
func (s *Service) insertReturn(ctx context.Context, tx TxRepository, oc shared.OrgContext, ret Return, planned []plannedLine, priced tax.Result, now time.Time) (Return, []ReturnItem, error) {
	number, err := s.numbers.Next(ctx, tx, oc.OrgID, numbering.KindReturn, now.In(s.cfg.Location))
	if err != nil {
		return Return{}, nil, err
	}
	totals := priced.Totals
	ret.OrgID = oc.OrgID
	ret.ReturnNumber = number
	ret.ReturnDate = shared.BusinessDate(now, s.cfg.Location)
	ret.Status = ReturnApproved
	ret.TaxableAmount = totals.Taxable
	ret.CGSTAmount = totals.CGST
	ret.SGSTAmount = totals.SGST
	ret.IGSTAmount = totals.IGST
	ret.TaxAmount = totals.TotalTax
	ret.RoundOff = totals.RoundOff
	ret.TotalAmount = totals.Final
	ret.CreatedBy = oc.UserID
	ret.ID, err = tx.InsertReturn(ctx, ret)
	if err != nil {
		return Return{}, nil, fmt.Errorf("returns: insert return: %w", err)
	}
	items := make([]ReturnItem, 0, len(planned))
	for i, p := range planned {
		lt := priced.Lines[i]
		item := ReturnItem{
			OrgID:           oc.OrgID,
			ReturnID:        ret.ID,
			ProductID:       p.productID,
			BatchID:         p.batchID,
			Quantity:        p.quantity,
			ReturnPrice:     p.price,
			DiscountPercent: p.discount,
			TaxPercent:      lt.GSTPercent,
			TaxableAmount:   lt.Taxable,
			TaxAmount:       lt.TaxTotal,
			TotalAmount:     lt.TotalPrice,
		}
		item.ID, err = tx.InsertReturnItem(ctx, item)
		if err != nil {
			return Return{}, nil, fmt.Errorf("returns: insert return item: %w", err)
		}
		items = append(items, item)
	}
	return ret, items, nil
}

// noteForReturn issues the tax document for a return. The note is settled by
// the return's own ledger posting.
func (s *Service) noteForReturn(ctx context.Context, tx TxRepository, oc shared.OrgContext, typ NoteType, kind ledger.PartyKind, partyID int64, ret Return, entryID int64, now time.Time) (Note, error) {
	numberKind := numbering.KindCreditNote
	if typ == NoteDebit {
		numberKind = numbering.KindDebitNote
	}
	number, err := s.numbers.Next(ctx, tx, oc.OrgID, numberKind, now.In(s.cfg.Location))
	if err != nil {
		return Note{}, err
	}
	returnID := ret.ID
	note := Note{
		OrgID:         oc.OrgID,
		NoteNumber:    number,
		Type:          typ,
		PartyKind:     kind,
		PartyID:       partyID,
		InvoiceID:     ret.InvoiceID,
		ReturnID:      &returnID,
		NoteDate:      ret.ReturnDate,
		Reason:        ret.Reason,
		GSTType:       ret.GSTType,
		TaxableAmount: ret.TaxableAmount,
		CGSTAmount:    ret.CGSTAmount,
		SGSTAmount:    ret.SGSTAmount,
		IGSTAmount:    ret.IGSTAmount,
		TaxAmount:     ret.TaxAmount,
		TotalAmount:   ret.TotalAmount,
		Status:        NoteActive,
		LedgerEntryID: entryID,
		CreatedBy:     oc.UserID,
	}
	note.ID, err = tx.InsertNote(ctx, note)
	if err != nil {
		return Note{}, fmt.Errorf("returns: insert note: %w", err)
	}
	return note, nil
}

func validateLines(lines []ReturnLine, requireBatch bool) error {
	if len(lines) == 0 {
		return shared.ErrEmptyItems
	}
	for i, line := range lines {
		if line.Quantity <= 0 {
			return shared.ErrInvalidQuantity.Withf("item %d: return quantity must be greater than zero", i+1)
		}
		if requireBatch && line.BatchID == nil {
			return shared.Validationf("item %d: batch_id is required", i+1)
		}
		if line.ReturnPrice.Valid && line.ReturnPrice.Decimal.IsNegative() {
			return shared.Validationf("item %d: return price must not be negative", i+1)
		}
	}
	return nil
}

func resultOf(ret Return, items []ReturnItem) ReturnResult {
	return ReturnResult{
		ReturnID:      ret.ID,
		ReturnNumber:  ret.ReturnNumber,
		GSTType:       ret.GSTType,
		TaxableAmount: ret.TaxableAmount,
		TaxAmount:     ret.TaxAmount,
		TotalAmount:   ret.TotalAmount,
		Items:         items,
	}
}

func (s *Service) record(ctx context.Context, oc shared.OrgContext, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		OrgID:    oc.OrgID,
		ActorID:  oc.UserID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
		At:       s.clock.Now(),
	}); err != nil {
		s.logger.Warn("returns: audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) fail(ctx context.Context, oc shared.OrgContext, op string, err error) {
	if !shared.IsKind(err, shared.KindFatal) {
		return
	}
	s.logger.Error("returns: invariant breach",
		slog.String("operation", op),
		slog.String("org_id", oc.OrgID.String()),
		slog.Any("error", err))
	s.record(ctx, oc, "returns:invariant_breach", "operations", op, map[string]any{
		"error":   err.Error(),
		"details": shared.Details(err),
	})
}

func (s *Service) observe(op string, err error, started time.Time) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		if outcome = string(shared.KindOf(err)); outcome == "" {
			outcome = "error"
		}
	}
	s.metrics.ObserveOperation(op, outcome, time.Since(started))
}
