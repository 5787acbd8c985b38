package sales

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vikasgargbear/production-infra-sub000/internal/credit"
	"github.com/vikasgargbear/production-infra-sub000/internal/inventory"
	"github.com/vikasgargbear/production-infra-sub000/internal/ledger"
	"github.com/vikasgargbear/production-infra-sub000/internal/masterdata"
	"github.com/vikasgargbear/production-infra-sub000/internal/money"
	"github.com/vikasgargbear/production-infra-sub000/internal/numbering"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
	"github.com/vikasgargbear/production-infra-sub000/internal/tax"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ResultCache is the fast path for replayed idempotency keys.
type ResultCache interface {
	Get(ctx context.Context, orgID uuid.UUID, module, key string, dest any) (bool, error)
	Put(ctx context.Context, orgID uuid.UUID, module, key string, value any) error
}

// Recorder receives one observation per engine operation.
type Recorder interface {
	ObserveOperation(op, outcome string, elapsed time.Duration)
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	Location                     *time.Location
	Policy                       shared.TxPolicy
	EnableLoyaltyPoints          bool
	RequirePrescriptionReference bool
}

// Components are the collaborators the engine composes.
type Components struct {
	Tax       *tax.Engine
	Allocator *inventory.Allocator
	Numbers   *numbering.Generator
	Cache     ResultCache
	Metrics   Recorder
	Clock     shared.Clock
	Logger    *slog.Logger
}

// Service coordinates orders, invoices and payments.
type Service struct {
	repo      RepositoryPort
	audit     AuditPort
	cfg       ServiceConfig
	tax       *tax.Engine
	allocator *inventory.Allocator
	numbers   *numbering.Generator
	cache     ResultCache
	metrics   Recorder
	clock     shared.Clock
	logger    *slog.Logger
}

// NewService builds Service. Missing components fall back to defaults.
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
		cache:     c.Cache,
		metrics:   c.Metrics,
		clock:     c.Clock,
		logger:    c.Logger,
	}
}

const (
	opCreateOrder      = "create_order"
	opCreateDirectSale = "create_direct_sale"
	opRecordPayment    = "record_payment"
	opCancelInvoice    = "cancel_invoice"
)

// CreateOrder writes an order, its invoice, stock movements, the optional
// payment and the ledger postings in one transaction.
func (s *Service) CreateOrder(ctx context.Context, oc shared.OrgContext, req SaleRequest) (SaleResult, error) {
	return s.createSale(ctx, oc, req, false)
}

// CreateDirectSale is CreateOrder without the order row.
func (s *Service) CreateDirectSale(ctx context.Context, oc shared.OrgContext, req SaleRequest) (SaleResult, error) {
	return s.createSale(ctx, oc, req, true)
}

func (s *Service) createSale(ctx context.Context, oc shared.OrgContext, req SaleRequest, direct bool) (SaleResult, error) {
	op := opCreateOrder
	if direct {
		op = opCreateDirectSale
	}
	started := time.Now()
	result, err := s.runSale(ctx, oc, req, op, direct)
	s.observe(op, err, started)
	if err != nil {
		s.fail(ctx, oc, op, err)
		return SaleResult{}, err
	}
	return result, nil
}

func (s *Service) runSale(ctx context.Context, oc shared.OrgContext, req SaleRequest, op string, direct bool) (SaleResult, error) {
	if err := oc.Validate(); err != nil {
		return SaleResult{}, err
	}
	mode, err := validateSale(req)
	if err != nil {
		return SaleResult{}, err
	}
	module := "sales:" + op
	if req.IdempotencyKey != "" && s.cache != nil {
		var cached SaleResult
		hit, err := s.cache.Get(ctx, oc.OrgID, module, req.IdempotencyKey, &cached)
		if err != nil {
			s.logger.Warn("sales: idempotency cache read failed", slog.String("key", req.IdempotencyKey), slog.Any("error", err))
		} else if hit {
			cached.Replayed = true
			return cached, nil
		}
	}

	var result SaleResult
	err = shared.RunTx(ctx, s.cfg.Policy, func(ctx context.Context) error {
		result = SaleResult{}
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			var err error
			result, err = s.sale(ctx, tx, oc, req, mode, direct, module)
			return err
		})
	})
	if err != nil {
		return SaleResult{}, err
	}
	if result.Replayed {
		return result, nil
	}

	s.afterSale(ctx, oc, op, result)
	if req.IdempotencyKey != "" && s.cache != nil {
		if err := s.cache.Put(ctx, oc.OrgID, module, req.IdempotencyKey, result); err != nil {
			s.logger.Warn("sales: idempotency cache write failed", slog.String("key", req.IdempotencyKey), slog.Any("error", err))
		}
	}
	return result, nil
}

// validateSale checks the request before any state is read.
func validateSale(req SaleRequest) (PaymentMode, error) {
	if len(req.Items) == 0 {
		return "", shared.ErrEmptyItems
	}
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return "", shared.ErrInvalidQuantity.Withf("item %d: quantity must be greater than zero", i+1)
		}
		if item.UnitPrice.Valid && item.UnitPrice.Decimal.IsNegative() {
			return "", shared.Validationf("item %d: unit price must not be negative", i+1)
		}
		if item.DiscountPercent.Valid && (item.DiscountPercent.Decimal.IsNegative() || item.DiscountPercent.Decimal.GreaterThan(money.Hundred)) {
			return "", shared.Validationf("item %d: discount percent must be between 0 and 100", i+1)
		}
	}
	mode, err := ParsePaymentMode(req.PaymentMode)
	if err != nil {
		return "", err
	}
	if req.PaymentAmount.IsNegative() {
		return "", shared.ErrInvalidAmount.Withf("payment amount must not be negative")
	}
	if mode == ModeCredit && req.PaymentAmount.IsPositive() {
		return "", shared.Validationf("payment amount not allowed with payment mode credit")
	}
	if req.DiscountAmount.IsNegative() || req.DeliveryCharges.IsNegative() || req.OtherCharges.IsNegative() {
		return "", shared.Validationf("discount and charges must not be negative")
	}
	if err := shared.ValidateStruct(req); err != nil {
		return "", err
	}
	return mode, nil
}

func (s *Service) sale(ctx context.Context, tx TxRepository, oc shared.OrgContext, req SaleRequest, mode PaymentMode, direct bool, module string) (SaleResult, error) {
	if req.IdempotencyKey != "" {
		raw, ok, err := tx.LookupIdempotent(ctx, oc.OrgID, module, req.IdempotencyKey)
		if err != nil {
			return SaleResult{}, fmt.Errorf("sales: idempotency lookup: %w", err)
		}
		if ok {
			var prev SaleResult
			if err := json.Unmarshal(raw, &prev); err != nil {
				return SaleResult{}, fmt.Errorf("sales: decode stored result: %w", err)
			}
			prev.Replayed = true
			return prev, nil
		}
	}

	now := s.clock.Now()
	local := now.In(s.cfg.Location)
	today := shared.BusinessDate(now, s.cfg.Location)

	org, err := tx.GetOrganisation(ctx, oc.OrgID)
	if err != nil {
		return SaleResult{}, err
	}
	customer, err := tx.GetCustomerForUpdate(ctx, oc.OrgID, req.CustomerID)
	if err != nil {
		return SaleResult{}, err
	}
	products, productIDs, err := loadProducts(ctx, tx, oc.OrgID, req.Items)
	if err != nil {
		return SaleResult{}, err
	}
	var prescription []int64
	for _, id := range productIDs {
		if products[id].PrescriptionRequired {
			prescription = append(prescription, id)
		}
	}
	if len(prescription) > 0 && s.cfg.RequirePrescriptionReference && strings.TrimSpace(req.PrescriptionReference) == "" {
		return SaleResult{}, shared.ErrPrescriptionMissing.Withf("prescription reference required for products %v", prescription)
	}

	buyerState := tax.BuyerState(customer.StateCode, customer.GSTIN)
	gstType := s.tax.Classify(org.StateCode, buyerState)
	charges := tax.Charges{
		OrderDiscount:   req.DiscountAmount,
		DeliveryCharges: req.DeliveryCharges,
		OtherCharges:    req.OtherCharges,
	}

	logical := make([]tax.Line, len(req.Items))
	for i, item := range req.Items {
		product := products[item.ProductID]
		price, err := unitPrice(item, product)
		if err != nil {
			return SaleResult{}, err
		}
		logical[i] = tax.Line{
			Quantity:        item.Quantity,
			UnitPrice:       price,
			DiscountPercent: discountPercent(item),
			GSTPercent:      product.GSTPercent,
		}
	}
	dryRun, err := s.tax.Compute(gstType, logical, charges)
	if err != nil {
		return SaleResult{}, err
	}
	payment := money.Round(req.PaymentAmount)
	if payment.GreaterThan(dryRun.Totals.Final) {
		return SaleResult{}, shared.Overpayment(dryRun.Totals.Final, payment)
	}
	if !credit.Bypass(payment, dryRun.Totals.Final, mode == ModeCredit) {
		if err := credit.Check(customer.CreditLimit, customer.OutstandingAmount, dryRun.Totals.Final).Err(); err != nil {
			return SaleResult{}, err
		}
	}

	session := s.allocator.Begin(tx, oc.OrgID, today)
	if err := session.Lock(ctx, productIDs...); err != nil {
		return SaleResult{}, err
	}
	subs, err := allocate(ctx, session, req.Items, logical)
	if err != nil {
		return SaleResult{}, err
	}
	lines := make([]tax.Line, len(subs))
	for j, sub := range subs {
		lines[j] = tax.Line{
			Quantity:        sub.allocation.Quantity,
			UnitPrice:       sub.unitPrice,
			DiscountPercent: sub.discount,
			GSTPercent:      sub.gst,
		}
	}
	priced, err := s.tax.Compute(gstType, lines, charges)
	if err != nil {
		return SaleResult{}, err
	}
	totals := priced.Totals
	if payment.GreaterThan(totals.Final) {
		return SaleResult{}, shared.Overpayment(totals.Final, payment)
	}
	// Per-batch lines re-round discounts, so the posted total can drift from the dry run.
	if !totals.Final.Equal(dryRun.Totals.Final) && !credit.Bypass(payment, totals.Final, mode == ModeCredit) {
		if err := credit.Check(customer.CreditLimit, customer.OutstandingAmount, totals.Final).Err(); err != nil {
			return SaleResult{}, err
		}
	}

	var orderNumber string
	if !direct {
		if orderNumber, err = s.numbers.Next(ctx, tx, oc.OrgID, numbering.KindOrder, local); err != nil {
			return SaleResult{}, err
		}
	}
	invoiceNumber, err := s.numbers.Next(ctx, tx, oc.OrgID, numbering.KindInvoice, local)
	if err != nil {
		return SaleResult{}, err
	}

	billing := firstNonEmpty(req.BillingAddress, customer.Address)
	shipping := firstNonEmpty(req.ShippingAddress, billing)

	var orderID *int64
	if !direct {
		id, err := tx.InsertOrder(ctx, Order{
			OrgID:           oc.OrgID,
			OrderNumber:     orderNumber,
			CustomerID:      customer.ID,
			CustomerName:    customer.Name,
			CustomerPhone:   customer.Phone,
			OrderDate:       now,
			Status:          OrderConfirmed,
			Subtotal:        totals.Subtotal,
			DiscountAmount:  totals.TotalDiscount,
			TaxAmount:       totals.TotalTax,
			DeliveryCharges: totals.DeliveryCharges,
			OtherCharges:    totals.OtherCharges,
			RoundOff:        totals.RoundOff,
			FinalAmount:     totals.Final,
			PaidAmount:      decimal.Zero,
			BalanceAmount:   totals.Final,
			PaymentMode:     mode,
			PaymentStatus:   PaymentPending,
			InvoiceNumber:   invoiceNumber,
			BillingAddress:  billing,
			ShippingAddress: shipping,
			Notes:           req.Notes,
			CreatedBy:       oc.UserID,
		})
		if err != nil {
			return SaleResult{}, fmt.Errorf("sales: insert order: %w", err)
		}
		orderID = &id
		for j, sub := range subs {
			lt := priced.Lines[j]
			batchID := sub.allocation.BatchID
			if _, err := tx.InsertOrderItem(ctx, OrderItem{
				OrgID:           oc.OrgID,
				OrderID:         id,
				ProductID:       sub.productID,
				BatchID:         &batchID,
				Quantity:        sub.allocation.Quantity,
				UnitPrice:       sub.unitPrice,
				DiscountPercent: sub.discount,
				DiscountAmount:  lt.DiscountAmount,
				TaxPercent:      lt.GSTPercent,
				TaxAmount:       lt.TaxTotal,
				LineTotal:       lt.LineTotal,
				TotalPrice:      lt.TotalPrice,
			}); err != nil {
				return SaleResult{}, fmt.Errorf("sales: insert order item: %w", err)
			}
		}
		if _, err := session.Apply(ctx, inventory.Reference{Type: inventory.RefOrder, ID: id}, now); err != nil {
			return SaleResult{}, err
		}
	}

	invoice := Invoice{
		OrgID:           oc.OrgID,
		InvoiceNumber:   invoiceNumber,
		OrderID:         orderID,
		CustomerID:      customer.ID,
		CustomerName:    customer.Name,
		CustomerPhone:   customer.Phone,
		CustomerGSTIN:   customer.GSTIN,
		BillingAddress:  billing,
		ShippingAddress: shipping,
		PlaceOfSupply:   buyerState,
		InvoiceDate:     today,
		DueDate:         today.AddDate(0, 0, customer.CreditPeriodDays),
		GSTType:         gstType,
		Subtotal:        totals.Subtotal,
		DiscountAmount:  totals.TotalDiscount,
		TaxableAmount:   totals.Taxable,
		CGSTAmount:      totals.CGST,
		SGSTAmount:      totals.SGST,
		IGSTAmount:      totals.IGST,
		TotalTaxAmount:  totals.TotalTax,
		DeliveryCharges: totals.DeliveryCharges,
		OtherCharges:    totals.OtherCharges,
		RoundOff:        totals.RoundOff,
		TotalAmount:     totals.Final,
		PaidAmount:      decimal.Zero,
		Balance:         totals.Final,
		Status:          InvoiceGenerated,
		CreatedBy:       oc.UserID,
	}
	invoice.ID, err = tx.InsertInvoice(ctx, invoice)
	if err != nil {
		return SaleResult{}, fmt.Errorf("sales: insert invoice: %w", err)
	}
	if direct {
		if _, err := session.Apply(ctx, inventory.Reference{Type: inventory.RefInvoice, ID: invoice.ID}, now); err != nil {
			return SaleResult{}, err
		}
	}
	saleLines := make([]SaleLine, 0, len(subs))
	for j, sub := range subs {
		lt := priced.Lines[j]
		product := products[sub.productID]
		batchID := sub.allocation.BatchID
		if _, err := tx.InsertInvoiceItem(ctx, InvoiceItem{
			OrgID:           oc.OrgID,
			InvoiceID:       invoice.ID,
			ProductID:       sub.productID,
			ProductName:     product.Name,
			HSNCode:         product.HSNCode,
			BatchID:         &batchID,
			BatchNumber:     sub.allocation.BatchNumber,
			Quantity:        sub.allocation.Quantity,
			UnitPrice:       sub.unitPrice,
			DiscountPercent: sub.discount,
			DiscountAmount:  lt.DiscountAmount,
			TaxableAmount:   lt.Taxable,
			TaxPercent:      lt.GSTPercent,
			CGSTAmount:      lt.CGST,
			SGSTAmount:      lt.SGST,
			IGSTAmount:      lt.IGST,
			TaxAmount:       lt.TaxTotal,
			LineTotal:       lt.LineTotal,
			TotalPrice:      lt.TotalPrice,
		}); err != nil {
			return SaleResult{}, fmt.Errorf("sales: insert invoice item: %w", err)
		}
		saleLines = append(saleLines, SaleLine{
			ProductID:   sub.productID,
			BatchID:     &batchID,
			BatchNumber: sub.allocation.BatchNumber,
			ExpiryDate:  sub.allocation.ExpiryDate,
			NearExpiry:  sub.allocation.NearExpiry,
			Quantity:    sub.allocation.Quantity,
			UnitPrice:   sub.unitPrice,
			TaxAmount:   lt.TaxTotal,
			TotalPrice:  lt.TotalPrice,
		})
	}

	poster := ledger.NewPoster(tx, oc.OrgID, now)
	if totals.Final.IsPositive() {
		entry := ledger.Debit(ledger.PartyCustomer, customer.ID, ledger.TxInvoice, "invoice", invoice.ID, totals.Final)
		entry.Description = "Invoice " + invoiceNumber
		if _, err := poster.Post(ctx, entry); err != nil {
			return SaleResult{}, err
		}
	}

	var paymentID *int64
	if payment.IsPositive() {
		p, updated, err := s.applyPayment(ctx, tx, poster, oc, invoice, payment, mode, req.PaymentReference, now)
		if err != nil {
			return SaleResult{}, err
		}
		invoice = updated
		paymentID = &p.ID
	}

	var points int64
	if s.cfg.EnableLoyaltyPoints {
		points = totals.Final.Div(money.Hundred).IntPart()
	}
	if err := tx.RecordCustomerSale(ctx, oc.OrgID, customer.ID, totals.Final, points, now); err != nil {
		return SaleResult{}, fmt.Errorf("sales: record customer sale: %w", err)
	}

	result := SaleResult{
		OrderID:              orderID,
		OrderNumber:          orderNumber,
		InvoiceID:            invoice.ID,
		InvoiceNumber:        invoiceNumber,
		GSTType:              gstType,
		Subtotal:             totals.Subtotal,
		DiscountAmount:       totals.TotalDiscount,
		TaxableAmount:        totals.Taxable,
		CGSTAmount:           totals.CGST,
		SGSTAmount:           totals.SGST,
		IGSTAmount:           totals.IGST,
		TotalTax:             totals.TotalTax,
		RoundOff:             totals.RoundOff,
		FinalAmount:          totals.Final,
		PaidAmount:           invoice.PaidAmount,
		Balance:              invoice.Balance,
		PaymentStatus:        paymentStatusFor(invoice.PaidAmount, invoice.TotalAmount),
		InvoiceStatus:        invoice.Status,
		PaymentID:            paymentID,
		Lines:                saleLines,
		PrescriptionProducts: prescription,
	}
	if req.IdempotencyKey != "" {
		raw, err := json.Marshal(result)
		if err != nil {
			return SaleResult{}, fmt.Errorf("sales: encode result: %w", err)
		}
		if err := tx.SaveIdempotent(ctx, oc.OrgID, module, req.IdempotencyKey, raw); err != nil {
			return SaleResult{}, err
		}
	}
	return result, nil
}

// loadProducts reads each distinct product once, in request order.
func loadProducts(ctx context.Context, tx masterdata.TxReader, orgID uuid.UUID, items []SaleItem) (map[int64]masterdata.Product, []int64, error) {
	products := make(map[int64]masterdata.Product, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if _, ok := products[item.ProductID]; ok {
			continue
		}
		p, err := tx.GetProduct(ctx, orgID, item.ProductID)
		if err != nil {
			return nil, nil, err
		}
		products[item.ProductID] = p
		ids = append(ids, item.ProductID)
	}
	return products, ids, nil
}

// allocate turns requested items into batch-level sub-lines.
func allocate(ctx context.Context, session *inventory.Session, items []SaleItem, priced []tax.Line) ([]subLine, error) {
	var subs []subLine
	for i, item := range items {
		base := subLine{
			item:      i,
			productID: item.ProductID,
			unitPrice: priced[i].UnitPrice,
			discount:  priced[i].DiscountPercent,
			gst:       priced[i].GSTPercent,
		}
		if item.BatchID != nil {
			a, err := session.Take(ctx, item.ProductID, *item.BatchID, item.Quantity)
			if err != nil {
				return nil, err
			}
			base.allocation = a
			subs = append(subs, base)
			continue
		}
		allocations, err := session.Allocate(ctx, item.ProductID, item.Quantity)
		if err != nil {
			return nil, err
		}
		for _, a := range allocations {
			sub := base
			sub.allocation = a
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

func unitPrice(item SaleItem, product masterdata.Product) (decimal.Decimal, error) {
	switch {
	case item.UnitPrice.Valid:
		return item.UnitPrice.Decimal, nil
	case product.SalePrice.IsPositive():
		return product.SalePrice, nil
	case product.MRP.IsPositive():
		return product.MRP, nil
	}
	return decimal.Zero, shared.Validationf("no unit price for product %d", product.ID)
}

func discountPercent(item SaleItem) decimal.Decimal {
	if item.DiscountPercent.Valid {
		return item.DiscountPercent.Decimal
	}
	return decimal.Zero
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func (s *Service) afterSale(ctx context.Context, oc shared.OrgContext, op string, result SaleResult) {
	var nearExpiry []int64
	for _, line := range result.Lines {
		if line.NearExpiry && line.BatchID != nil {
			nearExpiry = append(nearExpiry, *line.BatchID)
		}
	}
	if len(nearExpiry) > 0 {
		s.logger.Warn("sales: near-expiry batches sold",
			slog.String("invoice_number", result.InvoiceNumber),
			slog.Any("batch_ids", nearExpiry))
	}
	if len(result.PrescriptionProducts) > 0 {
		s.logger.Info("sales: prescription products sold",
			slog.String("invoice_number", result.InvoiceNumber),
			slog.Any("product_ids", result.PrescriptionProducts))
	}
	s.logger.Info("sales: invoice created",
		slog.String("org_id", oc.OrgID.String()),
		slog.String("invoice_number", result.InvoiceNumber),
		slog.String("final_amount", result.FinalAmount.StringFixed(2)),
		slog.String("invoice_status", string(result.InvoiceStatus)))
	s.record(ctx, oc, "sales:"+op, "invoices", result.InvoiceNumber, map[string]any{
		"order_number":          result.OrderNumber,
		"final_amount":          result.FinalAmount.StringFixed(2),
		"paid_amount":           result.PaidAmount.StringFixed(2),
		"near_expiry_batches":   nearExpiry,
		"prescription_products": result.PrescriptionProducts,
	})
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
		s.logger.Warn("sales: audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

// fail logs invariant breaches and sends them to the audit sink.
func (s *Service) fail(ctx context.Context, oc shared.OrgContext, op string, err error) {
	if !shared.IsKind(err, shared.KindFatal) {
		return
	}
	s.logger.Error("sales: invariant breach",
		slog.String("operation", op),
		slog.String("org_id", oc.OrgID.String()),
		slog.Any("error", err))
	s.record(ctx, oc, "sales:invariant_breach", "operations", op, map[string]any{
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
		outcome = string(shared.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	s.metrics.ObserveOperation(op, outcome, time.Since(started))
}
