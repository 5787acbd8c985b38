package sales

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vikasgargbear/production-infra-sub000/internal/platform/httpx"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

// SalesService is the operation set the handler calls.
type SalesService interface {
	CreateOrder(ctx context.Context, oc shared.OrgContext, req SaleRequest) (SaleResult, error)
	CreateDirectSale(ctx context.Context, oc shared.OrgContext, req SaleRequest) (SaleResult, error)
	RecordPayment(ctx context.Context, oc shared.OrgContext, invoiceID int64, req PaymentRequest) (PaymentResult, error)
	CancelInvoice(ctx context.Context, oc shared.OrgContext, invoiceID int64, req CancelRequest) (CancelResult, error)
}

// Handler wires sales endpoints.
type Handler struct {
	logger  *slog.Logger
	service SalesService
}

// NewHandler builds a sales handler instance.
func NewHandler(logger *slog.Logger, service SalesService) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/sales", func(r chi.Router) {
		r.Post("/orders", h.createOrder)
		r.Post("/direct", h.createDirectSale)
		r.Post("/invoices/{id}/payments", h.recordPayment)
		r.Post("/invoices/{id}/cancel", h.cancelInvoice)
	})
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	h.createSale(w, r, h.service.CreateOrder)
}

func (h *Handler) createDirectSale(w http.ResponseWriter, r *http.Request) {
	h.createSale(w, r, h.service.CreateDirectSale)
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request, create func(context.Context, shared.OrgContext, SaleRequest) (SaleResult, error)) {
	oc, err := httpx.Org(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req SaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}
	result, err := create(r.Context(), oc, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	httpx.JSON(w, status, result)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	oc, err := httpx.Org(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	invoiceID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req PaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.RecordPayment(r.Context(), oc, invoiceID, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) cancelInvoice(w http.ResponseWriter, r *http.Request) {
	oc, err := httpx.Org(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	invoiceID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req CancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.CancelInvoice(r.Context(), oc, invoiceID, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if shared.KindOf(err) == "" {
		h.logger.Error("sales request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
