package returns

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vikasgargbear/production-infra-sub000/internal/platform/httpx"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

// ReturnsService is the operation set the handler calls.
type ReturnsService interface {
	CreateSalesReturn(ctx context.Context, oc shared.OrgContext, req SalesReturnRequest) (ReturnResult, error)
	CreatePurchaseReturn(ctx context.Context, oc shared.OrgContext, req PurchaseReturnRequest) (ReturnResult, error)
	CreateCreditNote(ctx context.Context, oc shared.OrgContext, req NoteRequest) (NoteResult, error)
	CreateDebitNote(ctx context.Context, oc shared.OrgContext, req NoteRequest) (NoteResult, error)
	CancelNote(ctx context.Context, oc shared.OrgContext, noteID int64, req CancelRequest) (CancelResult, error)
}

// Handler wires returns and note endpoints.
type Handler struct {
	logger  *slog.Logger
	service ReturnsService
}

// NewHandler builds a returns handler instance.
func NewHandler(logger *slog.Logger, service ReturnsService) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers returns routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/returns", func(r chi.Router) {
		r.Post("/sales", h.createSalesReturn)
		r.Post("/purchase", h.createPurchaseReturn)
	})
	r.Route("/notes", func(r chi.Router) {
		r.Post("/credit", h.createCreditNote)
		r.Post("/debit", h.createDebitNote)
		r.Post("/{id}/cancel", h.cancelNote)
	})
}

func (h *Handler) createSalesReturn(w http.ResponseWriter, r *http.Request) {
	var req SalesReturnRequest
	oc, ok := h.decode(w, r, &req)
	if !ok {
		return
	}
	result, err := h.service.CreateSalesReturn(r.Context(), oc, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) createPurchaseReturn(w http.ResponseWriter, r *http.Request) {
	var req PurchaseReturnRequest
	oc, ok := h.decode(w, r, &req)
	if !ok {
		return
	}
	result, err := h.service.CreatePurchaseReturn(r.Context(), oc, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) createCreditNote(w http.ResponseWriter, r *http.Request) {
	h.createNote(w, r, h.service.CreateCreditNote)
}

func (h *Handler) createDebitNote(w http.ResponseWriter, r *http.Request) {
	h.createNote(w, r, h.service.CreateDebitNote)
}

func (h *Handler) createNote(w http.ResponseWriter, r *http.Request, create func(context.Context, shared.OrgContext, NoteRequest) (NoteResult, error)) {
	var req NoteRequest
	oc, ok := h.decode(w, r, &req)
	if !ok {
		return
	}
	result, err := create(r.Context(), oc, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) cancelNote(w http.ResponseWriter, r *http.Request) {
	noteID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req CancelRequest
	oc, ok := h.decode(w, r, &req)
	if !ok {
		return
	}
	result, err := h.service.CancelNote(r.Context(), oc, noteID, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) (shared.OrgContext, bool) {
	oc, err := httpx.Org(r)
	if err != nil {
		httpx.RespondError(w, err)
		return shared.OrgContext{}, false
	}
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.RespondError(w, err)
		return shared.OrgContext{}, false
	}
	return oc, true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if shared.KindOf(err) == "" {
		h.logger.Error("returns request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
