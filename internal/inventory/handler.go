package inventory

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vikasgargbear/production-infra-sub000/internal/platform/httpx"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

type previewService interface {
	AllocatePreview(ctx context.Context, oc shared.OrgContext, productID, qty int64) ([]Allocation, error)
}

// Handler exposes inventory endpoints.
type Handler struct {
	logger  *slog.Logger
	service previewService
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service previewService) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/inventory/products/{id}/allocation", h.preview)
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	oc, err := httpx.Org(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	productID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	qty, err := httpx.QueryInt64(r, "quantity")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	allocations, err := h.service.AllocatePreview(r.Context(), oc, productID, qty)
	if err != nil {
		if shared.KindOf(err) == "" || shared.IsKind(err, shared.KindFatal) {
			h.logger.Error("allocation preview failed", slog.Int64("product_id", productID), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"product_id":  productID,
		"quantity":    qty,
		"allocations": allocations,
	})
}
