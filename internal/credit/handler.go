package credit

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/vikasgargbear/production-infra-sub000/internal/platform/httpx"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

type checker interface {
	CheckCredit(ctx context.Context, oc shared.OrgContext, customerID int64, amount decimal.Decimal) (Decision, error)
}

// Handler exposes the credit check.
type Handler struct {
	service checker
}

// NewHandler builds Handler.
func NewHandler(service checker) *Handler {
	return &Handler{service: service}
}

// MountRoutes registers credit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/customers/{id}/credit-check", h.check)
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	oc, err := httpx.Org(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	customerID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil {
		httpx.RespondError(w, shared.Validationf("invalid amount %q", r.URL.Query().Get("amount")))
		return
	}
	decision, err := h.service.CheckCredit(r.Context(), oc, customerID, amount)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, decision)
}
