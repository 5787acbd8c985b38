package ledger

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vikasgargbear/production-infra-sub000/internal/platform/httpx"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

type reportService interface {
	CustomerAging(ctx context.Context, oc shared.OrgContext, customerID int64) (AgingReport, error)
	Statement(ctx context.Context, oc shared.OrgContext, kind PartyKind, partyID int64) (Statement, error)
}

// Handler exposes ledger reports.
type Handler struct {
	service reportService
}

// NewHandler builds Handler.
func NewHandler(service reportService) *Handler {
	return &Handler{service: service}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/customers/{id}/aging", h.aging)
	r.Get("/parties/{kind}/{id}/statement", h.statement)
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
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
	report, err := h.service.CustomerAging(r.Context(), oc, customerID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) statement(w http.ResponseWriter, r *http.Request) {
	oc, err := httpx.Org(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	kind, err := ParsePartyKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	partyID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	st, err := h.service.Statement(r.Context(), oc, kind, partyID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}
