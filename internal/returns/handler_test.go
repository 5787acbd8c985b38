package returns

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

type stubReturnsService struct {
	noteType NoteType
	noteID   int64
	err      error
}

func (s *stubReturnsService) CreateSalesReturn(context.Context, shared.OrgContext, SalesReturnRequest) (ReturnResult, error) {
	return ReturnResult{ReturnNumber: "RET202412010001"}, s.err
}

func (s *stubReturnsService) CreatePurchaseReturn(context.Context, shared.OrgContext, PurchaseReturnRequest) (ReturnResult, error) {
	return ReturnResult{ReturnNumber: "RET202412010002"}, s.err
}

func (s *stubReturnsService) CreateCreditNote(context.Context, shared.OrgContext, NoteRequest) (NoteResult, error) {
	s.noteType = NoteCredit
	return NoteResult{Type: NoteCredit}, s.err
}

func (s *stubReturnsService) CreateDebitNote(context.Context, shared.OrgContext, NoteRequest) (NoteResult, error) {
	s.noteType = NoteDebit
	return NoteResult{Type: NoteDebit}, s.err
}

func (s *stubReturnsService) CancelNote(_ context.Context, _ shared.OrgContext, noteID int64, _ CancelRequest) (CancelResult, error) {
	s.noteID = noteID
	return CancelResult{NoteID: noteID, Status: NoteCancelled}, s.err
}

func routerFor(svc ReturnsService) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			oc := shared.OrgContext{OrgID: uuid.New(), UserID: uuid.New()}
			next.ServeHTTP(w, req.WithContext(shared.ContextWithOrg(req.Context(), oc)))
		})
	})
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).MountRoutes(r)
	return r
}

func post(h http.Handler, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return rec
}

func TestHandlerRoutes(t *testing.T) {
	svc := &stubReturnsService{}
	h := routerFor(svc)

	rec := post(h, "/returns/sales", `{"invoice_id":1,"items":[{"product_id":1,"return_quantity":5}],"reason":"damaged"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "RET202412010001")

	rec = post(h, "/returns/purchase", `{"supplier_id":1,"items":[{"product_id":1,"batch_id":3,"return_quantity":5}],"reason":"expiry"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = post(h, "/notes/debit", `{"party_kind":"customer","party_id":1,"amount":"50","reason":"freight"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, NoteDebit, svc.noteType)

	rec = post(h, "/notes/12/cancel", `{"reason":"typo"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(12), svc.noteID)
}

func TestHandlerMapsErrors(t *testing.T) {
	rec := post(routerFor(&stubReturnsService{err: shared.QuantityExceeded(1, 3, 4)}), "/returns/sales", `{"invoice_id":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"returnable":3`)

	rec = post(routerFor(&stubReturnsService{err: shared.ErrPartyNotFound}), "/notes/credit", `{"party_kind":"supplier"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = post(routerFor(&stubReturnsService{}), "/notes/zero/cancel", `{"reason":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
