package credit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikasgargbear/production-infra-sub000/internal/masterdata"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCheckDeniesAboveLimit(t *testing.T) {
	decision := Check(d("5000"), d("4500"), d("800"))
	assert.False(t, decision.Allowed)
	err := decision.Err()
	require.ErrorIs(t, err, shared.ErrCreditLimitExceeded)
	assert.Equal(t, shared.KindConflict, shared.KindOf(err))
	details := shared.Details(err)
	assert.Equal(t, "5000.00", details["cap"])
	assert.Equal(t, "4500.00", details["current"])
}

func TestCheckAllowsExactLimit(t *testing.T) {
	decision := Check(d("5000"), d("4500"), d("500"))
	assert.True(t, decision.Allowed)
	assert.NoError(t, decision.Err())
	assert.True(t, decision.Headroom.Equal(d("500")))
}

func TestCheckSkippedWithoutLimit(t *testing.T) {
	decision := Check(decimal.Zero, d("100000"), d("99999"))
	assert.True(t, decision.Allowed)
	assert.NotEmpty(t, decision.Reason)
}

func TestBypass(t *testing.T) {
	assert.True(t, Bypass(d("1008"), d("1008"), false))
	assert.False(t, Bypass(d("1008"), d("1008"), true))
	assert.False(t, Bypass(d("1000"), d("1008"), false))
	assert.False(t, Bypass(decimal.Zero, decimal.Zero, false))
}

type stubCustomers map[int64]masterdata.Customer

func (s stubCustomers) GetCustomer(_ context.Context, _ uuid.UUID, id int64) (masterdata.Customer, error) {
	c, ok := s[id]
	if !ok {
		return masterdata.Customer{}, shared.ErrCustomerNotFound
	}
	return c, nil
}

func TestCheckCreditHandler(t *testing.T) {
	svc := NewService(stubCustomers{3: {ID: 3, CreditLimit: d("5000"), OutstandingAmount: d("4500")}})
	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(shared.ContextWithOrg(r.Context(), shared.OrgContext{OrgID: uuid.New()})))
		})
	})
	NewHandler(svc).MountRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/customers/3/credit-check?amount=800", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"allowed":false`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/customers/9/credit-check?amount=1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "customer_not_found")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/customers/3/credit-check?amount=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
