package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikasgargbear/production-infra-sub000/internal/observability"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOrgContextMiddleware(t *testing.T) {
	org := uuid.New()
	user := uuid.New()
	var got shared.OrgContext
	var found bool
	h := OrgContext(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, found = shared.OrgFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderOrgID, org.String())
	req.Header.Set(HeaderUserID, user.String())
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.True(t, found)
	assert.Equal(t, shared.OrgContext{OrgID: org, UserID: user}, got)

	for _, header := range []string{"", "not-a-uuid"} {
		found = false
		req = httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set(HeaderOrgID, header)
		}
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.False(t, found, "header %q", header)
	}
}

func newTestServer(t *testing.T) (http.Handler, pgxmock.PgxPoolIface, *observability.Metrics) {
	t.Helper()
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	metrics := observability.NewMetrics()
	engine, err := NewEngine(cfg, EngineDeps{Pool: pool, Metrics: metrics, Logger: discardLogger()})
	require.NoError(t, err)

	params := engine.Handlers(discardLogger())
	params.Config = cfg
	params.Metrics = metrics
	return NewRouter(params), pool, metrics
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	router, pool, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `pharmadist_http_requests_total{code="200",route="/healthz"} 1`)
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestRouterRefusesRequestsWithoutOrg(t *testing.T) {
	router, pool, _ := newTestServer(t)

	for _, path := range []string{"/api/v1/sales/orders", "/api/v1/returns/sales", "/api/v1/notes/credit"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestRouterReadinessProbe(t *testing.T) {
	router := NewRouter(RouterParams{
		Logger: discardLogger(),
		Ready:  func(*http.Request) error { return shared.ErrLockWaitTimeout },
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNewEngineNeedsPool(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	_, err = NewEngine(cfg, EngineDeps{})
	require.Error(t, err)
}
