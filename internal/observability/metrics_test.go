package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareRecordsRequests(t *testing.T) {
	metrics := NewMetrics()

	router := chi.NewRouter()
	router.Use(metrics.Middleware)
	router.Get("/stock/lots/{code}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/stock/lots/L1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "aegle_http_requests_total")
	require.Contains(t, rec.Body.String(), `route="/stock/lots/{code}"`)
}

func TestObserveMovements(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveMovements("charge", 2)
	metrics.ObserveMovements("discharge", 3)
	metrics.ObserveMovements("discharge", 0)
	metrics.ObserveInsufficientStock()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	require.Contains(t, body, `aegle_stock_movements_posted_total{kind="charge"} 2`)
	require.Contains(t, body, `aegle_stock_movements_posted_total{kind="discharge"} 3`)
	require.Contains(t, body, "aegle_stock_insufficient_total 1")
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveMovements("charge", 1)
	metrics.ObserveInsufficientStock()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
