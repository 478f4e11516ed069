package medicals

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	byCode map[int]Medical
}

func (r *memoryRepo) GetByCode(_ context.Context, code int) (Medical, error) {
	med, ok := r.byCode[code]
	if !ok {
		return Medical{}, ErrMedicalNotFound
	}
	return med, nil
}

func (r *memoryRepo) List(_ context.Context, limit, offset int) ([]Medical, error) {
	items := make([]Medical, 0, len(r.byCode))
	for _, med := range r.byCode {
		items = append(items, med)
	}
	return items, nil
}

func newTestRouter() *chi.Mux {
	repo := &memoryRepo{byCode: map[int]Medical{
		1: {Code: 1, Description: "Paracetamol 500mg", MinQty: 5, TotalQuantity: 35},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, NewService(repo))
	router := chi.NewRouter()
	handler.MountRoutes(router)
	return router
}

func TestHandleGetMedical(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/medicals/1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var med Medical
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &med))
	require.Equal(t, "Paracetamol 500mg", med.Description)
	require.InDelta(t, 35.0, med.TotalQuantity, 0.0001)
}

func TestHandleGetMedicalNotFound(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/medicals/99", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetMedicalBadCode(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/medicals/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListMedicals(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/medicals", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var items []Medical
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
}
