package payroll_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/obrasys-erp/obrasys/internal/ledger"
	"github.com/obrasys-erp/obrasys/internal/ledger/inmemory"
	"github.com/obrasys-erp/obrasys/internal/payroll"
)

func newRouter(store *inmemory.Store) http.Handler {
	service := payroll.NewService(store, nil, testLogger(), defaultConfig())
	r := chi.NewRouter()
	r.Route("/payroll", payroll.NewHandler(testLogger(), service).MountRoutes)
	return r
}

func TestGenerateAndListEndpoints(t *testing.T) {
	store := inmemory.NewStore()
	router := newRouter(store)

	payload := `{
		"period": "2026-04",
		"entries": [
			{"daily_log_id": "log-1", "employee_id": "emp-001", "name": "José Almeida", "role": "Pedreiro", "total": 400},
			{"daily_log_id": "log-2", "employee_id": "emp-001", "name": "José Almeida", "role": "Pedreiro", "total": 600}
		]
	}`
	req := httptest.NewRequest(http.MethodPost, "/payroll/generate", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/payroll/2026-04", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var records []ledger.PayrollEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	require.Equal(t, "emp-001", records[0].EmployeeID)
	require.InDelta(t, 1000, records[0].Gross, 0.001)
	require.InDelta(t, 875, records[0].Net, 0.001)
}

func TestListEndpointRejectsBadPeriod(t *testing.T) {
	router := newRouter(inmemory.NewStore())

	req := httptest.NewRequest(http.MethodGet, "/payroll/abril", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
