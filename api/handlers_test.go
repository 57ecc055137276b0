/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Write path through HTTP (baseline, trips, transactions) and tank status
- Error mapping (400 validation, 404 not found)
- Refrigeration start/stop, cargo rules
- Report preview/save/export
- Demo scenarios
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetfuel/logbook/export"
	"github.com/fleetfuel/logbook/fuel"
	"github.com/fleetfuel/logbook/fuel/store"
	"github.com/fleetfuel/logbook/logbook"
	"github.com/fleetfuel/logbook/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestRouter(t *testing.T) (*chi.Mux, *logbook.Logbook) {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger, _ := logtest.NewNullLogger()
	book := logbook.New(db, logbook.Options{Logger: logger})
	h := NewHandler(book, fuel.DefaultDateParser(), logger)
	return NewRouter(h, []string{"http://localhost:5173"}), book
}

func call(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func putBaseline(t *testing.T, router http.Handler) {
	t.Helper()
	rec := call(t, router, http.MethodPut, "/api/baseline", map[string]any{
		"date": "2024-01-01T08:00:00", "main": 500, "ref": 100, "cargoWeight": 0,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

// =============================================================================
// WRITE PATH
// =============================================================================

func TestAPI_TripAndRefuel_UpdateTanks(t *testing.T) {
	// GIVEN: 500 L main at handover
	// WHEN: A 100 km empty trip and a 50 L refuel are posted
	// THEN: GET /api/tanks reports 525 L main at 52.5 %

	router, _ := newTestRouter(t)
	putBaseline(t, router)

	rec := call(t, router, http.MethodPost, "/api/trips", map[string]any{
		"distance": 100, "loadType": "empty", "date": "2024-01-10",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	trip := decodeBody[fuel.Trip](t, rec)
	requireDecimal(t, "25", trip.ExpectedFuel)

	rec = call(t, router, http.MethodPost, "/api/transactions", map[string]any{
		"type": "refuel", "amount": 50, "tankType": "main",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = call(t, router, http.MethodGet, "/api/tanks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tanks := decodeBody[TanksResponse](t, rec)
	requireDecimal(t, "525", tanks.Status.Main)
	requireDecimal(t, "52.5", tanks.Levels[0].Percent)

	rec = call(t, router, http.MethodDelete, "/api/trips/"+trip.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	tanks = decodeBody[TanksResponse](t, call(t, router, http.MethodGet, "/api/tanks", nil))
	requireDecimal(t, "550", tanks.Status.Main)
}

// countingKV counts reads per key.
type countingKV struct {
	fuel.KV
	mu    sync.Mutex
	reads map[string]int
}

func (c *countingKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	c.reads[key]++
	c.mu.Unlock()
	return c.KV.Get(ctx, key)
}

func (c *countingKV) readsOf(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads[key]
}

func TestAPI_GetTanks_ReadsStatusOnce(t *testing.T) {
	kv := &countingKV{KV: store.NewMemory(), reads: map[string]int{}}
	logger, _ := logtest.NewNullLogger()
	book := logbook.New(kv, logbook.Options{Logger: logger})
	router := NewRouter(NewHandler(book, fuel.DefaultDateParser(), logger), nil)
	putBaseline(t, router)

	before := kv.readsOf(logbook.KeyTankStatus)
	rec := call(t, router, http.MethodGet, "/api/tanks", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1, kv.readsOf(logbook.KeyTankStatus)-before)
	tanks := decodeBody[TanksResponse](t, rec)
	requireDecimal(t, "500", tanks.Status.Main)
	requireDecimal(t, "50", tanks.Levels[0].Percent)
	requireDecimal(t, "1000", tanks.Levels[0].Capacity)
}

func TestAPI_PreviewTrip_DoesNotLog(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := call(t, router, http.MethodPost, "/api/trips/preview", map[string]any{
		"distance": 100, "loadType": "loaded", "weight": 10000,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	preview := decodeBody[logbook.TripPreview](t, rec)
	requireDecimal(t, "28.5", preview.RatePer100)
	requireDecimal(t, "28.5", preview.ExpectedFuel)

	trips := decodeBody[[]fuel.Trip](t, call(t, router, http.MethodGet, "/api/trips", nil))
	assert.Empty(t, trips)
}

func TestAPI_LoadedTrip_DefaultsToCargoWeight(t *testing.T) {
	router, _ := newTestRouter(t)
	call(t, router, http.MethodPost, "/api/cargo/load", map[string]any{"date": "2024-01-10", "weight": 10000})

	rec := call(t, router, http.MethodPost, "/api/trips/preview", map[string]any{"distance": 100, "loadType": "loaded"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	preview := decodeBody[logbook.TripPreview](t, rec)
	requireDecimal(t, "10000", preview.Weight)
	requireDecimal(t, "28.5", preview.ExpectedFuel)

	rec = call(t, router, http.MethodPost, "/api/trips", map[string]any{"distance": 100, "loadType": "loaded"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	trip := decodeBody[fuel.Trip](t, rec)
	requireDecimal(t, "10000", trip.Weight)
	requireDecimal(t, "28.5", trip.ExpectedFuel)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestAPI_Validation_Returns400(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name  string
		path  string
		body  any
		field string
	}{
		{"unknown load type", "/api/trips", map[string]any{"distance": 10, "loadType": "towed"}, "loadType"},
		{"zero distance", "/api/trips", map[string]any{"distance": 0, "loadType": "empty"}, "distance"},
		{"loaded without weight", "/api/trips", map[string]any{"distance": 10, "loadType": "loaded"}, "weight"},
		{"unknown tank", "/api/transactions", map[string]any{"type": "refuel", "amount": 5, "tankType": "spare"}, "tankType"},
		{"negative amount", "/api/transactions", map[string]any{"type": "refuel", "amount": -5, "tankType": "main"}, "amount"},
		{"cargo without date", "/api/cargo/load", map[string]any{"weight": 100}, "date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := call(t, router, http.MethodPost, tt.path, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			resp := decodeBody[struct {
				Error   string            `json:"error"`
				Details map[string]string `json:"details"`
			}](t, rec)
			assert.Equal(t, "Validation failed", resp.Error)
			assert.Contains(t, resp.Details, tt.field)
		})
	}
}

func TestAPI_MalformedBody_Returns400(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/trips", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_UnknownRecord_Returns404(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, path := range []string{
		"/api/trips/missing",
		"/api/sessions/missing",
		"/api/transactions/missing",
		"/api/cargo/operations/missing",
		"/api/reports/missing",
	} {
		rec := call(t, router, http.MethodDelete, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	assert.Equal(t, http.StatusNotFound, call(t, router, http.MethodGet, "/api/baseline", nil).Code)
}

// =============================================================================
// SESSIONS AND CARGO
// =============================================================================

func TestAPI_SessionStartStop(t *testing.T) {
	router, _ := newTestRouter(t)
	putBaseline(t, router)

	assert.Equal(t, http.StatusNotFound, call(t, router, http.MethodGet, "/api/sessions/active", nil).Code)

	rec := call(t, router, http.MethodPost, "/api/sessions/active", StartSessionRequest{StartDate: "2024-01-10T08:00:00"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = call(t, router, http.MethodPost, "/api/sessions/active", StartSessionRequest{StartDate: "2024-01-10T09:00:00"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "second start is rejected")

	rec = call(t, router, http.MethodPost, "/api/sessions/active/stop", StopSessionRequest{EndDate: "2024-01-10T11:00:00"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	s := decodeBody[fuel.RefrigerationSession](t, rec)
	requireDecimal(t, "6", s.FuelConsumed)

	totals := decodeBody[logbook.SessionTotals](t, call(t, router, http.MethodGet, "/api/sessions/totals", nil))
	requireDecimal(t, "3", totals.Hours)

	tanks := decodeBody[TanksResponse](t, call(t, router, http.MethodGet, "/api/tanks", nil))
	requireDecimal(t, "94", tanks.Status.Ref)
}

func TestAPI_Cargo(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := call(t, router, http.MethodPost, "/api/cargo/unload", CargoRequest{Date: "2024-01-10"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "nothing to unload")

	rec = call(t, router, http.MethodPost, "/api/cargo/load", map[string]any{"date": "2024-01-10", "weight": 9000})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cargo := decodeBody[CargoResponse](t, rec)
	requireDecimal(t, "9000", cargo.CurrentWeight)
	assert.Equal(t, fuel.LoadLoaded, cargo.DefaultLoadType)

	rec = call(t, router, http.MethodPost, "/api/cargo/unload", CargoRequest{Date: "2024-01-11"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cargo = decodeBody[CargoResponse](t, rec)
	requireDecimal(t, "0", cargo.CurrentWeight)
	assert.Equal(t, fuel.LoadEmpty, cargo.DefaultLoadType)
	require.Len(t, cargo.Operations, 2)
}

// =============================================================================
// REPORTS
// =============================================================================

func TestAPI_Reports(t *testing.T) {
	// GIVEN: One January trip on a 500 L baseline
	// WHEN: January is reconciled against 470 L measured
	// THEN: The report shows a 5 L shortage, can be saved and exported

	router, _ := newTestRouter(t)
	putBaseline(t, router)
	call(t, router, http.MethodPost, "/api/trips", map[string]any{"distance": 100, "loadType": "empty", "date": "10.01.2024"})

	rec := call(t, router, http.MethodPost, "/api/reports/preview", ReportRequest{From: "2024-01-01"})
	assert.Equal(t, http.StatusNoContent, rec.Code, "missing bound builds nothing")

	rec = call(t, router, http.MethodPost, "/api/reports/preview", ReportRequest{From: "someday", To: "2024-01-31"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := map[string]any{"from": "2024-01-01", "to": "31-янв-2024", "measuredMain": 470, "measuredRef": 100}
	rec = call(t, router, http.MethodPost, "/api/reports", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	report := decodeBody[ReportResponse](t, rec)
	require.NotEmpty(t, report.ID)
	requireDecimal(t, "-5", report.MainDiff)
	assert.Equal(t, fuel.VerdictShortage, report.MainVerdict)
	assert.Equal(t, fuel.VerdictShortage, report.TotalVerdict)

	list := decodeBody[[]ReportResponse](t, call(t, router, http.MethodGet, "/api/reports", nil))
	require.Len(t, list, 1)

	rec = call(t, router, http.MethodGet, "/api/reports/"+report.ID+"/xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")

	assert.Equal(t, http.StatusNoContent, call(t, router, http.MethodDelete, "/api/reports/"+report.ID, nil).Code)
}

// =============================================================================
// SCENARIOS AND ADMIN
// =============================================================================

func TestAPI_LoadScenario(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := call(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "loaded-month"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	current := decodeBody[ScenarioDTO](t, call(t, router, http.MethodGet, "/api/scenarios/current", nil))
	assert.Equal(t, "loaded-month", current.ID)

	trips := decodeBody[[]fuel.Trip](t, call(t, router, http.MethodGet, "/api/trips", nil))
	assert.Len(t, trips, 4)

	cargo := decodeBody[CargoResponse](t, call(t, router, http.MethodGet, "/api/cargo", nil))
	requireDecimal(t, "0", cargo.CurrentWeight)

	rec = call(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_AllScenariosLoad(t *testing.T) {
	for _, s := range scenarios {
		t.Run(s.ID, func(t *testing.T) {
			router, _ := newTestRouter(t)
			rec := call(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: s.ID})
			assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		})
	}
}

func TestAPI_Reset(t *testing.T) {
	router, _ := newTestRouter(t)
	putBaseline(t, router)

	assert.Equal(t, http.StatusNoContent, call(t, router, http.MethodPost, "/api/reset", nil).Code)
	assert.Equal(t, http.StatusNotFound, call(t, router, http.MethodGet, "/api/baseline", nil).Code)
}

func TestRequestLogger_LogsStatus(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.InfoLevel)

	handler := requestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/tanks", nil))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, http.StatusTeapot, entry.Data["status"])
	assert.Equal(t, "/api/tanks", entry.Data["path"])
}

func decimalOf(s string) decimal.Decimal { return decimal.RequireFromString(s) }
