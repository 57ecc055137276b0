/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Pre-built scenarios that fill the logbook with realistic data for demos
  and manual testing. Each scenario records a handover baseline and then
  drives the normal write path (trips, sessions, transactions, cargo), so
  the tank status is produced by the same recompute as live data.

AVAILABLE SCENARIOS:
  fresh-handover:   Baseline only, nothing driven yet
  loaded-month:     A month of loaded and empty trips with refuels
  refrigerated-run: Refrigerated cargo with long refrigeration sessions and
                    a drained ref tank

HOW SCENARIOS WORK:
  1. Reset the logbook (delete every document)
  2. Save the handover baseline
  3. Log cargo, trips, sessions and transactions dated in the current month

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "loaded-month"}

NOTE:
  Scenarios reset the logbook. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: The endpoints use the same logbook calls
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fleetfuel/logbook/fuel"
	"github.com/fleetfuel/logbook/logbook"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "fresh-handover",
		Name:        "Fresh Handover",
		Description: "Vehicle just handed over: full tanks, empty trailer",
	},
	{
		ID:          "loaded-month",
		Name:        "Loaded Month",
		Description: "Loaded and empty trips with two refuels in the main tank",
	},
	{
		ID:          "refrigerated-run",
		Name:        "Refrigerated Run",
		Description: "Chilled cargo, long refrigeration sessions, low ref tank",
	},
}

var scenarioLoaders = map[string]func(ctx context.Context, b *logbook.Logbook, month time.Time) error{
	"fresh-handover":   loadFreshHandover,
	"loaded-month":     loadLoadedMonth,
	"refrigerated-run": loadRefrigeratedRun,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	current := h.currentScenario
	h.scenarioMu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the logbook and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()

	ctx := r.Context()
	h.currentScenario = ""
	if err := h.Book.Reset(ctx); err != nil {
		h.fail(w, "loadScenario", err)
		return
	}
	now := time.Now().In(h.Dates.Location)
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, h.Dates.Location)
	if err := load(ctx, h.Book, month); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func day(month time.Time, n int, hour int) string {
	return month.AddDate(0, 0, n-1).Add(time.Duration(hour) * time.Hour).Format("2006-01-02T15:04:05")
}

func loadFreshHandover(ctx context.Context, b *logbook.Logbook, month time.Time) error {
	_, err := b.SaveBaseline(ctx, fuel.InitialFuelState{
		Date:        day(month, 1, 8),
		Main:        d("950"),
		Ref:         d("280"),
		CargoWeight: dp("0"),
	})
	return err
}

func loadLoadedMonth(ctx context.Context, b *logbook.Logbook, month time.Time) error {
	if _, err := b.SaveBaseline(ctx, fuel.InitialFuelState{
		Date: day(month, 1, 8), Main: d("600"), Ref: d("150"), CargoWeight: dp("0"),
	}); err != nil {
		return err
	}
	if _, err := b.LoadCargo(ctx, logbook.CargoInput{Date: day(month, 2, 7), Weight: dp("18000"), Description: "Warehouse A"}); err != nil {
		return err
	}

	trips := []logbook.TripInput{
		{Distance: d("420"), Weight: d("18000"), LoadType: fuel.LoadLoaded, Date: day(month, 2, 0)[:10]},
		{Distance: d("380"), Weight: d("18000"), LoadType: fuel.LoadLoaded, ActualFuel: dp("122"), Date: day(month, 3, 0)[:10]},
		{Distance: d("510"), LoadType: fuel.LoadEmpty, Date: day(month, 5, 0)[:10]},
		{Distance: d("90"), LoadType: fuel.LoadHead, Date: day(month, 6, 0)[:10]},
	}
	for i, in := range trips {
		if i == 2 {
			if _, err := b.UnloadCargo(ctx, logbook.CargoInput{Date: day(month, 4, 15), Description: "Customer B"}); err != nil {
				return err
			}
		}
		if _, err := b.AddTrip(ctx, in); err != nil {
			return err
		}
	}

	for _, tx := range []logbook.TransactionInput{
		{Type: fuel.TxRefuel, Amount: d("300"), TankType: fuel.TankMain, Date: day(month, 3, 18), Description: "Station 12"},
		{Type: fuel.TxRefuel, Amount: d("250"), TankType: fuel.TankMain, Date: day(month, 5, 20), Description: "Station 40"},
	} {
		if _, err := b.AddTransaction(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}

func loadRefrigeratedRun(ctx context.Context, b *logbook.Logbook, month time.Time) error {
	if _, err := b.SaveBaseline(ctx, fuel.InitialFuelState{
		Date: day(month, 1, 8), Main: d("800"), Ref: d("120"), CargoWeight: dp("12000"),
	}); err != nil {
		return err
	}
	if _, err := b.AddTrip(ctx, logbook.TripInput{
		Distance: d("650"), Weight: d("12000"), LoadType: fuel.LoadLoaded, Date: day(month, 1, 0)[:10],
	}); err != nil {
		return err
	}
	for _, s := range []logbook.SessionInput{
		{Start: day(month, 1, 9), End: day(month, 1, 23)},
		{Start: day(month, 2, 6), End: day(month, 2, 20)},
	} {
		if _, err := b.AddSession(ctx, s); err != nil {
			return err
		}
	}
	if _, err := b.AddTransaction(ctx, logbook.TransactionInput{
		Type: fuel.TxConsumption, Amount: d("15"), TankType: fuel.TankRef, Date: day(month, 2, 21), Description: "Drained for service",
	}); err != nil {
		return err
	}
	_, err := b.StartSession(ctx, day(month, 3, 6))
	return err
}
