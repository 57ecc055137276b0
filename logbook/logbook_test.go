package logbook_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetfuel/logbook/fuel"
	"github.com/fleetfuel/logbook/fuel/store"
	"github.com/fleetfuel/logbook/logbook"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var fixedNow = time.Date(2024, time.January, 20, 9, 0, 0, 0, time.UTC)

func newTestLogbook(t *testing.T) (*logbook.Logbook, *store.Memory, *logtest.Hook) {
	t.Helper()
	kv := store.NewMemory()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	n := 0
	book := logbook.New(kv, logbook.Options{
		Logger: logger,
		Now:    func() time.Time { return fixedNow },
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	})
	return book, kv, hook
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

func saveBaseline(t *testing.T, book *logbook.Logbook, main, ref, cargo string) {
	t.Helper()
	_, err := book.SaveBaseline(context.Background(), fuel.InitialFuelState{
		Date:        "2024-01-01T08:00:00",
		Main:        dec(main),
		Ref:         dec(ref),
		CargoWeight: decPtr(cargo),
	})
	require.NoError(t, err)
}

func tankStatus(t *testing.T, book *logbook.Logbook) fuel.TankStatus {
	t.Helper()
	s, err := book.TankStatus(context.Background())
	require.NoError(t, err)
	return s
}

// =============================================================================
// TANK RECONCILIATION THROUGH THE WRITE PATH
// =============================================================================

func TestLogbook_AddTrip_RecomputesMainTank(t *testing.T) {
	// GIVEN: 500 L main at handover
	// WHEN: An empty 100 km trip is logged
	// THEN: Main drops by the expected 25 L, ref is untouched

	book, _, _ := newTestLogbook(t)
	ctx := context.Background()
	saveBaseline(t, book, "500", "100", "0")

	trip, err := book.AddTrip(ctx, logbook.TripInput{Distance: dec("100"), LoadType: fuel.LoadEmpty})
	require.NoError(t, err)

	assert.Equal(t, "id-1", trip.ID)
	assert.Equal(t, "2024-01-20", trip.Date, "date defaults to today")
	assert.Equal(t, fuel.DefaultCoefficient, trip.Coefficient)
	assertDec(t, "25", trip.ExpectedFuel)

	status := tankStatus(t, book)
	assertDec(t, "475", status.Main)
	assertDec(t, "100", status.Ref)
}

func TestLogbook_EditAndDeleteTrip_ReverseEffect(t *testing.T) {
	// GIVEN: A logged trip
	// WHEN: Its actual fuel is edited, then it is deleted
	// THEN: The tanks follow the edit and return to the baseline on delete

	book, _, _ := newTestLogbook(t)
	ctx := context.Background()
	saveBaseline(t, book, "500", "100", "0")

	trip, err := book.AddTrip(ctx, logbook.TripInput{
		Distance: dec("100"),
		Weight:   dec("10000"),
		LoadType: fuel.LoadLoaded,
		Date:     "2024-01-10",
	})
	require.NoError(t, err)
	assertDec(t, "28.5", trip.ExpectedFuel)

	updated, err := book.UpdateTrip(ctx, trip.ID, logbook.TripInput{
		Distance:   dec("100"),
		Weight:     dec("10000"),
		LoadType:   fuel.LoadLoaded,
		ActualFuel: decPtr("30"),
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-10", updated.Date, "empty date keeps the recorded one")
	assertDec(t, "470", tankStatus(t, book).Main)

	require.NoError(t, book.DeleteTrip(ctx, trip.ID))
	assertDec(t, "500", tankStatus(t, book).Main)

	trips, err := book.Trips(ctx)
	require.NoError(t, err)
	assert.Empty(t, trips)
}

func TestLogbook_AddTrip_RejectedInputWritesNothing(t *testing.T) {
	book, kv, _ := newTestLogbook(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   logbook.TripInput
		want error
	}{
		{"zero distance", logbook.TripInput{Distance: dec("0"), LoadType: fuel.LoadEmpty}, fuel.ErrInvalidDistance},
		{"negative distance", logbook.TripInput{Distance: dec("-5"), LoadType: fuel.LoadEmpty}, fuel.ErrInvalidDistance},
		{"loaded without weight", logbook.TripInput{Distance: dec("10"), LoadType: fuel.LoadLoaded}, fuel.ErrLoadedWithoutWeight},
		{"unknown load type", logbook.TripInput{Distance: dec("10"), LoadType: "towed"}, fuel.ErrInvalidLoadType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := book.AddTrip(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, fuel.IsClientError(err))
		})
	}

	assert.Empty(t, kv.Keys(), "rejected input must not touch the store")
}

func TestLogbook_UnknownTrip_NotFound(t *testing.T) {
	book, _, _ := newTestLogbook(t)

	err := book.DeleteTrip(context.Background(), "missing")
	assert.True(t, fuel.IsNotFound(err))
}

func TestLogbook_Transactions_AdjustTheirTank(t *testing.T) {
	// GIVEN: 500 L main, 100 L ref
	// WHEN: 200 L is refuelled into main and 10 L drained from ref
	// THEN: Main is 700, ref is 90; deleting the refuel restores main

	book, _, _ := newTestLogbook(t)
	ctx := context.Background()
	saveBaseline(t, book, "500", "100", "0")

	refuel, err := book.AddTransaction(ctx, logbook.TransactionInput{
		Type: fuel.TxRefuel, Amount: dec("200"), TankType: fuel.TankMain,
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-20T09:00:00", refuel.Date)

	_, err = book.AddTransaction(ctx, logbook.TransactionInput{
		Type: fuel.TxConsumption, Amount: dec("10"), TankType: fuel.TankRef,
	})
	require.NoError(t, err)

	status := tankStatus(t, book)
	assertDec(t, "700", status.Main)
	assertDec(t, "90", status.Ref)

	_, err = book.UpdateTransaction(ctx, refuel.ID, logbook.TransactionInput{
		Type: fuel.TxRefuel, Amount: dec("150"), TankType: fuel.TankMain,
	})
	require.NoError(t, err)
	assertDec(t, "650", tankStatus(t, book).Main)

	require.NoError(t, book.DeleteTransaction(ctx, refuel.ID))
	assertDec(t, "500", tankStatus(t, book).Main)

	_, err = book.AddTransaction(ctx, logbook.TransactionInput{
		Type: fuel.TxRefuel, Amount: dec("0"), TankType: fuel.TankMain,
	})
	assert.ErrorIs(t, err, fuel.ErrInvalidAmount)

	_, err = book.AddTransaction(ctx, logbook.TransactionInput{
		Type: fuel.TxType("siphon"), Amount: dec("5"), TankType: fuel.TankMain,
	})
	var ve *fuel.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "type", ve.Field)
	assert.ErrorIs(t, err, fuel.ErrInvalidTxType)
	assert.NotErrorIs(t, err, fuel.ErrInvalidTank)

	_, err = book.AddTransaction(ctx, logbook.TransactionInput{
		Type: fuel.TxRefuel, Amount: dec("5"), TankType: fuel.TankType("spare"),
	})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "tankType", ve.Field)
	assert.ErrorIs(t, err, fuel.ErrInvalidTank)
}

func TestLogbook_Recompute_IsIdempotent(t *testing.T) {
	book, _, _ := newTestLogbook(t)
	ctx := context.Background()
	saveBaseline(t, book, "300", "50", "0")

	_, err := book.AddTrip(ctx, logbook.TripInput{Distance: dec("40"), LoadType: fuel.LoadHead})
	require.NoError(t, err)

	first, err := book.Recompute(ctx)
	require.NoError(t, err)
	second, err := book.Recompute(ctx)
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
	assertDec(t, "290.8", first.Main)
}

func TestLogbook_Levels_UseCapacities(t *testing.T) {
	book, _, _ := newTestLogbook(t)
	saveBaseline(t, book, "150", "240", "0")

	levels, err := book.Levels(context.Background())
	require.NoError(t, err)
	require.Len(t, levels, 2)

	assert.Equal(t, fuel.TankMain, levels[0].Tank)
	assertDec(t, "15", levels[0].Percent)
	assert.Equal(t, fuel.BandLow, levels[0].Band)

	assert.Equal(t, fuel.TankRef, levels[1].Tank)
	assertDec(t, "80", levels[1].Percent)
	assert.Equal(t, fuel.BandOK, levels[1].Band)
}

func TestLogbook_MalformedLog_TreatedAsEmpty(t *testing.T) {
	// GIVEN: A corrupt trip log in the store
	// WHEN: Trips are listed and tanks recomputed
	// THEN: The log reads as empty and a warning is logged

	book, kv, hook := newTestLogbook(t)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, logbook.KeyTrips, []byte("{not json")))

	trips, err := book.Trips(ctx)
	require.NoError(t, err)
	assert.Empty(t, trips)

	status, err := book.Recompute(ctx)
	require.NoError(t, err)
	assert.True(t, status.Main.IsZero())

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["key"] == logbook.KeyTrips {
			warned = true
		}
	}
	assert.True(t, warned, "malformed log should be reported")
}

// =============================================================================
// REFRIGERATION SESSIONS
// =============================================================================

func TestLogbook_StartStopSession(t *testing.T) {
	// GIVEN: 100 L in the refrigeration tank
	// WHEN: A session runs from 08:00 to 10:30
	// THEN: 2.5 h × 2 L/h = 5 L is drawn from ref once it stops

	book, _, _ := newTestLogbook(t)
	ctx := context.Background()
	saveBaseline(t, book, "500", "100", "0")

	started, err := book.StartSession(ctx, "2024-01-10T08:00:00")
	require.NoError(t, err)
	assert.Equal(t, fuel.SessionActive, started.Status)

	_, err = book.StartSession(ctx, "2024-01-10T09:00:00")
	assert.ErrorIs(t, err, fuel.ErrSessionAlreadyActive)

	// A running session does not count yet.
	assertDec(t, "100", tankStatus(t, book).Ref)

	stopped, err := book.StopSession(ctx, "2024-01-10T10:30:00", nil)
	require.NoError(t, err)
	assert.Equal(t, fuel.SessionCompleted, stopped.Status)
	assertDec(t, "2.5", stopped.Duration)
	assertDec(t, "5", stopped.FuelConsumed)
	assertDec(t, "95", tankStatus(t, book).Ref)

	active, err := book.ActiveSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	_, err = book.StopSession(ctx, "2024-01-10T11:00:00", nil)
	assert.ErrorIs(t, err, fuel.ErrNoActiveSession)
}

func TestLogbook_UpdateSession_DerivesDurationFromEndpoints(t *testing.T) {
	book, _, _ := newTestLogbook(t)
	ctx := context.Background()
	saveBaseline(t, book, "0", "100", "0")

	s, err := book.AddSession(ctx, logbook.SessionInput{Start: "10.01.2024, 08:00:00", End: "10.01.2024, 09:00:00"})
	require.NoError(t, err)
	assertDec(t, "2", s.FuelConsumed)

	// A manual duration is ignored while both endpoints parse.
	s, err = book.UpdateSession(ctx, s.ID, logbook.SessionInput{End: "10.01.2024, 12:00:00", Hours: decPtr("1")})
	require.NoError(t, err)
	assertDec(t, "4", s.Duration)
	assertDec(t, "8", s.FuelConsumed)
	assertDec(t, "92", tankStatus(t, book).Ref)

	// Unparseable endpoints fall back to the manual duration.
	s, err = book.UpdateSession(ctx, s.ID, logbook.SessionInput{End: "later", Hours: decPtr("1.5")})
	require.NoError(t, err)
	assertDec(t, "3", s.FuelConsumed)

	totals, err := book.SessionTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, totals.Count)
	assertDec(t, "1.5", totals.Hours)
	assertDec(t, "2", totals.LitersPerHr)

	require.NoError(t, book.DeleteSession(ctx, s.ID))
	assertDec(t, "100", tankStatus(t, book).Ref)
}

func TestLogbook_AddSession_RequiresBothDates(t *testing.T) {
	book, _, _ := newTestLogbook(t)

	_, err := book.AddSession(context.Background(), logbook.SessionInput{Start: "2024-01-10T08:00:00"})
	assert.ErrorIs(t, err, fuel.ErrMissingDate)
}

// =============================================================================
// CARGO LEDGER
// =============================================================================

func TestLogbook_Cargo_FallsBackToBaselineWeight(t *testing.T) {
	book, kv, _ := newTestLogbook(t)
	ctx := context.Background()
	saveBaseline(t, book, "500", "100", "8000")

	// Simulate a store written before the cargo ledger existed.
	require.NoError(t, kv.Remove(ctx, logbook.KeyCargo))

	state, err := book.Cargo(ctx)
	require.NoError(t, err)
	assertDec(t, "8000", state.CurrentWeight)
	assert.Empty(t, state.Operations)

	lt, err := book.DefaultLoadType(ctx)
	require.NoError(t, err)
	assert.Equal(t, fuel.LoadLoaded, lt)
}

func TestLogbook_Cargo_LoadUnloadDelete(t *testing.T) {
	// GIVEN: An empty truck
	// WHEN: 12 t is loaded, 5 t unloaded, then the rest unloaded
	// THEN: Weight follows, and deleting the partial unload adds it back

	book, _, _ := newTestLogbook(t)
	ctx := context.Background()

	_, err := book.UnloadCargo(ctx, logbook.CargoInput{Date: "2024-01-10"})
	assert.ErrorIs(t, err, fuel.ErrNoCargo)

	_, err = book.LoadCargo(ctx, logbook.CargoInput{Date: "2024-01-10", Weight: decPtr("12000")})
	require.NoError(t, err)

	_, err = book.UnloadCargo(ctx, logbook.CargoInput{Date: "2024-01-11", Weight: decPtr("13000")})
	assert.ErrorIs(t, err, fuel.ErrUnloadExceedsCargo)

	state, err := book.UnloadCargo(ctx, logbook.CargoInput{Date: "2024-01-11", Weight: decPtr("5000")})
	require.NoError(t, err)
	assertDec(t, "7000", state.CurrentWeight)
	partial := state.Operations[0]

	state, err = book.UnloadCargo(ctx, logbook.CargoInput{Date: "2024-01-12"})
	require.NoError(t, err)
	assertDec(t, "0", state.CurrentWeight)
	// Unload-all records what was on board.
	assertDec(t, "7000", state.Operations[0].Weight)
	require.Len(t, state.Operations, 3)

	state, err = book.DeleteCargoOperation(ctx, partial.ID)
	require.NoError(t, err)
	assertDec(t, "5000", state.CurrentWeight)

	_, err = book.LoadCargo(ctx, logbook.CargoInput{Weight: decPtr("1")})
	assert.ErrorIs(t, err, fuel.ErrMissingDate)

	_, err = book.DeleteCargoOperation(ctx, "missing")
	assert.True(t, fuel.IsNotFound(err))
}

func TestLogbook_LoadedTrip_UsesCargoOnBoard(t *testing.T) {
	// GIVEN: 10 t on board, so the preselected load type is loaded
	// WHEN: A loaded 100 km trip is logged without a weight
	// THEN: The calculator uses the cargo weight (25 + 3.5 L/100km)

	book, _, _ := newTestLogbook(t)
	ctx := context.Background()

	_, err := book.LoadCargo(ctx, logbook.CargoInput{Date: "2024-01-10", Weight: decPtr("10000")})
	require.NoError(t, err)
	lt, err := book.DefaultLoadType(ctx)
	require.NoError(t, err)
	require.Equal(t, fuel.LoadLoaded, lt)

	preview, err := book.PreviewTrip(ctx, logbook.TripInput{Distance: dec("100"), LoadType: lt})
	require.NoError(t, err)
	assertDec(t, "10000", preview.Weight)
	assertDec(t, "28.5", preview.RatePer100)
	assertDec(t, "28.5", preview.ExpectedFuel)

	trip, err := book.AddTrip(ctx, logbook.TripInput{Distance: dec("100"), LoadType: lt})
	require.NoError(t, err)
	assertDec(t, "10000", trip.Weight)
	assertDec(t, "28.5", trip.ExpectedFuel)

	// An explicit weight wins over the cargo on board.
	trip, err = book.AddTrip(ctx, logbook.TripInput{Distance: dec("100"), LoadType: lt, Weight: dec("2000")})
	require.NoError(t, err)
	assertDec(t, "2000", trip.Weight)
	assertDec(t, "25.7", trip.ExpectedFuel)

	// Editing with no weight picks up the cargo too.
	trip, err = book.UpdateTrip(ctx, trip.ID, logbook.TripInput{Distance: dec("200"), LoadType: lt})
	require.NoError(t, err)
	assertDec(t, "10000", trip.Weight)
	assertDec(t, "57", trip.ExpectedFuel)

	_, err = book.UnloadCargo(ctx, logbook.CargoInput{Date: "2024-01-11"})
	require.NoError(t, err)
	_, err = book.AddTrip(ctx, logbook.TripInput{Distance: dec("100"), LoadType: fuel.LoadLoaded})
	assert.ErrorIs(t, err, fuel.ErrLoadedWithoutWeight, "nothing on board")
}

func TestLogbook_Baseline_ResetsCargo(t *testing.T) {
	book, _, _ := newTestLogbook(t)
	ctx := context.Background()

	saveBaseline(t, book, "500", "100", "3000")
	_, err := book.LoadCargo(ctx, logbook.CargoInput{Date: "2024-01-10", Weight: decPtr("1000")})
	require.NoError(t, err)

	saveBaseline(t, book, "400", "100", "2000")
	state, err := book.Cargo(ctx)
	require.NoError(t, err)
	assertDec(t, "2000", state.CurrentWeight)
	assert.Empty(t, state.Operations)

	require.NoError(t, book.RemoveBaseline(ctx))
	state, err = book.Cargo(ctx)
	require.NoError(t, err)
	assertDec(t, "0", state.CurrentWeight)

	base, err := book.Baseline(ctx)
	require.NoError(t, err)
	assert.Nil(t, base)
	assertDec(t, "0", tankStatus(t, book).Main)
}

// =============================================================================
// REPORTS
// =============================================================================

func seedJanuary(t *testing.T, book *logbook.Logbook) {
	t.Helper()
	ctx := context.Background()
	saveBaseline(t, book, "500", "100", "0")

	_, err := book.AddTrip(ctx, logbook.TripInput{Distance: dec("100"), LoadType: fuel.LoadEmpty, Date: "2024-01-10"})
	require.NoError(t, err)
	_, err = book.AddTrip(ctx, logbook.TripInput{Distance: dec("100"), LoadType: fuel.LoadEmpty, Date: "15-фев-2024"})
	require.NoError(t, err)
	_, err = book.AddTransaction(ctx, logbook.TransactionInput{
		Type: fuel.TxRefuel, Amount: dec("200"), TankType: fuel.TankMain, Date: "10.01.2024, 12:00:00",
	})
	require.NoError(t, err)
	_, err = book.AddSession(ctx, logbook.SessionInput{Start: "2024-01-10T08:00:00", End: "2024-01-10T10:30:00"})
	require.NoError(t, err)
}

func TestLogbook_BuildReport_PeriodDiscrepancy(t *testing.T) {
	// GIVEN: A January trip, a February trip, a January refuel and session
	// WHEN: January is reconciled against 670 L main and 95 L ref
	// THEN: Main is 5 L short, ref balances

	book, _, _ := newTestLogbook(t)
	ctx := context.Background()
	seedJanuary(t, book)

	from := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)
	r, err := book.BuildReport(ctx, logbook.ReportRequest{
		From: &from, To: &to, MeasuredMain: dec("670"), MeasuredRef: dec("95"),
	})
	require.NoError(t, err)
	require.NotNil(t, r)

	assert.Len(t, r.Trips, 1)
	assert.Len(t, r.Transactions, 1)
	assert.Len(t, r.RefSessions, 1)
	assertDec(t, "25", r.TripFact)
	assertDec(t, "675", r.MainCalc)
	assertDec(t, "-5", r.MainDiff)
	assert.Equal(t, fuel.VerdictShortage, r.MainVerdict())
	assertDec(t, "0", r.RefDiff)
	assert.Equal(t, fuel.VerdictBalanced, r.RefVerdict())
	assert.Equal(t, fixedNow, r.GeneratedAt)
}

func TestLogbook_BuildReport_IncompletePeriodIsNoOp(t *testing.T) {
	book, kv, _ := newTestLogbook(t)
	from := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	r, err := book.BuildReport(context.Background(), logbook.ReportRequest{From: &from})
	assert.NoError(t, err)
	assert.Nil(t, r)
	assert.Empty(t, kv.Keys())
}

func TestLogbook_SavedReport_IsSnapshot(t *testing.T) {
	// GIVEN: A saved January report
	// WHEN: A trip inside January is deleted afterwards
	// THEN: The saved report still shows the original figures

	book, _, _ := newTestLogbook(t)
	ctx := context.Background()
	seedJanuary(t, book)

	from := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)
	built, err := book.BuildReport(ctx, logbook.ReportRequest{From: &from, To: &to, MeasuredMain: dec("670"), MeasuredRef: dec("95")})
	require.NoError(t, err)

	saved, err := book.SaveReport(ctx, *built)
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	trips, err := book.Trips(ctx)
	require.NoError(t, err)
	for _, trip := range trips {
		require.NoError(t, book.DeleteTrip(ctx, trip.ID))
	}

	got, err := book.Report(ctx, saved.ID)
	require.NoError(t, err)
	assertDec(t, "25", got.TripFact)
	assert.Len(t, got.Trips, 1)

	require.NoError(t, book.DeleteReport(ctx, saved.ID))
	reports, err := book.Reports(ctx)
	require.NoError(t, err)
	assert.Empty(t, reports)

	_, err = book.Report(ctx, saved.ID)
	assert.True(t, fuel.IsNotFound(err))
}

// =============================================================================
// OBSERVERS
// =============================================================================

type changeLog struct {
	mu      sync.Mutex
	changes []logbook.Change
}

func (c *changeLog) add(ch logbook.Change) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes = append(c.changes, ch)
}

func (c *changeLog) snapshot() []logbook.Change {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]logbook.Change(nil), c.changes...)
}

func TestLogbook_SavedReportsWithoutID_GetStableIDs(t *testing.T) {
	// GIVEN: A report log written by a client that stored no IDs
	// WHEN: The log is read
	// THEN: Each report gets an ID once, and can be fetched and deleted by it

	book, kv, _ := newTestLogbook(t)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, logbook.KeyReports, []byte(
		`[{"from":"2024-02-01","to":"2024-02-29","mainDiff":1},{"from":"2024-01-01","to":"2024-01-31","mainDiff":-2}]`,
	)))

	reports, err := book.Reports(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	require.NotEmpty(t, reports[0].ID)
	require.NotEmpty(t, reports[1].ID)
	assert.NotEqual(t, reports[0].ID, reports[1].ID)

	again, err := book.Reports(ctx)
	require.NoError(t, err)
	assert.Equal(t, reports[0].ID, again[0].ID, "IDs are persisted, not reassigned")

	jan, err := book.Report(ctx, reports[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", jan.From)

	require.NoError(t, book.DeleteReport(ctx, reports[0].ID))
	left, err := book.Reports(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, reports[1].ID, left[0].ID)
}

func TestLogbook_Subscribe_ReceivesWritesAndRecompute(t *testing.T) {
	book, _, _ := newTestLogbook(t)
	ctx := context.Background()

	var log changeLog
	unsubscribe := book.Subscribe(log.add)

	trip, err := book.AddTrip(ctx, logbook.TripInput{Distance: dec("10"), LoadType: fuel.LoadEmpty})
	require.NoError(t, err)

	assert.Equal(t, []logbook.Change{
		{Key: logbook.KeyTrips, Op: logbook.OpCreate, ID: trip.ID},
		{Key: logbook.KeyTankStatus, Op: logbook.OpRecompute},
	}, log.snapshot())

	unsubscribe()
	_, err = book.AddTrip(ctx, logbook.TripInput{Distance: dec("10"), LoadType: fuel.LoadEmpty})
	require.NoError(t, err)
	assert.Len(t, log.snapshot(), 2, "no delivery after unsubscribe")
}

func TestLogbook_Subscriber_MayCallBack(t *testing.T) {
	book, _, _ := newTestLogbook(t)
	ctx := context.Background()

	var seen decimal.Decimal
	book.Subscribe(func(c logbook.Change) {
		if c.Op == logbook.OpRecompute {
			s, err := book.TankStatus(ctx)
			if err == nil {
				seen = s.Main
			}
		}
	})

	saveBaseline(t, book, "42", "0", "0")
	assertDec(t, "42", seen)
}

func TestLogbook_Follow_ForwardsExternalWrites(t *testing.T) {
	// GIVEN: A logbook following its store's change feed
	// WHEN: Another writer replaces the trip log directly
	// THEN: Subscribers see an external change for that key

	book, kv, _ := newTestLogbook(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var log changeLog
	book.Subscribe(log.add)
	require.NoError(t, book.Follow(ctx, kv))

	require.NoError(t, kv.Set(ctx, logbook.KeyTrips, []byte("[]")))

	assert.Eventually(t, func() bool {
		for _, c := range log.snapshot() {
			if c.Op == logbook.OpExternal && c.Key == logbook.KeyTrips {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestLogbook_TripTotals(t *testing.T) {
	book, _, _ := newTestLogbook(t)
	ctx := context.Background()

	_, err := book.AddTrip(ctx, logbook.TripInput{Distance: dec("100"), LoadType: fuel.LoadEmpty})
	require.NoError(t, err)
	_, err = book.AddTrip(ctx, logbook.TripInput{Distance: dec("50"), LoadType: fuel.LoadHead, ActualFuel: decPtr("12")})
	require.NoError(t, err)

	totals, err := book.TripTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, totals.Count)
	assertDec(t, "150", totals.Distance)
	assertDec(t, "36.5", totals.ExpectedFuel)
	assertDec(t, "12", totals.ActualFuel)
	assertDec(t, "37", totals.Consumed)
}

func TestLogbook_Reset(t *testing.T) {
	// GIVEN: A logbook with a baseline and a trip
	// WHEN: It is reset, through a store that can drop everything at once
	//       and through one that can only remove keys
	// THEN: Every document is gone and subscribers hear of each key

	tests := []struct {
		name string
		wrap func(*store.Memory) fuel.KV
	}{
		{"store reset", func(m *store.Memory) fuel.KV { return m }},
		{"key by key", func(m *store.Memory) fuel.KV { return struct{ fuel.KV }{m} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			kv := store.NewMemory()
			logger, _ := logtest.NewNullLogger()
			book := logbook.New(tt.wrap(kv), logbook.Options{Logger: logger})

			saveBaseline(t, book, "500", "100", "0")
			_, err := book.AddTrip(ctx, logbook.TripInput{Distance: dec("10"), LoadType: fuel.LoadEmpty})
			require.NoError(t, err)

			var log changeLog
			book.Subscribe(log.add)

			require.NoError(t, book.Reset(ctx))
			assert.Empty(t, kv.Keys())

			removed := map[string]bool{}
			for _, c := range log.snapshot() {
				if c.Op == logbook.OpRemove {
					removed[c.Key] = true
				}
			}
			for _, key := range logbook.AllKeys {
				assert.True(t, removed[key], key)
			}
		})
	}
}
