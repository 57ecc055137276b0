package logbook

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/fleetfuel/logbook/fuel"
)

// =============================================================================
// TRIPS
// =============================================================================

// TripInput is the operator's description of a trip. Coefficient defaults to
// the configured default when empty; Date defaults to today. A loaded trip
// without a weight carries the cargo currently on board.
type TripInput struct {
	Distance    decimal.Decimal
	Weight      decimal.Decimal
	LoadType    fuel.LoadType
	Coefficient string
	ActualFuel  *decimal.Decimal
	Date        string
}

// TripTotals summarises the trip log.
type TripTotals struct {
	Count        int             `json:"count"`
	Distance     decimal.Decimal `json:"distance"`
	ExpectedFuel decimal.Decimal `json:"expectedFuel"`
	ActualFuel   decimal.Decimal `json:"actualFuel"`
	Consumed     decimal.Decimal `json:"consumed"`
}

func (b *Logbook) buildTrip(in TripInput) (fuel.Trip, error) {
	if !in.LoadType.Valid() {
		return fuel.Trip{}, &fuel.ValidationError{Field: "loadType", Err: fuel.ErrInvalidLoadType}
	}
	if in.Weight.IsNegative() {
		return fuel.Trip{}, &fuel.ValidationError{Field: "weight", Err: fuel.ErrInvalidWeight}
	}
	if in.LoadType == fuel.LoadLoaded && !in.Weight.IsPositive() {
		return fuel.Trip{}, &fuel.ValidationError{Field: "weight", Err: fuel.ErrLoadedWithoutWeight}
	}
	if in.ActualFuel != nil && in.ActualFuel.IsNegative() {
		return fuel.Trip{}, &fuel.ValidationError{Field: "actualFuel", Err: fuel.ErrInvalidAmount}
	}

	coefficient := in.Coefficient
	if coefficient == "" {
		coefficient = b.calc.Rates.DefaultCoefficient
	}
	expected, err := b.calc.ExpectedFuel(in.Distance, in.LoadType, in.Weight, coefficient)
	if err != nil {
		return fuel.Trip{}, err
	}

	return fuel.Trip{
		Distance:     in.Distance,
		Weight:       in.Weight,
		LoadType:     in.LoadType,
		Coefficient:  coefficient,
		ExpectedFuel: expected,
		ActualFuel:   in.ActualFuel,
		Date:         in.Date,
	}, nil
}

// withCargoWeight fills a loaded trip's missing weight from the cargo on
// board. Callers hold the lock.
func (b *Logbook) withCargoWeight(ctx context.Context, in TripInput) (TripInput, error) {
	if in.LoadType != fuel.LoadLoaded || !in.Weight.IsZero() {
		return in, nil
	}
	state, err := b.cargo(ctx)
	if err != nil {
		return in, err
	}
	in.Weight = state.CurrentWeight
	return in, nil
}

// TripPreview is the calculator's view of a trip not yet logged.
type TripPreview struct {
	Weight       decimal.Decimal `json:"weight"`
	Coefficient  string          `json:"coefficient"`
	RatePer100   decimal.Decimal `json:"ratePer100"`
	ExpectedFuel decimal.Decimal `json:"expectedFuel"`
}

// PreviewTrip derives the expected fuel for in exactly as AddTrip would,
// without logging anything.
func (b *Logbook) PreviewTrip(ctx context.Context, in TripInput) (*TripPreview, error) {
	b.lock()
	defer b.unlock()

	in, err := b.withCargoWeight(ctx, in)
	if err != nil {
		return nil, err
	}
	trip, err := b.buildTrip(in)
	if err != nil {
		return nil, err
	}
	return &TripPreview{
		Weight:       trip.Weight,
		Coefficient:  trip.Coefficient,
		RatePer100:   b.calc.RatePer100(trip.LoadType, trip.Weight, trip.Coefficient),
		ExpectedFuel: trip.ExpectedFuel,
	}, nil
}

// Trips returns the trip log, newest first.
func (b *Logbook) Trips(ctx context.Context) ([]fuel.Trip, error) {
	b.lock()
	defer b.unlock()
	return readLog[fuel.Trip](ctx, b, KeyTrips)
}

// AddTrip validates in, derives its expected fuel and prepends it to the log.
func (b *Logbook) AddTrip(ctx context.Context, in TripInput) (*fuel.Trip, error) {
	b.lock()
	defer b.unlock()

	in, err := b.withCargoWeight(ctx, in)
	if err != nil {
		return nil, err
	}
	trip, err := b.buildTrip(in)
	if err != nil {
		return nil, err
	}
	trip.ID = b.newID()
	if trip.Date == "" {
		trip.Date = b.today()
	}

	trips, err := readLog[fuel.Trip](ctx, b, KeyTrips)
	if err != nil {
		return nil, err
	}
	if err := b.write(ctx, KeyTrips, prepend(trips, trip), Change{Key: KeyTrips, Op: OpCreate, ID: trip.ID}); err != nil {
		return nil, err
	}
	if _, err := b.recompute(ctx); err != nil {
		return nil, err
	}

	b.log.WithFields(logrus.Fields{
		"trip_id":  trip.ID,
		"distance": trip.Distance.String(),
		"expected": trip.ExpectedFuel.String(),
	}).Info("trip added")
	return &trip, nil
}

// UpdateTrip replaces the trip with id, re-deriving its expected fuel. An
// empty Date keeps the recorded one.
func (b *Logbook) UpdateTrip(ctx context.Context, id string, in TripInput) (*fuel.Trip, error) {
	b.lock()
	defer b.unlock()

	in, err := b.withCargoWeight(ctx, in)
	if err != nil {
		return nil, err
	}
	trip, err := b.buildTrip(in)
	if err != nil {
		return nil, err
	}

	trips, err := readLog[fuel.Trip](ctx, b, KeyTrips)
	if err != nil {
		return nil, err
	}
	idx := indexOf(trips, func(t fuel.Trip) bool { return t.ID == id })
	if idx < 0 {
		return nil, &fuel.NotFoundError{Kind: "trip", ID: id}
	}
	trip.ID = id
	if trip.Date == "" {
		trip.Date = trips[idx].Date
	}
	trips[idx] = trip

	if err := b.write(ctx, KeyTrips, trips, Change{Key: KeyTrips, Op: OpUpdate, ID: id}); err != nil {
		return nil, err
	}
	if _, err := b.recompute(ctx); err != nil {
		return nil, err
	}

	b.log.WithField("trip_id", id).Info("trip updated")
	return &trip, nil
}

// DeleteTrip removes the trip with id.
func (b *Logbook) DeleteTrip(ctx context.Context, id string) error {
	b.lock()
	defer b.unlock()

	trips, err := readLog[fuel.Trip](ctx, b, KeyTrips)
	if err != nil {
		return err
	}
	idx := indexOf(trips, func(t fuel.Trip) bool { return t.ID == id })
	if idx < 0 {
		return &fuel.NotFoundError{Kind: "trip", ID: id}
	}
	trips = append(trips[:idx], trips[idx+1:]...)

	if err := b.write(ctx, KeyTrips, trips, Change{Key: KeyTrips, Op: OpDelete, ID: id}); err != nil {
		return err
	}
	if _, err := b.recompute(ctx); err != nil {
		return err
	}

	b.log.WithField("trip_id", id).Info("trip deleted")
	return nil
}

// TripTotals sums the whole trip log.
func (b *Logbook) TripTotals(ctx context.Context) (TripTotals, error) {
	trips, err := b.Trips(ctx)
	if err != nil {
		return TripTotals{}, err
	}
	var t TripTotals
	t.Count = len(trips)
	for _, trip := range trips {
		t.Distance = t.Distance.Add(trip.Distance)
		t.ExpectedFuel = t.ExpectedFuel.Add(trip.ExpectedFuel)
		if trip.ActualFuel != nil {
			t.ActualFuel = t.ActualFuel.Add(*trip.ActualFuel)
		}
		t.Consumed = t.Consumed.Add(trip.Consumed())
	}
	return t, nil
}

func indexOf[T any](items []T, match func(T) bool) int {
	for i, item := range items {
		if match(item) {
			return i
		}
	}
	return -1
}
