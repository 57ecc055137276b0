package logbook

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fleetfuel/logbook/fuel"
)

// Baseline returns the handover state, or nil when none is recorded.
func (b *Logbook) Baseline(ctx context.Context) (*fuel.InitialFuelState, error) {
	b.lock()
	defer b.unlock()
	return b.baseline(ctx)
}

func (b *Logbook) baseline(ctx context.Context) (*fuel.InitialFuelState, error) {
	var s fuel.InitialFuelState
	ok, err := b.read(ctx, KeyInitialFuel, &s)
	if err != nil || !ok {
		return nil, err
	}
	return &s, nil
}

// SaveBaseline records the handover state. The cargo ledger restarts from
// the handover cargo weight with an empty operation log, and the tanks are
// recomputed.
func (b *Logbook) SaveBaseline(ctx context.Context, s fuel.InitialFuelState) (*fuel.InitialFuelState, error) {
	if s.CargoWeight != nil && s.CargoWeight.IsNegative() {
		return nil, &fuel.ValidationError{Field: "cargoWeight", Err: fuel.ErrInvalidWeight}
	}
	if s.Date == "" {
		s.Date = b.timestamp()
	}

	b.lock()
	defer b.unlock()

	if err := b.write(ctx, KeyInitialFuel, s, Change{Key: KeyInitialFuel, Op: OpReplace}); err != nil {
		return nil, err
	}
	cargo := fuel.CargoState{CurrentWeight: s.Cargo(), Operations: []fuel.CargoOperation{}}
	if err := b.write(ctx, KeyCargo, cargo, Change{Key: KeyCargo, Op: OpReplace}); err != nil {
		return nil, err
	}
	if _, err := b.recompute(ctx); err != nil {
		return nil, err
	}

	b.log.WithField("date", s.Date).Info("baseline saved")
	return &s, nil
}

// RemoveBaseline deletes the handover state, empties the cargo ledger and
// recomputes the tanks from zero.
func (b *Logbook) RemoveBaseline(ctx context.Context) error {
	b.lock()
	defer b.unlock()

	if err := b.remove(ctx, KeyInitialFuel, Change{Key: KeyInitialFuel, Op: OpRemove}); err != nil {
		return err
	}
	cargo := fuel.CargoState{CurrentWeight: decimal.Zero, Operations: []fuel.CargoOperation{}}
	if err := b.write(ctx, KeyCargo, cargo, Change{Key: KeyCargo, Op: OpReplace}); err != nil {
		return err
	}
	if _, err := b.recompute(ctx); err != nil {
		return err
	}

	b.log.Info("baseline removed")
	return nil
}
