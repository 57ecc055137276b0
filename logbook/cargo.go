package logbook

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/fleetfuel/logbook/fuel"
)

// CargoInput describes a load, or an unload when used with Unload. A nil
// Weight on Unload unloads everything on board.
type CargoInput struct {
	Date        string
	Weight      *decimal.Decimal
	Description string
}

// Cargo returns the cargo ledger. Before any operation, or when the ledger
// cannot be decoded, it starts from the handover cargo weight.
func (b *Logbook) Cargo(ctx context.Context) (fuel.CargoState, error) {
	b.lock()
	defer b.unlock()
	return b.cargo(ctx)
}

func (b *Logbook) cargo(ctx context.Context) (fuel.CargoState, error) {
	var s fuel.CargoState
	ok, err := b.read(ctx, KeyCargo, &s)
	if err != nil {
		return fuel.CargoState{}, err
	}
	if !ok {
		initial, err := b.baseline(ctx)
		if err != nil {
			return fuel.CargoState{}, err
		}
		s = fuel.CargoState{}
		if initial != nil {
			s.CurrentWeight = initial.Cargo()
		}
	}
	if s.Operations == nil {
		s.Operations = []fuel.CargoOperation{}
	}
	return s, nil
}

// LoadCargo adds weight to the cargo on board.
func (b *Logbook) LoadCargo(ctx context.Context, in CargoInput) (fuel.CargoState, error) {
	weight := decimal.Zero
	if in.Weight != nil {
		weight = *in.Weight
	}
	if err := fuel.ValidateLoad(in.Date, weight); err != nil {
		return fuel.CargoState{}, err
	}

	b.lock()
	defer b.unlock()

	return b.applyCargo(ctx, fuel.CargoOperation{
		ID:          b.newID(),
		Type:        fuel.CargoLoad,
		Date:        in.Date,
		Weight:      weight,
		Description: in.Description,
	})
}

// UnloadCargo removes in.Weight from the cargo on board, or all of it when
// in.Weight is nil.
func (b *Logbook) UnloadCargo(ctx context.Context, in CargoInput) (fuel.CargoState, error) {
	b.lock()
	defer b.unlock()

	state, err := b.cargo(ctx)
	if err != nil {
		return fuel.CargoState{}, err
	}
	if err := fuel.ValidateUnload(state.CurrentWeight, in.Date, in.Weight); err != nil {
		return fuel.CargoState{}, err
	}
	weight := state.CurrentWeight
	if in.Weight != nil {
		weight = *in.Weight
	}

	return b.applyCargo(ctx, fuel.CargoOperation{
		ID:          b.newID(),
		Type:        fuel.CargoUnload,
		Date:        in.Date,
		Weight:      weight,
		Description: in.Description,
	})
}

func (b *Logbook) applyCargo(ctx context.Context, op fuel.CargoOperation) (fuel.CargoState, error) {
	state, err := b.cargo(ctx)
	if err != nil {
		return fuel.CargoState{}, err
	}
	next := state.Apply(op)
	if err := b.write(ctx, KeyCargo, next, Change{Key: KeyCargo, Op: OpCreate, ID: op.ID}); err != nil {
		return fuel.CargoState{}, err
	}

	b.log.WithFields(logrus.Fields{
		"op_id":   op.ID,
		"type":    op.Type,
		"weight":  op.Weight.String(),
		"current": next.CurrentWeight.String(),
	}).Info("cargo operation recorded")
	return next, nil
}

// DeleteCargoOperation removes the operation with id and reverses its
// effect on the running weight.
func (b *Logbook) DeleteCargoOperation(ctx context.Context, id string) (fuel.CargoState, error) {
	b.lock()
	defer b.unlock()

	state, err := b.cargo(ctx)
	if err != nil {
		return fuel.CargoState{}, err
	}
	next, ok := state.Remove(id)
	if !ok {
		return fuel.CargoState{}, &fuel.NotFoundError{Kind: "cargo operation", ID: id}
	}
	if err := b.write(ctx, KeyCargo, next, Change{Key: KeyCargo, Op: OpDelete, ID: id}); err != nil {
		return fuel.CargoState{}, err
	}

	b.log.WithFields(logrus.Fields{"op_id": id, "current": next.CurrentWeight.String()}).Info("cargo operation deleted")
	return next, nil
}

// DefaultLoadType is the load type a new trip form should preselect.
func (b *Logbook) DefaultLoadType(ctx context.Context) (fuel.LoadType, error) {
	state, err := b.Cargo(ctx)
	if err != nil {
		return "", err
	}
	return fuel.DefaultLoadType(state.CurrentWeight), nil
}
