package fuel

import "github.com/shopspring/decimal"

// =============================================================================
// CARGO LEDGER - Running cargo weight, clamped at zero
// =============================================================================

// ApplyCargoOperation returns the weight after op. The result is never
// negative: unloading more than is on board unloads only what is there.
func ApplyCargoOperation(current decimal.Decimal, op CargoOperation) decimal.Decimal {
	switch op.Type {
	case CargoLoad:
		return current.Add(op.Weight)
	case CargoUnload:
		return decimal.Max(decimal.Zero, current.Sub(op.Weight))
	}
	return current
}

// ReverseCargoOperation undoes op: a deleted load is subtracted (clamped),
// a deleted unload is added back.
func ReverseCargoOperation(current decimal.Decimal, op CargoOperation) decimal.Decimal {
	switch op.Type {
	case CargoLoad:
		return decimal.Max(decimal.Zero, current.Sub(op.Weight))
	case CargoUnload:
		return current.Add(op.Weight)
	}
	return current
}

// ValidateLoad checks a load request before it is applied.
func ValidateLoad(date string, weight decimal.Decimal) error {
	if date == "" {
		return invalid("date", ErrMissingDate)
	}
	if !weight.IsPositive() {
		return invalid("weight", ErrInvalidWeight)
	}
	return nil
}

// ValidateUnload checks an unload request against the weight on board.
// A nil weight means "unload all".
func ValidateUnload(current decimal.Decimal, date string, weight *decimal.Decimal) error {
	if date == "" {
		return invalid("date", ErrMissingDate)
	}
	if !current.IsPositive() {
		return ErrNoCargo
	}
	if weight == nil {
		return nil
	}
	if !weight.IsPositive() {
		return invalid("weight", ErrInvalidWeight)
	}
	if weight.GreaterThan(current) {
		return invalid("weight", ErrUnloadExceedsCargo)
	}
	return nil
}

// Apply appends op (newest first) and advances the running weight.
func (s CargoState) Apply(op CargoOperation) CargoState {
	ops := make([]CargoOperation, 0, len(s.Operations)+1)
	ops = append(ops, op)
	ops = append(ops, s.Operations...)
	return CargoState{
		CurrentWeight: ApplyCargoOperation(s.CurrentWeight, op),
		Operations:    ops,
	}
}

// Remove drops the operation with id and reverses its effect.
func (s CargoState) Remove(id string) (CargoState, bool) {
	for i, op := range s.Operations {
		if op.ID != id {
			continue
		}
		ops := make([]CargoOperation, 0, len(s.Operations)-1)
		ops = append(ops, s.Operations[:i]...)
		ops = append(ops, s.Operations[i+1:]...)
		return CargoState{
			CurrentWeight: ReverseCargoOperation(s.CurrentWeight, op),
			Operations:    ops,
		}, true
	}
	return s, false
}

// DefaultLoadType is the trip load type a form should preselect for the
// weight on board.
func DefaultLoadType(weight decimal.Decimal) LoadType {
	if weight.IsPositive() {
		return LoadLoaded
	}
	return LoadEmpty
}
