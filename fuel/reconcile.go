/*
reconcile.go - Tank reconciliation engine

PURPOSE:
  Recomputes both tank levels from scratch: the handover baseline, every
  tank transaction, every trip and every refrigeration session.

KEY INSIGHT:
  Trips, sessions and transactions can be edited or deleted after the fact.
  Patching the stored levels by deltas would drift after the first edit, so
  the stored TankStatus is a cache that is rebuilt wholesale after every
  mutation. There is no other write path to it.

ALGORITHM:
  main = initial.main, ref = initial.ref
  refuel      -> +amount on tx.tankType
  consumption -> -amount on tx.tankType
  trip        -> main -= actualFuel ?? expectedFuel
  session     -> ref  -= fuelConsumed
  No clamping: a negative level means over-consumption.

  Summation is commutative, so input order does not matter.

SEE ALSO:
  - logbook/logbook.go: Reads the logs, calls RecomputeTanks, stores result
  - report.go: Same arithmetic over a date-filtered slice
*/
package fuel

import "github.com/shopspring/decimal"

// RecomputeTanks replays all logs over the baseline. initial may be nil.
func RecomputeTanks(
	initial *InitialFuelState,
	transactions []TankTransaction,
	trips []Trip,
	sessions []RefrigerationSession,
) TankStatus {
	main, ref := decimal.Zero, decimal.Zero
	if initial != nil {
		main, ref = initial.Main, initial.Ref
	}

	for _, tx := range transactions {
		switch tx.TankType {
		case TankMain:
			main = main.Add(tx.Signed())
		case TankRef:
			ref = ref.Add(tx.Signed())
		}
	}

	for _, t := range trips {
		main = main.Sub(t.Consumed())
	}

	for _, s := range sessions {
		ref = ref.Sub(s.FuelConsumed)
	}

	return TankStatus{Main: main, Ref: ref}
}

// =============================================================================
// TANK LEVELS - Capacity view of a TankStatus
// =============================================================================

// LevelBand classifies a fill percentage.
type LevelBand string

const (
	BandLow     LevelBand = "low"     // <= 20 %
	BandWarning LevelBand = "warning" // <= 40 %
	BandOK      LevelBand = "ok"
)

// Capacities are the physical tank sizes in liters.
type Capacities struct {
	Main decimal.Decimal
	Ref  decimal.Decimal
}

// DefaultCapacities returns 1000 L main and 300 L refrigeration.
func DefaultCapacities() Capacities {
	return Capacities{Main: decimal.NewFromInt(1000), Ref: decimal.NewFromInt(300)}
}

// TankLevel is one tank's level against its capacity.
type TankLevel struct {
	Tank     TankType        `json:"tank"`
	Liters   decimal.Decimal `json:"liters"`
	Capacity decimal.Decimal `json:"capacity"`
	Percent  decimal.Decimal `json:"percent"`
	Band     LevelBand       `json:"band"`
}

// Levels returns the main and refrigeration levels of s against c.
func (s TankStatus) Levels(c Capacities) []TankLevel {
	return []TankLevel{
		newTankLevel(TankMain, s.Main, c.Main),
		newTankLevel(TankRef, s.Ref, c.Ref),
	}
}

func newTankLevel(tank TankType, liters, capacity decimal.Decimal) TankLevel {
	pct := decimal.Zero
	if capacity.IsPositive() {
		pct = liters.Div(capacity).Mul(hundred).Round(1)
	}
	band := BandOK
	switch {
	case pct.LessThanOrEqual(decimal.NewFromInt(20)):
		band = BandLow
	case pct.LessThanOrEqual(decimal.NewFromInt(40)):
		band = BandWarning
	}
	return TankLevel{Tank: tank, Liters: liters, Capacity: capacity, Percent: pct, Band: band}
}
