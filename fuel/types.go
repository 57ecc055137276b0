/*
Package fuel provides the bookkeeping core of the fuel logbook.

PURPOSE:
  Domain types and pure algorithms for a vehicle with two fuel tanks: the
  main tank (burned by trips) and the refrigeration-unit tank (burned by
  refrigeration sessions). Nothing in this package performs I/O; the
  logbook package reads the persisted logs and feeds them here.

KEY CONCEPTS IN THIS FILE (types.go):
  - Trip: one vehicle movement with expected and optional actual fuel
  - RefrigerationSession: a timed interval of refrigeration-unit runtime
  - TankTransaction: a direct refuel or consumption on one tank
  - CargoOperation: a load or unload changing the carried weight
  - InitialFuelState: fuel and cargo at vehicle handover
  - TankStatus: derived tank levels, never patched incrementally

DESIGN PRINCIPLES:
  1. Full replay: tank levels are recomputed from every log after every
     mutation (see reconcile.go)
  2. Precision: quantities are decimal.Decimal, rounding is explicit
  3. Fail open: malformed persisted data degrades to empty, never crashes

SEE ALSO:
  - consumption.go: Expected fuel per trip and per refrigeration hour
  - reconcile.go: Tank reconciliation engine
  - report.go: Period report aggregator
  - cargo.go: Cargo ledger
*/
package fuel

import (
	"github.com/shopspring/decimal"
)

func init() {
	// Persisted logs hold plain JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// =============================================================================
// ENUMS
// =============================================================================

// LoadType describes how a trip was driven.
type LoadType string

const (
	LoadEmpty  LoadType = "empty"
	LoadLoaded LoadType = "loaded"
	LoadHead   LoadType = "head" // tractor unit only, no trailer
)

// Valid reports whether lt is one of the known load types.
func (lt LoadType) Valid() bool {
	switch lt {
	case LoadEmpty, LoadLoaded, LoadHead:
		return true
	}
	return false
}

// TankType names one of the two tanks.
type TankType string

const (
	TankMain TankType = "main"
	TankRef  TankType = "ref"
)

func (tt TankType) Valid() bool { return tt == TankMain || tt == TankRef }

// TxType is the direction of a tank transaction.
type TxType string

const (
	TxRefuel      TxType = "refuel"
	TxConsumption TxType = "consumption"
)

func (t TxType) Valid() bool { return t == TxRefuel || t == TxConsumption }

// SessionStatus tracks whether a refrigeration session is still running.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// CargoOpType is the direction of a cargo operation.
type CargoOpType string

const (
	CargoLoad   CargoOpType = "load"
	CargoUnload CargoOpType = "unload"
)

// =============================================================================
// EVENT RECORDS
// =============================================================================

// InitialFuelState is the baseline recorded at vehicle handover.
// A missing baseline is equivalent to the zero value.
type InitialFuelState struct {
	Date        string           `json:"date"`
	Main        decimal.Decimal  `json:"main"`
	Ref         decimal.Decimal  `json:"ref"`
	CargoWeight *decimal.Decimal `json:"cargoWeight,omitempty"`
}

// Cargo returns the handover cargo weight, zero when unset.
func (s InitialFuelState) Cargo() decimal.Decimal {
	if s.CargoWeight == nil {
		return decimal.Zero
	}
	return *s.CargoWeight
}

// Trip is a single vehicle movement.
//
// ExpectedFuel is always derived from Distance, LoadType, Weight and
// Coefficient; ActualFuel, when present, wins for consumption purposes.
type Trip struct {
	ID           string           `json:"id"`
	Distance     decimal.Decimal  `json:"distance"`
	Weight       decimal.Decimal  `json:"weight"`
	LoadType     LoadType         `json:"loadType"`
	Coefficient  string           `json:"coefficient,omitempty"`
	ExpectedFuel decimal.Decimal  `json:"expectedFuel"`
	ActualFuel   *decimal.Decimal `json:"actualFuel,omitempty"`
	Date         string           `json:"date"`
}

// Consumed returns the fuel the trip burned from the main tank.
func (t Trip) Consumed() decimal.Decimal {
	if t.ActualFuel != nil {
		return *t.ActualFuel
	}
	return t.ExpectedFuel
}

// RefrigerationSession is an interval of refrigeration-unit runtime.
// Duration is in hours.
type RefrigerationSession struct {
	ID           string          `json:"id"`
	StartDate    string          `json:"startDate"`
	EndDate      string          `json:"endDate,omitempty"`
	Duration     decimal.Decimal `json:"duration"`
	FuelConsumed decimal.Decimal `json:"fuelConsumed"`
	Status       SessionStatus   `json:"status"`
}

// TankTransaction adjusts one tank directly by ±Amount.
type TankTransaction struct {
	ID          string          `json:"id"`
	Type        TxType          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	TankType    TankType        `json:"tankType"`
	Date        string          `json:"date"`
	Description string          `json:"description,omitempty"`
}

// Signed returns the amount with the sign of its effect on the tank.
func (tx TankTransaction) Signed() decimal.Decimal {
	if tx.Type == TxRefuel {
		return tx.Amount
	}
	return tx.Amount.Neg()
}

// CargoOperation loads or unloads cargo. Weight is in kilograms.
type CargoOperation struct {
	ID          string          `json:"id"`
	Type        CargoOpType     `json:"type"`
	Date        string          `json:"date"`
	Weight      decimal.Decimal `json:"weight"`
	Description string          `json:"description,omitempty"`
}

// CargoState is the persisted cargo ledger: the running weight embedded
// with its operation log (newest first).
type CargoState struct {
	CurrentWeight decimal.Decimal  `json:"currentWeight"`
	Operations    []CargoOperation `json:"operations"`
}

// =============================================================================
// DERIVED STATE
// =============================================================================

// TankStatus holds the recomputed tank levels in liters.
// Levels may be negative: over-consumption is visible, not suppressed.
type TankStatus struct {
	Main decimal.Decimal `json:"main"`
	Ref  decimal.Decimal `json:"ref"`
}

// Equal reports whether both levels match exactly.
func (s TankStatus) Equal(other TankStatus) bool {
	return s.Main.Equal(other.Main) && s.Ref.Equal(other.Ref)
}
