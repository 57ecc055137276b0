/*
consumption.go - Consumption calculator

PURPOSE:
  Maps a trip's distance and load descriptor to the fuel it is expected to
  burn, and a refrigeration session's duration to the fuel it burned.

FORMULAS (liters):
  head:    distance × Head / 100
  empty:   distance × Base / 100
  loaded:  distance × (Base + round2(weight × coefficient / 1000)) / 100
  result:  round2(liters)

  round2 is applied to the additional loaded rate BEFORE it is added to the
  base rate, and once more to the final liters. Moving either rounding
  changes results at the cent level.

  refrigeration: hours × RefPerHour, not rounded.

BASE RATE:
  Base is an integrator decision (config key rates.base_per_100km). The
  shipped default is 25 L/100km; some fleets calibrate 25.5.

SEE ALSO:
  - config/config.go: Where rates are configured
  - reconcile.go: Consumes Trip.Consumed and FuelConsumed
*/
package fuel

import (
	"time"

	"github.com/shopspring/decimal"
)

// Default consumption rates.
var (
	DefaultBaseRate    = decimal.NewFromInt(25) // L/100km, empty
	DefaultHeadRate    = decimal.NewFromInt(23) // L/100km, tractor only
	DefaultRefRate     = decimal.NewFromInt(2)  // L/h, refrigeration unit
	DefaultCoefficient = "0.35"                 // L/100km per tonne
)

var (
	hundred  = decimal.NewFromInt(100)
	thousand = decimal.NewFromInt(1000)
)

// Rates parameterises the calculator.
type Rates struct {
	Base               decimal.Decimal
	Head               decimal.Decimal
	RefPerHour         decimal.Decimal
	DefaultCoefficient string
}

// DefaultRates returns the shipped rates.
func DefaultRates() Rates {
	return Rates{
		Base:               DefaultBaseRate,
		Head:               DefaultHeadRate,
		RefPerHour:         DefaultRefRate,
		DefaultCoefficient: DefaultCoefficient,
	}
}

// Validate rejects non-positive rates.
func (r Rates) Validate() error {
	if !r.Base.IsPositive() || !r.Head.IsPositive() || !r.RefPerHour.IsPositive() {
		return ErrInvalidRates
	}
	return nil
}

// Calculator computes expected fuel for trips and refrigeration sessions.
type Calculator struct {
	Rates Rates
}

// NewCalculator returns a calculator using the given rates.
func NewCalculator(r Rates) *Calculator {
	return &Calculator{Rates: r}
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ParseCoefficient parses a decimal coefficient; absent or unparseable is zero.
func ParseCoefficient(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	c, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return c
}

// RatePer100 returns the per-100km rate for the descriptor.
func (c *Calculator) RatePer100(loadType LoadType, weight decimal.Decimal, coefficient string) decimal.Decimal {
	switch loadType {
	case LoadHead:
		return c.Rates.Head
	case LoadLoaded:
		if !weight.IsPositive() {
			return c.Rates.Base
		}
		additional := Round2(weight.Mul(ParseCoefficient(coefficient)).Div(thousand))
		return c.Rates.Base.Add(additional)
	default:
		return c.Rates.Base
	}
}

// ExpectedFuel returns the liters a trip is expected to burn, rounded to two
// decimals. A non-positive distance is rejected and no trip may be created.
func (c *Calculator) ExpectedFuel(distance decimal.Decimal, loadType LoadType, weight decimal.Decimal, coefficient string) (decimal.Decimal, error) {
	if !distance.IsPositive() {
		return decimal.Zero, invalid("distance", ErrInvalidDistance)
	}
	if !loadType.Valid() {
		return decimal.Zero, invalid("loadType", ErrInvalidLoadType)
	}
	rate := c.RatePer100(loadType, weight, coefficient)
	return Round2(distance.Mul(rate).Div(hundred)), nil
}

// RefrigerationFuel returns hours × RefPerHour. Not rounded.
func (c *Calculator) RefrigerationFuel(hours decimal.Decimal) decimal.Decimal {
	return hours.Mul(c.Rates.RefPerHour)
}

// SessionDuration returns the hours between start and end, never negative.
func SessionDuration(start, end time.Time) decimal.Decimal {
	d := end.Sub(start)
	if d <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(d)).Div(decimal.NewFromInt(int64(time.Hour)))
}
