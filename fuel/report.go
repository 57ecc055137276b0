/*
report.go - Period report aggregator

PURPOSE:
  Compares what the logs say should be in each tank against what was
  physically measured, over a date range.

STEPS:
  1. Filter all four logs to [from, to] by calendar day
     (trip.date, session.startDate, tx.date, cargo.date)
  2. tripFact = Σ(actualFuel ?? expectedFuel), tripKm = Σ distance,
     refFact  = Σ fuelConsumed, totalFact = tripFact + refFact
  3. mainIn/mainOut/refIn/refOut from in-period transactions
  4. mainCalc = initialMain + mainIn - mainOut - tripFact
     refCalc  = initialRef  + refIn  - refOut  - refFact
  5. mainDiff = measuredMain - mainCalc (positive = overfill,
     negative = shortage); same for ref

BASELINE:
  The calculated levels always start from the vehicle-handover baseline,
  not from an opening balance at `from`. Only in-period transactions are
  added on top. This is the accounting the operators reconcile against;
  changing it is a deliberate redesign, not a fix.

SNAPSHOTS:
  A Report is immutable once built. A saved report reflects the data as of
  GeneratedAt and is never recomputed when the logs change later.

SEE ALSO:
  - dates.go: Date parsing and Period
  - reconcile.go: The same arithmetic over the full history
*/
package fuel

import (
	"time"

	"github.com/shopspring/decimal"
)

// Verdict classifies a discrepancy.
type Verdict string

const (
	VerdictOverfill Verdict = "overfill" // more fuel present than accounted for
	VerdictShortage Verdict = "shortage" // less fuel present than accounted for
	VerdictBalanced Verdict = "balanced"
)

// VerdictOf returns the verdict for a measured-minus-calculated difference.
func VerdictOf(diff decimal.Decimal) Verdict {
	switch diff.Sign() {
	case 1:
		return VerdictOverfill
	case -1:
		return VerdictShortage
	default:
		return VerdictBalanced
	}
}

// Report is a point-in-time snapshot of a period reconciliation. Logs
// written by older clients hold reports without an ID; the logbook assigns
// one when it reads them.
type Report struct {
	ID          string    `json:"id,omitempty"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	GeneratedAt time.Time `json:"date"`

	Trips           []Trip                 `json:"trips"`
	RefSessions     []RefrigerationSession `json:"refSessions"`
	Transactions    []TankTransaction      `json:"transactions"`
	CargoOperations []CargoOperation       `json:"cargoOperations"`

	InitialMain decimal.Decimal `json:"initialMain"`
	InitialRef  decimal.Decimal `json:"initialRef"`

	MainIn  decimal.Decimal `json:"mainIn"`
	MainOut decimal.Decimal `json:"mainOut"`
	RefIn   decimal.Decimal `json:"refIn"`
	RefOut  decimal.Decimal `json:"refOut"`

	TripFact  decimal.Decimal `json:"tripFact"`
	TripKm    decimal.Decimal `json:"tripKm"`
	RefFact   decimal.Decimal `json:"refFact"`
	TotalFact decimal.Decimal `json:"totalFact"`

	MainCalc    decimal.Decimal `json:"mainCalc"`
	RefCalc     decimal.Decimal `json:"refCalc"`
	MainCurrent decimal.Decimal `json:"mainCurrent"`
	RefCurrent  decimal.Decimal `json:"refCurrent"`
	MainDiff    decimal.Decimal `json:"mainDiff"`
	RefDiff     decimal.Decimal `json:"refDiff"`
}

// TotalDiff is the combined discrepancy of both tanks.
func (r Report) TotalDiff() decimal.Decimal { return r.MainDiff.Add(r.RefDiff) }

func (r Report) MainVerdict() Verdict  { return VerdictOf(r.MainDiff) }
func (r Report) RefVerdict() Verdict   { return VerdictOf(r.RefDiff) }
func (r Report) TotalVerdict() Verdict { return VerdictOf(r.TotalDiff()) }

// ReportInput carries everything a report is built from. From and To are
// optional: when either is nil no report is built.
type ReportInput struct {
	From         *time.Time
	To           *time.Time
	MeasuredMain decimal.Decimal
	MeasuredRef  decimal.Decimal

	Initial      *InitialFuelState
	Trips        []Trip
	Sessions     []RefrigerationSession
	Transactions []TankTransaction
	Cargo        []CargoOperation

	GeneratedAt time.Time
}

// Aggregator builds period reports.
type Aggregator struct {
	Dates *DateParser
}

// NewAggregator returns an aggregator filtering with dates.
func NewAggregator(dates *DateParser) *Aggregator {
	if dates == nil {
		dates = DefaultDateParser()
	}
	return &Aggregator{Dates: dates}
}

// Build returns the report for in, or false when the period is incomplete.
func (a *Aggregator) Build(in ReportInput) (*Report, bool) {
	if in.From == nil || in.To == nil {
		return nil, false
	}
	period := Period{From: *in.From, To: *in.To}

	r := &Report{
		From:            in.From.In(a.Dates.Location).Format("2006-01-02"),
		To:              in.To.In(a.Dates.Location).Format("2006-01-02"),
		GeneratedAt:     in.GeneratedAt,
		Trips:           make([]Trip, 0),
		RefSessions:     make([]RefrigerationSession, 0),
		Transactions:    make([]TankTransaction, 0),
		CargoOperations: make([]CargoOperation, 0),
		MainCurrent:     in.MeasuredMain,
		RefCurrent:      in.MeasuredRef,
	}
	if in.Initial != nil {
		r.InitialMain = in.Initial.Main
		r.InitialRef = in.Initial.Ref
	}

	// 1. Filter
	for _, t := range in.Trips {
		if a.Dates.InPeriod(t.Date, period) {
			r.Trips = append(r.Trips, t)
		}
	}
	for _, s := range in.Sessions {
		if a.Dates.InPeriod(s.StartDate, period) {
			r.RefSessions = append(r.RefSessions, s)
		}
	}
	for _, tx := range in.Transactions {
		if a.Dates.InPeriod(tx.Date, period) {
			r.Transactions = append(r.Transactions, tx)
		}
	}
	for _, op := range in.Cargo {
		if a.Dates.InPeriod(op.Date, period) {
			r.CargoOperations = append(r.CargoOperations, op)
		}
	}

	// 2. Consumption facts
	for _, t := range r.Trips {
		r.TripFact = r.TripFact.Add(t.Consumed())
		r.TripKm = r.TripKm.Add(t.Distance)
	}
	for _, s := range r.RefSessions {
		r.RefFact = r.RefFact.Add(s.FuelConsumed)
	}
	r.TotalFact = r.TripFact.Add(r.RefFact)

	// 3. Transactions by tank and direction
	for _, tx := range r.Transactions {
		switch {
		case tx.TankType == TankMain && tx.Type == TxRefuel:
			r.MainIn = r.MainIn.Add(tx.Amount)
		case tx.TankType == TankMain:
			r.MainOut = r.MainOut.Add(tx.Amount)
		case tx.TankType == TankRef && tx.Type == TxRefuel:
			r.RefIn = r.RefIn.Add(tx.Amount)
		case tx.TankType == TankRef:
			r.RefOut = r.RefOut.Add(tx.Amount)
		}
	}

	// 4. Calculated levels from the handover baseline
	r.MainCalc = r.InitialMain.Add(r.MainIn).Sub(r.MainOut).Sub(r.TripFact)
	r.RefCalc = r.InitialRef.Add(r.RefIn).Sub(r.RefOut).Sub(r.RefFact)

	// 5. Discrepancies
	r.MainDiff = r.MainCurrent.Sub(r.MainCalc)
	r.RefDiff = r.RefCurrent.Sub(r.RefCalc)

	return r, true
}
