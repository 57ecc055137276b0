/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON bodies accepted and returned by the HTTP API. Domain records
  (fuel.Trip, fuel.Report, ...) already carry stable camelCase JSON and are
  returned as-is; only requests and composite responses live here.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *Response: Composite response wrappers

VALIDATION:
  Shape checks (required fields, enums) are validator struct tags and run in
  decode(). Business rules (positive distance, unload limits, ...) stay in
  the logbook and surface as fuel.ValidationError.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/fleetfuel/logbook/fuel"
	"github.com/fleetfuel/logbook/logbook"
)

// =============================================================================
// REQUESTS
// =============================================================================

// BaselineRequest records the handover state.
type BaselineRequest struct {
	Date        string           `json:"date"`
	Main        decimal.Decimal  `json:"main"`
	Ref         decimal.Decimal  `json:"ref"`
	CargoWeight *decimal.Decimal `json:"cargoWeight"`
}

// TripRequest creates, updates or previews a trip.
type TripRequest struct {
	Distance    decimal.Decimal  `json:"distance"`
	Weight      decimal.Decimal  `json:"weight"`
	LoadType    string           `json:"loadType" validate:"required,oneof=empty loaded head"`
	Coefficient string           `json:"coefficient" validate:"omitempty,numeric"`
	ActualFuel  *decimal.Decimal `json:"actualFuel"`
	Date        string           `json:"date"`
}

func (r TripRequest) input() logbook.TripInput {
	return logbook.TripInput{
		Distance:    r.Distance,
		Weight:      r.Weight,
		LoadType:    fuel.LoadType(r.LoadType),
		Coefficient: r.Coefficient,
		ActualFuel:  r.ActualFuel,
		Date:        r.Date,
	}
}

// StartSessionRequest starts the refrigeration unit. Empty means now.
type StartSessionRequest struct {
	StartDate string `json:"startDate"`
}

// StopSessionRequest stops the running session. Duration (hours) is used
// only when the endpoints cannot be parsed.
type StopSessionRequest struct {
	EndDate  string           `json:"endDate"`
	Duration *decimal.Decimal `json:"duration"`
}

// SessionRequest adds a completed session.
type SessionRequest struct {
	StartDate string           `json:"startDate" validate:"required"`
	EndDate   string           `json:"endDate" validate:"required"`
	Duration  *decimal.Decimal `json:"duration"`
}

// UpdateSessionRequest edits a completed session; empty fields are kept.
type UpdateSessionRequest struct {
	StartDate string           `json:"startDate"`
	EndDate   string           `json:"endDate"`
	Duration  *decimal.Decimal `json:"duration"`
}

// TransactionRequest creates or updates a tank transaction.
type TransactionRequest struct {
	Type        string          `json:"type" validate:"required,oneof=refuel consumption"`
	Amount      decimal.Decimal `json:"amount"`
	TankType    string          `json:"tankType" validate:"required,oneof=main ref"`
	Date        string          `json:"date"`
	Description string          `json:"description" validate:"max=500"`
}

func (r TransactionRequest) input() logbook.TransactionInput {
	return logbook.TransactionInput{
		Type:        fuel.TxType(r.Type),
		Amount:      r.Amount,
		TankType:    fuel.TankType(r.TankType),
		Date:        r.Date,
		Description: r.Description,
	}
}

// CargoRequest loads or unloads cargo. On unload a missing weight unloads
// everything.
type CargoRequest struct {
	Date        string           `json:"date" validate:"required"`
	Weight      *decimal.Decimal `json:"weight"`
	Description string           `json:"description" validate:"max=500"`
}

func (r CargoRequest) input() logbook.CargoInput {
	return logbook.CargoInput{Date: r.Date, Weight: r.Weight, Description: r.Description}
}

// ReportRequest asks for a period report. Missing bounds build nothing.
type ReportRequest struct {
	From         string          `json:"from"`
	To           string          `json:"to"`
	MeasuredMain decimal.Decimal `json:"measuredMain"`
	MeasuredRef  decimal.Decimal `json:"measuredRef"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// TanksResponse is the tank status with its capacity view.
type TanksResponse struct {
	Status fuel.TankStatus  `json:"status"`
	Levels []fuel.TankLevel `json:"levels"`
}

// CargoResponse is the cargo ledger plus the load type a new trip should
// preselect.
type CargoResponse struct {
	fuel.CargoState
	DefaultLoadType fuel.LoadType `json:"defaultLoadType"`
}

// ReportResponse adds the verdicts to a report.
type ReportResponse struct {
	fuel.Report
	TotalDiff    decimal.Decimal `json:"totalDiff"`
	MainVerdict  fuel.Verdict    `json:"mainVerdict"`
	RefVerdict   fuel.Verdict    `json:"refVerdict"`
	TotalVerdict fuel.Verdict    `json:"totalVerdict"`
}

func toReportResponse(r fuel.Report) ReportResponse {
	return ReportResponse{
		Report:       r,
		TotalDiff:    r.TotalDiff(),
		MainVerdict:  r.MainVerdict(),
		RefVerdict:   r.RefVerdict(),
		TotalVerdict: r.TotalVerdict(),
	}
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects the scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}
