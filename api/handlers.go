/*
handlers.go - HTTP API handlers for the fuel logbook

PURPOSE:
  Exposes the logbook over a loopback REST API. Handles HTTP request and
  response, JSON serialization, and delegates every rule to the logbook.

ENDPOINTS:
  Tanks:
    GET    /api/tanks                      Status and capacity levels
    POST   /api/tanks/recompute            Replay every log

  Baseline:
    GET    /api/baseline                   Handover state
    PUT    /api/baseline                   Record handover (resets cargo)
    DELETE /api/baseline                   Remove handover

  Trips:
    GET    /api/trips                      Trip log, newest first
    POST   /api/trips                      Log a trip
    POST   /api/trips/preview              Expected fuel without logging
    GET    /api/trips/totals               Sums over the log
    PUT    /api/trips/{id}                 Edit a trip
    DELETE /api/trips/{id}                 Delete a trip

  Refrigeration:
    GET    /api/sessions                   Completed sessions
    POST   /api/sessions                   Add a completed session
    GET    /api/sessions/totals            Hours, fuel, L/h
    GET    /api/sessions/active            Running session
    POST   /api/sessions/active            Start
    POST   /api/sessions/active/stop       Stop
    PUT    /api/sessions/{id}              Edit
    DELETE /api/sessions/{id}              Delete

  Transactions:
    GET    /api/transactions               Refuels and consumptions
    POST   /api/transactions               Record one
    PUT    /api/transactions/{id}          Edit
    DELETE /api/transactions/{id}          Delete

  Cargo:
    GET    /api/cargo                      Ledger and default load type
    POST   /api/cargo/load                 Load
    POST   /api/cargo/unload               Unload (all when no weight)
    DELETE /api/cargo/operations/{id}      Delete an operation

  Scenarios:
    GET    /api/scenarios                  Demo scenarios
    GET    /api/scenarios/current          Loaded scenario
    POST   /api/scenarios/load             Reset and load one

  Reports:
    GET    /api/reports                    Saved reports
    POST   /api/reports                    Build and save
    POST   /api/reports/preview            Build only
    GET    /api/reports/{id}               One saved report
    GET    /api/reports/{id}/xlsx          Excel export
    DELETE /api/reports/{id}               Delete

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Record not found
  - 500: Store failures

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/fleetfuel/logbook/export"
	"github.com/fleetfuel/logbook/fuel"
	"github.com/fleetfuel/logbook/logbook"
	"github.com/fleetfuel/logbook/logging"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Book  *logbook.Logbook
	Dates *fuel.DateParser
	Log   logrus.FieldLogger

	validate *validator.Validate

	scenarioMu      sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over book. Report bounds are parsed with dates.
func NewHandler(book *logbook.Logbook, dates *fuel.DateParser, log logrus.FieldLogger) *Handler {
	if dates == nil {
		dates = fuel.DefaultDateParser()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		Book:     book,
		Dates:    dates,
		Log:      log.WithField("component", "api"),
		validate: v,
	}
}

// =============================================================================
// TANK HANDLERS
// =============================================================================

// GetTanks returns the tank status and levels.
func (h *Handler) GetTanks(w http.ResponseWriter, r *http.Request) {
	status, err := h.Book.TankStatus(r.Context())
	if err != nil {
		h.fail(w, "getTanks", err)
		return
	}
	writeJSON(w, http.StatusOK, TanksResponse{
		Status: status,
		Levels: status.Levels(h.Book.Capacities()),
	})
}

// RecomputeTanks rebuilds the tank status from every log.
func (h *Handler) RecomputeTanks(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Book.Recompute(r.Context()); err != nil {
		h.fail(w, "recomputeTanks", err)
		return
	}
	h.GetTanks(w, r)
}

// =============================================================================
// BASELINE HANDLERS
// =============================================================================

// GetBaseline returns the handover state.
func (h *Handler) GetBaseline(w http.ResponseWriter, r *http.Request) {
	base, err := h.Book.Baseline(r.Context())
	if err != nil {
		h.fail(w, "getBaseline", err)
		return
	}
	if base == nil {
		writeError(w, http.StatusNotFound, "No baseline recorded", nil)
		return
	}
	writeJSON(w, http.StatusOK, base)
}

// PutBaseline records the handover state.
func (h *Handler) PutBaseline(w http.ResponseWriter, r *http.Request) {
	var req BaselineRequest
	if !h.decode(w, r, &req) {
		return
	}
	base, err := h.Book.SaveBaseline(r.Context(), fuel.InitialFuelState{
		Date:        req.Date,
		Main:        req.Main,
		Ref:         req.Ref,
		CargoWeight: req.CargoWeight,
	})
	if err != nil {
		h.fail(w, "putBaseline", err)
		return
	}
	writeJSON(w, http.StatusOK, base)
}

// DeleteBaseline removes the handover state.
func (h *Handler) DeleteBaseline(w http.ResponseWriter, r *http.Request) {
	if err := h.Book.RemoveBaseline(r.Context()); err != nil {
		h.fail(w, "deleteBaseline", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TRIP HANDLERS
// =============================================================================

// ListTrips returns the trip log.
func (h *Handler) ListTrips(w http.ResponseWriter, r *http.Request) {
	trips, err := h.Book.Trips(r.Context())
	if err != nil {
		h.fail(w, "listTrips", err)
		return
	}
	writeJSON(w, http.StatusOK, trips)
}

// CreateTrip logs a trip.
func (h *Handler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	var req TripRequest
	if !h.decode(w, r, &req) {
		return
	}
	trip, err := h.Book.AddTrip(r.Context(), req.input())
	if err != nil {
		h.fail(w, "createTrip", err)
		return
	}
	writeJSON(w, http.StatusCreated, trip)
}

// PreviewTrip returns the expected fuel for a trip without logging it. A
// loaded trip without a weight uses the cargo on board.
func (h *Handler) PreviewTrip(w http.ResponseWriter, r *http.Request) {
	var req TripRequest
	if !h.decode(w, r, &req) {
		return
	}
	preview, err := h.Book.PreviewTrip(r.Context(), req.input())
	if err != nil {
		h.fail(w, "previewTrip", err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// TripTotals returns sums over the trip log.
func (h *Handler) TripTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.Book.TripTotals(r.Context())
	if err != nil {
		h.fail(w, "tripTotals", err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// UpdateTrip edits a trip.
func (h *Handler) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	var req TripRequest
	if !h.decode(w, r, &req) {
		return
	}
	trip, err := h.Book.UpdateTrip(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		h.fail(w, "updateTrip", err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// DeleteTrip deletes a trip.
func (h *Handler) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	if err := h.Book.DeleteTrip(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "deleteTrip", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// REFRIGERATION HANDLERS
// =============================================================================

// ListSessions returns the completed sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Book.Sessions(r.Context())
	if err != nil {
		h.fail(w, "listSessions", err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// CreateSession adds a completed session.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	s, err := h.Book.AddSession(r.Context(), logbook.SessionInput{
		Start: req.StartDate,
		End:   req.EndDate,
		Hours: req.Duration,
	})
	if err != nil {
		h.fail(w, "createSession", err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// SessionTotals returns sums over the session log.
func (h *Handler) SessionTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.Book.SessionTotals(r.Context())
	if err != nil {
		h.fail(w, "sessionTotals", err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// GetActiveSession returns the running session.
func (h *Handler) GetActiveSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.Book.ActiveSession(r.Context())
	if err != nil {
		h.fail(w, "getActiveSession", err)
		return
	}
	if s == nil {
		writeError(w, http.StatusNotFound, "No active session", nil)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// StartSession starts the refrigeration unit.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	s, err := h.Book.StartSession(r.Context(), req.StartDate)
	if err != nil {
		h.fail(w, "startSession", err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// StopSession stops the running session.
func (h *Handler) StopSession(w http.ResponseWriter, r *http.Request) {
	var req StopSessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	s, err := h.Book.StopSession(r.Context(), req.EndDate, req.Duration)
	if err != nil {
		h.fail(w, "stopSession", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// UpdateSession edits a completed session.
func (h *Handler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	var req UpdateSessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	s, err := h.Book.UpdateSession(r.Context(), chi.URLParam(r, "id"), logbook.SessionInput{
		Start: req.StartDate,
		End:   req.EndDate,
		Hours: req.Duration,
	})
	if err != nil {
		h.fail(w, "updateSession", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// DeleteSession deletes a completed session.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Book.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "deleteSession", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// ListTransactions returns the tank transactions.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.Book.Transactions(r.Context())
	if err != nil {
		h.fail(w, "listTransactions", err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// CreateTransaction records a refuel or consumption.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if !h.decode(w, r, &req) {
		return
	}
	tx, err := h.Book.AddTransaction(r.Context(), req.input())
	if err != nil {
		h.fail(w, "createTransaction", err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// UpdateTransaction edits a transaction.
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if !h.decode(w, r, &req) {
		return
	}
	tx, err := h.Book.UpdateTransaction(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		h.fail(w, "updateTransaction", err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// DeleteTransaction deletes a transaction.
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.Book.DeleteTransaction(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "deleteTransaction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CARGO HANDLERS
// =============================================================================

// GetCargo returns the cargo ledger.
func (h *Handler) GetCargo(w http.ResponseWriter, r *http.Request) {
	state, err := h.Book.Cargo(r.Context())
	if err != nil {
		h.fail(w, "getCargo", err)
		return
	}
	writeJSON(w, http.StatusOK, cargoResponse(state))
}

// LoadCargo records a load.
func (h *Handler) LoadCargo(w http.ResponseWriter, r *http.Request) {
	var req CargoRequest
	if !h.decode(w, r, &req) {
		return
	}
	state, err := h.Book.LoadCargo(r.Context(), req.input())
	if err != nil {
		h.fail(w, "loadCargo", err)
		return
	}
	writeJSON(w, http.StatusCreated, cargoResponse(state))
}

// UnloadCargo records an unload.
func (h *Handler) UnloadCargo(w http.ResponseWriter, r *http.Request) {
	var req CargoRequest
	if !h.decode(w, r, &req) {
		return
	}
	state, err := h.Book.UnloadCargo(r.Context(), req.input())
	if err != nil {
		h.fail(w, "unloadCargo", err)
		return
	}
	writeJSON(w, http.StatusCreated, cargoResponse(state))
}

// DeleteCargoOperation deletes a cargo operation.
func (h *Handler) DeleteCargoOperation(w http.ResponseWriter, r *http.Request) {
	state, err := h.Book.DeleteCargoOperation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "deleteCargoOperation", err)
		return
	}
	writeJSON(w, http.StatusOK, cargoResponse(state))
}

func cargoResponse(s fuel.CargoState) CargoResponse {
	return CargoResponse{CargoState: s, DefaultLoadType: fuel.DefaultLoadType(s.CurrentWeight)}
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// ListReports returns the saved reports.
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.Book.Reports(r.Context())
	if err != nil {
		h.fail(w, "listReports", err)
		return
	}
	dtos := make([]ReportResponse, len(reports))
	for i, rep := range reports {
		dtos[i] = toReportResponse(rep)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PreviewReport builds a report without saving it.
func (h *Handler) PreviewReport(w http.ResponseWriter, r *http.Request) {
	report, ok := h.buildReport(w, r)
	if !ok {
		return
	}
	if report == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toReportResponse(*report))
}

// CreateReport builds a report and saves the snapshot.
func (h *Handler) CreateReport(w http.ResponseWriter, r *http.Request) {
	report, ok := h.buildReport(w, r)
	if !ok {
		return
	}
	if report == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	saved, err := h.Book.SaveReport(r.Context(), *report)
	if err != nil {
		h.fail(w, "createReport", err)
		return
	}
	writeJSON(w, http.StatusCreated, toReportResponse(*saved))
}

// GetReport returns one saved report.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.Book.Report(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "getReport", err)
		return
	}
	writeJSON(w, http.StatusOK, toReportResponse(*report))
}

// ExportReport streams a saved report as an Excel workbook.
func (h *Handler) ExportReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.Book.Report(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "exportReport", err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+export.FileName(*report))
	if err := export.WriteReportXLSX(w, *report); err != nil {
		logging.LogError(h.Log, "api", "exportReport", report.ID, err)
	}
}

// DeleteReport deletes a saved report.
func (h *Handler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	if err := h.Book.DeleteReport(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "deleteReport", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// buildReport decodes the request and builds the report. A nil report with
// ok means a bound was missing.
func (h *Handler) buildReport(w http.ResponseWriter, r *http.Request) (*fuel.Report, bool) {
	var req ReportRequest
	if !h.decode(w, r, &req) {
		return nil, false
	}
	from, err := h.parseBound("from", req.From)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Details: map[string]string{"from": err.Error()}})
		return nil, false
	}
	to, err := h.parseBound("to", req.To)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Details: map[string]string{"to": err.Error()}})
		return nil, false
	}

	report, err := h.Book.BuildReport(r.Context(), logbook.ReportRequest{
		From:         from,
		To:           to,
		MeasuredMain: req.MeasuredMain,
		MeasuredRef:  req.MeasuredRef,
	})
	if err != nil {
		h.fail(w, "buildReport", err)
		return nil, false
	}
	return report, true
}

var errUnparseableDate = errors.New("unrecognised date")

func (h *Handler) parseBound(field, s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, ok := h.Dates.Parse(s)
	if !ok {
		return nil, &fuel.ValidationError{Field: field, Err: errUnparseableDate}
	}
	return &t, nil
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset deletes every document.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.Book.Reset(r.Context()); err != nil {
		h.fail(w, "reset", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// decode reads a JSON body into dst and validates its tags. An empty body
// is an empty object. It writes the 400 reply itself and reports false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				details[fe.Field()] = fe.Tag()
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Details: details})
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return false
	}
	return true
}

// fail maps a logbook error to its HTTP reply.
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case fuel.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case fuel.IsClientError(err):
		var ve *fuel.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "Validation failed",
				Details: map[string]string{ve.Field: ve.Err.Error()},
			})
			return
		}
		writeError(w, http.StatusBadRequest, "Rejected", err)
	default:
		logging.LogError(h.Log, "api", op, nil, err)
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
