/*
Package export renders period reports for download.

WORKBOOK LAYOUT:
  Summary       - period, generation time, every figure with its verdict
  Trips         - one row per in-period trip
  Refrigeration - one row per in-period session
  Transactions  - one row per in-period tank transaction
  Cargo         - one row per in-period cargo operation

Quantities are written as numbers (float64) so spreadsheets can sum them;
the report itself keeps decimals.
*/
package export

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/fleetfuel/logbook/fuel"
)

// Sheet names.
const (
	SheetSummary       = "Summary"
	SheetTrips         = "Trips"
	SheetRefrigeration = "Refrigeration"
	SheetTransactions  = "Transactions"
	SheetCargo         = "Cargo"
)

// ContentType is the MIME type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// FileName returns the download name for r.
func FileName(r fuel.Report) string {
	return fmt.Sprintf("fuel-report_%s_%s.xlsx", r.From, r.To)
}

// WriteReportXLSX writes r as a workbook to w.
func WriteReportXLSX(w io.Writer, r fuel.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return err
	}
	if err := writeSummary(f, r); err != nil {
		return err
	}

	sheets := []struct {
		name   string
		header []any
		rows   [][]any
	}{
		{SheetTrips, []any{"Date", "Distance, km", "Load", "Weight, kg", "Coefficient", "Expected, L", "Actual, L"}, tripRows(r.Trips)},
		{SheetRefrigeration, []any{"Start", "End", "Hours", "Fuel, L"}, sessionRows(r.RefSessions)},
		{SheetTransactions, []any{"Date", "Tank", "Type", "Amount, L", "Description"}, transactionRows(r.Transactions)},
		{SheetCargo, []any{"Date", "Type", "Weight, kg", "Description"}, cargoRows(r.CargoOperations)},
	}
	for _, s := range sheets {
		if err := writeTable(f, s.name, s.header, s.rows); err != nil {
			return fmt.Errorf("failed to write sheet %s: %w", s.name, err)
		}
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeSummary(f *excelize.File, r fuel.Report) error {
	rows := [][]any{
		{"Period", r.From + " - " + r.To},
		{"Generated", r.GeneratedAt.Format("2006-01-02 15:04:05")},
		{"Note", "Reflects data as of generation time"},
		{},
		{"", "Main tank", "Refrigeration tank", "Total"},
		{"Initial", num(r.InitialMain), num(r.InitialRef)},
		{"Refuelled", num(r.MainIn), num(r.RefIn)},
		{"Drained", num(r.MainOut), num(r.RefOut)},
		{"Consumed", num(r.TripFact), num(r.RefFact), num(r.TotalFact)},
		{"Calculated", num(r.MainCalc), num(r.RefCalc)},
		{"Measured", num(r.MainCurrent), num(r.RefCurrent)},
		{"Difference", num(r.MainDiff), num(r.RefDiff), num(r.TotalDiff())},
		{"Verdict", string(r.MainVerdict()), string(r.RefVerdict()), string(r.TotalVerdict())},
		{},
		{"Trip distance, km", num(r.TripKm)},
	}
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetSummary, cell, &row); err != nil {
			return err
		}
	}
	return f.SetColWidth(SheetSummary, "A", "D", 20)
}

func writeTable(f *excelize.File, sheet string, header []any, rows [][]any) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	last, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", last, 16)
}

func tripRows(trips []fuel.Trip) [][]any {
	rows := make([][]any, 0, len(trips))
	for _, t := range trips {
		var actual any
		if t.ActualFuel != nil {
			actual = num(*t.ActualFuel)
		}
		rows = append(rows, []any{t.Date, num(t.Distance), string(t.LoadType), num(t.Weight), t.Coefficient, num(t.ExpectedFuel), actual})
	}
	return rows
}

func sessionRows(sessions []fuel.RefrigerationSession) [][]any {
	rows := make([][]any, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []any{s.StartDate, s.EndDate, num(s.Duration.Round(2)), num(s.FuelConsumed.Round(2))})
	}
	return rows
}

func transactionRows(txs []fuel.TankTransaction) [][]any {
	rows := make([][]any, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, []any{tx.Date, string(tx.TankType), string(tx.Type), num(tx.Amount), tx.Description})
	}
	return rows
}

func cargoRows(ops []fuel.CargoOperation) [][]any {
	rows := make([][]any, 0, len(ops))
	for _, op := range ops {
		rows = append(rows, []any{op.Date, string(op.Type), num(op.Weight), op.Description})
	}
	return rows
}

func num(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
