package logbook

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/fleetfuel/logbook/fuel"
)

// =============================================================================
// PERIOD REPORTS
// =============================================================================

// ReportRequest asks for a reconciliation over [From, To] against measured
// tank readings. A nil bound means no report is built.
type ReportRequest struct {
	From         *time.Time
	To           *time.Time
	MeasuredMain decimal.Decimal
	MeasuredRef  decimal.Decimal
}

// BuildReport reads every log and builds the report for req. It returns
// nil, nil when the period is incomplete. Nothing is persisted.
func (b *Logbook) BuildReport(ctx context.Context, req ReportRequest) (*fuel.Report, error) {
	if req.From == nil || req.To == nil {
		return nil, nil
	}

	b.lock()
	defer b.unlock()

	in := fuel.ReportInput{
		From:         req.From,
		To:           req.To,
		MeasuredMain: req.MeasuredMain,
		MeasuredRef:  req.MeasuredRef,
		GeneratedAt:  b.now(),
	}

	var err error
	if in.Initial, err = b.baseline(ctx); err != nil {
		return nil, err
	}
	if in.Trips, err = readLog[fuel.Trip](ctx, b, KeyTrips); err != nil {
		return nil, err
	}
	if in.Sessions, err = readLog[fuel.RefrigerationSession](ctx, b, KeySessions); err != nil {
		return nil, err
	}
	if in.Transactions, err = readLog[fuel.TankTransaction](ctx, b, KeyTransactions); err != nil {
		return nil, err
	}
	cargo, err := b.cargo(ctx)
	if err != nil {
		return nil, err
	}
	in.Cargo = cargo.Operations

	report, ok := b.aggregator.Build(in)
	if !ok {
		return nil, nil
	}

	b.log.WithFields(logrus.Fields{
		"from":      report.From,
		"to":        report.To,
		"main_diff": report.MainDiff.String(),
		"ref_diff":  report.RefDiff.String(),
	}).Debug("report built")
	return report, nil
}

// SaveReport prepends r to the saved report log. r is stored verbatim and
// never recomputed; an ID is assigned when missing.
func (b *Logbook) SaveReport(ctx context.Context, r fuel.Report) (*fuel.Report, error) {
	if r.ID == "" {
		r.ID = b.newID()
	}
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = b.now()
	}

	b.lock()
	defer b.unlock()

	reports, err := b.reports(ctx)
	if err != nil {
		return nil, err
	}
	if err := b.write(ctx, KeyReports, prepend(reports, r), Change{Key: KeyReports, Op: OpCreate, ID: r.ID}); err != nil {
		return nil, err
	}

	b.log.WithFields(logrus.Fields{"report_id": r.ID, "from": r.From, "to": r.To}).Info("report saved")
	return &r, nil
}

// Reports returns the saved reports, newest first.
func (b *Logbook) Reports(ctx context.Context) ([]fuel.Report, error) {
	b.lock()
	defer b.unlock()
	return b.reports(ctx)
}

// reports reads the saved report log. Reports saved without an ID get one,
// and the log is written back so the ID is stable.
func (b *Logbook) reports(ctx context.Context) ([]fuel.Report, error) {
	reports, err := readLog[fuel.Report](ctx, b, KeyReports)
	if err != nil {
		return nil, err
	}
	assigned := 0
	for i := range reports {
		if reports[i].ID == "" {
			reports[i].ID = b.newID()
			assigned++
		}
	}
	if assigned > 0 {
		if err := b.write(ctx, KeyReports, reports, Change{Key: KeyReports, Op: OpUpdate}); err != nil {
			return nil, err
		}
		b.log.WithField("count", assigned).Info("assigned ids to saved reports")
	}
	return reports, nil
}

// Report returns the saved report with id.
func (b *Logbook) Report(ctx context.Context, id string) (*fuel.Report, error) {
	reports, err := b.Reports(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOf(reports, func(r fuel.Report) bool { return r.ID == id })
	if idx < 0 {
		return nil, &fuel.NotFoundError{Kind: "report", ID: id}
	}
	return &reports[idx], nil
}

// DeleteReport removes the saved report with id.
func (b *Logbook) DeleteReport(ctx context.Context, id string) error {
	b.lock()
	defer b.unlock()

	reports, err := b.reports(ctx)
	if err != nil {
		return err
	}
	idx := indexOf(reports, func(r fuel.Report) bool { return r.ID == id })
	if idx < 0 {
		return &fuel.NotFoundError{Kind: "report", ID: id}
	}
	reports = append(reports[:idx], reports[idx+1:]...)

	if err := b.write(ctx, KeyReports, reports, Change{Key: KeyReports, Op: OpDelete, ID: id}); err != nil {
		return err
	}
	b.log.WithField("report_id", id).Info("report deleted")
	return nil
}
