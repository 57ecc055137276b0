package logbook

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/fleetfuel/logbook/fuel"
)

// =============================================================================
// REFRIGERATION SESSIONS
// =============================================================================
//
// A running session lives under KeyActiveSession and does not feed the
// tanks. Stopping it moves it, completed, to the head of the session log.
// Whenever both endpoints parse, the duration is derived from them; a
// manually entered duration only applies when they do not.

// SessionInput describes a completed session entered or edited by hand.
type SessionInput struct {
	Start string
	End   string
	Hours *decimal.Decimal
}

// SessionTotals summarises the session log.
type SessionTotals struct {
	Count       int             `json:"count"`
	Hours       decimal.Decimal `json:"hours"`
	Fuel        decimal.Decimal `json:"fuel"`
	LitersPerHr decimal.Decimal `json:"litersPerHour"`
}

func (b *Logbook) duration(start, end string, manual *decimal.Decimal) decimal.Decimal {
	st, okStart := b.dates.Parse(start)
	en, okEnd := b.dates.Parse(end)
	if okStart && okEnd {
		return fuel.SessionDuration(st, en)
	}
	if manual != nil && manual.IsPositive() {
		return *manual
	}
	return decimal.Zero
}

// ActiveSession returns the running session, or nil.
func (b *Logbook) ActiveSession(ctx context.Context) (*fuel.RefrigerationSession, error) {
	b.lock()
	defer b.unlock()
	return b.activeSession(ctx)
}

func (b *Logbook) activeSession(ctx context.Context) (*fuel.RefrigerationSession, error) {
	var s fuel.RefrigerationSession
	ok, err := b.read(ctx, KeyActiveSession, &s)
	if err != nil || !ok {
		return nil, err
	}
	return &s, nil
}

// StartSession opens a session at start. Only one may run at a time.
func (b *Logbook) StartSession(ctx context.Context, start string) (*fuel.RefrigerationSession, error) {
	if start == "" {
		start = b.timestamp()
	}

	b.lock()
	defer b.unlock()

	active, err := b.activeSession(ctx)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, fuel.ErrSessionAlreadyActive
	}

	s := fuel.RefrigerationSession{
		ID:        b.newID(),
		StartDate: start,
		Status:    fuel.SessionActive,
	}
	if err := b.write(ctx, KeyActiveSession, s, Change{Key: KeyActiveSession, Op: OpReplace, ID: s.ID}); err != nil {
		return nil, err
	}

	b.log.WithFields(logrus.Fields{"session_id": s.ID, "start": start}).Info("refrigeration started")
	return &s, nil
}

// StopSession closes the running session at end. manualHours is used only
// when start or end cannot be parsed.
func (b *Logbook) StopSession(ctx context.Context, end string, manualHours *decimal.Decimal) (*fuel.RefrigerationSession, error) {
	if end == "" {
		end = b.timestamp()
	}

	b.lock()
	defer b.unlock()

	active, err := b.activeSession(ctx)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, fuel.ErrNoActiveSession
	}

	s := *active
	s.EndDate = end
	s.Duration = b.duration(s.StartDate, end, manualHours)
	s.FuelConsumed = b.calc.RefrigerationFuel(s.Duration)
	s.Status = fuel.SessionCompleted

	sessions, err := readLog[fuel.RefrigerationSession](ctx, b, KeySessions)
	if err != nil {
		return nil, err
	}
	if err := b.write(ctx, KeySessions, prepend(sessions, s), Change{Key: KeySessions, Op: OpCreate, ID: s.ID}); err != nil {
		return nil, err
	}
	if err := b.remove(ctx, KeyActiveSession, Change{Key: KeyActiveSession, Op: OpRemove, ID: s.ID}); err != nil {
		return nil, err
	}
	if _, err := b.recompute(ctx); err != nil {
		return nil, err
	}

	b.log.WithFields(logrus.Fields{
		"session_id": s.ID,
		"hours":      s.Duration.StringFixed(2),
		"fuel":       s.FuelConsumed.StringFixed(2),
	}).Info("refrigeration stopped")
	return &s, nil
}

// Sessions returns the completed session log, newest first.
func (b *Logbook) Sessions(ctx context.Context) ([]fuel.RefrigerationSession, error) {
	b.lock()
	defer b.unlock()
	return readLog[fuel.RefrigerationSession](ctx, b, KeySessions)
}

// AddSession records a completed session entered after the fact.
func (b *Logbook) AddSession(ctx context.Context, in SessionInput) (*fuel.RefrigerationSession, error) {
	if in.Start == "" {
		return nil, &fuel.ValidationError{Field: "startDate", Err: fuel.ErrMissingDate}
	}
	if in.End == "" {
		return nil, &fuel.ValidationError{Field: "endDate", Err: fuel.ErrMissingDate}
	}

	b.lock()
	defer b.unlock()

	s := fuel.RefrigerationSession{
		ID:        b.newID(),
		StartDate: in.Start,
		EndDate:   in.End,
		Duration:  b.duration(in.Start, in.End, in.Hours),
		Status:    fuel.SessionCompleted,
	}
	s.FuelConsumed = b.calc.RefrigerationFuel(s.Duration)

	sessions, err := readLog[fuel.RefrigerationSession](ctx, b, KeySessions)
	if err != nil {
		return nil, err
	}
	if err := b.write(ctx, KeySessions, prepend(sessions, s), Change{Key: KeySessions, Op: OpCreate, ID: s.ID}); err != nil {
		return nil, err
	}
	if _, err := b.recompute(ctx); err != nil {
		return nil, err
	}

	b.log.WithField("session_id", s.ID).Info("refrigeration session added")
	return &s, nil
}

// UpdateSession edits a completed session. Fuel is always re-derived from
// the resulting duration. Empty dates keep the recorded ones; without
// parseable endpoints and without Hours the recorded duration is kept.
func (b *Logbook) UpdateSession(ctx context.Context, id string, in SessionInput) (*fuel.RefrigerationSession, error) {
	b.lock()
	defer b.unlock()

	sessions, err := readLog[fuel.RefrigerationSession](ctx, b, KeySessions)
	if err != nil {
		return nil, err
	}
	idx := indexOf(sessions, func(s fuel.RefrigerationSession) bool { return s.ID == id })
	if idx < 0 {
		return nil, &fuel.NotFoundError{Kind: "session", ID: id}
	}

	s := sessions[idx]
	if in.Start != "" {
		s.StartDate = in.Start
	}
	if in.End != "" {
		s.EndDate = in.End
	}
	manual := in.Hours
	if manual == nil {
		manual = &s.Duration
	}
	s.Duration = b.duration(s.StartDate, s.EndDate, manual)
	s.FuelConsumed = b.calc.RefrigerationFuel(s.Duration)
	sessions[idx] = s

	if err := b.write(ctx, KeySessions, sessions, Change{Key: KeySessions, Op: OpUpdate, ID: id}); err != nil {
		return nil, err
	}
	if _, err := b.recompute(ctx); err != nil {
		return nil, err
	}

	b.log.WithField("session_id", id).Info("refrigeration session updated")
	return &s, nil
}

// DeleteSession removes the completed session with id.
func (b *Logbook) DeleteSession(ctx context.Context, id string) error {
	b.lock()
	defer b.unlock()

	sessions, err := readLog[fuel.RefrigerationSession](ctx, b, KeySessions)
	if err != nil {
		return err
	}
	idx := indexOf(sessions, func(s fuel.RefrigerationSession) bool { return s.ID == id })
	if idx < 0 {
		return &fuel.NotFoundError{Kind: "session", ID: id}
	}
	sessions = append(sessions[:idx], sessions[idx+1:]...)

	if err := b.write(ctx, KeySessions, sessions, Change{Key: KeySessions, Op: OpDelete, ID: id}); err != nil {
		return err
	}
	if _, err := b.recompute(ctx); err != nil {
		return err
	}

	b.log.WithField("session_id", id).Info("refrigeration session deleted")
	return nil
}

// SessionTotals sums the session log.
func (b *Logbook) SessionTotals(ctx context.Context) (SessionTotals, error) {
	sessions, err := b.Sessions(ctx)
	if err != nil {
		return SessionTotals{}, err
	}
	var t SessionTotals
	t.Count = len(sessions)
	for _, s := range sessions {
		t.Hours = t.Hours.Add(s.Duration)
		t.Fuel = t.Fuel.Add(s.FuelConsumed)
	}
	if t.Hours.IsPositive() {
		t.LitersPerHr = fuel.Round2(t.Fuel.Div(t.Hours))
	}
	return t, nil
}
