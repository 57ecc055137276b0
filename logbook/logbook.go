/*
Package logbook is the operator-facing service over the fuel core.

PURPOSE:
  Owns the persisted documents, validates every mutation, and keeps the
  derived tank status correct by replaying all logs after each write to a
  log that contributes to it.

WRITE PATH:
  1. Validate input (fuel.ValidationError on rejection, nothing written)
  2. Read the log, apply the change, write the whole log back
  3. If the log feeds the tanks (trips, sessions, transactions, baseline):
     Recompute -> fuel.RecomputeTanks -> write TankStatus wholesale
  4. Notify subscribers with the changed keys

READ PATH:
  A missing document is its zero value. A document that fails to decode is
  logged and treated as empty: a corrupt log never blocks the operator.

OBSERVERS:
  Subscribe registers a callback receiving a Change for every write. Follow
  forwards a store's change feed (writes by other processes) to the same
  subscribers. Subscribers should re-read state, not cache it.

CONCURRENCY:
  One logical operator. A mutex serialises calls so the HTTP server can
  share one Logbook; subscribers run after the mutex is released.

SEE ALSO:
  - keys.go: Document keys
  - fuel/reconcile.go: The replay itself
*/
package logbook

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fleetfuel/logbook/fuel"
)

// =============================================================================
// CHANGE NOTIFICATIONS
// =============================================================================

// Op names the kind of mutation behind a Change.
type Op string

const (
	OpCreate    Op = "create"
	OpUpdate    Op = "update"
	OpDelete    Op = "delete"
	OpReplace   Op = "replace"   // singleton written
	OpRemove    Op = "remove"    // singleton removed
	OpRecompute Op = "recompute" // derived tank status rebuilt
	OpExternal  Op = "external"  // written by another process
)

// Change describes one write to the store.
type Change struct {
	Key string `json:"key"`
	Op  Op     `json:"op"`
	ID  string `json:"id,omitempty"`
}

// =============================================================================
// LOGBOOK
// =============================================================================

// Options configures a Logbook. Zero values select defaults.
type Options struct {
	Rates      fuel.Rates
	Capacities fuel.Capacities
	Dates      *fuel.DateParser
	Logger     logrus.FieldLogger
	Now        func() time.Time
	NewID      func() string
}

// Logbook is the fuel bookkeeping service.
type Logbook struct {
	kv         fuel.KV
	calc       *fuel.Calculator
	aggregator *fuel.Aggregator
	dates      *fuel.DateParser
	capacities fuel.Capacities
	log        logrus.FieldLogger
	now        func() time.Time
	newID      func() string

	mu      sync.Mutex
	pending []Change

	subMu     sync.RWMutex
	subs      map[int]func(Change)
	nextSubID int
}

// New creates a logbook over kv.
func New(kv fuel.KV, opts Options) *Logbook {
	if opts.Rates.Base.IsZero() {
		opts.Rates = fuel.DefaultRates()
	}
	if opts.Capacities.Main.IsZero() && opts.Capacities.Ref.IsZero() {
		opts.Capacities = fuel.DefaultCapacities()
	}
	if opts.Dates == nil {
		opts.Dates = fuel.DefaultDateParser()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Logbook{
		kv:         kv,
		calc:       fuel.NewCalculator(opts.Rates),
		aggregator: fuel.NewAggregator(opts.Dates),
		dates:      opts.Dates,
		capacities: opts.Capacities,
		log:        opts.Logger.WithField("component", "logbook"),
		now:        opts.Now,
		newID:      opts.NewID,
		subs:       make(map[int]func(Change)),
	}
}

// Subscribe registers fn for every change. The returned func unsubscribes.
func (b *Logbook) Subscribe(fn func(Change)) func() {
	b.subMu.Lock()
	id := b.nextSubID
	b.nextSubID++
	b.subs[id] = fn
	b.subMu.Unlock()

	return func() {
		b.subMu.Lock()
		delete(b.subs, id)
		b.subMu.Unlock()
	}
}

// Follow forwards keys from a store change feed to subscribers as
// OpExternal changes until ctx is done.
func (b *Logbook) Follow(ctx context.Context, w fuel.Watcher) error {
	keys, err := w.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch store: %w", err)
	}
	go func() {
		for key := range keys {
			b.dispatch([]Change{{Key: key, Op: OpExternal}})
		}
	}()
	return nil
}

func (b *Logbook) lock() { b.mu.Lock() }

// unlock releases the mutex and then delivers the changes queued while it
// was held, so subscribers may call back into the logbook.
func (b *Logbook) unlock() {
	changes := b.pending
	b.pending = nil
	b.mu.Unlock()
	b.dispatch(changes)
}

func (b *Logbook) dispatch(changes []Change) {
	if len(changes) == 0 {
		return
	}
	b.subMu.RLock()
	subs := make([]func(Change), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.subMu.RUnlock()

	for _, c := range changes {
		for _, fn := range subs {
			fn(c)
		}
	}
}

// =============================================================================
// DOCUMENT I/O
// =============================================================================

// read decodes the document under key into dst. A missing or undecodable
// document leaves dst untouched and reports false; only store failures are
// errors.
func (b *Logbook) read(ctx context.Context, key string, dst any) (bool, error) {
	raw, found, err := b.kv.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !found || len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		b.log.WithFields(logrus.Fields{
			"key":   key,
			"error": err.Error(),
		}).Warn("malformed document treated as empty")
		return false, nil
	}
	return true, nil
}

// readLog decodes a log; absent or malformed logs are empty.
func readLog[T any](ctx context.Context, b *Logbook, key string) ([]T, error) {
	var items []T
	ok, err := b.read(ctx, key, &items)
	if err != nil {
		return nil, err
	}
	if !ok || items == nil {
		return []T{}, nil
	}
	return items, nil
}

func (b *Logbook) write(ctx context.Context, key string, v any, c Change) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := b.kv.Set(ctx, key, raw); err != nil {
		return err
	}
	b.pending = append(b.pending, c)
	b.log.WithFields(logrus.Fields{"key": key, "op": c.Op, "id": c.ID}).Debug("document written")
	return nil
}

func (b *Logbook) remove(ctx context.Context, key string, c Change) error {
	if err := b.kv.Remove(ctx, key); err != nil {
		return err
	}
	b.pending = append(b.pending, c)
	b.log.WithFields(logrus.Fields{"key": key, "op": c.Op}).Debug("document removed")
	return nil
}

// prepend returns a new slice with item first (logs are newest first).
func prepend[T any](items []T, item T) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, item)
	return append(out, items...)
}

func (b *Logbook) today() string { return b.now().In(b.dates.Location).Format("2006-01-02") }

func (b *Logbook) timestamp() string {
	return b.now().In(b.dates.Location).Format("2006-01-02T15:04:05")
}

// =============================================================================
// TANKS - Derived state, rebuilt wholesale
// =============================================================================

// Recompute replays every contributing log and overwrites the tank status.
func (b *Logbook) Recompute(ctx context.Context) (fuel.TankStatus, error) {
	b.lock()
	defer b.unlock()
	return b.recompute(ctx)
}

func (b *Logbook) recompute(ctx context.Context) (fuel.TankStatus, error) {
	initial, err := b.baseline(ctx)
	if err != nil {
		return fuel.TankStatus{}, err
	}
	txs, err := readLog[fuel.TankTransaction](ctx, b, KeyTransactions)
	if err != nil {
		return fuel.TankStatus{}, err
	}
	trips, err := readLog[fuel.Trip](ctx, b, KeyTrips)
	if err != nil {
		return fuel.TankStatus{}, err
	}
	sessions, err := readLog[fuel.RefrigerationSession](ctx, b, KeySessions)
	if err != nil {
		return fuel.TankStatus{}, err
	}

	status := fuel.RecomputeTanks(initial, txs, trips, sessions)
	if err := b.write(ctx, KeyTankStatus, status, Change{Key: KeyTankStatus, Op: OpRecompute}); err != nil {
		return fuel.TankStatus{}, err
	}

	b.log.WithFields(logrus.Fields{
		"main":         status.Main.String(),
		"ref":          status.Ref.String(),
		"trips":        len(trips),
		"sessions":     len(sessions),
		"transactions": len(txs),
	}).Debug("tanks recomputed")
	return status, nil
}

// TankStatus returns the stored tank status, rebuilding it when absent.
func (b *Logbook) TankStatus(ctx context.Context) (fuel.TankStatus, error) {
	b.lock()
	defer b.unlock()

	var status fuel.TankStatus
	ok, err := b.read(ctx, KeyTankStatus, &status)
	if err != nil {
		return fuel.TankStatus{}, err
	}
	if !ok {
		return b.recompute(ctx)
	}
	return status, nil
}

// Capacities returns the configured tank sizes.
func (b *Logbook) Capacities() fuel.Capacities { return b.capacities }

// Levels returns both tanks against their configured capacities.
func (b *Logbook) Levels(ctx context.Context) ([]fuel.TankLevel, error) {
	status, err := b.TankStatus(ctx)
	if err != nil {
		return nil, err
	}
	return status.Levels(b.capacities), nil
}

// Reset removes every document the logbook owns.
func (b *Logbook) Reset(ctx context.Context) error {
	b.lock()
	defer b.unlock()

	if r, ok := b.kv.(fuel.Resetter); ok {
		if err := r.Reset(ctx); err != nil {
			return fmt.Errorf("failed to reset store: %w", err)
		}
		for _, key := range AllKeys {
			b.pending = append(b.pending, Change{Key: key, Op: OpRemove})
		}
		b.log.Info("logbook reset")
		return nil
	}

	for _, key := range AllKeys {
		if err := b.remove(ctx, key, Change{Key: key, Op: OpRemove}); err != nil {
			return err
		}
	}
	b.log.Info("logbook reset")
	return nil
}
