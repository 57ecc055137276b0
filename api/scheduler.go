/*
scheduler.go - Background tank reconciliation

PURPOSE:
  Keeps the stored tank status correct when logs are written by another
  process sharing the store (redis driver), and rebuilds it periodically as
  a safety net.

DESIGN:
  - Subscribes to the logbook; an external change to a log that feeds the
    tanks triggers a Recompute
  - A ticker recomputes every CheckInterval; zero disables the ticker
  - The store echoes this process's own writes back as external changes;
    the extra Recompute they cause yields the same status

USAGE:
  scheduler := NewReconcileScheduler(book, log, time.Hour)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - logbook/logbook.go: Follow, the source of external changes
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fleetfuel/logbook/logbook"
)

// ReconcileScheduler recomputes the tanks on external changes and on a timer.
type ReconcileScheduler struct {
	Book          *logbook.Logbook
	Log           logrus.FieldLogger
	CheckInterval time.Duration

	runs        chan struct{}
	stop        chan struct{}
	unsubscribe func()
	wg          sync.WaitGroup
	mu          sync.Mutex
	started     bool
}

// NewReconcileScheduler creates a scheduler over book.
func NewReconcileScheduler(book *logbook.Logbook, log logrus.FieldLogger, interval time.Duration) *ReconcileScheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ReconcileScheduler{
		Book:          book,
		Log:           log.WithField("component", "scheduler"),
		CheckInterval: interval,
	}
}

// Start begins listening and ticking.
func (rs *ReconcileScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.started {
		return
	}
	rs.started = true
	rs.runs = make(chan struct{}, 1)
	rs.stop = make(chan struct{})
	rs.unsubscribe = rs.Book.Subscribe(rs.onChange)

	rs.wg.Add(1)
	go rs.run()

	rs.Log.WithField("interval", rs.CheckInterval.String()).Info("scheduler started")
}

// Stop stops the scheduler and waits for a running recompute.
func (rs *ReconcileScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.started {
		return
	}
	rs.started = false
	rs.unsubscribe()
	close(rs.stop)
	rs.wg.Wait()
	rs.Log.Info("scheduler stopped")
}

func (rs *ReconcileScheduler) onChange(c logbook.Change) {
	if c.Op != logbook.OpExternal || !logbook.ContributesToTanks(c.Key) {
		return
	}
	// Coalesce bursts into one pending run.
	select {
	case rs.runs <- struct{}{}:
	default:
	}
}

func (rs *ReconcileScheduler) run() {
	defer rs.wg.Done()

	var tick <-chan time.Time
	if rs.CheckInterval > 0 {
		ticker := time.NewTicker(rs.CheckInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-rs.runs:
			rs.recompute("external change")
		case <-tick:
			rs.recompute("interval")
		case <-rs.stop:
			return
		}
	}
}

func (rs *ReconcileScheduler) recompute(reason string) {
	status, err := rs.Book.Recompute(context.Background())
	if err != nil {
		rs.Log.WithFields(logrus.Fields{"reason": reason, "error": err.Error()}).Error("recompute failed")
		return
	}
	rs.Log.WithFields(logrus.Fields{
		"reason": reason,
		"main":   status.Main.String(),
		"ref":    status.Ref.String(),
	}).Debug("tanks reconciled")
}
