// Package debounce provides the two coalescing shapes the pipeline needs:
// a per-key action debounce (Watcher events) and a bulk batch debounce
// (content-change event batching). Grounded on the teacher's
// internal/sync.Buffer, whose FlushDebounced/debounceLoop/signalNew is a
// single-timer, reset-on-new-event loop — generalized here from
// "debounce a fixed PathChanges shape" to "debounce an arbitrary per-key
// action" and "debounce an arbitrary generic value type".
package debounce

import (
	"sync"
	"time"
)

// ActionDebouncer coalesces repeated calls to Debounce for the same key:
// the last call within the window wins, and any earlier pending action for
// that key is cancelled before it fires. Cancellation is silent — the
// cancelled action never runs and no error is reported.
type ActionDebouncer struct {
	mu     sync.Mutex
	window time.Duration
	timers map[string]*time.Timer
}

// NewActionDebouncer returns an ActionDebouncer that waits window after the
// last call for a key before firing its action.
func NewActionDebouncer(window time.Duration) *ActionDebouncer {
	return &ActionDebouncer{
		window: window,
		timers: make(map[string]*time.Timer),
	}
}

// Debounce schedules action to run after the debounce window, cancelling
// any action already pending for key.
func (d *ActionDebouncer) Debounce(key string, action func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.timers[key]; ok {
		existing.Stop()
	}

	d.timers[key] = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		delete(d.timers, key)
		d.mu.Unlock()

		action()
	})
}

// Cancel stops any action pending for key without running it.
func (d *ActionDebouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.timers[key]; ok {
		existing.Stop()
		delete(d.timers, key)
	}
}

// StopAll cancels every pending action. Used at shutdown.
func (d *ActionDebouncer) StopAll() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
}

// Pending returns the number of keys with an action currently in flight.
func (d *ActionDebouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.timers)
}
