// Package autosave schedules whole-board writes after a quiet period.
package autosave

import (
	"sync"
	"time"
)

// Debouncer runs the most recently triggered function once no new trigger
// has arrived for the configured delay. Every Trigger restarts the wait.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	pending func()
	gen     uint64
}

// NewDebouncer creates a debouncer with the given quiet period
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger replaces any pending call with fn and restarts the timer
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending = fn
	d.timer = time.AfterFunc(d.delay, func() {
		d.fire(gen)
	})
}

// Cancel drops the pending call, reporting whether there was one
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.take() != nil
}

// Flush runs the pending call now on the caller's goroutine
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	fn := d.take()
	d.mu.Unlock()

	if fn == nil {
		return false
	}
	fn()
	return true
}

// Pending reports whether a call is waiting
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Delay returns the current quiet period
func (d *Debouncer) Delay() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.delay
}

// SetDelay changes the quiet period for subsequent triggers
func (d *Debouncer) SetDelay(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delay = delay
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		// superseded by a later trigger, cancel or flush
		d.mu.Unlock()
		return
	}
	fn := d.take()
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// take must be called with mu held
func (d *Debouncer) take() func() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	fn := d.pending
	d.pending = nil
	d.gen++
	return fn
}
