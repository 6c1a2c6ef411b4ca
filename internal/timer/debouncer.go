// Package timer provides a cancelable settle timer.
package timer

import (
	"sync"
	"time"
)

// Debouncer runs a function once activity has been quiet for a fixed delay.
// Every Trigger restarts the countdown and supersedes the previous function;
// a superseded or cancelled function never runs.
type Debouncer struct {
	delay time.Duration

	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
}

// NewDebouncer creates a debouncer with the given delay.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Delay returns the configured settle delay.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Trigger starts the countdown for fn, or restarts it if one is pending.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.generation++
	gen := d.generation
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if gen != d.generation {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		fn()
	})
}

// Cancel drops the pending function, if any. It reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.generation++
	return true
}

// Pending reports whether a function is waiting to fire.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
