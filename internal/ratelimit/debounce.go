// Package ratelimit bounds the frequency of event-driven work without
// dropping the final state: a burst of updates collapses to the latest one.
package ratelimit

import (
	"sync"
	"time"
)

// DebounceOptions controls when a debounced call runs relative to a burst.
// With both flags false, Trailing is forced on so the last call of a burst
// always executes.
type DebounceOptions struct {
	// Leading runs the first call of a burst immediately.
	Leading bool
	// Trailing runs the last call of a burst once the quiet period elapses.
	Trailing bool
	// MaxWait, when positive, forces the pending call to run once a burst
	// has been going on this long, even if it never quiets down.
	MaxWait time.Duration
}

// DefaultDebounceOptions is the trailing-only configuration.
func DefaultDebounceOptions() DebounceOptions {
	return DebounceOptions{Trailing: true}
}

// Debouncer delays a call until its burst has been quiet for the configured
// wait. Within a burst the last call wins; earlier calls are superseded, so
// the function eventually runs with the freshest arguments bound into it.
// Safe for concurrent use.
type Debouncer struct {
	mu       sync.Mutex
	wait     time.Duration
	maxWait  time.Duration
	leading  bool
	trailing bool

	timer    *time.Timer
	maxTimer *time.Timer
	pending  func()
	calls    uint64 // bumped per Call; validates the quiet timer
	burst    uint64 // bumped per settled burst; validates the maxWait timer
	active   bool
}

func NewDebouncer(wait time.Duration, opts DebounceOptions) *Debouncer {
	if !opts.Leading && !opts.Trailing {
		opts.Trailing = true
	}
	return &Debouncer{
		wait:     wait,
		maxWait:  opts.MaxWait,
		leading:  opts.Leading,
		trailing: opts.Trailing,
	}
}

// Call schedules fn. A fresh burst with Leading set runs fn immediately;
// otherwise fn becomes the pending trailing call, replacing any earlier one.
func (d *Debouncer) Call(fn func()) {
	var run func()

	d.mu.Lock()
	d.calls++
	seq := d.calls
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.wait, func() { d.quietFire(seq) })

	if !d.active {
		d.active = true
		if d.maxWait > 0 {
			burst := d.burst
			d.maxTimer = time.AfterFunc(d.maxWait, func() { d.maxFire(burst) })
		}
		if d.leading {
			run = fn
		} else {
			d.pending = fn
		}
	} else if d.trailing {
		d.pending = fn
	}
	d.mu.Unlock()

	if run != nil {
		run()
	}
}

// Touch postpones the quiet timer without replacing the pending call. A
// no-op outside a burst.
func (d *Debouncer) Touch() {
	d.mu.Lock()
	if d.active {
		d.calls++
		seq := d.calls
		if d.timer != nil {
			d.timer.Stop()
		}
		d.timer = time.AfterFunc(d.wait, func() { d.quietFire(seq) })
	}
	d.mu.Unlock()
}

// Flush runs the pending call now and settles the burst. A no-op when
// nothing is pending.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	fn := d.settleLocked()
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Cancel drops the pending call and settles the burst.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	d.pending = nil
	d.settleLocked()
	d.mu.Unlock()
}

// Pending reports whether a call is waiting to run.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

func (d *Debouncer) quietFire(seq uint64) {
	d.mu.Lock()
	if seq != d.calls || !d.active {
		// Superseded by a later call or already settled.
		d.mu.Unlock()
		return
	}
	fn := d.settleLocked()
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (d *Debouncer) maxFire(burst uint64) {
	d.mu.Lock()
	if burst != d.burst || !d.active {
		d.mu.Unlock()
		return
	}
	fn := d.settleLocked()
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// settleLocked ends the current burst and returns the pending call, if any.
func (d *Debouncer) settleLocked() func() {
	fn := d.pending
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.maxTimer != nil {
		d.maxTimer.Stop()
		d.maxTimer = nil
	}
	d.active = false
	d.burst++
	return fn
}
