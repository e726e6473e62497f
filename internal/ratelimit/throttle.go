package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ThrottleOptions controls which edge of the interval a throttled call runs
// on. With both flags false, Trailing is forced on so the last call always
// executes.
type ThrottleOptions struct {
	// Leading runs a call immediately when the interval has a free slot.
	Leading bool
	// Trailing runs the latest deferred call once the next slot opens.
	Trailing bool
}

// DefaultThrottleOptions runs on both edges, matching the usual
// hover-highlighting configuration.
func DefaultThrottleOptions() ThrottleOptions {
	return ThrottleOptions{Leading: true, Trailing: true}
}

// Throttler runs at most one call per interval. Calls that arrive while the
// interval is saturated replace each other; with Trailing set the latest one
// runs when the next slot opens. Safe for concurrent use.
type Throttler struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	interval time.Duration
	leading  bool
	trailing bool

	pending func()
	timer   *time.Timer
}

func NewThrottler(interval time.Duration, opts ThrottleOptions) *Throttler {
	if !opts.Leading && !opts.Trailing {
		opts.Trailing = true
	}
	if interval <= 0 {
		interval = time.Millisecond
	}
	return &Throttler{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
		leading:  opts.Leading,
		trailing: opts.Trailing,
	}
}

// Call runs fn now when a slot is free and Leading is set; otherwise fn
// becomes the pending trailing call.
func (t *Throttler) Call(fn func()) {
	var run func()

	t.mu.Lock()
	switch {
	case t.leading && t.timer == nil && t.limiter.Allow():
		run = fn
	case t.trailing:
		t.pending = fn
		if t.timer == nil {
			// Reserve the next slot; the reservation keeps the leading
			// edge honest about the budget the trailing call consumes.
			delay := t.limiter.Reserve().Delay()
			if !t.leading && delay == 0 {
				// Trailing-only: a fresh bucket would fire immediately,
				// but the call belongs on the far edge of the interval.
				delay = t.interval
			}
			t.timer = time.AfterFunc(delay, t.fire)
		}
	}
	t.mu.Unlock()

	if run != nil {
		run()
	}
}

// Cancel drops the pending trailing call.
func (t *Throttler) Cancel() {
	t.mu.Lock()
	t.pending = nil
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()
}

// Flush runs the pending trailing call now instead of waiting for the next
// slot.
func (t *Throttler) Flush() {
	t.mu.Lock()
	fn := t.pending
	t.pending = nil
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (t *Throttler) fire() {
	t.mu.Lock()
	fn := t.pending
	t.pending = nil
	t.timer = nil
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}
