package ratelimit

import "time"

const (
	DefaultIdleAfter    = 100 * time.Millisecond
	DefaultIdleMaxDelay = time.Second
)

// IdleDeferrer postpones non-urgent work, like statistics logging, until
// the session has been quiet for a spell. MarkBusy pushes the work further
// out; MaxDelay caps how long a never-idle session can starve it.
type IdleDeferrer struct {
	d *Debouncer
}

func NewIdleDeferrer(idleAfter, maxDelay time.Duration) *IdleDeferrer {
	if idleAfter <= 0 {
		idleAfter = DefaultIdleAfter
	}
	if maxDelay <= 0 {
		maxDelay = DefaultIdleMaxDelay
	}
	return &IdleDeferrer{
		d: NewDebouncer(idleAfter, DebounceOptions{Trailing: true, MaxWait: maxDelay}),
	}
}

// Defer schedules fn for the next idle moment, replacing any work already
// deferred.
func (i *IdleDeferrer) Defer(fn func()) {
	i.d.Call(fn)
}

// MarkBusy notes activity, postponing deferred work.
func (i *IdleDeferrer) MarkBusy() {
	i.d.Touch()
}

// Flush runs deferred work immediately.
func (i *IdleDeferrer) Flush() {
	i.d.Flush()
}

// Cancel drops deferred work.
func (i *IdleDeferrer) Cancel() {
	i.d.Cancel()
}
