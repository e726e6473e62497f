package ratelimit

import (
	"sync"
	"time"
)

// DefaultFrameInterval matches a 60Hz refresh budget.
const DefaultFrameInterval = time.Second / 60

// FrameCoalescer collapses a stream of updates to at most one execution per
// frame interval, always running the most recently queued one. Used for
// hover highlighting so pointer movement never outpaces the renderer.
type FrameCoalescer struct {
	mu       sync.Mutex
	interval time.Duration
	pending  func()
	timer    *time.Timer
	stopped  bool
}

func NewFrameCoalescer(interval time.Duration) *FrameCoalescer {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &FrameCoalescer{interval: interval}
}

// Queue schedules fn for the next frame, replacing any update already
// queued for it.
func (f *FrameCoalescer) Queue(fn func()) {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return
	}
	f.pending = fn
	if f.timer == nil {
		f.timer = time.AfterFunc(f.interval, f.fire)
	}
	f.mu.Unlock()
}

// Stop drops the queued update and rejects further ones.
func (f *FrameCoalescer) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.pending = nil
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.mu.Unlock()
}

func (f *FrameCoalescer) fire() {
	f.mu.Lock()
	fn := f.pending
	f.pending = nil
	f.timer = nil
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}
