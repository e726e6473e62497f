package ratelimit

import (
	"testing"
	"time"
)

func TestThrottler_LeadingRunsImmediately(t *testing.T) {
	rec := &recorder{}
	th := NewThrottler(80*time.Millisecond, DefaultThrottleOptions())

	th.Call(func() { rec.hit(1) })

	if count, last := rec.snapshot(); count != 1 || last != 1 {
		t.Fatalf("expected immediate leading invocation, got count=%d last=%d", count, last)
	}
}

func TestThrottler_BurstCoalescesToEdges(t *testing.T) {
	rec := &recorder{}
	th := NewThrottler(80*time.Millisecond, DefaultThrottleOptions())

	for i := 0; i < 10; i++ {
		v := i
		th.Call(func() { rec.hit(v) })
	}

	// Leading edge only so far.
	if count, last := rec.snapshot(); count != 1 || last != 0 {
		t.Fatalf("expected only the leading call so far, got count=%d last=%d", count, last)
	}

	time.Sleep(200 * time.Millisecond)

	count, last := rec.snapshot()
	if count != 2 {
		t.Errorf("expected leading + trailing invocations, got %d", count)
	}
	if last != 9 {
		t.Errorf("expected trailing call to carry the last value 9, got %d", last)
	}
}

func TestThrottler_BoundsSustainedRate(t *testing.T) {
	rec := &recorder{}
	th := NewThrottler(50*time.Millisecond, DefaultThrottleOptions())

	for i := 0; i < 25; i++ {
		v := i
		th.Call(func() { rec.hit(v) })
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)

	count, last := rec.snapshot()
	if count < 2 {
		t.Errorf("expected periodic invocations, got %d", count)
	}
	if count >= 15 {
		t.Errorf("expected at most one invocation per interval, got %d for 25 calls", count)
	}
	if last != 24 {
		t.Errorf("expected final call's value 24, got %d", last)
	}
}

func TestThrottler_TrailingOnlyDelaysFirstCall(t *testing.T) {
	rec := &recorder{}
	th := NewThrottler(60*time.Millisecond, ThrottleOptions{Trailing: true})

	th.Call(func() { rec.hit(1) })
	if count, _ := rec.snapshot(); count != 0 {
		t.Fatalf("expected no immediate invocation without leading, got %d", count)
	}

	time.Sleep(150 * time.Millisecond)
	if count, _ := rec.snapshot(); count != 1 {
		t.Errorf("expected trailing invocation, got %d", count)
	}
}

func TestThrottler_Cancel(t *testing.T) {
	rec := &recorder{}
	th := NewThrottler(60*time.Millisecond, ThrottleOptions{Trailing: true})

	th.Call(func() { rec.hit(1) })
	th.Cancel()
	time.Sleep(150 * time.Millisecond)

	if count, _ := rec.snapshot(); count != 0 {
		t.Errorf("expected cancelled trailing call never to run, got %d", count)
	}
}

func TestThrottler_Flush(t *testing.T) {
	rec := &recorder{}
	th := NewThrottler(time.Hour, ThrottleOptions{Trailing: true})

	th.Call(func() { rec.hit(5) })
	th.Flush()

	if count, last := rec.snapshot(); count != 1 || last != 5 {
		t.Errorf("expected flush to run pending call, got count=%d last=%d", count, last)
	}
}

func TestThrottler_ZeroOptionsStillFires(t *testing.T) {
	rec := &recorder{}
	th := NewThrottler(30*time.Millisecond, ThrottleOptions{})

	th.Call(func() { rec.hit(1) })
	time.Sleep(100 * time.Millisecond)

	if count, _ := rec.snapshot(); count != 1 {
		t.Errorf("expected trailing to be forced on, got %d invocations", count)
	}
}
