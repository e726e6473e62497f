package ratelimit

import (
	"testing"
	"time"
)

func TestIdleDeferrer_RunsWhenIdle(t *testing.T) {
	rec := &recorder{}
	id := NewIdleDeferrer(40*time.Millisecond, time.Second)

	id.Defer(func() { rec.hit(1) })
	time.Sleep(120 * time.Millisecond)

	if count, _ := rec.snapshot(); count != 1 {
		t.Errorf("expected deferred work to run once idle, got %d", count)
	}
}

func TestIdleDeferrer_PostponedWhileBusy(t *testing.T) {
	rec := &recorder{}
	id := NewIdleDeferrer(60*time.Millisecond, time.Second)

	id.Defer(func() { rec.hit(1) })
	for i := 0; i < 6; i++ {
		time.Sleep(20 * time.Millisecond)
		id.MarkBusy()
	}

	// Still busy: the 60ms idle window never opened.
	if count, _ := rec.snapshot(); count != 0 {
		t.Fatalf("expected work to stay deferred while busy, got %d", count)
	}

	time.Sleep(150 * time.Millisecond)
	if count, _ := rec.snapshot(); count != 1 {
		t.Errorf("expected work to run after activity stopped, got %d", count)
	}
}

func TestIdleDeferrer_MaxDelayForcesRun(t *testing.T) {
	rec := &recorder{}
	id := NewIdleDeferrer(50*time.Millisecond, 120*time.Millisecond)

	id.Defer(func() { rec.hit(1) })
	// Stay busy well past maxDelay; the work must run anyway.
	for i := 0; i < 12; i++ {
		time.Sleep(20 * time.Millisecond)
		id.MarkBusy()
	}

	if count, _ := rec.snapshot(); count != 1 {
		t.Errorf("expected maxDelay to force deferred work, got %d", count)
	}
}

func TestIdleDeferrer_LastDeferWins(t *testing.T) {
	rec := &recorder{}
	id := NewIdleDeferrer(30*time.Millisecond, time.Second)

	id.Defer(func() { rec.hit(1) })
	id.Defer(func() { rec.hit(2) })
	time.Sleep(100 * time.Millisecond)

	if count, last := rec.snapshot(); count != 1 || last != 2 {
		t.Errorf("expected only the latest deferred work to run, got count=%d last=%d", count, last)
	}
}

func TestIdleDeferrer_Cancel(t *testing.T) {
	rec := &recorder{}
	id := NewIdleDeferrer(30*time.Millisecond, time.Second)

	id.Defer(func() { rec.hit(1) })
	id.Cancel()
	time.Sleep(100 * time.Millisecond)

	if count, _ := rec.snapshot(); count != 0 {
		t.Errorf("expected cancelled work never to run, got %d", count)
	}
}

func TestIdleDeferrer_Flush(t *testing.T) {
	rec := &recorder{}
	id := NewIdleDeferrer(time.Hour, time.Hour)

	id.Defer(func() { rec.hit(3) })
	id.Flush()

	if count, last := rec.snapshot(); count != 1 || last != 3 {
		t.Errorf("expected flush to run deferred work, got count=%d last=%d", count, last)
	}
}
