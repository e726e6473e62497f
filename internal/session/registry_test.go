package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/structlay/internal/cache"
)

func registrySession(t *testing.T) *Session {
	t.Helper()
	c := cache.New(cache.Config{}, discardLogger())
	s, err := New("doc-1", testConfig(), Deps{
		Cache:   c,
		Fetcher: &sessionFetcher{},
		Chunks:  &sessionChunks{},
		Log:     discardLogger(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func TestRegistry_PutGetDelete(t *testing.T) {
	r := NewRegistry(time.Minute, time.Minute, discardLogger())
	defer r.Close()

	s := registrySession(t)
	r.Put(s)

	got, ok := r.Get(s.ID)
	if !ok || got.ID != s.ID {
		t.Fatalf("expected session back, got %v ok=%t", got, ok)
	}
	if _, ok := r.Get("missing"); ok {
		t.Fatal("expected miss for unknown id")
	}

	if !r.Delete(s.ID) {
		t.Fatal("expected delete to succeed")
	}
	if r.Delete(s.ID) {
		t.Fatal("expected second delete to miss")
	}
	// Deleted sessions are closed.
	if _, err := s.Mount(context.Background(), 1, 612, 792, "/view"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestRegistry_CleanupEvictsIdle(t *testing.T) {
	r := NewRegistry(30*time.Millisecond, time.Minute, discardLogger())
	defer r.Close()

	idle := registrySession(t)
	busy := registrySession(t)
	r.Put(idle)
	r.Put(busy)

	// Wait past the TTL, keeping one session warm.
	time.Sleep(50 * time.Millisecond)
	busy.Touch()

	if evicted := r.Cleanup(); evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
	if _, ok := r.Get(idle.ID); ok {
		t.Fatal("expected idle session evicted")
	}
	if _, ok := r.Get(busy.ID); !ok {
		t.Fatal("expected warm session kept")
	}
}

func TestRegistry_GetRefreshesIdleClock(t *testing.T) {
	r := NewRegistry(40*time.Millisecond, time.Minute, discardLogger())
	defer r.Close()

	s := registrySession(t)
	r.Put(s)

	for i := 0; i < 3; i++ {
		time.Sleep(20 * time.Millisecond)
		if _, ok := r.Get(s.ID); !ok {
			t.Fatal("expected session to survive while accessed")
		}
	}
	if evicted := r.Cleanup(); evicted != 0 {
		t.Fatalf("expected no evictions, got %d", evicted)
	}
}

func TestRegistry_BackgroundSweep(t *testing.T) {
	r := NewRegistry(10*time.Millisecond, 10*time.Millisecond, discardLogger())
	s := registrySession(t)
	r.Put(s)

	r.Start(context.Background())
	defer r.Stop()

	deadline := time.Now().Add(time.Second)
	for r.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if r.Len() != 0 {
		t.Fatal("expected background sweep to evict the idle session")
	}
}

func TestRegistry_CloseClosesAll(t *testing.T) {
	r := NewRegistry(time.Minute, time.Minute, discardLogger())
	a := registrySession(t)
	b := registrySession(t)
	r.Put(a)
	r.Put(b)

	r.Close()

	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}
	for _, s := range []*Session{a, b} {
		if _, err := s.Mount(context.Background(), 1, 612, 792, "/view"); !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	}
}

func TestNewSessionID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := newSessionID()
		if len(id) != 26 {
			t.Fatalf("expected 26 characters, got %d in %q", len(id), id)
		}
		for _, c := range id {
			if !strings.ContainsRune(crockford, c) {
				t.Fatalf("unexpected character %q in %q", c, id)
			}
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
