package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultSessionTTL = 30 * time.Minute
	DefaultSweepEvery = time.Minute
)

// Registry is the thread-safe session store with idle eviction. Evicted
// and deleted sessions are closed, so their timers and fetches cannot
// leak past their lifetime.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	sweep    time.Duration
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	log      *slog.Logger
}

func NewRegistry(ttl, sweep time.Duration, log *slog.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if sweep <= 0 {
		sweep = DefaultSweepEvery
	}
	return &Registry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		sweep:    sweep,
		log:      log,
	}
}

func (r *Registry) Put(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
}

// Get returns the session and refreshes its idle clock.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	s.Touch()
	return s, true
}

// Delete removes and closes a session.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	s.Close()
	return true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Cleanup closes and removes sessions idle past the TTL. It returns how
// many were evicted.
func (r *Registry) Cleanup() int {
	now := time.Now()
	var expired []*Session
	r.mu.Lock()
	for id, s := range r.sessions {
		if now.Sub(s.LastAccess()) > r.ttl {
			delete(r.sessions, id)
			expired = append(expired, s)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Close()
		r.log.Info("evicted idle session",
			"session_id", s.ID, "doc_id", s.DocID, "age", now.Sub(s.CreatedAt()).Round(time.Second))
	}
	return len(expired)
}

// Start launches the background sweep. Stop or ctx cancellation ends it.
func (r *Registry) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.sweep)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Cleanup()
			}
		}
	}()
}

// Stop halts the sweep goroutine.
func (r *Registry) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

// Close stops the sweep and closes every session.
func (r *Registry) Close() {
	r.Stop()
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		sessions = append(sessions, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
