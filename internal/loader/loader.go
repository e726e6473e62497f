package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dgallion1/structlay/internal/cache"
	"github.com/dgallion1/structlay/internal/structure"
)

var (
	// ErrTimeout reports a fetch that exceeded FetchTimeout. Recoverable:
	// the host retries by requesting the page again.
	ErrTimeout = errors.New("structure fetch timed out")

	// ErrStale reports a load that completed for a page the view has since
	// left. The result is cached but must not be applied to the view.
	ErrStale = errors.New("stale load discarded")
)

// Fetcher retrieves page structure from the extraction service. A (nil, nil)
// return means the page has no extractable structure.
type Fetcher interface {
	PageStructure(ctx context.Context, docID string, page int) (*structure.PageStructure, error)
}

const (
	DefaultFetchTimeout  = 10 * time.Second
	DefaultPrefetchRange = 1
)

// Config bounds the loader. Zero values fall back to the defaults above.
type Config struct {
	FetchTimeout  time.Duration
	PrefetchRange int
}

type pageKey struct {
	doc  string
	page int
}

// Loader fetches page structures on demand, fronted by the cache.
// Concurrent loads for the same (document, page) key join a single
// underlying request. Fetches run against the loader's own lifetime, so a
// caller giving up does not cancel the request for the other joiners;
// navigation does, via SetCurrent.
type Loader struct {
	cache   *cache.Cache
	fetcher Fetcher
	cfg     Config
	log     *slog.Logger
	group   singleflight.Group
	stats   *FetchStats

	mu      sync.Mutex
	current pageKey
	pending map[pageKey]context.CancelFunc

	baseCtx    context.Context
	baseCancel context.CancelFunc
}

func New(c *cache.Cache, fetcher Fetcher, cfg Config, log *slog.Logger) *Loader {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.PrefetchRange < 0 {
		cfg.PrefetchRange = DefaultPrefetchRange
	}
	baseCtx, baseCancel := context.WithCancel(context.Background())
	return &Loader{
		cache:      c,
		fetcher:    fetcher,
		cfg:        cfg,
		log:        log,
		stats:      NewFetchStats(time.Hour),
		pending:    make(map[pageKey]context.CancelFunc),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
	}
}

// Load returns the structure for a page, from cache when fresh, otherwise
// via a deduplicated fetch. Successful fetches are cached; failures are not.
// When the view has navigated elsewhere by the time the result is ready,
// Load returns ErrStale and the result stays cache-only.
func (l *Loader) Load(ctx context.Context, docID string, page int) (*structure.PageStructure, error) {
	if ps, ok := l.cache.Get(docID, page); ok {
		if !l.isCurrent(docID, page) {
			return nil, fmt.Errorf("load %s page %d: %w", docID, page, ErrStale)
		}
		return ps, nil
	}

	ch := l.group.DoChan(flightKey(docID, page), func() (any, error) {
		return l.fetch(docID, page)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if !l.isCurrent(docID, page) {
			return nil, fmt.Errorf("load %s page %d: %w", docID, page, ErrStale)
		}
		return res.Val.(*structure.PageStructure), nil
	}
}

// PreloadAdjacent warms the cache for the pages around currentPage, skipping
// pages already cached. Prefetch failures are logged, never surfaced. The
// call blocks until all prefetches settle; run it in a goroutine when the
// caller should not wait.
func (l *Loader) PreloadAdjacent(ctx context.Context, docID string, currentPage int) {
	g, ctx := errgroup.WithContext(ctx)
	for offset := -l.cfg.PrefetchRange; offset <= l.cfg.PrefetchRange; offset++ {
		page := currentPage + offset
		if offset == 0 || page < 1 {
			continue
		}
		if l.cache.Has(docID, page) {
			continue
		}
		g.Go(func() error {
			ch := l.group.DoChan(flightKey(docID, page), func() (any, error) {
				return l.fetch(docID, page)
			})
			select {
			case <-ctx.Done():
			case res := <-ch:
				if res.Err != nil && !errors.Is(res.Err, context.Canceled) {
					l.log.Debug("prefetch failed", "doc_id", docID, "page", page, "error", res.Err)
				}
			}
			return nil
		})
	}
	g.Wait()
}

// SetCurrent records the page the view is on and cancels pending fetches
// that are no longer within prefetch range of it.
func (l *Loader) SetCurrent(docID string, page int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = pageKey{doc: docID, page: page}
	for k, cancel := range l.pending {
		if k.doc != docID || abs(k.page-page) > l.cfg.PrefetchRange {
			cancel()
		}
	}
}

// Stats returns fetch counters and latency aggregates.
func (l *Loader) Stats() StatsSnapshot {
	return l.stats.Snapshot()
}

// Close cancels all in-flight fetches. The loader must not be used after
// Close.
func (l *Loader) Close() {
	l.baseCancel()
}

// fetch performs the underlying request. It runs inside a singleflight
// group, so its context derives from the loader lifetime rather than from
// any single caller.
func (l *Loader) fetch(docID string, page int) (*structure.PageStructure, error) {
	ctx, cancel := context.WithTimeout(l.baseCtx, l.cfg.FetchTimeout)
	k := pageKey{doc: docID, page: page}
	l.mu.Lock()
	l.pending[k] = cancel
	l.mu.Unlock()
	defer func() {
		cancel()
		l.mu.Lock()
		delete(l.pending, k)
		l.mu.Unlock()
	}()

	start := time.Now()
	ps, err := l.fetcher.PageStructure(ctx, docID, page)
	if err != nil {
		timeout := errors.Is(err, context.DeadlineExceeded)
		l.stats.RecordFailure(timeout)
		if timeout {
			return nil, fmt.Errorf("load %s page %d: %w", docID, page, ErrTimeout)
		}
		return nil, fmt.Errorf("load %s page %d: %w", docID, page, err)
	}
	if ps == nil {
		// No extractable structure. Cached so the page is not refetched on
		// every visit.
		ps = &structure.PageStructure{DocID: docID, Page: page, HasStructure: false}
	}
	l.stats.RecordSuccess(time.Since(start), ps.HasStructure)
	l.cache.Set(docID, page, ps)
	return ps, nil
}

func (l *Loader) isCurrent(docID string, page int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == (pageKey{}) {
		return true
	}
	return l.current == pageKey{doc: docID, page: page}
}

func flightKey(docID string, page int) string {
	return fmt.Sprintf("%s:%d", docID, page)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
