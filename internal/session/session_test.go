package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/structlay/internal/a11y"
	"github.com/dgallion1/structlay/internal/cache"
	"github.com/dgallion1/structlay/internal/overlay"
	"github.com/dgallion1/structlay/internal/structure"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPage(docID string, page int) *structure.PageStructure {
	ps := &structure.PageStructure{
		DocID:        docID,
		Page:         page,
		HasStructure: true,
		CoordinateSystem: structure.CoordinateSystem{
			Origin:    structure.OriginBottomLeft,
			Reference: structure.ReferencePage,
		},
		PageDimensions: &structure.Dimensions{Width: 612, Height: 792},
	}
	switch page {
	case 1:
		ps.Elements = []structure.Element{
			{
				ID: "el-1", ChunkID: "chunk-1", Kind: structure.KindHeading, Page: 1,
				BBox:    &structure.BoundingBox{Left: 72, Bottom: 650, Right: 540, Top: 720},
				Heading: &structure.HeadingDetail{Level: 2, Text: "Results"},
			},
			{
				ID: "el-2", Kind: structure.KindPicture, Page: 1,
				BBox: &structure.BoundingBox{Left: 100, Bottom: 100, Right: 300, Top: 200},
			},
		}
	case 2:
		ps.Elements = []structure.Element{
			{
				ID: "el-3", ChunkID: "chunk-2", Kind: structure.KindTable, Page: 2,
				BBox:  &structure.BoundingBox{Left: 72, Bottom: 400, Right: 540, Top: 600},
				Table: &structure.TableDetail{Rows: 3, Cols: 2},
			},
		}
	}
	ps.Stats = structure.ComputeStats(ps.Elements)
	return ps
}

type sessionFetcher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *sessionFetcher) PageStructure(ctx context.Context, docID string, page int) (*structure.PageStructure, error) {
	f.mu.Lock()
	f.calls++
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return testPage(docID, page), nil
}

func (f *sessionFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type sessionChunks struct{ err error }

func (c *sessionChunks) DocumentChunks(ctx context.Context, docID string) ([]structure.Chunk, error) {
	if c.err != nil {
		return nil, c.err
	}
	return []structure.Chunk{
		{ID: "chunk-1", Page: 1, Markdown: "## Results\n\nRevenue grew."},
		{ID: "chunk-2", Page: 2, Markdown: "Quarterly table."},
	}, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.FrameInterval = 2 * time.Millisecond
	cfg.AnnounceDelay = 5 * time.Millisecond
	cfg.ResizeWait = 10 * time.Millisecond
	return cfg
}

func newTestSession(t *testing.T, fetcher *sessionFetcher) *Session {
	t.Helper()
	c := cache.New(cache.Config{}, discardLogger())
	s, err := New("doc-1", testConfig(), Deps{
		Cache:   c,
		Fetcher: fetcher,
		Chunks:  &sessionChunks{},
		Log:     discardLogger(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func waitState(t *testing.T, s *Session, cond func(overlay.HighlightState) bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if state, _ := s.State(); cond(state) {
			return
		}
		time.Sleep(time.Millisecond)
	}
	state, _ := s.State()
	t.Fatalf("state condition not met, last state %+v", state)
}

func waitAnnouncement(t *testing.T, s *Session, substr string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		for _, ann := range s.Announcements() {
			if strings.Contains(ann.Message, substr) {
				return
			}
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("announcement %q never delivered", substr)
}

func TestSession_MountBuildsView(t *testing.T) {
	fetcher := &sessionFetcher{}
	s := newTestSession(t, fetcher)

	view, err := s.Mount(context.Background(), 1, 612, 792, "/documents/doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !view.HasStructure || view.Page != 1 || view.DocID != "doc-1" {
		t.Fatalf("unexpected view: %+v", view)
	}
	if len(view.Regions) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(view.Regions))
	}
	if view.Regions[0].ID != "chunk-1" || !view.Regions[0].Linked {
		t.Errorf("unexpected first region: %+v", view.Regions[0])
	}
	if !strings.Contains(view.OverlayHTML, `data-id="chunk-1"`) {
		t.Errorf("expected overlay markup, got:\n%s", view.OverlayHTML)
	}
	if !strings.Contains(view.TextHTML, `data-chunk-id="chunk-1"`) {
		t.Errorf("expected text markup, got:\n%s", view.TextHTML)
	}
	if len(view.Segments) != 2 {
		t.Errorf("expected 2 segments, got %d", len(view.Segments))
	}
	if view.Stats == nil || view.Stats.Headings != 1 || view.Stats.Pictures != 1 {
		t.Errorf("unexpected stats: %+v", view.Stats)
	}
}

func TestSession_MountFiresDeepLinkOnce(t *testing.T) {
	s := newTestSession(t, &sessionFetcher{})

	var mu sync.Mutex
	activations := 0
	s.Subscribe(func(ev overlay.Event) {
		if ev.Type == overlay.EventActivate {
			mu.Lock()
			activations++
			mu.Unlock()
		}
	})

	view, err := s.Mount(context.Background(), 1, 612, 792, "/view?chunk=chunk-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.State.ActiveID != "chunk-1" {
		t.Fatalf("expected deep link activation, got %+v", view.State)
	}

	// A re-render mounts again; the deep link must not re-fire.
	if _, err := s.Mount(context.Background(), 1, 612, 792, "/view?chunk=chunk-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	got := activations
	mu.Unlock()
	if got != 1 {
		t.Fatalf("expected exactly one activation, got %d", got)
	}
}

func TestSession_MountDegradesWithoutStructure(t *testing.T) {
	fetcher := &sessionFetcher{err: errors.New("backend down")}
	s := newTestSession(t, fetcher)

	view, err := s.Mount(context.Background(), 1, 612, 792, "/view")
	if err != nil {
		t.Fatalf("expected degraded mount, got error: %v", err)
	}
	if view.HasStructure || len(view.Regions) != 0 {
		t.Fatalf("expected overlay-less view, got %+v", view)
	}
	if !strings.Contains(view.TextHTML, "data-chunk-id") {
		t.Error("expected the text side to survive a structure failure")
	}
	waitAnnouncement(t, s, "Page structure unavailable")
}

func TestSession_MountChunkFailureIsFatal(t *testing.T) {
	c := cache.New(cache.Config{}, discardLogger())
	s, err := New("doc-1", testConfig(), Deps{
		Cache:   c,
		Fetcher: &sessionFetcher{},
		Chunks:  &sessionChunks{err: errors.New("chunks down")},
		Log:     discardLogger(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	if _, err := s.Mount(context.Background(), 1, 612, 792, "/view"); err == nil {
		t.Fatal("expected mount to fail without the text side")
	}
}

func TestSession_HoverAt(t *testing.T) {
	s := newTestSession(t, &sessionFetcher{})
	if _, err := s.Mount(context.Background(), 1, 612, 792, "/view"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// (100, 100) lands inside the heading region only.
	s.HoverAt(100, 100)
	waitState(t, s, func(st overlay.HighlightState) bool { return st.HoveredID == "chunk-1" })

	// Off every region the hover clears.
	s.HoverAt(600, 780)
	waitState(t, s, func(st overlay.HighlightState) bool { return st.HoveredID == "" })
}

func TestSession_ActivateAt(t *testing.T) {
	s := newTestSession(t, &sessionFetcher{})
	if _, err := s.Mount(context.Background(), 1, 612, 792, "/view"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.ActivateAt(100, 100)
	state, _ := s.State()
	if state.ActiveID != "chunk-1" {
		t.Fatalf("expected active chunk-1, got %+v", state)
	}
	if !strings.Contains(s.URL(), "chunk=chunk-1") {
		t.Errorf("expected url to record the selection, got %q", s.URL())
	}
	waitAnnouncement(t, s, "Heading level 2, selected")

	// A click on empty canvas clears.
	s.ActivateAt(600, 780)
	state, _ = s.State()
	if state.ActiveID != "" {
		t.Fatalf("expected cleared selection, got %+v", state)
	}
	waitAnnouncement(t, s, a11y.ClearedMessage)
}

func TestSession_TextSideEntryPoints(t *testing.T) {
	s := newTestSession(t, &sessionFetcher{})
	if _, err := s.Mount(context.Background(), 1, 612, 792, "/view"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.HoverChunk("chunk-1")
	waitState(t, s, func(st overlay.HighlightState) bool { return st.HoveredID == "chunk-1" })
	s.UnhoverChunk("chunk-1")
	waitState(t, s, func(st overlay.HighlightState) bool { return st.HoveredID == "" })

	s.ActivateChunk("chunk-1")
	state, _ := s.State()
	if state.ActiveID != "chunk-1" {
		t.Fatalf("expected active chunk-1, got %+v", state)
	}

	// Orphan chunks are accepted; the overlay side is a no-op.
	s.ActivateChunk("orphan-chunk")
	state, _ = s.State()
	if state.ActiveID != "orphan-chunk" {
		t.Fatalf("expected orphan activation, got %+v", state)
	}
}

func TestSession_KeyboardFlow(t *testing.T) {
	s := newTestSession(t, &sessionFetcher{})
	if _, err := s.Mount(context.Background(), 1, 612, 792, "/view"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !s.Key(a11y.KeyTab, false) {
		t.Fatal("expected tab to focus the first region")
	}
	if !s.Key(a11y.KeyEnter, false) {
		t.Fatal("expected enter to activate")
	}
	state, _ := s.State()
	if state.ActiveID != "chunk-1" {
		t.Fatalf("expected active chunk-1, got %+v", state)
	}

	if !s.Key(a11y.KeyEscape, false) {
		t.Fatal("expected escape to be consumed")
	}
	state, _ = s.State()
	if state.ActiveID != "" {
		t.Fatalf("expected cleared selection, got %+v", state)
	}
}

func TestSession_KeyBeforeMount(t *testing.T) {
	s := newTestSession(t, &sessionFetcher{})
	if s.Key(a11y.KeyTab, false) {
		t.Fatal("expected keys to pass through before mount")
	}
}

func TestSession_GoToPage(t *testing.T) {
	s := newTestSession(t, &sessionFetcher{})
	if _, err := s.Mount(context.Background(), 1, 612, 792, "/view"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.ActivateChunk("chunk-1")

	view, err := s.GoToPage(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Page != 2 || len(view.Regions) != 1 || view.Regions[0].ID != "chunk-2" {
		t.Fatalf("unexpected view: %+v", view)
	}
	if view.State.ActiveID != "" {
		t.Fatalf("expected selection cleared by page turn, got %+v", view.State)
	}
}

func TestSession_GoToPageBeforeMount(t *testing.T) {
	s := newTestSession(t, &sessionFetcher{})
	if _, err := s.GoToPage(context.Background(), 2); !errors.Is(err, ErrNotMounted) {
		t.Fatalf("expected ErrNotMounted, got %v", err)
	}
}

func TestSession_ResizeRebuildsWithoutRefetch(t *testing.T) {
	fetcher := &sessionFetcher{}
	s := newTestSession(t, fetcher)
	if _, err := s.Mount(context.Background(), 1, 612, 792, "/view"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Let the adjacent-page prefetch finish so the call count is stable.
	deadline := time.Now().Add(time.Second)
	for fetcher.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	before := fetcher.callCount()

	s.Resize(1224, 1584)
	s.Resize(1224, 1584)
	s.Resize(1224, 1584)

	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		view := s.View()
		if len(view.Regions) > 0 && view.Regions[0].Box.X1 > 143 && view.Regions[0].Box.X1 < 145 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	view := s.View()
	if view.Regions[0].Box.X1 < 143 || view.Regions[0].Box.X1 > 145 {
		t.Fatalf("expected rescaled region, got %+v", view.Regions[0].Box)
	}
	if got := fetcher.callCount(); got != before {
		t.Fatalf("expected no refetch on resize, got %d extra", got-before)
	}
}

func TestSession_CloseStopsEverything(t *testing.T) {
	s := newTestSession(t, &sessionFetcher{})
	if _, err := s.Mount(context.Background(), 1, 612, 792, "/view"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Close()
	s.Close()

	if _, err := s.Mount(context.Background(), 1, 612, 792, "/view"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestSession_ResolverSides(t *testing.T) {
	s := newTestSession(t, &sessionFetcher{})
	if _, err := s.Mount(context.Background(), 1, 612, 792, "/view"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !s.HasRegion("chunk-1") || !s.HasRegion("el-2") {
		t.Error("expected page regions to resolve")
	}
	if s.HasRegion("chunk-2") {
		t.Error("expected other-page region to be unknown")
	}
	if !s.HasSegment("chunk-1") || !s.HasSegment("chunk-2") {
		t.Error("expected text segments to resolve")
	}
	if s.HasSegment("el-2") {
		t.Error("expected unlinked element to have no segment")
	}
	if kind, ok := s.KindOf("chunk-1"); !ok || kind != structure.KindHeading {
		t.Errorf("expected heading kind, got %q ok=%t", kind, ok)
	}
	if _, ok := s.KindOf("nope"); ok {
		t.Error("expected unknown id to stay unresolved")
	}
}
