// Package session composes one document view: the structure cache and
// lazy loader feeding overlay regions, the highlight controller syncing
// them with text segments, deep-link navigation, and the accessibility
// surface. Nothing here is process-global; every Session owns its
// dependencies except the shared structure cache.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/structlay/internal/a11y"
	"github.com/dgallion1/structlay/internal/cache"
	"github.com/dgallion1/structlay/internal/deeplink"
	"github.com/dgallion1/structlay/internal/geometry"
	"github.com/dgallion1/structlay/internal/loader"
	"github.com/dgallion1/structlay/internal/overlay"
	"github.com/dgallion1/structlay/internal/ratelimit"
	"github.com/dgallion1/structlay/internal/structure"
	"github.com/dgallion1/structlay/internal/textview"
)

var (
	ErrClosed     = errors.New("session closed")
	ErrNotMounted = errors.New("session not mounted")
)

// ChunkSource provides the document's text side.
type ChunkSource interface {
	DocumentChunks(ctx context.Context, docID string) ([]structure.Chunk, error)
}

// Deps are the shared collaborators a session is wired to.
type Deps struct {
	Cache   *cache.Cache
	Fetcher loader.Fetcher
	Chunks  ChunkSource // optional; nil means no text pane
	Log     *slog.Logger
}

// Config holds the per-session knobs. Zero values fall back to the
// defaults below.
type Config struct {
	FetchTimeout  time.Duration
	PrefetchRange int
	ResizeWait    time.Duration
	FrameInterval time.Duration
	AnnounceDelay time.Duration
	Scale         geometry.ScaleOptions
	DeepLinkParam string
	UpdateURL     bool
}

const DefaultResizeWait = 150 * time.Millisecond

func DefaultConfig() Config {
	return Config{
		FetchTimeout:  loader.DefaultFetchTimeout,
		PrefetchRange: loader.DefaultPrefetchRange,
		ResizeWait:    DefaultResizeWait,
		FrameInterval: ratelimit.DefaultFrameInterval,
		AnnounceDelay: a11y.DefaultAnnounceDelay,
		Scale:         geometry.DefaultScaleOptions(),
		DeepLinkParam: deeplink.DefaultParam,
		UpdateURL:     true,
	}
}

// Session is one mounted document view.
type Session struct {
	ID    string
	DocID string

	cfg Config
	log *slog.Logger

	loader     *loader.Loader
	controller *overlay.Controller
	nav        *deeplink.Navigator
	announcer  *a11y.Announcer
	resize     *ratelimit.Debouncer
	chunks     ChunkSource

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu         sync.Mutex
	page       int
	displayW   float64
	displayH   float64
	ps         *structure.PageStructure
	regions    []overlay.Region
	regionByID map[string]overlay.Region
	segments   map[string]textview.Segment
	segList    []textview.Segment
	textHTML   string
	textReady  bool
	ring       *a11y.FocusRing
	keyboard   *a11y.Keyboard
	mounted    bool
	closed     bool
	createdAt  time.Time
	lastAccess time.Time
}

// New wires a session for one document. The cache is shared; the loader,
// controller, navigator, and announcer belong to this session and die
// with it.
func New(docID string, cfg Config, deps Deps) (*Session, error) {
	if docID == "" {
		return nil, errors.New("session: doc id required")
	}
	if deps.Cache == nil || deps.Fetcher == nil {
		return nil, errors.New("session: cache and fetcher required")
	}
	if cfg.ResizeWait <= 0 {
		cfg.ResizeWait = DefaultResizeWait
	}

	id := newSessionID()
	log := deps.Log.With("session_id", id, "doc_id", docID)
	baseCtx, baseCancel := context.WithCancel(context.Background())

	s := &Session{
		ID:         id,
		DocID:      docID,
		cfg:        cfg,
		log:        log,
		chunks:     deps.Chunks,
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		regionByID: make(map[string]overlay.Region),
		segments:   make(map[string]textview.Segment),
		createdAt:  time.Now(),
		lastAccess: time.Now(),
	}
	s.loader = loader.New(deps.Cache, deps.Fetcher, loader.Config{
		FetchTimeout:  cfg.FetchTimeout,
		PrefetchRange: cfg.PrefetchRange,
	}, log)
	s.controller = overlay.New(s, overlay.Config{FrameInterval: cfg.FrameInterval}, log)
	s.controller.Subscribe(s.onEvent)
	s.nav = deeplink.New(s.activateFromURL, deeplink.Config{
		Param:     cfg.DeepLinkParam,
		UpdateURL: cfg.UpdateURL,
	}, log)
	s.announcer = a11y.NewAnnouncer(cfg.AnnounceDelay, nil, log)
	s.resize = ratelimit.NewDebouncer(cfg.ResizeWait, ratelimit.DefaultDebounceOptions())
	return s, nil
}

// Mount loads the page structure and text side, builds the interactive
// regions, fires the deep link at most once, and kicks off adjacent-page
// prefetch. A failed structure fetch degrades the view to no overlay
// instead of failing the mount; context cancellation still surfaces.
func (s *Session) Mount(ctx context.Context, page int, displayW, displayH float64, rawURL string) (*View, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.page = page
	s.displayW, s.displayH = displayW, displayH
	s.lastAccess = time.Now()
	textReady := s.textReady
	s.mu.Unlock()

	s.loader.SetCurrent(s.DocID, page)
	ps, err := s.loader.Load(ctx, s.DocID, page)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		s.log.Warn("structure load failed, mounting without overlay", "page", page, "error", err)
		s.announcer.AnnounceWith("Page structure unavailable", a11y.Assertive)
		ps = nil
	}

	if !textReady && s.chunks != nil {
		if err := s.loadText(ctx); err != nil {
			return nil, err
		}
	}

	if err := s.applyStructure(ps, displayW, displayH); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.mounted = true
	s.mu.Unlock()

	s.nav.Mount(rawURL)

	go s.loader.PreloadAdjacent(s.baseCtx, s.DocID, page)

	return s.View(), nil
}

func (s *Session) loadText(ctx context.Context) error {
	chunks, err := s.chunks.DocumentChunks(ctx, s.DocID)
	if err != nil {
		return fmt.Errorf("load chunks: %w", err)
	}
	html, err := textview.RenderChunks(chunks)
	if err != nil {
		return err
	}
	segs, err := textview.IndexSegments(html)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.textHTML = html
	s.segList = segs
	s.segments = textview.SegmentMap(segs)
	s.textReady = true
	s.mu.Unlock()
	return nil
}

// applyStructure rebuilds regions and the focus ring for a page
// structure, preserving focus where the id survives.
func (s *Session) applyStructure(ps *structure.PageStructure, displayW, displayH float64) error {
	regions, err := overlay.BuildRegions(ps, displayW, displayH, s.cfg.Scale, s.log)
	if err != nil {
		return err
	}
	byID := make(map[string]overlay.Region, len(regions))
	for _, r := range regions {
		byID[r.ID] = r
	}
	order := a11y.FocusOrder(regions)

	s.mu.Lock()
	s.ps = ps
	s.regions = regions
	s.regionByID = byID
	if s.ring == nil {
		s.ring = a11y.NewFocusRing(order)
		s.keyboard = a11y.NewKeyboard(s.ring, s.activateFromKeyboard, s.clearFromKeyboard)
	} else {
		s.ring.SetIDs(order)
	}
	s.mu.Unlock()
	return nil
}

// Resize re-derives region geometry for new display dimensions, debounced
// so a drag storm settles into one rebuild. No network traffic: the page
// structure is already in hand.
func (s *Session) Resize(w, h float64) {
	s.resize.Call(func() {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.displayW, s.displayH = w, h
		ps := s.ps
		s.mu.Unlock()

		if err := s.applyStructure(ps, w, h); err != nil {
			s.log.Warn("resize rebuild failed", "width", w, "height", h, "error", err)
		}
	})
}

// HoverAt hit-tests display coordinates and hovers the smallest region
// under them; missing everything unhovers whatever was hovered.
func (s *Session) HoverAt(x, y float64) {
	s.mu.Lock()
	r, ok := overlay.HitTest(s.regions, x, y)
	s.mu.Unlock()

	if ok {
		s.controller.Hover(r.ID, overlay.OriginOverlay)
		return
	}
	s.Leave()
}

// Leave unhovers whatever is hovered, for a pointer leaving the page.
func (s *Session) Leave() {
	if state, _ := s.controller.State(); state.HoveredID != "" {
		s.controller.Unhover(state.HoveredID, overlay.OriginOverlay)
	}
}

// ActivateAt activates the region under the point, focusing it like a
// click would; a miss clears the selection.
func (s *Session) ActivateAt(x, y float64) {
	s.mu.Lock()
	r, ok := overlay.HitTest(s.regions, x, y)
	ring := s.ring
	s.mu.Unlock()

	if !ok {
		s.controller.Clear(overlay.OriginOverlay)
		return
	}
	if ring != nil {
		ring.Focus(r.ID)
	}
	s.activate(r.ID, overlay.OriginOverlay)
}

// ClearSelection drops the active highlight on both panes.
func (s *Session) ClearSelection() {
	s.controller.Clear(overlay.OriginOverlay)
}

// HoverChunk is the text-side hover entry point.
func (s *Session) HoverChunk(id string) {
	s.controller.Hover(id, overlay.OriginText)
}

// UnhoverChunk is the text-side leave entry point.
func (s *Session) UnhoverChunk(id string) {
	s.controller.Unhover(id, overlay.OriginText)
}

// ActivateChunk is the text-side activation entry point. Orphan chunks
// are accepted; the overlay side simply has nothing to scroll.
func (s *Session) ActivateChunk(id string) {
	s.activate(id, overlay.OriginText)
}

// Navigate activates id as an in-app deep link and rewrites the URL.
func (s *Session) Navigate(id string) {
	s.nav.Navigate(id)
}

// Key applies one key press. It reports whether the key was consumed.
func (s *Session) Key(key a11y.Key, shift bool) bool {
	s.mu.Lock()
	kb := s.keyboard
	s.lastAccess = time.Now()
	s.mu.Unlock()
	if kb == nil {
		return false
	}
	return kb.HandleKey(key, shift)
}

// GoToPage navigates the view to another page. Pending fetches for pages
// outside prefetch range are cancelled; a response that comes back for a
// page the view already left surfaces loader.ErrStale and changes
// nothing. The selection is cleared, matching the page turn.
func (s *Session) GoToPage(ctx context.Context, page int) (*View, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if !s.mounted {
		s.mu.Unlock()
		return nil, ErrNotMounted
	}
	s.page = page
	s.lastAccess = time.Now()
	w, h := s.displayW, s.displayH
	s.mu.Unlock()

	s.loader.SetCurrent(s.DocID, page)

	if state, _ := s.controller.State(); state.HoveredID != "" {
		s.controller.Unhover(state.HoveredID, overlay.OriginOverlay)
	}
	s.controller.Clear(overlay.OriginOverlay)

	ps, err := s.loader.Load(ctx, s.DocID, page)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, loader.ErrStale) {
			return nil, err
		}
		s.log.Warn("structure load failed, page has no overlay", "page", page, "error", err)
		s.announcer.AnnounceWith("Page structure unavailable", a11y.Assertive)
		ps = nil
	}
	if err := s.applyStructure(ps, w, h); err != nil {
		return nil, err
	}

	go s.loader.PreloadAdjacent(s.baseCtx, s.DocID, page)

	return s.View(), nil
}

// State returns the highlight state and its sequence number.
func (s *Session) State() (overlay.HighlightState, uint64) {
	return s.controller.State()
}

// Subscribe attaches a handler to the session's highlight events.
func (s *Session) Subscribe(h overlay.Handler) func() {
	return s.controller.Subscribe(h)
}

// Announcements drains the committed live-region updates for hosts that
// poll.
func (s *Session) Announcements() []a11y.Announcement {
	return s.announcer.Drain()
}

// URL returns the session URL with the deep-link parameter kept current.
func (s *Session) URL() string {
	return s.nav.URL()
}

// LoaderStats exposes the session's fetch statistics.
func (s *Session) LoaderStats() loader.StatsSnapshot {
	return s.loader.Stats()
}

// Text returns the rendered text pane and its indexed segments. Both are
// loaded once at mount and never change afterwards.
func (s *Session) Text() (string, []textview.Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.textHTML, append([]textview.Segment(nil), s.segList...)
}

// View assembles the renderable snapshot of the session.
func (s *Session) View() *View {
	state, seq := s.controller.State()

	s.mu.Lock()
	defer s.mu.Unlock()
	v := &View{
		SessionID: s.ID,
		DocID:     s.DocID,
		Page:      s.page,
		Regions:   append([]overlay.Region(nil), s.regions...),
		TextHTML:  s.textHTML,
		Segments:  append([]textview.Segment(nil), s.segList...),
		State:     state,
		Seq:       seq,
	}
	if s.ps != nil {
		v.HasStructure = s.ps.HasStructure
		if s.ps.HasStructure {
			stats := s.ps.Stats
			v.Stats = &stats
		}
	}
	v.OverlayHTML = overlay.RenderHTML(v.Regions, state)
	return v
}

// Close tears the session down: pending debounced work, the hover
// coalescer, announcement timers, and in-flight fetches are all
// cancelled. The shared cache is left alone.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.resize.Cancel()
	s.controller.Close()
	s.announcer.Close()
	s.loader.Close()
	s.baseCancel()
}

// Touch refreshes the idle clock the registry sweeps on.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastAccess = time.Now()
	s.mu.Unlock()
}

// LastAccess returns when the session was last used.
func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Session) activate(id string, origin overlay.Origin) {
	s.controller.Activate(id, origin)
	if s.cfg.UpdateURL {
		s.nav.Record(id)
	}
}

func (s *Session) activateFromURL(id string) error {
	s.controller.Activate(id, overlay.OriginURL)
	return nil
}

func (s *Session) activateFromKeyboard(id string) {
	s.activate(id, overlay.OriginKeyboard)
}

func (s *Session) clearFromKeyboard() {
	s.controller.Clear(overlay.OriginKeyboard)
}

// onEvent feeds the announcer from controller transitions.
func (s *Session) onEvent(ev overlay.Event) {
	switch ev.Type {
	case overlay.EventActivate:
		if el, ok := s.elementFor(ev.ID); ok {
			s.announcer.Announce(a11y.Describe(el, true))
		} else {
			s.announcer.Announce("Selected")
		}
	case overlay.EventClear:
		s.announcer.Announce(a11y.ClearedMessage)
	}
}

func (s *Session) elementFor(id string) (structure.Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ps == nil {
		return structure.Element{}, false
	}
	if el, ok := s.ps.ElementByChunk(id); ok {
		return el, true
	}
	return s.ps.ElementByID(id)
}

// HasRegion reports whether id names a region on the current page.
func (s *Session) HasRegion(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.regionByID[id]
	return ok
}

// HasSegment reports whether id names a text segment.
func (s *Session) HasSegment(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.segments[id]
	return ok
}

// KindOf resolves the structural kind behind id.
func (s *Session) KindOf(id string) (structure.Kind, bool) {
	s.mu.Lock()
	if r, ok := s.regionByID[id]; ok {
		s.mu.Unlock()
		return r.Kind, true
	}
	s.mu.Unlock()
	if el, ok := s.elementFor(id); ok {
		return el.Kind, true
	}
	return "", false
}

// View is the renderable snapshot handed to the host.
type View struct {
	SessionID    string                 `json:"session_id"`
	DocID        string                 `json:"doc_id"`
	Page         int                    `json:"page"`
	HasStructure bool                   `json:"has_structure"`
	Regions      []overlay.Region       `json:"regions"`
	OverlayHTML  string                 `json:"overlay_html"`
	TextHTML     string                 `json:"text_html,omitempty"`
	Segments     []textview.Segment     `json:"segments,omitempty"`
	State        overlay.HighlightState `json:"state"`
	Seq          uint64                 `json:"seq"`
	Stats        *structure.Stats       `json:"stats,omitempty"`
}
