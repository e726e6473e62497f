package overlay

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/structlay/internal/ratelimit"
	"github.com/dgallion1/structlay/internal/structure"
)

// HighlightState is the whole visual state of the bidirectional link. An
// empty string means none. Rendering is a pure function of this value.
type HighlightState struct {
	ActiveID  string `json:"active_id"`
	HoveredID string `json:"hovered_id"`
}

// EventType enumerates controller notifications.
type EventType string

const (
	EventHover    EventType = "hover"
	EventUnhover  EventType = "unhover"
	EventActivate EventType = "activate"
	EventClear    EventType = "clear"
	EventScrollTo EventType = "scroll_to"
)

// Origin identifies which side of the link an interaction came from.
type Origin string

const (
	OriginOverlay  Origin = "overlay"
	OriginText     Origin = "text"
	OriginURL      Origin = "url"
	OriginKeyboard Origin = "keyboard"
)

// Target names the side a scroll_to event addresses.
type Target string

const (
	TargetRegion  Target = "region"
	TargetSegment Target = "segment"
)

// Event is a typed controller notification. State is the highlight state at
// emission time; Seq increases by one per event, so pollers can resume.
type Event struct {
	Type   EventType      `json:"type"`
	ID     string         `json:"id,omitempty"`
	Kind   structure.Kind `json:"kind,omitempty"`
	Origin Origin         `json:"origin,omitempty"`
	Target Target         `json:"target,omitempty"`
	State  HighlightState `json:"state"`
	Seq    uint64         `json:"seq"`
	Time   time.Time      `json:"time"`
}

// Handler receives controller events. Handlers run sequentially in emission
// order; a panicking handler is recovered and logged, never propagated.
type Handler func(Event)

// Resolver answers identity questions about the current view so the
// controller can route counterpart scrolling. A nil resolver treats every id
// as present on both sides.
type Resolver interface {
	// HasRegion reports whether the id is addressable on the overlay side.
	HasRegion(id string) bool
	// HasSegment reports whether the id is addressable on the text side.
	HasSegment(id string) bool
	// KindOf returns the element kind behind an id, when known.
	KindOf(id string) (structure.Kind, bool)
}

// Config tunes the controller. Zero values use the defaults.
type Config struct {
	// FrameInterval bounds how often hover changes propagate.
	FrameInterval time.Duration
}

// Controller is the sync state machine correlating overlay regions with
// text segments. Hover updates are frame-coalesced; activation is immediate.
// It lives for the lifetime of one document view.
type Controller struct {
	mu       sync.Mutex
	state    HighlightState
	seq      uint64
	handlers map[int]Handler
	nextSub  int
	queue    []Event
	draining bool
	closed   bool

	resolver  Resolver
	coalescer *ratelimit.FrameCoalescer
	log       *slog.Logger
}

func New(resolver Resolver, cfg Config, log *slog.Logger) *Controller {
	return &Controller{
		handlers:  make(map[int]Handler),
		resolver:  resolver,
		coalescer: ratelimit.NewFrameCoalescer(cfg.FrameInterval),
		log:       log,
	}
}

// Subscribe registers a handler for all subsequent events and returns its
// unsubscribe function.
func (c *Controller) Subscribe(h Handler) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.handlers[id] = h
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
	}
}

// State returns the current highlight state and the sequence number of the
// last event.
func (c *Controller) State() (HighlightState, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.seq
}

// Hover requests a hover highlight. Rapid successive hovers collapse to the
// latest one per frame; the active selection is untouched.
func (c *Controller) Hover(id string, origin Origin) {
	c.coalescer.Queue(func() { c.applyHover(id, origin) })
}

// Unhover clears the hover highlight, but only while id is still the
// hovered one. Late leave events arriving after a fast re-enter are
// ignored.
func (c *Controller) Unhover(id string, origin Origin) {
	c.coalescer.Queue(func() { c.applyUnhover(id, origin) })
}

// Activate selects id and requests a scroll of its counterpart
/// representation: the text segment when activated from the overlay, the
// region when activated from the text side, both for URL-driven activation.
// Ids without a counterpart are accepted; the counterpart scroll is simply
// omitted.
func (c *Controller) Activate(id string, origin Origin) {
	kind := c.kindOf(id)
	targets := c.counterparts(id, origin)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state.ActiveID = id
	c.enqueueLocked(Event{Type: EventActivate, ID: id, Kind: kind, Origin: origin})
	for _, tgt := range targets {
		c.enqueueLocked(Event{Type: EventScrollTo, ID: id, Origin: origin, Target: tgt})
	}
	c.mu.Unlock()

	c.drain()
}

// Clear drops the active selection. Hover state is untouched.
func (c *Controller) Clear(origin Origin) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state.ActiveID = ""
	c.enqueueLocked(Event{Type: EventClear, Origin: origin})
	c.mu.Unlock()

	c.drain()
}

// Close stops the hover coalescer and detaches all subscribers. The
// controller accepts no further transitions.
func (c *Controller) Close() {
	c.coalescer.Stop()
	c.mu.Lock()
	c.closed = true
	c.handlers = make(map[int]Handler)
	c.queue = nil
	c.mu.Unlock()
}

func (c *Controller) applyHover(id string, origin Origin) {
	kind := c.kindOf(id)

	c.mu.Lock()
	if c.closed || c.state.HoveredID == id {
		c.mu.Unlock()
		return
	}
	c.state.HoveredID = id
	c.enqueueLocked(Event{Type: EventHover, ID: id, Kind: kind, Origin: origin})
	c.mu.Unlock()

	c.drain()
}

func (c *Controller) applyUnhover(id string, origin Origin) {
	c.mu.Lock()
	if c.closed || c.state.HoveredID != id {
		c.mu.Unlock()
		return
	}
	c.state.HoveredID = ""
	c.enqueueLocked(Event{Type: EventUnhover, ID: id, Origin: origin})
	c.mu.Unlock()

	c.drain()
}

// enqueueLocked stamps and queues an event. Callers hold c.mu and drain
// after releasing it.
func (c *Controller) enqueueLocked(ev Event) {
	c.seq++
	ev.Seq = c.seq
	ev.State = c.state
	ev.Time = time.Now()
	c.queue = append(c.queue, ev)
}

// drain delivers queued events in order. A single drainer runs at a time,
// so a handler that re-enters the controller queues new events instead of
// reordering delivery or deadlocking.
func (c *Controller) drain() {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	for len(c.queue) > 0 {
		ev := c.queue[0]
		c.queue = c.queue[1:]
		hs := make([]Handler, 0, len(c.handlers))
		for _, h := range c.handlers {
			hs = append(hs, h)
		}
		c.mu.Unlock()
		for _, h := range hs {
			c.safeCall(h, ev)
		}
		c.mu.Lock()
	}
	c.draining = false
	c.mu.Unlock()
}

// safeCall shields the controller from misbehaving subscribers.
func (c *Controller) safeCall(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil && c.log != nil {
			c.log.Error("subscriber panic", "event", ev.Type, "id", ev.ID, "panic", r)
		}
	}()
	h(ev)
}

func (c *Controller) kindOf(id string) structure.Kind {
	if c.resolver == nil {
		return ""
	}
	if k, ok := c.resolver.KindOf(id); ok {
		return k
	}
	return ""
}

// counterparts lists the sides whose representation of id should scroll
// into view for an activation arriving via origin.
func (c *Controller) counterparts(id string, origin Origin) []Target {
	var targets []Target
	switch origin {
	case OriginText:
		if c.hasRegion(id) {
			targets = append(targets, TargetRegion)
		}
	case OriginURL:
		if c.hasSegment(id) {
			targets = append(targets, TargetSegment)
		}
		if c.hasRegion(id) {
			targets = append(targets, TargetRegion)
		}
	default:
		// Overlay and keyboard interactions scroll the text side.
		if c.hasSegment(id) {
			targets = append(targets, TargetSegment)
		}
	}
	return targets
}

func (c *Controller) hasRegion(id string) bool {
	return c.resolver == nil || c.resolver.HasRegion(id)
}

func (c *Controller) hasSegment(id string) bool {
	return c.resolver == nil || c.resolver.HasSegment(id)
}
