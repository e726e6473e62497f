// Package a11y makes overlay regions operable without a pointer and their
// state changes perceivable by assistive technology: keyboard focus
// management, delayed live-region announcements, and the WCAG contrast
// checks the overlay palette is validated against in tests.
package a11y

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/structlay/internal/structure"
)

// Politeness selects how insistently assistive technology reads an
// announcement.
type Politeness string

const (
	Polite    Politeness = "polite"
	Assertive Politeness = "assertive"
)

// Role returns the live-region ARIA role for this politeness.
func (p Politeness) Role() string {
	if p == Assertive {
		return "alert"
	}
	return "status"
}

// DefaultAnnounceDelay is how long an announcement rests before it is
// committed to the live region. Assistive technology misses mutations that
// land in the same tick as the node's creation.
const DefaultAnnounceDelay = 100 * time.Millisecond

// Announcement is one committed live-region update.
type Announcement struct {
	Message    string     `json:"message"`
	Politeness Politeness `json:"politeness"`
	Time       time.Time  `json:"time"`
}

// LiveRegion mirrors the shared DOM node announcements are written to. It
// exists only after the first announcement at its politeness.
type LiveRegion struct {
	Politeness Politeness `json:"politeness"`
	Role       string     `json:"role"`
	Text       string     `json:"text"`
}

// Announcer owns the live regions. Announcements are committed after a
// short delay; within one delay window the latest message per politeness
// wins, mirroring how repeated writes to one node read to a screen reader.
type Announcer struct {
	mu      sync.Mutex
	delay   time.Duration
	regions map[Politeness]*LiveRegion
	pending map[Politeness]string
	timers  map[Politeness]*time.Timer
	queue   []Announcement
	sink    func(Announcement)
	closed  bool
	log     *slog.Logger
}

// NewAnnouncer builds an announcer. A non-positive delay means
// DefaultAnnounceDelay. sink, when non-nil, receives each committed
// announcement; Drain serves hosts that poll instead.
func NewAnnouncer(delay time.Duration, sink func(Announcement), log *slog.Logger) *Announcer {
	if delay <= 0 {
		delay = DefaultAnnounceDelay
	}
	return &Announcer{
		delay:   delay,
		regions: make(map[Politeness]*LiveRegion),
		pending: make(map[Politeness]string),
		timers:  make(map[Politeness]*time.Timer),
		sink:    sink,
		log:     log,
	}
}

// Announce queues a polite announcement.
func (a *Announcer) Announce(message string) {
	a.AnnounceWith(message, Polite)
}

// AnnounceWith queues an announcement at the given politeness. Blank
// messages are dropped. The live region is created on first use.
func (a *Announcer) AnnounceWith(message string, politeness Politeness) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	if politeness != Assertive {
		politeness = Polite
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	if _, ok := a.regions[politeness]; !ok {
		a.regions[politeness] = &LiveRegion{Politeness: politeness, Role: politeness.Role()}
	}
	a.pending[politeness] = message
	if _, ok := a.timers[politeness]; !ok {
		p := politeness
		a.timers[p] = time.AfterFunc(a.delay, func() { a.commit(p) })
	}
}

func (a *Announcer) commit(p Politeness) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	delete(a.timers, p)
	message, ok := a.pending[p]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.pending, p)

	region := a.regions[p]
	region.Text = message
	ann := Announcement{Message: message, Politeness: p, Time: time.Now()}
	a.queue = append(a.queue, ann)
	sink := a.sink
	a.mu.Unlock()

	if a.log != nil {
		a.log.Debug("announced", "politeness", p, "message", message)
	}
	if sink != nil {
		sink(ann)
	}
}

// Region returns the live region for a politeness, or false before its
// first announcement.
func (a *Announcer) Region(p Politeness) (LiveRegion, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.regions[p]
	if !ok {
		return LiveRegion{}, false
	}
	return *r, true
}

// Drain returns all committed announcements since the last call and clears
// them.
func (a *Announcer) Drain() []Announcement {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.queue
	a.queue = nil
	return out
}

// Pending reports whether any announcement is still waiting on its delay.
func (a *Announcer) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.timers) > 0
}

// Close cancels pending timers. Further announcements are dropped.
func (a *Announcer) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	for p, t := range a.timers {
		t.Stop()
		delete(a.timers, p)
	}
	a.pending = make(map[Politeness]string)
}

// ClearedMessage is announced when the active selection is dropped.
const ClearedMessage = "Selection cleared"

// Describe builds the live-region description of an element, like
// "Heading level 3, selected". Titles are left to the element's visible
// label; the announcement names the structural role and selection state.
func Describe(el structure.Element, active bool) string {
	base := el.Kind.Label()
	if el.Kind == structure.KindHeading && el.Heading != nil && el.Heading.Level > 0 {
		base = fmt.Sprintf("Heading level %d", el.Heading.Level)
	}
	if active {
		return base + ", selected"
	}
	return base
}
