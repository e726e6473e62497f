package a11y

import (
	"sync"

	"github.com/dgallion1/structlay/internal/overlay"
)

// Key values follow the KeyboardEvent.key convention of the hosting UI.
type Key string

const (
	KeyEnter  Key = "Enter"
	KeySpace  Key = " "
	KeyEscape Key = "Escape"
	KeyTab    Key = "Tab"
)

// FocusOrder lists region ids in document order, which is also the
// sequential focus order.
func FocusOrder(regions []overlay.Region) []string {
	ids := make([]string, len(regions))
	for i, r := range regions {
		ids[i] = r.ID
	}
	return ids
}

// FocusRing tracks which region holds keyboard focus. Sequential movement
// stops at the ends, so focus can leave the overlay the way Tab normally
// would; wrapping is the trap's job.
type FocusRing struct {
	mu    sync.Mutex
	ids   []string
	index int
}

func NewFocusRing(ids []string) *FocusRing {
	return &FocusRing{ids: append([]string(nil), ids...), index: -1}
}

// SetIDs replaces the ring contents, keeping focus on the current id when
// it survives the rebuild.
func (f *FocusRing) SetIDs(ids []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var current string
	if f.index >= 0 && f.index < len(f.ids) {
		current = f.ids[f.index]
	}
	f.ids = append([]string(nil), ids...)
	f.index = -1
	for i, id := range f.ids {
		if id == current {
			f.index = i
			break
		}
	}
}

// Current returns the focused id, if any.
func (f *FocusRing) Current() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index < 0 || f.index >= len(f.ids) {
		return "", false
	}
	return f.ids[f.index], true
}

// Focus moves focus directly to id, as a pointer click would.
func (f *FocusRing) Focus(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, known := range f.ids {
		if known == id {
			f.index = i
			return true
		}
	}
	return false
}

// Blur drops focus without selecting anything else.
func (f *FocusRing) Blur() {
	f.mu.Lock()
	f.index = -1
	f.mu.Unlock()
}

// Next moves to the following region. At the end it reports false and
// blurs, handing focus back to the host document.
func (f *FocusRing) Next() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ids) == 0 {
		return "", false
	}
	if f.index < 0 {
		f.index = 0
		return f.ids[0], true
	}
	if f.index >= len(f.ids)-1 {
		f.index = -1
		return "", false
	}
	f.index++
	return f.ids[f.index], true
}

// Prev moves to the preceding region. Before the first it reports false
// and blurs.
func (f *FocusRing) Prev() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ids) == 0 {
		return "", false
	}
	if f.index < 0 {
		f.index = len(f.ids) - 1
		return f.ids[f.index], true
	}
	if f.index == 0 {
		f.index = -1
		return "", false
	}
	f.index--
	return f.ids[f.index], true
}

func (f *FocusRing) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ids)
}

// Keyboard maps key presses onto the focus ring and the highlight
// controller callbacks.
type Keyboard struct {
	ring     *FocusRing
	activate func(id string)
	clear    func()
}

func NewKeyboard(ring *FocusRing, activate func(id string), clear func()) *Keyboard {
	return &Keyboard{ring: ring, activate: activate, clear: clear}
}

// HandleKey applies one key press and reports whether it was consumed.
// Enter and Space activate the focused region exactly like a pointer
// click; Escape clears the active selection without moving focus; Tab and
// Shift-Tab walk the ring until focus leaves it.
func (k *Keyboard) HandleKey(key Key, shift bool) bool {
	switch key {
	case KeyTab:
		if shift {
			_, ok := k.ring.Prev()
			return ok
		}
		_, ok := k.ring.Next()
		return ok
	case KeyEnter, KeySpace, Key("Space"):
		id, ok := k.ring.Current()
		if !ok {
			return false
		}
		if k.activate != nil {
			k.activate(id)
		}
		return true
	case KeyEscape:
		if k.clear != nil {
			k.clear()
		}
		return true
	default:
		return false
	}
}

// FocusTrap cycles focus inside a fixed set of ids for modal-like use and
// remembers where focus should land when the trap releases.
type FocusTrap struct {
	mu      sync.Mutex
	ids     []string
	index   int
	restore string
}

func NewFocusTrap(ids []string, restoreTo string) *FocusTrap {
	return &FocusTrap{ids: append([]string(nil), ids...), index: -1, restore: restoreTo}
}

// First focuses the trap's first id, the place focus lands when the trap
// engages.
func (t *FocusTrap) First() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.ids) == 0 {
		return "", false
	}
	t.index = 0
	return t.ids[0], true
}

// Next advances with wraparound.
func (t *FocusTrap) Next() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.ids) == 0 {
		return "", false
	}
	if t.index < 0 {
		t.index = 0
	} else {
		t.index = (t.index + 1) % len(t.ids)
	}
	return t.ids[t.index], true
}

// Prev moves backwards with wraparound.
func (t *FocusTrap) Prev() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.ids) == 0 {
		return "", false
	}
	if t.index < 0 {
		t.index = len(t.ids) - 1
	} else {
		t.index = (t.index - 1 + len(t.ids)) % len(t.ids)
	}
	return t.ids[t.index], true
}

// Release disengages the trap and returns the id focus should restore to.
func (t *FocusTrap) Release() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.index = -1
	return t.restore
}
