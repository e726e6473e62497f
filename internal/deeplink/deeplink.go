// Package deeplink bridges a URL query parameter to the highlight
// controller, in both directions: it reads the initial activation target
// from the URL on mount and rewrites the parameter when the selection
// changes.
package deeplink

import (
	"log/slog"
	"net/url"
	"strings"
	"sync"
)

// DefaultParam is the query parameter carrying the target identifier.
const DefaultParam = "chunk"

// ActivateFunc is the caller-supplied navigation callback. Errors and
// panics are logged by the navigator and never propagate.
type ActivateFunc func(id string) error

// Config adjusts the navigator. Zero value: parameter "chunk", no URL
// rewriting by default.
type Config struct {
	// Param is the query parameter name. Empty means DefaultParam.
	Param string
	// UpdateURL is the default for Navigate. NavigateTo overrides it per
	// call.
	UpdateURL bool
}

// Parse extracts the target identifier from rawURL's query. The second
// return reports whether the parameter was present at all; the identifier
// is trimmed, so a whitespace-only value comes back present but empty.
func Parse(rawURL, param string) (string, bool) {
	if param == "" {
		param = DefaultParam
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	values := u.Query()
	if _, ok := values[param]; !ok {
		return "", false
	}
	return strings.TrimSpace(values.Get(param)), true
}

// Navigator owns the session URL and drives the initial activation.
type Navigator struct {
	mu        sync.Mutex
	param     string
	updateURL bool
	current   *url.URL
	mounted   bool
	activate  ActivateFunc
	log       *slog.Logger
}

func New(activate ActivateFunc, cfg Config, log *slog.Logger) *Navigator {
	param := cfg.Param
	if param == "" {
		param = DefaultParam
	}
	return &Navigator{
		param:     param,
		updateURL: cfg.UpdateURL,
		current:   &url.URL{},
		activate:  activate,
		log:       log,
	}
}

// Mount reads rawURL once and, when it carries a non-blank target, fires
// the activation callback. Repeated calls are no-ops, so re-renders never
// re-activate. It returns the target that fired, or "".
func (n *Navigator) Mount(rawURL string) string {
	n.mu.Lock()
	if n.mounted {
		n.mu.Unlock()
		return ""
	}
	n.mounted = true

	u, err := url.Parse(rawURL)
	if err != nil {
		n.mu.Unlock()
		n.log.Warn("unparseable mount url", "url", rawURL, "error", err)
		return ""
	}
	n.current = u
	n.mu.Unlock()

	target, present := Parse(rawURL, n.param)
	if !present {
		return ""
	}
	if target == "" {
		n.log.Warn("ignoring blank deep link target", "param", n.param)
		return ""
	}
	n.fire(target)
	return target
}

// Mounted reports whether Mount already consumed the URL.
func (n *Navigator) Mounted() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.mounted
}

// Navigate activates id using the configured URL-update default.
func (n *Navigator) Navigate(id string) {
	n.NavigateTo(id, n.updateURL)
}

// NavigateTo activates id. When updateURL is set, only the target query
// parameter of the session URL is rewritten; path, host, and the other
// parameters stay as they were. A blank id is rejected and logged.
func (n *Navigator) NavigateTo(id string, updateURL bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		n.log.Warn("ignoring blank navigation target", "param", n.param)
		return
	}

	n.fire(id)

	if !updateURL {
		return
	}
	n.mu.Lock()
	values := n.current.Query()
	values.Set(n.param, id)
	n.current.RawQuery = values.Encode()
	n.mu.Unlock()
}

// Record rewrites the target parameter to id without firing the
// activation callback, for selections that already happened inside the
// view and only need reflecting in the URL.
func (n *Navigator) Record(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	n.mu.Lock()
	values := n.current.Query()
	values.Set(n.param, id)
	n.current.RawQuery = values.Encode()
	n.mu.Unlock()
}

// URL returns the current session URL.
func (n *Navigator) URL() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current.String()
}

func (n *Navigator) fire(id string) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Error("navigation callback panic", "target", id, "panic", r)
		}
	}()
	if err := n.activate(id); err != nil {
		n.log.Error("navigation callback failed", "target", id, "error", err)
	}
}
