package overlay

import (
	"fmt"
	"html"
	"strings"
)

// RenderHTML renders regions plus the current highlight state into an HTML
// fragment. The output is a pure function of its inputs: re-rendering after
// a state change yields the full fragment again rather than patching
// individual nodes.
func RenderHTML(regions []Region, state HighlightState) string {
	var b strings.Builder
	b.WriteString(`<div class="overlay-layer">`)
	for _, r := range regions {
		writeRegion(&b, r, state)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func writeRegion(b *strings.Builder, r Region, state HighlightState) {
	class := "overlay-region"
	active := r.ID == state.ActiveID
	if active {
		class += " is-active"
	}
	if r.ID == state.HoveredID {
		class += " is-hovered"
	}

	label := r.Label
	if r.Title != "" {
		label += ": " + r.Title
	}

	rect := r.Box
	fmt.Fprintf(b,
		`<div class="%s" style="left:%.2fpx;top:%.2fpx;width:%.2fpx;height:%.2fpx" `+
			`data-id="%s" data-kind="%s" role="button" tabindex="0" aria-label="%s" aria-pressed="%t"></div>`,
		class,
		rect.X1, rect.Y1, rect.Width, rect.Height,
		html.EscapeString(r.ID), html.EscapeString(string(r.Kind)),
		html.EscapeString(label), active)
}
