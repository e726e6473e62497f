// Package textview renders document chunks into the text pane and indexes
// the result so the highlight controller can resolve text-side
// counterparts. Each chunk becomes a <section> carrying a stable
// data-chunk-id anchor, the hook both hover sync and counterpart
// scrolling rely on.
package textview

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/dgallion1/structlay/internal/structure"
)

// RenderChunks renders chunk markdown to an HTML fragment, one section
// per chunk in input order.
func RenderChunks(chunks []structure.Chunk) (string, error) {
	if len(chunks) == 0 {
		return "", nil
	}

	md := goldmark.New()
	var b strings.Builder
	for _, chunk := range chunks {
		var body bytes.Buffer
		if err := md.Convert([]byte(chunk.Markdown), &body); err != nil {
			return "", fmt.Errorf("render chunk %s: %w", chunk.ID, err)
		}
		fmt.Fprintf(&b, `<section class="text-segment" data-chunk-id="%s" data-page="%d">`,
			html.EscapeString(chunk.ID), chunk.Page)
		b.Write(body.Bytes())
		b.WriteString("</section>\n")
	}
	return b.String(), nil
}
