package textview

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Segment is one chunk's position in the rendered text pane.
type Segment struct {
	ChunkID string `json:"chunk_id"`
	Page    int    `json:"page,omitempty"`
	Index   int    `json:"index"`
	Text    string `json:"text,omitempty"`
}

// IndexSegments walks an HTML fragment and returns, in document order, the
// nodes carrying a data-chunk-id anchor. The fragment does not have to be
// one RenderChunks produced; any host markup with the anchors indexes the
// same way.
func IndexSegments(fragment string) ([]Segment, error) {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("parse text fragment: %w", err)
	}

	var segments []Segment
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if id, ok := attr(n, "data-chunk-id"); ok && id != "" {
				seg := Segment{ChunkID: id, Index: len(segments), Text: textContent(n)}
				if p, ok := attr(n, "data-page"); ok {
					seg.Page, _ = strconv.Atoi(p)
				}
				segments = append(segments, seg)
				return // Nested anchors inside a segment belong to it.
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return segments, nil
}

// SegmentMap keys segments by chunk id. The first occurrence wins when ids
// repeat.
func SegmentMap(segments []Segment) map[string]Segment {
	m := make(map[string]Segment, len(segments))
	for _, s := range segments {
		if _, ok := m[s.ChunkID]; !ok {
			m[s.ChunkID] = s
		}
	}
	return m
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}
