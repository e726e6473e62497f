package textview

import (
	"strings"
	"testing"

	"github.com/dgallion1/structlay/internal/structure"
)

func TestRenderChunks(t *testing.T) {
	chunks := []structure.Chunk{
		{ID: "chunk-0-page-1", Page: 1, Markdown: "## Results\n\nRevenue grew *sharply*."},
		{ID: "chunk-1-page-1", Page: 1, Markdown: "| a | b |\n|---|---|\n| 1 | 2 |"},
	}

	out, err := RenderChunks(chunks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		`<section class="text-segment" data-chunk-id="chunk-0-page-1" data-page="1">`,
		`<section class="text-segment" data-chunk-id="chunk-1-page-1" data-page="1">`,
		"<h2>Results</h2>",
		"<em>sharply</em>",
		"</section>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %s, got:\n%s", want, out)
		}
	}
	if strings.Index(out, "chunk-0-page-1") > strings.Index(out, "chunk-1-page-1") {
		t.Error("expected chunks rendered in input order")
	}
}

func TestRenderChunks_EscapesID(t *testing.T) {
	out, err := RenderChunks([]structure.Chunk{{ID: `ch"oops`, Page: 1, Markdown: "x"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `data-chunk-id="ch&#34;oops"`) {
		t.Errorf("expected escaped id attribute, got:\n%s", out)
	}
}

func TestRenderChunks_Empty(t *testing.T) {
	out, err := RenderChunks(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "" {
		t.Fatalf("expected empty fragment, got %q", out)
	}
}

func TestRenderThenIndexRoundTrip(t *testing.T) {
	chunks := []structure.Chunk{
		{ID: "c1", Page: 1, Markdown: "## Intro\n\nfirst"},
		{ID: "c2", Page: 2, Markdown: "second"},
	}
	fragment, err := RenderChunks(chunks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	segments, err := IndexSegments(fragment)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].ChunkID != "c1" || segments[0].Index != 0 || segments[0].Page != 1 {
		t.Errorf("unexpected first segment: %+v", segments[0])
	}
	if segments[1].ChunkID != "c2" || segments[1].Index != 1 || segments[1].Page != 2 {
		t.Errorf("unexpected second segment: %+v", segments[1])
	}
	if !strings.Contains(segments[0].Text, "Intro") || !strings.Contains(segments[0].Text, "first") {
		t.Errorf("expected segment text, got %q", segments[0].Text)
	}
}
