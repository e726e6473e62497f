package textview

import "testing"

func TestIndexSegments_HostMarkup(t *testing.T) {
	fragment := `
<div class="prose">
  <p>lead-in</p>
  <div data-chunk-id="c1" data-page="3"><p>alpha</p></div>
  <aside>ignored</aside>
  <span data-chunk-id="c2">beta</span>
</div>`

	segments, err := IndexSegments(fragment)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d: %+v", len(segments), segments)
	}
	if segments[0].ChunkID != "c1" || segments[0].Page != 3 || segments[0].Text != "alpha" {
		t.Errorf("unexpected segment: %+v", segments[0])
	}
	if segments[1].ChunkID != "c2" || segments[1].Page != 0 || segments[1].Text != "beta" {
		t.Errorf("unexpected segment: %+v", segments[1])
	}
}

func TestIndexSegments_NestedAnchorBelongsToOuter(t *testing.T) {
	fragment := `<div data-chunk-id="outer"><div data-chunk-id="inner">x</div></div>`
	segments, err := IndexSegments(fragment)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segments) != 1 || segments[0].ChunkID != "outer" {
		t.Fatalf("expected only the outer segment, got %+v", segments)
	}
}

func TestIndexSegments_MalformedHTML(t *testing.T) {
	segments, err := IndexSegments(`<section data-chunk-id="c1">unclosed`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segments) != 1 || segments[0].ChunkID != "c1" {
		t.Fatalf("expected lenient parse to find the segment, got %+v", segments)
	}
}

func TestIndexSegments_NoAnchors(t *testing.T) {
	segments, err := IndexSegments(`<p>plain</p>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segments) != 0 {
		t.Fatalf("expected no segments, got %+v", segments)
	}
}

func TestSegmentMap(t *testing.T) {
	segments := []Segment{
		{ChunkID: "c1", Index: 0},
		{ChunkID: "c2", Index: 1},
		{ChunkID: "c1", Index: 2},
	}
	m := SegmentMap(segments)
	if len(m) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(m))
	}
	if m["c1"].Index != 0 {
		t.Errorf("expected first occurrence to win, got %+v", m["c1"])
	}
}
