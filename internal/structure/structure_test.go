package structure

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/dgallion1/structlay/internal/geometry"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.5
}

func TestToTopLeftFlipsBottomLeftOrigin(t *testing.T) {
	cs := CoordinateSystem{Format: "bbox", Origin: OriginBottomLeft, Units: "points", Reference: ReferencePage}
	// On a 792pt page, top=720 is 72pt below the top edge.
	got := cs.ToTopLeft(BoundingBox{Left: 72, Bottom: 650, Right: 540, Top: 720}, 792)
	want := geometry.Rect{X1: 72, Y1: 72, X2: 540, Y2: 142}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
	if got.Y1 >= got.Y2 {
		t.Errorf("expected Y1 < Y2 after flip, got Y1=%g Y2=%g", got.Y1, got.Y2)
	}
}

func TestToTopLeftPassThrough(t *testing.T) {
	cs := CoordinateSystem{Origin: OriginTopLeft}
	got := cs.ToTopLeft(BoundingBox{Left: 10, Top: 20, Right: 110, Bottom: 80}, 1000)
	want := geometry.Rect{X1: 10, Y1: 20, X2: 110, Y2: 80}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestFlipThenScale(t *testing.T) {
	cs := CoordinateSystem{Origin: OriginBottomLeft, Reference: ReferencePage}
	flipped := cs.ToTopLeft(BoundingBox{Left: 72, Bottom: 650, Right: 540, Top: 720}, 792)

	// 612x792 -> 816x1056 is a uniform 4/3 scale.
	scaled, err := geometry.ScaleForDisplay(flipped, 612, 792, 816, 1056, geometry.DefaultScaleOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(scaled.X1, 96) || !almostEqual(scaled.Y1, 96) ||
		!almostEqual(scaled.X2, 720) || !almostEqual(scaled.Y2, 189.3) {
		t.Errorf("expected {96 96 720 189.3}, got %+v", scaled)
	}
	if !almostEqual(scaled.Width, 624) || !almostEqual(scaled.Height, 93.3) {
		t.Errorf("expected extent 624x93.3, got %gx%g", scaled.Width, scaled.Height)
	}
}

func TestBoundingBoxValid(t *testing.T) {
	tests := []struct {
		name string
		box  BoundingBox
		want bool
	}{
		{"normal", BoundingBox{Left: 10, Bottom: 20, Right: 100, Top: 80}, true},
		{"zero width", BoundingBox{Left: 10, Bottom: 20, Right: 10, Top: 80}, false},
		{"inverted vertical", BoundingBox{Left: 10, Bottom: 80, Right: 100, Top: 20}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.box.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeStats(t *testing.T) {
	box := &BoundingBox{Left: 1, Bottom: 1, Right: 2, Top: 2}
	elements := []Element{
		{ID: "e1", Kind: KindHeading, BBox: box},
		{ID: "e2", Kind: KindHeading},
		{ID: "e3", Kind: KindTable, BBox: box},
		{ID: "e4", Kind: KindPicture, BBox: box},
		{ID: "e5", Kind: KindCodeBlock},
		{ID: "e6", Kind: KindFormula, BBox: box},
	}

	got := ComputeStats(elements)
	want := Stats{Total: 6, Headings: 2, Tables: 1, Pictures: 1, CodeBlocks: 1, Formulas: 1, WithBounds: 4}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestElementTitle(t *testing.T) {
	tests := []struct {
		name string
		el   Element
		want string
	}{
		{"heading text", Element{Kind: KindHeading, Heading: &HeadingDetail{Level: 2, Text: "Results"}}, "Results"},
		{"table caption", Element{Kind: KindTable, Table: &TableDetail{Rows: 3, Cols: 2, Caption: "Latency"}}, "Latency"},
		{"picture caption", Element{Kind: KindPicture, Picture: &PictureDetail{Caption: "Figure 1"}}, "Figure 1"},
		{"untitled", Element{Kind: KindCodeBlock, Code: &CodeDetail{Language: "go"}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.el.Title(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestOriginalSize(t *testing.T) {
	page := &Dimensions{Width: 612, Height: 792}
	image := &Dimensions{Width: 1224, Height: 1584}

	tests := []struct {
		name         string
		ps           PageStructure
		wantW, wantH float64
		wantOK       bool
	}{
		{
			"image reference prefers image dims",
			PageStructure{CoordinateSystem: CoordinateSystem{Reference: ReferenceImage}, PageDimensions: page, ImageDimensions: image},
			1224, 1584, true,
		},
		{
			"page reference prefers page dims",
			PageStructure{CoordinateSystem: CoordinateSystem{Reference: ReferencePage}, PageDimensions: page, ImageDimensions: image},
			612, 792, true,
		},
		{
			"image dims as fallback",
			PageStructure{CoordinateSystem: CoordinateSystem{Reference: ReferencePage}, ImageDimensions: image},
			1224, 1584, true,
		},
		{
			"no dims at all",
			PageStructure{},
			0, 0, false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, ok := tt.ps.OriginalSize()
			if ok != tt.wantOK || w != tt.wantW || h != tt.wantH {
				t.Errorf("OriginalSize() = (%g, %g, %v), want (%g, %g, %v)", w, h, ok, tt.wantW, tt.wantH, tt.wantOK)
			}
		})
	}
}

func TestElementLookup(t *testing.T) {
	ps := PageStructure{Elements: []Element{
		{ID: "el-1", ChunkID: "chunk-0-page-1", Kind: KindHeading},
		{ID: "el-2", ChunkID: "chunk-1-page-1", Kind: KindTable},
	}}

	if el, ok := ps.ElementByID("el-2"); !ok || el.Kind != KindTable {
		t.Errorf("ElementByID(el-2) = (%+v, %v)", el, ok)
	}
	if _, ok := ps.ElementByID("el-9"); ok {
		t.Error("expected miss for unknown id")
	}
	if el, ok := ps.ElementByChunk("chunk-0-page-1"); !ok || el.ID != "el-1" {
		t.Errorf("ElementByChunk = (%+v, %v)", el, ok)
	}
	if _, ok := ps.ElementByChunk("chunk-7-page-2"); ok {
		t.Error("expected miss for unknown chunk")
	}
}

func TestPageStructureDecode(t *testing.T) {
	body := `{
		"doc_id": "doc-1",
		"page": 3,
		"has_structure": true,
		"elements": [
			{"id": "el-1", "chunk_id": "chunk-0-page-3", "type": "code_block", "page": 3,
			 "bbox": {"left": 72, "bottom": 650, "right": 540, "top": 720},
			 "code": {"language": "python", "lines": 12}}
		],
		"coordinate_system": {"format": "bbox", "origin": "bottom-left", "units": "points", "reference": "page"},
		"page_dimensions": {"width": 612, "height": 792}
	}`

	var ps PageStructure
	if err := json.Unmarshal([]byte(body), &ps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ps.Page != 3 || !ps.HasStructure || len(ps.Elements) != 1 {
		t.Fatalf("unexpected decode result: %+v", ps)
	}
	el := ps.Elements[0]
	if el.Kind != KindCodeBlock {
		t.Errorf("expected kind %q, got %q", KindCodeBlock, el.Kind)
	}
	if el.Code == nil || el.Code.Language != "python" {
		t.Errorf("expected code detail to survive decode, got %+v", el.Code)
	}
	if ps.CoordinateSystem.Origin != OriginBottomLeft {
		t.Errorf("expected origin %q, got %q", OriginBottomLeft, ps.CoordinateSystem.Origin)
	}
	if w, h, ok := ps.OriginalSize(); !ok || w != 612 || h != 792 {
		t.Errorf("OriginalSize() = (%g, %g, %v)", w, h, ok)
	}
}
