package structure

import (
	"github.com/dgallion1/structlay/internal/geometry"
)

// Kind classifies a structural element on a page.
type Kind string

const (
	KindHeading   Kind = "heading"
	KindTable     Kind = "table"
	KindPicture   Kind = "picture"
	KindCodeBlock Kind = "code_block"
	KindFormula   Kind = "formula"
)

// Label returns a human-readable name for the kind.
func (k Kind) Label() string {
	switch k {
	case KindHeading:
		return "Heading"
	case KindTable:
		return "Table"
	case KindPicture:
		return "Picture"
	case KindCodeBlock:
		return "Code block"
	case KindFormula:
		return "Formula"
	default:
		return "Element"
	}
}

// BoundingBox is an element rectangle in source coordinates: document
// points with a bottom-left origin unless the page's CoordinateSystem
// says otherwise.
type BoundingBox struct {
	Left   float64 `json:"left"`
	Bottom float64 `json:"bottom"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
}

// Valid reports whether the box has positive extent in both axes.
func (b BoundingBox) Valid() bool {
	return b.Left < b.Right && b.Bottom < b.Top
}

// Coordinate system origins understood by ToTopLeft.
const (
	OriginBottomLeft = "bottom-left"
	OriginTopLeft    = "top-left"
)

// Reference frames a coordinate system can be expressed against.
const (
	ReferencePage  = "page"
	ReferenceImage = "image"
)

// CoordinateSystem describes how bounding boxes on a page are expressed.
// Callers must honor it before handing boxes to the geometry package.
type CoordinateSystem struct {
	Format    string `json:"format"`    // e.g. "bbox"
	Origin    string `json:"origin"`    // "bottom-left" or "top-left"
	Units     string `json:"units"`     // e.g. "points", "pixels"
	Reference string `json:"reference"` // "page" or "image"
}

// ToTopLeft converts a source box into a top-left-origin rectangle in the
// same units. For bottom-left systems this applies the Y flip
// (screenY = totalHeight - sourceY); the geometry package itself never
// flips, it only rescales.
func (cs CoordinateSystem) ToTopLeft(b BoundingBox, totalHeight float64) geometry.Rect {
	if cs.Origin == OriginTopLeft {
		return geometry.Rect{X1: b.Left, Y1: b.Top, X2: b.Right, Y2: b.Bottom}
	}
	return geometry.Rect{
		X1: b.Left,
		Y1: totalHeight - b.Top,
		X2: b.Right,
		Y2: totalHeight - b.Bottom,
	}
}

// HeadingDetail carries heading-specific attributes.
type HeadingDetail struct {
	Level       int      `json:"level"` // 1-6
	Text        string   `json:"text"`
	SectionPath []string `json:"section_path,omitempty"` // e.g. ["2", "2.1"]
}

// TableDetail carries table-specific attributes.
type TableDetail struct {
	Rows    int    `json:"rows"`
	Cols    int    `json:"cols"`
	Caption string `json:"caption,omitempty"`
}

// PictureDetail carries picture-specific attributes.
type PictureDetail struct {
	Class      string  `json:"class,omitempty"` // e.g. "chart", "photo", "diagram"
	Confidence float64 `json:"confidence,omitempty"`
	Caption    string  `json:"caption,omitempty"`
}

// CodeDetail carries code-block-specific attributes.
type CodeDetail struct {
	Language string `json:"language,omitempty"`
	Lines    int    `json:"lines,omitempty"`
}

// FormulaDetail carries formula-specific attributes.
type FormulaDetail struct {
	Latex string `json:"latex,omitempty"`
	Text  string `json:"text,omitempty"`
}

// Element is one classified region of a document page. Exactly one of the
// detail pointers matching Kind is expected to be set; the others stay nil.
type Element struct {
	ID      string       `json:"id"`
	ChunkID string       `json:"chunk_id,omitempty"` // text chunk this element corresponds to
	Kind    Kind         `json:"type"`
	Page    int          `json:"page"` // 1-indexed
	BBox    *BoundingBox `json:"bbox,omitempty"` // nil when extraction produced no region

	Heading *HeadingDetail `json:"heading,omitempty"`
	Table   *TableDetail   `json:"table,omitempty"`
	Picture *PictureDetail `json:"picture,omitempty"`
	Code    *CodeDetail    `json:"code,omitempty"`
	Formula *FormulaDetail `json:"formula,omitempty"`
}

// Title returns the most descriptive short text available for the element.
func (e Element) Title() string {
	switch {
	case e.Heading != nil && e.Heading.Text != "":
		return e.Heading.Text
	case e.Table != nil && e.Table.Caption != "":
		return e.Table.Caption
	case e.Picture != nil && e.Picture.Caption != "":
		return e.Picture.Caption
	case e.Formula != nil && e.Formula.Text != "":
		return e.Formula.Text
	}
	return ""
}

/// Dimensions is a width/height pair. Units depend on context: points for
// page dimensions, pixels for image dimensions.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Stats summarizes the elements found on a page.
type Stats struct {
	Total      int `json:"total"`
	Headings   int `json:"headings"`
	Tables     int `json:"tables"`
	Pictures   int `json:"pictures"`
	CodeBlocks int `json:"code_blocks"`
	Formulas   int `json:"formulas"`
	WithBounds int `json:"with_bounds"`
}

// ComputeStats tallies elements by kind.
func ComputeStats(elements []Element) Stats {
	var s Stats
	s.Total = len(elements)
	for _, e := range elements {
		switch e.Kind {
		case KindHeading:
			s.Headings++
		case KindTable:
			s.Tables++
		case KindPicture:
			s.Pictures++
		case KindCodeBlock:
			s.CodeBlocks++
		case KindFormula:
			s.Formulas++
		}
		if e.BBox != nil {
			s.WithBounds++
		}
	}
	return s
}

// PageStructure aggregates the structural metadata for one (document, page)
// pair. Instances are immutable once cached; a re-processed document
// replaces them through cache invalidation, never in place.
type PageStructure struct {
	DocID            string           `json:"doc_id"`
	Page             int              `json:"page"` // 1-indexed
	HasStructure     bool             `json:"has_structure"`
	Elements         []Element        `json:"elements"`
	Stats            Stats            `json:"stats"`
	CoordinateSystem CoordinateSystem `json:"coordinate_system"`

	// PageDimensions is the page size in source units (typically points).
	PageDimensions *Dimensions `json:"page_dimensions,omitempty"`

	// ImageDimensions is the pixel size of the rendered page image from the
	// last successful extraction, when known.
	ImageDimensions *Dimensions `json:"image_dimensions,omitempty"`
}

// OriginalSize returns the reference frame boxes are expressed in, used as
// the "original" size when rescaling to a display size. Image dimensions
// win when the coordinate system references the image; otherwise the page
// dimensions apply.
func (p *PageStructure) OriginalSize() (w, h float64, ok bool) {
	if p.CoordinateSystem.Reference == ReferenceImage && p.ImageDimensions != nil {
		return p.ImageDimensions.Width, p.ImageDimensions.Height, true
	}
	if p.PageDimensions != nil {
		return p.PageDimensions.Width, p.PageDimensions.Height, true
	}
	if p.ImageDimensions != nil {
		return p.ImageDimensions.Width, p.ImageDimensions.Height, true
	}
	return 0, 0, false
}

// ElementByID finds an element by its identifier.
func (p *PageStructure) ElementByID(id string) (Element, bool) {
	for _, e := range p.Elements {
		if e.ID == id {
			return e, true
		}
	}
	return Element{}, false
}

// ElementByChunk finds the element backing a text chunk.
func (p *PageStructure) ElementByChunk(chunkID string) (Element, bool) {
	for _, e := range p.Elements {
		if e.ChunkID == chunkID {
			return e, true
		}
	}
	return Element{}, false
}

// Chunk is a text segment of the parallel text representation. The overlay
// engine only consumes chunks (ids plus markdown content supplied by the
// host); producing them is the extraction pipeline's job.
type Chunk struct {
	ID       string `json:"id"`
	Page     int    `json:"page,omitempty"`
	Markdown string `json:"markdown"`
}
