package overlay

import (
	"log/slog"

	"github.com/dgallion1/structlay/internal/geometry"
	"github.com/dgallion1/structlay/internal/structure"
)

// Region is one interactive rectangle of the page overlay, in display
// pixels. ID is the sync identifier shared with the text side: the chunk id
// when the element is linked to a chunk, the element id otherwise. Regions
// keep the element order of the page, which is also the focus order.
type Region struct {
	ID        string             `json:"id"`
	ElementID string             `json:"element_id"`
	Kind      structure.Kind     `json:"kind"`
	Label     string             `json:"label"`
	Title     string             `json:"title,omitempty"`
	Linked    bool               `json:"linked"`
	Box       geometry.ScaledBox `json:"box"`
}

// BuildRegions maps a page's elements to scaled interactive regions.
// Elements without a bounding box are not interactive and are skipped
// quietly; elements whose box fails validation are skipped with a single
// aggregated warning per page. Invalid display dimensions surface as an
// error, since they indicate a caller bug.
func BuildRegions(ps *structure.PageStructure, displayW, displayH float64, opts geometry.ScaleOptions, log *slog.Logger) ([]Region, error) {
	if ps == nil || !ps.HasStructure || len(ps.Elements) == 0 {
		return nil, nil
	}
	origW, origH, ok := ps.OriginalSize()
	if !ok {
		if log != nil {
			log.Warn("page structure has no reference dimensions", "doc_id", ps.DocID, "page", ps.Page)
		}
		return nil, nil
	}

	regions := make([]Region, 0, len(ps.Elements))
	skipped := 0
	var firstErr error
	for _, el := range ps.Elements {
		if el.BBox == nil {
			continue
		}
		rect := ps.CoordinateSystem.ToTopLeft(*el.BBox, origH)
		if err := geometry.ValidateRect(rect, origW, origH); err != nil {
			skipped++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		box, err := geometry.ScaleForDisplay(rect, origW, origH, displayW, displayH, opts)
		if err != nil {
			return nil, err
		}
		id := el.ChunkID
		if id == "" {
			id = el.ID
		}
		regions = append(regions, Region{
			ID:        id,
			ElementID: el.ID,
			Kind:      el.Kind,
			Label:     el.Kind.Label(),
			Title:     el.Title(),
			Linked:    el.ChunkID != "",
			Box:       box,
		})
	}

	if skipped > 0 && log != nil {
		log.Warn("skipped elements with invalid geometry",
			"doc_id", ps.DocID, "page", ps.Page, "skipped", skipped, "first_error", firstErr)
	}
	return regions, nil
}

// HitTest returns the region under a display-space point. When regions
// overlap, the smallest one wins, so nested elements stay reachable.
func HitTest(regions []Region, x, y float64) (Region, bool) {
	var (
		best    Region
		found   bool
		minArea float64
	)
	for _, r := range regions {
		rect := r.Box.Rect()
		if !rect.Contains(x, y) {
			continue
		}
		area := rect.Area()
		if !found || area < minArea {
			best = r
			found = true
			minArea = area
		}
	}
	return best, found
}
