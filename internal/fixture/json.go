package fixture

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgallion1/structlay/internal/structure"
)

// Document is the authored fixture file shape: one document per file,
// carrying its page structures and text-side chunks.
type Document struct {
	DocID  string                     `json:"doc_id"`
	Pages  []*structure.PageStructure `json:"pages"`
	Chunks []structure.Chunk          `json:"chunks"`
}

// SeedJSON loads an authored fixture file into the store. Page identity,
// HasStructure and Stats are derived on load, so hand-written fixtures
// only need elements and geometry. It returns the number of pages stored.
func SeedJSON(store *Store, path string, log *slog.Logger) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read fixture: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("decode fixture: %w", err)
	}
	if doc.DocID == "" {
		return 0, fmt.Errorf("fixture %s: missing doc_id", path)
	}
	if len(doc.Pages) == 0 {
		return 0, fmt.Errorf("fixture %s: no pages", path)
	}

	seeded := 0
	for i, ps := range doc.Pages {
		if ps == nil {
			return seeded, fmt.Errorf("fixture %s: pages[%d] is null", path, i)
		}
		if ps.DocID == "" {
			ps.DocID = doc.DocID
		}
		if ps.DocID != doc.DocID {
			return seeded, fmt.Errorf("fixture %s: pages[%d] belongs to %q, not %q", path, i, ps.DocID, doc.DocID)
		}
		if ps.Page <= 0 {
			ps.Page = i + 1
		}
		ps.HasStructure = len(ps.Elements) > 0
		ps.Stats = structure.ComputeStats(ps.Elements)
		if err := store.PutPage(ps); err != nil {
			return seeded, fmt.Errorf("store page %d: %w", ps.Page, err)
		}
		seeded++
	}

	if err := store.PutChunks(doc.DocID, doc.Chunks); err != nil {
		return seeded, fmt.Errorf("store chunks: %w", err)
	}
	log.Info("seeded document", "doc_id", doc.DocID, "pages", seeded, "chunks", len(doc.Chunks))
	return seeded, nil
}
