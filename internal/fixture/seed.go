package fixture

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/dgallion1/structlay/internal/chunker"
	"github.com/dgallion1/structlay/internal/structure"
	pdflib "github.com/ledongthuc/pdf"
)

// Synthesized page geometry: US Letter in points with one-inch margins.
// The pdf library yields plain text only, so element boxes come from
// flowing the text down the page at a fixed line height.
const (
	pageWidth  = 612.0
	pageHeight = 792.0
	pageMargin = 72.0
	lineHeight = 14.0
)

// SeedPDF extracts a PDF into stored page structures and one chunk list
// under docID. Pages that fail text extraction are skipped with a
// warning. It returns the number of pages stored.
func SeedPDF(store *Store, docID, path string, log *slog.Logger) (int, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var chunks []structure.Chunk
	seeded := 0
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Warn("skipping unextractable page", "doc_id", docID, "page", i, "error", err)
			continue
		}

		ps, pageChunks := buildPage(docID, i, text)
		if err := store.PutPage(ps); err != nil {
			return seeded, fmt.Errorf("store page %d: %w", i, err)
		}
		chunks = append(chunks, pageChunks...)
		seeded++
	}

	if err := store.PutChunks(docID, chunks); err != nil {
		return seeded, fmt.Errorf("store chunks: %w", err)
	}
	log.Info("seeded document", "doc_id", docID, "pages", seeded, "chunks", len(chunks))
	return seeded, nil
}

// section is a heading-led run of page text. Line indexes are 0-based
// and endLine is exclusive.
type section struct {
	heading   string
	level     int
	body      []string
	startLine int
	endLine   int
}

// buildPage turns one page of extracted text into a stored structure and
// its chunks. Headings and tables become interactive elements; plain
// body sections become orphan chunks with no overlay counterpart. A
// section too long for one text-pane chunk is split, with the element
// anchored to the first piece and the rest following as orphans.
func buildPage(docID string, page int, text string) (*structure.PageStructure, []structure.Chunk) {
	sections := splitSections(text)

	ps := &structure.PageStructure{
		DocID: docID,
		Page:  page,
		CoordinateSystem: structure.CoordinateSystem{
			Format:    "bbox",
			Origin:    structure.OriginBottomLeft,
			Units:     "points",
			Reference: structure.ReferencePage,
		},
		PageDimensions: &structure.Dimensions{Width: pageWidth, Height: pageHeight},
	}

	var chunks []structure.Chunk
	for idx, sec := range sections {
		pieces := chunker.Split(sec.markdown(), chunker.DefaultConfig())
		if len(pieces) == 0 {
			continue
		}
		chunkID := fmt.Sprintf("%s-p%d-c%d", docID, page, idx+1)
		chunks = append(chunks, structure.Chunk{ID: chunkID, Page: page, Markdown: pieces[0]})
		for j, part := range pieces[1:] {
			chunks = append(chunks, structure.Chunk{
				ID:       fmt.Sprintf("%s-%d", chunkID, j+2),
				Page:     page,
				Markdown: part,
			})
		}

		kind, ok := sec.kind()
		if !ok {
			continue
		}
		el := structure.Element{
			ID:      fmt.Sprintf("%s-p%d-e%d", docID, page, idx+1),
			ChunkID: chunkID,
			Kind:    kind,
			Page:    page,
			BBox:    lineBox(sec.startLine, sec.endLine),
		}
		switch kind {
		case structure.KindHeading:
			el.Heading = &structure.HeadingDetail{Level: sec.level, Text: sec.heading}
		case structure.KindTable:
			el.Table = &structure.TableDetail{Rows: len(sec.body), Caption: sec.heading}
		}
		ps.Elements = append(ps.Elements, el)
	}

	ps.HasStructure = len(ps.Elements) > 0
	ps.Stats = structure.ComputeStats(ps.Elements)
	return ps, chunks
}

// splitSections breaks page text at lines that look like headings. Text
// before the first heading becomes a headingless preamble section.
func splitSections(text string) []section {
	lines := strings.Split(text, "\n")
	var sections []section
	var cur *section

	flush := func(end int) {
		if cur == nil {
			return
		}
		cur.endLine = end
		if cur.heading != "" || len(cur.body) > 0 {
			sections = append(sections, *cur)
		}
		cur = nil
	}

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if looksLikeHeading(trimmed) {
			flush(i)
			cur = &section{heading: trimmed, level: headingLevel(trimmed), startLine: i}
			continue
		}
		if cur == nil {
			cur = &section{startLine: i}
		}
		cur.body = append(cur.body, trimmed)
	}
	flush(len(lines))

	return sections
}

// looksLikeHeading flags short all-caps lines, numbered section lines,
// and common structural prefixes. At least one letter is required so
// bare figures like years do not qualify.
func looksLikeHeading(line string) bool {
	if len(line) < 3 || len(line) > 120 {
		return false
	}
	hasLetter := strings.IndexFunc(line, unicode.IsLetter) >= 0
	if hasLetter && line == strings.ToUpper(line) {
		return true
	}
	if line[0] >= '0' && line[0] <= '9' {
		head := line
		if len(head) > 10 {
			head = head[:10]
		}
		if strings.Contains(head, ".") && hasLetter {
			return true
		}
	}
	lower := strings.ToLower(line)
	for _, prefix := range []string{"section ", "chapter ", "part ", "appendix "} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// headingLevel derives depth from the numbering ("2.1.3" nests three
// deep); unnumbered all-caps lines are top level, the rest second.
func headingLevel(heading string) int {
	first, _, _ := strings.Cut(heading, " ")
	if dots := strings.Count(first, "."); dots > 0 {
		if dots > 6 {
			return 6
		}
		return dots
	}
	if heading == strings.ToUpper(heading) {
		return 1
	}
	return 2
}

func (s section) kind() (structure.Kind, bool) {
	content := strings.Join(s.body, "\n")
	if strings.Count(content, "\t") > 3 || strings.Count(content, "|") > 3 {
		return structure.KindTable, true
	}
	if s.heading != "" {
		return structure.KindHeading, true
	}
	return "", false
}

func (s section) markdown() string {
	var b strings.Builder
	if s.heading != "" {
		b.WriteString(strings.Repeat("#", s.level))
		b.WriteString(" ")
		b.WriteString(s.heading)
	}
	if len(s.body) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.Join(s.body, "\n"))
	}
	return b.String()
}

// lineBox flows a line range into a bottom-left-origin box between the
// page margins, clamping runs that overflow the page.
func lineBox(startLine, endLine int) *structure.BoundingBox {
	maxBottom := pageHeight - pageMargin
	top := pageMargin + float64(startLine)*lineHeight
	bottom := pageMargin + float64(endLine)*lineHeight
	if bottom > maxBottom {
		bottom = maxBottom
	}
	if top > maxBottom-lineHeight {
		top = maxBottom - lineHeight
	}
	if bottom <= top {
		bottom = top + lineHeight
	}
	return &structure.BoundingBox{
		Left:   pageMargin,
		Bottom: pageHeight - bottom,
		Right:  pageWidth - pageMargin,
		Top:    pageHeight - top,
	}
}
