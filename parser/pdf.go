package parser

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	// Baseline distance within which glyphs belong to the same line.
	lineTolerance = 2.0

	// Horizontal gap, in em units, below which adjacent glyphs are
	// merged into the same block. Table columns sit further apart.
	blockGapEm = 1.0

	// Gap, in em units, above which a space is inserted between merged
	// glyphs.
	wordGapEm = 0.2

	// US Letter height, used when a page carries no usable MediaBox.
	defaultPageHeight = 792.0
)

// PDF is an open PDF document.
type PDF struct {
	f *os.File
	r *pdf.Reader
}

// Open opens the PDF at path.
func Open(path string) (*PDF, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	return &PDF{f: f, r: r}, nil
}

// Close releases the underlying file.
func (d *PDF) Close() error { return d.f.Close() }

// NumPages returns the page count.
func (d *PDF) NumPages() int { return d.r.NumPage() }

// Pages extracts every page with positioned text blocks and raw text.
// Pages that fail to decode are skipped rather than failing the whole
// document.
func (d *PDF) Pages() ([]Page, error) {
	total := d.r.NumPage()
	pages := make([]Page, 0, total)

	for i := 1; i <= total; i++ {
		page := d.r.Page(i)
		if page.V.IsNull() {
			continue
		}

		width, height := pageSize(page)
		blocks := extractBlocks(page, height, i-1)

		raw, err := page.GetPlainText(nil)
		if err != nil {
			raw = ""
		}

		pages = append(pages, Page{
			PageNum: i - 1,
			Width:   width,
			Height:  height,
			Blocks:  blocks,
			RawText: raw,
		})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no readable pages in document")
	}
	return pages, nil
}

// pageSize reads the MediaBox, falling back to US Letter.
func pageSize(page pdf.Page) (width, height float64) {
	width, height = 612.0, defaultPageHeight
	box := page.V.Key("MediaBox")
	if box.Kind() != pdf.Array || box.Len() != 4 {
		return width, height
	}
	x0 := box.Index(0).Float64()
	y0 := box.Index(1).Float64()
	x1 := box.Index(2).Float64()
	y1 := box.Index(3).Float64()
	if x1-x0 > 0 && y1-y0 > 0 {
		width, height = x1-x0, y1-y0
	}
	return width, height
}

// extractBlocks merges the page's glyphs into positioned text blocks.
// Glyph coordinates come in bottom-up PDF space; blocks are emitted
// top-down so that Y0 grows toward the bottom of the page.
func extractBlocks(page pdf.Page, pageHeight float64, pageNum int) []TextBlock {
	content := page.Content()
	texts := make([]pdf.Text, 0, len(content.Text))
	for _, t := range content.Text {
		if strings.TrimSpace(t.S) != "" {
			texts = append(texts, t)
		}
	}
	if len(texts) == 0 {
		return nil
	}

	var blocks []TextBlock
	for _, line := range groupIntoLines(texts) {
		sort.Slice(line, func(i, j int) bool { return line[i].X < line[j].X })
		blocks = append(blocks, mergeLine(line, pageHeight, pageNum)...)
	}
	return blocks
}

// groupIntoLines buckets glyphs by baseline.
func groupIntoLines(texts []pdf.Text) [][]pdf.Text {
	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Y > sorted[j].Y })

	var lines [][]pdf.Text
	current := []pdf.Text{sorted[0]}
	currentY := sorted[0].Y

	for _, t := range sorted[1:] {
		if currentY-t.Y <= lineTolerance {
			current = append(current, t)
		} else {
			lines = append(lines, current)
			current = []pdf.Text{t}
			currentY = t.Y
		}
	}
	return append(lines, current)
}

// mergeLine joins adjacent glyphs on one line into blocks, breaking
// where the horizontal gap exceeds the block threshold.
func mergeLine(line []pdf.Text, pageHeight float64, pageNum int) []TextBlock {
	var blocks []TextBlock
	var cur *TextBlock
	var sb strings.Builder
	var lastEnd float64

	flush := func() {
		if cur != nil {
			cur.Text = strings.TrimSpace(sb.String())
			if cur.Text != "" {
				blocks = append(blocks, *cur)
			}
		}
		cur = nil
		sb.Reset()
	}

	for _, t := range line {
		em := t.FontSize
		if em <= 0 {
			em = 10
		}
		if cur == nil || t.X-lastEnd > blockGapEm*em {
			flush()
			cur = &TextBlock{
				X0:       t.X,
				X1:       t.X + t.W,
				Y0:       pageHeight - t.Y - t.FontSize,
				Y1:       pageHeight - t.Y,
				FontSize: t.FontSize,
				FontName: t.Font,
				PageNum:  pageNum,
			}
			sb.WriteString(t.S)
		} else {
			if t.X-lastEnd > wordGapEm*em {
				sb.WriteString(" ")
			}
			sb.WriteString(t.S)
			if t.X+t.W > cur.X1 {
				cur.X1 = t.X + t.W
			}
			if top := pageHeight - t.Y - t.FontSize; top < cur.Y0 {
				cur.Y0 = top
			}
			if bottom := pageHeight - t.Y; bottom > cur.Y1 {
				cur.Y1 = bottom
			}
		}
		lastEnd = t.X + t.W
	}
	flush()
	return blocks
}
