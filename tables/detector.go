package tables

import (
	"regexp"
	"sort"
	"strings"

	"github.com/brunobiangulo/regdocs/parser"
)

// Geometric thresholds, in PDF units (1/72 inch).
const (
	// Blocks whose top edges differ by at most this much share a row.
	rowTolerance = 5.0

	// A data row may drift this far from the header's left/right edges
	// before the table is considered ended.
	edgeDrift = 50.0

	// Regions shorter than this are discarded as stray header matches.
	minTableHeight = 20.0

	// Context blocks must sit within this distance above the table.
	contextDistance = 100.0

	// DefaultContextLines is how many nearby blocks TableContext keeps.
	DefaultContextLines = 5
)

// Header keyword sets per table type, with the minimum match count that
// qualifies a row as that table's header.
var (
	registerMapHeaders = keywordSet("address", "offset", "register", "name", "width", "reset", "access", "description")
	bitfieldHeaders    = keywordSet("field", "bit", "bits", "range", "type", "access", "reset", "description")
	memoryMapHeaders   = keywordSet("peripheral", "base", "address", "size", "description")
)

const (
	registerMapThreshold = 3
	bitfieldThreshold    = 3
	memoryMapThreshold   = 2
)

var punctRe = regexp.MustCompile(`[^\w\s]`)

// Config controls table detection.
type Config struct {
	// MinColumns is retained for callers that tune detection; the
	// current geometry checks derive their column requirements from
	// each header row instead.
	MinColumns int
}

// Detector finds register tables on parsed pages.
type Detector struct {
	cfg Config
}

// New returns a Detector. Zero-value fields get defaults.
func New(cfg Config) *Detector {
	if cfg.MinColumns == 0 {
		cfg.MinColumns = 3
	}
	return &Detector{cfg: cfg}
}

// DetectRegisterTables scans a page for rows that look like register
// table headers and extends each into a full table region.
func (d *Detector) DetectRegisterTables(page parser.Page) []TableRegion {
	var regions []TableRegion

	rows := GroupIntoRows(page.Blocks)
	for i, row := range rows {
		keywords := headerKeywords(row)
		if !isLikelyHeader(keywords) {
			continue
		}
		if region, ok := extendRegion(page, rows, i); ok {
			regions = append(regions, region)
		}
	}
	return regions
}

// GroupIntoRows buckets blocks into horizontal rows: blocks sorted by
// top edge, grouped while within rowTolerance of the row's first block,
// each row ordered left to right.
func GroupIntoRows(blocks []parser.TextBlock) [][]parser.TextBlock {
	if len(blocks) == 0 {
		return nil
	}

	sorted := make([]parser.TextBlock, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y0 < sorted[j].Y0 })

	var rows [][]parser.TextBlock
	current := []parser.TextBlock{sorted[0]}
	currentY := sorted[0].Y0

	for _, b := range sorted[1:] {
		if b.Y0-currentY <= rowTolerance {
			current = append(current, b)
		} else {
			rows = append(rows, sortRow(current))
			current = []parser.TextBlock{b}
			currentY = b.Y0
		}
	}
	return append(rows, sortRow(current))
}

func sortRow(row []parser.TextBlock) []parser.TextBlock {
	sort.SliceStable(row, func(i, j int) bool { return row[i].X0 < row[j].X0 })
	return row
}

// headerKeywords lowercases each cell and strips punctuation, yielding
// the set of candidate column names in a row.
func headerKeywords(row []parser.TextBlock) map[string]bool {
	keywords := make(map[string]bool, len(row))
	for _, b := range row {
		text := strings.ToLower(strings.TrimSpace(b.Text))
		text = punctRe.ReplaceAllString(text, "")
		keywords[text] = true
	}
	return keywords
}

func isLikelyHeader(keywords map[string]bool) bool {
	if overlap(keywords, registerMapHeaders) >= registerMapThreshold {
		return true
	}
	if overlap(keywords, bitfieldHeaders) >= bitfieldThreshold {
		return true
	}
	return overlap(keywords, memoryMapHeaders) >= memoryMapThreshold
}

// classify picks the type with the highest keyword overlap. Ties break
// toward register map, then bitfield, then memory map.
func classify(keywords map[string]bool) TableType {
	registerScore := overlap(keywords, registerMapHeaders)
	bitfieldScore := overlap(keywords, bitfieldHeaders)
	memoryScore := overlap(keywords, memoryMapHeaders)

	best := registerScore
	if bitfieldScore > best {
		best = bitfieldScore
	}
	if memoryScore > best {
		best = memoryScore
	}

	switch {
	case best == 0:
		return Other
	case registerScore == best:
		return RegisterMap
	case bitfieldScore == best:
		return BitfieldDefinition
	default:
		return MemoryMap
	}
}

// extendRegion grows a region downward from the header row, stopping at
// the first row that has too few columns or drifts past the header's
// horizontal extent.
func extendRegion(page parser.Page, rows [][]parser.TextBlock, headerIdx int) (TableRegion, bool) {
	header := rows[headerIdx]
	keywords := headerKeywords(header)

	x0 := header[0].X0
	x1 := header[0].X1
	y0 := header[0].Y0
	for _, b := range header[1:] {
		if b.X0 < x0 {
			x0 = b.X0
		}
		if b.X1 > x1 {
			x1 = b.X1
		}
		if b.Y0 < y0 {
			y0 = b.Y0
		}
	}

	numCols := len(header)
	minRowLen := numCols - 2
	if minRowLen < 2 {
		minRowLen = 2
	}

	y1 := y0
	for _, row := range rows[headerIdx+1:] {
		if len(row) < minRowLen {
			break
		}

		rowX0 := row[0].X0
		rowX1 := row[0].X1
		rowY1 := row[0].Y1
		for _, b := range row[1:] {
			if b.X0 < rowX0 {
				rowX0 = b.X0
			}
			if b.X1 > rowX1 {
				rowX1 = b.X1
			}
			if b.Y1 > rowY1 {
				rowY1 = b.Y1
			}
		}

		if abs(rowX0-x0) > edgeDrift || abs(rowX1-x1) > edgeDrift {
			break
		}
		if rowY1 > y1 {
			y1 = rowY1
		}
	}

	if y1-y0 < minTableHeight {
		return TableRegion{}, false
	}

	return TableRegion{
		PageNum:        page.PageNum,
		X0:             x0,
		Y0:             y0,
		X1:             x1,
		Y1:             y1,
		Type:           classify(keywords),
		HeaderKeywords: keywords,
	}, true
}

// TableContext gathers the text immediately above a table, typically
// the heading naming the peripheral or register the table describes.
// It keeps the contextLines blocks closest to the table, top to bottom.
func (d *Detector) TableContext(page parser.Page, region TableRegion, contextLines int) string {
	var above []parser.TextBlock
	for _, b := range page.Blocks {
		if b.Y1 < region.Y0 && region.Y0-b.Y1 < contextDistance {
			above = append(above, b)
		}
	}

	sort.SliceStable(above, func(i, j int) bool { return above[i].Y0 < above[j].Y0 })
	if len(above) > contextLines {
		above = above[len(above)-contextLines:]
	}

	parts := make([]string, len(above))
	for i, b := range above {
		parts[i] = b.Text
	}
	return strings.Join(parts, " ")
}

func keywordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

func overlap(a, b map[string]bool) int {
	n := 0
	for k := range a {
		if b[k] {
			n++
		}
	}
	return n
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
