package tables

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/brunobiangulo/regdocs/parser"
)

var (
	widthRe      = regexp.MustCompile(`(\d+)`)
	bitRangeRe   = regexp.MustCompile(`^(\d+):(\d+)`)
	singleBitRe  = regexp.MustCompile(`^(\d+)$`)
	bitStripRe   = regexp.MustCompile(`[\[\]\s]`)
	peripheralRe = regexp.MustCompile(`^[A-Z][A-Za-z0-9_]*\d*$`)
	registerRe   = regexp.MustCompile(`^[A-Z_]{2,10}$`)
)

// ExtractRegisterTable turns a detected region into structured register
// data. It rebuilds the cell grid from the region's positioned blocks
// and parses it according to the region's type. Returns false when the
// region yields no usable grid.
func ExtractRegisterTable(page parser.Page, region TableRegion, context string) (*RegisterTable, bool) {
	grid := regionGrid(page, region)
	if len(grid) < 2 {
		return nil, false
	}
	return ParseGrid(grid, region.Type, context)
}

// regionGrid reconstructs rows and cells inside a region. The header
// row defines the column positions; every later block lands in the
// column whose center is nearest.
func regionGrid(page parser.Page, region TableRegion) [][]string {
	var inside []parser.TextBlock
	for _, b := range page.Blocks {
		if b.Y0 >= region.Y0-rowTolerance && b.Y1 <= region.Y1+rowTolerance &&
			b.X0 >= region.X0-edgeDrift && b.X1 <= region.X1+edgeDrift {
			inside = append(inside, b)
		}
	}

	rows := GroupIntoRows(inside)
	if len(rows) == 0 {
		return nil
	}

	header := rows[0]
	centers := make([]float64, len(header))
	grid := make([][]string, 0, len(rows))

	headerCells := make([]string, len(header))
	for i, b := range header {
		centers[i] = (b.X0 + b.X1) / 2
		headerCells[i] = b.Text
	}
	grid = append(grid, headerCells)

	for _, row := range rows[1:] {
		cells := make([]string, len(header))
		for _, b := range row {
			col := nearestColumn(centers, (b.X0+b.X1)/2)
			if cells[col] == "" {
				cells[col] = b.Text
			} else {
				cells[col] += " " + b.Text
			}
		}
		grid = append(grid, cells)
	}
	return grid
}

func nearestColumn(centers []float64, x float64) int {
	best := 0
	bestDist := math.Abs(centers[0] - x)
	for i, c := range centers[1:] {
		if d := math.Abs(c - x); d < bestDist {
			best, bestDist = i+1, d
		}
	}
	return best
}

// ParseGrid parses a cell grid into a RegisterTable. The grid's first
// rows are searched for the real header; memory maps share the register
// map layout.
func ParseGrid(grid [][]string, typ TableType, context string) (*RegisterTable, bool) {
	if len(grid) < 2 {
		return nil, false
	}
	switch typ {
	case BitfieldDefinition:
		return parseBitfieldGrid(grid, context), true
	case RegisterMap, MemoryMap:
		return parseRegisterGrid(grid, typ, context), true
	default:
		return nil, false
	}
}

func parseRegisterGrid(grid [][]string, typ TableType, context string) *RegisterTable {
	// The header is not always row 0; a title row may precede it.
	headerIdx := 0
	var header []string
	for i := 0; i < len(grid) && i < 3; i++ {
		candidate := normalizeRow(grid[i])
		joined := strings.Join(candidate, " ")
		if strings.Contains(joined, "name") || strings.Contains(joined, "register") ||
			strings.Contains(joined, "offset") || strings.Contains(joined, "address") ||
			strings.Contains(joined, "bit") {
			headerIdx = i
			header = candidate
			break
		}
	}
	if header == nil {
		header = normalizeRow(grid[0])
	}

	nameCol := findColumn(header, "name", "register")
	offsetCol := findColumn(header, "offset")
	addressCol := findColumn(header, "address", "addr")
	widthCol := findColumn(header, "width", "size")
	resetCol := findColumn(header, "reset", "default")
	accessCol := findColumn(header, "access", "type", "r/w")
	descCol := findColumn(header, "description", "desc")

	var registers []Register
	for _, row := range grid[headerIdx+1:] {
		cells := cleanRow(row)
		name := cellAt(cells, nameCol)
		if name == "" {
			continue
		}
		registers = append(registers, Register{
			Name:        name,
			Offset:      cellAt(cells, offsetCol),
			Address:     cellAt(cells, addressCol),
			Width:       parseWidth(cellAt(cells, widthCol)),
			ResetValue:  cellAt(cells, resetCol),
			Access:      cellOr(cells, accessCol, "RW"),
			Description: cellAt(cells, descCol),
		})
	}

	return &RegisterTable{
		Peripheral: extractPeripheralName(context),
		Type:       typ,
		Registers:  registers,
		Context:    context,
	}
}

// parseBitfieldGrid produces a single register whose fields come from
// the table rows. The register's name is inferred from the context.
func parseBitfieldGrid(grid [][]string, context string) *RegisterTable {
	header := normalizeRow(grid[0])

	fieldCol := findColumn(header, "field", "name")
	bitsCol := findColumn(header, "bit", "bits", "range")
	accessCol := findColumn(header, "access", "type", "r/w")
	resetCol := findColumn(header, "reset", "default")
	descCol := findColumn(header, "description", "desc")

	var fields []BitField
	for _, row := range grid[1:] {
		cells := cleanRow(row)
		name := cellAt(cells, fieldCol)
		if name == "" {
			continue
		}
		bits := cellAt(cells, bitsCol)
		bitRange, ok := parseBitNotation(bits)
		if !ok {
			continue
		}
		fields = append(fields, BitField{
			Name:        name,
			Bits:        bits,
			BitRange:    bitRange,
			Access:      cellOr(cells, accessCol, "RW"),
			Description: cellAt(cells, descCol),
			ResetValue:  cellAt(cells, resetCol),
		})
	}

	register := Register{
		Name:        extractRegisterName(context),
		Width:       32,
		Access:      "RW",
		Description: context,
		Fields:      fields,
	}

	return &RegisterTable{
		Peripheral: extractPeripheralName(context),
		Type:       BitfieldDefinition,
		Registers:  []Register{register},
		Context:    context,
	}
}

// --- cell helpers ---

func normalizeRow(row []string) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = strings.ToLower(strings.TrimSpace(c))
	}
	return out
}

func cleanRow(row []string) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = strings.Join(strings.Fields(c), " ")
	}
	return out
}

// findColumn returns the index of the first header cell containing any
// of the keywords, or -1.
func findColumn(header []string, keywords ...string) int {
	for i, h := range header {
		for _, kw := range keywords {
			if strings.Contains(h, kw) {
				return i
			}
		}
	}
	return -1
}

func cellAt(cells []string, col int) string {
	if col < 0 || col >= len(cells) {
		return ""
	}
	return cells[col]
}

func cellOr(cells []string, col int, fallback string) string {
	if v := cellAt(cells, col); v != "" {
		return v
	}
	return fallback
}

// parseWidth reads the bit width from strings like "32-bit" or "32".
// Unparseable widths default to 32.
func parseWidth(s string) int {
	if m := widthRe.FindString(s); m != "" {
		if w, err := strconv.Atoi(m); err == nil {
			return w
		}
	}
	return 32
}

// parseBitNotation reads "[31:24]", "31:24" or "[15]" into (msb, lsb).
func parseBitNotation(s string) ([2]int, bool) {
	cleaned := bitStripRe.ReplaceAllString(s, "")
	if cleaned == "" {
		return [2]int{}, false
	}
	if m := bitRangeRe.FindStringSubmatch(cleaned); m != nil {
		msb, _ := strconv.Atoi(m[1])
		lsb, _ := strconv.Atoi(m[2])
		return [2]int{msb, lsb}, true
	}
	if m := singleBitRe.FindStringSubmatch(cleaned); m != nil {
		bit, _ := strconv.Atoi(m[1])
		return [2]int{bit, bit}, true
	}
	return [2]int{}, false
}

// extractPeripheralName scans context for a capitalized identifier like
// "FlexCAN" or "UART0".
func extractPeripheralName(context string) string {
	for _, word := range strings.Fields(context) {
		if peripheralRe.MatchString(word) {
			return word
		}
	}
	return "Unknown"
}

// extractRegisterName scans context for an uppercase abbreviation.
func extractRegisterName(context string) string {
	for _, word := range strings.Fields(context) {
		if registerRe.MatchString(word) {
			return word
		}
	}
	return "Unknown"
}
