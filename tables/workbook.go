package tables

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadWorkbook extracts register tables from an xlsx workbook. Vendors
// often ship register maps as spreadsheets alongside the reference
// manual; each sheet whose first row matches a known header layout is
// parsed with the same grid rules as a PDF table, with the sheet name
// serving as context.
func ReadWorkbook(path string) ([]RegisterTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	var out []RegisterTable

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) < 2 {
			continue
		}

		keywords := rowKeywords(rows[0])
		if !isLikelyHeader(keywords) {
			continue
		}

		table, ok := ParseGrid(rows, classify(keywords), sheet)
		if !ok || len(table.Registers) == 0 {
			continue
		}
		out = append(out, *table)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no register sheets found in workbook")
	}
	return out, nil
}

// rowKeywords mirrors headerKeywords for plain string cells.
func rowKeywords(row []string) map[string]bool {
	keywords := make(map[string]bool, len(row))
	for _, cell := range row {
		text := strings.ToLower(strings.TrimSpace(cell))
		keywords[punctRe.ReplaceAllString(text, "")] = true
	}
	return keywords
}
