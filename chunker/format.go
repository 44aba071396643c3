package chunker

import (
	"fmt"
	"strings"

	"github.com/brunobiangulo/regdocs/tables"
)

// FormatTable renders a register table as compact markdown-flavoured
// text suitable for embedding and display.
func FormatTable(table *tables.RegisterTable) string {
	var lines []string

	lines = append(lines, fmt.Sprintf("# %s - %s", table.Peripheral, table.Type.Title()), "")

	if table.Context != "" {
		lines = append(lines, "Context: "+table.Context, "")
	}

	for _, reg := range table.Registers {
		lines = append(lines, "## "+reg.Name)

		var details []string
		if reg.Address != "" {
			details = append(details, "Address: "+reg.Address)
		}
		if reg.Offset != "" {
			details = append(details, "Offset: "+reg.Offset)
		}
		details = append(details, fmt.Sprintf("Width: %d-bit", reg.Width))
		if reg.ResetValue != "" {
			details = append(details, "Reset: "+reg.ResetValue)
		}
		details = append(details, "Access: "+reg.Access)
		lines = append(lines, strings.Join(details, " | "))

		if reg.Description != "" {
			lines = append(lines, "Description: "+reg.Description)
		}

		if len(reg.Fields) > 0 {
			lines = append(lines, "\nFields:")
			for _, f := range reg.Fields {
				lines = append(lines, fmt.Sprintf("  - %s [%s]: %s (%s)", f.Name, f.Bits, f.Description, f.Access))
			}
		}

		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}
