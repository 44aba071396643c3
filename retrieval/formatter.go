package retrieval

import (
	"fmt"
	"strings"

	"github.com/brunobiangulo/regdocs/tables"
)

const (
	maxFormattedResults = 5
	excerptMaxLength    = 500
)

// FormatResults renders search results as compact markdown. Register
// chunks show their structured definition; text chunks show an excerpt.
func FormatResults(results []SearchResult) string {
	if len(results) == 0 {
		return "No results found."
	}
	if len(results) > maxFormattedResults {
		results = results[:maxFormattedResults]
	}

	var lines []string
	for i, r := range results {
		lines = append(lines, fmt.Sprintf("## Result %d", i+1), "")

		if r.Chunk.Structured != nil {
			lines = append(lines, formatStructured(r.Chunk.Structured))
		} else {
			lines = append(lines, excerpt(r.Chunk.Text, excerptMaxLength))
		}

		lines = append(lines, "", fmt.Sprintf("**Source:** Pages %d-%d", r.Chunk.PageStart, r.Chunk.PageEnd))

		if title, ok := r.Chunk.Metadata["section_title"].(string); ok && title != "" {
			lines = append(lines, fmt.Sprintf("**Section:** %s", title))
		}

		lines = append(lines, "", "---", "")
	}
	return strings.Join(lines, "\n")
}

// FormatRegister renders a single register lookup result. Falls back to
// the raw chunk text when no structured data is attached.
func FormatRegister(r *SearchResult) string {
	if r.Chunk.Structured == nil {
		return r.Chunk.Text
	}
	return formatStructured(r.Chunk.Structured)
}

func formatStructured(t *tables.RegisterTable) string {
	var lines []string

	peripheral := t.Peripheral
	if peripheral == "" {
		peripheral = "Unknown"
	}
	lines = append(lines, fmt.Sprintf("**%s** - %s", peripheral, t.Type.Title()), "")

	for _, reg := range t.Registers {
		header := "### " + reg.Name
		if reg.Address != "" {
			header += fmt.Sprintf(" (%s)", reg.Address)
		} else if reg.Offset != "" {
			header += fmt.Sprintf(" (Offset: %s)", reg.Offset)
		}
		lines = append(lines, header)

		width := reg.Width
		if width == 0 {
			width = 32
		}
		details := []string{fmt.Sprintf("**Width:** %d-bit", width)}
		if reg.ResetValue != "" {
			details = append(details, fmt.Sprintf("**Reset:** %s", reg.ResetValue))
		}
		access := reg.Access
		if access == "" {
			access = "RW"
		}
		details = append(details, fmt.Sprintf("**Access:** %s", access))
		lines = append(lines, strings.Join(details, " | "))

		if reg.Description != "" {
			lines = append(lines, "\n"+reg.Description)
		}

		if len(reg.Fields) > 0 {
			lines = append(lines, "\n**Fields:**")
			for _, f := range reg.Fields {
				lines = append(lines, fmt.Sprintf("- **%s** [%s]: %s (%s)", f.Name, f.Bits, f.Description, f.Access))
			}
		}

		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}

// excerpt truncates text to maxLen, preferring to cut at the last
// sentence or line boundary when one falls in the final 30 percent.
func excerpt(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	cut := text[:maxLen]
	lastPeriod := strings.LastIndex(cut, ".")
	lastNewline := strings.LastIndex(cut, "\n")
	point := lastPeriod
	if lastNewline > point {
		point = lastNewline
	}
	if float64(point) > float64(maxLen)*0.7 {
		cut = cut[:point+1]
	}
	return cut + "..."
}
