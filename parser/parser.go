// Package parser extracts positioned text and section structure from
// hardware documentation PDFs.
package parser

// TextBlock is a run of text with its position on the page.
// Coordinates are top-down: Y0 is the top edge, Y1 the bottom edge.
type TextBlock struct {
	Text     string
	X0, Y0   float64
	X1, Y1   float64
	FontSize float64
	FontName string
	PageNum  int
}

// Page holds the positioned blocks and raw text of one PDF page.
type Page struct {
	PageNum int
	Width   float64
	Height  float64
	Blocks  []TextBlock
	RawText string
}

// Section is a node in the document outline. Content belongs to the
// section itself; Subsections hold nested headings.
type Section struct {
	Title       string
	Level       int
	StartPage   int
	EndPage     int
	Content     string
	Subsections []Section
}
