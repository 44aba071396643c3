package parser

import (
	"strings"
	"testing"
)

func headingBlock(text string, page int) TextBlock {
	return TextBlock{Text: text, FontSize: 14, PageNum: page}
}

func TestDetectSections(t *testing.T) {
	pages := []Page{
		{
			PageNum: 1,
			Blocks: []TextBlock{
				headingBlock("1 Introduction", 1),
			},
			RawText: "1 Introduction\nThis manual covers the MCU family.",
		},
		{
			PageNum: 2,
			Blocks: []TextBlock{
				headingBlock("2 Peripherals", 2),
				headingBlock("2.1 UART", 2),
			},
			RawText: "2 Peripherals\n2.1 UART\nThe UART supports 8N1 framing.",
		},
	}

	sections := DetectSections(pages)
	if len(sections) != 2 {
		t.Fatalf("got %d root sections, want 2", len(sections))
	}

	intro := sections[0]
	if intro.Title != "1 Introduction" {
		t.Errorf("Title = %q, want 1 Introduction", intro.Title)
	}
	if intro.StartPage != 1 || intro.EndPage != 1 {
		t.Errorf("intro pages = %d-%d, want 1-1", intro.StartPage, intro.EndPage)
	}
	if !strings.Contains(intro.Content, "MCU family") {
		t.Errorf("intro content = %q", intro.Content)
	}

	periph := sections[1]
	if periph.Title != "2 Peripherals" {
		t.Errorf("Title = %q, want 2 Peripherals", periph.Title)
	}
	if len(periph.Subsections) != 1 {
		t.Fatalf("got %d subsections, want 1", len(periph.Subsections))
	}
	uart := periph.Subsections[0]
	if uart.Title != "2.1 UART" || uart.Level != 2 {
		t.Errorf("subsection = %q level %d, want 2.1 UART level 2", uart.Title, uart.Level)
	}
	if !strings.Contains(uart.Content, "8N1") {
		t.Errorf("uart content = %q", uart.Content)
	}
}

func TestHeadingDetection(t *testing.T) {
	tests := []struct {
		block TextBlock
		want  bool
	}{
		{TextBlock{Text: "45.3.2 Chip Configuration", FontSize: 10}, true},
		{TextBlock{Text: "Overview", FontSize: 16}, true},
		{TextBlock{Text: "plain body text", FontSize: 10}, false},
		{TextBlock{Text: "3.3 volts maximum", FontSize: 10}, false}, // lowercase after number
	}
	for _, tt := range tests {
		if got := isHeadingBlock(tt.block); got != tt.want {
			t.Errorf("isHeadingBlock(%q, %.0fpt) = %v, want %v",
				tt.block.Text, tt.block.FontSize, got, tt.want)
		}
	}
}

func TestHeadingLevel(t *testing.T) {
	tests := []struct {
		title string
		want  int
	}{
		{"Overview", 1},
		{"2.1 UART", 2},
		{"45.3.2 Chip Configuration", 3},
	}
	for _, tt := range tests {
		if got := headingLevel(tt.title); got != tt.want {
			t.Errorf("headingLevel(%q) = %d, want %d", tt.title, got, tt.want)
		}
	}
}

func TestBuildHierarchy(t *testing.T) {
	flat := []Section{
		{Title: "1 A", Level: 1},
		{Title: "1.1 B", Level: 2},
		{Title: "1.1.1 C", Level: 3},
		{Title: "1.2 D", Level: 2},
		{Title: "2 E", Level: 1},
	}

	roots := BuildHierarchy(flat)
	if len(roots) != 2 {
		t.Fatalf("got %d roots, want 2", len(roots))
	}

	a := roots[0]
	if len(a.Subsections) != 2 {
		t.Fatalf("A has %d children, want 2", len(a.Subsections))
	}
	if a.Subsections[0].Title != "1.1 B" || a.Subsections[1].Title != "1.2 D" {
		t.Errorf("A children = %q, %q", a.Subsections[0].Title, a.Subsections[1].Title)
	}
	if len(a.Subsections[0].Subsections) != 1 || a.Subsections[0].Subsections[0].Title != "1.1.1 C" {
		t.Errorf("B children wrong: %+v", a.Subsections[0].Subsections)
	}
	if roots[1].Title != "2 E" || len(roots[1].Subsections) != 0 {
		t.Errorf("E = %q with %d children", roots[1].Title, len(roots[1].Subsections))
	}
}

func TestBuildHierarchyEmpty(t *testing.T) {
	if got := BuildHierarchy(nil); got != nil {
		t.Errorf("BuildHierarchy(nil) = %v, want nil", got)
	}
}
