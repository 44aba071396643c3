package parser

import (
	"regexp"
	"strings"
)

// Headings in reference manuals look like "45.3.2 Chip Configuration".
var sectionNumberRe = regexp.MustCompile(`^(\d+\.)+\d*\s+[A-Z]`)

// Font size above which a block is treated as a heading even without
// section numbering.
const headingFontSize = 12.0

// DetectSections scans the pages for heading blocks and returns the
// document outline as a section tree. It is the fallback for documents
// without an embedded outline (see TOC and SectionsFromTOC). Body text
// is attributed to the most recent heading; text before the first
// heading is dropped.
func DetectSections(pages []Page) []Section {
	var sections []Section
	var current *Section

	for _, page := range pages {
		for _, block := range page.Blocks {
			if !isHeadingBlock(block) {
				continue
			}
			if current != nil {
				current.EndPage = page.PageNum - 1
				if current.EndPage < current.StartPage {
					current.EndPage = current.StartPage
				}
				sections = append(sections, *current)
			}
			current = &Section{
				Title:     block.Text,
				Level:     headingLevel(block.Text),
				StartPage: page.PageNum,
				EndPage:   page.PageNum,
			}
		}
		if current != nil {
			current.Content += page.RawText + "\n"
		}
	}

	if current != nil {
		if n := len(pages); n > 0 {
			current.EndPage = pages[n-1].PageNum
		}
		sections = append(sections, *current)
	}

	return BuildHierarchy(sections)
}

func isHeadingBlock(block TextBlock) bool {
	return block.FontSize > headingFontSize || sectionNumberRe.MatchString(block.Text)
}

// headingLevel derives nesting depth from the section numbering:
// "45.3.2 Title" is level 3, an unnumbered heading is level 1.
func headingLevel(title string) int {
	if strings.Contains(title, ".") {
		return strings.Count(title, ".") + 1
	}
	return 1
}

// BuildHierarchy nests a flat, in-order section list by level. Each
// section becomes a child of the nearest preceding section with a
// smaller level; the rest stay at the root.
func BuildHierarchy(flat []Section) []Section {
	if len(flat) == 0 {
		return nil
	}

	var roots []Section
	var stack []*Section

	for _, sec := range flat {
		sec.Subsections = nil
		for len(stack) > 0 && stack[len(stack)-1].Level >= sec.Level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) > 0 {
			parent := stack[len(stack)-1]
			parent.Subsections = append(parent.Subsections, sec)
			stack = append(stack, &parent.Subsections[len(parent.Subsections)-1])
		} else {
			roots = append(roots, sec)
			stack = append(stack, &roots[len(roots)-1])
		}
	}

	return roots
}
