package parser

import (
	"strings"

	"github.com/ledongthuc/pdf"
)

// TOCEntry is one entry of a document's embedded outline, resolved to
// the page its title first appears on.
type TOCEntry struct {
	Level   int
	Title   string
	PageNum int
}

// TOC reads the PDF outline and resolves each entry against the
// extracted pages. Returns nil when the document carries no outline,
// in which case callers fall back to DetectSections.
func (d *PDF) TOC(pages []Page) []TOCEntry {
	var entries []TOCEntry
	flattenOutline(d.r.Outline().Child, 1, &entries)
	if len(entries) == 0 {
		return nil
	}
	resolveTOCPages(entries, pages)
	return entries
}

// flattenOutline walks the outline tree depth-first. Nesting depth
// becomes the entry level, matching how heading numbering is treated
// by the heuristic detector.
func flattenOutline(children []pdf.Outline, level int, out *[]TOCEntry) {
	for _, child := range children {
		if title := strings.TrimSpace(child.Title); title != "" {
			*out = append(*out, TOCEntry{Level: level, Title: title})
		}
		flattenOutline(child.Child, level+1, out)
	}
}

// resolveTOCPages assigns each entry the first page, at or after the
// previous entry's page, whose text contains the entry title. The
// outline gives no page targets itself, so titles are located in the
// page text. Titles that never appear inherit the running page, which
// keeps entry pages monotone.
func resolveTOCPages(entries []TOCEntry, pages []Page) {
	normalized := make([]string, len(pages))
	for i, p := range pages {
		normalized[i] = normalizeTOCText(p.RawText)
	}

	cursor := 0
	for i := range entries {
		want := normalizeTOCText(entries[i].Title)
		for j := cursor; j < len(pages); j++ {
			if strings.Contains(normalized[j], want) {
				cursor = j
				break
			}
		}
		if cursor < len(pages) {
			entries[i].PageNum = pages[cursor].PageNum
		}
	}
}

func normalizeTOCText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// SectionsFromTOC slices the document along the outline entries: each
// section runs from its own page up to the page before the next entry
// and owns the raw text of those pages. The result is nested the same
// way DetectSections nests heuristic headings.
func SectionsFromTOC(toc []TOCEntry, pages []Page) []Section {
	if len(toc) == 0 || len(pages) == 0 {
		return nil
	}

	byNum := make(map[int]int, len(pages))
	for i, p := range pages {
		byNum[p.PageNum] = i
	}

	sections := make([]Section, 0, len(toc))
	for i, entry := range toc {
		endPage := pages[len(pages)-1].PageNum
		if i+1 < len(toc) {
			endPage = toc[i+1].PageNum - 1
		}

		var content strings.Builder
		if start, ok := byNum[entry.PageNum]; ok {
			for j := start; j < len(pages) && pages[j].PageNum <= endPage; j++ {
				content.WriteString(pages[j].RawText)
				content.WriteString("\n")
			}
		}

		// Two entries on one page leave the earlier section empty.
		if endPage < entry.PageNum {
			endPage = entry.PageNum
		}

		sections = append(sections, Section{
			Title:     entry.Title,
			Level:     entry.Level,
			StartPage: entry.PageNum,
			EndPage:   endPage,
			Content:   content.String(),
		})
	}

	return BuildHierarchy(sections)
}
