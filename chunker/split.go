package chunker

import (
	"regexp"
	"strings"

	"github.com/brunobiangulo/regdocs/parser"
	"github.com/brunobiangulo/regdocs/store"
)

// A sentence boundary is terminal punctuation followed by whitespace,
// or a paragraph break. Boundary positions index the first character
// of the next sentence.
var sentenceBoundaryRe = regexp.MustCompile(`[.!?]\s+|\n\n+`)

// boundarySpan is one boundary match: the next sentence starts at End.
type boundarySpan struct {
	Start, End int
}

func findSentenceBoundaries(text string) []boundarySpan {
	matches := sentenceBoundaryRe.FindAllStringIndex(text, -1)
	spans := make([]boundarySpan, len(matches))
	for i, m := range matches {
		spans[i] = boundarySpan{Start: m[0], End: m[1]}
	}
	return spans
}

// splitSection breaks an oversized section into chunks at sentence
// boundaries. Each chunk carries the full context prefix; consecutive
// chunks overlap by roughly the last one or two sentences.
func (c *Chunker) splitSection(docID string, sec parser.Section, prefix, content string) []store.Chunk {
	var chunks []store.Chunk
	boundaries := findSentenceBoundaries(content)

	// Room left for content once the prefix is in place.
	budget := c.cfg.TargetSize - len(prefix)
	if budget < 1 {
		budget = 1
	}

	start := 0
	for start < len(content) {
		end := start + budget

		if end >= len(content) {
			end = len(content)
		} else if cut, ok := lastBoundaryBefore(boundaries, start, end); ok {
			end = cut
		} else if sp := strings.LastIndex(content[start:end], " "); sp > 0 {
			// No sentence boundary within reach; back up to the last
			// space to avoid cutting mid-word.
			end = start + sp + 1
		}

		text := prefix + strings.TrimSpace(content[start:end])
		if strings.TrimSpace(text) != "" {
			chunks = append(chunks, c.textChunk(docID, text, sec))
		}

		next := c.overlapStart(boundaries, start, end)
		if next < end {
			start = next
		} else {
			start = end
		}
	}
	return chunks
}

// lastBoundaryBefore returns the latest boundary position in (start, end].
func lastBoundaryBefore(boundaries []boundarySpan, start, end int) (int, bool) {
	best, found := 0, false
	for _, b := range boundaries {
		if b.End <= start {
			continue
		}
		if b.End > end {
			break
		}
		best, found = b.End, true
	}
	return best, found
}

// overlapStart decides where the next chunk begins so that it repeats
// the last sentence or two of the chunk ending at end. With two or more
// boundaries in the overlap window the second-to-last wins; with none
// the next chunk starts fresh at end.
func (c *Chunker) overlapStart(boundaries []boundarySpan, chunkStart, chunkEnd int) int {
	regionStart := chunkEnd - c.cfg.Overlap
	if regionStart < chunkStart {
		regionStart = chunkStart
	}

	var inRegion []int
	for _, b := range boundaries {
		// Start indexes the terminal punctuation; a boundary whose
		// trailing whitespace begins at the window edge still counts.
		if b.Start+1 >= regionStart && b.End <= chunkEnd {
			inRegion = append(inRegion, b.End)
		}
	}

	switch {
	case len(inRegion) >= 2:
		return inRegion[len(inRegion)-2]
	case len(inRegion) == 1:
		return inRegion[0]
	default:
		return chunkEnd
	}
}
