package chunker

import (
	"strings"
	"testing"

	"github.com/brunobiangulo/regdocs/parser"
)

func TestSplitAtSentenceBoundaries(t *testing.T) {
	c := New(Config{TargetSize: 120, Overlap: 40})
	content := strings.TrimSpace(strings.Repeat("This sentence describes one register bit in detail. ", 10))
	sec := parser.Section{Title: "Bits", Level: 2, StartPage: 1, EndPage: 1}

	chunks := c.splitSection("doc1", sec, "[Manual > Bits]\n", content)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}

	for i, ch := range chunks {
		if !strings.HasPrefix(ch.Text, "[Manual > Bits]\n") {
			t.Errorf("chunk %d missing prefix: %q", i, ch.Text)
		}
		if len(ch.Text) > 120+len("[Manual > Bits]\n") {
			t.Errorf("chunk %d exceeds budget: %d chars", i, len(ch.Text))
		}
		body := strings.TrimPrefix(ch.Text, "[Manual > Bits]\n")
		if !strings.HasSuffix(strings.TrimSpace(body), ".") {
			t.Errorf("chunk %d does not end at a sentence: %q", i, body)
		}
	}
}

func TestSplitOverlapRepeatsSentences(t *testing.T) {
	c := New(Config{TargetSize: 100, Overlap: 60})
	content := "First sentence here. Second sentence follows. Third sentence next. Fourth sentence ends. Fifth sentence too. Sixth sentence last."
	sec := parser.Section{Title: "S", Level: 1}

	chunks := c.splitSection("doc1", sec, "", content)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(chunks))
	}

	// Some sentence from the end of chunk 0 reappears at the start of
	// chunk 1.
	first := chunks[0].Text
	second := chunks[1].Text
	lastSentence := first[strings.LastIndex(strings.TrimRight(first, ". "), ".")+1:]
	lastSentence = strings.TrimSpace(lastSentence)
	if lastSentence != "" && !strings.Contains(second, lastSentence) {
		t.Errorf("overlap missing: chunk 0 ends %q, chunk 1 = %q", lastSentence, second)
	}
}

func TestSplitCoversAllContent(t *testing.T) {
	c := New(Config{TargetSize: 80, Overlap: 20})
	content := strings.TrimSpace(strings.Repeat("Register field values persist across resets unless cleared. ", 8))
	sec := parser.Section{Title: "S", Level: 1}

	chunks := c.splitSection("doc1", sec, "", content)
	if len(chunks) == 0 {
		t.Fatal("no chunks produced")
	}

	// The final chunk must reach the end of the content.
	last := chunks[len(chunks)-1].Text
	if !strings.HasSuffix(content, strings.TrimSpace(last[len(last)-20:])) {
		t.Errorf("final chunk does not reach end of content: %q", last)
	}
}

func TestSplitNoBoundariesFallsBackToSpaces(t *testing.T) {
	c := New(Config{TargetSize: 50, Overlap: 10})
	content := strings.TrimSpace(strings.Repeat("word ", 40))
	sec := parser.Section{Title: "S", Level: 1}

	chunks := c.splitSection("doc1", sec, "", content)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}
	for i, ch := range chunks {
		for _, w := range strings.Fields(ch.Text) {
			if w != "word" {
				t.Errorf("chunk %d split mid-word: %q", i, ch.Text)
			}
		}
	}
}

func TestFindSentenceBoundaries(t *testing.T) {
	spans := findSentenceBoundaries("One. Two!\n\nThree? Four")
	if len(spans) != 3 {
		t.Fatalf("got %d boundaries, want 3", len(spans))
	}
	// First boundary: ". " after "One", next sentence starts at 5.
	if spans[0].End != 5 {
		t.Errorf("first boundary End = %d, want 5", spans[0].End)
	}
}

func TestSplitTinyBudgetStillTerminates(t *testing.T) {
	// A prefix longer than the target forces the minimum one-character
	// budget; the loop must still make progress.
	c := New(Config{TargetSize: 10, Overlap: 5})
	prefix := "[A very long heading prefix that exceeds the target]\n"
	sec := parser.Section{Title: "S", Level: 1}

	chunks := c.splitSection("doc1", sec, prefix, "abcdef")
	if len(chunks) == 0 {
		t.Fatal("no chunks produced")
	}
}

func TestOverlapWindowIncludesEdgeBoundary(t *testing.T) {
	c := New(Config{TargetSize: 200, Overlap: 10})

	// Punctuation at 89 with its whitespace starting exactly at the
	// window edge (100 - 10 = 90). The boundary belongs to the window.
	boundaries := []boundarySpan{{Start: 89, End: 91}}
	if got := c.overlapStart(boundaries, 0, 100); got != 91 {
		t.Errorf("overlapStart = %d, want 91", got)
	}

	// A boundary whose whitespace sits before the edge stays outside,
	// so the next chunk starts fresh.
	outside := []boundarySpan{{Start: 87, End: 89}}
	if got := c.overlapStart(outside, 0, 100); got != 100 {
		t.Errorf("overlapStart = %d, want 100", got)
	}
}
