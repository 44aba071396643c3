package parser

import (
	"testing"

	"github.com/ledongthuc/pdf"
)

func glyph(s string, x, y, w, size float64) pdf.Text {
	return pdf.Text{S: s, X: x, Y: y, W: w, FontSize: size, Font: "Helvetica"}
}

func TestGroupIntoLines(t *testing.T) {
	texts := []pdf.Text{
		glyph("lower", 50, 100, 30, 10),
		glyph("upper", 50, 700, 30, 10),
		glyph("same", 90, 699, 30, 10), // within baseline tolerance of upper
	}

	lines := groupIntoLines(texts)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	// Lines come out top of page first (larger Y first).
	if len(lines[0]) != 2 {
		t.Errorf("first line has %d glyphs, want 2", len(lines[0]))
	}
	if lines[1][0].S != "lower" {
		t.Errorf("second line = %q, want lower", lines[1][0].S)
	}
}

func TestMergeLineWordsAndBlocks(t *testing.T) {
	// "Offset" and "0x00" sit close enough to merge with a space; the
	// next column starts after a gap wider than one em.
	line := []pdf.Text{
		glyph("Offset", 50, 700, 30, 10),
		glyph("0x00", 84, 700, 20, 10),  // 4pt gap: same block, new word
		glyph("Name", 200, 700, 25, 10), // far gap: new block
	}

	blocks := mergeLine(line, 792, 0)
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if blocks[0].Text != "Offset 0x00" {
		t.Errorf("first block = %q, want \"Offset 0x00\"", blocks[0].Text)
	}
	if blocks[1].Text != "Name" {
		t.Errorf("second block = %q, want Name", blocks[1].Text)
	}
	if blocks[0].X1 != 104 {
		t.Errorf("first block X1 = %.1f, want 104", blocks[0].X1)
	}
}

func TestMergeLineJoinsTightGlyphs(t *testing.T) {
	// Glyphs separated by less than 0.2 em concatenate without a space.
	line := []pdf.Text{
		glyph("CT", 50, 700, 12, 10),
		glyph("RL", 63, 700, 12, 10), // 1pt gap
	}

	blocks := mergeLine(line, 792, 0)
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(blocks))
	}
	if blocks[0].Text != "CTRL" {
		t.Errorf("block = %q, want CTRL", blocks[0].Text)
	}
}

func TestMergeLineFlipsCoordinates(t *testing.T) {
	line := []pdf.Text{glyph("top", 50, 780, 20, 12)}

	blocks := mergeLine(line, 792, 3)
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(blocks))
	}
	b := blocks[0]
	// Bottom-up Y=780 on a 792pt page puts the block near the top.
	if b.Y0 != 0 || b.Y1 != 12 {
		t.Errorf("block Y = %.1f..%.1f, want 0..12", b.Y0, b.Y1)
	}
	if b.PageNum != 3 {
		t.Errorf("PageNum = %d, want 3", b.PageNum)
	}
	if b.FontSize != 12 || b.FontName != "Helvetica" {
		t.Errorf("font = %.0f %q", b.FontSize, b.FontName)
	}
}
