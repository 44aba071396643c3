// Package chunker turns parsed sections and extracted register tables
// into store-ready chunks sized for embedding.
package chunker

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"github.com/brunobiangulo/regdocs/parser"
	"github.com/brunobiangulo/regdocs/store"
	"github.com/brunobiangulo/regdocs/tables"
)

// Config controls the chunking behaviour.
type Config struct {
	TargetSize int // Target chunk size in characters.
	Overlap    int // Character budget for trailing-sentence overlap.

	// PreserveTables is retained for callers that tune chunking; table
	// chunks are always emitted whole regardless of its value.
	PreserveTables bool
}

// Chunker converts parsed documents into store-ready chunks.
type Chunker struct {
	cfg Config
}

// New returns a Chunker with the given configuration.
// Zero-value fields are replaced with sensible defaults.
func New(cfg Config) *Chunker {
	if cfg.TargetSize == 0 {
		cfg.TargetSize = 2500
	}
	if cfg.Overlap == 0 {
		cfg.Overlap = 200
	}
	return &Chunker{cfg: cfg}
}

// ChunkDocument produces the chunks for one document: one intact chunk
// per register table, then text chunks for every leaf section.
// tablePages maps a table's index to the page it was detected on.
func (c *Chunker) ChunkDocument(docID string, sections []parser.Section, regTables []tables.RegisterTable, docTitle string, tablePages map[int]int) []store.Chunk {
	chunks := c.chunkTables(docID, regTables, docTitle, tablePages)
	return append(chunks, c.chunkSections(docID, sections, docTitle, nil)...)
}

// --- context prefix ---

// contextPrefix builds "[Doc > Section > Subsection]\n" from the
// document title and ancestor headings. Empty when no context exists.
func contextPrefix(docTitle string, hierarchy []string) string {
	var parts []string
	if docTitle != "" {
		parts = append(parts, docTitle)
	}
	for _, h := range hierarchy {
		if h != "" {
			parts = append(parts, h)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "[" + strings.Join(parts, " > ") + "]\n"
}

// --- table chunks ---

func (c *Chunker) chunkTables(docID string, regTables []tables.RegisterTable, docTitle string, tablePages map[int]int) []store.Chunk {
	var chunks []store.Chunk

	for i := range regTables {
		table := &regTables[i]

		var hierarchy []string
		if table.Peripheral != "" {
			hierarchy = append(hierarchy, table.Peripheral)
		}
		if table.Context != "" {
			hierarchy = append(hierarchy, table.Context)
		}

		text := contextPrefix(docTitle, hierarchy) + FormatTable(table)

		names := make([]string, len(table.Registers))
		for j, r := range table.Registers {
			names[j] = r.Name
		}

		page := tablePages[i]
		chunks = append(chunks, store.Chunk{
			ID:         chunkID(docID, text),
			DocID:      docID,
			ChunkType:  string(table.Type),
			Text:       text,
			Structured: table,
			Metadata: map[string]any{
				"peripheral":     table.Peripheral,
				"table_type":     string(table.Type),
				"context":        table.Context,
				"register_names": names,
			},
			PageStart: page,
			PageEnd:   page,
		})
	}
	return chunks
}

// --- section chunks ---

// chunkSections walks the section tree. Only leaf sections get their
// content chunked; parents contribute their titles to the context
// prefix, keeping text from appearing under both parent and child.
func (c *Chunker) chunkSections(docID string, sections []parser.Section, docTitle string, ancestors []string) []store.Chunk {
	var chunks []store.Chunk

	for _, sec := range sections {
		hierarchy := append(append([]string(nil), ancestors...), sec.Title)

		if len(sec.Subsections) > 0 {
			chunks = append(chunks, c.chunkSections(docID, sec.Subsections, docTitle, hierarchy)...)
			continue
		}

		prefix := contextPrefix(docTitle, hierarchy)
		content := strings.TrimSpace(sec.Content)
		if content == "" {
			continue
		}

		if len(prefix)+len(content) <= c.cfg.TargetSize {
			text := prefix + content
			chunks = append(chunks, c.textChunk(docID, text, sec))
			continue
		}

		chunks = append(chunks, c.splitSection(docID, sec, prefix, content)...)
	}
	return chunks
}

func (c *Chunker) textChunk(docID, text string, sec parser.Section) store.Chunk {
	return store.Chunk{
		ID:        chunkID(docID, text),
		DocID:     docID,
		ChunkType: store.ChunkTypeText,
		Text:      text,
		Metadata: map[string]any{
			"section_title": sec.Title,
			"section_level": sec.Level,
		},
		PageStart: sec.StartPage,
		PageEnd:   sec.EndPage,
	}
}

// chunkID derives a stable content-addressed ID, so re-ingesting the
// same document yields the same chunk IDs.
func chunkID(docID, text string) string {
	sum := md5.Sum([]byte(text))
	return docID + "_" + hex.EncodeToString(sum[:])[:12]
}
