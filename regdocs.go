package regdocs

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brunobiangulo/regdocs/chunker"
	"github.com/brunobiangulo/regdocs/embedder"
	"github.com/brunobiangulo/regdocs/parser"
	"github.com/brunobiangulo/regdocs/retrieval"
	"github.com/brunobiangulo/regdocs/store"
	"github.com/brunobiangulo/regdocs/tables"
)

// Engine is the main entry point for the register documentation index.
type Engine interface {
	// Ingest parses a document, extracts register tables, chunks, embeds,
	// and indexes it. Returns the document ID. Skips work when the file's
	// content hash is unchanged.
	Ingest(ctx context.Context, path string, opts ...IngestOption) (*IngestResult, error)

	// Search runs hybrid keyword + semantic retrieval over indexed chunks.
	Search(ctx context.Context, query string, topK int, docFilter string) ([]retrieval.SearchResult, error)

	// FindRegister looks up a register definition by exact name.
	FindRegister(ctx context.Context, name, peripheral string) (*retrieval.SearchResult, error)

	// ListDocuments returns all indexed documents.
	ListDocuments(ctx context.Context) ([]DocumentInfo, error)

	// Delete removes a document and all its chunks, embeddings, and
	// register entries.
	Delete(ctx context.Context, docID string) error

	// Stats reports index-wide counts.
	Stats(ctx context.Context) (*store.DBStats, error)

	// Store returns the underlying store for diagnostic access.
	Store() *store.Store

	// Close cleanly shuts down the engine.
	Close() error
}

// IngestResult summarizes an ingestion run.
type IngestResult struct {
	DocID     string `json:"doc_id"`
	Filename  string `json:"filename"`
	Pages     int    `json:"pages"`
	Sections  int    `json:"sections"`
	Tables    int    `json:"tables"`
	Chunks    int    `json:"chunks"`
	Unchanged bool   `json:"unchanged"`
}

// DocumentInfo describes an indexed document together with its chunk counts.
type DocumentInfo struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	Title     string `json:"title,omitempty"`
	Version   string `json:"version,omitempty"`
	Status    string `json:"status"`
	Chunks    int    `json:"chunks"`
	Tables    int    `json:"tables"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// IngestOption configures ingestion behavior.
type IngestOption func(*ingestOptions)

type ingestOptions struct {
	title        string
	version      string
	forceReparse bool
}

// WithTitle sets the document title stored alongside the file name.
func WithTitle(title string) IngestOption {
	return func(o *ingestOptions) { o.title = title }
}

// WithVersion records the document revision (e.g. datasheet rev).
func WithVersion(version string) IngestOption {
	return func(o *ingestOptions) { o.version = version }
}

// WithForceReparse forces re-indexing even if the content hash is unchanged.
func WithForceReparse() IngestOption {
	return func(o *ingestOptions) { o.forceReparse = true }
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg       Config
	store     *store.Store
	embedder  embedder.Provider
	detector  *tables.Detector
	chunkr    *chunker.Chunker
	retriever *retrieval.Engine
}

// New creates a new RegDocs engine with the given configuration.
func New(cfg Config) (Engine, error) {
	dbPath := cfg.resolveDBPath()

	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 768
	}

	s, err := store.New(dbPath, cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	emb, err := embedder.NewProvider(embedder.Config{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   cfg.Embedding.APIKey,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	detector := tables.New(tables.Config{
		MinColumns: cfg.MinTableColumns,
	})

	chunkr := chunker.New(chunker.Config{
		TargetSize:     cfg.ChunkTargetSize,
		Overlap:        cfg.ChunkOverlap,
		PreserveTables: cfg.PreserveTables,
	})

	retriever := retrieval.New(s, emb, retrieval.Config{
		KeywordWeight:  cfg.KeywordWeight,
		SemanticWeight: cfg.SemanticWeight,
		TopKDefault:    cfg.TopKDefault,
	})

	return &engine{
		cfg:       cfg,
		store:     s,
		embedder:  emb,
		detector:  detector,
		chunkr:    chunkr,
		retriever: retriever,
	}, nil
}

// Ingest processes a document through the full pipeline.
func (e *engine) Ingest(ctx context.Context, path string, opts ...IngestOption) (*IngestResult, error) {
	options := &ingestOptions{}
	for _, o := range opts {
		o(options)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	filename := filepath.Base(absPath)
	docID := documentID(filename)

	hash, err := fileHash(absPath)
	if err != nil {
		return nil, fmt.Errorf("hashing file: %w", err)
	}

	if !options.forceReparse {
		existing, err := e.store.GetDocument(ctx, docID)
		if err == nil && existing.ContentHash == hash && existing.Status == "ready" {
			slog.Info("ingest: content unchanged, skipping", "file", filename, "doc_id", docID)
			stats, serr := e.store.GetDocumentStats(ctx, docID)
			res := &IngestResult{DocID: docID, Filename: filename, Unchanged: true}
			if serr == nil {
				res.Chunks = stats.Chunks
				res.Tables = stats.Tables
			}
			return res, nil
		}
	}

	if err := e.store.UpsertDocument(ctx, store.Document{
		ID:          docID,
		Filename:    filename,
		Title:       options.title,
		Version:     options.version,
		ContentHash: hash,
		Status:      "processing",
	}); err != nil {
		return nil, fmt.Errorf("upserting document: %w", err)
	}

	var (
		sections  []parser.Section
		regTables []tables.RegisterTable
		numPages  int
	)
	tablePages := make(map[int]int)

	start := time.Now()
	switch ext := strings.ToLower(filepath.Ext(absPath)); ext {
	case ".pdf":
		sections, regTables, tablePages, numPages, err = e.parsePDF(absPath, filename)
	case ".xlsx", ".xlsm":
		regTables, err = tables.ReadWorkbook(absPath)
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrParsingFailed, err)
		}
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		e.store.UpdateDocumentStatus(ctx, docID, "error")
		return nil, err
	}

	slog.Info("ingest: parsing complete",
		"file", filename, "pages", numPages,
		"sections", len(sections), "tables", len(regTables),
		"elapsed", time.Since(start).Round(time.Millisecond))

	// Chunk
	title := options.title
	if title == "" {
		title = filename
	}
	chunks := e.chunkr.ChunkDocument(docID, sections, regTables, title, tablePages)
	slog.Info("ingest: chunking complete",
		"file", filename, "chunks", len(chunks),
		"target_size", e.cfg.ChunkTargetSize, "overlap", e.cfg.ChunkOverlap)

	rowIDs, err := e.store.InsertChunks(ctx, chunks)
	if err != nil {
		e.store.UpdateDocumentStatus(ctx, docID, "error")
		return nil, fmt.Errorf("inserting chunks: %w", err)
	}

	// Embed
	slog.Info("ingest: generating embeddings", "file", filename, "chunks", len(chunks))
	embedStart := time.Now()
	if err := e.embedChunks(ctx, chunks, rowIDs); err != nil {
		e.store.UpdateDocumentStatus(ctx, docID, "error")
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	slog.Info("ingest: embeddings complete",
		"file", filename, "chunks", len(chunks),
		"elapsed", time.Since(embedStart).Round(time.Millisecond))

	e.store.UpdateDocumentStatus(ctx, docID, "ready")
	slog.Info("ingest: document ready",
		"file", filename, "doc_id", docID,
		"total_elapsed", time.Since(start).Round(time.Millisecond))

	return &IngestResult{
		DocID:    docID,
		Filename: filename,
		Pages:    numPages,
		Sections: len(sections),
		Tables:   len(regTables),
		Chunks:   len(chunks),
	}, nil
}

// parsePDF extracts positioned text, detects sections, and pulls register
// tables out of every page.
func (e *engine) parsePDF(absPath, filename string) ([]parser.Section, []tables.RegisterTable, map[int]int, int, error) {
	doc, err := parser.Open(absPath)
	if err != nil {
		return nil, nil, nil, 0, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	defer doc.Close()

	pages, err := doc.Pages()
	if err != nil {
		return nil, nil, nil, 0, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	// The embedded outline defines sections when present; heading
	// heuristics are the fallback.
	var sections []parser.Section
	if toc := doc.TOC(pages); len(toc) > 0 {
		sections = parser.SectionsFromTOC(toc, pages)
		slog.Debug("ingest: sections from outline", "file", filename, "entries", len(toc))
	} else {
		sections = parser.DetectSections(pages)
	}

	var regTables []tables.RegisterTable
	tablePages := make(map[int]int)
	for _, page := range pages {
		for _, region := range e.detector.DetectRegisterTables(page) {
			context := e.detector.TableContext(page, region, tables.DefaultContextLines)
			table, ok := tables.ExtractRegisterTable(page, region, context)
			if !ok {
				continue
			}
			tablePages[len(regTables)] = page.PageNum
			regTables = append(regTables, *table)
		}
	}

	slog.Debug("ingest: table detection complete",
		"file", filename, "pages", len(pages), "tables", len(regTables))
	return sections, regTables, tablePages, len(pages), nil
}

// Search runs hybrid retrieval over the index.
func (e *engine) Search(ctx context.Context, query string, topK int, docFilter string) ([]retrieval.SearchResult, error) {
	results, err := e.retriever.Search(ctx, query, topK, docFilter)
	if err != nil {
		return nil, fmt.Errorf("retrieval: %w", err)
	}
	if len(results) == 0 {
		return nil, ErrNoResults
	}
	return results, nil
}

// FindRegister looks up a register definition by exact name.
func (e *engine) FindRegister(ctx context.Context, name, peripheral string) (*retrieval.SearchResult, error) {
	result, err := e.retriever.FindRegister(ctx, name, peripheral)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRegisterNotFound, name)
		}
		return nil, err
	}
	return result, nil
}

// ListDocuments returns all indexed documents with their chunk counts.
func (e *engine) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	docs, err := e.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]DocumentInfo, 0, len(docs))
	for _, d := range docs {
		info := DocumentInfo{
			ID:        d.ID,
			Filename:  d.Filename,
			Title:     d.Title,
			Version:   d.Version,
			Status:    d.Status,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		}
		if stats, err := e.store.GetDocumentStats(ctx, d.ID); err == nil {
			info.Chunks = stats.Chunks
			info.Tables = stats.Tables
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Delete removes a document and all its associated data.
func (e *engine) Delete(ctx context.Context, docID string) error {
	err := e.store.DeleteDocument(ctx, docID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, docID)
	}
	return err
}

// Stats reports index-wide counts.
func (e *engine) Stats(ctx context.Context) (*store.DBStats, error) {
	return e.store.Stats(ctx)
}

// Store returns the underlying store for diagnostic access.
func (e *engine) Store() *store.Store {
	return e.store
}

// Close shuts down the engine.
func (e *engine) Close() error {
	return e.store.Close()
}

// maxEmbedChars is the maximum character length for a single text sent to
// the embedding model. Most embedding models have a context window of 8192
// tokens; ~24000 chars leaves headroom for varied tokenisers.
const maxEmbedChars = 24000

// truncateForEmbed truncates text to maxEmbedChars on a word boundary.
func truncateForEmbed(text string) string {
	if len(text) <= maxEmbedChars {
		return text
	}
	cut := strings.LastIndex(text[:maxEmbedChars], " ")
	if cut <= 0 {
		cut = maxEmbedChars
	}
	return text[:cut]
}

// embedChunks generates embeddings for chunks in batches.
// Individual batch failures trigger per-text fallback so a single oversized
// text does not cause the entire batch to be lost.
func (e *engine) embedChunks(ctx context.Context, chunks []store.Chunk, rowIDs []int64) error {
	batchSize := e.cfg.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = 32
	}
	var failed int

	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, end-i)
		for j := i; j < end; j++ {
			texts[j-i] = truncateForEmbed(chunks[j].Text)
		}

		embeddings, err := e.embedder.Embed(ctx, texts)
		if err != nil {
			// Batch failed, fall back to embedding each text individually
			// so one oversized text doesn't lose the entire batch.
			slog.Warn("embedding batch failed, falling back to individual",
				"batch_start", i, "batch_end", end, "error", err)
			for j, text := range texts {
				single, serr := e.embedder.Embed(ctx, []string{text})
				if serr != nil {
					slog.Warn("embedding single text failed",
						"chunk_id", chunks[i+j].ID, "error", serr)
					failed++
					continue
				}
				if len(single) == 0 || len(single[0]) == 0 {
					failed++
					continue
				}
				if serr := e.store.InsertEmbedding(ctx, rowIDs[i+j], single[0]); serr != nil {
					slog.Warn("storing embedding failed",
						"chunk_id", chunks[i+j].ID, "error", serr)
					failed++
				}
			}
			continue
		}

		for j, emb := range embeddings {
			if err := e.store.InsertEmbedding(ctx, rowIDs[i+j], emb); err != nil {
				slog.Warn("storing embedding failed",
					"chunk_id", chunks[i+j].ID, "error", err)
				failed++
			}
		}
	}

	if failed == len(chunks) && len(chunks) > 0 {
		return fmt.Errorf("all %d chunks failed embedding", len(chunks))
	}
	if failed > 0 {
		slog.Warn("some embeddings failed", "failed", failed, "total", len(chunks))
	}
	return nil
}

// documentID derives a stable document ID from the file name.
func documentID(filename string) string {
	sum := md5.Sum([]byte(filename))
	return hex.EncodeToString(sum[:])[:16]
}

// fileHash computes the SHA-256 hash of a file's content.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
