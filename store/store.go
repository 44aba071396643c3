// Package store persists documents, chunks, registers and embeddings
// in a single SQLite database, with FTS5 keyword search and sqlite-vec
// nearest-neighbour search over the same rows.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/brunobiangulo/regdocs/tables"
)

func init() {
	sqlite_vec.Auto()
}

// ChunkTypeText marks plain text chunks. Table chunks use their table
// type ("register_map", "bitfield_definition", "memory_map") instead.
const ChunkTypeText = "text"

// Document represents a row in the documents table.
type Document struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	Title       string `json:"title,omitempty"`
	Version     string `json:"version,omitempty"`
	ContentHash string `json:"content_hash"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Chunk is one indexed unit of a document. Table chunks also carry the
// structured register data they were rendered from.
type Chunk struct {
	ID         string                `json:"id"`
	DocID      string                `json:"doc_id"`
	ChunkType  string                `json:"chunk_type"`
	Text       string                `json:"text"`
	Structured *tables.RegisterTable `json:"structured_data,omitempty"`
	Metadata   map[string]any        `json:"metadata,omitempty"`
	PageStart  int                   `json:"page_start"`
	PageEnd    int                   `json:"page_end"`
}

// ScoredChunk pairs a chunk ID with a retrieval score.
type ScoredChunk struct {
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
}

// VectorHit is one nearest-neighbour match. Distance is squared L2;
// with normalised embeddings that maps onto cosine similarity.
type VectorHit struct {
	ChunkID  string  `json:"chunk_id"`
	DocID    string  `json:"doc_id"`
	Distance float64 `json:"distance"`
}

// DocumentStats summarises one document's index contents.
type DocumentStats struct {
	Chunks int `json:"chunks"`
	Tables int `json:"tables"`
}

// DBStats holds counts of key database objects.
type DBStats struct {
	Documents  int `json:"documents"`
	Chunks     int `json:"chunks"`
	Tables     int `json:"tables"`
	Registers  int `json:"registers"`
	Embeddings int `json:"embeddings"`
}

// Store wraps the SQLite database for all regdocs persistence.
type Store struct {
	db           *sql.DB
	embeddingDim int
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including sqlite-vec and FTS5 virtual tables.
func New(dbPath string, embeddingDim int) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, embeddingDim: embeddingDim}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EmbeddingDim returns the configured embedding dimension.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// --- Document operations ---

// UpsertDocument inserts or updates a document record.
func (s *Store) UpsertDocument(ctx context.Context, doc Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, filename, title, version, content_hash, status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			title = excluded.title,
			version = excluded.version,
			content_hash = excluded.content_hash,
			status = excluded.status,
			updated_at = CURRENT_TIMESTAMP
	`, doc.ID, doc.Filename, nullable(doc.Title), nullable(doc.Version), doc.ContentHash, doc.Status)
	return err
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	return s.scanDocument(s.db.QueryRowContext(ctx, `
		SELECT id, filename, title, version, content_hash, status, created_at, updated_at
		FROM documents WHERE id = ?
	`, id))
}

// GetDocumentByFilename retrieves a document by its source filename.
func (s *Store) GetDocumentByFilename(ctx context.Context, filename string) (*Document, error) {
	return s.scanDocument(s.db.QueryRowContext(ctx, `
		SELECT id, filename, title, version, content_hash, status, created_at, updated_at
		FROM documents WHERE filename = ?
	`, filename))
}

func (s *Store) scanDocument(row *sql.Row) (*Document, error) {
	doc := &Document{}
	var title, version sql.NullString
	err := row.Scan(&doc.ID, &doc.Filename, &title, &version,
		&doc.ContentHash, &doc.Status, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	doc.Title = title.String
	doc.Version = version.String
	return doc, nil
}

// UpdateDocumentStatus updates just the status field.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE documents SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		status, id)
	return err
}

// ListDocuments returns all documents, most recently indexed first.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, title, version, content_hash, status, created_at, updated_at
		FROM documents ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var title, version sql.NullString
		if err := rows.Scan(&d.ID, &d.Filename, &title, &version,
			&d.ContentHash, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		d.Title = title.String
		d.Version = version.String
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// GetDocumentStats reports chunk and table counts for one document.
func (s *Store) GetDocumentStats(ctx context.Context, docID string) (*DocumentStats, error) {
	stats := &DocumentStats{}
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks WHERE doc_id = ?", docID).Scan(&stats.Chunks)
	if err != nil {
		return nil, err
	}
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks WHERE doc_id = ? AND chunk_type != ?",
		docID, ChunkTypeText).Scan(&stats.Tables)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// DeleteDocument removes a document, its chunks, register entries and
// embeddings. Returns sql.ErrNoRows when the document does not exist.
func (s *Store) DeleteDocument(ctx context.Context, docID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var exists string
		if err := tx.QueryRowContext(ctx,
			"SELECT id FROM documents WHERE id = ?", docID).Scan(&exists); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM registers WHERE chunk_id IN (
				SELECT chunk_id FROM chunks WHERE doc_id = ?
			)`, docID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM vec_chunks WHERE chunk_id IN (
				SELECT id FROM chunks WHERE doc_id = ?
			)`, docID); err != nil {
			return err
		}

		// Triggers clean up FTS rows.
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM chunks WHERE doc_id = ?", docID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", docID)
		return err
	})
}

// --- Chunk operations ---

// InsertChunks writes a batch of chunks and returns their rowids,
// aligned with the input. Register names from structured table chunks
// are mirrored into the registers lookup table. Re-inserting a chunk
// with the same chunk_id replaces it.
func (s *Store) InsertChunks(ctx context.Context, chunks []Chunk) ([]int64, error) {
	rowIDs := make([]int64, len(chunks))

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (chunk_id, doc_id, chunk_type, text, structured_data, metadata, page_start, page_end)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(chunk_id) DO UPDATE SET
				doc_id = excluded.doc_id,
				chunk_type = excluded.chunk_type,
				text = excluded.text,
				structured_data = excluded.structured_data,
				metadata = excluded.metadata,
				page_start = excluded.page_start,
				page_end = excluded.page_end
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, c := range chunks {
			structured, err := marshalStructured(c.Structured)
			if err != nil {
				return fmt.Errorf("chunk %s: %w", c.ID, err)
			}

			if _, err := stmt.ExecContext(ctx,
				c.ID, c.DocID, c.ChunkType, c.Text, structured,
				marshalMeta(c.Metadata), c.PageStart, c.PageEnd); err != nil {
				return fmt.Errorf("chunk %s: %w", c.ID, err)
			}

			// The upsert path makes LastInsertId unreliable, so read the
			// rowid back explicitly.
			if err := tx.QueryRowContext(ctx,
				"SELECT id FROM chunks WHERE chunk_id = ?", c.ID).Scan(&rowIDs[i]); err != nil {
				return err
			}

			if err := syncRegisters(ctx, tx, c); err != nil {
				return err
			}
		}
		return nil
	})

	return rowIDs, err
}

// syncRegisters rebuilds the register lookup rows for a table chunk.
func syncRegisters(ctx context.Context, tx *sql.Tx, c Chunk) error {
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM registers WHERE chunk_id = ?", c.ID); err != nil {
		return err
	}
	if c.Structured == nil {
		return nil
	}
	for _, reg := range c.Structured.Registers {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO registers (name, peripheral, address, offset, chunk_id)
			VALUES (?, ?, ?, ?, ?)
		`, reg.Name, c.Structured.Peripheral, nullable(reg.Address), nullable(reg.Offset), c.ID); err != nil {
			return err
		}
	}
	return nil
}

// GetChunk retrieves one chunk by its content-addressed ID.
func (s *Store) GetChunk(ctx context.Context, chunkID string) (*Chunk, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT chunk_id, doc_id, chunk_type, text, structured_data, metadata, page_start, page_end
		FROM chunks WHERE chunk_id = ?
	`, chunkID)
	return scanChunk(row.Scan)
}

// GetChunksByDocument returns all chunks for a given document.
func (s *Store) GetChunksByDocument(ctx context.Context, docID string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, doc_id, chunk_type, text, structured_data, metadata, page_start, page_end
		FROM chunks WHERE doc_id = ? ORDER BY id
	`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		c, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *c)
	}
	return chunks, rows.Err()
}

func scanChunk(scan func(...any) error) (*Chunk, error) {
	var c Chunk
	var structured, metadata sql.NullString
	if err := scan(&c.ID, &c.DocID, &c.ChunkType, &c.Text,
		&structured, &metadata, &c.PageStart, &c.PageEnd); err != nil {
		return nil, err
	}
	if structured.Valid && structured.String != "" {
		var table tables.RegisterTable
		if err := json.Unmarshal([]byte(structured.String), &table); err != nil {
			return nil, fmt.Errorf("decoding structured data: %w", err)
		}
		c.Structured = &table
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &c.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata: %w", err)
		}
	}
	return &c, nil
}

// FindRegister locates the chunk defining a register by exact name,
// optionally narrowed to a peripheral. Returns sql.ErrNoRows when no
// register matches.
func (s *Store) FindRegister(ctx context.Context, name, peripheral string) (*Chunk, error) {
	var chunkID string
	var err error
	if peripheral != "" {
		err = s.db.QueryRowContext(ctx,
			"SELECT chunk_id FROM registers WHERE name = ? AND peripheral = ? LIMIT 1",
			name, peripheral).Scan(&chunkID)
	} else {
		err = s.db.QueryRowContext(ctx,
			"SELECT chunk_id FROM registers WHERE name = ? LIMIT 1",
			name).Scan(&chunkID)
	}
	if err != nil {
		return nil, err
	}
	return s.GetChunk(ctx, chunkID)
}

// --- Search operations ---

// KeywordSearch runs an FTS5 query and returns matches as positive
// BM25 magnitudes (higher is better), best first.
func (s *Store) KeywordSearch(ctx context.Context, query string, topK int, docFilter string) ([]ScoredChunk, error) {
	var rows *sql.Rows
	var err error
	if docFilter != "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT c.chunk_id, f.rank
			FROM chunks_fts f
			JOIN chunks c ON c.id = f.rowid
			WHERE chunks_fts MATCH ? AND c.doc_id = ?
			ORDER BY f.rank
			LIMIT ?
		`, query, docFilter, topK)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT c.chunk_id, f.rank
			FROM chunks_fts f
			JOIN chunks c ON c.id = f.rowid
			WHERE chunks_fts MATCH ?
			ORDER BY f.rank
			LIMIT ?
		`, query, topK)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ScoredChunk
	for rows.Next() {
		var r ScoredChunk
		var rank float64
		if err := rows.Scan(&r.ChunkID, &rank); err != nil {
			return nil, err
		}
		// FTS5 rank is negative (lower = better).
		r.Score = math.Abs(rank)
		results = append(results, r)
	}
	return results, rows.Err()
}

// VectorSearch performs a KNN search returning the top-k nearest
// chunks with their L2 distances.
func (s *Store) VectorSearch(ctx context.Context, queryEmbedding []float32, k int) ([]VectorHit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.chunk_id, c.doc_id, v.distance
		FROM vec_chunks v
		JOIN chunks c ON c.id = v.chunk_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(queryEmbedding), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []VectorHit
	for rows.Next() {
		var h VectorHit
		if err := rows.Scan(&h.ChunkID, &h.DocID, &h.Distance); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// InsertEmbedding stores a vector embedding for a chunk rowid.
func (s *Store) InsertEmbedding(ctx context.Context, rowID int64, embedding []float32) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)",
		rowID, serializeFloat32(embedding))
	return err
}

// --- Stats ---

// Stats returns counts of documents, chunks, tables, registers and
// embeddings.
func (s *Store) Stats(ctx context.Context) (*DBStats, error) {
	stats := &DBStats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM documents", &stats.Documents},
		{"SELECT COUNT(*) FROM chunks", &stats.Chunks},
		{"SELECT COUNT(*) FROM chunks WHERE chunk_type != '" + ChunkTypeText + "'", &stats.Tables},
		{"SELECT COUNT(*) FROM registers", &stats.Registers},
		{"SELECT COUNT(*) FROM vec_chunks", &stats.Embeddings},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", q.query, err)
		}
	}
	return stats, nil
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func marshalStructured(table *tables.RegisterTable) (any, error) {
	if table == nil {
		return nil, nil
	}
	b, err := json.Marshal(table)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// marshalMeta serialises a metadata map to a JSON string.
// Returns "{}" for nil or empty maps.
func marshalMeta(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
