package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/brunobiangulo/regdocs/embedder"
	"github.com/brunobiangulo/regdocs/store"
)

// Config holds search engine weights and defaults.
type Config struct {
	KeywordWeight  float64
	SemanticWeight float64
	TopKDefault    int
}

// bothSourcesBoost is applied to chunks that appear in both the keyword
// and the semantic result sets.
const bothSourcesBoost = 1.2

// SearchResult is a scored chunk hydrated with its stored content.
type SearchResult struct {
	Chunk store.Chunk
	Score float64
}

// Engine performs hybrid retrieval combining FTS5 keyword search with
// vector similarity search over chunk embeddings.
type Engine struct {
	store    *store.Store
	embedder embedder.Provider
	cfg      Config
}

// New creates a search engine. Zero-valued weights fall back to the
// 0.4 keyword / 0.6 semantic defaults.
func New(s *store.Store, emb embedder.Provider, cfg Config) *Engine {
	if cfg.KeywordWeight == 0 && cfg.SemanticWeight == 0 {
		cfg.KeywordWeight = 0.4
		cfg.SemanticWeight = 0.6
	}
	if cfg.TopKDefault == 0 {
		cfg.TopKDefault = 5
	}
	return &Engine{store: s, embedder: emb, cfg: cfg}
}

// Search runs keyword and semantic search concurrently, normalizes each
// score set, and merges them with a weighted sum. Chunks found by both
// methods get a boost. docFilter restricts results to one document when
// non-empty. A failure in one method degrades to the other; an error is
// returned only when both produce nothing and at least one failed.
func (e *Engine) Search(ctx context.Context, query string, topK int, docFilter string) ([]SearchResult, error) {
	if topK <= 0 {
		topK = e.cfg.TopKDefault
	}
	// Each method fetches twice the requested count so the merged set
	// still has topK candidates after deduplication.
	fetchK := topK * 2

	start := time.Now()
	slog.Debug("retrieval: starting hybrid search",
		"query_len", len(query), "top_k", topK, "doc_filter", docFilter)

	type kwResult struct {
		hits []store.ScoredChunk
		err  error
	}
	type vecResult struct {
		hits []store.VectorHit
		err  error
	}

	kwCh := make(chan kwResult, 1)
	vecCh := make(chan vecResult, 1)

	go func() {
		hits, err := e.store.KeywordSearch(ctx, query, fetchK, docFilter)
		kwCh <- kwResult{hits, err}
	}()

	go func() {
		hits, err := e.semanticSearch(ctx, query, fetchK)
		vecCh <- vecResult{hits, err}
	}()

	kw := <-kwCh
	vec := <-vecCh

	if kw.err != nil {
		slog.Warn("retrieval: keyword search failed", "error", kw.err)
	}
	if vec.err != nil {
		slog.Warn("retrieval: semantic search failed", "error", vec.err)
	}

	keyword := normalizeKeywordScores(kw.hits)
	semantic := semanticScores(vec.hits, docFilter)

	combined := combineScores(keyword, semantic, e.cfg.KeywordWeight, e.cfg.SemanticWeight)

	slog.Debug("retrieval: searches complete",
		"keyword_hits", len(keyword), "semantic_hits", len(semantic),
		"combined", len(combined),
		"elapsed", time.Since(start).Round(time.Millisecond))

	if len(combined) == 0 {
		if kw.err != nil && vec.err != nil {
			return nil, fmt.Errorf("keyword search: %v; semantic search: %w", kw.err, vec.err)
		}
		return nil, nil
	}

	if len(combined) > topK {
		combined = combined[:topK]
	}

	results := make([]SearchResult, 0, len(combined))
	for _, sc := range combined {
		chunk, err := e.store.GetChunk(ctx, sc.ChunkID)
		if err != nil {
			slog.Warn("retrieval: failed to load chunk", "chunk_id", sc.ChunkID, "error", err)
			continue
		}
		results = append(results, SearchResult{Chunk: *chunk, Score: sc.Score})
	}
	return results, nil
}

// FindRegister looks up a register by exact name, optionally scoped to a
// peripheral, and returns its table chunk.
func (e *Engine) FindRegister(ctx context.Context, name, peripheral string) (*SearchResult, error) {
	chunk, err := e.store.FindRegister(ctx, name, peripheral)
	if err != nil {
		return nil, err
	}
	return &SearchResult{Chunk: *chunk, Score: 1.0}, nil
}

// semanticSearch embeds the query and runs nearest-neighbor search over
// the chunk embeddings.
func (e *Engine) semanticSearch(ctx context.Context, query string, k int) ([]store.VectorHit, error) {
	embeddings, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}
	return e.store.VectorSearch(ctx, embeddings[0], k)
}

// normalizeKeywordScores maps FTS5 rank magnitudes to [0, 1] relative to
// the best hit.
func normalizeKeywordScores(hits []store.ScoredChunk) map[string]float64 {
	scores := make(map[string]float64, len(hits))
	var maxScore float64
	for _, h := range hits {
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}
	if maxScore == 0 {
		maxScore = 1
	}
	for _, h := range hits {
		scores[h.ChunkID] = h.Score / maxScore
	}
	return scores
}

// semanticScores converts vector distances to similarities in [0, 1].
// Cosine distance ranges over [0, 2], so similarity is 1 - distance/2,
// clamped at zero. Hits from other documents are dropped when a filter
// is set.
func semanticScores(hits []store.VectorHit, docFilter string) map[string]float64 {
	scores := make(map[string]float64, len(hits))
	for _, h := range hits {
		if docFilter != "" && h.DocID != docFilter {
			continue
		}
		sim := 1 - h.Distance/2
		if sim < 0 {
			sim = 0
		}
		scores[h.ChunkID] = sim
	}
	return scores
}

// combineScores merges the two normalized score sets with a weighted sum
// and boosts chunks present in both, then sorts by score descending.
func combineScores(keyword, semantic map[string]float64, kwWeight, semWeight float64) []store.ScoredChunk {
	combined := make(map[string]float64, len(keyword)+len(semantic))
	for id, s := range keyword {
		combined[id] = s * kwWeight
	}
	for id, s := range semantic {
		combined[id] += s * semWeight
	}
	for id := range combined {
		if _, inKW := keyword[id]; !inKW {
			continue
		}
		if _, inSem := semantic[id]; !inSem {
			continue
		}
		combined[id] *= bothSourcesBoost
	}

	out := make([]store.ScoredChunk, 0, len(combined))
	for id, s := range combined {
		out = append(out, store.ScoredChunk{ChunkID: id, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out
}
