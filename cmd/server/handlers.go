package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brunobiangulo/regdocs"
	"github.com/brunobiangulo/regdocs/retrieval"
)

type handler struct {
	engine   regdocs.Engine
	docsDirs []string
}

func newHandler(e regdocs.Engine, docsDirs []string) *handler {
	return &handler{engine: e, docsDirs: docsDirs}
}

// POST /ingest
// Accepts multipart file upload or JSON with file path.
func (h *handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	// Try multipart upload first
	if err := r.ParseMultipartForm(100 << 20); err == nil { // 100MB max
		file, header, err := r.FormFile("file")
		if err == nil {
			defer file.Close()

			// Sanitise filename to prevent path traversal.
			safeName := filepath.Base(header.Filename)

			tmpPath := filepath.Join(os.TempDir(), safeName)
			dst, err := os.Create(tmpPath)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to process file")
				slog.Error("creating temp file", "error", err)
				return
			}
			if _, err := io.Copy(dst, file); err != nil {
				dst.Close()
				writeError(w, http.StatusInternalServerError, "failed to save file")
				slog.Error("saving uploaded file", "error", err)
				return
			}
			dst.Close()
			defer os.Remove(tmpPath)

			result, err := h.engine.Ingest(ctx, tmpPath, ingestOptionsFromForm(r)...)
			if err != nil {
				writeIngestError(w, err)
				return
			}

			writeJSON(w, http.StatusOK, result)
			return
		}
	}

	// Try JSON body with path
	var req struct {
		Path    string `json:"path"`
		Title   string `json:"title,omitempty"`
		Version string `json:"version,omitempty"`
		Force   bool   `json:"force,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: expected multipart file or JSON with 'path'")
		return
	}

	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	// Validate that path is a real file (prevents directory traversal probing).
	absPath, err := filepath.Abs(req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(absPath)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusBadRequest, "path must be an existing file")
		return
	}

	var opts []regdocs.IngestOption
	if req.Title != "" {
		opts = append(opts, regdocs.WithTitle(req.Title))
	}
	if req.Version != "" {
		opts = append(opts, regdocs.WithVersion(req.Version))
	}
	if req.Force {
		opts = append(opts, regdocs.WithForceReparse())
	}

	result, err := h.engine.Ingest(ctx, absPath, opts...)
	if err != nil {
		writeIngestError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func ingestOptionsFromForm(r *http.Request) []regdocs.IngestOption {
	var opts []regdocs.IngestOption
	if v := r.FormValue("title"); v != "" {
		opts = append(opts, regdocs.WithTitle(v))
	}
	if v := r.FormValue("version"); v != "" {
		opts = append(opts, regdocs.WithVersion(v))
	}
	if r.FormValue("force") != "" {
		opts = append(opts, regdocs.WithForceReparse())
	}
	return opts
}

func writeIngestError(w http.ResponseWriter, err error) {
	if errors.Is(err, regdocs.ErrUnsupportedFormat) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "ingestion failed")
	slog.Error("ingest error", "error", err)
}

// POST /search
func (h *handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req struct {
		Query     string `json:"query"`
		TopK      int    `json:"top_k,omitempty"`
		DocFilter string `json:"doc_filter,omitempty"`
		Markdown  bool   `json:"markdown,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	// Bound parameters.
	if req.TopK < 0 || req.TopK > 100 {
		req.TopK = 0 // use default
	}

	results, err := h.engine.Search(ctx, req.Query, req.TopK, req.DocFilter)
	if err != nil {
		if errors.Is(err, regdocs.ErrNoResults) {
			writeJSON(w, http.StatusOK, searchResponse(req.Query, nil, req.Markdown))
			return
		}
		writeError(w, http.StatusInternalServerError, "search failed")
		slog.Error("search error", "query", req.Query, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse(req.Query, results, req.Markdown))
}

func searchResponse(query string, results []retrieval.SearchResult, markdown bool) map[string]any {
	resp := map[string]any{
		"query":   query,
		"count":   len(results),
		"results": results,
	}
	if markdown {
		resp["markdown"] = retrieval.FormatResults(results)
	}
	return resp
}

// GET /registers/{name}?peripheral=UART0
func (h *handler) handleFindRegister(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	peripheral := r.URL.Query().Get("peripheral")

	result, err := h.engine.FindRegister(r.Context(), name, peripheral)
	if err != nil {
		if errors.Is(err, regdocs.ErrRegisterNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "register lookup failed")
		slog.Error("find register error", "name", name, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"register": result,
		"markdown": retrieval.FormatRegister(result),
	})
}

// GET /documents
func (h *handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.engine.ListDocuments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		slog.Error("list documents error", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
	})
}

// fileEntry describes one ingestible file found in the docs directories.
type fileEntry struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Size     int64  `json:"size_bytes"`
	Ingested bool   `json:"ingested"`
}

// GET /files
// Scans the configured docs directories for ingestible documents and
// reports whether each is already indexed. Missing directories are
// skipped.
func (h *handler) handleListFiles(w http.ResponseWriter, r *http.Request) {
	docs, err := h.engine.ListDocuments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		slog.Error("list files error", "error", err)
		return
	}
	indexed := make(map[string]bool, len(docs))
	for _, d := range docs {
		indexed[d.Filename] = true
	}

	files := []fileEntry{}
	for _, dir := range h.docsDirs {
		filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".pdf", ".xlsx", ".xlsm":
			default:
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			files = append(files, fileEntry{
				Name:     d.Name(),
				Path:     path,
				Size:     info.Size(),
				Ingested: indexed[d.Name()],
			})
			return nil
		})
	}

	// Ingested files first, then by name.
	sort.Slice(files, func(i, j int) bool {
		if files[i].Ingested != files[j].Ingested {
			return files[i].Ingested
		}
		return files[i].Name < files[j].Name
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"files": files,
		"total": len(files),
	})
}

// DELETE /documents/{id}
func (h *handler) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	if err := h.engine.Delete(r.Context(), id); err != nil {
		if errors.Is(err, regdocs.ErrDocumentNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "delete failed")
		slog.Error("delete error", "document_id", id, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GET /stats
func (h *handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read stats")
		slog.Error("stats error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
