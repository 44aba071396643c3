package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/brunobiangulo/regdocs"
	"github.com/brunobiangulo/regdocs/retrieval"
	"github.com/brunobiangulo/regdocs/store"
)

// fakeEngine serves canned document listings for handler tests.
type fakeEngine struct {
	docs []regdocs.DocumentInfo
}

func (f *fakeEngine) Ingest(context.Context, string, ...regdocs.IngestOption) (*regdocs.IngestResult, error) {
	return nil, nil
}

func (f *fakeEngine) Search(context.Context, string, int, string) ([]retrieval.SearchResult, error) {
	return nil, nil
}

func (f *fakeEngine) FindRegister(context.Context, string, string) (*retrieval.SearchResult, error) {
	return nil, nil
}

func (f *fakeEngine) ListDocuments(context.Context) ([]regdocs.DocumentInfo, error) {
	return f.docs, nil
}

func (f *fakeEngine) Delete(context.Context, string) error { return nil }

func (f *fakeEngine) Stats(context.Context) (*store.DBStats, error) { return nil, nil }

func (f *fakeEngine) Store() *store.Store { return nil }

func (f *fakeEngine) Close() error { return nil }

func TestHandleListFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"zeta_manual.pdf", "alpha_regs.xlsx", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("content"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	engine := &fakeEngine{docs: []regdocs.DocumentInfo{
		{ID: "doc1", Filename: "zeta_manual.pdf", Status: "ready"},
	}}
	h := newHandler(engine, []string{dir, filepath.Join(dir, "missing")})

	rec := httptest.NewRecorder()
	h.handleListFiles(rec, httptest.NewRequest(http.MethodGet, "/files", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Files []fileEntry `json:"files"`
		Total int         `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}

	if resp.Total != 2 {
		t.Fatalf("total = %d, want 2 (txt files excluded)", resp.Total)
	}

	// Ingested files sort first.
	if resp.Files[0].Name != "zeta_manual.pdf" || !resp.Files[0].Ingested {
		t.Errorf("first file = %+v, want ingested zeta_manual.pdf", resp.Files[0])
	}
	if resp.Files[1].Name != "alpha_regs.xlsx" || resp.Files[1].Ingested {
		t.Errorf("second file = %+v, want not-ingested alpha_regs.xlsx", resp.Files[1])
	}
	if resp.Files[1].Size != int64(len("content")) {
		t.Errorf("size = %d, want %d", resp.Files[1].Size, len("content"))
	}
}
