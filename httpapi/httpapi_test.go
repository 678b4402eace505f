package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentplexus/hybridtable"
	"github.com/agentplexus/hybridtable/embed"
	"github.com/agentplexus/hybridtable/httpapi"
	"github.com/agentplexus/hybridtable/hybridsearch"
	"github.com/agentplexus/hybridtable/registry"
	"github.com/agentplexus/hybridtable/schema"
)

type fakeAdapter struct {
	rows map[int64]hybridtable.Row
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{rows: make(map[int64]hybridtable.Row)}
}

func (f *fakeAdapter) seed(id int64, title string) {
	f.rows[id] = hybridtable.Row{"id": id, "title": title, "embedding": []float32{1, 2, 3}}
}

func (f *fakeAdapter) FetchAll(ctx context.Context, table string, textColumns []string) ([]hybridtable.Row, error) {
	out := make([]hybridtable.Row, 0, len(f.rows))
	for _, r := range f.rows {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeAdapter) FetchByID(ctx context.Context, table string, textColumns []string, id int64) (hybridtable.Row, bool, error) {
	r, ok := f.rows[id]
	return r, ok, nil
}

func (f *fakeAdapter) FetchByIDs(ctx context.Context, table string, textColumns []string, ids []int64) ([]hybridtable.Row, error) {
	var out []hybridtable.Row
	for _, id := range ids {
		if r, ok := f.rows[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeAdapter) LexicalSearch(ctx context.Context, table string, textColumns []string, queryText string, limit int) ([]int64, error) {
	var ids []int64
	for id, r := range f.rows {
		if title, _ := r["title"].(string); title == queryText {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeAdapter) LexicalSearchFiltered(ctx context.Context, table string, textColumns []string, queryText string, predicates []hybridtable.CompiledFilter, limit int) ([]int64, error) {
	return f.LexicalSearch(ctx, table, textColumns, queryText, limit)
}

func (f *fakeAdapter) FilteredIDs(ctx context.Context, table string, predicates []hybridtable.CompiledFilter) ([]int64, error) {
	var ids []int64
	for id := range f.rows {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeAdapter) FilteredIDsLimited(ctx context.Context, table string, predicates []hybridtable.CompiledFilter, limit int) ([]int64, error) {
	return f.FilteredIDs(ctx, table, predicates)
}

func buildRouter(t *testing.T) (http.Handler, *fakeAdapter) {
	t.Helper()
	s, err := schema.NewRegistry([]hybridtable.TableSchema{
		{Name: "items", TextColumns: []string{"title"}, Hybrid: true},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	adapter := newFakeAdapter()
	adapter.seed(1, "camera")
	embedder := embed.NewHashEmbedder(embed.DefaultDimensions)

	reg, err := registry.New(context.Background(), s, adapter, embedder, t.TempDir())
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}

	orch := hybridsearch.New(s, reg, adapter, embedder, nil)
	return httpapi.NewRouter(orch, reg), adapter
}

func TestSearchReturnsResultsWithoutDenylistedFields(t *testing.T) {
	router, _ := buildRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/indexes/items?query=camera&top=5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Results []map[string]any `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(body.Results))
	}
	if _, present := body.Results[0]["embedding"]; present {
		t.Fatalf("expected embedding field stripped, got %v", body.Results[0])
	}
}

func TestSearchUnknownTableReturns404(t *testing.T) {
	router, _ := buildRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/indexes/missing?query=camera", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestUpsertMissingItemIDIsBadRequest(t *testing.T) {
	router, _ := buildRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/indexes/items", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUpsertUnknownRecordReturns404(t *testing.T) {
	router, _ := buildRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/indexes/items?item_id=999", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUpsertExistingRecordSucceeds(t *testing.T) {
	router, _ := buildRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/indexes/items?item_id=1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestReindexTableAndAll(t *testing.T) {
	router, _ := buildRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/indexes/items/reindex", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for table reindex, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/indexes/reindex", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for reindex all, got %d", rec.Code)
	}
}

func TestOmnisearchReportsPerTableErrorsAndResults(t *testing.T) {
	router, _ := buildRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/indexes/omnisearch?query=camera&tables=items,missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, ok := body["items"]; !ok {
		t.Fatalf("expected items key in omnisearch response, got %v", body)
	}
	if _, ok := body["missing"]; !ok {
		t.Fatalf("expected missing key in omnisearch response, got %v", body)
	}

	var missingErr struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body["missing"], &missingErr); err != nil {
		t.Fatalf("decode missing entry: %v", err)
	}
	if missingErr.Error.Code != "TABLE_NOT_FOUND" {
		t.Fatalf("expected TABLE_NOT_FOUND for unknown table, got %q", missingErr.Error.Code)
	}
}
