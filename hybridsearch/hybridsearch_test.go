package hybridsearch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/agentplexus/hybridtable"
	"github.com/agentplexus/hybridtable/embed"
	"github.com/agentplexus/hybridtable/hybridsearch"
	"github.com/agentplexus/hybridtable/registry"
	"github.com/agentplexus/hybridtable/schema"
)

// fakeAdapter is an in-memory store.Adapter stand-in, grounded on the
// teacher's memory package pattern of a minimal struct satisfying a
// capability interface without any database behind it.
type fakeAdapter struct {
	rows map[int64]hybridtable.Row
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{rows: make(map[int64]hybridtable.Row)}
}

func (f *fakeAdapter) seed(id int64, title, status string) {
	f.rows[id] = hybridtable.Row{"id": id, "title": title, "status": status}
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
		if title, ok := r["title"].(string); ok && contains(title, queryText) {
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
	ids, err := f.FilteredIDs(ctx, table, predicates)
	if err != nil {
		return nil, err
	}
	if limit >= 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func contains(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func buildOrchestrator(t *testing.T, hybrid bool) (*hybridsearch.Orchestrator, *fakeAdapter) {
	t.Helper()
	s, err := schema.NewRegistry([]hybridtable.TableSchema{
		{Name: "items", TextColumns: []string{"title"}, Hybrid: hybrid},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	adapter := newFakeAdapter()
	adapter.seed(1, "red camera", "active")
	adapter.seed(2, "blue camera", "active")
	adapter.seed(3, "power drill", "active")

	embedder := embed.NewHashEmbedder(embed.DefaultDimensions)

	reg, err := registry.New(context.Background(), s, adapter, embedder, t.TempDir())
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}

	return hybridsearch.New(s, reg, adapter, embedder, nil), adapter
}

func TestSearchUnknownTableReturnsNotFound(t *testing.T) {
	orch, _ := buildOrchestrator(t, true)
	_, err := orch.Search(context.Background(), hybridtable.Query{Table: "missing", Text: "camera"})
	if !errors.Is(err, hybridtable.ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound, got %v", err)
	}
}

func TestSearchLexicalOnlyWhenNotHybrid(t *testing.T) {
	orch, _ := buildOrchestrator(t, false)
	rows, err := orch.Search(context.Background(), hybridtable.Query{Table: "items", Text: "camera", Top: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 lexical matches, got %d: %v", len(rows), rows)
	}
}

func TestSearchFusesLexicalAndSemanticWithoutDuplicates(t *testing.T) {
	orch, _ := buildOrchestrator(t, true)
	rows, err := orch.Search(context.Background(), hybridtable.Query{Table: "items", Text: "camera", Top: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	seen := make(map[int64]bool)
	for _, r := range rows {
		id, _ := r.ID()
		if seen[id] {
			t.Fatalf("duplicate id %d in fused results: %v", id, rows)
		}
		seen[id] = true
	}
	if !seen[1] || !seen[2] {
		t.Fatalf("expected both camera rows present, got %v", rows)
	}
}

func TestSearchNoQueryNoFilterFallsBackToFilteredIDsLimited(t *testing.T) {
	orch, _ := buildOrchestrator(t, true)
	rows, err := orch.Search(context.Background(), hybridtable.Query{Table: "items", Top: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected FilteredIDsLimited to cap results at 2, got %d", len(rows))
	}
}

func TestSearchTopDefaultsToOne(t *testing.T) {
	orch, _ := buildOrchestrator(t, true)
	rows, err := orch.Search(context.Background(), hybridtable.Query{Table: "items"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected top defaulted to 1, got %d rows", len(rows))
	}
}

func TestSearchHydrationSkipsRowsMissingFromStore(t *testing.T) {
	orch, adapter := buildOrchestrator(t, true)
	delete(adapter.rows, 1)

	rows, err := orch.Search(context.Background(), hybridtable.Query{Table: "items", Text: "camera", Top: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range rows {
		id, _ := r.ID()
		if id == 1 {
			t.Fatalf("expected deleted row 1 to be skipped during hydration, got %v", rows)
		}
	}
}
