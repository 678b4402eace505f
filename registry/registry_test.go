package registry_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentplexus/hybridtable"
	"github.com/agentplexus/hybridtable/embed"
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
	f.rows[id] = hybridtable.Row{"id": id, "title": title}
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
	return nil, nil
}

func (f *fakeAdapter) LexicalSearchFiltered(ctx context.Context, table string, textColumns []string, queryText string, predicates []hybridtable.CompiledFilter, limit int) ([]int64, error) {
	return nil, nil
}

func (f *fakeAdapter) FilteredIDs(ctx context.Context, table string, predicates []hybridtable.CompiledFilter) ([]int64, error) {
	return nil, nil
}

func (f *fakeAdapter) FilteredIDsLimited(ctx context.Context, table string, predicates []hybridtable.CompiledFilter, limit int) ([]int64, error) {
	return nil, nil
}

func testSchemas(t *testing.T) *schema.Registry {
	t.Helper()
	s, err := schema.NewRegistry([]hybridtable.TableSchema{
		{Name: "items", TextColumns: []string{"title"}, Hybrid: true},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return s
}

func TestNewBuildsIndexOnEmptyDir(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.seed(1, "red camera")
	adapter.seed(2, "blue camera")
	embedder := embed.NewHashEmbedder(embed.DefaultDimensions)

	dir := t.TempDir()
	reg, err := registry.New(context.Background(), testSchemas(t), adapter, embedder, dir)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}

	idx, ok := reg.Get("items")
	if !ok {
		t.Fatalf("expected items index to be registered")
	}
	if idx.Len() != 2 {
		t.Fatalf("expected 2 entries built from store, got %d", idx.Len())
	}

	if _, err := os.Stat(filepath.Join(dir, "items.index")); err != nil {
		t.Fatalf("expected index persisted to disk: %v", err)
	}
}

func TestNewLoadsExistingIndexWithoutRebuilding(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.seed(1, "red camera")
	embedder := embed.NewHashEmbedder(embed.DefaultDimensions)
	dir := t.TempDir()

	if _, err := registry.New(context.Background(), testSchemas(t), adapter, embedder, dir); err != nil {
		t.Fatalf("first registry.New: %v", err)
	}

	// A row appears in the store after the index was persisted; a second
	// New that successfully loads from disk must not see it, proving load
	// took priority over rebuild.
	adapter.seed(2, "blue camera")

	reg2, err := registry.New(context.Background(), testSchemas(t), adapter, embedder, dir)
	if err != nil {
		t.Fatalf("second registry.New: %v", err)
	}
	idx, _ := reg2.Get("items")
	if idx.Len() != 1 {
		t.Fatalf("expected loaded index to retain its original 1 entry, got %d", idx.Len())
	}
}

func TestCorruptIndexFileTriggersRebuild(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.seed(1, "red camera")
	adapter.seed(2, "blue camera")
	embedder := embed.NewHashEmbedder(embed.DefaultDimensions)
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "items.index"), []byte("not a valid index"), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	reg, err := registry.New(context.Background(), testSchemas(t), adapter, embedder, dir)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	idx, _ := reg.Get("items")
	if idx.Len() != 2 {
		t.Fatalf("expected rebuild from store after corrupt load, got %d entries", idx.Len())
	}
}

func TestUpsertRecordIsIdempotent(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.seed(1, "red camera")
	embedder := embed.NewHashEmbedder(embed.DefaultDimensions)
	dir := t.TempDir()

	reg, err := registry.New(context.Background(), testSchemas(t), adapter, embedder, dir)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}

	if err := reg.UpsertRecord(context.Background(), "items", 1); err != nil {
		t.Fatalf("first UpsertRecord: %v", err)
	}
	if err := reg.UpsertRecord(context.Background(), "items", 1); err != nil {
		t.Fatalf("second UpsertRecord: %v", err)
	}

	idx, _ := reg.Get("items")
	if idx.Len() != 1 {
		t.Fatalf("expected idempotent upsert to leave a single entry, got %d", idx.Len())
	}
}

func TestUpsertRecordMissingRowReturnsNotFound(t *testing.T) {
	adapter := newFakeAdapter()
	embedder := embed.NewHashEmbedder(embed.DefaultDimensions)
	reg, err := registry.New(context.Background(), testSchemas(t), adapter, embedder, t.TempDir())
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}

	err = reg.UpsertRecord(context.Background(), "items", 99)
	if err != hybridtable.ErrRecordNotFound {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestRebuildPicksUpNewRows(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.seed(1, "red camera")
	embedder := embed.NewHashEmbedder(embed.DefaultDimensions)
	reg, err := registry.New(context.Background(), testSchemas(t), adapter, embedder, t.TempDir())
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}

	adapter.seed(2, "blue camera")
	if err := reg.Rebuild(context.Background(), "items"); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	idx, _ := reg.Get("items")
	if idx.Len() != 2 {
		t.Fatalf("expected rebuild to pick up new row, got %d entries", idx.Len())
	}
}

func TestRebuildAllWithEmptyStoreSucceeds(t *testing.T) {
	adapter := newFakeAdapter()
	embedder := embed.NewHashEmbedder(embed.DefaultDimensions)
	reg, err := registry.New(context.Background(), testSchemas(t), adapter, embedder, t.TempDir())
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	if err := reg.RebuildAll(context.Background()); err != nil {
		t.Fatalf("RebuildAll: %v", err)
	}
}
