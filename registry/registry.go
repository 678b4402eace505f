// Package registry implements the Index Registry (C5): per-table vector
// index lifecycle (load-or-build on startup, single-record upsert, full
// rebuild), holding one readers-writer lock per table so search can proceed
// concurrently with a rebuild of a different table (§5).
//
// Grounded on the teacher's hybrid.Retriever construction pattern
// (hybrid/hybrid.go's NewRetriever: a config struct assembled once, no
// hidden globals) and on providers/pgvector.Index's ensureTable-on-New
// startup procedure, generalized from a single Postgres table to per-table
// file-backed vectorindex.Index instances guarded by sync.RWMutex as
// memory.VectorIndex already demonstrates for a single index.
package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/agentplexus/hybridtable"
	"github.com/agentplexus/hybridtable/schema"
	"github.com/agentplexus/hybridtable/store"
	"github.com/agentplexus/hybridtable/vectorindex"
)

// tableIndex pairs a table's vector index with the lock that serializes
// writers against readers and other writers for that table (§5: "a single
// readers-writer lock per table is sufficient").
type tableIndex struct {
	mu    sync.RWMutex
	index *vectorindex.Index
}

// Registry is the Index Registry (C5). It owns every hybrid table's
// VectorIndex; the Hybrid Orchestrator borrows them read-only (Design
// Notes §9: "cycle-free ownership").
type Registry struct {
	schemas    *schema.Registry
	store      store.Adapter
	embedder   hybridtable.Embedder
	observer   hybridtable.Observer
	indexesDir string

	// mapMu guards insertion/removal of whole table entries (rebuild);
	// individual tableIndex.mu guards reads/writes within one table (§5).
	mapMu   sync.RWMutex
	indexes map[string]*tableIndex
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithObserver attaches an observability sink. Defaults to a no-op.
func WithObserver(o hybridtable.Observer) Option {
	return func(r *Registry) { r.observer = o }
}

// New constructs a Registry and loads or builds every hybrid table's vector
// index per §4.5's startup procedure. indexesDir is the directory holding
// one "<table>.index" file per hybrid table (§6 Persisted state layout).
func New(ctx context.Context, schemas *schema.Registry, adapter store.Adapter, embedder hybridtable.Embedder, indexesDir string, opts ...Option) (*Registry, error) {
	r := &Registry{
		schemas:    schemas,
		store:      adapter,
		embedder:   embedder,
		observer:   hybridtable.Observer(noopObserver{}),
		indexesDir: indexesDir,
		indexes:    make(map[string]*tableIndex),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, s := range schemas.All() {
		if !s.Hybrid {
			continue
		}
		idx, err := r.loadOrBuild(ctx, s, true)
		if err != nil {
			return nil, fmt.Errorf("registry: startup for table %q: %w", s.Name, err)
		}
		r.mapMu.Lock()
		r.indexes[s.Name] = &tableIndex{index: idx}
		r.mapMu.Unlock()
	}

	return r, nil
}

// path returns the canonical persisted-index path for table (§6).
func (r *Registry) path(table string) string {
	return filepath.Join(r.indexesDir, table+".index")
}

// loadOrBuild implements the §4.5 startup procedure for one table. When
// allowLoad is true and the index file exists, it is loaded and must be
// immediately usable without a rebuild (§9, §12: resolves the source's
// "_load_index returns False on success" bug). Otherwise every row is
// fetched, embedded, and added, then the index is persisted.
func (r *Registry) loadOrBuild(ctx context.Context, s hybridtable.TableSchema, allowLoad bool) (*vectorindex.Index, error) {
	path := r.path(s.Name)

	if allowLoad {
		if idx, err := vectorindex.Load(path); err == nil {
			return idx, nil
		}
		// Load failure (missing file or corruption) falls through to a
		// rebuild from the store (§7: "index corruption ... triggers a
		// rebuild from the store").
	}

	start := time.Now()
	rows, err := r.store.FetchAll(ctx, s.Name, s.TextColumns)
	if err != nil {
		return nil, fmt.Errorf("fetch all: %w", err)
	}

	idx := vectorindex.New(r.embedder.Dimensions())
	for _, row := range rows {
		id, ok := row.ID()
		if !ok {
			continue
		}
		text := concatTextColumns(row, s.TextColumns)
		if text == "" {
			r.observer.OnWarning(ctx, "registry", "row has no text, skipped", map[string]any{"table": s.Name, "id": id})
			continue
		}
		vec, err := r.embedder.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed row %d: %w", id, err)
		}
		if err := idx.Add(id, vec); err != nil {
			return nil, fmt.Errorf("add row %d: %w", id, err)
		}
	}

	if err := idx.Save(path); err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	r.observer.OnRebuild(ctx, s.Name, idx.Len(), time.Since(start).Milliseconds())
	return idx, nil
}

// concatTextColumns builds the embedding input: lowercased, space-joined
// text columns with missing/null columns skipped (§4.5).
func concatTextColumns(row hybridtable.Row, textColumns []string) string {
	var parts []string
	for _, col := range textColumns {
		v, ok := row[col]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		parts = append(parts, s)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// Get returns the VectorIndex registered for table, or ok=false if the
// table has no schema or is not hybrid. Callers (the Hybrid Orchestrator)
// borrow the returned index read-only.
func (r *Registry) Get(table string) (*vectorindex.Index, bool) {
	r.mapMu.RLock()
	defer r.mapMu.RUnlock()
	ti, ok := r.indexes[table]
	if !ok {
		return nil, false
	}
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	return ti.index, true
}

// UpsertRecord implements §4.5 upsertRecord: fetches the row, embeds its
// text columns, and upserts the vector. A no-op when the table is not
// hybrid. Returns hybridtable.ErrRecordNotFound when the row does not
// exist in the store.
func (r *Registry) UpsertRecord(ctx context.Context, table string, id int64) error {
	s, ok := r.schemas.Get(table)
	if !ok {
		return hybridtable.ErrTableNotFound
	}
	if !s.Hybrid {
		return nil
	}

	start := time.Now()
	row, found, err := r.store.FetchByID(ctx, table, s.TextColumns, id)
	if err != nil {
		return fmt.Errorf("registry: fetch row %d: %w", id, err)
	}
	if !found {
		return hybridtable.ErrRecordNotFound
	}

	text := concatTextColumns(row, s.TextColumns)
	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("registry: embed row %d: %w", id, err)
	}

	r.mapMu.RLock()
	ti, ok := r.indexes[table]
	r.mapMu.RUnlock()
	if !ok {
		return hybridtable.ErrTableNotFound
	}

	ti.mu.Lock()
	err = ti.index.Upsert(id, vec)
	ti.mu.Unlock()
	if err != nil {
		return fmt.Errorf("registry: upsert row %d: %w", id, err)
	}

	if err := r.persist(table, ti); err != nil {
		return fmt.Errorf("registry: persist after upsert: %w", err)
	}

	r.observer.OnUpsert(ctx, table, id, time.Since(start).Milliseconds())
	return nil
}

// Rebuild implements §4.5 rebuild: evicts the in-memory index and re-runs
// the startup procedure with allowLoad=false, excluding readers for the
// duration (§5).
func (r *Registry) Rebuild(ctx context.Context, table string) error {
	s, ok := r.schemas.Get(table)
	if !ok {
		return hybridtable.ErrTableNotFound
	}
	if !s.Hybrid {
		return nil
	}

	r.mapMu.RLock()
	ti, ok := r.indexes[table]
	r.mapMu.RUnlock()
	if !ok {
		return hybridtable.ErrTableNotFound
	}

	ti.mu.Lock()
	defer ti.mu.Unlock()

	idx, err := r.loadOrBuild(ctx, s, false)
	if err != nil {
		return fmt.Errorf("registry: rebuild table %q: %w", table, err)
	}
	ti.index = idx
	return nil
}

// RebuildAll implements §4.5 rebuildAll: rebuild in schema declaration
// order. Not concurrent with itself; each table's rebuild still excludes
// only that table's readers.
func (r *Registry) RebuildAll(ctx context.Context) error {
	for _, s := range r.schemas.All() {
		if !s.Hybrid {
			continue
		}
		if err := r.Rebuild(ctx, s.Name); err != nil {
			return err
		}
	}
	return nil
}

// persist saves ti's current index to its canonical path. vectorindex.Index
// guards its own snapshot internally, so no tableIndex-level lock is needed
// around the call.
func (r *Registry) persist(table string, ti *tableIndex) error {
	return ti.index.Save(r.path(table))
}

// noopObserver is the zero-value fallback when no Option sets an observer.
type noopObserver struct{}

func (noopObserver) OnSearchStart(ctx context.Context, _ hybridtable.Query) context.Context {
	return ctx
}
func (noopObserver) OnSearchEnd(context.Context, string, int, int64, error)    {}
func (noopObserver) OnLexicalSearch(context.Context, string, int, int64)       {}
func (noopObserver) OnVectorSearch(context.Context, string, int, int64)        {}
func (noopObserver) OnWarning(context.Context, string, string, map[string]any) {}
func (noopObserver) OnUpsert(context.Context, string, int64, int64)            {}
func (noopObserver) OnRebuild(context.Context, string, int, int64)             {}
