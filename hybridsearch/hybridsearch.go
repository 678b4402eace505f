// Package hybridsearch implements the Hybrid Orchestrator (C6): given a
// request it compiles filters, runs lexical and semantic retrieval
// pre-filtered identically, fuses the two id streams by ordered union, and
// hydrates rows (§4.6).
//
// Grounded on the teacher's hybrid.Retriever.retrieveParallel
// (hybrid/hybrid.go): lexical and semantic retrieval run on goroutines over
// a buffered channel pair exactly as the teacher runs vector/graph
// retrieval concurrently, generalized from a score-weighted merge down to
// the spec's ordered-union dedup (Non-goals explicitly exclude
// learning-to-rank/score fusion).
package hybridsearch

import (
	"context"
	"fmt"
	"time"

	"strings"

	"github.com/agentplexus/hybridtable"
	"github.com/agentplexus/hybridtable/filter"
	"github.com/agentplexus/hybridtable/registry"
	"github.com/agentplexus/hybridtable/schema"
	"github.com/agentplexus/hybridtable/store"
	"github.com/agentplexus/hybridtable/vectorindex"
)

// sentinelID marks an absent vector-index search slot and is discarded
// before fusion (§4.6 "Sentinel filtering").
const sentinelID int64 = -1

// Orchestrator is the Hybrid Orchestrator (C6).
type Orchestrator struct {
	schemas  *schema.Registry
	registry *registry.Registry
	store    store.Adapter
	embedder hybridtable.Embedder
	observer hybridtable.Observer
}

// New constructs an Orchestrator. observer may be nil, in which case events
// are discarded.
func New(schemas *schema.Registry, reg *registry.Registry, adapter store.Adapter, embedder hybridtable.Embedder, observer hybridtable.Observer) *Orchestrator {
	if observer == nil {
		observer = noopObserver{}
	}
	return &Orchestrator{schemas: schemas, registry: reg, store: adapter, embedder: embedder, observer: observer}
}

// Search implements §4.6 end to end: schema resolution, filter compilation,
// dual retrieval, fusion, and hydration.
func (o *Orchestrator) Search(ctx context.Context, q hybridtable.Query) ([]hybridtable.Row, error) {
	start := time.Now()
	ctx = o.observer.OnSearchStart(ctx, q)

	s, ok := o.schemas.Get(q.Table)
	if !ok {
		err := hybridtable.ErrTableNotFound
		o.observer.OnSearchEnd(ctx, q.Table, 0, time.Since(start).Milliseconds(), err)
		return nil, err
	}

	text := normalizeQueryText(q.Text)
	hasQuery := text != ""

	predicates, warnings := filter.Compile(q.FilterString, s)
	for _, w := range warnings {
		o.observer.OnWarning(ctx, "filter", w.Message, map[string]any{"column": w.Column})
	}

	top := q.Top
	if top < 1 {
		top = 1
	}

	lexicalIDs, semanticIDs := o.retrieve(ctx, s, text, hasQuery, predicates, top)

	fused := fuse(lexicalIDs, semanticIDs)

	rows, err := o.hydrate(ctx, q.Table, s.TextColumns, fused)
	if err != nil {
		o.observer.OnSearchEnd(ctx, q.Table, 0, time.Since(start).Milliseconds(), err)
		return nil, err
	}

	o.observer.OnSearchEnd(ctx, q.Table, len(rows), time.Since(start).Milliseconds(), nil)
	return rows, nil
}

// normalizeQueryText implements §4.6 step 2: lowercase, trim.
func normalizeQueryText(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// retrieveResult carries one retriever's outcome across its goroutine.
type retrieveResult struct {
	ids   []int64
	count int
	err   error
}

// retrieve runs the four cases of §4.6 step 4. Lexical and semantic
// retrieval proceed concurrently (§5: "may proceed concurrently"); the
// caller observes lexical before semantic regardless of completion order,
// since both channels are read in a fixed sequence below.
func (o *Orchestrator) retrieve(ctx context.Context, s hybridtable.TableSchema, text string, hasQuery bool, predicates []hybridtable.CompiledFilter, top int) (lexicalIDs, semanticIDs []int64) {
	lexicalCh := make(chan retrieveResult, 1)
	semanticCh := make(chan retrieveResult, 1)

	go func() {
		start := time.Now()
		var ids []int64
		var err error
		switch {
		case !hasQuery && len(predicates) == 0:
			ids, err = o.store.FilteredIDsLimited(ctx, s.Name, nil, top)
		case !hasQuery && len(predicates) > 0:
			ids, err = o.store.FilteredIDsLimited(ctx, s.Name, predicates, top)
		case hasQuery && len(predicates) == 0:
			ids, err = o.store.LexicalSearch(ctx, s.Name, s.TextColumns, text, top)
		default: // hasQuery && len(predicates) > 0
			ids, err = o.store.LexicalSearchFiltered(ctx, s.Name, s.TextColumns, text, predicates, top)
		}
		if err != nil {
			o.observer.OnWarning(ctx, "store", "lexical retrieval failed, degrading to empty results", map[string]any{"table": s.Name, "error": err.Error()})
			lexicalCh <- retrieveResult{}
			return
		}
		o.observer.OnLexicalSearch(ctx, s.Name, len(ids), time.Since(start).Milliseconds())
		lexicalCh <- retrieveResult{ids: ids, count: len(ids)}
	}()

	go func() {
		if !s.Hybrid || !hasQuery {
			semanticCh <- retrieveResult{}
			return
		}
		start := time.Now()
		idx, ok := o.registry.Get(s.Name)
		if !ok {
			semanticCh <- retrieveResult{}
			return
		}
		vec, err := o.embedder.Embed(ctx, text)
		if err != nil {
			o.observer.OnWarning(ctx, "embed", "query embedding failed, degrading to empty results", map[string]any{"table": s.Name, "error": err.Error()})
			semanticCh <- retrieveResult{}
			return
		}

		var ids []int64
		if len(predicates) > 0 {
			allowed, err := o.store.FilteredIDs(ctx, s.Name, predicates)
			if err != nil {
				o.observer.OnWarning(ctx, "store", "filtered ids failed, degrading to empty semantic results", map[string]any{"table": s.Name, "error": err.Error()})
				semanticCh <- retrieveResult{}
				return
			}
			results, err := idx.SearchTopKFiltered(vec, top, allowed)
			if err != nil {
				semanticCh <- retrieveResult{err: err}
				return
			}
			ids = matchIDs(results)
		} else {
			results, err := idx.SearchTopK(vec, top)
			if err != nil {
				semanticCh <- retrieveResult{err: err}
				return
			}
			ids = matchIDs(results)
		}

		o.observer.OnVectorSearch(ctx, s.Name, len(ids), time.Since(start).Milliseconds())
		semanticCh <- retrieveResult{ids: ids, count: len(ids)}
	}()

	lexicalRes := <-lexicalCh
	semanticRes := <-semanticCh

	if semanticRes.err != nil {
		o.observer.OnWarning(ctx, "vectorindex", "semantic retrieval failed, degrading to empty results", map[string]any{"table": s.Name, "error": semanticRes.err.Error()})
	}

	return lexicalRes.ids, semanticRes.ids
}

// matchIDs projects vectorindex.Match results (already sorted ascending by
// distance, ties broken by id) down to their ids.
func matchIDs(matches []vectorindex.Match) []int64 {
	ids := make([]int64, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	return ids
}

// fuse implements §4.6 step 5: ordered union, lexical first, each id
// emitted the first time it is seen. No truncation to top after fusion.
func fuse(lexicalIDs, semanticIDs []int64) []int64 {
	seen := make(map[int64]bool, len(lexicalIDs)+len(semanticIDs))
	out := make([]int64, 0, len(lexicalIDs)+len(semanticIDs))
	for _, id := range lexicalIDs {
		if id == sentinelID || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	for _, id := range semanticIDs {
		if id == sentinelID || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// hydrate implements §4.6 step 6: fetch rows for fused ids and re-emit in
// fusion order, silently skipping ids absent from the store (e.g. deleted
// rows still present in the vector index).
func (o *Orchestrator) hydrate(ctx context.Context, table string, textColumns []string, ids []int64) ([]hybridtable.Row, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := o.store.FetchByIDs(ctx, table, textColumns, ids)
	if err != nil {
		return nil, fmt.Errorf("hybridsearch: hydrate: %w", err)
	}

	byID := make(map[int64]hybridtable.Row, len(rows))
	for _, row := range rows {
		if id, ok := row.ID(); ok {
			byID[id] = row
		}
	}

	out := make([]hybridtable.Row, 0, len(ids))
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

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
