// Package store defines the Store Adapter (C3) capability set: the
// relational operations the hybrid search pipeline needs from a table's
// backing store, parameterized by table name. Concrete adapters (e.g.
// store/postgres) implement this interface; callers depend only on the
// interface, mirroring the teacher's split between a package of interfaces
// (vector.Index, graph.KnowledgeGraph) and a concrete providers/ package.
package store

import (
	"context"

	"github.com/agentplexus/hybridtable"
)

// Adapter is the Store Adapter (C3). Every method is parameterized by table
// name; callers are responsible for validating the name against the
// identifier grammar before it reaches an Adapter (schema.ValidIdentifier
// does this once, at registry construction time).
type Adapter interface {
	// FetchAll returns every row of table, used only for full rebuild.
	FetchAll(ctx context.Context, table string, textColumns []string) ([]hybridtable.Row, error)

	// FetchByID returns the row with the given id, or ok=false if absent.
	FetchByID(ctx context.Context, table string, textColumns []string, id int64) (row hybridtable.Row, ok bool, err error)

	// FetchByIDs returns the rows matching any of ids, in unspecified order;
	// callers reorder to match a desired id sequence.
	FetchByIDs(ctx context.Context, table string, textColumns []string, ids []int64) ([]hybridtable.Row, error)

	// LexicalSearch returns matching ids ordered by the store's native
	// full-text relevance ranking, most relevant first.
	LexicalSearch(ctx context.Context, table string, textColumns []string, queryText string, limit int) ([]int64, error)

	// LexicalSearchFiltered is LexicalSearch additionally constrained by the
	// conjunction of predicates.
	LexicalSearchFiltered(ctx context.Context, table string, textColumns []string, queryText string, predicates []hybridtable.CompiledFilter, limit int) ([]int64, error)

	// FilteredIDs returns every id matching the conjunction of predicates,
	// unlimited; used to materialize allowedIds for a filtered vector search.
	FilteredIDs(ctx context.Context, table string, predicates []hybridtable.CompiledFilter) ([]int64, error)

	// FilteredIDsLimited is FilteredIDs capped at limit, used when the
	// request carries no query text.
	FilteredIDsLimited(ctx context.Context, table string, predicates []hybridtable.CompiledFilter, limit int) ([]int64, error)
}

// LexicalSearcher is the subset of Adapter the lexical retrieval half of
// the Hybrid Orchestrator actually calls. Adapter satisfies it structurally
// (Go interfaces need no explicit embedding); bm25.Index is a second,
// non-normative implementation swappable in tests without a live store
// (§9 Open Questions, §12).
type LexicalSearcher interface {
	LexicalSearch(ctx context.Context, table string, textColumns []string, queryText string, limit int) ([]int64, error)
	LexicalSearchFiltered(ctx context.Context, table string, textColumns []string, queryText string, predicates []hybridtable.CompiledFilter, limit int) ([]int64, error)
}
