// Package hybridtable defines the shared request/response vocabulary for the
// hybrid search service: the Row/Query types that flow between the filter
// compiler, the store adapter, the vector index, and the hybrid orchestrator.
//
// Mirrors the role of the teacher's retrieve package, which defines the
// Query/Result/ContextItem vocabulary shared across vector, graph, and
// hybrid retrieval.
package hybridtable

import "context"

// Row is an opaque record keyed by a 64-bit id. The core never interprets
// fields beyond the declared text columns and filter columns.
type Row map[string]any

// ID extracts the row's id field. Rows are expected to carry an "id" key
// holding an int64 (or a type convertible to one via driver scanning).
func (r Row) ID() (int64, bool) {
	v, ok := r["id"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// Query is a single hybrid search request.
type Query struct {
	Table        string
	Text         string
	Top          int
	FilterString string
}

// PredicateKind identifies the shape of a compiled predicate. Predicate is a
// closed sum type: exactly one of the kind-specific fields below is
// meaningful for a given Kind. This is deliberately a tagged struct rather
// than an interface hierarchy (Design Notes: "a closed sum type, not a base
// class").
type PredicateKind string

const (
	PredicateEqual     PredicateKind = "equal"
	PredicateInSet     PredicateKind = "in_set"
	PredicateRangeMin  PredicateKind = "range_min"
	PredicateRangeMax  PredicateKind = "range_max"
	PredicateRangeBoth PredicateKind = "range_both"
	PredicateLike      PredicateKind = "like"
	PredicateWithin    PredicateKind = "within"
)

// Predicate is the typed output of the filter compiler, consumed by both the
// store adapter (translated to the store's query language) and the vector
// index (translated into an allowed-id set).
type Predicate struct {
	Kind   PredicateKind
	Column string

	// Equal, Like
	Value any

	// InSet
	Values []any

	// RangeMin, RangeMax, RangeBoth
	Min any
	Max any

	// Within
	LatColumn string
	LonColumn string
	CenterLat float64
	CenterLon float64
	MaxKM     float64
}

// CompiledFilter pairs a Predicate with the schema metadata that produced
// it, in the declaration order of the owning TableSchema's Filters.
type CompiledFilter struct {
	Column    string
	Kind      FilterKind
	DataType  DataType
	Predicate Predicate
}

// FilterKind is the shape of a filter clause's value grammar.
type FilterKind string

const (
	FilterExact    FilterKind = "exact"
	FilterIn       FilterKind = "in"
	FilterRange    FilterKind = "range"
	FilterLike     FilterKind = "like"
	FilterDistance FilterKind = "distance"
)

// DataType is the typed domain of a filter column.
type DataType string

const (
	DataInt     DataType = "int"
	DataDecimal DataType = "decimal"
	DataString  DataType = "string"
	DataEnum    DataType = "enum"
	DataDate    DataType = "date"
	DataGeo     DataType = "geo"
)

// FilterDescriptor declares one filterable column of a TableSchema.
type FilterDescriptor struct {
	Column         string
	Kind           FilterKind
	DataType       DataType
	ValidEnumValues []string
}

// TableSchema is the immutable, process-lifetime declaration of one table.
type TableSchema struct {
	Name           string
	TextColumns    []string
	Hybrid         bool
	Filters        []FilterDescriptor
	LatitudeColumn  string
	LongitudeColumn string
}

// Embedder maps text to a fixed-dimension real vector. Implementations must
// be referentially transparent within a process lifetime; failures are
// fatal at startup and propagate as retrieval errors per-call otherwise.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Observer receives events for the observability channel (§7: input-tolerant
// warnings and store failures are recorded here, never surfaced to callers).
type Observer interface {
	OnSearchStart(ctx context.Context, q Query) context.Context
	OnSearchEnd(ctx context.Context, table string, resultCount int, latencyMS int64, err error)
	OnLexicalSearch(ctx context.Context, table string, resultCount int, latencyMS int64)
	OnVectorSearch(ctx context.Context, table string, resultCount int, latencyMS int64)
	OnWarning(ctx context.Context, component string, message string, attrs map[string]any)
	OnUpsert(ctx context.Context, table string, id int64, latencyMS int64)
	OnRebuild(ctx context.Context, table string, rowCount int, latencyMS int64)
}
