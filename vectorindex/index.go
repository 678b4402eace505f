// Package vectorindex implements the Vector Index (C2): a persistent
// id->vector store with L2 nearest-neighbor search and a label-set
// pre-filter, one instance per hybrid table.
//
// Grounded on the teacher's memory.VectorIndex (in-memory, brute-force,
// sync.RWMutex-guarded map keyed by id) generalized from cosine similarity
// over string ids to squared-Euclidean distance over int64 ids, with the
// save/load persistence and allowed-id pre-filter that the teacher's
// in-memory index does not need but the store-backed pgvector.Index(
// providers/pgvector/pgvector.go) does via SQL WHERE clauses — here
// reimplemented in-process since C2's persistence unit is a single file per
// table (§3), not a database row per vector.
package vectorindex

import (
	"fmt"
	"sort"
	"sync"
)

// Entry is one id->vector mapping held by the index.
type Entry struct {
	ID     int64
	Vector []float32
}

// Match is one ranked result of a nearest-neighbor search.
type Match struct {
	ID       int64
	Distance float64
}

// Index is the Vector Index (C2). The zero value is not usable; construct
// with New. Safe for concurrent use: readers (Search*) may proceed in
// parallel, writers (Add/Upsert) exclude all readers and other writers
// (§5 — "a single readers-writer lock per table is sufficient").
type Index struct {
	mu         sync.RWMutex
	dimensions int
	entries    map[int64][]float32
}

// New creates an empty Index for vectors of the given dimensionality.
func New(dimensions int) *Index {
	return &Index{
		dimensions: dimensions,
		entries:    make(map[int64][]float32),
	}
}

// Dimensions returns the configured vector width.
func (idx *Index) Dimensions() int {
	return idx.dimensions
}

// Len returns the number of entries currently held.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Add inserts id->vector. Pre-existing id results in unspecified duplicate
// behavior (here: silent overwrite) — callers that need an exactly-once
// postcondition must use Upsert (§4.2).
func (idx *Index) Add(id int64, vector []float32) error {
	if len(vector) != idx.dimensions {
		return fmt.Errorf("vectorindex: vector has %d dimensions, want %d", len(vector), idx.dimensions)
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[id] = vector
	return nil
}

// Upsert atomically removes any existing entry for id, then inserts the new
// mapping. Post-condition: exactly one entry for id.
func (idx *Index) Upsert(id int64, vector []float32) error {
	if len(vector) != idx.dimensions {
		return fmt.Errorf("vectorindex: vector has %d dimensions, want %d", len(vector), idx.dimensions)
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[id] = vector
	return nil
}

// Remove deletes the entry for id, if present.
func (idx *Index) Remove(id int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.entries, id)
}

// SearchTopK returns up to k matches sorted ascending by squared L2
// distance, ties broken by ascending id for reproducibility (§4.2).
func (idx *Index) SearchTopK(query []float32, k int) ([]Match, error) {
	return idx.SearchTopKFiltered(query, k, nil)
}

// SearchTopKFiltered restricts candidates to ids present in allowedIds. A
// nil allowedIds means "no restriction"; a non-nil, empty allowedIds yields
// an empty result (§4.2).
func (idx *Index) SearchTopKFiltered(query []float32, k int, allowedIds []int64) ([]Match, error) {
	if len(query) != idx.dimensions {
		return nil, fmt.Errorf("vectorindex: query has %d dimensions, want %d", len(query), idx.dimensions)
	}
	if allowedIds != nil && len(allowedIds) == 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var allowSet map[int64]bool
	if allowedIds != nil {
		allowSet = make(map[int64]bool, len(allowedIds))
		for _, id := range allowedIds {
			allowSet[id] = true
		}
	}

	matches := make([]Match, 0, len(idx.entries))
	for id, vec := range idx.entries {
		if allowSet != nil && !allowSet[id] {
			continue
		}
		matches = append(matches, Match{ID: id, Distance: squaredL2(query, vec)})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].ID < matches[j].ID
	})

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// squaredL2 computes squared Euclidean distance. No normalization beyond
// what the embedder performs (§4.2).
func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// snapshot returns a stable, sorted-by-id copy of all entries, used by
// persistence so the on-disk format is deterministic across saves of the
// same logical state.
func (idx *Index) snapshot() []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]Entry, 0, len(idx.entries))
	for id, vec := range idx.entries {
		out = append(out, Entry{ID: id, Vector: vec})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// restore replaces the index contents with entries, validating
// dimensionality along the way.
func (idx *Index) restore(dimensions int, entries []Entry) error {
	for _, e := range entries {
		if len(e.Vector) != dimensions {
			return fmt.Errorf("vectorindex: entry %d has %d dimensions, want %d", e.ID, len(e.Vector), dimensions)
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.dimensions = dimensions
	idx.entries = make(map[int64][]float32, len(entries))
	for _, e := range entries {
		idx.entries[e.ID] = e.Vector
	}
	return nil
}
