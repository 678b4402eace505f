// Package bm25 implements a non-normative, in-process lexical retriever
// (§9 Open Questions, §12): the authoritative lexical path is the store's
// native full-text engine (store/postgres), but an in-memory alternative is
// useful for tests that should not require a live Postgres instance.
//
// Grounded on the teacher's memory.VectorIndex (memory/vector.go): the same
// brute-force, sync.RWMutex-guarded map-of-documents shape, generalized
// from cosine similarity over embeddings to BM25 scoring over tokenized
// text, and from string ids to the int64 ids the rest of this system uses.
// registry and hybridsearch never select this package by default.
package bm25

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/agentplexus/hybridtable"
	"github.com/agentplexus/hybridtable/store"
)

// BM25 free parameters, the conventional defaults.
const (
	k1 = 1.2
	b  = 0.75
)

type document struct {
	id       int64
	terms    []string
	termFreq map[string]int
	metadata map[string]any
}

// Index is a single table's in-memory BM25 document set.
type Index struct {
	mu       sync.RWMutex
	docs     map[int64]*document
	docFreq  map[string]int
	totalLen int
}

// New creates an empty Index.
func New() *Index {
	return &Index{
		docs:    make(map[int64]*document),
		docFreq: make(map[string]int),
	}
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return fields
}

// Add indexes (or replaces) the document for id with the given text and
// optional metadata, used by LexicalSearchFiltered's equality/in-set
// matching.
func (idx *Index) Add(id int64, text string, metadata map[string]any) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if existing, ok := idx.docs[id]; ok {
		idx.removeLocked(existing)
	}

	terms := tokenize(text)
	termFreq := make(map[string]int, len(terms))
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		termFreq[t]++
		if !seen[t] {
			idx.docFreq[t]++
			seen[t] = true
		}
	}

	doc := &document{id: id, terms: terms, termFreq: termFreq, metadata: metadata}
	idx.docs[id] = doc
	idx.totalLen += len(terms)
}

// removeLocked evicts doc's contribution to docFreq/totalLen. Callers must
// hold idx.mu for writing.
func (idx *Index) removeLocked(doc *document) {
	for t := range doc.termFreq {
		idx.docFreq[t]--
		if idx.docFreq[t] <= 0 {
			delete(idx.docFreq, t)
		}
	}
	idx.totalLen -= len(doc.terms)
	delete(idx.docs, doc.id)
}

// Remove evicts the document for id, if present.
func (idx *Index) Remove(id int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if doc, ok := idx.docs[id]; ok {
		idx.removeLocked(doc)
	}
}

func (idx *Index) avgDocLen() float64 {
	if len(idx.docs) == 0 {
		return 0
	}
	return float64(idx.totalLen) / float64(len(idx.docs))
}

// score computes the BM25 score of doc against the query terms. Must be
// called with idx.mu held for reading.
func (idx *Index) score(doc *document, queryTerms []string) float64 {
	avgLen := idx.avgDocLen()
	docLen := float64(len(doc.terms))
	n := float64(len(idx.docs))

	var total float64
	for _, qt := range queryTerms {
		freq, ok := doc.termFreq[qt]
		if !ok {
			continue
		}
		df := float64(idx.docFreq[qt])
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		tf := float64(freq)
		denom := tf + k1*(1-b+b*docLen/avgLen)
		total += idf * (tf * (k1 + 1)) / denom
	}
	return total
}

type scoredDoc struct {
	id    int64
	score float64
}

// search ranks every document against queryText, optionally restricted to
// those matching predicates via simple equality/in-set metadata lookups
// (range, like, and distance predicates are not evaluable against free-form
// metadata and are ignored — a documented limitation of this non-normative
// path, not of the authoritative store-native retriever).
func (idx *Index) search(queryText string, predicates []hybridtable.Predicate, limit int) []int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	queryTerms := tokenize(queryText)

	scored := make([]scoredDoc, 0, len(idx.docs))
	for _, doc := range idx.docs {
		if !matchesPredicates(doc.metadata, predicates) {
			continue
		}
		s := idx.score(doc, queryTerms)
		if s <= 0 {
			// No query term occurs in doc: it is not a match.
			continue
		}
		scored = append(scored, scoredDoc{id: doc.id, score: s})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].id < scored[j].id
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	ids := make([]int64, len(scored))
	for i, s := range scored {
		ids[i] = s.id
	}
	return ids
}

// matchesPredicates generalizes the teacher's matchesFilters (plain
// map[string]string equality) to the tagged Predicate set, supporting only
// the two kinds expressible against opaque metadata.
func matchesPredicates(metadata map[string]any, predicates []hybridtable.Predicate) bool {
	for _, p := range predicates {
		v, ok := metadata[p.Column]
		switch p.Kind {
		case hybridtable.PredicateEqual:
			if !ok || v != p.Value {
				return false
			}
		case hybridtable.PredicateInSet:
			if !ok {
				return false
			}
			found := false
			for _, want := range p.Values {
				if v == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			// Range/like/distance predicates are not evaluated by this
			// non-normative path; they pass through unfiltered.
		}
	}
	return true
}

// LexicalSearch implements store.LexicalSearcher.
func (idx *Index) LexicalSearch(ctx context.Context, table string, textColumns []string, queryText string, limit int) ([]int64, error) {
	return idx.search(queryText, nil, limit), nil
}

// LexicalSearchFiltered implements store.LexicalSearcher.
func (idx *Index) LexicalSearchFiltered(ctx context.Context, table string, textColumns []string, queryText string, predicates []hybridtable.CompiledFilter, limit int) ([]int64, error) {
	preds := make([]hybridtable.Predicate, len(predicates))
	for i, p := range predicates {
		preds[i] = p.Predicate
	}
	return idx.search(queryText, preds, limit), nil
}

var _ store.LexicalSearcher = (*Index)(nil)
