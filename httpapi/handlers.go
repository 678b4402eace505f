package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/agentplexus/hybridtable"
	"github.com/agentplexus/hybridtable/hybridsearch"
	"github.com/agentplexus/hybridtable/registry"
)

// searchResponse is the §6 single-table response shape.
type searchResponse struct {
	Results []hybridtable.Row `json:"results"`
}

// Handlers wires the core packages' behavior to HTTP (§6). It holds no
// state of its own beyond the collaborators it was built with.
type Handlers struct {
	orchestrator *hybridsearch.Orchestrator
	registry     *registry.Registry
}

// NewHandlers constructs a Handlers for the given orchestrator and registry.
func NewHandlers(orch *hybridsearch.Orchestrator, reg *registry.Registry) *Handlers {
	return &Handlers{orchestrator: orch, registry: reg}
}

// defaultSearchTop and defaultOmnisearchTop match §6's documented query
// param defaults.
const (
	defaultSearchTop     = 50
	defaultOmnisearchTop = 25
)

func parseTop(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("top")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// Search implements GET /indexes/{table}.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	q := hybridtable.Query{
		Table:        table,
		Text:         r.URL.Query().Get("query"),
		Top:          parseTop(r, defaultSearchTop),
		FilterString: r.URL.Query().Get("filters"),
	}

	rows, err := h.orchestrator.Search(r.Context(), q)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: shapeRows(rows)})
}

// Upsert implements POST /indexes/{table}?item_id=.
func (h *Handlers) Upsert(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	raw := r.URL.Query().Get("item_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ITEM_ID", "item_id must be an integer")
		return
	}

	if err := h.registry.UpsertRecord(r.Context(), table, id); err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "item_id": id})
}

// ReindexTable implements POST /indexes/{table}/reindex.
func (h *Handlers) ReindexTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	if err := h.registry.Rebuild(r.Context(), table); err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "table": table})
}

// ReindexAll implements POST /indexes/reindex.
func (h *Handlers) ReindexAll(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.RebuildAll(r.Context()); err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// Omnisearch implements GET /indexes/omnisearch: fan out §4.6 over each
// named table, reporting a per-table result or a per-table error object
// rather than failing the whole request when one table errors.
func (h *Handlers) Omnisearch(w http.ResponseWriter, r *http.Request) {
	tablesParam := r.URL.Query().Get("tables")
	var tables []string
	for _, t := range strings.Split(tablesParam, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tables = append(tables, t)
		}
	}

	text := r.URL.Query().Get("query")
	filterString := r.URL.Query().Get("filters")
	top := parseTop(r, defaultOmnisearchTop)

	out := make(map[string]any, len(tables))
	for _, table := range tables {
		rows, err := h.orchestrator.Search(r.Context(), hybridtable.Query{
			Table:        table,
			Text:         text,
			Top:          top,
			FilterString: filterString,
		})
		if err != nil {
			out[table] = errorResponse{Error: errorDetail{Code: errorCode(err), Message: err.Error()}}
			continue
		}
		out[table] = searchResponse{Results: shapeRows(rows)}
	}

	writeJSON(w, http.StatusOK, out)
}

func errorCode(err error) string {
	switch {
	case err == hybridtable.ErrTableNotFound:
		return "TABLE_NOT_FOUND"
	case err == hybridtable.ErrRecordNotFound:
		return "RECORD_NOT_FOUND"
	default:
		return "INTERNAL_ERROR"
	}
}
