// Package postgres implements the Store Adapter (C3) against a PostgreSQL
// backing store using database/sql and github.com/lib/pq, the driver the
// teacher uses for its pgvector provider (providers/pgvector/pgvector.go).
//
// Query construction mirrors pgvector.go's style: fmt.Sprintf around
// pq.QuoteIdentifier-escaped identifiers, always-bound parameters. Dynamic
// row-to-map scanning (rowsToMaps below) has no pack precedent beyond
// plain database/sql — the teacher's lib/pq usage and pgEdge's postgres-mcp
// both return typed rows, not arbitrary column sets — so it is built
// directly on database/sql's *sql.Rows.Columns()/Scan, the only available
// surface for a column set unknown until runtime (see DESIGN.md).
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/agentplexus/hybridtable"
	"github.com/agentplexus/hybridtable/schema"
	"github.com/agentplexus/hybridtable/store"
	"github.com/lib/pq"
)

// Adapter implements store.Adapter against a single *sql.DB connection
// pool. Safe for concurrent use; database/sql pools its own connections.
type Adapter struct {
	db *sql.DB
}

// New wraps an open *sql.DB as a Store Adapter.
func New(db *sql.DB) *Adapter {
	return &Adapter{db: db}
}

// query runs a SELECT and scans every column into a hybridtable.Row. Rows
// are returned with every column present; the denylist (embedding,
// created_at, updated_at, last_embedding_generated_at) is applied at the
// HTTP layer on the way out (§6), not here, since the core itself is
// schema-agnostic beyond id/text/filter columns.
func (a *Adapter) query(ctx context.Context, query string, args ...any) ([]hybridtable.Row, error) {
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer rows.Close()
	return rowsToMaps(rows)
}

// rowsToMaps scans every row of rows into a hybridtable.Row keyed by
// column name. Column count and types are unknown until runtime, so
// scanning uses a slice of *any destinations rather than typed fields.
func rowsToMaps(rows *sql.Rows) ([]hybridtable.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("postgres: columns: %w", err)
	}

	var out []hybridtable.Row
	for rows.Next() {
		values := make([]any, len(cols))
		dests := make([]any, len(cols))
		for i := range values {
			dests[i] = &values[i]
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}
		row := make(hybridtable.Row, len(cols))
		for i, c := range cols {
			row[c] = normalizeScanned(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows: %w", err)
	}
	return out, nil
}

// normalizeScanned converts lib/pq's []byte representation of text-ish
// columns into a plain string, leaving numeric/bool/time values as the
// driver already decoded them.
func normalizeScanned(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// FetchAll implements store.Adapter.
func (a *Adapter) FetchAll(ctx context.Context, table string, textColumns []string) ([]hybridtable.Row, error) {
	if !schema.ValidIdentifier(table) {
		return nil, fmt.Errorf("postgres: invalid table name %q", table)
	}
	q := fmt.Sprintf("SELECT * FROM %s", pq.QuoteIdentifier(table))
	return a.query(ctx, q)
}

// FetchByID implements store.Adapter.
func (a *Adapter) FetchByID(ctx context.Context, table string, textColumns []string, id int64) (hybridtable.Row, bool, error) {
	if !schema.ValidIdentifier(table) {
		return nil, false, fmt.Errorf("postgres: invalid table name %q", table)
	}
	q := fmt.Sprintf("SELECT * FROM %s WHERE id = $1", pq.QuoteIdentifier(table))
	rows, err := a.query(ctx, q, id)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

// FetchByIDs implements store.Adapter. Order is unspecified; callers
// reorder (§4.3).
func (a *Adapter) FetchByIDs(ctx context.Context, table string, textColumns []string, ids []int64) ([]hybridtable.Row, error) {
	if !schema.ValidIdentifier(table) {
		return nil, fmt.Errorf("postgres: invalid table name %q", table)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	q := fmt.Sprintf("SELECT * FROM %s WHERE id IN (%s)", pq.QuoteIdentifier(table), strings.Join(placeholders, ", "))
	return a.query(ctx, q, args...)
}

// LexicalSearch implements store.Adapter using the store-native full-text
// engine (§4.3, §9 Open Questions: the store-native path is authoritative).
func (a *Adapter) LexicalSearch(ctx context.Context, table string, textColumns []string, queryText string, limit int) ([]int64, error) {
	return a.lexicalSearch(ctx, table, textColumns, queryText, nil, limit)
}

// LexicalSearchFiltered implements store.Adapter.
func (a *Adapter) LexicalSearchFiltered(ctx context.Context, table string, textColumns []string, queryText string, predicates []hybridtable.CompiledFilter, limit int) ([]int64, error) {
	return a.lexicalSearch(ctx, table, textColumns, queryText, predicates, limit)
}

func (a *Adapter) lexicalSearch(ctx context.Context, table string, textColumns []string, queryText string, predicates []hybridtable.CompiledFilter, limit int) ([]int64, error) {
	if !schema.ValidIdentifier(table) {
		return nil, fmt.Errorf("postgres: invalid table name %q", table)
	}
	for _, c := range textColumns {
		if !schema.ValidIdentifier(c) {
			return nil, fmt.Errorf("postgres: invalid column name %q", c)
		}
	}

	tsFunc, tsArg := buildLexicalQuery(queryText)
	vectorExpr := tsvectorExpr(textColumns)

	q := fmt.Sprintf(
		"SELECT id FROM %s WHERE to_tsvector(%s) @@ %s($1)",
		pq.QuoteIdentifier(table), vectorExpr, tsFunc,
	)
	args := []any{tsArg}

	if where, whereArgs := whereClause(predicates, len(args)); where != "" {
		q += " AND " + where
		args = append(args, whereArgs...)
	}

	q += fmt.Sprintf(" ORDER BY ts_rank(to_tsvector(%s), %s($1)) DESC LIMIT $%d", vectorExpr, tsFunc, len(args)+1)
	args = append(args, limit)

	return a.queryIDs(ctx, q, args...)
}

// FilteredIDs implements store.Adapter: every id matching the conjunction
// of predicates, unlimited.
func (a *Adapter) FilteredIDs(ctx context.Context, table string, predicates []hybridtable.CompiledFilter) ([]int64, error) {
	if !schema.ValidIdentifier(table) {
		return nil, fmt.Errorf("postgres: invalid table name %q", table)
	}
	q := fmt.Sprintf("SELECT id FROM %s", pq.QuoteIdentifier(table))
	args := []any{}
	if where, whereArgs := whereClause(predicates, 0); where != "" {
		q += " WHERE " + where
		args = whereArgs
	}
	return a.queryIDs(ctx, q, args...)
}

// FilteredIDsLimited implements store.Adapter.
func (a *Adapter) FilteredIDsLimited(ctx context.Context, table string, predicates []hybridtable.CompiledFilter, limit int) ([]int64, error) {
	if !schema.ValidIdentifier(table) {
		return nil, fmt.Errorf("postgres: invalid table name %q", table)
	}
	q := fmt.Sprintf("SELECT id FROM %s", pq.QuoteIdentifier(table))
	args := []any{}
	if where, whereArgs := whereClause(predicates, 0); where != "" {
		q += " WHERE " + where
		args = whereArgs
	}
	q += fmt.Sprintf(" LIMIT $%d", len(args)+1)
	args = append(args, limit)
	return a.queryIDs(ctx, q, args...)
}

func (a *Adapter) queryIDs(ctx context.Context, q string, args ...any) ([]int64, error) {
	rows, err := a.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows: %w", err)
	}
	return ids, nil
}

var _ store.Adapter = (*Adapter)(nil)
