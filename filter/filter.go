// Package filter implements the Filter Compiler (C4): it parses the
// semicolon-separated filter DSL against a table's declared schema and
// emits typed, ordered Predicates consumable by both the store adapter and
// the vector index.
//
// The compiler is deliberately input-tolerant (§4.4, §7): unknown columns,
// invalid tokens, and malformed clauses are dropped with a warning rather
// than failing the request, so a single bad token in a long filter string
// cannot blank out a page of results.
package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/agentplexus/hybridtable"
	"github.com/agentplexus/hybridtable/schema"
)

// Warning describes one dropped or corrected fragment of the input filter
// string, recorded via the observability channel (§7) rather than surfaced
// to the caller.
type Warning struct {
	Column  string
	Message string
}

// Compile parses filterString against the table schema's declared filter
// descriptors and returns the compiled filters (in schema declaration
// order) plus any warnings produced along the way. Compile never returns an
// error: every anomaly is either a dropped clause or a dropped token,
// recorded as a Warning.
func Compile(filterString string, table hybridtable.TableSchema) ([]hybridtable.CompiledFilter, []Warning) {
	if strings.TrimSpace(filterString) == "" {
		return nil, nil
	}

	byColumn := make(map[string]hybridtable.CompiledFilter)
	var warnings []Warning

	for _, rawClause := range strings.Split(filterString, ";") {
		clause := strings.TrimSpace(rawClause)
		if clause == "" {
			continue
		}

		col, value, ok := splitClause(clause)
		if !ok {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("malformed clause %q: missing ':'", clause)})
			continue
		}

		desc, ok := schema.FilterDescriptorFor(table, col)
		if !ok {
			warnings = append(warnings, Warning{Column: col, Message: "unknown filter column"})
			continue
		}

		value = strings.ToLower(value)

		pred, warn, ok := compileClause(desc, value)
		if warn != "" {
			warnings = append(warnings, Warning{Column: col, Message: warn})
		}
		if !ok {
			continue
		}

		cf := hybridtable.CompiledFilter{
			Column:    col,
			Kind:      desc.Kind,
			DataType:  desc.DataType,
			Predicate: pred,
		}
		if desc.Kind == hybridtable.FilterDistance {
			cf.Predicate.LatColumn = table.LatitudeColumn
			cf.Predicate.LonColumn = table.LongitudeColumn
		}
		byColumn[col] = cf
	}

	// Re-emit in the table's declared filter order for a stable,
	// reproducible predicate set (§8: round-trip stability).
	out := make([]hybridtable.CompiledFilter, 0, len(byColumn))
	for _, desc := range table.Filters {
		if cf, ok := byColumn[desc.Column]; ok {
			out = append(out, cf)
		}
	}
	return out, warnings
}

// splitClause splits "column:value" on the first colon.
func splitClause(clause string) (column, value string, ok bool) {
	idx := strings.Index(clause, ":")
	if idx < 0 {
		return "", "", false
	}
	column = strings.TrimSpace(clause[:idx])
	value = strings.TrimSpace(clause[idx+1:])
	if column == "" {
		return "", "", false
	}
	return column, value, true
}

// compileClause dispatches to the per-kind grammar (§4.4 table). A non-empty
// warn string is always recorded even when ok is true (e.g. "in" with some
// invalid tokens dropped); ok is false when the clause should be dropped
// entirely.
func compileClause(desc hybridtable.FilterDescriptor, value string) (pred hybridtable.Predicate, warn string, ok bool) {
	switch desc.Kind {
	case hybridtable.FilterExact:
		v, err := convert(desc, value)
		if err != nil {
			return hybridtable.Predicate{}, fmt.Sprintf("invalid value: %v", err), false
		}
		return hybridtable.Predicate{Kind: hybridtable.PredicateEqual, Column: desc.Column, Value: v}, "", true

	case hybridtable.FilterLike:
		v, err := convert(desc, value)
		if err != nil {
			return hybridtable.Predicate{}, fmt.Sprintf("invalid value: %v", err), false
		}
		return hybridtable.Predicate{Kind: hybridtable.PredicateLike, Column: desc.Column, Value: v}, "", true

	case hybridtable.FilterIn:
		return compileIn(desc, value)

	case hybridtable.FilterRange:
		return compileRange(desc, value)

	case hybridtable.FilterDistance:
		return compileDistance(desc, value)

	default:
		return hybridtable.Predicate{}, fmt.Sprintf("unsupported filter kind %q", desc.Kind), false
	}
}

func compileIn(desc hybridtable.FilterDescriptor, value string) (hybridtable.Predicate, string, bool) {
	tokens := strings.Split(value, ",")
	var values []any
	var invalid int

	enumSet := enumLookup(desc.ValidEnumValues)

	for _, raw := range tokens {
		tok := strings.TrimSpace(raw)
		if tok == "" {
			invalid++
			continue
		}
		if desc.DataType == hybridtable.DataEnum && len(enumSet) > 0 {
			if !enumSet[tok] {
				invalid++
				continue
			}
		}
		v, err := convert(desc, tok)
		if err != nil {
			invalid++
			continue
		}
		values = append(values, v)
	}

	var warn string
	if invalid > 0 {
		warn = fmt.Sprintf("%d invalid token(s) dropped", invalid)
	}
	if len(values) == 0 {
		return hybridtable.Predicate{}, warn, false
	}
	return hybridtable.Predicate{Kind: hybridtable.PredicateInSet, Column: desc.Column, Values: values}, warn, true
}

// compileRange parses "lo-hi", "lo-", "-hi", or a single token (treated as
// an exact match, per §4.4).
func compileRange(desc hybridtable.FilterDescriptor, value string) (hybridtable.Predicate, string, bool) {
	if value == "" {
		return hybridtable.Predicate{}, "empty range value", false
	}

	// A single token with no '-' is the exact-match form; a value with a
	// leading '-' is the "-hi" open lower bound, so negative single values
	// are not supported.
	if lo, hi, isRange := splitRange(value); isRange {
		var min, max any
		if lo != "" {
			v, err := convert(desc, lo)
			if err != nil {
				return hybridtable.Predicate{}, fmt.Sprintf("invalid range min: %v", err), false
			}
			min = v
		}
		if hi != "" {
			v, err := convert(desc, hi)
			if err != nil {
				return hybridtable.Predicate{}, fmt.Sprintf("invalid range max: %v", err), false
			}
			max = v
		}
		switch {
		case min != nil && max != nil:
			return hybridtable.Predicate{Kind: hybridtable.PredicateRangeBoth, Column: desc.Column, Min: min, Max: max}, "", true
		case min != nil:
			return hybridtable.Predicate{Kind: hybridtable.PredicateRangeMin, Column: desc.Column, Min: min}, "", true
		case max != nil:
			return hybridtable.Predicate{Kind: hybridtable.PredicateRangeMax, Column: desc.Column, Max: max}, "", true
		default:
			return hybridtable.Predicate{}, "empty range bounds", false
		}
	}

	v, err := convert(desc, value)
	if err != nil {
		return hybridtable.Predicate{}, fmt.Sprintf("invalid value: %v", err), false
	}
	return hybridtable.Predicate{Kind: hybridtable.PredicateEqual, Column: desc.Column, Value: v}, "", true
}

// splitRange recognizes "lo-hi", "lo-", and "-hi". A leading '-' with no
// further '-' in the remainder is the "-hi" form; a leading '-' followed by
// another '-' is not split and is returned as a single-token value.
func splitRange(value string) (lo, hi string, isRange bool) {
	idx := strings.Index(value, "-")
	if idx < 0 {
		return "", "", false
	}
	if idx == 0 {
		// Leading '-': either "-hi" (open lower bound) or a negative
		// single-token value. If there's a second '-', it's "-hi" with
		// hi itself negative is ambiguous and unsupported; treat the
		// first '-' as the range separator for a bare "-hi".
		rest := value[1:]
		if strings.Count(rest, "-") == 0 {
			return "", rest, true
		}
		return "", "", false
	}
	return value[:idx], value[idx+1:], true
}

func compileDistance(desc hybridtable.FilterDescriptor, value string) (hybridtable.Predicate, string, bool) {
	parts := strings.Split(value, ",")
	if len(parts) != 3 {
		return hybridtable.Predicate{}, "distance filter requires exactly three comma-separated numerics", false
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return hybridtable.Predicate{}, "invalid latitude", false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return hybridtable.Predicate{}, "invalid longitude", false
	}
	radius, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return hybridtable.Predicate{}, "invalid radius", false
	}

	if lat < -90 || lat > 90 {
		return hybridtable.Predicate{}, "latitude out of range", false
	}
	if lon < -180 || lon > 180 {
		return hybridtable.Predicate{}, "longitude out of range", false
	}
	if radius <= 0 {
		return hybridtable.Predicate{}, "radius must be positive", false
	}

	return hybridtable.Predicate{
		Kind:      hybridtable.PredicateWithin,
		Column:    desc.Column,
		CenterLat: lat,
		CenterLon: lon,
		MaxKM:     radius,
	}, "", true
}

// enumLookup builds a case-insensitive membership set.
func enumLookup(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[strings.ToLower(v)] = true
	}
	return set
}

// convert parses a token according to the descriptor's declared dataType.
// string/enum pass through unchanged (already lowercased by the caller);
// every other dataType rejects an empty token.
func convert(desc hybridtable.FilterDescriptor, token string) (any, error) {
	switch desc.DataType {
	case hybridtable.DataString, hybridtable.DataEnum:
		return token, nil
	case hybridtable.DataInt:
		if token == "" {
			return nil, fmt.Errorf("empty int value")
		}
		return strconv.ParseInt(token, 10, 64)
	case hybridtable.DataDecimal:
		if token == "" {
			return nil, fmt.Errorf("empty decimal value")
		}
		return strconv.ParseFloat(token, 64)
	case hybridtable.DataDate:
		if token == "" {
			return nil, fmt.Errorf("empty date value")
		}
		return parseDate(token)
	case hybridtable.DataGeo:
		return nil, fmt.Errorf("geo values are not converted via convert(); use the distance grammar")
	default:
		return nil, fmt.Errorf("unknown dataType %q", desc.DataType)
	}
}

// parseDate accepts ISO-8601 with either a 'T' or a space separator, UTC
// when a trailing 'Z' is present.
func parseDate(token string) (time.Time, error) {
	candidates := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	var lastErr error
	for _, layout := range candidates {
		if t, err := time.Parse(layout, token); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}
