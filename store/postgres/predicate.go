package postgres

import (
	"fmt"
	"strings"

	"github.com/agentplexus/hybridtable"
	"github.com/lib/pq"
)

// earthRadiusKM is the Haversine great-circle radius used by Within
// predicates (§4.3).
const earthRadiusKM = 6371.0

// whereClause compiles the conjunction of predicates into a parameterized
// SQL WHERE fragment (without the leading "WHERE"), starting bound
// parameters at $argOffset+1. Returns an empty clause and nil args when
// predicates is empty.
//
// Grounded on the teacher's pgvector.Search metadata-filter builder
// (providers/pgvector/pgvector.go), generalized from "metadata->>key = value"
// JSONB equality to the full predicate-kind table of §4.3.
func whereClause(predicates []hybridtable.CompiledFilter, argOffset int) (string, []any) {
	if len(predicates) == 0 {
		return "", nil
	}

	var conditions []string
	var args []any
	next := argOffset + 1

	for _, cf := range predicates {
		col := pq.QuoteIdentifier(cf.Column)
		p := cf.Predicate

		switch p.Kind {
		case hybridtable.PredicateEqual:
			conditions = append(conditions, fmt.Sprintf("%s = $%d", col, next))
			args = append(args, p.Value)
			next++

		case hybridtable.PredicateLike:
			conditions = append(conditions, fmt.Sprintf("%s LIKE $%d", col, next))
			args = append(args, "%"+fmt.Sprint(p.Value)+"%")
			next++

		case hybridtable.PredicateInSet:
			if len(p.Values) == 0 {
				// An empty set is dropped entirely, never lowered to FALSE
				// (§4.3 rationale carried from the filter compiler).
				continue
			}
			placeholders := make([]string, len(p.Values))
			for i, v := range p.Values {
				placeholders[i] = fmt.Sprintf("$%d", next)
				args = append(args, v)
				next++
			}
			conditions = append(conditions, fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ", ")))

		case hybridtable.PredicateRangeMin:
			conditions = append(conditions, fmt.Sprintf("%s >= $%d", col, next))
			args = append(args, p.Min)
			next++

		case hybridtable.PredicateRangeMax:
			conditions = append(conditions, fmt.Sprintf("%s <= $%d", col, next))
			args = append(args, p.Max)
			next++

		case hybridtable.PredicateRangeBoth:
			conditions = append(conditions, fmt.Sprintf("%s >= $%d AND %s <= $%d", col, next, col, next+1))
			args = append(args, p.Min, p.Max)
			next += 2

		case hybridtable.PredicateWithin:
			latCol := pq.QuoteIdentifier(p.LatColumn)
			lonCol := pq.QuoteIdentifier(p.LonColumn)
			// Haversine distance in km, compared against the declared radius.
			conditions = append(conditions, fmt.Sprintf(
				`(%g * 2 * asin(sqrt(
					pow(sin(radians(($%d - %s) / 2)), 2) +
					cos(radians($%d)) * cos(radians(%s)) *
					pow(sin(radians(($%d - %s) / 2)), 2)
				))) <= $%d`,
				earthRadiusKM, next, latCol, next, latCol, next+1, lonCol, next+2,
			))
			args = append(args, p.CenterLat, p.CenterLon, p.MaxKM)
			next += 3
		}
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return strings.Join(conditions, " AND "), args
}
