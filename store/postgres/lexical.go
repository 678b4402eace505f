package postgres

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lib/pq"
)

// shortQueryThreshold is the non-space character count at or below which
// lexicalSearch switches to prefix/wildcard matching instead of natural
// language full-text search (§4.3).
const shortQueryThreshold = 3

var specialCharPattern = regexp.MustCompile(`[+\-()*?]`)

// tsvectorExpr builds "coalesce(col1,'') || ' ' || coalesce(col2,'')"
// across textColumns, the argument to to_tsvector.
func tsvectorExpr(textColumns []string) string {
	parts := make([]string, len(textColumns))
	for i, c := range textColumns {
		parts[i] = fmt.Sprintf("coalesce(%s, '')", pq.QuoteIdentifier(c))
	}
	return strings.Join(parts, " || ' ' || ")
}

// buildLexicalQuery returns the to_tsquery-compatible query string and
// whether it used prefix mode. Non-space characters <= shortQueryThreshold
// trigger prefix/wildcard matching; special characters are escaped so a
// short query like "c++" cannot be misinterpreted as tsquery operators.
func buildLexicalQuery(queryText string) (tsFunc string, arg string) {
	nonSpace := strings.ReplaceAll(queryText, " ", "")
	if len([]rune(nonSpace)) <= shortQueryThreshold {
		escaped := specialCharPattern.ReplaceAllString(queryText, "")
		tokens := strings.Fields(escaped)
		prefixed := make([]string, 0, len(tokens))
		for _, t := range tokens {
			if t == "" {
				continue
			}
			prefixed = append(prefixed, t+":*")
		}
		return "to_tsquery", strings.Join(prefixed, " & ")
	}
	return "websearch_to_tsquery", queryText
}
