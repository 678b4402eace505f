package httpapi

import "github.com/agentplexus/hybridtable"

// denylistedFields are stripped from every row on the way out (§6): derived
// or internal columns that were never meant to cross the wire.
var denylistedFields = map[string]bool{
	"embedding":                   true,
	"created_at":                  true,
	"updated_at":                  true,
	"last_embedding_generated_at": true,
}

// shapeRow returns a copy of row with denylisted fields removed.
func shapeRow(row hybridtable.Row) hybridtable.Row {
	out := make(hybridtable.Row, len(row))
	for k, v := range row {
		if denylistedFields[k] {
			continue
		}
		out[k] = v
	}
	return out
}

func shapeRows(rows []hybridtable.Row) []hybridtable.Row {
	out := make([]hybridtable.Row, len(rows))
	for i, row := range rows {
		out[i] = shapeRow(row)
	}
	return out
}
