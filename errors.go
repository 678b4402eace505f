package hybridtable

import "errors"

// Sentinel errors for the per-request Not-found taxonomy (§7). Configuration
// errors (unknown column, distance filter without lat/lon binding, embedder
// load failure) are fatal at startup and are returned as plain wrapped
// errors from schema.NewRegistry / registry.New instead of sentinels, since
// callers never need to errors.Is against them at runtime.
var (
	// ErrTableNotFound is returned when a request names a table with no
	// declared schema.
	ErrTableNotFound = errors.New("hybridtable: table not found")

	// ErrRecordNotFound is returned when an upsert target row does not
	// exist in the store.
	ErrRecordNotFound = errors.New("hybridtable: record not found")
)
