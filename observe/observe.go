// Package observe implements the observability channel referenced
// throughout §7: input-tolerant warnings and store failures are recorded
// here, never surfaced to callers.
//
// Grounded on the teacher's observe.Observer (observe/observe.go): the
// span/trace id scheme and the context-propagated SpanContext are kept
// verbatim in shape, generalized from the teacher's multi-exporter
// (Phoenix/Opik/Langfuse) span model down to a single slog.Logger sink,
// since §1 scopes "logging" out to an external collaborator rather than a
// pluggable tracing backend. Trace/span ids use google/uuid rather than the
// teacher's sha256-of-clock-reading scheme (SPEC_FULL §11), the same
// collision-resistant id generator chi's request-id middleware pattern
// relies on for correlating a request across logs.
package observe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"github.com/google/uuid"

	"github.com/agentplexus/hybridtable"
)

// contextKey is used to store span context.
type contextKey struct{}

// spanContext holds the current request's trace/span ids in context.
type spanContext struct {
	TraceID string
	SpanID  string
}

// fromContext extracts spanContext from context.
func fromContext(ctx context.Context) *spanContext {
	sc, _ := ctx.Value(contextKey{}).(*spanContext)
	return sc
}

// toContext stores spanContext in context.
func toContext(ctx context.Context, sc *spanContext) context.Context {
	return context.WithValue(ctx, contextKey{}, sc)
}

// Observer is a slog-backed implementation of hybridtable.Observer. Every
// event is logged at the level §7's taxonomy implies: warnings at Warn,
// search/upsert/rebuild lifecycle at Info, search failure at Error.
type Observer struct {
	logger *slog.Logger
}

// New constructs an Observer writing to logger. A nil logger falls back to
// slog.Default().
func New(logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{logger: logger}
}

// OnSearchStart implements hybridtable.Observer. It mints a new trace/span
// pair and stores it in the returned context for subsequent calls on the
// same request.
func (o *Observer) OnSearchStart(ctx context.Context, q hybridtable.Query) context.Context {
	id := generateID()
	sc := &spanContext{TraceID: id, SpanID: id}
	o.logger.InfoContext(ctx, "search start",
		"trace_id", sc.TraceID,
		"table", q.Table,
		"query_hash", hashQuery(q.Text),
		"top", q.Top,
		"has_filters", q.FilterString != "",
	)
	return toContext(ctx, sc)
}

// OnSearchEnd implements hybridtable.Observer.
func (o *Observer) OnSearchEnd(ctx context.Context, table string, resultCount int, latencyMS int64, err error) {
	sc := fromContext(ctx)
	attrs := []any{
		"trace_id", traceID(sc),
		"table", table,
		"result_count", resultCount,
		"latency_ms", latencyMS,
	}
	if err != nil {
		o.logger.ErrorContext(ctx, "search end", append(attrs, "error", err.Error())...)
		return
	}
	o.logger.InfoContext(ctx, "search end", attrs...)
}

// OnLexicalSearch implements hybridtable.Observer.
func (o *Observer) OnLexicalSearch(ctx context.Context, table string, resultCount int, latencyMS int64) {
	o.logger.DebugContext(ctx, "lexical search",
		"trace_id", traceID(fromContext(ctx)),
		"table", table,
		"result_count", resultCount,
		"latency_ms", latencyMS,
	)
}

// OnVectorSearch implements hybridtable.Observer.
func (o *Observer) OnVectorSearch(ctx context.Context, table string, resultCount int, latencyMS int64) {
	o.logger.DebugContext(ctx, "vector search",
		"trace_id", traceID(fromContext(ctx)),
		"table", table,
		"result_count", resultCount,
		"latency_ms", latencyMS,
	)
}

// OnWarning implements hybridtable.Observer. Input-tolerant warnings from
// the filter compiler and store failures (§7) are logged here at WARN and
// never surfaced to the caller.
func (o *Observer) OnWarning(ctx context.Context, component string, message string, attrs map[string]any) {
	args := make([]any, 0, 4+2*len(attrs))
	args = append(args, "trace_id", traceID(fromContext(ctx)), "component", component)
	for k, v := range attrs {
		args = append(args, k, v)
	}
	o.logger.WarnContext(ctx, message, args...)
}

// OnUpsert implements hybridtable.Observer.
func (o *Observer) OnUpsert(ctx context.Context, table string, id int64, latencyMS int64) {
	o.logger.InfoContext(ctx, "upsert",
		"trace_id", traceID(fromContext(ctx)),
		"table", table,
		"id", id,
		"latency_ms", latencyMS,
	)
}

// OnRebuild implements hybridtable.Observer.
func (o *Observer) OnRebuild(ctx context.Context, table string, rowCount int, latencyMS int64) {
	o.logger.InfoContext(ctx, "rebuild",
		"trace_id", traceID(fromContext(ctx)),
		"table", table,
		"row_count", rowCount,
		"latency_ms", latencyMS,
	)
}

func traceID(sc *spanContext) string {
	if sc == nil {
		return ""
	}
	return sc.TraceID
}

// generateID mints a span/trace id as a UUIDv4, collision-resistant enough
// to correlate a request across logs and across a process's lifetime.
func generateID() string {
	return uuid.New().String()
}

// hashQuery returns a short, non-reversible fingerprint of query text
// suitable for logs that must not carry raw user input.
func hashQuery(text string) string {
	h := sha256.New()
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))[:8]
}

// NoOpObserver discards every event. Used in tests and in deployments that
// disable the observability channel entirely.
type NoOpObserver struct{}

func (NoOpObserver) OnSearchStart(ctx context.Context, _ hybridtable.Query) context.Context {
	return ctx
}
func (NoOpObserver) OnSearchEnd(context.Context, string, int, int64, error)        {}
func (NoOpObserver) OnLexicalSearch(context.Context, string, int, int64)           {}
func (NoOpObserver) OnVectorSearch(context.Context, string, int, int64)            {}
func (NoOpObserver) OnWarning(context.Context, string, string, map[string]any)     {}
func (NoOpObserver) OnUpsert(context.Context, string, int64, int64)                {}
func (NoOpObserver) OnRebuild(context.Context, string, int, int64)                 {}

var (
	_ hybridtable.Observer = (*Observer)(nil)
	_ hybridtable.Observer = NoOpObserver{}
)
