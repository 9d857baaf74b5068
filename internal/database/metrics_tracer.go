package database

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pscheid92/tickerpulse/internal/metrics"
)

// MetricsTracer implements pgx.QueryTracer and feeds query duration and
// error counters. Labels carry only the leading SQL verb so cardinality
// stays bounded no matter what queries show up.
type MetricsTracer struct{}

var _ pgx.QueryTracer = (*MetricsTracer)(nil)

type queryContextKey struct{}

type queryContext struct {
	startTime time.Time
	queryVerb string
}

func (t *MetricsTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	qctx := queryContext{
		startTime: time.Now(),
		queryVerb: extractQueryVerb(data.SQL),
	}
	return context.WithValue(ctx, queryContextKey{}, qctx)
}

func (t *MetricsTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qctx, ok := ctx.Value(queryContextKey{}).(queryContext)
	if !ok {
		return
	}

	metrics.DBQueryDuration.WithLabelValues(qctx.queryVerb).Observe(time.Since(qctx.startTime).Seconds())

	if data.Err != nil {
		metrics.DBErrorsTotal.WithLabelValues(qctx.queryVerb).Inc()
	}
}

// extractQueryVerb reduces a statement to its leading keyword (SELECT,
// INSERT, UPDATE, ...).
func extractQueryVerb(sql string) string {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return "unknown"
	}
	if i := strings.IndexAny(trimmed, " \n\t("); i > 0 {
		trimmed = trimmed[:i]
	}
	if len(trimmed) > 20 {
		trimmed = trimmed[:20]
	}
	return strings.ToUpper(trimmed)
}
