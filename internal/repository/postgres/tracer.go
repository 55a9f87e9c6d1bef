package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

var mQueryDur = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "pg_query_duration_seconds",
	Help:    "Duration of postgres statements by verb and outcome.",
	Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
}, []string{"verb", "status"})

type querySpanKey struct{}

type querySpan struct {
	span  trace.Span
	verb  string
	start time.Time
}

// queryTracer records a client span and a latency sample per statement.
// Bind arguments are never attached: they carry token digests and password
// hashes.
type queryTracer struct{}

var _ pgx.QueryTracer = queryTracer{}

func (queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	verb := sqlVerb(data.SQL)
	ctx, span := otel.Tracer("postgres").Start(ctx, "pg."+strings.ToLower(verb),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemPostgreSQL,
			attribute.String("db.operation", verb),
		),
	)
	return context.WithValue(ctx, querySpanKey{}, &querySpan{span: span, verb: verb, start: time.Now()})
}

func (queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qs, ok := ctx.Value(querySpanKey{}).(*querySpan)
	if !ok {
		return
	}
	status := "ok"
	if data.Err != nil {
		status = "error"
		qs.span.RecordError(data.Err)
		qs.span.SetStatus(codes.Error, "query failed")
	} else {
		qs.span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
	}
	mQueryDur.WithLabelValues(qs.verb, status).Observe(time.Since(qs.start).Seconds())
	qs.span.End()
}

// sqlVerb returns the leading keyword of a statement. For a CTE it is the
// last DML keyword, which belongs to the outer statement.
func sqlVerb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "UNKNOWN"
	}
	verb := strings.ToUpper(fields[0])
	if verb != "WITH" {
		return verb
	}
	for _, f := range fields[1:] {
		switch u := strings.ToUpper(strings.TrimLeft(f, "(")); u {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			verb = u
		}
	}
	return verb
}
