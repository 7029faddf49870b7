package obs

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxStatementLen = 300

// PGXTracer implements pgx.QueryTracer for the postgres ledger backend. Each
// statement gets a span named after its verb, tagged with the ledger table
// from WithLedgerTable.
type PGXTracer struct{}

// TraceQueryStart starts a span for the SQL statement.
func (PGXTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	sql := strings.TrimSpace(data.SQL)
	verb := "query"
	if fields := strings.Fields(sql); len(fields) > 0 {
		verb = strings.ToUpper(fields[0])
	}
	if len(sql) > maxStatementLen {
		sql = sql[:maxStatementLen] + "..."
	}
	attrs := []attribute.KeyValue{
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", verb),
		attribute.String("db.statement", sql),
	}
	if table := LedgerTableFromContext(ctx); table != "" {
		attrs = append(attrs, attribute.String("ledger.table", table))
	}
	ctx, _ = otel.Tracer("ledger.postgres").Start(ctx, "ledger.sql "+verb,
		trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
	return ctx
}

// TraceQueryEnd ends the span started by TraceQueryStart.
func (PGXTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span := trace.SpanFromContext(ctx)
	if data.Err != nil && !errors.Is(data.Err, pgx.ErrNoRows) {
		span.RecordError(data.Err)
		span.SetStatus(codes.Error, data.Err.Error())
	}
	span.End()
}
