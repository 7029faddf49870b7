package obs

import "context"

type ctxKey int

const (
	routePatternKey ctxKey = iota
	ledgerTableKey
)

// WithRoutePattern stores the matched router pattern on the context.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	return context.WithValue(ctx, routePatternKey, pattern)
}

// RoutePatternFromContext returns the stored route pattern, or "".
func RoutePatternFromContext(ctx context.Context) string {
	pattern, _ := ctx.Value(routePatternKey).(string)
	return pattern
}

// WithLedgerTable tags ctx with the ledger table a store call works on, so
// SQL spans can name it.
func WithLedgerTable(ctx context.Context, table string) context.Context {
	return context.WithValue(ctx, ledgerTableKey, table)
}

// LedgerTableFromContext returns the tagged table, or "".
func LedgerTableFromContext(ctx context.Context) string {
	table, _ := ctx.Value(ledgerTableKey).(string)
	return table
}
