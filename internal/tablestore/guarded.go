package tablestore

import (
	"context"
	"errors"

	"github.com/noah-isme/backend-fieldsales/internal/ledger"
	"github.com/noah-isme/backend-fieldsales/internal/resilience"
)

// Guarded trips a circuit breaker when the next connector keeps failing.
// While open, calls fail fast with resilience.ErrOpenCircuit, which the
// adapter retries like any other transient error.
type Guarded struct {
	Next    ledger.Connector
	Breaker *resilience.Breaker
}

// Read goes through the breaker.
func (g *Guarded) Read(ctx context.Context, table string) (ledger.Snapshot, error) {
	var snap ledger.Snapshot
	err := g.Breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		snap, err = g.Next.Read(ctx, table)
		return err
	}, storeFailure)
	return snap, err
}

// Write goes through the breaker.
func (g *Guarded) Write(ctx context.Context, table string, columns []string, rows []ledger.Row, expected string) (string, error) {
	var version string
	err := g.Breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		version, err = g.Next.Write(ctx, table, columns, rows, expected)
		return err
	}, storeFailure)
	return version, err
}

// ListTables goes through the breaker.
func (g *Guarded) ListTables(ctx context.Context) ([]string, error) {
	var names []string
	err := g.Breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		names, err = g.Next.ListTables(ctx)
		return err
	}, storeFailure)
	return names, err
}

// Ping bypasses the breaker so readiness reflects the store itself.
func (g *Guarded) Ping(ctx context.Context) error {
	return Ping(ctx, g.Next)
}

// storeFailure ignores outcomes that say nothing about store health.
func storeFailure(err error) bool {
	return !errors.Is(err, ledger.ErrTableNotFound) &&
		!errors.Is(err, ledger.ErrConflict) &&
		!errors.Is(err, context.Canceled)
}
