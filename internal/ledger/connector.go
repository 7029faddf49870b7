package ledger

import (
	"context"
	"time"
)

// AnyVersion passed as the expected version makes a write unconditional.
const AnyVersion = ""

// Snapshot is a full read of one table.
type Snapshot struct {
	Columns []string
	Rows    []Row
	// Version identifies this state of the table for optimistic writes.
	Version string
}

// Connector is the minimal contract an external tabular store must meet.
//
// Read returns ErrTableNotFound for a table that does not exist. Write
// replaces the whole table, creating it when needed, and returns the new
// version; it returns ErrConflict when expected is not AnyVersion and no
// longer matches the stored version.
type Connector interface {
	Read(ctx context.Context, table string) (Snapshot, error)
	Write(ctx context.Context, table string, columns []string, rows []Row, expected string) (string, error)
	ListTables(ctx context.Context) ([]string, error)
}

// Locker serialises writers of one table. *lock.Locker satisfies it.
type Locker interface {
	WithLock(ctx context.Context, name string, ttl time.Duration, fn func(context.Context) error) error
}

// Store is the record-level contract services depend on. *Adapter
// satisfies it.
type Store interface {
	AppendRows(ctx context.Context, schema Schema, rows []Row) error
	UpdateRowsWhere(ctx context.Context, schema Schema, where func(Row) bool, mutate func(Row)) (int, error)
	ReadTable(ctx context.Context, schema Schema) ([]Row, error)
}
