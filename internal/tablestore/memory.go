package tablestore

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/noah-isme/backend-fieldsales/internal/ledger"
)

type memTable struct {
	columns []string
	rows    [][]string
	version int64
}

// Memory is an in-process connector with enforced versions. It backs tests
// and STORE_BACKEND=memory.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]*memTable
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{tables: map[string]*memTable{}}
}

// Read returns a copy of the table.
func (m *Memory) Read(_ context.Context, table string) (ledger.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[table]
	if !ok {
		return ledger.Snapshot{}, ledger.ErrTableNotFound
	}
	rows := make([]ledger.Row, len(t.rows))
	for i, values := range t.rows {
		rows[i] = ledger.RowFromValues(t.columns, values)
	}
	return ledger.Snapshot{
		Columns: append([]string(nil), t.columns...),
		Rows:    rows,
		Version: strconv.FormatInt(t.version, 10),
	}, nil
}

// Write replaces the table when expected matches the stored version.
func (m *Memory) Write(_ context.Context, table string, columns []string, rows []ledger.Row, expected string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[table]
	if expected != ledger.AnyVersion {
		if !ok || strconv.FormatInt(t.version, 10) != expected {
			return "", ledger.ErrConflict
		}
	}
	next := &memTable{columns: append([]string(nil), columns...), version: 1}
	if ok {
		next.version = t.version + 1
	}
	next.rows = make([][]string, len(rows))
	for i, r := range rows {
		next.rows[i] = r.Values(columns)
	}
	m.tables[table] = next
	return strconv.FormatInt(next.version, 10), nil
}

// ListTables returns the table names in order.
func (m *Memory) ListTables(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.tables))
	for name := range m.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }
