package tablestore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-fieldsales/internal/ledger"
)

type storedTable struct {
	columns, rows []byte
	version       int64
}

// fakeDB answers the three statements the connector issues against an
// in-memory ledger_tables.
type fakeDB struct {
	mu     sync.Mutex
	tables map[string]storedTable
}

type scanFunc func(dest ...any) error

func (f scanFunc) Scan(dest ...any) error { return f(dest...) }

func (db *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	db.mu.Lock()
	defer db.mu.Unlock()
	name := args[0].(string)
	stored, ok := db.tables[name]
	sql = strings.TrimSpace(sql)

	switch {
	case strings.HasPrefix(sql, "SELECT"):
		if !ok {
			return scanFunc(func(...any) error { return pgx.ErrNoRows })
		}
		return scanFunc(func(dest ...any) error {
			*dest[0].(*[]byte) = stored.columns
			*dest[1].(*[]byte) = stored.rows
			*dest[2].(*int64) = stored.version
			return nil
		})
	case strings.HasPrefix(sql, "INSERT"):
		next := storedTable{columns: args[1].([]byte), rows: args[2].([]byte), version: stored.version + 1}
		db.tables[name] = next
		return scanFunc(func(dest ...any) error { *dest[0].(*int64) = next.version; return nil })
	case strings.HasPrefix(sql, "UPDATE"):
		if !ok || stored.version != args[3].(int64) {
			return scanFunc(func(...any) error { return pgx.ErrNoRows })
		}
		next := storedTable{columns: args[1].([]byte), rows: args[2].([]byte), version: stored.version + 1}
		db.tables[name] = next
		return scanFunc(func(dest ...any) error { *dest[0].(*int64) = next.version; return nil })
	}
	return scanFunc(func(...any) error { return errors.New("unexpected statement") })
}

func (db *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func (db *fakeDB) Ping(context.Context) error { return nil }

func TestPostgresVersionedWrites(t *testing.T) {
	ctx := context.Background()
	db := &fakeDB{tables: map[string]storedTable{}}
	p := &Postgres{Pool: db}

	_, err := p.Read(ctx, "Tickets")
	require.ErrorIs(t, err, ledger.ErrTableNotFound)

	columns := []string{"Ticket ID", "Status"}
	v1, err := p.Write(ctx, "Tickets", columns, []ledger.Row{{"Ticket ID": "TKT-1", "Status": "open"}}, ledger.AnyVersion)
	require.NoError(t, err)
	require.Equal(t, "1", v1)

	snap, err := p.Read(ctx, "Tickets")
	require.NoError(t, err)
	require.Equal(t, v1, snap.Version)
	require.Equal(t, columns, snap.Columns)
	require.Equal(t, "open", snap.Rows[0]["Status"])

	v2, err := p.Write(ctx, "Tickets", columns, []ledger.Row{{"Ticket ID": "TKT-1", "Status": "resolved"}}, v1)
	require.NoError(t, err)
	require.Equal(t, "2", v2)

	_, err = p.Write(ctx, "Tickets", columns, nil, v1)
	require.ErrorIs(t, err, ledger.ErrConflict, "stale version")
	_, err = p.Write(ctx, "Tickets", columns, nil, "not-a-number")
	require.ErrorIs(t, err, ledger.ErrConflict)
	_, err = p.Write(ctx, "Demos", columns, nil, "1")
	require.ErrorIs(t, err, ledger.ErrConflict, "versioned write to a missing table")

	snap, err = p.Read(ctx, "Tickets")
	require.NoError(t, err)
	require.Equal(t, "resolved", snap.Rows[0]["Status"])
}

func TestPostgresCorruptRowsAreNotRetried(t *testing.T) {
	db := &fakeDB{tables: map[string]storedTable{
		"Travel": {columns: []byte(`["Request ID"]`), rows: []byte(`{broken`), version: 4},
	}}
	adapter := &ledger.Adapter{Conn: &Postgres{Pool: db}}

	_, err := adapter.ReadTable(context.Background(), ledger.Schema{Table: "Travel", Columns: []string{"Request ID"}})
	require.ErrorContains(t, err, "decode rows of Travel")

	var serr *ledger.StoreError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, 1, serr.Attempts)
}

func TestPostgresMigrateURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@db:5432/ledger", migrateURL("postgres://u:p@db:5432/ledger"))
	require.Equal(t, "pgx5://db/ledger", migrateURL("postgresql://db/ledger"))
	require.Equal(t, "pgx5://db/ledger", migrateURL("pgx5://db/ledger"))
}
