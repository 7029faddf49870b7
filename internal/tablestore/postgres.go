package tablestore

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-fieldsales/internal/ledger"
	"github.com/noah-isme/backend-fieldsales/internal/obs"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Querier is the part of *pgxpool.Pool the connector uses.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

var _ Querier = (*pgxpool.Pool)(nil)

// Postgres stores each table as one row of ledger_tables. Versions are an
// integer bumped on every write, so stale writers are rejected.
type Postgres struct {
	Pool Querier
}

// Migrate applies the embedded migrations to databaseURL.
func Migrate(databaseURL string) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("tablestore: migrations source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(databaseURL))
	if err != nil {
		return fmt.Errorf("tablestore: migrate init: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("tablestore: migrate up: %w", err)
	}
	return nil
}

// migrateURL switches postgres:// URLs to the pgx v5 migrate driver scheme.
func migrateURL(databaseURL string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(databaseURL, scheme) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, scheme)
		}
	}
	return databaseURL
}

// Read loads one table.
func (p *Postgres) Read(ctx context.Context, table string) (ledger.Snapshot, error) {
	ctx = obs.WithLedgerTable(ctx, table)
	var (
		rawCols, rawRows []byte
		version          int64
	)
	err := p.Pool.QueryRow(ctx, `SELECT columns, rows, version FROM ledger_tables WHERE name = $1`, table).
		Scan(&rawCols, &rawRows, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Snapshot{}, ledger.ErrTableNotFound
	}
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("tablestore: postgres read %s: %w", table, err)
	}
	var columns []string
	var grid [][]string
	if err := json.Unmarshal(rawCols, &columns); err != nil {
		return ledger.Snapshot{}, ledger.Permanent(fmt.Errorf("tablestore: decode columns of %s: %w", table, err))
	}
	if err := json.Unmarshal(rawRows, &grid); err != nil {
		return ledger.Snapshot{}, ledger.Permanent(fmt.Errorf("tablestore: decode rows of %s: %w", table, err))
	}
	rows := make([]ledger.Row, len(grid))
	for i, values := range grid {
		rows[i] = ledger.RowFromValues(columns, values)
	}
	return ledger.Snapshot{Columns: columns, Rows: rows, Version: strconv.FormatInt(version, 10)}, nil
}

// Write upserts the table. With an expected version the update only lands
// when the stored version still matches.
func (p *Postgres) Write(ctx context.Context, table string, columns []string, rows []ledger.Row, expected string) (string, error) {
	ctx = obs.WithLedgerTable(ctx, table)
	grid := toGrid(columns, rows)[1:]
	rawCols, err := json.Marshal(columns)
	if err != nil {
		return "", err
	}
	rawRows, err := json.Marshal(grid)
	if err != nil {
		return "", err
	}

	var version int64
	if expected == ledger.AnyVersion {
		err = p.Pool.QueryRow(ctx, `
INSERT INTO ledger_tables (name, columns, rows, version, updated_at)
VALUES ($1, $2, $3, 1, now())
ON CONFLICT (name) DO UPDATE
SET columns = EXCLUDED.columns, rows = EXCLUDED.rows,
    version = ledger_tables.version + 1, updated_at = now()
RETURNING version`, table, rawCols, rawRows).Scan(&version)
	} else {
		want, perr := strconv.ParseInt(expected, 10, 64)
		if perr != nil {
			return "", ledger.ErrConflict
		}
		err = p.Pool.QueryRow(ctx, `
UPDATE ledger_tables
SET columns = $2, rows = $3, version = version + 1, updated_at = now()
WHERE name = $1 AND version = $4
RETURNING version`, table, rawCols, rawRows, want).Scan(&version)
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ledger.ErrConflict
		}
	}
	if err != nil {
		return "", fmt.Errorf("tablestore: postgres write %s: %w", table, err)
	}
	return strconv.FormatInt(version, 10), nil
}

// ListTables returns every stored table name.
func (p *Postgres) ListTables(ctx context.Context) ([]string, error) {
	rows, err := p.Pool.Query(ctx, `SELECT name FROM ledger_tables ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("tablestore: postgres list: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("tablestore: postgres list: %w", err)
	}
	return names, nil
}

// Ping checks the pool.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.Pool.Ping(ctx)
}
