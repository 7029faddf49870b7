package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/backend-fieldsales/internal/resilience"
)

const (
	backupMarker     = "__bak_"
	backupTimeLayout = "20060102T150405"
)

// BackupName returns the backup table name for table at t.
func BackupName(table string, t time.Time) string {
	return table + backupMarker + t.UTC().Format(backupTimeLayout)
}

// IsBackup reports whether name is a backup table.
func IsBackup(name string) bool {
	return strings.Contains(name, backupMarker)
}

// BackupTable copies the table to a timestamped backup table and returns its
// name. It is never called implicitly.
func (a *Adapter) BackupTable(ctx context.Context, schema Schema) (name string, err error) {
	if err := schema.Validate(); err != nil {
		return "", err
	}
	if a.Conn == nil {
		return "", errors.New("ledger: connector not configured")
	}
	started := time.Now()
	defer func() { observe(schema.Table, "backup", started, err) }()

	snap, found, attempts, err := a.read(ctx, schema.Table)
	if err != nil {
		return "", &StoreError{Table: schema.Table, Op: "backup", Attempts: attempts, Err: err}
	}
	if !found {
		return "", fmt.Errorf("ledger: backup %q: %w", schema.Table, ErrTableNotFound)
	}
	name = BackupName(schema.Table, a.now())
	columns := snap.Columns
	if len(columns) == 0 {
		columns = schema.Columns
	}
	if _, attempts, err = a.write(ctx, name, columns, pruneEmpty(snap.Rows), AnyVersion); err != nil {
		return "", &StoreError{Table: schema.Table, Op: "backup", Attempts: attempts, Err: err}
	}
	a.log(ctx).Info().Str("table", schema.Table).Str("backup", name).Int("rows", len(snap.Rows)).Msg("ledger_backup_created")
	return name, nil
}

// ListBackups returns the backup tables of table, oldest first.
func (a *Adapter) ListBackups(ctx context.Context, table string) ([]string, error) {
	if a.Conn == nil {
		return nil, errors.New("ledger: connector not configured")
	}
	var names []string
	_, err := resilience.Retry(ctx, "ledger", a.retryPolicy(), retryable, func(ctx context.Context, _ int) error {
		all, err := a.Conn.ListTables(ctx)
		if err != nil {
			return err
		}
		names = filterBackups(all, table)
		return nil
	})
	return names, err
}

// RestoreLatestBackup overwrites the table with its most recent backup and
// returns the backup's name.
func (a *Adapter) RestoreLatestBackup(ctx context.Context, schema Schema) (name string, err error) {
	if err := schema.Validate(); err != nil {
		return "", err
	}
	if a.Conn == nil {
		return "", errors.New("ledger: connector not configured")
	}
	started := time.Now()
	defer func() { observe(schema.Table, "restore", started, err) }()
	return a.restoreLatest(ctx, schema, a.retryPolicy())
}

func (a *Adapter) restoreLatest(ctx context.Context, schema Schema, policy resilience.RetryPolicy) (string, error) {
	var name string
	_, err := resilience.Retry(ctx, "ledger", policy, retryable, func(ctx context.Context, _ int) error {
		all, err := a.Conn.ListTables(ctx)
		if err != nil {
			return err
		}
		backups := filterBackups(all, schema.Table)
		if len(backups) == 0 {
			return Permanent(fmt.Errorf("%w for %q", ErrNoBackup, schema.Table))
		}
		name = backups[len(backups)-1]
		snap, err := a.Conn.Read(ctx, name)
		if err != nil {
			return err
		}
		columns := snap.Columns
		if len(columns) == 0 {
			columns = schema.Columns
		}
		_, err = a.Conn.Write(ctx, schema.Table, columns, pruneEmpty(snap.Rows), AnyVersion)
		return err
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

func filterBackups(all []string, table string) []string {
	prefix := table + backupMarker
	var out []string
	for _, n := range all {
		if strings.HasPrefix(n, prefix) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}
