package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-fieldsales/internal/resilience"
)

var nopLogger = zerolog.Nop()

const (
	defaultConflictRetries = 3
	defaultLockTTL         = 30 * time.Second
	restoreTimeout         = 30 * time.Second
)

// ConflictHandler decides whether a read-merge-write that lost an
// optimistic race is run again. round starts at 1.
type ConflictHandler func(ctx context.Context, table string, round int) bool

// Adapter runs the read-modify-write protocol over a Connector. Every
// connector call is retried with linear backoff; when the retries run out
// the latest backup of the table is written back and a *StoreError is
// returned.
type Adapter struct {
	Conn  Connector
	Retry resilience.RetryPolicy
	// Locker, when set, serialises writers of a table across processes.
	Locker  Locker
	LockTTL time.Duration
	// OnConflict overrides the default of re-running up to
	// MaxConflictRetries times.
	OnConflict         ConflictHandler
	MaxConflictRetries int
	Logger             *zerolog.Logger
	Now                func() time.Time
}

// AppendRows merges rows into the table: stored blank rows are dropped, new
// rows are reindexed to the schema, and duplicates on the schema key keep
// the last occurrence. The whole table is then written back.
func (a *Adapter) AppendRows(ctx context.Context, schema Schema, rows []Row) error {
	_, err := a.mutate(ctx, schema, "append", func(existing []Row) ([]Row, int, error) {
		merged := make([]Row, 0, len(existing)+len(rows))
		merged = append(merged, existing...)
		added := 0
		for _, r := range rows {
			if r.Empty() {
				continue
			}
			merged = append(merged, schema.Reindex(r))
			added++
		}
		return Dedup(schema, merged), added, nil
	})
	return err
}

// UpdateRowsWhere applies mutate to a copy of every row matching where and
// writes the table back. It returns the number of matching rows; nothing is
// written when none match.
func (a *Adapter) UpdateRowsWhere(ctx context.Context, schema Schema, where func(Row) bool, mutate func(Row)) (int, error) {
	if where == nil || mutate == nil {
		return 0, errors.New("ledger: predicate and mutation are required")
	}
	return a.mutate(ctx, schema, "update", func(existing []Row) ([]Row, int, error) {
		matched := 0
		out := make([]Row, len(existing))
		for i, r := range existing {
			if where(r) {
				r = r.Clone()
				mutate(r)
				matched++
			}
			out[i] = r
		}
		if matched == 0 {
			return nil, 0, nil
		}
		return out, matched, nil
	})
}

// ReadTable returns every non-blank row. A missing table reads as empty.
// Declared columns absent from the store come back blank.
func (a *Adapter) ReadTable(ctx context.Context, schema Schema) (rows []Row, err error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if a.Conn == nil {
		return nil, errors.New("ledger: connector not configured")
	}
	started := time.Now()
	defer func() { observe(schema.Table, "read", started, err) }()

	snap, _, attempts, err := a.read(ctx, schema.Table)
	if err != nil {
		return nil, a.fail(ctx, schema, "read", attempts, err)
	}
	rows = pruneEmpty(snap.Rows)
	for _, r := range rows {
		for _, c := range schema.Columns {
			if _, ok := r[c]; !ok {
				r[c] = ""
			}
		}
	}
	return rows, nil
}

func (a *Adapter) mutate(ctx context.Context, schema Schema, op string, change func([]Row) ([]Row, int, error)) (n int, err error) {
	if err := schema.Validate(); err != nil {
		return 0, err
	}
	if a.Conn == nil {
		return 0, errors.New("ledger: connector not configured")
	}
	started := time.Now()
	defer func() { observe(schema.Table, op, started, err) }()

	run := func(ctx context.Context) error {
		for round := 1; ; round++ {
			var rerr error
			n, rerr = a.readModifyWrite(ctx, schema, op, change)
			if !errors.Is(rerr, ErrConflict) {
				return rerr
			}
			Conflicts.WithLabelValues(schema.Table).Inc()
			if !a.conflictHandler()(ctx, schema.Table, round) {
				return fmt.Errorf("ledger: %s %q gave up after %d conflicting round(s): %w", op, schema.Table, round, rerr)
			}
			a.log(ctx).Info().Str("table", schema.Table).Str("op", op).Int("round", round).Msg("ledger_conflict_retry")
		}
	}
	if a.Locker == nil {
		err = run(ctx)
		return n, err
	}
	err = a.Locker.WithLock(ctx, schema.Table, a.lockTTL(), run)
	return n, err
}

func (a *Adapter) readModifyWrite(ctx context.Context, schema Schema, op string, change func([]Row) ([]Row, int, error)) (int, error) {
	snap, _, attempts, err := a.read(ctx, schema.Table)
	if err != nil {
		return 0, a.fail(ctx, schema, op, attempts, err)
	}
	rows, n, err := change(pruneEmpty(snap.Rows))
	if err != nil {
		return 0, err
	}
	if rows == nil {
		return n, nil
	}
	columns := schema.mergeColumns(snap.Columns)
	_, attempts, err = a.write(ctx, schema.Table, columns, rows, snap.Version)
	if errors.Is(err, ErrConflict) {
		return 0, err
	}
	if err != nil {
		return 0, a.fail(ctx, schema, op, attempts, err)
	}
	return n, nil
}

// read fetches a table under the retry policy. found is false when the
// store has no such table.
func (a *Adapter) read(ctx context.Context, table string) (snap Snapshot, found bool, attempts int, err error) {
	attempts, err = resilience.Retry(ctx, "ledger", a.retryPolicy(), retryable, func(ctx context.Context, attempt int) error {
		s, rerr := a.Conn.Read(ctx, table)
		if errors.Is(rerr, ErrTableNotFound) {
			snap, found = Snapshot{Version: AnyVersion}, false
			return nil
		}
		if rerr != nil {
			a.log(ctx).Warn().Err(rerr).Str("table", table).Int("attempt", attempt).Msg("ledger_read_failed")
			return rerr
		}
		snap, found = s, true
		return nil
	})
	return snap, found, attempts, err
}

func (a *Adapter) write(ctx context.Context, table string, columns []string, rows []Row, expected string) (version string, attempts int, err error) {
	failed := false
	attempts, err = resilience.Retry(ctx, "ledger", a.retryPolicy(), retryable, func(ctx context.Context, attempt int) error {
		v, werr := a.Conn.Write(ctx, table, columns, rows, expected)
		switch {
		case werr == nil:
		case errors.Is(werr, ErrConflict) && failed:
			// an earlier attempt of this write may have changed the table
			return Permanent(fmt.Errorf("%w: %q changed after a failed write attempt", ErrTornWrite, table))
		case errors.Is(werr, ErrConflict):
			return werr
		default:
			failed = true
			a.log(ctx).Warn().Err(werr).Str("table", table).Int("attempt", attempt).Msg("ledger_write_failed")
			return werr
		}
		version = v
		return nil
	})
	return version, attempts, err
}

// fail wraps cause in a StoreError after one best-effort restore of the
// latest backup. A cancelled caller skips the restore.
func (a *Adapter) fail(ctx context.Context, schema Schema, op string, attempts int, cause error) error {
	serr := &StoreError{Table: schema.Table, Op: op, Attempts: attempts, Err: cause}
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return serr
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), restoreTimeout)
	defer cancel()
	name, err := a.restoreLatest(rctx, schema, resilience.RetryPolicy{Attempts: 1})
	logger := a.log(ctx)
	switch {
	case err == nil:
		serr.Restored = name
		Restores.WithLabelValues(schema.Table, "restored").Inc()
		logger.Warn().Err(cause).Str("table", schema.Table).Str("op", op).Str("backup", name).Msg("ledger_restored_backup")
	case errors.Is(err, ErrNoBackup):
		serr.RestoreErr = err
		Restores.WithLabelValues(schema.Table, "none").Inc()
		logger.Error().Err(cause).Str("table", schema.Table).Str("op", op).Msg("ledger_failed_no_backup")
	default:
		serr.RestoreErr = err
		Restores.WithLabelValues(schema.Table, "failed").Inc()
		logger.Error().Err(cause).AnErr("restore_error", err).Str("table", schema.Table).Str("op", op).Msg("ledger_restore_failed")
	}
	return serr
}

func (a *Adapter) retryPolicy() resilience.RetryPolicy {
	p := a.Retry
	if p.Attempts <= 0 {
		p.Attempts = resilience.DefaultRetryPolicy().Attempts
	}
	if p.Base <= 0 {
		p.Base = resilience.DefaultRetryPolicy().Base
	}
	return p
}

func (a *Adapter) conflictHandler() ConflictHandler {
	if a.OnConflict != nil {
		return a.OnConflict
	}
	limit := a.MaxConflictRetries
	if limit <= 0 {
		limit = defaultConflictRetries
	}
	return func(_ context.Context, _ string, round int) bool { return round <= limit }
}

func (a *Adapter) lockTTL() time.Duration {
	if a.LockTTL > 0 {
		return a.LockTTL
	}
	return defaultLockTTL
}

func (a *Adapter) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Adapter) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	if a.Logger == nil {
		return &nopLogger
	}
	return a.Logger
}
