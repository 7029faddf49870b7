package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-fieldsales/internal/ledger"
	"github.com/noah-isme/backend-fieldsales/internal/resilience"
	"github.com/noah-isme/backend-fieldsales/internal/tablestore"
)

var salesSchema = ledger.Schema{
	Table:   "Sales",
	Columns: []string{"Invoice Number", "Product Name", "Quantity", "Payment Status"},
	Key:     []string{"Invoice Number", "Product Name"},
}

var errUnavailable = errors.New("store unavailable")

// flaky fails the first N reads of a table, can empty a table and then fail
// the write that did it, and can interleave a foreign write before the
// adapter's own write.
type flaky struct {
	ledger.Connector
	mu           sync.Mutex
	readFailures map[string]int
	reads        map[string]int
	writes       map[string]int
	tornWrites   map[string]int
	beforeWrite  func(table string)
}

func newFlaky(next ledger.Connector) *flaky {
	return &flaky{Connector: next, readFailures: map[string]int{}, reads: map[string]int{}, writes: map[string]int{}, tornWrites: map[string]int{}}
}

func (f *flaky) Read(ctx context.Context, table string) (ledger.Snapshot, error) {
	f.mu.Lock()
	f.reads[table]++
	if f.readFailures[table] > 0 {
		f.readFailures[table]--
		f.mu.Unlock()
		return ledger.Snapshot{}, errUnavailable
	}
	f.mu.Unlock()
	return f.Connector.Read(ctx, table)
}

func (f *flaky) Write(ctx context.Context, table string, columns []string, rows []ledger.Row, expected string) (string, error) {
	f.mu.Lock()
	f.writes[table]++
	hook := f.beforeWrite
	torn := f.tornWrites[table] > 0
	if torn {
		f.tornWrites[table]--
	}
	f.mu.Unlock()
	if torn {
		if _, err := f.Connector.Write(ctx, table, columns, nil, ledger.AnyVersion); err != nil {
			return "", err
		}
		return "", errUnavailable
	}
	if hook != nil {
		hook(table)
	}
	return f.Connector.Write(ctx, table, columns, rows, expected)
}

type harness struct {
	mem     *tablestore.Memory
	conn    *flaky
	adapter *ledger.Adapter
	delays  []time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{mem: tablestore.NewMemory()}
	h.conn = newFlaky(h.mem)
	h.adapter = &ledger.Adapter{
		Conn: h.conn,
		Retry: resilience.RetryPolicy{Attempts: 3, Base: time.Second, Sleep: func(_ context.Context, d time.Duration) error {
			h.delays = append(h.delays, d)
			return nil
		}},
		Now: func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) },
	}
	return h
}

func sale(invoice, product, status string) ledger.Row {
	return ledger.Row{"Invoice Number": invoice, "Product Name": product, "Quantity": "1", "Payment Status": status}
}

func TestAppendRowsIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rows := []ledger.Row{sale("INV-1", "Soap", "pending"), sale("INV-1", "Face Wash", "pending")}

	require.NoError(t, h.adapter.AppendRows(ctx, salesSchema, rows))
	require.NoError(t, h.adapter.AppendRows(ctx, salesSchema, rows))

	got, err := h.adapter.ReadTable(ctx, salesSchema)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestAppendRowsLastWriterWins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.adapter.AppendRows(ctx, salesSchema, []ledger.Row{sale("INV-1", "Soap", "pending")}))
	require.NoError(t, h.adapter.AppendRows(ctx, salesSchema, []ledger.Row{sale("INV-1", "Soap", "paid")}))

	got, err := h.adapter.ReadTable(ctx, salesSchema)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "paid", got[0]["Payment Status"])
}

func TestAppendRowsReindexesAndDropsBlankRows(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.mem.Write(ctx, "Sales", []string{"Invoice Number", "Product Name", "Legacy"},
		[]ledger.Row{{"Invoice Number": "", "Product Name": "", "Legacy": " "}, {"Invoice Number": "INV-0", "Product Name": "Soap", "Legacy": "x"}},
		ledger.AnyVersion)
	require.NoError(t, err)

	require.NoError(t, h.adapter.AppendRows(ctx, salesSchema, []ledger.Row{
		{"Invoice Number": "INV-2", "Product Name": "Soap", "Unknown": "dropped"},
		{},
	}))

	snap, err := h.mem.Read(ctx, "Sales")
	require.NoError(t, err)
	require.Equal(t, []string{"Invoice Number", "Product Name", "Legacy", "Quantity", "Payment Status"}, snap.Columns)
	require.Len(t, snap.Rows, 2)
	require.Equal(t, "x", snap.Rows[0]["Legacy"])
	require.Equal(t, "INV-2", snap.Rows[1]["Invoice Number"])
	require.Equal(t, "", snap.Rows[1]["Quantity"])
	_, hasUnknown := snap.Rows[1]["Unknown"]
	require.False(t, hasUnknown)
}

func TestReadTableRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	in := sale("INV-9", "Soap", "partial paid")
	in["Quantity"] = "12"
	require.NoError(t, h.adapter.AppendRows(ctx, salesSchema, []ledger.Row{in}))

	got, err := h.adapter.ReadTable(ctx, salesSchema)
	require.NoError(t, err)
	require.Equal(t, []ledger.Row{in}, got)

	missing, err := h.adapter.ReadTable(ctx, ledger.Schema{Table: "Visits", Columns: []string{"Visit ID"}})
	require.NoError(t, err)
	require.Empty(t, missing)
}

func TestAppendRowsRecoversAfterTwoFailedReads(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.adapter.AppendRows(ctx, salesSchema, []ledger.Row{sale("INV-1", "Soap", "pending")}))
	_, err := h.adapter.BackupTable(ctx, salesSchema)
	require.NoError(t, err)

	h.delays = nil
	h.conn.readFailures["Sales"] = 2
	require.NoError(t, h.adapter.AppendRows(ctx, salesSchema, []ledger.Row{sale("INV-2", "Soap", "paid")}))

	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, h.delays)
	got, err := h.adapter.ReadTable(ctx, salesSchema)
	require.NoError(t, err)
	require.Len(t, got, 2, "no restore may run after a successful retry")
}

func TestAppendRowsRestoresBackupAfterThreeFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.adapter.AppendRows(ctx, salesSchema, []ledger.Row{sale("INV-1", "Soap", "pending")}))
	backup, err := h.adapter.BackupTable(ctx, salesSchema)
	require.NoError(t, err)
	require.Equal(t, "Sales__bak_20260314T093000", backup)

	// damage the live table behind the adapter's back
	_, err = h.mem.Write(ctx, "Sales", salesSchema.Columns, nil, ledger.AnyVersion)
	require.NoError(t, err)

	h.conn.readFailures["Sales"] = 3
	err = h.adapter.AppendRows(ctx, salesSchema, []ledger.Row{sale("INV-2", "Soap", "paid")})
	require.Error(t, err)
	require.ErrorIs(t, err, ledger.ErrTransient)
	require.ErrorIs(t, err, errUnavailable)

	var serr *ledger.StoreError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, 3, serr.Attempts)
	require.Equal(t, "append", serr.Op)
	require.Equal(t, backup, serr.Restored)

	snap, err := h.mem.Read(ctx, "Sales")
	require.NoError(t, err)
	require.Len(t, snap.Rows, 1)
	require.Equal(t, "INV-1", snap.Rows[0]["Invoice Number"])
}

func TestWriteFailingAfterClearingRestoresBackup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.adapter.AppendRows(ctx, salesSchema, []ledger.Row{
		sale("INV-1", "Soap", "pending"),
		sale("INV-2", "Soap", "paid"),
	}))
	backup, err := h.adapter.BackupTable(ctx, salesSchema)
	require.NoError(t, err)

	h.conn.tornWrites["Sales"] = 1
	err = h.adapter.AppendRows(ctx, salesSchema, []ledger.Row{sale("INV-3", "Soap", "pending")})
	require.ErrorIs(t, err, ledger.ErrTransient)
	require.ErrorIs(t, err, ledger.ErrTornWrite)
	require.NotErrorIs(t, err, ledger.ErrConflict)

	var serr *ledger.StoreError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, backup, serr.Restored)

	got, err := h.adapter.ReadTable(ctx, salesSchema)
	require.NoError(t, err)
	require.Len(t, got, 2, "rows wiped by the failed attempt must come back")
	require.Equal(t, "INV-1", got[0]["Invoice Number"])
	require.Equal(t, "INV-2", got[1]["Invoice Number"])
}

func TestFailureWithoutBackupReportsRestoreError(t *testing.T) {
	h := newHarness(t)
	h.conn.readFailures["Sales"] = 3

	_, err := h.adapter.UpdateRowsWhere(context.Background(), salesSchema,
		ledger.Where("Invoice Number", "INV-1"), ledger.Set(map[string]string{"Payment Status": "paid"}))

	var serr *ledger.StoreError
	require.ErrorAs(t, err, &serr)
	require.Empty(t, serr.Restored)
	require.ErrorIs(t, serr.RestoreErr, ledger.ErrNoBackup)
}

func TestUpdateRowsWhere(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.adapter.AppendRows(ctx, salesSchema, []ledger.Row{
		sale("INV-1", "Soap", "pending"),
		sale("INV-1", "Face Wash", "pending"),
		sale("INV-2", "Soap", "pending"),
	}))

	n, err := h.adapter.UpdateRowsWhere(ctx, salesSchema,
		ledger.Where("Invoice Number", "INV-1"), ledger.Set(map[string]string{"Payment Status": "paid"}))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	got, err := h.adapter.ReadTable(ctx, salesSchema)
	require.NoError(t, err)
	require.Equal(t, "paid", got[0]["Payment Status"])
	require.Equal(t, "paid", got[1]["Payment Status"])
	require.Equal(t, "pending", got[2]["Payment Status"])

	writes := h.conn.writes["Sales"]
	n, err = h.adapter.UpdateRowsWhere(ctx, salesSchema,
		ledger.Where("Invoice Number", "INV-404"), ledger.Set(map[string]string{"Payment Status": "paid"}))
	require.NoError(t, err)
	require.Zero(t, n)
	require.Equal(t, writes, h.conn.writes["Sales"], "no match must not rewrite the table")
}

func TestConflictRerunsMerge(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.adapter.AppendRows(ctx, salesSchema, []ledger.Row{sale("INV-1", "Soap", "pending")}))

	interleaved := false
	h.conn.beforeWrite = func(table string) {
		if interleaved || table != "Sales" {
			return
		}
		interleaved = true
		snap, err := h.mem.Read(ctx, "Sales")
		require.NoError(t, err)
		rows := append(snap.Rows, sale("INV-OTHER", "Soap", "paid"))
		_, err = h.mem.Write(ctx, "Sales", snap.Columns, rows, snap.Version)
		require.NoError(t, err)
	}

	require.NoError(t, h.adapter.AppendRows(ctx, salesSchema, []ledger.Row{sale("INV-2", "Soap", "pending")}))

	got, err := h.adapter.ReadTable(ctx, salesSchema)
	require.NoError(t, err)
	require.Len(t, got, 3, "the concurrent writer's row must survive")
}

func TestConflictHandlerCanGiveUp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.adapter.AppendRows(ctx, salesSchema, []ledger.Row{sale("INV-1", "Soap", "pending")}))

	rounds := 0
	h.adapter.OnConflict = func(context.Context, string, int) bool {
		rounds++
		return false
	}
	h.conn.beforeWrite = func(string) {
		snap, err := h.mem.Read(ctx, "Sales")
		require.NoError(t, err)
		_, err = h.mem.Write(ctx, "Sales", snap.Columns, snap.Rows, snap.Version)
		require.NoError(t, err)
	}

	err := h.adapter.AppendRows(ctx, salesSchema, []ledger.Row{sale("INV-2", "Soap", "pending")})
	require.ErrorIs(t, err, ledger.ErrConflict)
	require.False(t, errors.Is(err, ledger.ErrTransient))
	require.Equal(t, 1, rounds)
}

func TestRestoreLatestBackupPicksNewest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	clock := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	h.adapter.Now = func() time.Time { return clock }

	require.NoError(t, h.adapter.AppendRows(ctx, salesSchema, []ledger.Row{sale("INV-1", "Soap", "pending")}))
	first, err := h.adapter.BackupTable(ctx, salesSchema)
	require.NoError(t, err)

	clock = clock.Add(time.Hour)
	require.NoError(t, h.adapter.AppendRows(ctx, salesSchema, []ledger.Row{sale("INV-2", "Soap", "pending")}))
	second, err := h.adapter.BackupTable(ctx, salesSchema)
	require.NoError(t, err)

	backups, err := h.adapter.ListBackups(ctx, "Sales")
	require.NoError(t, err)
	require.Equal(t, []string{first, second}, backups)

	require.NoError(t, h.adapter.AppendRows(ctx, salesSchema, []ledger.Row{sale("INV-3", "Soap", "pending")}))
	restored, err := h.adapter.RestoreLatestBackup(ctx, salesSchema)
	require.NoError(t, err)
	require.Equal(t, second, restored)

	got, err := h.adapter.ReadTable(ctx, salesSchema)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestBackupOfMissingTable(t *testing.T) {
	h := newHarness(t)
	_, err := h.adapter.BackupTable(context.Background(), salesSchema)
	require.ErrorIs(t, err, ledger.ErrTableNotFound)
}

func TestSchemaValidation(t *testing.T) {
	h := newHarness(t)
	bad := ledger.Schema{Table: "Sales", Columns: []string{"A"}, Key: []string{"B"}}
	err := h.adapter.AppendRows(context.Background(), bad, []ledger.Row{{"A": "1"}})
	require.ErrorIs(t, err, ledger.ErrInvalidSchema)
}
