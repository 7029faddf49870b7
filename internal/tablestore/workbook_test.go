package tablestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-fieldsales/internal/ledger"
)

func TestWorkbookRoundTrip(t *testing.T) {
	ctx := context.Background()
	w := NewWorkbook(filepath.Join(t.TempDir(), "ledger.xlsx"))

	_, err := w.Read(ctx, "Sales")
	require.ErrorIs(t, err, ledger.ErrTableNotFound)

	columns := []string{"Invoice Number", "Quantity", "Grand Total"}
	rows := []ledger.Row{
		{"Invoice Number": "INV-20260314-AB12", "Quantity": "3", "Grand Total": "573.48"},
		{"Invoice Number": "INV-20260314-CD34", "Quantity": "1", "Grand Total": ""},
	}
	v1, err := w.Write(ctx, "Sales", columns, rows, ledger.AnyVersion)
	require.NoError(t, err)

	snap, err := w.Read(ctx, "Sales")
	require.NoError(t, err)
	require.Equal(t, columns, snap.Columns)
	require.Equal(t, rows, snap.Rows)
	require.Equal(t, v1, snap.Version)

	_, err = w.Write(ctx, "Sales__bak_20260314T093000", columns, rows, ledger.AnyVersion)
	require.NoError(t, err)

	v2, err := w.Write(ctx, "Sales", columns, rows[:1], v1)
	require.NoError(t, err)
	_, err = w.Write(ctx, "Sales", columns, rows, v1)
	require.ErrorIs(t, err, ledger.ErrConflict)

	snap, err = w.Read(ctx, "Sales")
	require.NoError(t, err)
	require.Len(t, snap.Rows, 1)
	require.Equal(t, v2, snap.Version)

	tables, err := w.ListTables(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"Sales", "Sales__bak_20260314T093000"}, tables)
}
