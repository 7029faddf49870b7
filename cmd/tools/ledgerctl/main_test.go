package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-fieldsales/internal/app"
	"github.com/noah-isme/backend-fieldsales/internal/ledger"
	"github.com/noah-isme/backend-fieldsales/internal/testkit"
)

func TestResolveTables(t *testing.T) {
	all, err := resolveTables("")
	require.NoError(t, err)
	require.Len(t, all, len(app.Tables()))

	some, err := resolveTables(" Visits , Attendance")
	require.NoError(t, err)
	require.Len(t, some, 2)
	require.Equal(t, "Visits", some[0].Table)

	_, err = resolveTables("Orders")
	require.ErrorContains(t, err, "Orders")
}

func TestRunBackupAndRestore(t *testing.T) {
	adapter, _ := testkit.Ledger(t)
	ctx := context.Background()
	schemas, err := resolveTables("Visits")
	require.NoError(t, err)
	schema := schemas[0]

	require.NoError(t, adapter.AppendRows(ctx, schema, []ledger.Row{{"Visit ID": "VISIT-20260314-0001"}}))
	require.NoError(t, run(ctx, adapter, "backup", schemas))
	require.NoError(t, adapter.AppendRows(ctx, schema, []ledger.Row{{"Visit ID": "VISIT-20260314-0002"}}))
	require.NoError(t, run(ctx, adapter, "restore", schemas))

	rows, err := adapter.ReadTable(ctx, schema)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NoError(t, run(ctx, adapter, "tables", schemas))
	require.Error(t, run(ctx, adapter, "vacuum", schemas))
}
