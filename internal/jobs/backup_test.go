package jobs_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-fieldsales/internal/jobs"
	"github.com/noah-isme/backend-fieldsales/internal/ledger"
	"github.com/noah-isme/backend-fieldsales/internal/testkit"
)

var notes = ledger.Schema{Table: "Notes", Columns: []string{"ID", "Text"}, Key: []string{"ID"}}

func TestBackupTask(t *testing.T) {
	adapter, mem := testkit.Ledger(t)
	ctx := context.Background()
	require.NoError(t, adapter.AppendRows(ctx, notes, []ledger.Row{{"ID": "1", "Text": "hello"}}))

	mux := asynq.NewServeMux()
	jobs.Register(mux, &jobs.Backup{Ledger: adapter, Tables: map[string]ledger.Schema{notes.Table: notes}})

	task, err := jobs.NewBackupTask("Notes")
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(ctx, task))

	tables, err := mem.ListTables(ctx)
	require.NoError(t, err)
	require.Contains(t, tables, "Notes__bak_20260314T050000")
}

func TestBackupTaskSkipsMissingTable(t *testing.T) {
	adapter, _ := testkit.Ledger(t)
	b := &jobs.Backup{Ledger: adapter, Tables: map[string]ledger.Schema{notes.Table: notes}}
	task, err := jobs.NewBackupTask("Notes")
	require.NoError(t, err)
	require.NoError(t, b.ProcessTask(context.Background(), task))
}

func TestBackupTaskRejectsUnknownTable(t *testing.T) {
	adapter, _ := testkit.Ledger(t)
	b := &jobs.Backup{Ledger: adapter, Tables: map[string]ledger.Schema{}}
	task, err := jobs.NewBackupTask("Orders")
	require.NoError(t, err)
	err = b.ProcessTask(context.Background(), task)
	require.True(t, errors.Is(err, asynq.SkipRetry))

	err = b.ProcessTask(context.Background(), asynq.NewTask(jobs.TypeLedgerBackup, []byte("{")))
	require.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestLoggerForwardsToZerolog(t *testing.T) {
	var buf bytes.Buffer
	l := jobs.NewLogger(zerolog.New(&buf))
	l.Warn("scheduler ", "lagging")
	require.Contains(t, buf.String(), `"level":"warn"`)
	require.Contains(t, buf.String(), `"message":"scheduler lagging"`)
	require.Contains(t, buf.String(), `"source":"asynq"`)
}
