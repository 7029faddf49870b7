// Package jobs holds the asynq tasks run by the worker.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-fieldsales/internal/ledger"
	"github.com/noah-isme/backend-fieldsales/internal/obs"
)

// TypeLedgerBackup copies one ledger table to a timestamped backup table.
const TypeLedgerBackup = "ledger:backup"

// BackupPayload names the table to back up.
type BackupPayload struct {
	Table string `json:"table"`
}

// NewBackupTask builds a backup task for table.
func NewBackupTask(table string) (*asynq.Task, error) {
	payload, err := json.Marshal(BackupPayload{Table: table})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeLedgerBackup, payload, asynq.MaxRetry(3), asynq.Timeout(2*time.Minute)), nil
}

// Backuper is implemented by *ledger.Adapter.
type Backuper interface {
	BackupTable(ctx context.Context, schema ledger.Schema) (string, error)
}

// Backup handles TypeLedgerBackup tasks.
type Backup struct {
	Ledger Backuper
	Tables map[string]ledger.Schema
	Logger zerolog.Logger
}

// ProcessTask implements asynq.Handler. Tables that do not exist yet are
// skipped without error.
func (b *Backup) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p BackupPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode backup payload: %v: %w", err, asynq.SkipRetry)
	}
	schema, ok := b.Tables[p.Table]
	if !ok {
		return fmt.Errorf("unknown ledger table %q: %w", p.Table, asynq.SkipRetry)
	}
	name, err := b.Ledger.BackupTable(ctx, schema)
	switch {
	case errors.Is(err, ledger.ErrTableNotFound):
		obs.BackupRun(p.Table, "skipped")
		b.Logger.Info().Str("table", p.Table).Msg("backup_skipped_missing_table")
		return nil
	case err != nil:
		obs.BackupRun(p.Table, "error")
		return err
	}
	obs.BackupRun(p.Table, "ok")
	b.Logger.Info().Str("table", p.Table).Str("backup", name).Msg("backup_created")
	return nil
}

// Register mounts the job handlers on mux.
func Register(mux *asynq.ServeMux, b *Backup) {
	mux.Handle(TypeLedgerBackup, b)
}

// Schedule registers one periodic backup per table using an asynq
// cronspec such as "@every 6h".
func Schedule(s *asynq.Scheduler, cronspec string, tables []ledger.Schema) error {
	for _, schema := range tables {
		task, err := NewBackupTask(schema.Table)
		if err != nil {
			return err
		}
		if _, err := s.Register(cronspec, task); err != nil {
			return fmt.Errorf("schedule backup of %s: %w", schema.Table, err)
		}
	}
	return nil
}
