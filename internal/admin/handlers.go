package admin

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-fieldsales/internal/common"
	"github.com/noah-isme/backend-fieldsales/internal/jobs"
	"github.com/noah-isme/backend-fieldsales/internal/ledger"
)

// Ledger is the subset of *ledger.Adapter the admin endpoints use.
type Ledger interface {
	BackupTable(ctx context.Context, schema ledger.Schema) (string, error)
	RestoreLatestBackup(ctx context.Context, schema ledger.Schema) (string, error)
	ListBackups(ctx context.Context, table string) ([]string, error)
}

// Enqueuer hands backups to the worker. *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Handler exposes ledger maintenance endpoints.
type Handler struct {
	Ledger Ledger
	Tables map[string]ledger.Schema
	// Queue, when set, turns Backup into an asynchronous request.
	Queue  Enqueuer
	Logger zerolog.Logger
}

type tableView struct {
	Table   string   `json:"table"`
	Key     []string `json:"key"`
	Columns []string `json:"columns"`
	Backups []string `json:"backups"`
}

// ListTables lists the known tables and their backups.
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	out := make([]tableView, 0, len(h.Tables))
	for _, name := range slices.Sorted(maps.Keys(h.Tables)) {
		schema := h.Tables[name]
		backups, err := h.Ledger.ListBackups(r.Context(), name)
		if err != nil {
			common.WriteError(w, err)
			return
		}
		if backups == nil {
			backups = []string{}
		}
		out = append(out, tableView{Table: name, Key: schema.Key, Columns: schema.Columns, Backups: backups})
	}
	common.Data(w, http.StatusOK, out)
}

// Backup snapshots a table, or enqueues the snapshot when a queue is set.
func (h *Handler) Backup(w http.ResponseWriter, r *http.Request) {
	schema, ok := h.schema(w, r)
	if !ok {
		return
	}
	if h.Queue != nil {
		task, err := jobs.NewBackupTask(schema.Table)
		if err != nil {
			common.WriteError(w, err)
			return
		}
		info, err := h.Queue.EnqueueContext(r.Context(), task)
		if err != nil {
			h.Logger.Error().Err(err).Str("table", schema.Table).Msg("enqueue backup")
			common.JSONError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "backup could not be queued", nil)
			return
		}
		common.Data(w, http.StatusAccepted, map[string]string{"table": schema.Table, "task": info.ID})
		return
	}
	name, err := h.Ledger.BackupTable(r.Context(), schema)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, map[string]string{"table": schema.Table, "backup": name})
}

// Restore overwrites a table with its latest backup.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	schema, ok := h.schema(w, r)
	if !ok {
		return
	}
	name, err := h.Ledger.RestoreLatestBackup(r.Context(), schema)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	h.Logger.Warn().Str("table", schema.Table).Str("backup", name).Msg("table restored from backup")
	common.Data(w, http.StatusOK, map[string]string{"table": schema.Table, "restored": name})
}

func (h *Handler) schema(w http.ResponseWriter, r *http.Request) (ledger.Schema, bool) {
	table := chi.URLParam(r, "table")
	schema, ok := h.Tables[table]
	if !ok {
		common.WriteError(w, fmt.Errorf("table %q: %w", table, common.ErrNotFound))
		return ledger.Schema{}, false
	}
	return schema, true
}
