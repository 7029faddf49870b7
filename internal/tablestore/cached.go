package tablestore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-fieldsales/internal/ledger"
)

// DefaultCacheTTL keeps snapshots just long enough to absorb bursts of
// reads from one form submission.
const DefaultCacheTTL = 5 * time.Second

// Cached is a Redis read-through cache in front of another connector.
// Entries are dropped on every write attempt, including conflicting ones.
// Redis failures degrade to direct reads.
type Cached struct {
	Next   ledger.Connector
	R      *redis.Client
	TTL    time.Duration
	Prefix string
	Logger *zerolog.Logger
}

// Read serves the snapshot from Redis when present.
func (c *Cached) Read(ctx context.Context, table string) (ledger.Snapshot, error) {
	key := c.key(table)
	if raw, err := c.R.Get(ctx, key).Bytes(); err == nil {
		var snap ledger.Snapshot
		if jerr := json.Unmarshal(raw, &snap); jerr == nil {
			return snap, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.warn(err, table, "ledger_cache_get_failed")
	}

	snap, err := c.Next.Read(ctx, table)
	if err != nil {
		return snap, err
	}
	if raw, err := json.Marshal(snap); err == nil {
		if err := c.R.Set(ctx, key, raw, c.ttl()).Err(); err != nil {
			c.warn(err, table, "ledger_cache_set_failed")
		}
	}
	return snap, nil
}

// Write forwards to the next connector and invalidates the entry.
func (c *Cached) Write(ctx context.Context, table string, columns []string, rows []ledger.Row, expected string) (string, error) {
	version, err := c.Next.Write(ctx, table, columns, rows, expected)
	if derr := c.R.Del(context.WithoutCancel(ctx), c.key(table)).Err(); derr != nil {
		c.warn(derr, table, "ledger_cache_invalidate_failed")
	}
	return version, err
}

// ListTables is not cached.
func (c *Cached) ListTables(ctx context.Context) ([]string, error) {
	return c.Next.ListTables(ctx)
}

// Ping checks the next connector.
func (c *Cached) Ping(ctx context.Context) error {
	return Ping(ctx, c.Next)
}

func (c *Cached) key(table string) string {
	prefix := c.Prefix
	if prefix == "" {
		prefix = "ledger:snapshot:"
	}
	return prefix + table
}

func (c *Cached) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return DefaultCacheTTL
}

func (c *Cached) warn(err error, table, msg string) {
	if c.Logger == nil {
		return
	}
	c.Logger.Warn().Err(err).Str("table", table).Msg(msg)
}
