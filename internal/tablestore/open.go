package tablestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-fieldsales/internal/ledger"
	"github.com/noah-isme/backend-fieldsales/internal/obs"
	"github.com/noah-isme/backend-fieldsales/internal/resilience"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSheets   = "sheets"
	BackendWorkbook = "workbook"
	BackendPostgres = "postgres"
)

// Pinger is implemented by connectors that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks conn when it supports it.
func Ping(ctx context.Context, conn ledger.Connector) error {
	if p, ok := conn.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Options selects and decorates a connector.
type Options struct {
	Backend         string
	SpreadsheetID   string
	CredentialsFile string
	WorkbookPath    string
	DatabaseURL     string
	AutoMigrate     bool

	// Redis enables the snapshot cache when set.
	Redis    *redis.Client
	CacheTTL time.Duration

	BreakerMinRequests int
	BreakerRatio       float64
	BreakerOpenFor     time.Duration

	Logger zerolog.Logger
}

// Open builds the configured connector, wrapped in a breaker and, when Redis
// is available, the read cache. The returned func releases resources.
func Open(ctx context.Context, opts Options) (ledger.Connector, func(), error) {
	closer := func() {}
	var conn ledger.Connector
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	switch backend {
	case "", BackendMemory:
		backend = BackendMemory
		conn = NewMemory()
	case BackendSheets:
		s, err := NewSheets(ctx, opts.SpreadsheetID, opts.CredentialsFile)
		if err != nil {
			return nil, closer, err
		}
		conn = s
	case BackendWorkbook:
		if opts.WorkbookPath == "" {
			return nil, closer, fmt.Errorf("tablestore: workbook path is required")
		}
		conn = NewWorkbook(opts.WorkbookPath)
	case BackendPostgres:
		if opts.DatabaseURL == "" {
			return nil, closer, fmt.Errorf("tablestore: database url is required")
		}
		if opts.AutoMigrate {
			if err := Migrate(opts.DatabaseURL); err != nil {
				return nil, closer, err
			}
		}
		poolConfig, err := pgxpool.ParseConfig(opts.DatabaseURL)
		if err != nil {
			return nil, closer, fmt.Errorf("tablestore: parse database url: %w", err)
		}
		poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, closer, fmt.Errorf("tablestore: postgres pool: %w", err)
		}
		closer = pool.Close
		conn = &Postgres{Pool: pool}
	default:
		return nil, closer, fmt.Errorf("tablestore: unknown backend %q", opts.Backend)
	}

	if backend != BackendMemory {
		breaker := resilience.NewBreaker(opts.BreakerMinRequests, opts.BreakerRatio, opts.BreakerOpenFor).
			WithTarget(backend).
			WithLogger(opts.Logger)
		conn = &Guarded{Next: conn, Breaker: breaker}
	}
	if opts.Redis != nil {
		logger := opts.Logger
		conn = &Cached{Next: conn, R: opts.Redis, TTL: opts.CacheTTL, Logger: &logger}
	}
	return conn, closer, nil
}
