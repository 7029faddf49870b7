// Package app wires the ledger, reference data and record services from
// configuration. The API, the worker and ledgerctl share it.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-fieldsales/internal/attendance"
	"github.com/noah-isme/backend-fieldsales/internal/config"
	"github.com/noah-isme/backend-fieldsales/internal/demo"
	"github.com/noah-isme/backend-fieldsales/internal/document"
	"github.com/noah-isme/backend-fieldsales/internal/ids"
	"github.com/noah-isme/backend-fieldsales/internal/ledger"
	"github.com/noah-isme/backend-fieldsales/internal/lock"
	"github.com/noah-isme/backend-fieldsales/internal/pricing"
	"github.com/noah-isme/backend-fieldsales/internal/refdata"
	"github.com/noah-isme/backend-fieldsales/internal/resilience"
	"github.com/noah-isme/backend-fieldsales/internal/sales"
	"github.com/noah-isme/backend-fieldsales/internal/tablestore"
	"github.com/noah-isme/backend-fieldsales/internal/ticket"
	"github.com/noah-isme/backend-fieldsales/internal/travel"
	"github.com/noah-isme/backend-fieldsales/internal/visit"
)

// Tables lists every ledger table the application writes.
func Tables() []ledger.Schema {
	return []ledger.Schema{sales.Schema, visit.Schema, attendance.Schema, ticket.Schema, travel.Schema, demo.Schema}
}

// TableIndex maps table names to their schema.
func TableIndex() map[string]ledger.Schema {
	out := make(map[string]ledger.Schema)
	for _, s := range Tables() {
		out[s.Table] = s
	}
	return out
}

// Store is the ledger stack: optional Redis, the backend connector and the
// adapter on top of it.
type Store struct {
	Redis  *redis.Client
	Conn   ledger.Connector
	Ledger *ledger.Adapter
}

// Dependencies are the shared building blocks.
type Dependencies struct {
	Store
	Catalog *refdata.Catalog
	IDs     *ids.Generator
}

// Services groups the record services.
type Services struct {
	Sales      *sales.Service
	Visits     *visit.Service
	Attendance *attendance.Service
	Tickets    *ticket.Service
	Travel     *travel.Service
	Demos      *demo.Service
}

// OpenStore connects Redis (optional) and the configured ledger backend.
// The returned func releases connections and is safe to call on error.
func OpenStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Store, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, closeAll, fmt.Errorf("parse redis url: %w", err)
		}
		rdb = redis.NewClient(opts)
		if err := redisotel.InstrumentTracing(rdb); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
		closers = append(closers, func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		})
	}

	conn, closeConn, err := tablestore.Open(ctx, tablestore.Options{
		Backend:            cfg.StoreBackend,
		SpreadsheetID:      cfg.SpreadsheetID,
		CredentialsFile:    cfg.CredentialsFile,
		WorkbookPath:       cfg.WorkbookPath,
		DatabaseURL:        cfg.DatabaseURL,
		AutoMigrate:        cfg.AutoMigrate,
		Redis:              rdb,
		CacheTTL:           cfg.CacheTTL,
		BreakerMinRequests: cfg.BreakerMinRequests,
		BreakerRatio:       cfg.BreakerRatio,
		BreakerOpenFor:     cfg.BreakerOpenFor,
		Logger:             logger,
	})
	if err != nil {
		return nil, closeAll, err
	}
	closers = append(closers, closeConn)

	adapter := &ledger.Adapter{
		Conn:               conn,
		Retry:              resilience.RetryPolicy{Attempts: cfg.LedgerRetries, Base: cfg.LedgerRetryBase},
		LockTTL:            cfg.LedgerLockTTL,
		MaxConflictRetries: cfg.ConflictRetries,
		Logger:             &logger,
	}
	if rdb != nil {
		adapter.Locker = &lock.Locker{R: rdb, MaxWait: cfg.LedgerLockTTL}
	}
	return &Store{Redis: rdb, Conn: conn, Ledger: adapter}, closeAll, nil
}

// NewDependencies opens the store and loads the reference data.
func NewDependencies(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Dependencies, func(), error) {
	store, closeStore, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, closeStore, err
	}

	catalog, err := refdata.Load(refdata.DefaultFiles(cfg.RefdataDir))
	if err != nil {
		return nil, closeStore, err
	}

	gen := &ids.Generator{Location: ids.LoadLocation(cfg.Timezone)}
	if store.Redis != nil {
		gen.Seq = &ids.RedisSequence{R: store.Redis}
	} else {
		seq, err := ids.NewSnowflakeSequence(1)
		if err != nil {
			return nil, closeStore, err
		}
		gen.Seq = seq
	}

	return &Dependencies{Store: *store, Catalog: catalog, IDs: gen}, closeStore, nil
}

// NewServices builds the record services on deps.
func NewServices(cfg *config.Config, deps *Dependencies, logger zerolog.Logger) *Services {
	var renderer document.Renderer
	if cfg.DocumentDir != "" {
		renderer = document.JSONRenderer{Dir: cfg.DocumentDir}
	}
	return &Services{
		Sales: &sales.Service{
			Store:    deps.Ledger,
			Catalog:  deps.Catalog,
			IDs:      deps.IDs,
			Policy:   pricing.Policy{CeilGrandTotal: cfg.CeilGrandTotal},
			Renderer: renderer,
			Logger:   logger.With().Str("module", "sales").Logger(),
			Company: document.Company{
				Name:       cfg.CompanyName,
				Address:    cfg.CompanyAddress,
				GSTIN:      cfg.CompanyGSTIN,
				Disclaimer: cfg.CompanyDisclaimer,
			},
			NoInvoiceDiscounts: cfg.InvoiceDiscountsDisabled,
		},
		Visits:     &visit.Service{Store: deps.Ledger, Catalog: deps.Catalog, IDs: deps.IDs, Logger: logger.With().Str("module", "visit").Logger()},
		Attendance: &attendance.Service{Store: deps.Ledger, Catalog: deps.Catalog, IDs: deps.IDs, Logger: logger.With().Str("module", "attendance").Logger()},
		Tickets:    &ticket.Service{Store: deps.Ledger, Catalog: deps.Catalog, IDs: deps.IDs, Logger: logger.With().Str("module", "ticket").Logger()},
		Travel:     &travel.Service{Store: deps.Ledger, Catalog: deps.Catalog, IDs: deps.IDs, Logger: logger.With().Str("module", "travel").Logger()},
		Demos:      &demo.Service{Store: deps.Ledger, Catalog: deps.Catalog, IDs: deps.IDs, Logger: logger.With().Str("module", "demo").Logger()},
	}
}
