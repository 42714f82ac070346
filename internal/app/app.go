// Package app assembles the ledger services from configuration. It is
// shared by the API server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-ledger/internal/categorizer"
	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/export"
	infraBQ "github.com/dvloznov/finance-ledger/internal/infra/bigquery"
	"github.com/dvloznov/finance-ledger/internal/infra/memory"
	"github.com/dvloznov/finance-ledger/internal/infra/mongo"
	"github.com/dvloznov/finance-ledger/internal/infra/postgres"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/dvloznov/finance-ledger/internal/lock"
	"github.com/dvloznov/finance-ledger/internal/notionsync"
	"github.com/dvloznov/finance-ledger/internal/reconciler"
	"github.com/dvloznov/finance-ledger/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// App holds the wired services. Optional integrations are nil when not
// configured.
type App struct {
	Store        ledger.Store
	Locker       ledger.Locker
	Accounts     *service.AccountService
	Transactions *service.TransactionService
	Auditor      *reconciler.Auditor
	Exporter     *export.Exporter

	// Syncer is set when NOTION_TOKEN and NOTION_DATABASE_ID are.
	Syncer *notionsync.Syncer
	// Suggester is set when GEMINI_MODEL is.
	Suggester *categorizer.Suggester

	log     zerolog.Logger
	closers []func() error
}

// New connects the configured backends and builds the services. Call Close
// when done.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{log: log}

	store, err := a.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.Locker = a.newLocker(ctx, cfg)

	a.Accounts = service.NewAccountService(store, a.Locker, log)
	a.Transactions = service.NewTransactionService(store, a.Locker, log)
	a.Auditor = reconciler.NewAuditor(store, a.Locker, log)

	var dest export.ObjectWriter = export.FileWriter{Dir: cfg.ExportDir}
	if cfg.GCSBucket != "" {
		gcs, err := export.NewGCSWriter(ctx, cfg.GCSBucket)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("app: %w", err)
		}
		a.closers = append(a.closers, gcs.Close)
		dest = gcs
	}
	a.Exporter = export.NewExporter(a.Transactions, dest, log)

	if cfg.NotionToken != "" && cfg.NotionDatabaseID != "" {
		a.Syncer = notionsync.NewSyncer(notionsync.NewNotionClient(cfg.NotionToken), cfg.NotionDatabaseID, a.Transactions)
	} else {
		log.Warn().Msg("Notion is not configured - sync jobs are disabled")
	}

	if cfg.GeminiModel != "" {
		gen, err := categorizer.NewGeminiGenerator(ctx, cfg.GeminiModel)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("app: %w", err)
		}
		a.Suggester = categorizer.NewSuggester(gen, a.Transactions)
	}

	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config) (ledger.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		store := postgres.NewStore(db)
		a.closers = append(a.closers, store.Close)
		a.log.Info().Msg("Using PostgreSQL ledger store")
		return store, nil

	case config.BackendMongo:
		store, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(context.Background())
			return nil, fmt.Errorf("app: %w", err)
		}
		a.closers = append(a.closers, func() error { return store.Close(context.Background()) })
		a.log.Info().Str("database", cfg.MongoDatabase).Msg("Using MongoDB ledger store")
		return store, nil

	case config.BackendBigQuery:
		store, err := infraBQ.NewStore(ctx, cfg.BQProjectID, cfg.BQDatasetID)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.log.Info().
			Str("project", cfg.BQProjectID).
			Str("dataset", cfg.BQDatasetID).
			Msg("Using BigQuery ledger store")
		return store, nil

	case config.BackendMemory, "":
		a.log.Warn().Msg("Using in-memory ledger store - data is lost on exit")
		return memory.NewStore(), nil
	}
	return nil, fmt.Errorf("app: unknown store backend %q", cfg.StoreBackend)
}

// newLocker picks Redis when REDIS_ADDR is set so several processes can
// share the ledger, and an in-process locker otherwise.
func (a *App) newLocker(ctx context.Context, cfg *config.Config) ledger.Locker {
	if cfg.RedisAddr == "" {
		return lock.NewLocalLocker()
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		a.log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis ping failed; lock calls will retry")
	}
	a.closers = append(a.closers, client.Close)
	a.log.Info().Str("addr", cfg.RedisAddr).Dur("ttl", cfg.LockTTL).Msg("Using Redis account locks")
	return lock.NewRedisLocker(client, cfg.LockTTL, a.log)
}

// Close releases every client New opened, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
