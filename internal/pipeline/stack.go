package pipeline

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"ipo-window-lab/internal/config"
	"ipo-window-lab/internal/storage"
	chstore "ipo-window-lab/internal/storage/clickhouse"
	"ipo-window-lab/internal/storage/memory"
	"ipo-window-lab/internal/storage/migrations"
	pgstore "ipo-window-lab/internal/storage/postgres"
	"ipo-window-lab/internal/storage/sqlite"
)

// Stack holds the stores selected by configuration.
type Stack struct {
	Listings storage.ListingStore
	Runs     storage.RunStore
	Stats    storage.WindowStatStore
	Trades   storage.TradeStore
	Bars     storage.BarStore // nil when data.cache is off

	closers []func()
}

// NewMemoryStack returns a stack backed entirely by in-memory stores.
func NewMemoryStack() *Stack {
	return &Stack{
		Listings: memory.NewListingStore(),
		Runs:     memory.NewRunStore(),
		Stats:    memory.NewWindowStatStore(),
		Trades:   memory.NewTradeStore(),
		Bars:     memory.NewBarStore(),
	}
}

// OpenStack connects the configured backends and applies migrations.
//
// Run tables live in Postgres when storage.backend is postgres, otherwise in
// memory. The bar cache is ClickHouse when clickhouse_dsn is set, else SQLite
// when sqlite_path is set, else memory.
func OpenStack(ctx context.Context, cfg *config.Config, logger *log.Entry) (*Stack, error) {
	s := &Stack{}

	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		if len(applied) > 0 {
			logger.WithField("versions", applied).Info("Applied PostgreSQL migrations")
		}
		s.Listings = pgstore.NewListingStore(pool)
		s.Runs = pgstore.NewRunStore(pool)
		s.Stats = pgstore.NewWindowStatStore(pool)
		s.Trades = pgstore.NewTradeStore(pool)
		logger.Info("Connected to PostgreSQL")
	default:
		s.Listings = memory.NewListingStore()
		s.Runs = memory.NewRunStore()
		s.Stats = memory.NewWindowStatStore()
		s.Trades = memory.NewTradeStore()
	}

	if !cfg.Data.Cache {
		return s, nil
	}

	switch {
	case cfg.Storage.ClickHouseDSN != "":
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickHouseDSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		s.closers = append(s.closers, func() { conn.Close() })
		s.Bars = chstore.NewBarStore(conn)
		logger.Info("Connected to ClickHouse bar cache")
	case cfg.Storage.SQLitePath != "":
		bars, err := sqlite.NewBarStore(cfg.Storage.SQLitePath)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() { bars.Close() })
		s.Bars = bars
		logger.WithField("path", cfg.Storage.SQLitePath).Info("Opened SQLite bar cache")
	default:
		s.Bars = memory.NewBarStore()
	}
	return s, nil
}

// Close releases connections in reverse order of opening.
func (s *Stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
