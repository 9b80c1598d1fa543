package app

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"solana-trader/internal/config"
	"solana-trader/internal/storage"
	chstore "solana-trader/internal/storage/clickhouse"
	"solana-trader/internal/storage/memory"
	"solana-trader/internal/storage/migrations"
	pgstore "solana-trader/internal/storage/postgres"
	"solana-trader/internal/storage/sqlite"
)

// Stores bundles the storage implementations selected by configuration.
type Stores struct {
	Executions storage.ExecutionStore
	Signals    storage.SignalStore
	Snapshots  storage.SnapshotStore

	closers []func() error
}

// Close releases every underlying connection.
func (s *Stores) Close() error {
	var err error
	for _, c := range s.closers {
		err = multierr.Append(err, c())
	}
	return err
}

// BuildStores initializes the configured backend and applies its
// migrations. Snapshots prefer ClickHouse when a DSN is configured; the
// sqlite backend otherwise keeps them alongside the trade tables, and
// the postgres and memory backends keep them in memory.
func BuildStores(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Stores, error) {
	s := &Stores{}

	switch cfg.Backend {
	case "memory":
		s.Executions = memory.NewExecutionStore()
		s.Signals = memory.NewSignalStore()
		s.Snapshots = memory.NewSnapshotStore()

	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := migrations.RunSQLiteMigrations(ctx, db.DB); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		s.Executions = sqlite.NewExecutionStore(db)
		s.Signals = sqlite.NewSignalStore(db)
		s.Snapshots = sqlite.NewSnapshotStore(db)
		s.closers = append(s.closers, db.Close)
		logger.Info("sqlite storage ready", zap.String("path", cfg.SQLitePath))

	case "postgres":
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		s.Executions = pgstore.NewExecutionStore(pool)
		s.Signals = pgstore.NewSignalStore(pool)
		// The relational schema has no snapshot table; snapshots stay in
		// memory unless ClickHouse takes them below.
		s.Snapshots = memory.NewSnapshotStore()
		s.closers = append(s.closers, func() error { pool.Close(); return nil })
		logger.Info("postgres storage ready")

	default:
		return nil, fmt.Errorf("unknown database backend %q", cfg.Backend)
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		s.Snapshots = chstore.NewSnapshotStore(conn)
		s.closers = append(s.closers, conn.Close)
		logger.Info("market snapshots stored in clickhouse")
	}

	return s, nil
}
