// Package postgres implements pkg/metadata.Store against a Postgres
// catalog via jackc/pgx/v5, grounded on the teacher's
// pkg/metadata/store/postgres package (pool-backed store, optional
// auto-migration on construction).
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marmos91/byteserve/internal/logger"
	"github.com/marmos91/byteserve/pkg/config"
	"github.com/marmos91/byteserve/pkg/metadata"
)

// Store is the Postgres-backed implementation of metadata.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ metadata.Store = (*Store)(nil)

// New opens a connection pool against cfg.DSN and, if cfg.AutoMigrate
// is set, applies pending schema migrations before returning.
func New(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	poolCfg, err := cfg.PoolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := metadata.RunMigrations(cfg.DSN); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("applied metadata schema migrations")
	}

	return &Store{pool: pool}, nil
}

// Healthcheck verifies the pool can serve a trivial query.
func (s *Store) Healthcheck(ctx context.Context) error {
	var one int
	if err := s.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("healthcheck: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
