package database

import (
	"context"
	"fmt"
	"time"

	"github.com/flowchartsman/retry"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PoolConfig tunes the pgx pool and the startup connect retry.
type PoolConfig struct {
	MaxConns       int32
	ConnectRetries int
}

// NewPostgresPool creates a pgx connection pool for PostgreSQL. The first ping
// is retried so the server can start alongside a database that is still booting.
func NewPostgresPool(ctx context.Context, dsn string, pc PoolConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	if pc.MaxConns > 0 {
		config.MaxConns = pc.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	tries := pc.ConnectRetries
	if tries <= 0 {
		tries = 1
	}
	attempt := 0
	err = retry.NewRetrier(tries, 500*time.Millisecond, 5*time.Second).Run(func() error {
		attempt++
		if err := pool.Ping(ctx); err != nil {
			logger.Warn("database not ready", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("PostgreSQL connection pool established", zap.Int32("max_conns", config.MaxConns))
	return pool, nil
}
