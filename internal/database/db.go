package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"story-server/internal/config"
)

// Connect создает пул соединений PostgreSQL и проверяет подключение.
// Несколько попыток нужны, пока контейнер с базой поднимается.
func Connect(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = cfg.MaxConnections
	}

	const maxAttempts = 5
	retryDelay := 2 * time.Second

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		pool, err = tryConnect(ctx, poolConfig)
		if err == nil {
			logger.Info("Connected to PostgreSQL",
				zap.String("host", cfg.Host),
				zap.String("database", cfg.Name))
			return pool, nil
		}
		logger.Warn("Failed to connect to PostgreSQL, retrying...",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("delay", retryDelay))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxAttempts, err)
}

func tryConnect(ctx context.Context, poolConfig *pgxpool.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
