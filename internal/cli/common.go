package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"story-server/internal/config"
	"story-server/internal/database"
	"story-server/pkg/logger"
)

var (
	okLabel   = color.New(color.FgGreen).SprintFunc()
	warnLabel = color.New(color.FgYellow).SprintFunc()
	dimLabel  = color.New(color.Faint).SprintFunc()
)

// env is what every database-backed command needs.
type env struct {
	cfg    *config.Config
	log    *zap.Logger
	pool   *pgxpool.Pool
	closer func()
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	// CLI пишет в консоль, без JSON.
	logCfg := cfg.Logger
	logCfg.Encoding = "console"
	logCfg.Service = "storyctl"
	if logCfg.Level == "info" {
		logCfg.Level = "warn"
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, err
	}
	pool, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return &env{
		cfg:  cfg,
		log:  log,
		pool: pool,
		closer: func() {
			pool.Close()
			_ = log.Sync()
		},
	}, nil
}
