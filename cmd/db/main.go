package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"

	"github.com/robalyx/draftguard/cmd/db/commands"
	"github.com/robalyx/draftguard/internal/database"
	"github.com/robalyx/draftguard/internal/database/migrations"
	"github.com/robalyx/draftguard/internal/redis"
	"github.com/robalyx/draftguard/internal/setup/config"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Setup dependencies
	deps, cleanup, err := setupDependencies(ctx)
	if err != nil {
		return fmt.Errorf("failed to setup dependencies: %w", err)
	}
	defer cleanup()

	app := &cli.Command{
		Name:     "db",
		Usage:    "Database management tool",
		Commands: slices.Concat(commands.MigrationCommands(deps), commands.ADPCommands(deps)),
	}

	return app.Run(ctx, os.Args)
}

// setupDependencies connects to PostgreSQL and Redis and builds the migrator.
func setupDependencies(ctx context.Context) (*commands.CLIDependencies, func(), error) {
	// Load full configuration
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Create development logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	// Connect to database
	db, err := database.NewConnection(ctx, &cfg.Common.PostgreSQL, logger, false)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// The shared ADP snapshot is optional for migration commands
	redisManager := redis.NewManager(&cfg.Common.Redis, logger)
	cache, err := redisManager.GetClient(redis.CacheDBIndex)
	if err != nil {
		logger.Warn("Redis unavailable, ADP snapshot will not be shared", zap.Error(err))
		cache = nil
	}

	deps := &commands.CLIDependencies{
		Config:   cfg,
		DB:       db,
		Migrator: migrate.NewMigrator(db.DB(), migrations.Migrations),
		Cache:    cache,
		Logger:   logger,
	}

	cleanup := func() {
		redisManager.Close()
		_ = db.Close()
		_ = logger.Sync()
	}

	return deps, cleanup, nil
}
