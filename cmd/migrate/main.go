package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/carlosmourajunior/minhasfinancas/internal/config"
	"github.com/carlosmourajunior/minhasfinancas/internal/database"
	"github.com/carlosmourajunior/minhasfinancas/internal/logger"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(os.Args[1:]); err != nil {
		logger.Get().Fatalf("Migration error: %v", err)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: migrate <up|down|version> [N]")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	dbConfig := database.ConfigFrom(cfg)
	if path := os.Getenv("MIGRATIONS_PATH"); path != "" {
		dbConfig.MigrationsPath = path
	}

	log := logger.Get()
	switch args[0] {
	case "up":
		if err := database.MigrateUp(dbConfig); err != nil {
			return err
		}
		log.Info("Migrations applied successfully")

	case "down":
		steps := 1
		if len(args) > 1 {
			steps, err = strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid step count: %w", err)
			}
		}
		if err := database.MigrateDown(dbConfig, steps); err != nil {
			return err
		}
		log.Infow("Migrations rolled back", "steps", steps)

	case "version":
		version, dirty, err := database.MigrationVersion(dbConfig)
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
		log.Infow("Schema version", "version", version, "dirty", dirty)

	default:
		return fmt.Errorf("unknown command: %s (use up, down, or version)", args[0])
	}

	return nil
}
