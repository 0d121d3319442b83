package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/telecare/billingcore/internal/config"
	"github.com/telecare/billingcore/internal/logger"
	"github.com/telecare/billingcore/internal/migrations"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	logger.Infow("connecting to database",
		"host", cfg.Postgres.Host,
		"dbname", cfg.Postgres.DBName,
	)

	migrator, err := migrations.NewMigrator(cfg, logger)
	if err != nil {
		logger.Fatalw("failed to initialise migrator", "error", err)
	}
	defer migrator.Close()

	switch os.Args[1] {
	case "up":
		if err := migrator.Up(); err != nil {
			logger.Fatalw("failed to apply migrations", "error", err)
		}

	case "down":
		if err := migrator.Down(); err != nil {
			logger.Fatalw("failed to roll back last migration", "error", err)
		}
		logger.Info("rolled back last migration")

	case "goto":
		if len(os.Args) < 3 {
			logger.Fatal("goto requires a version")
		}
		version, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			logger.Fatalw("invalid version", "version", os.Args[2], "error", err)
		}
		if err := migrator.Goto(uint(version)); err != nil {
			logger.Fatalw("failed to migrate", "version", version, "error", err)
		}
		logger.Infow("migrated", "version", version)

	case "status":
		version, dirty, err := migrator.Version()
		if err != nil {
			logger.Fatalw("failed to read migration version", "error", err)
		}
		logger.Infow("migration status", "version", version, "dirty", dirty)

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: migrate [command]")
	fmt.Println("Commands:")
	fmt.Println("  up     - apply all pending migrations")
	fmt.Println("  down   - roll back the last migration")
	fmt.Println("  goto N - migrate to version N")
	fmt.Println("  status - print the current migration version")
}
