package main

import (
	"log/slog"
	"os"

	"github.com/safar/catalog-store/internal/config"
	"github.com/safar/catalog-store/internal/database"
	"github.com/safar/catalog-store/internal/logger"
)

func main() {
	log := logger.New(os.Stderr, "development", "info")

	if len(os.Args) < 2 {
		log.Error("usage: go run scripts/run_migrations.go [up|down]")
		os.Exit(2)
	}

	direction := os.Args[1]
	if direction != "up" && direction != "down" {
		log.Error("direction must be 'up' or 'down'", slog.String("direction", direction))
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Error("connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db, direction); err != nil {
		log.Error("run migrations", slog.Any("error", err))
		db.Close()
		os.Exit(1)
	}

	log.Info("migrations complete", slog.String("direction", direction))
}
