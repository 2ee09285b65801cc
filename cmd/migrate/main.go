package main

import (
	"flag"
	"os"

	"github.com/creditoya/backend/internal/config"
	"github.com/creditoya/backend/internal/db"
	"github.com/creditoya/backend/internal/observability"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := observability.NewLogger(cfg.Env)

	dir := flag.String("dir", cfg.MigrationsDir, "migrations directory")
	flag.Parse()

	direction := "up"
	if flag.NArg() > 0 {
		direction = flag.Arg(0)
	}

	var err error
	switch direction {
	case "up":
		err = db.RunMigrations(cfg.DatabaseURL, *dir)
	case "down":
		err = db.RunMigrationsDown(cfg.DatabaseURL, *dir)
	default:
		logger.Error("unknown direction, expected up or down", "direction", direction)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("migration failed", "direction", direction, "err", err)
		os.Exit(1)
	}
	logger.Info("migrations applied", "direction", direction, "dir", *dir)
}
