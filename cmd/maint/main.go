// Command maint runs one-off maintenance tasks against the configured database.
//
//	maint migrate          apply pending migrations
//	maint migrate-status   print migration status
//	maint seed-scenarios   insert the default scenarios into an empty catalog
//	maint backfill-trials  fill trial and cycle fields on legacy user rows
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sales-trainer/internal/catalog"
	"sales-trainer/internal/config"
	"sales-trainer/internal/migrations"
	"sales-trainer/internal/users"
	"sales-trainer/pkg/logger"
	"sales-trainer/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "overall deadline for the task")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: maint [-timeout d] migrate|migrate-status|seed-scenarios|backfill-trials")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.App.Env, logger.Options{Format: cfg.App.LogFormat, Level: cfg.App.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{MaxOpenConns: 2})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	task := flag.Arg(0)
	switch task {
	case "migrate":
		err = migrations.Up(ctx, db, log)
	case "migrate-status":
		err = migrations.Status(ctx, db, log)
	case "seed-scenarios":
		var n int
		n, err = catalog.NewService(catalog.NewPostgresRepo(db)).SeedScenarios(ctx)
		if err == nil {
			log.Info("scenarios seeded", "inserted", n)
		}
	case "backfill-trials":
		var n int
		n, err = users.NewService(users.NewPostgresRepo(db)).BackfillTrials(ctx)
		if err == nil {
			log.Info("trial fields backfilled", "updated", n)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error("task failed", "task", task, "err", err)
		os.Exit(1)
	}
}
