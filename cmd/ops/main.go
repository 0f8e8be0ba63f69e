package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/ivankudzin/anonrelay/internal/app/opsapp"
	"github.com/ivankudzin/anonrelay/internal/config"
	"github.com/ivankudzin/anonrelay/internal/infra/logger"
	pgrepo "github.com/ivankudzin/anonrelay/internal/repo/postgres"
	"github.com/ivankudzin/anonrelay/internal/services/disclosure"
	"github.com/ivankudzin/anonrelay/internal/services/ledger"
)

func main() {
	cfgPath := os.Getenv("APP_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Env, cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatal("init postgres", zap.Error(err))
	}
	defer pool.Close()

	ledgerSvc := ledger.NewService(pgrepo.NewSubmissionRepo(pool))
	disclosureSvc := disclosure.NewService(
		pgrepo.NewDisclosureRepo(pool),
		ledgerSvc,
		int64(cfg.Disclosure.Amount),
		cfg.Disclosure.Currency,
		log,
	)

	app, err := opsapp.New(cfg, log, disclosureSvc, clock.New())
	if err != nil {
		log.Fatal("create ops app", zap.Error(err))
	}

	if err := app.Run(ctx); err != nil {
		log.Fatal("ops server failed", zap.Error(err))
	}
}
