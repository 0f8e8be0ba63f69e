package botapp

import (
	"context"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ivankudzin/anonrelay/internal/config"
	tginfra "github.com/ivankudzin/anonrelay/internal/infra/telegram"
	pgrepo "github.com/ivankudzin/anonrelay/internal/repo/postgres"
	redrepo "github.com/ivankudzin/anonrelay/internal/repo/redis"
	"github.com/ivankudzin/anonrelay/internal/scheduler"
	"github.com/ivankudzin/anonrelay/internal/services/bans"
	"github.com/ivankudzin/anonrelay/internal/services/broadcast"
	"github.com/ivankudzin/anonrelay/internal/services/disclosure"
	"github.com/ivankudzin/anonrelay/internal/services/ledger"
	"github.com/ivankudzin/anonrelay/internal/services/rate"
	"github.com/ivankudzin/anonrelay/internal/services/screen"
	"github.com/ivankudzin/anonrelay/internal/services/sessions"
)

// App owns the bot process: infra clients, the service graph, the deferred
// task scheduler, and the update router on top.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	postgres *pgxpool.Pool
	redis    *goredis.Client
	bot      *tginfra.Bot
	sched    *scheduler.Scheduler
	router   *Router
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("init postgres for bot app: %w", err)
	}

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	bot, err := tginfra.NewBot(cfg.Bot.Token)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}

	clk := clock.New()
	sched := scheduler.New(clk, logger)

	submissionRepo := pgrepo.NewSubmissionRepo(pool)
	banRepo := pgrepo.NewBanRepo(pool)
	disclosureRepo := pgrepo.NewDisclosureRepo(pool)
	senderRepo := pgrepo.NewSenderRepo(pool)
	cooldownRepo := redrepo.NewCooldownRepo(redisClient)
	sessionRepo := redrepo.NewSessionRepo(redisClient, cfg.Relay.SessionTTL)

	notifier := newBanNotifier(bot, cfg.Bot.LogChatID, logger)
	ledgerSvc := ledger.NewService(submissionRepo)

	router := NewRouter(RouterDeps{
		Gateway:    bot,
		Sessions:   sessions.NewManager(sessionRepo),
		Bans:       bans.NewService(banRepo, notifier, sched, clk, logger),
		Screen:     screen.NewService(cfg.Screen.BanWords),
		Rate:       rate.NewLimiter(cooldownRepo, cfg.Relay.Cooldown),
		Ledger:     ledgerSvc,
		Disclosure: disclosure.NewService(disclosureRepo, ledgerSvc, int64(cfg.Disclosure.Amount), cfg.Disclosure.Currency, logger),
		Broadcast:  broadcast.NewDispatcher(bot, cfg.Broadcast.SendDelay, clk, logger),
		Senders:    senderRepo,
		Clock:      clk,
		Logger:     logger,
		Config:     cfg,
	})

	return &App{
		cfg:      cfg,
		logger:   logger,
		postgres: pool,
		redis:    redisClient,
		bot:      bot,
		sched:    sched,
		router:   router,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("bot app started")

	errCh := make(chan error, 2)
	go func() {
		errCh <- a.sched.Run(ctx)
	}()
	go func() {
		errCh <- a.bot.Listen(ctx, tginfra.Handlers{
			OnCommand:     a.router.HandleCommand,
			OnText:        a.router.HandleText,
			OnMedia:       a.router.HandleMedia,
			OnCallback:    a.router.HandleCallback,
			OnPreCheckout: a.router.HandlePreCheckout,
			OnPayment:     a.router.HandlePayment,
		})
	}()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("bot app stopped")
			return nil
		case err := <-errCh:
			if err == nil || errors.Is(err, context.Canceled) {
				continue
			}
			return err
		}
	}
}

func (a *App) Close() {
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
