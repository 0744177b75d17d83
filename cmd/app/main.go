// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telegram-secret-relay/internal/application"
	"telegram-secret-relay/internal/config"
	tele "telegram-secret-relay/internal/infra/adapters/telegram"
	pg "telegram-secret-relay/internal/infra/db/postgres"
	"telegram-secret-relay/internal/infra/keepalive"
	"telegram-secret-relay/internal/infra/logging"
	"telegram-secret-relay/internal/infra/metrics"
	red "telegram-secret-relay/internal/infra/redis"
	"telegram-secret-relay/internal/infra/sched"
	"telegram-secret-relay/internal/infra/web"
	"telegram-secret-relay/internal/infra/worker"
	"telegram-secret-relay/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed cookies)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	stateRepo := red.NewStateRepo(redisClient)
	inlineCache := red.NewInlineCache(redisClient, usecase.InlinePayloadTTL)
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	userRepo := pg.NewPostgresUserRepo(pool)
	shareRepo := pg.NewPostgresShareRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Telegram adapter ----
	// The facade is filled below; deliveries made by the usecases flow
	// through this adapter, so it has to exist first.
	facade := &application.BotFacade{}
	botAdapter, err := tele.NewRealTelegramBotAdapter(&cfg.Telegram, facade, rateLimiter, stateRepo, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram init failed")
	}

	// ---- Use cases ----
	userUC := usecase.NewUserUseCase(userRepo, txManager, cfg.Telegram.OwnerID, cfg.Telegram.SudoIDs, logger)
	shareUC := usecase.NewShareUseCase(shareRepo, userRepo, botAdapter, inlineCache, cfg.Telegram.Username, logger)
	adminUC := usecase.NewAdminUseCase(userRepo, userUC, cfg.Telegram.OwnerID, logger)
	statsUC := usecase.NewStatsUseCase(userRepo, shareRepo, logger)

	pool2 := worker.NewPool(cfg.Telegram.Workers)
	pool2.Start(ctx)
	defer pool2.Stop()
	broadcastUC := usecase.NewBroadcastUseCase(userRepo, botAdapter, pool2, locker, logger)

	facade.UserUC = userUC
	facade.ShareUC = shareUC
	facade.AdminUC = adminUC
	facade.StatsUC = statsUC
	facade.BroadcastUC = broadcastUC

	// ---- Polling ----
	go func() {
		if err := botAdapter.StartPolling(ctx); err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("telegram polling stopped")
		}
	}()

	// ---- Admin API + metrics ----
	webServer := web.NewServer(statsUC, userUC, adminUC, cfg.Web.APIKey, cfg.Web.SessionSecret, cfg.Telegram.OwnerID, logger)
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Web.Port), Handler: webServer.Router()}
	go func() {
		logger.Info().Int("port", cfg.Web.Port).Msg("admin API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Background sweeps ----
	expiry := sched.NewExpiryWorker(time.Minute, shareUC, logger)
	go func() { _ = expiry.Run(ctx) }()
	destruct := sched.NewDestructWorker(30*time.Second, shareUC, logger)
	go func() { _ = destruct.Run(ctx) }()

	// ---- Keep-alive pinger ----
	pinger := keepalive.NewPinger(cfg.Ping, logger)
	go func() { _ = pinger.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	botAdapter.StopPolling()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
}
