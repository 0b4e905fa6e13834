package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gymbot/internal/bot"
	"gymbot/internal/config"
	"gymbot/internal/logger"
	"gymbot/internal/repository"
	"gymbot/internal/session"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gymbot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := repository.Migrate(ctx, db, cfg.DBDriver, cfg.Categories); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	repo := repository.New(db, cfg.Categories, cfg.StoreTimeout)
	log.Info("database ready", "driver", cfg.DBDriver, "categories", len(cfg.Categories))

	var store session.Store = session.NewMemoryStore()
	if cfg.RedisAddr != "" {
		rdb, err := session.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		redisStore := session.NewRedisStore(rdb, cfg.SessionTTL, cfg.StoreTimeout)
		defer redisStore.Close()
		store = redisStore
		log.Info("sessions stored in redis", "addr", cfg.RedisAddr, "ttl", cfg.SessionTTL)
	} else {
		log.Warn("REDIS_ADDR is not set, sessions are kept in memory")
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("connect telegram: %w", err)
	}
	api.Debug = cfg.LogMode == "debug"
	log.Info("authorized on telegram", "account", api.Self.UserName)

	machine := session.NewMachine(repo.Exercise, repo.Log, store, log)
	telegramBot := bot.New(api, machine, repo.Log, cfg, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return telegramBot.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		telegramBot.Stop()
		return nil
	})

	return g.Wait()
}
