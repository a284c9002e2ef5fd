package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-catalog/internal/backup"
	"github.com/iliyamo/library-catalog/internal/config"
	"github.com/iliyamo/library-catalog/internal/database"
	"github.com/iliyamo/library-catalog/internal/handler"
	"github.com/iliyamo/library-catalog/internal/logging"
	"github.com/iliyamo/library-catalog/internal/middleware"
	"github.com/iliyamo/library-catalog/internal/persistence"
	"github.com/iliyamo/library-catalog/internal/queue"
	"github.com/iliyamo/library-catalog/internal/router"
	"github.com/iliyamo/library-catalog/internal/service"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("load .env", "error", err)
		os.Exit(1)
	}
	cfg := config.Load()
	logger := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: logging.ParseFormat(cfg.LogFormat),
	})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	var mirror persistence.Mirror
	if bc := config.LoadBackupConfig(); bc.Enabled() {
		m, err := backup.NewS3Mirror(ctx, bc)
		if err != nil {
			return err
		}
		mirror = m
		logger.Info("snapshot mirror enabled", "bucket", bc.Bucket, "prefix", bc.Prefix)
	}

	db, err := database.Open(ctx, database.Paths{Books: cfg.BooksDBPath, Users: cfg.UsersDBPath},
		database.Options{BcryptCost: cfg.BcryptCost, Mirror: mirror, Logger: logger})
	if err != nil {
		return err
	}

	events := config.LoadEventsConfig()
	publisher := service.NewPublisher(events, logger)
	if events.Consumer {
		consumer := &queue.Consumer{URL: events.URL, Queue: events.Queue, LogDir: events.LogDir, Log: logger}
		go func() { _ = consumer.Run(ctx) }()
	}

	mw := []echo.MiddlewareFunc{middleware.RequestID(), middleware.RequestLogger(logger)}
	if rdb := config.NewRedisClient(); rdb != nil {
		defer rdb.Close()
		mw = append(mw,
			middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger),
			middleware.NewRedisCache(config.LoadCacheConfig(), rdb, logger),
		)
		logger.Info("redis connected", "addr", rdb.Options().Addr)
	} else {
		logger.Info("redis unavailable, cache and rate limit disabled")
	}

	e := router.New(logger,
		handler.NewBookHandler(db.Books, publisher, logger),
		handler.NewUserHandler(db.Users, logger),
		mw...,
	)

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr(), "env", cfg.Env)
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
