package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/promptduel/server/internal/config"
	"github.com/promptduel/server/internal/dataset"
	"github.com/promptduel/server/internal/game"
	"github.com/promptduel/server/internal/handlers"
	"github.com/promptduel/server/internal/journal"
	"github.com/promptduel/server/internal/middleware"
	"github.com/promptduel/server/internal/store"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfgPath := os.Getenv("CONFIG_FILE")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.WithError(err).Fatal("load config")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	ds, err := dataset.LoadFile(cfg.DatasetPath, time.Now().UnixNano(), logger)
	if err != nil {
		logger.WithError(err).Fatal("load dataset")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.WithError(err).Fatal("connect postgres")
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.WithError(err).Fatal("ensure schema")
		}
		st = pg
		logger.Info("postgres record store enabled")
	} else {
		logger.Warn("DATABASE_URL not set, round records stay in memory")
		st = store.NewMemory()
	}

	var jr game.Journal
	if cfg.RedisAddr != "" {
		rj, err := journal.Connect(cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.WithError(err).Fatal("connect redis")
		}
		defer rj.Close()
		jr = rj
		logger.Info("redis round journal enabled")
	}

	srv := handlers.NewServer(
		game.NewRegistry(), st, jr, ds,
		cfg.Defaults.RoomSettings(), cfg.ImageDir, logger,
	)

	handler := middleware.Logging(logger)(middleware.Recover(logger)(srv.Routes()))
	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("shutdown")
		}
	}()

	logger.WithFields(logrus.Fields{
		"addr":       cfg.ListenAddr,
		"challenges": ds.Len(),
	}).Info("server listening")
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Fatal("server exited")
	}
	logger.Info("server stopped")
}
