package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zbir99/linkdeal-app-sub001/config"
	"github.com/zbir99/linkdeal-app-sub001/controllers"
	"github.com/zbir99/linkdeal-app-sub001/db"
	"github.com/zbir99/linkdeal-app-sub001/logging"
	"github.com/zbir99/linkdeal-app-sub001/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if envErr != nil {
		logger.Warn("no .env file loaded, using system environment only", zap.Error(envErr))
	}

	dbHandler, err := db.NewDBConnection(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to open database", zap.String("path", cfg.Database.Path), zap.Error(err))
	}
	defer dbHandler.Close()

	conversationStore := store.NewConversationStore(dbHandler, logger.Named("store"))

	router := controllers.NewRouter(
		logger.Named("http"),
		&controllers.ConversationController{Store: conversationStore, Logger: logger.Named("conversations")},
		&controllers.HealthController{DB: dbHandler, Logger: logger},
	)

	thisServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("start listening", zap.String("addr", cfg.Server.Addr))

	if err := runServer(ctx, thisServer, cfg.Server.ShutdownTimeout); err != nil {
		logger.Error("server error", zap.Error(err))
		return
	}

	logger.Info("graceful shutdown complete")
}

func runServer(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
