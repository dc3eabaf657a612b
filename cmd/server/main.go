// Command server runs the matchmaking websocket server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/xa888s/overthrow/internal/config"
	"github.com/xa888s/overthrow/internal/history"
	"github.com/xa888s/overthrow/internal/ws"
)

func main() {
	// A missing .env is fine; the environment itself still applies.
	_ = godotenv.Load()

	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
	}

	var historian *history.Historian
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			logger.WithError(err).Warn("redis unreachable, game history disabled")
		} else {
			historian = history.New(rdb, logger)
			logger.WithField("addr", cfg.RedisAddr).Info("game history enabled")
		}
	}

	server := ws.NewServer(ws.Options{
		TableSize:       cfg.TableSize,
		ReactionTimeout: cfg.ReactionTimeout,
		AllowedOrigins:  cfg.AllowedOrigins,
	}, historian, logger)

	mux := http.NewServeMux()
	mux.Handle("/play", server)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.WithField("addr", cfg.Addr).Info("listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("server exited")
	}
}
