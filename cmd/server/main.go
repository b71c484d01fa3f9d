package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/cardtable-backend/internal/config"
	"github.com/DoyleJ11/cardtable-backend/internal/coordinator"
	"github.com/DoyleJ11/cardtable-backend/internal/httpapi"
	"github.com/DoyleJ11/cardtable-backend/internal/store"
	"github.com/DoyleJ11/cardtable-backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := selectStore(ctx, cfg, logger)
	reg := coordinator.NewRegistry()
	co := coordinator.New(st, reg, logger, cfg.ReconnectGrace, cfg.MaxPlayers)
	handler := httpapi.SetupRoutes(ws.NewServer(co, reg, logger))

	srv := &http.Server{Addr: cfg.Addr, Handler: handler}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

// selectStore dials Redis when configured, falling back to the in-process
// backend so an unreachable store fails once at boot instead of on every
// request.
func selectStore(ctx context.Context, cfg config.Config, logger *zap.Logger) store.Store {
	if cfg.RedisAddr == "" {
		logger.Info("using in-process store")
		return store.NewMemory(cfg.RoomTTL)
	}
	r, err := store.DialRedis(ctx, cfg.RedisAddr, cfg.RoomTTL)
	if err != nil {
		logger.Warn("redis unreachable, falling back to in-process store", zap.Error(err))
		return store.NewMemory(cfg.RoomTTL)
	}
	logger.Info("using redis store", zap.String("addr", cfg.RedisAddr))
	return r
}
