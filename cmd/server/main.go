package main

import (
	"context"
	"errors"
	"net"
	"os/signal"
	"syscall"

	"github.com/eternalApril/updown/internal/config"
	"github.com/eternalApril/updown/internal/hub"
	"github.com/eternalApril/updown/internal/logger"
	"github.com/eternalApril/updown/internal/metrics"
	"github.com/eternalApril/updown/internal/relay"
	"github.com/eternalApril/updown/internal/server"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		panic(err)
	}

	level := zap.NewAtomicLevelAt(logger.ParseLevel(cfg.Log.Level))
	log := logger.Build(level, cfg.Log.Format)
	defer log.Sync() //nolint:errcheck

	// only the log level is applied on reload, everything else needs a restart
	config.Watch(func(next *config.Config, err error) {
		if err != nil {
			log.Warn("config reload failed", zap.Error(err))
			return
		}
		lvl := logger.ParseLevel(next.Log.Level)
		if lvl != level.Level() {
			level.SetLevel(lvl)
			log.Info("log level changed", zap.Stringer("level", lvl))
		}
	})

	log.Info("Updown starting",
		zap.String("port", cfg.Server.Port),
		zap.String("ws_path", cfg.Server.WSPath),
		zap.Bool("relay", cfg.Relay.Enabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewRegistry()
	h := hub.New(log, m)

	var forwarder server.Forwarder
	relayDone := make(chan struct{})
	if cfg.Relay.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Relay.Addr})
		defer rdb.Close() //nolint:errcheck

		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error("cant reach relay", zap.String("addr", cfg.Relay.Addr), zap.Error(err))
			return
		}

		r := relay.New(rdb, cfg.Relay.Channel, h, log, m)
		forwarder = r

		go func() {
			defer close(relayDone)
			if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("relay stopped", zap.Error(err))
			}
		}()
		log.Info("relay enabled", zap.String("channel", cfg.Relay.Channel), zap.String("instance", r.ID()))
	} else {
		close(relayDone)
	}

	engine := server.NewEngine(h, forwarder, m, log)
	srv := server.New(cfg, h, engine, m, log)

	address := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		log.Error("listener error", zap.Error(err))
		return
	}
	log.Info("listening on", zap.String("address", address))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error("serve failed", zap.Error(err))
		}
		stop()
	}

	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Shutdown timed out, forcing exit", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	} else {
		log.Info("All connections closed gracefully")
	}

	select {
	case <-relayDone:
	case <-shutdownCtx.Done():
	}

	log.Info("Updown stopped")
}
