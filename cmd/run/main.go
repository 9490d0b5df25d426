package main

import (
	"context"
	"errors"
	"github.com/14kear/online_voting/voting-engine/internal/app"
	"github.com/14kear/online_voting/voting-engine/internal/config"
	"github.com/14kear/online_voting/voting-engine/internal/lib/logger"
	"github.com/14kear/sso-prettyslog/slogpretty/errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	envLocal = "local"
	envDev   = "dev"
)

func main() {
	cfg := config.MustLoad()

	log := logger.New(cfg.Env)

	if cfg.Env == envLocal || cfg.Env == envDev {
		log.Info("starting voting engine",
			slog.String("env", cfg.Env),
			slog.String("storage", cfg.StorageDriver),
			slog.Int("http_port", cfg.HTTP.Port),
			slog.Int("grpc_port", cfg.GRPC.Port),
		)
	} else {
		log.Info("starting voting engine")
	}

	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to init application", sl.Err(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application.Start(ctx)

	go func() {
		if err := application.HTTPServer.Run(); err != nil {
			if errors.Is(err, http.ErrServerClosed) {
				log.Info("HTTP server closed gracefully")
			} else {
				log.Error("failed to run HTTP server", sl.Err(err))
				stop()
			}
		}
	}()

	go func() {
		if err := application.GRPCServer.Run(); err != nil {
			log.Error("failed to run gRPC server", sl.Err(err))
			stop()
		}
	}()

	<-ctx.Done()

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := application.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop application", sl.Err(err))
		os.Exit(1)
	}

	log.Info("application stopped")
}
