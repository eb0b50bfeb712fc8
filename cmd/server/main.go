// Command stremur-server serves household profiles and watch state over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/stremur/internal/catalog"
	"github.com/and161185/stremur/internal/catalog/tmdb"
	"github.com/and161185/stremur/internal/config"
	"github.com/and161185/stremur/internal/events"
	"github.com/and161185/stremur/internal/logging"
	grpcserver "github.com/and161185/stremur/internal/server/grpc"
	httpapi "github.com/and161185/stremur/internal/server/http"
	"github.com/and161185/stremur/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Parse("stremur-server", os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("http", cfg.Listen.HTTP),
		zap.String("grpc", cfg.Listen.GRPC),
		zap.String("driver", cfg.Storage.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	store, err := openStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer store.close()

	var pub service.Publisher
	if cfg.NATS.URL != "" {
		nc, js, err := events.Connect(events.Options{
			URL:           cfg.NATS.URL,
			MaxReconnects: cfg.NATS.MaxReconnects,
			ReconnectWait: time.Duration(cfg.NATS.ReconnectWait),
		})
		if err != nil {
			return err
		}
		defer nc.Drain() //nolint:errcheck
		if err := events.EnsureStream(js); err != nil {
			logger.Warn("events: stream not ensured", zap.Error(err))
		}
		pub = events.New(js, logger.Named("events"))
	}

	var cat catalog.Lookup
	if cfg.TMDB.APIKey != "" {
		c, err := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language)
		if err != nil {
			return err
		}
		cat = catalog.NewCached(c, time.Duration(cfg.TMDB.CacheTTL))
	}

	profiles := service.NewProfileService(store.profiles, []byte(cfg.Session.SigningKey), time.Duration(cfg.Session.TTL), pub)
	watch := service.NewWatchStateService(store.history, store.watchlist, cat, pub, logger.Named("watchstate"))

	httpSrv := &http.Server{
		Addr: cfg.Listen.HTTP,
		Handler: httpapi.New(httpapi.Options{
			Profiles:       profiles,
			WatchState:     watch,
			Logger:         logger.Named("http"),
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			Ready:          store.ping,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var stopGRPC func()
	if cfg.Listen.GRPC != "" {
		health := grpcserver.NewHealth(store.ping, 10*time.Second, logger.Named("health"))
		gs := grpcserver.NewServer(health, logger.Named("grpc"), cfg.Listen.Dev)
		lis, err := net.Listen("tcp", cfg.Listen.GRPC)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.Listen.GRPC, err)
		}
		healthCtx, cancelHealth := context.WithCancel(ctx)
		go health.Run(healthCtx)
		go func() {
			logger.Info("grpc health listening", zap.String("addr", cfg.Listen.GRPC))
			if err := gs.Serve(lis); err != nil {
				errCh <- err
			}
		}()
		stopGRPC = func() {
			cancelHealth()
			done := make(chan struct{})
			go func() {
				gs.GracefulStop()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(shutdownTimeout):
				gs.Stop()
			}
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
		_ = httpSrv.Close()
	}
	if stopGRPC != nil {
		stopGRPC()
	}
	return runErr
}
