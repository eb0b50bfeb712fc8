package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/stremur/internal/config"
	"github.com/and161185/stremur/internal/migrate"
	"github.com/and161185/stremur/internal/repository"
	"github.com/and161185/stremur/internal/repository/postgres"
	"github.com/and161185/stremur/internal/repository/sqlite"
)

// storage bundles the repositories of one backend.
type storage struct {
	profiles  repository.ProfileRepository
	history   repository.HistoryRepository
	watchlist repository.WatchlistRepository
	ping      func(ctx context.Context) error
	close     func()
}

func openStorage(ctx context.Context, cfg config.Storage, log *zap.Logger) (*storage, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		v, err := migrate.Up(ctx, cfg.DSN, log)
		if err != nil {
			return nil, err
		}
		log.Info("schema ready", zap.Int64("version", v))
		db, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return &storage{
			profiles:  postgres.NewProfileRepo(db),
			history:   postgres.NewHistoryRepo(db),
			watchlist: postgres.NewWatchlistRepo(db),
			ping:      db.Ping,
			close:     db.Close,
		}, nil
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info("sqlite store opened", zap.String("path", cfg.SQLitePath))
		return &storage{
			profiles:  sqlite.NewProfileRepo(db),
			history:   sqlite.NewHistoryRepo(db),
			watchlist: sqlite.NewWatchlistRepo(db),
			ping:      db.Ping,
			close:     func() { _ = db.Close() },
		}, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
