// Package backend opens the store.Backend selected by configuration.
package backend

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/suteetoe/schemadb/internal/store"
	"github.com/suteetoe/schemadb/internal/store/memory"
	"github.com/suteetoe/schemadb/internal/store/mongo"
	"github.com/suteetoe/schemadb/internal/store/postgres"
	"github.com/suteetoe/schemadb/pkg/config"
	"github.com/suteetoe/schemadb/pkg/database"
)

// connectTimeout returns the time allowed to reach the database of cfg, zero when there is nothing to reach
func connectTimeout(cfg *config.Config) time.Duration {
	switch cfg.DB.Driver {
	case config.DriverPostgres:
		return cfg.DB.ConnectTimeout
	case config.DriverMongo:
		return cfg.Mongo.Timeout
	}
	return 0
}

// Open connects to the database named by cfg.DB.Driver
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Backend, error) {
	if timeout := connectTimeout(cfg); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	switch cfg.DB.Driver {
	case config.DriverPostgres:
		db, err := database.InitDB(&cfg.DB)
		if err != nil {
			return nil, err
		}
		b, err := postgres.New(db)
		if err != nil {
			return nil, err
		}
		if err := b.Ping(ctx); err != nil {
			_ = b.Close(context.Background())
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		log.Info("Database connection established", zap.String("driver", cfg.DB.Driver))
		return b, nil

	case config.DriverMongo:
		client, err := database.ConnectMongo(ctx, &cfg.Mongo)
		if err != nil {
			return nil, err
		}
		log.Info("Database connection established",
			zap.String("driver", cfg.DB.Driver),
			zap.String("database", cfg.Mongo.Database))
		return mongo.New(client, cfg.Mongo.Database), nil

	case config.DriverMemory:
		log.Warn("Using the in-memory store, data is lost on restart")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.DB.Driver)
}
