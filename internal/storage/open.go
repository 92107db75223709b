package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"logsync/internal/config"
	"logsync/internal/kv"
	"logsync/internal/kv/leveldb"
	"logsync/internal/kv/mongo"
	"logsync/internal/kv/postgres"
	"logsync/internal/kv/sqlite"
)

// OpenKV returns a store that connects to the configured backend on first use. A positive
// CacheSize adds an LRU read cache in front of it.
func OpenKV(cfg config.StoreConfig, logger *zap.Logger) (kv.Store, error) {
	opener, err := kvOpener(cfg, logger)
	if err != nil {
		return nil, err
	}

	var store kv.Store = kv.NewLazy(opener)
	if cfg.CacheSize > 0 {
		cached, err := kv.NewCached(store, cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		store = cached
	}
	return store, nil
}

func kvOpener(cfg config.StoreConfig, logger *zap.Logger) (kv.Opener, error) {
	switch cfg.Backend {
	case "memory":
		return func(context.Context) (kv.Store, error) {
			return kv.NewMemory(), nil
		}, nil
	case "", "sqlite":
		return func(ctx context.Context) (kv.Store, error) {
			return sqlite.NewStore(ctx, sqlite.Config{Path: cfg.Path, Table: cfg.Table})
		}, nil
	case "leveldb":
		return func(context.Context) (kv.Store, error) {
			return leveldb.NewStore(leveldb.Config{Path: cfg.Path, Table: cfg.Table}, logger)
		}, nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("pg dsn is required")
		}
		return func(ctx context.Context) (kv.Store, error) {
			return postgres.NewStore(ctx, cfg.DSN, cfg.Table)
		}, nil
	case "mongo":
		return func(ctx context.Context) (kv.Store, error) {
			return mongo.NewStore(ctx, mongo.Config{URI: cfg.URI, Database: cfg.Database, Collection: cfg.Table})
		}, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
