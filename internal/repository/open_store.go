package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/curriculum-api/pkg/cache"
	"github.com/noah-isme/curriculum-api/pkg/config"
	"github.com/noah-isme/curriculum-api/pkg/database"
	"github.com/noah-isme/curriculum-api/pkg/storage"
)

// OpenedStore is a collection store plus the function releasing its connections.
type OpenedStore struct {
	Store CollectionStore
	Close func() error
}

// OpenCollectionStore connects the backend selected by cfg.Storage.Driver.
func OpenCollectionStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*OpenedStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	noop := func() error { return nil }

	switch cfg.Storage.Driver {
	case config.StorageMemory:
		logger.Warn("using in-memory collection store; data is lost on restart")
		return &OpenedStore{Store: NewMemoryCollectionStore(), Close: noop}, nil
	case config.StorageFile, "":
		files, err := storage.NewLocalStorage(cfg.Storage.Dir)
		if err != nil {
			return nil, fmt.Errorf("open storage dir: %w", err)
		}
		return &OpenedStore{Store: NewFileCollectionStore(files), Close: noop}, nil
	case config.StoragePostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		store := NewPostgresCollectionStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &OpenedStore{Store: store, Close: db.Close}, nil
	case config.StorageRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return &OpenedStore{Store: NewRedisCollectionStore(client, cfg.Redis.KeyPrefix), Close: client.Close}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
