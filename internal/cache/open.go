package cache

import (
	"context"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/ocr-batch/internal/common"
)

// Open builds the Store selected by cfg.Backend. The returned close func is
// never nil.
func Open(ctx context.Context, cfg common.CacheConfig, logger *slog.Logger) (Store, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	noop := func() {}
	closeWith := func(c interface{ Close() error }) func() {
		return func() {
			if err := c.Close(); err != nil {
				logger.Error("failed to close cache", "backend", cfg.Backend, "error", err)
			}
		}
	}

	switch cfg.Backend {
	case "", common.CacheMemory:
		logger.Info("using in-memory cache")
		return NewMemoryStore(), noop, nil
	case common.CacheSQLite:
		s, err := OpenSQLite(ctx, cfg.DSN, logger)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("using sqlite cache", "dsn", cfg.DSN)
		return s, closeWith(s), nil
	case common.CachePostgres:
		s, err := OpenPostgres(ctx, cfg, logger)
		if err != nil {
			return nil, noop, err
		}
		return s, closeWith(s), nil
	case common.CacheFirestore:
		client, err := NewFirestoreClient(ctx, cfg.FirestoreProject)
		if err != nil {
			return nil, noop, err
		}
		s := NewFirestoreStore(client, cfg.FirestoreCollection, logger)
		logger.Info("using firestore cache", "project", cfg.FirestoreProject, "collection", cfg.FirestoreCollection)
		return s, closeWith(s), nil
	default:
		return nil, noop, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// Shared reports whether the backend is visible to other processes, in which
// case scoped resource ids should come from the store's counter.
func Shared(backend string) bool {
	return backend == common.CachePostgres || backend == common.CacheFirestore
}
