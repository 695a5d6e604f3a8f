package cache

import (
	"context"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/joseph-ayodele/ocr-batch/internal/common"
)

// OpenPostgres creates a pgx pool, wraps it as *sql.DB for the ent driver and
// returns a SQLStore that closes the pool with it.
func OpenPostgres(ctx context.Context, cfg common.CacheConfig, logger *slog.Logger) (*SQLStore, error) {
	logger.Info("connecting to cache database")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("invalid cache dsn", "error", err)
		return nil, err
	}

	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "ocr-batch"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = cfg.StatementTimeout.String()
	}

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("failed to connect to cache database", "error", err)
		return nil, err
	}
	if err := HealthCheck(dialCtx, pool, cfg.DialTimeout, logger); err != nil {
		pool.Close()
		return nil, err
	}

	db := stdlib.OpenDBFromPool(pool)
	s, err := NewSQLStore(ctx, db, dialect.Postgres, logger)
	if err != nil {
		_ = db.Close()
		pool.Close()
		return nil, err
	}
	s.closeFn = pool.Close

	logger.Info("connected to cache database")
	return s, nil
}

// HealthCheck pings the pool to catch DSN issues early.
func HealthCheck(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration, logger *slog.Logger) error {
	logger.Debug("pinging cache database")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("cache database ping failed", "error", err)
		return err
	}
	logger.Debug("cache database ping successful")
	return nil
}
