package cache

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

const (
	entriesTable  = "ocr_cache"
	countersTable = "ocr_counters"
)

// SQLStore keeps cache entries and counters in two tables. It runs on SQLite
// for a single host and on Postgres when several instances share one cache.
type SQLStore struct {
	drv     *entsql.Driver
	dialect string
	now     Clock
	logger  *slog.Logger
	closeFn func()
}

// NewSQLStore wraps an open database handle and creates the tables if needed.
func NewSQLStore(ctx context.Context, db *sql.DB, dialectName string, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SQLStore{
		drv:     entsql.OpenDB(dialectName, db),
		dialect: dialectName,
		now:     time.Now,
		logger:  logger,
	}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// The DDL is plain SQL accepted by both SQLite and Postgres.
var cacheDDL = []string{
	`CREATE TABLE IF NOT EXISTS ` + entriesTable + ` (
	cache_key VARCHAR(128) NOT NULL PRIMARY KEY,
	value TEXT NOT NULL,
	expires_at BIGINT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS ` + countersTable + ` (
	name VARCHAR(128) NOT NULL PRIMARY KEY,
	value BIGINT NOT NULL
)`,
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, ddl := range cacheDDL {
		if err := s.drv.Exec(ctx, ddl, []any{}, nil); err != nil {
			return fmt.Errorf("migrate cache tables: %w", err)
		}
	}
	s.logger.Debug("cache tables ready", "dialect", s.dialect)
	return nil
}

// expires_at is unix nanoseconds; 0 never expires.
func (s *SQLStore) expiresAt(ttl time.Duration) int64 {
	exp := expiry(s.now(), ttl)
	if exp.IsZero() {
		return 0
	}
	return exp.UnixNano()
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	now := s.now().UnixNano()
	query, args := entsql.Dialect(s.dialect).
		Select("value").
		From(entsql.Table(entriesTable)).
		Where(entsql.And(
			entsql.EQ("cache_key", key),
			entsql.Or(entsql.EQ("expires_at", 0), entsql.GT("expires_at", now)),
		)).
		Query()

	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return "", false, fmt.Errorf("cache get: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return "", false, rows.Err()
	}
	var value string
	if err := rows.Scan(&value); err != nil {
		return "", false, fmt.Errorf("cache get scan: %w", err)
	}
	return value, true, nil
}

func (s *SQLStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	query, args := entsql.Dialect(s.dialect).
		Insert(entriesTable).
		Columns("cache_key", "value", "expires_at").
		Values(key, value, s.expiresAt(ttl)).
		OnConflict(
			entsql.ConflictColumns("cache_key"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (s *SQLStore) Increment(ctx context.Context, key string) (n int64, err error) {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return 0, fmt.Errorf("counter tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				s.logger.Warn("counter rollback failed", "key", key, "error", rerr)
			}
		}
	}()

	b := entsql.Dialect(s.dialect)
	query, args := b.Insert(countersTable).
		Columns("name", "value").
		Values(key, 1).
		OnConflict(
			entsql.ConflictColumns("name"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.Add("value", 1)
			}),
		).
		Query()
	if err = tx.Exec(ctx, query, args, nil); err != nil {
		return 0, fmt.Errorf("counter upsert: %w", err)
	}

	query, args = b.Select("value").
		From(entsql.Table(countersTable)).
		Where(entsql.EQ("name", key)).
		Query()
	var rows entsql.Rows
	if err = tx.Query(ctx, query, args, &rows); err != nil {
		return 0, fmt.Errorf("counter read: %w", err)
	}
	if !rows.Next() {
		_ = rows.Close()
		err = fmt.Errorf("counter %q missing after upsert", key)
		return 0, err
	}
	if err = rows.Scan(&n); err != nil {
		_ = rows.Close()
		return 0, fmt.Errorf("counter scan: %w", err)
	}
	if err = rows.Close(); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("counter commit: %w", err)
	}
	return n, nil
}

func (s *SQLStore) PurgeExpired(ctx context.Context) (int, error) {
	query, args := entsql.Dialect(s.dialect).
		Delete(entriesTable).
		Where(entsql.And(
			entsql.GT("expires_at", 0),
			entsql.LTE("expires_at", s.now().UnixNano()),
		)).
		Query()
	var res sql.Result
	if err := s.drv.Exec(ctx, query, args, &res); err != nil {
		return 0, fmt.Errorf("cache purge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.drv.DB().PingContext(ctx)
}

func (s *SQLStore) Close() error {
	err := s.drv.Close()
	if s.closeFn != nil {
		s.closeFn()
	}
	return err
}

// OpenSQLite opens a modernc SQLite database at dsn. Connections are capped at
// one so that in-memory databases are shared and writers never contend.
func OpenSQLite(ctx context.Context, dsn string, logger *slog.Logger) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s, err := NewSQLStore(ctx, db, dialect.SQLite, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
