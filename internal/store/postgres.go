package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/LibrePCB/librepcb-api-server/internal/db"
	"github.com/LibrePCB/librepcb-api-server/internal/model"
)

// migrationLockID is the advisory lock key serializing schema migrations
// across processes sharing one database.
const migrationLockID = 4711004

// postgresMigrations are applied in order; parts_schema_version records the
// highest applied version.
var postgresMigrations = []string{
	`
CREATE TABLE IF NOT EXISTS parts_requests (
	id          BIGSERIAL PRIMARY KEY,
	datetime    TIMESTAMPTZ NOT NULL DEFAULT now(),
	count       INTEGER NOT NULL,
	cache_hits  INTEGER NOT NULL,
	with_result INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS parts_cache (
	id           BIGSERIAL PRIMARY KEY,
	mpn          TEXT NOT NULL,
	manufacturer TEXT NOT NULL,
	provider     TEXT NOT NULL,
	datetime     TIMESTAMPTZ NOT NULL DEFAULT now(),
	payload      JSONB NOT NULL,
	UNIQUE (mpn, manufacturer, provider)
);

CREATE INDEX IF NOT EXISTS idx_parts_cache_lookup ON parts_cache(mpn, manufacturer, datetime DESC);
CREATE INDEX IF NOT EXISTS idx_parts_requests_datetime ON parts_requests(datetime);
`,
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool      db.Pool
	closeFn   func()
	opts      options
	upsertSQL string

	migrateOnce sync.Once
	migrateErr  error
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig, opts ...Option) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	s, err := newPostgresStore(pool, opts...)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.closeFn = pool.Close
	return s, nil
}

func newPostgresStore(pool db.Pool, opts ...Option) (*PostgresStore, error) {
	upsert, err := db.UpsertSQL(db.UpsertConfig{
		Table:        "parts_cache",
		Columns:      cacheColumns,
		ConflictKeys: cacheConflictKeys,
		Placeholder:  db.Dollar,
	})
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool, opts: newOptions(opts), upsertSQL: upsert}, nil
}

// Migrate brings the schema up to date. It runs at most once per store; later
// calls return the first result.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	s.migrateOnce.Do(func() {
		s.migrateErr = s.migrate(ctx)
	})
	return s.migrateErr
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "store.migrate"), zap.String("driver", "postgres"))

	if _, err := s.pool.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return eris.Wrap(err, "postgres: acquire migration lock")
	}
	defer func() {
		if _, err := s.pool.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockID); err != nil {
			log.Warn("postgres: failed to release migration lock", zap.Error(err))
		}
	}()

	if _, err := s.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS parts_schema_version (
			version    INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	); err != nil {
		return eris.Wrap(err, "postgres: ensure schema version table")
	}

	var version int
	if err := s.pool.QueryRow(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM parts_schema_version",
	).Scan(&version); err != nil {
		return eris.Wrap(err, "postgres: read schema version")
	}

	for v := version; v < len(postgresMigrations); v++ {
		log.Info("migrating database", zap.Int("version", v+1))
		if err := s.applyMigration(ctx, v+1, postgresMigrations[v]); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) applyMigration(ctx context.Context, version int, sql string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrapf(err, "postgres: begin migration %d", version)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, sql); err != nil {
		return eris.Wrapf(err, "postgres: apply migration %d", version)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO parts_schema_version (version) VALUES ($1)", version); err != nil {
		return eris.Wrapf(err, "postgres: record migration %d", version)
	}
	return eris.Wrapf(tx.Commit(ctx), "postgres: commit migration %d", version)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetCachedPart(ctx context.Context, mpn, manufacturer string, maxAge time.Duration) (*model.PartResult, error) {
	cutoff := s.opts.now().UTC().Add(-maxAge)

	var payload string
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM parts_cache
		 WHERE mpn = $1 AND manufacturer = $2 AND datetime >= $3
		 ORDER BY datetime DESC, id DESC LIMIT 1`,
		mpn, manufacturer, cutoff,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cached part")
	}

	part, err := decodePayload([]byte(payload))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: decode cached part %s", mpn)
	}
	return part, nil
}

func (s *PostgresStore) SetCachedPart(ctx context.Context, provider string, part model.PartResult) error {
	payload, err := encodePayload(part)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, s.upsertSQL,
		part.MPN, part.Manufacturer, provider, s.opts.now().UTC(), payload,
	)
	return eris.Wrap(err, "postgres: set cached part")
}

func (s *PostgresStore) AddPartsRequest(ctx context.Context, count, cacheHits, withResult int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO parts_requests (datetime, count, cache_hits, with_result) VALUES ($1, $2, $3, $4)`,
		s.opts.now().UTC(), count, cacheHits, withResult,
	)
	return eris.Wrap(err, "postgres: add parts request")
}

func (s *PostgresStore) PartsRequestStats(ctx context.Context, since time.Time) (*RequestStats, error) {
	var st RequestStats
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(count), 0), COALESCE(SUM(cache_hits), 0), COALESCE(SUM(with_result), 0)
		 FROM parts_requests WHERE datetime >= $1`,
		since.UTC(),
	).Scan(&st.Requests, &st.Parts, &st.CacheHits, &st.WithResult)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parts request stats")
	}
	return &st, nil
}
