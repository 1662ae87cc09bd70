package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/LibrePCB/librepcb-api-server/internal/db"
	"github.com/LibrePCB/librepcb-api-server/internal/model"
)

// sqliteTimeFormat matches SQLite's CURRENT_TIMESTAMP so stored values compare
// lexically in time order.
const sqliteTimeFormat = "2006-01-02 15:04:05"

// sqlitePragmas are applied to every pooled connection through the DSN.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
}

// sqliteMigrations are applied in order; PRAGMA user_version records how many
// have run.
var sqliteMigrations = []string{
	`
CREATE TABLE IF NOT EXISTS parts_requests (
	id          INTEGER PRIMARY KEY NOT NULL,
	datetime    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	count       INTEGER NOT NULL,
	cache_hits  INTEGER NOT NULL,
	with_result INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS parts_cache (
	id           INTEGER PRIMARY KEY NOT NULL,
	mpn          TEXT NOT NULL,
	manufacturer TEXT NOT NULL,
	provider     TEXT NOT NULL,
	datetime     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	payload      TEXT NOT NULL,
	UNIQUE(mpn, manufacturer, provider)
);

CREATE INDEX IF NOT EXISTS idx_parts_cache_lookup ON parts_cache(mpn, manufacturer, datetime);
CREATE INDEX IF NOT EXISTS idx_parts_requests_datetime ON parts_requests(datetime);
`,
}

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db        *sql.DB
	opts      options
	upsertSQL string

	migrateOnce sync.Once
	migrateErr  error
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, opts ...Option) (*SQLiteStore, error) {
	upsert, err := db.UpsertSQL(db.UpsertConfig{
		Table:        "parts_cache",
		Columns:      cacheColumns,
		ConflictKeys: cacheConflictKeys,
		Placeholder:  db.Question,
	})
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, eris.Wrap(err, "sqlite: ping")
	}
	return &SQLiteStore{db: conn, opts: newOptions(opts), upsertSQL: upsert}, nil
}

// withPragmas appends the connection pragmas unless the DSN already sets any.
func withPragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	params := make([]string, len(sqlitePragmas))
	for i, p := range sqlitePragmas {
		params[i] = "_pragma=" + p
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

// Migrate brings the schema up to date. It runs at most once per store; later
// calls return the first result.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.migrateOnce.Do(func() {
		s.migrateErr = s.migrate(ctx)
	})
	return s.migrateErr
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: migrate: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var version int
	if err := tx.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return eris.Wrap(err, "sqlite: migrate: read version")
	}
	if version >= len(sqliteMigrations) {
		return nil
	}

	for v := version; v < len(sqliteMigrations); v++ {
		zap.L().Info("migrating database", zap.String("driver", "sqlite"), zap.Int("version", v+1))
		if _, err := tx.ExecContext(ctx, sqliteMigrations[v]); err != nil {
			return eris.Wrapf(err, "sqlite: migrate: apply version %d", v+1)
		}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", len(sqliteMigrations))); err != nil {
		return eris.Wrap(err, "sqlite: migrate: set version")
	}
	return eris.Wrap(tx.Commit(), "sqlite: migrate: commit")
}

// SchemaVersion returns the schema version recorded in the database.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version)
	return version, eris.Wrap(err, "sqlite: read schema version")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetCachedPart(ctx context.Context, mpn, manufacturer string, maxAge time.Duration) (*model.PartResult, error) {
	cutoff := s.opts.now().UTC().Add(-maxAge).Format(sqliteTimeFormat)

	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM parts_cache
		 WHERE mpn = ? AND manufacturer = ? AND datetime >= ?
		 ORDER BY datetime DESC, id DESC LIMIT 1`,
		mpn, manufacturer, cutoff,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached part")
	}

	part, err := decodePayload([]byte(payload))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: decode cached part %s", mpn)
	}
	return part, nil
}

func (s *SQLiteStore) SetCachedPart(ctx context.Context, provider string, part model.PartResult) error {
	payload, err := encodePayload(part)
	if err != nil {
		return err
	}

	now := s.opts.now().UTC().Format(sqliteTimeFormat)
	_, err = s.db.ExecContext(ctx, s.upsertSQL,
		part.MPN, part.Manufacturer, provider, now, payload,
	)
	return eris.Wrap(err, "sqlite: set cached part")
}

func (s *SQLiteStore) AddPartsRequest(ctx context.Context, count, cacheHits, withResult int) error {
	now := s.opts.now().UTC().Format(sqliteTimeFormat)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO parts_requests (datetime, count, cache_hits, with_result) VALUES (?, ?, ?, ?)`,
		now, count, cacheHits, withResult,
	)
	return eris.Wrap(err, "sqlite: add parts request")
}

func (s *SQLiteStore) PartsRequestStats(ctx context.Context, since time.Time) (*RequestStats, error) {
	var st RequestStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(count), 0), COALESCE(SUM(cache_hits), 0), COALESCE(SUM(with_result), 0)
		 FROM parts_requests WHERE datetime >= ?`,
		since.UTC().Format(sqliteTimeFormat),
	).Scan(&st.Requests, &st.Parts, &st.CacheHits, &st.WithResult)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: parts request stats")
	}
	return &st, nil
}
