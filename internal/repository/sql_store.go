package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/darkodi/linkify/internal/model"
)

// Dialect captures the differences between the SQL backends.
type Dialect struct {
	Name   string // database/sql driver name
	Schema string
	// Numbered placeholders ($1, $2, ...) instead of "?"
	Numbered bool
}

var (
	SQLite = Dialect{
		Name: "sqlite3",
		Schema: `
        CREATE TABLE IF NOT EXISTS urls (
            id TEXT PRIMARY KEY,
            original_url TEXT NOT NULL,
            short_code TEXT NOT NULL UNIQUE,
            clicks INTEGER NOT NULL DEFAULT 0,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        );
        CREATE INDEX IF NOT EXISTS idx_urls_created_at ON urls (created_at DESC);
    `,
	}

	Postgres = Dialect{
		Name: "postgres",
		Schema: `
        CREATE TABLE IF NOT EXISTS urls (
            id UUID PRIMARY KEY,
            original_url TEXT NOT NULL,
            short_code VARCHAR(64) NOT NULL UNIQUE,
            clicks BIGINT NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL
        );
        CREATE INDEX IF NOT EXISTS idx_urls_created_at ON urls (created_at DESC);
    `,
		Numbered: true,
	}
)

const selectColumns = "id, original_url, short_code, clicks, created_at, updated_at"

// SQLStore implements Store on database/sql. The UNIQUE constraint on
// short_code plus ON CONFLICT DO NOTHING makes TryCreate a single atomic step.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLiteStore opens (or creates) a SQLite database. Use ":memory:" for tests.
func NewSQLiteStore(path string) (*SQLStore, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		dsn = "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
	}
	db, err := sql.Open(SQLite.Name, dsn)
	if err != nil {
		return nil, err
	}
	// One writer at a time; also keeps ":memory:" on a single shared connection.
	db.SetMaxOpenConns(1)

	return newSQLStore(db, SQLite)
}

// NewPostgresStore connects to Postgres with lib/pq.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open(Postgres.Name, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return newSQLStore(db, Postgres)
}

func newSQLStore(db *sql.DB, dialect Dialect) (*SQLStore, error) {
	// Create table if not exists
	if _, err := db.Exec(dialect.Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply %s schema: %w", dialect.Name, err)
	}
	return &SQLStore{db: db, dialect: dialect}, nil
}

func (s *SQLStore) TryCreate(ctx context.Context, m *model.URLMapping) (*model.URLMapping, error) {
	stored := *m
	stored.Clicks = 0
	stored.CreatedAt = stored.CreatedAt.UTC().Truncate(time.Microsecond)
	stored.UpdatedAt = stored.CreatedAt

	result, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO urls (id, original_url, short_code, clicks, created_at, updated_at)
         VALUES (?, ?, ?, 0, ?, ?)
         ON CONFLICT (short_code) DO NOTHING`),
		stored.ID, stored.OriginalURL, stored.ShortCode, stored.CreatedAt, stored.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("insert %q: %w", m.ShortCode, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("insert %q: %w", m.ShortCode, err)
	}
	if n == 0 {
		return nil, ErrDuplicateKey
	}
	return &stored, nil
}

func (s *SQLStore) FindByCode(ctx context.Context, code string) (*model.URLMapping, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind("SELECT "+selectColumns+" FROM urls WHERE short_code = ?"),
		code,
	)

	m, err := scanMapping(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %q: %w", code, err)
	}
	return m, nil
}

func (s *SQLStore) IncrementClicks(ctx context.Context, code string) error {
	result, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE urls SET clicks = clicks + 1, updated_at = ? WHERE short_code = ?"),
		time.Now().UTC().Truncate(time.Microsecond), code,
	)
	if err != nil {
		return fmt.Errorf("increment %q: %w", code, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment %q: %w", code, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context, offset, limit int) ([]model.URLMapping, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM urls").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count urls: %w", err)
	}
	if offset < 0 || limit <= 0 {
		return []model.URLMapping{}, total, nil
	}

	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT "+selectColumns+" FROM urls ORDER BY created_at DESC, short_code ASC LIMIT ? OFFSET ?"),
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list urls: %w", err)
	}
	defer rows.Close()

	urls := make([]model.URLMapping, 0, limit)
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan url: %w", err)
		}
		urls = append(urls, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list urls: %w", err)
	}
	return urls, total, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMapping(row scanner) (*model.URLMapping, error) {
	m := &model.URLMapping{}
	if err := row.Scan(&m.ID, &m.OriginalURL, &m.ShortCode, &m.Clicks, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return m, nil
}

// rebind rewrites "?" placeholders as $1, $2, ... for Postgres.
func (s *SQLStore) rebind(query string) string {
	if !s.dialect.Numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// isUniqueViolation catches constraint errors ON CONFLICT doesn't absorb
// (a colliding primary key).
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" // unique_violation
	}
	return false
}
