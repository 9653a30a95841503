package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		s, err := NewSQLiteStore(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestSQLiteStore_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "urls.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)

	_, err = s.TryCreate(context.Background(), newMapping("file123", time.Now()))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// reopening keeps the data
	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.FindByCode(context.Background(), "file123")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/file123", got.OriginalURL)
}

func TestSQLiteStore_DuplicateID(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	first := newMapping("first12", time.Now())
	_, err = s.TryCreate(context.Background(), first)
	require.NoError(t, err)

	second := newMapping("second1", time.Now())
	second.ID = first.ID
	_, err = s.TryCreate(context.Background(), second)
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	runStoreTests(t, func(t *testing.T) Store {
		s, err := NewPostgresStore(dsn)
		require.NoError(t, err)
		_, err = s.db.Exec("TRUNCATE urls")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{dialect: Postgres}
	assert.Equal(t, "UPDATE t SET a = $1 WHERE b = $2", pg.rebind("UPDATE t SET a = ? WHERE b = ?"))

	lite := &SQLStore{dialect: SQLite}
	assert.Equal(t, "SELECT ? FROM t", lite.rebind("SELECT ? FROM t"))
}
