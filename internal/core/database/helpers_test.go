package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T) *DatabaseClient {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warehouse.db")
	sqlDB, err := sql.Open("sqlite", SQLiteDSN(path))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewWithDB(sqlDB, SQLite{}, zaptest.NewLogger(t))
}

func countRows(t *testing.T, conn Conn, table string) int {
	t.Helper()
	var n int
	require.NoError(t, conn.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}
