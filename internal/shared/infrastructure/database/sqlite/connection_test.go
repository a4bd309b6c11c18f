package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amora-chat/amora/internal/shared/infrastructure/database"
)

func TestOpen_File(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "amora.db")

	conn, err := database.Open(ctx, database.Config{Driver: database.DriverSQLite, SQLitePath: path})
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, database.DriverSQLite, conn.Driver())
	assert.NoError(t, conn.Ping(ctx))
	assert.FileExists(t, path)
}

func TestOpen_InMemoryKeepsState(t *testing.T) {
	ctx := context.Background()

	conn, err := Open(ctx, database.Config{SQLitePath: ":memory:"})
	require.NoError(t, err)
	defer conn.Close()

	db := conn.(*Connection).DB()
	_, err = db.ExecContext(ctx, `CREATE TABLE profiles (user_id TEXT PRIMARY KEY)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO profiles (user_id) VALUES ('u1')`)
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&n))
	assert.Equal(t, 1, n)
}
