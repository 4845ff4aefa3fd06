// Package dbtest opens migrated in-memory sqlite databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dmitrijs2005/listbuffer/internal/client/migrations"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

// Open returns an in-memory database with every migration applied. The
// pool is limited to one connection so all queries see the same database.
func Open(t testing.TB) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.Apply(context.Background(), db))

	return db
}
