package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/listbuffer/internal/server/migrations"
	"github.com/dmitrijs2005/listbuffer/internal/server/repositories/files"
	"github.com/dmitrijs2005/listbuffer/internal/server/repositories/items"
	"github.com/dmitrijs2005/listbuffer/internal/server/repositories/lists"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMigrator struct {
	err   error
	calls int
}

func (s *stubMigrator) Up(context.Context) ([]*goose.MigrationResult, error) {
	s.calls++
	return nil, s.err
}

func mockDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func useMigrator(t *testing.T, m migrator, err error) {
	t.Helper()
	orig := newMigrator
	t.Cleanup(func() { newMigrator = orig })
	newMigrator = func(*sql.DB) (migrator, error) { return m, err }
}

func TestRepositories(t *testing.T) {
	db := mockDB(t)
	m := NewPostgresRepositoryManager()

	assert.IsType(t, &lists.PostgresRepository{}, m.Lists(db))
	assert.IsType(t, &items.PostgresRepository{}, m.Items(db))
	assert.IsType(t, &files.PostgresRepository{}, m.Files(db))
}

func TestRunMigrations(t *testing.T) {
	t.Run("applies pending", func(t *testing.T) {
		s := &stubMigrator{}
		useMigrator(t, s, nil)

		require.NoError(t, NewPostgresRepositoryManager().RunMigrations(context.Background(), mockDB(t)))
		assert.Equal(t, 1, s.calls)
	})

	t.Run("apply failure", func(t *testing.T) {
		useMigrator(t, &stubMigrator{err: errors.New("relation exists")}, nil)

		err := NewPostgresRepositoryManager().RunMigrations(context.Background(), mockDB(t))
		assert.EqualError(t, err, "apply migrations: relation exists")
	})

	t.Run("load failure", func(t *testing.T) {
		useMigrator(t, nil, errors.New("no migrations"))

		err := NewPostgresRepositoryManager().RunMigrations(context.Background(), mockDB(t))
		assert.EqualError(t, err, "load migrations: no migrations")
	})
}

func TestNewMigrator_ReadsEmbeddedFiles(t *testing.T) {
	m, err := newMigrator(mockDB(t))
	require.NoError(t, err)

	p, ok := m.(*goose.Provider)
	require.True(t, ok)
	sources := p.ListSources()
	require.NotEmpty(t, sources)
	assert.Equal(t, int64(1), sources[0].Version)
}

func TestMigrationsAreEmbedded(t *testing.T) {
	b, err := migrations.Migrations.ReadFile("00001_init.sql")
	require.NoError(t, err)
	assert.Contains(t, string(b), "-- +goose Up")
	assert.Contains(t, string(b), "CREATE TABLE files")
}
