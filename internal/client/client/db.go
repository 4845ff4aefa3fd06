package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/listbuffer/internal/client/migrations"
	"github.com/dmitrijs2005/listbuffer/internal/client/repositories/commands"
	"github.com/dmitrijs2005/listbuffer/internal/client/repositories/files"
	"github.com/dmitrijs2005/listbuffer/internal/client/repositories/items"
	"github.com/dmitrijs2005/listbuffer/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/listbuffer/internal/dbx"

	_ "modernc.org/sqlite"
)

var pragmas = []string{
	`PRAGMA busy_timeout = 5000`,
	`PRAGMA journal_mode = WAL`,
	`PRAGMA synchronous = NORMAL`,
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrations.Apply(ctx, db)
}

// InitDatabase opens the sqlite database at dsn and applies migrations.
// The pool holds a single connection: sqlite serializes writers anyway, and
// an in-memory database exists only on the connection that created it.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Store is the local store provider. It owns the database handle and vends
// repositories bound to the database or to a transaction.
type Store struct {
	db *sql.DB
}

// OpenStore initializes the database at dsn.
func OpenStore(ctx context.Context, dsn string) (*Store, error) {
	db, err := InitDatabase(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return NewStore(db), nil
}

// NewStore wraps an already migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the handle for use outside a transaction.
func (s *Store) DB() dbx.DBTX {
	return s.db
}

// WithTx runs fn in a transaction. Inside fn only repositories built from
// tx may be used; the pool has one connection, held by the transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return dbx.WithTx(ctx, s.db, nil, fn)
}

func (s *Store) Items(db dbx.DBTX) items.Repository {
	return items.NewSQLiteRepository(db)
}

func (s *Store) Files(db dbx.DBTX) files.Repository {
	return files.NewSQLiteRepository(db)
}

func (s *Store) Commands(db dbx.DBTX) commands.Repository {
	return commands.NewSQLiteRepository(db)
}

func (s *Store) Metadata(db dbx.DBTX) metadata.Repository {
	return metadata.NewSQLiteRepository(db)
}

func (s *Store) Close() error {
	return s.db.Close()
}
