// Package lists stores remote list definitions in PostgreSQL.
package lists

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/listbuffer/internal/common"
	"github.com/dmitrijs2005/listbuffer/internal/dbx"
	"github.com/dmitrijs2005/listbuffer/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the list or, when it already exists, replaces its type
// name and schema. It returns the handle of the stored list, which never
// changes once assigned.
func (r *PostgresRepository) Create(ctx context.Context, list *models.List) (string, error) {
	query := `
		INSERT INTO lists (name, handle, type_name, schema)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name)
		DO UPDATE SET type_name = EXCLUDED.type_name, schema = EXCLUDED.schema
		RETURNING handle
	`
	var handle string
	if err := r.db.QueryRowContext(ctx, query, list.Name, list.Handle, list.TypeName, nullJSON(list.Schema)).Scan(&handle); err != nil {
		return "", fmt.Errorf("failed to create list: %w", err)
	}
	return handle, nil
}

func (r *PostgresRepository) Get(ctx context.Context, name string) (*models.List, error) {
	query := `SELECT name, handle, type_name, schema, created_at FROM lists WHERE name = $1`

	var (
		l      models.List
		schema []byte
	)
	err := r.db.QueryRowContext(ctx, query, name).Scan(&l.Name, &l.Handle, &l.TypeName, &schema, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("list %s: %w", name, common.ErrorNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select list: %w", err)
	}
	l.Schema = schema
	return &l, nil
}

func (r *PostgresRepository) UpdateSchema(ctx context.Context, name, typeName string, schema []byte) error {
	query := `UPDATE lists SET type_name = $2, schema = $3 WHERE name = $1`
	res, err := r.db.ExecContext(ctx, query, name, typeName, nullJSON(schema))
	if err != nil {
		return fmt.Errorf("failed to update list: %w", err)
	}
	return expectOne(res, name)
}

// Delete removes the list; its items and file rows go with it.
func (r *PostgresRepository) Delete(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM lists WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("failed to delete list: %w", err)
	}
	return expectOne(res, name)
}

// NextID allocates the next item id of the list. Ids start at 1.
func (r *PostgresRepository) NextID(ctx context.Context, name string) (int, error) {
	query := `UPDATE lists SET next_id = next_id + 1 WHERE name = $1 RETURNING next_id`

	var id int
	err := r.db.QueryRowContext(ctx, query, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("list %s: %w", name, common.ErrorNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to allocate id: %w", err)
	}
	return id, nil
}

func expectOne(res sql.Result, name string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("list %s: %w", name, common.ErrorNotFound)
	}
	return nil
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
