// Package items stores list documents in PostgreSQL.
package items

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/listbuffer/internal/common"
	"github.com/dmitrijs2005/listbuffer/internal/dbx"
	"github.com/dmitrijs2005/listbuffer/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, item *models.Item) error {
	query := `INSERT INTO items (list, id, body) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, item.List, item.ID, string(item.Body)); err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

// Update replaces the body of an existing item.
func (r *PostgresRepository) Update(ctx context.Context, item *models.Item) error {
	query := `UPDATE items SET body = $3, updated_at = now() WHERE list = $1 AND id = $2`
	res, err := r.db.ExecContext(ctx, query, item.List, item.ID, string(item.Body))
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	return expectOne(res, item.List, item.ID)
}

func (r *PostgresRepository) Get(ctx context.Context, list string, id int) (*models.Item, error) {
	return r.get(ctx, `SELECT list, id, body FROM items WHERE list = $1 AND id = $2`, list, id)
}

// GetForUpdate is Get that locks the row until the surrounding transaction ends.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, list string, id int) (*models.Item, error) {
	return r.get(ctx, `SELECT list, id, body FROM items WHERE list = $1 AND id = $2 FOR UPDATE`, list, id)
}

func (r *PostgresRepository) get(ctx context.Context, query string, list string, id int) (*models.Item, error) {
	var item models.Item
	err := r.db.QueryRowContext(ctx, query, list, id).Scan(&item.List, &item.ID, &item.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%d: %w", list, id, common.ErrorNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select item: %w", err)
	}
	return &item, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, list string, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE list = $1 AND id = $2`, list, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return expectOne(res, list, id)
}

// DeleteAll removes every item of the list and reports how many were removed.
func (r *PostgresRepository) DeleteAll(ctx context.Context, list string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE list = $1`, list)
	if err != nil {
		return 0, fmt.Errorf("failed to empty list: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

// SelectAll returns the items of the list ordered by id.
func (r *PostgresRepository) SelectAll(ctx context.Context, list string) ([]*models.Item, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT list, id, body FROM items WHERE list = $1 ORDER BY id`, list)
	if err != nil {
		return nil, fmt.Errorf("failed to select items: %w", err)
	}
	defer rows.Close()

	var result []*models.Item
	for rows.Next() {
		var item models.Item
		if err := rows.Scan(&item.List, &item.ID, &item.Body); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func expectOne(res sql.Result, list string, id int) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s/%d: %w", list, id, common.ErrorNotFound)
	}
	return nil
}
