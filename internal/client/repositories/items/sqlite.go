package items

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/listbuffer/internal/client/models"
	"github.com/dmitrijs2005/listbuffer/internal/common"
	"github.com/dmitrijs2005/listbuffer/internal/dbx"
	"github.com/dmitrijs2005/listbuffer/internal/schema"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) nextBufferID(ctx context.Context, collection string) (int, error) {
	var minID, minBufferID int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MIN(id), 0), COALESCE(MIN(buffer_id), 0) FROM items WHERE collection = ?`,
		collection).Scan(&minID, &minBufferID)
	if err != nil {
		return 0, fmt.Errorf("failed to compute buffer id: %w", err)
	}

	next := min(minID, minBufferID, 0)
	return int(next) - 1, nil
}

// Insert assigns the next buffer id to the identifier field (and the buffer
// id field, if the type declares one) and stores the document.
func (r *SQLiteRepository) Insert(ctx context.Context, t *schema.Type, doc []byte) (*models.Item, error) {
	if err := schema.CheckDocument(doc); err != nil {
		return nil, err
	}

	id, err := r.nextBufferID(ctx, t.List)
	if err != nil {
		return nil, err
	}

	if doc, err = t.SetID(doc, id); err != nil {
		return nil, err
	}
	if doc, err = t.SetBufferID(doc, id); err != nil {
		return nil, err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO items (collection, id, buffer_id, body) VALUES (?, ?, ?, ?)`,
		t.List, id, id, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to insert item: %w", err)
	}

	return &models.Item{Collection: t.List, ID: id, BufferID: id, Body: doc}, nil
}

// Update resolves the item, rewrites the identifier in doc to the stored id,
// restores the buffer id field and replaces the document.
func (r *SQLiteRepository) Update(ctx context.Context, t *schema.Type, id int, doc []byte) (*models.Item, error) {
	if err := schema.CheckDocument(doc); err != nil {
		return nil, err
	}

	item, err := r.FindByID(ctx, t, id)
	if err != nil {
		return nil, err
	}

	if doc, err = t.SetID(doc, item.ID); err != nil {
		return nil, err
	}
	if item.BufferID != 0 {
		if doc, err = t.SetBufferID(doc, item.BufferID); err != nil {
			return nil, err
		}
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE items SET body = ? WHERE collection = ? AND id = ?`,
		doc, t.List, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}

	item.Body = doc
	return item, nil
}

// Put upserts the item under its id.
func (r *SQLiteRepository) Put(ctx context.Context, item *models.Item) error {
	var bufferID sql.NullInt64
	if item.BufferID != 0 {
		bufferID = sql.NullInt64{Int64: int64(item.BufferID), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO items (collection, id, buffer_id, body) VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET buffer_id = excluded.buffer_id, body = excluded.body
	`, item.Collection, item.ID, bufferID, item.Body)
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

// Delete resolves the item and removes it.
func (r *SQLiteRepository) Delete(ctx context.Context, t *schema.Type, id int) (*models.Item, error) {
	item, err := r.FindByID(ctx, t, id)
	if err != nil {
		return nil, err
	}
	if err := r.Remove(ctx, t, item.ID); err != nil {
		return nil, err
	}
	return item, nil
}

// Remove deletes the row stored under id.
func (r *SQLiteRepository) Remove(ctx context.Context, t *schema.Type, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE collection = ? AND id = ?`, t.List, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s id=%d", common.ErrItemNotFound, t.List, id)
	}
	return nil
}

// DeleteAll removes every item of the collection.
func (r *SQLiteRepository) DeleteAll(ctx context.Context, t *schema.Type) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE collection = ?`, t.List); err != nil {
		return fmt.Errorf("failed to empty collection: %w", err)
	}
	return nil
}

// Clear removes all items.
func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return fmt.Errorf("failed to clear items: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) scanOne(row *sql.Row) (*models.Item, error) {
	var (
		item     models.Item
		bufferID sql.NullInt64
	)
	if err := row.Scan(&item.Collection, &item.ID, &bufferID, &item.Body); err != nil {
		return nil, err
	}
	item.BufferID = int(bufferID.Int64)
	return &item, nil
}

// Get returns the row stored under id without buffer id fallback.
func (r *SQLiteRepository) Get(ctx context.Context, t *schema.Type, id int) (*models.Item, error) {
	item, err := r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT collection, id, buffer_id, body FROM items WHERE collection = ? AND id = ?`, t.List, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s id=%d", common.ErrItemNotFound, t.List, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select item: %w", err)
	}
	return item, nil
}

// FindByID returns the item stored under id. A negative id that is not
// stored as a primary id is resolved through the buffer id it was created
// with, so references taken before a remap keep working.
func (r *SQLiteRepository) FindByID(ctx context.Context, t *schema.Type, id int) (*models.Item, error) {
	item, err := r.Get(ctx, t, id)
	if err == nil || !errors.Is(err, common.ErrItemNotFound) || id >= 0 {
		return item, err
	}

	item, err = r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT collection, id, buffer_id, body FROM items WHERE collection = ? AND buffer_id = ? LIMIT 1`, t.List, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s id=%d", common.ErrItemNotFound, t.List, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select item by buffer id: %w", err)
	}
	return item, nil
}

// FindAll loads every item of the collection and filters it with pred.
func (r *SQLiteRepository) FindAll(ctx context.Context, t *schema.Type, pred func(doc []byte) bool) ([]models.Item, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT collection, id, buffer_id, body FROM items WHERE collection = ? ORDER BY id`, t.List)
	if err != nil {
		return nil, fmt.Errorf("failed to select items: %w", err)
	}
	defer rows.Close()

	var all []models.Item
	for rows.Next() {
		var (
			item     models.Item
			bufferID sql.NullInt64
		)
		if err := rows.Scan(&item.Collection, &item.ID, &bufferID, &item.Body); err != nil {
			return nil, err
		}
		item.BufferID = int(bufferID.Int64)
		all = append(all, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if pred == nil {
		return all, nil
	}

	result := make([]models.Item, 0, len(all))
	for _, item := range all {
		if pred(item.Body) {
			result = append(result, item)
		}
	}
	return result, nil
}

// Count returns the number of items in the collection.
func (r *SQLiteRepository) Count(ctx context.Context, t *schema.Type) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE collection = ?`, t.List).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return n, nil
}

// Collections lists the non-empty collections.
func (r *SQLiteRepository) Collections(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT collection FROM items ORDER BY collection`)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		result = append(result, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
