// Package files stores file metadata in PostgreSQL. The bytes themselves
// live in object storage and are addressed by storage key.
package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/listbuffer/internal/common"
	"github.com/dmitrijs2005/listbuffer/internal/dbx"
	"github.com/dmitrijs2005/listbuffer/internal/server/models"
)

const columns = `list, item_id, folder, filename, size, storage_key, entity, uploaded_at`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Put upserts a file record keyed by (list, item, folder, filename). It
// returns the storage key the record had before, or "" for a new file, so
// the caller can drop the replaced object.
func (r *PostgresRepository) Put(ctx context.Context, file *models.File) (string, error) {
	query := `
		WITH old AS (
			SELECT storage_key FROM files
			WHERE list = $1 AND item_id = $2 AND folder = $3 AND filename = $4
		)
		INSERT INTO files (list, item_id, folder, filename, size, storage_key, entity, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (list, item_id, folder, filename)
		DO UPDATE SET
			size = EXCLUDED.size,
			storage_key = EXCLUDED.storage_key,
			entity = EXCLUDED.entity,
			uploaded_at = EXCLUDED.uploaded_at
		RETURNING (SELECT storage_key FROM old)
	`
	var previous sql.NullString
	err := r.db.QueryRowContext(ctx, query,
		file.List, file.ItemID, file.Folder, file.Filename, file.Size, file.StorageKey, nullJSON(file.Entity), file.UploadedAt,
	).Scan(&previous)
	if err != nil {
		return "", fmt.Errorf("failed to put file: %w", err)
	}
	return previous.String, nil
}

func (r *PostgresRepository) Get(ctx context.Context, list string, itemID int, folder, filename string) (*models.File, error) {
	query := `SELECT ` + columns + ` FROM files
		WHERE list = $1 AND item_id = $2 AND folder = $3 AND filename = $4`

	f, err := scanFile(r.db.QueryRowContext(ctx, query, list, itemID, folder, filename))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %s: %w", filename, common.ErrorNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return f, nil
}

// SelectByItem returns the attachments of one item.
func (r *PostgresRepository) SelectByItem(ctx context.Context, list string, itemID int) ([]*models.File, error) {
	query := `SELECT ` + columns + ` FROM files
		WHERE list = $1 AND item_id = $2 AND folder = '' ORDER BY filename`
	return r.selectFiles(ctx, query, list, itemID)
}

// SelectByFolder returns the document library files of one folder.
func (r *PostgresRepository) SelectByFolder(ctx context.Context, list, folder string) ([]*models.File, error) {
	query := `SELECT ` + columns + ` FROM files
		WHERE list = $1 AND item_id = 0 AND folder = $2 ORDER BY filename`
	return r.selectFiles(ctx, query, list, folder)
}

// Delete removes one file record and returns its storage key.
func (r *PostgresRepository) Delete(ctx context.Context, list string, itemID int, folder, filename string) (string, error) {
	query := `DELETE FROM files
		WHERE list = $1 AND item_id = $2 AND folder = $3 AND filename = $4
		RETURNING storage_key`

	var key string
	err := r.db.QueryRowContext(ctx, query, list, itemID, folder, filename).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("file %s: %w", filename, common.ErrorNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to delete file: %w", err)
	}
	return key, nil
}

// DeleteByItem removes the attachments of one item.
func (r *PostgresRepository) DeleteByItem(ctx context.Context, list string, itemID int) ([]string, error) {
	query := `DELETE FROM files WHERE list = $1 AND item_id = $2 AND folder = '' RETURNING storage_key`
	return r.selectKeys(ctx, query, list, itemID)
}

// DeleteAttachments removes the attachments of every item of the list.
// Library files stay.
func (r *PostgresRepository) DeleteAttachments(ctx context.Context, list string) ([]string, error) {
	query := `DELETE FROM files WHERE list = $1 AND item_id <> 0 RETURNING storage_key`
	return r.selectKeys(ctx, query, list)
}

// StorageKeys returns the keys of every file of the list.
func (r *PostgresRepository) StorageKeys(ctx context.Context, list string) ([]string, error) {
	return r.selectKeys(ctx, `SELECT storage_key FROM files WHERE list = $1`, list)
}

func (r *PostgresRepository) selectFiles(ctx context.Context, query string, args ...any) ([]*models.File, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) selectKeys(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select storage keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (*models.File, error) {
	var f models.File
	if err := s.Scan(&f.List, &f.ItemID, &f.Folder, &f.Filename, &f.Size, &f.StorageKey, &f.Entity, &f.UploadedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
