package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/listbuffer/internal/client/models"
	"github.com/dmitrijs2005/listbuffer/internal/common"
	"github.com/dmitrijs2005/listbuffer/internal/cryptox"
	"github.com/dmitrijs2005/listbuffer/internal/dbx"
)

const columns = `key, attachment_type, list_name, folder, parent_id, filename, type_name, snapshot, residency, size, content_hash, uploaded_at`

// SQLiteRepository implements Repository on top of the attachments and
// blobs tables.
type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

func (r *SQLiteRepository) AddAttachment(ctx context.Context, meta *models.AttachmentMeta, content []byte, residency models.Residency) (string, error) {
	key := meta.Key()

	previous, err := r.hashOf(ctx, key)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return "", err
	}

	hash := ""
	if residency != models.ResidencyServer {
		hash = cryptox.ContentHash(content)
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO blobs (hash, content) VALUES (?, ?) ON CONFLICT(hash) DO NOTHING`,
			hash, content); err != nil {
			return "", fmt.Errorf("failed to store blob: %w", err)
		}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO attachments (`+columns+`, prefix)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			residency = excluded.residency,
			size = excluded.size,
			content_hash = excluded.content_hash,
			type_name = excluded.type_name,
			snapshot = excluded.snapshot,
			uploaded_at = excluded.uploaded_at
	`, key, string(meta.Type), meta.ListName, meta.Folder, nullableParent(meta.ParentID), meta.Filename,
		meta.TypeName, meta.Snapshot, string(residency), int64(len(content)), hash, r.now().UnixNano(), meta.Prefix())
	if err != nil {
		return "", fmt.Errorf("failed to upsert attachment: %w", err)
	}

	if previous != "" && previous != hash {
		if err := r.collect(ctx, previous); err != nil {
			return "", err
		}
	}
	return key, nil
}

func (r *SQLiteRepository) RemoveAttachment(ctx context.Context, meta *models.AttachmentMeta) error {
	return r.RemoveByKey(ctx, meta.Key())
}

func (r *SQLiteRepository) RemoveByKey(ctx context.Context, key string) error {
	hash, err := r.hashOf(ctx, key)
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM attachments WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	return r.collect(ctx, hash)
}

func (r *SQLiteRepository) GetByOwner(ctx context.Context, list string, parentID int) ([]models.Attachment, error) {
	return r.query(ctx,
		`SELECT `+columns+` FROM attachments WHERE prefix = ? AND parent_id = ? ORDER BY filename`,
		models.Prefix(models.AttachmentTypeAttachment, list, ""), parentID)
}

func (r *SQLiteRepository) ListFolder(ctx context.Context, list, folder string) ([]models.Attachment, error) {
	return r.query(ctx,
		`SELECT `+columns+` FROM attachments WHERE prefix = ? ORDER BY filename`,
		models.Prefix(models.AttachmentTypeDocLib, list, folder))
}

func (r *SQLiteRepository) ListByList(ctx context.Context, list string) ([]models.Attachment, error) {
	return r.query(ctx, `SELECT `+columns+` FROM attachments WHERE list_name = ? ORDER BY key`, list)
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) (*models.Attachment, error) {
	items, err := r.query(ctx, `SELECT `+columns+` FROM attachments WHERE key = ?`, key)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: attachment %s", common.ErrorNotFound, key)
	}
	return &items[0], nil
}

func (r *SQLiteRepository) GetContentByID(ctx context.Context, key string) (*models.Attachment, error) {
	a, err := r.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !a.HasContent() {
		return a, nil
	}

	err = r.db.QueryRowContext(ctx, `SELECT content FROM blobs WHERE hash = ?`, a.ContentHash).Scan(&a.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: blob %s of %s", common.ErrorNotFound, a.ContentHash, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}

	if !cryptox.VerifyContent(a.Content, a.ContentHash) {
		return nil, fmt.Errorf("%w: content of %s does not match its hash", common.ErrorInternal, key)
	}
	return a, nil
}

func (r *SQLiteRepository) UpdateMeta(ctx context.Context, oldKey string, meta *models.AttachmentMeta) (string, error) {
	key := meta.Key()
	res, err := r.db.ExecContext(ctx, `
		UPDATE attachments SET key = ?, prefix = ?, attachment_type = ?, list_name = ?, folder = ?,
			parent_id = ?, filename = ?, type_name = ?, snapshot = ?
		WHERE key = ?
	`, key, meta.Prefix(), string(meta.Type), meta.ListName, meta.Folder,
		nullableParent(meta.ParentID), meta.Filename, meta.TypeName, meta.Snapshot, oldKey)
	if err != nil {
		return "", fmt.Errorf("failed to update attachment: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return "", fmt.Errorf("%w: attachment %s", common.ErrorNotFound, oldKey)
	}
	return key, nil
}

func (r *SQLiteRepository) ClearContent(ctx context.Context, key string) error {
	hash, err := r.hashOf(ctx, key)
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx,
		`UPDATE attachments SET content_hash = '', residency = ? WHERE key = ?`,
		string(models.ResidencyServer), key); err != nil {
		return fmt.Errorf("failed to clear content: %w", err)
	}
	return r.collect(ctx, hash)
}

func (r *SQLiteRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM attachments`); err != nil {
		return fmt.Errorf("failed to delete attachments: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM blobs`); err != nil {
		return fmt.Errorf("failed to delete blobs: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) hashOf(ctx context.Context, key string) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx, `SELECT content_hash FROM attachments WHERE key = ?`, key).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: attachment %s", common.ErrorNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to select attachment: %w", err)
	}
	return hash, nil
}

// collect drops the blob when no attachment references it any more.
func (r *SQLiteRepository) collect(ctx context.Context, hash string) error {
	if hash == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM blobs WHERE hash = ? AND NOT EXISTS (SELECT 1 FROM attachments WHERE content_hash = ?)`,
		hash, hash)
	if err != nil {
		return fmt.Errorf("failed to collect blob: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]models.Attachment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select attachments: %w", err)
	}
	defer rows.Close()

	var result []models.Attachment
	for rows.Next() {
		var (
			a          models.Attachment
			aType      string
			residency  string
			parent     sql.NullInt64
			uploadedAt int64
		)
		err := rows.Scan(&a.Key, &aType, &a.Meta.ListName, &a.Meta.Folder, &parent, &a.Meta.Filename,
			&a.Meta.TypeName, &a.Meta.Snapshot, &residency, &a.Size, &a.ContentHash, &uploadedAt)
		if err != nil {
			return nil, err
		}
		a.Meta.Type = models.AttachmentType(aType)
		a.Residency = models.Residency(residency)
		if parent.Valid {
			a.Meta.ParentID = models.IntPtr(int(parent.Int64))
		}
		a.UploadedAt = time.Unix(0, uploadedAt).UTC()
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nullableParent(id *int) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}
