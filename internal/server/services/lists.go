// Package services contains the list server business logic: list
// definitions, item documents, likes, attachments and document library
// files, plus the API key session.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/listbuffer/internal/common"
	"github.com/dmitrijs2005/listbuffer/internal/dbx"
	"github.com/dmitrijs2005/listbuffer/internal/logging"
	"github.com/dmitrijs2005/listbuffer/internal/schema"
	"github.com/dmitrijs2005/listbuffer/internal/server/config"
	"github.com/dmitrijs2005/listbuffer/internal/server/models"
	"github.com/dmitrijs2005/listbuffer/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/listbuffer/internal/server/storage"
	"github.com/google/uuid"
)

// BlobStore keeps file bytes by key.
type BlobStore interface {
	Put(ctx context.Context, key string, content []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// StoredFile is a file record together with its bytes.
type StoredFile struct {
	*models.File
	Content []byte
}

type ListService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       BlobStore
	maxFileSize int64
	log         logging.Logger

	newKey func(handle string) string
	now    func() time.Time
}

func NewListService(db *sql.DB, m repomanager.RepositoryManager, blobs BlobStore, cfg *config.Config, log logging.Logger) *ListService {
	return &ListService{
		db:          db,
		repomanager: m,
		blobs:       blobs,
		maxFileSize: cfg.MaxFileSize,
		log:         log,
		newKey:      storage.NewKey,
		now:         time.Now,
	}
}

// Ping reports whether the database answers.
func (s *ListService) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateTable creates the list, or refreshes the type name and schema of an
// existing one, and returns its handle. Creating the same list twice yields
// the same handle.
func (s *ListService) CreateTable(ctx context.Context, list, typeName string, raw []byte) (string, error) {
	if list == "" {
		return "", fmt.Errorf("%w: list name is required", common.ErrInvalidSchema)
	}
	typeName, err := checkSchema(list, typeName, raw)
	if err != nil {
		return "", err
	}

	handle, err := s.repomanager.Lists(s.db).Create(ctx, &models.List{
		Name:     list,
		Handle:   uuid.NewString(),
		TypeName: typeName,
		Schema:   raw,
	})
	if err != nil {
		return "", err
	}
	s.log.Info(ctx, "list created", "list", list, "handle", handle)
	return handle, nil
}

// DeleteTable removes the list with its items and files.
func (s *ListService) DeleteTable(ctx context.Context, list string) error {
	var keys []string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (err error) {
		if keys, err = s.repomanager.Files(tx).StorageKeys(ctx, list); err != nil {
			return err
		}
		return s.repomanager.Lists(tx).Delete(ctx, list)
	})
	if err != nil {
		return err
	}
	s.dropObjects(ctx, keys)
	s.log.Info(ctx, "list deleted", "list", list, "files", len(keys))
	return nil
}

func (s *ListService) UpdateTableStructure(ctx context.Context, list, typeName string, raw []byte) error {
	typeName, err := checkSchema(list, typeName, raw)
	if err != nil {
		return err
	}
	return s.repomanager.Lists(s.db).UpdateSchema(ctx, list, typeName, raw)
}

// InsertItem stores body under the next id of the list and returns that id.
// Whatever id body carried is replaced.
func (s *ListService) InsertItem(ctx context.Context, list string, body []byte) (int, error) {
	if err := schema.CheckDocument(body); err != nil {
		return 0, err
	}

	var id int
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		t, err := s.listType(ctx, tx, list)
		if err != nil {
			return err
		}
		if id, err = s.repomanager.Lists(tx).NextID(ctx, list); err != nil {
			return err
		}
		doc, err := t.SetID(body, id)
		if err != nil {
			return err
		}
		return s.repomanager.Items(tx).Insert(ctx, &models.Item{List: list, ID: id, Body: doc})
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *ListService) UpdateItem(ctx context.Context, list string, id int, body []byte) error {
	if err := schema.CheckDocument(body); err != nil {
		return err
	}
	if id <= 0 {
		return fmt.Errorf("%w: bad item id %d", common.ErrInvalidDocument, id)
	}

	t, err := s.listType(ctx, s.db, list)
	if err != nil {
		return err
	}
	doc, err := t.SetID(body, id)
	if err != nil {
		return err
	}
	return s.repomanager.Items(s.db).Update(ctx, &models.Item{List: list, ID: id, Body: doc})
}

// DeleteItem removes the item and its attachments.
func (s *ListService) DeleteItem(ctx context.Context, list string, id int) error {
	var keys []string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (err error) {
		if err = s.repomanager.Items(tx).Delete(ctx, list, id); err != nil {
			return err
		}
		keys, err = s.repomanager.Files(tx).DeleteByItem(ctx, list, id)
		return err
	})
	if err != nil {
		return err
	}
	s.dropObjects(ctx, keys)
	return nil
}

// EmptyTable removes every item of the list with its attachments. Document
// library files stay.
func (s *ListService) EmptyTable(ctx context.Context, list string) error {
	var (
		keys []string
		n    int64
	)
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (err error) {
		if _, err = s.repomanager.Lists(tx).Get(ctx, list); err != nil {
			return err
		}
		if n, err = s.repomanager.Items(tx).DeleteAll(ctx, list); err != nil {
			return err
		}
		keys, err = s.repomanager.Files(tx).DeleteAttachments(ctx, list)
		return err
	})
	if err != nil {
		return err
	}
	s.dropObjects(ctx, keys)
	s.log.Info(ctx, "list emptied", "list", list, "items", n)
	return nil
}

func (s *ListService) Like(ctx context.Context, list string, id, userID int) error {
	return s.setLike(ctx, list, id, userID, true)
}

func (s *ListService) Unlike(ctx context.Context, list string, id, userID int) error {
	return s.setLike(ctx, list, id, userID, false)
}

func (s *ListService) setLike(ctx context.Context, list string, id, userID int, like bool) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		t, err := s.listType(ctx, tx, list)
		if err != nil {
			return err
		}
		item, err := s.repomanager.Items(tx).GetForUpdate(ctx, list, id)
		if err != nil {
			return err
		}
		doc, changed, err := t.ApplyLike(item.Body, userID, like)
		if err != nil || !changed {
			return err
		}
		item.Body = doc
		return s.repomanager.Items(tx).Update(ctx, item)
	})
}

// AttachFileToItem stores content as filename on the item, replacing a file
// of the same name.
func (s *ListService) AttachFileToItem(ctx context.Context, list string, itemID int, filename string, content []byte) error {
	if itemID <= 0 {
		return fmt.Errorf("%w: bad item id %d", common.ErrInvalidDocument, itemID)
	}
	if err := s.checkFile(filename, content); err != nil {
		return err
	}

	l, err := s.repomanager.Lists(s.db).Get(ctx, list)
	if err != nil {
		return err
	}
	if _, err := s.repomanager.Items(s.db).Get(ctx, list, itemID); err != nil {
		return err
	}

	return s.putFile(ctx, l, &models.File{List: list, ItemID: itemID, Filename: filename}, content)
}

// DeleteFileFromItem removes an attachment. A missing file is not an error.
func (s *ListService) DeleteFileFromItem(ctx context.Context, list string, itemID int, filename string) error {
	key, err := s.repomanager.Files(s.db).Delete(ctx, list, itemID, "", filename)
	if errors.Is(err, common.ErrorNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	s.dropObjects(ctx, []string{key})
	return nil
}

// AttachFileToLibrary stores content as folder/filename in the list's
// document library together with an optional entity snapshot.
func (s *ListService) AttachFileToLibrary(ctx context.Context, list, folder, filename string, content, entity []byte) error {
	if folder == "" {
		return fmt.Errorf("%w: folder is required", common.ErrInvalidDocument)
	}
	if err := s.checkFile(filename, content); err != nil {
		return err
	}
	if len(entity) > 0 {
		if err := schema.CheckDocument(entity); err != nil {
			return err
		}
	}

	l, err := s.repomanager.Lists(s.db).Get(ctx, list)
	if err != nil {
		return err
	}

	return s.putFile(ctx, l, &models.File{List: list, Folder: folder, Filename: filename, Entity: entity}, content)
}

// DeleteFilesFromLibrary removes the named files of the folder. Names that
// are not stored are skipped.
func (s *ListService) DeleteFilesFromLibrary(ctx context.Context, list, folder string, filenames []string) error {
	if folder == "" {
		return fmt.Errorf("%w: folder is required", common.ErrInvalidDocument)
	}

	var keys []string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Lists(tx).Get(ctx, list); err != nil {
			return err
		}
		repo := s.repomanager.Files(tx)
		for _, name := range filenames {
			key, err := repo.Delete(ctx, list, 0, folder, name)
			if errors.Is(err, common.ErrorNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.dropObjects(ctx, keys)
	return nil
}

// SelectAllItems returns the documents of the list ordered by id.
func (s *ListService) SelectAllItems(ctx context.Context, list string) ([][]byte, error) {
	if _, err := s.repomanager.Lists(s.db).Get(ctx, list); err != nil {
		return nil, err
	}
	items, err := s.repomanager.Items(s.db).SelectAll(ctx, list)
	if err != nil {
		return nil, err
	}

	out := make([][]byte, 0, len(items))
	for _, it := range items {
		out = append(out, it.Body)
	}
	return out, nil
}

func (s *ListService) SelectFilesFromItem(ctx context.Context, list string, itemID int) ([]*StoredFile, error) {
	if _, err := s.repomanager.Lists(s.db).Get(ctx, list); err != nil {
		return nil, err
	}
	files, err := s.repomanager.Files(s.db).SelectByItem(ctx, list, itemID)
	if err != nil {
		return nil, err
	}
	return s.withContent(ctx, files)
}

func (s *ListService) SelectFilesFromLibrary(ctx context.Context, list, folder string) ([]*StoredFile, error) {
	if _, err := s.repomanager.Lists(s.db).Get(ctx, list); err != nil {
		return nil, err
	}
	files, err := s.repomanager.Files(s.db).SelectByFolder(ctx, list, folder)
	if err != nil {
		return nil, err
	}
	return s.withContent(ctx, files)
}

// GetChoices returns the allowed values of a choice field.
func (s *ListService) GetChoices(ctx context.Context, list, field string) ([]string, error) {
	t, err := s.listType(ctx, s.db, list)
	if err != nil {
		return nil, err
	}
	f, ok := t.Field(field)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", common.ErrFieldMissing, t.Name, field)
	}
	if len(f.Choices) == 0 {
		return nil, fmt.Errorf("%w: %s.%s is not a choice field", common.ErrNotSupported, t.Name, field)
	}
	return append([]string(nil), f.Choices...), nil
}

func (s *ListService) listType(ctx context.Context, db dbx.DBTX, list string) (*schema.Type, error) {
	l, err := s.repomanager.Lists(db).Get(ctx, list)
	if err != nil {
		return nil, err
	}
	if len(l.Schema) == 0 {
		name := l.TypeName
		if name == "" {
			name = l.Name
		}
		t := schema.NewType(name, l.Name)
		return t, t.Validate()
	}
	return decodeSchema(l.Name, l.Schema)
}

func (s *ListService) checkFile(filename string, content []byte) error {
	if filename == "" {
		return fmt.Errorf("%w: filename is required", common.ErrInvalidDocument)
	}
	if s.maxFileSize > 0 && int64(len(content)) > s.maxFileSize {
		return fmt.Errorf("%w: %s is %d bytes, limit is %d", common.ErrFileTooLarge, filename, len(content), s.maxFileSize)
	}
	return nil
}

// putFile uploads content under a fresh key, then records it. The object a
// replaced record pointed at is dropped.
func (s *ListService) putFile(ctx context.Context, l *models.List, f *models.File, content []byte) error {
	f.StorageKey = s.newKey(l.Handle)
	f.Size = int64(len(content))
	f.UploadedAt = s.now().UTC()

	if err := s.blobs.Put(ctx, f.StorageKey, content); err != nil {
		return err
	}

	previous, err := s.repomanager.Files(s.db).Put(ctx, f)
	if err != nil {
		s.dropObjects(ctx, []string{f.StorageKey})
		return err
	}
	if previous != "" {
		s.dropObjects(ctx, []string{previous})
	}
	return nil
}

func (s *ListService) withContent(ctx context.Context, files []*models.File) ([]*StoredFile, error) {
	out := make([]*StoredFile, 0, len(files))
	for _, f := range files {
		b, err := s.blobs.Get(ctx, f.StorageKey)
		if err != nil {
			return nil, fmt.Errorf("file %s: %w", f.Filename, err)
		}
		out = append(out, &StoredFile{File: f, Content: b})
	}
	return out, nil
}

// dropObjects deletes objects whose records are already gone. Failures only
// leave orphans behind, so they are logged.
func (s *ListService) dropObjects(ctx context.Context, keys []string) {
	for _, k := range keys {
		if err := s.blobs.Delete(ctx, k); err != nil {
			s.log.Warn(ctx, "failed to delete object", "key", k, "error", err)
		}
	}
}

// checkSchema validates an optional descriptor for list and returns the
// type name to store.
func checkSchema(list, typeName string, raw []byte) (string, error) {
	if len(raw) == 0 {
		return typeName, nil
	}
	t, err := decodeSchema(list, raw)
	if err != nil {
		return "", err
	}
	if typeName == "" {
		typeName = t.Name
	}
	return typeName, nil
}

func decodeSchema(list string, raw []byte) (*schema.Type, error) {
	var t schema.Type
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidSchema, err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.List != list {
		return nil, fmt.Errorf("%w: schema describes list %s, not %s", common.ErrInvalidSchema, t.List, list)
	}
	return &t, nil
}
