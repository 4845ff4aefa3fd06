package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/listbuffer/internal/client/models"
	"github.com/dmitrijs2005/listbuffer/internal/common"
	"github.com/dmitrijs2005/listbuffer/internal/dbx"
	"github.com/dmitrijs2005/listbuffer/internal/schema"
)

// File is an attachment or library file with its content.
type File struct {
	Filename   string
	Folder     string
	UploadedAt time.Time
	Residency  models.Residency
	Content    []byte

	// Snapshot is the serialized entity kept with a library file.
	Snapshot string
}

func fileFrom(a *models.Attachment) File {
	return File{
		Filename:   a.Meta.Filename,
		Folder:     a.Meta.Folder,
		UploadedAt: a.UploadedAt,
		Residency:  a.Residency,
		Content:    a.Content,
		Snapshot:   a.Meta.Snapshot,
	}
}

func fileNames(atts []models.Attachment) []models.FileName {
	out := make([]models.FileName, 0, len(atts))
	for _, a := range atts {
		out = append(out, models.FileName{UploadDate: a.UploadedAt, Filename: a.Meta.Filename})
	}
	return out
}

// AttachFileToItem stores a file under the item. Content under the
// attachment threshold is cached and queued. Larger content is sent to the
// remote right away and only its name is kept locally, which requires the
// item to exist remotely; for a buffered item it fails with
// common.ErrNotSupported.
func (tb *Table[T]) AttachFileToItem(ctx context.Context, id int, filename string, content io.Reader) error {
	defer tb.b.timed(ctx, "AttachFileToItem", tb.t.List)()

	data, err := io.ReadAll(content)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}

	residency := models.ResidencyFor(int64(len(data)), tb.b.opts.AttachmentThreshold)
	if residency == models.ResidencyServer {
		return tb.attachOversized(ctx, id, filename, data)
	}

	return tb.b.outbox.Do(ctx, func(ctx context.Context, tx dbx.DBTX) ([]*models.Command, error) {
		item, err := tb.b.store.Items(tx).FindByID(ctx, tb.t, id)
		if err != nil {
			return nil, err
		}

		meta := tb.itemMeta(item.ID, filename)
		if _, err := tb.b.store.Files(tx).AddAttachment(ctx, meta, data, models.ResidencyUpload); err != nil {
			return nil, err
		}
		return []*models.Command{
			tb.command(models.ActionAttachFileToItem, models.IntPtr(item.ID), map[string]any{
				models.ParamFilename: filename,
				models.ParamFolder:   meta.Folder,
			}),
		}, nil
	})
}

func (tb *Table[T]) attachOversized(ctx context.Context, id int, filename string, data []byte) error {
	item, err := tb.b.store.Items(tb.b.store.DB()).FindByID(ctx, tb.t, id)
	if err != nil {
		return err
	}
	if item.IsBuffered() {
		return fmt.Errorf("%w: %s exceeds the attachment threshold and item %d is not on the remote yet",
			common.ErrNotSupported, filename, item.ID)
	}

	err = tb.b.call(ctx, "AttachFileToItem", tb.t.List, func(ctx context.Context) error {
		return tb.b.remote.AttachFileToItem(ctx, tb.t, item.ID, filename, bytes.NewReader(data))
	})
	if err != nil {
		return err
	}

	return tb.b.outbox.Do(ctx, func(ctx context.Context, tx dbx.DBTX) ([]*models.Command, error) {
		_, err := tb.b.store.Files(tx).AddAttachment(ctx, tb.itemMeta(item.ID, filename), data, models.ResidencyServer)
		return nil, err
	})
}

func (tb *Table[T]) itemMeta(id int, filename string) *models.AttachmentMeta {
	return &models.AttachmentMeta{
		Type:     models.AttachmentTypeAttachment,
		ListName: tb.t.List,
		ParentID: models.IntPtr(id),
		Filename: filename,
	}
}

func (tb *Table[T]) libraryMeta(folder, filename string) *models.AttachmentMeta {
	return &models.AttachmentMeta{
		Type:     models.AttachmentTypeDocLib,
		ListName: tb.t.List,
		Folder:   folder,
		Filename: filename,
		TypeName: tb.t.Name,
	}
}

// DeleteFileFromItem removes the local copy, if any, and queues the remote
// removal.
func (tb *Table[T]) DeleteFileFromItem(ctx context.Context, id int, filename string) error {
	defer tb.b.timed(ctx, "DeleteFileFromItem", tb.t.List)()

	return tb.b.outbox.Do(ctx, func(ctx context.Context, tx dbx.DBTX) ([]*models.Command, error) {
		item, err := tb.b.store.Items(tx).FindByID(ctx, tb.t, id)
		if err != nil {
			return nil, err
		}

		err = tb.b.store.Files(tx).RemoveAttachment(ctx, tb.itemMeta(item.ID, filename))
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return []*models.Command{
			tb.command(models.ActionRemoveAttachmentFromItem, models.IntPtr(item.ID), map[string]any{
				models.ParamFilename: filename,
			}),
		}, nil
	})
}

// AttachFileToLibrary stores a library file with an optional entity
// snapshot. The threshold rule of AttachFileToItem applies with the library
// threshold; oversized files are pushed synchronously.
func (tb *Table[T]) AttachFileToLibrary(ctx context.Context, folder, filename string, content io.Reader, entity *T) error {
	defer tb.b.timed(ctx, "AttachFileToLibrary", tb.t.List)()

	data, err := io.ReadAll(content)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}

	meta := tb.libraryMeta(folder, filename)
	if entity != nil {
		if meta.Snapshot, err = schema.SerializeSnapshot(entity); err != nil {
			return err
		}
	}

	if models.ResidencyFor(int64(len(data)), tb.b.opts.LibraryThreshold) == models.ResidencyServer {
		var snapshot []byte
		if meta.Snapshot != "" {
			snapshot = []byte(meta.Snapshot)
		}
		err := tb.b.call(ctx, "AttachFileToLibrary", tb.t.List, func(ctx context.Context) error {
			return tb.b.remote.AttachFileToLibrary(ctx, tb.t, folder, filename, bytes.NewReader(data), snapshot)
		})
		if err != nil {
			return err
		}
		return tb.b.outbox.Do(ctx, func(ctx context.Context, tx dbx.DBTX) ([]*models.Command, error) {
			_, err := tb.b.store.Files(tx).AddAttachment(ctx, meta, data, models.ResidencyServer)
			return nil, err
		})
	}

	return tb.b.outbox.Do(ctx, func(ctx context.Context, tx dbx.DBTX) ([]*models.Command, error) {
		if _, err := tb.b.store.Files(tx).AddAttachment(ctx, meta, data, models.ResidencyUpload); err != nil {
			return nil, err
		}
		return []*models.Command{
			tb.command(models.ActionAttachFileToLibrary, nil, map[string]any{
				models.ParamFolder:   folder,
				models.ParamFilename: filename,
			}),
		}, nil
	})
}

// DeleteFilesFromLibrary removes local copies and queues one remote removal.
func (tb *Table[T]) DeleteFilesFromLibrary(ctx context.Context, folder string, filenames []string) error {
	defer tb.b.timed(ctx, "DeleteFilesFromLibrary", tb.t.List)()

	if len(filenames) == 0 {
		return nil
	}

	return tb.b.outbox.Do(ctx, func(ctx context.Context, tx dbx.DBTX) ([]*models.Command, error) {
		vault := tb.b.store.Files(tx)
		for _, name := range filenames {
			err := vault.RemoveAttachment(ctx, tb.libraryMeta(folder, name))
			if err != nil && !errors.Is(err, common.ErrorNotFound) {
				return nil, err
			}
		}
		return []*models.Command{
			tb.command(models.ActionRemoveFileFromLibrary, nil, map[string]any{
				models.ParamFolder:    folder,
				models.ParamFilenames: filenames,
			}),
		}, nil
	})
}

// SelectFileNamesFromItem lists the attachments known locally.
func (tb *Table[T]) SelectFileNamesFromItem(ctx context.Context, id int) ([]models.FileName, error) {
	item, err := tb.b.store.Items(tb.b.store.DB()).FindByID(ctx, tb.t, id)
	if err != nil {
		return nil, err
	}
	atts, err := tb.b.store.Files(tb.b.store.DB()).GetByOwner(ctx, tb.t.List, item.ID)
	if err != nil {
		return nil, err
	}
	return fileNames(atts), nil
}

// SelectFilesFromItem returns the attachments of the item with content.
// Local bytes are served from the vault; entries known only by name are
// filled from the remote by filename.
func (tb *Table[T]) SelectFilesFromItem(ctx context.Context, id int) ([]File, error) {
	defer tb.b.timed(ctx, "SelectFilesFromItem", tb.t.List)()

	item, err := tb.b.store.Items(tb.b.store.DB()).FindByID(ctx, tb.t, id)
	if err != nil {
		return nil, err
	}
	atts, err := tb.b.store.Files(tb.b.store.DB()).GetByOwner(ctx, tb.t.List, item.ID)
	if err != nil {
		return nil, err
	}

	return tb.overlay(ctx, atts, func(ctx context.Context) ([]models.RemoteFile, error) {
		return tb.b.remote.SelectFilesFromItem(ctx, tb.t, item.ID)
	})
}

func (tb *Table[T]) SelectFileNamesFromLibrary(ctx context.Context, folder string) ([]models.FileName, error) {
	atts, err := tb.b.store.Files(tb.b.store.DB()).ListFolder(ctx, tb.t.List, folder)
	if err != nil {
		return nil, err
	}
	return fileNames(atts), nil
}

// SelectFilesFromLibrary returns the files of a library folder with content,
// overlaid like SelectFilesFromItem.
func (tb *Table[T]) SelectFilesFromLibrary(ctx context.Context, folder string) ([]File, error) {
	defer tb.b.timed(ctx, "SelectFilesFromLibrary", tb.t.List)()

	atts, err := tb.b.store.Files(tb.b.store.DB()).ListFolder(ctx, tb.t.List, folder)
	if err != nil {
		return nil, err
	}

	return tb.overlay(ctx, atts, func(ctx context.Context) ([]models.RemoteFile, error) {
		return tb.b.remote.SelectFilesFromLibrary(ctx, tb.t, folder)
	})
}

// SelectFileFromLibrary returns one library file, or common.ErrorNotFound.
func (tb *Table[T]) SelectFileFromLibrary(ctx context.Context, folder, filename string) (*File, error) {
	files, err := tb.SelectFilesFromLibrary(ctx, folder)
	if err != nil {
		return nil, err
	}
	for i := range files {
		if files[i].Filename == filename {
			return &files[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s in %s", common.ErrorNotFound, folder, filename, tb.t.List)
}

// overlay loads local content for atts and asks fetch, at most once, for
// the bytes of entries that have none.
func (tb *Table[T]) overlay(ctx context.Context, atts []models.Attachment, fetch func(ctx context.Context) ([]models.RemoteFile, error)) ([]File, error) {
	vault := tb.b.store.Files(tb.b.store.DB())

	out := make([]File, 0, len(atts))
	var missing []int
	for _, a := range atts {
		if !a.HasContent() {
			missing = append(missing, len(out))
			out = append(out, fileFrom(&a))
			continue
		}

		full, err := vault.GetContentByID(ctx, a.Key)
		if err != nil {
			return nil, err
		}
		out = append(out, fileFrom(full))
	}

	if len(missing) == 0 {
		return out, nil
	}

	var remote []models.RemoteFile
	err := tb.b.call(ctx, "SelectFiles", tb.t.List, func(ctx context.Context) (err error) {
		remote, err = fetch(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch remote content: %w", err)
	}

	byName := make(map[string]*models.RemoteFile, len(remote))
	for i := range remote {
		byName[remote[i].Filename] = &remote[i]
	}
	for _, i := range missing {
		if rf, ok := byName[out[i].Filename]; ok {
			out[i].Content = rf.Content
		}
	}
	return out, nil
}

// StoreAttachments prefetches the remote attachments of the item into the
// vault. Files under the threshold are cached with residency Local, larger
// ones are recorded by name only. Files waiting for upload are left alone.
func (tb *Table[T]) StoreAttachments(ctx context.Context, id int) (int, error) {
	item, err := tb.b.store.Items(tb.b.store.DB()).FindByID(ctx, tb.t, id)
	if err != nil {
		return 0, err
	}
	if item.IsBuffered() {
		return 0, fmt.Errorf("%w: item %d is not on the remote yet", common.ErrNotSupported, item.ID)
	}

	var remote []models.RemoteFile
	err = tb.b.call(ctx, "SelectFilesFromItem", tb.t.List, func(ctx context.Context) (err error) {
		remote, err = tb.b.remote.SelectFilesFromItem(ctx, tb.t, item.ID)
		return err
	})
	if err != nil {
		return 0, err
	}

	metas := make([]*models.AttachmentMeta, len(remote))
	for i, rf := range remote {
		metas[i] = tb.itemMeta(item.ID, rf.Filename)
	}
	return tb.prefetch(ctx, metas, remote, tb.b.opts.AttachmentThreshold)
}

// StoreLibrary prefetches a remote library folder into the vault.
func (tb *Table[T]) StoreLibrary(ctx context.Context, folder string) (int, error) {
	var remote []models.RemoteFile
	err := tb.b.call(ctx, "SelectFilesFromLibrary", tb.t.List, func(ctx context.Context) (err error) {
		remote, err = tb.b.remote.SelectFilesFromLibrary(ctx, tb.t, folder)
		return err
	})
	if err != nil {
		return 0, err
	}

	metas := make([]*models.AttachmentMeta, len(remote))
	for i, rf := range remote {
		metas[i] = tb.libraryMeta(folder, rf.Filename)
		metas[i].Snapshot = string(rf.Entity)
	}
	return tb.prefetch(ctx, metas, remote, tb.b.opts.LibraryThreshold)
}

func (tb *Table[T]) prefetch(ctx context.Context, metas []*models.AttachmentMeta, remote []models.RemoteFile, threshold int64) (int, error) {
	stored := 0
	err := tb.b.outbox.Do(ctx, func(ctx context.Context, tx dbx.DBTX) ([]*models.Command, error) {
		vault := tb.b.store.Files(tx)
		for i, meta := range metas {
			existing, err := vault.Get(ctx, meta.Key())
			if err == nil && existing.Residency == models.ResidencyUpload {
				continue
			}
			if err != nil && !errors.Is(err, common.ErrorNotFound) {
				return nil, err
			}

			residency := models.ResidencyLocal
			if int64(len(remote[i].Content)) >= threshold {
				residency = models.ResidencyServer
			}
			if _, err := vault.AddAttachment(ctx, meta, remote[i].Content, residency); err != nil {
				return nil, err
			}
			stored++
		}
		return nil, nil
	})
	if err != nil {
		return 0, err
	}
	return stored, nil
}
