package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/listbuffer/internal/client/models"
	"github.com/dmitrijs2005/listbuffer/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/listbuffer/internal/common"
	"github.com/dmitrijs2005/listbuffer/internal/schema"
)

// handler replays one command. A non-nil id is the server id assigned to a
// buffered entity and starts the remap cascade.
type handler func(ctx context.Context, t *schema.Type, cmd *models.Command) (*int, error)

// noRemap wraps handlers that never produce a new id.
func noRemap(fn func(ctx context.Context, t *schema.Type, cmd *models.Command) error) handler {
	return func(ctx context.Context, t *schema.Type, cmd *models.Command) (*int, error) {
		return nil, fn(ctx, t, cmd)
	}
}

func (e *SyncEngine) buildHandlers() map[models.Action]handler {
	return map[models.Action]handler{
		models.ActionCreateTable:              noRemap(e.createTable),
		models.ActionDeleteTable:              noRemap(e.deleteTable),
		models.ActionInsert:                   e.insert,
		models.ActionUpdate:                   noRemap(e.update),
		models.ActionDelete:                   noRemap(e.delete),
		models.ActionEmpty:                    noRemap(e.empty),
		models.ActionAttachFileToItem:         noRemap(e.attachFileToItem),
		models.ActionRemoveAttachmentFromItem: noRemap(e.removeAttachmentFromItem),
		models.ActionAttachFileToLibrary:      noRemap(e.attachFileToLibrary),
		models.ActionRemoveFileFromLibrary:    noRemap(e.removeFileFromLibrary),
		models.ActionLike:                     noRemap(e.like(true)),
		models.ActionUnlike:                   noRemap(e.like(false)),
	}
}

func (e *SyncEngine) createTable(ctx context.Context, t *schema.Type, _ *models.Command) error {
	var handle string
	err := e.call(ctx, "CreateTable", t.List, func(ctx context.Context) (err error) {
		handle, err = e.remote.CreateTable(ctx, t)
		return err
	})
	if err != nil {
		return err
	}
	return e.store.Metadata(e.store.DB()).Set(ctx, metadata.ListHandleKey(t.List), []byte(handle))
}

func (e *SyncEngine) deleteTable(ctx context.Context, t *schema.Type, _ *models.Command) error {
	err := e.call(ctx, "DeleteTable", t.List, func(ctx context.Context) error {
		return e.remote.DeleteTable(ctx, t)
	})
	if err != nil {
		return err
	}
	return e.store.Metadata(e.store.DB()).Delete(ctx, metadata.ListHandleKey(t.List))
}

// insert pushes the live document. An entity deleted locally after the
// insert was queued is gone for good and the command is superseded.
func (e *SyncEngine) insert(ctx context.Context, t *schema.Type, cmd *models.Command) (*int, error) {
	item, err := e.store.Items(e.store.DB()).FindByID(ctx, t, cmd.Item())
	if errors.Is(err, common.ErrItemNotFound) {
		e.log.Info(ctx, "insert superseded", "list", t.List, "id", cmd.Item())
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !item.IsBuffered() {
		return nil, fmt.Errorf("item %s %d is already known to the remote", t.List, item.ID)
	}

	var id int
	err = e.call(ctx, "InsertItem", t.List, func(ctx context.Context) (err error) {
		id, err = e.remote.InsertItem(ctx, t, item.Body)
		return err
	})
	if err != nil {
		return nil, err
	}
	if id < 0 {
		return nil, fmt.Errorf("remote returned invalid id %d for %s", id, t.List)
	}
	return &id, nil
}

func (e *SyncEngine) update(ctx context.Context, t *schema.Type, cmd *models.Command) error {
	item, err := e.store.Items(e.store.DB()).FindByID(ctx, t, cmd.Item())
	if errors.Is(err, common.ErrItemNotFound) {
		e.log.Info(ctx, "update superseded", "list", t.List, "id", cmd.Item())
		return nil
	}
	if err != nil {
		return err
	}
	if item.IsBuffered() {
		return fmt.Errorf("item %s %d has not been inserted remotely", t.List, item.ID)
	}

	return e.call(ctx, "UpdateItem", t.List, func(ctx context.Context) error {
		return e.remote.UpdateItem(ctx, t, item.Body)
	})
}

// delete of a buffer id never reached the remote, so there is nothing to do.
func (e *SyncEngine) delete(ctx context.Context, t *schema.Type, cmd *models.Command) error {
	if cmd.Item() < 0 {
		return nil
	}
	return e.call(ctx, "DeleteItemByID", t.List, func(ctx context.Context) error {
		return e.remote.DeleteItemByID(ctx, t, cmd.Item())
	})
}

func (e *SyncEngine) empty(ctx context.Context, t *schema.Type, _ *models.Command) error {
	return e.call(ctx, "Empty", t.List, func(ctx context.Context) error {
		return e.remote.Empty(ctx, t)
	})
}

// unsynced is the outcome of a command that still points at a buffer id.
// Its insert must have been superseded if the entity is gone; otherwise the
// outbox and the store disagree.
func (e *SyncEngine) unsynced(ctx context.Context, t *schema.Type, id int) error {
	_, err := e.store.Items(e.store.DB()).FindByID(ctx, t, id)
	if errors.Is(err, common.ErrItemNotFound) {
		e.log.Info(ctx, "command superseded", "list", t.List, "id", id)
		return nil
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("item %s %d has not been inserted remotely", t.List, id)
}

func itemAttachment(t *schema.Type, cmd *models.Command) *models.AttachmentMeta {
	return &models.AttachmentMeta{
		Type:     models.AttachmentTypeAttachment,
		ListName: t.List,
		Folder:   cmd.StringParam(models.ParamFolder),
		ParentID: models.IntPtr(cmd.Item()),
		Filename: cmd.StringParam(models.ParamFilename),
	}
}

func libraryFile(t *schema.Type, folder, filename string) *models.AttachmentMeta {
	return &models.AttachmentMeta{
		Type:     models.AttachmentTypeDocLib,
		ListName: t.List,
		Folder:   folder,
		Filename: filename,
	}
}

// cached returns the local bytes waiting for upload, or nil when the file was
// removed or already pushed.
func (e *SyncEngine) cached(ctx context.Context, meta *models.AttachmentMeta) (*models.Attachment, error) {
	a, err := e.store.Files(e.store.DB()).GetContentByID(ctx, meta.Key())
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !a.HasContent() {
		return nil, nil
	}
	return a, nil
}

func (e *SyncEngine) attachFileToItem(ctx context.Context, t *schema.Type, cmd *models.Command) error {
	meta := itemAttachment(t, cmd)
	a, err := e.cached(ctx, meta)
	if err != nil || a == nil {
		return err
	}
	if cmd.Item() < 0 {
		return e.unsynced(ctx, t, cmd.Item())
	}

	err = e.call(ctx, "AttachFileToItem", t.List, func(ctx context.Context) error {
		return e.remote.AttachFileToItem(ctx, t, cmd.Item(), meta.Filename, bytes.NewReader(a.Content))
	})
	if err != nil {
		return err
	}
	return e.store.Files(e.store.DB()).ClearContent(ctx, a.Key)
}

func (e *SyncEngine) removeAttachmentFromItem(ctx context.Context, t *schema.Type, cmd *models.Command) error {
	if cmd.Item() < 0 {
		return nil
	}
	return e.call(ctx, "DeleteFileFromItem", t.List, func(ctx context.Context) error {
		return e.remote.DeleteFileFromItem(ctx, t, cmd.Item(), cmd.StringParam(models.ParamFilename))
	})
}

func (e *SyncEngine) attachFileToLibrary(ctx context.Context, t *schema.Type, cmd *models.Command) error {
	meta := libraryFile(t, cmd.StringParam(models.ParamFolder), cmd.StringParam(models.ParamFilename))
	a, err := e.cached(ctx, meta)
	if err != nil || a == nil {
		return err
	}

	var entity []byte
	if a.Meta.Snapshot != "" {
		entity = []byte(a.Meta.Snapshot)
	}

	err = e.call(ctx, "AttachFileToLibrary", t.List, func(ctx context.Context) error {
		return e.remote.AttachFileToLibrary(ctx, t, meta.Folder, meta.Filename, bytes.NewReader(a.Content), entity)
	})
	if err != nil {
		return err
	}
	return e.store.Files(e.store.DB()).ClearContent(ctx, a.Key)
}

func (e *SyncEngine) removeFileFromLibrary(ctx context.Context, t *schema.Type, cmd *models.Command) error {
	filenames := cmd.StringsParam(models.ParamFilenames)
	if len(filenames) == 0 {
		return nil
	}
	return e.call(ctx, "DeleteFilesFromLibrary", t.List, func(ctx context.Context) error {
		return e.remote.DeleteFilesFromLibrary(ctx, t, cmd.StringParam(models.ParamFolder), filenames)
	})
}

func (e *SyncEngine) like(like bool) func(ctx context.Context, t *schema.Type, cmd *models.Command) error {
	op := "Like"
	if !like {
		op = "Unlike"
	}

	return func(ctx context.Context, t *schema.Type, cmd *models.Command) error {
		if cmd.Item() < 0 {
			return e.unsynced(ctx, t, cmd.Item())
		}
		user, ok := cmd.IntParam(models.ParamUser)
		if !ok {
			return fmt.Errorf("%s command %d has no %s parameter", op, cmd.Seq, models.ParamUser)
		}

		return e.call(ctx, op, t.List, func(ctx context.Context) error {
			if like {
				return e.remote.Like(ctx, t, cmd.Item(), user)
			}
			return e.remote.Unlike(ctx, t, cmd.Item(), user)
		})
	}
}
