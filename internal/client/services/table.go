package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/listbuffer/internal/client/models"
	"github.com/dmitrijs2005/listbuffer/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/listbuffer/internal/common"
	"github.com/dmitrijs2005/listbuffer/internal/dbx"
	"github.com/dmitrijs2005/listbuffer/internal/schema"
)

// ErrPendingCommands is returned by Refresh while the outbox still holds
// commands for the list.
var ErrPendingCommands = errors.New("list has pending commands")

// Operator composes multi-field conditions.
type Operator int

const (
	And Operator = iota
	Or
)

// Table is the typed read/write surface of one entity type. Writes land in
// the local store first and enqueue exactly one command; reads are served
// from the local store.
//
// T is encoded to and from the stored JSON document with encoding/json, so
// it is either a struct with json tags matching the descriptor or a
// map[string]any.
type Table[T any] struct {
	b *Buffer
	t *schema.Type
}

// NewTable returns the table of the entity type t.
func NewTable[T any](b *Buffer, t *schema.Type) *Table[T] {
	return &Table[T]{b: b, t: t}
}

// OpenTable resolves the type by its fully-qualified name.
func OpenTable[T any](b *Buffer, typeName string) (*Table[T], error) {
	t, err := b.registry.Lookup(typeName)
	if err != nil {
		return nil, err
	}
	return NewTable[T](b, t), nil
}

func (tb *Table[T]) Type() *schema.Type { return tb.t }

func (tb *Table[T]) command(action models.Action, id *int, params map[string]any) *models.Command {
	return &models.Command{
		Action:     action,
		TableName:  tb.t.List,
		TypeName:   tb.t.Name,
		ItemID:     id,
		Parameters: params,
	}
}

func (tb *Table[T]) encode(v T) ([]byte, error) {
	doc, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidDocument, err)
	}
	if err := schema.CheckDocument(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (tb *Table[T]) decode(doc []byte) (T, error) {
	var v T
	if err := json.Unmarshal(doc, &v); err != nil {
		return v, fmt.Errorf("failed to decode %s item: %w", tb.t.List, err)
	}
	return v, nil
}

func (tb *Table[T]) decodeAll(items []models.Item) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, item := range items {
		v, err := tb.decode(item.Body)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Insert stores v under the next buffer id and returns that id.
func (tb *Table[T]) Insert(ctx context.Context, v T) (int, error) {
	defer tb.b.timed(ctx, "Insert", tb.t.List)()

	doc, err := tb.encode(v)
	if err != nil {
		return 0, err
	}
	if doc, err = tb.t.Touch(doc, true, tb.b.now()); err != nil {
		return 0, err
	}

	var id int
	err = tb.b.outbox.Do(ctx, func(ctx context.Context, tx dbx.DBTX) ([]*models.Command, error) {
		item, err := tb.b.store.Items(tx).Insert(ctx, tb.t, doc)
		if err != nil {
			return nil, err
		}
		id = item.ID
		return []*models.Command{tb.command(models.ActionInsert, models.IntPtr(item.ID), nil)}, nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Update replaces the stored document with v. The id is read from v; a
// buffer id of an item that has since been remapped still resolves.
func (tb *Table[T]) Update(ctx context.Context, v T) error {
	defer tb.b.timed(ctx, "Update", tb.t.List)()

	doc, err := tb.encode(v)
	if err != nil {
		return err
	}
	id, ok := tb.t.ID(doc)
	if !ok {
		return fmt.Errorf("%w: %s has no %s", common.ErrInvalidDocument, tb.t.Name, tb.t.IDField)
	}
	if doc, err = tb.t.Touch(doc, false, tb.b.now()); err != nil {
		return err
	}

	return tb.b.outbox.Do(ctx, func(ctx context.Context, tx dbx.DBTX) ([]*models.Command, error) {
		item, err := tb.b.store.Items(tx).Update(ctx, tb.t, id, doc)
		if err != nil {
			return nil, err
		}
		return []*models.Command{tb.command(models.ActionUpdate, models.IntPtr(item.ID), nil)}, nil
	})
}

// DeleteByID removes the item and its locally cached attachments.
func (tb *Table[T]) DeleteByID(ctx context.Context, id int) error {
	defer tb.b.timed(ctx, "DeleteByID", tb.t.List)()

	return tb.b.outbox.Do(ctx, func(ctx context.Context, tx dbx.DBTX) ([]*models.Command, error) {
		item, err := tb.b.store.Items(tx).Delete(ctx, tb.t, id)
		if err != nil {
			return nil, err
		}

		vault := tb.b.store.Files(tx)
		owned, err := vault.GetByOwner(ctx, tb.t.List, item.ID)
		if err != nil {
			return nil, err
		}
		for _, a := range owned {
			if err := vault.RemoveByKey(ctx, a.Key); err != nil {
				return nil, err
			}
		}

		return []*models.Command{tb.command(models.ActionDelete, models.IntPtr(item.ID), nil)}, nil
	})
}

// Empty removes every item of the list.
func (tb *Table[T]) Empty(ctx context.Context) error {
	defer tb.b.timed(ctx, "Empty", tb.t.List)()

	return tb.b.outbox.Do(ctx, func(ctx context.Context, tx dbx.DBTX) ([]*models.Command, error) {
		if err := tb.b.store.Items(tx).DeleteAll(ctx, tb.t); err != nil {
			return nil, err
		}
		return []*models.Command{tb.command(models.ActionEmpty, nil, nil)}, nil
	})
}

// SelectByID returns the item, or common.ErrItemNotFound.
func (tb *Table[T]) SelectByID(ctx context.Context, id int) (T, error) {
	item, err := tb.b.store.Items(tb.b.store.DB()).FindByID(ctx, tb.t, id)
	if err != nil {
		var zero T
		return zero, err
	}
	return tb.decode(item.Body)
}

// Exists reports whether an item resolves under id.
func (tb *Table[T]) Exists(ctx context.Context, id int) (bool, error) {
	_, err := tb.b.store.Items(tb.b.store.DB()).FindByID(ctx, tb.t, id)
	if errors.Is(err, common.ErrItemNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (tb *Table[T]) SelectAll(ctx context.Context) ([]T, error) {
	return tb.find(ctx, nil)
}

func (tb *Table[T]) find(ctx context.Context, pred func([]byte) bool) ([]T, error) {
	defer tb.b.timed(ctx, "Select", tb.t.List)()

	items, err := tb.b.store.Items(tb.b.store.DB()).FindAll(ctx, tb.t, pred)
	if err != nil {
		return nil, err
	}
	return tb.decodeAll(items)
}

func (tb *Table[T]) matcher(conds []schema.Condition, op Operator) (func([]byte) bool, error) {
	return tb.t.Matcher(conds, op == And)
}

// SelectByField returns the items whose field equals value. The value must
// have the Go type of the declared kind: int, float64, string, bool or
// time.Time. Reference fields match on the referenced id (an int or a
// schema.Ref); reference sets match on membership.
func (tb *Table[T]) SelectByField(ctx context.Context, field string, value any) ([]T, error) {
	return tb.SelectByFields(ctx, []schema.Condition{{Field: field, Value: value}}, And)
}

func (tb *Table[T]) SelectByFields(ctx context.Context, conds []schema.Condition, op Operator) ([]T, error) {
	pred, err := tb.matcher(conds, op)
	if err != nil {
		return nil, err
	}
	return tb.find(ctx, pred)
}

// SelectByTitle matches the title field of the descriptor.
func (tb *Table[T]) SelectByTitle(ctx context.Context, title string) ([]T, error) {
	if tb.t.TitleField == "" {
		return nil, fmt.Errorf("%w: %s has no title field", common.ErrFieldMissing, tb.t.Name)
	}
	return tb.SelectByField(ctx, tb.t.TitleField, title)
}

func (tb *Table[T]) CountItems(ctx context.Context) (int, error) {
	return tb.b.store.Items(tb.b.store.DB()).Count(ctx, tb.t)
}

func (tb *Table[T]) CountByField(ctx context.Context, field string, value any) (int, error) {
	return tb.CountByFields(ctx, []schema.Condition{{Field: field, Value: value}}, And)
}

func (tb *Table[T]) CountByFields(ctx context.Context, conds []schema.Condition, op Operator) (int, error) {
	pred, err := tb.matcher(conds, op)
	if err != nil {
		return 0, err
	}
	items, err := tb.b.store.Items(tb.b.store.DB()).FindAll(ctx, tb.t, pred)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Like adds userID to the likedBy set of the item. Liking twice is a no-op
// that enqueues nothing.
func (tb *Table[T]) Like(ctx context.Context, id, userID int) error {
	return tb.applyLike(ctx, id, userID, true)
}

// Unlike removes userID from the likedBy set of the item.
func (tb *Table[T]) Unlike(ctx context.Context, id, userID int) error {
	return tb.applyLike(ctx, id, userID, false)
}

func (tb *Table[T]) applyLike(ctx context.Context, id, userID int, like bool) error {
	action := models.ActionLike
	if !like {
		action = models.ActionUnlike
	}
	defer tb.b.timed(ctx, string(action), tb.t.List)()

	return tb.b.outbox.Do(ctx, func(ctx context.Context, tx dbx.DBTX) ([]*models.Command, error) {
		repo := tb.b.store.Items(tx)

		item, err := repo.FindByID(ctx, tb.t, id)
		if err != nil {
			return nil, err
		}

		doc, changed, err := tb.t.ApplyLike(item.Body, userID, like)
		if err != nil || !changed {
			return nil, err
		}

		if _, err := repo.Update(ctx, tb.t, item.ID, doc); err != nil {
			return nil, err
		}
		return []*models.Command{
			tb.command(action, models.IntPtr(item.ID), map[string]any{models.ParamUser: userID}),
		}, nil
	})
}

// IsLikedBy reports whether userID is in the likedBy set of the item.
func (tb *Table[T]) IsLikedBy(ctx context.Context, id, userID int) (bool, error) {
	likes, err := tb.GetLikes(ctx, id)
	if err != nil {
		return false, err
	}
	return likes.Has(userID), nil
}

// GetLikes returns the likedBy set of the item.
func (tb *Table[T]) GetLikes(ctx context.Context, id int) (schema.RefSet, error) {
	item, err := tb.b.store.Items(tb.b.store.DB()).FindByID(ctx, tb.t, id)
	if err != nil {
		return nil, err
	}
	return tb.t.Likes(item.Body)
}

// Refresh replaces the local list with the remote items. It refuses to run
// while commands for the list wait in the outbox, since their local effects
// would be lost.
func (tb *Table[T]) Refresh(ctx context.Context) (int, error) {
	queued, err := tb.b.store.Commands(tb.b.store.DB()).Read(ctx)
	if err != nil {
		return 0, err
	}
	for _, c := range queued {
		if c.TypeName == tb.t.Name && c.Eligible() {
			return 0, fmt.Errorf("%w: %s", ErrPendingCommands, tb.t.List)
		}
	}

	var docs [][]byte
	err = tb.b.call(ctx, "SelectAllItems", tb.t.List, func(ctx context.Context) (err error) {
		docs, err = tb.b.remote.SelectAllItems(ctx, tb.t)
		return err
	})
	if err != nil {
		return 0, err
	}

	err = tb.b.outbox.Do(ctx, func(ctx context.Context, tx dbx.DBTX) ([]*models.Command, error) {
		repo := tb.b.store.Items(tx)
		if err := repo.DeleteAll(ctx, tb.t); err != nil {
			return nil, err
		}
		for _, doc := range docs {
			id, ok := tb.t.ID(doc)
			if !ok {
				return nil, fmt.Errorf("%w: remote %s item without %s", common.ErrInvalidDocument, tb.t.List, tb.t.IDField)
			}
			if err := repo.Put(ctx, &models.Item{Collection: tb.t.List, ID: id, Body: doc}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return 0, err
	}

	tb.b.log.Info(ctx, "list refreshed", "list", tb.t.List, "items", len(docs))
	return len(docs), nil
}

// CreateTable creates the remote list and remembers its handle. Table
// lifecycle operations are not buffered.
func (tb *Table[T]) CreateTable(ctx context.Context) (string, error) {
	var handle string
	err := tb.b.call(ctx, "CreateTable", tb.t.List, func(ctx context.Context) (err error) {
		handle, err = tb.b.remote.CreateTable(ctx, tb.t)
		return err
	})
	if err != nil {
		return "", err
	}

	if err := tb.b.store.Metadata(tb.b.store.DB()).Set(ctx, metadata.ListHandleKey(tb.t.List), []byte(handle)); err != nil {
		return "", err
	}
	return handle, nil
}

// Handle returns the remote handle stored by CreateTable, if any.
func (tb *Table[T]) Handle(ctx context.Context) (string, error) {
	raw, err := tb.b.store.Metadata(tb.b.store.DB()).Get(ctx, metadata.ListHandleKey(tb.t.List))
	return string(raw), err
}

func (tb *Table[T]) DeleteTable(ctx context.Context) error {
	err := tb.b.call(ctx, "DeleteTable", tb.t.List, func(ctx context.Context) error {
		return tb.b.remote.DeleteTable(ctx, tb.t)
	})
	if err != nil {
		return err
	}
	return tb.b.store.Metadata(tb.b.store.DB()).Delete(ctx, metadata.ListHandleKey(tb.t.List))
}

// DeleteTableIfExisting is DeleteTable that ignores a missing remote list.
func (tb *Table[T]) DeleteTableIfExisting(ctx context.Context) error {
	err := tb.DeleteTable(ctx)
	if errors.Is(err, common.ErrItemNotFound) {
		return nil
	}
	return err
}

func (tb *Table[T]) UpdateTableStructure(ctx context.Context) error {
	return tb.b.call(ctx, "UpdateTableStructure", tb.t.List, func(ctx context.Context) error {
		return tb.b.remote.UpdateTableStructure(ctx, tb.t)
	})
}

// GetAvailableChoicesFromField asks the remote for the allowed values of a
// choice field.
func (tb *Table[T]) GetAvailableChoicesFromField(ctx context.Context, field string) ([]string, error) {
	if _, err := tb.t.Queryable(field); err != nil {
		return nil, err
	}

	var choices []string
	err := tb.b.call(ctx, "GetAvailableChoicesFromField", tb.t.List, func(ctx context.Context) (err error) {
		choices, err = tb.b.remote.GetAvailableChoicesFromField(ctx, tb.t, field)
		return err
	})
	return choices, err
}

// SelectByQuery has no buffered semantics.
func (tb *Table[T]) SelectByQuery(context.Context, string) ([]T, error) {
	return nil, fmt.Errorf("%w: SelectByQuery", common.ErrNotSupported)
}

// ModifiedItemsSince has no buffered semantics.
func (tb *Table[T]) ModifiedItemsSince(context.Context, time.Time) ([]T, error) {
	return nil, fmt.Errorf("%w: ModifiedItemsSince", common.ErrNotSupported)
}

// HasChangesSince has no buffered semantics.
func (tb *Table[T]) HasChangesSince(context.Context, time.Time) (bool, error) {
	return false, fmt.Errorf("%w: HasChangesSince", common.ErrNotSupported)
}
