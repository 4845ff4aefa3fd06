package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/listbuffer/internal/client/client"
	"github.com/dmitrijs2005/listbuffer/internal/client/models"
	"github.com/dmitrijs2005/listbuffer/internal/common"
	"github.com/dmitrijs2005/listbuffer/internal/dbx"
	"github.com/dmitrijs2005/listbuffer/internal/schema"
)

// RemapStats reports what a remap cascade touched.
type RemapStats struct {
	References  int
	Attachments int
	Snapshots   int
	Commands    int
}

// ReferenceIndex rewrites every reference to an entity whose buffer id has
// been replaced by a server-assigned id.
type ReferenceIndex struct {
	store    *client.Store
	outbox   *Outbox
	registry *schema.Registry
}

func NewReferenceIndex(store *client.Store, outbox *Outbox, registry *schema.Registry) *ReferenceIndex {
	return &ReferenceIndex{store: store, outbox: outbox, registry: registry}
}

// Remap moves the entity of type t from oldID to newID and rewrites lookup
// fields, attachment owners, library snapshots and queued commands that
// point at oldID. All of it happens in one transaction.
//
// An entity deleted locally while its insert was in flight has a queued
// Delete for oldID; that Delete is moved to newID so the remote copy is
// removed on replay. Any other missing entity is common.ErrKeyNotFound.
func (x *ReferenceIndex) Remap(ctx context.Context, t *schema.Type, oldID, newID int) (*RemapStats, error) {
	stats := &RemapStats{}
	err := x.outbox.Do(ctx, func(ctx context.Context, tx dbx.DBTX) ([]*models.Command, error) {
		*stats = RemapStats{}
		return nil, x.remap(ctx, tx, t, oldID, newID, stats)
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (x *ReferenceIndex) remap(ctx context.Context, tx dbx.DBTX, t *schema.Type, oldID, newID int, stats *RemapStats) error {
	err := x.moveEntity(ctx, tx, t, oldID, newID)
	if errors.Is(err, common.ErrKeyNotFound) {
		deleted, herr := x.store.Commands(tx).HasOpen(ctx, t.Name, models.ActionDelete, oldID)
		if herr != nil {
			return herr
		}
		if !deleted {
			return err
		}
	} else if err != nil {
		return err
	}

	n, err := x.rewriteLookups(ctx, tx, t, oldID, newID)
	if err != nil {
		return err
	}
	stats.References = n

	if stats.Attachments, err = x.rewriteOwners(ctx, tx, t, oldID, newID); err != nil {
		return err
	}
	if stats.Snapshots, err = x.rewriteSnapshots(ctx, tx, t, oldID, newID); err != nil {
		return err
	}

	if stats.Commands, err = x.store.Commands(tx).RewriteItemID(ctx, t.Name, oldID, newID); err != nil {
		return fmt.Errorf("failed to rewrite queued commands: %w", err)
	}
	return nil
}

// moveEntity deletes the row under oldID and stores it again under newID.
// The buffer id column keeps the original value for FindByID fallback.
func (x *ReferenceIndex) moveEntity(ctx context.Context, tx dbx.DBTX, t *schema.Type, oldID, newID int) error {
	repo := x.store.Items(tx)

	item, err := repo.Get(ctx, t, oldID)
	if errors.Is(err, common.ErrItemNotFound) {
		return fmt.Errorf("%w: %s id=%d", common.ErrKeyNotFound, t.List, oldID)
	}
	if err != nil {
		return err
	}

	if err := repo.Remove(ctx, t, oldID); err != nil {
		return err
	}

	body, err := t.SetID(item.Body, newID)
	if err != nil {
		return err
	}

	return repo.Put(ctx, &models.Item{Collection: t.List, ID: newID, BufferID: item.BufferID, Body: body})
}

func (x *ReferenceIndex) rewriteLookups(ctx context.Context, tx dbx.DBTX, t *schema.Type, oldID, newID int) (int, error) {
	repo := x.store.Items(tx)

	count := 0
	for _, other := range x.registry.Types() {
		if !other.MayReference(t.List) {
			continue
		}

		all, err := repo.FindAll(ctx, other, nil)
		if err != nil {
			return 0, err
		}

		for i := range all {
			body, changed, err := other.RewriteReferences(all[i].Body, t.List, oldID, newID)
			if err != nil {
				return 0, err
			}
			if !changed {
				continue
			}
			all[i].Body = body
			if err := repo.Put(ctx, &all[i]); err != nil {
				return 0, err
			}
			count++
		}
	}
	return count, nil
}

func (x *ReferenceIndex) rewriteOwners(ctx context.Context, tx dbx.DBTX, t *schema.Type, oldID, newID int) (int, error) {
	repo := x.store.Files(tx)

	owned, err := repo.GetByOwner(ctx, t.List, oldID)
	if err != nil {
		return 0, err
	}

	for _, a := range owned {
		meta := a.Meta
		meta.ParentID = models.IntPtr(newID)
		if _, err := repo.UpdateMeta(ctx, a.Key, &meta); err != nil {
			return 0, fmt.Errorf("failed to move attachment %s: %w", a.Key, err)
		}
	}
	return len(owned), nil
}

// rewriteSnapshots applies the lookup rewrite to the entity snapshots kept
// with document library files of every registered list.
func (x *ReferenceIndex) rewriteSnapshots(ctx context.Context, tx dbx.DBTX, t *schema.Type, oldID, newID int) (int, error) {
	repo := x.store.Files(tx)

	count := 0
	for _, lib := range x.registry.Types() {
		files, err := repo.ListByList(ctx, lib.List)
		if err != nil {
			return 0, err
		}

		for _, a := range files {
			if a.Meta.Type != models.AttachmentTypeDocLib || a.Meta.Snapshot == "" {
				continue
			}

			st := x.snapshotType(&a.Meta)
			if st == nil {
				continue
			}

			snapshot, changed, err := rewriteSnapshot(st, []byte(a.Meta.Snapshot), t, oldID, newID)
			if err != nil {
				return 0, fmt.Errorf("failed to rewrite snapshot of %s: %w", a.Key, err)
			}
			if !changed {
				continue
			}

			meta := a.Meta
			meta.Snapshot = string(snapshot)
			if _, err := repo.UpdateMeta(ctx, a.Key, &meta); err != nil {
				return 0, err
			}
			count++
		}
	}
	return count, nil
}

func (x *ReferenceIndex) snapshotType(meta *models.AttachmentMeta) *schema.Type {
	if meta.TypeName != "" {
		if st, err := x.registry.Lookup(meta.TypeName); err == nil {
			return st
		}
	}
	st, err := x.registry.ByList(meta.ListName)
	if err != nil {
		return nil
	}
	return st
}

// rewriteSnapshot rewrites lookups into t and, when the snapshot is the
// remapped entity itself, its identifier.
func rewriteSnapshot(st *schema.Type, doc []byte, t *schema.Type, oldID, newID int) ([]byte, bool, error) {
	if err := schema.CheckDocument(doc); err != nil {
		return nil, false, err
	}

	doc, changed, err := st.RewriteReferences(doc, t.List, oldID, newID)
	if err != nil {
		return nil, false, err
	}

	if st.Name == t.Name {
		if id, ok := st.ID(doc); ok && id == oldID {
			if doc, err = st.SetID(doc, newID); err != nil {
				return nil, false, err
			}
			changed = true
		}
	}
	return doc, changed, nil
}
