package items

import (
	"context"

	"github.com/dmitrijs2005/listbuffer/internal/client/models"
	"github.com/dmitrijs2005/listbuffer/internal/schema"
)

// Repository describes the operations of the local entity store.
type Repository interface {
	// Insert assigns the next buffer id to doc and stores it.
	Insert(ctx context.Context, t *schema.Type, doc []byte) (*models.Item, error)

	// Update replaces the document of the item resolved by id (with buffer id
	// fallback) and returns the stored item.
	Update(ctx context.Context, t *schema.Type, id int, doc []byte) (*models.Item, error)

	// Put stores item under its id, replacing any existing row.
	Put(ctx context.Context, item *models.Item) error

	// Delete removes the item resolved by id (with buffer id fallback).
	Delete(ctx context.Context, t *schema.Type, id int) (*models.Item, error)

	// Remove deletes the row stored exactly under id.
	Remove(ctx context.Context, t *schema.Type, id int) error

	// DeleteAll empties the collection.
	DeleteAll(ctx context.Context, t *schema.Type) error

	// Clear removes every item of every collection.
	Clear(ctx context.Context) error

	// Get returns the row stored exactly under id.
	Get(ctx context.Context, t *schema.Type, id int) (*models.Item, error)

	// FindByID returns the item by id; a missing negative id is looked up
	// by buffer id.
	FindByID(ctx context.Context, t *schema.Type, id int) (*models.Item, error)

	// FindAll materializes the collection and returns the items accepted by
	// pred, ordered by id. A nil pred accepts everything.
	FindAll(ctx context.Context, t *schema.Type, pred func(doc []byte) bool) ([]models.Item, error)

	// Count returns the number of items in the collection.
	Count(ctx context.Context, t *schema.Type) (int, error)

	// Collections lists the collection names that hold at least one item.
	Collections(ctx context.Context) ([]string, error)
}
