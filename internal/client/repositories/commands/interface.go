// Package commands persists the outbox: the ordered log of mutations waiting
// to be replayed against the remote backend.
//
// Sequence numbers are allocated by Add as max(seq)+1. Callers serialize Add
// through services.Outbox so concurrent producers never race on the maximum.
package commands

import (
	"context"

	"github.com/dmitrijs2005/listbuffer/internal/client/models"
)

// Stats counts commands per state.
type Stats map[models.State]int

// Repository stores queued commands.
type Repository interface {
	// Add allocates the next sequence number and stores c.
	Add(ctx context.Context, c *models.Command) error

	// Read returns every command ordered by sequence.
	Read(ctx context.Context) ([]models.Command, error)

	// Get returns one command.
	Get(ctx context.Context, seq int64) (*models.Command, error)

	// Next returns the earliest Pending or Failed command, or nil.
	Next(ctx context.Context) (*models.Command, error)

	// UpdateState stores the state, attempts and last error of c.
	UpdateState(ctx context.Context, c *models.Command) error

	// Delete removes one command.
	Delete(ctx context.Context, seq int64) error

	// Empty removes every command.
	Empty(ctx context.Context) error

	// CollectGarbage removes Succeeded commands and reports how many.
	CollectGarbage(ctx context.Context) (int, error)

	// RewriteItemID moves Pending and Failed commands of typeName from
	// oldID to newID.
	RewriteItemID(ctx context.Context, typeName string, oldID, newID int) (int, error)

	// HasOpen reports whether a Pending or Failed command with action exists
	// for the item id of typeName.
	HasOpen(ctx context.Context, typeName string, action models.Action, itemID int) (bool, error)

	// Disable excludes a command from replay.
	Disable(ctx context.Context, seq int64) error

	// Stats counts commands per state.
	Stats(ctx context.Context) (Stats, error)
}
