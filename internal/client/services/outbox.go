package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/listbuffer/internal/client/client"
	"github.com/dmitrijs2005/listbuffer/internal/client/models"
	"github.com/dmitrijs2005/listbuffer/internal/dbx"
)

// WriteFunc performs a local write inside tx and returns the commands that
// replay it remotely. Returning no commands is allowed.
type WriteFunc func(ctx context.Context, tx dbx.DBTX) ([]*models.Command, error)

// Outbox is the single allocation point of command sequence numbers.
//
// Every local write that must be replayed goes through Do: the write and the
// enqueue of its commands share one transaction and the outbox lock, so a
// command exists iff its write was committed, and sequence numbers follow
// the order in which writes were committed.
type Outbox struct {
	mu    sync.Mutex
	store *client.Store
}

func NewOutbox(store *client.Store) *Outbox {
	return &Outbox{store: store}
}

// Do runs fn and enqueues its commands atomically.
func (o *Outbox) Do(ctx context.Context, fn WriteFunc) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.store.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		cmds, err := fn(ctx, tx)
		if err != nil {
			return err
		}

		repo := o.store.Commands(tx)
		for _, c := range cmds {
			if err := repo.Add(ctx, c); err != nil {
				return fmt.Errorf("failed to enqueue %s: %w", c.Action, err)
			}
		}
		return nil
	})
}

// Add enqueues commands without a local write.
func (o *Outbox) Add(ctx context.Context, cmds ...*models.Command) error {
	return o.Do(ctx, func(context.Context, dbx.DBTX) ([]*models.Command, error) {
		return cmds, nil
	})
}

// CollectGarbage removes Succeeded commands.
func (o *Outbox) CollectGarbage(ctx context.Context) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.store.Commands(o.store.DB()).CollectGarbage(ctx)
}
