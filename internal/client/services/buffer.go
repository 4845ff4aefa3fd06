// Package services contains the buffering core of the client: the outbox,
// the sync engine that replays it, the remap cascade that follows a remote
// insert, and the typed table façade callers read and write through.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/listbuffer/internal/client/client"
	"github.com/dmitrijs2005/listbuffer/internal/client/models"
	"github.com/dmitrijs2005/listbuffer/internal/client/repositories/commands"
	"github.com/dmitrijs2005/listbuffer/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/listbuffer/internal/dbx"
	"github.com/dmitrijs2005/listbuffer/internal/logging"
	"github.com/dmitrijs2005/listbuffer/internal/schema"
	"github.com/dmitrijs2005/listbuffer/internal/sizex"
)

// slowOperation is the duration above which an operation is logged.
const slowOperation = time.Second

// Options tunes a Buffer. Zero thresholds mean unlimited, a zero timeout
// means remote calls only honor the caller's context.
type Options struct {
	AttachmentThreshold int64
	LibraryThreshold    int64
	RemoteTimeout       time.Duration
	Logger              logging.Logger
}

// Buffer wires the store, the outbox, the remap cascade and the sync engine
// around one remote backend. Tables are created from it with NewTable.
type Buffer struct {
	store    *client.Store
	registry *schema.Registry
	remote   client.RemoteTable
	outbox   *Outbox
	index    *ReferenceIndex
	engine   *SyncEngine
	log      logging.Logger
	opts     Options
	now      func() time.Time
}

func NewBuffer(store *client.Store, registry *schema.Registry, remote client.RemoteTable, opts Options) *Buffer {
	if opts.AttachmentThreshold <= 0 {
		opts.AttachmentThreshold = sizex.Unlimited
	}
	if opts.LibraryThreshold <= 0 {
		opts.LibraryThreshold = sizex.Unlimited
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	b := &Buffer{
		store:    store,
		registry: registry,
		remote:   remote,
		log:      opts.Logger.With("module", "buffer"),
		opts:     opts,
		now:      time.Now,
	}
	b.outbox = NewOutbox(store)
	b.index = NewReferenceIndex(store, b.outbox, registry)
	b.engine = NewSyncEngine(store, registry, remote, b.outbox, b.index, opts.RemoteTimeout, opts.Logger)
	return b
}

func (b *Buffer) Registry() *schema.Registry { return b.registry }

func (b *Buffer) Outbox() *Outbox { return b.outbox }

// Drain replays the outbox. See SyncEngine.Drain.
func (b *Buffer) Drain(ctx context.Context) (*DrainResult, error) {
	return b.engine.Drain(ctx)
}

// LastDrain returns the outcome of the latest drain, if any.
func (b *Buffer) LastDrain(ctx context.Context) (*DrainResult, bool, error) {
	var res DrainResult
	ok, err := metadata.GetJSON(ctx, b.store.Metadata(b.store.DB()), metadata.KeyLastDrain, &res)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &res, true, nil
}

// Handles returns the remote handle of every list known to exist on the
// server, keyed by list name.
func (b *Buffer) Handles(ctx context.Context) (map[string]string, error) {
	return b.store.Metadata(b.store.DB()).Handles(ctx)
}

// Commands returns the queued commands in replay order.
func (b *Buffer) Commands(ctx context.Context) ([]models.Command, error) {
	return b.store.Commands(b.store.DB()).Read(ctx)
}

// Stats counts the queued commands per state.
func (b *Buffer) Stats(ctx context.Context) (commands.Stats, error) {
	return b.store.Commands(b.store.DB()).Stats(ctx)
}

// Disable excludes a queued command from replay.
func (b *Buffer) Disable(ctx context.Context, seq int64) error {
	return b.outbox.Do(ctx, func(ctx context.Context, tx dbx.DBTX) ([]*models.Command, error) {
		return nil, b.store.Commands(tx).Disable(ctx, seq)
	})
}

// EmptyStorage wipes every collection, the attachment vault and the outbox.
// Remote list handles are kept.
func (b *Buffer) EmptyStorage(ctx context.Context) error {
	err := b.outbox.Do(ctx, func(ctx context.Context, tx dbx.DBTX) ([]*models.Command, error) {
		if err := b.store.Items(tx).Clear(ctx); err != nil {
			return nil, err
		}
		if err := b.store.Files(tx).DeleteAll(ctx); err != nil {
			return nil, err
		}
		if err := b.store.Commands(tx).Empty(ctx); err != nil {
			return nil, err
		}
		return nil, b.store.Metadata(tx).Delete(ctx, metadata.KeyLastDrain)
	})
	if err != nil {
		return fmt.Errorf("failed to empty storage: %w", err)
	}
	b.log.Info(ctx, "local storage emptied")
	return nil
}

// timed logs op when it takes longer than slowOperation. Use as
// defer b.timed(ctx, "Insert", list)().
func (b *Buffer) timed(ctx context.Context, op, list string) func() {
	start := b.now()
	return func() {
		if d := b.now().Sub(start); d > slowOperation {
			b.log.Warn(ctx, "slow operation", "op", op, "list", list, "duration", d.String())
		}
	}
}

// call runs a remote operation under the configured deadline.
func (b *Buffer) call(ctx context.Context, op, list string, fn func(ctx context.Context) error) error {
	return callRemote(ctx, b.opts.RemoteTimeout, fn, b.timed(ctx, op, list))
}

func callRemote(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error, done func()) error {
	defer done()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx)
}
